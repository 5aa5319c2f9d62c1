package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gateway/internal/optout"
	"gateway/pkg/models"
)

func createOptOutService(infra *TestInfra) *optout.Service {
	return optout.NewService(optout.NewRepository(infra.RedisClient), createTestLogger())
}

func TestOptOutService_AddCheckRemove(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)

	ctx := context.Background()
	svc := createOptOutService(infra)

	optedOut, err := svc.IsOptedOut(ctx, models.ChannelSMS, "919876543210")
	require.NoError(t, err)
	assert.False(t, optedOut)

	require.NoError(t, svc.AddOptOut(ctx, models.ChannelSMS, "919876543210", optout.SourceAPI))

	optedOut, err = svc.IsOptedOut(ctx, models.ChannelSMS, "919876543210")
	require.NoError(t, err)
	assert.True(t, optedOut)

	// Opt-outs are per channel.
	optedOut, err = svc.IsOptedOut(ctx, models.ChannelWhatsApp, "919876543210")
	require.NoError(t, err)
	assert.False(t, optedOut)

	require.NoError(t, svc.RemoveOptOut(ctx, models.ChannelSMS, "919876543210", optout.SourceAPI))

	optedOut, err = svc.IsOptedOut(ctx, models.ChannelSMS, "919876543210")
	require.NoError(t, err)
	assert.False(t, optedOut)
}

func TestOptOutService_AddIsIdempotent(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)

	ctx := context.Background()
	svc := createOptOutService(infra)

	require.NoError(t, svc.AddOptOut(ctx, models.ChannelSMS, "919876543210", optout.SourceAPI))
	require.NoError(t, svc.AddOptOut(ctx, models.ChannelSMS, "919876543210", optout.SourceKeyword))

	count, err := svc.Count(ctx, models.ChannelSMS)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestOptOutService_ProcessInboundStopKeyword(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)

	ctx := context.Background()
	svc := createOptOutService(infra)

	msg := &models.NormalizedMessage{
		ChannelType: models.ChannelSMS,
		Direction:   models.DirectionInbound,
		Content:     models.MessageContent{Text: "STOP"},
		Metadata:    models.MessageMetadata{Sender: "919876543210"},
	}

	changed, err := svc.ProcessInbound(ctx, msg)
	require.NoError(t, err)
	assert.True(t, changed)

	optedOut, err := svc.IsOptedOut(ctx, models.ChannelSMS, "919876543210")
	require.NoError(t, err)
	assert.True(t, optedOut)

	msg.Content.Text = "START"
	changed, err = svc.ProcessInbound(ctx, msg)
	require.NoError(t, err)
	assert.True(t, changed)

	optedOut, err = svc.IsOptedOut(ctx, models.ChannelSMS, "919876543210")
	require.NoError(t, err)
	assert.False(t, optedOut)
}
