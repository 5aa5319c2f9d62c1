package optout

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gateway/internal/broker"
	"gateway/internal/logger"
	"gateway/pkg/models"
)

type fakeRepository struct {
	members map[string]map[string]bool
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{members: make(map[string]map[string]bool)}
}

func (f *fakeRepository) set(channel models.ChannelType) map[string]bool {
	key := string(channel)
	if f.members[key] == nil {
		f.members[key] = make(map[string]bool)
	}
	return f.members[key]
}

func (f *fakeRepository) IsMember(ctx context.Context, channel models.ChannelType, recipient string) (bool, error) {
	return f.set(channel)[recipient], nil
}

func (f *fakeRepository) Add(ctx context.Context, channel models.ChannelType, recipient string) error {
	f.set(channel)[recipient] = true
	return nil
}

func (f *fakeRepository) Remove(ctx context.Context, channel models.ChannelType, recipient string) error {
	delete(f.set(channel), recipient)
	return nil
}

func (f *fakeRepository) Count(ctx context.Context, channel models.ChannelType) (int64, error) {
	return int64(len(f.set(channel))), nil
}

func TestOptOutPerChannel(t *testing.T) {
	svc := NewService(newFakeRepository(), logger.NopLogger())
	ctx := context.Background()

	require.NoError(t, svc.AddOptOut(ctx, models.ChannelSMS, "+919876543210", SourceAPI))

	optedOut, err := svc.IsOptedOut(ctx, models.ChannelSMS, "+919876543210")
	require.NoError(t, err)
	assert.True(t, optedOut)

	optedOut, err = svc.IsOptedOut(ctx, models.ChannelWhatsApp, "+919876543210")
	require.NoError(t, err)
	assert.False(t, optedOut, "opt-out is scoped to one channel")
}

func TestRemoveOptOut(t *testing.T) {
	svc := NewService(newFakeRepository(), logger.NopLogger())
	ctx := context.Background()

	require.NoError(t, svc.AddOptOut(ctx, models.ChannelSMS, "+919876543210", SourceAPI))
	require.NoError(t, svc.RemoveOptOut(ctx, models.ChannelSMS, "+919876543210", SourceAPI))

	optedOut, err := svc.IsOptedOut(ctx, models.ChannelSMS, "+919876543210")
	require.NoError(t, err)
	assert.False(t, optedOut)
}

func TestProcessInboundKeywords(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantChanged bool
		wantOptOut  bool
	}{
		{name: "stop keyword", text: "STOP", wantChanged: true, wantOptOut: true},
		{name: "stop keyword lowercase", text: "stop", wantChanged: true, wantOptOut: true},
		{name: "stop keyword with whitespace", text: "  unsubscribe  ", wantChanged: true, wantOptOut: true},
		{name: "plain message", text: "what are your store hours?", wantChanged: false, wantOptOut: false},
		{name: "keyword inside sentence ignored", text: "please stop sending", wantChanged: false, wantOptOut: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(newFakeRepository(), logger.NopLogger())
			ctx := context.Background()

			msg := &models.NormalizedMessage{
				ChannelType: models.ChannelSMS,
				Direction:   models.DirectionInbound,
				Content:     models.MessageContent{Text: tt.text},
				Metadata:    models.MessageMetadata{Sender: "+919876543210"},
			}

			changed, err := svc.ProcessInbound(ctx, msg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, changed)

			optedOut, err := svc.IsOptedOut(ctx, models.ChannelSMS, "+919876543210")
			require.NoError(t, err)
			assert.Equal(t, tt.wantOptOut, optedOut)
		})
	}
}

func TestProcessInboundStartReverses(t *testing.T) {
	svc := NewService(newFakeRepository(), logger.NopLogger())
	ctx := context.Background()

	require.NoError(t, svc.AddOptOut(ctx, models.ChannelSMS, "+919876543210", SourceKeyword))

	changed, err := svc.ProcessInbound(ctx, &models.NormalizedMessage{
		ChannelType: models.ChannelSMS,
		Direction:   models.DirectionInbound,
		Content:     models.MessageContent{Text: "START"},
		Metadata:    models.MessageMetadata{Sender: "+919876543210"},
	})
	require.NoError(t, err)
	assert.True(t, changed)

	optedOut, err := svc.IsOptedOut(ctx, models.ChannelSMS, "+919876543210")
	require.NoError(t, err)
	assert.False(t, optedOut)
}

func TestProcessInboundIgnoresOutbound(t *testing.T) {
	svc := NewService(newFakeRepository(), logger.NopLogger())

	changed, err := svc.ProcessInbound(context.Background(), &models.NormalizedMessage{
		ChannelType: models.ChannelSMS,
		Direction:   models.DirectionOutbound,
		Content:     models.MessageContent{Text: "STOP"},
		Metadata:    models.MessageMetadata{Sender: "+919876543210"},
	})
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestHandleInboundMessage(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, logger.NopLogger())
	handler := NewHandler(svc, logger.NopLogger())
	ctx := context.Background()

	payload, err := json.Marshal(models.NormalizedMessage{
		ID:          "msg-1",
		ChannelType: models.ChannelWhatsApp,
		Direction:   models.DirectionInbound,
		Content:     models.MessageContent{Text: "STOP"},
		Metadata:    models.MessageMetadata{Sender: "+919876543210"},
	})
	require.NoError(t, err)

	require.NoError(t, handler.HandleInboundMessage(ctx, broker.Message{Key: "msg-1", Value: payload}))

	optedOut, err := svc.IsOptedOut(ctx, models.ChannelWhatsApp, "+919876543210")
	require.NoError(t, err)
	assert.True(t, optedOut)
}

func TestHandleInboundMessageMalformed(t *testing.T) {
	handler := NewHandler(NewService(newFakeRepository(), logger.NopLogger()), logger.NopLogger())

	err := handler.HandleInboundMessage(context.Background(), broker.Message{Key: "x", Value: []byte("{not json")})
	assert.NoError(t, err, "malformed payloads are dropped, not retried")
}
