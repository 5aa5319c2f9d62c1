package optout

import (
	"context"
	"strings"
	"time"

	"gateway/internal/logger"
	"gateway/pkg/models"
)

var stopKeywords = map[string]bool{
	"STOP":        true,
	"STOPALL":     true,
	"UNSUBSCRIBE": true,
	"CANCEL":      true,
	"END":         true,
	"QUIT":        true,
}

var startKeywords = map[string]bool{
	"START":     true,
	"UNSTOP":    true,
	"SUBSCRIBE": true,
}

// Service is the per-channel opt-out registry. promotional sends consult it
// before dispatch; inbound keyword messages feed it.
type Service struct {
	repo   Repository
	logger logger.Logger
}

func NewService(repo Repository, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: log,
	}
}

func (s *Service) IsOptedOut(ctx context.Context, channel models.ChannelType, recipient string) (bool, error) {
	return s.repo.IsMember(ctx, channel, recipient)
}

func (s *Service) AddOptOut(ctx context.Context, channel models.ChannelType, recipient, source string) error {
	if err := s.repo.Add(ctx, channel, recipient); err != nil {
		return err
	}
	s.logger.InfowCtx(ctx, "Recipient opted out",
		"channel_type", channel,
		"recipient", recipient,
		"source", source,
	)
	return nil
}

func (s *Service) RemoveOptOut(ctx context.Context, channel models.ChannelType, recipient, source string) error {
	if err := s.repo.Remove(ctx, channel, recipient); err != nil {
		return err
	}
	s.logger.InfowCtx(ctx, "Recipient opted back in",
		"channel_type", channel,
		"recipient", recipient,
		"source", source,
	)
	return nil
}

func (s *Service) Count(ctx context.Context, channel models.ChannelType) (int64, error) {
	return s.repo.Count(ctx, channel)
}

// ProcessInbound applies keyword semantics to an inbound message. It returns
// true when the message changed the registry.
func (s *Service) ProcessInbound(ctx context.Context, msg *models.NormalizedMessage) (bool, error) {
	if msg == nil || msg.Direction != models.DirectionInbound {
		return false, nil
	}

	keyword := strings.ToUpper(strings.TrimSpace(msg.Content.Text))
	sender := msg.Metadata.Sender
	if sender == "" {
		return false, nil
	}

	switch {
	case stopKeywords[keyword]:
		if err := s.AddOptOut(ctx, msg.ChannelType, sender, SourceKeyword); err != nil {
			return false, err
		}
		return true, nil
	case startKeywords[keyword]:
		if err := s.RemoveOptOut(ctx, msg.ChannelType, sender, SourceKeyword); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// IsStopKeyword reports whether a raw inbound text is an opt-out request.
func IsStopKeyword(text string) bool {
	return stopKeywords[strings.ToUpper(strings.TrimSpace(text))]
}

// Entry builds the registry entry shape used on the API surface.
func NewEntry(channel models.ChannelType, recipient, source string) Entry {
	return Entry{
		ChannelType: channel,
		Recipient:   recipient,
		Source:      source,
		CreatedAt:   time.Now().UTC(),
	}
}
