package template

import (
	"context"
	"net/http"
	"strings"

	"gateway/internal/logger"
	pkgerrors "gateway/pkg/errors"
	"gateway/pkg/models"
)

var (
	ErrTemplateRequired    = pkgerrors.NewError("DLT_TEMPLATE_REQUIRED", "channel requires a registered template for this send", http.StatusUnprocessableEntity)
	ErrTemplateNotApproved = pkgerrors.NewError("TEMPLATE_NOT_APPROVED", "template exists but is not approved", http.StatusUnprocessableEntity)
)

// Service resolves and renders registered templates. Regulated channels call
// ResolveApproved before every template send.
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

func (s *Service) Create(ctx context.Context, tmpl *models.Template) error {
	return s.repo.Create(ctx, tmpl)
}

func (s *Service) Get(ctx context.Context, tenantID, templateID string) (*models.Template, error) {
	return s.repo.Get(ctx, tenantID, templateID)
}

func (s *Service) List(ctx context.Context, tenantID string, channel models.ChannelType) ([]models.Template, error) {
	return s.repo.List(ctx, tenantID, channel)
}

func (s *Service) UpdateStatus(ctx context.Context, tenantID, templateID string, status models.TemplateStatus) error {
	return s.repo.UpdateStatus(ctx, tenantID, templateID, status)
}

func (s *Service) Delete(ctx context.Context, tenantID, templateID string) error {
	return s.repo.Delete(ctx, tenantID, templateID)
}

// ResolveApproved returns the APPROVED template for a send. With an explicit
// templateID the lookup is direct; without one it falls back to the single
// approved template whose body matches the message text, which covers
// clients that registered their copy but send it as free text.
func (s *Service) ResolveApproved(ctx context.Context, tenantID string, channel models.ChannelType, templateID, text string) (*models.Template, error) {
	if templateID != "" {
		tmpl, err := s.repo.Get(ctx, tenantID, templateID)
		if err != nil {
			return nil, err
		}
		if tmpl.Status != models.TemplateApproved {
			return nil, ErrTemplateNotApproved.WithDetail("template_id", templateID).WithDetail("status", string(tmpl.Status))
		}
		return tmpl, nil
	}

	templates, err := s.repo.List(ctx, tenantID, channel)
	if err != nil {
		return nil, err
	}

	for i := range templates {
		tmpl := &templates[i]
		if tmpl.Status != models.TemplateApproved {
			continue
		}
		if MatchesBody(tmpl, text) {
			return tmpl, nil
		}
	}

	return nil, ErrTemplateRequired.WithDetail("channel_type", string(channel))
}

// Render substitutes {variable} placeholders in the template body.
func Render(tmpl *models.Template, variables map[string]string) string {
	body := tmpl.Body
	for _, name := range tmpl.Variables {
		value, ok := variables[name]
		if !ok {
			continue
		}
		body = strings.ReplaceAll(body, "{"+name+"}", value)
	}
	return body
}

// MatchesBody reports whether free text could have been produced by the
// template: the text must contain every literal fragment of the body, in
// order, with variables free to take any value.
func MatchesBody(tmpl *models.Template, text string) bool {
	body := tmpl.Body
	for _, name := range tmpl.Variables {
		body = strings.ReplaceAll(body, "{"+name+"}", "\x00")
	}

	rest := text
	for _, fragment := range strings.Split(body, "\x00") {
		if fragment == "" {
			continue
		}
		idx := strings.Index(rest, fragment)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(fragment):]
	}
	return true
}
