package template

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gateway/internal/logger"
	pkgerrors "gateway/pkg/errors"
	"gateway/pkg/models"
)

type fakeRepository struct {
	templates map[string]*models.Template
}

func newFakeRepository(templates ...*models.Template) *fakeRepository {
	repo := &fakeRepository{templates: make(map[string]*models.Template)}
	for _, tmpl := range templates {
		repo.templates[tmpl.ID] = tmpl
	}
	return repo
}

func (f *fakeRepository) Create(ctx context.Context, tmpl *models.Template) error {
	f.templates[tmpl.ID] = tmpl
	return nil
}

func (f *fakeRepository) Get(ctx context.Context, tenantID, templateID string) (*models.Template, error) {
	tmpl, ok := f.templates[templateID]
	if !ok || tmpl.TenantID != tenantID {
		return nil, pkgerrors.ErrNotFound.WithDetail("template_id", templateID)
	}
	return tmpl, nil
}

func (f *fakeRepository) List(ctx context.Context, tenantID string, channel models.ChannelType) ([]models.Template, error) {
	var out []models.Template
	for _, tmpl := range f.templates {
		if tmpl.TenantID == tenantID && tmpl.ChannelType == channel {
			out = append(out, *tmpl)
		}
	}
	return out, nil
}

func (f *fakeRepository) UpdateStatus(ctx context.Context, tenantID, templateID string, status models.TemplateStatus) error {
	tmpl, ok := f.templates[templateID]
	if !ok {
		return pkgerrors.ErrNotFound
	}
	tmpl.Status = status
	return nil
}

func (f *fakeRepository) Delete(ctx context.Context, tenantID, templateID string) error {
	delete(f.templates, templateID)
	return nil
}

func otpTemplate() *models.Template {
	return &models.Template{
		ID:          "tpl-otp",
		TenantID:    "t1",
		ChannelType: models.ChannelSMS,
		Name:        "otp",
		Body:        "Your OTP is {code}. Valid for {minutes} minutes.",
		Variables:   []string{"code", "minutes"},
		Status:      models.TemplateApproved,
	}
}

func TestResolveApprovedByID(t *testing.T) {
	svc := NewService(newFakeRepository(otpTemplate()), logger.NopLogger())

	tmpl, err := svc.ResolveApproved(context.Background(), "t1", models.ChannelSMS, "tpl-otp", "")
	require.NoError(t, err)
	assert.Equal(t, "tpl-otp", tmpl.ID)
}

func TestResolveApprovedRejectsPending(t *testing.T) {
	pending := otpTemplate()
	pending.Status = models.TemplatePending
	svc := NewService(newFakeRepository(pending), logger.NopLogger())

	_, err := svc.ResolveApproved(context.Background(), "t1", models.ChannelSMS, "tpl-otp", "")
	require.Error(t, err)

	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TEMPLATE_NOT_APPROVED", appErr.Code)
}

func TestResolveApprovedFallbackMatchesText(t *testing.T) {
	svc := NewService(newFakeRepository(otpTemplate()), logger.NopLogger())

	tmpl, err := svc.ResolveApproved(context.Background(), "t1", models.ChannelSMS, "",
		"Your OTP is 482913. Valid for 10 minutes.")
	require.NoError(t, err)
	assert.Equal(t, "tpl-otp", tmpl.ID)
}

func TestResolveApprovedFallbackNoMatch(t *testing.T) {
	svc := NewService(newFakeRepository(otpTemplate()), logger.NopLogger())

	_, err := svc.ResolveApproved(context.Background(), "t1", models.ChannelSMS, "",
		"Flash sale! Everything 50% off today only.")
	require.Error(t, err)

	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "DLT_TEMPLATE_REQUIRED", appErr.Code)
}

func TestRender(t *testing.T) {
	tmpl := otpTemplate()

	rendered := Render(tmpl, map[string]string{"code": "482913", "minutes": "10"})
	assert.Equal(t, "Your OTP is 482913. Valid for 10 minutes.", rendered)
}

func TestRenderMissingVariableLeftInPlace(t *testing.T) {
	tmpl := otpTemplate()

	rendered := Render(tmpl, map[string]string{"code": "482913"})
	assert.Equal(t, "Your OTP is 482913. Valid for {minutes} minutes.", rendered)
}

func TestMatchesBody(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{name: "exact shape", text: "Your OTP is 1234. Valid for 5 minutes.", want: true},
		{name: "different literal text", text: "OTP: 1234", want: false},
		{name: "fragments out of order", text: "Valid for 5 minutes. Your OTP is 1234.", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesBody(otpTemplate(), tt.text))
		})
	}
}
