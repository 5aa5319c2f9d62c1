package template

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	pkgerrors "gateway/pkg/errors"
	"gateway/pkg/models"
)

type Repository interface {
	Create(ctx context.Context, tmpl *models.Template) error
	Get(ctx context.Context, tenantID, templateID string) (*models.Template, error)
	List(ctx context.Context, tenantID string, channel models.ChannelType) ([]models.Template, error)
	UpdateStatus(ctx context.Context, tenantID, templateID string, status models.TemplateStatus) error
	Delete(ctx context.Context, tenantID, templateID string) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, tmpl *models.Template) error {
	if tmpl.ID == "" {
		tmpl.ID = uuid.New().String()
	}
	now := time.Now()
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now
	if tmpl.Status == "" {
		tmpl.Status = models.TemplatePending
	}

	query := `
		INSERT INTO templates (id, tenant_id, channel_type, name, provider_template_id, body, variables, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		tmpl.ID, tmpl.TenantID, tmpl.ChannelType, tmpl.Name,
		tmpl.ProviderTemplateID, tmpl.Body, pq.Array(tmpl.Variables),
		tmpl.Status, tmpl.CreatedAt, tmpl.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("template '%s' already exists for tenant", tmpl.Name))
		}
		return fmt.Errorf("failed to create template: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, tenantID, templateID string) (*models.Template, error) {
	query := `
		SELECT id, tenant_id, channel_type, name, provider_template_id, body, variables, status, created_at, updated_at
		FROM templates
		WHERE tenant_id = $1 AND id = $2
	`

	row := r.db.QueryRowContext(ctx, query, tenantID, templateID)

	var tmpl models.Template
	err := row.Scan(
		&tmpl.ID, &tmpl.TenantID, &tmpl.ChannelType, &tmpl.Name,
		&tmpl.ProviderTemplateID, &tmpl.Body, pq.Array(&tmpl.Variables),
		&tmpl.Status, &tmpl.CreatedAt, &tmpl.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("template_id", templateID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return &tmpl, nil
}

func (r *PostgresRepository) List(ctx context.Context, tenantID string, channel models.ChannelType) ([]models.Template, error) {
	query := `
		SELECT id, tenant_id, channel_type, name, provider_template_id, body, variables, status, created_at, updated_at
		FROM templates
		WHERE tenant_id = $1 AND channel_type = $2
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, channel)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []models.Template
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		var tmpl models.Template
		if err := rows.Scan(
			&tmpl.ID, &tmpl.TenantID, &tmpl.ChannelType, &tmpl.Name,
			&tmpl.ProviderTemplateID, &tmpl.Body, pq.Array(&tmpl.Variables),
			&tmpl.Status, &tmpl.CreatedAt, &tmpl.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, tmpl)
	}

	return templates, rows.Err()
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, tenantID, templateID string, status models.TemplateStatus) error {
	query := `
		UPDATE templates
		SET status = $1, updated_at = $2
		WHERE tenant_id = $3 AND id = $4
	`

	result, err := r.db.ExecContext(ctx, query, status, time.Now(), tenantID, templateID)
	if err != nil {
		return fmt.Errorf("failed to update template status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrNotFound.WithDetail("template_id", templateID)
	}

	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, tenantID, templateID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE tenant_id = $1 AND id = $2`, tenantID, templateID)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrNotFound.WithDetail("template_id", templateID)
	}

	return nil
}
