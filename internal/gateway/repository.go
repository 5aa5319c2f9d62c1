package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	pkgerrors "gateway/pkg/errors"
	"gateway/pkg/models"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.ChannelAccount) error
	Get(ctx context.Context, accountID string) (*models.ChannelAccount, error)
	List(ctx context.Context, tenantID string) ([]models.ChannelAccount, error)
	UpdateHealth(ctx context.Context, accountID string, health models.AccountHealth) error
}

type PostgresAccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) AccountRepository {
	return &PostgresAccountRepository{db: db}
}

func (r *PostgresAccountRepository) Create(ctx context.Context, account *models.ChannelAccount) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	if account.HealthStatus == "" {
		account.HealthStatus = models.AccountHealthy
	}

	credentials, err := json.Marshal(account.Credentials)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	attributes, err := json.Marshal(account.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	query := `
		INSERT INTO channel_accounts (id, tenant_id, workspace_id, type, identifier, credentials, attributes, health_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		account.ID, account.TenantID, account.WorkspaceID, account.Type,
		account.Identifier, credentials, attributes, account.HealthStatus,
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("account with identifier '%s' already exists", account.Identifier))
		}
		return fmt.Errorf("failed to create channel account: %w", err)
	}

	return nil
}

func (r *PostgresAccountRepository) Get(ctx context.Context, accountID string) (*models.ChannelAccount, error) {
	query := `
		SELECT id, tenant_id, workspace_id, type, identifier, credentials, attributes, health_status, created_at, updated_at
		FROM channel_accounts
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, accountID)

	var account models.ChannelAccount
	var credentials, attributes []byte
	err := row.Scan(
		&account.ID, &account.TenantID, &account.WorkspaceID, &account.Type,
		&account.Identifier, &credentials, &attributes, &account.HealthStatus,
		&account.CreatedAt, &account.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("channel_account_id", accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel account: %w", err)
	}

	if err := json.Unmarshal(credentials, &account.Credentials); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	if err := json.Unmarshal(attributes, &account.Attributes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
	}

	return &account, nil
}

func (r *PostgresAccountRepository) List(ctx context.Context, tenantID string) ([]models.ChannelAccount, error) {
	query := `
		SELECT id, tenant_id, workspace_id, type, identifier, credentials, attributes, health_status, created_at, updated_at
		FROM channel_accounts
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channel accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.ChannelAccount
	for rows.Next() {
		var account models.ChannelAccount
		var credentials, attributes []byte
		if err := rows.Scan(
			&account.ID, &account.TenantID, &account.WorkspaceID, &account.Type,
			&account.Identifier, &credentials, &attributes, &account.HealthStatus,
			&account.CreatedAt, &account.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan channel account: %w", err)
		}
		if err := json.Unmarshal(credentials, &account.Credentials); err != nil {
			return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
		}
		if err := json.Unmarshal(attributes, &account.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func (r *PostgresAccountRepository) UpdateHealth(ctx context.Context, accountID string, health models.AccountHealth) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE channel_accounts SET health_status = $1, updated_at = $2 WHERE id = $3`,
		health, time.Now(), accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account health: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrNotFound.WithDetail("channel_account_id", accountID)
	}

	return nil
}
