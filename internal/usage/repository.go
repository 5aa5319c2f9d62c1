package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "gateway/pkg/errors"
)

type Repository interface {
	GetBalance(ctx context.Context, tenantID, workspaceID string) (int64, error)
	// ReserveAndRecord atomically writes the usage record and debits the
	// balance in one transaction. It returns false without error when a
	// record with the same message event ID already exists.
	ReserveAndRecord(ctx context.Context, record *UsageRecord) (bool, error)
	CreditBalance(ctx context.Context, tenantID, workspaceID string, amount int64) error
	ListRecords(ctx context.Context, tenantID string, limit int) ([]UsageRecord, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetBalance(ctx context.Context, tenantID, workspaceID string) (int64, error) {
	query := `
		SELECT balance FROM tenant_balances
		WHERE tenant_id = $1 AND workspace_id = $2
	`

	var balance int64
	err := r.db.QueryRowContext(ctx, query, tenantID, workspaceID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrBalanceNotFound.WithDetail("tenant_id", tenantID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}

	return balance, nil
}

func (r *PostgresRepository) ReserveAndRecord(ctx context.Context, record *UsageRecord) (bool, error) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	record.CreatedAt = time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin usage transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO usage_records (id, tenant_id, workspace_id, message_event_id, channel_type, event_type, units, cost, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (message_event_id) DO NOTHING
	`

	res, err := tx.ExecContext(ctx, insert,
		record.ID, record.TenantID, record.WorkspaceID, record.MessageEventID,
		record.ChannelType, record.EventType, record.Units, record.Cost, record.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert usage record: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if inserted == 0 {
		// Replay of an already-billed send; nothing to charge.
		return false, nil
	}

	debit := `
		UPDATE tenant_balances
		SET balance = balance - $3, updated_at = NOW()
		WHERE tenant_id = $1 AND workspace_id = $2 AND balance >= $3
	`

	res, err = tx.ExecContext(ctx, debit, record.TenantID, record.WorkspaceID, record.Cost)
	if err != nil {
		return false, fmt.Errorf("failed to debit balance: %w", err)
	}

	debited, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if debited == 0 {
		return false, ErrInsufficientBalance.
			WithDetail("tenant_id", record.TenantID).
			WithDetail("cost", record.Cost)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit usage transaction: %w", err)
	}

	return true, nil
}

func (r *PostgresRepository) CreditBalance(ctx context.Context, tenantID, workspaceID string, amount int64) error {
	query := `
		INSERT INTO tenant_balances (tenant_id, workspace_id, balance, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id, workspace_id)
		DO UPDATE SET balance = tenant_balances.balance + EXCLUDED.balance, updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, tenantID, workspaceID, amount); err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListRecords(ctx context.Context, tenantID string, limit int) ([]UsageRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, tenant_id, workspace_id, message_event_id, channel_type, event_type, units, cost, created_at
		FROM usage_records
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	defer rows.Close()

	var records []UsageRecord
	for rows.Next() {
		var rec UsageRecord
		if err := rows.Scan(
			&rec.ID, &rec.TenantID, &rec.WorkspaceID, &rec.MessageEventID,
			&rec.ChannelType, &rec.EventType, &rec.Units, &rec.Cost, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// IsInsufficientBalance reports whether err is the balance rejection, as
// opposed to an infrastructure fault.
func IsInsufficientBalance(err error) bool {
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) {
		return appErr.Code == ErrInsufficientBalance.Code
	}
	return false
}
