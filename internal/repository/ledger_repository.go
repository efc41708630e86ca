package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

const ledgerColumns = `id, institution_id, name, email, phone, balance, due_date, created_at, updated_at`

// LedgerRepository persists running-balance accounts and their payments.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Create opens an account.
func (r *LedgerRepository) Create(ctx context.Context, account *models.LedgerAccount) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	const query = `INSERT INTO ledger_accounts (id, institution_id, name, email, phone, balance, due_date, created_at, updated_at)
VALUES (:id, :institution_id, :name, :email, :phone, :balance, :due_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, account); err != nil {
		return fmt.Errorf("create ledger account: %w", err)
	}
	return nil
}

// FindByID returns an institution's account.
func (r *LedgerRepository) FindByID(ctx context.Context, institutionID, id string) (*models.LedgerAccount, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_accounts WHERE id = $1 AND institution_id = $2`
	var account models.LedgerAccount
	if err := r.db.GetContext(ctx, &account, query, id, institutionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find ledger account: %w", err)
	}
	return &account, nil
}

// List returns an institution's accounts ordered by name.
func (r *LedgerRepository) List(ctx context.Context, institutionID string) ([]models.LedgerAccount, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_accounts WHERE institution_id = $1 ORDER BY name ASC`
	accounts := make([]models.LedgerAccount, 0)
	if err := r.db.SelectContext(ctx, &accounts, query, institutionID); err != nil {
		return nil, fmt.Errorf("list ledger accounts: %w", err)
	}
	return accounts, nil
}

// RecordPayment inserts the payment and decrements the balance in one transaction, returning the updated account.
func (r *LedgerRepository) RecordPayment(ctx context.Context, institutionID string, payment *models.LedgerPayment) (*models.LedgerAccount, error) {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin ledger payment: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	update := `UPDATE ledger_accounts SET balance = balance - $3, updated_at = $4 WHERE id = $1 AND institution_id = $2 RETURNING ` + ledgerColumns
	var account models.LedgerAccount
	if err := tx.GetContext(ctx, &account, update, payment.AccountID, institutionID, payment.Amount, payment.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update ledger balance: %w", err)
	}

	const insert = `INSERT INTO ledger_payments (id, account_id, amount, note, created_at) VALUES (:id, :account_id, :amount, :note, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, tx, insert, payment); err != nil {
		return nil, fmt.Errorf("insert ledger payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit ledger payment: %w", err)
	}
	commit = true
	return &account, nil
}

// ListPayments returns an account's payments, newest first.
func (r *LedgerRepository) ListPayments(ctx context.Context, accountID string) ([]models.LedgerPayment, error) {
	const query = `SELECT id, account_id, amount, note, created_at FROM ledger_payments WHERE account_id = $1 ORDER BY created_at DESC`
	payments := make([]models.LedgerPayment, 0)
	if err := r.db.SelectContext(ctx, &payments, query, accountID); err != nil {
		return nil, fmt.Errorf("list ledger payments: %w", err)
	}
	return payments, nil
}
