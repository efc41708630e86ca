package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

const billColumns = `id, student_id, student_name, institution_id, description, amount, due_date, status, created_at, paid_at, schedule_id, installment_index`

const insertBillQuery = `INSERT INTO bills (id, student_id, student_name, institution_id, description, amount, due_date, status, created_at, paid_at, schedule_id, installment_index)
VALUES (:id, :student_id, :student_name, :institution_id, :description, :amount, :due_date, :status, :created_at, :paid_at, :schedule_id, :installment_index)`

// BillRepository persists bills.
type BillRepository struct {
	db *sqlx.DB
}

// NewBillRepository constructs the repository.
func NewBillRepository(db *sqlx.DB) *BillRepository {
	return &BillRepository{db: db}
}

// Create inserts a bill.
func (r *BillRepository) Create(ctx context.Context, bill *models.Bill) error {
	return insertBill(ctx, r.db, bill)
}

// FindByID returns a bill by id.
func (r *BillRepository) FindByID(ctx context.Context, id string) (*models.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE id = $1`
	var bill models.Bill
	if err := r.db.GetContext(ctx, &bill, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find bill: %w", err)
	}
	return &bill, nil
}

// List returns bills matching the institution and/or student, newest first. Text and status
// filtering is applied by the caller on the derived status.
func (r *BillRepository) List(ctx context.Context, filter models.BillFilter) ([]models.Bill, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.InstitutionID != "" {
		args = append(args, filter.InstitutionID)
		conditions = append(conditions, fmt.Sprintf("institution_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if len(conditions) == 0 {
		return nil, fmt.Errorf("list bills: institution or student required")
	}

	query := `SELECT ` + billColumns + ` FROM bills WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	bills := make([]models.Bill, 0)
	if err := r.db.SelectContext(ctx, &bills, query, args...); err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return bills, nil
}

// MarkPaid transitions an unpaid bill of the institution to paid. It returns sql.ErrNoRows when
// no unpaid bill matched; concurrent calls therefore apply at most once.
func (r *BillRepository) MarkPaid(ctx context.Context, institutionID, id string, paidAt time.Time) (*models.Bill, error) {
	query := `UPDATE bills SET status = 'paid', paid_at = $3 WHERE id = $1 AND institution_id = $2 AND status <> 'paid' RETURNING ` + billColumns
	var bill models.Bill
	if err := r.db.GetContext(ctx, &bill, query, id, institutionID, paidAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("mark bill paid: %w", err)
	}
	return &bill, nil
}

// ListOverdue returns unpaid bills due before cutoff across all institutions with the owning student's channels.
func (r *BillRepository) ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]models.OverdueBill, error) {
	const query = `SELECT b.id, b.student_id, b.student_name, b.institution_id, b.description, b.amount, b.due_date, b.status, b.created_at, b.paid_at, b.schedule_id, b.installment_index,
u.email AS student_email, u.push_token
FROM bills b JOIN users u ON u.id = b.student_id
WHERE b.status <> 'paid' AND b.due_date < $1 AND u.status = 'ACTIVE'
ORDER BY b.due_date ASC LIMIT $2`
	if limit <= 0 {
		limit = 500
	}
	bills := make([]models.OverdueBill, 0)
	if err := r.db.SelectContext(ctx, &bills, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list overdue bills: %w", err)
	}
	return bills, nil
}

func insertBill(ctx context.Context, exec sqlx.ExtContext, bill *models.Bill) error {
	if bill.ID == "" {
		bill.ID = uuid.NewString()
	}
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = time.Now().UTC()
	}
	if bill.Status == "" {
		bill.Status = models.BillPending
	}
	if _, err := sqlx.NamedExecContext(ctx, exec, insertBillQuery, bill); err != nil {
		return fmt.Errorf("create bill: %w", err)
	}
	return nil
}
