package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

const scheduleColumns = `id, student_id, student_name, institution_id, description, total_amount, installments, installment_amount, start_date, frequency, status, created_at`

// ErrPartialSchedule wraps any failure that aborted a schedule insert. Nothing was persisted.
var ErrPartialSchedule = errors.New("partial schedule creation failed")

// EMIRepository persists installment schedules together with their bills.
type EMIRepository struct {
	db *sqlx.DB
}

// NewEMIRepository constructs the repository.
func NewEMIRepository(db *sqlx.DB) *EMIRepository {
	return &EMIRepository{db: db}
}

// CreateWithBills inserts the schedule and all of its bills in one transaction.
// On any failure the transaction is rolled back and the error wraps ErrPartialSchedule.
func (r *EMIRepository) CreateWithBills(ctx context.Context, schedule *models.EMISchedule, bills []models.Bill) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrPartialSchedule, err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	const insertSchedule = `INSERT INTO emi_schedules (id, student_id, student_name, institution_id, description, total_amount, installments, installment_amount, start_date, frequency, status, created_at)
VALUES (:id, :student_id, :student_name, :institution_id, :description, :total_amount, :installments, :installment_amount, :start_date, :frequency, :status, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, tx, insertSchedule, schedule); err != nil {
		return fmt.Errorf("%w: schedule: %w", ErrPartialSchedule, err)
	}

	for i := range bills {
		bills[i].ScheduleID = &schedule.ID
		if err := insertBill(ctx, tx, &bills[i]); err != nil {
			return fmt.Errorf("%w: installment %d of %d: %w", ErrPartialSchedule, i+1, len(bills), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrPartialSchedule, err)
	}
	commit = true
	return nil
}

// FindByID returns a schedule by id.
func (r *EMIRepository) FindByID(ctx context.Context, id string) (*models.EMISchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM emi_schedules WHERE id = $1`
	var schedule models.EMISchedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find emi schedule: %w", err)
	}
	return &schedule, nil
}

// ListByInstitution returns the institution's schedules, newest first.
func (r *EMIRepository) ListByInstitution(ctx context.Context, institutionID string) ([]models.EMISchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM emi_schedules WHERE institution_id = $1 ORDER BY created_at DESC`
	schedules := make([]models.EMISchedule, 0)
	if err := r.db.SelectContext(ctx, &schedules, query, institutionID); err != nil {
		return nil, fmt.Errorf("list emi schedules: %w", err)
	}
	return schedules, nil
}

// ListBills returns the bills generated for a schedule in installment order.
func (r *EMIRepository) ListBills(ctx context.Context, scheduleID string) ([]models.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE schedule_id = $1 ORDER BY installment_index ASC`
	bills := make([]models.Bill, 0)
	if err := r.db.SelectContext(ctx, &bills, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list schedule bills: %w", err)
	}
	return bills, nil
}

// UpdateStatus changes the stored schedule status.
func (r *EMIRepository) UpdateStatus(ctx context.Context, id string, status models.ScheduleStatus) error {
	const query = `UPDATE emi_schedules SET status = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update emi schedule status: %w", err)
	}
	return requireAffected(res)
}
