package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

func twelveInstallments() (*models.EMISchedule, []models.Bill) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	schedule := &models.EMISchedule{ID: "emi-1", StudentID: "s1", InstitutionID: "inst-1", Description: "Tuition", TotalAmount: 1200, Installments: 12, InstallmentAmount: 100, StartDate: start, Frequency: models.FrequencyMonthly, Status: models.ScheduleActive}
	bills := make([]models.Bill, 12)
	for i := range bills {
		idx := i + 1
		bills[i] = models.Bill{ID: fmt.Sprintf("bill-%d", idx), StudentID: "s1", InstitutionID: "inst-1", Description: fmt.Sprintf("Tuition - Installment %d/12", idx), Amount: 100, DueDate: start.AddDate(0, i, 0), InstallmentIndex: &idx}
	}
	return schedule, bills
}

func TestCreateWithBillsCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEMIRepository(db)
	schedule, bills := twelveInstallments()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO emi_schedules").WillReturnResult(sqlmock.NewResult(1, 1))
	for range bills {
		mock.ExpectExec("INSERT INTO bills").WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.CreateWithBills(context.Background(), schedule, bills))
	for _, b := range bills {
		require.NotNil(t, b.ScheduleID)
		assert.Equal(t, "emi-1", *b.ScheduleID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithBillsRollsBackAfterPartialInsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEMIRepository(db)
	schedule, bills := twelveInstallments()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO emi_schedules").WillReturnResult(sqlmock.NewResult(1, 1))
	for i := 0; i < 5; i++ {
		mock.ExpectExec("INSERT INTO bills").WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectExec("INSERT INTO bills").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.CreateWithBills(context.Background(), schedule, bills)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartialSchedule)
	assert.Contains(t, err.Error(), "installment 6 of 12")

	mock.ExpectQuery(regexp.QuoteMeta("FROM emi_schedules WHERE id = $1")).WithArgs("emi-1").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM bills WHERE schedule_id = $1")).WithArgs("emi-1").WillReturnRows(sqlmock.NewRows(billColumnNames))

	_, err = repo.FindByID(context.Background(), "emi-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	left, err := repo.ListBills(context.Background(), "emi-1")
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithBillsScheduleInsertFails(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEMIRepository(db)
	schedule, bills := twelveInstallments()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO emi_schedules").WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	err := repo.CreateWithBills(context.Background(), schedule, bills)
	assert.ErrorIs(t, err, ErrPartialSchedule)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithBillsCommitFails(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEMIRepository(db)
	schedule, bills := twelveInstallments()
	bills = bills[:1]

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO emi_schedules").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO bills").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err := repo.CreateWithBills(context.Background(), schedule, bills)
	assert.ErrorIs(t, err, ErrPartialSchedule)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithBillsKeepsDeadlineCause(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEMIRepository(db)
	schedule, bills := twelveInstallments()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO emi_schedules").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO bills").WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err := repo.CreateWithBills(context.Background(), schedule, bills)
	assert.ErrorIs(t, err, ErrPartialSchedule)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}
