package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

// MaxInstallments caps a single schedule at ten years of monthly payments.
const MaxInstallments = 120

// ScheduleInput describes an installment schedule to expand.
type ScheduleInput struct {
	StudentID     string
	StudentName   string
	InstitutionID string
	Description   string
	TotalAmount   float64
	Installments  int
	StartDate     time.Time
	Frequency     models.Frequency
	Now           time.Time
	// NewID overrides id generation; defaults to uuid.NewString.
	NewID func() string
}

// MonthsPerInstallment returns the number of calendar months between installments.
func MonthsPerInstallment(f models.Frequency) (int, bool) {
	switch f {
	case models.FrequencyMonthly:
		return 1, true
	case models.FrequencyQuarterly:
		return 3, true
	case models.FrequencySemester:
		return 6, true
	}
	return 0, false
}

// InstallmentDueDate advances start by index installments using time.AddDate month arithmetic.
// Overflowing days normalise forward: Jan 31 plus one month is Mar 2 in a leap year and Mar 3 otherwise.
func InstallmentDueDate(start time.Time, f models.Frequency, index int) time.Time {
	step, _ := MonthsPerInstallment(f)
	return start.AddDate(0, index*step, 0)
}

// GenerateSchedule validates in and expands it into a schedule plus its installment bills.
// The installment amount is TotalAmount / Installments with no rounding correction.
func GenerateSchedule(in ScheduleInput) (*models.EMISchedule, []models.Bill, error) {
	if in.Installments < 1 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "installments must be at least 1")
	}
	if in.Installments > MaxInstallments {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("installments must be at most %d", MaxInstallments))
	}
	if in.TotalAmount <= 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "total amount must be greater than zero")
	}
	if in.StartDate.IsZero() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "start date is required")
	}
	if _, ok := MonthsPerInstallment(in.Frequency); !ok {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported frequency %q", in.Frequency))
	}
	newID := in.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	schedule := &models.EMISchedule{
		ID:                newID(),
		StudentID:         in.StudentID,
		StudentName:       in.StudentName,
		InstitutionID:     in.InstitutionID,
		Description:       in.Description,
		TotalAmount:       in.TotalAmount,
		Installments:      in.Installments,
		InstallmentAmount: in.TotalAmount / float64(in.Installments),
		StartDate:         in.StartDate,
		Frequency:         in.Frequency,
		Status:            models.ScheduleActive,
		CreatedAt:         now,
	}

	bills := make([]models.Bill, in.Installments)
	for i := 0; i < in.Installments; i++ {
		index := i + 1
		bills[i] = models.Bill{
			ID:               newID(),
			StudentID:        in.StudentID,
			StudentName:      in.StudentName,
			InstitutionID:    in.InstitutionID,
			Description:      fmt.Sprintf("%s - Installment %d/%d", in.Description, index, in.Installments),
			Amount:           schedule.InstallmentAmount,
			DueDate:          InstallmentDueDate(in.StartDate, in.Frequency, i),
			Status:           models.BillPending,
			CreatedAt:        now,
			ScheduleID:       &schedule.ID,
			InstallmentIndex: &index,
		}
	}
	return schedule, bills, nil
}
