package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/billing"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/internal/repository"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type emiRepository interface {
	CreateWithBills(ctx context.Context, schedule *models.EMISchedule, bills []models.Bill) error
	FindByID(ctx context.Context, id string) (*models.EMISchedule, error)
	ListByInstitution(ctx context.Context, institutionID string) ([]models.EMISchedule, error)
	ListBills(ctx context.Context, scheduleID string) ([]models.Bill, error)
	UpdateStatus(ctx context.Context, id string, status models.ScheduleStatus) error
}

// EMIService creates installment schedules and reports their progress.
type EMIService struct {
	repo      emiRepository
	students  studentDirectory
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEMIService constructs the installment schedule service.
func NewEMIService(repo emiRepository, students studentDirectory, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EMIService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EMIService{repo: repo, students: students, cache: cache, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// Create expands the request into a schedule and its installment bills and stores them atomically.
func (s *EMIService) Create(ctx context.Context, institutionID string, req models.CreateEMIRequest) (*models.EMIScheduleDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid schedule payload")
	}

	student, err := s.students.FindStudent(ctx, institutionID, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Backend(err, "failed to load student")
	}

	now := s.now()
	schedule, bills, err := billing.GenerateSchedule(billing.ScheduleInput{
		StudentID:     student.ID,
		StudentName:   student.StudentName,
		InstitutionID: institutionID,
		Description:   strings.TrimSpace(req.Description),
		TotalAmount:   req.TotalAmount,
		Installments:  req.Installments,
		StartDate:     req.StartDate.UTC(),
		Frequency:     req.Frequency,
		Now:           now.UTC(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateWithBills(ctx, schedule, bills); err != nil {
		s.metrics.RecordSchedule(false)
		s.logger.Error("installment schedule creation failed",
			zap.String("schedule_id", schedule.ID),
			zap.String("student_id", student.ID),
			zap.Int("installments", schedule.Installments),
			zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, appErrors.Backend(err, "schedule creation timed out")
		}
		if errors.Is(err, repository.ErrPartialSchedule) {
			return nil, appErrors.Wrap(err, appErrors.ErrPartialSchedule.Code, appErrors.ErrPartialSchedule.Status, "installment schedule was not saved")
		}
		return nil, appErrors.Backend(err, "failed to create schedule")
	}
	s.metrics.RecordSchedule(true)

	if residual := billing.ScheduleResidual(schedule.TotalAmount, schedule.Installments); !residual.IsZero() {
		s.logger.Info("installment amounts do not divide total evenly",
			zap.String("schedule_id", schedule.ID),
			zap.String("residual", residual.StringFixed(2)))
	}

	s.cache.InvalidateBilling(ctx, institutionID, student.ID)
	if err := s.students.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &institutionID,
		Action:     models.AuditActionScheduleCreate,
		Resource:   "emi_schedule",
		ResourceID: &schedule.ID,
		NewValues:  []byte(fmt.Sprintf(`{"installments":%d,"total":%.2f}`, schedule.Installments, schedule.TotalAmount)),
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.Error(err))
	}

	return s.detail(schedule, bills, now), nil
}

// List returns the institution's schedules, most recent first.
func (s *EMIService) List(ctx context.Context, institutionID string) ([]models.EMISchedule, error) {
	schedules, err := s.repo.ListByInstitution(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Backend(err, "failed to list schedules")
	}
	return schedules, nil
}

// Get returns a schedule with its installment bills and derived progress.
func (s *EMIService) Get(ctx context.Context, institutionID, id string) (*models.EMIScheduleDetail, error) {
	schedule, err := s.findOwned(ctx, institutionID, id)
	if err != nil {
		return nil, err
	}
	bills, err := s.repo.ListBills(ctx, schedule.ID)
	if err != nil {
		return nil, appErrors.Backend(err, "failed to load schedule bills")
	}
	return s.detail(schedule, bills, s.now()), nil
}

// UpdateStatus changes the stored status of a schedule. Child bills are untouched.
func (s *EMIService) UpdateStatus(ctx context.Context, institutionID, id string, req models.UpdateScheduleStatusRequest) (*models.EMISchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid schedule status")
	}
	schedule, err := s.findOwned(ctx, institutionID, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, schedule.ID, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Backend(err, "failed to update schedule status")
	}
	schedule.Status = req.Status
	return schedule, nil
}

func (s *EMIService) findOwned(ctx context.Context, institutionID, id string) (*models.EMISchedule, error) {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Backend(err, "failed to load schedule")
	}
	if schedule.InstitutionID != institutionID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
	}
	return schedule, nil
}

func (s *EMIService) detail(schedule *models.EMISchedule, bills []models.Bill, now time.Time) *models.EMIScheduleDetail {
	return &models.EMIScheduleDetail{
		EMISchedule: *schedule,
		Bills:       billing.Annotate(bills, now),
		Progress:    billing.ScheduleProgress(bills),
	}
}
