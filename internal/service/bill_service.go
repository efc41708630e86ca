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
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/export"
	"github.com/noah-isme/sma-billing-api/pkg/middleware/requestid"
)

type billRepository interface {
	Create(ctx context.Context, bill *models.Bill) error
	FindByID(ctx context.Context, id string) (*models.Bill, error)
	List(ctx context.Context, filter models.BillFilter) ([]models.Bill, error)
	MarkPaid(ctx context.Context, institutionID, id string, paidAt time.Time) (*models.Bill, error)
}

type studentDirectory interface {
	FindStudent(ctx context.Context, institutionID, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type notificationDispatcher interface {
	Dispatch(n models.Notification) error
	PushEnabled() bool
	EmailEnabled() bool
}

var billExportHeaders = []string{"Bill ID", "Student", "Description", "Amount", "Due Date", "Status", "Paid At"}

// BillService manages one-off bills and their reminders.
type BillService struct {
	bills     billRepository
	students  studentDirectory
	notifier  notificationDispatcher
	cache     *CacheService
	metrics   *MetricsService
	csv       *export.CSVExporter
	validator *validator.Validate
	logger    *zap.Logger
	currency  string
	now       func() time.Time
}

// NewBillService constructs the bill service. notifier, cache and metrics may be nil.
func NewBillService(bills billRepository, students studentDirectory, notifier notificationDispatcher, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, currency string) *BillService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if currency == "" {
		currency = "$"
	}
	return &BillService{
		bills:     bills,
		students:  students,
		notifier:  notifier,
		cache:     cache,
		metrics:   metrics,
		csv:       export.NewCSVExporter(),
		validator: validate,
		logger:    logger,
		currency:  currency,
		now:       time.Now,
	}
}

// Create issues a pending bill to a student of the institution.
func (s *BillService) Create(ctx context.Context, institutionID string, req models.CreateBillRequest) (*models.BillView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid bill payload")
	}
	if req.DueDate.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "due date is required")
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "description is required")
	}

	student, err := s.students.FindStudent(ctx, institutionID, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Backend(err, "failed to load student")
	}

	bill := &models.Bill{
		StudentID:     student.ID,
		StudentName:   student.StudentName,
		InstitutionID: institutionID,
		Description:   description,
		Amount:        billing.RoundCents(*req.Amount),
		DueDate:       req.DueDate.UTC(),
		Status:        models.BillPending,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.bills.Create(ctx, bill); err != nil {
		return nil, appErrors.Backend(err, "failed to create bill")
	}

	s.cache.InvalidateBilling(ctx, institutionID, student.ID)
	s.audit(ctx, institutionID, models.AuditActionBillCreate, bill.ID, fmt.Sprintf(`{"amount":%.2f}`, bill.Amount))

	view := billing.Annotate([]models.Bill{*bill}, s.now())[0]
	return &view, nil
}

// ListForAdmin returns the institution's bills with their effective status, filtered by text and category.
func (s *BillService) ListForAdmin(ctx context.Context, institutionID string, filter models.BillFilter) ([]models.BillView, error) {
	filter.InstitutionID = institutionID
	filter.StudentID = ""
	return s.list(ctx, filter)
}

// ListForStudent returns the student's own bills.
func (s *BillService) ListForStudent(ctx context.Context, studentID string, filter models.BillFilter) ([]models.BillView, error) {
	filter.InstitutionID = ""
	filter.StudentID = studentID
	return s.list(ctx, filter)
}

// MarkPaid records that a pending bill was paid. Marking an already paid bill is a conflict.
func (s *BillService) MarkPaid(ctx context.Context, institutionID, id string) (*models.BillView, error) {
	now := s.now()
	bill, err := s.bills.MarkPaid(ctx, institutionID, id, now.UTC())
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Backend(err, "failed to mark bill paid")
		}
		existing, findErr := s.findOwned(ctx, institutionID, id)
		if findErr != nil {
			return nil, findErr
		}
		if existing.Status == models.BillPaid {
			return nil, appErrors.Clone(appErrors.ErrAlreadyPaid, "bill already paid")
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "bill not found")
	}

	s.metrics.RecordBillPaid()
	s.cache.InvalidateBilling(ctx, institutionID, bill.StudentID)
	s.audit(ctx, institutionID, models.AuditActionBillPay, bill.ID, `{"status":"paid"}`)

	view := billing.Annotate([]models.Bill{*bill}, now)[0]
	return &view, nil
}

// SendReminder queues a payment reminder for the bill's student. The call never waits for delivery;
// Queued is false when the dispatch queue could not accept the reminder.
func (s *BillService) SendReminder(ctx context.Context, institutionID, id string) (*models.ReminderResult, error) {
	bill, err := s.findOwned(ctx, institutionID, id)
	if err != nil {
		return nil, err
	}
	if bill.Status == models.BillPaid {
		return nil, appErrors.Clone(appErrors.ErrAlreadyPaid, "bill already paid")
	}

	student, err := s.students.FindStudent(ctx, institutionID, bill.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Backend(err, "failed to load student")
	}
	if !student.HasPushToken() {
		return nil, appErrors.Clone(appErrors.ErrNoPushToken, "student has not enabled push notifications")
	}

	result := &models.ReminderResult{BillID: bill.ID, Channels: []string{}}
	var pushToken *string
	studentEmail := ""
	if s.notifier != nil && s.notifier.PushEnabled() {
		pushToken = student.PushToken
		result.Channels = append(result.Channels, channelPush)
	}
	if s.notifier != nil && s.notifier.EmailEnabled() && student.Email != "" {
		studentEmail = student.Email
		result.Channels = append(result.Channels, channelEmail)
	}

	logr := s.logger.With(zap.String("bill_id", bill.ID), zap.String("request_id", requestid.FromContext(ctx)))
	if len(result.Channels) == 0 {
		logr.Warn("reminder dropped, no notification channel enabled")
		return result, nil
	}
	if err := s.notifier.Dispatch(billReminder(*bill, pushToken, studentEmail, s.currency)); err != nil {
		logr.Warn("reminder not queued", zap.Error(err))
		return result, nil
	}
	result.Queued = true

	s.audit(ctx, institutionID, models.AuditActionBillRemind, bill.ID, fmt.Sprintf(`{"channels":%q}`, strings.Join(result.Channels, ",")))
	return result, nil
}

// ExportCSV renders the institution's filtered bills as CSV.
func (s *BillService) ExportCSV(ctx context.Context, institutionID string, filter models.BillFilter) ([]byte, error) {
	views, err := s.ListForAdmin(ctx, institutionID, filter)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]string, 0, len(views))
	for _, v := range views {
		paidAt := ""
		if v.PaidAt != nil {
			paidAt = v.PaidAt.Format(time.RFC3339)
		}
		rows = append(rows, map[string]string{
			"Bill ID":     v.ID,
			"Student":     v.StudentName,
			"Description": v.Description,
			"Amount":      billing.FormatMoney(s.currency, v.Amount),
			"Due Date":    v.DueDate.Format("2006-01-02"),
			"Status":      v.StatusLabel,
			"Paid At":     paidAt,
		})
	}

	data, err := s.csv.Render(export.Dataset{Headers: billExportHeaders, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render bills csv")
	}
	return data, nil
}

func (s *BillService) list(ctx context.Context, filter models.BillFilter) ([]models.BillView, error) {
	if !billing.ValidBillCategory(filter.Category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid bill category")
	}
	limit := filter.Limit
	filter.Limit = 0

	bills, err := s.bills.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Backend(err, "failed to list bills")
	}

	now := s.now()
	views := billing.Annotate(billing.FilterBills(bills, filter.Search, filter.Category, now), now)
	if limit > 0 && len(views) > limit {
		views = views[:limit]
	}
	return views, nil
}

func (s *BillService) findOwned(ctx context.Context, institutionID, id string) (*models.Bill, error) {
	bill, err := s.bills.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "bill not found")
		}
		return nil, appErrors.Backend(err, "failed to load bill")
	}
	if bill.InstitutionID != institutionID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "bill not found")
	}
	return bill, nil
}

func (s *BillService) audit(ctx context.Context, actorID, action, resourceID, payload string) {
	if err := s.students.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "bill",
		ResourceID: &resourceID,
		NewValues:  []byte(payload),
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
