package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/billing"
	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type dashboardBillLister interface {
	List(ctx context.Context, filter models.BillFilter) ([]models.Bill, error)
}

type studentCounter interface {
	CountStudents(ctx context.Context, institutionID string) (int, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL    time.Duration
	RecentLimit int
}

// DashboardService composes the admin and student dashboard payloads.
type DashboardService struct {
	bills    dashboardBillLister
	students studentCounter
	cache    *CacheService
	logger   *zap.Logger
	now      func() time.Time
	cfg      DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Bills    dashboardBillLister
	Students studentCounter
	Cache    *CacheService
	Logger   *zap.Logger
	Config   DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 5
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		bills:    params.Bills,
		students: params.Students,
		cache:    params.Cache,
		logger:   logger,
		now:      time.Now,
		cfg:      cfg,
	}
}

// adminSnapshot is the cached input of the admin dashboard. Derived status is computed on every read.
type adminSnapshot struct {
	TotalStudents int           `json:"total_students"`
	Bills         []models.Bill `json:"bills"`
}

// Admin returns the institution summary and indicates cache utilisation.
func (s *DashboardService) Admin(ctx context.Context, institutionID string) (*dto.AdminDashboardResponse, bool, error) {
	if institutionID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "institution is required")
	}
	key := adminDashboardKey(institutionID)
	var snap adminSnapshot
	hit := s.cache.Get(ctx, key, &snap)
	if !hit {
		total, err := s.students.CountStudents(ctx, institutionID)
		if err != nil {
			return nil, false, appErrors.Backend(err, "failed to count students")
		}
		bills, err := s.bills.List(ctx, models.BillFilter{InstitutionID: institutionID})
		if err != nil {
			return nil, false, appErrors.Backend(err, "failed to load bills")
		}
		snap = adminSnapshot{TotalStudents: total, Bills: bills}
		s.cache.Set(ctx, key, snap, s.cfg.CacheTTL)
	}

	now := s.now()
	stats := billing.ComputeStats(snap.Bills, now)
	return &dto.AdminDashboardResponse{
		TotalStudents: snap.TotalStudents,
		PendingBills:  stats.PendingCount,
		OverdueBills:  stats.OverdueCount,
		PaidBills:     stats.PaidCount,
		PendingAmount: stats.PendingAmountSum,
		Revenue:       stats.PaidAmountSum,
		RecentBills:   s.recent(snap.Bills, now),
		GeneratedAt:   now.UTC(),
	}, hit, nil
}

// Student returns the bill stats of one student and indicates cache utilisation.
func (s *DashboardService) Student(ctx context.Context, studentID string) (*dto.StudentDashboardResponse, bool, error) {
	if studentID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "student is required")
	}
	key := studentDashboardKey(studentID)
	var bills []models.Bill
	hit := s.cache.Get(ctx, key, &bills)
	if !hit {
		var err error
		bills, err = s.bills.List(ctx, models.BillFilter{StudentID: studentID})
		if err != nil {
			return nil, false, appErrors.Backend(err, "failed to load bills")
		}
		s.cache.Set(ctx, key, bills, s.cfg.CacheTTL)
	}

	now := s.now()
	return &dto.StudentDashboardResponse{
		Stats:       billing.ComputeStats(bills, now),
		RecentBills: s.recent(bills, now),
		GeneratedAt: now.UTC(),
	}, hit, nil
}

// recent expects bills ordered by creation time, newest first.
func (s *DashboardService) recent(bills []models.Bill, now time.Time) []models.BillView {
	if len(bills) > s.cfg.RecentLimit {
		bills = bills[:s.cfg.RecentLimit]
	}
	return billing.Annotate(bills, now)
}
