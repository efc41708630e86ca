package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

type overdueBillLister interface {
	ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]models.OverdueBill, error)
}

type invoiceCleaner interface {
	Cleanup(maxAge time.Duration) int
}

// ReminderSchedulerConfig controls the cron expressions. An empty ReminderCron disables reminders.
type ReminderSchedulerConfig struct {
	ReminderCron    string
	CleanupInterval time.Duration
	InvoiceMaxAge   time.Duration
	BatchSize       int
	RunTimeout      time.Duration
	Currency        string
}

// ReminderScheduler periodically queues reminders for overdue bills across every institution
// and prunes rendered invoices.
type ReminderScheduler struct {
	bills    overdueBillLister
	notifier notificationDispatcher
	invoices invoiceCleaner
	cron     *cron.Cron
	logger   *zap.Logger
	cfg      ReminderSchedulerConfig
	now      func() time.Time
}

// NewReminderScheduler validates the cron expressions and registers the jobs. invoices may be nil.
func NewReminderScheduler(bills overdueBillLister, notifier notificationDispatcher, invoices invoiceCleaner, logger *zap.Logger, cfg ReminderSchedulerConfig) (*ReminderScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Minute
	}
	if cfg.InvoiceMaxAge <= 0 {
		cfg.InvoiceMaxAge = 24 * time.Hour
	}
	if cfg.Currency == "" {
		cfg.Currency = "$"
	}

	s := &ReminderScheduler{
		bills:    bills,
		notifier: notifier,
		invoices: invoices,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}

	if cfg.ReminderCron != "" {
		if _, err := s.cron.AddFunc(cfg.ReminderCron, func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout)
			defer cancel()
			s.RunOnce(ctx)
		}); err != nil {
			return nil, fmt.Errorf("invalid reminder schedule %q: %w", cfg.ReminderCron, err)
		}
	}
	if invoices != nil && cfg.CleanupInterval > 0 {
		every := fmt.Sprintf("@every %s", cfg.CleanupInterval)
		if _, err := s.cron.AddFunc(every, func() { invoices.Cleanup(cfg.InvoiceMaxAge) }); err != nil {
			return nil, fmt.Errorf("invalid cleanup interval %s: %w", cfg.CleanupInterval, err)
		}
	}
	return s, nil
}

// Start runs the cron loop in the background.
func (s *ReminderScheduler) Start() {
	if len(s.cron.Entries()) == 0 {
		s.logger.Info("reminder scheduler disabled")
		return
	}
	s.cron.Start()
	s.logger.Info("reminder scheduler started", zap.String("schedule", s.cfg.ReminderCron))
}

// Stop halts scheduling and waits for a running job to return.
func (s *ReminderScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce queues one reminder per overdue bill whose student can be reached and returns the count queued.
func (s *ReminderScheduler) RunOnce(ctx context.Context) int {
	overdue, err := s.bills.ListOverdue(ctx, s.now().UTC(), s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("failed to list overdue bills", zap.Error(err))
		return 0
	}

	pushEnabled := s.notifier.PushEnabled()
	emailEnabled := s.notifier.EmailEnabled()
	queued := 0
	for _, b := range overdue {
		var pushToken *string
		if pushEnabled {
			pushToken = b.PushToken
		}
		studentEmail := ""
		if emailEnabled {
			studentEmail = b.StudentEmail
		}
		n := billReminder(b.Bill, pushToken, studentEmail, s.cfg.Currency)
		if n.Push == nil && n.Email == nil {
			continue
		}
		if err := s.notifier.Dispatch(n); err != nil {
			s.logger.Warn("overdue reminder not queued", zap.String("bill_id", b.ID), zap.Error(err))
			continue
		}
		queued++
	}
	s.logger.Info("overdue reminders queued", zap.Int("overdue", len(overdue)), zap.Int("queued", queued))
	return queued
}
