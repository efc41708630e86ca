package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/billing"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/email"
	"github.com/noah-isme/sma-billing-api/pkg/jobs"
	"github.com/noah-isme/sma-billing-api/pkg/push"
)

const (
	notificationKindBillReminder = "bill_reminder"
	channelPush                  = "push"
	channelEmail                 = "email"
	reminderDateLayout           = "Jan 2, 2006"
)

type pushSender interface {
	Send(ctx context.Context, messages ...push.Message) ([]string, error)
}

type emailSender interface {
	Enabled() bool
	Send(msg email.Message) error
}

// NotificationConfig sizes the dispatch worker pool.
type NotificationConfig struct {
	Workers    int
	BufferSize int
	Timeout    time.Duration
}

// NotificationService delivers reminders through the push relay and optional email channel.
// Delivery is at most once: failures are logged and counted, never retried.
type NotificationService struct {
	queue   *jobs.Queue
	push    pushSender
	mail    emailSender
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService builds the service and its queue. push and mail may be nil to disable a channel.
func NewNotificationService(pushClient pushSender, mail emailSender, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{push: pushClient, mail: mail, metrics: metrics, logger: logger}
	svc.queue = jobs.NewQueue("notifications", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: jobs.NoRetry,
		JobTimeout: cfg.Timeout,
		Logger:     logger,
	})
	return svc
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop cancels in-flight sends and waits for the workers to exit. Reminders still buffered are dropped.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// PushEnabled reports whether a push relay is configured.
func (s *NotificationService) PushEnabled() bool {
	return s != nil && s.push != nil
}

// EmailEnabled reports whether the email channel is configured.
func (s *NotificationService) EmailEnabled() bool {
	return s != nil && s.mail != nil && s.mail.Enabled()
}

// Dispatch hands n to the worker pool without waiting for delivery.
func (s *NotificationService) Dispatch(n models.Notification) error {
	if n.Push == nil && n.Email == nil {
		return nil
	}
	if err := s.queue.TryEnqueue(jobs.Job{ID: uuid.NewString(), Type: n.Kind, Payload: n}); err != nil {
		if errors.Is(err, jobs.ErrQueueFull) {
			return appErrors.Clone(appErrors.ErrBackend, "notification queue is full")
		}
		return appErrors.Backend(err, "failed to queue notification")
	}
	return nil
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}

	var errs []error
	if n.Push != nil && s.push != nil {
		_, err := s.push.Send(ctx, push.Message{To: n.Push.To, Title: n.Push.Title, Body: n.Push.Body, Data: n.Push.Data, Sound: n.Push.Sound})
		s.metrics.RecordNotification(channelPush, err == nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("push: %w", err))
		}
	}
	if n.Email != nil && s.EmailEnabled() {
		err := s.mail.Send(email.Message{ToName: n.Email.ToName, ToEmail: n.Email.ToEmail, Subject: n.Email.Subject, Text: n.Email.Body})
		s.metrics.RecordNotification(channelEmail, err == nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}
	return errors.Join(errs...)
}

// billReminder builds the reminder for bill addressed to the given contact channels.
func billReminder(bill models.Bill, pushToken *string, studentEmail, currency string) models.Notification {
	amount := billing.FormatMoney(currency, bill.Amount)
	body := fmt.Sprintf("Your payment of %s for %s is due on %s", amount, bill.Description, bill.DueDate.Format(reminderDateLayout))

	n := models.Notification{Kind: notificationKindBillReminder}
	if pushToken != nil && *pushToken != "" {
		n.Push = &models.PushMessage{
			To:    *pushToken,
			Title: "Payment Reminder",
			Body:  body,
			Data:  map[string]string{"billId": bill.ID},
			Sound: "default",
		}
	}
	if studentEmail != "" {
		n.Email = &models.EmailMessage{
			ToEmail: studentEmail,
			ToName:  bill.StudentName,
			Subject: "Payment Reminder",
			Body:    body,
		}
	}
	return n
}
