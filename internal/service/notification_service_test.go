package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/email"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/jobs"
	"github.com/noah-isme/sma-billing-api/pkg/push"
)

type fakePushSender struct {
	mu      sync.Mutex
	sent    []push.Message
	err     error
	release chan struct{}
}

func (f *fakePushSender) Send(ctx context.Context, messages ...push.Message) ([]string, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, messages...)
	return []string{"ticket-1"}, nil
}

func (f *fakePushSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeEmailSender struct {
	mu      sync.Mutex
	enabled bool
	sent    []email.Message
}

func (f *fakeEmailSender) Enabled() bool { return f.enabled }

func (f *fakeEmailSender) Send(msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeEmailSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func reminderFor(billID string) models.Notification {
	bill := models.Bill{ID: billID, StudentName: "Asha", Description: "Tuition", Amount: 100, DueDate: fixedNow()}
	return billReminder(bill, strPtr("ExponentPushToken[asha]"), "asha@school.edu", "$")
}

func TestNotificationServiceDeliversBothChannels(t *testing.T) {
	pushFake := &fakePushSender{}
	mailFake := &fakeEmailSender{enabled: true}
	metrics := NewMetricsService()
	svc := NewNotificationService(pushFake, mailFake, metrics, zap.NewNop(), NotificationConfig{Workers: 2, Timeout: time.Second})
	svc.Start(context.Background())
	defer svc.Stop()

	require.NoError(t, svc.Dispatch(reminderFor("b1")))

	assert.Eventually(t, func() bool { return pushFake.count() == 1 && mailFake.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return metrics.Snapshot().NotificationsSent == 2 }, time.Second, 5*time.Millisecond)

	pushFake.mu.Lock()
	msg := pushFake.sent[0]
	pushFake.mu.Unlock()
	assert.Equal(t, "Your payment of $100.00 for Tuition is due on Mar 15, 2024", msg.Body)
	assert.Equal(t, "default", msg.Sound)

	mailFake.mu.Lock()
	mail := mailFake.sent[0]
	mailFake.mu.Unlock()
	assert.Equal(t, "asha@school.edu", mail.ToEmail)
	assert.Equal(t, msg.Body, mail.Text)
}

func TestNotificationServiceSkipsDisabledEmail(t *testing.T) {
	pushFake := &fakePushSender{}
	mailFake := &fakeEmailSender{}
	svc := NewNotificationService(pushFake, mailFake, nil, zap.NewNop(), NotificationConfig{})
	svc.Start(context.Background())
	defer svc.Stop()

	assert.True(t, svc.PushEnabled())
	assert.False(t, svc.EmailEnabled())
	require.NoError(t, svc.Dispatch(reminderFor("b1")))

	assert.Eventually(t, func() bool { return pushFake.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, mailFake.count())
}

func TestNotificationServiceCountsFailuresWithoutRetry(t *testing.T) {
	pushFake := &fakePushSender{err: push.ErrDeviceNotRegistered}
	metrics := NewMetricsService()
	svc := NewNotificationService(pushFake, nil, metrics, zap.NewNop(), NotificationConfig{})
	svc.Start(context.Background())
	defer svc.Stop()

	require.NoError(t, svc.Dispatch(reminderFor("b1")))

	assert.Eventually(t, func() bool { return metrics.Snapshot().NotificationsFailed == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, uint64(1), metrics.Snapshot().NotificationsFailed)
}

func TestNotificationServiceRejectsWhenQueueFull(t *testing.T) {
	pushFake := &fakePushSender{release: make(chan struct{})}
	svc := NewNotificationService(pushFake, nil, nil, zap.NewNop(), NotificationConfig{Workers: 1, BufferSize: 1, Timeout: time.Second})
	svc.Start(context.Background())
	defer func() {
		close(pushFake.release)
		svc.Stop()
	}()

	var err error
	for i := 0; i < 5 && err == nil; i++ {
		err = svc.Dispatch(reminderFor("b1"))
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrBackend)
}

func TestNotificationServiceRequiresStart(t *testing.T) {
	svc := NewNotificationService(&fakePushSender{}, nil, nil, zap.NewNop(), NotificationConfig{})

	err := svc.Dispatch(reminderFor("b1"))
	assert.ErrorIs(t, err, appErrors.ErrBackend)
	assert.NoError(t, svc.Dispatch(models.Notification{}))
}

func TestNotificationServiceRejectsAfterStop(t *testing.T) {
	pushFake := &fakePushSender{}
	svc := NewNotificationService(pushFake, nil, nil, zap.NewNop(), NotificationConfig{Workers: 1, BufferSize: 4})
	svc.Start(context.Background())
	svc.Stop()

	for i := 0; i < 10; i++ {
		err := svc.Dispatch(reminderFor("b1"))
		require.Error(t, err)
		assert.ErrorIs(t, err, jobs.ErrQueueStopped)
	}
}

func TestNotificationServiceHandleJoinsChannelErrors(t *testing.T) {
	boom := errors.New("relay down")
	svc := NewNotificationService(&fakePushSender{err: boom}, &fakeEmailSender{enabled: true}, nil, zap.NewNop(), NotificationConfig{})

	err := svc.handle(context.Background(), jobs.Job{ID: "job-1", Payload: reminderFor("b1")})
	assert.ErrorIs(t, err, boom)
}
