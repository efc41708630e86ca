package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

type fakeUserStore struct {
	users     map[string]*models.User
	audits    []*models.AuditLog
	revoked   []string
	deleted   []string
	listErr   error
	pushCalls int
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	store := &fakeUserStore{users: make(map[string]*models.User)}
	for _, u := range users {
		store.users[u.ID] = u
	}
	return store
}

func (f *fakeUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserStore) FindStudent(ctx context.Context, institutionID, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok || u.Role != models.RoleStudent || u.InstitutionID == nil || *u.InstitutionID != institutionID {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserStore) ListStudents(ctx context.Context, institutionID string) ([]models.User, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.User, 0)
	for _, u := range f.users {
		if u.Role == models.RoleStudent && u.InstitutionID != nil && *u.InstitutionID == institutionID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentName < out[j].StudentName })
	return out, nil
}

func (f *fakeUserStore) CountStudents(ctx context.Context, institutionID string) (int, error) {
	students, err := f.ListStudents(ctx, institutionID)
	return len(students), err
}

func (f *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "student-new"
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserStore) UpdateStatus(ctx context.Context, id string, status models.AccountStatus, updatedAt time.Time) error {
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Status = status
	return nil
}

func (f *fakeUserStore) Delete(ctx context.Context, id string) error {
	if _, ok := f.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.users, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeUserStore) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	f.revoked = append(f.revoked, userID)
	return nil
}

func (f *fakeUserStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.audits = append(f.audits, log)
	return nil
}

type fakeBillStore struct {
	mu      sync.Mutex
	bills   map[string]*models.Bill
	order   []string
	listErr error
}

func newFakeBillStore(bills ...models.Bill) *fakeBillStore {
	store := &fakeBillStore{bills: make(map[string]*models.Bill)}
	for i := range bills {
		b := bills[i]
		store.bills[b.ID] = &b
		store.order = append(store.order, b.ID)
	}
	return store
}

func (f *fakeBillStore) Create(ctx context.Context, bill *models.Bill) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if bill.ID == "" {
		bill.ID = "bill-new"
	}
	copied := *bill
	f.bills[bill.ID] = &copied
	f.order = append([]string{bill.ID}, f.order...)
	return nil
}

func (f *fakeBillStore) FindByID(ctx context.Context, id string) (*models.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bills[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *b
	return &copied, nil
}

// List returns bills in insertion order, which tests treat as newest first.
func (f *fakeBillStore) List(ctx context.Context, filter models.BillFilter) ([]models.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Bill, 0)
	for _, id := range f.order {
		b := f.bills[id]
		if filter.InstitutionID != "" && b.InstitutionID != filter.InstitutionID {
			continue
		}
		if filter.StudentID != "" && b.StudentID != filter.StudentID {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (f *fakeBillStore) MarkPaid(ctx context.Context, institutionID, id string, paidAt time.Time) (*models.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bills[id]
	if !ok || b.InstitutionID != institutionID || b.Status == models.BillPaid {
		return nil, sql.ErrNoRows
	}
	b.Status = models.BillPaid
	b.PaidAt = &paidAt
	copied := *b
	return &copied, nil
}

func (f *fakeBillStore) ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]models.OverdueBill, error) {
	return nil, nil
}

type fakeEMIStore struct {
	schedules map[string]*models.EMISchedule
	bills     map[string][]models.Bill
	createErr error
}

func newFakeEMIStore() *fakeEMIStore {
	return &fakeEMIStore{schedules: make(map[string]*models.EMISchedule), bills: make(map[string][]models.Bill)}
}

func (f *fakeEMIStore) CreateWithBills(ctx context.Context, schedule *models.EMISchedule, bills []models.Bill) error {
	if f.createErr != nil {
		return f.createErr
	}
	copied := *schedule
	f.schedules[schedule.ID] = &copied
	f.bills[schedule.ID] = append([]models.Bill(nil), bills...)
	return nil
}

func (f *fakeEMIStore) FindByID(ctx context.Context, id string) (*models.EMISchedule, error) {
	s, ok := f.schedules[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *s
	return &copied, nil
}

func (f *fakeEMIStore) ListByInstitution(ctx context.Context, institutionID string) ([]models.EMISchedule, error) {
	out := make([]models.EMISchedule, 0)
	for _, s := range f.schedules {
		if s.InstitutionID == institutionID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeEMIStore) ListBills(ctx context.Context, scheduleID string) ([]models.Bill, error) {
	return f.bills[scheduleID], nil
}

func (f *fakeEMIStore) UpdateStatus(ctx context.Context, id string, status models.ScheduleStatus) error {
	s, ok := f.schedules[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.Status = status
	return nil
}

type fakeNotifier struct {
	mu           sync.Mutex
	sent         []models.Notification
	err          error
	pushDisabled bool
	emailEnabled bool
}

func (f *fakeNotifier) Dispatch(n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) PushEnabled() bool {
	return !f.pushDisabled
}

func (f *fakeNotifier) EmailEnabled() bool {
	return f.emailEnabled
}

func strPtr(s string) *string {
	return &s
}

func fixedNow() time.Time {
	return time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
}

func studentOf(id, institutionID, name string) *models.User {
	return &models.User{ID: id, Email: id + "@school.edu", Role: models.RoleStudent, InstitutionID: strPtr(institutionID), StudentName: name, Status: models.AccountActive}
}
