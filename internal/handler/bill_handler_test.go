package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type fakeBillSrv struct {
	views       []models.BillView
	err         error
	lastInst    string
	lastStudent string
	lastFilter  models.BillFilter
	lastCreate  models.CreateBillRequest
	reminder    *models.ReminderResult
	csv         []byte
	paidID      string
}

func (f *fakeBillSrv) Create(_ context.Context, institutionID string, req models.CreateBillRequest) (*models.BillView, error) {
	f.lastInst = institutionID
	f.lastCreate = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.BillView{Bill: models.Bill{ID: "b-new", Description: req.Description}, EffectiveStatus: "pending"}, nil
}

func (f *fakeBillSrv) ListForAdmin(_ context.Context, institutionID string, filter models.BillFilter) ([]models.BillView, error) {
	f.lastInst = institutionID
	f.lastFilter = filter
	return f.views, f.err
}

func (f *fakeBillSrv) ListForStudent(_ context.Context, studentID string, filter models.BillFilter) ([]models.BillView, error) {
	f.lastStudent = studentID
	f.lastFilter = filter
	return f.views, f.err
}

func (f *fakeBillSrv) MarkPaid(_ context.Context, institutionID, id string) (*models.BillView, error) {
	f.paidID = id
	if f.err != nil {
		return nil, f.err
	}
	return &models.BillView{Bill: models.Bill{ID: id, Status: models.BillPaid}, EffectiveStatus: "paid"}, nil
}

func (f *fakeBillSrv) SendReminder(_ context.Context, institutionID, id string) (*models.ReminderResult, error) {
	return f.reminder, f.err
}

func (f *fakeBillSrv) ExportCSV(_ context.Context, institutionID string, filter models.BillFilter) ([]byte, error) {
	f.lastFilter = filter
	return f.csv, f.err
}

func billRouter(srv *fakeBillSrv, claims *models.JWTClaims) http.Handler {
	h := NewBillHandler(srv)
	h.now = func() time.Time { return time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC) }
	r := newTestRouter(claims)
	r.GET("/bills", h.List)
	r.POST("/bills", h.Create)
	r.GET("/bills/export", h.Export)
	r.POST("/bills/:id/pay", h.MarkPaid)
	r.POST("/bills/:id/remind", h.Remind)
	r.GET("/me/bills", h.MyBills)
	return r
}

func TestBillHandlerListPassesFilter(t *testing.T) {
	srv := &fakeBillSrv{views: []models.BillView{{Bill: models.Bill{ID: "b1"}, EffectiveStatus: "overdue", StatusLabel: "Overdue"}}}
	rec := perform(billRouter(srv, adminClaims()), http.MethodGet, "/bills?q=+tuition+&category=OVERDUE&limit=5", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "adm", srv.lastInst)
	assert.Equal(t, models.BillFilter{Search: "tuition", Category: "overdue", Limit: 5}, srv.lastFilter)

	var views []models.BillView
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "Overdue", views[0].StatusLabel)
}

func TestBillHandlerCreate(t *testing.T) {
	srv := &fakeBillSrv{}
	amount := 250.0
	rec := perform(billRouter(srv, adminClaims()), http.MethodPost, "/bills", models.CreateBillRequest{StudentID: "s1", Description: "Tuition", Amount: &amount, DueDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "s1", srv.lastCreate.StudentID)
	require.NotNil(t, srv.lastCreate.Amount)
	assert.Equal(t, 250.0, *srv.lastCreate.Amount)
}

func TestBillHandlerCreateRejectsMalformedBody(t *testing.T) {
	r := billRouter(&fakeBillSrv{}, adminClaims())
	rec := perform(r, http.MethodPost, "/bills", "not-an-object")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, rec).Error.Code)
}

func TestBillHandlerMarkPaidConflict(t *testing.T) {
	srv := &fakeBillSrv{err: appErrors.Clone(appErrors.ErrAlreadyPaid, "bill already paid")}
	rec := perform(billRouter(srv, adminClaims()), http.MethodPost, "/bills/b9/pay", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "b9", srv.paidID)
	assert.Equal(t, "ALREADY_PAID", decodeEnvelope(t, rec).Error.Code)
}

func TestBillHandlerRemindAccepted(t *testing.T) {
	srv := &fakeBillSrv{reminder: &models.ReminderResult{BillID: "b1", Channels: []string{"push"}, Queued: true}}
	rec := perform(billRouter(srv, adminClaims()), http.MethodPost, "/bills/b1/remind", nil)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var res models.ReminderResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &res))
	assert.True(t, res.Queued)
}

func TestBillHandlerRemindWithoutPushToken(t *testing.T) {
	srv := &fakeBillSrv{err: appErrors.Clone(appErrors.ErrNoPushToken, "student has not enabled push notifications")}
	rec := perform(billRouter(srv, adminClaims()), http.MethodPost, "/bills/b1/remind", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBillHandlerExportCSV(t *testing.T) {
	srv := &fakeBillSrv{csv: []byte("Bill ID,Student\nb1,Asha\n")}
	rec := perform(billRouter(srv, adminClaims()), http.MethodGet, "/bills/export?category=paid&limit=3", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="bills-20240315.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Bill ID,Student\nb1,Asha\n", rec.Body.String())
	assert.Equal(t, 0, srv.lastFilter.Limit)
	assert.Equal(t, "paid", srv.lastFilter.Category)
}

func TestBillHandlerMyBillsUsesSessionStudent(t *testing.T) {
	srv := &fakeBillSrv{}
	rec := perform(billRouter(srv, studentClaims()), http.MethodGet, "/me/bills", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", srv.lastStudent)
}

func TestBillHandlerRequiresSession(t *testing.T) {
	rec := perform(billRouter(&fakeBillSrv{}, nil), http.MethodGet, "/bills", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
