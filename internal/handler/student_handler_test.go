package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type fakeStudentSrv struct {
	calls      []string
	lastFilter models.StudentFilter
	lastStatus models.AccountStatus
	lastCreate models.CreateStudentRequest
	err        error
}

func (f *fakeStudentSrv) Create(_ context.Context, _ string, req models.CreateStudentRequest) (*models.CreateStudentResponse, error) {
	f.calls = append(f.calls, "create")
	f.lastCreate = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.CreateStudentResponse{Student: &models.User{ID: "s9", Email: req.Email}, TemporaryPassword: "Temp1234"}, nil
}

func (f *fakeStudentSrv) List(_ context.Context, _ string, filter models.StudentFilter) ([]models.User, *models.Pagination, error) {
	f.calls = append(f.calls, "list")
	f.lastFilter = filter
	return []models.User{{ID: "s1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, f.err
}

func (f *fakeStudentSrv) Get(_ context.Context, _, id string) (*models.User, error) {
	f.calls = append(f.calls, "get")
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: id}, nil
}

func (f *fakeStudentSrv) SetStatus(_ context.Context, _, id string, req models.UpdateStatusRequest) (*models.User, error) {
	f.calls = append(f.calls, "set")
	f.lastStatus = req.Status
	return &models.User{ID: id, Status: req.Status}, f.err
}

func (f *fakeStudentSrv) ToggleStatus(_ context.Context, _, id string) (*models.User, error) {
	f.calls = append(f.calls, "toggle")
	return &models.User{ID: id, Status: models.AccountInactive}, f.err
}

func (f *fakeStudentSrv) Delete(_ context.Context, _, _ string) error {
	f.calls = append(f.calls, "delete")
	return f.err
}

func studentRouter(srv *fakeStudentSrv) http.Handler {
	h := NewStudentHandler(srv)
	r := newTestRouter(adminClaims())
	r.GET("/students", h.List)
	r.POST("/students", h.Create)
	r.GET("/students/:id", h.Get)
	r.PATCH("/students/:id/status", h.UpdateStatus)
	r.DELETE("/students/:id", h.Delete)
	return r
}

func TestStudentHandlerListWithPagination(t *testing.T) {
	srv := &fakeStudentSrv{}
	rec := perform(studentRouter(srv), http.MethodGet, "/students?q=asha&category=ACTIVE&page=2&page_size=5", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StudentFilter{Search: "asha", Category: models.StudentCategoryActive, Page: 2, PageSize: 5}, srv.lastFilter)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
}

func TestStudentHandlerCreate(t *testing.T) {
	srv := &fakeStudentSrv{}
	rec := perform(studentRouter(srv), http.MethodPost, "/students", models.CreateStudentRequest{Email: "new@example.com", StudentName: "New"})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "new@example.com", srv.lastCreate.Email)
	assert.Contains(t, rec.Body.String(), "Temp1234")
}

func TestStudentHandlerEmptyBodyToggles(t *testing.T) {
	srv := &fakeStudentSrv{}
	rec := perform(studentRouter(srv), http.MethodPatch, "/students/s1/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"toggle"}, srv.calls)
}

func TestStudentHandlerExplicitStatus(t *testing.T) {
	srv := &fakeStudentSrv{}
	rec := perform(studentRouter(srv), http.MethodPatch, "/students/s1/status", map[string]string{"status": "inactive"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"set"}, srv.calls)
	assert.Equal(t, models.AccountInactive, srv.lastStatus)
}

func TestStudentHandlerDelete(t *testing.T) {
	srv := &fakeStudentSrv{}
	rec := perform(studentRouter(srv), http.MethodDelete, "/students/s1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStudentHandlerGetNotFound(t *testing.T) {
	srv := &fakeStudentSrv{err: appErrors.Clone(appErrors.ErrNotFound, "student not found")}
	rec := perform(studentRouter(srv), http.MethodGet, "/students/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
