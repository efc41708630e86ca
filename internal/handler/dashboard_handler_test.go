package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/billing"
	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type fakeDashboardSrv struct {
	hit           bool
	err           error
	lastInst      string
	lastStudentID string
}

func (f *fakeDashboardSrv) Admin(_ context.Context, institutionID string) (*dto.AdminDashboardResponse, bool, error) {
	f.lastInst = institutionID
	if f.err != nil {
		return nil, false, f.err
	}
	return &dto.AdminDashboardResponse{TotalStudents: 4, PendingBills: 2, Revenue: 125}, f.hit, nil
}

func (f *fakeDashboardSrv) Student(_ context.Context, studentID string) (*dto.StudentDashboardResponse, bool, error) {
	f.lastStudentID = studentID
	if f.err != nil {
		return nil, false, f.err
	}
	return &dto.StudentDashboardResponse{Stats: billing.Stats{PendingCount: 1, PendingAmountSum: 40}}, f.hit, nil
}

func dashboardRouter(srv dashboardService, claims *models.JWTClaims) http.Handler {
	h := NewDashboardHandler(srv)
	r := newTestRouter(claims)
	r.GET("/dashboard", h.Admin)
	r.GET("/me/dashboard", h.Student)
	return r
}

func TestDashboardHandlerAdminReportsCacheHit(t *testing.T) {
	srv := &fakeDashboardSrv{hit: true}
	rec := perform(dashboardRouter(srv, adminClaims()), http.MethodGet, "/dashboard", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Equal(t, "adm", srv.lastInst)

	var body dto.AdminDashboardResponse
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, 4, body.TotalStudents)
	assert.Equal(t, 125.0, body.Revenue)
}

func TestDashboardHandlerStudentUsesOwnID(t *testing.T) {
	srv := &fakeDashboardSrv{}
	rec := perform(dashboardRouter(srv, studentClaims()), http.MethodGet, "/me/dashboard", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, false, env.Meta["cache_hit"])
	assert.Equal(t, "s1", srv.lastStudentID)
}

func TestDashboardHandlerPropagatesBackendErrors(t *testing.T) {
	srv := &fakeDashboardSrv{err: appErrors.Clone(appErrors.ErrBackendTimeout, "dashboard timed out")}
	rec := perform(dashboardRouter(srv, adminClaims()), http.MethodGet, "/dashboard", nil)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestDashboardHandlerWithoutService(t *testing.T) {
	rec := perform(dashboardRouter(nil, adminClaims()), http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
