package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

type billService interface {
	Create(ctx context.Context, institutionID string, req models.CreateBillRequest) (*models.BillView, error)
	ListForAdmin(ctx context.Context, institutionID string, filter models.BillFilter) ([]models.BillView, error)
	ListForStudent(ctx context.Context, studentID string, filter models.BillFilter) ([]models.BillView, error)
	MarkPaid(ctx context.Context, institutionID, id string) (*models.BillView, error)
	SendReminder(ctx context.Context, institutionID, id string) (*models.ReminderResult, error)
	ExportCSV(ctx context.Context, institutionID string, filter models.BillFilter) ([]byte, error)
}

// BillHandler exposes bill endpoints for admins and students.
type BillHandler struct {
	bills billService
	now   func() time.Time
}

// NewBillHandler constructs BillHandler.
func NewBillHandler(bills billService) *BillHandler {
	return &BillHandler{bills: bills, now: time.Now}
}

func billFilterFromQuery(c *gin.Context) models.BillFilter {
	return models.BillFilter{
		Search:   strings.TrimSpace(c.Query("q")),
		Category: strings.ToLower(strings.TrimSpace(c.Query("category"))),
		Limit:    queryInt(c, "limit"),
	}
}

// List godoc
// @Summary List institution bills
// @Tags Bills
// @Produce json
// @Security BearerAuth
// @Param q query string false "Search description or student name"
// @Param category query string false "all, pending, paid or overdue"
// @Param limit query int false "Maximum results"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /bills [get]
func (h *BillHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	bills, err := h.bills.ListForAdmin(c.Request.Context(), claims.InstitutionID, billFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bills, nil)
}

// Create godoc
// @Summary Issue a bill
// @Tags Bills
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateBillRequest true "Bill payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bills [post]
func (h *BillHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req models.CreateBillRequest
	if !bindJSON(c, &req, "invalid bill payload") {
		return
	}
	bill, err := h.bills.Create(c.Request.Context(), claims.InstitutionID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, bill)
}

// MarkPaid godoc
// @Summary Mark bill paid
// @Tags Bills
// @Produce json
// @Security BearerAuth
// @Param id path string true "Bill ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bills/{id}/pay [post]
func (h *BillHandler) MarkPaid(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	bill, err := h.bills.MarkPaid(c.Request.Context(), claims.InstitutionID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bill, nil)
}

// Remind godoc
// @Summary Send payment reminder
// @Description Queues a push reminder, plus email when configured. Delivery happens in the background.
// @Tags Bills
// @Produce json
// @Security BearerAuth
// @Param id path string true "Bill ID"
// @Success 202 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /bills/{id}/remind [post]
func (h *BillHandler) Remind(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	res, err := h.bills.SendReminder(c.Request.Context(), claims.InstitutionID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, res, nil)
}

// Export godoc
// @Summary Export bills as CSV
// @Tags Bills
// @Produce text/csv
// @Security BearerAuth
// @Param q query string false "Search description or student name"
// @Param category query string false "all, pending, paid or overdue"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /bills/export [get]
func (h *BillHandler) Export(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	filter := billFilterFromQuery(c)
	filter.Limit = 0
	data, err := h.bills.ExportCSV(c.Request.Context(), claims.InstitutionID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("bills-%s.csv", h.now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// MyBills godoc
// @Summary List my bills
// @Tags Bills
// @Produce json
// @Security BearerAuth
// @Param q query string false "Search description"
// @Param category query string false "all, pending, paid or overdue"
// @Success 200 {object} response.Envelope
// @Router /me/bills [get]
func (h *BillHandler) MyBills(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	bills, err := h.bills.ListForStudent(c.Request.Context(), claims.UserID, billFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bills, nil)
}
