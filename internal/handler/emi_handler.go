package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

type emiService interface {
	Create(ctx context.Context, institutionID string, req models.CreateEMIRequest) (*models.EMIScheduleDetail, error)
	List(ctx context.Context, institutionID string) ([]models.EMISchedule, error)
	Get(ctx context.Context, institutionID, id string) (*models.EMIScheduleDetail, error)
	UpdateStatus(ctx context.Context, institutionID, id string, req models.UpdateScheduleStatusRequest) (*models.EMISchedule, error)
}

// EMIHandler exposes installment schedule endpoints.
type EMIHandler struct {
	schedules emiService
}

// NewEMIHandler constructs EMIHandler.
func NewEMIHandler(schedules emiService) *EMIHandler {
	return &EMIHandler{schedules: schedules}
}

// List godoc
// @Summary List installment schedules
// @Tags EMI
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /emi-schedules [get]
func (h *EMIHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	schedules, err := h.schedules.List(c.Request.Context(), claims.InstitutionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}

// Create godoc
// @Summary Create installment schedule
// @Description Creates the schedule and all of its installment bills in one transaction
// @Tags EMI
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateEMIRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /emi-schedules [post]
func (h *EMIHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req models.CreateEMIRequest
	if !bindJSON(c, &req, "invalid schedule payload") {
		return
	}
	detail, err := h.schedules.Create(c.Request.Context(), claims.InstitutionID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Get godoc
// @Summary Get installment schedule
// @Tags EMI
// @Produce json
// @Security BearerAuth
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /emi-schedules/{id} [get]
func (h *EMIHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	detail, err := h.schedules.Get(c.Request.Context(), claims.InstitutionID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// UpdateStatus godoc
// @Summary Change schedule status
// @Tags EMI
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Schedule ID"
// @Param payload body models.UpdateScheduleStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /emi-schedules/{id}/status [patch]
func (h *EMIHandler) UpdateStatus(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req models.UpdateScheduleStatusRequest
	if !bindJSON(c, &req, "invalid schedule status") {
		return
	}
	schedule, err := h.schedules.UpdateStatus(c.Request.Context(), claims.InstitutionID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}
