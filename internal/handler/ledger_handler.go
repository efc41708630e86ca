package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

type ledgerService interface {
	Create(ctx context.Context, institutionID string, req models.CreateLedgerAccountRequest) (*models.LedgerAccountView, error)
	List(ctx context.Context, institutionID, query, category string) ([]models.LedgerAccountView, error)
	Get(ctx context.Context, institutionID, id string) (*models.LedgerAccountDetail, error)
	RecordPayment(ctx context.Context, institutionID, id string, req models.RecordPaymentRequest) (*models.LedgerAccountView, error)
	Reminder(ctx context.Context, institutionID, id string) (*models.LedgerReminder, error)
}

// LedgerHandler exposes running-balance accounts.
type LedgerHandler struct {
	ledger ledgerService
}

// NewLedgerHandler constructs LedgerHandler.
func NewLedgerHandler(ledger ledgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// List godoc
// @Summary List ledger accounts
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param q query string false "Search by name"
// @Param category query string false "all, paid, due, today or overdue"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /ledger/accounts [get]
func (h *LedgerHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	accounts, err := h.ledger.List(c.Request.Context(), claims.InstitutionID, strings.TrimSpace(c.Query("q")), strings.ToLower(c.Query("category")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, accounts, nil)
}

// Create godoc
// @Summary Open ledger account
// @Tags Ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateLedgerAccountRequest true "Account payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /ledger/accounts [post]
func (h *LedgerHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req models.CreateLedgerAccountRequest
	if !bindJSON(c, &req, "invalid account payload") {
		return
	}
	account, err := h.ledger.Create(c.Request.Context(), claims.InstitutionID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, account)
}

// Get godoc
// @Summary Get ledger account
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /ledger/accounts/{id} [get]
func (h *LedgerHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	account, err := h.ledger.Get(c.Request.Context(), claims.InstitutionID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, account, nil)
}

// RecordPayment godoc
// @Summary Record payment
// @Tags Ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param payload body models.RecordPaymentRequest true "Payment"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /ledger/accounts/{id}/payments [post]
func (h *LedgerHandler) RecordPayment(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req models.RecordPaymentRequest
	if !bindJSON(c, &req, "invalid payment payload") {
		return
	}
	account, err := h.ledger.RecordPayment(c.Request.Context(), claims.InstitutionID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, account, nil)
}

// Reminder godoc
// @Summary Prepare WhatsApp reminder
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /ledger/accounts/{id}/reminder [get]
func (h *LedgerHandler) Reminder(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	reminder, err := h.ledger.Reminder(c.Request.Context(), claims.InstitutionID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reminder, nil)
}
