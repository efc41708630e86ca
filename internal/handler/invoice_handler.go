package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

type invoiceService interface {
	Generate(ctx context.Context, studentID, billID string) (*models.InvoiceLink, error)
	Download(ctx context.Context, token string) (io.ReadCloser, string, error)
}

// InvoiceHandler issues and serves invoice PDFs.
type InvoiceHandler struct {
	invoices invoiceService
}

// NewInvoiceHandler constructs InvoiceHandler.
func NewInvoiceHandler(invoices invoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// Generate godoc
// @Summary Generate invoice
// @Description Renders the invoice of one of the caller's paid bills and returns a signed download link
// @Tags Invoices
// @Produce json
// @Security BearerAuth
// @Param id path string true "Bill ID"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /me/bills/{id}/invoice [post]
func (h *InvoiceHandler) Generate(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	link, err := h.invoices.Generate(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// Download godoc
// @Summary Download invoice
// @Description Streams the PDF granted by a signed token. No session is required.
// @Tags Invoices
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /invoices/download [get]
func (h *InvoiceHandler) Download(c *gin.Context) {
	file, filename, err := h.invoices.Download(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "private, no-store")
	c.DataFromReader(http.StatusOK, -1, "application/pdf", file, nil)
}
