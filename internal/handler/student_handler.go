package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

type studentService interface {
	Create(ctx context.Context, institutionID string, req models.CreateStudentRequest) (*models.CreateStudentResponse, error)
	List(ctx context.Context, institutionID string, filter models.StudentFilter) ([]models.User, *models.Pagination, error)
	Get(ctx context.Context, institutionID, id string) (*models.User, error)
	SetStatus(ctx context.Context, institutionID, id string, req models.UpdateStatusRequest) (*models.User, error)
	ToggleStatus(ctx context.Context, institutionID, id string) (*models.User, error)
	Delete(ctx context.Context, institutionID, id string) error
}

// StudentHandler exposes the admin student roster.
type StudentHandler struct {
	students studentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param q query string false "Search by name, email, student code or parent name"
// @Param category query string false "all, active or inactive"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	filter := models.StudentFilter{
		Search:   strings.TrimSpace(c.Query("q")),
		Category: models.StudentCategory(strings.ToLower(c.Query("category"))),
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "page_size"),
	}

	students, pagination, err := h.students.List(c.Request.Context(), claims.InstitutionID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Create godoc
// @Summary Register a student
// @Description Creates a student of the caller's institution. A temporary password is returned once when none is supplied.
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req models.CreateStudentRequest
	if !bindJSON(c, &req, "invalid student payload") {
		return
	}

	res, err := h.students.Create(c.Request.Context(), claims.InstitutionID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Get godoc
// @Summary Get student
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	student, err := h.students.Get(c.Request.Context(), claims.InstitutionID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// UpdateStatus godoc
// @Summary Change student status
// @Description Sets the status from the body, or toggles it when the body is empty. Deactivation revokes sessions.
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param payload body models.UpdateStatusRequest false "Target status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/status [patch]
func (h *StudentHandler) UpdateStatus(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}

	var (
		student *models.User
		err     error
	)
	if c.Request.ContentLength == 0 {
		student, err = h.students.ToggleStatus(c.Request.Context(), claims.InstitutionID, c.Param("id"))
	} else {
		var req models.UpdateStatusRequest
		if !bindJSON(c, &req, "invalid status payload") {
			return
		}
		req.Status = models.AccountStatus(strings.ToUpper(string(req.Status)))
		student, err = h.students.SetStatus(c.Request.Context(), claims.InstitutionID, c.Param("id"), req)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Delete godoc
// @Summary Delete student
// @Description Removes the student with their bills and schedules
// @Tags Students
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.students.Delete(c.Request.Context(), claims.InstitutionID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
