package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-billing-api/internal/billing"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

const (
	defaultPageSize      = 20
	maxPageSize          = 100
	tempPasswordLength   = 8
	tempPasswordAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

type studentRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindStudent(ctx context.Context, institutionID, id string) (*models.User, error)
	ListStudents(ctx context.Context, institutionID string) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateStatus(ctx context.Context, id string, status models.AccountStatus, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// StudentService handles admin-side student management. Every operation is scoped to the admin's institution.
type StudentService struct {
	repo      studentRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// Create registers a student under the institution. When no password is supplied a random
// one is generated and returned once in the response.
func (s *StudentService) Create(ctx context.Context, institutionID string, req models.CreateStudentRequest) (*models.CreateStudentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid student payload")
	}

	institution, err := s.repo.FindByID(ctx, institutionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "institution not found")
		}
		return nil, appErrors.Backend(err, "failed to load institution")
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Backend(err, "failed to check email")
	}

	password := req.Password
	generated := ""
	if password == "" {
		generated, err = generatePassword(tempPasswordLength)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate password")
		}
		password = generated
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	owner := institution.ID
	student := &models.User{
		Email:           email,
		PasswordHash:    string(hash),
		Role:            models.RoleStudent,
		InstitutionID:   &owner,
		InstitutionName: institution.InstitutionName,
		StudentName:     strings.TrimSpace(req.StudentName),
		ParentName:      strings.TrimSpace(req.ParentName),
		StudentCode:     strings.TrimSpace(req.StudentCode),
		Phone:           strings.TrimSpace(req.Phone),
		Address:         strings.TrimSpace(req.Address),
		Status:          models.AccountActive,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Backend(err, "failed to create student")
	}

	s.cache.Invalidate(ctx, adminDashboardKey(institutionID))
	s.audit(ctx, institutionID, models.AuditActionStudentCreate, student.ID, fmt.Sprintf(`{"email":%q}`, student.Email))

	return &models.CreateStudentResponse{Student: student, TemporaryPassword: generated}, nil
}

// List returns the institution's students filtered by search text and status, paginated in memory.
func (s *StudentService) List(ctx context.Context, institutionID string, filter models.StudentFilter) ([]models.User, *models.Pagination, error) {
	if filter.Category == "" {
		filter.Category = models.StudentCategoryAll
	}
	switch filter.Category {
	case models.StudentCategoryAll, models.StudentCategoryActive, models.StudentCategoryInactive:
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid student category")
	}

	students, err := s.repo.ListStudents(ctx, institutionID)
	if err != nil {
		return nil, nil, appErrors.Backend(err, "failed to list students")
	}

	filtered := billing.FilterStudents(students, filter.Search, filter.Category)
	page, pagination := paginate(filtered, filter.Page, filter.PageSize)
	return page, pagination, nil
}

// Get returns a single student owned by the institution.
func (s *StudentService) Get(ctx context.Context, institutionID, id string) (*models.User, error) {
	student, err := s.repo.FindStudent(ctx, institutionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Backend(err, "failed to load student")
	}
	return student, nil
}

// SetStatus activates or deactivates a student. Deactivation revokes the student's sessions.
func (s *StudentService) SetStatus(ctx context.Context, institutionID, id string, req models.UpdateStatusRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid status payload")
	}
	student, err := s.Get(ctx, institutionID, id)
	if err != nil {
		return nil, err
	}
	return s.applyStatus(ctx, institutionID, student, req.Status)
}

// ToggleStatus flips a student between ACTIVE and INACTIVE.
func (s *StudentService) ToggleStatus(ctx context.Context, institutionID, id string) (*models.User, error) {
	student, err := s.Get(ctx, institutionID, id)
	if err != nil {
		return nil, err
	}
	next := models.AccountInactive
	if student.Status != models.AccountActive {
		next = models.AccountActive
	}
	return s.applyStatus(ctx, institutionID, student, next)
}

// Delete removes a student and, through cascading deletes, their bills and schedules.
func (s *StudentService) Delete(ctx context.Context, institutionID, id string) error {
	if _, err := s.Get(ctx, institutionID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Backend(err, "failed to delete student")
	}

	s.cache.Invalidate(ctx, adminDashboardKey(institutionID), studentDashboardKey(id), profileKey(id))
	s.audit(ctx, institutionID, models.AuditActionStudentDelete, id, `{"deleted":true}`)
	return nil
}

func (s *StudentService) applyStatus(ctx context.Context, institutionID string, student *models.User, status models.AccountStatus) (*models.User, error) {
	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, student.ID, status, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Backend(err, "failed to update student status")
	}
	if status == models.AccountInactive {
		if err := s.repo.RevokeUserRefreshTokens(ctx, student.ID); err != nil {
			s.logger.Warn("failed to revoke sessions of deactivated student", zap.String("student_id", student.ID), zap.Error(err))
		}
	}

	old := student.Status
	student.Status = status
	student.UpdatedAt = now
	s.cache.Invalidate(ctx, profileKey(student.ID))
	s.audit(ctx, institutionID, models.AuditActionStudentStatus, student.ID, fmt.Sprintf(`{"from":%q,"to":%q}`, old, status))
	return student, nil
}

func (s *StudentService) audit(ctx context.Context, actorID, action, resourceID, payload string) {
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "student",
		ResourceID: &resourceID,
		NewValues:  []byte(payload),
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func generatePassword(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(tempPasswordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = tempPasswordAlphabet[n.Int64()]
	}
	return string(out), nil
}

func paginate[T any](items []T, page, size int) ([]T, *models.Pagination) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	total := len(items)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return items[start:end], &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
