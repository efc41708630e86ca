package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/billing"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

const whatsAppBaseURL = "https://wa.me/"

type ledgerRepository interface {
	Create(ctx context.Context, account *models.LedgerAccount) error
	FindByID(ctx context.Context, institutionID, id string) (*models.LedgerAccount, error)
	List(ctx context.Context, institutionID string) ([]models.LedgerAccount, error)
	RecordPayment(ctx context.Context, institutionID string, payment *models.LedgerPayment) (*models.LedgerAccount, error)
	ListPayments(ctx context.Context, accountID string) ([]models.LedgerPayment, error)
}

type ledgerAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// LedgerService manages running-balance accounts: one outstanding balance and one due date per account.
type LedgerService struct {
	repo      ledgerRepository
	auditor   ledgerAuditor
	validator *validator.Validate
	logger    *zap.Logger
	currency  string
	now       func() time.Time
}

// NewLedgerService constructs the ledger service.
func NewLedgerService(repo ledgerRepository, auditor ledgerAuditor, validate *validator.Validate, logger *zap.Logger, currency string) *LedgerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if currency == "" {
		currency = "$"
	}
	return &LedgerService{repo: repo, auditor: auditor, validator: validate, logger: logger, currency: currency, now: time.Now}
}

// Create opens an account for the institution.
func (s *LedgerService) Create(ctx context.Context, institutionID string, req models.CreateLedgerAccountRequest) (*models.LedgerAccountView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid account payload")
	}
	if req.DueDate.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "due date is required")
	}

	account := &models.LedgerAccount{
		InstitutionID: institutionID,
		Name:          strings.TrimSpace(req.Name),
		Email:         strings.TrimSpace(strings.ToLower(req.Email)),
		Phone:         strings.TrimSpace(req.Phone),
		Balance:       billing.RoundCents(*req.Balance),
		DueDate:       req.DueDate.UTC(),
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, appErrors.Backend(err, "failed to create account")
	}
	view := billing.AnnotateAccounts([]models.LedgerAccount{*account}, s.now())[0]
	return &view, nil
}

// List returns accounts filtered by name and balance category (all|paid|due|today|overdue).
func (s *LedgerService) List(ctx context.Context, institutionID, query, category string) ([]models.LedgerAccountView, error) {
	if !billing.ValidAccountCategory(category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid account category")
	}
	accounts, err := s.repo.List(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Backend(err, "failed to list accounts")
	}
	now := s.now()
	return billing.AnnotateAccounts(billing.FilterAccounts(accounts, query, category, now), now), nil
}

// Get returns an account with its payment history.
func (s *LedgerService) Get(ctx context.Context, institutionID, id string) (*models.LedgerAccountDetail, error) {
	account, err := s.find(ctx, institutionID, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, account.ID)
	if err != nil {
		return nil, appErrors.Backend(err, "failed to load payments")
	}
	return &models.LedgerAccountDetail{
		LedgerAccountView: billing.AnnotateAccounts([]models.LedgerAccount{*account}, s.now())[0],
		Payments:          payments,
	}, nil
}

// RecordPayment decrements the account balance by a positive amount.
func (s *LedgerService) RecordPayment(ctx context.Context, institutionID, id string, req models.RecordPaymentRequest) (*models.LedgerAccountView, error) {
	req.Amount = billing.RoundCents(req.Amount)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid payment payload")
	}

	payment := &models.LedgerPayment{
		AccountID: id,
		Amount:    req.Amount,
		Note:      strings.TrimSpace(req.Note),
		CreatedAt: s.now().UTC(),
	}
	account, err := s.repo.RecordPayment(ctx, institutionID, payment)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Backend(err, "failed to record payment")
	}

	if s.auditor != nil {
		if err := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &institutionID,
			Action:     models.AuditActionLedgerPayment,
			Resource:   "ledger_account",
			ResourceID: &account.ID,
			NewValues:  []byte(fmt.Sprintf(`{"amount":%.2f,"balance":%.2f}`, payment.Amount, account.Balance)),
		}); err != nil {
			s.logger.Warn("failed to record audit log", zap.Error(err))
		}
	}

	view := billing.AnnotateAccounts([]models.LedgerAccount{*account}, s.now())[0]
	return &view, nil
}

// Reminder prepares the payment reminder text and a WhatsApp deep link to the account's phone.
func (s *LedgerService) Reminder(ctx context.Context, institutionID, id string) (*models.LedgerReminder, error) {
	account, err := s.find(ctx, institutionID, id)
	if err != nil {
		return nil, err
	}
	if account.Balance <= 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "account has no pending balance")
	}
	phone := digitsOnly(account.Phone)
	if phone == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "account has no phone number")
	}

	message := fmt.Sprintf("Hi %s, your pending bill of %s is due on %s. Please pay soon.",
		account.Name, billing.FormatMoney(s.currency, account.Balance), account.DueDate.Format(reminderDateLayout))
	return &models.LedgerReminder{
		Message: message,
		URL:     whatsAppBaseURL + phone + "?text=" + url.QueryEscape(message),
	}, nil
}

func (s *LedgerService) find(ctx context.Context, institutionID, id string) (*models.LedgerAccount, error) {
	account, err := s.repo.FindByID(ctx, institutionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Backend(err, "failed to load account")
	}
	return account, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
