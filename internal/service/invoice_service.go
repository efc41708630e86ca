package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/billing"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/export"
	"github.com/noah-isme/sma-billing-api/pkg/storage"
)

const invoiceDateLayout = "Jan 2, 2006"

type invoiceBillReader interface {
	FindByID(ctx context.Context, id string) (*models.Bill, error)
}

type invoiceUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type invoiceStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (io.ReadCloser, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type invoiceSigner interface {
	Issue(billID, ownerID, relPath string) (string, time.Time, error)
	Verify(token string) (*storage.DownloadClaims, error)
}

// InvoiceServiceConfig controls link building and presentation.
type InvoiceServiceConfig struct {
	DownloadURL string
	Currency    string
}

// InvoiceService renders receipts for paid bills and serves them through signed links.
type InvoiceService struct {
	bills    invoiceBillReader
	users    invoiceUserReader
	store    invoiceStore
	signer   invoiceSigner
	renderer *export.InvoiceRenderer
	logger   *zap.Logger
	cfg      InvoiceServiceConfig
	now      func() time.Time
}

// NewInvoiceService constructs the invoice service.
func NewInvoiceService(bills invoiceBillReader, users invoiceUserReader, store invoiceStore, signer invoiceSigner, logger *zap.Logger, cfg InvoiceServiceConfig) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Currency == "" {
		cfg.Currency = "$"
	}
	if cfg.DownloadURL == "" {
		cfg.DownloadURL = "/api/v1/invoices/download"
	}
	return &InvoiceService{
		bills:    bills,
		users:    users,
		store:    store,
		signer:   signer,
		renderer: export.NewInvoiceRenderer(),
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Generate renders the invoice for one of the student's paid bills and returns a signed link.
func (s *InvoiceService) Generate(ctx context.Context, studentID, billID string) (*models.InvoiceLink, error) {
	bill, err := s.bills.FindByID(ctx, billID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "bill not found")
		}
		return nil, appErrors.Backend(err, "failed to load bill")
	}
	if bill.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "bill not found")
	}
	if bill.Status != models.BillPaid {
		return nil, appErrors.Clone(appErrors.ErrConflict, "invoice is only available for paid bills")
	}

	student, err := s.loadUser(ctx, bill.StudentID)
	if err != nil {
		return nil, err
	}
	institution, err := s.loadUser(ctx, bill.InstitutionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	number := export.InvoiceNumber(bill.ID)
	paidDate := ""
	if bill.PaidAt != nil {
		paidDate = bill.PaidAt.Format(invoiceDateLayout)
	}
	pdf, err := s.renderer.Render(export.Invoice{
		Number:           number,
		InstitutionName:  institution.InstitutionName,
		InstitutionEmail: institution.Email,
		StudentName:      student.StudentName,
		StudentEmail:     student.Email,
		ParentName:       student.ParentName,
		Description:      bill.Description,
		Amount:           billing.FormatMoney(s.cfg.Currency, bill.Amount),
		IssueDate:        now.Format(invoiceDateLayout),
		DueDate:          bill.DueDate.Format(invoiceDateLayout),
		PaidDate:         paidDate,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render invoice")
	}

	path, err := s.store.Save(fmt.Sprintf("%s/%s.pdf", bill.StudentID, number), pdf)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store invoice")
	}

	token, expiresAt, err := s.signer.Issue(bill.ID, studentID, path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign invoice link")
	}

	return &models.InvoiceLink{
		BillID:        bill.ID,
		InvoiceNumber: number,
		URL:           s.cfg.DownloadURL + "?token=" + url.QueryEscape(token),
		ExpiresAt:     expiresAt,
	}, nil
}

// Download verifies token and opens the invoice it grants. The caller closes the reader.
func (s *InvoiceService) Download(ctx context.Context, token string) (io.ReadCloser, string, error) {
	if token == "" {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "download token required")
	}
	claims, err := s.signer.Verify(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "download link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid download link")
	}

	file, err := s.store.Open(claims.Path)
	if err != nil {
		s.logger.Warn("invoice file unavailable", zap.String("bill_id", claims.BillID), zap.Error(err))
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
	}
	return file, export.InvoiceNumber(claims.BillID) + ".pdf", nil
}

// Cleanup removes rendered invoices older than maxAge. Links to them stop resolving.
func (s *InvoiceService) Cleanup(maxAge time.Duration) int {
	deleted, err := s.store.CleanupOlderThan(maxAge)
	if err != nil {
		s.logger.Warn("invoice cleanup failed", zap.Error(err))
	}
	if len(deleted) > 0 {
		s.logger.Info("invoice cleanup", zap.Int("deleted", len(deleted)))
	}
	return len(deleted)
}

func (s *InvoiceService) loadUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Backend(err, "failed to load account")
	}
	return user, nil
}
