package models

import "time"

// LedgerAccount is the running-balance bill representation: one outstanding balance and one due date.
type LedgerAccount struct {
	ID            string    `db:"id" json:"id"`
	InstitutionID string    `db:"institution_id" json:"institution_id"`
	Name          string    `db:"name" json:"name"`
	Email         string    `db:"email" json:"email,omitempty"`
	Phone         string    `db:"phone" json:"phone,omitempty"`
	Balance       float64   `db:"balance" json:"balance"`
	DueDate       time.Time `db:"due_date" json:"due_date"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// LedgerAccountView annotates an account with its balance status.
type LedgerAccountView struct {
	LedgerAccount
	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`
}

// LedgerPayment is a payment recorded against a ledger account.
type LedgerPayment struct {
	ID        string    `db:"id" json:"id"`
	AccountID string    `db:"account_id" json:"account_id"`
	Amount    float64   `db:"amount" json:"amount"`
	Note      string    `db:"note" json:"note,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LedgerAccountDetail bundles an account with its payment history.
type LedgerAccountDetail struct {
	LedgerAccountView
	Payments []LedgerPayment `json:"payments"`
}

// CreateLedgerAccountRequest opens a new running-balance account.
type CreateLedgerAccountRequest struct {
	Name    string    `json:"name" validate:"required"`
	Email   string    `json:"email" validate:"omitempty,email"`
	Phone   string    `json:"phone"`
	Balance *float64  `json:"balance" validate:"required"`
	DueDate time.Time `json:"due_date" validate:"required"`
}

// RecordPaymentRequest decrements an account balance.
type RecordPaymentRequest struct {
	Amount float64 `json:"amount" validate:"gt=0"`
	Note   string  `json:"note"`
}

// LedgerReminder is the prepared reminder message and its WhatsApp deep link.
type LedgerReminder struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}
