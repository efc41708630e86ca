package models

import "time"

// BillStatus is the persisted status of a bill. Overdue is never stored.
type BillStatus string

const (
	BillPending BillStatus = "pending"
	BillPaid    BillStatus = "paid"
)

// Bill is a single payable obligation owned by one student of one institution.
type Bill struct {
	ID               string     `db:"id" json:"id"`
	StudentID        string     `db:"student_id" json:"student_id"`
	StudentName      string     `db:"student_name" json:"student_name"`
	InstitutionID    string     `db:"institution_id" json:"institution_id"`
	Description      string     `db:"description" json:"description"`
	Amount           float64    `db:"amount" json:"amount"`
	DueDate          time.Time  `db:"due_date" json:"due_date"`
	Status           BillStatus `db:"status" json:"status"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	PaidAt           *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	ScheduleID       *string    `db:"schedule_id" json:"schedule_id,omitempty"`
	InstallmentIndex *int       `db:"installment_index" json:"installment_index,omitempty"`
}

// BillView is a bill annotated with its effective status at read time.
type BillView struct {
	Bill
	EffectiveStatus string `json:"effective_status"`
	StatusLabel     string `json:"status_label"`
}

// BillFilter captures listing criteria for bills.
type BillFilter struct {
	InstitutionID string
	StudentID     string
	Search        string
	Category      string
	Limit         int
}

// CreateBillRequest is the admin payload for a one-off bill.
type CreateBillRequest struct {
	StudentID   string    `json:"student_id" validate:"required"`
	Description string    `json:"description" validate:"required"`
	Amount      *float64  `json:"amount" validate:"required,gte=0"`
	DueDate     time.Time `json:"due_date" validate:"required"`
}

// ReminderResult reports that a reminder was accepted for delivery.
type ReminderResult struct {
	BillID   string   `json:"bill_id"`
	Channels []string `json:"channels"`
	Queued   bool     `json:"queued"`
}

// OverdueBill is an unpaid past-due bill joined with its student's contact channels.
type OverdueBill struct {
	Bill
	StudentEmail string  `db:"student_email" json:"student_email"`
	PushToken    *string `db:"push_token" json:"-"`
}
