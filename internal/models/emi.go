package models

import "time"

// Frequency is the interval between installments.
type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencySemester  Frequency = "semester"
)

// ScheduleStatus is the stored status of an installment schedule.
type ScheduleStatus string

const (
	ScheduleActive    ScheduleStatus = "active"
	ScheduleCompleted ScheduleStatus = "completed"
	SchedulePaused    ScheduleStatus = "paused"
)

// EMISchedule describes a recurring obligation that owns exactly Installments bills.
type EMISchedule struct {
	ID                string         `db:"id" json:"id"`
	StudentID         string         `db:"student_id" json:"student_id"`
	StudentName       string         `db:"student_name" json:"student_name"`
	InstitutionID     string         `db:"institution_id" json:"institution_id"`
	Description       string         `db:"description" json:"description"`
	TotalAmount       float64        `db:"total_amount" json:"total_amount"`
	Installments      int            `db:"installments" json:"installments"`
	InstallmentAmount float64        `db:"installment_amount" json:"installment_amount"`
	StartDate         time.Time      `db:"start_date" json:"start_date"`
	Frequency         Frequency      `db:"frequency" json:"frequency"`
	Status            ScheduleStatus `db:"status" json:"status"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}

// ScheduleProgress summarises the child bills of a schedule. It is derived on read.
type ScheduleProgress struct {
	PaidCount         int     `json:"paid_count"`
	TotalCount        int     `json:"total_count"`
	PaidAmount        float64 `json:"paid_amount"`
	OutstandingAmount float64 `json:"outstanding_amount"`
	AllChildBillsPaid bool    `json:"all_child_bills_paid"`
}

// EMIScheduleDetail bundles a schedule with its bills and progress.
type EMIScheduleDetail struct {
	EMISchedule
	Bills    []BillView       `json:"bills"`
	Progress ScheduleProgress `json:"progress"`
}

// CreateEMIRequest is the admin payload for a new installment schedule.
type CreateEMIRequest struct {
	StudentID    string    `json:"student_id" validate:"required"`
	Description  string    `json:"description" validate:"required"`
	TotalAmount  float64   `json:"total_amount" validate:"gt=0"`
	Installments int       `json:"installments" validate:"gte=1,lte=120"`
	StartDate    time.Time `json:"start_date" validate:"required"`
	Frequency    Frequency `json:"frequency" validate:"required,oneof=monthly quarterly semester"`
}

// UpdateScheduleStatusRequest pauses, resumes or closes a schedule.
type UpdateScheduleStatusRequest struct {
	Status ScheduleStatus `json:"status" validate:"required,oneof=active completed paused"`
}
