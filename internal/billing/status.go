// Package billing holds the bill lifecycle rules: status derivation, list filtering,
// installment schedule expansion and dashboard aggregates. Every function is pure and takes an explicit now.
package billing

import (
	"time"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// Status is the effective, display-time status of a bill or balance.
type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusOverdue  Status = "overdue"
	StatusDueToday Status = "due_today"
)

// ComparisonMode selects how a due date is compared against now.
type ComparisonMode int

const (
	// OverdueByInstant treats a bill as overdue as soon as its due instant has passed.
	OverdueByInstant ComparisonMode = iota
	// OverdueByCalendarDay treats a bill as overdue only from the calendar day after its due date.
	OverdueByCalendarDay
)

// EffectiveStatus derives the discrete-bill status using OverdueByInstant.
func EffectiveStatus(stored models.BillStatus, dueDate, now time.Time) Status {
	return EffectiveStatusWithMode(OverdueByInstant, stored, dueDate, now)
}

// EffectiveStatusByCalendarDay derives the discrete-bill status using OverdueByCalendarDay.
func EffectiveStatusByCalendarDay(stored models.BillStatus, dueDate, now time.Time) Status {
	return EffectiveStatusWithMode(OverdueByCalendarDay, stored, dueDate, now)
}

// EffectiveStatusWithMode derives the discrete-bill status. Paid bills are never downgraded.
func EffectiveStatusWithMode(mode ComparisonMode, stored models.BillStatus, dueDate, now time.Time) Status {
	if stored == models.BillPaid {
		return StatusPaid
	}
	if isPast(mode, dueDate, now) {
		return StatusOverdue
	}
	return StatusPending
}

// BalanceStatus derives the status of a running-balance record. withDueToday enables the extra
// due_today bucket used by list views; it only applies to due instants not yet passed.
func BalanceStatus(balance float64, dueDate, now time.Time, withDueToday bool) Status {
	if balance <= 0 {
		return StatusPaid
	}
	if dueDate.Before(now) {
		return StatusOverdue
	}
	if withDueToday && SameCalendarDay(dueDate, now) {
		return StatusDueToday
	}
	return StatusPending
}

// StatusLabel maps a status to its display label.
func StatusLabel(s Status) string {
	switch s {
	case StatusPaid:
		return "Paid"
	case StatusOverdue:
		return "Overdue"
	case StatusDueToday:
		return "Due Today"
	case StatusPending:
		return "Pending"
	default:
		return "Unknown"
	}
}

// SameCalendarDay reports whether a and b fall on the same calendar day in b's location.
func SameCalendarDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfMonth returns the first instant of t's month in t's location.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

func isPast(mode ComparisonMode, dueDate, now time.Time) bool {
	if mode == OverdueByCalendarDay {
		return StartOfDay(dueDate.In(now.Location())).Before(StartOfDay(now))
	}
	return dueDate.Before(now)
}
