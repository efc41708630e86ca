package billing

import (
	"time"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// NextDue is the earliest upcoming pending bill.
type NextDue struct {
	BillID      string    `json:"bill_id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	DueDate     time.Time `json:"due_date"`
}

// Stats are the dashboard counters folded from a bill collection.
type Stats struct {
	PendingCount     int      `json:"pending_count"`
	PendingAmountSum float64  `json:"pending_amount_sum"`
	OverdueCount     int      `json:"overdue_count"`
	PaidCount        int      `json:"paid_count"`
	PaidAmountSum    float64  `json:"paid_amount_sum"`
	PaidThisMonthSum float64  `json:"paid_this_month_sum"`
	NextDue          *NextDue `json:"next_due"`
}

// ComputeStats folds bills into dashboard counters. Pending counts every unpaid bill, overdue
// included; NextDue considers only bills that are pending and not overdue, earliest due date first.
// PaidThisMonthSum counts paid bills created since the start of now's month.
func ComputeStats(bills []models.Bill, now time.Time) Stats {
	var (
		stats      Stats
		pending    []float64
		paid       []float64
		paidMonth  []float64
		monthStart = StartOfMonth(now)
		next       *models.Bill
	)

	for i := range bills {
		b := &bills[i]
		switch EffectiveStatus(b.Status, b.DueDate, now) {
		case StatusPaid:
			stats.PaidCount++
			paid = append(paid, b.Amount)
			if !b.CreatedAt.Before(monthStart) {
				paidMonth = append(paidMonth, b.Amount)
			}
		case StatusOverdue:
			stats.PendingCount++
			stats.OverdueCount++
			pending = append(pending, b.Amount)
		case StatusPending:
			stats.PendingCount++
			pending = append(pending, b.Amount)
			if next == nil || b.DueDate.Before(next.DueDate) {
				next = b
			}
		}
	}

	stats.PendingAmountSum = Sum(pending...)
	stats.PaidAmountSum = Sum(paid...)
	stats.PaidThisMonthSum = Sum(paidMonth...)
	if next != nil {
		stats.NextDue = &NextDue{
			BillID:      next.ID,
			Description: next.Description,
			Amount:      next.Amount,
			DueDate:     next.DueDate,
		}
	}
	return stats
}

// ScheduleProgress derives completion of a schedule from its child bills.
func ScheduleProgress(bills []models.Bill) models.ScheduleProgress {
	var paid, outstanding []float64
	progress := models.ScheduleProgress{TotalCount: len(bills)}
	for _, b := range bills {
		if b.Status == models.BillPaid {
			progress.PaidCount++
			paid = append(paid, b.Amount)
			continue
		}
		outstanding = append(outstanding, b.Amount)
	}
	progress.PaidAmount = Sum(paid...)
	progress.OutstandingAmount = Sum(outstanding...)
	progress.AllChildBillsPaid = progress.TotalCount > 0 && progress.PaidCount == progress.TotalCount
	return progress
}

// Annotate attaches the effective status and its label to each bill.
func Annotate(bills []models.Bill, now time.Time) []models.BillView {
	views := make([]models.BillView, len(bills))
	for i, b := range bills {
		status := EffectiveStatus(b.Status, b.DueDate, now)
		views[i] = models.BillView{Bill: b, EffectiveStatus: string(status), StatusLabel: StatusLabel(status)}
	}
	return views
}

// AnnotateAccounts attaches the balance status, with the due today bucket, to each account.
func AnnotateAccounts(accounts []models.LedgerAccount, now time.Time) []models.LedgerAccountView {
	views := make([]models.LedgerAccountView, len(accounts))
	for i, a := range accounts {
		status := BalanceStatus(a.Balance, a.DueDate, now, true)
		views[i] = models.LedgerAccountView{LedgerAccount: a, Status: string(status), StatusLabel: StatusLabel(status)}
	}
	return views
}
