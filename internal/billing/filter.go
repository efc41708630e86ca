package billing

import (
	"strings"
	"time"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// Bill list categories.
const (
	CategoryAll     = "all"
	CategoryPending = "pending"
	CategoryPaid    = "paid"
	CategoryOverdue = "overdue"
)

// Running-balance list categories.
const (
	AccountCategoryAll     = "all"
	AccountCategoryPaid    = "paid"
	AccountCategoryDue     = "due"
	AccountCategoryToday   = "today"
	AccountCategoryOverdue = "overdue"
)

// ValidBillCategory reports whether c names a bill category. Empty means all.
func ValidBillCategory(c string) bool {
	switch c {
	case "", CategoryAll, CategoryPending, CategoryPaid, CategoryOverdue:
		return true
	}
	return false
}

// ValidAccountCategory reports whether c names a running-balance category. Empty means all.
func ValidAccountCategory(c string) bool {
	switch c {
	case "", AccountCategoryAll, AccountCategoryPaid, AccountCategoryDue, AccountCategoryToday, AccountCategoryOverdue:
		return true
	}
	return false
}

// FilterBills keeps bills whose description or student name contains query and whose effective
// status matches category. Input order is preserved.
func FilterBills(bills []models.Bill, query, category string, now time.Time) []models.Bill {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.Bill, 0, len(bills))
	for _, b := range bills {
		if needle != "" && !containsAny(needle, b.Description, b.StudentName) {
			continue
		}
		if category != "" && category != CategoryAll && string(EffectiveStatus(b.Status, b.DueDate, now)) != category {
			continue
		}
		out = append(out, b)
	}
	return out
}

// FilterStudents keeps students matching query on name, email, student code or parent name
// and whose account status matches category.
func FilterStudents(students []models.User, query string, category models.StudentCategory) []models.User {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.User, 0, len(students))
	for _, s := range students {
		if needle != "" && !containsAny(needle, s.StudentName, s.Email, s.StudentCode, s.ParentName) {
			continue
		}
		switch category {
		case models.StudentCategoryActive:
			if s.Status != models.AccountActive {
				continue
			}
		case models.StudentCategoryInactive:
			if s.Status != models.AccountInactive {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// FilterAccounts keeps running-balance accounts matching query on name and the balance category.
func FilterAccounts(accounts []models.LedgerAccount, query, category string, now time.Time) []models.LedgerAccount {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.LedgerAccount, 0, len(accounts))
	for _, a := range accounts {
		if needle != "" && !containsAny(needle, a.Name) {
			continue
		}
		if !accountMatches(a, category, now) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func accountMatches(a models.LedgerAccount, category string, now time.Time) bool {
	switch category {
	case AccountCategoryPaid:
		return a.Balance <= 0
	case AccountCategoryDue:
		return a.Balance > 0
	case AccountCategoryToday:
		return SameCalendarDay(a.DueDate, now)
	case AccountCategoryOverdue:
		return a.Balance > 0 && a.DueDate.Before(now)
	default:
		return true
	}
}

func containsAny(needle string, fields ...string) bool {
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
