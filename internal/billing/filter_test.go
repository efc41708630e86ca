package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

func ids(bills []models.Bill) []string {
	out := make([]string, len(bills))
	for i, b := range bills {
		out[i] = b.ID
	}
	return out
}

func TestFilterBillsQueryAndPending(t *testing.T) {
	got := FilterBills(fiveBillFixture(), "FEE", CategoryPending, now)
	assert.Equal(t, []string{"b1"}, ids(got))
}

func TestFilterBillsCategories(t *testing.T) {
	bills := fiveBillFixture()
	assert.Equal(t, []string{"b1", "b2", "b3", "b4", "b5"}, ids(FilterBills(bills, "", CategoryAll, now)))
	assert.Equal(t, []string{"b1", "b2", "b3", "b4", "b5"}, ids(FilterBills(bills, "  ", "", now)))
	assert.Equal(t, []string{"b3"}, ids(FilterBills(bills, "", CategoryOverdue, now)))
	assert.Equal(t, []string{"b4", "b5"}, ids(FilterBills(bills, "", CategoryPaid, now)))
	assert.Equal(t, []string{"b1", "b3", "b4"}, ids(FilterBills(bills, "fee", CategoryAll, now)))
	assert.Empty(t, FilterBills(nil, "fee", CategoryAll, now))
}

func TestFilterBillsMatchesStudentName(t *testing.T) {
	bills := fiveBillFixture()
	bills[4].StudentName = "Dewi Lestari"
	assert.Equal(t, []string{"b5"}, ids(FilterBills(bills, "lestari", "", now)))
}

func TestFilterStudents(t *testing.T) {
	students := []models.User{
		{ID: "s1", StudentName: "Rina Putri", Email: "rina@example.com", StudentCode: "S-001", Status: models.AccountActive},
		{ID: "s2", StudentName: "Bayu", Email: "bayu@example.com", ParentName: "Putri Ayu", Status: models.AccountInactive},
		{ID: "s3", StudentName: "Citra", Email: "citra@example.com", StudentCode: "S-003", Status: models.AccountActive},
	}

	pick := func(users []models.User) []string {
		out := make([]string, len(users))
		for i, u := range users {
			out[i] = u.ID
		}
		return out
	}

	assert.Equal(t, []string{"s1", "s2"}, pick(FilterStudents(students, "putri", models.StudentCategoryAll)))
	assert.Equal(t, []string{"s1"}, pick(FilterStudents(students, "putri", models.StudentCategoryActive)))
	assert.Equal(t, []string{"s3"}, pick(FilterStudents(students, "s-003", "")))
	assert.Equal(t, []string{"s2"}, pick(FilterStudents(students, "", models.StudentCategoryInactive)))
}

func TestFilterAccounts(t *testing.T) {
	accounts := []models.LedgerAccount{
		{ID: "a1", Name: "Andi", Balance: 0, DueDate: now.AddDate(0, 0, -5)},
		{ID: "a2", Name: "Budi", Balance: 150, DueDate: now.AddDate(0, 0, -1)},
		{ID: "a3", Name: "Andini", Balance: 80, DueDate: now.Add(2 * time.Hour)},
		{ID: "a4", Name: "Cahya", Balance: 60, DueDate: now.AddDate(0, 1, 0)},
	}

	pick := func(in []models.LedgerAccount) []string {
		out := make([]string, len(in))
		for i, a := range in {
			out[i] = a.ID
		}
		return out
	}

	assert.Equal(t, []string{"a1"}, pick(FilterAccounts(accounts, "", AccountCategoryPaid, now)))
	assert.Equal(t, []string{"a2", "a3", "a4"}, pick(FilterAccounts(accounts, "", AccountCategoryDue, now)))
	assert.Equal(t, []string{"a3"}, pick(FilterAccounts(accounts, "", AccountCategoryToday, now)))
	assert.Equal(t, []string{"a2"}, pick(FilterAccounts(accounts, "", AccountCategoryOverdue, now)))
	assert.Equal(t, []string{"a1", "a3"}, pick(FilterAccounts(accounts, "and", AccountCategoryAll, now)))

	views := AnnotateAccounts(accounts, now)
	assert.Equal(t, "due_today", views[2].Status)
	assert.Equal(t, "Due Today", views[2].StatusLabel)
}

func TestCategoryValidation(t *testing.T) {
	assert.True(t, ValidBillCategory(""))
	assert.True(t, ValidBillCategory(CategoryOverdue))
	assert.False(t, ValidBillCategory("late"))
	assert.True(t, ValidAccountCategory(AccountCategoryToday))
	assert.False(t, ValidAccountCategory("pending"))
}
