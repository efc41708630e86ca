package dto

import (
	"time"

	"github.com/noah-isme/sma-billing-api/internal/billing"
	"github.com/noah-isme/sma-billing-api/internal/models"
)

// AdminDashboardResponse captures the aggregated institution dashboard payload.
type AdminDashboardResponse struct {
	TotalStudents int               `json:"totalStudents"`
	PendingBills  int               `json:"pendingBills"`
	OverdueBills  int               `json:"overdueBills"`
	PaidBills     int               `json:"paidBills"`
	PendingAmount float64           `json:"pendingAmount"`
	Revenue       float64           `json:"revenue"`
	RecentBills   []models.BillView `json:"recentBills"`
	GeneratedAt   time.Time         `json:"generatedAt"`
}

// StudentDashboardResponse summarises a student's own bills.
type StudentDashboardResponse struct {
	Stats       billing.Stats     `json:"stats"`
	RecentBills []models.BillView `json:"recentBills"`
	GeneratedAt time.Time         `json:"generatedAt"`
}
