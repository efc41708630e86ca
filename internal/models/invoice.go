package models

import "time"

// InvoiceLink is a signed, expiring download link to a rendered invoice.
type InvoiceLink struct {
	BillID        string    `json:"bill_id"`
	InvoiceNumber string    `json:"invoice_number"`
	URL           string    `json:"url"`
	ExpiresAt     time.Time `json:"expires_at"`
}
