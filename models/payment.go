package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// Payment is a claim of money paid toward an invoice. It starts pending and
// resolves exactly once, to approved or rejected; both states are terminal.
type Payment struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	InvoiceID  uint            `gorm:"not null;index" json:"invoice_id"`
	TransferID string          `gorm:"size:255" json:"transfer_id,omitempty"`
	Method     string          `gorm:"size:50;not null" json:"method"`
	Currency   string          `gorm:"size:10;not null" json:"currency"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Meta       JSONMap         `gorm:"type:json" json:"meta,omitempty"`
	Status     PaymentStatus   `gorm:"size:20;default:'pending'" json:"status"` // pending, approved, rejected
}

// TableName overrides the table name
func (Payment) TableName() string {
	return "invoice_payments"
}

func (p *Payment) IsPending() bool {
	return p.Status == PaymentStatusPending
}
