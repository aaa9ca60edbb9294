package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusUnpaid InvoiceStatus = "unpaid"
	InvoiceStatusPaid   InvoiceStatus = "paid"
)

// Invoice is the aggregate root owning products and payments. Amount is the
// sum of all product totals converted into the invoice currency; it is fully
// recomputed after every product mutation, never patched incrementally.
type Invoice struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Title     string          `gorm:"size:255;not null" json:"title"`
	UserID    uint            `gorm:"not null;index" json:"user_id"`
	Currency  string          `gorm:"size:10;not null" json:"currency"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Status    InvoiceStatus   `gorm:"size:20;default:'unpaid'" json:"status"` // unpaid, paid
	Meta      JSONMap         `gorm:"type:json" json:"meta,omitempty"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
	Products  []Product       `gorm:"constraint:OnDelete:CASCADE" json:"products,omitempty"`
	Payments  []Payment       `gorm:"constraint:OnDelete:CASCADE" json:"payments,omitempty"`
}

// TableName overrides the table name
func (Invoice) TableName() string {
	return "invoices"
}

func (i *Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}
