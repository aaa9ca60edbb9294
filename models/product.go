package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a priced line item on an invoice. Its distribution plan names
// the per-unit cut each destination account receives; Distribution records
// the executed transfers and, once non-empty, is never written again.
type Product struct {
	ID               uint               `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	InvoiceID        uint               `gorm:"not null;index" json:"invoice_id"`
	Title            string             `gorm:"size:255;not null" json:"title"`
	Description      string             `gorm:"type:text" json:"description"`
	Price            decimal.Decimal    `gorm:"type:decimal(18,4);not null" json:"price"`
	Discount         decimal.Decimal    `gorm:"type:decimal(18,4);not null" json:"discount"`
	Currency         string             `gorm:"size:10;not null" json:"currency"`
	Count            int                `gorm:"not null" json:"count"`
	Meta             JSONMap            `gorm:"type:json" json:"meta,omitempty"`
	DistributionPlan DistributionPlan   `gorm:"type:json" json:"distribution_plan,omitempty"`
	Distribution     DistributionResult `gorm:"type:json" json:"distribution,omitempty"`
}

// TableName overrides the table name
func (Product) TableName() string {
	return "invoice_products"
}

// TotalAmount is (price - discount) * count in the product's own currency.
func (p *Product) TotalAmount() decimal.Decimal {
	return p.Price.Sub(p.Discount).Mul(decimal.NewFromInt(int64(p.Count)))
}

// Distributed reports whether revenue distribution already ran for this
// product. A non-empty result is the idempotency guard against double payout.
func (p *Product) Distributed() bool {
	return len(p.Distribution) > 0
}
