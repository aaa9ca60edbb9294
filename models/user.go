package models

import (
	"time"
)

// User owns invoices and backs JWT authentication. StellarAddress is the
// ledger account payments are reconciled against.
type User struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Email           string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name            string     `gorm:"size:255;not null" json:"name"`
	StellarAddress  string     `gorm:"uniqueIndex;size:56" json:"stellar_address"`
	PasswordHash    string     `gorm:"size:255;not null" json:"-"`
	Role            string     `gorm:"size:20;default:'user'" json:"role"` // admin, user
	IsActive        bool       `gorm:"default:true" json:"is_active"`
	DefaultCurrency string     `gorm:"size:10;default:'USD'" json:"default_currency"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
}

// TableName overrides the table name
func (User) TableName() string {
	return "users"
}
