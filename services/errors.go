package services

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to callers unmodified. None are retried
// internally; they represent caller or configuration faults.
var (
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrInvalidInvoiceStatus = errors.New("invoice is not in the required status")
	ErrInvalidPaymentStatus = errors.New("payment is not pending")
	ErrUserMismatch         = errors.New("invoices belong to different users")
	ErrCurrencyMismatch     = errors.New("invoices are in different currencies")
	ErrOverPayment          = errors.New("payment exceeds the remaining invoice amount")
	ErrFinishedPayments     = errors.New("invoice has no remaining unpaid amount")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")

	ErrExpenseAccountNotConfigured = errors.New("no expense account configured for currency")
	ErrNoConversionRate            = errors.New("no conversion rate between currencies")
)

// ValidationError reports malformed input on a named field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// MergeNotFoundError lists the invoice ids a merge request referenced that do
// not exist.
type MergeNotFoundError struct {
	Missing []uint
}

func (e *MergeNotFoundError) Error() string {
	return fmt.Sprintf("invoices not found: %v", e.Missing)
}

func (e *MergeNotFoundError) Unwrap() error {
	return ErrInvoiceNotFound
}
