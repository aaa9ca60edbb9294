package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateTableConvert(t *testing.T) {
	table := NewRateTable(map[string]decimal.Decimal{
		"USD:EUR": decimal.RequireFromString("0.5"),
	})

	t.Run("Same Currency Is Identity", func(t *testing.T) {
		got, err := table.Convert(decimal.NewFromInt(283), "USD", "USD")
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.NewFromInt(283)))
	})

	t.Run("Direct Rate", func(t *testing.T) {
		got, err := table.Convert(decimal.NewFromInt(100), "USD", "EUR")
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.NewFromInt(50)))
	})

	t.Run("Inverse Rate Is Derived", func(t *testing.T) {
		got, err := table.Convert(decimal.NewFromInt(50), "EUR", "USD")
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.NewFromInt(100)))
	})

	t.Run("Missing Pair", func(t *testing.T) {
		_, err := table.Convert(decimal.NewFromInt(10), "USD", "JPY")
		assert.ErrorIs(t, err, ErrNoConversionRate)
	})
}

func TestAccountLocator(t *testing.T) {
	locator := NewAccountLocator(map[string]string{"USD": "GEXPENSE-USD"})

	account, err := locator.ExpenseAccount("USD")
	require.NoError(t, err)
	assert.Equal(t, "GEXPENSE-USD", account)

	_, err = locator.ExpenseAccount("EUR")
	assert.ErrorIs(t, err, ErrExpenseAccountNotConfigured)

	locator.SetExpenseAccount("EUR", "GEXPENSE-EUR")
	account, err = locator.ExpenseAccount("EUR")
	require.NoError(t, err)
	assert.Equal(t, "GEXPENSE-EUR", account)
}

func TestMethodRegistry(t *testing.T) {
	registry := NewMethodRegistry()
	assert.NoError(t, registry.Validate("card"))
	assert.ErrorIs(t, registry.Validate("barter"), ErrUnknownPaymentMethod)

	registry.Register("barter")
	assert.NoError(t, registry.Validate("barter"))

	custom := NewMethodRegistry("invoice_credit")
	assert.NoError(t, custom.Validate("invoice_credit"))
	assert.ErrorIs(t, custom.Validate("card"), ErrUnknownPaymentMethod)
}
