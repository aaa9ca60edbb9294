package services

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyConverter converts an amount from one currency to another.
type CurrencyConverter interface {
	Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// RateTable is a CurrencyConverter over a fixed table of rates resolved once
// at construction. A rate keyed "USD:EUR" converts USD amounts into EUR; the
// inverse pair is derived when only one direction is configured.
type RateTable struct {
	rates map[string]decimal.Decimal
}

func NewRateTable(rates map[string]decimal.Decimal) *RateTable {
	table := make(map[string]decimal.Decimal, len(rates))
	for pair, rate := range rates {
		table[pair] = rate
	}
	return &RateTable{rates: table}
}

func (t *RateTable) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	if rate, ok := t.rates[ratePairKey(from, to)]; ok {
		return amount.Mul(rate), nil
	}
	if rate, ok := t.rates[ratePairKey(to, from)]; ok && !rate.IsZero() {
		return amount.Div(rate), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s to %s", ErrNoConversionRate, from, to)
}

func ratePairKey(from, to string) string {
	return from + ":" + to
}
