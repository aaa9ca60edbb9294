package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpenseAccounts(t *testing.T) {
	accounts, err := parseExpenseAccounts("USD=GEXPENSE-USD; EUR=GEXPENSE-EUR")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"USD": "GEXPENSE-USD",
		"EUR": "GEXPENSE-EUR",
	}, accounts)

	accounts, err = parseExpenseAccounts("")
	require.NoError(t, err)
	assert.Empty(t, accounts)

	_, err = parseExpenseAccounts("USD")
	assert.Error(t, err)

	_, err = parseExpenseAccounts("=GACCOUNT")
	assert.Error(t, err)
}

func TestParseExchangeRates(t *testing.T) {
	rates, err := parseExchangeRates("USD:EUR=0.93;GBP:USD=1.27")
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.True(t, rates["USD:EUR"].Equal(decimal.RequireFromString("0.93")))
	assert.True(t, rates["GBP:USD"].Equal(decimal.RequireFromString("1.27")))

	_, err = parseExchangeRates("USDEUR=0.93")
	assert.Error(t, err)

	_, err = parseExchangeRates("USD:EUR=abc")
	assert.Error(t, err)
}
