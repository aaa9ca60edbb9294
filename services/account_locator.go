package services

import (
	"fmt"
)

// AccountLocator resolves the currency-specific expense account distribution
// transfers are drawn from. The map is injected at construction; an unset
// currency is an explicit configuration error, never a silent default.
type AccountLocator struct {
	expenseAccounts map[string]string
}

func NewAccountLocator(expenseAccounts map[string]string) *AccountLocator {
	accounts := make(map[string]string, len(expenseAccounts))
	for currency, account := range expenseAccounts {
		accounts[currency] = account
	}
	return &AccountLocator{expenseAccounts: accounts}
}

func (l *AccountLocator) SetExpenseAccount(currency, account string) {
	l.expenseAccounts[currency] = account
}

func (l *AccountLocator) ExpenseAccount(currency string) (string, error) {
	account, ok := l.expenseAccounts[currency]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrExpenseAccountNotConfigured, currency)
	}
	return account, nil
}
