package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yourusername/invoicehub/models"
)

type Config struct {
	Port              string
	DatabaseURL       string
	JWTSecret         string
	JWTRefreshSecret  string
	HorizonURL        string
	NetworkPassphrase string
	AssetIssuer       string
	// ExpenseAccounts maps a currency code to the ledger account revenue
	// distribution draws from, e.g. "USD=GABC...;EUR=GDEF..."
	ExpenseAccounts map[string]string
	// ExchangeRates maps currency pairs to fixed rates,
	// e.g. "USD:EUR=0.93;GBP:USD=1.27"
	ExchangeRates map[string]decimal.Decimal
}

func LoadConfig() (*Config, error) {
	godotenv.Load()

	expenseAccounts, err := parseExpenseAccounts(os.Getenv("EXPENSE_ACCOUNTS"))
	if err != nil {
		return nil, err
	}
	exchangeRates, err := parseExchangeRates(os.Getenv("EXCHANGE_RATES"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:              os.Getenv("PORT"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		JWTRefreshSecret:  os.Getenv("JWT_REFRESH_SECRET"),
		HorizonURL:        getEnvOrDefault("HORIZON_URL", "https://horizon-testnet.stellar.org"),
		NetworkPassphrase: getEnvOrDefault("NETWORK_PASSPHRASE", "Test SDF Network ; September 2015"),
		AssetIssuer:       os.Getenv("ASSET_ISSUER"),
		ExpenseAccounts:   expenseAccounts,
		ExchangeRates:     exchangeRates,
	}, nil
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Invoice{}, &models.Product{}, &models.Payment{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func parseExpenseAccounts(raw string) (map[string]string, error) {
	accounts := make(map[string]string)
	for _, entry := range splitEntries(raw) {
		currency, account, ok := strings.Cut(entry, "=")
		if !ok || currency == "" || account == "" {
			return nil, fmt.Errorf("malformed EXPENSE_ACCOUNTS entry %q", entry)
		}
		accounts[currency] = account
	}
	return accounts, nil
}

func parseExchangeRates(raw string) (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal)
	for _, entry := range splitEntries(raw) {
		pair, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.Contains(pair, ":") {
			return nil, fmt.Errorf("malformed EXCHANGE_RATES entry %q", entry)
		}
		rate, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("malformed EXCHANGE_RATES rate %q: %w", value, err)
		}
		rates[pair] = rate
	}
	return rates, nil
}

func splitEntries(raw string) []string {
	var entries []string
	for _, entry := range strings.Split(raw, ";") {
		if entry = strings.TrimSpace(entry); entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
