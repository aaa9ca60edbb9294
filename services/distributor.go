package services

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yourusername/invoicehub/ledger"
	"github.com/yourusername/invoicehub/models"
)

// DistributeTransactionType tags every ledger transfer executed by the
// distributor so payouts remain attributable in the ledger.
const DistributeTransactionType = "invoicehub.product.distribute"

// Distributor converts a settled product's per-unit distribution plan into
// executed ledger transfers, at most once per product. All transfers for one
// product plus the write of the distribution result run inside the caller's
// transaction, so a partial failure leaves the product eligible for retry.
// At-most-once is a database guarantee, not a ledger one: a retry after a
// partial failure re-sends the transfers that already reached the ledger.
type Distributor struct {
	accounts  *AccountLocator
	transfers ledger.TransferClient
}

func NewDistributor(accounts *AccountLocator, transfers ledger.TransferClient) *Distributor {
	return &Distributor{
		accounts:  accounts,
		transfers: transfers,
	}
}

// DistributeInvoice distributes every product of an invoice. Products whose
// distribution result is already recorded are skipped.
func (d *Distributor) DistributeInvoice(tx *gorm.DB, invoice *models.Invoice) error {
	var products []models.Product
	if err := tx.Where("invoice_id = ?", invoice.ID).Find(&products).Error; err != nil {
		return fmt.Errorf("failed to load products for distribution: %w", err)
	}
	for i := range products {
		if err := d.DistributeProduct(tx, &products[i]); err != nil {
			return err
		}
	}
	return nil
}

// DistributeProduct pays out one product's plan. The non-empty-result check
// is the sole idempotency guard; it runs inside the same transaction as the
// transfers and the result write, so concurrent settlement attempts cannot
// both pass it. The guard covers only the database side: ledger transfers
// submitted before a mid-plan failure are not rolled back with the
// transaction, and a retry sends those cuts again.
func (d *Distributor) DistributeProduct(tx *gorm.DB, product *models.Product) error {
	if product.Distributed() {
		return nil
	}
	if len(product.DistributionPlan) == 0 {
		return nil
	}

	fromAccount, err := d.accounts.ExpenseAccount(product.Currency)
	if err != nil {
		return err
	}

	count := decimal.NewFromInt(int64(product.Count))
	distribution := make(models.DistributionResult, len(product.DistributionPlan))
	for toAccount, cut := range product.DistributionPlan {
		transferID, err := d.transfers.Transfer(fromAccount, toAccount, cut.Mul(count), product.Currency, map[string]string{
			"type":       DistributeTransactionType,
			"product_id": strconv.FormatUint(uint64(product.ID), 10),
		}, true)
		if err != nil {
			return fmt.Errorf("failed to distribute product %d to account %s: %w", product.ID, toAccount, err)
		}
		distribution[toAccount] = transferID
	}

	product.Distribution = distribution
	if err := tx.Model(product).Update("distribution", distribution).Error; err != nil {
		return fmt.Errorf("failed to record distribution for product %d: %w", product.ID, err)
	}
	return nil
}
