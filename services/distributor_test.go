package services

import (
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/invoicehub/models"
)

func TestDistributeProduct(t *testing.T) {
	db := setupTestDB(t)
	transfers := &mockTransferClient{}
	accounts := NewAccountLocator(map[string]string{"USD": "GEXPENSE-USD"})
	distributor := NewDistributor(accounts, transfers)

	newProduct := func(t *testing.T, plan models.DistributionPlan) *models.Product {
		t.Helper()
		product := &models.Product{
			InvoiceID:        1,
			Title:            "payout",
			Price:            decimal.NewFromInt(500),
			Currency:         "USD",
			Count:            3,
			DistributionPlan: plan,
		}
		require.NoError(t, db.Create(product).Error)
		return product
	}

	t.Run("Executes Plan And Records Result", func(t *testing.T) {
		product := newProduct(t, models.DistributionPlan{
			"GDEST-ONE": decimal.NewFromInt(40),
			"GDEST-TWO": decimal.NewFromInt(10),
		})
		require.NoError(t, distributor.DistributeProduct(db, product))

		require.Len(t, transfers.calls, 2)
		byDest := map[string]transferCall{}
		for _, call := range transfers.calls {
			byDest[call.To] = call
			assert.Equal(t, "GEXPENSE-USD", call.From)
			assert.Equal(t, DistributeTransactionType, call.Meta["type"])
			assert.Equal(t, strconv.FormatUint(uint64(product.ID), 10), call.Meta["product_id"])
		}
		// Per-unit cuts scaled by count.
		assert.True(t, byDest["GDEST-ONE"].Amount.Equal(decimal.NewFromInt(120)))
		assert.True(t, byDest["GDEST-TWO"].Amount.Equal(decimal.NewFromInt(30)))

		var stored models.Product
		require.NoError(t, db.First(&stored, product.ID).Error)
		assert.Len(t, stored.Distribution, 2)
		assert.NotEmpty(t, stored.Distribution["GDEST-ONE"])
	})

	t.Run("Already Distributed Is A NoOp", func(t *testing.T) {
		product := newProduct(t, models.DistributionPlan{"GDEST": decimal.NewFromInt(5)})
		product.Distribution = models.DistributionResult{"GDEST": "tx-earlier"}
		require.NoError(t, db.Save(product).Error)

		before := len(transfers.calls)
		require.NoError(t, distributor.DistributeProduct(db, product))
		assert.Len(t, transfers.calls, before)
	})

	t.Run("Empty Plan Is A NoOp", func(t *testing.T) {
		product := newProduct(t, nil)
		before := len(transfers.calls)
		require.NoError(t, distributor.DistributeProduct(db, product))
		assert.Len(t, transfers.calls, before)
		assert.False(t, product.Distributed())
	})

	t.Run("Unconfigured Currency", func(t *testing.T) {
		product := newProduct(t, models.DistributionPlan{"GDEST": decimal.NewFromInt(5)})
		product.Currency = "GBP"
		require.NoError(t, db.Save(product).Error)

		err := distributor.DistributeProduct(db, product)
		assert.ErrorIs(t, err, ErrExpenseAccountNotConfigured)
	})
}
