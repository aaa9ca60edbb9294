package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yourusername/invoicehub/models"
	"github.com/yourusername/invoicehub/services"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Invoice{}, &models.Product{}, &models.Payment{}))
	return db
}

type mockTransferClient struct {
	transfers int
}

func (m *mockTransferClient) Transfer(from, to string, amount decimal.Decimal, currency string, meta map[string]string, commit bool) (string, error) {
	m.transfers++
	return fmt.Sprintf("tx-%d", m.transfers), nil
}

func setupRouter(t *testing.T) (*gin.Engine, *services.InvoiceManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	converter := services.NewRateTable(nil)
	accounts := services.NewAccountLocator(map[string]string{"USD": "GEXPENSE-USD"})
	distributor := services.NewDistributor(accounts, &mockTransferClient{})
	manager := services.NewInvoiceManager(db, converter, distributor, services.NewMethodRegistry())
	handler := NewInvoiceHandler(manager)

	router := gin.Default()
	router.Use(func(c *gin.Context) {
		c.Set("userID", uint(1))
		c.Next()
	})
	router.POST("/invoices", handler.CreateInvoice)
	router.GET("/invoices/:id", handler.GetInvoice)
	router.DELETE("/invoices/:id", handler.DeleteInvoice)
	router.POST("/invoices/merge", handler.MergeInvoices)
	router.POST("/invoices/:id/payments", handler.AddPayment)
	router.POST("/payments/:id/approve", handler.ApprovePayment)
	return router, manager
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, &buf)
	router.ServeHTTP(w, req)
	return w
}

func TestCreateInvoiceHandler(t *testing.T) {
	router, _ := setupRouter(t)

	t.Run("Valid Request", func(t *testing.T) {
		w := doJSON(router, "POST", "/invoices", CreateInvoiceRequest{
			Title:    "invoice one",
			Currency: "USD",
			Products: []ProductRequest{
				{Title: "two seats", Price: decimal.NewFromInt(125), Currency: "USD", Count: 2},
				{Title: "addon", Price: decimal.NewFromInt(153), Discount: decimal.NewFromInt(120), Currency: "USD", Count: 1},
			},
		})
		assert.Equal(t, http.StatusCreated, w.Code)

		var invoice models.Invoice
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &invoice))
		assert.Equal(t, uint(1), invoice.UserID)
		assert.True(t, invoice.Amount.Equal(decimal.NewFromInt(283)), "got %s", invoice.Amount)
	})

	t.Run("Invalid Count", func(t *testing.T) {
		w := doJSON(router, "POST", "/invoices", CreateInvoiceRequest{
			Title:    "bad",
			Currency: "USD",
			Products: []ProductRequest{
				{Title: "zero", Price: decimal.NewFromInt(10), Currency: "USD", Count: 0},
			},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetInvoiceHandler(t *testing.T) {
	router, manager := setupRouter(t)

	invoice, err := manager.Create(1, "USD", nil, "fetch me", nil)
	require.NoError(t, err)

	w := doJSON(router, "GET", fmt.Sprintf("/invoices/%d", invoice.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fetch me")

	w = doJSON(router, "GET", "/invoices/9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, "GET", "/invoices/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentHandlers(t *testing.T) {
	router, manager := setupRouter(t)

	invoice, err := manager.Create(1, "USD", []services.ProductInput{{
		Title:    "thing",
		Price:    decimal.NewFromInt(1000),
		Currency: "USD",
		Count:    1,
	}}, "payable", nil)
	require.NoError(t, err)

	w := doJSON(router, "POST", fmt.Sprintf("/invoices/%d/payments", invoice.ID), AddPaymentRequest{
		Method:   "card",
		Currency: "USD",
		Amount:   decimal.NewFromInt(1000),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var payment models.Payment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payment))
	assert.Equal(t, models.PaymentStatusPending, payment.Status)

	t.Run("Overpayment Conflicts", func(t *testing.T) {
		w := doJSON(router, "POST", fmt.Sprintf("/invoices/%d/payments", invoice.ID), AddPaymentRequest{
			Method:   "card",
			Currency: "USD",
			Amount:   decimal.NewFromInt(1),
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Approve Settles", func(t *testing.T) {
		w := doJSON(router, "POST", fmt.Sprintf("/payments/%d/approve", payment.ID), ApprovePaymentRequest{
			TransferID: "tx-ledger-1",
		})
		require.Equal(t, http.StatusOK, w.Code)

		settled, err := manager.Get(invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, models.InvoiceStatusPaid, settled.Status)
	})

	t.Run("Delete Paid Invoice Conflicts", func(t *testing.T) {
		w := doJSON(router, "DELETE", fmt.Sprintf("/invoices/%d", invoice.ID), nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestMergeInvoicesHandler(t *testing.T) {
	router, manager := setupRouter(t)

	first, err := manager.Create(1, "USD", []services.ProductInput{{
		Title: "a", Price: decimal.NewFromInt(10), Currency: "USD", Count: 1,
	}}, "first", nil)
	require.NoError(t, err)
	second, err := manager.Create(1, "USD", []services.ProductInput{{
		Title: "b", Price: decimal.NewFromInt(20), Currency: "USD", Count: 1,
	}}, "second", nil)
	require.NoError(t, err)

	w := doJSON(router, "POST", "/invoices/merge", MergeInvoicesRequest{
		InvoiceIDs: []uint{first.ID, second.ID},
		Title:      "merged",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var merged models.Invoice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &merged))
	assert.True(t, merged.Amount.Equal(decimal.NewFromInt(30)), "got %s", merged.Amount)

	t.Run("Missing Sources Are Reported", func(t *testing.T) {
		w := doJSON(router, "POST", "/invoices/merge", MergeInvoicesRequest{
			InvoiceIDs: []uint{merged.ID, 9999},
			Title:      "merged again",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "9999")
	})

	t.Run("Requires Two Ids", func(t *testing.T) {
		w := doJSON(router, "POST", "/invoices/merge", MergeInvoicesRequest{
			InvoiceIDs: []uint{merged.ID},
			Title:      "lonely",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
