package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/invoicehub/models"
)

// InvoiceManager is the single entry point for every invoice mutation. Each
// operation that touches more than one entity runs inside one transaction
// with the owning invoice row locked, so concurrent approvals of the same
// invoice serialize and settlement can only fire once.
type InvoiceManager struct {
	db          *gorm.DB
	converter   CurrencyConverter
	distributor *Distributor
	methods     *MethodRegistry
}

func NewInvoiceManager(db *gorm.DB, converter CurrencyConverter, distributor *Distributor, methods *MethodRegistry) *InvoiceManager {
	return &InvoiceManager{
		db:          db,
		converter:   converter,
		distributor: distributor,
		methods:     methods,
	}
}

// ProductInput carries the fields of a line item being created, or replacing
// an existing one when ID is set.
type ProductInput struct {
	ID               uint
	Title            string
	Description      string
	Price            decimal.Decimal
	Discount         decimal.Decimal
	Currency         string
	Count            int
	Meta             models.JSONMap
	DistributionPlan models.DistributionPlan
}

// InvoiceChanges holds the partial update applied by Update. Nil pointers
// leave the field untouched; a nil Products slice leaves the product set
// untouched, while a non-nil one is reconciled against the stored set.
type InvoiceChanges struct {
	Title    *string
	UserID   *uint
	Currency *string
	Meta     models.JSONMap
	Products []ProductInput
}

// ProductChanges holds the partial update applied by UpdateProduct.
type ProductChanges struct {
	Title            *string
	Description      *string
	Price            *decimal.Decimal
	Discount         *decimal.Decimal
	Currency         *string
	Count            *int
	Meta             models.JSONMap
	DistributionPlan models.DistributionPlan
}

// Create builds an invoice with its line items and persists it unpaid, with
// amount set to the currency-converted sum of the items' totals.
func (m *InvoiceManager) Create(userID uint, currency string, products []ProductInput, title string, meta models.JSONMap) (*models.Invoice, error) {
	for i := range products {
		if err := validateProductInput(&products[i]); err != nil {
			return nil, err
		}
	}

	invoice := &models.Invoice{
		Title:    title,
		UserID:   userID,
		Currency: currency,
		Status:   models.InvoiceStatusUnpaid,
		Meta:     meta,
	}
	err := m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(invoice).Error; err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		for i := range products {
			record := productFromInput(&products[i], invoice.ID)
			if err := tx.Create(record).Error; err != nil {
				return fmt.Errorf("failed to create product: %w", err)
			}
			invoice.Products = append(invoice.Products, *record)
		}
		return m.recalculateAmount(tx, invoice)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// Get loads an invoice with its products and payments.
func (m *InvoiceManager) Get(invoiceID uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := m.db.Preload("Products").Preload("Payments").First(&invoice, invoiceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrInvoiceNotFound, invoiceID)
		}
		return nil, err
	}
	return &invoice, nil
}

// Delete removes an unpaid invoice together with its products and payments.
// The cascade is explicit so all three deletes share one transaction.
func (m *InvoiceManager) Delete(invoiceID uint) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		invoice, err := m.loadInvoice(tx, invoiceID)
		if err != nil {
			return err
		}
		if err := requireUnpaid(invoice); err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&models.Payment{}).Error; err != nil {
			return fmt.Errorf("failed to delete payments: %w", err)
		}
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&models.Product{}).Error; err != nil {
			return fmt.Errorf("failed to delete products: %w", err)
		}
		if err := tx.Delete(invoice).Error; err != nil {
			return fmt.Errorf("failed to delete invoice: %w", err)
		}
		return nil
	})
}

// Update applies scalar changes and, when a product set is supplied,
// reconciles it: items with a known id are replaced in place, items without
// an id are created, and stored items absent from the set are deleted. The
// invoice amount is recomputed afterwards and settlement re-evaluated, since
// an update can leave a zero remaining amount.
func (m *InvoiceManager) Update(invoiceID uint, changes InvoiceChanges) (*models.Invoice, error) {
	var invoice *models.Invoice
	err := m.db.Transaction(func(tx *gorm.DB) error {
		var err error
		invoice, err = m.loadInvoice(tx, invoiceID)
		if err != nil {
			return err
		}
		if err := requireUnpaid(invoice); err != nil {
			return err
		}
		if changes.Title != nil {
			invoice.Title = *changes.Title
		}
		if changes.UserID != nil {
			invoice.UserID = *changes.UserID
		}
		if changes.Currency != nil {
			invoice.Currency = *changes.Currency
		}
		if changes.Meta != nil {
			invoice.Meta = changes.Meta
		}
		if err := tx.Save(invoice).Error; err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		if changes.Products != nil {
			if err := m.reconcileProducts(tx, invoice, changes.Products); err != nil {
				return err
			}
		}
		if err := m.recalculateAmount(tx, invoice); err != nil {
			return err
		}
		return m.checkIfJustPaid(tx, invoice)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// AddProduct appends a line item to an unpaid invoice.
func (m *InvoiceManager) AddProduct(invoiceID uint, input ProductInput) (*models.Product, error) {
	if err := validateProductInput(&input); err != nil {
		return nil, err
	}
	var product *models.Product
	err := m.db.Transaction(func(tx *gorm.DB) error {
		invoice, err := m.loadInvoice(tx, invoiceID)
		if err != nil {
			return err
		}
		if err := requireUnpaid(invoice); err != nil {
			return err
		}
		product = productFromInput(&input, invoice.ID)
		if err := tx.Create(product).Error; err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		if err := m.recalculateAmount(tx, invoice); err != nil {
			return err
		}
		return m.checkIfJustPaid(tx, invoice)
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct applies changes to a line item of an unpaid invoice and
// recomputes the owning invoice's amount.
func (m *InvoiceManager) UpdateProduct(productID uint, changes ProductChanges) (*models.Product, error) {
	var product models.Product
	err := m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %d", ErrProductNotFound, productID)
			}
			return err
		}
		invoice, err := m.loadInvoice(tx, product.InvoiceID)
		if err != nil {
			return err
		}
		if err := requireUnpaid(invoice); err != nil {
			return err
		}
		if changes.Title != nil {
			product.Title = *changes.Title
		}
		if changes.Description != nil {
			product.Description = *changes.Description
		}
		if changes.Price != nil {
			product.Price = *changes.Price
		}
		if changes.Discount != nil {
			product.Discount = *changes.Discount
		}
		if changes.Currency != nil {
			product.Currency = *changes.Currency
		}
		if changes.Count != nil {
			product.Count = *changes.Count
		}
		if changes.Meta != nil {
			product.Meta = changes.Meta
		}
		if changes.DistributionPlan != nil {
			product.DistributionPlan = changes.DistributionPlan
		}
		if err := validateProduct(&product); err != nil {
			return err
		}
		if err := tx.Save(&product).Error; err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		if err := m.recalculateAmount(tx, invoice); err != nil {
			return err
		}
		return m.checkIfJustPaid(tx, invoice)
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct removes a line item from an unpaid invoice and returns the
// invoice with its recomputed amount.
func (m *InvoiceManager) DeleteProduct(productID uint) (*models.Invoice, error) {
	var invoice *models.Invoice
	err := m.db.Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %d", ErrProductNotFound, productID)
			}
			return err
		}
		var err error
		invoice, err = m.loadInvoice(tx, product.InvoiceID)
		if err != nil {
			return err
		}
		if err := requireUnpaid(invoice); err != nil {
			return err
		}
		if err := tx.Delete(&product).Error; err != nil {
			return fmt.Errorf("failed to delete product: %w", err)
		}
		if err := m.recalculateAmount(tx, invoice); err != nil {
			return err
		}
		return m.checkIfJustPaid(tx, invoice)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// Merge combines two or more unpaid invoices of one user in one currency
// into a fresh invoice. Products and payments are re-parented onto the new
// invoice; each source invoice's meta is preserved under its id. The sources
// are left empty but not deleted.
func (m *InvoiceManager) Merge(invoiceIDs []uint, title string) (*models.Invoice, error) {
	if len(invoiceIDs) < 2 {
		return nil, &ValidationError{Field: "invoice_ids", Message: "at least two invoices are required"}
	}
	seen := make(map[uint]bool, len(invoiceIDs))
	for _, id := range invoiceIDs {
		if seen[id] {
			return nil, &ValidationError{Field: "invoice_ids", Message: "duplicate invoice id"}
		}
		seen[id] = true
	}
	merged := &models.Invoice{
		Title:  title,
		Status: models.InvoiceStatusUnpaid,
	}
	err := m.db.Transaction(func(tx *gorm.DB) error {
		var sources []models.Invoice
		if err := lockForUpdate(tx).Where("id IN ?", invoiceIDs).Find(&sources).Error; err != nil {
			return fmt.Errorf("failed to load invoices: %w", err)
		}
		if len(sources) != len(invoiceIDs) {
			found := make(map[uint]bool, len(sources))
			for _, src := range sources {
				found[src.ID] = true
			}
			var missing []uint
			for _, id := range invoiceIDs {
				if !found[id] {
					missing = append(missing, id)
				}
			}
			return &MergeNotFoundError{Missing: missing}
		}

		first := &sources[0]
		meta := models.JSONMap{}
		for i := range sources {
			src := &sources[i]
			if err := requireUnpaid(src); err != nil {
				return err
			}
			if src.UserID != first.UserID {
				return ErrUserMismatch
			}
			if src.Currency != first.Currency {
				return ErrCurrencyMismatch
			}
			meta[strconv.FormatUint(uint64(src.ID), 10)] = src.Meta
		}

		merged.UserID = first.UserID
		merged.Currency = first.Currency
		merged.Meta = meta
		if err := tx.Create(merged).Error; err != nil {
			return fmt.Errorf("failed to create merged invoice: %w", err)
		}
		err := tx.Model(&models.Product{}).
			Where("invoice_id IN ?", invoiceIDs).
			Update("invoice_id", merged.ID).Error
		if err != nil {
			return fmt.Errorf("failed to re-parent products: %w", err)
		}
		err = tx.Model(&models.Payment{}).
			Where("invoice_id IN ?", invoiceIDs).
			Update("invoice_id", merged.ID).Error
		if err != nil {
			return fmt.Errorf("failed to re-parent payments: %w", err)
		}
		if err := m.recalculateAmount(tx, merged); err != nil {
			return err
		}
		// Merged payments may already cover the merged amount.
		return m.checkIfJustPaid(tx, merged)
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// AddPayment records a pending payment against an unpaid invoice. The
// requested amount, converted into the invoice currency, must fit into the
// remaining amount with pending payments counted, so concurrent claims
// cannot oversubscribe the invoice.
func (m *InvoiceManager) AddPayment(invoiceID uint, method, currency string, amount decimal.Decimal, meta models.JSONMap) (*models.Payment, error) {
	if err := m.methods.Validate(method); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Message: "must be positive"}
	}
	var payment *models.Payment
	err := m.db.Transaction(func(tx *gorm.DB) error {
		invoice, err := m.loadInvoice(tx, invoiceID)
		if err != nil {
			return err
		}
		if err := requireUnpaid(invoice); err != nil {
			return err
		}
		paid, err := m.paidAmount(tx, invoice, true)
		if err != nil {
			return err
		}
		remaining := invoice.Amount.Sub(paid)
		if !remaining.IsPositive() {
			return ErrFinishedPayments
		}
		converted, err := m.converter.Convert(amount, currency, invoice.Currency)
		if err != nil {
			return err
		}
		if converted.GreaterThan(remaining) {
			return ErrOverPayment
		}
		payment = &models.Payment{
			InvoiceID: invoice.ID,
			Method:    method,
			Currency:  currency,
			Amount:    amount,
			Meta:      meta,
			Status:    models.PaymentStatusPending,
		}
		if err := tx.Create(payment).Error; err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ApprovePayment resolves a pending payment as approved, attaches the ledger
// transfer that settled it, and re-evaluates the invoice for settlement.
func (m *InvoiceManager) ApprovePayment(paymentID uint, transferID string) (*models.Payment, error) {
	var payment models.Payment
	err := m.db.Transaction(func(tx *gorm.DB) error {
		invoice, err := m.lockPaymentInvoice(tx, paymentID, &payment)
		if err != nil {
			return err
		}
		if !payment.IsPending() {
			return ErrInvalidPaymentStatus
		}
		payment.Status = models.PaymentStatusApproved
		payment.TransferID = transferID
		if err := tx.Save(&payment).Error; err != nil {
			return fmt.Errorf("failed to approve payment: %w", err)
		}
		return m.checkIfJustPaid(tx, invoice)
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// RejectPayment resolves a pending payment as rejected. Rejected payments
// never count toward any amount, so no recomputation is needed.
func (m *InvoiceManager) RejectPayment(paymentID uint) (*models.Payment, error) {
	var payment models.Payment
	err := m.db.Transaction(func(tx *gorm.DB) error {
		if _, err := m.lockPaymentInvoice(tx, paymentID, &payment); err != nil {
			return err
		}
		if !payment.IsPending() {
			return ErrInvalidPaymentStatus
		}
		payment.Status = models.PaymentStatusRejected
		if err := tx.Save(&payment).Error; err != nil {
			return fmt.Errorf("failed to reject payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Distribute re-attempts revenue distribution for a paid invoice. Products
// already distributed are skipped, so retrying after a collaborator failure
// is safe.
func (m *InvoiceManager) Distribute(invoiceID uint) (*models.Invoice, error) {
	var invoice *models.Invoice
	err := m.db.Transaction(func(tx *gorm.DB) error {
		var err error
		invoice, err = m.loadInvoice(tx, invoiceID)
		if err != nil {
			return err
		}
		if !invoice.IsPaid() {
			return ErrInvalidInvoiceStatus
		}
		return m.distributor.DistributeInvoice(tx, invoice)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// PaidAmount is the converted sum of approved payments, plus pending ones
// when includePending is set.
func (m *InvoiceManager) PaidAmount(invoice *models.Invoice, includePending bool) (decimal.Decimal, error) {
	return m.paidAmount(m.db, invoice, includePending)
}

// UnpaidAmount is the invoice amount minus PaidAmount.
func (m *InvoiceManager) UnpaidAmount(invoice *models.Invoice, includePending bool) (decimal.Decimal, error) {
	paid, err := m.paidAmount(m.db, invoice, includePending)
	if err != nil {
		return decimal.Zero, err
	}
	return invoice.Amount.Sub(paid), nil
}

// checkIfJustPaid flips an unpaid invoice to paid once approved payments
// cover its amount, stamps the paid time, and distributes every product.
// Coverage is remaining <= 0, not exactly zero: shrinking a product after a
// payment was taken can drive the remaining amount negative, and the invoice
// must still settle. The one-way unpaid->paid transition makes the check
// idempotent: it never runs twice for the same settlement.
func (m *InvoiceManager) checkIfJustPaid(tx *gorm.DB, invoice *models.Invoice) error {
	if invoice.Status != models.InvoiceStatusUnpaid {
		return nil
	}
	paid, err := m.paidAmount(tx, invoice, false)
	if err != nil {
		return err
	}
	if invoice.Amount.Sub(paid).IsPositive() {
		return nil
	}
	now := time.Now()
	invoice.Status = models.InvoiceStatusPaid
	invoice.PaidAt = &now
	if err := tx.Save(invoice).Error; err != nil {
		return fmt.Errorf("failed to mark invoice paid: %w", err)
	}
	return m.distributor.DistributeInvoice(tx, invoice)
}

// recalculateAmount fully recomputes the invoice amount from its stored
// products. Full replacement avoids drift from partial updates.
func (m *InvoiceManager) recalculateAmount(tx *gorm.DB, invoice *models.Invoice) error {
	var products []models.Product
	if err := tx.Where("invoice_id = ?", invoice.ID).Find(&products).Error; err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}
	total := decimal.Zero
	for i := range products {
		converted, err := m.converter.Convert(products[i].TotalAmount(), products[i].Currency, invoice.Currency)
		if err != nil {
			return err
		}
		total = total.Add(converted)
	}
	invoice.Amount = total
	if err := tx.Model(invoice).Update("amount", total).Error; err != nil {
		return fmt.Errorf("failed to store invoice amount: %w", err)
	}
	return nil
}

func (m *InvoiceManager) paidAmount(tx *gorm.DB, invoice *models.Invoice, includePending bool) (decimal.Decimal, error) {
	var payments []models.Payment
	if err := tx.Where("invoice_id = ?", invoice.ID).Find(&payments).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to load payments: %w", err)
	}
	total := decimal.Zero
	for i := range payments {
		p := &payments[i]
		if p.Status != models.PaymentStatusApproved && !(includePending && p.Status == models.PaymentStatusPending) {
			continue
		}
		converted, err := m.converter.Convert(p.Amount, p.Currency, invoice.Currency)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(converted)
	}
	return total, nil
}

// reconcileProducts applies a full product set: stored products absent from
// the set are deleted, products with ids are replaced, the rest are created.
func (m *InvoiceManager) reconcileProducts(tx *gorm.DB, invoice *models.Invoice, inputs []ProductInput) error {
	var keepIDs []uint
	for i := range inputs {
		if inputs[i].ID != 0 {
			keepIDs = append(keepIDs, inputs[i].ID)
		}
	}
	removal := tx.Where("invoice_id = ?", invoice.ID)
	if len(keepIDs) > 0 {
		removal = removal.Where("id NOT IN ?", keepIDs)
	}
	if err := removal.Delete(&models.Product{}).Error; err != nil {
		return fmt.Errorf("failed to delete removed products: %w", err)
	}

	for i := range inputs {
		input := &inputs[i]
		if err := validateProductInput(input); err != nil {
			return err
		}
		if input.ID == 0 {
			if err := tx.Create(productFromInput(input, invoice.ID)).Error; err != nil {
				return fmt.Errorf("failed to create product: %w", err)
			}
			continue
		}
		var product models.Product
		err := tx.Where("invoice_id = ?", invoice.ID).First(&product, input.ID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %d", ErrProductNotFound, input.ID)
			}
			return err
		}
		product.Title = input.Title
		product.Description = input.Description
		product.Price = input.Price
		product.Discount = input.Discount
		product.Currency = input.Currency
		product.Count = input.Count
		product.Meta = input.Meta
		product.DistributionPlan = input.DistributionPlan
		if err := tx.Save(&product).Error; err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
	}
	return nil
}

// lockPaymentInvoice loads a payment's owning invoice under the row lock,
// then re-reads the payment. Payment resolutions serialize on the invoice
// lock, so the status check that follows acts on the state a concurrent
// resolution left behind, never on a stale pre-lock read.
func (m *InvoiceManager) lockPaymentInvoice(tx *gorm.DB, paymentID uint, payment *models.Payment) (*models.Invoice, error) {
	if err := tx.First(payment, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrPaymentNotFound, paymentID)
		}
		return nil, err
	}
	invoice, err := m.loadInvoice(tx, payment.InvoiceID)
	if err != nil {
		return nil, err
	}
	if err := tx.First(payment, paymentID).Error; err != nil {
		return nil, err
	}
	return invoice, nil
}

func (m *InvoiceManager) loadInvoice(tx *gorm.DB, invoiceID uint) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := lockForUpdate(tx).First(&invoice, invoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrInvoiceNotFound, invoiceID)
		}
		return nil, err
	}
	return &invoice, nil
}

// lockForUpdate takes a row lock on postgres. SQLite serializes writers
// natively and rejects the FOR UPDATE syntax.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func requireUnpaid(invoice *models.Invoice) error {
	if invoice.Status != models.InvoiceStatusUnpaid {
		return fmt.Errorf("%w: invoice %d is %s", ErrInvalidInvoiceStatus, invoice.ID, invoice.Status)
	}
	return nil
}

func productFromInput(input *ProductInput, invoiceID uint) *models.Product {
	return &models.Product{
		InvoiceID:        invoiceID,
		Title:            input.Title,
		Description:      input.Description,
		Price:            input.Price,
		Discount:         input.Discount,
		Currency:         input.Currency,
		Count:            input.Count,
		Meta:             input.Meta,
		DistributionPlan: input.DistributionPlan,
	}
}

func validateProductInput(input *ProductInput) error {
	if input.Title == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}
	if input.Currency == "" {
		return &ValidationError{Field: "currency", Message: "is required"}
	}
	if input.Count <= 0 {
		return &ValidationError{Field: "count", Message: "must be positive"}
	}
	if input.Price.IsNegative() {
		return &ValidationError{Field: "price", Message: "must not be negative"}
	}
	if input.Discount.IsNegative() {
		return &ValidationError{Field: "discount", Message: "must not be negative"}
	}
	return nil
}

func validateProduct(product *models.Product) error {
	if product.Count <= 0 {
		return &ValidationError{Field: "count", Message: "must be positive"}
	}
	if product.Price.IsNegative() {
		return &ValidationError{Field: "price", Message: "must not be negative"}
	}
	if product.Discount.IsNegative() {
		return &ValidationError{Field: "discount", Message: "must not be negative"}
	}
	return nil
}
