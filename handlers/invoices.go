package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/yourusername/invoicehub/services"
)

type InvoiceHandler struct {
	manager *services.InvoiceManager
}

func NewInvoiceHandler(manager *services.InvoiceManager) *InvoiceHandler {
	return &InvoiceHandler{manager: manager}
}

type ProductRequest struct {
	ID               uint                       `json:"id"`
	Title            string                     `json:"title" binding:"required"`
	Description      string                     `json:"description"`
	Price            decimal.Decimal            `json:"price"`
	Discount         decimal.Decimal            `json:"discount"`
	Currency         string                     `json:"currency" binding:"required"`
	Count            int                        `json:"count" binding:"required,gt=0"`
	Meta             map[string]interface{}     `json:"meta"`
	DistributionPlan map[string]decimal.Decimal `json:"distribution_plan"`
}

type CreateInvoiceRequest struct {
	Title    string                 `json:"title" binding:"required"`
	Currency string                 `json:"currency" binding:"required"`
	Meta     map[string]interface{} `json:"meta"`
	Products []ProductRequest       `json:"products"`
}

func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	invoice, err := h.manager.Create(userID.(uint), req.Currency, productInputs(req.Products), req.Title, req.Meta)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, invoice)
}

func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	invoice, err := h.manager.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

type UpdateInvoiceRequest struct {
	Title    *string                `json:"title"`
	UserID   *uint                  `json:"user_id"`
	Currency *string                `json:"currency"`
	Meta     map[string]interface{} `json:"meta"`
	Products []ProductRequest       `json:"products"`
}

func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	changes := services.InvoiceChanges{
		Title:    req.Title,
		UserID:   req.UserID,
		Currency: req.Currency,
		Meta:     req.Meta,
	}
	if req.Products != nil {
		changes.Products = productInputs(req.Products)
	}

	invoice, err := h.manager.Update(id, changes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.manager.Delete(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type MergeInvoicesRequest struct {
	InvoiceIDs []uint `json:"invoice_ids" binding:"required,min=2"`
	Title      string `json:"title" binding:"required"`
}

func (h *InvoiceHandler) MergeInvoices(c *gin.Context) {
	var req MergeInvoicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	invoice, err := h.manager.Merge(req.InvoiceIDs, req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (h *InvoiceHandler) AddProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product, err := h.manager.AddProduct(id, productInput(&req))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

type UpdateProductRequest struct {
	Title            *string                    `json:"title"`
	Description      *string                    `json:"description"`
	Price            *decimal.Decimal           `json:"price"`
	Discount         *decimal.Decimal           `json:"discount"`
	Currency         *string                    `json:"currency"`
	Count            *int                       `json:"count"`
	Meta             map[string]interface{}     `json:"meta"`
	DistributionPlan map[string]decimal.Decimal `json:"distribution_plan"`
}

func (h *InvoiceHandler) UpdateProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product, err := h.manager.UpdateProduct(id, services.ProductChanges{
		Title:            req.Title,
		Description:      req.Description,
		Price:            req.Price,
		Discount:         req.Discount,
		Currency:         req.Currency,
		Count:            req.Count,
		Meta:             req.Meta,
		DistributionPlan: req.DistributionPlan,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *InvoiceHandler) DeleteProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	invoice, err := h.manager.DeleteProduct(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

type AddPaymentRequest struct {
	Method   string                 `json:"method" binding:"required"`
	Currency string                 `json:"currency" binding:"required"`
	Amount   decimal.Decimal        `json:"amount"`
	Meta     map[string]interface{} `json:"meta"`
}

func (h *InvoiceHandler) AddPayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req AddPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payment, err := h.manager.AddPayment(id, req.Method, req.Currency, req.Amount, req.Meta)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

type ApprovePaymentRequest struct {
	TransferID string `json:"transfer_id" binding:"required"`
}

func (h *InvoiceHandler) ApprovePayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ApprovePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payment, err := h.manager.ApprovePayment(id, req.TransferID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *InvoiceHandler) RejectPayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	payment, err := h.manager.RejectPayment(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *InvoiceHandler) DistributeInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	invoice, err := h.manager.Distribute(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func productInputs(reqs []ProductRequest) []services.ProductInput {
	inputs := make([]services.ProductInput, len(reqs))
	for i := range reqs {
		inputs[i] = productInput(&reqs[i])
	}
	return inputs
}

func productInput(req *ProductRequest) services.ProductInput {
	return services.ProductInput{
		ID:               req.ID,
		Title:            req.Title,
		Description:      req.Description,
		Price:            req.Price,
		Discount:         req.Discount,
		Currency:         req.Currency,
		Count:            req.Count,
		Meta:             req.Meta,
		DistributionPlan: req.DistributionPlan,
	}
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	var mergeErr *services.MergeNotFoundError
	switch {
	case errors.As(err, &mergeErr):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "missing_ids": mergeErr.Missing})
	case errors.Is(err, services.ErrInvoiceNotFound),
		errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidInvoiceStatus),
		errors.Is(err, services.ErrInvalidPaymentStatus),
		errors.Is(err, services.ErrUserMismatch),
		errors.Is(err, services.ErrCurrencyMismatch),
		errors.Is(err, services.ErrOverPayment),
		errors.Is(err, services.ErrFinishedPayments):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &validationErr),
		errors.Is(err, services.ErrUnknownPaymentMethod):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
