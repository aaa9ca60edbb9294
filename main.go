package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/invoicehub/config"
	"github.com/yourusername/invoicehub/handlers"
	"github.com/yourusername/invoicehub/ledger"
	"github.com/yourusername/invoicehub/middleware"
	"github.com/yourusername/invoicehub/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Core services
	converter := services.NewRateTable(cfg.ExchangeRates)
	accounts := services.NewAccountLocator(cfg.ExpenseAccounts)
	transfers := ledger.NewStellarClient(cfg.HorizonURL, cfg.NetworkPassphrase, cfg.AssetIssuer)
	distributor := services.NewDistributor(accounts, transfers)
	manager := services.NewInvoiceManager(db, converter, distributor, services.NewMethodRegistry())

	// Setup router
	router := gin.Default()

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "invoicehub-api",
		})
	})

	// Auth routes
	authHandler := handlers.NewAuthHandler(db, cfg)
	router.POST("/auth/refresh", authHandler.Refresh)

	// API routes
	invoiceHandler := handlers.NewInvoiceHandler(manager)
	api := router.Group("/api/v1")
	api.Use(middleware.JwtAuthMiddleware(cfg))
	{
		api.POST("/invoices", invoiceHandler.CreateInvoice)
		api.GET("/invoices/:id", invoiceHandler.GetInvoice)
		api.PUT("/invoices/:id", invoiceHandler.UpdateInvoice)
		api.DELETE("/invoices/:id", invoiceHandler.DeleteInvoice)
		api.POST("/invoices/merge", invoiceHandler.MergeInvoices)
		api.POST("/invoices/:id/products", invoiceHandler.AddProduct)
		api.POST("/invoices/:id/payments", invoiceHandler.AddPayment)
		api.POST("/invoices/:id/distribute", invoiceHandler.DistributeInvoice)

		api.PUT("/products/:id", invoiceHandler.UpdateProduct)
		api.DELETE("/products/:id", invoiceHandler.DeleteProduct)

		api.POST("/payments/:id/approve", invoiceHandler.ApprovePayment)
		api.POST("/payments/:id/reject", invoiceHandler.RejectPayment)
	}

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting invoicehub API server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
