package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"cryptopay_app/internal/handlers"
	"cryptopay_app/internal/ipn"
	authMiddleware "cryptopay_app/internal/middleware"
	"cryptopay_app/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run auto-migration
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	cache, err := services.NewRedisCache(os.Getenv("REDIS_URL"))
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer cache.Close()

	ipnSecret := os.Getenv("NOWPAYMENTS_IPN_SECRET")
	if ipnSecret == "" {
		log.Fatal("NOWPAYMENTS_IPN_SECRET not set")
	}

	// Wire the payment stack
	creds := services.CredentialsFromEnv()
	processor := services.NewNowPaymentsService()
	webhooks := services.NewWebhookService(db)
	payments := services.NewPaymentService(db, processor, webhooks, creds)
	pipeline := ipn.NewPipeline(ipn.NewVerifier(ipnSecret), webhooks)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewRequestValidator()
	e.HTTPErrorHandler = authMiddleware.CustomErrorHandler

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(pipeline)
	invoiceHandler := handlers.NewInvoiceHandler(db, payments)
	paymentHandler := handlers.NewPaymentHandler(db)
	withdrawalHandler := handlers.NewWithdrawalHandler(db, processor, creds)
	publicHandler := handlers.NewPublicHandler(db, payments, cache)

	// Processor callback. Authenticated by signature, not API key.
	e.POST("/webhooks/nowpayments", webhookHandler.HandleIPN)

	// Merchant API
	api := e.Group("/api")
	api.Use(authMiddleware.RequireAPIKey(db))
	api.POST("/invoices", invoiceHandler.CreateInvoice)
	api.GET("/invoices", invoiceHandler.ListInvoices)
	api.GET("/invoices/:uuid", invoiceHandler.GetInvoice)
	api.GET("/payments", paymentHandler.ListPayments)
	api.GET("/payments/:id", paymentHandler.GetPayment)
	api.GET("/balances", paymentHandler.ListBalances)
	api.POST("/withdrawals", withdrawalHandler.CreateWithdrawal)
	api.GET("/withdrawals", withdrawalHandler.ListWithdrawals)

	// Public checkout endpoints
	e.GET("/p/:uuid", publicHandler.GetInvoice)
	e.GET("/p/:uuid/status", publicHandler.GetInvoiceStatus)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
