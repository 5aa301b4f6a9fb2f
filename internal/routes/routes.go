// Package routes defines the API routing configuration.
// It sets up all HTTP routes and their corresponding handlers,
// including middleware and authentication requirements.
package routes

import (
	"time"

	"yawatu/internal/clock"
	"yawatu/internal/config"
	"yawatu/internal/handlers"
	"yawatu/internal/middleware"
	"yawatu/internal/models"
	"yawatu/internal/repositories"
	"yawatu/internal/services/engine"
	"yawatu/internal/services/gateway"
	"yawatu/internal/services/ledger"
	"yawatu/internal/services/limits"
	"yawatu/internal/services/notification"
	"yawatu/internal/services/risk"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SetupRoutes wires repositories, services and handlers onto the app and
// returns the engine for the background reconciliation loop.
func SetupRoutes(app *fiber.App, db *gorm.DB, redisClient *redis.Client) engine.Service {
	// Repositories
	ledgerRepo := repositories.NewLedgerRepository(db)
	cache := repositories.NewRedisCache(redisClient)

	// Services
	ledgerService := ledger.NewService(ledgerRepo, cache, ledger.NoopMetricsCollector{})

	limitLocation, err := time.LoadLocation(config.GetEnv("LIMIT_TIMEZONE", "Africa/Kampala"))
	if err != nil {
		limitLocation = time.UTC
	}
	profileSource := limits.NewCachedSource(limits.NewStaticSource(limits.DefaultProfiles()), cache)
	limitService := limits.NewService(ledgerRepo, profileSource, limitLocation)

	riskService := risk.NewService(ledgerRepo, risk.ConfigFromEnv(), limitLocation)

	gatewayClient := gateway.NewHTTPClient(gateway.ClientConfig{
		BaseURL:   config.GetEnv("GATEWAY_BASE_URL", "http://localhost:8080"),
		AccountNo: config.GetEnv("GATEWAY_ACCOUNT_NO", ""),
		APIKey:    config.GetEnv("GATEWAY_API_KEY", ""),
		Timeout:   config.GetDurationEnv("GATEWAY_TIMEOUT", 35*time.Second),
	})

	engineService := engine.NewService(
		ledgerRepo,
		ledgerService,
		limitService,
		riskService,
		gatewayClient,
		cache,
		notification.NewLogDispatcher(),
		clock.System(),
		engine.ConfigFromEnv(),
	)

	// Handlers
	walletHandler := handlers.NewWalletHandler(ledgerService)
	transactionHandler := handlers.NewTransactionHandler(engineService)
	adminHandler := handlers.NewAdminHandler(engineService, ledgerRepo)
	healthHandler := handlers.NewHealthHandler(db, redisClient)

	app.Get("/health", healthHandler.HealthCheck)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to Yawatu Wallet API",
			"version": "1.0.0",
			"docs":    "/api",
		})
	})

	api := app.Group("/api")

	authMiddleware := middleware.NewAuthMiddleware()
	protected := api.Use(authMiddleware.Handler)

	setupWalletRoutes(protected, walletHandler, transactionHandler)
	setupTransactionRoutes(protected, transactionHandler)
	setupAdminRoutes(app, authMiddleware, adminHandler)

	return engineService
}

func setupWalletRoutes(router fiber.Router, wh *handlers.WalletHandler, th *handlers.TransactionHandler) {
	wallet := router.Group("/wallet")
	wallet.Post("/", middleware.HasPermission(models.PermissionWalletWrite), wh.CreateWallet)
	wallet.Get("/", middleware.HasPermission(models.PermissionWalletRead), wh.GetWallet)
	wallet.Get("/balance", middleware.HasPermission(models.PermissionWalletRead), wh.GetBalance)

	wallet.Post("/deposit", middleware.HasPermission(models.PermissionTransactionWrite), th.Deposit)
	wallet.Post("/withdraw", middleware.HasPermission(models.PermissionTransactionWrite), th.Withdraw)
	wallet.Post("/transfer", middleware.HasPermission(models.PermissionTransactionWrite), th.Transfer)
}

func setupTransactionRoutes(router fiber.Router, h *handlers.TransactionHandler) {
	transactions := router.Group("/transactions")
	transactions.Get("/", middleware.HasPermission(models.PermissionTransactionRead), h.ListTransactions)
	transactions.Get("/:id", middleware.HasPermission(models.PermissionTransactionRead), h.GetTransaction)
	transactions.Post("/:id/confirm", middleware.HasPermission(models.PermissionTransactionWrite), h.ConfirmStepUp)
	transactions.Post("/:id/reconcile", middleware.HasPermission(models.PermissionTransactionWrite), h.Reconcile)
}

func setupAdminRoutes(app *fiber.App, authMiddleware *middleware.AuthMiddleware, h *handlers.AdminHandler) {
	admin := app.Group("/api/admin", authMiddleware.Handler, middleware.AdminAuthMiddleware)

	admin.Post("/transactions/:id/approve", middleware.HasPermission(models.PermissionWriteAdmin), h.ApproveTransaction)
	admin.Post("/transactions/:id/reject", middleware.HasPermission(models.PermissionWriteAdmin), h.RejectTransaction)
	admin.Post("/transactions/:id/reconcile", middleware.HasPermission(models.PermissionWriteAdmin), h.ReconcileTransaction)

	admin.Post("/wallets/:id/suspend", middleware.HasPermission(models.PermissionWriteAdmin), h.SuspendWallet)
	admin.Post("/wallets/:id/reinstate", middleware.HasPermission(models.PermissionWriteAdmin), h.ReinstateWallet)
}
