package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/escrow-api/internal/auth"
	"github.com/ksred/escrow-api/internal/config"
	"github.com/ksred/escrow-api/internal/database"
	"github.com/ksred/escrow-api/internal/escrow"
	"github.com/ksred/escrow-api/internal/events"
	"github.com/ksred/escrow-api/internal/fees"
	"github.com/ksred/escrow-api/internal/gate"
	"github.com/ksred/escrow-api/internal/ledger"
	"github.com/ksred/escrow-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the escrow API server with graceful shutdown support
// It sets up all required services, database connections, and API routes
func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	authService.RegisterAccount(cfg.AdminAPIKey, cfg.AdminAPISecret, cfg.AdminAccount)
	if cfg.Env != "production" {
		// Register test party credentials
		authService.RegisterAccount(auth.TestInitiatorAPIKey, auth.TestInitiatorAPISecret, auth.TestInitiatorAccount)
		authService.RegisterAccount(auth.TestCounterpartyAPIKey, auth.TestCounterpartyAPISecret, auth.TestCounterpartyAccount)
	}

	ledgerDB := ledger.NewDatabase(db)
	ledgerHandlers := ledger.NewGinHandlers(ledgerDB)

	gateService := gate.NewService(db, ledgerDB)
	if err := gateService.Bootstrap(cfg.AdminAccount); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to bootstrap engine state")
	}
	gateHandlers := gate.NewGinHandlers(gateService)

	feesService := fees.NewService(db, ledgerDB, gateService, cfg.EliteCollection, cfg.RegularCollection)
	if err := feesService.Seed(cfg.EliteFeeRate, cfg.RegularFeeRate, cfg.NonHolderFeeRate); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to seed fee schedule")
	}
	feesHandlers := fees.NewGinHandlers(feesService)

	eventsHub := events.NewHub()

	escrowService := escrow.NewService(db, ledgerDB, feesService, gateService, eventsHub)
	escrowHandlers := escrow.NewGinHandlers(escrowService)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg, authHandlers, escrowHandlers, feesHandlers, gateHandlers, ledgerHandlers, eventsHub)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Trade routes: The escrow lifecycle, protected by JWT authentication
// - Admin routes: Pause toggle, fee schedule, fee withdrawal
// - Internal routes: Ledger bootstrap, protected by internal authentication
func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandlers *auth.GinHandlers,
	escrowHandlers *escrow.GinHandlers,
	feesHandlers *fees.GinHandlers,
	gateHandlers *gate.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	eventsHub *events.Hub,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Trade lifecycle routes
		trades := v1.Group("/trades")
		trades.Use(middleware.JWTAuth(cfg.JWTSecret))
		{
			trades.POST("", escrowHandlers.CreateTradeHandler())
			trades.GET("/:trade_id", escrowHandlers.GetTradeHandler())
			trades.POST("/:trade_id/accept", escrowHandlers.AcceptTradeHandler())
			trades.POST("/:trade_id/cancel", escrowHandlers.CancelTradeHandler())
		}

		// Fee schedule is readable by any authenticated caller
		feesGroup := v1.Group("/fees")
		feesGroup.Use(middleware.JWTAuth(cfg.JWTSecret))
		{
			feesGroup.GET("", feesHandlers.GetScheduleHandler())
		}

		// Notification stream for external observers
		ws := v1.Group("/ws")
		ws.Use(middleware.JWTAuth(cfg.JWTSecret))
		{
			ws.GET("/events", eventsHub.StreamHandler())
		}

		// Administrative routes; handlers verify the caller against the
		// administrator identity, and stay available while paused
		admin := v1.Group("/admin")
		admin.Use(middleware.JWTAuth(cfg.JWTSecret))
		{
			admin.POST("/pause", gateHandlers.PauseHandler())
			admin.POST("/unpause", gateHandlers.UnpauseHandler())
			admin.POST("/withdrawals", gateHandlers.WithdrawFeesHandler())
			admin.PUT("/fees/:tier", feesHandlers.SetFeeHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(cfg.JWTSecret))
		{
			internal.POST("/assets", ledgerHandlers.MintAssetHandler())
			internal.POST("/funds", ledgerHandlers.CreditFundsHandler())
		}
	}
}
