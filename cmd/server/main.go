package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rentalmarket/booking-backend/internal/config"
	"github.com/rentalmarket/booking-backend/internal/database"
	"github.com/rentalmarket/booking-backend/internal/handlers"
	"github.com/rentalmarket/booking-backend/internal/middleware"
	"github.com/rentalmarket/booking-backend/internal/services"
	"github.com/rentalmarket/booking-backend/pkg/jwt"
	"github.com/rentalmarket/booking-backend/pkg/marketplace"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting booking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// The audit trail is the only persisted state; without it no database is needed
	var db database.DB
	if cfg.Security.EnableAuditLog {
		logger.Info("Connecting to audit database...")
		db, err = database.NewConnection(cfg.Database)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := database.EnsureAuditSchema(db); err != nil {
			logger.Fatalf("Failed to prepare audit schema: %v", err)
		}
		logger.Info("Audit database ready")
	} else {
		logger.Info("Audit database disabled, audit events are logged only")
	}

	// Initialize services
	logger.Info("Initializing services...")
	auditService := services.NewAuditService(db, logger)

	marketplaceClient := marketplace.NewClient(marketplace.Config{
		BaseURL:                 cfg.Marketplace.BaseURL,
		ClientID:                cfg.Marketplace.ClientID,
		ClientSecret:            cfg.Marketplace.ClientSecret,
		IntegrationClientID:     cfg.Marketplace.IntegrationClientID,
		IntegrationClientSecret: cfg.Marketplace.IntegrationClientSecret,
		Timeout:                 cfg.Marketplace.HTTPTimeout,
	}, logger)

	slotFilter, err := services.NewTimeRangeSlotFilter(cfg.Availability)
	if err != nil {
		logger.Fatalf("Failed to initialize slot filter: %v", err)
	}
	formService := services.NewAvailabilityFormService(cfg.Availability, services.NewDayScheduleCodec())

	orchestrator := services.NewTransactionOrchestratorService(
		marketplaceClient,
		services.NewBookingTransitionResolver(services.ResolverConfig{
			RefundWindowDays: cfg.Booking.RefundWindowDays,
		}),
		services.NewFirstBookingFlagTracker(),
		services.NewLineItemService(services.LineItemConfig{
			FirstBookingDiscountPercent: cfg.Pricing.FirstBookingDiscountPercent,
		}),
		auditService,
		services.DefaultTransactionOrchestratorConfig(),
		logger,
	)

	// Audit retention job
	var cronService *services.CronService
	if db != nil {
		cronConfig := services.DefaultCronConfig()
		cronConfig.AuditRetention = time.Duration(cfg.Security.AuditRetentionDays) * 24 * time.Hour
		cronService = services.NewCronService(auditService, cronConfig, logger)
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
	}

	// Initialize handlers
	transactionHandler := handlers.NewTransactionHandler(orchestrator, logger)
	availabilityHandler := handlers.NewAvailabilityHandler(slotFilter, formService, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(requestLogger(logger))
	}

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db, cronService))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Availability plan editor (public, pure computation)
		availability := v1.Group("/availability")
		{
			availability.GET("/durations", availabilityHandler.GetDurations)
			availability.POST("/start-times", availabilityHandler.GetStartTimes)
			availability.GET("/end-time", availabilityHandler.GetEndTime)
			availability.POST("/plan", availabilityHandler.BuildPlan)
			availability.POST("/per-day-view", availabilityHandler.PerDayView)
			availability.POST("/form/duration", availabilityHandler.ChangeDuration)
		}

		// Transaction lifecycle (marketplace user token required)
		transactions := v1.Group("/transactions")
		transactions.Use(middleware.AuthMiddleware(jwt.NewInspector(0), logger))
		{
			transactions.POST("/cancel-by-customer", transactionHandler.CancelByCustomer)
			transactions.POST("/initiate", transactionHandler.Initiate)
			transactions.POST("/update-first-booking", transactionHandler.UpdateFirstBooking)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Marketplace.HTTPTimeout*3 + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if cronService != nil {
		cronService.Stop()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	// Let first booking markers already dispatched reach the marketplace
	logger.Info("Waiting for background profile updates...")
	orchestrator.Wait()

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Log incoming request
		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}).Debug("Incoming request")

		c.Next()

		latency := time.Since(start)

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			// Presence only, never the token
			"has_auth": c.GetHeader("Authorization") != "",
		}

		if userCtx, exists := middleware.GetUserContext(c); exists {
			fields["user_id"] = userCtx.UserID
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		if status >= 500 {
			entry.Error("Request completed with server error")
		} else if status >= 400 {
			entry.Warn("Request completed with client error")
		} else {
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint. db and cronService are nil when
// the audit database is disabled.
func healthCheckHandler(db database.DB, cronService *services.CronService) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := "disabled"
		if db != nil {
			dbStatus = "healthy"
			if err := db.Ping(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":   "unhealthy",
					"database": "unhealthy",
					"error":    err.Error(),
				})
				return
			}
		}

		body := gin.H{
			"status":    "healthy",
			"database":  dbStatus,
			"version":   version,
			"timestamp": time.Now().Unix(),
		}
		if cronService != nil {
			body["jobs"] = cronService.GetJobStatus()
		}

		c.JSON(http.StatusOK, body)
	}
}
