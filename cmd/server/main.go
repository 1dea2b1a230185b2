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
	"github.com/go-redis/redis/v8"
	"github.com/onlinebus/booking-gateway/internal/config"
	"github.com/onlinebus/booking-gateway/internal/database"
	"github.com/onlinebus/booking-gateway/internal/handlers"
	"github.com/onlinebus/booking-gateway/internal/middleware"
	"github.com/onlinebus/booking-gateway/internal/services"
	"github.com/onlinebus/booking-gateway/pkg/jwt"
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

	logger.Info("Starting booking gateway")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Payment audit ledger
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Per-tab handoff store
	logger.WithField("addr", cfg.Redis.Addr).Info("Connecting to redis...")
	redisClient, err := database.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	store := database.NewRedisHandoffStore(redisClient, cfg.Redis.SlotTTL)

	// Checkout events
	topicCtx, cancelTopic := context.WithTimeout(context.Background(), 10*time.Second)
	if err := services.EnsureTopic(topicCtx, cfg.Kafka, logger); err != nil {
		logger.WithError(err).Warn("Kafka topic bootstrap failed, events may be dropped by the broker")
	}
	cancelTopic()
	publisher := services.NewCheckoutEventPublisher(cfg.Kafka, logger)
	logger.WithField("enabled", publisher.Enabled()).Info("Checkout event publisher ready")

	// Initialize services
	logger.Info("Initializing services...")
	backend := services.NewBackendClient(cfg.Backend, logger)
	auditRepo := database.NewPaymentAuditRepository(db.DB, logger)
	audit := services.NewAuditService(auditRepo, logger)

	sessions := services.NewBookingSessionService(store, logger)
	seats := services.NewSeatSelectionService(backend, store, sessions, cfg.Booking.MaxSeats, logger)
	search := services.NewSearchService(backend, logger)
	orchestrator := services.NewPaymentOrchestratorService(backend, store, sessions, audit, publisher, cfg.Payment, logger)

	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	auth := services.NewAuthService(backend, jwtService, cfg.JWT, logger)
	logger.Info("Services initialized")

	// Initialize handlers
	secureCookie := cfg.Server.Environment == "production"
	h := handlers.Handlers{
		Auth:     handlers.NewAuthHandler(auth, secureCookie, logger),
		Search:   handlers.NewSearchHandler(search, seats, cfg.Booking.LoaderFloor, cfg.Booking.DetailsPath, logger),
		Booking:  handlers.NewBookingHandler(sessions, cfg.Booking.SearchPath, logger),
		Checkout: handlers.NewCheckoutHandler(orchestrator, cfg.Booking.LoaderFloor, cfg.Booking.DashboardPath, logger),
		User:     handlers.NewUserBookingHandler(backend, logger),
		Agent:    handlers.NewAgentHandler(backend, logger),
		Admin:    handlers.NewAdminHandler(backend, audit, logger),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     append(cfg.CORS.AllowedHeaders, middleware.TabIDHeader),
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.TabIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(db, redisClient))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.TabSession(), middleware.RequestContext())
	handlers.RegisterRoutes(v1, h, middleware.AuthMiddleware(jwtService, logger))

	// No write timeout: checkout await holds the request open until the widget answers
	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	// Ticket finalization runs after the response; let it finish before the store closes
	logger.Info("Waiting for pending ticket finalization...")
	orchestrator.Wait()

	if err := publisher.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close checkout event publisher")
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			"tab_id":     middleware.GetTabID(c),
		}

		if user, ok := middleware.GetUserContext(c); ok {
			fields["email"] = user.Email
			fields["roles"] = user.Roles
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

// healthCheckHandler reports the audit database and the handoff store
func healthCheckHandler(db database.DB, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus, redisStatus := "healthy", "healthy"
		status := http.StatusOK

		if err := db.Ping(); err != nil {
			dbStatus = "unhealthy"
			status = http.StatusServiceUnavailable
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			redisStatus = "unhealthy"
			status = http.StatusServiceUnavailable
		}

		overall := "healthy"
		if status != http.StatusOK {
			overall = "unhealthy"
		}
		c.JSON(status, gin.H{
			"status":    overall,
			"database":  dbStatus,
			"redis":     redisStatus,
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
