package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/OpenBPLS/bpls/internal/application/model"
	"github.com/OpenBPLS/bpls/internal/application/router"
	"github.com/OpenBPLS/bpls/internal/application/service"
	"github.com/OpenBPLS/bpls/internal/auth"
	"github.com/OpenBPLS/bpls/internal/autosave"
	"github.com/OpenBPLS/bpls/internal/config"
	"github.com/OpenBPLS/bpls/internal/database"
	"github.com/OpenBPLS/bpls/internal/events"
	"github.com/OpenBPLS/bpls/internal/reports"
	"github.com/OpenBPLS/bpls/internal/uploads"
	"github.com/OpenBPLS/bpls/internal/wizard"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	slog.Info("configuration loaded successfully",
		"db_driver", cfg.Database.Driver,
		"db_host", cfg.Database.Host,
		"db_port", cfg.Database.Port,
		"db_name", cfg.Database.Name,
		"storage", cfg.Storage.Type,
		"redis_enabled", cfg.Redis.Addr != "",
		"kafka_enabled", len(cfg.Kafka.Brokers) > 0,
		"autosave_delay", cfg.Autosave.Delay,
	)

	slog.Info("CORS configuration",
		"allowed_origins", cfg.CORS.AllowedOrigins,
		"allowed_methods", cfg.CORS.AllowedMethods,
		"allowed_headers", cfg.CORS.AllowedHeaders,
		"allow_credentials", cfg.CORS.AllowCredentials,
		"max_age", cfg.CORS.MaxAge,
	)

	// Initialize database connection
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	// Perform health check
	if err := database.HealthCheck(db); err != nil {
		log.Fatalf("database health check failed: %v", err)
	}

	if cfg.Database.AutoMigrate {
		models := append(model.Models(), &auth.User{})
		if err := database.Migrate(db, models...); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
	}

	ctx := context.Background()

	// Auth
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	authService := auth.NewAuthService(db, tokens)
	if cfg.Auth.AdminEmail != "" && cfg.Auth.AdminPassword != "" {
		if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			log.Fatalf("failed to seed admin account: %v", err)
		}
	}

	// Redis backs the save lock and the login limiter when configured
	var (
		redisClient *redis.Client
		locker      autosave.Locker = autosave.NewLocalLocker()
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				slog.Error("failed to close redis client", "error", err)
			}
		}()
		locker = autosave.NewRedisLocker(redisClient, cfg.Redis.LockTTL)
		slog.Info("distributed save lock enabled", "addr", cfg.Redis.Addr)
	}

	publisher := events.NewPublisher(cfg.Kafka)
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Error("failed to close event publisher", "error", err)
		}
	}()

	// Uploads
	storage, err := uploads.NewStorageFromConfig(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("failed to initialize upload storage: %v", err)
	}
	uploadService := uploads.NewUploadService(storage, cfg.Storage.MaxUploadBytes)
	uploadHandler := uploads.NewHTTPHandler(uploadService)

	// Applications
	store := service.NewStore(db)
	sm := service.NewStatusMachine()
	reviewService := service.NewReviewService(store, sm, publisher)
	sessions := wizard.NewSessions(wizard.Deps{
		Gateway:     store,
		Submitter:   service.NewSubmissionService(store, sm, publisher),
		Profiles:    authService,
		Files:       uploadService,
		Coordinator: autosave.NewCoordinator(locker),
		Delay:       cfg.Autosave.Delay,
		IdleTTL:     cfg.Autosave.SessionIdleTTL,
	})
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sessions.Run(sweepCtx)

	loginLimit, err := auth.LoginRateLimiter(cfg.RateLimit.LoginPerMinute, redisClient)
	if err != nil {
		log.Fatalf("failed to create login rate limiter: %v", err)
	}

	// Set up HTTP routes
	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(corsConfig(cfg.CORS)))
	engine.Use(auth.Middleware(tokens))

	engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireAuth := auth.RequireAuth(cfg.Auth.SignInURL)
	api := engine.Group("/api")

	auth.NewHandler(authService).RegisterRoutes(api.Group("/auth"), requireAuth, loginLimit)

	uploadRoutes := api.Group("/uploads", requireAuth)
	uploadRoutes.POST("", uploadHandler.Upload)
	uploadRoutes.GET("/:key", uploadHandler.Download)

	applications := api.Group("/applications", requireAuth)
	router.NewApplicationRouter(service.NewApplicationService(store, uploadService), sessions, uploadHandler).RegisterRoutes(applications)
	router.NewWizardRouter(sessions, uploadHandler).RegisterRoutes(applications.Group("/:id/wizard"))

	admin := api.Group("/admin", requireAuth, auth.RequireAdmin())
	router.NewAdminRouter(reviewService, reports.NewService(reviewService)).RegisterRoutes(admin)

	// Set up graceful shutdown
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: engine,
	}

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		slog.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	// Wait for interrupt signal
	<-quit
	slog.Info("shutting down server...")

	// Create a context with timeout for graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown of HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	} else {
		slog.Info("server gracefully stopped")
	}

	// Save what is still waiting on a debounce before the store goes away
	stopSweep()
	slog.Info("flushing open wizard sessions...", "sessions", sessions.Len())
	sessions.CloseAll(shutdownCtx)

	slog.Info("server stopped")
}

func corsConfig(c config.CORSConfig) cors.Config {
	out := cors.Config{
		AllowMethods:     c.AllowedMethods,
		AllowHeaders:     c.AllowedHeaders,
		AllowCredentials: c.AllowCredentials,
		MaxAge:           time.Duration(c.MaxAge) * time.Second,
	}
	if slices.Contains(c.AllowedOrigins, "*") || len(c.AllowedOrigins) == 0 {
		out.AllowAllOrigins = true
	} else {
		out.AllowOrigins = c.AllowedOrigins
	}
	return out
}
