package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	pkgvalidator "github.com/cddm-gh/audio-sphere-switcher/pkg/validator"

	"github.com/cddm-gh/audio-sphere-switcher/internal/adapter/handler"
	"github.com/cddm-gh/audio-sphere-switcher/internal/adapter/repository"
	"github.com/cddm-gh/audio-sphere-switcher/internal/infrastructure/database"
	"github.com/cddm-gh/audio-sphere-switcher/internal/infrastructure/events"
	"github.com/cddm-gh/audio-sphere-switcher/internal/infrastructure/storage"
	"github.com/cddm-gh/audio-sphere-switcher/internal/usecase/pipeline"
	pkgai "github.com/cddm-gh/audio-sphere-switcher/pkg/ai"
	"github.com/cddm-gh/audio-sphere-switcher/pkg/config"
	"github.com/cddm-gh/audio-sphere-switcher/pkg/jwt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Echo instance
	e := echo.New()

	// Register validator for request validation
	e.Validator = pkgvalidator.New()

	e.HideBanner = true
	e.HidePort = false

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))

	// Recover from panics
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	log.Println("🔧 Initializing dependencies...")

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	// Run migrations only when explicitly enabled in config.
	// Production deployments should apply sql-migrate from CI/CD.
	if cfg.Database.AutoMigrate {
		if cfg.Server.Environment == "production" {
			log.Fatalf("AutoMigrate is enabled in production. Disable DB_AUTO_MIGRATE and manage schema with sql-migrate.")
		}
		log.Println("🔄 Applying schema migrations (development only) ...")
		if err := database.Migrate(db); err != nil {
			log.Fatalf("Failed to apply migrations: %v", err)
		}
	} else {
		log.Println("🔄 Skipping migrations; apply them with sql-migrate in CI/CD/production")
	}

	// Initialize Redis
	log.Println("📦 Connecting to Redis...")
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	pingCancel()

	// Initialize object storage
	log.Println("🪣 Connecting to object storage...")
	store, err := storage.NewMinIOClient(&cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}

	// Initialize repositories
	log.Println("⚙️  Initializing repositories...")
	ownerRepo := repository.NewOwnerScopedRepository(db)
	systemRepo := repository.NewSystemRepository(db)

	// Initialize provider clients
	log.Println("🤖 Initializing provider clients...")
	deepgramClient := pkgai.NewDeepgramClient(&cfg.Deepgram)
	groqClient := pkgai.NewGroqClient(&cfg.Groq)

	// Initialize the event bus for transcribed events
	bus := events.NewBus(redisClient, cfg.Redis.Stream, cfg.Redis.Group, logger)

	// Initialize the pipeline service
	log.Println("🎙️  Initializing pipeline service...")
	pipelineService := pipeline.NewService(
		ownerRepo,
		systemRepo,
		store,
		deepgramClient,
		groqClient,
		bus,
		cfg.Deepgram.CallbackURL,
		logger,
	)

	// Start summary workers on the event bus
	busCtx, busCancel := context.WithCancel(context.Background())
	defer busCancel()
	if err := bus.Run(busCtx, cfg.Redis.Workers, pipelineService.HandleTranscribedEvent); err != nil {
		log.Fatalf("Failed to start summary workers: %v", err)
	}
	log.Printf("👷 Summary workers running on stream %q", cfg.Redis.Stream)

	// Initialize JWT manager
	log.Println("🔑 Initializing JWT manager...")
	accessExpiry, err := time.ParseDuration(cfg.JWT.AccessExpiry)
	if err != nil {
		log.Fatalf("Invalid JWT_ACCESS_EXPIRY: %v", err)
	}
	jwtManager := jwt.NewManager(cfg.JWT.AccessSecret, accessExpiry)

	// Initialize handlers
	log.Println("🚀 Initializing handlers...")
	audioHandler := handler.NewAudio(pipelineService, cfg.Pipeline.DispatchURL, logger)
	transcriptionHandler := handler.NewTranscription(pipelineService, logger)
	webhookHandler := handler.NewTranscriptionWebhook(pipelineService, cfg.Deepgram.WebhookSecret, logger)
	summaryHandler := handler.NewSummary(pipelineService, logger)

	// Setup router with handlers
	log.Println("🛣️  Setting up routes...")
	router := handler.NewRouter(cfg, jwtManager, audioHandler, transcriptionHandler, webhookHandler, summaryHandler)
	router.Setup(e)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("🚀 Starting server on %s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		log.Printf("🔗 Health check: http://%s/health", addr)

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	busCancel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}
