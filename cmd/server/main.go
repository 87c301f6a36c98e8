package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/blob"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/cache"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/config"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/database"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/handler"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/jobs"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/metrics"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/middleware"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/repository"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/schema"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/service"
	"github.com/thenfour/CafeMarcheDB-sub005/migrations"
)

func main() {
	// Initialize structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize database connection
	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
	})

	ctx := context.Background()
	if err := db.Connect(ctx); err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	slog.Info("connected to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Database),
	)

	if cfg.Database.AutoMigrate {
		if err := migrations.Apply(ctx, db); err != nil {
			slog.Error("failed to apply migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	if cfg.Database.Seed {
		if err := migrations.Seed(ctx, db); err != nil {
			slog.Error("failed to load reference data", slog.String("error", err.Error()))
			os.Exit(1)
		}
		slog.Info("reference data loaded")
	}

	// File content storage
	blobs, err := blob.Open(ctx, blob.Config{
		Driver: blob.Driver(cfg.Blob.Driver),
		FSRoot: cfg.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:          cfg.Blob.S3Bucket,
			Region:          cfg.Blob.S3Region,
			Endpoint:        cfg.Blob.S3Endpoint,
			PathStyle:       cfg.Blob.S3PathStyle,
			AccessKeyID:     cfg.Blob.S3AccessKeyID,
			SecretAccessKey: cfg.Blob.S3SecretKey,
		},
	})
	if err != nil {
		slog.Error("failed to open blob store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("blob store ready", slog.String("driver", cfg.Blob.Driver))

	// Shared cache: Redis when configured, otherwise in process
	var sharedCache cache.Cache = cache.NewMemory()
	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddr,
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			Namespace: cfg.Cache.Namespace,
		})
		if err != nil {
			slog.Error("failed to connect to redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() { _ = rc.Close() }()
		sharedCache = rc
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	registry := schema.New()

	// Initialize repositories
	tableRepo := repository.NewTableRepository(db)
	assocRepo := repository.NewAssociationRepository(db)
	userRepo := repository.NewUserRepository(db)
	fileRepo := repository.NewFileRepository(db)
	linkRepo := repository.NewCustomLinkRepository(db)

	// Initialize services
	tableService := service.NewTableService(service.TableServiceConfig{
		Registry:     registry,
		Rows:         tableRepo,
		Associations: assocRepo,
		Cache:        sharedCache,
		OptionsTTL:   cfg.Cache.OptionsTTL,
		Metrics:      m,
	})
	principalService := service.NewPrincipalService(service.PrincipalServiceConfig{
		Repo:  userRepo,
		Cache: sharedCache,
		TTL:   cfg.Cache.PrincipalTTL,
	})
	fileService, err := service.NewFileService(service.FileServiceConfig{
		Files:           fileRepo,
		Blobs:           blobs,
		Registry:        registry,
		Table:           schema.TableFile,
		MaxContentBytes: cfg.Blob.MaxContentBytes,
		PresignExpiry:   cfg.Blob.PresignExpiry,
		Metrics:         m,
	})
	if err != nil {
		slog.Error("failed to create file service", slog.String("error", err.Error()))
		os.Exit(1)
	}
	linkTable, _ := registry.Lookup(schema.TableCustomLink)
	linkService := service.NewLinkService(linkRepo, linkTable)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(db)
	tableHandler := handler.NewTableHandler(tableService)
	fileHandler := handler.NewFileHandler(fileService)
	linkHandler := handler.NewLinkHandler(linkService)

	// Setup routes
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Health)
	if m != nil {
		mux.Handle("GET "+cfg.Metrics.Path, m.Handler())
	}
	tableHandler.RegisterRoutes(mux)
	fileHandler.RegisterRoutes(mux)
	linkHandler.RegisterRoutes(mux)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Rate:   cfg.RateLimit.Rate,
		Window: cfg.RateLimit.Window,
		Burst:  cfg.RateLimit.Burst,
	})
	defer rateLimiter.Stop()

	idempotency := middleware.NewIdempotencyStore(sharedCache, middleware.IdempotencyConfig{
		TTL: cfg.Cache.IdempotencyTTL,
	})

	// Apply middleware chain (order matters - first listed runs outermost)
	wrapped := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logger,
		middleware.Recovery,
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.Identity(principalService),
		middleware.RateLimit(rateLimiter),
		middleware.Idempotency(idempotency),
		middleware.Compress,
		middleware.Metrics(m),
	)

	// Background jobs
	var purger *jobs.FilePurger
	if cfg.Jobs.FilePurgeEnabled {
		purger = jobs.NewFilePurger(fileService, jobs.FilePurgerConfig{
			Interval:  cfg.Jobs.FilePurgeInterval,
			Retention: cfg.Jobs.FilePurgeRetention,
		})
		purger.Start()
	}

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
			slog.Int("tables", len(registry.Tables())),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	if purger != nil {
		purger.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	slog.Info("server exited")
}
