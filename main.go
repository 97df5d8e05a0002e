package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/netgrid-tools/devicehub/internal/blob"
	"github.com/netgrid-tools/devicehub/internal/config"
	"github.com/netgrid-tools/devicehub/internal/directory"
	"github.com/netgrid-tools/devicehub/internal/export"
	"github.com/netgrid-tools/devicehub/internal/handler"
	"github.com/netgrid-tools/devicehub/internal/middleware"
	"github.com/netgrid-tools/devicehub/internal/repository"
	"github.com/netgrid-tools/devicehub/internal/seed"
	"github.com/netgrid-tools/devicehub/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logLevel := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var logHandler slog.Handler
	if cfg.Logging.Format == "text" {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	slog.Info("starting service",
		"service", cfg.Service.Name,
		"environment", cfg.Service.Environment,
		"port", cfg.Service.HTTPPort,
	)

	ctx := context.Background()

	// Initialize PostgreSQL connection
	db, err := initDB(cfg)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("database connection established",
		"host", cfg.Database.Host,
		"database", cfg.Database.Database,
	)

	if cfg.Service.Migrate {
		if err := repository.Migrate(ctx, db); err != nil {
			slog.Error("failed to migrate schema", "error", err)
			os.Exit(1)
		}
	}

	// Repositories
	var deviceRepo repository.DeviceRepository = repository.NewPostgresDeviceRepository(db)
	lookupRepo := repository.NewPostgresLookupRepository(db)
	fileRepo := repository.NewPostgresFileRepository(db)
	historyRepo := repository.NewPostgresHistoryRepository(db)

	// Optional Redis read cache in front of the device repository
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		cache := repository.NewDeviceCache(client, repository.CacheConfig{
			DeviceTTL: cfg.Redis.DeviceTTL,
			LookupTTL: cfg.Redis.LookupTTL,
		})
		deviceRepo = repository.NewCachedDeviceRepository(deviceRepo, cache)
		slog.Info("device read cache enabled", "addr", cfg.Redis.Addr)
	}

	// Blob store backend
	blobStore, err := initBlobStore(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to initialize blob store", "error", err)
		os.Exit(1)
	}
	slog.Info("blob store ready", "backend", cfg.Blob.Backend)

	// User directory backend
	userDirectory, err := initDirectory(cfg, db, logger)
	if err != nil {
		slog.Error("failed to initialize user directory", "error", err)
		os.Exit(1)
	}
	slog.Info("user directory ready", "backend", cfg.Directory.Backend)

	// Seed the lookup catalog
	if err := seed.Run(ctx, cfg.Service.SeedFile, lookupRepo, logger); err != nil {
		slog.Error("failed to seed lookup catalog", "error", err)
		os.Exit(1)
	}

	// Services
	deviceService := service.NewDeviceService(deviceRepo, lookupRepo, historyRepo, logger)
	assignmentService := service.NewAssignmentService(deviceRepo, historyRepo, userDirectory, logger)
	fileService := service.NewFileService(fileRepo, deviceRepo, blobStore, cfg.Blob.MaxFileSize, logger)
	historyService := service.NewHistoryService(historyRepo, deviceRepo)
	lookupService := service.NewLookupService(lookupRepo)
	userService := service.NewUserService(userDirectory)
	exporter := export.NewCSVExporter(deviceService)

	// Handlers
	deviceHandler := handler.NewDeviceHandler(deviceService, assignmentService, fileService, historyService, exporter)
	lookupHandler := handler.NewLookupHandler(lookupService)
	userHandler := handler.NewUserHandler(userService)

	// Set up HTTP router
	router := mux.NewRouter()

	router.Use(mux.MiddlewareFunc(middleware.RequestID()))
	router.Use(mux.MiddlewareFunc(middleware.Logger(logger)))
	router.Use(mux.MiddlewareFunc(middleware.Recovery(logger)))
	router.Use(mux.MiddlewareFunc(middleware.CORS(cfg.CORS)))
	router.Use(mux.MiddlewareFunc(middleware.Principal()))

	// Register health and readiness endpoints
	router.HandleFunc("/health", healthHandler(cfg)).Methods("GET")
	router.HandleFunc("/ready", readyHandler(cfg, db)).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler(cfg)).Methods("GET")

	// Register API routes
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	deviceHandler.RegisterRoutes(apiRouter)
	lookupHandler.RegisterRoutes(apiRouter)
	userHandler.RegisterRoutes(apiRouter)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Service.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.Service.ReadTimeout,
		WriteTimeout: cfg.Service.WriteTimeout,
		IdleTimeout:  cfg.Service.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced to shutdown", "error", err)
	}

	if closer, ok := userDirectory.(interface{ Close() error }); ok {
		closer.Close()
	}

	slog.Info("server exited gracefully")
}

// initDB initializes the PostgreSQL database connection.
func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func initBlobStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (blob.Store, error) {
	switch cfg.Blob.Backend {
	case "s3":
		return blob.NewS3Store(ctx, blob.S3Config{
			Region:    cfg.Blob.S3Region,
			Bucket:    cfg.Blob.S3Bucket,
			Prefix:    cfg.Blob.S3Prefix,
			Endpoint:  cfg.Blob.S3Endpoint,
			AccessKey: cfg.Blob.S3AccessKey,
			SecretKey: cfg.Blob.S3SecretKey,
		}, logger)
	default:
		return blob.NewDiskStore(cfg.Blob.Dir)
	}
}

func initDirectory(cfg *config.Config, db *sqlx.DB, logger *slog.Logger) (directory.Directory, error) {
	switch cfg.Directory.Backend {
	case "ldap":
		return directory.NewLDAPDirectory(directory.LDAPConfig{
			Addr:         cfg.Directory.LDAPAddr,
			UseTLS:       cfg.Directory.LDAPUseTLS,
			BindDN:       cfg.Directory.LDAPBindDN,
			BindPassword: cfg.Directory.LDAPBindPassword,
			BaseDN:       cfg.Directory.LDAPBaseDN,
			UserFilter:   cfg.Directory.LDAPUserFilter,
			Timeout:      cfg.Directory.LDAPTimeout,
		}, logger), nil
	default:
		return directory.NewPostgresDirectory(db), nil
	}
}

// Handlers

func healthHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":%q}`, cfg.Service.Name)
	}
}

func readyHandler(cfg *config.Config, db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		// Check database connectivity
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"not_ready","service":%q,"error":"database connection failed"}`, cfg.Service.Name)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ready","service":%q}`, cfg.Service.Name)
	}
}

func metricsHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		fmt.Fprintf(w, `# HELP devicehub_up Service health status
# TYPE devicehub_up gauge
devicehub_up 1

# HELP devicehub_info Service information
# TYPE devicehub_info gauge
devicehub_info{service=%q,version="1.0.0"} 1
`, cfg.Service.Name)
	}
}
