package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/DukeRupert/storefinder/internal"
	"github.com/DukeRupert/storefinder/internal/csvimport"
	"github.com/DukeRupert/storefinder/internal/geo"
	"github.com/DukeRupert/storefinder/internal/handler"
	"github.com/DukeRupert/storefinder/internal/jobs"
	"github.com/DukeRupert/storefinder/internal/metrics"
	"github.com/DukeRupert/storefinder/internal/middleware"
	"github.com/DukeRupert/storefinder/internal/repository"
	"github.com/DukeRupert/storefinder/internal/service"
	"github.com/DukeRupert/storefinder/internal/storage"
	"github.com/DukeRupert/storefinder/internal/widget"
	"github.com/DukeRupert/storefinder/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// failed admin token attempts per client before a lockout
	adminAuthAttempts = 10
	adminAuthWindow   = 15 * time.Minute

	// anonymous route lookups per client
	routeRequests = 30
	routeWindow   = time.Minute

	// anonymous feed requests per client; searches may reach the geocoder
	feedRequests = 120
	feedWindow   = time.Minute

	// route controllers of widget sessions idle this long are dropped
	routeSessionIdle = 10 * time.Minute
)

func run() error {
	ctx := context.Background()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// =========================================================================
	// Database
	// =========================================================================

	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := internal.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	repo := repository.New(db)
	store := service.NewStore(db)

	// =========================================================================
	// Storage
	// =========================================================================

	var fileStorage storage.Storage
	var localStorage *storage.LocalStorage
	switch cfg.StorageProvider {
	case storage.ProviderR2:
		var r2 *storage.R2Storage
		r2, err = storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
			Endpoint:        cfg.R2Endpoint,
		}, logger)
		if err == nil {
			// uploads fail loudly later, the rest of the API works without the bucket
			if cerr := r2.Check(ctx); cerr != nil {
				logger.Warn("Image bucket is not reachable", "error", cerr)
			}
		}
		fileStorage = r2
	default:
		localStorage, err = storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
		fileStorage = localStorage
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Storage ready", "provider", cfg.StorageProvider)

	// =========================================================================
	// Geocoding and routing
	// =========================================================================

	nominatim, err := geo.NewNominatim(geo.NominatimConfig{
		BaseURL:      cfg.GeocoderURL,
		UserAgent:    cfg.GeocoderUserAgent,
		CountryCodes: cfg.GeocoderCountryCodes,
		Timeout:      cfg.GeocoderTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("geocoder initialization failed: %w", err)
	}
	var geocoder geo.Geocoder = geo.NewThrottledGeocoder(nominatim, cfg.GeocoderMinInterval)

	if cfg.RedisURL != "" {
		cache, err := geo.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			// the cache only saves upstream calls
			logger.Warn("Geocode cache unavailable, continuing without it", "error", err)
		} else {
			defer cache.Close()
			geocoder = geo.NewCachedGeocoder(geocoder, cache, cfg.GeocodeCacheTTL, logger)
			logger.Info("Geocode cache enabled", "ttl", cfg.GeocodeCacheTTL)
		}
	}

	router, err := geo.NewOSRM(geo.OSRMConfig{
		BaseURL: cfg.RouterURL,
		Timeout: cfg.RouterTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("router initialization failed: %w", err)
	}
	routes := widget.NewRouteRegistry(router, routeSessionIdle)

	// =========================================================================
	// Services
	// =========================================================================

	locationService := service.NewLocationService(store, cfg.HomeCountry, logger)
	serviceTypeService := service.NewServiceTypeService(store, logger)
	duplicateService := service.NewDuplicateService(store, logger)
	importService := service.NewImportService(store, cfg.HomeCountry, logger)
	geocodingService := service.NewGeocodingService(geocoder, repo, logger)
	imageService := service.NewImageService(store, fileStorage, service.NewImagingProcessor(), logger)
	widgetService := service.NewWidgetService(store, geocoder, routes, cfg.BaseURL, logger)

	sessions := csvimport.NewSessionStore(cfg.ImportSessionTTL)
	defer sessions.Close()

	orchestrator := csvimport.NewOrchestrator(csvimport.OrchestratorConfig{
		Sessions:   sessions,
		Duplicates: duplicateService,
		Importer:   importService,
		Geocoding:  geocodingService,
		Limits: csvimport.Limits{
			MaxBytes: cfg.ImportMaxBytes,
			MaxRows:  cfg.ImportMaxRows,
		},
		HomeCountry: cfg.HomeCountry,
		Logger:      logger,
	})

	// =========================================================================
	// Background worker
	// =========================================================================

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	var bgWorker *worker.Worker
	if cfg.WorkerEnabled {
		workerCfg := worker.DefaultConfig()
		workerCfg.Concurrency = cfg.WorkerConcurrency
		workerCfg.PollInterval = cfg.WorkerPollInterval
		workerCfg.JobTimeout = cfg.WorkerJobTimeout
		if workerCfg.StaleJobThreshold < workerCfg.JobTimeout {
			workerCfg.StaleJobThreshold = 2 * workerCfg.JobTimeout
		}

		bgWorker, err = worker.New(db, repo, workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		bgWorker.Register(jobs.NewGeocodeLocationsHandler(repo, geocoder, repo, logger))
		bgWorker.Start(workerCtx)
	} else {
		logger.Info("Background worker disabled")
	}

	go sweepRoutes(workerCtx, routes, logger)

	// =========================================================================
	// HTTP
	// =========================================================================

	adminAuth := middleware.NewAdminAuth(cfg.AdminTokenHash, middleware.NewRateLimiter(adminAuthAttempts, adminAuthWindow, logger), logger)
	cors := middleware.NewCORS(time.Hour)
	routeLimit := middleware.NewRateLimitMiddleware(middleware.NewRateLimiter(routeRequests, routeWindow, logger), logger)
	feedLimit := middleware.NewRateLimitMiddleware(middleware.NewRateLimiter(feedRequests, feedWindow, logger), logger)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			logger.Warn("Health check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	if localStorage != nil {
		prefix := filesPrefix(cfg.LocalStorageURL)
		mux.Handle("GET "+prefix, http.StripPrefix(strings.TrimSuffix(prefix, "/"), localStorage.Handler()))
	}

	handler.NewLocationHandler(locationService, imageService, logger).RegisterRoutes(mux, adminAuth.Require)
	handler.NewServiceTypeHandler(serviceTypeService, logger).RegisterRoutes(mux, adminAuth.Require)
	handler.NewImportHandler(orchestrator, importService, duplicateService, geocodingService, cfg.ImportMaxBytes, logger).RegisterRoutes(mux, adminAuth.Require)
	handler.NewGeocodeHandler(geocodingService, logger).RegisterRoutes(mux, adminAuth.Require)
	handler.NewWidgetHandler(widgetService, logger).RegisterRoutes(mux, cors.Handler, feedLimit.Limit, routeLimit.Limit, adminAuth.Require)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	})

	stack := middleware.Stack(
		metrics.Middleware,
		middleware.NewRequestLoggingMiddleware(logger).Handler,
		middleware.NewSecurityHeadersMiddleware(cfg.Env != "development").Handler,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           stack(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			sigChan <- syscall.SIGTERM
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	// geocoding hand-offs of finished commits
	orchestrator.Wait()

	cancelWorker()
	if bgWorker != nil {
		bgWorker.Stop()
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// sweepRoutes drops the route controllers of widget sessions that went idle.
func sweepRoutes(ctx context.Context, routes *widget.RouteRegistry, logger *slog.Logger) {
	ticker := time.NewTicker(routeSessionIdle)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := routes.Sweep(now); n > 0 {
				logger.Debug("Dropped idle route sessions", "count", n, "remaining", routes.Len())
			}
		}
	}
}

// filesPrefix returns the path of the local storage URL, for example
// "/files/" for http://localhost:8080/files.
func filesPrefix(baseURL string) string {
	path := "/files"
	if u, err := url.Parse(baseURL); err == nil && u.Path != "" && u.Path != "/" {
		path = u.Path
	}
	return strings.TrimSuffix(path, "/") + "/"
}

func main() {
	// hash-token prints the ADMIN_TOKEN_HASH value for a chosen token
	if len(os.Args) == 3 && os.Args[1] == "hash-token" {
		hash, err := middleware.HashToken(os.Args[2])
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(hash)
		return
	}

	if err := run(); err != nil {
		log.Fatal(err)
	}
}
