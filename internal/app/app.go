package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"cellpulse/internal/cache"
	"cellpulse/internal/config"
	"cellpulse/internal/drive"
	"cellpulse/internal/errors"
	"cellpulse/internal/infrastructure"
	customMiddleware "cellpulse/internal/middleware"
	"cellpulse/internal/services"
	handlers "cellpulse/internal/transport/http"
	ws "cellpulse/internal/websocket"
)

const AppName = "CellPulse - Battery Test Analysis Service"

// Application is the dependency-injected application container.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.CacheMetrics

	Drive        *drive.Client
	CacheStore   *cache.Store
	Preloader    *cache.Preloader
	DataService  *services.DataService
	WebSocketHub *ws.Hub
}

// NewApplication creates a new application instance with dependency injection
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", infrastructure.ServiceVersion),
		slog.Int("port", cfg.Server.Port))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := app.initializeServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices wires metrics, the drive client, the cache, the
// preloader and the data service together.
func (a *Application) initializeServices(ctx context.Context) error {
	if a.OTelProviders.Meter != nil {
		metrics, err := infrastructure.CreateCacheMetrics(a.OTelProviders.Meter)
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
		a.Metrics = metrics
	}

	driveClient, err := drive.NewClient(ctx, a.Config.Drive, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize drive client: %w", err)
	}
	a.Drive = driveClient

	store, err := cache.NewStore(a.Config.Cache, a.Logger, a.Metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize cache store: %w", err)
	}
	a.CacheStore = store

	a.Preloader = cache.NewPreloader(store, driveClient.FetchBytes,
		a.Config.Cache.PreloadPause, a.Logger, a.Metrics)

	a.DataService = services.NewDataServiceWithLogger(driveClient, store, a.Preloader, a.Logger)

	hub := ws.NewHub(a.Logger)
	hub.Start()
	a.WebSocketHub = hub

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	// WebSocket route stays outside the heavy middleware group so nothing
	// wraps the ResponseWriter before the upgrade.
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWS(a.WebSocketHub, w, req)
	})

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(chimiddleware.Compress(5))

		if a.Config.Server.RateLimitRPS > 0 {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Server.RateLimitRPS,
				a.Config.Server.RateLimitBurst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	// Prometheus scrape endpoint outside the middleware group
	r.Method(http.MethodGet, "/metrics",
		handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP))

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	errorHandler := errors.NewErrorHandler(a.Logger, false)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(a.Config.Server.WriteTimeout))

		r.Mount("/health", handlers.NewHealthHandler().Routes())

		dataHandler := handlers.NewDataHandler(a.DataService, a.Logger, errorHandler)
		r.Mount("/data", dataHandler.Routes())

		cacheHandler := handlers.NewCacheHandler(a.notifyingCacheService(), a.Logger, errorHandler)
		r.Mount("/cache", cacheHandler.Routes())
	})
}

// createServer builds the HTTP server around the router.
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start launches the HTTP server and the background cache maintenance
// loops. Server failure cancels the application context.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	go a.sweepLoop(ctx)

	if a.Config.Cache.PreloadOnStart {
		go a.startupPreload(ctx)
	}

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// sweepLoop periodically drops expired cache entries.
func (a *Application) sweepLoop(ctx context.Context) {
	if a.Config.Cache.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(a.Config.Cache.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := a.CacheStore.SweepExpired(ctx)
			if err != nil {
				a.Logger.WarnContext(ctx, "cache sweep failed",
					slog.String("error", err.Error()))
				continue
			}
			if removed > 0 {
				a.WebSocketHub.Broadcast(ws.TypeCacheUpdate, map[string]interface{}{
					"removed": removed,
					"reason":  "expired",
				})
			}
		}
	}
}

// startupPreload warms the cache once at boot.
func (a *Application) startupPreload(ctx context.Context) {
	warmed, err := a.DataService.TriggerPreload(ctx, a.Config.Cache.PreloadLimit)
	if err != nil {
		a.Logger.WarnContext(ctx, "startup preload failed",
			slog.String("error", err.Error()))
		return
	}
	a.WebSocketHub.Broadcast(ws.TypePreloadComplete, map[string]interface{}{
		"warmed": warmed,
	})
}

// notifyingCacheService decorates the data service so cache mutations
// reach websocket clients.
func (a *Application) notifyingCacheService() handlers.CacheServiceInterface {
	return &cacheNotifier{service: a.DataService, hub: a.WebSocketHub}
}

type cacheNotifier struct {
	service *services.DataService
	hub     *ws.Hub
}

func (n *cacheNotifier) CacheStats(ctx context.Context) cache.Stats {
	return n.service.CacheStats(ctx)
}

func (n *cacheNotifier) CachedFiles(ctx context.Context) []cache.Metadata {
	return n.service.CachedFiles(ctx)
}

func (n *cacheNotifier) ClearExpired(ctx context.Context) (int, error) {
	removed, err := n.service.ClearExpired(ctx)
	if err == nil && removed > 0 {
		n.hub.Broadcast(ws.TypeCacheUpdate, map[string]interface{}{
			"removed": removed,
			"reason":  "expired",
		})
	}
	return removed, err
}

func (n *cacheNotifier) TriggerPreload(ctx context.Context, limit int) (int, error) {
	warmed, err := n.service.TriggerPreload(ctx, limit)
	if err == nil {
		n.hub.Broadcast(ws.TypePreloadComplete, map[string]interface{}{
			"warmed": warmed,
		})
	}
	return warmed, err
}

// Stop gracefully shuts the application down.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Application stopping")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Server shutdown error", slog.String("error", err.Error()))
	}

	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.WarnContext(ctx, "OpenTelemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		return err
	}

	a.Logger.Info("Application stopped")
	return nil
}

// Run starts the application and blocks until a shutdown signal or a fatal
// server error.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		a.Logger.Info("Shutdown signal received", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.Info("Application context cancelled")
	}

	return a.Stop(context.Background())
}
