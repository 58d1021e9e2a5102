package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/config"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/dataprocessing"
	apierrors "github.com/Roshiii-8511/gainipo-subscription-scraper/internal/errors"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/infrastructure"
	customMiddleware "github.com/Roshiii-8511/gainipo-subscription-scraper/internal/middleware"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/services"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/storage"
	handlers "github.com/Roshiii-8511/gainipo-subscription-scraper/internal/transport/http"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

// AppName is reported in logs and the health endpoint.
const AppName = "gainipo-subscription-scraper"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	Store         storage.SnapshotStore
	Engine        *dataprocessing.Engine
	Subscriptions *services.SubscriptionService
	Health        *services.HealthService
	ErrorHandler  *apierrors.ErrorHandler
	Router        *chi.Mux
	Server        *http.Server
}

type options struct {
	logger    *slog.Logger
	store     storage.SnapshotStore
	sources   []services.Source
	exchanges []domain.Exchange
}

// Option customises NewApplication.
type Option func(*options)

// WithLogger uses logger instead of initialising one from the config.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithStore uses an already opened store. The application closes it on
// shutdown.
func WithStore(store storage.SnapshotStore) Option {
	return func(o *options) { o.store = store }
}

// WithSources replaces the configured exchange sources. Called with no
// arguments it leaves the application without sources.
func WithSources(sources ...services.Source) Option {
	return func(o *options) { o.sources = append([]services.Source{}, sources...) }
}

// WithExchanges restricts the configured sources to the given exchanges.
func WithExchanges(exchanges ...domain.Exchange) Option {
	return func(o *options) { o.exchanges = exchanges }
}

// NewApplication wires every component from cfg.
func NewApplication(ctx context.Context, cfg *config.Config, opts ...Option) (*Application, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("storage_driver", cfg.Storage.Driver))

	paths, err := cfg.ResolvePaths("")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		Store:         o.store,
		ErrorHandler:  apierrors.NewErrorHandler(logger, false),
	}

	if a.Store == nil {
		if a.Store, err = OpenStore(ctx, cfg, paths, logger); err != nil {
			return nil, err
		}
	}

	sources := o.sources
	if sources == nil {
		sources = BuildSources(cfg, o.exchanges, logger)
	}

	a.initializeServices(sources)
	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeServices builds the engine and the services around the store.
func (a *Application) initializeServices(sources []services.Source) {
	a.Engine = dataprocessing.NewEngine(
		dataprocessing.WithLogger(a.Logger),
		dataprocessing.WithObserver(infrastructure.NewEngineObserver(a.Metrics)),
		dataprocessing.WithNormalizer(dataprocessing.NewNormalizer(
			dataprocessing.AliasRules(a.Config.Normalizer.Aliases)...,
		)),
	)

	a.Subscriptions = services.NewSubscriptionService(a.Store, a.Engine, sources,
		services.WithConcurrency(a.Config.Fetch.Concurrency),
		services.WithMetrics(a.Metrics),
		services.WithTracer(a.OTelProviders.Tracer),
		services.WithServiceLogger(a.Logger),
	)

	a.Health = services.NewHealthService(contracts.Version, a.Store, a.Logger)

	exchanges := make([]string, 0, len(sources))
	for _, s := range sources {
		exchanges = append(exchanges, string(s.Exchange()))
	}
	a.Logger.Info("services initialized",
		slog.Any("sources", exchanges),
		slog.Int("aliases", len(a.Config.Normalizer.Aliases)))
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID -> RealIP -> OTel -> Logger -> Recoverer
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StripSlashes)

	if otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics); err != nil {
		a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
	} else {
		r.Use(otelMiddleware.Handler)
	}

	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.ErrorHandler))
	r.Use(customMiddleware.SecurityHeaders)

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	// Prometheus scrapes are not rate limited.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		if a.Config.Server.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Server.RateLimit.RPS,
				a.Config.Server.RateLimit.Burst,
				a.Logger,
			).Handler)
		}
		a.setupAPIRoutes(r)
	})

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	healthHandler := handlers.NewHealthHandler(a.Health, a.Logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(a.Subscriptions, a.Logger, a.ErrorHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/health", healthHandler.HealthCheck)
		r.Mount("/offerings", subscriptionHandler.Routes())
		r.With(customMiddleware.ContentTypeValidator("application/json")).
			Post("/normalize", subscriptionHandler.Normalize)
	})
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start starts the HTTP server in the background. A listen failure
// cancels the application context.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting HTTP server",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	a.Logger.InfoContext(ctx, "Application paths",
		slog.String("data_dir", a.Paths.DataDir),
		slog.String("exports_dir", a.Paths.ExportsDir),
		slog.String("logs_dir", a.Paths.LogsDir))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the server and releases the store and telemetry.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	if err := a.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Close releases the store and flushes telemetry. Binaries that never
// start the server call it directly.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close error: %w", err))
		}
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}
	return errors.Join(errs...)
}

// Run serves HTTP until interrupted.
func (a *Application) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("Received interrupt signal")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout+5*time.Second)
	defer stopCancel()
	return a.Stop(stopCtx)
}
