package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/centralhub"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/config"
	apierrors "github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/errors"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/infrastructure"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/license"
	customMiddleware "github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/middleware"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/scheduler"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/tasks"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/tenant"
	handlers "github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/transport/http"
)

const (
	AppName = "Declarify Client"

	// pruneInterval is how often idle activation-attempt records are dropped.
	pruneInterval = 10 * time.Minute
)

// Application holds every wired component of the client.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	Router        chi.Router
	Server        *http.Server
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	StartedAt     time.Time

	Tenant     *tenant.Holder
	Hub        *centralhub.Client
	Gate       *license.Gate
	Limiter    *license.AttemptLimiter
	Activator  *license.Activator
	Admission  *customMiddleware.AdmissionFilter
	ErrHandler *apierrors.ErrorHandler

	Store     tasks.Store
	Tasks     *tasks.Service
	Scheduler *scheduler.Scheduler

	runtimeMetrics metric.Registration
}

// Option customises an Application before its components are built.
type Option func(*options)

type options struct {
	notifier tasks.Notifier
	hubHTTP  *http.Client
}

// WithNotifier replaces the log-only reminder notifier.
func WithNotifier(n tasks.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithHubHTTPClient replaces the HTTP client used for Central Hub calls.
func WithHubHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.hubHTTP = hc }
}

// New wires the application from cfg. The caller owns logger creation so
// that configuration errors can still be reported.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if logger == nil {
		logger = infrastructure.DiscardLogger()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	startedAt := time.Now()
	runtimeMetrics, err := infrastructure.RegisterRuntimeMetrics(otelProviders.Meter, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to register runtime metrics: %w", err)
	}

	a := &Application{
		Config:         cfg,
		Logger:         logger,
		OTelProviders:  otelProviders,
		Metrics:        metrics,
		StartedAt:      startedAt,
		ErrHandler:     apierrors.NewErrorHandler(logger, false),
		runtimeMetrics: runtimeMetrics,
	}

	if err := a.initializeServices(o); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	a.setupRouter()
	a.createServer()

	return a, nil
}

func (a *Application) initializeServices(o options) error {
	cfg := a.Config

	a.Tenant = tenant.NewHolder(cfg.CentralHub.CompanyCode)
	if cfg.CentralHub.CompanyCode == "" {
		a.Logger.Warn("No company code configured, license activation required")
	}

	hubOpts := []centralhub.Option{
		centralhub.WithLogger(a.Logger),
		centralhub.WithTracer(a.OTelProviders.Tracer),
		centralhub.WithMetrics(a.Metrics),
	}
	if o.hubHTTP != nil {
		hubOpts = append(hubOpts, centralhub.WithHTTPClient(o.hubHTTP))
	}
	hub, err := centralhub.New(centralhub.Config{
		BaseURL:   cfg.CentralHub.BaseURL,
		Timeout:   cfg.CentralHub.Timeout,
		UserAgent: cfg.CentralHub.UserAgent,
	}, a.Tenant, hubOpts...)
	if err != nil {
		return err
	}
	a.Hub = hub

	a.Gate = license.NewGate(hub,
		license.WithTTL(cfg.CentralHub.CacheTTL),
		license.WithLogger(a.Logger),
		license.WithMetrics(a.Metrics),
	)
	act := cfg.Security.Activation
	a.Limiter = license.NewAttemptLimiter(act.MaxAttempts, act.BlockDuration, act.Window, a.Logger)
	a.Activator = license.NewActivator(hub, a.Tenant, a.Gate, a.Limiter, a.Logger)

	a.Admission = customMiddleware.NewAdmissionFilter(a.Gate, a.Logger)
	a.Admission.SetMetrics(a.Metrics)

	store, err := openStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open task store: %w", err)
	}
	a.Store = store

	notifier := o.notifier
	if notifier == nil {
		notifier = tasks.NewLogNotifier(a.Logger)
	}
	a.Tasks = tasks.NewService(store, notifier, hub, tasks.Config{
		NearDueWindow: cfg.Reminders.NearDueWindow,
		MinInterval:   cfg.Reminders.MinInterval,
	}, a.Logger, tasks.WithMetrics(a.Metrics))

	loc, err := cfg.Scheduler.LoadLocation()
	if err != nil {
		return fmt.Errorf("scheduler location: %w", err)
	}
	a.Scheduler = scheduler.New(a.Tasks, scheduler.Config{
		Hour:     cfg.Scheduler.Hour,
		Minute:   cfg.Scheduler.Minute,
		Location: loc,
		Backoff:  cfg.Scheduler.Backoff,
	}, a.Logger, scheduler.WithMetrics(a.Metrics))

	return nil
}

func openStore(cfg config.StorageConfig) (tasks.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return tasks.NewSQLiteStore(cfg.DSN)
	case "memory", "":
		return tasks.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// setupRouter orders middleware as RequestID, RealIP, OTel, logging,
// recovery, headers, rate limiting, timeout and finally the admission filter.
// /metrics sits outside the group so scrapes are never gated or logged.
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.ErrHandler))
		r.Use(customMiddleware.SecurityHeaders)
		if rl := a.Config.Security.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger, a.ErrHandler).Handler)
		}
		if a.Config.Server.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(a.Config.Server.RequestTimeout))
		}
		r.Use(a.Admission.Handler)

		r.NotFound(a.ErrHandler.NotFound)
		r.MethodNotAllowed(a.ErrHandler.MethodNotAllowed)

		a.setupAPIRoutes(r)
		a.setupHTMLRoutes(r)
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

func (a *Application) setupAPIRoutes(r chi.Router) {
	health := handlers.NewHealthHandler(a.Hub, infrastructure.ServiceVersion, a.Logger)
	r.Get("/health", health.HealthCheck)
	r.Get("/api/health", health.HealthCheck)
	r.Get("/api/health/live", health.LivenessCheck)
	r.Get("/api/health/ready", health.ReadinessCheck)

	r.Mount("/api/license", handlers.NewLicenseHandler(a.Gate, a.Activator, a.ErrHandler, a.Logger).Routes())
	r.Mount("/api/credits", handlers.NewCreditsHandler(a.Hub, a.ErrHandler, a.Logger).Routes())
	r.Mount("/api/tasks", handlers.NewTaskHandler(a.Tasks, a.ErrHandler, a.Logger).Routes())
	r.Mount("/api/reminders", handlers.NewReminderHandler(a.Scheduler, a.ErrHandler, a.Logger).Routes())
}

func (a *Application) setupHTMLRoutes(r chi.Router) {
	pages := handlers.NewPageHandler(a.Tasks, a.Activator, infrastructure.ServiceVersion, a.Logger)
	r.Get("/", pages.Index)
	r.Get("/dashboard", pages.Dashboard)
	r.Get("/license/activate", pages.ActivateForm)
	r.Post("/license/activate", pages.ActivateSubmit)
	r.Handle("/static/*", handlers.StaticHandler("/static/"))
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

// Run serves HTTP and, when enabled, the reminder scheduler until ctx is
// cancelled or one of them fails, then shuts everything down.
func (a *Application) Run(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", infrastructure.ServiceVersion),
		slog.Int("port", a.Config.Server.Port),
		slog.String("storage", a.Config.Storage.Driver),
		slog.Bool("scheduler_enabled", a.Config.Scheduler.Enabled))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.Config.Scheduler.Enabled {
		g.Go(func() error { return a.Scheduler.Run(gctx) })
	}

	g.Go(func() error {
		a.pruneAttempts(gctx)
		return nil
	})

	g.Go(func() error {
		a.performStartupCheck(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.WithoutCancel(gctx))
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Stop shuts down the server, closes the store and flushes telemetry.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close task store: %w", err))
	}
	if err := a.runtimeMetrics.Unregister(); err != nil {
		a.Logger.WarnContext(ctx, "Failed to unregister runtime metrics", slog.String("error", err.Error()))
	}
	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// performStartupCheck warms the license cache so the first gated request
// does not pay for the round trip. Failures are logged only.
func (a *Application) performStartupCheck(ctx context.Context) {
	res := a.Gate.Evaluate(ctx)
	if ctx.Err() != nil {
		return
	}
	if res.IsValid {
		a.Logger.InfoContext(ctx, "Startup license check passed",
			slog.String("tenant_name", res.TenantName))
		return
	}
	a.Logger.WarnContext(ctx, "Startup license check failed",
		slog.String("outcome", res.Outcome.String()),
		slog.String("message", res.Message))
}

func (a *Application) pruneAttempts(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Limiter.Prune()
		}
	}
}
