package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"agendly/pkg/config"
	"agendly/pkg/contracts"
	"agendly/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

const publicPathPrefix = "/api/v1/public/"

type shutdownHook struct {
	name string
	fn   func(ctx context.Context) error
}

type Application struct {
	cfg            *config.Config
	server         *http.Server
	rateLimitStore *middleware.InMemoryRateLimitStore
	healthHandler  http.Handler
	appHttpHandler http.Handler
	publicHandler  http.Handler
	hooks          []shutdownHook
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{cfg: cfg}
}

// SetApp mounts the health routes and every app handler on one router.
// Public booking paths get the app stack plus per-address rate limiting.
func (a *Application) SetApp(healthHandler contracts.Handler, appHandlers ...contracts.Handler) {
	a.setHealthHandler(healthHandler)
	a.setAppHandler(appHandlers)
	a.setAppServer()
}

// OnShutdown registers fn to run after the HTTP server has drained, in
// registration order.
func (a *Application) OnShutdown(name string, fn func(ctx context.Context) error) {
	a.hooks = append(a.hooks, shutdownHook{name: name, fn: fn})
}

func (a *Application) setHealthHandler(healthHandler contracts.Handler) {
	healthRouter := httprouter.New()
	healthHandler.RegisterRoutes(healthRouter)

	var handler http.Handler = healthRouter
	handler = middleware.RequestLogging(a.cfg.Log)(handler)
	handler = middleware.Recovery(a.cfg.Log)(handler)
	a.healthHandler = handler
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppHandler(appHandlers []contracts.Handler) {
	appRouter := httprouter.New()
	for _, h := range appHandlers {
		h.RegisterRoutes(appRouter)
	}

	var idempotencyStore middleware.IdempotencyStore
	if a.cfg.Client.Redis != nil {
		idempotencyStore = middleware.NewRedisIdempotencyStore(a.cfg.Client.Redis, a.cfg.IdempotencyTTL)
	} else {
		idempotencyStore = middleware.NewInMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	}

	var core http.Handler = appRouter
	core = middleware.Idempotency(idempotencyStore, a.cfg.Log)(core)
	core = middleware.RequestTimeout(a.cfg.RequestTimeout)(core)

	public := core
	if limiter := a.publicRateLimiter(); limiter != nil {
		public = limiter.Middleware(core)
	}
	a.appHttpHandler = a.outer(core)
	a.publicHandler = a.outer(public)
	a.cfg.Log.Info("Application endpoints configured with full middleware stack",
		"public_rate_limit", a.cfg.PublicRateLimit,
		"public_rate_limit_window", a.cfg.PublicRateLimitWindow,
		"redis_idempotency", a.cfg.Client.Redis != nil,
	)
}

// publicRateLimiter returns nil when public rate limiting is disabled. With
// the redis store, every replica counts against the same window.
func (a *Application) publicRateLimiter() *middleware.RateLimiter {
	if a.cfg.PublicRateLimit <= 0 || a.cfg.PublicRateLimitWindow <= 0 {
		return nil
	}

	var store middleware.RateLimitStore
	if a.cfg.RateLimitStore == config.StoreRedis && a.cfg.Client.Redis != nil {
		store = middleware.NewRedisRateLimitStore(a.cfg.Client.Redis)
	} else {
		a.rateLimitStore = middleware.NewInMemoryRateLimitStore(a.cfg.PublicRateLimitWindow)
		store = a.rateLimitStore
	}
	return middleware.NewRateLimiter(store, a.cfg.PublicRateLimit, a.cfg.PublicRateLimitWindow, middleware.ClientAddrKey, a.cfg.Log)
}

func (a *Application) outer(handler http.Handler) http.Handler {
	handler = middleware.ContentTypeValidation(a.cfg.Log)(handler)
	handler = middleware.MaxRequestSize(int64(a.cfg.MaxRequestSize))(handler)
	handler = middleware.RequestLogging(a.cfg.Log)(handler)
	handler = middleware.Recovery(a.cfg.Log)(handler)
	return handler
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/metrics", a.healthHandler)
	mux.Handle(publicPathPrefix, a.publicHandler)
	mux.Handle("/", a.appHttpHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

// Handler exposes the composed mux, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

func (a *Application) Run() {
	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			a.cfg.Log.Fatal("HTTP server failed", "error", err)
		}

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Stopping background workers...")
	if a.rateLimitStore != nil {
		a.rateLimitStore.Stop()
	}
	for _, hook := range a.hooks {
		if err := hook.fn(ctx); err != nil {
			a.cfg.Log.Warn("Shutdown hook failed", "hook", hook.name, "error", err)
		}
	}
	a.cfg.Log.Info("Background workers stopped")

	a.cfg.GracefulShutdown()
	a.cfg.Log.Info("Server stopped gracefully")
}
