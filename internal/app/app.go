package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/incubator-intake/internal/api"
	"github.com/eugenenazirov/incubator-intake/internal/applications"
	"github.com/eugenenazirov/incubator-intake/internal/config"
	"github.com/eugenenazirov/incubator-intake/internal/metrics"
	"github.com/eugenenazirov/incubator-intake/internal/storage"
)

// App encapsulates the service dependencies and HTTP server.
type App struct {
	store   *applications.Store
	metrics *metrics.Metrics
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// New initializes the service with all dependencies from the provided configuration.
// It loads the backing store once; a corrupt store is returned as an error.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	backend, err := storage.New(cfg.Storage, cfg.DBFile)
	if err != nil {
		return nil, fmt.Errorf("failed to select storage backend: %w", err)
	}

	store, err := applications.Open(backend, applications.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open application store: %w", err)
	}

	var m *metrics.Metrics
	if cfg.EnableMetrics {
		m = metrics.New()
	}

	handler := api.NewHandler(store,
		api.WithHandlerLogger(logger),
		api.WithHandlerMetrics(m),
		api.WithMaxBodyBytes(cfg.MaxBodyBytes),
	)

	routerOpts := []api.RouterOption{
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithCORSOrigin(cfg.CORSAllowedOrigin),
	}
	if m != nil {
		routerOpts = append(routerOpts, api.WithMetrics(m))
	}
	router := api.NewRouter(handler, logger, routerOpts...)

	return &App{
		store:   store,
		metrics: m,
		handler: handler,
		router:  router,
		logger:  logger,
		server:  NewServer(cfg, router),
	}, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening",
			zap.String("addr", a.server.Addr),
			zap.Int("applications", a.store.Len()),
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	return a.router
}
