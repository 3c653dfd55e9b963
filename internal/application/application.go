package application

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/parade-allocator/internal/allocation"
	"github.com/eugenenazirov/parade-allocator/internal/api"
	"github.com/eugenenazirov/parade-allocator/internal/config"
	"github.com/eugenenazirov/parade-allocator/internal/storage"
)

// maxStoredRuns bounds the in-memory run history.
const maxStoredRuns = 100

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage storage.Storage
	runs    storage.RunStore
	engine  *allocation.Engine
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	engine, err := NewEngine(cfg, logger)
	if err != nil {
		return nil, err
	}

	store := storage.NewMemoryStorage(nil)
	if len(cfg.Groups) > 0 {
		if err := store.SetGroups(cfg.Groups); err != nil {
			return nil, fmt.Errorf("failed to apply initial groups: %w", err)
		}
	}
	runs := storage.NewMemoryRunStore(maxStoredRuns)

	handler := api.NewHandler(engine, store, runs,
		api.WithDefaults(cfg.Params()),
		api.WithColumnWidth(cfg.ColumnWidth),
		api.WithHandlerLogger(logger.Named("api")),
	)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	return &App{
		storage: store,
		runs:    runs,
		engine:  engine,
		handler: handler,
		router:  apiRouter,
		logger:  logger,
		server:  NewServer(cfg, BuildRootHandler(apiRouter, handler.Endpoints())),
	}, nil
}

// NewEngine builds the allocation engine on the configured solver backend.
func NewEngine(cfg config.Config, logger *zap.Logger) (*allocation.Engine, error) {
	solver, err := allocation.NewSolver(cfg.Solver, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create solver: %w", err)
	}
	return allocation.New(solver, logger.Named("engine")), nil
}

// BuildRootHandler constructs the root HTTP handler that routes API requests
// and answers "/" with an index of the available endpoints.
func BuildRootHandler(apiHandler http.Handler, endpoints []string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(indexResponse{
			Service:   "parade-allocator",
			Endpoints: endpoints,
		})
	}))
	return mux
}

type indexResponse struct {
	Service   string   `json:"service"`
	Endpoints []string `json:"endpoints"`
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
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
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

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}
