package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eigloo/agentgraph/bus"
	"github.com/eigloo/agentgraph/composer"
	"github.com/eigloo/agentgraph/config"
	"github.com/eigloo/agentgraph/graph"
	"github.com/eigloo/agentgraph/guardrails"
	"github.com/eigloo/agentgraph/internal/cache"
	"github.com/eigloo/agentgraph/internal/database"
	"github.com/eigloo/agentgraph/internal/metrics"
	"github.com/eigloo/agentgraph/internal/telemetry"
	"github.com/eigloo/agentgraph/routing"
	"github.com/eigloo/agentgraph/run"
	"github.com/eigloo/agentgraph/store"
	"github.com/eigloo/agentgraph/types"
)

// dataStore is the persistence surface the daemon wires into the
// engines. Both store backends satisfy it.
type dataStore interface {
	SaveGraph(ctx context.Context, g *graph.AgentGraph) error
	GetGraph(ctx context.Context, tenantID, graphID string) (*graph.AgentGraph, error)
	ListGraphs(ctx context.Context, tenantID string) ([]*graph.AgentGraph, error)
	SaveRun(ctx context.Context, r *run.GraphRun) error
	GetRun(ctx context.Context, tenantID, lifetimeID string) (*run.GraphRun, error)
	ListRuns(ctx context.Context, tenantID, graphID string) ([]*run.GraphRun, error)
	SaveExecution(ctx context.Context, rec types.ExecutionRecord) error
	ListExecutions(ctx context.Context, tenantID, graphID, lifetimeID string) ([]types.ExecutionRecord, error)
}

// eventBus is the delivery surface the daemon wires into the composer
// and the router.
type eventBus interface {
	PublishPlanInput(ctx context.Context, tenantID string, in types.PlanInput) error
	PublishTaskInput(ctx context.Context, tenantID string, in types.TaskInput) error
}

// Server bundles the daemon's engines and its HTTP surface.
type Server struct {
	config *config.Config
	logger *zap.Logger

	store     dataStore
	composer  *composer.Composer
	lifecycle *run.Lifecycle
	router    *routing.Router
	timeline  *run.TimelineService
	metrics   *metrics.Collector
	registry  *prometheus.Registry

	httpServer *http.Server
	pool       *database.PoolManager
	redis      *redis.Client
	providers  *telemetry.Providers
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "configuration file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting agentgraphd",
		zap.String("version", Version),
		zap.String("commit", GitCommit),
	)

	srv, err := NewServer(cfg, logger)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	srv.WaitForShutdown()
	return nil
}

// NewServer wires the full daemon from configuration: stores, bus,
// engines, guardrails, and the HTTP surface.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{config: cfg, logger: logger}

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	s.providers = providers

	if err := s.initStore(); err != nil {
		return nil, err
	}

	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(collectors.NewGoCollector())
	s.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.metrics = metrics.NewCollector("agentgraph", s.registry)

	needRedis := cfg.Bus.Kind == "redis" || cfg.Engine.GraphCacheTTL > 0
	if needRedis {
		s.redis = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
	}

	var inputBus eventBus
	switch cfg.Bus.Kind {
	case "redis":
		inputBus = bus.NewRedisBus(s.redis, bus.RedisBusOptions{
			TopicPrefix: cfg.Bus.TopicPrefix,
			MaxLen:      cfg.Bus.StreamMaxLen,
			Logger:      logger,
		})
	default:
		inputBus = bus.NewMemoryBus()
	}

	var graphs run.GraphLookup = s.store
	if cfg.Engine.GraphCacheTTL > 0 && s.redis != nil {
		graphs = cache.NewGraphCache(s.redis, s.store, cache.Options{
			TTL:    cfg.Engine.GraphCacheTTL,
			Logger: logger,
		})
	}

	gate := buildGuardrails(cfg.Guardrails, s.store, logger, s.metrics)

	s.lifecycle = run.NewLifecycle(s.store, s.store, graphs, run.LifecycleOptions{
		MaxErrorLength: cfg.Engine.MaxErrorLength,
		Logger:         logger,
		Metrics:        s.metrics,
	})
	guard := routing.NewStateGuard(s.store, logger)
	s.router = routing.NewRouter(graphs, guard, inputBus, routing.RouterOptions{
		Gate:    gate,
		Logger:  logger,
		Metrics: s.metrics,
	})
	s.composer = composer.New(s.store, s.store, inputBus, composer.Options{
		Logger:  logger,
		Metrics: s.metrics,
	})
	s.timeline = run.NewTimelineService(s.store, s.store, logger)

	handler := Chain(s.routes(),
		Recovery(logger),
		RequestID(),
		RequestLogger(logger),
	)
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s, nil
}

// initStore opens the configured backend and applies migrations.
func (s *Server) initStore() error {
	cfg := s.config.Database
	if cfg.Driver == "memory" {
		s.store = store.NewMemoryStore()
		return nil
	}

	db, err := database.Open(database.OpenConfig{Driver: cfg.Driver, DSN: cfg.DSN()})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	poolCfg := database.DefaultPoolConfig()
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	pool, err := database.NewPoolManager(db, poolCfg, s.logger)
	if err != nil {
		return fmt.Errorf("configure pool: %w", err)
	}
	s.pool = pool
	s.store = store.NewGormStore(db)
	return nil
}

// buildGuardrails assembles the configured guardrail chain. When no
// limit is configured the engine still tracks aborted runs.
func buildGuardrails(cfg config.GuardrailsConfig, counter guardrails.ExecutionCounter, logger *zap.Logger, collector *metrics.Collector) *guardrails.Engine {
	var rails []guardrails.Guardrail
	if cfg.MaxFanOut > 0 {
		rails = append(rails, guardrails.NewFanOutLimit(cfg.MaxFanOut, 10))
	}
	if cfg.MaxErrorBytes > 0 {
		rails = append(rails, guardrails.NewErrorSizeLimit(cfg.MaxErrorBytes, 5))
	}
	if cfg.MaxRecordsPerRun > 0 {
		rails = append(rails, guardrails.NewRecordBudget(cfg.MaxRecordsPerRun, counter, 20))
	}

	var chain *guardrails.Chain
	if len(rails) > 0 {
		chain = guardrails.NewChain("builtin", guardrails.ModeFailFast, rails...)
	}
	return guardrails.NewEngine(chain, guardrails.EngineOptions{
		Logger:  logger,
		Metrics: collector,
	})
}

// Start begins serving HTTP. It returns once the listener goroutine is
// launched; fatal listen errors stop the process.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("http server failed", zap.Error(err))
		}
	}()
	return nil
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then shuts down.
func (s *Server) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	s.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	s.Shutdown()
}

// Shutdown drains the HTTP server and releases backends in reverse
// start order.
func (s *Server) Shutdown() {
	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("redis close", zap.Error(err))
		}
	}
	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			s.logger.Warn("database close", zap.Error(err))
		}
	}
	if s.providers != nil {
		if err := s.providers.Shutdown(ctx); err != nil {
			s.logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}
	s.logger.Info("shutdown complete")
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/graphs", s.handleCreateGraph)
	mux.HandleFunc("GET /v1/graphs", s.handleListGraphs)
	mux.HandleFunc("GET /v1/graphs/{graphID}", s.handleGetGraph)
	mux.HandleFunc("POST /v1/graphs/{graphID}/activate", s.handleActivateGraph)
	mux.HandleFunc("POST /v1/graphs/{graphID}/archive", s.handleArchiveGraph)

	mux.HandleFunc("POST /v1/graphs/{graphID}/runs", s.handleSubmitRun)
	mux.HandleFunc("GET /v1/graphs/{graphID}/runs", s.handleListRuns)
	mux.HandleFunc("GET /v1/graphs/{graphID}/runs/{lifetimeID}/timeline", s.handleTimeline)
	mux.HandleFunc("POST /v1/runs/{lifetimeID}/cancel", s.handleCancelRun)

	mux.HandleFunc("POST /v1/executions", s.handleIngestExecution)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return mux
}
