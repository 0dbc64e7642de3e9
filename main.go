package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nlq-engine/nlq-engine/pkg/cache"
	"github.com/nlq-engine/nlq-engine/pkg/config"
	"github.com/nlq-engine/nlq-engine/pkg/handlers"
	"github.com/nlq-engine/nlq-engine/pkg/metrics"
	"github.com/nlq-engine/nlq-engine/pkg/middleware"
	"github.com/nlq-engine/nlq-engine/pkg/services"

	// Register datasource adapters.
	_ "github.com/nlq-engine/nlq-engine/pkg/adapters/datasource/duckdb"
	_ "github.com/nlq-engine/nlq-engine/pkg/adapters/datasource/mssql"
	_ "github.com/nlq-engine/nlq-engine/pkg/adapters/datasource/postgres"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	rules, err := services.LoadHintRules(cfg.HintRulesPath)
	if err != nil {
		logger.Fatal("Failed to load hint rules", zap.Error(err))
	}

	m := metrics.New()
	resultCache := cache.NewResultCache(cfg.Cache.MaxEntries, cfg.Cache.TTL(), logger)
	history := services.NewQueryHistory(50)
	discovery := services.NewSchemaDiscoveryService(services.NewHintMatcher(rules), cfg.Discovery, logger)
	state := services.NewAppState(discovery, rules, cfg.Query, resultCache, history, logger)
	defer state.Close()

	searcher := services.NewHTTPDocumentSearcher(cfg.DocSearch, logger)
	var docSearcher services.DocumentSearcher
	if searcher != nil {
		docSearcher = searcher
	}
	engine := services.NewQueryEngine(state, docSearcher, cfg.Query, cfg.DocSearch, m, logger)

	// Pre-connect when a store was configured; failures are logged, not
	// fatal, since /api/connect can establish a connection later.
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Discovery.Timeout()+10*time.Second)
		if _, err := state.Connect(ctx, cfg.DatabaseURL); err != nil {
			logger.Warn("startup connection failed, waiting for /api/connect", zap.Error(err))
		} else {
			m.ObserveDiscovery()
		}
		cancel()
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewConnectHandler(state, m, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(engine, state, logger).RegisterRoutes(mux)
	mux.Handle("/metrics", m.Handler())

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting nlq-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func buildLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
