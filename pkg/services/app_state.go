package services

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nlq-engine/nlq-engine/pkg/adapters/datasource"
	"github.com/nlq-engine/nlq-engine/pkg/apperrors"
	"github.com/nlq-engine/nlq-engine/pkg/cache"
	"github.com/nlq-engine/nlq-engine/pkg/config"
	"github.com/nlq-engine/nlq-engine/pkg/models"
)

// ConnectionState is one consistent snapshot of an active connection:
// the catalog, the mapper index derived from it, the planner and the
// executor. Requests in flight keep working against the snapshot they
// took even while a reconnect swaps in a new one.
type ConnectionState struct {
	Catalog  *models.SchemaCatalog
	Mapper   *EntityMapper
	Planner  *QueryPlanner
	Executor datasource.QueryExecutor
}

// AppState owns the current connection and the structures scoped to it.
// Reconnecting performs a single atomic swap; the result cache is
// invalidated wholesale because cached results are connection-scoped.
type AppState struct {
	discovery *SchemaDiscoveryService
	rules     []HintRule
	queryCfg  config.QueryConfig
	cache     *cache.ResultCache
	history   *QueryHistory
	logger    *zap.Logger

	current atomic.Pointer[ConnectionState]
}

// NewAppState creates the application state container.
func NewAppState(discovery *SchemaDiscoveryService, rules []HintRule, queryCfg config.QueryConfig, resultCache *cache.ResultCache, history *QueryHistory, logger *zap.Logger) *AppState {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppState{
		discovery: discovery,
		rules:     rules,
		queryCfg:  queryCfg,
		cache:     resultCache,
		history:   history,
		logger:    logger.Named("app_state"),
	}
}

// Connect discovers the schema behind a connection string, builds the
// derived structures and swaps them in atomically. The previous
// executor is closed after the swap; drivers drain in-flight work
// against the old snapshot gracefully.
func (a *AppState) Connect(ctx context.Context, connStr string) (*models.SchemaCatalog, error) {
	catalog, err := a.discovery.Discover(ctx, connStr)
	if err != nil {
		return nil, err
	}

	desc, err := datasource.ParseDescriptor(connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConnectionFailed, err)
	}
	factory := datasource.GetQueryExecutorFactory(desc.Type)
	if factory == nil {
		return nil, fmt.Errorf("%w: no executor for dialect %q", apperrors.ErrConnectionFailed, desc.Type)
	}
	executor, err := factory(ctx, desc.DSN, a.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConnectionFailed, err)
	}

	next := &ConnectionState{
		Catalog:  catalog,
		Mapper:   NewEntityMapper(catalog, a.rules),
		Planner:  NewQueryPlanner(catalog, a.queryCfg, a.logger),
		Executor: executor,
	}

	prev := a.current.Swap(next)
	a.cache.Reset()
	if prev != nil && prev.Executor != nil {
		if err := prev.Executor.Close(); err != nil {
			a.logger.Warn("closing previous executor failed", zap.Error(err))
		}
	}

	a.logger.Info("connection established",
		zap.String("dialect", catalog.Dialect),
		zap.String("connection_id", catalog.ConnectionID.String()),
		zap.Int("tables", len(catalog.Tables)))

	return catalog, nil
}

// Snapshot returns the current connection state, or ErrNotConnected.
func (a *AppState) Snapshot() (*ConnectionState, error) {
	state := a.current.Load()
	if state == nil {
		return nil, apperrors.ErrNotConnected
	}
	return state, nil
}

// Catalog returns the current schema catalog, or ErrNotConnected.
func (a *AppState) Catalog() (*models.SchemaCatalog, error) {
	state, err := a.Snapshot()
	if err != nil {
		return nil, err
	}
	return state.Catalog, nil
}

// History returns the query history.
func (a *AppState) History() *QueryHistory {
	return a.history
}

// Cache returns the shared result cache.
func (a *AppState) Cache() *cache.ResultCache {
	return a.cache
}

// Close releases the active connection, if any.
func (a *AppState) Close() {
	if state := a.current.Swap(nil); state != nil && state.Executor != nil {
		if err := state.Executor.Close(); err != nil {
			a.logger.Warn("closing executor failed", zap.Error(err))
		}
	}
}
