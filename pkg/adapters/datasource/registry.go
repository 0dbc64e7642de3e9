package datasource

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// AdapterInfo describes a registered adapter.
type AdapterInfo struct {
	Type        string `json:"type"`         // "postgres", "sqlserver", "duckdb"
	DisplayName string `json:"display_name"` // "PostgreSQL", "Microsoft SQL Server"
	Description string `json:"description"`
}

// AdapterRegistration contains info + factories for creating adapters.
// The dsn is the dialect-specific connection string produced by
// ParseDescriptor.
type AdapterRegistration struct {
	Info                    AdapterInfo
	SchemaDiscovererFactory func(ctx context.Context, dsn string, logger *zap.Logger) (SchemaDiscoverer, error)
	QueryExecutorFactory    func(ctx context.Context, dsn string, logger *zap.Logger) (QueryExecutor, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// GetSchemaDiscovererFactory returns the schema discoverer factory for a
// dialect. Returns nil if the dialect is not registered (not compiled in).
func GetSchemaDiscovererFactory(dsType string) func(ctx context.Context, dsn string, logger *zap.Logger) (SchemaDiscoverer, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dsType]; ok {
		return reg.SchemaDiscovererFactory
	}
	return nil
}

// GetQueryExecutorFactory returns the query executor factory for a dialect.
// Returns nil if the dialect is not registered.
func GetQueryExecutorFactory(dsType string) func(ctx context.Context, dsn string, logger *zap.Logger) (QueryExecutor, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dsType]; ok {
		return reg.QueryExecutorFactory
	}
	return nil
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}
