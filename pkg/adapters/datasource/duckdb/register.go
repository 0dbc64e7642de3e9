package duckdb

import (
	"context"

	"go.uber.org/zap"

	"github.com/nlq-engine/nlq-engine/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "duckdb",
			DisplayName: "DuckDB",
			Description: "Embedded analytical store; connect to a local .duckdb file or in-memory database",
		},
		SchemaDiscovererFactory: func(ctx context.Context, dsn string, logger *zap.Logger) (datasource.SchemaDiscoverer, error) {
			return NewSchemaDiscoverer(ctx, dsn, logger)
		},
		QueryExecutorFactory: func(ctx context.Context, dsn string, logger *zap.Logger) (datasource.QueryExecutor, error) {
			return NewQueryExecutor(ctx, dsn)
		},
	})
}
