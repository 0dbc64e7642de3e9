package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/nlq-engine/nlq-engine/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL 12+, Aurora PostgreSQL, Supabase",
		},
		SchemaDiscovererFactory: func(ctx context.Context, dsn string, logger *zap.Logger) (datasource.SchemaDiscoverer, error) {
			return NewSchemaDiscoverer(ctx, dsn, logger)
		},
		QueryExecutorFactory: func(ctx context.Context, dsn string, logger *zap.Logger) (datasource.QueryExecutor, error) {
			return NewQueryExecutor(ctx, dsn)
		},
	})
}
