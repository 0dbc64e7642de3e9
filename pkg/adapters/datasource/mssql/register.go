package mssql

import (
	"context"

	"go.uber.org/zap"

	"github.com/nlq-engine/nlq-engine/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "sqlserver",
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2017+, Azure SQL",
		},
		SchemaDiscovererFactory: func(ctx context.Context, dsn string, logger *zap.Logger) (datasource.SchemaDiscoverer, error) {
			return NewSchemaDiscoverer(ctx, dsn, logger)
		},
		QueryExecutorFactory: func(ctx context.Context, dsn string, logger *zap.Logger) (datasource.QueryExecutor, error) {
			return NewQueryExecutor(ctx, dsn)
		},
	})
}
