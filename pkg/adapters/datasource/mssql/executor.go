package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/nlq-engine/nlq-engine/pkg/adapters/datasource"
)

// QueryExecutor provides parameterized SQL Server query execution.
type QueryExecutor struct {
	db *sql.DB
}

// NewQueryExecutor creates a SQL Server query executor.
func NewQueryExecutor(ctx context.Context, dsn string) (*QueryExecutor, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlserver connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlserver: %w", err)
	}
	return &QueryExecutor{db: db}, nil
}

// Query runs a parameterized query. The SQL uses @p1, @p2, ... placeholders;
// go-mssqldb binds positional args to them natively.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string, params []any) (*datasource.QueryExecutionResult, error) {
	rows, err := e.db.QueryContext(ctx, sqlQuery, params...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}

	resultRows, err := scanRowMaps(rows)
	if err != nil {
		return nil, err
	}
	if resultRows == nil {
		resultRows = []map[string]any{}
	}

	return &datasource.QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// Close releases the database connection.
func (e *QueryExecutor) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
