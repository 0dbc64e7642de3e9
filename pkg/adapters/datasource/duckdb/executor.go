package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/nlq-engine/nlq-engine/pkg/adapters/datasource"
)

// QueryExecutor runs parameterized queries against a DuckDB database.
// DuckDB accepts $1-style positional placeholders natively.
type QueryExecutor struct {
	db *sql.DB
}

// NewQueryExecutor creates a DuckDB query executor.
func NewQueryExecutor(ctx context.Context, dsn string) (*QueryExecutor, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return &QueryExecutor{db: db}, nil
}

// Close releases the database handle.
func (e *QueryExecutor) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Query executes a parameterized query and returns all result rows.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string, params []any) (*datasource.QueryExecutionResult, error) {
	rows, err := e.db.QueryContext(ctx, sqlQuery, params...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	columnNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}

	rowMaps, err := scanRowMaps(rows)
	if err != nil {
		return nil, err
	}

	return &datasource.QueryExecutionResult{
		Columns:  columnNames,
		Rows:     rowMaps,
		RowCount: len(rowMaps),
	}, nil
}

var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
