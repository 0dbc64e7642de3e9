package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nlq-engine/nlq-engine/pkg/adapters/datasource"
)

// QueryExecutor provides parameterized PostgreSQL query execution.
type QueryExecutor struct {
	pool *pgxpool.Pool
}

// NewQueryExecutor creates a PostgreSQL query executor.
func NewQueryExecutor(ctx context.Context, dsn string) (*QueryExecutor, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &QueryExecutor{pool: pool}, nil
}

// Query runs a parameterized query. The SQL uses $1, $2, ... placeholders;
// pgx binds parameters natively, so user values never enter the SQL text.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string, params []any) (*datasource.QueryExecutionResult, error) {
	rows, err := e.pool.Query(ctx, sqlQuery, params...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col] = values[i]
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return &datasource.QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// Close releases the connection pool.
func (e *QueryExecutor) Close() error {
	if e.pool != nil {
		e.pool.Close()
	}
	return nil
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
