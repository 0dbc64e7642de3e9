package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"
	"go.uber.org/zap"

	"github.com/nlq-engine/nlq-engine/pkg/adapters/datasource"
)

// quoteName wraps an identifier in double quotes, doubling any embedded
// quote characters.
func quoteName(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// SchemaDiscoverer provides DuckDB schema discovery for local analytical
// stores (.duckdb files or in-memory databases).
type SchemaDiscoverer struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSchemaDiscoverer creates a DuckDB schema discoverer.
// If logger is nil, a no-op logger is used.
func NewSchemaDiscoverer(ctx context.Context, dsn string, logger *zap.Logger) (*SchemaDiscoverer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	return &SchemaDiscoverer{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (d *SchemaDiscoverer) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// SupportsForeignKeys returns false: DuckDB files in the wild rarely carry
// declared constraints, so relationship discovery falls back to naming
// convention inference.
func (d *SchemaDiscoverer) SupportsForeignKeys() bool {
	return false
}

// DiscoverTables returns all user tables.
func (d *SchemaDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	const query = `
		SELECT schema_name, table_name, estimated_size
		FROM duckdb_tables()
		WHERE NOT internal
		ORDER BY schema_name, table_name
	`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableMetadata
	for rows.Next() {
		var t datasource.TableMetadata
		if err := rows.Scan(&t.SchemaName, &t.TableName, &t.RowCount); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}

	return tables, nil
}

// DiscoverColumns returns columns for a specific table.
func (d *SchemaDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	const query = `
		SELECT column_name, data_type, is_nullable = 'YES', ordinal_position, column_default
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := d.db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var c datasource.ColumnMetadata
		if err := rows.Scan(&c.ColumnName, &c.DataType, &c.IsNullable, &c.OrdinalPosition, &c.DefaultValue); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}

	// PKs come from duckdb_constraints, best effort: a file without
	// declared constraints just yields no PK flags.
	pks, err := d.primaryKeyColumns(ctx, schemaName, tableName)
	if err != nil {
		d.logger.Warn("primary key discovery failed, continuing without PK flags",
			zap.String("table", tableName),
			zap.Error(err))
	} else {
		for i := range columns {
			if pks[columns[i].ColumnName] {
				columns[i].IsPrimaryKey = true
			}
		}
	}

	return columns, nil
}

func (d *SchemaDiscoverer) primaryKeyColumns(ctx context.Context, schemaName, tableName string) (map[string]bool, error) {
	const query = `
		SELECT unnest(constraint_column_names)
		FROM duckdb_constraints()
		WHERE schema_name = $1 AND table_name = $2 AND constraint_type = 'PRIMARY KEY'
	`

	rows, err := d.db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pks := make(map[string]bool)
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		pks[col] = true
	}
	return pks, rows.Err()
}

// DiscoverForeignKeys returns nothing; see SupportsForeignKeys.
func (d *SchemaDiscoverer) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	return nil, nil
}

// SampleRows returns up to limit rows from a table.
func (d *SchemaDiscoverer) SampleRows(ctx context.Context, schemaName, tableName string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		return nil, nil
	}
	tableRef := quoteName(schemaName) + "." + quoteName(tableName)

	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT $1", tableRef), limit)
	if err != nil {
		return nil, fmt.Errorf("sample rows from %s: %w", tableRef, err)
	}
	defer rows.Close()

	return scanRowMaps(rows)
}

// scanRowMaps reads all rows into name→value maps.
func scanRowMaps(rows *sql.Rows) ([]map[string]any, error) {
	columnNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}

	var result []map[string]any
	for rows.Next() {
		values := make([]any, len(columnNames))
		ptrs := make([]any, len(columnNames))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rowMap := make(map[string]any, len(columnNames))
		for i, col := range columnNames {
			if b, ok := values[i].([]byte); ok {
				rowMap[col] = string(b)
			} else {
				rowMap[col] = values[i]
			}
		}
		result = append(result, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return result, nil
}

// Ensure SchemaDiscoverer implements datasource.SchemaDiscoverer at compile time.
var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
