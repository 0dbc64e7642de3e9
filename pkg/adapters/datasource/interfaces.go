package datasource

import "context"

// SchemaDiscoverer extracts structure from a relational store. Everything
// it runs is read-only. Each implementation owns its connection and must
// be closed when done.
type SchemaDiscoverer interface {
	// DiscoverTables returns all user tables (excludes system schemas).
	DiscoverTables(ctx context.Context) ([]TableMetadata, error)

	// DiscoverColumns returns columns for a specific table.
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)

	// DiscoverForeignKeys returns all declared foreign key relationships.
	DiscoverForeignKeys(ctx context.Context) ([]ForeignKeyMetadata, error)

	// SupportsForeignKeys returns true if the store exposes FK constraints.
	SupportsForeignKeys() bool

	// SampleRows returns up to limit rows from a table for value matching.
	// Implementations must treat failures (permissions, empty tables) as
	// recoverable; callers degrade to an empty sample.
	SampleRows(ctx context.Context, schemaName, tableName string, limit int) ([]map[string]any, error)

	// Close releases the database connection.
	Close() error
}

// QueryExecutor runs parameterized SELECT statements against a store.
// Implementations must bind params natively; no string-built SQL.
type QueryExecutor interface {
	// Query executes a parameterized query. Placeholder syntax is
	// dialect-specific; the sql package renders plans accordingly.
	Query(ctx context.Context, sqlQuery string, params []any) (*QueryExecutionResult, error)

	// Close releases the database connection.
	Close() error
}

// TableMetadata identifies a discovered table.
type TableMetadata struct {
	SchemaName string `json:"schema_name"`
	TableName  string `json:"table_name"`
	RowCount   int64  `json:"row_count"`
}

// ColumnMetadata describes a discovered column.
type ColumnMetadata struct {
	ColumnName      string  `json:"column_name"`
	DataType        string  `json:"data_type"`
	IsNullable      bool    `json:"is_nullable"`
	IsPrimaryKey    bool    `json:"is_primary_key"`
	OrdinalPosition int     `json:"ordinal_position"`
	DefaultValue    *string `json:"default_value,omitempty"`
}

// ForeignKeyMetadata describes a declared foreign key relationship.
type ForeignKeyMetadata struct {
	ConstraintName string `json:"constraint_name"`
	SourceSchema   string `json:"source_schema"`
	SourceTable    string `json:"source_table"`
	SourceColumn   string `json:"source_column"`
	TargetSchema   string `json:"target_schema"`
	TargetTable    string `json:"target_table"`
	TargetColumn   string `json:"target_column"`
}

// QueryExecutionResult holds the results from executing a query.
type QueryExecutionResult struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}
