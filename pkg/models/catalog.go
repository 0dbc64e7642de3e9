package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LogicalType is the inferred role of a column, independent of the
// dialect-specific data type reported by the store.
type LogicalType string

const (
	LogicalNumeric    LogicalType = "numeric"
	LogicalText       LogicalType = "text"
	LogicalDate       LogicalType = "date"
	LogicalIdentifier LogicalType = "identifier"
	LogicalForeignKey LogicalType = "foreign_key"
	LogicalBool       LogicalType = "bool"
	LogicalUnknown    LogicalType = "unknown"
)

// Hint is a heuristically assigned semantic tag on a table or column,
// e.g. "employee-like" or "salary-like".
type Hint string

// ForeignKeyRef describes a column referencing another table's column.
// Inferred refs come from naming conventions rather than declared
// constraints and are treated as lower-confidence.
type ForeignKeyRef struct {
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
	Inferred  bool   `json:"inferred,omitempty"`
}

// ColumnInfo describes a discovered column.
type ColumnInfo struct {
	Name      string      `json:"name"`
	DataType  string      `json:"data_type"`
	Logical   LogicalType `json:"logical_type"`
	Nullable  bool        `json:"nullable"`
	IsPrimary bool        `json:"is_primary"`
	Hints     []Hint      `json:"hints,omitempty"`
}

// TableInfo describes a discovered table with its columns, foreign keys,
// semantic hints and a bounded sample of row values.
type TableInfo struct {
	Schema      string           `json:"schema,omitempty"`
	Name        string           `json:"name"`
	Columns     []ColumnInfo     `json:"columns"`
	ForeignKeys []ForeignKeyRef  `json:"foreign_keys,omitempty"`
	Hints       []Hint           `json:"hints,omitempty"`
	SampleRows  []map[string]any `json:"samples,omitempty"`
	RowCount    int64            `json:"row_count"`
}

// Column returns the column with the given name, or nil.
func (t *TableInfo) Column(name string) *ColumnInfo {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasHint reports whether the table carries the given hint.
func (t *TableInfo) HasHint(h Hint) bool {
	for _, hint := range t.Hints {
		if hint == h {
			return true
		}
	}
	return false
}

// ColumnWithHint returns the first column carrying the given hint, or nil.
func (t *TableInfo) ColumnWithHint(h Hint) *ColumnInfo {
	for i := range t.Columns {
		for _, hint := range t.Columns[i].Hints {
			if hint == h {
				return &t.Columns[i]
			}
		}
	}
	return nil
}

// PrimaryKey returns the name of the first primary key column, or "".
func (t *TableInfo) PrimaryKey() string {
	for i := range t.Columns {
		if t.Columns[i].IsPrimary {
			return t.Columns[i].Name
		}
	}
	return ""
}

// SchemaCatalog is an immutable snapshot of a discovered schema. It is
// rebuilt on every connect and swapped in wholesale; nothing mutates a
// catalog after discovery completes.
type SchemaCatalog struct {
	ConnectionID uuid.UUID   `json:"connection_id"`
	Dialect      string      `json:"dialect"`
	Tables       []TableInfo `json:"tables"`
	DiscoveredAt time.Time   `json:"discovered_at"`
}

// Table returns the table with the given name (case-insensitive), or nil.
func (c *SchemaCatalog) Table(name string) *TableInfo {
	for i := range c.Tables {
		if strings.EqualFold(c.Tables[i].Name, name) {
			return &c.Tables[i]
		}
	}
	return nil
}

// TablesWithHint returns all tables carrying the given hint.
func (c *SchemaCatalog) TablesWithHint(h Hint) []*TableInfo {
	var out []*TableInfo
	for i := range c.Tables {
		if c.Tables[i].HasHint(h) {
			out = append(out, &c.Tables[i])
		}
	}
	return out
}

// ForeignKeyBetween returns the declared or inferred foreign key linking
// from source to target, or nil when no direct relationship exists.
func (c *SchemaCatalog) ForeignKeyBetween(source, target string) *ForeignKeyRef {
	src := c.Table(source)
	if src == nil {
		return nil
	}
	for i := range src.ForeignKeys {
		if strings.EqualFold(src.ForeignKeys[i].RefTable, target) {
			return &src.ForeignKeys[i]
		}
	}
	return nil
}

// Fingerprint returns a stable digest of the catalog's structure: tables,
// columns, logical types, hints and foreign keys. Sample rows, timestamps
// and connection identity are excluded so discovering the same unchanged
// schema twice yields equal fingerprints.
func (c *SchemaCatalog) Fingerprint() string {
	var sb strings.Builder
	for _, t := range c.Tables {
		sb.WriteString(t.Schema)
		sb.WriteByte('.')
		sb.WriteString(t.Name)
		sb.WriteByte('{')
		for _, col := range t.Columns {
			fmt.Fprintf(&sb, "%s:%s:%s:%t:%t;", col.Name, col.DataType, col.Logical, col.Nullable, col.IsPrimary)
			sb.WriteString(joinHints(col.Hints))
		}
		sb.WriteByte('|')
		fks := append([]ForeignKeyRef(nil), t.ForeignKeys...)
		sort.Slice(fks, func(i, j int) bool {
			return fks[i].Column < fks[j].Column
		})
		for _, fk := range fks {
			fmt.Fprintf(&sb, "%s->%s.%s:%t;", fk.Column, fk.RefTable, fk.RefColumn, fk.Inferred)
		}
		sb.WriteByte('|')
		sb.WriteString(joinHints(t.Hints))
		sb.WriteByte('}')
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// Equal reports structural equality under table/column/hint comparison,
// ignoring sample rows and discovery timestamps.
func (c *SchemaCatalog) Equal(other *SchemaCatalog) bool {
	if other == nil {
		return false
	}
	return c.Fingerprint() == other.Fingerprint()
}

// joinHints canonicalizes a hint set: order of hint derivation must not
// affect comparison, so hints are sorted before joining.
func joinHints(hints []Hint) string {
	if len(hints) == 0 {
		return ""
	}
	s := make([]string, len(hints))
	for i, h := range hints {
		s[i] = string(h)
	}
	sort.Strings(s)
	return strings.Join(s, ",") + ";"
}
