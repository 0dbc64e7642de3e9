package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/nlq-engine/nlq-engine/pkg/models"
)

// testCatalog builds the canonical HR-style catalog used across the
// service tests: an employees table joined to departments, with hints
// assigned through the real matcher so tests exercise the same
// vocabulary discovery would.
func testCatalog() *models.SchemaCatalog {
	matcher := NewHintMatcher(DefaultHintRules())

	employees := models.TableInfo{
		Schema: "public",
		Name:   "employees",
		Columns: []models.ColumnInfo{
			{Name: "id", DataType: "integer", Logical: models.LogicalIdentifier, IsPrimary: true},
			{Name: "name", DataType: "text", Logical: models.LogicalText},
			{Name: "department_id", DataType: "integer", Logical: models.LogicalForeignKey},
			{Name: "salary", DataType: "numeric", Logical: models.LogicalNumeric},
			{Name: "join_date", DataType: "date", Logical: models.LogicalDate},
		},
		ForeignKeys: []models.ForeignKeyRef{
			{Column: "department_id", RefTable: "departments", RefColumn: "id"},
		},
		RowCount: 42,
	}
	departments := models.TableInfo{
		Schema: "public",
		Name:   "departments",
		Columns: []models.ColumnInfo{
			{Name: "id", DataType: "integer", Logical: models.LogicalIdentifier, IsPrimary: true},
			{Name: "name", DataType: "text", Logical: models.LogicalText},
		},
		SampleRows: []map[string]any{
			{"id": int64(1), "name": "Engineering"},
			{"id": int64(2), "name": "Sales"},
		},
		RowCount: 2,
	}

	tables := []models.TableInfo{employees, departments}
	for i := range tables {
		tables[i].Hints = matcher.TableHints(tables[i].Name)
		for j := range tables[i].Columns {
			tables[i].Columns[j].Hints = matcher.ColumnHints(tables[i].Columns[j].Name)
		}
	}

	return &models.SchemaCatalog{
		ConnectionID: uuid.New(),
		Dialect:      "postgres",
		Tables:       tables,
		DiscoveredAt: time.Now(),
	}
}
