package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCatalog() *SchemaCatalog {
	return &SchemaCatalog{
		ConnectionID: uuid.New(),
		Dialect:      "postgres",
		DiscoveredAt: time.Now(),
		Tables: []TableInfo{
			{
				Schema: "public",
				Name:   "employees",
				Columns: []ColumnInfo{
					{Name: "id", DataType: "integer", Logical: LogicalIdentifier, IsPrimary: true},
					{Name: "name", DataType: "varchar", Logical: LogicalText, Hints: []Hint{"name-like"}},
					{Name: "department_id", DataType: "integer", Logical: LogicalForeignKey},
					{Name: "salary", DataType: "numeric", Logical: LogicalNumeric, Hints: []Hint{"salary-like"}},
				},
				ForeignKeys: []ForeignKeyRef{
					{Column: "department_id", RefTable: "departments", RefColumn: "id"},
				},
				Hints:    []Hint{"employee-like"},
				RowCount: 42,
			},
			{
				Schema: "public",
				Name:   "departments",
				Columns: []ColumnInfo{
					{Name: "id", DataType: "integer", Logical: LogicalIdentifier, IsPrimary: true},
					{Name: "name", DataType: "varchar", Logical: LogicalText, Hints: []Hint{"name-like"}},
				},
				Hints: []Hint{"department-like"},
				SampleRows: []map[string]any{
					{"id": 1, "name": "Engineering"},
				},
			},
		},
	}
}

func TestTableLookupsAreCaseInsensitive(t *testing.T) {
	c := sampleCatalog()

	require.NotNil(t, c.Table("Employees"))
	assert.Nil(t, c.Table("missing"))

	emp := c.Table("employees")
	require.NotNil(t, emp.Column("SALARY"))
	assert.Nil(t, emp.Column("bonus"))
	assert.Equal(t, "id", emp.PrimaryKey())
}

func TestHintLookups(t *testing.T) {
	c := sampleCatalog()
	emp := c.Table("employees")

	assert.True(t, emp.HasHint("employee-like"))
	assert.False(t, emp.HasHint("project-like"))

	col := emp.ColumnWithHint("salary-like")
	require.NotNil(t, col)
	assert.Equal(t, "salary", col.Name)

	withHint := c.TablesWithHint("department-like")
	require.Len(t, withHint, 1)
	assert.Equal(t, "departments", withHint[0].Name)
}

func TestForeignKeyBetween(t *testing.T) {
	c := sampleCatalog()

	fk := c.ForeignKeyBetween("employees", "departments")
	require.NotNil(t, fk)
	assert.Equal(t, "department_id", fk.Column)
	assert.Equal(t, "id", fk.RefColumn)

	assert.Nil(t, c.ForeignKeyBetween("departments", "employees"))
	assert.Nil(t, c.ForeignKeyBetween("missing", "departments"))
}

func TestFingerprintIgnoresRunIdentity(t *testing.T) {
	a := sampleCatalog()
	b := sampleCatalog()

	// Different connection IDs, timestamps and samples; same structure.
	b.ConnectionID = uuid.New()
	b.DiscoveredAt = b.DiscoveredAt.Add(time.Hour)
	b.Tables[1].SampleRows = nil

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(nil))
}

func TestFingerprintIgnoresHintOrder(t *testing.T) {
	a := sampleCatalog()
	b := sampleCatalog()
	a.Tables[0].Hints = []Hint{"employee-like", "person-like"}
	b.Tables[0].Hints = []Hint{"person-like", "employee-like"}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintSeesStructuralChange(t *testing.T) {
	a := sampleCatalog()

	b := sampleCatalog()
	b.Tables[0].Columns[3].DataType = "money"
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	c := sampleCatalog()
	c.Tables[0].ForeignKeys = nil
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}
