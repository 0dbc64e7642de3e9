package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlq-engine/nlq-engine/pkg/adapters/datasource"
	"github.com/nlq-engine/nlq-engine/pkg/apperrors"
	"github.com/nlq-engine/nlq-engine/pkg/config"
	"github.com/nlq-engine/nlq-engine/pkg/models"
)

// fakeDiscoverer serves canned metadata so catalog assembly can be tested
// without a live database.
type fakeDiscoverer struct {
	tables      []datasource.TableMetadata
	columns     map[string][]datasource.ColumnMetadata
	foreignKeys []datasource.ForeignKeyMetadata
	samples     map[string][]map[string]any
	declaresFKs bool

	tablesErr  error
	columnsErr map[string]error
	fkErr      error
	samplesErr map[string]error

	closed bool
}

func (f *fakeDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	if f.tablesErr != nil {
		return nil, f.tablesErr
	}
	return f.tables, nil
}

func (f *fakeDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	if err := f.columnsErr[tableName]; err != nil {
		return nil, err
	}
	return f.columns[tableName], nil
}

func (f *fakeDiscoverer) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	if f.fkErr != nil {
		return nil, f.fkErr
	}
	return f.foreignKeys, nil
}

func (f *fakeDiscoverer) SupportsForeignKeys() bool { return f.declaresFKs }

func (f *fakeDiscoverer) SampleRows(ctx context.Context, schemaName, tableName string, limit int) ([]map[string]any, error) {
	if err := f.samplesErr[tableName]; err != nil {
		return nil, err
	}
	return f.samples[tableName], nil
}

func (f *fakeDiscoverer) Close() error {
	f.closed = true
	return nil
}

var _ datasource.SchemaDiscoverer = (*fakeDiscoverer)(nil)

func hrDiscoverer() *fakeDiscoverer {
	return &fakeDiscoverer{
		tables: []datasource.TableMetadata{
			{SchemaName: "public", TableName: "employees", RowCount: 42},
			{SchemaName: "public", TableName: "departments", RowCount: 4},
		},
		columns: map[string][]datasource.ColumnMetadata{
			"employees": {
				{ColumnName: "id", DataType: "integer", IsPrimaryKey: true},
				{ColumnName: "name", DataType: "varchar"},
				{ColumnName: "department_id", DataType: "integer", IsNullable: true},
				{ColumnName: "salary", DataType: "numeric"},
				{ColumnName: "join_date", DataType: "date"},
			},
			"departments": {
				{ColumnName: "id", DataType: "integer", IsPrimaryKey: true},
				{ColumnName: "name", DataType: "varchar"},
			},
		},
		samples: map[string][]map[string]any{
			"departments": {
				{"id": 1, "name": "Engineering"},
				{"id": 2, "name": "Sales"},
			},
		},
	}
}

func discoveryService(t *testing.T) *SchemaDiscoveryService {
	t.Helper()
	matcher := NewHintMatcher(DefaultHintRules())
	cfg := config.DiscoveryConfig{SampleRows: 3, MaxTables: 200, TimeoutSeconds: 60}
	return NewSchemaDiscoveryService(matcher, cfg, nil)
}

func TestBuildCatalog_HintsAndLogicalTypes(t *testing.T) {
	svc := discoveryService(t)
	catalog, err := svc.BuildCatalog(context.Background(), hrDiscoverer(), "postgres")
	require.NoError(t, err)

	require.Len(t, catalog.Tables, 2)
	assert.Equal(t, "postgres", catalog.Dialect)
	assert.NotEqual(t, "", catalog.ConnectionID.String())

	emp := catalog.Table("employees")
	require.NotNil(t, emp)
	assert.True(t, emp.HasHint(models.Hint("employee-like")))
	assert.Equal(t, int64(42), emp.RowCount)
	assert.Equal(t, "id", emp.PrimaryKey())

	salary := emp.Column("salary")
	require.NotNil(t, salary)
	assert.Equal(t, models.LogicalNumeric, salary.Logical)
	assert.Contains(t, salary.Hints, models.Hint("salary-like"))

	joinDate := emp.Column("join_date")
	require.NotNil(t, joinDate)
	assert.Equal(t, models.LogicalDate, joinDate.Logical)

	dept := catalog.Table("departments")
	require.NotNil(t, dept)
	assert.True(t, dept.HasHint(models.Hint("department-like")))
	assert.Len(t, dept.SampleRows, 2)
}

func TestBuildCatalog_InfersForeignKeysFromNaming(t *testing.T) {
	// The store declares no constraints; department_id must still resolve
	// to departments by naming convention.
	svc := discoveryService(t)
	disc := hrDiscoverer()
	disc.declaresFKs = false

	catalog, err := svc.BuildCatalog(context.Background(), disc, "duckdb")
	require.NoError(t, err)

	emp := catalog.Table("employees")
	require.NotNil(t, emp)
	require.Len(t, emp.ForeignKeys, 1)
	fk := emp.ForeignKeys[0]
	assert.Equal(t, "department_id", fk.Column)
	assert.Equal(t, "departments", fk.RefTable)
	assert.Equal(t, "id", fk.RefColumn)
	assert.True(t, fk.Inferred)

	col := emp.Column("department_id")
	require.NotNil(t, col)
	assert.Equal(t, models.LogicalForeignKey, col.Logical)
}

func TestBuildCatalog_DeclaredForeignKeysWinOverInference(t *testing.T) {
	svc := discoveryService(t)
	disc := hrDiscoverer()
	disc.declaresFKs = true
	disc.foreignKeys = []datasource.ForeignKeyMetadata{
		{
			ConstraintName: "fk_emp_dept",
			SourceTable:    "employees",
			SourceColumn:   "department_id",
			TargetTable:    "departments",
			TargetColumn:   "id",
		},
	}

	catalog, err := svc.BuildCatalog(context.Background(), disc, "postgres")
	require.NoError(t, err)

	emp := catalog.Table("employees")
	require.NotNil(t, emp)
	require.Len(t, emp.ForeignKeys, 1)
	assert.False(t, emp.ForeignKeys[0].Inferred)
	assert.Equal(t, "departments", emp.ForeignKeys[0].RefTable)
}

func TestBuildCatalog_DeclaredForeignKeyFailureFallsBackToInference(t *testing.T) {
	svc := discoveryService(t)
	disc := hrDiscoverer()
	disc.declaresFKs = true
	disc.fkErr = errors.New("permission denied for catalog view")

	catalog, err := svc.BuildCatalog(context.Background(), disc, "postgres")
	require.NoError(t, err)

	emp := catalog.Table("employees")
	require.NotNil(t, emp)
	require.Len(t, emp.ForeignKeys, 1)
	assert.True(t, emp.ForeignKeys[0].Inferred)
}

func TestBuildCatalog_SkipsTableWhenColumnDiscoveryFails(t *testing.T) {
	svc := discoveryService(t)
	disc := hrDiscoverer()
	disc.columnsErr = map[string]error{"employees": errors.New("relation vanished")}

	catalog, err := svc.BuildCatalog(context.Background(), disc, "postgres")
	require.NoError(t, err)

	assert.Nil(t, catalog.Table("employees"))
	assert.NotNil(t, catalog.Table("departments"))
}

func TestBuildCatalog_AllTablesFailingIsAnError(t *testing.T) {
	svc := discoveryService(t)
	disc := hrDiscoverer()
	disc.columnsErr = map[string]error{
		"employees":   errors.New("nope"),
		"departments": errors.New("nope"),
	}

	_, err := svc.BuildCatalog(context.Background(), disc, "postgres")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrIntrospection)
}

func TestBuildCatalog_TableEnumerationErrors(t *testing.T) {
	svc := discoveryService(t)

	disc := hrDiscoverer()
	disc.tablesErr = errors.New("connection reset")
	_, err := svc.BuildCatalog(context.Background(), disc, "postgres")
	assert.ErrorIs(t, err, apperrors.ErrIntrospection)

	disc = hrDiscoverer()
	disc.tablesErr = fmt.Errorf("query: %w", context.DeadlineExceeded)
	_, err = svc.BuildCatalog(context.Background(), disc, "postgres")
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
}

func TestBuildCatalog_SamplingFailureDegradesToNoSamples(t *testing.T) {
	svc := discoveryService(t)
	disc := hrDiscoverer()
	disc.samplesErr = map[string]error{"departments": errors.New("permission denied")}

	catalog, err := svc.BuildCatalog(context.Background(), disc, "postgres")
	require.NoError(t, err)

	dept := catalog.Table("departments")
	require.NotNil(t, dept)
	assert.Empty(t, dept.SampleRows)
}

func TestBuildCatalog_TruncatesAtMaxTables(t *testing.T) {
	matcher := NewHintMatcher(DefaultHintRules())
	cfg := config.DiscoveryConfig{SampleRows: 0, MaxTables: 3, TimeoutSeconds: 60}
	svc := NewSchemaDiscoveryService(matcher, cfg, nil)

	disc := &fakeDiscoverer{columns: map[string][]datasource.ColumnMetadata{}}
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("table_%d", i)
		disc.tables = append(disc.tables, datasource.TableMetadata{SchemaName: "public", TableName: name})
		disc.columns[name] = []datasource.ColumnMetadata{
			{ColumnName: "id", DataType: "integer", IsPrimaryKey: true},
		}
	}

	catalog, err := svc.BuildCatalog(context.Background(), disc, "postgres")
	require.NoError(t, err)
	assert.Len(t, catalog.Tables, 3)
}

func TestBuildCatalog_FingerprintStableAcrossRuns(t *testing.T) {
	svc := discoveryService(t)

	first, err := svc.BuildCatalog(context.Background(), hrDiscoverer(), "postgres")
	require.NoError(t, err)
	second, err := svc.BuildCatalog(context.Background(), hrDiscoverer(), "postgres")
	require.NoError(t, err)

	// ConnectionID and DiscoveredAt differ per run; structure does not.
	assert.NotEqual(t, first.ConnectionID, second.ConnectionID)
	assert.Equal(t, first.Fingerprint(), second.Fingerprint())
	assert.True(t, first.Equal(second))
}

func TestDiscover_UnknownSchemeFailsAsConnectionError(t *testing.T) {
	svc := discoveryService(t)
	_, err := svc.Discover(context.Background(), "gopher://somewhere/db")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConnectionFailed)
}

func TestInferLogicalType(t *testing.T) {
	tests := []struct {
		dataType string
		name     string
		want     models.LogicalType
	}{
		{"boolean", "active", models.LogicalBool},
		{"bit", "enabled", models.LogicalBool},
		{"date", "join_date", models.LogicalDate},
		{"timestamp with time zone", "created_at", models.LogicalDate},
		{"integer", "id", models.LogicalIdentifier},
		{"uuid", "tenant_id", models.LogicalIdentifier},
		{"numeric", "salary", models.LogicalNumeric},
		{"double precision", "score", models.LogicalNumeric},
		{"varchar", "name", models.LogicalText},
		{"jsonb", "payload", models.LogicalText},
		{"bytea", "blob", models.LogicalUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.dataType+"/"+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferLogicalType(tt.dataType, tt.name))
		})
	}
}
