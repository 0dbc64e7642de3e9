package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nlq-engine/nlq-engine/pkg/adapters/datasource"
	"github.com/nlq-engine/nlq-engine/pkg/apperrors"
	"github.com/nlq-engine/nlq-engine/pkg/config"
	"github.com/nlq-engine/nlq-engine/pkg/models"
)

// SchemaDiscoveryService builds a SchemaCatalog from a live connection:
// enumerate tables and columns, tag names with semantic hints, derive
// foreign keys (declared, or inferred from naming convention), and sample
// a handful of rows per table for value matching.
type SchemaDiscoveryService struct {
	matcher *HintMatcher
	cfg     config.DiscoveryConfig
	logger  *zap.Logger
}

// NewSchemaDiscoveryService creates a schema discovery service.
func NewSchemaDiscoveryService(matcher *HintMatcher, cfg config.DiscoveryConfig, logger *zap.Logger) *SchemaDiscoveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaDiscoveryService{
		matcher: matcher,
		cfg:     cfg,
		logger:  logger.Named("schema_discovery"),
	}
}

// Discover connects to the store named by the connection descriptor and
// builds a catalog. Only read-only introspection queries are issued.
func (s *SchemaDiscoveryService) Discover(ctx context.Context, connStr string) (*models.SchemaCatalog, error) {
	desc, err := datasource.ParseDescriptor(connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConnectionFailed, err)
	}

	factory := datasource.GetSchemaDiscovererFactory(desc.Type)
	if factory == nil {
		return nil, fmt.Errorf("%w: no adapter registered for dialect %q", apperrors.ErrConnectionFailed, desc.Type)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout())
	defer cancel()

	discoverer, err := factory(ctx, desc.DSN, s.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConnectionFailed, err)
	}
	defer discoverer.Close()

	s.logger.Info("connected, starting discovery",
		zap.String("dialect", desc.Type),
		zap.String("target", desc.Redacted()))

	return s.BuildCatalog(ctx, discoverer, desc.Type)
}

// BuildCatalog converts adapter metadata into an immutable catalog.
// Failures on an individual table are logged and the table skipped; the
// whole build fails only when table enumeration itself fails.
func (s *SchemaDiscoveryService) BuildCatalog(ctx context.Context, discoverer datasource.SchemaDiscoverer, dialect string) (*models.SchemaCatalog, error) {
	tableMeta, err := discoverer.DiscoverTables(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: schema discovery", apperrors.ErrTimeout)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrIntrospection, err)
	}

	if len(tableMeta) > s.cfg.MaxTables {
		s.logger.Warn("schema exceeds table cap, truncating",
			zap.Int("tables", len(tableMeta)),
			zap.Int("max", s.cfg.MaxTables))
		tableMeta = tableMeta[:s.cfg.MaxTables]
	}

	tables := make([]models.TableInfo, 0, len(tableMeta))
	for _, tm := range tableMeta {
		table, err := s.buildTable(ctx, discoverer, tm)
		if err != nil {
			s.logger.Warn("skipping table, column discovery failed",
				zap.String("table", tm.TableName),
				zap.Error(err))
			continue
		}
		tables = append(tables, table)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: no tables could be introspected", apperrors.ErrIntrospection)
	}

	if discoverer.SupportsForeignKeys() {
		if err := s.attachDeclaredForeignKeys(ctx, discoverer, tables); err != nil {
			s.logger.Warn("foreign key discovery failed, falling back to name inference", zap.Error(err))
			inferForeignKeys(tables)
		}
	} else {
		inferForeignKeys(tables)
	}
	markForeignKeyColumns(tables)

	return &models.SchemaCatalog{
		ConnectionID: uuid.New(),
		Dialect:      dialect,
		Tables:       tables,
		DiscoveredAt: time.Now(),
	}, nil
}

func (s *SchemaDiscoveryService) buildTable(ctx context.Context, discoverer datasource.SchemaDiscoverer, tm datasource.TableMetadata) (models.TableInfo, error) {
	colMeta, err := discoverer.DiscoverColumns(ctx, tm.SchemaName, tm.TableName)
	if err != nil {
		return models.TableInfo{}, err
	}

	columns := make([]models.ColumnInfo, 0, len(colMeta))
	for _, cm := range colMeta {
		columns = append(columns, models.ColumnInfo{
			Name:      cm.ColumnName,
			DataType:  cm.DataType,
			Logical:   inferLogicalType(cm.DataType, cm.ColumnName),
			Nullable:  cm.IsNullable,
			IsPrimary: cm.IsPrimaryKey,
			Hints:     s.matcher.ColumnHints(cm.ColumnName),
		})
	}

	table := models.TableInfo{
		Schema:   tm.SchemaName,
		Name:     tm.TableName,
		Columns:  columns,
		Hints:    s.matcher.TableHints(tm.TableName),
		RowCount: tm.RowCount,
	}

	// Sampling failures (permissions, empty table) degrade to no sample.
	if s.cfg.SampleRows > 0 {
		samples, err := discoverer.SampleRows(ctx, tm.SchemaName, tm.TableName, s.cfg.SampleRows)
		if err != nil {
			s.logger.Warn("row sampling failed, continuing without samples",
				zap.String("table", tm.TableName),
				zap.Error(err))
		} else {
			table.SampleRows = samples
		}
	}

	return table, nil
}

func (s *SchemaDiscoveryService) attachDeclaredForeignKeys(ctx context.Context, discoverer datasource.SchemaDiscoverer, tables []models.TableInfo) error {
	fkMeta, err := discoverer.DiscoverForeignKeys(ctx)
	if err != nil {
		return err
	}

	byName := make(map[string]*models.TableInfo, len(tables))
	for i := range tables {
		byName[strings.ToLower(tables[i].Name)] = &tables[i]
	}

	for _, fk := range fkMeta {
		table, ok := byName[strings.ToLower(fk.SourceTable)]
		if !ok {
			continue
		}
		table.ForeignKeys = append(table.ForeignKeys, models.ForeignKeyRef{
			Column:    fk.SourceColumn,
			RefTable:  fk.TargetTable,
			RefColumn: fk.TargetColumn,
		})
	}
	return nil
}

// inferForeignKeys derives likely relations from the <table>_id naming
// convention when the store declares no constraints. Matches are recorded
// as inferred, lower-confidence refs, never hard constraints.
func inferForeignKeys(tables []models.TableInfo) {
	singularToTable := make(map[string]*models.TableInfo, len(tables))
	for i := range tables {
		singularToTable[NormalizeName(tables[i].Name)] = &tables[i]
	}

	for i := range tables {
		for _, col := range tables[i].Columns {
			name := strings.ToLower(col.Name)
			if !strings.HasSuffix(name, "_id") || name == "_id" {
				continue
			}
			base := NormalizeName(strings.TrimSuffix(name, "_id"))
			ref, ok := singularToTable[base]
			if !ok || ref.Name == tables[i].Name {
				continue
			}
			refColumn := ref.PrimaryKey()
			if refColumn == "" {
				refColumn = "id"
			}
			tables[i].ForeignKeys = append(tables[i].ForeignKeys, models.ForeignKeyRef{
				Column:    col.Name,
				RefTable:  ref.Name,
				RefColumn: refColumn,
				Inferred:  true,
			})
		}
	}
}

// markForeignKeyColumns upgrades the logical type of columns that
// participate in a foreign key.
func markForeignKeyColumns(tables []models.TableInfo) {
	for i := range tables {
		for _, fk := range tables[i].ForeignKeys {
			if col := tables[i].Column(fk.Column); col != nil {
				col.Logical = models.LogicalForeignKey
			}
		}
	}
}

// inferLogicalType maps a dialect data type plus a column name onto the
// logical role the planner reasons about.
func inferLogicalType(dataType, name string) models.LogicalType {
	dt := strings.ToLower(dataType)
	n := strings.ToLower(name)

	switch {
	case strings.Contains(dt, "bool"), dt == "bit":
		return models.LogicalBool
	case strings.Contains(dt, "date"), strings.Contains(dt, "time"):
		return models.LogicalDate
	}

	numeric := strings.Contains(dt, "int") || strings.Contains(dt, "numeric") ||
		strings.Contains(dt, "decimal") || strings.Contains(dt, "float") ||
		strings.Contains(dt, "double") || strings.Contains(dt, "real") ||
		strings.Contains(dt, "money") || dt == "serial" || dt == "bigserial"

	if n == "id" || strings.HasSuffix(n, "_id") {
		return models.LogicalIdentifier
	}
	if numeric {
		return models.LogicalNumeric
	}
	if strings.Contains(dt, "char") || strings.Contains(dt, "text") ||
		strings.Contains(dt, "uuid") || strings.Contains(dt, "string") ||
		strings.Contains(dt, "json") {
		return models.LogicalText
	}
	return models.LogicalUnknown
}
