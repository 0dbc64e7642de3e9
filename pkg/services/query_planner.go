package services

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nlq-engine/nlq-engine/pkg/apperrors"
	"github.com/nlq-engine/nlq-engine/pkg/config"
	"github.com/nlq-engine/nlq-engine/pkg/models"
)

// documentKeywords mark a question as targeting the document corpus
// rather than (or in addition to) the relational store.
var documentKeywords = []string{
	"resume", "document", "policy", "contract", "review", "pdf", "doc", "report", "file",
}

// shapeVocabulary are operation words the classifier consumes itself.
// They are excluded from the free-text remainder so a plain count
// question does not look like it carries document search terms.
var shapeVocabulary = map[string]bool{
	"how": true, "many": true, "much": true, "number": true, "count": true,
	"total": true, "sum": true, "average": true, "avg": true, "mean": true,
	"max": true, "maximum": true, "highest": true, "most": true,
	"min": true, "minimum": true, "lowest": true, "least": true, "fewest": true,
	"more": true, "over": true, "above": true, "greater": true, "exceeding": true,
	"less": true, "fewer": true, "under": true, "below": true,
	"this": true, "current": true, "year": true, "month": true,
	"hired": true, "joined": true, "started": true, "hire": true,
	"earn": true, "earning": true, "earns": true, "make": true, "making": true, "makes": true, "paid": true,
	"work": true, "working": true, "works": true,
}

// QueryPlanner classifies questions and turns classified intents into
// parameterized query plans. Identifiers in a plan only ever come from
// the catalog; user literals only ever become bound parameters.
type QueryPlanner struct {
	catalog *models.SchemaCatalog
	cfg     config.QueryConfig
	logger  *zap.Logger
}

// NewQueryPlanner creates a planner over a discovered catalog.
func NewQueryPlanner(catalog *models.SchemaCatalog, cfg config.QueryConfig, logger *zap.Logger) *QueryPlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryPlanner{catalog: catalog, cfg: cfg, logger: logger.Named("query_planner")}
}

// Classify decides the answer strategy for a question. Structured when
// entities resolve to the catalog and an operation shape is recognized;
// document when nothing structured matched but free text remains; hybrid
// when both sides contribute.
func (p *QueryPlanner) Classify(text string, mapped MapResult) models.QueryIntent {
	lower := strings.ToLower(text)

	shape, aggregate := detectShape(lower)

	freeText := make([]string, 0, len(mapped.FreeText))
	for _, token := range mapped.FreeText {
		if !shapeVocabulary[strings.ToLower(token)] {
			freeText = append(freeText, token)
		}
	}

	hasStructured := false
	for _, e := range mapped.Entities {
		if e.Table != "" {
			hasStructured = true
			break
		}
	}
	wantsDocuments := len(freeText) > 0 || containsDocumentKeyword(lower)

	intent := models.QueryIntent{
		Shape:     shape,
		Aggregate: aggregate,
		Entities:  mapped.Entities,
		FreeText:  freeText,
	}
	switch {
	case hasStructured && wantsDocuments:
		intent.Type = models.QueryTypeHybrid
	case hasStructured:
		intent.Type = models.QueryTypeStructured
	default:
		intent.Type = models.QueryTypeDocument
	}
	return intent
}

func containsDocumentKeyword(lower string) bool {
	for _, kw := range documentKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// detectShape recognizes the supported operation shapes from phrasing.
func detectShape(lower string) (models.OperationShape, string) {
	if strings.Contains(lower, "how many") || strings.HasPrefix(lower, "count") ||
		strings.Contains(lower, "number of") {
		return models.ShapeCount, "count"
	}

	aggregates := []struct {
		words []string
		fn    string
	}{
		{[]string{"average", "avg", "mean"}, "avg"},
		{[]string{"total", "sum"}, "sum"},
		{[]string{"highest", "maximum", "max ", "most paid", "top paid"}, "max"},
		{[]string{"lowest", "minimum", "min ", "least paid"}, "min"},
	}
	for _, a := range aggregates {
		for _, w := range a.words {
			if strings.Contains(lower, w) {
				return models.ShapeAggregate, a.fn
			}
		}
	}

	return models.ShapeFilter, ""
}

// Plan builds a parameterized plan for a structured or hybrid intent.
// Failures surface as *apperrors.QueryNotUnderstoodError carrying what
// was and was not recognized.
func (p *QueryPlanner) Plan(text string, intent models.QueryIntent, page, pageSize int) (*models.QueryPlan, error) {
	table := p.chooseBaseTable(intent.Entities)
	if table == nil {
		return nil, p.notUnderstood(intent, "no table in the schema matches the question")
	}

	plan := &models.QueryPlan{Table: table.Name}
	lower := strings.ToLower(text)

	// Entities bound to other tables either join along a direct foreign
	// key or are dropped with a note. Guessing multi-hop join paths is
	// worse than a correct partial answer.
	plan.Note = p.reduceForeignEntities(plan, table, intent.Entities)

	switch intent.Shape {
	case models.ShapeCount:
		plan.AggregateFunc = "count"
	case models.ShapeAggregate:
		if err := p.planAggregate(plan, table, intent, lower); err != nil {
			return nil, err
		}
	default:
		page, pageSize = p.clampPagination(page, pageSize)
		plan.Limit = pageSize
		plan.Offset = (page - 1) * pageSize
		if pk := table.PrimaryKey(); pk != "" {
			plan.OrderBy = []models.OrderSpec{{Column: pk}}
		}
	}

	p.addFilters(plan, table, intent, lower)

	return plan, nil
}

// ClampPageSize applies the configured bounds to a requested page size.
// Oversized requests clamp to the maximum rather than failing.
func (p *QueryPlanner) ClampPageSize(pageSize int) int {
	if pageSize <= 0 {
		return p.cfg.DefaultPageSize
	}
	if pageSize > p.cfg.MaxPageSize {
		return p.cfg.MaxPageSize
	}
	return pageSize
}

func (p *QueryPlanner) clampPagination(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	return page, p.ClampPageSize(pageSize)
}

// chooseBaseTable picks the table the question is really about. Each
// binding votes for its owning table; an explicit column mention pins
// the operation to its table harder than a bare table mention does
// ("average salary by department" aggregates employees, not
// departments), and value bindings vote weakest.
func (p *QueryPlanner) chooseBaseTable(entities []models.MappedEntity) *models.TableInfo {
	score := make(map[string]float64)
	for _, e := range entities {
		if e.Table == "" {
			continue
		}
		weight := e.Confidence
		switch e.Kind {
		case models.EntityColumn:
			weight += 1.5
		case models.EntityTable:
			weight += 1.0
		}
		score[e.Table] += weight
	}

	var bestName string
	var bestScore float64
	for name, s := range score {
		if bestName == "" || s > bestScore || (s == bestScore && name < bestName) {
			bestName, bestScore = name, s
		}
	}
	if bestName == "" {
		return nil
	}
	return p.catalog.Table(bestName)
}

// reduceForeignEntities resolves entities living outside the base table.
// A single direct foreign key allows a join (used by grouped aggregates
// and cross-table filters); anything further is reduced away.
func (p *QueryPlanner) reduceForeignEntities(plan *models.QueryPlan, base *models.TableInfo, entities []models.MappedEntity) string {
	reduced := false
	for _, e := range entities {
		if e.Table == "" || strings.EqualFold(e.Table, base.Name) {
			continue
		}
		if plan.Join == nil {
			if fk := p.catalog.ForeignKeyBetween(base.Name, e.Table); fk != nil {
				plan.Join = &models.JoinSpec{Table: e.Table, Column: fk.Column, RefColumn: fk.RefColumn}
				continue
			}
		} else if strings.EqualFold(plan.Join.Table, e.Table) {
			continue
		}
		reduced = true
	}
	if reduced {
		return fmt.Sprintf("question spans multiple tables; answered from %s only", base.Name)
	}
	return ""
}

func (p *QueryPlanner) planAggregate(plan *models.QueryPlan, base *models.TableInfo, intent models.QueryIntent, lower string) error {
	plan.AggregateFunc = intent.Aggregate

	// Aggregate target: an explicitly mentioned numeric column, else a
	// salary-like column, else any numeric column.
	var target *models.ColumnInfo
	for _, e := range intent.Entities {
		if e.Kind != models.EntityColumn || !strings.EqualFold(e.Table, base.Name) {
			continue
		}
		if col := base.Column(e.Column); col != nil && col.Logical == models.LogicalNumeric {
			target = col
			break
		}
	}
	if target == nil {
		target = base.ColumnWithHint("salary-like")
	}
	if target == nil {
		for i := range base.Columns {
			if base.Columns[i].Logical == models.LogicalNumeric {
				target = &base.Columns[i]
				break
			}
		}
	}
	if target == nil {
		return p.notUnderstood(intent, fmt.Sprintf("no numeric column in %s to aggregate", base.Name))
	}
	plan.AggregateCol = target.Name

	// "by X" / "per X" groups by a resolved column, possibly across the
	// plan's join.
	if strings.Contains(lower, " by ") || strings.Contains(lower, " per ") {
		for _, e := range intent.Entities {
			if e.Kind != models.EntityColumn || e.Column == target.Name {
				continue
			}
			if strings.EqualFold(e.Table, base.Name) {
				plan.GroupBy = []string{e.Column}
				break
			}
			if plan.Join != nil && strings.EqualFold(e.Table, plan.Join.Table) {
				plan.AggregateCol = base.Name + "." + target.Name
				plan.GroupBy = []string{e.Table + "." + e.Column}
				break
			}
		}
		if len(plan.GroupBy) == 0 {
			// Fall back to grouping by the join target's name-like column.
			if plan.Join != nil {
				if joined := p.catalog.Table(plan.Join.Table); joined != nil {
					if nameCol := joined.ColumnWithHint("name-like"); nameCol != nil {
						plan.AggregateCol = base.Name + "." + target.Name
						plan.GroupBy = []string{joined.Name + "." + nameCol.Name}
					}
				}
			}
		}
	}
	return nil
}

// addFilters converts value bindings and date phrasing into predicates.
func (p *QueryPlanner) addFilters(plan *models.QueryPlan, base *models.TableInfo, intent models.QueryIntent, lower string) {
	greater := strings.Contains(lower, "more than") || strings.Contains(lower, "over") ||
		strings.Contains(lower, "above") || strings.Contains(lower, "greater than") ||
		strings.Contains(lower, "at least")
	less := strings.Contains(lower, "less than") || strings.Contains(lower, "under") ||
		strings.Contains(lower, "below") || strings.Contains(lower, "fewer than")

	for _, e := range intent.Entities {
		if e.Kind != models.EntityValue || e.Column == "" {
			continue
		}

		column := e.Column
		switch {
		case strings.EqualFold(e.Table, base.Name):
		case plan.Join != nil && strings.EqualFold(e.Table, plan.Join.Table):
			column = e.Table + "." + e.Column
		default:
			continue // reduced away; the plan note explains it
		}

		operator := "="
		value := e.Value
		if s, ok := value.(string); ok {
			if numberPattern.MatchString(s) {
				if greater {
					operator = ">"
				} else if less {
					operator = "<"
				}
			} else if !datePattern.MatchString(s) {
				operator = "ILIKE"
				value = s
			}
		}
		plan.Filters = append(plan.Filters, models.FilterPredicate{Column: column, Operator: operator, Value: value})
	}

	// "hired this year" and friends filter the date-like column from the
	// start of the current year.
	if strings.Contains(lower, "this year") {
		if dateCol := base.ColumnWithHint("date-like"); dateCol != nil {
			yearStart := fmt.Sprintf("%d-01-01", time.Now().Year())
			plan.Filters = append(plan.Filters, models.FilterPredicate{
				Column: dateCol.Name, Operator: ">=", Value: yearStart,
			})
		}
	}
}

func (p *QueryPlanner) notUnderstood(intent models.QueryIntent, reason string) error {
	var matched, unmatched []string
	for _, e := range intent.Entities {
		matched = append(matched, e.Token)
	}
	unmatched = append(unmatched, intent.FreeText...)
	return &apperrors.QueryNotUnderstoodError{Matched: matched, Unmatched: unmatched, Reason: reason}
}
