package sql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nlq-engine/nlq-engine/pkg/models"
)

// Dialect selects placeholder syntax, identifier quoting and pagination
// form for rendered queries. Values match the adapter type names.
type Dialect string

const (
	DialectPostgres  Dialect = "postgres"
	DialectSQLServer Dialect = "sqlserver"
	DialectDuckDB    Dialect = "duckdb"
)

// identifierPattern matches identifiers the renderer will accept. Plan
// identifiers come from the discovered catalog, but rendering is the last
// line of defense before SQL text exists, so anything unusual is rejected
// rather than quoted around.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// allowedOperators are the predicate operators the renderer will emit.
var allowedOperators = map[string]bool{
	"=": true, "<": true, ">": true, "<=": true, ">=": true, "<>": true,
	"LIKE": true, "ILIKE": true,
}

// Render turns a resolved query plan into dialect SQL plus an ordered
// parameter list. All user-derived literals become bound parameters; only
// catalog identifiers and fixed keywords appear in the SQL text.
func Render(plan *models.QueryPlan, dialect Dialect) (string, []any, error) {
	if plan == nil {
		return "", nil, fmt.Errorf("nil query plan")
	}
	if err := validateIdentifier(plan.Table); err != nil {
		return "", nil, fmt.Errorf("table: %w", err)
	}

	var (
		sb     strings.Builder
		params []any
	)

	selectClause, err := renderSelect(plan, dialect)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(selectClause)

	sb.WriteString(" FROM ")
	sb.WriteString(quoteIdent(plan.Table, dialect))

	if plan.Join != nil {
		joinClause, err := renderJoin(plan, dialect)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(joinClause)
	}

	if len(plan.Filters) > 0 {
		whereClause, whereParams, err := renderWhere(plan.Filters, dialect, len(params))
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(whereClause)
		params = append(params, whereParams...)
	}

	if len(plan.GroupBy) > 0 {
		groupClause, err := renderGroupBy(plan.GroupBy, dialect)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(groupClause)
	}

	if len(plan.OrderBy) > 0 {
		orderClause, err := renderOrderBy(plan.OrderBy, dialect)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(orderClause)
	}

	// Count and grouped aggregates return small result sets and are not
	// paginated. Everything else is.
	if plan.Limit > 0 {
		pageClause, pageParams := renderPagination(plan, dialect, len(params))
		sb.WriteString(pageClause)
		params = append(params, pageParams...)
	}

	return sb.String(), params, nil
}

func renderSelect(plan *models.QueryPlan, dialect Dialect) (string, error) {
	if plan.AggregateFunc != "" {
		return renderAggregateSelect(plan, dialect)
	}

	if len(plan.Columns) == 0 {
		return "SELECT *", nil
	}

	quoted := make([]string, 0, len(plan.Columns))
	for _, col := range plan.Columns {
		q, err := quoteColumnRef(col, dialect)
		if err != nil {
			return "", err
		}
		quoted = append(quoted, q)
	}
	return "SELECT " + strings.Join(quoted, ", "), nil
}

func renderAggregateSelect(plan *models.QueryPlan, dialect Dialect) (string, error) {
	fn := strings.ToUpper(plan.AggregateFunc)
	switch fn {
	case "COUNT", "SUM", "AVG", "MIN", "MAX":
	default:
		return "", fmt.Errorf("unsupported aggregate function %q", plan.AggregateFunc)
	}

	var agg string
	if fn == "COUNT" && plan.AggregateCol == "" {
		agg = "COUNT(*) AS " + quoteIdent("count", dialect)
	} else {
		col, err := quoteColumnRef(plan.AggregateCol, dialect)
		if err != nil {
			return "", err
		}
		alias := strings.ToLower(fn) + "_" + lastIdentPart(plan.AggregateCol)
		agg = fmt.Sprintf("%s(%s) AS %s", fn, col, quoteIdent(alias, dialect))
	}

	if len(plan.GroupBy) == 0 {
		return "SELECT " + agg, nil
	}

	parts := make([]string, 0, len(plan.GroupBy)+1)
	for _, col := range plan.GroupBy {
		q, err := quoteColumnRef(col, dialect)
		if err != nil {
			return "", err
		}
		parts = append(parts, q)
	}
	parts = append(parts, agg)
	return "SELECT " + strings.Join(parts, ", "), nil
}

func renderJoin(plan *models.QueryPlan, dialect Dialect) (string, error) {
	j := plan.Join
	if err := validateIdentifier(j.Table); err != nil {
		return "", fmt.Errorf("join table: %w", err)
	}
	if err := validateIdentifier(j.Column); err != nil {
		return "", fmt.Errorf("join column: %w", err)
	}
	if err := validateIdentifier(j.RefColumn); err != nil {
		return "", fmt.Errorf("join ref column: %w", err)
	}

	return fmt.Sprintf(" JOIN %s ON %s.%s = %s.%s",
		quoteIdent(j.Table, dialect),
		quoteIdent(plan.Table, dialect), quoteIdent(j.Column, dialect),
		quoteIdent(j.Table, dialect), quoteIdent(j.RefColumn, dialect),
	), nil
}

func renderWhere(filters []models.FilterPredicate, dialect Dialect, paramOffset int) (string, []any, error) {
	conditions := make([]string, 0, len(filters))
	params := make([]any, 0, len(filters))

	for i, f := range filters {
		op := strings.ToUpper(strings.TrimSpace(f.Operator))
		if !allowedOperators[op] {
			return "", nil, fmt.Errorf("unsupported operator %q", f.Operator)
		}
		// Postgres and DuckDB support ILIKE natively. SQL Server does
		// not, but its default collations make LIKE case-insensitive.
		if op == "ILIKE" && dialect == DialectSQLServer {
			op = "LIKE"
		}
		col, err := quoteColumnRef(f.Column, dialect)
		if err != nil {
			return "", nil, err
		}
		conditions = append(conditions, fmt.Sprintf("%s %s %s", col, op, placeholder(dialect, paramOffset+i+1)))
		params = append(params, f.Value)
	}

	return " WHERE " + strings.Join(conditions, " AND "), params, nil
}

func renderGroupBy(groupBy []string, dialect Dialect) (string, error) {
	quoted := make([]string, 0, len(groupBy))
	for _, col := range groupBy {
		q, err := quoteColumnRef(col, dialect)
		if err != nil {
			return "", err
		}
		quoted = append(quoted, q)
	}
	return " GROUP BY " + strings.Join(quoted, ", "), nil
}

func renderOrderBy(orderBy []models.OrderSpec, dialect Dialect) (string, error) {
	terms := make([]string, 0, len(orderBy))
	for _, o := range orderBy {
		q, err := quoteColumnRef(o.Column, dialect)
		if err != nil {
			return "", err
		}
		if o.Desc {
			q += " DESC"
		}
		terms = append(terms, q)
	}
	return " ORDER BY " + strings.Join(terms, ", "), nil
}

func renderPagination(plan *models.QueryPlan, dialect Dialect, paramOffset int) (string, []any) {
	switch dialect {
	case DialectSQLServer:
		// OFFSET/FETCH requires an ORDER BY clause.
		prefix := ""
		if len(plan.OrderBy) == 0 {
			prefix = " ORDER BY (SELECT NULL)"
		}
		clause := fmt.Sprintf("%s OFFSET %s ROWS FETCH NEXT %s ROWS ONLY",
			prefix, placeholder(dialect, paramOffset+1), placeholder(dialect, paramOffset+2))
		return clause, []any{plan.Offset, plan.Limit}
	default:
		clause := fmt.Sprintf(" LIMIT %s OFFSET %s",
			placeholder(dialect, paramOffset+1), placeholder(dialect, paramOffset+2))
		return clause, []any{plan.Limit, plan.Offset}
	}
}

// placeholder returns the dialect placeholder for 1-based parameter n.
func placeholder(dialect Dialect, n int) string {
	if dialect == DialectSQLServer {
		return fmt.Sprintf("@p%d", n)
	}
	return fmt.Sprintf("$%d", n)
}

// quoteIdent quotes a single bare identifier.
func quoteIdent(name string, dialect Dialect) string {
	if dialect == DialectSQLServer {
		return "[" + name + "]"
	}
	return `"` + name + `"`
}

// quoteColumnRef quotes an optionally table-qualified column reference
// ("salary" or "departments.name"), validating each part.
func quoteColumnRef(ref string, dialect Dialect) (string, error) {
	parts := strings.Split(ref, ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("invalid column reference %q", ref)
	}
	quoted := make([]string, 0, len(parts))
	for _, part := range parts {
		if err := validateIdentifier(part); err != nil {
			return "", fmt.Errorf("column reference %q: %w", ref, err)
		}
		quoted = append(quoted, quoteIdent(part, dialect))
	}
	return strings.Join(quoted, "."), nil
}

func lastIdentPart(ref string) string {
	if idx := strings.LastIndex(ref, "."); idx >= 0 {
		return ref[idx+1:]
	}
	return ref
}

func validateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("empty identifier")
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}
