package models

import "time"

// QueryType classifies how a question will be answered.
type QueryType string

const (
	QueryTypeStructured QueryType = "structured"
	QueryTypeDocument   QueryType = "document"
	QueryTypeHybrid     QueryType = "hybrid"
)

// OperationShape is the extracted shape of a structured operation.
type OperationShape string

const (
	ShapeCount     OperationShape = "count"
	ShapeAggregate OperationShape = "aggregate"
	ShapeFilter    OperationShape = "filter"
)

// EntityKind says what a natural-language token was bound to.
type EntityKind string

const (
	EntityTable  EntityKind = "table"
	EntityColumn EntityKind = "column"
	EntityValue  EntityKind = "value"
)

// MappedEntity binds a natural-language token to a catalog element or a
// literal value candidate, with a confidence score in [0,1].
type MappedEntity struct {
	Token      string     `json:"token"`
	Kind       EntityKind `json:"kind"`
	Table      string     `json:"table,omitempty"`
	Column     string     `json:"column,omitempty"`
	Value      any        `json:"value,omitempty"`
	Confidence float64    `json:"confidence"`
}

// QueryIntent is the result of classification: the answer strategy, the
// operation shape for the structured branch, the entities that were bound
// to the catalog and the tokens that were not. Unmatched tokens are kept
// so the document branch can still act on them.
type QueryIntent struct {
	Type      QueryType      `json:"type"`
	Shape     OperationShape `json:"shape,omitempty"`
	Aggregate string         `json:"aggregate,omitempty"` // sum, avg, min, max, count
	Entities  []MappedEntity `json:"entities,omitempty"`
	FreeText  []string       `json:"free_text,omitempty"`
}

// FilterPredicate is a single WHERE predicate. Column comes from the
// catalog; Value is always bound as a query parameter, never rendered
// into the SQL text.
type FilterPredicate struct {
	Column   string `json:"column"`
	Operator string `json:"operator"` // =, <, >, <=, >=, LIKE
	Value    any    `json:"value"`
}

// JoinSpec describes a single join along a discovered foreign key.
type JoinSpec struct {
	Table     string `json:"table"`
	Column    string `json:"column"`     // column on the base table
	RefColumn string `json:"ref_column"` // column on the joined table
}

// OrderSpec is a single ORDER BY term.
type OrderSpec struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}

// QueryPlan is a fully resolved, parameterized structured-query template.
// Every identifier in it was verified against the active SchemaCatalog;
// user-supplied literals appear only as predicate values, which the
// renderer turns into bound placeholders.
type QueryPlan struct {
	Table         string            `json:"table"`
	Columns       []string          `json:"columns,omitempty"` // empty means *
	AggregateFunc string            `json:"aggregate_func,omitempty"`
	AggregateCol  string            `json:"aggregate_col,omitempty"`
	GroupBy       []string          `json:"group_by,omitempty"`
	Filters       []FilterPredicate `json:"filters,omitempty"`
	Join          *JoinSpec         `json:"join,omitempty"`
	OrderBy       []OrderSpec       `json:"order_by,omitempty"`
	Limit         int               `json:"limit"`
	Offset        int               `json:"offset"`
	Note          string            `json:"note,omitempty"`
}

// TableResult is the structured half of a query response.
type TableResult struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// DocumentMatch is one hit from the document-search collaborator.
type DocumentMatch struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score,omitempty"`
}

// HybridResult keeps structured and document results under distinct keys.
// No deduplication or fusion happens across the two result types.
type HybridResult struct {
	Table     *TableResult    `json:"table"`
	Documents []DocumentMatch `json:"documents"`
}

// CacheStatus reports cache observability for a single request.
type CacheStatus struct {
	Hit    bool  `json:"hit"`
	AgeMs  int64 `json:"age_ms"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Performance carries per-request timing.
type Performance struct {
	ResponseTimeMs int64 `json:"response_time_ms"`
}

// QueryResponse is the payload returned by the query engine. For hybrid
// intents Results holds a HybridResult.
type QueryResponse struct {
	QueryType   QueryType        `json:"query_type"`
	Results     any              `json:"results"`
	Sources     []map[string]any `json:"sources,omitempty"`
	Performance Performance      `json:"performance"`
	Cache       CacheStatus      `json:"cache"`
	Partial     bool             `json:"partial,omitempty"`
	Note        string           `json:"note,omitempty"`
}

// HistoryRecord is one submitted natural-language query.
type HistoryRecord struct {
	Query       string    `json:"query"`
	Type        QueryType `json:"type"`
	SubmittedAt time.Time `json:"submitted_at"`
	DurationMs  int64     `json:"duration_ms"`
}
