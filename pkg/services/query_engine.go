package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nlq-engine/nlq-engine/pkg/apperrors"
	"github.com/nlq-engine/nlq-engine/pkg/cache"
	"github.com/nlq-engine/nlq-engine/pkg/config"
	"github.com/nlq-engine/nlq-engine/pkg/metrics"
	"github.com/nlq-engine/nlq-engine/pkg/models"
	enginesql "github.com/nlq-engine/nlq-engine/pkg/sql"
)

// QueryEngine answers natural-language questions end to end: cache
// lookup, classification, planning, concurrent structured and document
// branches, merge, cache write and history.
type QueryEngine struct {
	state    *AppState
	searcher DocumentSearcher // nil disables document search
	cfg      config.QueryConfig
	docCfg   config.DocSearchConfig
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewQueryEngine creates the engine. searcher may be nil; document
// branches then resolve to empty results with a note.
func NewQueryEngine(state *AppState, searcher DocumentSearcher, cfg config.QueryConfig, docCfg config.DocSearchConfig, m *metrics.Metrics, logger *zap.Logger) *QueryEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &QueryEngine{
		state:    state,
		searcher: searcher,
		cfg:      cfg,
		docCfg:   docCfg,
		metrics:  m,
		logger:   logger.Named("query_engine"),
	}
}

// Run handles one question. Page and pageSize of zero take configured
// defaults; oversized pageSize clamps to the configured maximum.
func (e *QueryEngine) Run(ctx context.Context, query string, page, pageSize int) (*models.QueryResponse, error) {
	start := time.Now()

	state, err := e.state.Snapshot()
	if err != nil {
		return nil, err
	}
	if page <= 0 {
		page = 1
	}
	pageSize = state.Planner.ClampPageSize(pageSize)

	resultCache := e.state.Cache()
	key := cache.Key(state.Catalog.ConnectionID, query, page, pageSize)
	if value, age, ok := resultCache.Get(key); ok {
		e.metrics.ObserveCache(true)
		cached, isResponse := value.(models.QueryResponse)
		if isResponse {
			hits, misses := resultCache.Stats()
			cached.Cache = models.CacheStatus{Hit: true, AgeMs: age.Milliseconds(), Hits: hits, Misses: misses}
			cached.Performance = models.Performance{ResponseTimeMs: time.Since(start).Milliseconds()}
			e.record(query, cached.QueryType, start, "cache_hit")
			return &cached, nil
		}
		// A foreign payload type means the cache is not trustworthy.
		resultCache.Reset()
	}
	e.metrics.ObserveCache(false)

	mapped := state.Mapper.Map(query)
	intent := state.Planner.Classify(query, mapped)

	response, err := e.execute(ctx, state, query, intent, page, pageSize)
	if err != nil {
		e.record(query, intent.Type, start, "error")
		return nil, err
	}

	hits, misses := resultCache.Stats()
	response.QueryType = intent.Type
	response.Performance = models.Performance{ResponseTimeMs: time.Since(start).Milliseconds()}
	response.Cache = models.CacheStatus{Hit: false, Hits: hits, Misses: misses}

	// Partial responses are not cached; a retry may do better.
	if !response.Partial {
		resultCache.Put(key, *response)
	}

	e.record(query, intent.Type, start, "ok")
	return response, nil
}

func (e *QueryEngine) record(query string, queryType models.QueryType, start time.Time, outcome string) {
	elapsed := time.Since(start)
	e.state.History().Append(query, queryType, elapsed)
	e.metrics.ObserveQuery(string(queryType), outcome, elapsed.Seconds())
}

// execute runs the branches an intent needs. For hybrid intents both
// branches run concurrently and a per-branch failure degrades to a
// partial response instead of failing the request.
func (e *QueryEngine) execute(ctx context.Context, state *ConnectionState, query string, intent models.QueryIntent, page, pageSize int) (*models.QueryResponse, error) {
	var (
		wg        sync.WaitGroup
		tableRes  *models.TableResult
		docs      []models.DocumentMatch
		planNote  string
		tableErr  error
		docErr    error
		docNote   string
	)

	runStructured := intent.Type != models.QueryTypeDocument
	runDocuments := intent.Type != models.QueryTypeStructured

	if runStructured {
		wg.Add(1)
		go func() {
			defer wg.Done()
			branchCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout())
			defer cancel()
			tableRes, planNote, tableErr = e.runStructured(branchCtx, state, query, intent, page, pageSize)
		}()
	}
	if runDocuments {
		wg.Add(1)
		go func() {
			defer wg.Done()
			branchCtx, cancel := context.WithTimeout(ctx, e.docCfg.Timeout())
			defer cancel()
			docs, docNote, docErr = e.runDocuments(branchCtx, intent, query)
		}()
	}
	wg.Wait()

	response := &models.QueryResponse{}

	switch intent.Type {
	case models.QueryTypeStructured:
		if tableErr != nil {
			return nil, tableErr
		}
		response.Results = tableRes
		response.Note = planNote
		response.Sources = tableSources(state, tableRes)

	case models.QueryTypeDocument:
		if docErr != nil {
			return nil, docErr
		}
		if docs == nil {
			docs = []models.DocumentMatch{}
		}
		response.Results = docs
		response.Note = docNote
		response.Sources = documentSources(docs)

	case models.QueryTypeHybrid:
		if tableErr != nil && docErr != nil {
			return nil, tableErr
		}
		if tableErr != nil {
			e.logger.Warn("structured branch failed in hybrid query", zap.Error(tableErr))
			response.Partial = true
			tableRes = nil
		}
		if docErr != nil {
			e.logger.Warn("document branch failed in hybrid query", zap.Error(docErr))
			response.Partial = true
			docs = nil
		}
		if docs == nil {
			docs = []models.DocumentMatch{}
		}
		response.Results = models.HybridResult{Table: tableRes, Documents: docs}
		response.Note = joinNotes(planNote, docNote)
		response.Sources = append(tableSources(state, tableRes), documentSources(docs)...)
	}

	return response, nil
}

// runStructured plans, screens, renders and executes the structured
// branch.
func (e *QueryEngine) runStructured(ctx context.Context, state *ConnectionState, query string, intent models.QueryIntent, page, pageSize int) (*models.TableResult, string, error) {
	plan, err := state.Planner.Plan(query, intent, page, pageSize)
	if err != nil {
		return nil, "", err
	}

	if offending := enginesql.CheckPredicates(plan.Filters); len(offending) > 0 {
		e.logger.Warn("rejecting suspicious parameter value",
			zap.String("column", offending[0].Column),
			zap.String("fingerprint", offending[0].Fingerprint))
		return nil, "", fmt.Errorf("%w: value for %s", apperrors.ErrUnsafeParameter, offending[0].Column)
	}

	sqlText, params, err := enginesql.Render(plan, enginesql.Dialect(state.Catalog.Dialect))
	if err != nil {
		return nil, "", fmt.Errorf("render query: %w", err)
	}

	result, err := state.Executor.Query(ctx, sqlText, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, "", fmt.Errorf("%w: structured query", apperrors.ErrTimeout)
		}
		return nil, "", fmt.Errorf("execute query: %w", err)
	}

	return &models.TableResult{
		Columns:  result.Columns,
		Rows:     result.Rows,
		Page:     page,
		PageSize: pageSize,
	}, plan.Note, nil
}

// runDocuments forwards the free-text remainder (or the whole question
// when nothing was bound) to the document collaborator.
func (e *QueryEngine) runDocuments(ctx context.Context, intent models.QueryIntent, query string) ([]models.DocumentMatch, string, error) {
	if e.searcher == nil {
		return nil, "document search is not configured", nil
	}

	searchText := strings.Join(intent.FreeText, " ")
	if searchText == "" {
		searchText = query
	}

	docs, err := e.searcher.Search(ctx, searchText, e.docCfg.Limit)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, "", fmt.Errorf("%w: document search", apperrors.ErrTimeout)
		}
		return nil, "", err
	}
	return docs, "", nil
}

func tableSources(state *ConnectionState, tableRes *models.TableResult) []map[string]any {
	if tableRes == nil {
		return nil
	}
	return []map[string]any{{
		"type":    "table",
		"dialect": state.Catalog.Dialect,
	}}
}

func documentSources(docs []models.DocumentMatch) []map[string]any {
	sources := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		source := map[string]any{"type": "document"}
		for k, v := range d.Metadata {
			source[k] = v
		}
		sources = append(sources, source)
	}
	return sources
}

func joinNotes(notes ...string) string {
	var parts []string
	for _, n := range notes {
		if n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "; ")
}
