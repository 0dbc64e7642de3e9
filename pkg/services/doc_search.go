package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/nlq-engine/nlq-engine/pkg/apperrors"
	"github.com/nlq-engine/nlq-engine/pkg/config"
	"github.com/nlq-engine/nlq-engine/pkg/models"
	"github.com/nlq-engine/nlq-engine/pkg/retry"
)

// DocumentSearcher is the external document-search collaborator. Latency
// and relevance ranking are entirely its responsibility; this engine only
// forwards free text and preserves the returned order.
type DocumentSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.DocumentMatch, error)
}

// HTTPDocumentSearcher talks to a document-search service over HTTP.
type HTTPDocumentSearcher struct {
	endpoint string
	limit    int
	client   *http.Client
	logger   *zap.Logger
}

// NewHTTPDocumentSearcher creates a searcher for the configured endpoint.
// Returns nil when no endpoint is configured; callers treat a nil
// searcher as document search being disabled.
func NewHTTPDocumentSearcher(cfg config.DocSearchConfig, logger *zap.Logger) *HTTPDocumentSearcher {
	if cfg.Endpoint == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPDocumentSearcher{
		endpoint: cfg.Endpoint,
		limit:    cfg.Limit,
		client:   &http.Client{Timeout: cfg.Timeout()},
		logger:   logger.Named("doc_search"),
	}
}

type docSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type docSearchResponse struct {
	Results []models.DocumentMatch `json:"results"`
}

// Search posts the free-text query to the collaborator and returns its
// matches in collaborator order. Transient failures (connection resets,
// 5xx) are retried with backoff inside the caller's deadline.
func (s *HTTPDocumentSearcher) Search(ctx context.Context, query string, limit int) ([]models.DocumentMatch, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}

	body, err := json.Marshal(docSearchRequest{Query: query, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	var results []models.DocumentMatch
	err = retry.Do(ctx, nil, func() error {
		results, err = s.searchOnce(ctx, body)
		return err
	})
	return results, err
}

func (s *HTTPDocumentSearcher) searchOnce(ctx context.Context, body []byte) ([]models.DocumentMatch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: document search", apperrors.ErrTimeout)
		}
		return nil, fmt.Errorf("document search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("document search returned status %d", resp.StatusCode)
	}

	var parsed docSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return parsed.Results, nil
}

var _ DocumentSearcher = (*HTTPDocumentSearcher)(nil)
