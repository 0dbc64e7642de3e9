package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlq-engine/nlq-engine/pkg/config"
)

func docSearcherFor(t *testing.T, server *httptest.Server) *HTTPDocumentSearcher {
	t.Helper()
	searcher := NewHTTPDocumentSearcher(config.DocSearchConfig{
		Endpoint:       server.URL,
		Limit:          10,
		TimeoutSeconds: 5,
	}, nil)
	require.NotNil(t, searcher)
	return searcher
}

func TestHTTPDocumentSearcher_DisabledWithoutEndpoint(t *testing.T) {
	assert.Nil(t, NewHTTPDocumentSearcher(config.DocSearchConfig{}, nil))
}

func TestHTTPDocumentSearcher_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)

		var req docSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "remote policy", req.Query)
		assert.Equal(t, 5, req.Limit)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"text": "Remote work policy v3", "score": 0.9, "metadata": map[string]any{"source": "handbook.pdf"}},
				{"text": "Travel policy", "score": 0.4},
			},
		})
	}))
	defer server.Close()

	docs, err := docSearcherFor(t, server).Search(context.Background(), "remote policy", 5)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Remote work policy v3", docs[0].Text)
	assert.Equal(t, 0.9, docs[0].Score)
	assert.Equal(t, "handbook.pdf", docs[0].Metadata["source"])
}

func TestHTTPDocumentSearcher_ClampsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req docSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 10, req.Limit)
		_ = json.NewEncoder(w).Encode(docSearchResponse{})
	}))
	defer server.Close()

	_, err := docSearcherFor(t, server).Search(context.Background(), "anything", 500)
	require.NoError(t, err)
}

func TestHTTPDocumentSearcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"text": "hit", "score": 0.5}},
		})
	}))
	defer server.Close()

	docs, err := docSearcherFor(t, server).Search(context.Background(), "flaky", 3)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPDocumentSearcher_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := docSearcherFor(t, server).Search(context.Background(), "bad", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load())
}
