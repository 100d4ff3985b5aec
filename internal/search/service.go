package search

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anvik/docstream/internal/config"
	"github.com/anvik/docstream/internal/domain/docmodel"
	"github.com/anvik/docstream/internal/metrics"
	"github.com/anvik/docstream/internal/rag/embedding"
	"github.com/anvik/docstream/internal/rag/vectorDB"
	"github.com/anvik/docstream/pkg/logger_i"
)

// Service answers free-text queries from the result cache or the vector
// index. The cache is read-through and advisory: an unreachable cache is
// treated exactly like a miss, never surfaced to the caller.
type Service interface {
	Search(ctx context.Context, query string) (docmodel.SearchResult, error)
}

type service struct {
	cache    docmodel.ResultCache
	vectorDB vectorDB.DataProcessor
	embedder embedding.Embedder
	logger   *logger_i.Logger
}

func NewService(cache docmodel.ResultCache, vector vectorDB.DataProcessor, em embedding.Embedder) Service {
	return &service{
		cache:    cache,
		vectorDB: vector,
		embedder: em,
		logger:   logger_i.NewLogger("SearchService"),
	}
}

// The key is the raw query string, no normalization: case and whitespace
// variants cache separately.
func cacheKey(query string) string {
	return config.SearchKeySpace + query
}

func (s *service) Search(ctx context.Context, query string) (docmodel.SearchResult, error) {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	if cached, found := s.checkCache(ctx, log, query); found {
		return cached, nil
	}

	start := time.Now()
	vector, err := s.embedder.GetEmbedding(ctx, query)
	if err != nil {
		return docmodel.SearchResult{}, fmt.Errorf("embed query: %w", err)
	}
	metrics.CaptureExecutionMetrics("embedding", time.Since(start))

	start = time.Now()
	hits, err := s.vectorDB.Search(ctx, vector)
	if err != nil {
		return docmodel.SearchResult{}, fmt.Errorf("vector search: %w", err)
	}
	metrics.CaptureExecutionMetrics("vector_search", time.Since(start))

	result := docmodel.SearchResult{
		Query:   query,
		Results: hits,
	}
	s.saveToCache(ctx, log, query, result)
	return result, nil
}

func (s *service) checkCache(ctx context.Context, log *logger_i.Logger, query string) (docmodel.SearchResult, bool) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("cache_lookup", time.Since(start)) }()

	cached, err := s.cache.Get(ctx, cacheKey(query))
	if err != nil {
		if !s.cache.IsNil(err) {
			// Degrade to recompute
			log.Warn("Result cache unreachable, recomputing", "error", err)
			metrics.CaptureCacheLookup("error")
		} else {
			metrics.CaptureCacheLookup("miss")
		}
		return docmodel.SearchResult{}, false
	}

	var result docmodel.SearchResult
	if err := json.Unmarshal([]byte(cached), &result); err != nil {
		log.Error("Corrupt cache entry, recomputing", "error", err)
		metrics.CaptureCacheLookup("error")
		return docmodel.SearchResult{}, false
	}

	metrics.CaptureCacheLookup("hit")
	log.Debug("Cache hit", "query", query)
	return result, true
}

func (s *service) saveToCache(ctx context.Context, log *logger_i.Logger, query string, result docmodel.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		log.Error("Could not marshal search result for cache", "error", err)
		return
	}
	if err := s.cache.Set(ctx, cacheKey(query), data, config.SearchCacheTTL); err != nil {
		// Best effort, the answer is already computed.
		log.Warn("Could not write result cache", "error", err)
	}
}
