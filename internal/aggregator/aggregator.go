// Package aggregator fans a query out to every configured engine adapter
// concurrently, merges the scraped results by URL, and wraps the whole
// exchange in the result cache: lookup before the fan-out, store after.
package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sievesearch/sieve/internal/cache"
	"github.com/sievesearch/sieve/internal/engine"
	"github.com/sievesearch/sieve/internal/metrics"
	"github.com/sievesearch/sieve/internal/result"
	"github.com/sievesearch/sieve/pkg/useragent"
	"golang.org/x/sync/errgroup"
)

// Config configures an Aggregator. Cache is optional; without it every
// search goes upstream.
type Config struct {
	TimeoutSecs uint8
	Cache       *cache.Client
	UserAgents  *useragent.Pool
	Logger      *slog.Logger
}

// Aggregator coordinates the engine fan-out for one process. Safe for
// concurrent use.
type Aggregator struct {
	engines     []engine.Adapter
	timeoutSecs uint8
	cache       *cache.Client
	uas         *useragent.Pool
	logger      *slog.Logger
}

// New builds an Aggregator over the given adapters.
func New(engines []engine.Adapter, cfg Config) *Aggregator {
	if cfg.TimeoutSecs == 0 {
		cfg.TimeoutSecs = 30
	}
	if cfg.UserAgents == nil {
		cfg.UserAgents = useragent.NewPool(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Aggregator{
		engines:     engines,
		timeoutSecs: cfg.TimeoutSecs,
		cache:       cfg.Cache,
		uas:         cfg.UserAgents,
		logger:      cfg.Logger,
	}
}

// requestURL is the normalized form of a search request used as the cache
// identity. Byte-identical queries on the same page always map to the same
// string, and therefore the same cache key.
func requestURL(query string, page uint32) string {
	return fmt.Sprintf("sieve:search?q=%s&page=%d", url.QueryEscape(query), page)
}

// Search runs the query against every adapter and returns the merged result
// set ordered by URL. Individual engine failures degrade to partial results;
// an error is returned only if every engine failed hard.
func (a *Aggregator) Search(ctx context.Context, query string, page uint32) ([]result.SearchResult, error) {
	reqURL := requestURL(query, page)
	searchID := uuid.New().String()
	log := a.logger.With("search_id", searchID, "query", query, "page", page)

	if a.cache != nil {
		cached, hit, err := a.cache.Get(ctx, reqURL)
		switch {
		case err != nil:
			// A broken cache must not break search.
			metrics.RecordCacheLookup("error")
			log.Warn("cache lookup failed", "err", err)
		case hit:
			metrics.RecordCacheLookup("hit")
			var results []result.SearchResult
			if err := json.Unmarshal([]byte(cached), &results); err != nil {
				log.Warn("discarding undecodable cache entry", "err", err)
			} else {
				return results, nil
			}
		default:
			metrics.RecordCacheLookup("miss")
		}
	}

	var (
		mu     sync.Mutex
		merged = make(map[string]result.SearchResult)
		failed []error
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, eng := range a.engines {
		eng := eng
		g.Go(func() error {
			start := time.Now()
			res, err := eng.Results(gctx, query, page, a.uas.Random(), a.timeoutSecs)
			elapsed := time.Since(start)

			switch {
			case errors.Is(err, engine.ErrEmptyResultSet):
				metrics.RecordEngine(eng.Name(), "empty", elapsed)
				log.Debug("engine returned no results", "engine", eng.Name())
				return nil
			case err != nil:
				outcome := "error"
				var blocked *engine.BlockedError
				if errors.As(err, &blocked) {
					outcome = "blocked"
				}
				metrics.RecordEngine(eng.Name(), outcome, elapsed)
				log.Warn("engine failed, continuing with partial results",
					"engine", eng.Name(), "err", err)
				mu.Lock()
				failed = append(failed, err)
				mu.Unlock()
				return nil
			}

			metrics.RecordEngine(eng.Name(), "ok", elapsed)
			mu.Lock()
			for u, r := range res {
				if existing, ok := merged[u]; ok {
					for _, name := range r.Engines {
						existing.AddEngine(name)
					}
					merged[u] = existing
				} else {
					merged[u] = r
				}
			}
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; failures are collected for the all-failed case.
	_ = g.Wait()

	if len(a.engines) > 0 && len(failed) == len(a.engines) && len(merged) == 0 {
		return nil, fmt.Errorf("aggregator: every engine failed: %w", errors.Join(failed...))
	}

	results := make([]result.SearchResult, 0, len(merged))
	for _, r := range merged {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].URL < results[j].URL })

	if a.cache != nil && len(results) > 0 {
		payload, err := json.Marshal(results)
		if err != nil {
			log.Warn("serializing results for cache failed", "err", err)
		} else if err := a.cache.Put(ctx, reqURL, string(payload)); err != nil {
			log.Warn("cache store failed", "err", err)
		}
	}

	return results, nil
}
