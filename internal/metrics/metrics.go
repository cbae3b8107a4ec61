package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sieve_cache_lookups_total",
			Help: "Total number of cache lookups by outcome",
		},
		[]string{"outcome"}, // hit, miss, error
	)

	CacheFailovers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sieve_cache_failovers_total",
			Help: "Total number of pool slots skipped due to dropped connections",
		},
	)

	EngineRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sieve_engine_requests_total",
			Help: "Total number of upstream engine fetches by outcome",
		},
		[]string{"engine", "outcome"}, // ok, empty, blocked, error
	)

	EngineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sieve_engine_duration_seconds",
			Help:    "Duration of upstream engine fetches in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"engine"},
	)
)

// RecordCacheLookup tallies one cache lookup outcome.
func RecordCacheLookup(outcome string) {
	CacheLookupsTotal.WithLabelValues(outcome).Inc()
}

// RecordEngine tallies one engine fetch and its duration.
func RecordEngine(engine, outcome string, elapsed time.Duration) {
	EngineRequestsTotal.WithLabelValues(engine, outcome).Inc()
	EngineDuration.WithLabelValues(engine).Observe(elapsed.Seconds())
}

// Server encapsulates an HTTP server exposing /metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		// Suppress the error from intentional shutdown
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
