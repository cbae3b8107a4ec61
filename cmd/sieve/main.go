package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sievesearch/sieve/internal/aggregator"
	"github.com/sievesearch/sieve/internal/cache"
	"github.com/sievesearch/sieve/internal/config"
	"github.com/sievesearch/sieve/internal/engine"
	"github.com/sievesearch/sieve/internal/fingerprint"
	"github.com/sievesearch/sieve/internal/metrics"
	"github.com/sievesearch/sieve/pkg/httpclient"
	"github.com/sievesearch/sieve/pkg/ratelimit"
	"github.com/sievesearch/sieve/pkg/useragent"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	page    uint32
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "sieve",
		Short:         "sieve is a metasearch aggregation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query all configured engines and print merged results as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), args[0])
		},
	}
	searchCmd.Flags().Uint32Var(&page, "page", 1, "result page to fetch")
	rootCmd.AddCommand(searchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runSearch(ctx context.Context, query string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if cfg.MetricsPort > 0 {
		srv := metrics.Start(cfg.MetricsPort)
		defer srv.Stop(ctx)
	}

	cacheClient, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	if cacheClient != nil {
		defer cacheClient.Close()
	}

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}

	var engines []engine.Adapter
	for _, name := range cfg.Search.Engines {
		a, err := registry.Lookup(name)
		if err != nil {
			return err
		}
		engines = append(engines, a)
	}

	agg := aggregator.New(engines, aggregator.Config{
		TimeoutSecs: cfg.Search.TimeoutSecs,
		Cache:       cacheClient,
		UserAgents:  useragent.NewPool(cfg.Search.UserAgents),
		Logger:      logger,
	})

	results, err := agg.Search(ctx, query, page)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func openCache(ctx context.Context, cfg *config.Config) (*cache.Client, error) {
	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	switch cfg.Cache.Backend {
	case "none":
		return nil, nil
	case "redis":
		return cache.DialRedis(ctx, cfg.Cache.URL, cfg.Cache.PoolSize, ttl)
	case "sqlite":
		return cache.OpenSQLite(cfg.Cache.URL, cfg.Cache.PoolSize, ttl)
	case "postgres":
		return cache.DialPostgres(ctx, cfg.Cache.URL, cfg.Cache.PoolSize, ttl)
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}

func buildRegistry(cfg *config.Config, logger *slog.Logger) (*engine.Registry, error) {
	profile, err := fingerprint.ParseProfile(cfg.Search.Fingerprint)
	if err != nil {
		return nil, err
	}
	transport, err := fingerprint.Transport(profile)
	if err != nil {
		return nil, err
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      time.Duration(cfg.Search.TimeoutSecs) * time.Second,
		MaxRedirects: 5,
		Transport:    transport,
	})
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.NewLimiter(cfg.Search.RPS, cfg.Search.Jitter)

	registry := engine.NewRegistry()

	ddg, err := engine.NewDuckDuckGo(engine.DuckDuckGoConfig{
		Client:  client,
		Limiter: limiter,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	if err := registry.Register(ddg); err != nil {
		return nil, err
	}

	return registry, nil
}
