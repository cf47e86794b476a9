package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/marketcache/internal/aggregator"
	"github.com/sawpanic/marketcache/internal/cache"
	"github.com/sawpanic/marketcache/internal/circuit"
	"github.com/sawpanic/marketcache/internal/config"
	"github.com/sawpanic/marketcache/internal/health"
	"github.com/sawpanic/marketcache/internal/httpapi"
	"github.com/sawpanic/marketcache/internal/metrics"
	"github.com/sawpanic/marketcache/internal/ratelimit"
	"github.com/sawpanic/marketcache/internal/stream"
	"github.com/sawpanic/marketcache/internal/upstream"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP/WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	l1 := cache.NewL1Store(cfg.Cache.L1MaxEntries, cfg.Cache.L1IdleTTL(), time.Minute)
	var l2 *cache.L2Store
	if cfg.Cache.RedisAddr != "" {
		l2 = cache.NewL2Store(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.KeyPrefix)
		defer l2.Close()
	}
	cm := cache.New(l1, l2)
	defer l1.Close()

	artifacts := cache.NewArtifactCache(
		int64(cfg.Cache.ArtifactMaxEntryMB)<<20,
		int64(cfg.Cache.ArtifactMaxTotalMB)<<20,
		int64(cfg.Cache.ArtifactWarnMB)<<20,
	)

	breakers := circuit.NewManager(time.Minute)
	limiter := ratelimit.New(10, 20)
	fetcher := upstream.New(cfg.Server.RequestTimeout(), breakers, limiter)

	provider := providerFromConfig(cfg)
	agg := aggregator.New(cm, fetcher, provider)

	hub := stream.NewHub()
	defer hub.Close()

	pumpCtx, stopPump := context.WithCancel(context.Background())
	defer stopPump()
	hub.StartCachePump(pumpCtx, cm, cfg.Server.StreamTick())

	reg, promReg := metrics.NewRegistry()

	srv := &httpapi.Server{
		Aggregator:     agg,
		Cache:          cm,
		Artifacts:      artifacts,
		Health:         &health.Surface{Cache: cm, Artifacts: artifacts, Breakers: breakers, StartedAt: time.Now()},
		Hub:            hub,
		Metrics:        reg,
		PromRegistry:   promReg,
		RequestTimeout: cfg.Server.RequestTimeout(),
	}

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router(),
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("marketcache listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}

func providerFromConfig(cfg *config.Config) upstream.Provider {
	for _, p := range cfg.Providers {
		if p.Name != "prices" {
			continue
		}
		chain := make([]upstream.Endpoint, len(p.Endpoints))
		for i, ep := range p.Endpoints {
			chain[i] = upstream.Endpoint{Name: ep.Name, BaseURL: ep.BaseURL}
		}
		return upstream.Provider{Name: p.Name, Chain: chain}
	}
	return upstream.Provider{Name: "prices", Chain: []upstream.Endpoint{
		{Name: "coingecko", BaseURL: "https://api.coingecko.com/api/v3"},
	}}
}
