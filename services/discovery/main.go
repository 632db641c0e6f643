package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loviiin/soundgraph/pkg/config"
	"github.com/loviiin/soundgraph/pkg/container"
	"github.com/loviiin/soundgraph/pkg/crawl"
	"github.com/loviiin/soundgraph/pkg/logger"
	"github.com/loviiin/soundgraph/pkg/soundcloud"
	"github.com/loviiin/soundgraph/services/discovery/internal/resolver"
	"github.com/loviiin/soundgraph/services/discovery/internal/service"
)

func main() {
	stage := flag.String("stage", "all", "artists | expansion | all")
	once := flag.Bool("once", false, "roda um ciclo e encerra")
	flag.Parse()

	cfg := config.MustLoad()
	logger.Init(cfg.App.Env, cfg.App.LogLevel)
	lg := logger.Service("discovery")
	lg.Info().Str("stage", *stage).Msg("SoundGraph Discovery Service iniciando...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(ctx, cfg)
	if err != nil {
		lg.Fatal().Err(err).Msg("erro ao inicializar infraestrutura")
	}
	defer c.Cleanup()
	c.StartMetrics(ctx)

	dc := cfg.Discovery
	sources, err := soundcloud.ParseSources(dc.Sources)
	if err != nil {
		lg.Fatal().Err(err).Msg("discovery.expansion_sources inválido")
	}

	var res crawl.Resolver
	if *stage != "expansion" {
		opts := resolver.Options{
			Headless: *dc.Headless,
			Timeout:  time.Duration(dc.ResolveTimeout) * time.Second,
		}
		if c.Redis != nil {
			opts.Cache = resolver.NewCache(c.Redis, 0)
		}
		lg.Info().Bool("headless", opts.Headless).Msg("inicializando navegador...")
		r, err := resolver.New(opts)
		if err != nil {
			lg.Fatal().Err(err).Msg("erro ao iniciar resolver")
		}
		defer r.Close()
		res = r
		go resolver.StartProfileSweeper(ctx)
	}

	svc := service.NewDiscoveryService(c.Store,
		&crawl.ArtistStage{Resolver: res},
		&crawl.ExpansionStage{
			Sources:       sources,
			FollowerMult:  dc.FollowerMult,
			FollowingMult: dc.FollowingMult,
			MaxAttempts:   dc.MaxAttempts,
		},
		c.Runner(dc.Workers, dc.BatchSize),
	)
	svc.Limit = dc.Limit
	svc.FollowerMax = dc.FollowerMax
	if c.Claims != nil {
		svc.Seen = c.Claims
	}
	if dc.PublishTrackJobs {
		if c.Queue == nil {
			lg.Warn().Msg("publish_track_jobs ligado sem nats.url, jobs não serão publicados")
		} else {
			svc.Publisher = c.Queue
		}
	}

	cycle := func() {
		lg.Info().Msg("--- iniciando ciclo de descoberta ---")
		if *stage == "artists" || *stage == "all" {
			if _, err := svc.RunArtists(ctx); err != nil {
				lg.Error().Err(err).Msg("erro no estágio de artistas")
			}
		}
		if *stage == "expansion" || *stage == "all" {
			if _, err := svc.RunExpansion(ctx); err != nil {
				lg.Error().Err(err).Msg("erro no estágio de expansão")
			}
		}
	}

	cycle()
	if *once {
		return
	}

	ticker := time.NewTicker(time.Duration(dc.IntervalMinutes) * time.Minute)
	defer ticker.Stop()
	lg.Info().Int("interval_minutes", dc.IntervalMinutes).Msg("Discovery Service rodando! Aguardando próximo ciclo...")
	for {
		select {
		case <-ticker.C:
			cycle()
		case <-ctx.Done():
			lg.Info().Msg("Encerrando...")
			return
		}
	}
}
