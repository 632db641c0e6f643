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
	"github.com/loviiin/soundgraph/pkg/models"
	"github.com/loviiin/soundgraph/pkg/seed"
	"github.com/loviiin/soundgraph/services/scraper/internal/worker"
)

func main() {
	source := flag.String("source", "", "store | seed | nats (padrão: scraper.source)")
	flag.Parse()

	cfg := config.MustLoad()
	logger.Init(cfg.App.Env, cfg.App.LogLevel)
	lg := logger.Service("scraper")

	sc := cfg.Scraper
	if *source != "" {
		sc.Source = *source
	}
	lg.Info().Str("source", sc.Source).Int("workers", sc.Workers).Msg("SoundGraph Scraper Worker iniciando...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(ctx, cfg)
	if err != nil {
		lg.Fatal().Err(err).Msg("erro ao inicializar infraestrutura")
	}
	defer c.Cleanup()
	c.StartMetrics(ctx)

	kinds, err := models.ParseEngagementKinds(sc.EngagementKinds)
	if err != nil {
		lg.Fatal().Err(err).Msg("scraper.engagement_kinds inválido")
	}
	stage, err := crawl.NewTrackStage(ctx, c.Store)
	if err != nil {
		lg.Fatal().Err(err).Msg("erro ao carregar índice de tracks")
	}
	stage.Kinds = kinds
	stage.EmitEngagers = sc.EmitEngagers

	runner := c.Runner(sc.Workers, sc.BatchSize)
	runner.HaltOnAbort = sc.HaltOnAbort
	w := worker.NewWorker(c.Store, stage, runner)
	w.Limit = sc.Limit
	w.IncludeEnumerated = sc.IncludeEnumerated

	var targets []crawl.TrackTarget
	switch sc.Source {
	case "nats":
		if c.Queue == nil {
			lg.Fatal().Msg("source nats exige nats.url")
		}
		wait := time.Duration(sc.FetchWaitSeconds) * time.Second
		if err := w.Consume(ctx, c.Queue, sc.BatchSize, wait); err != nil {
			lg.Error().Err(err).Msg("consumo encerrado com erro")
		}
		lg.Info().Msg("Encerrando...")
		return
	case "seed":
		entries, err := seed.Load(sc.SeedFile)
		if err != nil {
			lg.Fatal().Err(err).Msg("erro ao carregar seed")
		}
		targets, err = w.SeedTargets(ctx, entries)
		if err != nil {
			lg.Fatal().Err(err).Msg("erro ao preparar seed")
		}
	case "store":
		targets, err = w.StoreTargets(ctx)
		if err != nil {
			lg.Fatal().Err(err).Msg("erro ao listar perfis")
		}
	default:
		lg.Fatal().Str("source", sc.Source).Msg("scraper.source desconhecido")
	}

	sum, err := w.Run(ctx, targets)
	if err != nil {
		lg.Error().Err(err).Str("run_id", sum.RunID).Msg("crawl de tracks encerrado com erro")
		return
	}
	lg.Info().Str("run_id", sum.RunID).Int("done", sum.Done).Int("aborted", sum.Aborted).Msg("crawl de tracks concluído")
}
