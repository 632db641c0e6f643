package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/loviiin/soundgraph/pkg/config"
	"github.com/loviiin/soundgraph/pkg/container"
	"github.com/loviiin/soundgraph/pkg/logger"
	"github.com/loviiin/soundgraph/pkg/search"
	"github.com/loviiin/soundgraph/pkg/store"
	"github.com/loviiin/soundgraph/services/indexer/internal/reindex"
)

func main() {
	batch := flag.Int("batch", 500, "perfis por lote enviado ao Meilisearch")
	maxFollowers := flag.Int64("max-followers", 0, "só perfis com até N seguidores (0 = todos)")
	flag.Parse()

	cfg := config.MustLoad()
	logger.Init(cfg.App.Env, cfg.App.LogLevel)
	lg := logger.Service("indexer")

	if cfg.Meilisearch.Host == "" {
		lg.Fatal().Msg("meilisearch.host não configurado")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(ctx, cfg)
	if err != nil {
		lg.Fatal().Err(err).Msg("erro ao inicializar infraestrutura")
	}
	defer c.Cleanup()

	idx := search.NewIndexer(cfg.Meilisearch.Host, cfg.Meilisearch.Key, cfg.Meilisearch.Index)
	n, err := reindex.Profiles(ctx, c.Store, idx, store.ProfileFilter{MaxFollowers: *maxFollowers}, *batch)
	if err != nil {
		lg.Error().Err(err).Int("sent", n).Msg("reindexação interrompida")
		return
	}
	lg.Info().Int("profiles", n).Msg("índice de perfis atualizado")
}
