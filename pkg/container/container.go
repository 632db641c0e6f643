// Package container monta a infraestrutura compartilhada pelos serviços:
// Store, Redis, claims, contadores, fila e o limitador de requisições.
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/loviiin/soundgraph/pkg/config"
	"github.com/loviiin/soundgraph/pkg/crawl"
	"github.com/loviiin/soundgraph/pkg/dedup"
	"github.com/loviiin/soundgraph/pkg/metrics"
	"github.com/loviiin/soundgraph/pkg/queue"
	"github.com/loviiin/soundgraph/pkg/search"
	"github.com/loviiin/soundgraph/pkg/soundcloud"
	"github.com/loviiin/soundgraph/pkg/store"
)

type Container struct {
	Config *config.Config
	Store  store.Store
	// Redis, Claims e Counter ficam nil quando o Redis não responde.
	Redis   *redis.Client
	Claims  *dedup.Deduplicator
	Counter *metrics.Counter
	// Queue só existe quando nats.url está configurado.
	Queue   *queue.Queue
	Limiter *rate.Limiter

	closers []func()
}

// New inicializa na ordem: Store, índice de busca, Redis, fila.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	if cfg.Database.URL == "" {
		log.Warn().Msg("[Container] database.url vazio, usando store em memória")
		c.Store = store.NewMemory()
	} else {
		openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		pg, err := store.Open(openCtx, cfg.Database.URL, cfg.Database.MaxConns)
		cancel()
		if err != nil {
			return nil, err
		}
		c.Store = pg
		c.closers = append(c.closers, pg.Close)
		log.Info().Msg("[Container] postgres conectado")
	}

	if cfg.Meilisearch.Host != "" {
		idx := search.NewIndexer(cfg.Meilisearch.Host, cfg.Meilisearch.Key, cfg.Meilisearch.Index)
		c.Store = search.WithIndex(c.Store, idx)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Address).Msg("[Container] redis indisponível, seguindo sem claims e métricas")
		_ = rdb.Close()
	} else {
		c.Redis = rdb
		c.Claims = dedup.NewDeduplicator(rdb, time.Duration(cfg.Discovery.ClaimTTLMinutes)*time.Minute)
		c.Counter = metrics.NewCounter(rdb)
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	if cfg.Nats.URL != "" {
		q, err := queue.Connect(cfg.Nats.URL, cfg.Nats.Subject, cfg.Nats.Durable)
		if err != nil {
			c.Cleanup()
			return nil, err
		}
		c.Queue = q
		c.closers = append(c.closers, q.Close)
	}

	if cfg.API.RPS > 0 {
		c.Limiter = rate.NewLimiter(rate.Limit(cfg.API.RPS), 1)
	}
	return c, nil
}

// NewFetcher cria um Client por worker, todos com o mesmo limitador.
func (c *Container) NewFetcher() (crawl.Fetcher, error) {
	api := c.Config.API
	client, err := soundcloud.NewClient(soundcloud.Options{
		ClientID:  api.ClientID,
		Endpoints: soundcloud.Endpoints{V1: api.BaseV1, V2: api.BaseV2},
		Wait:      time.Duration(api.WaitSeconds * float64(time.Second)),
		Timeout:   time.Duration(api.TimeoutSeconds) * time.Second,
		Limiter:   c.Limiter,
	})
	if err != nil {
		return nil, fmt.Errorf("fetcher: %w", err)
	}
	return client, nil
}

// Runner devolve um Runner já ligado ao Store, aos claims e aos contadores.
func (c *Container) Runner(workers, batchSize int) crawl.Runner {
	r := crawl.Runner{
		Store:      c.Store,
		NewFetcher: c.NewFetcher,
		Workers:    workers,
		BatchSize:  batchSize,
	}
	if c.Claims != nil {
		r.Claims = c.Claims
	}
	if c.Counter != nil {
		r.Counter = c.Counter
	}
	return r
}

// StartMetrics sobe /metrics em background quando há Redis.
func (c *Container) StartMetrics(ctx context.Context) {
	if c.Redis == nil {
		return
	}
	defs := metrics.CounterDefs(crawl.CounterNames...)
	go func() {
		if err := metrics.StartMetricsServer(ctx, c.Config.Metrics.Addr, c.Redis, defs); err != nil {
			log.Error().Err(err).Msg("[Metrics] servidor encerrado")
		}
	}()
}

// Cleanup fecha as conexões na ordem inversa da abertura.
func (c *Container) Cleanup() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
