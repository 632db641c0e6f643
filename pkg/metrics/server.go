package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "soundgraph:metrics:"

// MetricDef define o mapeamento entre uma chave Redis e uma métrica Prometheus.
type MetricDef struct {
	RedisKey string
	PromName string
	Help     string
	Type     string // "counter" ou "gauge"
}

// CounterDefs gera uma MetricDef de counter para cada nome publicado via Counter.
func CounterDefs(names ...string) []MetricDef {
	defs := make([]MetricDef, 0, len(names))
	for _, n := range names {
		defs = append(defs, MetricDef{
			RedisKey: keyPrefix + n,
			PromName: "soundgraph_" + n + "_total",
			Help:     "Total acumulado de " + n,
			Type:     "counter",
		})
	}
	return defs
}

// Counter incrementa contadores no Redis, compartilhados entre processos.
type Counter struct {
	rdb *redis.Client
}

func NewCounter(rdb *redis.Client) *Counter {
	return &Counter{rdb: rdb}
}

func (c *Counter) Add(ctx context.Context, name string, n int64) error {
	return c.rdb.IncrBy(ctx, keyPrefix+name, n).Err()
}

// Router expõe /metrics no formato Prometheus e /healthz.
func Router(rdb *redis.Client, defs []MetricDef) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := rdb.Ping(req.Context()).Err(); err != nil {
			http.Error(w, "redis indisponível", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		for _, m := range defs {
			val, err := rdb.Get(req.Context(), m.RedisKey).Result()
			if errors.Is(err, redis.Nil) {
				val = "0"
			} else if err != nil {
				log.Warn().Err(err).Str("key", m.RedisKey).Msg("[Metrics] erro ao ler chave")
				val = "0"
			}
			fmt.Fprintf(w, "# HELP %s %s\n", m.PromName, m.Help)
			fmt.Fprintf(w, "# TYPE %s %s\n", m.PromName, m.Type)
			fmt.Fprintf(w, "%s %s\n\n", m.PromName, val)
		}
	})
	return r
}

// StartMetricsServer sobe o servidor até ctx ser cancelado.
func StartMetricsServer(ctx context.Context, addr string, rdb *redis.Client, defs []MetricDef) error {
	srv := &http.Server{Addr: addr, Handler: Router(rdb, defs), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("[Metrics] servidor ouvindo em /metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: falha ao iniciar servidor: %w", err)
	}
	return nil
}
