package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/loviiin/soundgraph/pkg/models"
	"github.com/loviiin/soundgraph/pkg/store"
)

// Task é a unidade de trabalho de um perfil.
type Task struct {
	Key string
	Run func(ctx context.Context, api Fetcher) (Unit, error)
	// OnCommit roda depois que a unidade foi persistida.
	OnCommit func(ctx context.Context, u Unit)
	// OnAbort roda quando a unidade foi abortada.
	OnAbort func(ctx context.Context, err error)
}

// Claimer reserva perfis entre processos.
type Claimer interface {
	Claim(ctx context.Context, kind, id string) (bool, error)
	Release(ctx context.Context, kind, id string) error
}

type Counter interface {
	Add(ctx context.Context, name string, n int64) error
}

// Runner executa Tasks num pool de workers. Um único coordenador grava os
// lotes no Store, sempre registros antes de toggles, e depois chama AfterFlush.
type Runner struct {
	Stage      Stage
	Store      store.Store
	NewFetcher func() (Fetcher, error)
	Workers    int
	BatchSize  int
	// HaltOnAbort encerra a execução no primeiro perfil abortado.
	HaltOnAbort bool
	Claims      Claimer
	Counter     Counter
	AfterFlush  func(ctx context.Context) error
}

type Summary struct {
	RunID   string
	Done    int
	Aborted int
	Skipped int
}

type result struct {
	task Task
	unit Unit
}

func (r *Runner) Run(ctx context.Context, tasks []Task) (Summary, error) {
	sum := Summary{RunID: uuid.NewString()}
	logger := log.With().Str("run_id", sum.RunID).Str("stage", string(r.Stage)).Logger()

	workers := max(r.Workers, 1)
	batchSize := max(r.BatchSize, 1)
	logger.Info().Int("tasks", len(tasks)).Int("workers", workers).Msg("[Runner] iniciando")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	jobs := make(chan Task)
	results := make(chan result)
	var aborted, skipped atomic.Int64

	g.Go(func() error {
		defer close(jobs)
		for _, t := range tasks {
			select {
			case jobs <- t:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			api, err := r.NewFetcher()
			if err != nil {
				return fmt.Errorf("criar fetcher: %w", err)
			}
			for t := range jobs {
				if gctx.Err() != nil {
					return nil
				}
				if !r.claim(gctx, logger, t) {
					skipped.Add(1)
					continue
				}
				unit, err := t.Run(gctx, api)
				if err != nil {
					if !IsAbort(err) {
						r.release(ctx, t)
						return err
					}
					aborted.Add(1)
					r.release(ctx, t)
					r.add(ctx, CounterProfilesAborted, 1)
					logger.Error().Err(err).Str("key", t.Key).Msg("[Runner] perfil abortado")
					if t.OnAbort != nil {
						t.OnAbort(ctx, err)
					}
					if r.HaltOnAbort {
						return err
					}
					continue
				}
				select {
				case results <- result{task: t, unit: unit}:
				case <-gctx.Done():
					r.release(ctx, t)
					return nil
				}
			}
			return nil
		})
	}

	var werr error
	go func() {
		werr = g.Wait()
		close(results)
	}()

	var (
		batch []result
		ferr  error
	)
	for res := range results {
		if ferr != nil {
			// lote anterior falhou: o resultado é descartado e o claim devolvido
			r.release(ctx, res.task)
			continue
		}
		batch = append(batch, res)
		if len(batch) >= batchSize {
			var n int
			n, ferr = r.flush(ctx, logger, batch)
			sum.Done += n
			if ferr != nil {
				cancel()
			}
			batch = nil
		}
	}
	if ferr == nil && len(batch) > 0 {
		var n int
		n, ferr = r.flush(ctx, logger, batch)
		sum.Done += n
	}

	sum.Aborted = int(aborted.Load())
	sum.Skipped = int(skipped.Load())
	ev := logger.Info()
	if ferr != nil || werr != nil {
		ev = logger.Error()
	}
	ev.Int("done", sum.Done).Int("aborted", sum.Aborted).Int("skipped", sum.Skipped).Msg("[Runner] execução encerrada")

	if ferr != nil {
		return sum, ferr
	}
	if werr != nil && !errors.Is(werr, context.Canceled) {
		return sum, werr
	}
	return sum, ctx.Err()
}

// flush persiste o lote inteiro; só depois disso os toggles valem e os
// hooks de commit rodam. Devolve quantos perfis ficaram persistidos.
func (r *Runner) flush(ctx context.Context, logger zerolog.Logger, batch []result) (int, error) {
	var (
		records []models.Record
		toggles []models.Toggle
		counts  = make(map[string]int64)
	)
	for _, res := range batch {
		records = append(records, res.unit.Records...)
		toggles = append(toggles, res.unit.Toggles...)
		for k, v := range res.unit.Counts {
			counts[k] += v
		}
	}
	if err := store.Commit(ctx, r.Store, records, toggles); err != nil {
		for _, res := range batch {
			r.release(ctx, res.task)
		}
		return 0, fmt.Errorf("flush de %d perfis: %w", len(batch), err)
	}
	logger.Info().Int("profiles", len(batch)).Int("records", len(records)).Int("toggles", len(toggles)).
		Msg("[Runner] lote persistido")

	counts[CounterProfilesDone] += int64(len(batch))
	for name, n := range counts {
		r.add(ctx, name, n)
	}
	if r.AfterFlush != nil {
		if err := r.AfterFlush(ctx); err != nil {
			return len(batch), err
		}
	}
	for _, res := range batch {
		if res.task.OnCommit != nil {
			res.task.OnCommit(ctx, res.unit)
		}
	}
	return len(batch), nil
}

func (r *Runner) claim(ctx context.Context, logger zerolog.Logger, t Task) bool {
	if r.Claims == nil {
		return true
	}
	ok, err := r.Claims.Claim(ctx, string(r.Stage), t.Key)
	if err != nil {
		// sem Redis o perfil segue sem claim; o upsert é idempotente
		logger.Warn().Err(err).Str("key", t.Key).Msg("[Runner] falha no claim")
		return true
	}
	if !ok {
		logger.Debug().Str("key", t.Key).Msg("[Runner] perfil já reivindicado por outro processo")
	}
	return ok
}

func (r *Runner) release(ctx context.Context, t Task) {
	if r.Claims == nil {
		return
	}
	if err := r.Claims.Release(context.WithoutCancel(ctx), string(r.Stage), t.Key); err != nil {
		log.Warn().Err(err).Str("key", t.Key).Msg("[Runner] falha ao liberar claim")
	}
}

func (r *Runner) add(ctx context.Context, name string, n int64) {
	if r.Counter == nil || n == 0 {
		return
	}
	if err := r.Counter.Add(ctx, name, n); err != nil {
		log.Warn().Err(err).Str("counter", name).Msg("[Runner] falha ao atualizar contador")
	}
}
