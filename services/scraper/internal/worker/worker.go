package worker

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/loviiin/soundgraph/pkg/crawl"
	"github.com/loviiin/soundgraph/pkg/queue"
	"github.com/loviiin/soundgraph/pkg/seed"
	"github.com/loviiin/soundgraph/pkg/store"
)

// JobSource é satisfeito por *queue.Queue.
type JobSource interface {
	Fetch(ctx context.Context, n int, wait time.Duration) ([]queue.Delivery, error)
}

// Worker alimenta o crawl de tracks a partir do store, do seed ou da fila.
type Worker struct {
	store  store.Store
	stage  *crawl.TrackStage
	runner crawl.Runner

	Limit             int
	IncludeEnumerated bool
	// Rand embaralha o seed; nil usa o gerador global.
	Rand *rand.Rand
}

// NewWorker liga o Runner ao Store e renova o índice de dedup depois de cada lote.
func NewWorker(s store.Store, stage *crawl.TrackStage, runner crawl.Runner) *Worker {
	runner.Store = s
	runner.Stage = crawl.StageTracks
	runner.AfterFlush = stage.Refresh(s)
	return &Worker{store: s, stage: stage, runner: runner}
}

// StoreTargets lista perfis ainda não enumerados, os crawleados há mais tempo primeiro.
func (w *Worker) StoreTargets(ctx context.Context) ([]crawl.TrackTarget, error) {
	ps, err := w.store.ListProfiles(ctx, store.ProfileFilter{
		ContentEnumerated: store.Bool(false),
		OrderByCrawled:    true,
		Limit:             w.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("listar perfis: %w", err)
	}
	out := make([]crawl.TrackTarget, 0, len(ps))
	for _, p := range ps {
		out = append(out, crawl.TrackTarget{UserID: p.UserID, Permalink: p.Permalink})
	}
	return out, nil
}

// SeedTargets seleciona entradas do seed e grava um perfil mínimo para cada uma.
func (w *Worker) SeedTargets(ctx context.Context, entries []seed.Entry) ([]crawl.TrackTarget, error) {
	done := map[int64]bool{}
	if !w.IncludeEnumerated && len(entries) > 0 {
		ids := make([]int64, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.UserID)
		}
		enumerated, err := w.store.ListProfiles(ctx, store.ProfileFilter{
			ContentEnumerated: store.Bool(true),
			UserIDs:           ids,
		})
		if err != nil {
			return nil, fmt.Errorf("listar perfis do seed: %w", err)
		}
		for _, p := range enumerated {
			done[p.UserID] = true
		}
	}

	selected := seed.Select(entries, func(e seed.Entry) bool { return done[e.UserID] }, w.Limit, w.Rand)
	if len(selected) == 0 {
		return nil, nil
	}

	out := make([]crawl.TrackTarget, 0, len(selected))
	for _, e := range selected {
		if err := w.store.Upsert(ctx, e.Stub()); err != nil {
			return nil, fmt.Errorf("gravar perfil do seed: %w", err)
		}
		out = append(out, crawl.TrackTarget{UserID: e.UserID, Permalink: e.Permalink})
	}
	log.Info().Int("seed", len(entries)).Int("selected", len(out)).Msg("[Worker] alvos do seed")
	return out, nil
}

func (w *Worker) Run(ctx context.Context, targets []crawl.TrackTarget) (crawl.Summary, error) {
	tasks := make([]crawl.Task, 0, len(targets))
	for _, t := range targets {
		tasks = append(tasks, w.stage.Task(t))
	}
	if len(tasks) == 0 {
		log.Info().Msg("[Worker] nenhum perfil pendente")
		return crawl.Summary{}, nil
	}
	return w.runner.Run(ctx, tasks)
}

// Consume puxa lotes da fila até ctx terminar.
func (w *Worker) Consume(ctx context.Context, src JobSource, batch int, wait time.Duration) error {
	log.Info().Int("batch", batch).Msg("[Worker] consumindo jobs de tracks")
	for ctx.Err() == nil {
		ds, err := src.Fetch(ctx, batch, wait)
		if err != nil {
			log.Error().Err(err).Msg("[Worker] erro no fetch")
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
			}
			continue
		}
		if len(ds) == 0 {
			continue
		}
		if _, err := w.ConsumeBatch(ctx, ds); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("[Worker] lote com erro")
		}
	}
	return nil
}

// ConsumeBatch roda um lote de jobs. Ack só depois do flush do perfil; perfil
// abortado é terminado; o que sobrar sem resposta volta para a fila.
func (w *Worker) ConsumeBatch(ctx context.Context, ds []queue.Delivery) (crawl.Summary, error) {
	ids := make([]int64, 0, len(ds))
	for _, d := range ds {
		ids = append(ids, d.Job.UserID)
	}
	enumerated, err := w.store.ListProfiles(ctx, store.ProfileFilter{ContentEnumerated: store.Bool(true), UserIDs: ids})
	if err != nil {
		for _, d := range ds {
			_ = d.Nak()
		}
		return crawl.Summary{}, fmt.Errorf("listar perfis dos jobs: %w", err)
	}
	done := make(map[int64]bool, len(enumerated))
	for _, p := range enumerated {
		done[p.UserID] = true
	}

	settled := make([]atomic.Bool, len(ds))
	tasks := make([]crawl.Task, 0, len(ds))
	for i, d := range ds {
		if done[d.Job.UserID] {
			settle(&settled[i], d.Ack, d.Job)
			continue
		}
		t := w.stage.Task(crawl.TrackTarget{UserID: d.Job.UserID, Permalink: d.Job.Permalink})
		t.OnCommit = func(context.Context, crawl.Unit) { settle(&settled[i], d.Ack, d.Job) }
		t.OnAbort = func(context.Context, error) { settle(&settled[i], d.Term, d.Job) }
		tasks = append(tasks, t)
	}

	var sum crawl.Summary
	if len(tasks) > 0 {
		sum, err = w.runner.Run(ctx, tasks)
	}
	for i, d := range ds {
		settle(&settled[i], d.Nak, d.Job)
	}
	return sum, err
}

func settle(flag *atomic.Bool, reply func() error, job queue.TrackJob) {
	if !flag.CompareAndSwap(false, true) {
		return
	}
	if err := reply(); err != nil {
		log.Warn().Err(err).Int64("user_id", job.UserID).Msg("[Worker] erro respondendo job")
	}
}
