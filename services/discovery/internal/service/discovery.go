package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/loviiin/soundgraph/pkg/crawl"
	"github.com/loviiin/soundgraph/pkg/models"
	"github.com/loviiin/soundgraph/pkg/queue"
	"github.com/loviiin/soundgraph/pkg/store"
)

// resolveFailed marca permalinks cuja resolução abortou, para não tentar de
// novo a cada ciclo enquanto a marca durar.
const resolveFailed = "resolve_failed"

type Publisher interface {
	Publish(ctx context.Context, job queue.TrackJob) error
}

type SeenMarker interface {
	MarkAsSeen(ctx context.Context, kind, id string) error
	CheckIfProcessed(ctx context.Context, kind, id string) (bool, error)
}

// DiscoveryService roda a descoberta de artistas e a expansão do grafo sobre
// os candidatos do Store.
type DiscoveryService struct {
	store     store.Store
	artists   *crawl.ArtistStage
	expansion *crawl.ExpansionStage
	// runner é copiado por estágio; Stage é preenchido em cada execução.
	runner crawl.Runner

	Publisher   Publisher
	Seen        SeenMarker
	Limit       int
	FollowerMax int64
}

func NewDiscoveryService(s store.Store, artists *crawl.ArtistStage, expansion *crawl.ExpansionStage, runner crawl.Runner) *DiscoveryService {
	runner.Store = s
	return &DiscoveryService{store: s, artists: artists, expansion: expansion, runner: runner}
}

// RunArtists resolve candidatos que ainda não viraram perfil.
func (s *DiscoveryService) RunArtists(ctx context.Context) (crawl.Summary, error) {
	cands, err := s.store.ListCandidates(ctx, store.CandidateFilter{
		UnprocessedOnly: true,
		HasProfile:      store.Bool(false),
		Limit:           s.Limit,
	})
	if err != nil {
		return crawl.Summary{}, fmt.Errorf("selecionar candidatos: %w", err)
	}

	tasks := make([]crawl.Task, 0, len(cands))
	for _, c := range cands {
		permalink := c.Permalink
		if s.failedBefore(ctx, permalink) {
			continue
		}
		t := s.artists.Task(permalink)
		t.OnCommit = s.publish
		t.OnAbort = func(ctx context.Context, _ error) { s.markFailed(ctx, permalink) }
		tasks = append(tasks, t)
	}
	return s.run(ctx, crawl.StageArtists, tasks)
}

// RunExpansion expande candidatos que já têm perfil e não passam de FollowerMax seguidores.
func (s *DiscoveryService) RunExpansion(ctx context.Context) (crawl.Summary, error) {
	cands, err := s.store.ListCandidates(ctx, store.CandidateFilter{
		UnprocessedOnly: true,
		HasProfile:      store.Bool(true),
		MaxFollowers:    s.FollowerMax,
		Limit:           s.Limit,
	})
	if err != nil {
		return crawl.Summary{}, fmt.Errorf("selecionar candidatos: %w", err)
	}
	if len(cands) == 0 {
		return s.run(ctx, crawl.StageExpansion, nil)
	}

	permalinks := make([]string, 0, len(cands))
	for _, c := range cands {
		permalinks = append(permalinks, c.Permalink)
	}
	profiles, err := s.store.ListProfiles(ctx, store.ProfileFilter{Permalinks: permalinks})
	if err != nil {
		return crawl.Summary{}, fmt.Errorf("carregar perfis: %w", err)
	}
	byPermalink := make(map[string]models.Profile, len(profiles))
	for _, p := range profiles {
		byPermalink[p.Permalink] = p
	}

	tasks := make([]crawl.Task, 0, len(cands))
	for _, c := range cands {
		p, ok := byPermalink[c.Permalink]
		if !ok {
			continue
		}
		tasks = append(tasks, s.expansion.Task(crawl.ExpansionTarget{
			Permalink:  p.Permalink,
			UserID:     p.UserID,
			Followers:  p.FollowersCount,
			Followings: p.FollowingsCount,
		}))
	}
	return s.run(ctx, crawl.StageExpansion, tasks)
}

func (s *DiscoveryService) run(ctx context.Context, stage crawl.Stage, tasks []crawl.Task) (crawl.Summary, error) {
	if len(tasks) == 0 {
		log.Info().Str("stage", string(stage)).Msg("[Discovery] nenhum candidato pendente")
		return crawl.Summary{}, nil
	}
	r := s.runner
	r.Stage = stage
	return r.Run(ctx, tasks)
}

// publish enfileira os perfis recém-gravados para o crawl de tracks.
func (s *DiscoveryService) publish(ctx context.Context, u crawl.Unit) {
	if s.Publisher == nil {
		return
	}
	for _, rec := range u.Records {
		p, ok := rec.(models.Profile)
		if !ok {
			continue
		}
		if err := s.Publisher.Publish(ctx, queue.TrackJob{UserID: p.UserID, Permalink: p.Permalink}); err != nil {
			log.Error().Err(err).Int64("user_id", p.UserID).Msg("[Discovery] erro ao publicar job")
		}
	}
}

func (s *DiscoveryService) failedBefore(ctx context.Context, permalink string) bool {
	if s.Seen == nil {
		return false
	}
	seen, err := s.Seen.CheckIfProcessed(ctx, resolveFailed, permalink)
	if err != nil {
		log.Warn().Err(err).Str("permalink", permalink).Msg("[Discovery] erro verificando falhas anteriores")
		return false
	}
	if seen {
		log.Debug().Str("permalink", permalink).Msg("[Cache HIT] resolução falhou recentemente, ignorando")
	}
	return seen
}

func (s *DiscoveryService) markFailed(ctx context.Context, permalink string) {
	if s.Seen == nil {
		return
	}
	if err := s.Seen.MarkAsSeen(ctx, resolveFailed, permalink); err != nil {
		log.Warn().Err(err).Str("permalink", permalink).Msg("[Discovery] erro ao marcar falha")
	}
}
