package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/loviiin/soundgraph/pkg/dedup"
	"github.com/loviiin/soundgraph/pkg/engagement"
	"github.com/loviiin/soundgraph/pkg/models"
	"github.com/loviiin/soundgraph/pkg/soundcloud"
)

var DefaultKinds = []models.EngagementKind{models.Reposters, models.Comments}

type TrackTarget struct {
	UserID    int64
	Permalink string
}

func (t TrackTarget) Key() string {
	return strconv.FormatInt(t.UserID, 10)
}

// TrackStage enumera o stream de um perfil e busca o engajamento das tracks novas.
type TrackStage struct {
	Kinds []models.EngagementKind
	// EmitEngagers grava também os reposters/likers como perfis.
	EmitEngagers bool
	Now          Clock

	// Index tem as tracks já persistidas; Pending as reivindicadas nesta execução.
	Index   *dedup.Snapshot
	Pending *dedup.Pending
}

// NewTrackStage constrói o índice inicial a partir do store.
func NewTrackStage(ctx context.Context, l dedup.Lister) (*TrackStage, error) {
	ix, err := dedup.Build(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("construir índice: %w", err)
	}
	log.Info().Int("tracks", ix.Len()).Msg("[Tracks] índice de dedup carregado")
	return &TrackStage{
		Kinds:   DefaultKinds,
		Index:   dedup.NewSnapshot(ix),
		Pending: dedup.NewPending(),
	}, nil
}

// Crawl processa o perfil inteiro. Sempre termina com exatamente um toggle
// de enumeração, mesmo sem nenhuma track nova.
func (s *TrackStage) Crawl(ctx context.Context, api Fetcher, t TrackTarget) (unit Unit, err error) {
	unit.Key = t.Key()
	now := s.Now.millis()

	var claimed []int64
	defer func() {
		if err != nil && s.Pending != nil {
			s.Pending.Release(claimed...)
		}
	}()

	items, err := api.FetchAll(ctx, api.Endpoints().Stream(t.UserID), soundcloud.Call{Key: soundcloud.StreamKey})
	if err != nil {
		return unit, abort(StageTracks, unit.Key, err)
	}
	tracks, err := soundcloud.FlattenStream(items, now)
	if err != nil {
		return unit, abort(StageTracks, unit.Key, err)
	}
	items = nil

	var ix *dedup.Index
	if s.Index != nil {
		ix = s.Index.Load()
	}

	for _, tr := range tracks {
		if ix.Contains(tr.TrackID) {
			unit.count(CounterTracksSkipped, 1)
			continue
		}
		if s.Pending != nil {
			if !s.Pending.Claim(tr.TrackID) {
				unit.count(CounterTracksSkipped, 1)
				continue
			}
			claimed = append(claimed, tr.TrackID)
		}

		records, seen, err := s.engagement(ctx, api, tr, now)
		if err != nil {
			return unit, abort(StageTracks, unit.Key, fmt.Errorf("track %d: %w", tr.TrackID, err))
		}
		unit.Records = append(unit.Records, records...)
		unit.Records = append(unit.Records, engagement.Reconcile(tr, seen))
		unit.count(CounterTracksNew, 1)
		unit.count(CounterComments, int64(seen[models.Comments]))
	}

	unit.Toggles = append(unit.Toggles, models.EnumeratedToggle(t.UserID))
	log.Debug().Int64("user_id", t.UserID).Int("tracks", len(tracks)).
		Int64("new", unit.Counts[CounterTracksNew]).Msg("[Tracks] perfil enumerado")
	return unit, nil
}

func (s *TrackStage) kinds() []models.EngagementKind {
	if len(s.Kinds) == 0 {
		return DefaultKinds
	}
	return s.Kinds
}

func (s *TrackStage) engagement(ctx context.Context, api Fetcher, tr models.Track, now int64) ([]models.Record, engagement.Observed, error) {
	var records []models.Record
	seen := make(engagement.Observed)

	for _, kind := range s.kinds() {
		call := soundcloud.Call{Key: soundcloud.IDKey}
		if kind == models.Comments {
			call.CallLimit = soundcloud.CommentCallLimit(tr.CommentCount)
		}
		items, err := api.FetchAll(ctx, api.Endpoints().Engagement(tr.TrackID, kind), call)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", kind, err)
		}
		seen[kind] = len(items)

		switch kind {
		case models.Comments:
			for _, raw := range items {
				c, err := soundcloud.NormalizeComment(raw)
				if err != nil {
					return nil, nil, err
				}
				if c.TrackID == 0 {
					c.TrackID = tr.TrackID
				}
				records = append(records, c)
			}
		default:
			users, err := decodeUsers(items)
			if err != nil {
				return nil, nil, err
			}
			if len(users) == 0 {
				continue
			}
			ids := make([]int64, 0, len(users))
			for _, u := range users {
				ids = append(ids, u.ID)
				if s.EmitEngagers {
					records = append(records, soundcloud.NormalizeEngager(u, now))
				}
			}
			records = append(records, models.NewEngagerSet(kind, tr.TrackID, ids))
		}
	}
	return records, seen, nil
}

func decodeUsers(items []json.RawMessage) ([]soundcloud.RawUser, error) {
	users := make([]soundcloud.RawUser, 0, len(items))
	for _, raw := range items {
		var u soundcloud.RawUser
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, fmt.Errorf("%w: usuário: %v", soundcloud.ErrSchema, err)
		}
		users = append(users, u)
	}
	return users, nil
}

// Task embrulha Crawl para o Runner.
func (s *TrackStage) Task(t TrackTarget) Task {
	return Task{
		Key: t.Key(),
		Run: func(ctx context.Context, api Fetcher) (Unit, error) {
			return s.Crawl(ctx, api, t)
		},
	}
}

// Refresh reconstrói o índice a partir do store e descarta do Pending o que
// ele já cobre. Usado como AfterFlush do Runner; exige Index não nulo.
func (s *TrackStage) Refresh(l dedup.Lister) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		ix, err := dedup.Build(ctx, l)
		if err != nil {
			return fmt.Errorf("renovar índice: %w", err)
		}
		s.Index.Store(ix)
		if s.Pending != nil {
			s.Pending.Prune(ix)
		}
		return nil
	}
}
