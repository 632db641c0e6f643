package crawl

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/loviiin/soundgraph/pkg/models"
	"github.com/loviiin/soundgraph/pkg/soundcloud"
)

const (
	DefaultFollowerMult  = 0.50
	DefaultFollowingMult = 0.95
	DefaultMaxAttempts   = 3
)

var DefaultSources = []soundcloud.Source{
	soundcloud.SourceFollowers,
	soundcloud.SourceFollowings,
	soundcloud.SourceStream,
	soundcloud.SourceLikes,
	soundcloud.SourceComments,
}

// ExpansionTarget é um candidato já resolvido para um perfil.
type ExpansionTarget struct {
	Permalink  string
	UserID     int64
	Followers  int64
	Followings int64
}

// ExpansionStage colhe handles de perfis relacionados e os grava como candidatos.
type ExpansionStage struct {
	Sources       []soundcloud.Source
	FollowerMult  float64
	FollowingMult float64
	MaxAttempts   int
	Now           Clock
}

// MinYield é o mínimo de handles esperado para um perfil, truncado.
func MinYield(followers, followings int64, followerMult, followingMult float64) int {
	return int(float64(followers)*followerMult + float64(followings)*followingMult)
}

func (s *ExpansionStage) minimum(t ExpansionTarget) int {
	fm, gm := s.FollowerMult, s.FollowingMult
	if fm == 0 && gm == 0 {
		fm, gm = DefaultFollowerMult, DefaultFollowingMult
	}
	return MinYield(t.Followers, t.Followings, fm, gm)
}

// Expand repete a coleta inteira enquanto o rendimento ficar abaixo do mínimo,
// até MaxAttempts. O resultado da última tentativa é aceito como final.
func (s *ExpansionStage) Expand(ctx context.Context, api Fetcher, t ExpansionTarget) (Unit, error) {
	unit := Unit{Key: t.Permalink}
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	minimum := s.minimum(t)

	var handles []string
	for attempt := 1; attempt <= attempts; attempt++ {
		var err error
		handles, err = s.collect(ctx, api, t)
		if err != nil {
			return unit, abort(StageExpansion, t.Permalink, err)
		}
		if len(handles) >= minimum {
			break
		}
		ev := log.Warn().Str("permalink", t.Permalink).Int("found", len(handles)).
			Int("minimum", minimum).Int("attempt", attempt)
		if attempt < attempts {
			ev.Msg("[Expansion] rendimento abaixo do mínimo, repetindo")
		} else {
			ev.Msg("[Expansion] rendimento insuficiente aceito como final")
		}
	}

	for _, h := range handles {
		unit.Records = append(unit.Records, models.ProfileURL{Permalink: h})
	}
	unit.Toggles = append(unit.Toggles, models.ProcessedToggle(t.Permalink, len(handles), s.Now.millis()))
	unit.count(CounterCandidates, int64(len(handles)))
	return unit, nil
}

// collect faz uma tentativa: todas as fontes, união dos handles em ordem de
// aparição, sem o handle do próprio perfil.
func (s *ExpansionStage) collect(ctx context.Context, api Fetcher, t ExpansionTarget) ([]string, error) {
	sources := s.Sources
	if len(sources) == 0 {
		sources = DefaultSources
	}
	seen := map[string]struct{}{t.Permalink: {}}
	var out []string

	for _, src := range sources {
		endpoint, err := src.URL(api.Endpoints(), t.UserID)
		if err != nil {
			return nil, err
		}
		items, err := api.FetchAll(ctx, endpoint, soundcloud.Call{Key: src.Key()})
		if err != nil {
			return nil, fmt.Errorf("fonte %s: %w", src, err)
		}
		hs, err := soundcloud.ExtractHandles(src, items)
		if err != nil {
			return nil, fmt.Errorf("fonte %s: %w", src, err)
		}
		for _, h := range hs {
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *ExpansionStage) Task(t ExpansionTarget) Task {
	return Task{
		Key: t.Permalink,
		Run: func(ctx context.Context, api Fetcher) (Unit, error) {
			return s.Expand(ctx, api, t)
		},
	}
}
