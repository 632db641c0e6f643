package crawl

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/loviiin/soundgraph/pkg/models"
	"github.com/loviiin/soundgraph/pkg/soundcloud"
)

const DefaultSiteURL = "https://soundcloud.com"

// Resolver descobre o id interno de um perfil a partir da URL pública.
type Resolver interface {
	ResolveInternalID(ctx context.Context, profileURL string) (int64, error)
}

// ArtistStage resolve o id de um candidato e grava o perfil completo.
type ArtistStage struct {
	Resolver Resolver
	SiteURL  string
	Now      Clock
}

func (s *ArtistStage) ProfileURL(permalink string) string {
	base := s.SiteURL
	if base == "" {
		base = DefaultSiteURL
	}
	return strings.TrimRight(base, "/") + "/" + permalink
}

// Discover nunca é retentado pelo próprio estágio: qualquer falha aborta a unidade.
func (s *ArtistStage) Discover(ctx context.Context, api Fetcher, permalink string) (Unit, error) {
	unit := Unit{Key: permalink}

	userID, err := s.Resolver.ResolveInternalID(ctx, s.ProfileURL(permalink))
	if err != nil {
		return unit, abort(StageArtists, permalink, fmt.Errorf("resolver: %w", err))
	}

	raw, err := api.FetchOne(ctx, api.Endpoints().User(userID))
	if err != nil {
		return unit, abort(StageArtists, permalink, err)
	}
	now := s.Now.millis()
	profile, err := soundcloud.NormalizeProfile(raw, now)
	if err != nil {
		return unit, abort(StageArtists, permalink, err)
	}

	unit.Records = append(unit.Records, profile)
	if profile.Permalink != permalink {
		// perfil renomeado: o permalink da API vira candidato e o antigo sai da fila
		log.Warn().Str("permalink", permalink).Str("api_permalink", profile.Permalink).
			Int64("user_id", userID).Msg("[Artists] permalink divergente da API")
		unit.Records = append(unit.Records, models.ProfileURL{Permalink: profile.Permalink})
		unit.Toggles = append(unit.Toggles, models.ProcessedToggle(permalink, 0, now))
	}
	return unit, nil
}

// Task embrulha Discover para o Runner.
func (s *ArtistStage) Task(permalink string) Task {
	return Task{
		Key: permalink,
		Run: func(ctx context.Context, api Fetcher) (Unit, error) {
			return s.Discover(ctx, api, permalink)
		},
	}
}
