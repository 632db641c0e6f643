package search

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/loviiin/soundgraph/pkg/models"
	"github.com/loviiin/soundgraph/pkg/store"
)

type ProfileIndexer interface {
	IndexProfiles(ctx context.Context, profiles []models.Profile) error
}

// IndexedStore indexa os perfis gravados. Falha de indexação só gera log:
// o Store continua sendo a fonte da verdade.
type IndexedStore struct {
	store.Store
	idx ProfileIndexer
}

func WithIndex(s store.Store, idx ProfileIndexer) *IndexedStore {
	return &IndexedStore{Store: s, idx: idx}
}

func (s *IndexedStore) Upsert(ctx context.Context, records ...models.Record) error {
	if err := s.Store.Upsert(ctx, records...); err != nil {
		return err
	}
	s.index(ctx, records)
	return nil
}

func (s *IndexedStore) Commit(ctx context.Context, records []models.Record, toggles []models.Toggle) error {
	if err := store.Commit(ctx, s.Store, records, toggles); err != nil {
		return err
	}
	s.index(ctx, records)
	return nil
}

func (s *IndexedStore) index(ctx context.Context, records []models.Record) {
	var profiles []models.Profile
	for _, r := range records {
		if p, ok := r.(models.Profile); ok {
			profiles = append(profiles, p)
		}
	}
	if err := s.idx.IndexProfiles(ctx, profiles); err != nil {
		log.Warn().Err(err).Int("profiles", len(profiles)).Msg("[Search] falha ao indexar")
	}
}
