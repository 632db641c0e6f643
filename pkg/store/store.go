package store

import (
	"context"

	"github.com/loviiin/soundgraph/pkg/models"
)

// ProfileFilter seleciona perfis. Campos zerados não filtram.
type ProfileFilter struct {
	ContentEnumerated *bool
	Permalinks        []string
	UserIDs           []int64
	// MaxFollowers > 0 descarta perfis com mais seguidores que isso.
	MaxFollowers int64
	// OrderByCrawled ordena pelo timestamp de crawl; senão por user_id.
	OrderByCrawled bool
	Limit          int
}

// CandidateFilter seleciona ProfileURLs.
type CandidateFilter struct {
	UnprocessedOnly bool
	// HasProfile: nil ignora, true só candidatos que já são perfis, false só os que ainda não são.
	HasProfile *bool
	// MaxFollowers > 0 restringe a candidatos cujo perfil tem no máximo esse número de seguidores.
	MaxFollowers int64
	Limit        int
}

// Store é o armazenamento durável do crawl. Upsert ignora conflitos de identidade.
type Store interface {
	ListExistingContentIDs(ctx context.Context) ([]int64, error)
	ListProfiles(ctx context.Context, f ProfileFilter) ([]models.Profile, error)
	ListCandidates(ctx context.Context, f CandidateFilter) ([]models.ProfileURL, error)
	Upsert(ctx context.Context, records ...models.Record) error
	ApplyToggle(ctx context.Context, t models.Toggle) error
}

// Committer grava registros e toggles de um lote numa única transação,
// com os toggles por último.
type Committer interface {
	Commit(ctx context.Context, records []models.Record, toggles []models.Toggle) error
}

// Commit usa a transação do Store quando disponível; senão grava os
// registros e só então aplica os toggles.
func Commit(ctx context.Context, s Store, records []models.Record, toggles []models.Toggle) error {
	if c, ok := s.(Committer); ok {
		return c.Commit(ctx, records, toggles)
	}
	if len(records) > 0 {
		if err := s.Upsert(ctx, records...); err != nil {
			return err
		}
	}
	for _, t := range toggles {
		if err := s.ApplyToggle(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func Bool(b bool) *bool { return &b }
