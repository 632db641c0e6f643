// Package reindex reenvia ao índice de busca os perfis já gravados no Store.
package reindex

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/loviiin/soundgraph/pkg/search"
	"github.com/loviiin/soundgraph/pkg/store"
)

const defaultBatch = 500

// Profiles envia os perfis em lotes de batch. Para no primeiro erro do índice.
func Profiles(ctx context.Context, s store.Store, idx search.ProfileIndexer, f store.ProfileFilter, batch int) (int, error) {
	if batch <= 0 {
		batch = defaultBatch
	}
	profiles, err := s.ListProfiles(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("listar perfis: %w", err)
	}

	sent := 0
	for chunk := range slices.Chunk(profiles, batch) {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if err := idx.IndexProfiles(ctx, chunk); err != nil {
			return sent, fmt.Errorf("lote a partir do perfil %d: %w", sent, err)
		}
		sent += len(chunk)
		log.Debug().Int("sent", sent).Int("total", len(profiles)).Msg("[Reindex] lote enviado")
	}
	log.Info().Int("profiles", sent).Msg("[Reindex] reindexação concluída")
	return sent, nil
}
