package resolver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	orphanProfileTTL = 90 * time.Minute
	sweepInterval    = 15 * time.Minute
)

// StartProfileSweeper remove periodicamente diretórios de perfil deixados
// por browsers que morreram sem limpar.
func StartProfileSweeper(ctx context.Context) {
	log.Info().Msg("[GC] iniciando profile sweeper")
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOrphanProfiles(os.TempDir(), orphanProfileTTL)
		}
	}
}

func sweepOrphanProfiles(baseDir string, ttl time.Duration) int {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		log.Error().Err(err).Str("dir", baseDir).Msg("[GC] erro lendo diretório base")
		return 0
	}

	removed := 0
	now := time.Now()
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), profileDirPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || now.Sub(info.ModTime()) <= ttl {
			continue
		}
		full := filepath.Join(baseDir, entry.Name())
		if err := os.RemoveAll(full); err != nil {
			log.Warn().Err(err).Str("dir", full).Msg("[GC] erro removendo perfil órfão")
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Info().Int("removed", removed).Msg("[GC] perfis órfãos removidos")
	}
	return removed
}
