// Package crawl sequencia os três estágios do crawl (descoberta de artistas,
// expansão do grafo e enumeração de tracks com engajamento) e os executa
// num pool de workers com flush em lotes.
package crawl

import (
	"context"
	"encoding/json"
	"time"

	"github.com/loviiin/soundgraph/pkg/models"
	"github.com/loviiin/soundgraph/pkg/soundcloud"
)

// Fetcher é o cliente paginado usado pelos estágios. Cada worker tem o seu.
type Fetcher interface {
	FetchAll(ctx context.Context, endpoint string, call soundcloud.Call) ([]json.RawMessage, error)
	FetchOne(ctx context.Context, endpoint string) (json.RawMessage, error)
	Endpoints() soundcloud.Endpoints
}

// Unit é o resultado completo do processamento de um perfil. Os toggles só
// são aplicados depois dos registros persistidos.
type Unit struct {
	Key     string
	Records []models.Record
	Toggles []models.Toggle
	Counts  map[string]int64
}

func (u *Unit) count(name string, n int64) {
	if n == 0 {
		return
	}
	if u.Counts == nil {
		u.Counts = make(map[string]int64)
	}
	u.Counts[name] += n
}

// Nomes dos contadores publicados pelo Runner.
const (
	CounterProfilesDone    = "profiles_done"
	CounterProfilesAborted = "profiles_aborted"
	CounterTracksNew       = "tracks_new"
	CounterTracksSkipped   = "tracks_skipped"
	CounterComments        = "comments"
	CounterCandidates      = "candidates"
)

var CounterNames = []string{
	CounterProfilesDone,
	CounterProfilesAborted,
	CounterTracksNew,
	CounterTracksSkipped,
	CounterComments,
	CounterCandidates,
}

type Clock func() time.Time

func (c Clock) millis() int64 {
	if c == nil {
		return time.Now().UnixMilli()
	}
	return c().UnixMilli()
}
