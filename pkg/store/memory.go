package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/loviiin/soundgraph/pkg/models"
)

// Memory é um Store em memória com a mesma semântica do Postgres. Serve
// para execuções sem banco configurado e para testes.
type Memory struct {
	mu          sync.RWMutex
	profiles    map[int64]models.Profile
	byPermalink map[string]int64
	candidates  map[string]models.ProfileURL
	candOrder   []string
	tracks      map[int64]models.Track
	comments    map[int64]models.Comment
	engagers    map[models.Kind]map[int64]models.EngagerSet
}

func NewMemory() *Memory {
	return &Memory{
		profiles:    make(map[int64]models.Profile),
		byPermalink: make(map[string]int64),
		candidates:  make(map[string]models.ProfileURL),
		tracks:      make(map[int64]models.Track),
		comments:    make(map[int64]models.Comment),
		engagers: map[models.Kind]map[int64]models.EngagerSet{
			models.KindReposters: {},
			models.KindLikers:    {},
		},
	}
}

func (m *Memory) ListExistingContentIDs(context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.tracks))
	for id := range m.tracks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *Memory) ListProfiles(_ context.Context, f ProfileFilter) ([]models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Profile
	for _, p := range m.profiles {
		if f.ContentEnumerated != nil && p.ContentEnumerated != *f.ContentEnumerated {
			continue
		}
		if len(f.Permalinks) > 0 && !slices.Contains(f.Permalinks, p.Permalink) {
			continue
		}
		if len(f.UserIDs) > 0 && !slices.Contains(f.UserIDs, p.UserID) {
			continue
		}
		if f.MaxFollowers > 0 && p.FollowersCount > f.MaxFollowers {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b models.Profile) int {
		if f.OrderByCrawled && a.CrawledAt != b.CrawledAt {
			return cmpInt(a.CrawledAt, b.CrawledAt)
		}
		return cmpInt(a.UserID, b.UserID)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (m *Memory) ListCandidates(_ context.Context, f CandidateFilter) ([]models.ProfileURL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.ProfileURL
	for _, permalink := range m.candOrder {
		c := m.candidates[permalink]
		if f.UnprocessedOnly && c.Processed() {
			continue
		}
		id, known := m.byPermalink[permalink]
		if f.HasProfile != nil && known != *f.HasProfile {
			continue
		}
		if f.MaxFollowers > 0 && (!known || m.profiles[id].FollowersCount > f.MaxFollowers) {
			continue
		}
		out = append(out, c)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) Upsert(_ context.Context, records ...models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if err := m.insert(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) insert(r models.Record) error {
	switch v := r.(type) {
	case models.Profile:
		if _, ok := m.profiles[v.UserID]; ok {
			return nil
		}
		if v.Permalink != "" {
			if _, taken := m.byPermalink[v.Permalink]; taken {
				return nil
			}
			m.byPermalink[v.Permalink] = v.UserID
		}
		m.profiles[v.UserID] = v
	case models.ProfileURL:
		if _, ok := m.candidates[v.Permalink]; ok {
			return nil
		}
		m.candidates[v.Permalink] = v
		m.candOrder = append(m.candOrder, v.Permalink)
	case models.Track:
		if _, ok := m.tracks[v.TrackID]; !ok {
			m.tracks[v.TrackID] = v
		}
	case models.Comment:
		if _, ok := m.comments[v.CommentID]; !ok {
			m.comments[v.CommentID] = v
		}
	case models.EngagerSet:
		sets := m.engagers[v.RecordKind()]
		if _, ok := sets[v.TrackID]; !ok {
			sets[v.TrackID] = v
		}
	default:
		return fmt.Errorf("store: tipo de registro não suportado %T", r)
	}
	return nil
}

func (m *Memory) ApplyToggle(_ context.Context, t models.Toggle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.toggle(t)
}

func (m *Memory) toggle(t models.Toggle) error {
	switch t.Kind {
	case models.ToggleEnumerated:
		if p, ok := m.profiles[t.UserID]; ok {
			p.ContentEnumerated = true
			m.profiles[t.UserID] = p
		}
	case models.ToggleProcessed:
		if c, ok := m.candidates[t.Permalink]; ok && !c.Processed() {
			c.CrawledAt = t.At
			c.ProfilesDiscovered = t.Discovered
			m.candidates[t.Permalink] = c
		}
	default:
		return fmt.Errorf("store: toggle desconhecido %q", t.Kind)
	}
	return nil
}

// Commit aplica o lote sob um único lock.
func (m *Memory) Commit(_ context.Context, records []models.Record, toggles []models.Toggle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if err := m.insert(r); err != nil {
			return err
		}
	}
	for _, t := range toggles {
		if err := m.toggle(t); err != nil {
			return err
		}
	}
	return nil
}

// Track, Comments e Engagers expõem o conteúdo para inspeção.

func (m *Memory) Track(id int64) (models.Track, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tracks[id]
	return t, ok
}

func (m *Memory) Comments(trackID int64) []models.Comment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Comment
	for _, c := range m.comments {
		if c.TrackID == trackID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b models.Comment) int { return cmpInt(a.CommentID, b.CommentID) })
	return out
}

func (m *Memory) Engagers(kind models.Kind, trackID int64) (models.EngagerSet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.engagers[kind][trackID]
	return s, ok
}

func (m *Memory) Candidate(permalink string) (models.ProfileURL, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.candidates[permalink]
	return c, ok
}
