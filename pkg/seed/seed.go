// Package seed carrega a lista inicial de perfis conhecidos (handle → id)
// usada para alimentar o crawl de tracks quando o store ainda não tem artistas.
package seed

import (
	"fmt"
	"math/rand/v2"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/loviiin/soundgraph/pkg/models"
)

// Entry é um perfil conhecido.
type Entry struct {
	Permalink string
	UserID    int64
}

// Load lê um mapa handle → id em YAML ou JSON.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) ([]Entry, error) {
	var m map[string]int64
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("seed: formato inválido: %w", err)
	}
	out := make([]Entry, 0, len(m))
	for permalink, id := range m {
		if permalink == "" || id <= 0 {
			return nil, fmt.Errorf("seed: entrada inválida %q=%d", permalink, id)
		}
		out = append(out, Entry{Permalink: permalink, UserID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Permalink < out[j].Permalink })
	return out, nil
}

// Select embaralha as entradas, descarta as que skip rejeitar e corta em limit (0 = todas).
func Select(entries []Entry, skip func(Entry) bool, limit int, r *rand.Rand) []Entry {
	shuffled := make([]Entry, len(entries))
	copy(shuffled, entries)
	shuffle := rand.Shuffle
	if r != nil {
		shuffle = r.Shuffle
	}
	shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	out := shuffled[:0]
	for _, e := range shuffled {
		if skip != nil && skip(e) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Stub é o perfil mínimo gravado para o seed, para que o toggle de
// enumeração sempre tenha uma linha para marcar.
func (e Entry) Stub() models.Profile {
	return models.Profile{UserID: e.UserID, Permalink: e.Permalink}
}
