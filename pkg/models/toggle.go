package models

import "strconv"

type ToggleKind string

const (
	// ToggleEnumerated marca que o conteúdo do perfil já foi enumerado.
	ToggleEnumerated ToggleKind = "content_enumerated"
	// ToggleProcessed marca um ProfileURL como expandido.
	ToggleProcessed ToggleKind = "candidate_processed"
)

// Toggle é um marcador discreto de status. Nunca é aplicado antes dos
// registros da mesma unidade estarem persistidos.
type Toggle struct {
	Kind       ToggleKind `json:"kind"`
	UserID     int64      `json:"user_id,omitempty"`
	Permalink  string     `json:"permalink,omitempty"`
	Discovered int        `json:"discovered,omitempty"`
	At         int64      `json:"at,omitempty"`
}

func EnumeratedToggle(userID int64) Toggle {
	return Toggle{Kind: ToggleEnumerated, UserID: userID}
}

func ProcessedToggle(permalink string, discovered int, at int64) Toggle {
	return Toggle{Kind: ToggleProcessed, Permalink: permalink, Discovered: discovered, At: at}
}

// Key retorna a identidade do alvo do toggle.
func (t Toggle) Key() string {
	if t.Kind == ToggleProcessed {
		return t.Permalink
	}
	return strconv.FormatInt(t.UserID, 10)
}
