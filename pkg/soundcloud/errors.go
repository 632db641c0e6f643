package soundcloud

import (
	"errors"
	"fmt"
)

var (
	// ErrSchema indica uma página cujos itens não têm identidade. A API mudou
	// de formato, não é instabilidade.
	ErrSchema = errors.New("soundcloud: payload fora do schema esperado")

	// ErrCredential indica client id vazio na construção do Client.
	ErrCredential = errors.New("soundcloud: client id ausente")

	// ErrUnavailable indica que as retentativas acabaram sem resposta útil:
	// nenhuma página 200, ou falha de rede na última tentativa.
	ErrUnavailable = errors.New("soundcloud: api indisponível")
)

// StatusError é um status HTTP fora de 200/500/502. Fatal para a unidade de crawl.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("soundcloud: status inesperado %d em %s", e.Code, e.URL)
}

// IsFatal informa se err deve abortar a unidade de crawl atual.
func IsFatal(err error) bool {
	var se *StatusError
	return errors.Is(err, ErrSchema) || errors.Is(err, ErrUnavailable) || errors.As(err, &se)
}
