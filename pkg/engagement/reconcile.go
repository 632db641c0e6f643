package engagement

import "github.com/loviiin/soundgraph/pkg/models"

// Observed guarda o tamanho das coleções buscadas para uma track. Um tipo
// ausente do mapa não é evidência de zero.
type Observed map[models.EngagementKind]int

// Reconcile corrige contadores que a API devolveu zerados quando a coleção
// buscada prova o contrário. Nunca reduz um contador nem o zera.
func Reconcile(t models.Track, seen Observed) models.Track {
	t.LikesCount = fix(t.LikesCount, seen[models.Likers])
	t.RepostsCount = fix(t.RepostsCount, seen[models.Reposters])
	t.CommentCount = fix(t.CommentCount, seen[models.Comments])
	return t
}

func fix(counter int64, observed int) int64 {
	if counter == 0 && observed > 0 {
		return int64(observed)
	}
	return counter
}
