package soundcloud

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/loviiin/soundgraph/pkg/models"
)

const (
	DefaultBaseV1 = "http://api.soundcloud.com"
	DefaultBaseV2 = "https://api-v2.soundcloud.com"

	// PageSize é o tamanho de página usado nas listas de engajamento.
	PageSize = 200
	// StreamPageSize limita cada página do stream de um perfil.
	StreamPageSize = 1000
)

// Endpoints monta as URLs das duas famílias de API. As URLs saem sem
// credencial; o Client acrescenta o client_id em cada chamada.
type Endpoints struct {
	V1 string
	V2 string
}

func (e Endpoints) build(base, path string, q url.Values) string {
	u := strings.TrimRight(base, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func limit(n int) url.Values {
	return url.Values{"limit": {fmt.Sprint(n)}}
}

// User é o perfil completo (v1).
func (e Endpoints) User(userID int64) string {
	return e.build(e.V1, fmt.Sprintf("/users/%d", userID), nil)
}

func (e Endpoints) Followers(userID int64) string {
	return e.build(e.V1, fmt.Sprintf("/users/%d/followers", userID), limit(PageSize))
}

func (e Endpoints) Followings(userID int64) string {
	return e.build(e.V1, fmt.Sprintf("/users/%d/followings", userID), limit(PageSize))
}

func (e Endpoints) Stream(userID int64) string {
	return e.build(e.V2, fmt.Sprintf("/stream/users/%d", userID), limit(StreamPageSize))
}

func (e Endpoints) Likes(userID int64) string {
	return e.build(e.V2, fmt.Sprintf("/users/%d/likes", userID), limit(PageSize))
}

func (e Endpoints) UserComments(userID int64) string {
	return e.build(e.V2, fmt.Sprintf("/users/%d/comments", userID), limit(StreamPageSize))
}

// Engagement lista reposters, likers ou comentários de uma track.
func (e Endpoints) Engagement(trackID int64, kind models.EngagementKind) string {
	q := limit(PageSize)
	if kind == models.Comments {
		q.Set("threaded", "1")
		q.Set("filter_replies", "0")
	}
	return e.build(e.V2, fmt.Sprintf("/tracks/%d/%s", trackID, kind), q)
}

// CommentCallLimit deriva o teto de chamadas a partir do contador esperado.
// Zero significa sem teto (só o guard de progresso se aplica).
func CommentCallLimit(expected int64) int {
	if expected <= 0 {
		return 0
	}
	pages := (expected + PageSize - 1) / PageSize
	return int(float64(pages) * 1.5)
}
