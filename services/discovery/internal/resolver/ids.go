package resolver

import (
	"net/url"
	"strconv"
	"strings"
)

const apiHost = "api-v2.soundcloud.com"

// UserIDFromAPIURL extrai o id de chamadas como
// https://api-v2.soundcloud.com/users/123/tracks?limit=20.
func UserIDFromAPIURL(raw string) (int64, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host != apiHost {
		return 0, false
	}
	rest, ok := strings.CutPrefix(u.Path, "/users/")
	if !ok {
		return 0, false
	}
	seg, _, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(seg, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// MostFrequent devolve o id mais observado. Em empate vence o que chegou antes à contagem máxima.
func MostFrequent(ids []int64) (int64, bool) {
	if len(ids) == 0 {
		return 0, false
	}
	counts := make(map[int64]int, len(ids))
	best, bestN := ids[0], 0
	for _, id := range ids {
		counts[id]++
		if n := counts[id]; n > bestN {
			best, bestN = id, n
		}
	}
	return best, true
}
