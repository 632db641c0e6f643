package models

import (
	"fmt"
	"strings"
)

// Kind identifica o tipo de registro emitido pelos estágios de crawl.
type Kind string

const (
	KindProfile    Kind = "profile"
	KindProfileURL Kind = "profile_url"
	KindTrack      Kind = "track"
	KindComment    Kind = "comment"
	KindReposters  Kind = "reposters"
	KindLikers     Kind = "likers"
)

// Record é qualquer registro persistível. Todos são gravados com semântica
// ignore-on-conflict pela identidade.
type Record interface {
	RecordKind() Kind
}

// EngagementKind é um dos tipos de engajamento buscados por track.
type EngagementKind string

const (
	Reposters EngagementKind = "reposters"
	Likers    EngagementKind = "likers"
	Comments  EngagementKind = "comments"
)

func ParseEngagementKinds(names []string) ([]EngagementKind, error) {
	out := make([]EngagementKind, 0, len(names))
	for _, n := range names {
		k := EngagementKind(strings.ToLower(strings.TrimSpace(n)))
		switch k {
		case Reposters, Likers, Comments:
			out = append(out, k)
		default:
			return nil, fmt.Errorf("tipo de engajamento desconhecido %q", n)
		}
	}
	return out, nil
}

// Profile é um artista/usuário com seus contadores.
type Profile struct {
	UserID            int64  `json:"user_id"`
	CrawledAt         int64  `json:"dt_crawled"`
	ContentEnumerated bool   `json:"retrieved_tracks"`
	Permalink         string `json:"permalink"`
	Username          string `json:"username"`
	TrackCount        int64  `json:"track_count"`
	PlaylistCount     int64  `json:"playlist_count"`
	FollowersCount    int64  `json:"followers_count"`
	FollowingsCount   int64  `json:"followings_count"`
	LikesCount        int64  `json:"likes_count"`
	RepostsCount      int64  `json:"reposts_count"`
	CommentsCount     int64  `json:"comments_count"`
	Country           string `json:"country"`
	City              string `json:"city"`
	LastModified      string `json:"last_modified"`
	Plan              string `json:"plan"`
	Subscriptions     string `json:"subscriptions"`
}

func (Profile) RecordKind() Kind { return KindProfile }

// ProfileURL é um candidato descoberto na expansão do grafo. Começa com
// CrawledAt e ProfilesDiscovered zerados (não processado).
type ProfileURL struct {
	Permalink          string `json:"permalink"`
	CrawledAt          int64  `json:"dt_crawled"`
	ProfilesDiscovered int    `json:"profiles_scraped"`
}

func (ProfileURL) RecordKind() Kind { return KindProfileURL }

// Processed indica se o candidato já passou pela expansão.
func (p ProfileURL) Processed() bool { return p.CrawledAt != 0 }

type Track struct {
	TrackID           int64  `json:"track_id"`
	UserID            int64  `json:"user_id"`
	CrawledAt         int64  `json:"dt_crawled"`
	Title             string `json:"title"`
	Permalink         string `json:"permalink"`
	PermalinkURL      string `json:"permalink_url"`
	Genre             string `json:"genre"`
	TagList           string `json:"tag_list"`
	Public            bool   `json:"public"`
	Sharing           string `json:"sharing"`
	State             string `json:"state"`
	Policy            string `json:"policy"`
	LabelName         string `json:"label_name"`
	License           string `json:"license"`
	MonetizationModel string `json:"monetization_model"`
	Commentable       bool   `json:"commentable"`
	Streamable        bool   `json:"streamable"`
	Downloadable      bool   `json:"downloadable"`
	HasDownloadsLeft  bool   `json:"has_downloads_left"`
	EmbeddableBy      string `json:"embeddable_by"`
	CreatedAt         string `json:"created_at"`
	DisplayDate       string `json:"display_date"`
	ReleaseDate       string `json:"release_date"`
	LastModified      string `json:"last_modified"`
	Duration          int64  `json:"duration"`
	FullDuration      int64  `json:"full_duration"`
	Counters
}

func (Track) RecordKind() Kind { return KindTrack }

// Counters são os cinco contadores de engajamento de uma track. Contadores
// ausentes no payload chegam aqui como zero.
type Counters struct {
	PlaybackCount int64 `json:"playback_count"`
	LikesCount    int64 `json:"likes_count"`
	RepostsCount  int64 `json:"reposts_count"`
	CommentCount  int64 `json:"comment_count"`
	DownloadCount int64 `json:"download_count"`
}

type Comment struct {
	CommentID int64  `json:"comment_id"`
	TrackID   int64  `json:"track_id"`
	UserID    int64  `json:"user_id"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
	// Timestamp é a posição de reprodução (ms) onde o comentário foi deixado.
	Timestamp *int64 `json:"timestamp,omitempty"`
}

func (Comment) RecordKind() Kind { return KindComment }

// EngagerSet guarda o conjunto completo de atores (reposters ou likers) de uma track.
type EngagerSet struct {
	Kind    EngagementKind `json:"kind"`
	TrackID int64          `json:"track_id"`
	UserIDs []int64        `json:"user_ids"`
}

// NewEngagerSet remove ids repetidos mantendo a ordem de chegada.
func NewEngagerSet(kind EngagementKind, trackID int64, ids []int64) EngagerSet {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return EngagerSet{Kind: kind, TrackID: trackID, UserIDs: out}
}

func (s EngagerSet) RecordKind() Kind {
	if s.Kind == Likers {
		return KindLikers
	}
	return KindReposters
}
