package soundcloud

import (
	"encoding/json"
	"errors"
	"strconv"
)

// KeyFunc devolve a identidade de um item de coleção.
type KeyFunc func(raw json.RawMessage) (string, error)

var errNoIdentity = errors.New("item sem identidade")

// IDKey usa o campo "id" do item.
func IDKey(raw json.RawMessage) (string, error) {
	var v struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	if v.ID == "" {
		return "", errNoIdentity
	}
	return v.ID.String(), nil
}

// StreamKey identifica itens do stream: uuid quando presente, senão o id
// da track ou playlist embutida.
func StreamKey(raw json.RawMessage) (string, error) {
	var v StreamItem
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	if v.UUID != "" {
		return v.UUID, nil
	}
	return nestedKey(v.Track, v.Playlist)
}

// LikeKey identifica itens de likes, que não têm id próprio.
func LikeKey(raw json.RawMessage) (string, error) {
	var v LikeItem
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	return nestedKey(v.Track, v.Playlist)
}

func nestedKey(t *RawTrack, p *RawPlaylist) (string, error) {
	switch {
	case t != nil && t.ID != 0:
		return "track:" + strconv.FormatInt(t.ID, 10), nil
	case p != nil && p.ID != 0:
		return "playlist:" + strconv.FormatInt(p.ID, 10), nil
	}
	return "", errNoIdentity
}

type Subscription struct {
	Product struct {
		ID string `json:"id"`
	} `json:"product"`
}

// RawUser cobre o usuário v1 (perfil) e o v2 (reposters, likers, autores).
type RawUser struct {
	ID                   int64          `json:"id"`
	Permalink            string         `json:"permalink"`
	PermalinkURL         string         `json:"permalink_url"`
	Username             string         `json:"username"`
	TrackCount           int64          `json:"track_count"`
	PlaylistCount        int64          `json:"playlist_count"`
	FollowersCount       int64          `json:"followers_count"`
	FollowingsCount      int64          `json:"followings_count"`
	LikesCount           int64          `json:"likes_count"`
	PublicFavoritesCount int64          `json:"public_favorites_count"`
	RepostsCount         int64          `json:"reposts_count"`
	CommentsCount        int64          `json:"comments_count"`
	Country              string         `json:"country"`
	CountryCode          string         `json:"country_code"`
	City                 string         `json:"city"`
	LastModified         string         `json:"last_modified"`
	Plan                 string         `json:"plan"`
	Subscriptions        []Subscription `json:"subscriptions"`
	CreatorSubscriptions []Subscription `json:"creator_subscriptions"`
}

// RawTrack usa ponteiros nos contadores: a API omite ou manda null.
type RawTrack struct {
	ID                int64  `json:"id"`
	UserID            int64  `json:"user_id"`
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
	PlaybackCount     *int64 `json:"playback_count"`
	LikesCount        *int64 `json:"likes_count"`
	RepostsCount      *int64 `json:"reposts_count"`
	CommentCount      *int64 `json:"comment_count"`
	DownloadCount     *int64 `json:"download_count"`
}

type RawPlaylist struct {
	ID           int64      `json:"id"`
	PermalinkURL string     `json:"permalink_url"`
	Tracks       []RawTrack `json:"tracks"`
}

// StreamItem é um item do stream v2: repost ou post de track ou playlist.
type StreamItem struct {
	Type     string       `json:"type"`
	UUID     string       `json:"uuid"`
	Track    *RawTrack    `json:"track"`
	Playlist *RawPlaylist `json:"playlist"`
}

type LikeItem struct {
	Kind     string       `json:"kind"`
	Track    *RawTrack    `json:"track"`
	Playlist *RawPlaylist `json:"playlist"`
}

// RawComment cobre comentários de track e do usuário (este último com a
// track embutida).
type RawComment struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	CreatedAt string    `json:"created_at"`
	Timestamp *int64    `json:"timestamp"`
	TrackID   int64     `json:"track_id"`
	UserID    int64     `json:"user_id"`
	User      *RawUser  `json:"user"`
	Track     *RawTrack `json:"track"`
}
