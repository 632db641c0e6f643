package soundcloud

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/loviiin/soundgraph/pkg/models"
)

// EntryKind discrimina o conteúdo de um item do stream.
type EntryKind int

const (
	EntryUnknown EntryKind = iota
	EntryTrack
	EntryPlaylist
)

// StreamEntry é o item do stream já decidido entre track e playlist.
type StreamEntry struct {
	Kind     EntryKind
	Track    *RawTrack
	Playlist *RawPlaylist
}

func DecodeStreamEntry(raw json.RawMessage) (StreamEntry, error) {
	var item StreamItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return StreamEntry{}, fmt.Errorf("%w: item de stream: %v", ErrSchema, err)
	}
	switch {
	case item.Track != nil:
		return StreamEntry{Kind: EntryTrack, Track: item.Track}, nil
	case item.Playlist != nil:
		return StreamEntry{Kind: EntryPlaylist, Playlist: item.Playlist}, nil
	}
	return StreamEntry{Kind: EntryUnknown}, nil
}

// FlattenStream expande playlists nas suas tracks e descarta stubs (tracks
// sem permalink_url, que a API manda só com id). Cada track aparece uma vez.
func FlattenStream(raws []json.RawMessage, crawledAt int64) ([]models.Track, error) {
	seen := make(map[int64]struct{})
	var out []models.Track
	add := func(t *RawTrack) {
		if t == nil || t.PermalinkURL == "" || t.ID == 0 {
			return
		}
		if _, ok := seen[t.ID]; ok {
			return
		}
		seen[t.ID] = struct{}{}
		out = append(out, NormalizeTrack(*t, crawledAt))
	}

	for _, raw := range raws {
		entry, err := DecodeStreamEntry(raw)
		if err != nil {
			return nil, err
		}
		switch entry.Kind {
		case EntryTrack:
			add(entry.Track)
		case EntryPlaylist:
			for i := range entry.Playlist.Tracks {
				add(&entry.Playlist.Tracks[i])
			}
		}
	}
	return out, nil
}

func NormalizeTrack(t RawTrack, crawledAt int64) models.Track {
	return models.Track{
		TrackID:           t.ID,
		UserID:            t.UserID,
		CrawledAt:         crawledAt,
		Title:             t.Title,
		Permalink:         t.Permalink,
		PermalinkURL:      t.PermalinkURL,
		Genre:             t.Genre,
		TagList:           t.TagList,
		Public:            t.Public,
		Sharing:           t.Sharing,
		State:             t.State,
		Policy:            t.Policy,
		LabelName:         t.LabelName,
		License:           t.License,
		MonetizationModel: t.MonetizationModel,
		Commentable:       t.Commentable,
		Streamable:        t.Streamable,
		Downloadable:      t.Downloadable,
		HasDownloadsLeft:  t.HasDownloadsLeft,
		EmbeddableBy:      t.EmbeddableBy,
		CreatedAt:         t.CreatedAt,
		DisplayDate:       t.DisplayDate,
		ReleaseDate:       t.ReleaseDate,
		LastModified:      t.LastModified,
		Duration:          t.Duration,
		FullDuration:      t.FullDuration,
		Counters: models.Counters{
			PlaybackCount: deref(t.PlaybackCount),
			LikesCount:    deref(t.LikesCount),
			RepostsCount:  deref(t.RepostsCount),
			CommentCount:  deref(t.CommentCount),
			DownloadCount: deref(t.DownloadCount),
		},
	}
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

// NormalizeProfile converte o usuário v1. O likes_count da v1 é descartado
// e o public_favorites_count assume o lugar dele.
func NormalizeProfile(raw json.RawMessage, crawledAt int64) (models.Profile, error) {
	var u RawUser
	if err := json.Unmarshal(raw, &u); err != nil {
		return models.Profile{}, fmt.Errorf("%w: perfil: %v", ErrSchema, err)
	}
	if u.ID == 0 {
		return models.Profile{}, fmt.Errorf("%w: perfil sem id", ErrSchema)
	}
	p := profileFields(u, crawledAt)
	p.LikesCount = u.PublicFavoritesCount
	p.Country = u.Country
	p.Plan = u.Plan
	p.Subscriptions = firstProduct(u.Subscriptions)
	return p, nil
}

// NormalizeEngager converte o usuário v2 que vem nas listas de reposters e likers.
func NormalizeEngager(u RawUser, crawledAt int64) models.Profile {
	p := profileFields(u, crawledAt)
	p.LikesCount = u.LikesCount
	p.Country = u.CountryCode
	p.Subscriptions = firstProduct(u.CreatorSubscriptions)
	return p
}

func profileFields(u RawUser, crawledAt int64) models.Profile {
	permalink := u.Permalink
	if permalink == "" {
		permalink = HandleFromURL(u.PermalinkURL)
	}
	return models.Profile{
		UserID:          u.ID,
		CrawledAt:       crawledAt,
		Permalink:       permalink,
		Username:        u.Username,
		TrackCount:      u.TrackCount,
		PlaylistCount:   u.PlaylistCount,
		FollowersCount:  u.FollowersCount,
		FollowingsCount: u.FollowingsCount,
		RepostsCount:    u.RepostsCount,
		CommentsCount:   u.CommentsCount,
		City:            u.City,
		LastModified:    u.LastModified,
	}
}

func firstProduct(subs []Subscription) string {
	if len(subs) == 0 {
		return ""
	}
	return subs[0].Product.ID
}

func NormalizeComment(raw json.RawMessage) (models.Comment, error) {
	var c RawComment
	if err := json.Unmarshal(raw, &c); err != nil {
		return models.Comment{}, fmt.Errorf("%w: comentário: %v", ErrSchema, err)
	}
	userID := c.UserID
	if userID == 0 && c.User != nil {
		userID = c.User.ID
	}
	return models.Comment{
		CommentID: c.ID,
		TrackID:   c.TrackID,
		UserID:    userID,
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
		Timestamp: c.Timestamp,
	}, nil
}

// HandleFromURL extrai o handle (primeiro segmento do path) de um permalink_url.
func HandleFromURL(permalinkURL string) string {
	if permalinkURL == "" {
		return ""
	}
	u, err := url.Parse(permalinkURL)
	if err != nil {
		return ""
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return ""
	}
	handle, _, _ := strings.Cut(path, "/")
	return handle
}

// Source é uma das fontes de handles usadas na expansão do grafo.
type Source string

const (
	SourceFollowers  Source = "followers"
	SourceFollowings Source = "followings"
	SourceStream     Source = "stream"
	SourceLikes      Source = "likes"
	SourceComments   Source = "comments"
)

// ParseSources valida nomes de fonte vindos da configuração.
func ParseSources(names []string) ([]Source, error) {
	out := make([]Source, 0, len(names))
	for _, n := range names {
		src := Source(strings.ToLower(strings.TrimSpace(n)))
		switch src {
		case SourceFollowers, SourceFollowings, SourceStream, SourceLikes, SourceComments:
			out = append(out, src)
		default:
			return nil, fmt.Errorf("soundcloud: fonte desconhecida %q", n)
		}
	}
	return out, nil
}

// URL devolve o endpoint da fonte para o usuário.
func (s Source) URL(e Endpoints, userID int64) (string, error) {
	switch s {
	case SourceFollowers:
		return e.Followers(userID), nil
	case SourceFollowings:
		return e.Followings(userID), nil
	case SourceStream:
		return e.Stream(userID), nil
	case SourceLikes:
		return e.Likes(userID), nil
	case SourceComments:
		return e.UserComments(userID), nil
	}
	return "", fmt.Errorf("soundcloud: fonte desconhecida %q", s)
}

// Key devolve a KeyFunc adequada ao formato dos itens da fonte.
func (s Source) Key() KeyFunc {
	switch s {
	case SourceStream:
		return StreamKey
	case SourceLikes:
		return LikeKey
	}
	return IDKey
}

// ExtractHandles extrai os handles únicos dos itens de uma fonte, em ordem
// de aparição.
func ExtractHandles(s Source, raws []json.RawMessage) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(permalinkURL string) {
		h := HandleFromURL(permalinkURL)
		if h == "" {
			return
		}
		if _, ok := seen[h]; ok {
			return
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}

	switch s {
	case SourceFollowers, SourceFollowings:
		for _, raw := range raws {
			var u RawUser
			if err := json.Unmarshal(raw, &u); err != nil {
				return nil, fmt.Errorf("%w: usuário: %v", ErrSchema, err)
			}
			add(u.PermalinkURL)
		}
	case SourceStream:
		tracks, err := FlattenStream(raws, 0)
		if err != nil {
			return nil, err
		}
		for _, t := range tracks {
			add(t.PermalinkURL)
		}
	case SourceLikes:
		for _, raw := range raws {
			var l LikeItem
			if err := json.Unmarshal(raw, &l); err != nil {
				return nil, fmt.Errorf("%w: like: %v", ErrSchema, err)
			}
			if l.Track != nil {
				add(l.Track.PermalinkURL)
			}
		}
	case SourceComments:
		for _, raw := range raws {
			var c RawComment
			if err := json.Unmarshal(raw, &c); err != nil {
				return nil, fmt.Errorf("%w: comentário: %v", ErrSchema, err)
			}
			if c.Track != nil {
				add(c.Track.PermalinkURL)
			}
		}
	default:
		return nil, fmt.Errorf("soundcloud: fonte desconhecida %q", s)
	}
	return out, nil
}
