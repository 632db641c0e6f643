package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loviiin/soundgraph/pkg/crawl"
	"github.com/loviiin/soundgraph/pkg/dedup"
	"github.com/loviiin/soundgraph/pkg/models"
	"github.com/loviiin/soundgraph/pkg/queue"
	"github.com/loviiin/soundgraph/pkg/soundcloud"
	"github.com/loviiin/soundgraph/pkg/store"
)

func apiServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runnerFor(srv *httptest.Server) crawl.Runner {
	return crawl.Runner{
		Workers:   2,
		BatchSize: 5,
		NewFetcher: func() (crawl.Fetcher, error) {
			return soundcloud.NewClient(soundcloud.Options{
				ClientID:  "test",
				Endpoints: soundcloud.Endpoints{V1: srv.URL, V2: srv.URL},
				Sleep:     func(context.Context, time.Duration) error { return nil },
			})
		},
	}
}

type stubResolver map[string]int64

func (s stubResolver) ResolveInternalID(_ context.Context, profileURL string) (int64, error) {
	if id, ok := s[profileURL]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("sem chamadas de usuário para %s", profileURL)
}

type recordingPublisher struct {
	mu   sync.Mutex
	jobs []queue.TrackJob
}

func (p *recordingPublisher) Publish(_ context.Context, job queue.TrackJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	return nil
}

func TestRunArtistsStoresProfilesAndPublishes(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.Upsert(ctx,
		models.ProfileURL{Permalink: "dj"},
		models.ProfileURL{Permalink: "ghost"},
		models.ProfileURL{Permalink: "known"},
		models.Profile{UserID: 5, Permalink: "known"},
	))

	srv := apiServer(t, map[string]string{
		"/users/42": `{"id":42,"permalink":"dj","username":"DJ","followers_count":12}`,
	})
	mr := miniredis.RunT(t)
	seen := dedup.NewDeduplicator(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	pub := &recordingPublisher{}

	artists := &crawl.ArtistStage{Resolver: stubResolver{"https://soundcloud.com/dj": 42}}
	svc := NewDiscoveryService(mem, artists, &crawl.ExpansionStage{}, runnerFor(srv))
	svc.Publisher = pub
	svc.Seen = seen

	sum, err := svc.RunArtists(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Done)
	assert.Equal(t, 1, sum.Aborted)

	ps, err := mem.ListProfiles(ctx, store.ProfileFilter{Permalinks: []string{"dj"}})
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, int64(42), ps[0].UserID)
	assert.Equal(t, int64(12), ps[0].FollowersCount)

	assert.Equal(t, []queue.TrackJob{{UserID: 42, Permalink: "dj"}}, pub.jobs)
	assert.True(t, mr.Exists("soundgraph:resolve_failed:ghost"))

	// ghost fica marcado e dj já é perfil: nada a fazer
	sum, err = svc.RunArtists(ctx)
	require.NoError(t, err)
	assert.Equal(t, crawl.Summary{}, sum)
}

func TestRunExpansionRespectsFollowerMax(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.Upsert(ctx,
		models.Profile{UserID: 9, Permalink: "src", FollowersCount: 2},
		models.Profile{UserID: 10, Permalink: "big", FollowersCount: 1_000_000},
		models.ProfileURL{Permalink: "src"},
		models.ProfileURL{Permalink: "big"},
	))

	srv := apiServer(t, map[string]string{
		"/users/9/followers": `{"collection":[
			{"id":1,"permalink_url":"https://soundcloud.com/a"},
			{"id":2,"permalink_url":"https://soundcloud.com/b"}
		],"next_href":null}`,
	})

	expansion := &crawl.ExpansionStage{Sources: []soundcloud.Source{soundcloud.SourceFollowers}}
	svc := NewDiscoveryService(mem, &crawl.ArtistStage{}, expansion, runnerFor(srv))
	svc.FollowerMax = 750000

	sum, err := svc.RunExpansion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Done)

	src, ok := mem.Candidate("src")
	require.True(t, ok)
	assert.True(t, src.Processed())
	assert.Equal(t, 2, src.ProfilesDiscovered)

	big, ok := mem.Candidate("big")
	require.True(t, ok)
	assert.False(t, big.Processed())

	for _, h := range []string{"a", "b"} {
		c, ok := mem.Candidate(h)
		require.True(t, ok, h)
		assert.False(t, c.Processed())
	}
}

func TestRunArtistsRenamedProfileLeavesQueue(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.Upsert(ctx, models.ProfileURL{Permalink: "dj"}))

	srv := apiServer(t, map[string]string{
		"/users/42": `{"id":42,"permalink":"dj-novo","username":"DJ"}`,
	})
	pub := &recordingPublisher{}
	artists := &crawl.ArtistStage{Resolver: stubResolver{"https://soundcloud.com/dj": 42}}
	svc := NewDiscoveryService(mem, artists, &crawl.ExpansionStage{}, runnerFor(srv))
	svc.Publisher = pub

	sum, err := svc.RunArtists(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Done)
	assert.Equal(t, []queue.TrackJob{{UserID: 42, Permalink: "dj-novo"}}, pub.jobs)

	old, ok := mem.Candidate("dj")
	require.True(t, ok)
	assert.True(t, old.Processed())

	sum, err = svc.RunArtists(ctx)
	require.NoError(t, err)
	assert.Equal(t, crawl.Summary{}, sum)

	cands, err := mem.ListCandidates(ctx, store.CandidateFilter{UnprocessedOnly: true, HasProfile: store.Bool(true)})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "dj-novo", cands[0].Permalink)
}
