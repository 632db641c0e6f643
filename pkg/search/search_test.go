package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loviiin/soundgraph/pkg/models"
	"github.com/loviiin/soundgraph/pkg/store"
)

type fakeIndexer struct {
	got []models.Profile
	err error
}

func (f *fakeIndexer) IndexProfiles(_ context.Context, ps []models.Profile) error {
	f.got = append(f.got, ps...)
	return f.err
}

func TestIndexedStoreIndexesProfilesOnly(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	idx := &fakeIndexer{}
	s := WithIndex(mem, idx)

	err := store.Commit(ctx, s, []models.Record{
		models.Profile{UserID: 1, Permalink: "dj"},
		models.Track{TrackID: 5},
	}, []models.Toggle{models.EnumeratedToggle(1)})
	require.NoError(t, err)

	require.Len(t, idx.got, 1)
	assert.Equal(t, int64(1), idx.got[0].UserID)

	ps, err := mem.ListProfiles(ctx, store.ProfileFilter{ContentEnumerated: store.Bool(true)})
	require.NoError(t, err)
	assert.Len(t, ps, 1)
}

func TestIndexedStoreSurvivesIndexFailure(t *testing.T) {
	s := WithIndex(store.NewMemory(), &fakeIndexer{err: errors.New("meili fora")})
	assert.NoError(t, s.Upsert(context.Background(), models.Profile{UserID: 2}))
}

func TestDocumentOmitsEmptyStrings(t *testing.T) {
	doc := Document(models.Profile{UserID: 3, Permalink: "x", FollowersCount: 10})
	assert.Equal(t, "x", doc["permalink"])
	assert.Equal(t, int64(10), doc["followers_count"])
	_, hasCity := doc["city"]
	assert.False(t, hasCity)
	_, hasCrawled := doc["dt_crawled"]
	assert.False(t, hasCrawled)
}
