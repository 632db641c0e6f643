package reindex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loviiin/soundgraph/pkg/models"
	"github.com/loviiin/soundgraph/pkg/store"
)

type batchIndexer struct {
	batches [][]models.Profile
	failOn  int
}

func (b *batchIndexer) IndexProfiles(_ context.Context, ps []models.Profile) error {
	if b.failOn > 0 && len(b.batches)+1 == b.failOn {
		return errors.New("meili fora")
	}
	b.batches = append(b.batches, ps)
	return nil
}

func seeded(t *testing.T) *store.Memory {
	t.Helper()
	mem := store.NewMemory()
	require.NoError(t, mem.Upsert(context.Background(),
		models.Profile{UserID: 1, Permalink: "a", FollowersCount: 10},
		models.Profile{UserID: 2, Permalink: "b", FollowersCount: 5000},
		models.Profile{UserID: 3, Permalink: "c"},
	))
	return mem
}

func TestProfilesSendsInBatches(t *testing.T) {
	idx := &batchIndexer{}
	n, err := Profiles(context.Background(), seeded(t), idx, store.ProfileFilter{}, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, idx.batches, 2)
	assert.Len(t, idx.batches[0], 2)
	assert.Equal(t, int64(3), idx.batches[1][0].UserID)
}

func TestProfilesAppliesFilter(t *testing.T) {
	idx := &batchIndexer{}
	n, err := Profiles(context.Background(), seeded(t), idx, store.ProfileFilter{MaxFollowers: 100}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestProfilesStopsOnIndexError(t *testing.T) {
	idx := &batchIndexer{failOn: 2}
	n, err := Profiles(context.Background(), seeded(t), idx, store.ProfileFilter{}, 1)
	require.Error(t, err)
	assert.Equal(t, 1, n)
}
