package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loviiin/soundgraph/pkg/models"
)

func TestMemoryIgnoresConflicts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Upsert(ctx,
		models.Profile{UserID: 1, Permalink: "a", Username: "first"},
		models.Profile{UserID: 1, Permalink: "a", Username: "second"},
		models.Profile{UserID: 2, Permalink: "a"},
		models.Track{TrackID: 9, Title: "v1"},
		models.Track{TrackID: 9, Title: "v2"},
	))

	profiles, err := m.ListProfiles(ctx, ProfileFilter{})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "first", profiles[0].Username)

	tr, ok := m.Track(9)
	require.True(t, ok)
	assert.Equal(t, "v1", tr.Title)
}

func TestMemoryProcessedToggleIsOneShot(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Upsert(ctx, models.ProfileURL{Permalink: "dj"}))

	require.NoError(t, m.ApplyToggle(ctx, models.ProcessedToggle("dj", 12, 1000)))
	require.NoError(t, m.ApplyToggle(ctx, models.ProcessedToggle("dj", 3, 2000)))

	c, ok := m.Candidate("dj")
	require.True(t, ok)
	assert.Equal(t, 12, c.ProfilesDiscovered)
	assert.Equal(t, int64(1000), c.CrawledAt)

	pending, err := m.ListCandidates(ctx, CandidateFilter{UnprocessedOnly: true})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMemoryFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Commit(ctx, []models.Record{
		models.Profile{UserID: 3, Permalink: "c", CrawledAt: 5, FollowersCount: 10},
		models.Profile{UserID: 1, Permalink: "a", CrawledAt: 9, FollowersCount: 900},
		models.Profile{UserID: 2, Permalink: "b", CrawledAt: 1},
		models.ProfileURL{Permalink: "a"},
		models.ProfileURL{Permalink: "z"},
	}, []models.Toggle{models.EnumeratedToggle(2)}))

	got, err := m.ListProfiles(ctx, ProfileFilter{ContentEnumerated: Bool(false), OrderByCrawled: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].UserID)
	assert.Equal(t, int64(1), got[1].UserID)

	got, err = m.ListProfiles(ctx, ProfileFilter{MaxFollowers: 100, Permalinks: []string{"a", "c"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].Permalink)

	cands, err := m.ListCandidates(ctx, CandidateFilter{UnprocessedOnly: true, HasProfile: Bool(false)})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "z", cands[0].Permalink)

	small, err := m.ListCandidates(ctx, CandidateFilter{UnprocessedOnly: true, HasProfile: Bool(true), MaxFollowers: 100})
	require.NoError(t, err)
	assert.Empty(t, small)

	big, err := m.ListCandidates(ctx, CandidateFilter{UnprocessedOnly: true, HasProfile: Bool(true), MaxFollowers: 1000})
	require.NoError(t, err)
	require.Len(t, big, 1)
	assert.Equal(t, "a", big[0].Permalink)

	ids, err := m.ListExistingContentIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCommitFallbackOrdersTogglesLast(t *testing.T) {
	rec := &recordingStore{}
	err := Commit(context.Background(), rec,
		[]models.Record{models.Track{TrackID: 1}},
		[]models.Toggle{models.EnumeratedToggle(7)})
	require.NoError(t, err)
	assert.Equal(t, []string{"upsert", "toggle"}, rec.calls)
}

type recordingStore struct {
	Store
	calls []string
}

func (r *recordingStore) Upsert(context.Context, ...models.Record) error {
	r.calls = append(r.calls, "upsert")
	return nil
}

func (r *recordingStore) ApplyToggle(context.Context, models.Toggle) error {
	r.calls = append(r.calls, "toggle")
	return nil
}

func TestToggleSQLNeverRemarks(t *testing.T) {
	q, args, err := toggleSQL(models.ProcessedToggle("dj", 4, 99))
	require.NoError(t, err)
	assert.Contains(t, q, "dt_crawled = 0")
	assert.Equal(t, []any{"dj", 4, int64(99)}, args)

	_, _, err = toggleSQL(models.Toggle{Kind: "x"})
	assert.Error(t, err)
}

func TestInsertSQLIgnoresConflicts(t *testing.T) {
	for _, r := range []models.Record{
		models.Profile{UserID: 1},
		models.ProfileURL{Permalink: "a"},
		models.Track{TrackID: 1},
		models.Comment{CommentID: 1},
		models.NewEngagerSet(models.Reposters, 1, []int64{2}),
		models.NewEngagerSet(models.Likers, 1, []int64{2}),
	} {
		q, _, err := insertSQL(r)
		require.NoError(t, err)
		assert.True(t, strings.Contains(q, "ON CONFLICT DO NOTHING"), r.RecordKind())
	}
}
