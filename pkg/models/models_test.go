package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngagerSetKeepsFirstOccurrence(t *testing.T) {
	set := NewEngagerSet(Reposters, 10, []int64{3, 1, 3, 2, 1})
	assert.Equal(t, []int64{3, 1, 2}, set.UserIDs)
	assert.Equal(t, KindReposters, set.RecordKind())
	assert.Equal(t, KindLikers, NewEngagerSet(Likers, 10, nil).RecordKind())
}

func TestParseEngagementKinds(t *testing.T) {
	kinds, err := ParseEngagementKinds([]string{"Reposters", " comments "})
	require.NoError(t, err)
	assert.Equal(t, []EngagementKind{Reposters, Comments}, kinds)

	_, err = ParseEngagementKinds([]string{"plays"})
	assert.Error(t, err)
}

func TestToggleKey(t *testing.T) {
	assert.Equal(t, "42", EnumeratedToggle(42).Key())
	assert.Equal(t, "dj", ProcessedToggle("dj", 3, 1).Key())
	assert.False(t, ProfileURL{Permalink: "dj"}.Processed())
	assert.True(t, ProfileURL{Permalink: "dj", CrawledAt: 1}.Processed())
}
