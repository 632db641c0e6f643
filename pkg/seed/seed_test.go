package seed

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(yml, []byte("dj-b: 2\ndj-a: 1\n"), 0o644))
	js := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"dj-a": 1, "dj-b": 2}`), 0o644))

	for _, p := range []string{yml, js} {
		entries, err := Load(p)
		require.NoError(t, err)
		assert.Equal(t, []Entry{{"dj-a", 1}, {"dj-b", 2}}, entries)
	}
}

func TestParseRejectsInvalidIDs(t *testing.T) {
	_, err := Parse([]byte(`{"dj": 0}`))
	assert.Error(t, err)
	_, err = Parse([]byte(`not: [a, map`))
	assert.Error(t, err)
}

func TestSelect(t *testing.T) {
	entries := []Entry{{"a", 1}, {"b", 2}, {"c", 3}, {"d", 4}}
	r := rand.New(rand.NewPCG(1, 2))

	got := Select(entries, func(e Entry) bool { return e.UserID == 2 }, 2, r)
	require.Len(t, got, 2)
	for _, e := range got {
		assert.NotEqual(t, int64(2), e.UserID)
	}
	// entrada intacta
	assert.Equal(t, Entry{"a", 1}, entries[0])

	all := Select(entries, nil, 0, nil)
	assert.ElementsMatch(t, entries, all)
}
