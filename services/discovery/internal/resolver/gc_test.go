package resolver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepRemovesOnlyOldProfiles(t *testing.T) {
	base := t.TempDir()
	active := filepath.Join(base, profileDirPrefix+"active")
	orphan := filepath.Join(base, profileDirPrefix+"orphan")
	unrelated := filepath.Join(base, "other_folder")
	for _, d := range []string{active, orphan, unrelated} {
		require.NoError(t, os.Mkdir(d, 0o755))
	}

	now := time.Now()
	require.NoError(t, os.Chtimes(active, now.Add(-10*time.Minute), now.Add(-10*time.Minute)))
	require.NoError(t, os.Chtimes(orphan, now.Add(-2*time.Hour), now.Add(-2*time.Hour)))
	require.NoError(t, os.Chtimes(unrelated, now.Add(-2*time.Hour), now.Add(-2*time.Hour)))

	assert.Equal(t, 1, sweepOrphanProfiles(base, 90*time.Minute))

	assert.DirExists(t, active)
	assert.DirExists(t, unrelated)
	assert.NoDirExists(t, orphan)
}
