package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	j, err := Decode([]byte(`{"user_id":42,"permalink":"dj"}`))
	require.NoError(t, err)
	assert.Equal(t, TrackJob{UserID: 42, Permalink: "dj"}, j)

	_, err = Decode([]byte(`{"permalink":"dj"}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{`))
	assert.Error(t, err)
}
