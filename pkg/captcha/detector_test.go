package captcha

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsChallengeURL(t *testing.T) {
	assert.True(t, IsChallengeURL("https://geo.captcha-delivery.com/captcha/?initialCid=x"))
	assert.True(t, IsChallengeURL("https://soundcloud.com/Challenge?r=1"))
	assert.False(t, IsChallengeURL("https://soundcloud.com/some-artist"))
	assert.False(t, IsChallengeURL(""))
}
