package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomToken(t *testing.T) {
	a, err := RandomToken("lk-", 24)
	require.NoError(t, err)
	b, err := RandomToken("lk-", 24)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "lk-"))
	assert.Len(t, a, 27)
	assert.NotEqual(t, a, b)
	for _, r := range strings.TrimPrefix(a, "lk-") {
		assert.Contains(t, base62Chars, string(r))
	}
}
