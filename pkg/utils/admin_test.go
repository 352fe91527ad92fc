package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAdmin(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)

	assert.True(t, IsAdmin("admin", "s3cret-pass", "admin", hash))
	assert.False(t, IsAdmin("admin", "wrong", "admin", hash))
	assert.False(t, IsAdmin("root", "s3cret-pass", "admin", hash))
	assert.False(t, IsAdmin("admin", "s3cret-pass", "admin", ""))
}
