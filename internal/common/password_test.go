// File: internal/common/password_test.go
package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordAndCheck(t *testing.T) {
	hash, err := HashPassword("secret-pass", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "secret-pass", hash)

	assert.True(t, CheckPasswordHash("secret-pass", hash))
	assert.False(t, CheckPasswordHash("wrong-pass", hash))
	assert.False(t, CheckPasswordHash("", hash))
}

func TestHashPasswordProducesDistinctHashes(t *testing.T) {
	first, err := HashPassword("secret-pass", bcrypt.MinCost)
	require.NoError(t, err)
	second, err := HashPassword("secret-pass", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "bcrypt salts every hash")
}

func TestHashPasswordClampsInvalidCost(t *testing.T) {
	hash, err := HashPassword("secret-pass", 99)
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("secret-pass", hash))

	hash, err = HashPassword("secret-pass", 0)
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("secret-pass", hash))
}
