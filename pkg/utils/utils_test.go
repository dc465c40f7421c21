package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordRoundTrip(t *testing.T) {
	PasswordCost = bcrypt.MinCost
	h, err := HashPassword("pass1234")
	require.NoError(t, err)
	assert.True(t, CheckPassword("pass1234", h))
	assert.False(t, CheckPassword("wrong", h))
}

func TestNewIDShape(t *testing.T) {
	a, b := NewID(), NewID()
	assert.Len(t, a, 32)
	assert.NotContains(t, a, "-")
	assert.NotEqual(t, a, b)
}

func TestTokenHashIsStable(t *testing.T) {
	raw, err := NewRawToken(32)
	require.NoError(t, err)
	assert.Len(t, raw, 64)
	assert.Equal(t, HashToken(raw), HashToken(raw))
	assert.NotEqual(t, raw, HashToken(raw))
	assert.Len(t, HashToken(raw), 64)
}
