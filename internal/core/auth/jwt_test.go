package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJWTer() *JWTer {
	return &JWTer{Secret: []byte("test-secret"), Issuer: "ethio-home", TTL: time.Hour}
}

func TestIssueAndParse(t *testing.T) {
	j := newJWTer()
	tok, err := j.Issue("u1", "seller")
	require.NoError(t, err)

	c, err := j.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UID)
	assert.Equal(t, "seller", c.Role)
	assert.NotEmpty(t, c.ID)
	assert.WithinDuration(t, time.Now(), c.IssuedTime(), 2*time.Second)
	assert.InDelta(t, time.Hour.Seconds(), c.Remaining(time.Now()).Seconds(), 5)
}

func TestParseRejectsExpired(t *testing.T) {
	j := newJWTer()
	j.Clock = func() time.Time { return time.Now().Add(-3 * time.Hour) }
	tok, err := j.Issue("u1", "buyer")
	require.NoError(t, err)

	_, err = newJWTer().Parse(tok)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseRejectsWrongSecretAndIssuer(t *testing.T) {
	tok, err := newJWTer().Issue("u1", "buyer")
	require.NoError(t, err)

	other := newJWTer()
	other.Secret = []byte("another")
	_, err = other.Parse(tok)
	assert.Error(t, err)

	other = newJWTer()
	other.Issuer = "someone-else"
	_, err = other.Parse(tok)
	assert.Error(t, err)
}

func TestParseRejectsNoneAlg(t *testing.T) {
	claims := Claims{UID: "u1", Role: "admin", RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "ethio-home",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newJWTer().Parse(tok)
	assert.Error(t, err)
}
