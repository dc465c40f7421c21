package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
jwt:
  secret: s3cret
auth:
  emailVerificationKey: 0123456789abcdef
subscription:
  plans:
    basic:
      price: "500"
      days: 30
`

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeFile(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.App.HTTP.Port)
	assert.Equal(t, "postgres", c.DB.Driver)
	assert.Equal(t, "jwt", c.JWT.CookieName)
	assert.Equal(t, "https://api.chapa.co", c.Chapa.BaseURL)
	assert.Equal(t, 15, c.Chapa.TimeoutSec)
	assert.Equal(t, 60, c.Auth.ResetTokenTTLMin)
	assert.Equal(t, 10.0, c.RateLimit.PerIP.RPS)
	assert.Equal(t, "500", c.Subscription.Plans["basic"].Price)
	assert.Equal(t, 30, c.Subscription.Plans["basic"].Days)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("APP_DB_DRIVER", "sqlite")
	t.Setenv("APP_CHAPA_CURRENCY", "USD")

	c, err := Load(writeFile(t, minimal))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.DB.Driver)
	assert.Equal(t, "USD", c.Chapa.Currency)
}

func TestValidateRejectsMissingSecrets(t *testing.T) {
	_, err := Load(writeFile(t, "auth:\n  emailVerificationKey: 0123456789abcdef\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")

	_, err = Load(writeFile(t, "jwt:\n  secret: x\nauth:\n  emailVerificationKey: short\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "emailVerificationKey")
}

func TestValidateRejectsBadPlans(t *testing.T) {
	base := "jwt:\n  secret: x\nauth:\n  emailVerificationKey: 0123456789abcdef\nsubscription:\n  plans:\n"

	_, err := Load(writeFile(t, base+"    premium-plus:\n      price: \"900\"\n      days: 30\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "premium-plus")

	_, err = Load(writeFile(t, base+"    gold:\n      price: \"900\"\n      days: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "days must be positive")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
