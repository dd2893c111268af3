package config

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-perfectly-fine-development-secret")
	t.Setenv("DB_PASSWORD", "postgres")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "courier", cfg.Auth.TokenIssuer)
	assert.Equal(t, "courier_session", cfg.Auth.CookieName)
	assert.False(t, cfg.Auth.CookieSecure)
	assert.Equal(t, 12, cfg.Security.BcryptCost)
	assert.Equal(t, 5, cfg.Security.MaxFailedLogins)
	assert.Equal(t, 2*time.Hour, cfg.Security.LockDuration)
	assert.Equal(t, 15*time.Minute, cfg.Security.RecoveryCodeTTL)
	assert.Len(t, cfg.Security.MFAEncryptionKey, 32)
	assert.Equal(t, "log", cfg.Email.Provider)
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MissingDBPassword(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-perfectly-fine-development-secret")
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ShortJWTSecretRejected(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ProductionRequiresStrongerSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "only-twenty-characters")
	t.Setenv("MFA_ENCRYPTION_KEY", hex.EncodeToString(make([]byte, 32)))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ProductionRequiresMFAKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "a-thirty-two-plus-character-secret!!")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MFAKeyValidation(t *testing.T) {
	setRequiredEnv(t)

	t.Setenv("MFA_ENCRYPTION_KEY", "not-hex")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("MFA_ENCRYPTION_KEY", "abcd")
	_, err = Load()
	assert.Error(t, err, "wrong length must be rejected")

	key := hex.EncodeToString(make([]byte, 32))
	t.Setenv("MFA_ENCRYPTION_KEY", key)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Len(t, cfg.Security.MFAEncryptionKey, 32)
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TOKEN_TTL", "24h")
	t.Setenv("MAX_FAILED_LOGINS", "3")
	t.Setenv("LOCK_DURATION", "30m")
	t.Setenv("PASSWORD_REQUIRE_SPECIAL", "true")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1, 10.0.0.2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 3, cfg.Security.MaxFailedLogins)
	assert.Equal(t, 30*time.Minute, cfg.Security.LockDuration)
	assert.True(t, cfg.Security.PasswordRequireSpecial)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Server.TrustedProxies)
}

func TestLoad_InvalidEmailProvider(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("EMAIL_PROVIDER", "carrier-pigeon")

	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "postgres",
		Password: "secret", Name: "courier", SSLMode: "disable",
	}
	assert.Equal(t, "host=localhost port=5432 user=postgres password=secret dbname=courier sslmode=disable", cfg.DSN())
}
