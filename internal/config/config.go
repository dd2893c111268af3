package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Security SecurityConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret       string
	TokenTTL        time.Duration
	TokenIssuer     string
	TokenAudience   string
	CookieName      string
	CookieDomain    string
	CookieSecure    bool
	CleanupInterval time.Duration
}

type SecurityConfig struct {
	BcryptCost             int
	PasswordMinLength      int
	PasswordRequireUpper   bool
	PasswordRequireDigit   bool
	PasswordRequireSpecial bool
	MaxFailedLogins        int
	LockDuration           time.Duration
	RecoveryCodeTTL        time.Duration
	MFAEncryptionKey       []byte
	MFAIssuer              string
	TimingDelayBaseMs      int
	TimingDelayRandomMs    int
}

type EmailConfig struct {
	Provider    string
	AWSRegion   string
	FromAddress string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	mfaKey, err := parseMFAKey(getEnv("MFA_ENCRYPTION_KEY", ""), env)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "courier"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: getEnvAsSlice("TRUSTED_PROXIES", nil),
		},
		Auth: AuthConfig{
			JWTSecret:       jwtSecret,
			TokenTTL:        getEnvAsDuration("TOKEN_TTL", 7*24*time.Hour),
			TokenIssuer:     getEnv("TOKEN_ISSUER", "courier"),
			TokenAudience:   getEnv("TOKEN_AUDIENCE", "courier-clients"),
			CookieName:      getEnv("SESSION_COOKIE_NAME", "courier_session"),
			CookieDomain:    getEnv("SESSION_COOKIE_DOMAIN", ""),
			CookieSecure:    env == "production",
			CleanupInterval: getEnvAsDuration("CLEANUP_INTERVAL", 15*time.Minute),
		},
		Security: SecurityConfig{
			BcryptCost:             getEnvAsInt("BCRYPT_COST", 12),
			PasswordMinLength:      getEnvAsInt("PASSWORD_MIN_LENGTH", 8),
			PasswordRequireUpper:   getEnvAsBool("PASSWORD_REQUIRE_UPPER", true),
			PasswordRequireDigit:   getEnvAsBool("PASSWORD_REQUIRE_DIGIT", true),
			PasswordRequireSpecial: getEnvAsBool("PASSWORD_REQUIRE_SPECIAL", false),
			MaxFailedLogins:        getEnvAsInt("MAX_FAILED_LOGINS", 5),
			LockDuration:           getEnvAsDuration("LOCK_DURATION", 2*time.Hour),
			RecoveryCodeTTL:        getEnvAsDuration("RECOVERY_CODE_TTL", 15*time.Minute),
			MFAEncryptionKey:       mfaKey,
			MFAIssuer:              getEnv("MFA_ISSUER", "Courier"),
			TimingDelayBaseMs:      getEnvAsInt("TIMING_DELAY_BASE_MS", 100),
			TimingDelayRandomMs:    getEnvAsInt("TIMING_DELAY_RANDOM_MS", 100),
		},
		Email: EmailConfig{
			Provider:    getEnv("EMAIL_PROVIDER", "log"),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "no-reply@courierchat.dev"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if cfg.Email.Provider != "log" && cfg.Email.Provider != "ses" {
		return nil, fmt.Errorf("EMAIL_PROVIDER must be 'log' or 'ses', got %q", cfg.Email.Provider)
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum strength for the signing secret.
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

// parseMFAKey decodes the hex-encoded AES-256 key that protects stored
// authenticator secrets. A development fallback is derived when unset so
// local runs do not need one; production must provide a real key.
func parseMFAKey(hexKey, env string) ([]byte, error) {
	if hexKey == "" {
		if env == "production" {
			return nil, fmt.Errorf("MFA_ENCRYPTION_KEY is required in production")
		}
		return []byte("courier-dev-only-mfa-key-32bytes"), nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("MFA_ENCRYPTION_KEY must be hex encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("MFA_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{}
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	return []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
