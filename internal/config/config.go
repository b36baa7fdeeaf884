package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/learnlog/internal/auth"
	pkgauth "github.com/BradenHooton/learnlog/pkg/auth"
	"github.com/joho/godotenv"
)

// Config is built once at startup and never mutated afterwards
type Config struct {
	Database      DatabaseConfig
	Server        ServerConfig
	Auth          AuthConfig
	Throttle      ThrottleConfig
	Observability ObservabilityConfig
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
	QueryTimeout      time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	TokenSecret        string
	TokenAlgorithm     string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	SaltRounds         int
	AllowRegistration  bool
	FailureDelay       time.Duration
	FailureJitter      time.Duration
	AdminEmail         string
	AdminPassword      string
}

type ThrottleConfig struct {
	AllowedAttempts int
	BlockDuration   time.Duration
	Retention       time.Duration
	CleanupInterval time.Duration
}

type ObservabilityConfig struct {
	LogLevel  string
	SentryDSN string
}

// requiredKeys must be present in the environment (or .env)
var requiredKeys = []string{
	"TOKEN_SECRET",
	"TOKEN_ALGORITHM",
	"TOKEN_EXPIRES_IN",
	"REFRESH_TOKEN_EXPIRES_IN",
	"SALT_ROUNDS",
	"ALLOWED_LOGIN_ATTEMPTS",
	"LOGIN_BLOCK_DURATION",
	"DB_PASSWORD",
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var missing []string
	for _, key := range requiredKeys {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	env := getEnv("ENV", "development")

	accessTTL, err := requireTTL("TOKEN_EXPIRES_IN")
	if err != nil {
		return nil, err
	}
	refreshTTL, err := requireTTL("REFRESH_TOKEN_EXPIRES_IN")
	if err != nil {
		return nil, err
	}
	blockDuration, err := requireTTL("LOGIN_BLOCK_DURATION")
	if err != nil {
		return nil, err
	}
	saltRounds, err := requireInt("SALT_ROUNDS")
	if err != nil {
		return nil, err
	}
	allowedAttempts, err := requireInt("ALLOWED_LOGIN_ATTEMPTS")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          os.Getenv("DB_PASSWORD"),
			Name:              getEnv("DB_NAME", "learnlog"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			QueryTimeout:      getEnvAsDuration("DB_QUERY_TIMEOUT", 5*time.Second),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			TokenSecret:        os.Getenv("TOKEN_SECRET"),
			TokenAlgorithm:     strings.ToUpper(strings.TrimSpace(os.Getenv("TOKEN_ALGORITHM"))),
			AccessTokenExpiry:  accessTTL,
			RefreshTokenExpiry: refreshTTL,
			SaltRounds:         saltRounds,
			AllowRegistration:  getEnvAsBool("ALLOW_REGISTRATION", true),
			FailureDelay:       time.Duration(getEnvAsInt("LOGIN_FAILURE_DELAY_MS", 0)) * time.Millisecond,
			FailureJitter:      time.Duration(getEnvAsInt("LOGIN_FAILURE_JITTER_MS", 0)) * time.Millisecond,
			AdminEmail:         getEnv("ADMIN_EMAIL", ""),
			AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
		},
		Throttle: ThrottleConfig{
			AllowedAttempts: allowedAttempts,
			BlockDuration:   blockDuration,
			Retention:       getEnvAsTTL("LOGIN_ATTEMPT_RETENTION", 30*24*time.Hour),
			CleanupInterval: getEnvAsTTL("CLEANUP_INTERVAL", 1*time.Hour),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			SentryDSN: getEnv("SENTRY_DSN", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if err := validateTokenSecret(c.Auth.TokenSecret, c.Server.Env); err != nil {
		return err
	}
	if _, err := auth.ParseAlgorithm(c.Auth.TokenAlgorithm); err != nil {
		return fmt.Errorf("TOKEN_ALGORITHM: %w", err)
	}
	if err := pkgauth.ValidateHashCost(c.Auth.SaltRounds); err != nil {
		return fmt.Errorf("SALT_ROUNDS: %w", err)
	}
	if c.Throttle.AllowedAttempts < 1 {
		return errors.New("ALLOWED_LOGIN_ATTEMPTS must be at least 1")
	}
	if c.Auth.FailureDelay < 0 || c.Auth.FailureJitter < 0 {
		return errors.New("LOGIN_FAILURE_DELAY_MS and LOGIN_FAILURE_JITTER_MS must not be negative")
	}
	if c.Throttle.Retention < c.Throttle.BlockDuration {
		return errors.New("LOGIN_ATTEMPT_RETENTION must not be shorter than LOGIN_BLOCK_DURATION")
	}
	if (c.Auth.AdminEmail == "") != (c.Auth.AdminPassword == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

// validateTokenSecret enforces minimum security standards for the signing secret
func validateTokenSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("TOKEN_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("TOKEN_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// ParseTTL accepts Go durations ("15m"), a day suffix ("7d") or bare seconds ("900")
func ParseTTL(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("empty duration")
	}

	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q", value)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return time.ParseDuration(value)
}

func requireTTL(key string) (time.Duration, error) {
	d, err := ParseTTL(os.Getenv(key))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func requireInt(key string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
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

func getEnvAsTTL(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := ParseTTL(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	items := strings.Split(s, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if origin := getEnv("CORS_ORIGIN", ""); origin != "" {
		return splitList(origin)
	}

	if env == "production" {
		return splitList(getEnv("ALLOWED_ORIGINS", ""))
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
