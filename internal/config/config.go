package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	SessionStorePostgres = "postgres"
	SessionStoreRedis    = "redis"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Auth     AuthConfig
	Session  SessionConfig
	Redis    RedisConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

type AuthConfig struct {
	JWTSecret     string
	JWTIssuer     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration
	AllowSignup   bool
}

type SessionConfig struct {
	Store         string
	StoreTimeout  time.Duration
	SweepInterval time.Duration
}

type RedisConfig struct {
	URL       string
	KeyPrefix string
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (Config, error) {
	var errs []error

	accessTTL, err := durationEnv("JWT_ACCESS_TTL", 15*time.Minute)
	errs = append(errs, err)
	refreshTTL, err := durationEnv("JWT_REFRESH_TTL", 7*24*time.Hour)
	errs = append(errs, err)
	storeTimeout, err := durationEnv("SESSION_STORE_TIMEOUT", 3*time.Second)
	errs = append(errs, err)
	sweepInterval, err := durationEnv("SESSION_SWEEP_INTERVAL", time.Hour)
	errs = append(errs, err)
	allowSignup, err := boolEnv("ALLOW_SIGNUP", true)
	errs = append(errs, err)

	cfg := Config{
		Server: ServerConfig{
			Port:           getenv("PORT", "5000"),
			Env:            getenv("APP_ENV", "development"),
			LogLevel:       getenv("LOG_LEVEL", "info"),
			AllowedOrigins: allowedOrigins(),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:     os.Getenv("JWT_SECRET"),
			JWTIssuer:     getenv("JWT_ISSUER", "my-notes"),
			JWTAccessTTL:  accessTTL,
			JWTRefreshTTL: refreshTTL,
			AllowSignup:   allowSignup,
		},
		Session: SessionConfig{
			Store:         strings.ToLower(getenv("SESSION_STORE", SessionStorePostgres)),
			StoreTimeout:  storeTimeout,
			SweepInterval: sweepInterval,
		},
		Redis: RedisConfig{
			URL:       getenv("REDIS_URL", "redis://localhost:6379/0"),
			KeyPrefix: getenv("REDIS_KEY_PREFIX", "notes"),
		},
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.JWTAccessTTL <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_TTL must be positive"))
	}
	if c.Auth.JWTRefreshTTL <= c.Auth.JWTAccessTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be longer than JWT_ACCESS_TTL"))
	}
	if c.Session.StoreTimeout <= 0 {
		errs = append(errs, errors.New("SESSION_STORE_TIMEOUT must be positive"))
	}
	switch c.Session.Store {
	case SessionStorePostgres, SessionStoreRedis:
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE must be %q or %q", SessionStorePostgres, SessionStoreRedis))
	}
	return errors.Join(errs...)
}

func (c ServerConfig) IsDevelopment() bool {
	return c.Env == "development"
}

func allowedOrigins() []string {
	origins := []string{getenv("FRONTEND_URL", "http://localhost:3000")}
	if extra := os.Getenv("CORS_ALLOWED_ORIGINS"); extra != "" {
		for _, origin := range strings.Split(extra, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	return origins
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
