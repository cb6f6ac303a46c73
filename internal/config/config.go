// Package config reads the tracker settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chepyr/go-task-tracker/internal/auth"
	"github.com/chepyr/go-task-tracker/internal/db"
	"github.com/joho/godotenv"
)

const minSecretLength = 32

type Config struct {
	DBDriver   string
	SQLitePath string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string

	ServerPort      string
	JWTSecret       string
	SessionTTL      time.Duration
	PasswordHasher  string
	LoginRateLimit  int
	LoginRateWindow time.Duration
}

// Load reads .env when the file exists, then the process environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("error loading %s file: %w", envFile, err)
		}
		log.Printf("Loaded environment from %s", envFile)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv and validates it. Unparsable values
// are reported and replaced by their defaults before validation.
func FromEnv(getenv func(string) string) (*Config, error) {
	var problems []error

	cfg := &Config{
		DBDriver:         withDefault(getenv("DB_DRIVER"), db.DriverSQLite),
		SQLitePath:       withDefault(getenv("SQLITE_PATH"), "tasks.db"),
		PostgresUser:     getenv("POSTGRES_USER"),
		PostgresPassword: getenv("POSTGRES_PASSWORD"),
		PostgresDB:       getenv("POSTGRES_DB"),
		PostgresHost:     getenv("POSTGRES_HOST"),
		PostgresPort:     getenv("POSTGRES_PORT"),
		ServerPort:       withDefault(getenv("SERVER_PORT"), "8080"),
		JWTSecret:        getenv("JWT_SECRET"),
		PasswordHasher:   withDefault(getenv("PASSWORD_HASHER"), auth.HasherBcrypt),
	}

	var err error
	if cfg.SessionTTL, err = parseDuration(getenv, "SESSION_TTL", 24*time.Hour); err != nil {
		problems = append(problems, err)
	}
	if cfg.LoginRateWindow, err = parseDuration(getenv, "LOGIN_RATE_WINDOW", 15*time.Minute); err != nil {
		problems = append(problems, err)
	}
	if cfg.LoginRateLimit, err = parseInt(getenv, "LOGIN_RATE_LIMIT", 5); err != nil {
		problems = append(problems, err)
	}

	if err := cfg.Validate(); err != nil {
		problems = append(problems, err)
	}
	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []error

	switch c.DBDriver {
	case db.DriverSQLite:
		if c.SQLitePath == "" {
			problems = append(problems, errors.New("SQLITE_PATH must be set"))
		}
	case db.DriverPostgres:
		required := []struct{ name, value string }{
			{"POSTGRES_USER", c.PostgresUser},
			{"POSTGRES_PASSWORD", c.PostgresPassword},
			{"POSTGRES_DB", c.PostgresDB},
			{"POSTGRES_HOST", c.PostgresHost},
			{"POSTGRES_PORT", c.PostgresPort},
		}
		for _, env := range required {
			if env.value == "" {
				problems = append(problems, fmt.Errorf("environment variable %s must be set", env.name))
			}
		}
	default:
		problems = append(problems, fmt.Errorf("DB_DRIVER %q is not supported", c.DBDriver))
	}

	if c.JWTSecret == "" {
		problems = append(problems, errors.New("environment variable JWT_SECRET must be set"))
	} else if len(c.JWTSecret) < minSecretLength {
		problems = append(problems, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength))
	}
	if c.ServerPort == "" {
		problems = append(problems, errors.New("SERVER_PORT must be set"))
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, errors.New("SESSION_TTL must be positive"))
	}
	if c.LoginRateLimit <= 0 {
		problems = append(problems, errors.New("LOGIN_RATE_LIMIT must be positive"))
	}
	if c.LoginRateWindow <= 0 {
		problems = append(problems, errors.New("LOGIN_RATE_WINDOW must be positive"))
	}
	if _, err := auth.NewHasher(c.PasswordHasher); err != nil {
		problems = append(problems, err)
	}

	return errors.Join(problems...)
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == db.DriverPostgres {
		return db.PostgresDSN(c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB)
	}
	return db.SQLiteDSN(c.SQLitePath)
}

func withDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func parseDuration(getenv func(string) string, name string, fallback time.Duration) (time.Duration, error) {
	raw := getenv(name)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func parseInt(getenv func(string) string, name string, fallback int) (int, error) {
	raw := getenv(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}
