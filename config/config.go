package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"naskah/pkg/logger"
)

// Config holds the server settings read from the environment.
type Config struct {
	DatabaseURL string
	ListenAddr  string
	JWTSecret   string
	LogLevel    string
	CORSOrigin  string
}

// Load reads a .env file when present and then the process environment.
// DATABASE_URL wins over the split user/password/host/port/dbname variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	cfg := &Config{
		DatabaseURL: env("DATABASE_URL", ""),
		ListenAddr:  env("LISTEN_ADDR", ":3001"),
		JWTSecret:   env("JWT_SECRET", ""),
		LogLevel:    env("LOG_LEVEL", "info"),
		CORSOrigin:  env("CORS_ORIGIN", "*"),
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = connStringFromParts(
			env("user", ""), env("password", ""), env("host", "localhost"), env("port", "5432"), env("dbname", "naskah"), env("sslmode", "disable"),
		)
	}
	return cfg
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable not set")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("no database configured")
	}
	return nil
}

func connStringFromParts(user, password, host, port, dbname, sslmode string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     host + ":" + port,
		Path:     "/" + dbname,
		RawQuery: "sslmode=" + sslmode,
	}
	return u.String()
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
