// Package config loads application configuration from environment variables.
// A .env file in the working directory, when present, is read first; real
// environment variables take precedence over it.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the core runtime settings.  Concern-specific settings live in
// CacheConfig, PoolConfig, RateLimitConfig and QueueConfig.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	DBUser string
	DBPass string
	DBHost string
	DBPort string
	DBName string

	JWTSecret string
	TokenTTL  time.Duration

	PasswordScheme string // "bcrypt" or "legacy"
	PasswordSalt   string // fixed salt of the legacy scheme
	BcryptCost     int
}

// LoadDotEnv reads .env (or the given files) into the process environment.
// A missing file is not an error.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Printf("config: could not read %s: %v", f, err)
		}
	}
}

// Load reads the core settings.  Missing required variables terminate the
// process.
func Load() Config {
	cfg := Config{
		Env:      envStr("APP_ENV", "dev"),
		Port:     envStr("APP_PORT", "8080"),
		LogLevel: envStr("LOG_LEVEL", "info"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: envStr("DB_HOST", "127.0.0.1"),
		DBPort: envStr("DB_PORT", "3306"),
		DBName: must("DB_NAME"),

		JWTSecret: must("JWT_SECRET"),
		TokenTTL:  envDur("TOKEN_TTL", 24*time.Hour),

		PasswordScheme: strings.ToLower(envStr("PASSWORD_SCHEME", "bcrypt")),
		PasswordSalt:   os.Getenv("PASSWORD_SALT"),
		BcryptCost:     envInt("BCRYPT_COST", 10),
	}
	if cfg.PasswordScheme == "legacy" && cfg.PasswordSalt == "" {
		log.Fatalf("PASSWORD_SALT is required when PASSWORD_SCHEME=legacy")
	}
	return cfg
}

// DSN builds the go-sql-driver/mysql data source name.
func (c Config) DSN() string {
	auth := c.DBUser
	if c.DBPass != "" {
		auth += ":" + c.DBPass
	}
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC&clientFoundRows=true",
		auth, c.DBHost, c.DBPort, c.DBName)
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
