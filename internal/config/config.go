// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds process settings read from the environment.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// DatabaseURL is empty when no Postgres is configured; binaries fall back
	// to the in-memory store.
	DatabaseURL string

	RedisAddr string
	RedisDB   int

	BotToken     string
	BotPublicKey string
	BotAppID     string

	PublicBaseURL   string
	TaskSigningSeed string
	TaskQueueKey    string
	TaskPollEvery   time.Duration

	LobbyExpiry    time.Duration
	StaleLobbyAge  time.Duration
	IslandCacheTTL time.Duration
	NiftyAPIBase   string

	BotConfigFile string
}

// Load reads Config from the environment, applying defaults.
func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "dev"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DatabaseURL:     databaseURL(),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		BotToken:        os.Getenv("BOT_TOKEN"),
		BotPublicKey:    os.Getenv("BOT_PUBLIC_KEY"),
		BotAppID:        os.Getenv("BOT_APP_ID"),
		PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		TaskSigningSeed: os.Getenv("TASK_SIGNING_SEED"),
		TaskQueueKey:    getEnv("TASK_QUEUE_KEY", "lobbybot:tasks"),
		TaskPollEvery:   time.Duration(getEnvInt("TASK_POLL_MS", 1000)) * time.Millisecond,
		LobbyExpiry:     time.Duration(getEnvInt("LOBBY_EXPIRY", 1200)) * time.Second,
		StaleLobbyAge:   time.Duration(getEnvInt("STALE_LOBBY_AGE", 3600)) * time.Second,
		IslandCacheTTL:  time.Duration(getEnvInt("ISLAND_CACHE_TTL", 3600)) * time.Second,
		NiftyAPIBase:    getEnv("NIFTY_API_BASE", "https://api.niftyisland.com"),
		BotConfigFile:   getEnv("BOT_CONFIG_FILE", "bot.yaml"),
	}
}

// Validate checks the settings every binary needs to talk to the chat API.
func (c *Config) Validate() error {
	var missing []string
	if c.BotToken == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if c.BotAppID == "" {
		missing = append(missing, "BOT_APP_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment: %s", strings.Join(missing, ", "))
	}
	return nil
}

// databaseURL prefers DATABASE_URL, then builds one from the PG_* variables.
func databaseURL() string {
	if u := os.Getenv("DATABASE_URL"); u != "" {
		return u
	}
	host := os.Getenv("PG_HOST")
	if host == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		host,
		getEnv("PG_PORT", "5432"),
		os.Getenv("PG_DATABASE"),
	)
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
