package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	util "github.com/CodeAndHammer/wordly/internal/util"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	Port         string
	IsProduction bool
	LogLevel     string

	CookieMaxAge   time.Duration
	RateLimitRPS   int
	RateLimitBurst int
	RateLimiterTTL time.Duration
	SessionTTL     time.Duration
	RoomTTL        time.Duration
	ClientOrigins  []string

	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	WordsDatabaseDSN  string
	WordSourceTimeout time.Duration

	DictionaryURL     string
	DictionaryTimeout time.Duration
}

// Load reads .env (when present) and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:              envString("PORT", "8080"),
		IsProduction:      os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production",
		LogLevel:          envString("LOG_LEVEL", ""),
		CookieMaxAge:      env("COOKIE_MAX_AGE", 24*time.Hour),
		RateLimitRPS:      env("RATE_LIMIT_RPS", 10),
		RateLimitBurst:    env("RATE_LIMIT_BURST", 20),
		RateLimiterTTL:    env("RATE_LIMITER_TTL", 1*time.Hour),
		SessionTTL:        env("SESSION_TTL", 3*time.Hour),
		RoomTTL:           env("ROOM_TTL", 12*time.Hour),
		StoreBackend:      strings.ToLower(envString("STORE_BACKEND", StoreMemory)),
		RedisAddr:         envString("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           env("REDIS_DB", 0),
		WordsDatabaseDSN:  os.Getenv("WORDS_DATABASE_DSN"),
		WordSourceTimeout: env("WORD_SOURCE_TIMEOUT", 3*time.Second),
		DictionaryURL:     envString("DICTIONARY_URL", "https://api.dictionaryapi.dev/api/v2/entries/en"),
		DictionaryTimeout: env("DICTIONARY_TIMEOUT", 2*time.Second),
	}

	if origins := os.Getenv("CLIENT_ORIGIN"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.ClientOrigins = append(cfg.ClientOrigins, o)
			}
		}
	}

	if cfg.StoreBackend != StoreMemory && cfg.StoreBackend != StoreRedis {
		util.LogWarn("Unknown STORE_BACKEND %q, using %s", cfg.StoreBackend, StoreMemory)
		cfg.StoreBackend = StoreMemory
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 1
	}
	return cfg
}

func (c Config) Environment() string {
	if c.IsProduction {
		return "production"
	}
	return "development"
}

func envString(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// env parses key as a duration or an int. Unset or unparsable values fall
// back with a warning for the latter.
func env[T time.Duration | int](key string, fallback T) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	var (
		v   any
		err error
	)
	switch any(fallback).(type) {
	case time.Duration:
		v, err = time.ParseDuration(raw)
	default:
		v, err = strconv.Atoi(raw)
	}
	if err != nil {
		util.LogWarn("Ignoring %s=%q: %v", key, raw, err)
		return fallback
	}
	return v.(T)
}
