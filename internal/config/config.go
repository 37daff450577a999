package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries all service settings, sourced from the environment. The JWT
// secret has no default on purpose: it must come from the deployment.
type Config struct {
	HTTPAddr   string
	PGDSN      string
	AuthSecret string
	Issuer     string

	UserTokenTTL   time.Duration
	EntityTokenTTL time.Duration
	RefreshTTL     time.Duration

	RateLimit       int
	RateLimitWindow time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	CORSOrigins  []string
	MaxBodyBytes int64
}

// Load reads configuration from ENLACE_* environment variables.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:        getenv("ENLACE_HTTP_ADDR", ":8080"),
		PGDSN:           os.Getenv("ENLACE_PG_DSN"),
		AuthSecret:      os.Getenv("ENLACE_AUTH_SECRET"),
		Issuer:          getenv("ENLACE_ISSUER", "enlace"),
		UserTokenTTL:    getduration("ENLACE_USER_TOKEN_TTL", 15*time.Minute),
		EntityTokenTTL:  getduration("ENLACE_ENTITY_TOKEN_TTL", 24*time.Hour),
		RefreshTTL:      getduration("ENLACE_REFRESH_TTL", 7*24*time.Hour),
		RateLimit:       getint("ENLACE_RATE_LIMIT", 100),
		RateLimitWindow: getduration("ENLACE_RATE_WINDOW", 15*time.Minute),
		RedisAddr:       os.Getenv("ENLACE_REDIS_ADDR"),
		RedisPassword:   os.Getenv("ENLACE_REDIS_PASSWORD"),
		RedisDB:         getint("ENLACE_REDIS_DB", 0),
		MaxBodyBytes:    int64(getint("ENLACE_MAX_BODY_BYTES", 1<<20)),
	}
	if origins := strings.TrimSpace(os.Getenv("ENLACE_CORS_ORIGINS")); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}
	if strings.TrimSpace(cfg.AuthSecret) == "" {
		return Config{}, errors.New("config: ENLACE_AUTH_SECRET is required")
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getduration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
