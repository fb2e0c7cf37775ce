package config

import (
	"os"
	"strconv"
	"time"
)

// Backend selects the attendance storage implementation.
type Backend string

const (
	BackendLocal  Backend = "local"  // embedded badger database
	BackendRemote Backend = "remote" // synchronized postgres store
	BackendMemory Backend = "memory" // in-process, for development
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr          string
	Backend       Backend
	BadgerDir     string
	PostgresDSN   string
	RedisURL      string
	JWTSigningKey string
	Timezone      string

	OfficeLatitude  float64
	OfficeLongitude float64
	OfficeRadiusM   float64

	PremiumFeatures bool
}

// RedisConfig groups the redis client tuning knobs.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables with defaults.
func FromEnv() Server {
	cfg := Server{
		Addr:            envOr("PUNCHD_ADDR", ":8080"),
		Backend:         Backend(envOr("PUNCHD_BACKEND", string(BackendLocal))),
		BadgerDir:       envOr("PUNCHD_BADGER_DIR", "data/attendance"),
		PostgresDSN:     os.Getenv("PUNCHD_POSTGRES_DSN"),
		RedisURL:        os.Getenv("PUNCHD_REDIS_URL"),
		JWTSigningKey:   envOr("PUNCHD_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Timezone:        os.Getenv("PUNCHD_TIMEZONE"),
		OfficeLatitude:  envFloat("PUNCHD_OFFICE_LAT", 41.311081),
		OfficeLongitude: envFloat("PUNCHD_OFFICE_LON", 69.240562),
		OfficeRadiusM:   envFloat("PUNCHD_OFFICE_RADIUS_M", 200),
		PremiumFeatures: os.Getenv("PUNCHD_PREMIUM") == "true",
	}
	return cfg
}

// Redis returns the redis client configuration with pool defaults.
func (s Server) Redis() RedisConfig {
	return RedisConfig{
		URL:          s.RedisURL,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Location resolves the configured time zone, falling back to the process
// local zone when unset or invalid.
func (s Server) Location() *time.Location {
	if s.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
