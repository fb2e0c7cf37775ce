package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := FromEnv()
		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, BackendLocal, cfg.Backend)
		assert.Equal(t, "data/attendance", cfg.BadgerDir)
		assert.InDelta(t, 41.311081, cfg.OfficeLatitude, 1e-9)
		assert.InDelta(t, 69.240562, cfg.OfficeLongitude, 1e-9)
		assert.InDelta(t, 200, cfg.OfficeRadiusM, 1e-9)
		assert.False(t, cfg.PremiumFeatures)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("PUNCHD_ADDR", ":9090")
		t.Setenv("PUNCHD_BACKEND", "remote")
		t.Setenv("PUNCHD_POSTGRES_DSN", "postgres://localhost/punchd")
		t.Setenv("PUNCHD_OFFICE_RADIUS_M", "350")
		t.Setenv("PUNCHD_PREMIUM", "true")

		cfg := FromEnv()
		assert.Equal(t, ":9090", cfg.Addr)
		assert.Equal(t, BackendRemote, cfg.Backend)
		assert.Equal(t, "postgres://localhost/punchd", cfg.PostgresDSN)
		assert.InDelta(t, 350, cfg.OfficeRadiusM, 1e-9)
		assert.True(t, cfg.PremiumFeatures)
	})

	t.Run("unparseable float keeps the default", func(t *testing.T) {
		t.Setenv("PUNCHD_OFFICE_RADIUS_M", "not-a-number")
		cfg := FromEnv()
		assert.InDelta(t, 200, cfg.OfficeRadiusM, 1e-9)
	})
}

func TestLocation(t *testing.T) {
	assert.Equal(t, time.Local, Server{}.Location())
	assert.Equal(t, time.Local, Server{Timezone: "Not/AZone"}.Location())

	loc := Server{Timezone: "Asia/Tashkent"}.Location()
	assert.Equal(t, "Asia/Tashkent", loc.String())
}
