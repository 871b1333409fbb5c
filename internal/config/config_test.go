package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, 30, cfg.LoanPeriodDays)
	assert.Equal(t, 10*time.Minute, cfg.LateAfter)
	assert.Equal(t, time.Hour, cfg.OverdueScanEvery)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOAN_PERIOD_DAYS", "14")
	t.Setenv("LATE_AFTER", "5m")
	t.Setenv("HTTP_PORT", "9000")

	cfg := Load()

	assert.Equal(t, 14, cfg.LoanPeriodDays)
	assert.Equal(t, 5*time.Minute, cfg.LateAfter)
	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, 14*24*time.Hour, cfg.LoanPeriod())
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("LATE_AFTER", "soon")
	t.Setenv("RATE_LIMIT_PER_MIN", "lots")

	cfg := Load()

	assert.Equal(t, 10*time.Minute, cfg.LateAfter)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
}
