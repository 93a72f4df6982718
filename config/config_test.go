package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rental-engine/calendar"
	"github.com/warp/rental-engine/rental"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"RENTAL_TIMEZONE", "RENTAL_CURRENCY", "RENTAL_WEEKEND", "DB_DRIVER", "KAFKA_BROKERS", "RENTAL_STRICT_TRANSITIONS", "DEMO_SCENARIOS", "STATS_INTERVAL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddress)
	assert.Equal(t, "Asia/Riyadh", cfg.Location.String())
	assert.Equal(t, rental.CurrencySAR, cfg.Currency)
	assert.Equal(t, calendar.GulfWeekend, cfg.Weekend)
	assert.True(t, cfg.StrictTransitions)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.DemoScenarios)
	assert.Equal(t, time.Minute, cfg.StatsInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RENTAL_TIMEZONE", "UTC")
	t.Setenv("RENTAL_CURRENCY", "aed")
	t.Setenv("RENTAL_WEEKEND", "sat, sun")
	t.Setenv("RENTAL_STRICT_TRANSITIONS", "false")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("LOCK_TTL", "3s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, rental.Currency("AED"), cfg.Currency)
	assert.True(t, cfg.Weekend.Contains(time.Sunday))
	assert.False(t, cfg.Weekend.Contains(time.Friday))
	assert.False(t, cfg.StrictTransitions)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3*time.Second, cfg.LockTTL)

	bc := cfg.Booking()
	assert.Equal(t, cfg.Weekend, bc.Pricing.Weekend)
	assert.False(t, bc.StrictTransitions)
	assert.Equal(t, time.UTC, cfg.Performance().Location)
}

func TestLoad_Rejects(t *testing.T) {
	t.Setenv("RENTAL_WEEKEND", "funday")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("RENTAL_WEEKEND", "")
	t.Setenv("DB_DRIVER", "oracle")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("DB_DRIVER", "")
	t.Setenv("RENTAL_TIMEZONE", "Mars/Olympus")
	_, err = Load()
	assert.Error(t, err)
}

func TestParseWeekend_NamesAndAbbreviations(t *testing.T) {
	w, err := ParseWeekend("Friday, sat")
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Friday, time.Saturday}, w.Days())

	w, err = ParseWeekend("SUN,monday")
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Sunday, time.Monday}, w.Days())

	_, err = ParseWeekend("fri, funday")
	assert.ErrorContains(t, err, `unknown weekday "funday"`)

	_, err = ParseWeekend(" , ")
	assert.Error(t, err)
}
