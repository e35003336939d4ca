package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEconomy(t *testing.T) {
	e := DefaultEconomy()

	require.NoError(t, e.Validate())
	assert.Len(t, e.LevelThresholds, 20)
	assert.EqualValues(t, 0, e.LevelThresholds[0])
	assert.EqualValues(t, 50, e.SignupBonusStars)
	assert.EqualValues(t, 100, e.VIPCostStars)
	assert.Equal(t, time.Hour, e.StreakWindow)
	assert.Equal(t, 3, e.StreakThreshold)
	assert.Equal(t, 24*time.Hour, e.DailyCooldown)
	assert.Equal(t, 48*time.Hour, e.DailyStreakExpiry)
	assert.EqualValues(t, 5, e.VoteWeights["vote-premium"])
	assert.Equal(t, []int{7, 14, 30, 60, 90}, e.MilestoneDays())

	m, err := e.Milestones()
	require.NoError(t, err)
	assert.Equal(t, "streak-30", m[30])
}

func TestLoad(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("GAME_SERVICE_TOKEN", "svc")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("DAILY_BONUS_MILESTONES", "3:three")
	t.Setenv("MISSION_STREAK_WINDOW", "90m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, []int{3}, cfg.Economy.MilestoneDays())
	assert.Equal(t, 90*time.Minute, cfg.Economy.StreakWindow)
	assert.Equal(t, time.Minute, cfg.ProposalFinalizeInterval)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GAME_SERVICE_TOKEN", "svc")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestEconomyValidate(t *testing.T) {
	tests := []struct {
		name  string
		tweak func(*Economy)
		want  string
	}{
		{"thresholds not from zero", func(e *Economy) { e.LevelThresholds = []int64{10, 20} }, "start at 0"},
		{"thresholds not increasing", func(e *Economy) { e.LevelThresholds = []int64{0, 50, 50} }, "strictly increasing"},
		{"streak threshold", func(e *Economy) { e.StreakThreshold = 0 }, "MISSION_STREAK_THRESHOLD"},
		{"expiry shorter than cooldown", func(e *Economy) { e.DailyStreakExpiry = time.Hour }, "STREAK_EXPIRY"},
		{"negative stars", func(e *Economy) { e.VIPCostStars = -1 }, "negative"},
		{"bad milestone", func(e *Economy) { e.DailyMilestones = map[string]string{"x": "item"} }, "bad streak day"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DefaultEconomy()
			tt.tweak(&e)
			err := e.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
