package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration loaded from the environment (and an optional .env file).
type Config struct {
	Port             string `env:"PORT" envDefault:"8080"`
	DBDriver         string `env:"DB_DRIVER" envDefault:"postgres"`
	DatabaseURL      string `env:"DATABASE_URL"`
	SQLiteDSN        string `env:"SQLITE_DSN" envDefault:"file:gamification.db?_pragma=busy_timeout(5000)"`
	GameServiceToken string `env:"GAME_SERVICE_TOKEN"`
	JWTSecret        string `env:"JWT_SECRET"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string `env:"LOG_FORMAT" envDefault:"text"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"gamification-engine"`

	CatalogPath         string        `env:"CATALOG_PATH"`
	CatalogR2Key        string        `env:"CATALOG_R2_KEY"`
	CatalogSyncInterval time.Duration `env:"CATALOG_SYNC_INTERVAL" envDefault:"0s"`

	R2 R2Config

	ProposalFinalizeInterval time.Duration `env:"PROPOSAL_FINALIZE_INTERVAL" envDefault:"1m"`

	Economy Economy
}

// R2Config holds object storage credentials; an empty bucket disables remote catalog fetches.
type R2Config struct {
	AccountID       string `env:"R2_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY"`
	Bucket          string `env:"R2_BUCKET_NAME"`
}

// Economy holds every tunable of the progression and star economy.
type Economy struct {
	// LevelThresholds[i] is the minimum XP for level i+1.
	LevelThresholds []int64 `env:"LEVEL_THRESHOLDS" envSeparator:"," envDefault:"0,100,250,500,1000,2000,3500,5500,8000,11000,14500,18500,23000,28000,33500,39500,46000,53000,60500,68500"`

	SignupBonusStars int64 `env:"SIGNUP_BONUS_STARS" envDefault:"50"`
	VIPCostStars     int64 `env:"VIP_COST_STARS" envDefault:"100"`

	StreakWindow      time.Duration `env:"MISSION_STREAK_WINDOW" envDefault:"1h"`
	StreakThreshold   int           `env:"MISSION_STREAK_THRESHOLD" envDefault:"3"`
	StreakBonusXP     int64         `env:"MISSION_STREAK_BONUS_XP" envDefault:"50"`
	StreakBonusItemID string        `env:"MISSION_STREAK_BONUS_ITEM_ID"`

	ReferralTargetLevel int    `env:"REFERRAL_TARGET_LEVEL" envDefault:"3"`
	ReferralBonusStars  int64  `env:"REFERRAL_BONUS_STARS" envDefault:"100"`
	InviteLinkBase      string `env:"INVITE_LINK_BASE" envDefault:"https://t.me/yourbot?start="`

	DailyBaseXP       int64         `env:"DAILY_BONUS_BASE_XP" envDefault:"10"`
	DailyBaseStars    int64         `env:"DAILY_BONUS_BASE_STARS" envDefault:"5"`
	DailyCooldown     time.Duration `env:"DAILY_BONUS_COOLDOWN" envDefault:"24h"`
	DailyStreakExpiry time.Duration `env:"DAILY_BONUS_STREAK_EXPIRY" envDefault:"48h"`
	// streak day -> item id granted at price 0
	DailyMilestones map[string]string `env:"DAILY_BONUS_MILESTONES" envDefault:"7:streak-7,14:streak-14,30:streak-30,60:streak-60,90:streak-90"`

	VoteWeights map[string]int64 `env:"VOTE_WEIGHTS" envDefault:"vote-basic:1,vote-premium:5,vote-sora:10"`

	ConflictRetries  uint64        `env:"CONFLICT_RETRIES" envDefault:"3"`
	ConflictBackoff  time.Duration `env:"CONFLICT_BACKOFF" envDefault:"20ms"`
	TransactionLimit int           `env:"TRANSACTION_HISTORY_LIMIT" envDefault:"50"`
}

// Load reads .env when present, then parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultEconomy returns the economy defaults without reading the environment.
func DefaultEconomy() Economy {
	var e Economy
	// envDefault tags are the only source of defaults
	if err := env.ParseWithOptions(&e, env.Options{Environment: map[string]string{}}); err != nil {
		panic(fmt.Sprintf("economy defaults: %v", err))
	}
	return e
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	case "sqlite":
		if c.SQLiteDSN == "" {
			return errors.New("SQLITE_DSN is required when DB_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.GameServiceToken == "" {
		return errors.New("GAME_SERVICE_TOKEN is required")
	}
	return c.Economy.Validate()
}

func (e Economy) Validate() error {
	if len(e.LevelThresholds) == 0 || e.LevelThresholds[0] != 0 {
		return errors.New("LEVEL_THRESHOLDS must start at 0")
	}
	for i := 1; i < len(e.LevelThresholds); i++ {
		if e.LevelThresholds[i] <= e.LevelThresholds[i-1] {
			return fmt.Errorf("LEVEL_THRESHOLDS must be strictly increasing (index %d)", i)
		}
	}
	if e.StreakThreshold < 1 {
		return errors.New("MISSION_STREAK_THRESHOLD must be >= 1")
	}
	if e.DailyStreakExpiry < e.DailyCooldown {
		return errors.New("DAILY_BONUS_STREAK_EXPIRY must not be shorter than DAILY_BONUS_COOLDOWN")
	}
	if e.SignupBonusStars < 0 || e.VIPCostStars < 0 || e.ReferralBonusStars < 0 {
		return errors.New("star amounts must not be negative")
	}
	if _, err := e.Milestones(); err != nil {
		return err
	}
	return nil
}

// Milestones returns DailyMilestones keyed by streak day.
func (e Economy) Milestones() (map[int]string, error) {
	out := make(map[int]string, len(e.DailyMilestones))
	for k, v := range e.DailyMilestones {
		day, err := strconv.Atoi(k)
		if err != nil || day < 1 {
			return nil, fmt.Errorf("DAILY_BONUS_MILESTONES: bad streak day %q", k)
		}
		out[day] = v
	}
	return out, nil
}

// MilestoneDays lists configured milestone streak days in ascending order.
func (e Economy) MilestoneDays() []int {
	m, _ := e.Milestones()
	days := make([]int, 0, len(m))
	for d := range m {
		days = append(days, d)
	}
	sort.Ints(days)
	return days
}
