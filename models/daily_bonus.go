package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DailyBonusClaim is append-only; the latest row drives eligibility and streak.
type DailyBonusClaim struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID       string    `gorm:"not null;type:varchar(64);index:idx_daily_user_claimed,priority:1" json:"user_id"`
	ClaimedAt    time.Time `gorm:"not null;index:idx_daily_user_claimed,priority:2" json:"claimed_at"`
	DayStreak    int       `gorm:"not null" json:"day_streak"`
	Multiplier   string    `gorm:"not null;type:varchar(16)" json:"multiplier"`
	XPAwarded    int64     `gorm:"not null" json:"xp_awarded"`
	StarsAwarded int64     `gorm:"not null" json:"stars_awarded"`
	ItemID       *string   `gorm:"type:varchar(64)" json:"item_id,omitempty"`
}

func (c *DailyBonusClaim) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
