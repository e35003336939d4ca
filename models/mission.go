package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MissionDefinition is catalog data. CooldownHours == 0 means one-time.
type MissionDefinition struct {
	ID                   string  `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Code                 string  `gorm:"uniqueIndex;not null" json:"code"`
	Title                string  `gorm:"not null" json:"title"`
	Description          string  `gorm:"type:text" json:"description"`
	XPReward             int64   `gorm:"not null;default:0" json:"xp_reward"`
	CooldownHours        int     `gorm:"not null;default:0" json:"cooldown_hours"`
	RequiredLevel        int     `gorm:"not null;default:1" json:"required_level"`
	RequiredItemCategory *string `json:"required_item_category,omitempty"`
	IsVIP                bool    `gorm:"column:is_vip;not null;default:false" json:"is_vip"`
	IsActive             bool    `gorm:"not null;index" json:"is_active"`
	SortOrder            int     `gorm:"not null;default:0" json:"sort_order"`

	// missions that must each have been completed at least once
	Prerequisites datatypes.JSONSlice[string] `json:"prerequisites,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (MissionDefinition) TableName() string { return "missions" }

// Cooldown returns the per-user cooldown; zero for one-time missions.
func (m *MissionDefinition) Cooldown() time.Duration {
	return time.Duration(m.CooldownHours) * time.Hour
}

// MissionCompletion is append-only.
type MissionCompletion struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      string    `gorm:"not null;type:varchar(64);index:idx_completion_user_mission,priority:1" json:"user_id"`
	MissionID   string    `gorm:"not null;type:varchar(64);index:idx_completion_user_mission,priority:2" json:"mission_id"`
	XPAwarded   int64     `gorm:"not null;default:0" json:"xp_awarded"`
	CompletedAt time.Time `gorm:"not null;index" json:"completed_at"`
}

func (mc *MissionCompletion) BeforeCreate(tx *gorm.DB) error {
	if mc.ID == "" {
		mc.ID = uuid.NewString()
	}
	return nil
}
