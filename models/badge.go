package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Badge is catalog data. A badge fires either when total XP reaches RequiredXP
// or when RequiredMissionID is completed; neither means manual-only.
type Badge struct {
	ID                string  `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Code              string  `gorm:"uniqueIndex;not null" json:"code"`
	Name              string  `gorm:"not null" json:"name"`
	Description       string  `gorm:"type:text" json:"description"`
	ImageURL          string  `gorm:"type:text" json:"image_url,omitempty"`
	RequiredXP        *int64  `gorm:"index" json:"required_xp,omitempty"`
	RequiredMissionID *string `gorm:"index;type:varchar(64)" json:"required_mission_id,omitempty"`
	IsActive          bool    `gorm:"not null;index" json:"is_active"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// UserBadge: awarded instance, at most one per (user, badge)
type UserBadge struct {
	ID       string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID   string         `gorm:"not null;type:varchar(64);uniqueIndex:idx_user_badge" json:"user_id"`
	BadgeID  string         `gorm:"not null;type:varchar(64);uniqueIndex:idx_user_badge" json:"badge_id"`
	EarnedAt time.Time      `gorm:"not null" json:"earned_at"`
	Metadata datatypes.JSON `json:"metadata,omitempty"` // e.g. {"source":"mission","mission_id":"..."}
}

func (ub *UserBadge) BeforeCreate(tx *gorm.DB) error {
	if ub.ID == "" {
		ub.ID = uuid.NewString()
	}
	return nil
}
