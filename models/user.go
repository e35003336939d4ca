package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the per-player progression and wallet record.
// XP, Level, Stars, MissionStreak and ConsecutiveLoginDays are written only by the engine.
type User struct {
	ID        string `gorm:"primaryKey;type:varchar(64)" json:"id"` // identity key from the auth layer
	Username  string `gorm:"index" json:"username"`
	FirstName string `json:"first_name,omitempty"`

	XP    int64 `gorm:"not null;default:0" json:"xp"`
	Level int   `gorm:"not null;default:1" json:"level"`

	Stars        int64 `gorm:"not null;default:0" json:"stars"`
	StarsEnabled bool  `gorm:"not null" json:"stars_enabled"`
	HasVIPAccess bool  `gorm:"column:has_vip_access;not null;default:false" json:"has_vip_access"`

	MissionStreak        int        `gorm:"not null;default:0" json:"mission_streak"`
	ConsecutiveLoginDays int        `gorm:"not null;default:0" json:"consecutive_login_days"`
	LastLoginAt          *time.Time `json:"last_login_at,omitempty"`

	ReferralCode      string  `gorm:"uniqueIndex;not null;type:varchar(32)" json:"referral_code"`
	ReferredBy        *string `gorm:"index;type:varchar(32)" json:"referred_by,omitempty"` // cleared once the referral resolves
	InvitedUsersCount int     `gorm:"not null;default:0" json:"invited_users_count"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
