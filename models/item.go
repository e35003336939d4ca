package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Item categories with engine meaning; any other string is a plain collectible.
const (
	ItemCategoryVoteBasic   = "vote-basic"
	ItemCategoryVotePremium = "vote-premium"
	ItemCategoryVoteSora    = "vote-sora"
)

// Item is catalog data. TotalSupply == nil means unlimited.
type Item struct {
	ID          string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Code        string `gorm:"uniqueIndex;not null" json:"code"`
	Name        string `gorm:"not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	ImageURL    string `gorm:"type:text" json:"image_url,omitempty"`
	VideoURL    string `gorm:"type:text" json:"video_url,omitempty"`
	Category    string `gorm:"not null;index" json:"category"`
	PriceStars  int64  `gorm:"not null;default:0" json:"price_stars"`
	TotalSupply *int   `json:"total_supply,omitempty"`
	IsActive    bool   `gorm:"not null;index" json:"is_active"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// UserItem records ownership; at most one per (user, item).
type UserItem struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      string    `gorm:"not null;type:varchar(64);uniqueIndex:idx_user_item" json:"user_id"`
	ItemID      string    `gorm:"not null;type:varchar(64);uniqueIndex:idx_user_item;index" json:"item_id"`
	PricePaid   int64     `gorm:"not null;default:0" json:"price_paid"`
	Source      string    `gorm:"not null;default:'purchase'" json:"source"` // purchase, daily_bonus, mission_streak, admin
	PurchasedAt time.Time `gorm:"not null" json:"purchased_at"`
}

func (ui *UserItem) BeforeCreate(tx *gorm.DB) error {
	if ui.ID == "" {
		ui.ID = uuid.NewString()
	}
	return nil
}
