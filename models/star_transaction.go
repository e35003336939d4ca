package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type StarTransactionType string

const (
	StarCredit StarTransactionType = "credit"
	StarDebit  StarTransactionType = "debit"
)

// Ledger reasons written by the engine.
const (
	ReasonSignupBonus     = "signup_bonus"
	ReasonReferralBonus   = "referral_bonus"
	ReasonDailyBonus      = "daily_bonus"
	ReasonItemPurchase    = "item_purchase"
	ReasonVIPUnlock       = "vip_unlock"
	ReasonAdminAdjustment = "admin_adjustment"
	ReasonSpend           = "spend"
)

// StarTransaction is the append-only star ledger. Amount is always positive;
// Type gives the direction. For any user, sum(credits) - sum(debits) == User.Stars.
type StarTransaction struct {
	ID           string              `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID       string              `gorm:"not null;type:varchar(64);index:idx_star_tx_user_created,priority:1" json:"user_id"`
	Amount       int64               `gorm:"not null" json:"amount"`
	Type         StarTransactionType `gorm:"not null;type:varchar(8)" json:"type"`
	Reason       string              `gorm:"not null;type:varchar(64)" json:"reason"`
	Description  string              `gorm:"type:text" json:"description,omitempty"`
	BalanceAfter int64               `gorm:"not null" json:"balance_after"`
	Metadata     datatypes.JSON      `json:"metadata,omitempty"`
	CreatedAt    time.Time           `gorm:"not null;index:idx_star_tx_user_created,priority:2" json:"created_at"`
}

func (st *StarTransaction) BeforeCreate(tx *gorm.DB) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	return nil
}

// Signed returns the balance delta of the entry.
func (st StarTransaction) Signed() int64 {
	if st.Type == StarDebit {
		return -st.Amount
	}
	return st.Amount
}
