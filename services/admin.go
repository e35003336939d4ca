package services

import (
	"context"

	"gamification-engine/models"

	"gorm.io/gorm"
)

// AdjustStars applies a signed admin correction through the ledger.
func (e *Engine) AdjustStars(ctx context.Context, userID string, delta int64, note string) (*models.StarTransaction, error) {
	if delta == 0 {
		return nil, invalid("adjustment must be non-zero")
	}
	now := e.now()
	var entry *models.StarTransaction

	err := e.inTx(ctx, "AdjustStars", func(tx *gorm.DB) error {
		u, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		le := LedgerEntry{
			Reason:      models.ReasonAdminAdjustment,
			Description: note,
			At:          now,
		}
		if delta > 0 {
			le.Amount = delta
			entry, err = e.Ledger.Credit(tx, u, le)
		} else {
			le.Amount = -delta
			entry, err = e.Ledger.Debit(tx, u, le)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	e.Log.Info("stars adjusted by admin", "user_id", userID, "delta", delta, "balance", entry.BalanceAfter)
	return entry, nil
}

// AwardBadgeManually grants a badge outside trigger evaluation. It is still
// idempotent: granted is false when the user already holds the badge.
func (e *Engine) AwardBadgeManually(ctx context.Context, userID, badgeID string) (granted bool, err error) {
	now := e.now()

	err = e.inTx(ctx, "AwardBadge", func(tx *gorm.DB) error {
		u, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		b, err := e.Catalog.WithTx(tx).Badge(ctx, badgeID)
		if err != nil {
			return err
		}
		granted, err = e.Badges.Award(tx, u.ID, b, map[string]any{"source": "admin"}, now)
		return err
	})
	if err != nil {
		return false, err
	}

	if granted {
		e.Log.Info("badge awarded by admin", "user_id", userID, "badge_id", badgeID)
	}
	return granted, nil
}

// SetVIP grants or revokes VIP access without touching stars.
func (e *Engine) SetVIP(ctx context.Context, userID string, enabled bool) (*models.User, error) {
	return e.setFlag(ctx, "SetVIP", userID, "has_vip_access", enabled)
}

// SetStarsEnabled toggles whether the user may spend stars.
func (e *Engine) SetStarsEnabled(ctx context.Context, userID string, enabled bool) (*models.User, error) {
	return e.setFlag(ctx, "SetStarsEnabled", userID, "stars_enabled", enabled)
}

func (e *Engine) setFlag(ctx context.Context, op, userID, column string, value bool) (*models.User, error) {
	var user *models.User
	err := e.inTx(ctx, op, func(tx *gorm.DB) error {
		u, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Model(u).Update(column, value).Error; err != nil {
			return err
		}
		switch column {
		case "has_vip_access":
			u.HasVIPAccess = value
		case "stars_enabled":
			u.StarsEnabled = value
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.Log.Info("user flag changed", "user_id", userID, "flag", column, "value", value)
	return user, nil
}
