package services

import (
	"context"
	"errors"
	"time"

	"gamification-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PurchaseResult is returned by BuyItem.
type PurchaseResult struct {
	Item           models.Item             `json:"item"`
	PricePaid      int64                   `json:"price_paid"`
	RemainingStars int64                   `json:"remaining_stars"`
	Transaction    *models.StarTransaction `json:"transaction,omitempty"`
}

// VIPResult is returned by UnlockVIP.
type VIPResult struct {
	HasVIPAccess   bool  `json:"has_vip_access"`
	RemainingStars int64 `json:"remaining_stars"`
}

func lockItem(tx *gorm.DB, itemID string) (*models.Item, error) {
	var it models.Item
	if err := lockForUpdate(tx).Where("id = ?", itemID).First(&it).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("item", itemID)
		}
		return nil, err
	}
	return &it, nil
}

func ownsItem(tx *gorm.DB, userID, itemID string) (bool, error) {
	var n int64
	err := tx.Model(&models.UserItem{}).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		Count(&n).Error
	return n > 0, err
}

func ownsCategory(tx *gorm.DB, userID, category string) (bool, error) {
	var n int64
	err := tx.Model(&models.UserItem{}).
		Joins("JOIN items ON items.id = user_items.item_id").
		Where("user_items.user_id = ? AND items.category = ?", userID, category).
		Count(&n).Error
	return n > 0, err
}

// soldOut reports whether a capped item has no units left. The item row must be locked.
func soldOut(tx *gorm.DB, it *models.Item) (bool, error) {
	if it.TotalSupply == nil {
		return false, nil
	}
	var n int64
	if err := tx.Model(&models.UserItem{}).Where("item_id = ?", it.ID).Count(&n).Error; err != nil {
		return false, err
	}
	return n >= int64(*it.TotalSupply), nil
}

// insertUserItem adds ownership; false means the user already owned it.
func insertUserItem(tx *gorm.DB, userID string, it *models.Item, price int64, source string, at time.Time) (bool, error) {
	ui := models.UserItem{
		UserID:      userID,
		ItemID:      it.ID,
		PricePaid:   price,
		Source:      source,
		PurchasedAt: at,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ui)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// BuyItem debits the item price and records ownership atomically.
func (e *Engine) BuyItem(ctx context.Context, userID, itemID string) (*PurchaseResult, error) {
	now := e.now()
	var result *PurchaseResult

	err := e.inTx(ctx, "BuyItem", func(tx *gorm.DB) error {
		u, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		it, err := lockItem(tx, itemID)
		if err != nil {
			return err
		}
		if !it.IsActive {
			return precondition(ReasonItemInactive, map[string]any{"item_id": it.ID})
		}

		owned, err := ownsItem(tx, u.ID, it.ID)
		if err != nil {
			return err
		}
		if owned {
			return precondition(ReasonAlreadyOwned, map[string]any{"item_id": it.ID})
		}

		out, err := soldOut(tx, it)
		if err != nil {
			return err
		}
		if out {
			return precondition(ReasonSoldOut, map[string]any{"item_id": it.ID, "total_supply": *it.TotalSupply})
		}

		res := &PurchaseResult{Item: *it, PricePaid: it.PriceStars}
		if it.PriceStars > 0 {
			entry, err := e.Ledger.Debit(tx, u, LedgerEntry{
				Amount:      it.PriceStars,
				Reason:      models.ReasonItemPurchase,
				Description: "Bought " + it.Name,
				Metadata:    map[string]any{"item_id": it.ID},
				At:          now,
			})
			if err != nil {
				return err
			}
			res.Transaction = entry
		}

		inserted, err := insertUserItem(tx, u.ID, it, it.PriceStars, "purchase", now)
		if err != nil {
			return err
		}
		if !inserted {
			// lost a race with a concurrent purchase; the rollback undoes the debit
			return precondition(ReasonAlreadyOwned, map[string]any{"item_id": it.ID})
		}

		res.RemainingStars = u.Stars
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.Log.Info("item purchased", "user_id", userID, "item_id", itemID, "price", result.PricePaid)
	return result, nil
}

// grantRewardItem gives an item at price 0 as a reward. An item the user
// already owns, or one that is sold out, is skipped without failing the reward.
func (e *Engine) grantRewardItem(ctx context.Context, tx *gorm.DB, u *models.User, itemID, source string, at time.Time) (*models.Item, error) {
	it, err := lockItem(tx.WithContext(ctx), itemID)
	if err != nil {
		return nil, err
	}

	out, err := soldOut(tx, it)
	if err != nil {
		return nil, err
	}
	if out {
		e.Log.Warn("reward item sold out, skipped", "user_id", u.ID, "item_id", it.ID, "source", source)
		return nil, nil
	}

	inserted, err := insertUserItem(tx, u.ID, it, 0, source, at)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, nil
	}
	return it, nil
}

// UnlockVIP debits the VIP cost and sets the flag.
func (e *Engine) UnlockVIP(ctx context.Context, userID string) (*VIPResult, error) {
	now := e.now()
	var result *VIPResult

	err := e.inTx(ctx, "UnlockVIP", func(tx *gorm.DB) error {
		u, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		if u.HasVIPAccess {
			return precondition(ReasonAlreadyVIP, nil)
		}

		if e.Economy.VIPCostStars > 0 {
			if _, err := e.Ledger.Debit(tx, u, LedgerEntry{
				Amount:      e.Economy.VIPCostStars,
				Reason:      models.ReasonVIPUnlock,
				Description: "VIP access",
				At:          now,
			}); err != nil {
				return err
			}
		}

		if err := tx.Model(u).Update("has_vip_access", true).Error; err != nil {
			return err
		}
		result = &VIPResult{HasVIPAccess: true, RemainingStars: u.Stars}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.Log.Info("vip unlocked", "user_id", userID)
	return result, nil
}

// SpendStars debits stars for an arbitrary in-app sink. Users with stars
// disabled are refused.
func (e *Engine) SpendStars(ctx context.Context, userID string, amount int64, description string) (*models.StarTransaction, error) {
	now := e.now()
	var entry *models.StarTransaction

	err := e.inTx(ctx, "SpendStars", func(tx *gorm.DB) error {
		u, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		if !u.StarsEnabled {
			return precondition(ReasonStarsDisabled, nil)
		}
		entry, err = e.Ledger.Debit(tx, u, LedgerEntry{
			Amount:      amount,
			Reason:      models.ReasonSpend,
			Description: description,
			At:          now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// OwnedItems lists the catalog items a user owns.
func (e *Engine) OwnedItems(ctx context.Context, userID string) ([]models.Item, error) {
	var out []models.Item
	err := e.DB.WithContext(ctx).
		Model(&models.Item{}).
		Joins("JOIN user_items ON user_items.item_id = items.id").
		Where("user_items.user_id = ?", userID).
		Order("user_items.purchased_at DESC").
		Find(&out).Error
	return out, err
}
