package services

import (
	"context"
	"strconv"
	"time"

	"gamification-engine/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var streakStep = decimal.RequireFromString("0.2")

// DailyBonusResult is returned by ClaimDailyBonus.
type DailyBonusResult struct {
	DayStreak  int          `json:"day_streak"`
	Multiplier string       `json:"multiplier"`
	XPAwarded  int64        `json:"xp_awarded"`
	Stars      int64        `json:"stars_awarded"`
	Item       *models.Item `json:"item,omitempty"`
	XP         *XPOutcome   `json:"xp"`
	NextAt     time.Time    `json:"next_claim_at"`
	Balance    int64        `json:"balance"`
}

// DailyBonusStatus previews the next claim.
type DailyBonusStatus struct {
	Eligible      bool       `json:"eligible"`
	NextClaimAt   *time.Time `json:"next_claim_at,omitempty"`
	CurrentStreak int        `json:"current_streak"`
	NextStreak    int        `json:"next_streak"`
	Multiplier    string     `json:"multiplier"`
	XP            int64      `json:"xp"`
	Stars         int64      `json:"stars"`
	NextMilestone int        `json:"next_milestone,omitempty"`
	LastClaimedAt *time.Time `json:"last_claimed_at,omitempty"`
}

// streakMultiplier is 1 + floor(streak/5) * 0.2, applied to the streak before the claim.
func streakMultiplier(streakBefore int) decimal.Decimal {
	if streakBefore < 0 {
		streakBefore = 0
	}
	return decimal.NewFromInt(1).Add(decimal.NewFromInt(int64(streakBefore / 5)).Mul(streakStep))
}

// scaled rounds base*mult half away from zero.
func scaled(base int64, mult decimal.Decimal) int64 {
	return decimal.NewFromInt(base).Mul(mult).Round(0).IntPart()
}

func lastDailyClaim(tx *gorm.DB, userID string) (*models.DailyBonusClaim, error) {
	var c models.DailyBonusClaim
	res := tx.Where("user_id = ?", userID).Order("claimed_at DESC").Limit(1).Find(&c)
	if res.Error != nil || res.RowsAffected == 0 {
		return nil, res.Error
	}
	return &c, nil
}

// streakBefore returns the streak the next claim builds on: zero with no
// previous claim or once the streak expiry has passed.
func (e *Engine) streakBefore(last *models.DailyBonusClaim, now time.Time) int {
	if last == nil || now.Sub(last.ClaimedAt) > e.Economy.DailyStreakExpiry {
		return 0
	}
	return last.DayStreak
}

func (e *Engine) nextMilestone(after int) int {
	for _, d := range e.Economy.MilestoneDays() {
		if d > after {
			return d
		}
	}
	return 0
}

// ClaimDailyBonus pays the daily XP and stars, advances the streak and grants
// any milestone item. Everything happens in one transaction.
func (e *Engine) ClaimDailyBonus(ctx context.Context, userID string) (*DailyBonusResult, error) {
	now := e.now()
	var result *DailyBonusResult

	err := e.inTx(ctx, "ClaimDailyBonus", func(tx *gorm.DB) error {
		u, err := lockUser(tx, userID)
		if err != nil {
			return err
		}

		last, err := lastDailyClaim(tx, u.ID)
		if err != nil {
			return err
		}
		if last != nil {
			next := last.ClaimedAt.Add(e.Economy.DailyCooldown)
			if now.Before(next) {
				return precondition(ReasonTooSoon, map[string]any{"next_claim_at": next})
			}
		}

		before := e.streakBefore(last, now)
		streak := before + 1
		mult := streakMultiplier(before)
		xpAmount := scaled(e.Economy.DailyBaseXP, mult)
		starAmount := scaled(e.Economy.DailyBaseStars, mult)

		res := &DailyBonusResult{
			DayStreak:  streak,
			Multiplier: mult.String(),
			XPAwarded:  xpAmount,
			Stars:      starAmount,
			NextAt:     now.Add(e.Economy.DailyCooldown),
		}

		claim := models.DailyBonusClaim{
			UserID:       u.ID,
			ClaimedAt:    now,
			DayStreak:    streak,
			Multiplier:   res.Multiplier,
			XPAwarded:    xpAmount,
			StarsAwarded: starAmount,
		}

		if itemID, ok := e.milestones[streak]; ok {
			item, err := e.grantRewardItem(ctx, tx, u, itemID, "daily_bonus", now)
			if err != nil {
				return err
			}
			if item != nil {
				res.Item = item
				claim.ItemID = &item.ID
			}
		}

		if starAmount > 0 {
			if _, err := e.Ledger.Credit(tx, u, LedgerEntry{
				Amount:      starAmount,
				Reason:      models.ReasonDailyBonus,
				Description: "Daily bonus, day " + strconv.Itoa(streak),
				Metadata:    map[string]any{"day_streak": streak, "multiplier": res.Multiplier},
				At:          now,
			}); err != nil {
				return err
			}
		}

		xp, err := e.applyXP(ctx, tx, u, xpAmount, now)
		if err != nil {
			return err
		}
		res.XP = xp

		if err := tx.Create(&claim).Error; err != nil {
			return err
		}

		res.Balance = u.Stars
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.Log.Info("daily bonus claimed",
		"user_id", userID,
		"streak", result.DayStreak,
		"xp", result.XPAwarded,
		"stars", result.Stars,
	)
	return result, nil
}

// DailyBonusStatus previews eligibility and the next claim's rewards.
func (e *Engine) DailyBonusStatus(ctx context.Context, userID string) (*DailyBonusStatus, error) {
	now := e.now()
	if _, err := e.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	last, err := lastDailyClaim(e.DB.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}

	st := &DailyBonusStatus{Eligible: true}
	if last != nil {
		claimedAt := last.ClaimedAt
		st.LastClaimedAt = &claimedAt
		next := last.ClaimedAt.Add(e.Economy.DailyCooldown)
		if now.Before(next) {
			st.Eligible = false
			st.NextClaimAt = &next
		}
	}

	before := e.streakBefore(last, now)
	st.CurrentStreak = before

	mult := streakMultiplier(before)
	st.NextStreak = before + 1
	st.Multiplier = mult.String()
	st.XP = scaled(e.Economy.DailyBaseXP, mult)
	st.Stars = scaled(e.Economy.DailyBaseStars, mult)
	st.NextMilestone = e.nextMilestone(before)
	return st, nil
}
