package services

import (
	"context"
	"time"

	"gamification-engine/models"

	"gorm.io/gorm"
)

// XPOutcome summarizes one XP credit.
type XPOutcome struct {
	Gained    int64            `json:"xp_gained"`
	TotalXP   int64            `json:"total_xp"`
	OldLevel  int              `json:"old_level"`
	NewLevel  int              `json:"new_level"`
	LeveledUp bool             `json:"leveled_up"`
	Badges    []models.Badge   `json:"badges_earned,omitempty"`
	Referral  *ReferralOutcome `json:"referral,omitempty"`
}

// applyXP credits XP to a locked user, recomputes the level, grants XP badges
// and fires the referral check. It runs inside the caller's tx.
func (e *Engine) applyXP(ctx context.Context, tx *gorm.DB, u *models.User, amount int64, at time.Time) (*XPOutcome, error) {
	if amount < 0 {
		return nil, invalid("xp amount must not be negative, got %d", amount)
	}

	out := &XPOutcome{Gained: amount, OldLevel: u.Level}

	u.XP += amount
	u.Level = e.Levels.LevelOf(u.XP)

	if err := tx.Model(u).Updates(map[string]any{"xp": u.XP, "level": u.Level}).Error; err != nil {
		return nil, err
	}

	out.TotalXP = u.XP
	out.NewLevel = u.Level
	out.LeveledUp = out.NewLevel > out.OldLevel

	badges, err := e.Badges.AwardForXP(ctx, tx, u.ID, u.XP, at)
	if err != nil {
		return nil, err
	}
	out.Badges = badges

	ref, err := e.maybeRewardReferrer(ctx, tx, u, at)
	if err != nil {
		return nil, err
	}
	out.Referral = ref

	if out.LeveledUp {
		e.Log.Info("level up", "user_id", u.ID, "from", out.OldLevel, "to", out.NewLevel, "xp", u.XP)
	}
	return out, nil
}
