package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gamification-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewUser is the identity handed over by the auth layer on first contact.
type NewUser struct {
	ID           string
	Username     string
	FirstName    string
	ReferralCode string // code of the inviting user, optional
}

// LevelProgress describes where a user sits inside the level table.
type LevelProgress struct {
	Level        int    `json:"level"`
	XP           int64  `json:"xp"`
	LevelStartXP int64  `json:"level_start_xp"`
	NextLevelXP  *int64 `json:"next_level_xp,omitempty"`
	Percent      int    `json:"percent"`
}

// Profile is the read model behind /me/profile.
type Profile struct {
	User              models.User     `json:"user"`
	Progress          LevelProgress   `json:"progress"`
	Badges            []UserBadgeView `json:"badges"`
	Items             []models.Item   `json:"items"`
	MissionsCompleted int64           `json:"missions_completed"`
	VotePower         int64           `json:"vote_power"`
}

// Wallet is the read model behind /me/wallet.
type Wallet struct {
	Stars        int64                    `json:"stars"`
	StarsEnabled bool                     `json:"stars_enabled"`
	HasVIPAccess bool                     `json:"has_vip_access"`
	Recent       []models.StarTransaction `json:"recent_transactions"`
}

// InviteInfo is the read model behind /me/invite.
type InviteInfo struct {
	ReferralCode      string `json:"referral_code"`
	InviteLink        string `json:"invite_link"`
	InvitedUsersCount int    `json:"invited_users_count"`
	BonusStars        int64  `json:"bonus_stars"`
	TargetLevel       int    `json:"target_level"`
}

// EnsureUser returns the user, creating it on first contact. A new user gets
// the signup credit and, when a valid foreign referral code is given, is linked
// to the referrer. created reports whether the row was inserted by this call.
func (e *Engine) EnsureUser(ctx context.Context, in NewUser) (user *models.User, created bool, err error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, false, invalid("user id is required")
	}
	now := e.now()

	err = e.inTx(ctx, "EnsureUser", func(tx *gorm.DB) error {
		created = false

		var existing models.User
		res := tx.Where("id = ?", id).Limit(1).Find(&existing)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			user = &existing
			return e.refreshNames(tx, user, in)
		}

		code, err := uniqueReferralCode(tx)
		if err != nil {
			return err
		}
		u := models.User{
			ID:           id,
			Username:     in.Username,
			FirstName:    in.FirstName,
			Level:        1,
			StarsEnabled: true,
			ReferralCode: code,
		}

		var referrer *models.User
		if ref := NormalizeReferralCode(in.ReferralCode); ref != "" {
			var r models.User
			res := lockForUpdate(tx).Where("referral_code = ?", ref).Limit(1).Find(&r)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 && r.ID != id {
				referrer = &r
				u.ReferredBy = &ref
			}
		}

		ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&u)
		if ins.Error != nil {
			return ins.Error
		}
		if ins.RowsAffected == 0 {
			// created concurrently by another request
			if err := tx.Where("id = ?", id).First(&existing).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return notFound("user", id)
				}
				return err
			}
			user = &existing
			return nil
		}

		if referrer != nil {
			if err := tx.Model(referrer).
				Update("invited_users_count", gorm.Expr("invited_users_count + 1")).Error; err != nil {
				return err
			}
		}

		if e.Economy.SignupBonusStars > 0 {
			if _, err := e.Ledger.Credit(tx, &u, LedgerEntry{
				Amount:      e.Economy.SignupBonusStars,
				Reason:      models.ReasonSignupBonus,
				Description: "Welcome bonus",
				At:          now,
			}); err != nil {
				return err
			}
		}

		user = &u
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		e.Log.Info("user created", "user_id", user.ID, "referred_by", deref(user.ReferredBy))
	}
	return user, created, nil
}

func (e *Engine) refreshNames(tx *gorm.DB, u *models.User, in NewUser) error {
	updates := map[string]any{}
	if in.Username != "" && in.Username != u.Username {
		updates["username"] = in.Username
		u.Username = in.Username
	}
	if in.FirstName != "" && in.FirstName != u.FirstName {
		updates["first_name"] = in.FirstName
		u.FirstName = in.FirstName
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(u).Updates(updates).Error
}

func uniqueReferralCode(tx *gorm.DB) (string, error) {
	for range 5 {
		code := newReferralCode()
		var n int64
		if err := tx.Model(&models.User{}).Unscoped().Where("referral_code = ?", code).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", conflict(errors.New("could not allocate a unique referral code"))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// RecordLogin updates the consecutive-login counter: unchanged on the same UTC
// day, +1 on the next day, reset to 1 after a gap.
func (e *Engine) RecordLogin(ctx context.Context, userID string) (*models.User, error) {
	now := e.now()
	var user *models.User

	err := e.inTx(ctx, "RecordLogin", func(tx *gorm.DB) error {
		u, err := lockUser(tx, userID)
		if err != nil {
			return err
		}

		days := 1
		if u.LastLoginAt != nil {
			switch daysBetween(*u.LastLoginAt, now) {
			case 0:
				days = max(u.ConsecutiveLoginDays, 1)
			case 1:
				days = u.ConsecutiveLoginDays + 1
			}
		}

		u.ConsecutiveLoginDays = days
		u.LastLoginAt = &now
		if err := tx.Model(u).Updates(map[string]any{
			"consecutive_login_days": days,
			"last_login_at":          now,
		}).Error; err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// daysBetween counts UTC calendar days from a to b.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// Progress places xp inside the level table.
func (e *Engine) Progress(u *models.User) LevelProgress {
	p := LevelProgress{
		Level:        u.Level,
		XP:           u.XP,
		LevelStartXP: e.Levels.Threshold(u.Level),
		Percent:      100,
	}
	if next, ok := e.Levels.NextThreshold(u.Level); ok {
		p.NextLevelXP = &next
		span := next - p.LevelStartXP
		if span > 0 {
			p.Percent = int((u.XP - p.LevelStartXP) * 100 / span)
		}
		p.Percent = min(max(p.Percent, 0), 100)
	}
	return p
}

func (e *Engine) Profile(ctx context.Context, userID string) (*Profile, error) {
	u, err := e.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	badges, err := e.UserBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err := e.OwnedItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	var completed int64
	if err := e.DB.WithContext(ctx).Model(&models.MissionCompletion{}).
		Where("user_id = ?", userID).
		Count(&completed).Error; err != nil {
		return nil, err
	}
	power, err := e.VotePower(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Profile{
		User:              *u,
		Progress:          e.Progress(u),
		Badges:            badges,
		Items:             items,
		MissionsCompleted: completed,
		VotePower:         power,
	}, nil
}

func (e *Engine) Wallet(ctx context.Context, userID string) (*Wallet, error) {
	u, err := e.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := e.RecentTransactions(ctx, userID, 10)
	if err != nil {
		return nil, err
	}
	return &Wallet{
		Stars:        u.Stars,
		StarsEnabled: u.StarsEnabled,
		HasVIPAccess: u.HasVIPAccess,
		Recent:       recent,
	}, nil
}

func (e *Engine) InviteInfo(ctx context.Context, userID string) (*InviteInfo, error) {
	u, err := e.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &InviteInfo{
		ReferralCode:      u.ReferralCode,
		InviteLink:        e.Economy.InviteLinkBase + u.ReferralCode,
		InvitedUsersCount: u.InvitedUsersCount,
		BonusStars:        e.Economy.ReferralBonusStars,
		TargetLevel:       e.Economy.ReferralTargetLevel,
	}, nil
}
