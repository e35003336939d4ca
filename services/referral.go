package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"gamification-engine/models"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

const referralCodeLength = 8

// ReferralOutcome reports a resolved referral.
type ReferralOutcome struct {
	Code       string `json:"code"`
	ReferrerID string `json:"referrer_id,omitempty"`
	Paid       bool   `json:"paid"`
	Stars      int64  `json:"stars,omitempty"`
}

// NormalizeReferralCode trims and upper-cases a code, dropping an optional "ref_" prefix.
func NormalizeReferralCode(code string) string {
	code = toUpper(strings.TrimSpace(code))
	return strings.TrimPrefix(code, "REF_")
}

// Casers are stateful, so one is built per call.
func toUpper(s string) string {
	return cases.Upper(language.Und).String(s)
}

func newReferralCode() string {
	return toUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:referralCodeLength])
}

// maybeRewardReferrer pays the referrer once the referred user reaches the
// target level. ReferredBy is cleared whether or not the referrer still
// resolves, so the referral fires at most once.
func (e *Engine) maybeRewardReferrer(ctx context.Context, tx *gorm.DB, u *models.User, at time.Time) (*ReferralOutcome, error) {
	if u.ReferredBy == nil || *u.ReferredBy == "" || u.Level < e.Economy.ReferralTargetLevel {
		return nil, nil
	}

	code := *u.ReferredBy
	if err := tx.Model(u).Update("referred_by", nil).Error; err != nil {
		return nil, err
	}
	u.ReferredBy = nil

	out := &ReferralOutcome{Code: code}

	var referrer models.User
	err := lockForUpdate(tx).WithContext(ctx).Where("referral_code = ?", code).First(&referrer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		e.Log.Warn("referrer not found, referral dropped", "user_id", u.ID, "code", code)
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	out.ReferrerID = referrer.ID

	if referrer.ID == u.ID || e.Economy.ReferralBonusStars <= 0 {
		return out, nil
	}

	if _, err := e.Ledger.Credit(tx, &referrer, LedgerEntry{
		Amount:      e.Economy.ReferralBonusStars,
		Reason:      models.ReasonReferralBonus,
		Description: "Friend reached level " + strconv.Itoa(e.Economy.ReferralTargetLevel),
		Metadata:    map[string]any{"referred_user_id": u.ID},
		At:          at,
	}); err != nil {
		return nil, err
	}

	out.Paid = true
	out.Stars = e.Economy.ReferralBonusStars
	e.Log.Info("referral bonus paid", "referrer_id", referrer.ID, "referred_id", u.ID, "stars", out.Stars)
	return out, nil
}
