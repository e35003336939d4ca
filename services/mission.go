package services

import (
	"context"
	"slices"
	"time"

	"gamification-engine/models"

	"gorm.io/gorm"
)

// MissionState is a mission as seen by one user.
type MissionState string

const (
	MissionLocked    MissionState = "locked"
	MissionReady     MissionState = "ready"
	MissionCooldown  MissionState = "cooldown"
	MissionCompleted MissionState = "completed"
)

// MissionStatus is a mission together with the user's state for it.
type MissionStatus struct {
	Mission         models.MissionDefinition `json:"mission"`
	State           MissionState             `json:"state"`
	Reason          string                   `json:"reason,omitempty"`
	AvailableAt     *time.Time               `json:"available_at,omitempty"`
	LastCompletedAt *time.Time               `json:"last_completed_at,omitempty"`
}

// MissionResult is returned by CompleteMission.
type MissionResult struct {
	MissionID      string           `json:"mission_id"`
	CompletedAt    time.Time        `json:"completed_at"`
	XPReward       int64            `json:"xp_reward"`
	StreakBonusXP  int64            `json:"streak_bonus_xp"`
	StreakBonusHit bool             `json:"streak_bonus"`
	BonusItem      *models.Item     `json:"bonus_item,omitempty"`
	MissionStreak  int              `json:"mission_streak"`
	XP             *XPOutcome       `json:"xp"`
	MissionBadges  []models.Badge   `json:"mission_badges,omitempty"`
	Referral       *ReferralOutcome `json:"referral,omitempty"`
}

// missionFacts is what evaluateMission needs to know about the user beyond the User row.
type missionFacts struct {
	OwnsRequiredItem bool
	PrerequisitesMet bool
	LastCompletedAt  *time.Time
}

// evaluateMission applies gating (level, VIP, item, prerequisites) and then the
// cooldown rule. A mission is completable again at exactly last+cooldown.
func evaluateMission(m *models.MissionDefinition, u *models.User, f missionFacts, now time.Time) MissionStatus {
	last := f.LastCompletedAt
	st := MissionStatus{Mission: *m, LastCompletedAt: last}

	switch {
	case !m.IsActive:
		st.State, st.Reason = MissionLocked, ReasonMissionInactive
		return st
	case u.Level < m.RequiredLevel:
		st.State, st.Reason = MissionLocked, ReasonLevelRequired
		return st
	case m.IsVIP && !u.HasVIPAccess:
		st.State, st.Reason = MissionLocked, ReasonVIPRequired
		return st
	case m.RequiredItemCategory != nil && *m.RequiredItemCategory != "" && !f.OwnsRequiredItem:
		st.State, st.Reason = MissionLocked, ReasonItemRequired
		return st
	case !f.PrerequisitesMet:
		st.State, st.Reason = MissionLocked, ReasonPrerequisite
		return st
	}

	if last == nil {
		st.State = MissionReady
		return st
	}
	if m.CooldownHours <= 0 {
		st.State, st.Reason = MissionCompleted, ReasonMissionCompleted
		return st
	}

	next := last.Add(m.Cooldown())
	if now.Before(next) {
		st.State, st.Reason = MissionCooldown, ReasonMissionCooldown
		st.AvailableAt = &next
		return st
	}
	st.State = MissionReady
	return st
}

func lastMissionCompletion(tx *gorm.DB, userID, missionID string) (*time.Time, error) {
	var c models.MissionCompletion
	res := tx.Where("user_id = ? AND mission_id = ?", userID, missionID).
		Order("completed_at DESC").
		Limit(1).
		Find(&c)
	if res.Error != nil || res.RowsAffected == 0 {
		return nil, res.Error
	}
	t := c.CompletedAt
	return &t, nil
}

func lastAnyCompletion(tx *gorm.DB, userID string) (*time.Time, error) {
	var c models.MissionCompletion
	res := tx.Where("user_id = ?", userID).
		Order("completed_at DESC").
		Limit(1).
		Find(&c)
	if res.Error != nil || res.RowsAffected == 0 {
		return nil, res.Error
	}
	t := c.CompletedAt
	return &t, nil
}

func prerequisitesMet(tx *gorm.DB, userID string, prereqs []string) (bool, error) {
	if len(prereqs) == 0 {
		return true, nil
	}
	want := slices.Compact(slices.Sorted(slices.Values(prereqs)))
	var done int64
	err := tx.Model(&models.MissionCompletion{}).
		Where("user_id = ? AND mission_id IN ?", userID, want).
		Distinct("mission_id").
		Count(&done).Error
	return done >= int64(len(want)), err
}

func loadMissionFacts(tx *gorm.DB, userID string, m *models.MissionDefinition) (missionFacts, error) {
	f := missionFacts{OwnsRequiredItem: true}
	var err error

	if m.RequiredItemCategory != nil && *m.RequiredItemCategory != "" {
		if f.OwnsRequiredItem, err = ownsCategory(tx, userID, *m.RequiredItemCategory); err != nil {
			return f, err
		}
	}
	if f.PrerequisitesMet, err = prerequisitesMet(tx, userID, []string(m.Prerequisites)); err != nil {
		return f, err
	}
	f.LastCompletedAt, err = lastMissionCompletion(tx, userID, m.ID)
	return f, err
}

// CompleteMission records a completion and pays XP, streak bonus, badges and
// any pending referral in one transaction.
func (e *Engine) CompleteMission(ctx context.Context, userID, missionID string) (*MissionResult, error) {
	now := e.now()
	var result *MissionResult

	err := e.inTx(ctx, "CompleteMission", func(tx *gorm.DB) error {
		// 1. Lock user, load mission, check gating and cooldown
		u, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		m, err := e.Catalog.WithTx(tx).Mission(ctx, missionID)
		if err != nil {
			return err
		}
		facts, err := loadMissionFacts(tx, u.ID, m)
		if err != nil {
			return err
		}

		st := evaluateMission(m, u, facts, now)
		switch st.State {
		case MissionLocked:
			return precondition(st.Reason, map[string]any{
				"mission_id":     m.ID,
				"required_level": m.RequiredLevel,
				"is_vip":         m.IsVIP,
			})
		case MissionCooldown:
			return precondition(ReasonMissionCooldown, map[string]any{
				"mission_id":   m.ID,
				"available_at": st.AvailableAt,
			})
		case MissionCompleted:
			return precondition(ReasonMissionCompleted, map[string]any{"mission_id": m.ID})
		}

		// 2. Streak looks at the previous completion of any mission
		prev, err := lastAnyCompletion(tx, u.ID)
		if err != nil {
			return err
		}

		completion := models.MissionCompletion{
			UserID:      u.ID,
			MissionID:   m.ID,
			XPAwarded:   m.XPReward,
			CompletedAt: now,
		}
		if err := tx.Create(&completion).Error; err != nil {
			return err
		}

		// 3. Streak
		res := &MissionResult{MissionID: m.ID, CompletedAt: now, XPReward: m.XPReward}
		if prev != nil && now.Sub(*prev) <= e.Economy.StreakWindow {
			u.MissionStreak++
		} else {
			u.MissionStreak = 1
		}
		if u.MissionStreak >= e.Economy.StreakThreshold {
			res.StreakBonusHit = true
			res.StreakBonusXP = e.Economy.StreakBonusXP
			u.MissionStreak = 0

			if e.Economy.StreakBonusItemID != "" {
				item, err := e.grantRewardItem(ctx, tx, u, e.Economy.StreakBonusItemID, "mission_streak", now)
				if err != nil {
					return err
				}
				res.BonusItem = item
			}
		}
		if err := tx.Model(u).Update("mission_streak", u.MissionStreak).Error; err != nil {
			return err
		}
		res.MissionStreak = u.MissionStreak

		// 4. Mission badges
		badges, err := e.Badges.AwardForMission(ctx, tx, u.ID, m.ID, now)
		if err != nil {
			return err
		}
		res.MissionBadges = badges

		// 5. XP, level, XP badges, referral
		xp, err := e.applyXP(ctx, tx, u, m.XPReward+res.StreakBonusXP, now)
		if err != nil {
			return err
		}
		res.XP = xp
		res.Referral = xp.Referral

		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.Log.Info("mission completed",
		"user_id", userID,
		"mission_id", missionID,
		"xp", result.XPReward+result.StreakBonusXP,
		"level", result.XP.NewLevel,
		"streak", result.MissionStreak,
	)
	return result, nil
}

// ListMissions returns every active mission with the user's state for it.
func (e *Engine) ListMissions(ctx context.Context, userID string) ([]MissionStatus, error) {
	now := e.now()
	db := e.DB.WithContext(ctx)

	u, err := e.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	missions, err := e.Catalog.ActiveMissions(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]MissionStatus, 0, len(missions))
	for i := range missions {
		m := &missions[i]
		facts, err := loadMissionFacts(db, u.ID, m)
		if err != nil {
			return nil, err
		}
		out = append(out, evaluateMission(m, u, facts, now))
	}
	return out, nil
}

// MissionStatusFor returns one mission's state for the user.
func (e *Engine) MissionStatusFor(ctx context.Context, userID, missionID string) (*MissionStatus, error) {
	db := e.DB.WithContext(ctx)
	u, err := e.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	m, err := e.Catalog.Mission(ctx, missionID)
	if err != nil {
		return nil, err
	}
	facts, err := loadMissionFacts(db, u.ID, m)
	if err != nil {
		return nil, err
	}
	st := evaluateMission(m, u, facts, e.now())
	return &st, nil
}
