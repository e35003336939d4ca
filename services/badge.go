package services

import (
	"context"
	"encoding/json"
	"time"

	"gamification-engine/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BadgeService grants badges at most once per (user, badge).
type BadgeService struct {
	Catalog *Catalog
}

// Award inserts the UserBadge unless it already exists. It reports whether a
// new badge was granted; an existing badge is not an error.
func (s *BadgeService) Award(tx *gorm.DB, userID string, badge *models.Badge, meta map[string]any, at time.Time) (bool, error) {
	ub := models.UserBadge{
		UserID:   userID,
		BadgeID:  badge.ID,
		EarnedAt: at,
	}
	if len(meta) > 0 {
		raw, err := json.Marshal(meta)
		if err != nil {
			return false, err
		}
		ub.Metadata = datatypes.JSON(raw)
	}

	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ub)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AwardForXP grants every active XP badge whose threshold xp has reached.
func (s *BadgeService) AwardForXP(ctx context.Context, tx *gorm.DB, userID string, xp int64, at time.Time) ([]models.Badge, error) {
	candidates, err := s.Catalog.WithTx(tx).BadgesForXP(ctx, xp)
	if err != nil {
		return nil, err
	}
	return s.awardAll(tx, userID, candidates, map[string]any{"source": "xp", "xp": xp}, at)
}

// AwardForMission grants active badges tied to missionID.
func (s *BadgeService) AwardForMission(ctx context.Context, tx *gorm.DB, userID, missionID string, at time.Time) ([]models.Badge, error) {
	candidates, err := s.Catalog.WithTx(tx).BadgesForMission(ctx, missionID)
	if err != nil {
		return nil, err
	}
	return s.awardAll(tx, userID, candidates, map[string]any{"source": "mission", "mission_id": missionID}, at)
}

func (s *BadgeService) awardAll(tx *gorm.DB, userID string, badges []models.Badge, meta map[string]any, at time.Time) ([]models.Badge, error) {
	var granted []models.Badge
	for i := range badges {
		ok, err := s.Award(tx, userID, &badges[i], meta, at)
		if err != nil {
			return nil, err
		}
		if ok {
			granted = append(granted, badges[i])
		}
	}
	return granted, nil
}

// UserBadgeView is a badge as shown on a profile.
type UserBadgeView struct {
	models.Badge
	EarnedAt time.Time `json:"earned_at"`
}

// UserBadges lists the badges a user holds, newest first.
func (e *Engine) UserBadges(ctx context.Context, userID string) ([]UserBadgeView, error) {
	var rows []struct {
		models.Badge
		EarnedAt time.Time
	}
	err := e.DB.WithContext(ctx).
		Table("user_badges").
		Select("badges.*, user_badges.earned_at").
		Joins("JOIN badges ON badges.id = user_badges.badge_id").
		Where("user_badges.user_id = ?", userID).
		Order("user_badges.earned_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]UserBadgeView, 0, len(rows))
	for _, r := range rows {
		out = append(out, UserBadgeView{Badge: r.Badge, EarnedAt: r.EarnedAt})
	}
	return out, nil
}
