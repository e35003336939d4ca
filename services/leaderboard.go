package services

import (
	"context"

	"gamification-engine/models"
)

type LeaderboardCategory string

const (
	LeaderboardXP       LeaderboardCategory = "xp"
	LeaderboardMissions LeaderboardCategory = "missions_completed"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	Level     int    `json:"level"`
	Value     int64  `json:"value"`
}

// Leaderboard ranks users by XP or by completed missions. Ties break on user id.
func (e *Engine) Leaderboard(ctx context.Context, category LeaderboardCategory, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	limit = min(limit, maxLeaderboardLimit)

	db := e.DB.WithContext(ctx)
	var rows []LeaderboardEntry

	switch category {
	case LeaderboardXP:
		err := db.Model(&models.User{}).
			Select("id AS user_id, username, first_name, level, xp AS value").
			Order("xp DESC, id ASC").
			Limit(limit).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
	case LeaderboardMissions:
		err := db.Table("mission_completions").
			Select("users.id AS user_id, users.username, users.first_name, users.level, COUNT(mission_completions.id) AS value").
			Joins("JOIN users ON users.id = mission_completions.user_id AND users.deleted_at IS NULL").
			Group("users.id, users.username, users.first_name, users.level").
			Order("value DESC, users.id ASC").
			Limit(limit).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
	default:
		return nil, invalid("unknown leaderboard category %q", category)
	}

	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}
