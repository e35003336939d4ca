package services

import (
	"context"
	"errors"

	"gamification-engine/models"

	"gorm.io/gorm"
)

// Catalog is the read-only view of mission, badge, item and proposal definitions.
type Catalog struct {
	db *gorm.DB
}

func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// WithTx binds the catalog to an open transaction.
func (c *Catalog) WithTx(tx *gorm.DB) *Catalog {
	return &Catalog{db: tx}
}

func (c *Catalog) Mission(ctx context.Context, id string) (*models.MissionDefinition, error) {
	var m models.MissionDefinition
	if err := c.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("mission", id)
		}
		return nil, err
	}
	return &m, nil
}

// ActiveMissions returns active missions in display order.
func (c *Catalog) ActiveMissions(ctx context.Context) ([]models.MissionDefinition, error) {
	var out []models.MissionDefinition
	err := c.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order ASC, required_level ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (c *Catalog) Badge(ctx context.Context, id string) (*models.Badge, error) {
	var b models.Badge
	if err := c.db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("badge", id)
		}
		return nil, err
	}
	return &b, nil
}

// BadgesForXP returns active XP badges whose threshold is at or below xp.
func (c *Catalog) BadgesForXP(ctx context.Context, xp int64) ([]models.Badge, error) {
	var out []models.Badge
	err := c.db.WithContext(ctx).
		Where("is_active = ? AND required_xp IS NOT NULL AND required_xp <= ?", true, xp).
		Order("required_xp ASC").
		Find(&out).Error
	return out, err
}

// BadgesForMission returns active badges triggered by completing missionID.
func (c *Catalog) BadgesForMission(ctx context.Context, missionID string) ([]models.Badge, error) {
	var out []models.Badge
	err := c.db.WithContext(ctx).
		Where("is_active = ? AND required_mission_id = ?", true, missionID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (c *Catalog) Item(ctx context.Context, id string) (*models.Item, error) {
	var it models.Item
	if err := c.db.WithContext(ctx).Where("id = ?", id).First(&it).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("item", id)
		}
		return nil, err
	}
	return &it, nil
}

type ItemFilter struct {
	Category   string
	ActiveOnly bool
}

func (c *Catalog) Items(ctx context.Context, f ItemFilter) ([]models.Item, error) {
	q := c.db.WithContext(ctx).Model(&models.Item{})
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	var out []models.Item
	err := q.Order("price_stars ASC, id ASC").Find(&out).Error
	return out, err
}

func (c *Catalog) Proposal(ctx context.Context, id string) (*models.Proposal, error) {
	var p models.Proposal
	if err := c.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("proposal", id)
		}
		return nil, err
	}
	return &p, nil
}

// Proposals lists proposals, newest first; an empty status lists all.
func (c *Catalog) Proposals(ctx context.Context, status models.ProposalStatus) ([]models.Proposal, error) {
	q := c.db.WithContext(ctx).Model(&models.Proposal{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.Proposal
	err := q.Order("created_at DESC").Find(&out).Error
	return out, err
}
