// workers/catalog_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gamification-engine/models"
	"gamification-engine/utils"

	"github.com/gosimple/slug"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogSource yields the raw catalog document.
type CatalogSource interface {
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

// FileSource reads the catalog from a local JSON file.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file:" + s.Path }

func (s FileSource) Fetch(ctx context.Context) ([]byte, error) {
	body, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", s.Path, err)
	}
	return body, nil
}

// R2Source reads the catalog object from an R2 bucket.
type R2Source struct {
	Client *utils.R2Client
	Key    string
}

func (s R2Source) Name() string { return "r2:" + s.Key }

func (s R2Source) Fetch(ctx context.Context) ([]byte, error) {
	return s.Client.FetchObject(ctx, s.Key)
}

// CatalogDocument is the on-disk shape of the catalog.
type CatalogDocument struct {
	Missions []MissionEntry `json:"missions"`
	Badges   []BadgeEntry   `json:"badges"`
	Items    []ItemEntry    `json:"items"`
}

type MissionEntry struct {
	ID                   string   `json:"id"`
	Code                 string   `json:"code"`
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	XPReward             int64    `json:"xp_reward"`
	CooldownHours        int      `json:"cooldown_hours"`
	RequiredLevel        int      `json:"required_level"`
	RequiredItemCategory string   `json:"required_item_category"`
	IsVIP                bool     `json:"is_vip"`
	IsActive             *bool    `json:"is_active"`
	SortOrder            int      `json:"sort_order"`
	Prerequisites        []string `json:"prerequisites"`
}

type BadgeEntry struct {
	ID                string `json:"id"`
	Code              string `json:"code"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	ImageURL          string `json:"image_url"`
	RequiredXP        *int64 `json:"required_xp"`
	RequiredMissionID string `json:"required_mission_id"`
	IsActive          *bool  `json:"is_active"`
}

type ItemEntry struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	VideoURL    string `json:"video_url"`
	Category    string `json:"category"`
	PriceStars  int64  `json:"price_stars"`
	TotalSupply *int   `json:"total_supply"`
	IsActive    *bool  `json:"is_active"`
}

// SyncStats counts rows written by one sync.
type SyncStats struct {
	Missions int
	Badges   int
	Items    int
	Errors   int
}

// CatalogSyncWorker upserts mission, badge and item definitions from a source.
// Rows missing from the document are left untouched.
type CatalogSyncWorker struct {
	db       *gorm.DB
	source   CatalogSource
	interval time.Duration
	log      *slog.Logger
}

// NewCatalogSyncWorker builds a worker; interval <= 0 means sync once at start.
func NewCatalogSyncWorker(db *gorm.DB, source CatalogSource, interval time.Duration, log *slog.Logger) *CatalogSyncWorker {
	return &CatalogSyncWorker{
		db:       db,
		source:   source,
		interval: interval,
		log:      log.With("worker", "catalog_sync", "source", source.Name()),
	}
}

func (w *CatalogSyncWorker) Start(ctx context.Context) {
	w.log.Info("🔁 starting catalog sync worker", "interval", w.interval)
	go w.run(ctx)
}

func (w *CatalogSyncWorker) run(ctx context.Context) {
	if _, err := w.SyncOnce(ctx); err != nil {
		w.log.Warn("initial catalog sync failed", "error", err)
	}
	if w.interval <= 0 {
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				w.log.Error("catalog sync failed", "error", err)
			}
		case <-ctx.Done():
			w.log.Info("⏹️ catalog sync worker stopped")
			return
		}
	}
}

// SyncOnce fetches, parses and upserts the catalog.
func (w *CatalogSyncWorker) SyncOnce(ctx context.Context) (SyncStats, error) {
	var stats SyncStats

	body, err := w.source.Fetch(ctx)
	if err != nil {
		return stats, err
	}
	doc, err := ParseCatalog(body)
	if err != nil {
		return stats, err
	}

	db := w.db.WithContext(ctx)

	// Items and missions go first so badges can reference missions.
	for _, e := range doc.Items {
		it := e.model()
		if err := upsert(db, &it, "code", "name", "description", "image_url", "video_url",
			"category", "price_stars", "total_supply", "is_active"); err != nil {
			stats.Errors++
			w.log.Warn("failed to upsert item", "item_id", it.ID, "error", err)
			continue
		}
		stats.Items++
	}
	for _, e := range doc.Missions {
		m := e.model()
		if err := upsert(db, &m, "code", "title", "description", "xp_reward", "cooldown_hours",
			"required_level", "required_item_category", "is_vip", "is_active", "sort_order", "prerequisites"); err != nil {
			stats.Errors++
			w.log.Warn("failed to upsert mission", "mission_id", m.ID, "error", err)
			continue
		}
		stats.Missions++
	}
	for _, e := range doc.Badges {
		b := e.model()
		if err := upsert(db, &b, "code", "name", "description", "image_url",
			"required_xp", "required_mission_id", "is_active"); err != nil {
			stats.Errors++
			w.log.Warn("failed to upsert badge", "badge_id", b.ID, "error", err)
			continue
		}
		stats.Badges++
	}

	if stats.Errors > 0 {
		return stats, fmt.Errorf("catalog sync: %d rows failed", stats.Errors)
	}
	w.log.Info("✅ catalog synced",
		"missions", stats.Missions,
		"badges", stats.Badges,
		"items", stats.Items,
	)
	return stats, nil
}

func upsert(db *gorm.DB, row any, columns ...string) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(row).Error
}

// ParseCatalog decodes a catalog document and fills in missing ids and codes.
func ParseCatalog(body []byte) (*CatalogDocument, error) {
	var doc CatalogDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	for i := range doc.Missions {
		m := &doc.Missions[i]
		m.Code, m.ID = identify(m.Code, m.ID, m.Title)
		if m.ID == "" {
			return nil, fmt.Errorf("mission #%d has no id, code or title", i)
		}
		if m.RequiredLevel < 1 {
			m.RequiredLevel = 1
		}
		m.Prerequisites = uniqueIDs(m.Prerequisites)
	}
	for i := range doc.Badges {
		b := &doc.Badges[i]
		b.Code, b.ID = identify(b.Code, b.ID, b.Name)
		if b.ID == "" {
			return nil, fmt.Errorf("badge #%d has no id, code or name", i)
		}
	}
	for i := range doc.Items {
		it := &doc.Items[i]
		it.Code, it.ID = identify(it.Code, it.ID, it.Name)
		if it.ID == "" {
			return nil, fmt.Errorf("item #%d has no id, code or name", i)
		}
		if it.Category == "" {
			it.Category = "collectible"
		}
		if it.PriceStars < 0 {
			return nil, fmt.Errorf("item %s has a negative price", it.ID)
		}
	}
	return &doc, nil
}

// identify derives a code from the display name and an id from the code.
func identify(code, id, name string) (string, string) {
	code = strings.TrimSpace(code)
	id = strings.TrimSpace(id)
	if code == "" && strings.TrimSpace(name) != "" {
		code = slug.Make(name)
	}
	if id == "" {
		id = slug.Make(code)
	}
	if code == "" {
		code = id
	}
	return code, id
}

// uniqueIDs trims, drops blanks and removes repeats, keeping first-seen order.
func uniqueIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func active(b *bool) bool {
	return b == nil || *b
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

func (e MissionEntry) model() models.MissionDefinition {
	return models.MissionDefinition{
		ID:                   e.ID,
		Code:                 e.Code,
		Title:                e.Title,
		Description:          e.Description,
		XPReward:             e.XPReward,
		CooldownHours:        e.CooldownHours,
		RequiredLevel:        e.RequiredLevel,
		RequiredItemCategory: optional(e.RequiredItemCategory),
		IsVIP:                e.IsVIP,
		IsActive:             active(e.IsActive),
		SortOrder:            e.SortOrder,
		Prerequisites:        datatypes.NewJSONSlice(e.Prerequisites),
	}
}

func (e BadgeEntry) model() models.Badge {
	return models.Badge{
		ID:                e.ID,
		Code:              e.Code,
		Name:              e.Name,
		Description:       e.Description,
		ImageURL:          e.ImageURL,
		RequiredXP:        e.RequiredXP,
		RequiredMissionID: optional(e.RequiredMissionID),
		IsActive:          active(e.IsActive),
	}
}

func (e ItemEntry) model() models.Item {
	return models.Item{
		ID:          e.ID,
		Code:        e.Code,
		Name:        e.Name,
		Description: e.Description,
		ImageURL:    e.ImageURL,
		VideoURL:    e.VideoURL,
		Category:    e.Category,
		PriceStars:  e.PriceStars,
		TotalSupply: e.TotalSupply,
		IsActive:    active(e.IsActive),
	}
}
