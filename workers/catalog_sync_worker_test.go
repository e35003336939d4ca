package workers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gamification-engine/database"
	"gamification-engine/logging"
	"gamification-engine/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

type staticSource []byte

func (s staticSource) Name() string                          { return "static" }
func (s staticSource) Fetch(context.Context) ([]byte, error) { return s, nil }

type failingSource struct{}

func (failingSource) Name() string                          { return "failing" }
func (failingSource) Fetch(context.Context) ([]byte, error) { return nil, errors.New("unreachable") }

func TestParseCatalog_DerivesIdentifiers(t *testing.T) {
	doc, err := ParseCatalog([]byte(`{
		"missions": [{"title": "Say Hello World", "xp_reward": 5}],
		"badges": [{"code": "Early-Bird", "name": "Early bird"}],
		"items": [{"id": "gem", "name": "Gem", "price_stars": 3}]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "say-hello-world", doc.Missions[0].Code)
	assert.Equal(t, "say-hello-world", doc.Missions[0].ID)
	assert.Equal(t, 1, doc.Missions[0].RequiredLevel)
	assert.Equal(t, "Early-Bird", doc.Badges[0].Code)
	assert.Equal(t, "early-bird", doc.Badges[0].ID)
	assert.Equal(t, "gem", doc.Items[0].Code)
	assert.Equal(t, "collectible", doc.Items[0].Category)
}

func TestParseCatalog_Rejects(t *testing.T) {
	_, err := ParseCatalog([]byte(`{not json`))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte(`{"missions": [{"xp_reward": 5}]}`))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte(`{"items": [{"id": "x", "price_stars": -1}]}`))
	assert.Error(t, err)
}

func TestSyncOnce_Upserts(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	w := NewCatalogSyncWorker(db, staticSource(`{
		"missions": [{"code": "first", "title": "First", "xp_reward": 10},
		             {"code": "second", "title": "Second", "xp_reward": 20, "prerequisites": ["first"]}],
		"badges": [{"code": "b1", "name": "B1", "required_xp": 100}],
		"items": [{"code": "hat", "name": "Hat", "price_stars": 5, "total_supply": 3, "is_active": false}]
	}`), 0, logging.Discard())

	stats, err := w.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncStats{Missions: 2, Badges: 1, Items: 1}, stats)

	var second models.MissionDefinition
	require.NoError(t, db.First(&second, "id = ?", "second").Error)
	assert.Equal(t, []string{"first"}, []string(second.Prerequisites))
	assert.True(t, second.IsActive)

	var hat models.Item
	require.NoError(t, db.First(&hat, "id = ?", "hat").Error)
	assert.False(t, hat.IsActive)
	require.NotNil(t, hat.TotalSupply)
	assert.Equal(t, 3, *hat.TotalSupply)

	// a second sync updates in place
	w.source = staticSource(`{"missions": [{"code": "first", "title": "Renamed", "xp_reward": 15}]}`)
	_, err = w.SyncOnce(ctx)
	require.NoError(t, err)

	var first models.MissionDefinition
	require.NoError(t, db.First(&first, "id = ?", "first").Error)
	assert.Equal(t, "Renamed", first.Title)
	assert.EqualValues(t, 15, first.XPReward)

	var n int64
	require.NoError(t, db.Model(&models.MissionDefinition{}).Count(&n).Error)
	assert.EqualValues(t, 2, n)
}

func TestSyncOnce_FileSource(t *testing.T) {
	db := setupDB(t)
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"items": [{"code": "vote-basic", "name": "Vote", "category": "vote-basic"}]}`), 0o600))

	stats, err := NewCatalogSyncWorker(db, FileSource{Path: path}, 0, logging.Discard()).SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Items)

	_, err = NewCatalogSyncWorker(db, FileSource{Path: path + ".missing"}, 0, logging.Discard()).SyncOnce(context.Background())
	assert.Error(t, err)
}

func TestSyncOnce_SeedCatalog(t *testing.T) {
	db := setupDB(t)
	stats, err := NewCatalogSyncWorker(db, FileSource{Path: "../data/catalog.json"}, 0, logging.Discard()).
		SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Errors)
	assert.NotZero(t, stats.Missions)

	for _, id := range []string{"streak-7", "streak-14", "streak-30", "streak-60", "streak-90"} {
		var it models.Item
		assert.NoError(t, db.First(&it, "id = ?", id).Error, id)
	}
}

func TestSyncOnce_SourceError(t *testing.T) {
	db := setupDB(t)
	_, err := NewCatalogSyncWorker(db, failingSource{}, 0, logging.Discard()).SyncOnce(context.Background())
	assert.Error(t, err)
}

func TestSyncOnce_ReportsFailedRows(t *testing.T) {
	db := setupDB(t)

	// the second item reuses a code held by another id
	stats, err := NewCatalogSyncWorker(db, staticSource(`{
		"missions": [{"code": "hello", "title": "Hello", "is_vip": true}],
		"items": [{"id": "a", "code": "dup", "name": "A"}, {"id": "b", "code": "dup", "name": "B"}]
	}`), 0, logging.Discard()).SyncOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, SyncStats{Missions: 1, Items: 1, Errors: 1}, stats)

	var hello models.MissionDefinition
	require.NoError(t, db.First(&hello, "id = ?", "hello").Error)
	assert.True(t, hello.IsVIP)
}

func TestParseCatalog_DedupesPrerequisites(t *testing.T) {
	doc, err := ParseCatalog([]byte(`{"missions": [{"code": "c", "prerequisites": ["a", " b", "a", "", "b"]}]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, doc.Missions[0].Prerequisites)
}
