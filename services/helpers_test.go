package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"gamification-engine/config"
	"gamification-engine/database"
	"gamification-engine/logging"
	"gamification-engine/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var t0 = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestEngine(t *testing.T, tweak ...func(*config.Economy)) (*Engine, *testClock) {
	t.Helper()
	econ := config.DefaultEconomy()
	econ.ConflictBackoff = time.Millisecond
	for _, f := range tweak {
		f(&econ)
	}

	e, err := NewEngine(setupDB(t), econ, logging.Discard())
	require.NoError(t, err)

	clock := &testClock{now: t0}
	e.Now = clock.Now
	return e, clock
}

func seedUser(t *testing.T, e *Engine, id string) *models.User {
	t.Helper()
	u, created, err := e.EnsureUser(context.Background(), NewUser{ID: id, Username: id})
	require.NoError(t, err)
	require.True(t, created)
	return u
}

func seedMission(t *testing.T, e *Engine, m models.MissionDefinition) *models.MissionDefinition {
	t.Helper()
	if m.Code == "" {
		m.Code = m.ID
	}
	if m.Title == "" {
		m.Title = m.ID
	}
	if m.RequiredLevel == 0 {
		m.RequiredLevel = 1
	}
	m.IsActive = true
	require.NoError(t, e.DB.Create(&m).Error)
	return &m
}

func seedItem(t *testing.T, e *Engine, it models.Item) *models.Item {
	t.Helper()
	if it.Code == "" {
		it.Code = it.ID
	}
	if it.Name == "" {
		it.Name = it.ID
	}
	if it.Category == "" {
		it.Category = "collectible"
	}
	require.NoError(t, e.DB.Create(&it).Error)
	return &it
}

func seedBadge(t *testing.T, e *Engine, b models.Badge) *models.Badge {
	t.Helper()
	if b.Code == "" {
		b.Code = b.ID
	}
	if b.Name == "" {
		b.Name = b.ID
	}
	b.IsActive = true
	require.NoError(t, e.DB.Create(&b).Error)
	return &b
}

func reload(t *testing.T, e *Engine, id string) *models.User {
	t.Helper()
	u, err := e.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

// requireLedgerBalanced checks that the cached balance equals the ledger sum.
func requireLedgerBalanced(t *testing.T, e *Engine, id string) {
	t.Helper()
	sum, err := e.LedgerSum(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, reload(t, e, id).Stars, sum, "stars must equal credits minus debits")
}

func int64p(v int64) *int64 { return &v }
func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }
