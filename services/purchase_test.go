package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"gamification-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuyItem(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, e, "u1")
	seedItem(t, e, models.Item{ID: "hat", PriceStars: 30, IsActive: true})

	res, err := e.BuyItem(ctx, "u1", "hat")
	require.NoError(t, err)
	assert.EqualValues(t, 30, res.PricePaid)
	assert.EqualValues(t, 20, res.RemainingStars)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, models.ReasonItemPurchase, res.Transaction.Reason)

	_, err = e.BuyItem(ctx, "u1", "hat")
	require.ErrorIs(t, err, ErrPreconditionFailed)
	assert.Equal(t, ReasonAlreadyOwned, ReasonOf(err))
	assert.EqualValues(t, 20, reload(t, e, "u1").Stars)

	_, err = e.BuyItem(ctx, "u1", "nope")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "item_not_found", ReasonOf(err))

	requireLedgerBalanced(t, e, "u1")
}

func TestBuyItem_Declines(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, e, "u1")
	seedItem(t, e, models.Item{ID: "retired", PriceStars: 1, IsActive: false})
	seedItem(t, e, models.Item{ID: "crown", PriceStars: 500, IsActive: true})

	_, err := e.BuyItem(ctx, "u1", "retired")
	require.ErrorIs(t, err, ErrPreconditionFailed)
	assert.Equal(t, ReasonItemInactive, ReasonOf(err))

	_, err = e.BuyItem(ctx, "u1", "crown")
	require.ErrorIs(t, err, ErrInsufficientBalance)

	items, err := e.OwnedItems(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.EqualValues(t, 50, reload(t, e, "u1").Stars)
}

func TestBuyItem_FreeItemWritesNoTransaction(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, e, "u1")
	seedItem(t, e, models.Item{ID: "flyer", IsActive: true})

	res, err := e.BuyItem(ctx, "u1", "flyer")
	require.NoError(t, err)
	assert.Nil(t, res.Transaction)

	txs, err := e.RecentTransactions(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, txs, 1, "only the signup credit")
}

func TestBuyItem_SupplyCap(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	seedItem(t, e, models.Item{ID: "rare", PriceStars: 10, TotalSupply: intp(2), IsActive: true})

	const buyers = 6
	for i := range buyers {
		seedUser(t, e, fmt.Sprintf("u%d", i))
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		oks int
	)
	for i := range buyers {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := e.BuyItem(ctx, id, "rare")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
				return
			}
			assert.Equal(t, ReasonSoldOut, ReasonOf(err))
		}(fmt.Sprintf("u%d", i))
	}
	wg.Wait()

	assert.Equal(t, 2, oks)
	var owners int64
	require.NoError(t, e.DB.Model(&models.UserItem{}).Where("item_id = ?", "rare").Count(&owners).Error)
	assert.EqualValues(t, 2, owners)
}

func TestBuyItem_ConcurrentDrain(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, e, "u1")

	const items = 6
	for i := range items {
		seedItem(t, e, models.Item{ID: fmt.Sprintf("gem%d", i), PriceStars: 20, IsActive: true})
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errs []error
	)
	for i := range items {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := e.BuyItem(ctx, "u1", id)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
				return
			}
			errs = append(errs, err)
		}(fmt.Sprintf("gem%d", i))
	}
	wg.Wait()

	assert.Equal(t, 2, oks)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrInsufficientBalance)
	}
	u := reload(t, e, "u1")
	assert.EqualValues(t, 10, u.Stars)
	var owned int64
	require.NoError(t, e.DB.Model(&models.UserItem{}).Where("user_id = ?", "u1").Count(&owned).Error)
	assert.EqualValues(t, 2, owned)
	requireLedgerBalanced(t, e, "u1")
}

func TestUnlockVIP(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, e, "u1")

	_, err := e.UnlockVIP(ctx, "u1")
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.False(t, reload(t, e, "u1").HasVIPAccess)

	_, err = e.AdjustStars(ctx, "u1", 60, "top up")
	require.NoError(t, err)

	res, err := e.UnlockVIP(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.HasVIPAccess)
	assert.EqualValues(t, 10, res.RemainingStars)

	_, err = e.UnlockVIP(ctx, "u1")
	require.ErrorIs(t, err, ErrPreconditionFailed)
	assert.Equal(t, ReasonAlreadyVIP, ReasonOf(err))
	assert.EqualValues(t, 10, reload(t, e, "u1").Stars)

	requireLedgerBalanced(t, e, "u1")
}

func TestSetVIP(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, e, "u1")

	u, err := e.SetVIP(ctx, "u1", true)
	require.NoError(t, err)
	assert.True(t, u.HasVIPAccess)
	assert.True(t, reload(t, e, "u1").HasVIPAccess)

	_, err = e.SetVIP(ctx, "u1", false)
	require.NoError(t, err)
	assert.False(t, reload(t, e, "u1").HasVIPAccess)
	assert.EqualValues(t, 50, reload(t, e, "u1").Stars)
}

func TestVIPColumnNames(t *testing.T) {
	e, _ := newTestEngine(t)
	m := e.DB.Migrator()

	assert.True(t, m.HasColumn(&models.User{}, "has_vip_access"))
	assert.True(t, m.HasColumn(&models.MissionDefinition{}, "is_vip"))
}
