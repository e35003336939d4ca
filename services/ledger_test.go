package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"gamification-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupBonusIsLedgered(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, e, "u1")

	u := reload(t, e, "u1")
	assert.EqualValues(t, e.Economy.SignupBonusStars, u.Stars)

	txs, err := e.RecentTransactions(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.ReasonSignupBonus, txs[0].Reason)
	assert.Equal(t, models.StarCredit, txs[0].Type)
	assert.EqualValues(t, u.Stars, txs[0].BalanceAfter)
	requireLedgerBalanced(t, e, "u1")
}

func TestAdjustStars(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, e, "u1")

	entry, err := e.AdjustStars(ctx, "u1", 25, "goodwill")
	require.NoError(t, err)
	assert.EqualValues(t, 75, entry.BalanceAfter)

	entry, err = e.AdjustStars(ctx, "u1", -70, "chargeback")
	require.NoError(t, err)
	assert.Equal(t, models.StarDebit, entry.Type)
	assert.EqualValues(t, 5, entry.BalanceAfter)

	_, err = e.AdjustStars(ctx, "u1", -6, "too much")
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, "insufficient_stars", ReasonOf(err))
	assert.EqualValues(t, 5, reload(t, e, "u1").Stars, "failed debit leaves the balance alone")

	_, err = e.AdjustStars(ctx, "u1", 0, "")
	require.ErrorIs(t, err, ErrInvalidArgument)

	requireLedgerBalanced(t, e, "u1")
}

func TestSpendStars(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, e, "u1")

	entry, err := e.SpendStars(ctx, "u1", 20, "sticker")
	require.NoError(t, err)
	assert.Equal(t, models.ReasonSpend, entry.Reason)
	assert.EqualValues(t, 30, entry.BalanceAfter)

	_, err = e.SpendStars(ctx, "u1", -1, "")
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = e.SetStarsEnabled(ctx, "u1", false)
	require.NoError(t, err)
	_, err = e.SpendStars(ctx, "u1", 1, "blocked")
	require.ErrorIs(t, err, ErrPreconditionFailed)
	assert.Equal(t, ReasonStarsDisabled, ReasonOf(err))

	requireLedgerBalanced(t, e, "u1")
}

func TestTransactionsSince(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, e, "u1")

	mark := clock.Now()
	clock.Advance(time.Second)
	_, err := e.AdjustStars(ctx, "u1", 5, "later")
	require.NoError(t, err)

	txs, err := e.TransactionsSince(ctx, "u1", LedgerCursor{At: mark.Add(time.Nanosecond)})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.EqualValues(t, 5, txs[0].Amount)
}

func TestLedgerCursor_SameTimestamp(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, e, "u1")

	// the clock is frozen, so every entry below shares one created_at
	cursor, err := e.LedgerHead(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cursor.IDs, 1, "signup bonus is already behind the head")

	txs, err := e.TransactionsSince(ctx, "u1", cursor)
	require.NoError(t, err)
	assert.Empty(t, txs)

	for i := range 3 {
		_, err := e.AdjustStars(ctx, "u1", int64(i+1), "tied")
		require.NoError(t, err)

		txs, err := e.TransactionsSince(ctx, "u1", cursor)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.EqualValues(t, i+1, txs[0].Amount)
		cursor.Advance(txs)
	}
	assert.Len(t, cursor.IDs, 4)
}

func TestUnknownUser(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.AdjustStars(context.Background(), "ghost", 5, "")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "user_not_found", ReasonOf(err))
}

func TestSpendStars_ConcurrentDrain(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, e, "u1")

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errs []error
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.SpendStars(ctx, "u1", 15, "drain")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
				return
			}
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	// 50 signup stars cover three spends of 15
	assert.Equal(t, 3, oks)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrInsufficientBalance)
	}
	assert.EqualValues(t, 5, reload(t, e, "u1").Stars)
	requireLedgerBalanced(t, e, "u1")
}
