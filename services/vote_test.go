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

func seedProposal(t *testing.T, e *Engine, title string, ttl time.Duration) *models.Proposal {
	t.Helper()
	p, err := e.CreateProposal(context.Background(), NewProposal{
		Title:   title,
		EndDate: e.now().Add(ttl),
	})
	require.NoError(t, err)
	return p
}

func TestVotePower(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, e, "u1")
	seedItem(t, e, models.Item{ID: "council", Category: models.ItemCategoryVotePremium, PriceStars: 20, IsActive: true})
	seedItem(t, e, models.Item{ID: "citizen", Category: models.ItemCategoryVoteBasic, PriceStars: 10, IsActive: true})
	seedItem(t, e, models.Item{ID: "hat", PriceStars: 5, IsActive: true})

	power, err := e.VotePower(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, power)

	for _, id := range []string{"council", "citizen", "hat"} {
		_, err := e.BuyItem(ctx, "u1", id)
		require.NoError(t, err)
	}

	power, err = e.VotePower(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1+5+1, power)
}

func TestVote(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, e, "u1")
	seedUser(t, e, "u2")
	seedItem(t, e, models.Item{ID: "council", Category: models.ItemCategoryVotePremium, IsActive: true})
	_, err := e.BuyItem(ctx, "u1", "council")
	require.NoError(t, err)

	p := seedProposal(t, e, "More missions", time.Hour)

	res, err := e.Vote(ctx, "u1", p.ID, models.VoteYes)
	require.NoError(t, err)
	assert.EqualValues(t, 6, res.Vote.Power)
	assert.EqualValues(t, 6, res.Proposal.YesPower)

	_, err = e.Vote(ctx, "u1", p.ID, models.VoteNo)
	require.ErrorIs(t, err, ErrPreconditionFailed)
	assert.Equal(t, ReasonAlreadyVoted, ReasonOf(err))

	res, err = e.Vote(ctx, "u2", p.ID, models.VoteNo)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Proposal.NoPower)

	var stored models.Proposal
	require.NoError(t, e.DB.First(&stored, "id = ?", p.ID).Error)
	assert.EqualValues(t, 6, stored.YesPower, "rejected vote leaves the tally alone")
	assert.EqualValues(t, 1, stored.NoPower)

	v, err := e.UserVote(ctx, "u1", p.ID)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, models.VoteYes, v.Choice)

	v, err = e.UserVote(ctx, "u1", "other")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestVote_ConcurrentSameUser(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, e, "u1")
	p := seedProposal(t, e, "Race", time.Hour)

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
			_, err := e.Vote(ctx, "u1", p.ID, models.VoteYes)
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

	assert.Equal(t, 1, oks)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrPreconditionFailed)
	}

	got, err := e.Catalog.Proposal(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.YesPower)
	assert.Zero(t, got.NoPower)

	var votes int64
	require.NoError(t, e.DB.Model(&models.Vote{}).Where("proposal_id = ?", p.ID).Count(&votes).Error)
	assert.EqualValues(t, 1, votes)
}

func TestCloseProposal(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, e, "u1")
	p := seedProposal(t, e, "Withdrawn", time.Hour)

	_, err := e.Vote(ctx, "u1", p.ID, models.VoteYes)
	require.NoError(t, err)

	closed, err := e.CloseProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalClosed, closed.Status)
	require.NotNil(t, closed.FinalizedAt)
	assert.EqualValues(t, 1, closed.YesPower)

	_, err = e.CloseProposal(ctx, p.ID)
	require.ErrorIs(t, err, ErrPreconditionFailed)
	assert.Equal(t, ReasonProposalNotActive, ReasonOf(err))

	_, err = e.CloseProposal(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	seedUser(t, e, "u2")
	_, err = e.Vote(ctx, "u2", p.ID, models.VoteNo)
	require.ErrorIs(t, err, ErrPreconditionFailed)

	// closed proposals are skipped by the finalizer
	clock.Advance(2 * time.Hour)
	summary, err := e.FinalizeExpiredProposals(ctx)
	require.NoError(t, err)
	assert.Equal(t, FinalizeSummary{}, summary)

	got, err := e.Catalog.Proposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalClosed, got.Status)
}

func TestVote_Rejections(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, e, "u1")
	p := seedProposal(t, e, "Short", time.Minute)

	_, err := e.Vote(ctx, "u1", p.ID, models.VoteChoice("maybe"))
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = e.Vote(ctx, "u1", "missing", models.VoteYes)
	require.ErrorIs(t, err, ErrNotFound)

	clock.Advance(2 * time.Minute)
	_, err = e.Vote(ctx, "u1", p.ID, models.VoteYes)
	require.ErrorIs(t, err, ErrPreconditionFailed)
	assert.Equal(t, ReasonProposalExpired, ReasonOf(err))
}

func TestCreateProposal_Validation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.CreateProposal(ctx, NewProposal{Title: "  ", EndDate: e.now().Add(time.Hour)})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = e.CreateProposal(ctx, NewProposal{Title: "Past", EndDate: e.now().Add(-time.Hour)})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestFinalizeExpiredProposals(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, e, "u1")

	yes := seedProposal(t, e, "Yes wins", time.Hour)
	tie := seedProposal(t, e, "Nobody voted", time.Hour)
	later := seedProposal(t, e, "Still open", 48*time.Hour)

	_, err := e.Vote(ctx, "u1", yes.ID, models.VoteYes)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	summary, err := e.FinalizeExpiredProposals(ctx)
	require.NoError(t, err)
	assert.Equal(t, FinalizeSummary{Passed: 1, Rejected: 1}, summary)

	got, err := e.Catalog.Proposal(ctx, yes.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalPassed, got.Status)
	require.NotNil(t, got.FinalizedAt)

	got, err = e.Catalog.Proposal(ctx, tie.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalRejected, got.Status)

	got, err = e.Catalog.Proposal(ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalActive, got.Status)

	_, err = e.Vote(ctx, "u1", yes.ID, models.VoteNo)
	require.ErrorIs(t, err, ErrPreconditionFailed)
	assert.Equal(t, ReasonProposalNotActive, ReasonOf(err))

	summary, err = e.FinalizeExpiredProposals(ctx)
	require.NoError(t, err)
	assert.Equal(t, FinalizeSummary{}, summary, "finalizing is idempotent")
}

func TestStartProposalFinalizer(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := seedProposal(t, e, "Scheduled", time.Minute)
	clock.Advance(time.Hour)

	sched, err := e.StartProposalFinalizer(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = sched.Shutdown() }()

	require.Eventually(t, func() bool {
		got, err := e.Catalog.Proposal(ctx, p.ID)
		return err == nil && got.Status != models.ProposalActive
	}, 3*time.Second, 20*time.Millisecond)
}
