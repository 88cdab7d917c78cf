package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/domain/auction"
	"github.com/abhinavece/player-auction-backend/internal/domain/player"
	"github.com/abhinavece/player-auction-backend/internal/domain/values"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/events"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/repository"
	"github.com/abhinavece/player-auction-backend/internal/testutil"
)

func newEngine(t *testing.T) (*Engine, repository.Store) {
	t.Helper()
	store := repository.NewMemoryStore()
	eng := New(store, events.NopPublisher{}, Options{BidRatePerTeam: 100, BidBurst: 100}, zap.NewNop())
	return eng, store
}

// TestAuctionFlow drives a full auction through the engine facade: setup,
// go-live, a bidding round settled by real timer expiries, and the
// post-auction trade window.
func TestAuctionFlow(t *testing.T) {
	ctx := context.Background()
	eng, store := newEngine(t)

	a, err := eng.CreateAuction(ctx, "Season Nine", "season-nine", "admin")
	require.NoError(t, err)

	_, err = eng.UpdateConfig(ctx, a.ID, testutil.FastConfig())
	require.NoError(t, err)

	teamA, err := eng.AddTeam(ctx, a.ID, "Team A", "TA", "hash-a")
	require.NoError(t, err)
	teamB, err := eng.AddTeam(ctx, a.ID, "Team B", "TB", "hash-b")
	require.NoError(t, err)
	for i := 1; i <= 2; i++ {
		_, err = eng.AddPlayer(ctx, a.ID, i, "Player", "batter", nil)
		require.NoError(t, err)
	}

	_, err = eng.Configure(ctx, a.ID, "admin")
	require.NoError(t, err)
	live, err := eng.GoLive(ctx, a.ID, "admin")
	require.NoError(t, err)
	require.NotNil(t, live.CurrentPlayerID)
	firstPlayer := *live.CurrentPlayerID

	res, err := eng.PlaceBid(ctx, a.ID, teamA.ID, values.NewMoneyFromInt(100))
	require.NoError(t, err)
	require.NotNil(t, res)
	_, err = eng.PlaceBid(ctx, a.ID, teamB.ID, values.NewMoneyFromInt(150))
	require.NoError(t, err)

	// The fast config runs 1-second phases; the lot settles on its own.
	require.Eventually(t, func() bool {
		p, err := store.GetPlayer(ctx, firstPlayer)
		return err == nil && p.Status == player.StatusSold
	}, 10*time.Second, 50*time.Millisecond, "going-twice expiry must settle the sale")

	sold, err := store.GetPlayer(ctx, firstPlayer)
	require.NoError(t, err)
	assert.Equal(t, teamB.ID, *sold.SoldTo, "highest bidder wins")
	assert.True(t, values.NewMoneyFromInt(150).Equal(*sold.SoldAmount))

	// Freeze the auction before the second lot settles.
	_, err = eng.Pause(ctx, a.ID, "admin")
	require.NoError(t, err)
	_, _, armed := eng.Remaining(a.ID)
	assert.False(t, armed, "pause disarms the countdown")

	_, err = eng.Resume(ctx, a.ID, "admin")
	require.NoError(t, err)

	_, err = eng.Complete(ctx, a.ID, "admin")
	require.NoError(t, err)
	_, err = eng.OpenTradeWindow(ctx, a.ID, "admin")
	require.NoError(t, err)

	snap, err := eng.Snapshot(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusTradeWindow, snap.Auction.Status)
	assert.Len(t, snap.Teams, 2)
	assert.NotEmpty(t, snap.RecentEvents)

	final, err := eng.Finalize(ctx, a.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, auction.StatusFinalized, final.Status)
}

// TestStaleExpiryDroppedAfterRearm covers the window where an expiry has
// already been posted into a busy inbox when a re-arm supersedes it: the
// queued expiry must not advance the phase.
func TestStaleExpiryDroppedAfterRearm(t *testing.T) {
	ctx := context.Background()
	eng, store := newEngine(t)

	a, _, _ := testutil.NewAuction(t, store).
		WithStatus(auction.StatusConfigured).WithTeams(2).WithPlayers(2).Build(ctx)
	_, err := eng.GoLive(ctx, a.ID, "admin")
	require.NoError(t, err)

	// Occupy the coordinator so the expiry queues instead of running.
	c := eng.registry.For(a.ID)
	started := make(chan struct{})
	release := make(chan struct{})
	c.Post("hold", func(context.Context) (interface{}, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started

	// Fire an immediate running-phase expiry into the busy inbox, then
	// re-arm the countdown the way an accepted bid does.
	eng.ArmPhase(a.ID, auction.PhaseRunning, 0)
	require.Eventually(t, func() bool {
		return len(c.inbox) == 1
	}, time.Second, 5*time.Millisecond, "expiry must queue behind the held command")
	eng.ResetBidTimer(a.ID, 5)

	close(release)
	_, err = c.Execute(ctx, "drain", func(context.Context) (interface{}, error) {
		return nil, nil
	})
	require.NoError(t, err)

	got, err := store.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.PhaseRunning, got.CurrentTimerPhase, "superseded expiry must not advance the phase")

	phase, _, ok := eng.Remaining(a.ID)
	require.True(t, ok)
	assert.Equal(t, auction.PhaseRunning, phase)
}

func TestSnapshotIncludesTimer(t *testing.T) {
	ctx := context.Background()
	eng, store := newEngine(t)

	a, _, _ := testutil.NewAuction(t, store).
		WithStatus(auction.StatusConfigured).WithTeams(2).WithPlayers(2).Build(ctx)
	_, err := eng.GoLive(ctx, a.ID, "admin")
	require.NoError(t, err)

	snap, err := eng.Snapshot(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, snap.CurrentPlayer)
	require.NotNil(t, snap.Timer)
	assert.Equal(t, string(auction.PhaseRunning), snap.Timer.Phase)
}
