package bidding

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/domain/auction"
	domainErrors "github.com/abhinavece/player-auction-backend/internal/domain/errors"
	"github.com/abhinavece/player-auction-backend/internal/domain/event"
	"github.com/abhinavece/player-auction-backend/internal/domain/team"
	"github.com/abhinavece/player-auction-backend/internal/domain/values"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/events"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/repository"
	"github.com/abhinavece/player-auction-backend/internal/service/journal"
	"github.com/abhinavece/player-auction-backend/internal/testutil"
)

type stubTimers struct {
	resets []int
}

func (s *stubTimers) ResetBidTimer(_ uuid.UUID, seconds int) {
	s.resets = append(s.resets, seconds)
}

type capturePublisher struct {
	events.NopPublisher
	teamMsgs []events.Message
}

func (c *capturePublisher) ToTeam(_, _ uuid.UUID, msg events.Message) {
	c.teamMsgs = append(c.teamMsgs, msg)
}

type arbiterEnv struct {
	store   repository.Store
	arbiter *Arbiter
	timers  *stubTimers
	pub     *capturePublisher
}

func newArbiterEnv(t *testing.T, perTeamRate float64, burst int) *arbiterEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	timers := &stubTimers{}
	pub := &capturePublisher{}
	jrnl := journal.New(store, zap.NewNop())
	return &arbiterEnv{
		store:   store,
		arbiter: NewArbiter(store, jrnl, timers, pub, perTeamRate, burst, zap.NewNop()),
		timers:  timers,
		pub:     pub,
	}
}

// liveAuction builds a live auction with the first player on the block.
func liveAuction(t *testing.T, env *arbiterEnv, teams, players int) (*auction.Auction, []*team.Team) {
	t.Helper()
	ctx := context.Background()
	a, tms, ps := testutil.NewAuction(t, env.store).
		WithStatus(auction.StatusLive).
		WithTeams(teams).
		WithPlayers(players).
		Build(ctx)

	a.CurrentPlayerID = &ps[0].ID
	a.CurrentTimerPhase = auction.PhaseRunning
	require.NoError(t, env.store.UpdateAuction(ctx, a))
	return a, tms
}

func TestPlaceBidAccepted(t *testing.T) {
	ctx := context.Background()
	env := newArbiterEnv(t, 100, 100)
	a, teams := liveAuction(t, env, 2, 1)

	res, err := env.arbiter.PlaceBid(ctx, a.ID, teams[0].ID, values.NewMoneyFromInt(100))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, event.TypeBidAccepted, res.Event.Type)

	got, err := env.store.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentBidAmount)
	assert.True(t, values.NewMoneyFromInt(100).Equal(*got.CurrentBidAmount))
	assert.Equal(t, teams[0].ID, *got.CurrentBidderTeamID)

	require.Len(t, env.timers.resets, 1, "accepted bid restarts the countdown")
	assert.Equal(t, a.Config.BidResetTimer, env.timers.resets[0])

	audits, err := env.store.ListBidAudits(ctx, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, event.BidAuditAccepted, audits[0].Type)
}

func TestPlaceBidOverbidRaisesByIncrement(t *testing.T) {
	ctx := context.Background()
	env := newArbiterEnv(t, 100, 100)
	a, teams := liveAuction(t, env, 2, 1)

	_, err := env.arbiter.PlaceBid(ctx, a.ID, teams[0].ID, values.NewMoneyFromInt(100))
	require.NoError(t, err)

	// Increment is 50 below 1000.
	res, err := env.arbiter.PlaceBid(ctx, a.ID, teams[1].ID, values.NewMoneyFromInt(150))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Event.SequenceNumber)
	assert.Equal(t, teams[1].ID, *res.Auction.CurrentBidderTeamID)
}

func TestPlaceBidRejections(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, env *arbiterEnv) (uuid.UUID, uuid.UUID, values.Money)
		reason string
	}{
		{
			name: "auction not live",
			setup: func(t *testing.T, env *arbiterEnv) (uuid.UUID, uuid.UUID, values.Money) {
				ctx := context.Background()
				a, tms, _ := testutil.NewAuction(t, env.store).
					WithStatus(auction.StatusPaused).WithTeams(1).WithPlayers(1).Build(ctx)
				return a.ID, tms[0].ID, values.NewMoneyFromInt(100)
			},
			reason: ReasonAuctionNotLive,
		},
		{
			name: "no player on the block",
			setup: func(t *testing.T, env *arbiterEnv) (uuid.UUID, uuid.UUID, values.Money) {
				ctx := context.Background()
				a, tms, _ := testutil.NewAuction(t, env.store).
					WithStatus(auction.StatusLive).WithTeams(1).WithPlayers(1).Build(ctx)
				return a.ID, tms[0].ID, values.NewMoneyFromInt(100)
			},
			reason: ReasonNoCurrentPlayer,
		},
		{
			name: "deactivated team",
			setup: func(t *testing.T, env *arbiterEnv) (uuid.UUID, uuid.UUID, values.Money) {
				ctx := context.Background()
				a, tms := liveAuction(t, env, 1, 1)
				tms[0].IsActive = false
				require.NoError(t, env.store.UpdateTeam(ctx, tms[0]))
				return a.ID, tms[0].ID, values.NewMoneyFromInt(100)
			},
			reason: ReasonTeamNotEligible,
		},
		{
			name: "already highest bidder",
			setup: func(t *testing.T, env *arbiterEnv) (uuid.UUID, uuid.UUID, values.Money) {
				ctx := context.Background()
				a, tms := liveAuction(t, env, 1, 1)
				_, err := env.arbiter.PlaceBid(ctx, a.ID, tms[0].ID, values.NewMoneyFromInt(100))
				require.NoError(t, err)
				return a.ID, tms[0].ID, values.NewMoneyFromInt(150)
			},
			reason: ReasonAlreadyHighestBidder,
		},
		{
			name: "squad full",
			setup: func(t *testing.T, env *arbiterEnv) (uuid.UUID, uuid.UUID, values.Money) {
				ctx := context.Background()
				cfg := testutil.FastConfig()
				cfg.MaxSquadSize = 1
				a, tms, ps := testutil.NewAuction(t, env.store).WithConfig(cfg).
					WithStatus(auction.StatusLive).WithTeams(1).WithPlayers(2).Build(ctx)
				a.CurrentPlayerID = &ps[1].ID
				require.NoError(t, env.store.UpdateAuction(ctx, a))
				tms[0].AddLot(ps[0].ID, values.NewMoneyFromInt(100), 1)
				require.NoError(t, env.store.UpdateTeam(ctx, tms[0]))
				return a.ID, tms[0].ID, values.NewMoneyFromInt(100)
			},
			reason: ReasonSquadFull,
		},
		{
			name: "amount skips the ladder",
			setup: func(t *testing.T, env *arbiterEnv) (uuid.UUID, uuid.UUID, values.Money) {
				a, tms := liveAuction(t, env, 1, 1)
				return a.ID, tms[0].ID, values.NewMoneyFromInt(175)
			},
			reason: ReasonBidNotNextIncrement,
		},
		{
			name: "purse cannot cover remaining squad slots",
			setup: func(t *testing.T, env *arbiterEnv) (uuid.UUID, uuid.UUID, values.Money) {
				ctx := context.Background()
				cfg := testutil.FastConfig()
				cfg.MinSquadSize = 3
				cfg.PurseValue = values.NewMoneyFromInt(250)
				a, tms, ps := testutil.NewAuction(t, env.store).WithConfig(cfg).
					WithStatus(auction.StatusLive).WithTeams(1).WithPlayers(3).Build(ctx)
				a.CurrentPlayerID = &ps[0].ID
				require.NoError(t, env.store.UpdateAuction(ctx, a))
				// 250 - 100 leaves 150, short of the 200 reserve for two more slots.
				return a.ID, tms[0].ID, values.NewMoneyFromInt(100)
			},
			reason: ReasonMinSquadUnaffordable,
		},
		{
			name: "insufficient purse",
			setup: func(t *testing.T, env *arbiterEnv) (uuid.UUID, uuid.UUID, values.Money) {
				ctx := context.Background()
				cfg := testutil.FastConfig()
				cfg.PurseValue = values.NewMoneyFromInt(120)
				a, tms, ps := testutil.NewAuction(t, env.store).WithConfig(cfg).
					WithStatus(auction.StatusLive).WithTeams(2).WithPlayers(1).Build(ctx)
				a.CurrentPlayerID = &ps[0].ID
				require.NoError(t, env.store.UpdateAuction(ctx, a))
				_, err := env.arbiter.PlaceBid(ctx, a.ID, tms[1].ID, values.NewMoneyFromInt(100))
				require.NoError(t, err)
				// Next rung is 150, past the 120 purse.
				return a.ID, tms[0].ID, values.NewMoneyFromInt(150)
			},
			reason: ReasonInsufficientPurse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := newArbiterEnv(t, 100, 100)
			auctionID, teamID, amount := tt.setup(t, env)

			before, err := env.store.GetAuction(ctx, auctionID)
			require.NoError(t, err)
			timerResets := len(env.timers.resets)

			res, err := env.arbiter.PlaceBid(ctx, auctionID, teamID, amount)
			assert.Nil(t, res)
			require.Error(t, err)
			assert.Equal(t, tt.reason, domainErrors.Code(err))

			// Rejections leave public state and the countdown untouched.
			after, err := env.store.GetAuction(ctx, auctionID)
			require.NoError(t, err)
			assert.Equal(t, before.Version, after.Version)
			assert.Len(t, env.timers.resets, timerResets)

			// The reason goes privately to the bidding team.
			require.NotEmpty(t, env.pub.teamMsgs)
			last := env.pub.teamMsgs[len(env.pub.teamMsgs)-1]
			assert.Equal(t, "bid_rejected", last.Type)

			audits, err := env.store.ListBidAudits(ctx, auctionID, 1)
			require.NoError(t, err)
			require.NotEmpty(t, audits)
			assert.Equal(t, event.BidAuditRejected, audits[0].Type)
			assert.Equal(t, tt.reason, audits[0].Reason)
		})
	}
}

func TestPlaceBidRateLimited(t *testing.T) {
	ctx := context.Background()
	env := newArbiterEnv(t, 0.001, 1)
	a, teams := liveAuction(t, env, 2, 1)

	_, err := env.arbiter.PlaceBid(ctx, a.ID, teams[0].ID, values.NewMoneyFromInt(100))
	require.NoError(t, err)

	_, err = env.arbiter.PlaceBid(ctx, a.ID, teams[0].ID, values.NewMoneyFromInt(150))
	require.Error(t, err)
	assert.Equal(t, ReasonRateLimited, domainErrors.Code(err))

	// Throttled attempts never reach arbitration, so no audit row.
	audits, err := env.store.ListBidAudits(ctx, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, event.BidAuditAccepted, audits[0].Type)

	// A different team is unaffected by the throttled one.
	_, err = env.arbiter.PlaceBid(ctx, a.ID, teams[1].ID, values.NewMoneyFromInt(150))
	assert.NoError(t, err)
}
