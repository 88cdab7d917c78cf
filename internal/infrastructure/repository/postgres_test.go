package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/domain/auction"
	domainErrors "github.com/abhinavece/player-auction-backend/internal/domain/errors"
	"github.com/abhinavece/player-auction-backend/internal/domain/event"
	"github.com/abhinavece/player-auction-backend/internal/domain/player"
	"github.com/abhinavece/player-auction-backend/internal/domain/team"
	"github.com/abhinavece/player-auction-backend/internal/domain/trade"
	"github.com/abhinavece/player-auction-backend/internal/domain/values"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/repository"
	"github.com/abhinavece/player-auction-backend/internal/testutil"
)

// TestPostgresStore exercises the SQL implementation against a disposable
// container. Subtests share one database; each works on its own auction.
func TestPostgresStore(t *testing.T) {
	pool := testutil.NewPostgresPool(t)
	store := repository.NewPostgresStore(pool, zap.NewNop())
	ctx := context.Background()

	seed := func(t *testing.T, slug string) *auction.Auction {
		t.Helper()
		a := auction.New("League "+slug, slug)
		require.NoError(t, store.CreateAuction(ctx, a))
		return a
	}

	testEvent := func(auctionID uuid.UUID, seq int64, typ event.Type) *event.ActionEvent {
		return &event.ActionEvent{
			ID:             uuid.New(),
			AuctionID:      auctionID,
			SequenceNumber: seq,
			Type:           typ,
			PerformedBy:    "test",
			CreatedAt:      time.Now().UTC(),
		}
	}

	t.Run("auction round trip", func(t *testing.T) {
		a := seed(t, "round-trip")
		assert.Equal(t, int64(1), a.Version)

		got, err := store.GetAuction(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.Name, got.Name)
		assert.Equal(t, a.Config.PurseValue.String(), got.Config.PurseValue.String())

		bySlug, err := store.GetAuctionBySlug(ctx, "round-trip")
		require.NoError(t, err)
		assert.Equal(t, a.ID, bySlug.ID)

		_, err = store.GetAuction(ctx, uuid.New())
		assert.Equal(t, "RESOURCE_NOT_FOUND", domainErrors.Code(err))

		err = store.CreateAuction(ctx, auction.New("Other", "round-trip"))
		assert.Equal(t, "DUPLICATE", domainErrors.Code(err))
	})

	t.Run("nullable columns survive a live auction", func(t *testing.T) {
		a := seed(t, "nullable")
		tm := team.New(a.ID, "Team A", "TA", values.NewMoneyFromInt(10000))
		require.NoError(t, store.CreateTeam(ctx, tm))
		p := player.New(a.ID, 7, "Player Seven", "bowler")
		require.NoError(t, store.CreatePlayer(ctx, p))

		bid := values.NewMoneyFromInt(450)
		a.Status = auction.StatusLive
		a.CurrentPlayerID = &p.ID
		a.CurrentBidAmount = &bid
		a.CurrentBidderTeamID = &tm.ID
		a.CurrentTimerPhase = auction.PhaseGoingOnce
		a.RemainingPlayerIDs = []uuid.UUID{p.ID}
		require.NoError(t, store.UpdateAuction(ctx, a))

		got, err := store.GetAuction(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, got.CurrentBidAmount)
		assert.True(t, bid.Equal(*got.CurrentBidAmount))
		assert.Equal(t, tm.ID, *got.CurrentBidderTeamID)
		assert.Equal(t, auction.PhaseGoingOnce, got.CurrentTimerPhase)
		assert.Equal(t, []uuid.UUID{p.ID}, got.RemainingPlayerIDs)
	})

	t.Run("version conflict", func(t *testing.T) {
		a := seed(t, "cas")

		first, err := store.GetAuction(ctx, a.ID)
		require.NoError(t, err)
		second, err := store.GetAuction(ctx, a.ID)
		require.NoError(t, err)

		first.Name = "Winner"
		require.NoError(t, store.UpdateAuction(ctx, first))
		assert.Equal(t, int64(2), first.Version)

		second.Name = "Loser"
		err = store.UpdateAuction(ctx, second)
		assert.Equal(t, "STALE_VERSION", domainErrors.Code(err))

		got, err := store.GetAuction(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "Winner", got.Name)
	})

	t.Run("teams", func(t *testing.T) {
		a := seed(t, "teams")
		tm := team.New(a.ID, "Team A", "TA", values.NewMoneyFromInt(10000))
		require.NoError(t, store.CreateTeam(ctx, tm))

		err := store.CreateTeam(ctx, team.New(a.ID, "Another", "TA", values.NewMoneyFromInt(10000)))
		assert.Equal(t, "DUPLICATE", domainErrors.Code(err), "short name is unique per auction")

		require.NoError(t, store.CreateTeam(ctx, team.New(a.ID, "Team B", "TB", values.NewMoneyFromInt(10000))))
		teams, err := store.FindTeamsByAuction(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, teams, 2)
		assert.Equal(t, "TA", teams[0].ShortName, "ordered by short name")

		got, err := store.GetTeam(ctx, tm.ID)
		require.NoError(t, err)
		assert.True(t, got.PurseRemaining.Equal(values.NewMoneyFromInt(10000)))
	})

	t.Run("players by status", func(t *testing.T) {
		a := seed(t, "players")
		tm := team.New(a.ID, "Team A", "TA", values.NewMoneyFromInt(10000))
		require.NoError(t, store.CreateTeam(ctx, tm))

		ps := make([]*player.Player, 3)
		for i := range ps {
			ps[i] = player.New(a.ID, i+1, "Player", "batter")
			require.NoError(t, store.CreatePlayer(ctx, ps[i]))
		}

		ps[0].MarkSold(tm.ID, values.NewMoneyFromInt(500), 1)
		require.NoError(t, store.UpdatePlayer(ctx, ps[0]))

		sold, err := store.FindPlayersByAuctionAndStatus(ctx, a.ID, player.StatusSold)
		require.NoError(t, err)
		require.Len(t, sold, 1)
		require.NotNil(t, sold[0].SoldAmount)
		assert.True(t, sold[0].SoldAmount.Equal(values.NewMoneyFromInt(500)))
		assert.Equal(t, tm.ID, *sold[0].SoldTo)

		all, err := store.FindPlayersByAuction(ctx, a.ID)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("change set rolls back as a unit", func(t *testing.T) {
		a := seed(t, "changeset")
		tm := team.New(a.ID, "Team A", "TA", values.NewMoneyFromInt(10000))
		require.NoError(t, store.CreateTeam(ctx, tm))
		p := player.New(a.ID, 1, "Player A", "batter")
		require.NoError(t, store.CreatePlayer(ctx, p))

		stale := *tm
		stale.Version = 99
		a.Name = "Should Not Land"
		err := store.ApplyChangeSet(ctx, repository.ChangeSet{
			Auction: a,
			Teams:   []*team.Team{&stale},
		})
		require.Equal(t, "STALE_VERSION", domainErrors.Code(err))

		got, err := store.GetAuction(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "League changeset", got.Name)
		assert.Equal(t, int64(1), got.Version)

		a, err = store.GetAuction(ctx, a.ID)
		require.NoError(t, err)
		a.Name = "Renamed"
		tm.PurseRemaining = tm.PurseRemaining.Sub(values.NewMoneyFromInt(500))
		p.MarkSold(tm.ID, values.NewMoneyFromInt(500), 1)
		require.NoError(t, store.ApplyChangeSet(ctx, repository.ChangeSet{
			Auction: a,
			Teams:   []*team.Team{tm},
			Players: []*player.Player{p},
			Events:  []*event.ActionEvent{testEvent(a.ID, 1, event.TypePlayerSold)},
		}))

		gotPlayer, err := store.GetPlayer(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, player.StatusSold, gotPlayer.Status)
		assert.Equal(t, int64(2), gotPlayer.Version)

		last, err := store.LastSequence(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), last)
	})

	t.Run("event journal", func(t *testing.T) {
		a := seed(t, "events")

		require.NoError(t, store.AppendEvent(ctx, testEvent(a.ID, 1, event.TypeAuctionStarted)))
		require.NoError(t, store.AppendEvent(ctx, testEvent(a.ID, 2, event.TypePhaseAdvanced)))
		require.NoError(t, store.AppendEvent(ctx, testEvent(a.ID, 3, event.TypePhaseAdvanced)))

		err := store.AppendEvent(ctx, testEvent(a.ID, 3, event.TypePlayerSold))
		assert.Equal(t, "DUPLICATE", domainErrors.Code(err), "sequence numbers are unique per auction")

		tail, err := store.TailEvents(ctx, a.ID, 2)
		require.NoError(t, err)
		require.Len(t, tail, 2)
		assert.Equal(t, int64(3), tail[0].SequenceNumber, "tail is newest first")
		assert.Equal(t, int64(2), tail[1].SequenceNumber)

		last, err := store.LastSequence(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), last)
	})

	t.Run("bid audits", func(t *testing.T) {
		a := seed(t, "audits")
		playerID, teamID := uuid.New(), uuid.New()

		for i, reason := range []string{"", "bid_not_next_increment"} {
			typ := event.BidAuditAccepted
			if reason != "" {
				typ = event.BidAuditRejected
			}
			require.NoError(t, store.AppendBidAudit(ctx, &event.BidAudit{
				ID:              uuid.New(),
				AuctionID:       a.ID,
				PlayerID:        playerID,
				TeamID:          teamID,
				AttemptedAmount: values.NewMoneyFromInt(int64(100 * (i + 1))),
				Type:            typ,
				Reason:          reason,
				Timestamp:       time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
			}))
		}

		audits, err := store.ListBidAudits(ctx, a.ID, 1)
		require.NoError(t, err)
		require.Len(t, audits, 1)
		assert.Equal(t, event.BidAuditRejected, audits[0].Type, "newest first")
		assert.Equal(t, "bid_not_next_increment", audits[0].Reason)
	})

	t.Run("open trades by player", func(t *testing.T) {
		a := seed(t, "trades")
		locked := uuid.New()
		give := []trade.TradePlayer{{PlayerID: locked, Name: "P1", SoldAmount: values.NewMoneyFromInt(300)}}
		want := []trade.TradePlayer{{PlayerID: uuid.New(), Name: "P2", SoldAmount: values.NewMoneyFromInt(300)}}

		open := trade.New(a.ID, uuid.New(), uuid.New(), give, want, true, "swap?")
		require.NoError(t, store.CreateTrade(ctx, open))

		closed := trade.New(a.ID, uuid.New(), uuid.New(), give, want, false, "")
		closed.Transition(trade.StatusWithdrawn, "changed mind")
		require.NoError(t, store.CreateTrade(ctx, closed))

		got, err := store.FindOpenTradesForPlayer(ctx, a.ID, locked)
		require.NoError(t, err)
		require.Len(t, got, 1, "terminal trades release their player locks")
		assert.Equal(t, open.ID, got[0].ID)
		assert.Equal(t, "swap?", got[0].Message)
		require.Len(t, got[0].InitiatorPlayers, 1)
		assert.True(t, got[0].InitiatorPlayers[0].SoldAmount.Equal(values.NewMoneyFromInt(300)))

		none, err := store.FindOpenTradesForPlayer(ctx, a.ID, uuid.New())
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("trade status transitions persist", func(t *testing.T) {
		a := seed(t, "trade-status")
		give := []trade.TradePlayer{{PlayerID: uuid.New(), Name: "P1", SoldAmount: values.NewMoneyFromInt(300)}}
		want := []trade.TradePlayer{{PlayerID: uuid.New(), Name: "P2", SoldAmount: values.NewMoneyFromInt(400)}}

		tr := trade.New(a.ID, uuid.New(), uuid.New(), give, want, true, "")
		require.NoError(t, store.CreateTrade(ctx, tr))

		tr.Transition(trade.StatusBothAgreed, "")
		require.NoError(t, store.UpdateTrade(ctx, tr))
		tr.Transition(trade.StatusExecuted, "")
		require.NoError(t, store.UpdateTrade(ctx, tr))

		got, err := store.GetTrade(ctx, tr.ID)
		require.NoError(t, err)
		assert.Equal(t, trade.StatusExecuted, got.Status)
		assert.NotNil(t, got.ExecutedAt)
		assert.Equal(t, int64(3), got.Version)

		byStatus, err := store.FindTradesByAuctionAndStatus(ctx, a.ID, trade.StatusExecuted)
		require.NoError(t, err)
		require.Len(t, byStatus, 1)
		assert.Equal(t, tr.ID, byStatus[0].ID)
	})
}
