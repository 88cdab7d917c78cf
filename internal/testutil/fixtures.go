package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/abhinavece/player-auction-backend/internal/domain/auction"
	"github.com/abhinavece/player-auction-backend/internal/domain/player"
	"github.com/abhinavece/player-auction-backend/internal/domain/team"
	"github.com/abhinavece/player-auction-backend/internal/domain/values"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/repository"
)

// FastConfig returns a bidding configuration with sub-second timers so
// lifecycle tests do not wait on real countdowns.
func FastConfig() auction.Config {
	cfg := auction.DefaultConfig()
	cfg.BasePrice = values.NewMoneyFromInt(100)
	cfg.PurseValue = values.NewMoneyFromInt(10000)
	cfg.BidIncrementTiers = []auction.IncrementTier{
		{Threshold: values.Zero(), Increment: values.NewMoneyFromInt(50)},
		{Threshold: values.NewMoneyFromInt(1000), Increment: values.NewMoneyFromInt(100)},
	}
	cfg.TimerDuration = 1
	cfg.BidResetTimer = 1
	cfg.GoingOnceTimer = 1
	cfg.GoingTwiceTimer = 1
	cfg.MinSquadSize = 1
	cfg.MaxSquadSize = 5
	return cfg
}

// AuctionBuilder assembles a store-backed auction with teams and players
// for service tests.
type AuctionBuilder struct {
	t     *testing.T
	store repository.Store

	auction *auction.Auction
	teams   []*team.Team
	players []*player.Player
}

// NewAuction starts a builder on a draft auction with the fast config.
func NewAuction(t *testing.T, store repository.Store) *AuctionBuilder {
	t.Helper()
	a := auction.New("Test Auction", "test-auction-"+uuid.NewString()[:8])
	a.Config = FastConfig()
	return &AuctionBuilder{t: t, store: store, auction: a}
}

// WithConfig overrides the auction configuration.
func (b *AuctionBuilder) WithConfig(cfg auction.Config) *AuctionBuilder {
	b.auction.Config = cfg
	return b
}

// WithStatus sets the starting status directly, bypassing transitions.
func (b *AuctionBuilder) WithStatus(status auction.Status) *AuctionBuilder {
	b.auction.Status = status
	return b
}

// WithTeams adds n teams named Team 1..n.
func (b *AuctionBuilder) WithTeams(n int) *AuctionBuilder {
	for i := 0; i < n; i++ {
		tm := team.New(b.auction.ID,
			"Team "+string(rune('A'+i)),
			"T"+string(rune('A'+i)),
			b.auction.Config.PurseValue)
		b.teams = append(b.teams, tm)
	}
	return b
}

// WithPlayers adds n pool players numbered 1..n.
func (b *AuctionBuilder) WithPlayers(n int) *AuctionBuilder {
	for i := 0; i < n; i++ {
		p := player.New(b.auction.ID, i+1, "Player "+string(rune('A'+i)), "batter")
		b.players = append(b.players, p)
	}
	return b
}

// Build persists everything and returns the created entities.
func (b *AuctionBuilder) Build(ctx context.Context) (*auction.Auction, []*team.Team, []*player.Player) {
	b.t.Helper()
	require.NoError(b.t, b.store.CreateAuction(ctx, b.auction))
	for _, tm := range b.teams {
		require.NoError(b.t, b.store.CreateTeam(ctx, tm))
	}
	for _, p := range b.players {
		require.NoError(b.t, b.store.CreatePlayer(ctx, p))
	}
	return b.auction, b.teams, b.players
}
