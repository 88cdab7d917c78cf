package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/abhinavece/player-auction-backend/internal/domain/auction"
	"github.com/abhinavece/player-auction-backend/internal/domain/event"
	"github.com/abhinavece/player-auction-backend/internal/domain/player"
	"github.com/abhinavece/player-auction-backend/internal/domain/team"
	"github.com/abhinavece/player-auction-backend/internal/domain/trade"
)

// Store is the auction state store. Writes are conditional on the entity
// Version read by the caller; a mismatch fails with a stale_version error
// and no partial effect. Composite operations are all-or-none.
type Store interface {
	// Auctions
	CreateAuction(ctx context.Context, a *auction.Auction) error
	GetAuction(ctx context.Context, id uuid.UUID) (*auction.Auction, error)
	GetAuctionBySlug(ctx context.Context, slug string) (*auction.Auction, error)
	ListAuctions(ctx context.Context) ([]*auction.Auction, error)
	// UpdateAuction is the compare-and-swap update guarding the dynamic
	// bidding fields against lost updates.
	UpdateAuction(ctx context.Context, a *auction.Auction) error

	// Teams
	CreateTeam(ctx context.Context, t *team.Team) error
	GetTeam(ctx context.Context, id uuid.UUID) (*team.Team, error)
	FindTeamsByAuction(ctx context.Context, auctionID uuid.UUID) ([]*team.Team, error)
	UpdateTeam(ctx context.Context, t *team.Team) error

	// Players
	CreatePlayer(ctx context.Context, p *player.Player) error
	GetPlayer(ctx context.Context, id uuid.UUID) (*player.Player, error)
	FindPlayersByAuction(ctx context.Context, auctionID uuid.UUID) ([]*player.Player, error)
	FindPlayersByAuctionAndStatus(ctx context.Context, auctionID uuid.UUID, status player.Status) ([]*player.Player, error)
	UpdatePlayer(ctx context.Context, p *player.Player) error

	// AssignPlayerToTeam commits a sale: player marked sold, team purse
	// charged and lot appended, auction dynamic fields cleared, journal
	// event appended. All or none.
	AssignPlayerToTeam(ctx context.Context, cs ChangeSet) error

	// ApplyChangeSet persists an arbitrary set of mutated entities and
	// journal appends atomically, each guarded by its Version.
	ApplyChangeSet(ctx context.Context, cs ChangeSet) error

	// Events
	AppendEvent(ctx context.Context, ev *event.ActionEvent) error
	LastSequence(ctx context.Context, auctionID uuid.UUID) (int64, error)
	TailEvents(ctx context.Context, auctionID uuid.UUID, k int) ([]*event.ActionEvent, error)

	// Bid audit log
	AppendBidAudit(ctx context.Context, a *event.BidAudit) error
	ListBidAudits(ctx context.Context, auctionID uuid.UUID, limit int) ([]*event.BidAudit, error)

	// Trades
	CreateTrade(ctx context.Context, t *trade.Trade) error
	GetTrade(ctx context.Context, id uuid.UUID) (*trade.Trade, error)
	FindTradesByAuction(ctx context.Context, auctionID uuid.UUID) ([]*trade.Trade, error)
	FindTradesByAuctionAndStatus(ctx context.Context, auctionID uuid.UUID, statuses ...trade.Status) ([]*trade.Trade, error)
	// FindOpenTradesForPlayer returns trades in an open status that include
	// the player on either side. Backs the asymmetric lock checks.
	FindOpenTradesForPlayer(ctx context.Context, auctionID, playerID uuid.UUID) ([]*trade.Trade, error)
	UpdateTrade(ctx context.Context, t *trade.Trade) error
}

// ChangeSet groups mutated entities committed in one atomic write. Nil
// fields are skipped. Events are appended in slice order.
type ChangeSet struct {
	Auction *auction.Auction
	Teams   []*team.Team
	Players []*player.Player
	Trades  []*trade.Trade
	Events  []*event.ActionEvent
	Audits  []*event.BidAudit
}
