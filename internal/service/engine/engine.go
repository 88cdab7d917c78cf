package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/domain/auction"
	"github.com/abhinavece/player-auction-backend/internal/domain/event"
	"github.com/abhinavece/player-auction-backend/internal/domain/player"
	"github.com/abhinavece/player-auction-backend/internal/domain/team"
	"github.com/abhinavece/player-auction-backend/internal/domain/trade"
	"github.com/abhinavece/player-auction-backend/internal/domain/values"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/events"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/repository"
	"github.com/abhinavece/player-auction-backend/internal/metrics"
	"github.com/abhinavece/player-auction-backend/internal/service/bidding"
	"github.com/abhinavece/player-auction-backend/internal/service/journal"
	"github.com/abhinavece/player-auction-backend/internal/service/lifecycle"
	"github.com/abhinavece/player-auction-backend/internal/service/trading"
)

// Options tunes the engine.
type Options struct {
	// BidRatePerTeam is accepted bid attempts per second per team.
	BidRatePerTeam float64
	// BidBurst is the short-burst allowance on top of the rate.
	BidBurst int
	// Metrics receives command timings when set.
	Metrics *metrics.Registry
}

// Engine is the composition root of the auction core. It owns the timer
// manager and the coordinator registry and routes every state-mutating
// operation through the owning auction's coordinator, giving each auction
// a strict FIFO total order of mutations.
type Engine struct {
	store     repository.Store
	registry  *Registry
	timers    *TimerManager
	publisher events.Publisher
	metrics   *metrics.Registry
	logger    *zap.Logger

	lifecycle *lifecycle.Service
	arbiter   *bidding.Arbiter
	trading   *trading.Service
}

// New builds the engine and its services over the given store.
func New(store repository.Store, publisher events.Publisher, opts Options, logger *zap.Logger) *Engine {
	e := &Engine{
		store:     store,
		publisher: publisher,
		metrics:   opts.Metrics,
		logger:    logger,
	}
	e.timers = NewTimerManager(publisher, logger)
	e.registry = NewRegistry(publisher, logger)

	jrnl := journal.New(store, logger)
	e.lifecycle = lifecycle.New(store, jrnl, e, publisher, logger)
	e.arbiter = bidding.NewArbiter(store, jrnl, e, publisher, opts.BidRatePerTeam, opts.BidBurst, logger)
	e.trading = trading.New(store, jrnl, publisher, logger)
	return e
}

// ArmPhase schedules a phase countdown whose expiry is posted back into
// the coordinator inbox, never run inline on the timer goroutine.
func (e *Engine) ArmPhase(auctionID uuid.UUID, phase auction.TimerPhase, seconds int) {
	e.timers.Arm(auctionID, phase, time.Duration(seconds)*time.Second, func(exp TimerExpiry) {
		e.registry.For(exp.AuctionID).Post("phase_expiry", func(ctx context.Context) (interface{}, error) {
			// A re-arm or disarm while this expiry sat in the inbox
			// advances the generation; only the latest arming may run.
			if e.timers.Generation(exp.AuctionID) != exp.Generation {
				return nil, nil
			}
			return nil, e.lifecycle.HandlePhaseExpiry(ctx, exp.AuctionID, exp.Phase)
		})
	})
}

// Disarm cancels the auction's countdown.
func (e *Engine) Disarm(auctionID uuid.UUID) {
	e.timers.Disarm(auctionID)
}

// Remaining reports the armed phase and time left.
func (e *Engine) Remaining(auctionID uuid.UUID) (auction.TimerPhase, time.Duration, bool) {
	return e.timers.Remaining(auctionID)
}

// ResetBidTimer restarts a full running phase after an accepted bid.
func (e *Engine) ResetBidTimer(auctionID uuid.UUID, seconds int) {
	e.ArmPhase(auctionID, auction.PhaseRunning, seconds)
}

// CreateAuction registers a new draft auction. No coordinator exists yet,
// so this one call runs outside an inbox.
func (e *Engine) CreateAuction(ctx context.Context, name, slug, performedBy string) (*auction.Auction, error) {
	return e.lifecycle.CreateAuction(ctx, name, slug, performedBy)
}

// GetAuction reads the aggregate without queueing.
func (e *Engine) GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	return e.store.GetAuction(ctx, auctionID)
}

// Snapshot assembles the full client view without queueing.
func (e *Engine) Snapshot(ctx context.Context, auctionID uuid.UUID) (*lifecycle.Snapshot, error) {
	return e.lifecycle.Snapshot(ctx, auctionID)
}

func (e *Engine) UpdateConfig(ctx context.Context, auctionID uuid.UUID, cfg auction.Config) (*auction.Auction, error) {
	return runAs[*auction.Auction](ctx, e, auctionID, "update_config", func(ctx context.Context) (interface{}, error) {
		return e.lifecycle.UpdateConfig(ctx, auctionID, cfg)
	})
}

func (e *Engine) AddTeam(ctx context.Context, auctionID uuid.UUID, name, shortName, credentialHash string) (*team.Team, error) {
	return runAs[*team.Team](ctx, e, auctionID, "add_team", func(ctx context.Context) (interface{}, error) {
		return e.lifecycle.AddTeam(ctx, auctionID, name, shortName, credentialHash)
	})
}

func (e *Engine) AddPlayer(ctx context.Context, auctionID uuid.UUID, number int, name, role string, attributes map[string]string) (*player.Player, error) {
	return runAs[*player.Player](ctx, e, auctionID, "add_player", func(ctx context.Context) (interface{}, error) {
		return e.lifecycle.AddPlayer(ctx, auctionID, number, name, role, attributes)
	})
}

func (e *Engine) RetainPlayer(ctx context.Context, auctionID, teamID, playerID uuid.UUID) (*team.Team, error) {
	return runAs[*team.Team](ctx, e, auctionID, "retain_player", func(ctx context.Context) (interface{}, error) {
		return e.lifecycle.RetainPlayer(ctx, auctionID, teamID, playerID)
	})
}

func (e *Engine) Configure(ctx context.Context, auctionID uuid.UUID, performedBy string) (*auction.Auction, error) {
	return runAs[*auction.Auction](ctx, e, auctionID, "configure", func(ctx context.Context) (interface{}, error) {
		return e.lifecycle.Configure(ctx, auctionID, performedBy)
	})
}

func (e *Engine) GoLive(ctx context.Context, auctionID uuid.UUID, performedBy string) (*auction.Auction, error) {
	return runAs[*auction.Auction](ctx, e, auctionID, "go_live", func(ctx context.Context) (interface{}, error) {
		return e.lifecycle.GoLive(ctx, auctionID, performedBy)
	})
}

func (e *Engine) Pause(ctx context.Context, auctionID uuid.UUID, performedBy string) (*auction.Auction, error) {
	return runAs[*auction.Auction](ctx, e, auctionID, "pause", func(ctx context.Context) (interface{}, error) {
		return e.lifecycle.Pause(ctx, auctionID, performedBy)
	})
}

func (e *Engine) Resume(ctx context.Context, auctionID uuid.UUID, performedBy string) (*auction.Auction, error) {
	return runAs[*auction.Auction](ctx, e, auctionID, "resume", func(ctx context.Context) (interface{}, error) {
		return e.lifecycle.Resume(ctx, auctionID, performedBy)
	})
}

func (e *Engine) Complete(ctx context.Context, auctionID uuid.UUID, performedBy string) (*auction.Auction, error) {
	return runAs[*auction.Auction](ctx, e, auctionID, "complete", func(ctx context.Context) (interface{}, error) {
		return e.lifecycle.Complete(ctx, auctionID, performedBy)
	})
}

func (e *Engine) OpenTradeWindow(ctx context.Context, auctionID uuid.UUID, performedBy string) (*auction.Auction, error) {
	return runAs[*auction.Auction](ctx, e, auctionID, "open_trade_window", func(ctx context.Context) (interface{}, error) {
		return e.lifecycle.OpenTradeWindow(ctx, auctionID, performedBy)
	})
}

func (e *Engine) Finalize(ctx context.Context, auctionID uuid.UUID, performedBy string) (*auction.Auction, error) {
	return runAs[*auction.Auction](ctx, e, auctionID, "finalize", func(ctx context.Context) (interface{}, error) {
		return e.lifecycle.Finalize(ctx, auctionID, performedBy)
	})
}

func (e *Engine) PlaceBid(ctx context.Context, auctionID, teamID uuid.UUID, amount values.Money) (*bidding.Result, error) {
	return runAs[*bidding.Result](ctx, e, auctionID, "place_bid", func(ctx context.Context) (interface{}, error) {
		return e.arbiter.PlaceBid(ctx, auctionID, teamID, amount)
	})
}

func (e *Engine) Undo(ctx context.Context, auctionID uuid.UUID, performedBy string) (*event.ActionEvent, error) {
	return runAs[*event.ActionEvent](ctx, e, auctionID, "undo", func(ctx context.Context) (interface{}, error) {
		return e.lifecycle.Undo(ctx, auctionID, performedBy)
	})
}

func (e *Engine) ReturnToPool(ctx context.Context, auctionID, playerID uuid.UUID, performedBy string) (*player.Player, error) {
	return runAs[*player.Player](ctx, e, auctionID, "return_to_pool", func(ctx context.Context) (interface{}, error) {
		return e.lifecycle.ReturnToPool(ctx, auctionID, playerID, performedBy)
	})
}

func (e *Engine) Disqualify(ctx context.Context, auctionID, playerID uuid.UUID, performedBy string) (*player.Player, error) {
	return runAs[*player.Player](ctx, e, auctionID, "disqualify", func(ctx context.Context) (interface{}, error) {
		return e.lifecycle.Disqualify(ctx, auctionID, playerID, performedBy)
	})
}

func (e *Engine) AdjustPurse(ctx context.Context, auctionID, teamID uuid.UUID, delta values.Money, reason, performedBy string) (*team.Team, error) {
	return runAs[*team.Team](ctx, e, auctionID, "adjust_purse", func(ctx context.Context) (interface{}, error) {
		return e.lifecycle.AdjustPurse(ctx, auctionID, teamID, delta, reason, performedBy)
	})
}

func (e *Engine) ProposeTrade(ctx context.Context, auctionID, initiatorTeamID, counterpartyTeamID uuid.UUID, give, want []uuid.UUID, message string) (*trade.Trade, error) {
	return runAs[*trade.Trade](ctx, e, auctionID, "propose_trade", func(ctx context.Context) (interface{}, error) {
		return e.trading.Propose(ctx, auctionID, initiatorTeamID, counterpartyTeamID, give, want, message)
	})
}

func (e *Engine) AcceptTrade(ctx context.Context, auctionID, tradeID, actorTeamID uuid.UUID) (*trade.Trade, error) {
	return runAs[*trade.Trade](ctx, e, auctionID, "accept_trade", func(ctx context.Context) (interface{}, error) {
		return e.trading.Accept(ctx, auctionID, tradeID, actorTeamID)
	})
}

func (e *Engine) RejectTrade(ctx context.Context, auctionID, tradeID, actorTeamID uuid.UUID, reason string) (*trade.Trade, error) {
	return runAs[*trade.Trade](ctx, e, auctionID, "reject_trade", func(ctx context.Context) (interface{}, error) {
		return e.trading.Reject(ctx, auctionID, tradeID, actorTeamID, reason)
	})
}

func (e *Engine) WithdrawTrade(ctx context.Context, auctionID, tradeID, actorTeamID uuid.UUID) (*trade.Trade, error) {
	return runAs[*trade.Trade](ctx, e, auctionID, "withdraw_trade", func(ctx context.Context) (interface{}, error) {
		return e.trading.Withdraw(ctx, auctionID, tradeID, actorTeamID)
	})
}

func (e *Engine) AdminApproveTrade(ctx context.Context, auctionID, tradeID uuid.UUID, performedBy string) (*trade.Trade, error) {
	return runAs[*trade.Trade](ctx, e, auctionID, "admin_approve_trade", func(ctx context.Context) (interface{}, error) {
		return e.trading.AdminApprove(ctx, auctionID, tradeID, performedBy)
	})
}

func (e *Engine) AdminRejectTrade(ctx context.Context, auctionID, tradeID uuid.UUID, reason string) (*trade.Trade, error) {
	return runAs[*trade.Trade](ctx, e, auctionID, "admin_reject_trade", func(ctx context.Context) (interface{}, error) {
		return e.trading.AdminReject(ctx, auctionID, tradeID, reason)
	})
}

func (e *Engine) AdminInitiateTrade(ctx context.Context, auctionID, initiatorTeamID, counterpartyTeamID uuid.UUID, give, want []uuid.UUID, performedBy string) (*trade.Trade, error) {
	return runAs[*trade.Trade](ctx, e, auctionID, "admin_initiate_trade", func(ctx context.Context) (interface{}, error) {
		return e.trading.AdminInitiate(ctx, auctionID, initiatorTeamID, counterpartyTeamID, give, want, performedBy)
	})
}

// runAs queues fn on the auction coordinator and narrows the result type.
func runAs[T any](ctx context.Context, e *Engine, auctionID uuid.UUID, name string, fn func(ctx context.Context) (interface{}, error)) (T, error) {
	var zero T
	start := time.Now()
	v, err := e.registry.For(auctionID).Execute(ctx, name, fn)
	if e.metrics != nil {
		e.metrics.CommandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, nil
	}
	return out, nil
}
