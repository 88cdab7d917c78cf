package auction

import (
	"time"

	"github.com/google/uuid"

	"github.com/abhinavece/player-auction-backend/internal/domain/values"
)

// Status is the auction lifecycle state.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusConfigured  Status = "configured"
	StatusLive        Status = "live"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusTradeWindow Status = "trade_window"
	StatusFinalized   Status = "finalized"
)

// TimerPhase is the sub-interval of the bidding countdown.
type TimerPhase string

const (
	PhaseNone       TimerPhase = ""
	PhaseRunning    TimerPhase = "running"
	PhaseGoingOnce  TimerPhase = "going_once"
	PhaseGoingTwice TimerPhase = "going_twice"
)

// PoolOrder controls how the player pool is ordered at go-live.
type PoolOrder string

const (
	PoolOrderByNumber PoolOrder = "player_number"
	PoolOrderRandom   PoolOrder = "random"
)

// RequeuePolicy controls where a returned-to-pool player re-enters the queue.
type RequeuePolicy string

const (
	RequeueHead RequeuePolicy = "head"
	RequeueTail RequeuePolicy = "tail"
)

// IncrementTier maps a bid threshold to the increment that applies at or
// above it. Tiers are kept sorted ascending by threshold; the last tier
// dominates above its threshold.
type IncrementTier struct {
	Threshold values.Money `json:"threshold"`
	Increment values.Money `json:"increment"`
}

// Config is the bidding configuration. Immutable once the auction leaves
// draft.
type Config struct {
	BasePrice              values.Money    `json:"base_price"`
	PurseValue             values.Money    `json:"purse_value"`
	BidIncrementTiers      []IncrementTier `json:"bid_increment_tiers"`
	TimerDuration          int             `json:"timer_duration"`
	BidResetTimer          int             `json:"bid_reset_timer"`
	GoingOnceTimer         int             `json:"going_once_timer"`
	GoingTwiceTimer        int             `json:"going_twice_timer"`
	MinSquadSize           int             `json:"min_squad_size"`
	MaxSquadSize           int             `json:"max_squad_size"`
	RetentionEnabled       bool            `json:"retention_enabled"`
	MaxRetentions          int             `json:"max_retentions"`
	RetentionCost          values.Money    `json:"retention_cost"`
	TradeWindowHours       int             `json:"trade_window_hours"`
	MaxTradesPerTeam       int             `json:"max_trades_per_team"`
	TradeSettlementEnabled bool            `json:"trade_settlement_enabled"`
	MaxUndoActions         int             `json:"max_undo_actions"`
	PoolOrder              PoolOrder       `json:"pool_order"`
	RequeuePolicy          RequeuePolicy   `json:"requeue_policy"`
}

// Auction is the aggregate root. Dynamic fields are only mutated by the
// per-auction coordinator; Version backs the compare-and-swap update.
type Auction struct {
	ID   uuid.UUID `json:"id"`
	Slug string    `json:"slug"`
	Name string    `json:"name"`

	Status Status `json:"status"`
	Config Config `json:"config"`

	CurrentPlayerID     *uuid.UUID    `json:"current_player_id,omitempty"`
	CurrentBidAmount    *values.Money `json:"current_bid_amount,omitempty"`
	CurrentBidderTeamID *uuid.UUID    `json:"current_bidder_team_id,omitempty"`
	CurrentTimerPhase   TimerPhase    `json:"current_timer_phase,omitempty"`
	CurrentRound        int           `json:"current_round"`
	RemainingPlayerIDs  []uuid.UUID   `json:"remaining_player_ids"`

	TradeWindowEndsAt *time.Time `json:"trade_window_ends_at,omitempty"`
	FinalizedAt       *time.Time `json:"finalized_at,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a draft auction with sane defaults.
func New(name, slug string) *Auction {
	now := time.Now().UTC()
	return &Auction{
		ID:     uuid.New(),
		Slug:   slug,
		Name:   name,
		Status: StatusDraft,
		Config: DefaultConfig(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DefaultConfig returns the configuration applied to new draft auctions.
func DefaultConfig() Config {
	return Config{
		BasePrice:         values.NewMoneyFromInt(100),
		PurseValue:        values.NewMoneyFromInt(10000),
		BidIncrementTiers: []IncrementTier{{Threshold: values.Zero(), Increment: values.NewMoneyFromInt(50)}},
		TimerDuration:     30,
		BidResetTimer:     15,
		GoingOnceTimer:    5,
		GoingTwiceTimer:   5,
		MinSquadSize:      1,
		MaxSquadSize:      25,
		MaxRetentions:     0,
		RetentionCost:     values.Zero(),
		TradeWindowHours:  48,
		MaxTradesPerTeam:  3,
		MaxUndoActions:    10,
		PoolOrder:         PoolOrderByNumber,
		RequeuePolicy:     RequeueHead,
	}
}

// transitions is the permitted status graph.
var transitions = map[Status][]Status{
	StatusDraft:       {StatusConfigured},
	StatusConfigured:  {StatusLive},
	StatusLive:        {StatusPaused, StatusCompleted},
	StatusPaused:      {StatusLive, StatusCompleted},
	StatusCompleted:   {StatusTradeWindow, StatusFinalized},
	StatusTradeWindow: {StatusFinalized},
	StatusFinalized:   {},
}

// CanTransition reports whether moving to the target status is permitted.
func (a *Auction) CanTransition(to Status) bool {
	for _, s := range transitions[a.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// IsConfigLocked reports whether the configuration may still be edited.
func (a *Auction) IsConfigLocked() bool {
	return a.Status != StatusDraft
}

// HasCurrentBid reports whether the live player has an accepted bid.
func (a *Auction) HasCurrentBid() bool {
	return a.CurrentBidAmount != nil && a.CurrentBidderTeamID != nil
}

// IncrementFor returns the increment applying at amount: the increment of
// the largest tier threshold <= amount.
func (c Config) IncrementFor(amount values.Money) values.Money {
	inc := values.Zero()
	for _, tier := range c.BidIncrementTiers {
		if tier.Threshold.Compare(amount) <= 0 {
			inc = tier.Increment
		}
	}
	return inc
}

// NextBidAmount returns the only amount the arbiter will accept next:
// basePrice when no bid exists, otherwise current + increment(current).
func (a *Auction) NextBidAmount() values.Money {
	if !a.HasCurrentBid() {
		return a.Config.BasePrice
	}
	cur := *a.CurrentBidAmount
	return cur.Add(a.Config.IncrementFor(cur))
}

// ClearCurrentLot resets the dynamic bidding fields after a terminal
// outcome for the live player.
func (a *Auction) ClearCurrentLot() {
	a.CurrentPlayerID = nil
	a.CurrentBidAmount = nil
	a.CurrentBidderTeamID = nil
	a.CurrentTimerPhase = PhaseNone
}
