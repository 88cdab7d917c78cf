package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/abhinavece/player-auction-backend/internal/domain/values"
)

// Type identifies an action event in the per-auction journal.
type Type string

const (
	TypeAuctionCreated     Type = "AUCTION_CREATED"
	TypeAuctionConfigured  Type = "AUCTION_CONFIGURED"
	TypeAuctionStarted     Type = "AUCTION_STARTED"
	TypeAuctionPaused      Type = "AUCTION_PAUSED"
	TypeAuctionResumed     Type = "AUCTION_RESUMED"
	TypeAuctionCompleted   Type = "AUCTION_COMPLETED"
	TypeTradeWindowOpened  Type = "TRADE_WINDOW_OPENED"
	TypeAuctionFinalized   Type = "AUCTION_FINALIZED"
	TypePlayerLive         Type = "PLAYER_LIVE"
	TypeBidAccepted        Type = "BID_ACCEPTED"
	TypeBidRejected        Type = "BID_REJECTED"
	TypePhaseAdvanced      Type = "PHASE_ADVANCED"
	TypePlayerSold         Type = "PLAYER_SOLD"
	TypePlayerUnsold       Type = "PLAYER_UNSOLD"
	TypePlayerReturned     Type = "PLAYER_RETURNED_TO_POOL"
	TypePlayerDisqualified Type = "PLAYER_DISQUALIFIED"
	TypeAdminPurseAdjusted Type = "ADMIN_PURSE_ADJUSTED"
	TypeTradeExecuted      Type = "TRADE_EXECUTED"
	TypeManualOverride     Type = "MANUAL_OVERRIDE"
	TypeUndoApplied        Type = "UNDO_APPLIED"
)

// reversible is the subset of types carrying a usable reversal payload.
var reversible = map[Type]bool{
	TypePlayerSold:         true,
	TypePlayerUnsold:       true,
	TypePlayerReturned:     true,
	TypePlayerDisqualified: true,
	TypeTradeExecuted:      true,
	TypeAdminPurseAdjusted: true,
}

// Reversible reports whether the type supports undo.
func (t Type) Reversible() bool {
	return reversible[t]
}

// ActionEvent is one append-only journal entry. SequenceNumber is strictly
// monotonic and gap-free per auction.
type ActionEvent struct {
	ID              uuid.UUID       `json:"id"`
	AuctionID       uuid.UUID       `json:"auction_id"`
	SequenceNumber  int64           `json:"sequence_number"`
	Type            Type            `json:"type"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	ReversalPayload json.RawMessage `json:"reversal_payload,omitempty"`
	PerformedBy     string          `json:"performed_by"`
	IsPublic        bool            `json:"is_public"`
	PublicMessage   string          `json:"public_message,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Forward payloads. Shapes mirror the realtime messages published to
// subscribers.

type BidPayload struct {
	PlayerID uuid.UUID    `json:"player_id"`
	TeamID   uuid.UUID    `json:"team_id"`
	Amount   values.Money `json:"amount"`
}

type SalePayload struct {
	PlayerID uuid.UUID    `json:"player_id"`
	TeamID   uuid.UUID    `json:"team_id"`
	Amount   values.Money `json:"amount"`
	Round    int          `json:"round"`
}

type PlayerPayload struct {
	PlayerID uuid.UUID `json:"player_id"`
}

type PhasePayload struct {
	PlayerID uuid.UUID `json:"player_id"`
	Phase    string    `json:"phase"`
	Seconds  int       `json:"seconds"`
}

type PurseAdjustmentPayload struct {
	TeamID uuid.UUID    `json:"team_id"`
	Delta  values.Money `json:"delta"`
	Reason string       `json:"reason,omitempty"`
}

type TradeExecutedPayload struct {
	TradeID             uuid.UUID    `json:"trade_id"`
	InitiatorTeamID     uuid.UUID    `json:"initiator_team_id"`
	CounterpartyTeamID  uuid.UUID    `json:"counterparty_team_id"`
	InitiatorPlayerIDs  []uuid.UUID  `json:"initiator_player_ids"`
	CounterpartyPlayers []uuid.UUID  `json:"counterparty_player_ids"`
	SettlementAmount    values.Money `json:"settlement_amount"`
	SettlementDirection string       `json:"settlement_direction"`
	SettlementApplied   bool         `json:"settlement_applied"`
}

// Reversal payloads. Each carries enough to restore the pre-event state
// through the state store.

type SaleReversal struct {
	PlayerID   uuid.UUID    `json:"player_id"`
	TeamID     uuid.UUID    `json:"team_id"`
	Amount     values.Money `json:"amount"`
	PrevStatus string       `json:"prev_status"`
}

type UnsoldReversal struct {
	PlayerID uuid.UUID `json:"player_id"`
}

// ReturnReversal restores the sale a return-to-pool refunded.
type ReturnReversal struct {
	PlayerID uuid.UUID    `json:"player_id"`
	TeamID   uuid.UUID    `json:"team_id"`
	Amount   values.Money `json:"amount"`
	Round    int          `json:"round"`
}

type DisqualifyReversal struct {
	PlayerID   uuid.UUID     `json:"player_id"`
	PrevStatus string        `json:"prev_status"`
	SoldTo     *uuid.UUID    `json:"sold_to,omitempty"`
	SoldAmount *values.Money `json:"sold_amount,omitempty"`
	SoldRound  int           `json:"sold_round,omitempty"`
}

// TradeReversal undoes an executed trade, returning every player to the
// side that gave them up and reversing the settlement transfer.
type TradeReversal struct {
	TradeID           uuid.UUID `json:"trade_id"`
	SettlementApplied bool      `json:"settlement_applied"`
}

type PurseAdjustmentReversal struct {
	TeamID uuid.UUID    `json:"team_id"`
	Delta  values.Money `json:"delta"`
}

type UndoPayload struct {
	TargetSequence int64 `json:"target_sequence"`
	TargetType     Type  `json:"target_type"`
}

// MustMarshal encodes a payload, panicking on failure. Payload structs are
// plain data; marshal errors indicate a programming bug.
func MustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
