package trade

import (
	"time"

	"github.com/google/uuid"

	"github.com/abhinavece/player-auction-backend/internal/domain/values"
)

// Status is the bilateral negotiation state.
type Status string

const (
	StatusPendingCounterparty Status = "pending_counterparty"
	StatusBothAgreed          Status = "both_agreed"
	StatusExecuted            Status = "executed"
	StatusRejected            Status = "rejected"
	StatusWithdrawn           Status = "withdrawn"
	StatusCancelled           Status = "cancelled"
	StatusExpired             Status = "expired"
)

// Open reports whether the trade still holds or may acquire player locks.
func (s Status) Open() bool {
	return s == StatusPendingCounterparty || s == StatusBothAgreed
}

// SettlementDirection says which side pays the settlement amount.
type SettlementDirection string

const (
	InitiatorPays    SettlementDirection = "initiator_pays"
	CounterpartyPays SettlementDirection = "counterparty_pays"
	Even             SettlementDirection = "even"
)

// TradePlayer is a snapshot of a player included in a trade side.
type TradePlayer struct {
	PlayerID   uuid.UUID    `json:"player_id"`
	Name       string       `json:"name"`
	Role       string       `json:"role"`
	SoldAmount values.Money `json:"sold_amount"`
}

// Trade is a bilateral player swap proposal with optional purse settlement.
type Trade struct {
	ID        uuid.UUID `json:"id"`
	AuctionID uuid.UUID `json:"auction_id"`

	InitiatorTeamID    uuid.UUID `json:"initiator_team_id"`
	CounterpartyTeamID uuid.UUID `json:"counterparty_team_id"`

	InitiatorPlayers    []TradePlayer `json:"initiator_players"`
	CounterpartyPlayers []TradePlayer `json:"counterparty_players"`

	Status Status `json:"status"`

	InitiatorTotalValue    values.Money        `json:"initiator_total_value"`
	CounterpartyTotalValue values.Money        `json:"counterparty_total_value"`
	SettlementAmount       values.Money        `json:"settlement_amount"`
	SettlementDirection    SettlementDirection `json:"settlement_direction"`
	PurseSettlementEnabled bool                `json:"purse_settlement_enabled"`

	Message            string `json:"message,omitempty"`
	StatusReason       string `json:"status_reason,omitempty"`
	PublicAnnouncement string `json:"public_announcement,omitempty"`
	SettlementWarning  string `json:"settlement_warning,omitempty"`

	Version    int64      `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
}

// New creates a pending trade with the settlement precomputed.
func New(auctionID, initiator, counterparty uuid.UUID, give, want []TradePlayer, settlementEnabled bool, message string) *Trade {
	now := time.Now().UTC()
	t := &Trade{
		ID:                     uuid.New(),
		AuctionID:              auctionID,
		InitiatorTeamID:        initiator,
		CounterpartyTeamID:     counterparty,
		InitiatorPlayers:       give,
		CounterpartyPlayers:    want,
		Status:                 StatusPendingCounterparty,
		PurseSettlementEnabled: settlementEnabled,
		Message:                message,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	t.ComputeSettlement()
	return t
}

// ComputeSettlement recalculates totals, settlement amount, and direction.
// The lower-valued side pays the difference.
func (t *Trade) ComputeSettlement() {
	t.InitiatorTotalValue = sumSide(t.InitiatorPlayers)
	t.CounterpartyTotalValue = sumSide(t.CounterpartyPlayers)

	diff := t.InitiatorTotalValue.Sub(t.CounterpartyTotalValue)
	t.SettlementAmount = diff.Abs()
	switch diff.Compare(values.Zero()) {
	case 1:
		t.SettlementDirection = CounterpartyPays
	case -1:
		t.SettlementDirection = InitiatorPays
	default:
		t.SettlementDirection = Even
	}
}

func sumSide(side []TradePlayer) values.Money {
	total := values.Zero()
	for _, p := range side {
		total = total.Add(p.SoldAmount)
	}
	return total
}

// InitiatorPlayerIDs returns the ids offered by the initiator.
func (t *Trade) InitiatorPlayerIDs() []uuid.UUID {
	return sideIDs(t.InitiatorPlayers)
}

// CounterpartyPlayerIDs returns the ids requested from the counterparty.
func (t *Trade) CounterpartyPlayerIDs() []uuid.UUID {
	return sideIDs(t.CounterpartyPlayers)
}

func sideIDs(side []TradePlayer) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(side))
	for _, p := range side {
		ids = append(ids, p.PlayerID)
	}
	return ids
}

// IncludesCounterpartyPlayer reports whether the trade requests the player
// from its counterparty.
func (t *Trade) IncludesCounterpartyPlayer(playerID uuid.UUID) bool {
	for _, p := range t.CounterpartyPlayers {
		if p.PlayerID == playerID {
			return true
		}
	}
	return false
}

// PayingTeam returns the team owing the settlement, or uuid.Nil when even.
func (t *Trade) PayingTeam() uuid.UUID {
	switch t.SettlementDirection {
	case InitiatorPays:
		return t.InitiatorTeamID
	case CounterpartyPays:
		return t.CounterpartyTeamID
	}
	return uuid.Nil
}

// ReceivingTeam returns the team receiving the settlement, or uuid.Nil.
func (t *Trade) ReceivingTeam() uuid.UUID {
	switch t.SettlementDirection {
	case InitiatorPays:
		return t.CounterpartyTeamID
	case CounterpartyPays:
		return t.InitiatorTeamID
	}
	return uuid.Nil
}

// Transition moves the trade to a new status with a reason.
func (t *Trade) Transition(to Status, reason string) {
	t.Status = to
	t.StatusReason = reason
	t.UpdatedAt = time.Now().UTC()
	if to == StatusExecuted {
		now := time.Now().UTC()
		t.ExecutedAt = &now
	}
}
