package player

import (
	"time"

	"github.com/google/uuid"

	"github.com/abhinavece/player-auction-backend/internal/domain/values"
)

// Status is the pool state of a player within one auction.
type Status string

const (
	StatusPool         Status = "pool"
	StatusLive         Status = "live"
	StatusSold         Status = "sold"
	StatusUnsold       Status = "unsold"
	StatusDisqualified Status = "disqualified"
)

// Player is a lot candidate in one auction.
type Player struct {
	ID           uuid.UUID         `json:"id"`
	AuctionID    uuid.UUID         `json:"auction_id"`
	PlayerNumber int               `json:"player_number"`
	Name         string            `json:"name"`
	Role         string            `json:"role"`
	Attributes   map[string]string `json:"attributes,omitempty"`

	Status         Status        `json:"status"`
	SoldTo         *uuid.UUID    `json:"sold_to,omitempty"`
	SoldAmount     *values.Money `json:"sold_amount,omitempty"`
	SoldInRound    int           `json:"sold_in_round,omitempty"`
	IsDisqualified bool          `json:"is_disqualified"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a pool player.
func New(auctionID uuid.UUID, number int, name, role string) *Player {
	now := time.Now().UTC()
	return &Player{
		ID:           uuid.New(),
		AuctionID:    auctionID,
		PlayerNumber: number,
		Name:         name,
		Role:         role,
		Status:       StatusPool,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// MarkSold records a completed sale.
func (p *Player) MarkSold(teamID uuid.UUID, amount values.Money, round int) {
	p.Status = StatusSold
	p.SoldTo = &teamID
	p.SoldAmount = &amount
	p.SoldInRound = round
	p.UpdatedAt = time.Now().UTC()
}

// MarkUnsold records an expiry with no bid.
func (p *Player) MarkUnsold() {
	p.Status = StatusUnsold
	p.SoldTo = nil
	p.SoldAmount = nil
	p.UpdatedAt = time.Now().UTC()
}

// ReturnToPool reverses a terminal outcome.
func (p *Player) ReturnToPool() {
	p.Status = StatusPool
	p.SoldTo = nil
	p.SoldAmount = nil
	p.SoldInRound = 0
	p.UpdatedAt = time.Now().UTC()
}

// Disqualify removes the player from contention. Sale fields are cleared
// by the caller after the refund.
func (p *Player) Disqualify() {
	p.Status = StatusDisqualified
	p.IsDisqualified = true
	p.SoldTo = nil
	p.SoldAmount = nil
	p.UpdatedAt = time.Now().UTC()
}
