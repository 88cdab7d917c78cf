package team

import (
	"time"

	"github.com/google/uuid"

	"github.com/abhinavece/player-auction-backend/internal/domain/values"
)

// Lot is one owned player entry in a team squad.
type Lot struct {
	PlayerID  uuid.UUID    `json:"player_id"`
	BoughtAt  values.Money `json:"bought_at"`
	Round     int          `json:"round"`
	Timestamp time.Time    `json:"timestamp"`
}

// Retention is a player kept by a team before the auction starts, charged
// at the configured retention cost.
type Retention struct {
	PlayerID uuid.UUID    `json:"player_id"`
	Cost     values.Money `json:"cost"`
}

// Team is a bidding participant in one auction.
type Team struct {
	ID        uuid.UUID `json:"id"`
	AuctionID uuid.UUID `json:"auction_id"`
	Name      string    `json:"name"`
	ShortName string    `json:"short_name"`

	PurseValue     values.Money `json:"purse_value"`
	PurseRemaining values.Money `json:"purse_remaining"`

	Players         []Lot       `json:"players"`
	RetainedPlayers []Retention `json:"retained_players"`

	IsActive             bool   `json:"is_active"`
	AccessCredentialHash string `json:"-"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an active team with a full purse.
func New(auctionID uuid.UUID, name, shortName string, purse values.Money) *Team {
	now := time.Now().UTC()
	return &Team{
		ID:             uuid.New(),
		AuctionID:      auctionID,
		Name:           name,
		ShortName:      shortName,
		PurseValue:     purse,
		PurseRemaining: purse,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// SquadSize counts bought and retained players.
func (t *Team) SquadSize() int {
	return len(t.Players) + len(t.RetainedPlayers)
}

// Owns reports whether the team currently owns the player as a bought lot.
func (t *Team) Owns(playerID uuid.UUID) bool {
	_, ok := t.Lot(playerID)
	return ok
}

// Lot returns the owned lot for a player, if any.
func (t *Team) Lot(playerID uuid.UUID) (Lot, bool) {
	for _, l := range t.Players {
		if l.PlayerID == playerID {
			return l, true
		}
	}
	return Lot{}, false
}

// AddLot appends an owned lot and charges the purse.
func (t *Team) AddLot(playerID uuid.UUID, amount values.Money, round int) {
	t.Players = append(t.Players, Lot{
		PlayerID:  playerID,
		BoughtAt:  amount,
		Round:     round,
		Timestamp: time.Now().UTC(),
	})
	t.PurseRemaining = t.PurseRemaining.Sub(amount)
	t.UpdatedAt = time.Now().UTC()
}

// RemoveLot drops an owned lot and refunds the purse. Returns the removed
// lot and whether it was present.
func (t *Team) RemoveLot(playerID uuid.UUID) (Lot, bool) {
	for i, l := range t.Players {
		if l.PlayerID == playerID {
			t.Players = append(t.Players[:i], t.Players[i+1:]...)
			t.PurseRemaining = t.PurseRemaining.Add(l.BoughtAt)
			t.UpdatedAt = time.Now().UTC()
			return l, true
		}
	}
	return Lot{}, false
}
