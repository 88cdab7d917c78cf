package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/abhinavece/player-auction-backend/internal/domain/values"
)

// BidAuditType classifies a bid attempt outcome.
type BidAuditType string

const (
	BidAuditAccepted BidAuditType = "bid_accepted"
	BidAuditRejected BidAuditType = "bid_rejected"
	BidAuditVoided   BidAuditType = "bid_voided"
)

// BidAudit records every bid attempt, accepted or not. The log grows
// monotonically and is never rewritten except to void accepted bids
// reversed by undo.
type BidAudit struct {
	ID              uuid.UUID    `json:"id"`
	AuctionID       uuid.UUID    `json:"auction_id"`
	PlayerID        uuid.UUID    `json:"player_id"`
	TeamID          uuid.UUID    `json:"team_id"`
	AttemptedAmount values.Money `json:"attempted_amount"`
	Type            BidAuditType `json:"type"`
	Reason          string       `json:"reason,omitempty"`
	Timestamp       time.Time    `json:"timestamp"`
}

// NewBidAudit creates an audit entry stamped now.
func NewBidAudit(auctionID, playerID, teamID uuid.UUID, amount values.Money, t BidAuditType, reason string) *BidAudit {
	return &BidAudit{
		ID:              uuid.New(),
		AuctionID:       auctionID,
		PlayerID:        playerID,
		TeamID:          teamID,
		AttemptedAmount: amount,
		Type:            t,
		Reason:          reason,
		Timestamp:       time.Now().UTC(),
	}
}
