package metrics

import (
	"github.com/google/uuid"

	"github.com/abhinavece/player-auction-backend/internal/infrastructure/events"
)

// ObservingPublisher decorates a publisher and counts domain outcomes as
// they are announced. Message types mirror the journal taxonomy, so the
// broadcast stream doubles as the metrics feed.
type ObservingPublisher struct {
	next     events.Publisher
	registry *Registry
}

// Observe wraps next with outcome counting.
func Observe(next events.Publisher, registry *Registry) *ObservingPublisher {
	return &ObservingPublisher{next: next, registry: registry}
}

func (p *ObservingPublisher) ToAuction(auctionID uuid.UUID, msg events.Message) {
	switch msg.Type {
	case "BID_ACCEPTED":
		p.registry.BidsAccepted.WithLabelValues(auctionID.String()).Inc()
	case "PLAYER_SOLD":
		p.registry.PlayersSold.Inc()
	case "PLAYER_UNSOLD":
		p.registry.PlayersUnsold.Inc()
	case "TRADE_EXECUTED":
		p.registry.TradesExecuted.Inc()
	case "UNDO_APPLIED":
		p.registry.UndosApplied.Inc()
	case "AUCTION_STARTED":
		p.registry.LiveAuctions.Inc()
	case "AUCTION_COMPLETED":
		p.registry.LiveAuctions.Dec()
	}
	p.next.ToAuction(auctionID, msg)
}

func (p *ObservingPublisher) ToAdmin(auctionID uuid.UUID, msg events.Message) {
	p.next.ToAdmin(auctionID, msg)
}

func (p *ObservingPublisher) ToTeam(auctionID, teamID uuid.UUID, msg events.Message) {
	if msg.Type == "bid_rejected" {
		reason := "unknown"
		if data, ok := msg.Data.(map[string]interface{}); ok {
			if r, ok := data["reason"].(string); ok {
				reason = r
			}
		}
		p.registry.BidsRejected.WithLabelValues(auctionID.String(), reason).Inc()
	}
	p.next.ToTeam(auctionID, teamID, msg)
}
