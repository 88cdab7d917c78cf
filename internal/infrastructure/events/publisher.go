package events

import (
	"time"

	"github.com/google/uuid"
)

// Message is one realtime payload published to subscribers. Type mirrors
// the ActionEvent taxonomy plus the transport-level types state_snapshot,
// timer_tick, and bid_rejected.
type Message struct {
	Type      string      `json:"type"`
	AuctionID uuid.UUID   `json:"auction_id"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage stamps a message now.
func NewMessage(auctionID uuid.UUID, msgType string, data interface{}) Message {
	return Message{
		Type:      msgType,
		AuctionID: auctionID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher fans messages out to subscribed clients. Implementations must
// not block: the engine hands over a payload and returns immediately.
// Delivery is best-effort, at-most-once per connection.
type Publisher interface {
	// ToAuction publishes to every subscriber of the auction room.
	ToAuction(auctionID uuid.UUID, msg Message)
	// ToAdmin publishes to admin subscribers only.
	ToAdmin(auctionID uuid.UUID, msg Message)
	// ToTeam publishes privately to one team's subscribers.
	ToTeam(auctionID, teamID uuid.UUID, msg Message)
}

// NopPublisher discards everything. Used in tests and as the default
// until the websocket hub is attached.
type NopPublisher struct{}

func (NopPublisher) ToAuction(uuid.UUID, Message)         {}
func (NopPublisher) ToAdmin(uuid.UUID, Message)           {}
func (NopPublisher) ToTeam(uuid.UUID, uuid.UUID, Message) {}
