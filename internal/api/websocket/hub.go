package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/infrastructure/events"
	"github.com/abhinavece/player-auction-backend/internal/service/lifecycle"
)

// SnapshotSource builds the full auction view sent on join and after a
// dropped-message resnapshot. Implemented by the engine.
type SnapshotSource interface {
	Snapshot(ctx context.Context, auctionID uuid.UUID) (*lifecycle.Snapshot, error)
}

// ClientCounter tracks the connected subscriber gauge. Implemented by the
// metrics registry; nil-safe via the noop counter.
type ClientCounter interface {
	Inc()
	Dec()
}

type noopCounter struct{}

func (noopCounter) Inc() {}
func (noopCounter) Dec() {}

// Room keys.
func auctionRoom(auctionID uuid.UUID) string { return "auction:" + auctionID.String() }
func adminRoom(auctionID uuid.UUID) string   { return "admin:" + auctionID.String() }
func teamRoom(auctionID, teamID uuid.UUID) string {
	return fmt.Sprintf("team:%s:%s", auctionID, teamID)
}

// Hub is the broadcast fabric. It implements events.Publisher: services
// hand it a payload and return immediately; fan-out happens on the hub
// goroutine and a slow subscriber's messages are dropped, flagging that
// client for a fresh snapshot.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan roomMessage
	done       chan struct{}

	snapshots SnapshotSource
	clients   ClientCounter
	logger    *zap.Logger
}

type roomMessage struct {
	room string
	data []byte
}

// NewHub creates the hub. snapshots may be nil at construction when the
// engine publishes through this hub; wire it with SetSnapshotSource
// before serving connections. Call Run before serving connections.
func NewHub(snapshots SnapshotSource, clients ClientCounter, logger *zap.Logger) *Hub {
	if clients == nil {
		clients = noopCounter{}
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomMessage, 256),
		done:       make(chan struct{}),
		snapshots:  snapshots,
		clients:    clients,
		logger:     logger,
	}
}

// Run processes registrations and fan-out until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case <-h.done:
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// Stop shuts the hub down.
func (h *Hub) Stop() {
	close(h.done)
}

// SetSnapshotSource wires the snapshot builder. The engine publishes
// through this hub, so it is constructed after it.
func (h *Hub) SetSnapshotSource(src SnapshotSource) {
	h.snapshots = src
}

// ToAuction publishes to every subscriber of the auction room.
func (h *Hub) ToAuction(auctionID uuid.UUID, msg events.Message) {
	h.publish(auctionRoom(auctionID), msg)
}

// ToAdmin publishes to admin subscribers only.
func (h *Hub) ToAdmin(auctionID uuid.UUID, msg events.Message) {
	h.publish(adminRoom(auctionID), msg)
}

// ToTeam publishes privately to one team's subscribers.
func (h *Hub) ToTeam(auctionID, teamID uuid.UUID, msg events.Message) {
	h.publish(teamRoom(auctionID, teamID), msg)
}

func (h *Hub) publish(room string, msg events.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("message marshal failed", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- roomMessage{room: room, data: data}:
	default:
		// The fabric must never block a publisher.
		h.logger.Warn("broadcast queue full, dropping message", zap.String("room", room))
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	for _, room := range client.rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*Client]bool)
		}
		h.rooms[room][client] = true
	}
	h.mu.Unlock()
	h.clients.Inc()

	h.logger.Debug("client joined",
		zap.String("client_id", client.id.String()),
		zap.Strings("rooms", client.rooms))

	h.sendSnapshot(client)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	removed := false
	for _, room := range client.rooms {
		if members, ok := h.rooms[room]; ok && members[client] {
			delete(members, client)
			removed = true
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()

	if removed {
		close(client.send)
		h.clients.Dec()
		h.logger.Debug("client left", zap.String("client_id", client.id.String()))
	}
}

func (h *Hub) fanOut(msg roomMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[msg.room] {
		select {
		case client.send <- msg.data:
		default:
			// Outbound buffer full: drop and mark the client so its next
			// deliverable message is a fresh snapshot.
			client.markStale()
			h.logger.Warn("subscriber buffer full, dropped message",
				zap.String("client_id", client.id.String()),
				zap.String("room", msg.room))
		}
	}
}

// sendSnapshot pushes the current auction view to one client.
func (h *Hub) sendSnapshot(client *Client) {
	if h.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := h.snapshots.Snapshot(ctx, client.auctionID)
	if err != nil {
		h.logger.Warn("snapshot build failed",
			zap.String("auction_id", client.auctionID.String()),
			zap.Error(err))
		return
	}
	data, err := json.Marshal(events.NewMessage(client.auctionID, "state_snapshot", snap))
	if err != nil {
		h.logger.Error("snapshot marshal failed", zap.Error(err))
		return
	}
	select {
	case client.send <- data:
		client.clearStale()
	default:
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := make(map[*Client]bool)
	for _, members := range h.rooms {
		for client := range members {
			if !seen[client] {
				seen[client] = true
				close(client.send)
			}
		}
	}
	h.rooms = make(map[string]map[*Client]bool)
}
