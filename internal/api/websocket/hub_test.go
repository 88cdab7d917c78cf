package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/domain/auction"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/events"
	"github.com/abhinavece/player-auction-backend/internal/service/lifecycle"
)

type stubSnapshots struct{ auction *auction.Auction }

func (s *stubSnapshots) Snapshot(context.Context, uuid.UUID) (*lifecycle.Snapshot, error) {
	return &lifecycle.Snapshot{Auction: s.auction}, nil
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	a := auction.New("Season Nine", "season-nine")
	hub := NewHub(&stubSnapshots{auction: a}, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

// join registers a client in the given rooms without a real connection;
// messages are read straight off its send channel.
func join(t *testing.T, hub *Hub, auctionID uuid.UUID, rooms ...string) *Client {
	t.Helper()
	client := newClient(hub, nil, auctionID, rooms, zap.NewNop())
	hub.register <- client
	return client
}

func readMessage(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		return data
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

func TestHubSnapshotOnJoin(t *testing.T) {
	hub := newTestHub(t)
	auctionID := uuid.New()

	client := join(t, hub, auctionID, auctionRoom(auctionID))
	assert.Contains(t, string(readMessage(t, client)), `"state_snapshot"`)
}

func TestHubRoomRouting(t *testing.T) {
	hub := newTestHub(t)
	auctionID := uuid.New()
	teamID := uuid.New()

	spectator := join(t, hub, auctionID, auctionRoom(auctionID))
	teamClient := join(t, hub, auctionID, auctionRoom(auctionID), teamRoom(auctionID, teamID))
	adminClient := join(t, hub, auctionID, auctionRoom(auctionID), adminRoom(auctionID))
	for _, c := range []*Client{spectator, teamClient, adminClient} {
		readMessage(t, c) // join snapshot
	}

	hub.ToAuction(auctionID, events.NewMessage(auctionID, "bid_placed", nil))
	for _, c := range []*Client{spectator, teamClient, adminClient} {
		assert.Contains(t, string(readMessage(t, c)), `"bid_placed"`)
	}

	hub.ToTeam(auctionID, teamID, events.NewMessage(auctionID, "bid_rejected", nil))
	assert.Contains(t, string(readMessage(t, teamClient)), `"bid_rejected"`)

	hub.ToAdmin(auctionID, events.NewMessage(auctionID, "undo_available", nil))
	assert.Contains(t, string(readMessage(t, adminClient)), `"undo_available"`)

	// Private and admin messages never reach the public room.
	select {
	case data := <-spectator.send:
		t.Fatalf("spectator received %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubIsolatesAuctions(t *testing.T) {
	hub := newTestHub(t)
	auctionA, auctionB := uuid.New(), uuid.New()

	clientA := join(t, hub, auctionA, auctionRoom(auctionA))
	clientB := join(t, hub, auctionB, auctionRoom(auctionB))
	readMessage(t, clientA)
	readMessage(t, clientB)

	hub.ToAuction(auctionA, events.NewMessage(auctionA, "player_sold", nil))
	assert.Contains(t, string(readMessage(t, clientA)), `"player_sold"`)

	select {
	case data := <-clientB.send:
		t.Fatalf("wrong auction received %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := newTestHub(t)
	auctionID := uuid.New()

	client := join(t, hub, auctionID, auctionRoom(auctionID))
	readMessage(t, client)

	// Never drain: once the outbound buffer fills, fan-out must drop
	// instead of blocking, and flag the client for a resnapshot.
	for i := 0; i < sendBufferSize+8; i++ {
		hub.ToAuction(auctionID, events.NewMessage(auctionID, "timer_tick", nil))
	}

	require.Eventually(t, func() bool {
		return client.stale.Load()
	}, time.Second, 10*time.Millisecond, "dropped client must be marked stale")
}

func TestHubUnregisterClosesClient(t *testing.T) {
	hub := newTestHub(t)
	auctionID := uuid.New()

	client := join(t, hub, auctionID, auctionRoom(auctionID))
	readMessage(t, client)

	hub.unregister <- client
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-client.send:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond, "send channel closes on unregister")
}
