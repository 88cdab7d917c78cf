package websocket

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 64
)

// Client is one realtime subscriber connection.
type Client struct {
	id        uuid.UUID
	auctionID uuid.UUID
	rooms     []string

	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// stale flags that a fan-out message was dropped; the read of the
	// next client request or a reconnect triggers a fresh snapshot.
	stale atomic.Bool

	logger *zap.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, auctionID uuid.UUID, rooms []string, logger *zap.Logger) *Client {
	return &Client{
		id:        uuid.New(),
		auctionID: auctionID,
		rooms:     rooms,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		hub:       hub,
		logger:    logger,
	}
}

func (c *Client) markStale()  { c.stale.Store(true) }
func (c *Client) clearStale() { c.stale.Store(false) }

// readPump consumes client frames. Inbound content is ignored except as
// a resnapshot request; its real job is detecting disconnection and
// answering pings.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		// Any client message doubles as a snapshot request when messages
		// were dropped.
		if c.stale.Load() {
			c.hub.sendSnapshot(c)
		}
	}
}

// writePump pushes queued messages and keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
