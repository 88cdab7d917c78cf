package websocket

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/infrastructure/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The browser client carries its token, not cookies; origin checks
	// happen at the ingress layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP requests into hub subscriptions.
type Handler struct {
	hub    *Hub
	auth   *auth.Service
	logger *zap.Logger
}

// NewHandler creates the websocket endpoint handler.
func NewHandler(hub *Hub, authService *auth.Service, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, auth: authService, logger: logger}
}

// ServeWS handles GET /auctions/{id}/ws?token=... . Room membership
// follows the token role: admins join the auction and admin rooms, teams
// join the auction room and their private team room, and a missing token
// yields spectator access to the public room only.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request, auctionID uuid.UUID) {
	rooms := []string{auctionRoom(auctionID)}

	if token := r.URL.Query().Get("token"); token != "" {
		claims, err := h.auth.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		switch claims.Role {
		case auth.RoleAdmin:
			rooms = append(rooms, adminRoom(auctionID))
		case auth.RoleTeam:
			if claims.AuctionID == nil || *claims.AuctionID != auctionID || claims.TeamID == nil {
				http.Error(w, "token is not valid for this auction", http.StatusForbidden)
				return
			}
			rooms = append(rooms, teamRoom(auctionID, *claims.TeamID))
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h.hub, conn, auctionID, rooms, h.logger)
	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}
