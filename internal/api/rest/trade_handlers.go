package rest

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/abhinavece/player-auction-backend/internal/domain/trade"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/auth"
)

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	claims := claimsFrom(r.Context())
	trades, err := s.store.FindTradesByAuction(r.Context(), auctionID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	// Teams only see trades they are party to; spectators see none.
	if claims == nil || claims.Role != auth.RoleAdmin {
		teamID, teamErr := s.requireTeam(r, auctionID)
		if teamErr != nil {
			s.respondError(w, teamErr)
			return
		}
		trades = filterTradesForTeam(trades, teamID)
	}
	s.respond(w, http.StatusOK, trades)
}

func filterTradesForTeam(trades []*trade.Trade, teamID uuid.UUID) []*trade.Trade {
	out := make([]*trade.Trade, 0, len(trades))
	for _, t := range trades {
		if t.InitiatorTeamID == teamID || t.CounterpartyTeamID == teamID {
			out = append(out, t)
		}
	}
	return out
}

func (s *Server) handleProposeTrade(w http.ResponseWriter, r *http.Request) {
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	teamID, err := s.requireTeam(r, auctionID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	var req proposeTradeRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	t, err := s.engine.ProposeTrade(r.Context(), auctionID, teamID, req.CounterpartyTeamID, req.InitiatorPlayerIDs, req.CounterpartyPlayerIDs, req.Message)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, t)
}

func (s *Server) handleAcceptTrade(w http.ResponseWriter, r *http.Request) {
	auctionID, tradeID, teamID, err := s.tradeActor(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	t, err := s.engine.AcceptTrade(r.Context(), auctionID, tradeID, teamID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, t)
}

func (s *Server) handleRejectTrade(w http.ResponseWriter, r *http.Request) {
	auctionID, tradeID, teamID, err := s.tradeActor(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	var req rejectTradeRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	t, err := s.engine.RejectTrade(r.Context(), auctionID, tradeID, teamID, req.Reason)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, t)
}

func (s *Server) handleWithdrawTrade(w http.ResponseWriter, r *http.Request) {
	auctionID, tradeID, teamID, err := s.tradeActor(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	t, err := s.engine.WithdrawTrade(r.Context(), auctionID, tradeID, teamID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, t)
}

func (s *Server) handleAdminApproveTrade(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondError(w, err)
		return
	}
	auctionID, tradeID, err := s.tradePath(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	t, err := s.engine.AdminApproveTrade(r.Context(), auctionID, tradeID, performedBy(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, t)
}

func (s *Server) handleAdminRejectTrade(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondError(w, err)
		return
	}
	auctionID, tradeID, err := s.tradePath(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	var req rejectTradeRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	t, err := s.engine.AdminRejectTrade(r.Context(), auctionID, tradeID, req.Reason)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, t)
}

func (s *Server) handleAdminInitiateTrade(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondError(w, err)
		return
	}
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	var req adminInitiateTradeRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	t, err := s.engine.AdminInitiateTrade(r.Context(), auctionID, req.InitiatorTeamID, req.CounterpartyTeamID, req.InitiatorPlayerIDs, req.CounterpartyPlayerIDs, performedBy(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, t)
}

func (s *Server) tradePath(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	tradeID, err := pathUUID(r, "tradeId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return auctionID, tradeID, nil
}

func (s *Server) tradeActor(r *http.Request) (uuid.UUID, uuid.UUID, uuid.UUID, error) {
	auctionID, tradeID, err := s.tradePath(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, uuid.Nil, err
	}
	teamID, err := s.requireTeam(r, auctionID)
	if err != nil {
		return uuid.Nil, uuid.Nil, uuid.Nil, err
	}
	return auctionID, tradeID, teamID, nil
}
