package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/abhinavece/player-auction-backend/internal/domain/auction"
	domainErrors "github.com/abhinavece/player-auction-backend/internal/domain/errors"
)

func (s *Server) handleCreateAuction(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondError(w, err)
		return
	}
	var req createAuctionRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	a, err := s.engine.CreateAuction(r.Context(), req.Name, req.Slug, performedBy(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, a)
}

func (s *Server) handleListAuctions(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondError(w, err)
		return
	}
	auctions, err := s.store.ListAuctions(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, auctions)
}

func (s *Server) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	a, err := s.engine.GetAuction(r.Context(), auctionID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, a)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	if s.snapshots != nil {
		if cached := s.snapshots.Get(r.Context(), auctionID); cached != nil {
			s.respond(w, http.StatusOK, json.RawMessage(cached))
			return
		}
	}
	snap, err := s.engine.Snapshot(r.Context(), auctionID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if s.snapshots != nil {
		s.snapshots.Put(r.Context(), auctionID, snap)
	}
	s.respond(w, http.StatusOK, snap)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondError(w, err)
		return
	}
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 1 || n > 1000 {
			s.respondError(w, domainErrors.NewValidationError("INVALID_LIMIT", "limit must be between 1 and 1000"))
			return
		}
		limit = n
	}
	events, err := s.store.TailEvents(r.Context(), auctionID, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, events)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondError(w, err)
		return
	}
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	var req updateConfigRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	a, err := s.engine.UpdateConfig(r.Context(), auctionID, req.Config)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, a)
}

func (s *Server) handleAddTeam(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondError(w, err)
		return
	}
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	var req addTeamRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	t, err := s.engine.AddTeam(r.Context(), auctionID, req.Name, req.ShortName, s.auth.HashCredential(req.Credential))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, t)
}

func (s *Server) handleAddPlayer(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondError(w, err)
		return
	}
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	var req addPlayerRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	p, err := s.engine.AddPlayer(r.Context(), auctionID, req.PlayerNumber, req.Name, req.Role, req.Attributes)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, p)
}

func (s *Server) handleRetainPlayer(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondError(w, err)
		return
	}
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	teamID, err := pathUUID(r, "teamId")
	if err != nil {
		s.respondError(w, err)
		return
	}
	var req retainPlayerRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	t, err := s.engine.RetainPlayer(r.Context(), auctionID, teamID, req.PlayerID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, t)
}

func (s *Server) handleAdjustPurse(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondError(w, err)
		return
	}
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	teamID, err := pathUUID(r, "teamId")
	if err != nil {
		s.respondError(w, err)
		return
	}
	var req adjustPurseRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	t, err := s.engine.AdjustPurse(r.Context(), auctionID, teamID, req.Delta, req.Reason, performedBy(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, t)
}

// transition factors the admin lifecycle endpoints, which differ only in
// the engine method they invoke.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, action string) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondError(w, err)
		return
	}
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}

	actor := performedBy(r)
	var a *auction.Auction
	switch action {
	case "configure":
		a, err = s.engine.Configure(r.Context(), auctionID, actor)
	case "go_live":
		a, err = s.engine.GoLive(r.Context(), auctionID, actor)
	case "pause":
		a, err = s.engine.Pause(r.Context(), auctionID, actor)
	case "resume":
		a, err = s.engine.Resume(r.Context(), auctionID, actor)
	case "complete":
		a, err = s.engine.Complete(r.Context(), auctionID, actor)
	case "open_trade_window":
		a, err = s.engine.OpenTradeWindow(r.Context(), auctionID, actor)
	case "finalize":
		a, err = s.engine.Finalize(r.Context(), auctionID, actor)
	default:
		err = domainErrors.NewInternalError("unknown transition " + action)
	}
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, a)
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, "configure")
}

func (s *Server) handleGoLive(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, "go_live")
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, "pause")
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, "resume")
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, "complete")
}

func (s *Server) handleOpenTradeWindow(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, "open_trade_window")
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, "finalize")
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	var req placeBidRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	teamID, err := s.requireTeam(r, auctionID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if teamID != req.TeamID {
		s.respondError(w, domainErrors.NewAuthorizationError("token does not match bidding team"))
		return
	}
	result, err := s.engine.PlaceBid(r.Context(), auctionID, req.TeamID, req.Amount)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, result)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondError(w, err)
		return
	}
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	ev, err := s.engine.Undo(r.Context(), auctionID, performedBy(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, ev)
}

func (s *Server) handleDisqualify(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondError(w, err)
		return
	}
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	playerID, err := pathUUID(r, "playerId")
	if err != nil {
		s.respondError(w, err)
		return
	}
	p, err := s.engine.Disqualify(r.Context(), auctionID, playerID, performedBy(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, p)
}

func (s *Server) handleReturnToPool(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		s.respondError(w, err)
		return
	}
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	playerID, err := pathUUID(r, "playerId")
	if err != nil {
		s.respondError(w, err)
		return
	}
	p, err := s.engine.ReturnToPool(r.Context(), auctionID, playerID, performedBy(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, p)
}
