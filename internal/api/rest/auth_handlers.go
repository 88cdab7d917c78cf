package rest

import (
	"crypto/subtle"
	"net/http"

	domainErrors "github.com/abhinavece/player-auction-backend/internal/domain/errors"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/auth"
)

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if s.cfg.Auth.AdminKey == "" ||
		subtle.ConstantTimeCompare([]byte(req.Key), []byte(s.cfg.Auth.AdminKey)) != 1 {
		s.respondError(w, domainErrors.NewUnauthenticatedError("invalid admin key"))
		return
	}
	token, err := s.auth.GenerateAdminToken("admin")
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, tokenResponse{Token: token, Role: auth.RoleAdmin})
}

func (s *Server) handleTeamLogin(w http.ResponseWriter, r *http.Request) {
	var req teamLoginRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	t, err := s.store.GetTeam(r.Context(), req.TeamID)
	if err != nil || t.AuctionID != req.AuctionID || !t.IsActive ||
		!s.auth.VerifyCredential(req.Credential, t.AccessCredentialHash) {
		// One failure shape regardless of which check tripped.
		s.respondError(w, domainErrors.NewUnauthenticatedError("invalid team credentials"))
		return
	}
	token, err := s.auth.GenerateTeamToken(req.AuctionID, req.TeamID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, tokenResponse{
		Token:     token,
		Role:      auth.RoleTeam,
		AuctionID: &req.AuctionID,
		TeamID:    &req.TeamID,
	})
}

func (s *Server) handleMagicExchange(w http.ResponseWriter, r *http.Request) {
	var req magicExchangeRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	token, claims, err := s.auth.ExchangeMagicToken(r.Context(), req.Token)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, tokenResponse{
		Token:     token,
		Role:      claims.Role,
		AuctionID: claims.AuctionID,
		TeamID:    claims.TeamID,
	})
}

func (s *Server) handleCreateMagicLink(w http.ResponseWriter, r *http.Request) {
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
	t, err := s.store.GetTeam(r.Context(), teamID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if t.AuctionID != auctionID {
		s.respondError(w, domainErrors.NewValidationError("TEAM_NOT_IN_AUCTION", "team does not belong to this auction"))
		return
	}
	url, err := s.auth.CreateMagicLink(r.Context(), auctionID, teamID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, magicLinkResponse{URL: url})
}
