package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/abhinavece/player-auction-backend/internal/domain/errors"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

// claimsFrom returns the authenticated claims, or nil for anonymous
// requests.
func claimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// withLogging wraps handlers with request logging and panic recovery.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				s.logger.Error("handler panic",
					zap.Any("panic", recovered),
					zap.String("path", r.URL.Path))
				s.respondError(w, domainErrors.NewInternalError("internal error"))
			}
		}()

		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

// withAuth parses a bearer token if present and stores its claims.
// Authorization decisions happen per handler.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := s.auth.ValidateToken(token)
		if err != nil {
			s.respondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// requireAdmin ensures the caller holds an admin token.
func (s *Server) requireAdmin(r *http.Request) (*auth.Claims, error) {
	claims := claimsFrom(r.Context())
	if claims == nil {
		return nil, domainErrors.NewUnauthenticatedError("authentication required")
	}
	if claims.Role != auth.RoleAdmin {
		return nil, domainErrors.NewAuthorizationError("admin access required")
	}
	return claims, nil
}

// requireTeam ensures the caller holds a team token for the auction and
// returns the team id.
func (s *Server) requireTeam(r *http.Request, auctionID uuid.UUID) (uuid.UUID, error) {
	claims := claimsFrom(r.Context())
	if claims == nil {
		return uuid.Nil, domainErrors.NewUnauthenticatedError("authentication required")
	}
	if claims.Role != auth.RoleTeam || claims.AuctionID == nil || claims.TeamID == nil {
		return uuid.Nil, domainErrors.NewAuthorizationError("team access required")
	}
	if *claims.AuctionID != auctionID {
		return uuid.Nil, domainErrors.NewAuthorizationError("token is not valid for this auction")
	}
	return *claims.TeamID, nil
}

// pathUUID parses a path wildcard as a UUID.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, domainErrors.NewValidationError("INVALID_ID", "path id is not a valid uuid")
	}
	return id, nil
}

// performedBy names the actor for journal attribution.
func performedBy(r *http.Request) string {
	claims := claimsFrom(r.Context())
	if claims == nil {
		return "anonymous"
	}
	if claims.Role == auth.RoleAdmin {
		if claims.Subject != "" {
			return "admin:" + claims.Subject
		}
		return "admin"
	}
	if claims.TeamID != nil {
		return "team:" + claims.TeamID.String()
	}
	return claims.Subject
}
