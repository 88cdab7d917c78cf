package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	domainErrors "github.com/abhinavece/player-auction-backend/internal/domain/errors"
)

// Roles carried in token claims.
const (
	RoleAdmin = "admin"
	RoleTeam  = "team"
)

// Claims are the auction token claims.
type Claims struct {
	Role      string     `json:"role"`
	AuctionID *uuid.UUID `json:"auction_id,omitempty"`
	TeamID    *uuid.UUID `json:"team_id,omitempty"`
	jwt.RegisteredClaims
}

// MagicTokenStore persists one-shot magic-link tokens. Implemented by the
// redis cache.
type MagicTokenStore interface {
	SaveMagicToken(ctx context.Context, token string, auctionID, teamID uuid.UUID, ttl time.Duration) error
	// RedeemMagicToken consumes the token, returning its binding. A token
	// redeems at most once.
	RedeemMagicToken(ctx context.Context, token string) (auctionID, teamID uuid.UUID, err error)
}

// Service issues and validates team and admin tokens.
type Service struct {
	signingKey []byte
	tokenTTL   time.Duration
	baseURL    string
	magicTTL   time.Duration
	tokens     MagicTokenStore
}

// NewService wires the auth service. tokens may be nil when magic links
// are not served (tests).
func NewService(signingKey string, tokenTTL time.Duration, baseURL string, magicTTL time.Duration, tokens MagicTokenStore) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		tokenTTL:   tokenTTL,
		baseURL:    baseURL,
		magicTTL:   magicTTL,
		tokens:     tokens,
	}
}

// GenerateAdminToken issues an admin JWT scoped to all auctions.
func (s *Service) GenerateAdminToken(subject string) (string, error) {
	return s.sign(Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
		},
	})
}

// GenerateTeamToken issues a team JWT bound to one auction.
func (s *Service) GenerateTeamToken(auctionID, teamID uuid.UUID) (string, error) {
	return s.sign(Claims{
		Role:      RoleTeam,
		AuctionID: &auctionID,
		TeamID:    &teamID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   teamID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
		},
	})
}

func (s *Service) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a JWT.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, domainErrors.NewUnauthenticatedError("invalid or expired token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, domainErrors.NewUnauthenticatedError("invalid token claims")
	}
	return claims, nil
}

// HashCredential derives the stored hash for a team access credential.
func (s *Service) HashCredential(credential string) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(credential))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCredential compares a presented credential against the stored hash.
func (s *Service) VerifyCredential(credential, storedHash string) bool {
	expected := s.HashCredential(credential)
	return hmac.Equal([]byte(expected), []byte(storedHash))
}

// CreateMagicLink mints a one-shot login URL for a team.
func (s *Service) CreateMagicLink(ctx context.Context, auctionID, teamID uuid.UUID) (string, error) {
	if s.tokens == nil {
		return "", domainErrors.NewInternalError("magic link store is not configured")
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating magic token: %w", err)
	}
	token := hex.EncodeToString(raw)
	if err := s.tokens.SaveMagicToken(ctx, token, auctionID, teamID, s.magicTTL); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/auth/magic?token=%s", s.baseURL, token), nil
}

// ExchangeMagicToken consumes a magic token and issues the team JWT.
func (s *Service) ExchangeMagicToken(ctx context.Context, token string) (string, *Claims, error) {
	if s.tokens == nil {
		return "", nil, domainErrors.NewInternalError("magic link store is not configured")
	}
	auctionID, teamID, err := s.tokens.RedeemMagicToken(ctx, token)
	if err != nil {
		return "", nil, err
	}
	jwtString, err := s.GenerateTeamToken(auctionID, teamID)
	if err != nil {
		return "", nil, err
	}
	claims := &Claims{Role: RoleTeam, AuctionID: &auctionID, TeamID: &teamID}
	return jwtString, claims, nil
}
