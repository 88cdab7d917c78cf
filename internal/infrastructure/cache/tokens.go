package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domainErrors "github.com/abhinavece/player-auction-backend/internal/domain/errors"
)

const magicTokenPrefix = "auction:magic:"

// TokenStore keeps one-shot magic-link tokens in redis. Redemption uses
// GETDEL so a token cannot be replayed.
type TokenStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewTokenStore creates a redis-backed token store.
func NewTokenStore(client *redis.Client, logger *zap.Logger) *TokenStore {
	return &TokenStore{client: client, logger: logger}
}

// SaveMagicToken stores the token binding with a TTL.
func (s *TokenStore) SaveMagicToken(ctx context.Context, token string, auctionID, teamID uuid.UUID, ttl time.Duration) error {
	value := auctionID.String() + ":" + teamID.String()
	if err := s.client.Set(ctx, magicTokenPrefix+token, value, ttl).Err(); err != nil {
		return domainErrors.NewTransientError("storing magic token").WithCause(err)
	}
	return nil
}

// RedeemMagicToken consumes the token and returns its binding.
func (s *TokenStore) RedeemMagicToken(ctx context.Context, token string) (uuid.UUID, uuid.UUID, error) {
	value, err := s.client.GetDel(ctx, magicTokenPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, uuid.Nil, domainErrors.NewUnauthenticatedError("magic link is invalid or already used")
	}
	if err != nil {
		return uuid.Nil, uuid.Nil, domainErrors.NewTransientError("redeeming magic token").WithCause(err)
	}

	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return uuid.Nil, uuid.Nil, domainErrors.NewInternalError("magic token binding is malformed")
	}
	auctionID, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, uuid.Nil, domainErrors.NewInternalError("magic token binding is malformed")
	}
	teamID, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, uuid.Nil, domainErrors.NewInternalError("magic token binding is malformed")
	}
	return auctionID, teamID, nil
}
