package engine

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/infrastructure/events"
)

// Registry hands out the per-auction coordinator, creating it lazily on
// first use. Different auctions run fully in parallel.
type Registry struct {
	mu           sync.Mutex
	coordinators map[uuid.UUID]*Coordinator

	publisher events.Publisher
	logger    *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(publisher events.Publisher, logger *zap.Logger) *Registry {
	return &Registry{
		coordinators: make(map[uuid.UUID]*Coordinator),
		publisher:    publisher,
		logger:       logger,
	}
}

// For returns the coordinator owning the auction.
func (r *Registry) For(auctionID uuid.UUID) *Coordinator {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coordinators[auctionID]
	if !ok {
		c = newCoordinator(auctionID, r.publisher, r.logger)
		r.coordinators[auctionID] = c
	}
	return c
}
