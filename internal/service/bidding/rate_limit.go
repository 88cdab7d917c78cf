package bidding

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// teamLimiter throttles bid attempts per team. A misbehaving client
// hammering the bid endpoint must not starve the coordinator inbox for
// everyone else.
type teamLimiter struct {
	mu       sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newTeamLimiter(perSecond float64, burst int) *teamLimiter {
	if perSecond <= 0 {
		perSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &teamLimiter{
		limiters: make(map[uuid.UUID]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

func (l *teamLimiter) allow(teamID uuid.UUID) bool {
	l.mu.Lock()
	lim, ok := l.limiters[teamID]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters[teamID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
