package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/domain/auction"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/events"
)

// TimerExpiry identifies one fired phase countdown. Generation lets the
// coordinator discard callbacks from timers that were re-armed or
// cancelled after the callback was scheduled.
type TimerExpiry struct {
	AuctionID  uuid.UUID
	Phase      auction.TimerPhase
	Generation uint64
}

// TimerManager owns every bidding countdown. Each auction has at most one
// armed timer; remaining time is always computed from an absolute
// deadline so wall-clock jumps do not distort the countdown. All arming
// and disarming happens here; no other component retains timer handles.
type TimerManager struct {
	mu          sync.Mutex
	timers      map[uuid.UUID]*auctionTimer
	generations map[uuid.UUID]uint64

	publisher events.Publisher
	logger    *zap.Logger
}

type auctionTimer struct {
	phase      auction.TimerPhase
	deadline   time.Time
	generation uint64
	timer      *time.Timer
	stopTicks  chan struct{}
}

// NewTimerManager creates a manager publishing ticks to the given fabric.
func NewTimerManager(publisher events.Publisher, logger *zap.Logger) *TimerManager {
	return &TimerManager{
		timers:      make(map[uuid.UUID]*auctionTimer),
		generations: make(map[uuid.UUID]uint64),
		publisher:   publisher,
		logger:      logger,
	}
}

// Arm replaces any armed timer for the auction with a fresh phase
// countdown. The expire callback runs exactly once for this arming, or
// not at all if the timer is disarmed or re-armed first.
func (m *TimerManager) Arm(auctionID uuid.UUID, phase auction.TimerPhase, d time.Duration, expire func(TimerExpiry)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.disarmLocked(auctionID)

	m.generations[auctionID]++
	gen := m.generations[auctionID]
	at := &auctionTimer{
		phase:      phase,
		deadline:   time.Now().Add(d),
		generation: gen,
		stopTicks:  make(chan struct{}),
	}
	at.timer = time.AfterFunc(d, func() {
		if !m.stillCurrent(auctionID, gen) {
			return
		}
		expire(TimerExpiry{AuctionID: auctionID, Phase: phase, Generation: gen})
	})
	m.timers[auctionID] = at

	go m.tickLoop(auctionID, at)

	m.logger.Debug("timer armed",
		zap.String("auction_id", auctionID.String()),
		zap.String("phase", string(phase)),
		zap.Duration("duration", d))
}

// Disarm cancels the armed timer, if any. Safe to call repeatedly. A
// disarmed timer fires no callback.
func (m *TimerManager) Disarm(auctionID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disarmLocked(auctionID)
	m.generations[auctionID]++
}

func (m *TimerManager) disarmLocked(auctionID uuid.UUID) {
	at, ok := m.timers[auctionID]
	if !ok {
		return
	}
	at.timer.Stop()
	close(at.stopTicks)
	delete(m.timers, auctionID)
}

// Remaining reports the armed phase and the time left until it expires.
func (m *TimerManager) Remaining(auctionID uuid.UUID) (auction.TimerPhase, time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	at, ok := m.timers[auctionID]
	if !ok {
		return auction.PhaseNone, 0, false
	}
	left := time.Until(at.deadline)
	if left < 0 {
		left = 0
	}
	return at.phase, left, true
}

// Generation returns the current timer generation for the auction. The
// coordinator compares it against TimerExpiry.Generation to drop stale
// callbacks.
func (m *TimerManager) Generation(auctionID uuid.UUID) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generations[auctionID]
}

func (m *TimerManager) stillCurrent(auctionID uuid.UUID, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.timers[auctionID]
	return ok && at.generation == gen
}

// tickLoop publishes a timer_tick once per second while the phase runs.
func (m *TimerManager) tickLoop(auctionID uuid.UUID, at *auctionTimer) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-at.stopTicks:
			return
		case <-ticker.C:
			left := time.Until(at.deadline)
			if left < 0 {
				return
			}
			m.publisher.ToAuction(auctionID, events.NewMessage(auctionID, "timer_tick", map[string]interface{}{
				"phase":             string(at.phase),
				"remaining_seconds": int(left.Seconds()),
			}))
		}
	}
}
