package lifecycle

import (
	"context"

	"github.com/google/uuid"

	"github.com/abhinavece/player-auction-backend/internal/domain/auction"
	"github.com/abhinavece/player-auction-backend/internal/domain/event"
	"github.com/abhinavece/player-auction-backend/internal/domain/player"
	"github.com/abhinavece/player-auction-backend/internal/domain/team"
)

// snapshotEventCount is how much recent history a joining client receives.
const snapshotEventCount = 20

// TimerInfo is the countdown view at snapshot time, derived from the
// absolute deadline.
type TimerInfo struct {
	Phase            string `json:"phase"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// Snapshot is the full auction view sent to a client on join or reconnect.
type Snapshot struct {
	Auction       *auction.Auction     `json:"auction"`
	CurrentPlayer *player.Player       `json:"current_player,omitempty"`
	Teams         []*team.Team         `json:"teams"`
	RecentEvents  []*event.ActionEvent `json:"recent_events"`
	Timer         *TimerInfo           `json:"timer,omitempty"`
}

// Snapshot assembles the current auction view.
func (s *Service) Snapshot(ctx context.Context, auctionID uuid.UUID) (*Snapshot, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	teams, err := s.store.FindTeamsByAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	events, err := s.journal.Tail(ctx, auctionID, snapshotEventCount)
	if err != nil {
		return nil, err
	}
	// Private events stay out of the shared snapshot.
	public := events[:0]
	for _, ev := range events {
		if ev.IsPublic {
			public = append(public, ev)
		}
	}

	snap := &Snapshot{Auction: a, Teams: teams, RecentEvents: public}
	if a.CurrentPlayerID != nil {
		p, err := s.store.GetPlayer(ctx, *a.CurrentPlayerID)
		if err != nil {
			return nil, err
		}
		snap.CurrentPlayer = p
	}
	if phase, left, ok := s.timers.Remaining(auctionID); ok {
		snap.Timer = &TimerInfo{Phase: string(phase), RemainingSeconds: int(left.Seconds())}
	}
	return snap, nil
}
