package lifecycle

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/domain/auction"
	"github.com/abhinavece/player-auction-backend/internal/domain/event"
	domainErrors "github.com/abhinavece/player-auction-backend/internal/domain/errors"
	"github.com/abhinavece/player-auction-backend/internal/domain/player"
	"github.com/abhinavece/player-auction-backend/internal/domain/team"
	"github.com/abhinavece/player-auction-backend/internal/domain/trade"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/repository"
)

// GoLive snapshots the pool into the remaining queue, puts the first
// player on the block, and arms the opening countdown.
func (s *Service) GoLive(ctx context.Context, auctionID uuid.UUID, performedBy string) (*auction.Auction, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !a.CanTransition(auction.StatusLive) || a.Status != auction.StatusConfigured {
		return nil, transitionError(a.Status, auction.StatusLive)
	}

	pool, err := s.store.FindPlayersByAuctionAndStatus(ctx, auctionID, player.StatusPool)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, domainErrors.NewValidationError("POOL_EMPTY", "no pool players to auction")
	}

	switch a.Config.PoolOrder {
	case auction.PoolOrderRandom:
		rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	default:
		sort.Slice(pool, func(i, j int) bool { return pool[i].PlayerNumber < pool[j].PlayerNumber })
	}
	a.RemainingPlayerIDs = make([]uuid.UUID, 0, len(pool))
	for _, p := range pool {
		a.RemainingPlayerIDs = append(a.RemainingPlayerIDs, p.ID)
	}

	a.Status = auction.StatusLive
	a.CurrentRound = 1

	startEv, err := s.journal.NextEvent(ctx, auctionID, event.TypeAuctionStarted, nil, nil,
		performedBy, true, "Auction started")
	if err != nil {
		return nil, err
	}
	cs := repository.ChangeSet{Auction: a, Events: []*event.ActionEvent{startEv}}

	liveEv, err := s.promoteNext(ctx, a, &cs, performedBy)
	if err != nil {
		return nil, err
	}
	if liveEv == nil {
		return nil, domainErrors.NewInvariantViolationError("POOL_EMPTY",
			"go-live found no eligible player after snapshot")
	}
	if err := s.store.ApplyChangeSet(ctx, cs); err != nil {
		return nil, err
	}

	s.publish(auctionID, startEv)
	s.publish(auctionID, liveEv)
	s.timers.ArmPhase(auctionID, auction.PhaseRunning, a.Config.TimerDuration)

	s.logger.Info("auction live",
		zap.String("auction_id", auctionID.String()),
		zap.Int("pool_size", len(pool)))
	return a, nil
}

// promoteNext pops the queue head, skipping disqualified players, marks
// it live, and adds the player mutation plus PLAYER_LIVE event to the
// changeset. Returns nil when the queue is exhausted.
func (s *Service) promoteNext(ctx context.Context, a *auction.Auction, cs *repository.ChangeSet, performedBy string) (*event.ActionEvent, error) {
	var next *player.Player
	for len(a.RemainingPlayerIDs) > 0 {
		id := a.RemainingPlayerIDs[0]
		a.RemainingPlayerIDs = a.RemainingPlayerIDs[1:]
		p, err := s.store.GetPlayer(ctx, id)
		if err != nil {
			return nil, err
		}
		if p.IsDisqualified || p.Status != player.StatusPool {
			continue
		}
		next = p
		break
	}
	if next == nil {
		return nil, nil
	}

	next.Status = player.StatusLive
	a.CurrentPlayerID = &next.ID
	a.CurrentBidAmount = nil
	a.CurrentBidderTeamID = nil
	a.CurrentTimerPhase = auction.PhaseRunning

	ev, err := s.journal.NextEvent(ctx, a.ID, event.TypePlayerLive,
		event.PlayerPayload{PlayerID: next.ID}, nil, performedBy, true,
		fmt.Sprintf("%s is up for bidding", next.Name))
	if err != nil {
		return nil, err
	}
	// Journal sequences are assigned from the persisted tail; bump past
	// events already queued in this changeset.
	ev.SequenceNumber += int64(len(cs.Events))

	cs.Players = append(cs.Players, next)
	cs.Events = append(cs.Events, ev)
	return ev, nil
}

// HandlePhaseExpiry advances the countdown: running → going_once →
// going_twice → terminal outcome. Invoked by the coordinator when a timer
// fires; stale expiries for a player no longer on the block no-op.
func (s *Service) HandlePhaseExpiry(ctx context.Context, auctionID uuid.UUID, phase auction.TimerPhase) error {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if a.Status != auction.StatusLive || a.CurrentPlayerID == nil {
		return nil
	}
	if a.CurrentTimerPhase != phase {
		return nil
	}

	switch phase {
	case auction.PhaseRunning:
		return s.advancePhase(ctx, a, auction.PhaseGoingOnce, a.Config.GoingOnceTimer)
	case auction.PhaseGoingOnce:
		return s.advancePhase(ctx, a, auction.PhaseGoingTwice, a.Config.GoingTwiceTimer)
	case auction.PhaseGoingTwice:
		return s.settleCurrentLot(ctx, a)
	default:
		return nil
	}
}

func (s *Service) advancePhase(ctx context.Context, a *auction.Auction, next auction.TimerPhase, seconds int) error {
	a.CurrentTimerPhase = next

	label := "Going once"
	if next == auction.PhaseGoingTwice {
		label = "Going twice"
	}
	ev, err := s.journal.NextEvent(ctx, a.ID, event.TypePhaseAdvanced,
		event.PhasePayload{PlayerID: *a.CurrentPlayerID, Phase: string(next), Seconds: seconds},
		nil, "system", true, label)
	if err != nil {
		return err
	}
	if err := s.store.ApplyChangeSet(ctx, repository.ChangeSet{
		Auction: a,
		Events:  []*event.ActionEvent{ev},
	}); err != nil {
		return err
	}

	s.publish(a.ID, ev)
	s.timers.ArmPhase(a.ID, next, seconds)
	return nil
}

// settleCurrentLot declares the terminal outcome for the live player and
// puts the next one on the block, or completes the auction when the pool
// is exhausted.
func (s *Service) settleCurrentLot(ctx context.Context, a *auction.Auction) error {
	p, err := s.store.GetPlayer(ctx, *a.CurrentPlayerID)
	if err != nil {
		return err
	}

	cs := repository.ChangeSet{Auction: a, Players: []*player.Player{p}}
	var outcome *event.ActionEvent

	if a.HasCurrentBid() {
		t, err := s.store.GetTeam(ctx, *a.CurrentBidderTeamID)
		if err != nil {
			return err
		}
		amount := *a.CurrentBidAmount
		t.AddLot(p.ID, amount, a.CurrentRound)
		p.MarkSold(t.ID, amount, a.CurrentRound)

		outcome, err = s.journal.NextEvent(ctx, a.ID, event.TypePlayerSold,
			event.SalePayload{PlayerID: p.ID, TeamID: t.ID, Amount: amount, Round: a.CurrentRound},
			event.SaleReversal{PlayerID: p.ID, TeamID: t.ID, Amount: amount, PrevStatus: string(player.StatusLive)},
			"system", true,
			fmt.Sprintf("%s sold to %s for %s", p.Name, t.Name, amount))
		if err != nil {
			return err
		}
		cs.Teams = []*team.Team{t}
	} else {
		p.MarkUnsold()
		outcome, err = s.journal.NextEvent(ctx, a.ID, event.TypePlayerUnsold,
			event.PlayerPayload{PlayerID: p.ID},
			event.UnsoldReversal{PlayerID: p.ID},
			"system", true,
			fmt.Sprintf("%s goes unsold", p.Name))
		if err != nil {
			return err
		}
	}
	cs.Events = []*event.ActionEvent{outcome}

	a.ClearCurrentLot()

	liveEv, err := s.promoteNext(ctx, a, &cs, "system")
	if err != nil {
		return err
	}

	var completedEv *event.ActionEvent
	if liveEv == nil {
		a.Status = auction.StatusCompleted
		completedEv, err = s.journal.NextEvent(ctx, a.ID, event.TypeAuctionCompleted, nil, nil,
			"system", true, "Auction completed")
		if err != nil {
			return err
		}
		completedEv.SequenceNumber += int64(len(cs.Events))
		cs.Events = append(cs.Events, completedEv)
	}

	if err := s.store.ApplyChangeSet(ctx, cs); err != nil {
		return err
	}

	s.publish(a.ID, outcome)
	if liveEv != nil {
		s.publish(a.ID, liveEv)
		s.timers.ArmPhase(a.ID, auction.PhaseRunning, a.Config.TimerDuration)
	} else {
		s.timers.Disarm(a.ID)
		s.publish(a.ID, completedEv)
	}
	return nil
}

// Pause freezes the auction. The timer is disarmed with no residual
// countdown; the current bid is preserved.
func (s *Service) Pause(ctx context.Context, auctionID uuid.UUID, performedBy string) (*auction.Auction, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !a.CanTransition(auction.StatusPaused) {
		return nil, transitionError(a.Status, auction.StatusPaused)
	}

	a.Status = auction.StatusPaused
	a.CurrentTimerPhase = auction.PhaseNone
	ev, err := s.journal.NextEvent(ctx, auctionID, event.TypeAuctionPaused, nil, nil,
		performedBy, true, "Auction paused")
	if err != nil {
		return nil, err
	}
	if err := s.store.ApplyChangeSet(ctx, repository.ChangeSet{
		Auction: a,
		Events:  []*event.ActionEvent{ev},
	}); err != nil {
		return nil, err
	}

	s.timers.Disarm(auctionID)
	s.publish(auctionID, ev)
	return a, nil
}

// Resume returns a paused auction to live. The live player stays on the
// block; a fresh full running phase begins.
func (s *Service) Resume(ctx context.Context, auctionID uuid.UUID, performedBy string) (*auction.Auction, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if a.Status != auction.StatusPaused {
		return nil, transitionError(a.Status, auction.StatusLive)
	}

	a.Status = auction.StatusLive
	a.CurrentTimerPhase = auction.PhaseRunning
	ev, err := s.journal.NextEvent(ctx, auctionID, event.TypeAuctionResumed, nil, nil,
		performedBy, true, "Auction resumed")
	if err != nil {
		return nil, err
	}
	if err := s.store.ApplyChangeSet(ctx, repository.ChangeSet{
		Auction: a,
		Events:  []*event.ActionEvent{ev},
	}); err != nil {
		return nil, err
	}

	s.publish(auctionID, ev)
	if a.CurrentPlayerID != nil {
		s.timers.ArmPhase(auctionID, auction.PhaseRunning, a.Config.TimerDuration)
	}
	return a, nil
}

// Complete ends bidding. A player still on the block returns to the pool.
func (s *Service) Complete(ctx context.Context, auctionID uuid.UUID, performedBy string) (*auction.Auction, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !a.CanTransition(auction.StatusCompleted) {
		return nil, transitionError(a.Status, auction.StatusCompleted)
	}

	cs := repository.ChangeSet{Auction: a}
	if a.CurrentPlayerID != nil {
		p, err := s.store.GetPlayer(ctx, *a.CurrentPlayerID)
		if err != nil {
			return nil, err
		}
		if p.Status == player.StatusLive {
			p.ReturnToPool()
			cs.Players = append(cs.Players, p)
		}
	}
	a.ClearCurrentLot()
	a.Status = auction.StatusCompleted

	ev, err := s.journal.NextEvent(ctx, auctionID, event.TypeAuctionCompleted, nil, nil,
		performedBy, true, "Auction completed")
	if err != nil {
		return nil, err
	}
	cs.Events = []*event.ActionEvent{ev}
	if err := s.store.ApplyChangeSet(ctx, cs); err != nil {
		return nil, err
	}

	s.timers.Disarm(auctionID)
	s.publish(auctionID, ev)
	return a, nil
}

// OpenTradeWindow starts the post-auction trade period.
func (s *Service) OpenTradeWindow(ctx context.Context, auctionID uuid.UUID, performedBy string) (*auction.Auction, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if a.Status != auction.StatusCompleted {
		return nil, transitionError(a.Status, auction.StatusTradeWindow)
	}

	endsAt := time.Now().UTC().Add(time.Duration(a.Config.TradeWindowHours) * time.Hour)
	a.Status = auction.StatusTradeWindow
	a.TradeWindowEndsAt = &endsAt

	ev, err := s.journal.NextEvent(ctx, auctionID, event.TypeTradeWindowOpened,
		map[string]interface{}{"ends_at": endsAt}, nil, performedBy, true,
		fmt.Sprintf("Trade window open until %s", endsAt.Format(time.RFC3339)))
	if err != nil {
		return nil, err
	}
	if err := s.store.ApplyChangeSet(ctx, repository.ChangeSet{
		Auction: a,
		Events:  []*event.ActionEvent{ev},
	}); err != nil {
		return nil, err
	}

	s.publish(auctionID, ev)
	return a, nil
}

// Finalize freezes the auction. All non-executed trades expire.
func (s *Service) Finalize(ctx context.Context, auctionID uuid.UUID, performedBy string) (*auction.Auction, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !a.CanTransition(auction.StatusFinalized) {
		return nil, transitionError(a.Status, auction.StatusFinalized)
	}

	trades, err := s.store.FindTradesByAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	cs := repository.ChangeSet{Auction: a}
	for _, tr := range trades {
		if !tr.Status.Open() {
			continue
		}
		tr.Transition(trade.StatusExpired, "Auction finalized")
		cs.Trades = append(cs.Trades, tr)
	}

	now := time.Now().UTC()
	a.Status = auction.StatusFinalized
	a.FinalizedAt = &now

	ev, err := s.journal.NextEvent(ctx, auctionID, event.TypeAuctionFinalized, nil, nil,
		performedBy, true, "Auction finalized")
	if err != nil {
		return nil, err
	}
	cs.Events = []*event.ActionEvent{ev}
	if err := s.store.ApplyChangeSet(ctx, cs); err != nil {
		return nil, err
	}

	s.timers.Disarm(auctionID)
	s.publish(auctionID, ev)
	s.logger.Info("auction finalized",
		zap.String("auction_id", auctionID.String()),
		zap.Int("expired_trades", len(cs.Trades)))
	return a, nil
}
