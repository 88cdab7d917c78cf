package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/domain/auction"
	"github.com/abhinavece/player-auction-backend/internal/domain/event"
	domainErrors "github.com/abhinavece/player-auction-backend/internal/domain/errors"
	"github.com/abhinavece/player-auction-backend/internal/domain/player"
	"github.com/abhinavece/player-auction-backend/internal/domain/team"
	"github.com/abhinavece/player-auction-backend/internal/domain/values"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/repository"
)

// ReturnToPool reverses a sale outside the undo stack: refund the buying
// team and put the player back on the queue per the re-queue policy.
func (s *Service) ReturnToPool(ctx context.Context, auctionID, playerID uuid.UUID, performedBy string) (*player.Player, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if p.Status != player.StatusSold || p.SoldTo == nil {
		return nil, domainErrors.NewStateConflictError("PLAYER_NOT_SOLD",
			"only a sold player can be returned to the pool")
	}

	t, err := s.store.GetTeam(ctx, *p.SoldTo)
	if err != nil {
		return nil, err
	}
	lot, ok := t.RemoveLot(playerID)
	if !ok {
		return nil, domainErrors.NewInvariantViolationError("LOT_MISSING",
			"sold player is not in the owning team squad")
	}

	p.ReturnToPool()
	enqueue(a, playerID)

	ev, err := s.journal.NextEvent(ctx, auctionID, event.TypePlayerReturned,
		event.PlayerPayload{PlayerID: playerID},
		event.ReturnReversal{PlayerID: playerID, TeamID: t.ID, Amount: lot.BoughtAt, Round: lot.Round},
		performedBy, true,
		fmt.Sprintf("%s returned to the pool", p.Name))
	if err != nil {
		return nil, err
	}

	if err := s.store.ApplyChangeSet(ctx, repository.ChangeSet{
		Auction: a,
		Teams:   []*team.Team{t},
		Players: []*player.Player{p},
		Events:  []*event.ActionEvent{ev},
	}); err != nil {
		return nil, err
	}

	s.publish(auctionID, ev)
	return p, nil
}

// Disqualify removes a player from contention. A sold player's purchase is
// refunded; a player on the block is skipped and the next one promoted.
func (s *Service) Disqualify(ctx context.Context, auctionID, playerID uuid.UUID, performedBy string) (*player.Player, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if p.IsDisqualified {
		return nil, domainErrors.NewStateConflictError("ALREADY_DISQUALIFIED",
			"player is already disqualified")
	}

	reversal := event.DisqualifyReversal{
		PlayerID:   playerID,
		PrevStatus: string(p.Status),
		SoldTo:     p.SoldTo,
		SoldAmount: p.SoldAmount,
		SoldRound:  p.SoldInRound,
	}

	cs := repository.ChangeSet{Players: []*player.Player{p}}
	if p.Status == player.StatusSold && p.SoldTo != nil {
		t, err := s.store.GetTeam(ctx, *p.SoldTo)
		if err != nil {
			return nil, err
		}
		if _, ok := t.RemoveLot(playerID); !ok {
			return nil, domainErrors.NewInvariantViolationError("LOT_MISSING",
				"sold player is not in the owning team squad")
		}
		cs.Teams = append(cs.Teams, t)
	}

	onBlock := a.CurrentPlayerID != nil && *a.CurrentPlayerID == playerID
	p.Disqualify()

	ev, err := s.journal.NextEvent(ctx, auctionID, event.TypePlayerDisqualified,
		event.PlayerPayload{PlayerID: playerID}, reversal, performedBy, true,
		fmt.Sprintf("%s disqualified", p.Name))
	if err != nil {
		return nil, err
	}
	cs.Events = []*event.ActionEvent{ev}

	var liveEv, completedEv *event.ActionEvent
	if onBlock && a.Status == auction.StatusLive {
		a.ClearCurrentLot()
		cs.Auction = a
		liveEv, err = s.promoteNext(ctx, a, &cs, performedBy)
		if err != nil {
			return nil, err
		}
		if liveEv == nil {
			a.Status = auction.StatusCompleted
			completedEv, err = s.journal.NextEvent(ctx, auctionID, event.TypeAuctionCompleted, nil, nil,
				"system", true, "Auction completed")
			if err != nil {
				return nil, err
			}
			completedEv.SequenceNumber += int64(len(cs.Events))
			cs.Events = append(cs.Events, completedEv)
		}
	}

	if err := s.store.ApplyChangeSet(ctx, cs); err != nil {
		return nil, err
	}

	s.publish(auctionID, ev)
	switch {
	case liveEv != nil:
		s.publish(auctionID, liveEv)
		s.timers.ArmPhase(auctionID, auction.PhaseRunning, a.Config.TimerDuration)
	case completedEv != nil:
		s.timers.Disarm(auctionID)
		s.publish(auctionID, completedEv)
	}
	return p, nil
}

// AdjustPurse applies an admin delta to a team purse. The purse may not go
// negative. Reversible.
func (s *Service) AdjustPurse(ctx context.Context, auctionID, teamID uuid.UUID, delta values.Money, reason, performedBy string) (*team.Team, error) {
	t, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if t.AuctionID != auctionID {
		return nil, domainErrors.ErrTeamNotFound
	}
	if delta.IsZero() {
		return nil, domainErrors.NewValidationError("ZERO_DELTA", "purse delta must be non-zero")
	}

	next := t.PurseRemaining.Add(delta)
	if next.IsNegative() {
		return nil, domainErrors.NewValidationError("PURSE_UNDERFLOW",
			"adjustment would take the purse below zero")
	}
	t.PurseRemaining = next

	ev, err := s.journal.NextEvent(ctx, auctionID, event.TypeAdminPurseAdjusted,
		event.PurseAdjustmentPayload{TeamID: teamID, Delta: delta, Reason: reason},
		event.PurseAdjustmentReversal{TeamID: teamID, Delta: delta.Neg()},
		performedBy, true,
		fmt.Sprintf("Purse of %s adjusted by %s", t.ShortName, delta))
	if err != nil {
		return nil, err
	}

	if err := s.store.ApplyChangeSet(ctx, repository.ChangeSet{
		Teams:  []*team.Team{t},
		Events: []*event.ActionEvent{ev},
	}); err != nil {
		return nil, err
	}

	s.publish(auctionID, ev)
	return t, nil
}

// Undo reverses the most recent reversible event via the journal.
func (s *Service) Undo(ctx context.Context, auctionID uuid.UUID, performedBy string) (*event.ActionEvent, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if a.Status == auction.StatusFinalized {
		return nil, domainErrors.NewStateConflictError("AUCTION_FINALIZED",
			"a finalized auction accepts no further mutations")
	}

	ev, err := s.journal.ApplyReversal(ctx, auctionID, a.Config.MaxUndoActions, performedBy)
	if err != nil {
		return nil, err
	}

	s.publish(auctionID, ev)
	s.logger.Info("undo applied",
		zap.String("auction_id", auctionID.String()),
		zap.String("performed_by", performedBy))
	return ev, nil
}

// enqueue re-inserts a player into the remaining queue per policy.
func enqueue(a *auction.Auction, playerID uuid.UUID) {
	for _, id := range a.RemainingPlayerIDs {
		if id == playerID {
			return
		}
	}
	if a.Config.RequeuePolicy == auction.RequeueTail {
		a.RemainingPlayerIDs = append(a.RemainingPlayerIDs, playerID)
		return
	}
	a.RemainingPlayerIDs = append([]uuid.UUID{playerID}, a.RemainingPlayerIDs...)
}
