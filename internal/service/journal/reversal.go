package journal

import (
	"context"
	"encoding/json"
	"fmt"

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

// ApplyReversal pops the latest reversible event, restores the state it
// mutated, and appends a compensating UNDO_APPLIED event in the same
// atomic write. The compensating event is itself non-reversible.
func (j *Journal) ApplyReversal(ctx context.Context, auctionID uuid.UUID, maxUndo int, performedBy string) (*event.ActionEvent, error) {
	target, err := j.SelectReversal(ctx, auctionID, maxUndo)
	if err != nil {
		return nil, err
	}

	a, err := j.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	cs, summary, err := j.buildReversal(ctx, a, target)
	if err != nil {
		return nil, err
	}

	undoEv, err := j.NextEvent(ctx, auctionID, event.TypeUndoApplied,
		event.UndoPayload{TargetSequence: target.SequenceNumber, TargetType: target.Type},
		nil, performedBy, true, summary)
	if err != nil {
		return nil, err
	}
	cs.Events = append(cs.Events, undoEv)

	if err := j.store.ApplyChangeSet(ctx, *cs); err != nil {
		return nil, err
	}
	j.logger.Info("reversal applied",
		zap.String("auction_id", auctionID.String()),
		zap.String("target_type", string(target.Type)),
		zap.Int64("target_sequence", target.SequenceNumber))
	return undoEv, nil
}

// buildReversal assembles the changeset restoring the state before target.
func (j *Journal) buildReversal(ctx context.Context, a *auction.Auction, target *event.ActionEvent) (*repository.ChangeSet, string, error) {
	switch target.Type {
	case event.TypePlayerSold:
		return j.reverseSale(ctx, a, target)
	case event.TypePlayerUnsold:
		return j.reverseUnsold(ctx, a, target)
	case event.TypePlayerReturned:
		return j.reverseReturn(ctx, a, target)
	case event.TypePlayerDisqualified:
		return j.reverseDisqualification(ctx, a, target)
	case event.TypeAdminPurseAdjusted:
		return j.reversePurseAdjustment(ctx, target)
	case event.TypeTradeExecuted:
		return j.reverseTrade(ctx, target)
	default:
		return nil, "", domainErrors.NewInvariantViolationError(
			"IRREVERSIBLE_EVENT", fmt.Sprintf("event type %s has no reversal", target.Type))
	}
}

func (j *Journal) reverseSale(ctx context.Context, a *auction.Auction, target *event.ActionEvent) (*repository.ChangeSet, string, error) {
	var rev event.SaleReversal
	if err := decode(target.ReversalPayload, &rev); err != nil {
		return nil, "", err
	}

	t, err := j.store.GetTeam(ctx, rev.TeamID)
	if err != nil {
		return nil, "", err
	}
	p, err := j.store.GetPlayer(ctx, rev.PlayerID)
	if err != nil {
		return nil, "", err
	}

	if _, ok := t.RemoveLot(rev.PlayerID); !ok {
		return nil, "", domainErrors.NewInvariantViolationError(
			"LOT_MISSING", "sold player is not in the buying team squad")
	}
	p.ReturnToPool()
	requeue(a, p.ID)

	summary := fmt.Sprintf("Sale of %s reversed; %s returned to pool", p.Name, p.Name)
	return &repository.ChangeSet{Auction: a, Teams: []*team.Team{t}, Players: []*player.Player{p}}, summary, nil
}

func (j *Journal) reverseUnsold(ctx context.Context, a *auction.Auction, target *event.ActionEvent) (*repository.ChangeSet, string, error) {
	var rev event.UnsoldReversal
	if err := decode(target.ReversalPayload, &rev); err != nil {
		return nil, "", err
	}

	p, err := j.store.GetPlayer(ctx, rev.PlayerID)
	if err != nil {
		return nil, "", err
	}
	p.ReturnToPool()
	requeue(a, p.ID)

	summary := fmt.Sprintf("Unsold outcome reversed; %s returned to pool", p.Name)
	return &repository.ChangeSet{Auction: a, Players: []*player.Player{p}}, summary, nil
}

func (j *Journal) reverseReturn(ctx context.Context, a *auction.Auction, target *event.ActionEvent) (*repository.ChangeSet, string, error) {
	var rev event.ReturnReversal
	if err := decode(target.ReversalPayload, &rev); err != nil {
		return nil, "", err
	}

	t, err := j.store.GetTeam(ctx, rev.TeamID)
	if err != nil {
		return nil, "", err
	}
	p, err := j.store.GetPlayer(ctx, rev.PlayerID)
	if err != nil {
		return nil, "", err
	}

	// Re-apply the refunded sale and take the player back off the queue.
	t.AddLot(rev.PlayerID, rev.Amount, rev.Round)
	p.MarkSold(rev.TeamID, rev.Amount, rev.Round)
	dequeue(a, rev.PlayerID)

	summary := fmt.Sprintf("Return of %s to pool reversed; sale to %s restored", p.Name, t.ShortName)
	return &repository.ChangeSet{Auction: a, Teams: []*team.Team{t}, Players: []*player.Player{p}}, summary, nil
}

func (j *Journal) reverseDisqualification(ctx context.Context, a *auction.Auction, target *event.ActionEvent) (*repository.ChangeSet, string, error) {
	var rev event.DisqualifyReversal
	if err := decode(target.ReversalPayload, &rev); err != nil {
		return nil, "", err
	}

	p, err := j.store.GetPlayer(ctx, rev.PlayerID)
	if err != nil {
		return nil, "", err
	}
	p.IsDisqualified = false

	cs := &repository.ChangeSet{Players: []*player.Player{p}}
	switch player.Status(rev.PrevStatus) {
	case player.StatusSold:
		// Restore the sale: re-charge the buying team.
		if rev.SoldTo == nil || rev.SoldAmount == nil {
			return nil, "", domainErrors.NewInvariantViolationError(
				"REVERSAL_CORRUPT", "sold reversal payload missing sale fields")
		}
		t, err := j.store.GetTeam(ctx, *rev.SoldTo)
		if err != nil {
			return nil, "", err
		}
		t.AddLot(p.ID, *rev.SoldAmount, rev.SoldRound)
		p.MarkSold(*rev.SoldTo, *rev.SoldAmount, rev.SoldRound)
		cs.Teams = append(cs.Teams, t)
	case player.StatusUnsold:
		p.MarkUnsold()
	default:
		p.ReturnToPool()
		requeue(a, p.ID)
		cs.Auction = a
	}

	summary := fmt.Sprintf("Disqualification of %s reversed", p.Name)
	return cs, summary, nil
}

func (j *Journal) reversePurseAdjustment(ctx context.Context, target *event.ActionEvent) (*repository.ChangeSet, string, error) {
	var rev event.PurseAdjustmentReversal
	if err := decode(target.ReversalPayload, &rev); err != nil {
		return nil, "", err
	}

	t, err := j.store.GetTeam(ctx, rev.TeamID)
	if err != nil {
		return nil, "", err
	}
	t.PurseRemaining = t.PurseRemaining.Add(rev.Delta)

	summary := fmt.Sprintf("Purse adjustment for %s reversed", t.ShortName)
	return &repository.ChangeSet{Teams: []*team.Team{t}}, summary, nil
}

func (j *Journal) reverseTrade(ctx context.Context, target *event.ActionEvent) (*repository.ChangeSet, string, error) {
	var rev event.TradeReversal
	if err := decode(target.ReversalPayload, &rev); err != nil {
		return nil, "", err
	}

	tr, err := j.store.GetTrade(ctx, rev.TradeID)
	if err != nil {
		return nil, "", err
	}
	initiator, err := j.store.GetTeam(ctx, tr.InitiatorTeamID)
	if err != nil {
		return nil, "", err
	}
	counterparty, err := j.store.GetTeam(ctx, tr.CounterpartyTeamID)
	if err != nil {
		return nil, "", err
	}

	var players []*player.Player
	// Initiator-side players went to the counterparty; bring them back.
	for _, tp := range tr.InitiatorPlayers {
		p, err := j.movePlayerBetweenTeams(ctx, tp, counterparty, initiator)
		if err != nil {
			return nil, "", err
		}
		players = append(players, p)
	}
	for _, tp := range tr.CounterpartyPlayers {
		p, err := j.movePlayerBetweenTeams(ctx, tp, initiator, counterparty)
		if err != nil {
			return nil, "", err
		}
		players = append(players, p)
	}

	if rev.SettlementApplied && !tr.SettlementAmount.IsZero() {
		// Settlement flowed payer -> receiver; push it back.
		payer, receiver := tr.PayingTeam(), tr.ReceivingTeam()
		for _, t := range []*team.Team{initiator, counterparty} {
			if t.ID == payer {
				t.PurseRemaining = t.PurseRemaining.Add(tr.SettlementAmount)
			}
			if t.ID == receiver {
				t.PurseRemaining = t.PurseRemaining.Sub(tr.SettlementAmount)
			}
		}
	}

	tr.Transition(trade.StatusCancelled, "Reversed by undo")

	summary := fmt.Sprintf("Trade between %s and %s reversed", initiator.ShortName, counterparty.ShortName)
	return &repository.ChangeSet{
		Teams:   []*team.Team{initiator, counterparty},
		Players: players,
		Trades:  []*trade.Trade{tr},
	}, summary, nil
}

func (j *Journal) movePlayerBetweenTeams(ctx context.Context, tp trade.TradePlayer, from, to *team.Team) (*player.Player, error) {
	p, err := j.store.GetPlayer(ctx, tp.PlayerID)
	if err != nil {
		return nil, err
	}
	lot, ok := from.RemoveLot(tp.PlayerID)
	if !ok {
		return nil, domainErrors.NewInvariantViolationError(
			"LOT_MISSING", fmt.Sprintf("player %s is not owned by %s", tp.Name, from.ShortName))
	}
	to.AddLot(tp.PlayerID, lot.BoughtAt, lot.Round)
	p.SoldTo = &to.ID
	return p, nil
}

// requeue re-inserts a player into the remaining pool per the configured
// policy (default head).
func requeue(a *auction.Auction, playerID uuid.UUID) {
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

// dequeue removes a player from the remaining pool queue if present.
func dequeue(a *auction.Auction, playerID uuid.UUID) {
	for i, id := range a.RemainingPlayerIDs {
		if id == playerID {
			a.RemainingPlayerIDs = append(a.RemainingPlayerIDs[:i], a.RemainingPlayerIDs[i+1:]...)
			return
		}
	}
}

func decode(raw json.RawMessage, dest interface{}) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return domainErrors.NewInvariantViolationError(
			"REVERSAL_CORRUPT", "reversal payload could not be decoded").WithCause(err)
	}
	return nil
}
