package trading

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
	"github.com/abhinavece/player-auction-backend/internal/domain/trade"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/events"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/repository"
)

// AdminApprove executes a both_agreed trade: swaps the players, applies
// the purse settlement when enabled and affordable, and journals the
// reversible TRADE_EXECUTED event. If ownership changed since agreement,
// the trade auto-rejects and both sides are told.
func (s *Service) AdminApprove(ctx context.Context, auctionID, tradeID uuid.UUID, performedBy string) (*trade.Trade, error) {
	tr, err := s.getTrade(ctx, auctionID, tradeID)
	if err != nil {
		return nil, err
	}
	if tr.Status != trade.StatusBothAgreed {
		return nil, domainErrors.NewStateConflictError("TRADE_NOT_AGREED",
			fmt.Sprintf("trade is %s", tr.Status))
	}
	return s.execute(ctx, tr, performedBy)
}

// AdminInitiate builds and executes a trade in one step, bypassing
// counterparty acceptance. Permitted while the auction is in
// trade_window, completed, or paused.
func (s *Service) AdminInitiate(ctx context.Context, auctionID, initiatorTeamID, counterpartyTeamID uuid.UUID, give, want []uuid.UUID, performedBy string) (*trade.Trade, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	switch a.Status {
	case auction.StatusTradeWindow, auction.StatusCompleted, auction.StatusPaused:
	default:
		return nil, domainErrors.NewStateConflictError("TRADE_NOT_PERMITTED",
			fmt.Sprintf("admin trades are not permitted while the auction is %s", a.Status))
	}
	if initiatorTeamID == counterpartyTeamID {
		return nil, domainErrors.NewValidationError("SELF_TRADE", "a team cannot trade with itself")
	}
	if len(give) == 0 || len(want) == 0 {
		return nil, domainErrors.NewValidationError("EMPTY_SIDE", "both trade sides need at least one player")
	}
	// Admin trades count against the same per-team cap as proposals.
	if err := s.checkTradeCap(ctx, auctionID, initiatorTeamID); err != nil {
		return nil, err
	}
	if err := s.checkTradeCap(ctx, auctionID, counterpartyTeamID); err != nil {
		return nil, err
	}

	giveSide, err := s.buildSide(ctx, auctionID, initiatorTeamID, give)
	if err != nil {
		return nil, err
	}
	wantSide, err := s.buildSide(ctx, auctionID, counterpartyTeamID, want)
	if err != nil {
		return nil, err
	}

	tr := trade.New(auctionID, initiatorTeamID, counterpartyTeamID, giveSide, wantSide,
		a.Config.TradeSettlementEnabled, "")
	tr.Transition(trade.StatusBothAgreed, "Initiated by admin")
	if err := s.store.CreateTrade(ctx, tr); err != nil {
		return nil, err
	}
	return s.execute(ctx, tr, performedBy)
}

func (s *Service) execute(ctx context.Context, tr *trade.Trade, performedBy string) (*trade.Trade, error) {
	initiator, err := s.store.GetTeam(ctx, tr.InitiatorTeamID)
	if err != nil {
		return nil, err
	}
	counterparty, err := s.store.GetTeam(ctx, tr.CounterpartyTeamID)
	if err != nil {
		return nil, err
	}

	// Ownership re-check. A stale side fails the whole execution.
	for _, tp := range tr.InitiatorPlayers {
		if !initiator.Owns(tp.PlayerID) {
			return nil, s.failOwnership(ctx, tr, tp)
		}
	}
	for _, tp := range tr.CounterpartyPlayers {
		if !counterparty.Owns(tp.PlayerID) {
			return nil, s.failOwnership(ctx, tr, tp)
		}
	}

	players := make([]*player.Player, 0, len(tr.InitiatorPlayers)+len(tr.CounterpartyPlayers))
	for _, tp := range tr.InitiatorPlayers {
		p, err := s.swap(ctx, tp, initiator, counterparty)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	for _, tp := range tr.CounterpartyPlayers {
		p, err := s.swap(ctx, tp, counterparty, initiator)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}

	settlementApplied := false
	if tr.PurseSettlementEnabled && !tr.SettlementAmount.IsZero() {
		payerID := tr.PayingTeam()
		var payer, receiver *team.Team
		if payerID == initiator.ID {
			payer, receiver = initiator, counterparty
		} else {
			payer, receiver = counterparty, initiator
		}
		if payer.PurseRemaining.Compare(tr.SettlementAmount) >= 0 {
			payer.PurseRemaining = payer.PurseRemaining.Sub(tr.SettlementAmount)
			receiver.PurseRemaining = receiver.PurseRemaining.Add(tr.SettlementAmount)
			settlementApplied = true
		} else {
			tr.SettlementWarning = fmt.Sprintf(
				"settlement of %s skipped: %s purse insufficient", tr.SettlementAmount, payer.ShortName)
		}
	}

	tr.Transition(trade.StatusExecuted, "")
	tr.PublicAnnouncement = fmt.Sprintf("Trade executed between %s and %s",
		initiator.ShortName, counterparty.ShortName)

	ev, err := s.journal.NextEvent(ctx, tr.AuctionID, event.TypeTradeExecuted,
		event.TradeExecutedPayload{
			TradeID:             tr.ID,
			InitiatorTeamID:     tr.InitiatorTeamID,
			CounterpartyTeamID:  tr.CounterpartyTeamID,
			InitiatorPlayerIDs:  tr.InitiatorPlayerIDs(),
			CounterpartyPlayers: tr.CounterpartyPlayerIDs(),
			SettlementAmount:    tr.SettlementAmount,
			SettlementDirection: string(tr.SettlementDirection),
			SettlementApplied:   settlementApplied,
		},
		event.TradeReversal{TradeID: tr.ID, SettlementApplied: settlementApplied},
		performedBy, true, tr.PublicAnnouncement)
	if err != nil {
		return nil, err
	}

	if err := s.store.ApplyChangeSet(ctx, repository.ChangeSet{
		Teams:   []*team.Team{initiator, counterparty},
		Players: players,
		Trades:  []*trade.Trade{tr},
		Events:  []*event.ActionEvent{ev},
	}); err != nil {
		return nil, err
	}

	s.publisher.ToAuction(tr.AuctionID, events.NewMessage(tr.AuctionID, string(event.TypeTradeExecuted), ev))
	s.logger.Info("trade executed",
		zap.String("trade_id", tr.ID.String()),
		zap.Bool("settlement_applied", settlementApplied))
	return tr, nil
}

// swap moves one lot between teams at its original price and repoints the
// player. Purse charge and refund cancel out; settlement handles value
// differences.
func (s *Service) swap(ctx context.Context, tp trade.TradePlayer, from, to *team.Team) (*player.Player, error) {
	p, err := s.store.GetPlayer(ctx, tp.PlayerID)
	if err != nil {
		return nil, err
	}
	lot, ok := from.RemoveLot(tp.PlayerID)
	if !ok {
		return nil, domainErrors.NewInvariantViolationError("LOT_MISSING",
			fmt.Sprintf("player %s is not in the %s squad", tp.Name, from.ShortName))
	}
	to.AddLot(tp.PlayerID, lot.BoughtAt, lot.Round)
	p.SoldTo = &to.ID
	return p, nil
}

// failOwnership rejects the trade because a side no longer holds a listed
// player, and notifies both teams.
func (s *Service) failOwnership(ctx context.Context, tr *trade.Trade, tp trade.TradePlayer) error {
	tr.Transition(trade.StatusRejected, "ownership changed")
	if err := s.store.UpdateTrade(ctx, tr); err != nil {
		return err
	}
	s.notifyTeams(tr, "trade_rejected")
	return domainErrors.NewStateConflictError("OWNERSHIP_CHANGED",
		fmt.Sprintf("player %s changed hands since the trade was agreed", tp.Name))
}
