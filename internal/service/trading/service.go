package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/domain/auction"
	domainErrors "github.com/abhinavece/player-auction-backend/internal/domain/errors"
	"github.com/abhinavece/player-auction-backend/internal/domain/trade"
	"github.com/abhinavece/player-auction-backend/internal/domain/values"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/events"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/repository"
	"github.com/abhinavece/player-auction-backend/internal/service/journal"
)

// Service runs the bilateral trade protocol: proposal, acceptance with
// its auto-cancellation sweep, and admin-approved execution. Locking is
// asymmetric: proposing locks the initiator's players immediately; the
// counterparty's players stay offerable until acceptance.
type Service struct {
	store     repository.Store
	journal   *journal.Journal
	publisher events.Publisher
	logger    *zap.Logger
}

// New wires the trade service.
func New(store repository.Store, jrnl *journal.Journal, publisher events.Publisher, logger *zap.Logger) *Service {
	return &Service{store: store, journal: jrnl, publisher: publisher, logger: logger}
}

// Propose opens a trade in pending_counterparty. The initiator's players
// are locked from the moment the trade persists.
func (s *Service) Propose(ctx context.Context, auctionID, initiatorTeamID, counterpartyTeamID uuid.UUID, give, want []uuid.UUID, message string) (*trade.Trade, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkWindow(a); err != nil {
		return nil, err
	}
	if initiatorTeamID == counterpartyTeamID {
		return nil, domainErrors.NewValidationError("SELF_TRADE", "a team cannot trade with itself")
	}
	if len(give) == 0 || len(want) == 0 {
		return nil, domainErrors.NewValidationError("EMPTY_SIDE", "both trade sides need at least one player")
	}

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

	// Initiator players must be free of existing locks. The requested
	// counterparty players are deliberately not checked for open
	// proposals: they remain offerable in parallel until acceptance.
	for _, tp := range giveSide {
		if err := s.checkNotLocked(ctx, auctionID, tp, initiatorTeamID); err != nil {
			return nil, err
		}
	}

	tr := trade.New(auctionID, initiatorTeamID, counterpartyTeamID, giveSide, wantSide,
		a.Config.TradeSettlementEnabled, message)
	if err := s.store.CreateTrade(ctx, tr); err != nil {
		return nil, err
	}

	s.notifyTeams(tr, "trade_proposed")
	s.logger.Info("trade proposed",
		zap.String("trade_id", tr.ID.String()),
		zap.String("auction_id", auctionID.String()))
	return tr, nil
}

// Accept moves a pending trade to both_agreed and sweeps away every other
// pending trade competing for the now-committed counterparty players.
func (s *Service) Accept(ctx context.Context, auctionID, tradeID, actorTeamID uuid.UUID) (*trade.Trade, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkWindow(a); err != nil {
		return nil, err
	}
	tr, err := s.getTrade(ctx, auctionID, tradeID)
	if err != nil {
		return nil, err
	}
	if tr.Status != trade.StatusPendingCounterparty {
		return nil, domainErrors.NewStateConflictError("TRADE_NOT_PENDING",
			fmt.Sprintf("trade is %s", tr.Status))
	}
	if tr.CounterpartyTeamID != actorTeamID {
		return nil, domainErrors.NewAuthorizationError("only the counterparty team can accept")
	}

	// Counterparty players must still be owned by the counterparty and
	// free of locks from other agreed trades.
	for _, tp := range tr.CounterpartyPlayers {
		if err := s.checkOwned(ctx, tp.PlayerID, tr.CounterpartyTeamID); err != nil {
			return nil, err
		}
		if err := s.checkNotLockedExcept(ctx, auctionID, tp, tr.CounterpartyTeamID, tradeID); err != nil {
			return nil, err
		}
	}

	tr.Transition(trade.StatusBothAgreed, "")
	cs := repository.ChangeSet{Trades: []*trade.Trade{tr}}

	// Commitment sweep: every other pending proposal requesting any of
	// these players loses them.
	cancelled, err := s.sweepCompeting(ctx, auctionID, tr, &cs)
	if err != nil {
		return nil, err
	}
	if err := s.store.ApplyChangeSet(ctx, cs); err != nil {
		return nil, err
	}

	s.notifyTeams(tr, "trade_accepted")
	for _, c := range cancelled {
		s.notifyTeams(c, "trade_cancelled")
	}
	s.logger.Info("trade accepted",
		zap.String("trade_id", tr.ID.String()),
		zap.Int("auto_cancelled", len(cancelled)))
	return tr, nil
}

// Reject is the counterparty declining a pending trade.
func (s *Service) Reject(ctx context.Context, auctionID, tradeID, actorTeamID uuid.UUID, reason string) (*trade.Trade, error) {
	tr, err := s.getTrade(ctx, auctionID, tradeID)
	if err != nil {
		return nil, err
	}
	if tr.Status != trade.StatusPendingCounterparty {
		return nil, domainErrors.NewStateConflictError("TRADE_NOT_PENDING",
			fmt.Sprintf("trade is %s", tr.Status))
	}
	if tr.CounterpartyTeamID != actorTeamID {
		return nil, domainErrors.NewAuthorizationError("only the counterparty team can reject")
	}
	if reason == "" {
		reason = "Declined by counterparty"
	}
	tr.Transition(trade.StatusRejected, reason)
	if err := s.store.UpdateTrade(ctx, tr); err != nil {
		return nil, err
	}
	s.notifyTeams(tr, "trade_rejected")
	return tr, nil
}

// Withdraw is the initiator pulling a pending trade back, releasing the
// lock on their players.
func (s *Service) Withdraw(ctx context.Context, auctionID, tradeID, actorTeamID uuid.UUID) (*trade.Trade, error) {
	tr, err := s.getTrade(ctx, auctionID, tradeID)
	if err != nil {
		return nil, err
	}
	if tr.Status != trade.StatusPendingCounterparty {
		return nil, domainErrors.NewStateConflictError("TRADE_NOT_PENDING",
			fmt.Sprintf("trade is %s", tr.Status))
	}
	if tr.InitiatorTeamID != actorTeamID {
		return nil, domainErrors.NewAuthorizationError("only the initiator team can withdraw")
	}
	tr.Transition(trade.StatusWithdrawn, "Withdrawn by initiator")
	if err := s.store.UpdateTrade(ctx, tr); err != nil {
		return nil, err
	}
	s.notifyTeams(tr, "trade_withdrawn")
	return tr, nil
}

// AdminReject terminates a trade in any open state.
func (s *Service) AdminReject(ctx context.Context, auctionID, tradeID uuid.UUID, reason string) (*trade.Trade, error) {
	tr, err := s.getTrade(ctx, auctionID, tradeID)
	if err != nil {
		return nil, err
	}
	if !tr.Status.Open() {
		return nil, domainErrors.NewStateConflictError("TRADE_CLOSED",
			fmt.Sprintf("trade is %s", tr.Status))
	}
	if reason == "" {
		reason = "Rejected by admin"
	}
	tr.Transition(trade.StatusRejected, reason)
	if err := s.store.UpdateTrade(ctx, tr); err != nil {
		return nil, err
	}
	s.notifyTeams(tr, "trade_rejected")
	return tr, nil
}

// checkWindow verifies the auction is inside an unexpired trade window.
func (s *Service) checkWindow(a *auction.Auction) error {
	if a.Status != auction.StatusTradeWindow {
		return domainErrors.NewStateConflictError("TRADE_WINDOW_CLOSED",
			"trades require an open trade window")
	}
	if a.TradeWindowEndsAt != nil && time.Now().After(*a.TradeWindowEndsAt) {
		return domainErrors.NewStateConflictError("TRADE_WINDOW_EXPIRED",
			"the trade window has expired")
	}
	return nil
}

// checkTradeCap enforces maxTradesPerTeam over executed trades.
func (s *Service) checkTradeCap(ctx context.Context, auctionID, teamID uuid.UUID) error {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if a.Config.MaxTradesPerTeam <= 0 {
		return nil
	}
	executed, err := s.store.FindTradesByAuctionAndStatus(ctx, auctionID, trade.StatusExecuted)
	if err != nil {
		return err
	}
	count := 0
	for _, tr := range executed {
		if tr.InitiatorTeamID == teamID || tr.CounterpartyTeamID == teamID {
			count++
		}
	}
	if count >= a.Config.MaxTradesPerTeam {
		return domainErrors.NewResourceExhaustedError("TRADE_CAP_REACHED",
			fmt.Sprintf("team has already executed %d trades", count))
	}
	return nil
}

// buildSide snapshots players into trade entries, verifying ownership.
func (s *Service) buildSide(ctx context.Context, auctionID, teamID uuid.UUID, ids []uuid.UUID) ([]trade.TradePlayer, error) {
	side := make([]trade.TradePlayer, 0, len(ids))
	for _, id := range ids {
		p, err := s.store.GetPlayer(ctx, id)
		if err != nil {
			return nil, err
		}
		if p.AuctionID != auctionID {
			return nil, domainErrors.ErrPlayerNotFound
		}
		if p.IsDisqualified {
			return nil, domainErrors.NewValidationError("PLAYER_DISQUALIFIED",
				fmt.Sprintf("%s is disqualified and cannot be traded", p.Name))
		}
		if err := s.checkOwned(ctx, id, teamID); err != nil {
			return nil, err
		}
		amount := values.Zero()
		if p.SoldAmount != nil {
			amount = *p.SoldAmount
		}
		side = append(side, trade.TradePlayer{
			PlayerID:   p.ID,
			Name:       p.Name,
			Role:       p.Role,
			SoldAmount: amount,
		})
	}
	return side, nil
}

func (s *Service) checkOwned(ctx context.Context, playerID, teamID uuid.UUID) error {
	t, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if !t.Owns(playerID) {
		return domainErrors.NewStateConflictError("OWNERSHIP_CHANGED",
			"player is not owned by the claimed team")
	}
	return nil
}

// checkNotLocked rejects when the player is already held by an open trade
// lock: any open trade listing them on the initiator side, or a
// both_agreed trade listing them on the counterparty side.
func (s *Service) checkNotLocked(ctx context.Context, auctionID uuid.UUID, tp trade.TradePlayer, owningTeam uuid.UUID) error {
	return s.checkNotLockedExcept(ctx, auctionID, tp, owningTeam, uuid.Nil)
}

func (s *Service) checkNotLockedExcept(ctx context.Context, auctionID uuid.UUID, tp trade.TradePlayer, owningTeam, exceptTradeID uuid.UUID) error {
	open, err := s.store.FindOpenTradesForPlayer(ctx, auctionID, tp.PlayerID)
	if err != nil {
		return err
	}
	for _, tr := range open {
		if tr.ID == exceptTradeID {
			continue
		}
		onInitiatorSide := false
		for _, ip := range tr.InitiatorPlayers {
			if ip.PlayerID == tp.PlayerID {
				onInitiatorSide = true
				break
			}
		}
		if onInitiatorSide || (tr.Status == trade.StatusBothAgreed && tr.IncludesCounterpartyPlayer(tp.PlayerID)) {
			return domainErrors.NewStateConflictError("PLAYER_LOCKED",
				fmt.Sprintf("Player %s committed to another trade", tp.Name))
		}
	}
	return nil
}

// sweepCompeting cancels every other pending proposal requesting any of
// the accepted trade's counterparty players.
func (s *Service) sweepCompeting(ctx context.Context, auctionID uuid.UUID, accepted *trade.Trade, cs *repository.ChangeSet) ([]*trade.Trade, error) {
	var cancelled []*trade.Trade
	seen := map[uuid.UUID]bool{accepted.ID: true}
	for _, tp := range accepted.CounterpartyPlayers {
		open, err := s.store.FindOpenTradesForPlayer(ctx, auctionID, tp.PlayerID)
		if err != nil {
			return nil, err
		}
		for _, other := range open {
			if seen[other.ID] || other.Status != trade.StatusPendingCounterparty {
				continue
			}
			if !other.IncludesCounterpartyPlayer(tp.PlayerID) {
				continue
			}
			seen[other.ID] = true
			other.Transition(trade.StatusCancelled,
				fmt.Sprintf("Player %s committed to another trade", tp.Name))
			cs.Trades = append(cs.Trades, other)
			cancelled = append(cancelled, other)
		}
	}
	return cancelled, nil
}

func (s *Service) getTrade(ctx context.Context, auctionID, tradeID uuid.UUID) (*trade.Trade, error) {
	tr, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if tr.AuctionID != auctionID {
		return nil, domainErrors.ErrTradeNotFound
	}
	return tr, nil
}

// notifyTeams sends a trade update privately to both sides and to admins.
func (s *Service) notifyTeams(tr *trade.Trade, msgType string) {
	msg := events.NewMessage(tr.AuctionID, msgType, tr)
	s.publisher.ToTeam(tr.AuctionID, tr.InitiatorTeamID, msg)
	s.publisher.ToTeam(tr.AuctionID, tr.CounterpartyTeamID, msg)
	s.publisher.ToAdmin(tr.AuctionID, msg)
}
