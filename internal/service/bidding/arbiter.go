package bidding

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/domain/auction"
	"github.com/abhinavece/player-auction-backend/internal/domain/event"
	domainErrors "github.com/abhinavece/player-auction-backend/internal/domain/errors"
	"github.com/abhinavece/player-auction-backend/internal/domain/team"
	"github.com/abhinavece/player-auction-backend/internal/domain/values"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/events"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/repository"
	"github.com/abhinavece/player-auction-backend/internal/service/journal"
)

// Rejection reasons recorded in the bid audit log and sent privately to
// the bidding team.
const (
	ReasonAuctionNotLive       = "auction_not_live"
	ReasonNoCurrentPlayer      = "no_current_player"
	ReasonTeamNotEligible      = "team_not_eligible"
	ReasonAlreadyHighestBidder = "already_highest_bidder"
	ReasonSquadFull            = "squad_full"
	ReasonBidNotNextIncrement  = "bid_not_next_increment"
	ReasonMinSquadUnaffordable = "insufficient_purse_for_min_squad"
	ReasonInsufficientPurse    = "insufficient_purse"
	ReasonRateLimited          = "rate_limited"
)

// TimerResetter restarts the bidding countdown after an accepted bid.
// Implemented by the engine coordinator glue.
type TimerResetter interface {
	ResetBidTimer(auctionID uuid.UUID, seconds int)
}

// Result is the outcome of an accepted bid.
type Result struct {
	Auction *auction.Auction
	Event   *event.ActionEvent
}

// Arbiter validates bid attempts against live auction state and commits
// accepted bids atomically with their journal entry and audit row. It is
// always invoked from inside the auction coordinator, so validation and
// commit cannot interleave with other mutations on the same auction.
type Arbiter struct {
	store     repository.Store
	journal   *journal.Journal
	timers    TimerResetter
	publisher events.Publisher
	limiter   *teamLimiter
	logger    *zap.Logger
}

// NewArbiter wires the arbiter. perTeamRate is bids per second allowed
// per team; burst is the short-burst allowance.
func NewArbiter(store repository.Store, jrnl *journal.Journal, timers TimerResetter, publisher events.Publisher, perTeamRate float64, burst int, logger *zap.Logger) *Arbiter {
	return &Arbiter{
		store:     store,
		journal:   jrnl,
		timers:    timers,
		publisher: publisher,
		limiter:   newTeamLimiter(perTeamRate, burst),
		logger:    logger,
	}
}

// PlaceBid runs the precondition chain in order and either commits the
// bid or records a rejection. Rejections never disturb the timer or the
// public auction state; the reason goes to the bidding team only.
func (ar *Arbiter) PlaceBid(ctx context.Context, auctionID, teamID uuid.UUID, attempted values.Money) (*Result, error) {
	if !ar.limiter.allow(teamID) {
		// Rate-limited attempts are dropped before they reach state; no
		// audit row, since the attempt never entered arbitration.
		return nil, ar.reject(ctx, auctionID, teamID, nil, attempted, ReasonRateLimited, false)
	}

	res, err := ar.tryPlace(ctx, auctionID, teamID, attempted)
	if err != nil && domainErrors.Code(err) == "STALE_VERSION" {
		// Another writer slipped in between our read and commit. One
		// re-validation pass against the fresh state settles it.
		ar.logger.Debug("bid hit stale version, revalidating",
			zap.String("auction_id", auctionID.String()),
			zap.String("team_id", teamID.String()))
		res, err = ar.tryPlace(ctx, auctionID, teamID, attempted)
	}
	return res, err
}

func (ar *Arbiter) tryPlace(ctx context.Context, auctionID, teamID uuid.UUID, attempted values.Money) (*Result, error) {
	a, err := ar.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	t, err := ar.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}

	if reason := ar.validate(a, t, attempted); reason != "" {
		return nil, ar.reject(ctx, auctionID, teamID, a.CurrentPlayerID, attempted, reason, true)
	}

	a.CurrentBidAmount = &attempted
	a.CurrentBidderTeamID = &teamID
	a.CurrentTimerPhase = auction.PhaseRunning

	ev, err := ar.journal.NextEvent(ctx, auctionID, event.TypeBidAccepted,
		event.BidPayload{
			PlayerID: *a.CurrentPlayerID,
			TeamID:   teamID,
			Amount:   attempted,
		},
		nil, teamID.String(), true,
		fmt.Sprintf("%s bid %s", t.Name, attempted))
	if err != nil {
		return nil, err
	}

	audit := event.NewBidAudit(auctionID, *a.CurrentPlayerID, teamID, attempted, event.BidAuditAccepted, "")
	cs := repository.ChangeSet{
		Auction: a,
		Events:  []*event.ActionEvent{ev},
		Audits:  []*event.BidAudit{audit},
	}
	if err := ar.store.ApplyChangeSet(ctx, cs); err != nil {
		return nil, err
	}

	ar.timers.ResetBidTimer(auctionID, a.Config.BidResetTimer)
	ar.publisher.ToAuction(auctionID, events.NewMessage(auctionID, string(event.TypeBidAccepted), ev))

	ar.logger.Info("bid accepted",
		zap.String("auction_id", auctionID.String()),
		zap.String("team_id", teamID.String()),
		zap.String("amount", attempted.String()))
	return &Result{Auction: a, Event: ev}, nil
}

// validate runs the ordered precondition chain and returns the first
// failing reason, or "" when the bid is acceptable.
func (ar *Arbiter) validate(a *auction.Auction, t *team.Team, attempted values.Money) string {
	if a.Status != auction.StatusLive {
		return ReasonAuctionNotLive
	}
	if a.CurrentPlayerID == nil {
		return ReasonNoCurrentPlayer
	}
	if !t.IsActive || t.AuctionID != a.ID {
		return ReasonTeamNotEligible
	}
	if a.CurrentBidderTeamID != nil && *a.CurrentBidderTeamID == t.ID {
		return ReasonAlreadyHighestBidder
	}
	if t.SquadSize() >= a.Config.MaxSquadSize {
		return ReasonSquadFull
	}
	if !attempted.Equal(a.NextBidAmount()) {
		return ReasonBidNotNextIncrement
	}

	// Reserve base price for each squad slot still required after this
	// purchase.
	slotsLeft := a.Config.MinSquadSize - t.SquadSize() - 1
	if slotsLeft > 0 {
		reserve := a.Config.BasePrice.MulInt(int64(slotsLeft))
		if t.PurseRemaining.Sub(attempted).Compare(reserve) < 0 {
			return ReasonMinSquadUnaffordable
		}
	}
	if attempted.Compare(t.PurseRemaining) > 0 {
		return ReasonInsufficientPurse
	}
	return ""
}

// reject records the attempt (unless audit is false) and notifies the
// bidding team privately. The returned error carries the reason as its
// code so the HTTP layer can surface it.
func (ar *Arbiter) reject(ctx context.Context, auctionID, teamID uuid.UUID, playerID *uuid.UUID, attempted values.Money, reason string, audit bool) error {
	if audit {
		pid := uuid.Nil
		if playerID != nil {
			pid = *playerID
		}
		row := event.NewBidAudit(auctionID, pid, teamID, attempted, event.BidAuditRejected, reason)
		if err := ar.store.AppendBidAudit(ctx, row); err != nil {
			ar.logger.Warn("bid audit write failed",
				zap.String("auction_id", auctionID.String()),
				zap.Error(err))
		}
	}

	ar.publisher.ToTeam(auctionID, teamID, events.NewMessage(auctionID, "bid_rejected", map[string]interface{}{
		"team_id":          teamID,
		"attempted_amount": attempted,
		"reason":           reason,
	}))

	ar.logger.Debug("bid rejected",
		zap.String("auction_id", auctionID.String()),
		zap.String("team_id", teamID.String()),
		zap.String("reason", reason))
	return domainErrors.NewValidationError(reason, "bid rejected: "+reason)
}
