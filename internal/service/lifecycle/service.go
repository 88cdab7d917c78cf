package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/domain/auction"
	"github.com/abhinavece/player-auction-backend/internal/domain/event"
	domainErrors "github.com/abhinavece/player-auction-backend/internal/domain/errors"
	"github.com/abhinavece/player-auction-backend/internal/domain/player"
	"github.com/abhinavece/player-auction-backend/internal/domain/team"
	"github.com/abhinavece/player-auction-backend/internal/domain/values"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/events"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/repository"
	"github.com/abhinavece/player-auction-backend/internal/service/journal"
)

// TimerControl is what the lifecycle needs from the timer layer. The
// engine implements it; expiries come back through HandlePhaseExpiry on
// the coordinator goroutine.
type TimerControl interface {
	ArmPhase(auctionID uuid.UUID, phase auction.TimerPhase, seconds int)
	Disarm(auctionID uuid.UUID)
	Remaining(auctionID uuid.UUID) (auction.TimerPhase, time.Duration, bool)
}

// Service drives the auction status machine: setup, go-live, terminal
// outcomes, pause/resume, admin corrections, and finalization. Every
// state-mutating method is invoked from inside the auction coordinator.
type Service struct {
	store     repository.Store
	journal   *journal.Journal
	timers    TimerControl
	publisher events.Publisher
	logger    *zap.Logger
}

// New wires the lifecycle service.
func New(store repository.Store, jrnl *journal.Journal, timers TimerControl, publisher events.Publisher, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		journal:   jrnl,
		timers:    timers,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateAuction registers a draft auction under a unique slug.
func (s *Service) CreateAuction(ctx context.Context, name, slug, performedBy string) (*auction.Auction, error) {
	a := auction.New(name, slug)
	if err := s.store.CreateAuction(ctx, a); err != nil {
		return nil, err
	}
	if _, err := s.journal.Append(ctx, a.ID, event.TypeAuctionCreated, nil, nil, performedBy, true,
		fmt.Sprintf("Auction %s created", a.Name)); err != nil {
		return nil, err
	}
	s.logger.Info("auction created",
		zap.String("auction_id", a.ID.String()),
		zap.String("slug", a.Slug))
	return a, nil
}

// UpdateConfig replaces the bidding configuration. Draft only.
func (s *Service) UpdateConfig(ctx context.Context, auctionID uuid.UUID, cfg auction.Config) (*auction.Auction, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if a.IsConfigLocked() {
		return nil, domainErrors.NewStateConflictError("CONFIG_LOCKED",
			"configuration is immutable once the auction leaves draft")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	a.Config = cfg
	if err := s.store.UpdateAuction(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// AddTeam registers a bidding team. Permitted until go-live.
func (s *Service) AddTeam(ctx context.Context, auctionID uuid.UUID, name, shortName, credentialHash string) (*team.Team, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if a.Status != auction.StatusDraft && a.Status != auction.StatusConfigured {
		return nil, domainErrors.NewStateConflictError("ROSTER_LOCKED",
			"teams can only be added before go-live")
	}
	t := team.New(auctionID, name, shortName, a.Config.PurseValue)
	t.AccessCredentialHash = credentialHash
	if err := s.store.CreateTeam(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// AddPlayer registers a pool player. Permitted until go-live.
func (s *Service) AddPlayer(ctx context.Context, auctionID uuid.UUID, number int, name, role string, attributes map[string]string) (*player.Player, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if a.Status != auction.StatusDraft && a.Status != auction.StatusConfigured {
		return nil, domainErrors.NewStateConflictError("ROSTER_LOCKED",
			"players can only be added before go-live")
	}
	p := player.New(auctionID, number, name, role)
	p.Attributes = attributes
	if err := s.store.CreatePlayer(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RetainPlayer earmarks a pool player for a team ahead of the auction.
// The retention cost is charged when the auction is configured.
func (s *Service) RetainPlayer(ctx context.Context, auctionID, teamID, playerID uuid.UUID) (*team.Team, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if a.Status != auction.StatusDraft {
		return nil, domainErrors.NewStateConflictError("ROSTER_LOCKED",
			"retentions are set while the auction is in draft")
	}
	if !a.Config.RetentionEnabled {
		return nil, domainErrors.NewValidationError("RETENTION_DISABLED",
			"retention is not enabled for this auction")
	}
	t, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if len(t.RetainedPlayers) >= a.Config.MaxRetentions {
		return nil, domainErrors.NewResourceExhaustedError("RETENTION_CAP",
			fmt.Sprintf("team already holds %d retentions", len(t.RetainedPlayers)))
	}
	p, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if p.Status != player.StatusPool {
		return nil, domainErrors.NewStateConflictError("PLAYER_UNAVAILABLE",
			"player is no longer in the pool")
	}
	for _, r := range t.RetainedPlayers {
		if r.PlayerID == playerID {
			return nil, domainErrors.NewStateConflictError("ALREADY_RETAINED",
				"player is already retained by this team")
		}
	}

	t.RetainedPlayers = append(t.RetainedPlayers, team.Retention{PlayerID: playerID})
	p.MarkSold(teamID, values.Zero(), 0)
	if err := s.store.ApplyChangeSet(ctx, repository.ChangeSet{
		Teams:   []*team.Team{t},
		Players: []*player.Player{p},
	}); err != nil {
		return nil, err
	}
	return t, nil
}

// Configure locks the configuration and charges retention costs. Requires
// at least two active teams and a pool at least as large as the field.
func (s *Service) Configure(ctx context.Context, auctionID uuid.UUID, performedBy string) (*auction.Auction, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !a.CanTransition(auction.StatusConfigured) {
		return nil, transitionError(a.Status, auction.StatusConfigured)
	}

	teams, err := s.store.FindTeamsByAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	active := 0
	for _, t := range teams {
		if t.IsActive {
			active++
		}
	}
	if active < 2 {
		return nil, domainErrors.NewValidationError("NOT_ENOUGH_TEAMS",
			"an auction needs at least two active teams")
	}
	pool, err := s.store.FindPlayersByAuctionAndStatus(ctx, auctionID, player.StatusPool)
	if err != nil {
		return nil, err
	}
	if len(pool) < active {
		return nil, domainErrors.NewValidationError("POOL_TOO_SMALL",
			"the player pool must be at least as large as the field of teams")
	}

	cs := repository.ChangeSet{Auction: a}
	if a.Config.RetentionEnabled && a.Config.RetentionCost.IsPositive() {
		for _, t := range teams {
			if len(t.RetainedPlayers) == 0 {
				continue
			}
			for i := range t.RetainedPlayers {
				t.RetainedPlayers[i].Cost = a.Config.RetentionCost
				t.PurseRemaining = t.PurseRemaining.Sub(a.Config.RetentionCost)
			}
			if t.PurseRemaining.IsNegative() {
				return nil, domainErrors.NewValidationError("RETENTION_UNAFFORDABLE",
					fmt.Sprintf("team %s cannot afford its retentions", t.ShortName))
			}
			cs.Teams = append(cs.Teams, t)
		}
	}

	a.Status = auction.StatusConfigured
	ev, err := s.journal.NextEvent(ctx, auctionID, event.TypeAuctionConfigured, nil, nil,
		performedBy, true, "Auction configured")
	if err != nil {
		return nil, err
	}
	cs.Events = []*event.ActionEvent{ev}
	if err := s.store.ApplyChangeSet(ctx, cs); err != nil {
		return nil, err
	}

	s.publish(auctionID, ev)
	return a, nil
}

func (s *Service) publish(auctionID uuid.UUID, ev *event.ActionEvent) {
	s.publisher.ToAuction(auctionID, events.NewMessage(auctionID, string(ev.Type), ev))
}

func transitionError(from, to auction.Status) error {
	return domainErrors.NewStateConflictError("INVALID_TRANSITION",
		fmt.Sprintf("cannot move auction from %s to %s", from, to))
}

func validateConfig(cfg auction.Config) error {
	if !cfg.BasePrice.IsPositive() {
		return domainErrors.NewValidationError("INVALID_CONFIG", "base price must be positive")
	}
	if !cfg.PurseValue.IsPositive() {
		return domainErrors.NewValidationError("INVALID_CONFIG", "purse value must be positive")
	}
	if cfg.MinSquadSize < 1 || cfg.MaxSquadSize < cfg.MinSquadSize {
		return domainErrors.NewValidationError("INVALID_CONFIG", "squad size bounds are inconsistent")
	}
	if len(cfg.BidIncrementTiers) == 0 {
		return domainErrors.NewValidationError("INVALID_CONFIG", "at least one increment tier is required")
	}
	prev := values.NewMoneyFromInt(-1)
	for _, tier := range cfg.BidIncrementTiers {
		if tier.Threshold.Compare(prev) <= 0 {
			return domainErrors.NewValidationError("INVALID_CONFIG", "increment tier thresholds must be strictly ascending")
		}
		if !tier.Increment.IsPositive() {
			return domainErrors.NewValidationError("INVALID_CONFIG", "increments must be positive")
		}
		prev = tier.Threshold
	}
	if cfg.TimerDuration <= 0 || cfg.BidResetTimer <= 0 {
		return domainErrors.NewValidationError("INVALID_CONFIG", "timer durations must be positive")
	}
	return nil
}
