package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/abhinavece/player-auction-backend/internal/domain/auction"
	"github.com/abhinavece/player-auction-backend/internal/domain/event"
	"github.com/abhinavece/player-auction-backend/internal/domain/player"
	"github.com/abhinavece/player-auction-backend/internal/domain/team"
	"github.com/abhinavece/player-auction-backend/internal/domain/trade"
)

// MemoryStore is the in-memory Store used by the engine tests and the
// server's dev mode. Entities are deep-copied on the way in and out so
// callers never alias stored state.
type MemoryStore struct {
	mu sync.RWMutex

	auctions map[uuid.UUID]*auction.Auction
	slugs    map[string]uuid.UUID
	teams    map[uuid.UUID]*team.Team
	players  map[uuid.UUID]*player.Player
	trades   map[uuid.UUID]*trade.Trade
	events   map[uuid.UUID][]*event.ActionEvent
	audits   map[uuid.UUID][]*event.BidAudit
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions: make(map[uuid.UUID]*auction.Auction),
		slugs:    make(map[string]uuid.UUID),
		teams:    make(map[uuid.UUID]*team.Team),
		players:  make(map[uuid.UUID]*player.Player),
		trades:   make(map[uuid.UUID]*trade.Trade),
		events:   make(map[uuid.UUID][]*event.ActionEvent),
		audits:   make(map[uuid.UUID][]*event.BidAudit),
	}
}

// Auctions

func (s *MemoryStore) CreateAuction(_ context.Context, a *auction.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.auctions[a.ID]; exists {
		return errDuplicate("auction")
	}
	if _, exists := s.slugs[a.Slug]; exists {
		return errDuplicate("auction slug")
	}
	a.Version = 1
	s.auctions[a.ID] = copyAuction(a)
	s.slugs[a.Slug] = a.ID
	return nil
}

func (s *MemoryStore) GetAuction(_ context.Context, id uuid.UUID) (*auction.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[id]
	if !ok {
		return nil, errNotFound("auction")
	}
	return copyAuction(a), nil
}

func (s *MemoryStore) GetAuctionBySlug(_ context.Context, slug string) (*auction.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.slugs[slug]
	if !ok {
		return nil, errNotFound("auction")
	}
	return copyAuction(s.auctions[id]), nil
}

func (s *MemoryStore) ListAuctions(_ context.Context) ([]*auction.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*auction.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		out = append(out, copyAuction(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateAuction(_ context.Context, a *auction.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateAuctionLocked(a)
}

// Teams

func (s *MemoryStore) CreateTeam(_ context.Context, t *team.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.teams[t.ID]; exists {
		return errDuplicate("team")
	}
	for _, other := range s.teams {
		if other.AuctionID == t.AuctionID && other.ShortName == t.ShortName {
			return errDuplicate("team short name")
		}
	}
	t.Version = 1
	s.teams[t.ID] = copyTeam(t)
	return nil
}

func (s *MemoryStore) GetTeam(_ context.Context, id uuid.UUID) (*team.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.teams[id]
	if !ok {
		return nil, errNotFound("team")
	}
	return copyTeam(t), nil
}

func (s *MemoryStore) FindTeamsByAuction(_ context.Context, auctionID uuid.UUID) ([]*team.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*team.Team
	for _, t := range s.teams {
		if t.AuctionID == auctionID {
			out = append(out, copyTeam(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShortName < out[j].ShortName })
	return out, nil
}

func (s *MemoryStore) UpdateTeam(_ context.Context, t *team.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateTeamLocked(t)
}

// Players

func (s *MemoryStore) CreatePlayer(_ context.Context, p *player.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.players[p.ID]; exists {
		return errDuplicate("player")
	}
	p.Version = 1
	s.players[p.ID] = copyPlayer(p)
	return nil
}

func (s *MemoryStore) GetPlayer(_ context.Context, id uuid.UUID) (*player.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return nil, errNotFound("player")
	}
	return copyPlayer(p), nil
}

func (s *MemoryStore) FindPlayersByAuction(_ context.Context, auctionID uuid.UUID) ([]*player.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*player.Player
	for _, p := range s.players {
		if p.AuctionID == auctionID {
			out = append(out, copyPlayer(p))
		}
	}
	sortPlayers(out)
	return out, nil
}

func (s *MemoryStore) FindPlayersByAuctionAndStatus(_ context.Context, auctionID uuid.UUID, status player.Status) ([]*player.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*player.Player
	for _, p := range s.players {
		if p.AuctionID == auctionID && p.Status == status {
			out = append(out, copyPlayer(p))
		}
	}
	sortPlayers(out)
	return out, nil
}

func (s *MemoryStore) UpdatePlayer(_ context.Context, p *player.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatePlayerLocked(p)
}

// Composite operations

func (s *MemoryStore) AssignPlayerToTeam(ctx context.Context, cs ChangeSet) error {
	return s.ApplyChangeSet(ctx, cs)
}

func (s *MemoryStore) ApplyChangeSet(_ context.Context, cs ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every version before mutating anything.
	if cs.Auction != nil {
		if err := s.checkAuctionVersion(cs.Auction); err != nil {
			return err
		}
	}
	for _, t := range cs.Teams {
		if err := s.checkTeamVersion(t); err != nil {
			return err
		}
	}
	for _, p := range cs.Players {
		if err := s.checkPlayerVersion(p); err != nil {
			return err
		}
	}
	for _, t := range cs.Trades {
		if err := s.checkTradeVersion(t); err != nil {
			return err
		}
	}
	nextSeq := make(map[uuid.UUID]int64)
	for _, ev := range cs.Events {
		if _, ok := nextSeq[ev.AuctionID]; !ok {
			nextSeq[ev.AuctionID] = s.lastSequenceLocked(ev.AuctionID) + 1
		}
		if ev.SequenceNumber != nextSeq[ev.AuctionID] {
			return errConstraintViolation("event sequence must be gap-free")
		}
		nextSeq[ev.AuctionID]++
	}

	if cs.Auction != nil {
		_ = s.updateAuctionLocked(cs.Auction)
	}
	for _, t := range cs.Teams {
		_ = s.updateTeamLocked(t)
	}
	for _, p := range cs.Players {
		_ = s.updatePlayerLocked(p)
	}
	for _, t := range cs.Trades {
		_ = s.updateTradeLocked(t)
	}
	for _, ev := range cs.Events {
		s.events[ev.AuctionID] = append(s.events[ev.AuctionID], copyEvent(ev))
	}
	for _, a := range cs.Audits {
		audit := *a
		s.audits[a.AuctionID] = append(s.audits[a.AuctionID], &audit)
	}
	return nil
}

// Events

func (s *MemoryStore) AppendEvent(_ context.Context, ev *event.ActionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEventSequence(ev); err != nil {
		return err
	}
	s.events[ev.AuctionID] = append(s.events[ev.AuctionID], copyEvent(ev))
	return nil
}

func (s *MemoryStore) LastSequence(_ context.Context, auctionID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evs := s.events[auctionID]
	if len(evs) == 0 {
		return 0, nil
	}
	return evs[len(evs)-1].SequenceNumber, nil
}

func (s *MemoryStore) TailEvents(_ context.Context, auctionID uuid.UUID, k int) ([]*event.ActionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evs := s.events[auctionID]
	if k <= 0 || k > len(evs) {
		k = len(evs)
	}
	out := make([]*event.ActionEvent, 0, k)
	for i := len(evs) - 1; i >= len(evs)-k; i-- {
		out = append(out, copyEvent(evs[i]))
	}
	return out, nil
}

// Bid audits

func (s *MemoryStore) AppendBidAudit(_ context.Context, a *event.BidAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	audit := *a
	s.audits[a.AuctionID] = append(s.audits[a.AuctionID], &audit)
	return nil
}

func (s *MemoryStore) ListBidAudits(_ context.Context, auctionID uuid.UUID, limit int) ([]*event.BidAudit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	audits := s.audits[auctionID]
	if limit <= 0 || limit > len(audits) {
		limit = len(audits)
	}
	out := make([]*event.BidAudit, 0, limit)
	for i := len(audits) - 1; i >= len(audits)-limit; i-- {
		audit := *audits[i]
		out = append(out, &audit)
	}
	return out, nil
}

// Trades

func (s *MemoryStore) CreateTrade(_ context.Context, t *trade.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trades[t.ID]; exists {
		return errDuplicate("trade")
	}
	t.Version = 1
	s.trades[t.ID] = copyTrade(t)
	return nil
}

func (s *MemoryStore) GetTrade(_ context.Context, id uuid.UUID) (*trade.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trades[id]
	if !ok {
		return nil, errNotFound("trade")
	}
	return copyTrade(t), nil
}

func (s *MemoryStore) FindTradesByAuction(_ context.Context, auctionID uuid.UUID) ([]*trade.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*trade.Trade
	for _, t := range s.trades {
		if t.AuctionID == auctionID {
			out = append(out, copyTrade(t))
		}
	}
	sortTrades(out)
	return out, nil
}

func (s *MemoryStore) FindTradesByAuctionAndStatus(_ context.Context, auctionID uuid.UUID, statuses ...trade.Status) ([]*trade.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*trade.Trade
	for _, t := range s.trades {
		if t.AuctionID != auctionID {
			continue
		}
		for _, st := range statuses {
			if t.Status == st {
				out = append(out, copyTrade(t))
				break
			}
		}
	}
	sortTrades(out)
	return out, nil
}

func (s *MemoryStore) FindOpenTradesForPlayer(_ context.Context, auctionID, playerID uuid.UUID) ([]*trade.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*trade.Trade
	for _, t := range s.trades {
		if t.AuctionID != auctionID || !t.Status.Open() {
			continue
		}
		if containsPlayer(t.InitiatorPlayers, playerID) || containsPlayer(t.CounterpartyPlayers, playerID) {
			out = append(out, copyTrade(t))
		}
	}
	sortTrades(out)
	return out, nil
}

func (s *MemoryStore) UpdateTrade(_ context.Context, t *trade.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateTradeLocked(t)
}

// Locked helpers. Callers hold s.mu.

func (s *MemoryStore) checkAuctionVersion(a *auction.Auction) error {
	cur, ok := s.auctions[a.ID]
	if !ok {
		return errNotFound("auction")
	}
	if cur.Version != a.Version {
		return errStaleVersion("auction")
	}
	return nil
}

func (s *MemoryStore) updateAuctionLocked(a *auction.Auction) error {
	if err := s.checkAuctionVersion(a); err != nil {
		return err
	}
	a.Version++
	s.auctions[a.ID] = copyAuction(a)
	return nil
}

func (s *MemoryStore) checkTeamVersion(t *team.Team) error {
	cur, ok := s.teams[t.ID]
	if !ok {
		return errNotFound("team")
	}
	if cur.Version != t.Version {
		return errStaleVersion("team")
	}
	return nil
}

func (s *MemoryStore) updateTeamLocked(t *team.Team) error {
	if err := s.checkTeamVersion(t); err != nil {
		return err
	}
	t.Version++
	s.teams[t.ID] = copyTeam(t)
	return nil
}

func (s *MemoryStore) checkPlayerVersion(p *player.Player) error {
	cur, ok := s.players[p.ID]
	if !ok {
		return errNotFound("player")
	}
	if cur.Version != p.Version {
		return errStaleVersion("player")
	}
	return nil
}

func (s *MemoryStore) updatePlayerLocked(p *player.Player) error {
	if err := s.checkPlayerVersion(p); err != nil {
		return err
	}
	p.Version++
	s.players[p.ID] = copyPlayer(p)
	return nil
}

func (s *MemoryStore) checkTradeVersion(t *trade.Trade) error {
	cur, ok := s.trades[t.ID]
	if !ok {
		return errNotFound("trade")
	}
	if cur.Version != t.Version {
		return errStaleVersion("trade")
	}
	return nil
}

func (s *MemoryStore) updateTradeLocked(t *trade.Trade) error {
	if err := s.checkTradeVersion(t); err != nil {
		return err
	}
	t.Version++
	s.trades[t.ID] = copyTrade(t)
	return nil
}

func (s *MemoryStore) checkEventSequence(ev *event.ActionEvent) error {
	if ev.SequenceNumber != s.lastSequenceLocked(ev.AuctionID)+1 {
		return errConstraintViolation("event sequence must be gap-free")
	}
	return nil
}

func (s *MemoryStore) lastSequenceLocked(auctionID uuid.UUID) int64 {
	evs := s.events[auctionID]
	if len(evs) == 0 {
		return 0
	}
	return evs[len(evs)-1].SequenceNumber
}

// Deep copies

func copyAuction(a *auction.Auction) *auction.Auction {
	out := *a
	out.RemainingPlayerIDs = append([]uuid.UUID(nil), a.RemainingPlayerIDs...)
	out.Config.BidIncrementTiers = append([]auction.IncrementTier(nil), a.Config.BidIncrementTiers...)
	if a.CurrentPlayerID != nil {
		id := *a.CurrentPlayerID
		out.CurrentPlayerID = &id
	}
	if a.CurrentBidderTeamID != nil {
		id := *a.CurrentBidderTeamID
		out.CurrentBidderTeamID = &id
	}
	if a.CurrentBidAmount != nil {
		amt := *a.CurrentBidAmount
		out.CurrentBidAmount = &amt
	}
	if a.TradeWindowEndsAt != nil {
		ts := *a.TradeWindowEndsAt
		out.TradeWindowEndsAt = &ts
	}
	if a.FinalizedAt != nil {
		ts := *a.FinalizedAt
		out.FinalizedAt = &ts
	}
	return &out
}

func copyTeam(t *team.Team) *team.Team {
	out := *t
	out.Players = append([]team.Lot(nil), t.Players...)
	out.RetainedPlayers = append([]team.Retention(nil), t.RetainedPlayers...)
	return &out
}

func copyPlayer(p *player.Player) *player.Player {
	out := *p
	if p.SoldTo != nil {
		id := *p.SoldTo
		out.SoldTo = &id
	}
	if p.SoldAmount != nil {
		amt := *p.SoldAmount
		out.SoldAmount = &amt
	}
	if p.Attributes != nil {
		out.Attributes = make(map[string]string, len(p.Attributes))
		for k, v := range p.Attributes {
			out.Attributes[k] = v
		}
	}
	return &out
}

func copyTrade(t *trade.Trade) *trade.Trade {
	out := *t
	out.InitiatorPlayers = append([]trade.TradePlayer(nil), t.InitiatorPlayers...)
	out.CounterpartyPlayers = append([]trade.TradePlayer(nil), t.CounterpartyPlayers...)
	if t.ExecutedAt != nil {
		ts := *t.ExecutedAt
		out.ExecutedAt = &ts
	}
	return &out
}

func copyEvent(ev *event.ActionEvent) *event.ActionEvent {
	out := *ev
	out.Payload = append([]byte(nil), ev.Payload...)
	out.ReversalPayload = append([]byte(nil), ev.ReversalPayload...)
	return &out
}

func sortPlayers(ps []*player.Player) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].PlayerNumber < ps[j].PlayerNumber })
}

func sortTrades(ts []*trade.Trade) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].CreatedAt.Before(ts[j].CreatedAt) })
}

func containsPlayer(side []trade.TradePlayer, playerID uuid.UUID) bool {
	for _, p := range side {
		if p.PlayerID == playerID {
			return true
		}
	}
	return false
}
