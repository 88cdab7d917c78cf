package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/domain/auction"
	"github.com/abhinavece/player-auction-backend/internal/domain/event"
	"github.com/abhinavece/player-auction-backend/internal/domain/player"
	"github.com/abhinavece/player-auction-backend/internal/domain/team"
	"github.com/abhinavece/player-auction-backend/internal/domain/trade"
	"github.com/abhinavece/player-auction-backend/internal/domain/values"
)

const uniqueViolation = "23505"

// PostgresStore implements Store on PostgreSQL. Composite operations run
// in a single transaction; optimistic version checks guard every update.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a Store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Auctions

const auctionColumns = `id, slug, name, status, config, current_player_id,
	current_bid_amount::text, current_bidder_team_id, current_timer_phase,
	current_round, remaining_player_ids, trade_window_ends_at, finalized_at,
	version, created_at, updated_at`

func (s *PostgresStore) CreateAuction(ctx context.Context, a *auction.Auction) error {
	a.Version = 1
	return s.insertAuction(ctx, s.pool, a)
}

func (s *PostgresStore) insertAuction(ctx context.Context, q querier, a *auction.Auction) error {
	configJSON, err := json.Marshal(a.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	remainingJSON, err := json.Marshal(a.RemainingPlayerIDs)
	if err != nil {
		return fmt.Errorf("marshal remaining ids: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO auctions (
			id, slug, name, status, config, current_player_id,
			current_bid_amount, current_bidder_team_id, current_timer_phase,
			current_round, remaining_player_ids, trade_window_ends_at,
			finalized_at, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		a.ID, a.Slug, a.Name, string(a.Status), configJSON, a.CurrentPlayerID,
		moneyPtr(a.CurrentBidAmount), a.CurrentBidderTeamID, string(a.CurrentTimerPhase),
		a.CurrentRound, remainingJSON, a.TradeWindowEndsAt,
		a.FinalizedAt, a.Version, a.CreatedAt, a.UpdatedAt,
	)
	return s.mapWriteErr(err, "auction")
}

func (s *PostgresStore) GetAuction(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	return s.getAuction(ctx, s.pool, `WHERE id = $1`, id)
}

func (s *PostgresStore) GetAuctionBySlug(ctx context.Context, slug string) (*auction.Auction, error) {
	return s.getAuction(ctx, s.pool, `WHERE slug = $1`, slug)
}

func (s *PostgresStore) getAuction(ctx context.Context, q querier, where string, arg any) (*auction.Auction, error) {
	row := q.QueryRow(ctx, `SELECT `+auctionColumns+` FROM auctions `+where, arg)
	a, err := scanAuction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errNotFound("auction")
		}
		return nil, errTransient(err)
	}
	return a, nil
}

func (s *PostgresStore) ListAuctions(ctx context.Context) ([]*auction.Auction, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+auctionColumns+` FROM auctions ORDER BY created_at`)
	if err != nil {
		return nil, errTransient(err)
	}
	defer rows.Close()

	var out []*auction.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, errTransient(err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateAuction(ctx context.Context, a *auction.Auction) error {
	return s.updateAuction(ctx, s.pool, a)
}

func (s *PostgresStore) updateAuction(ctx context.Context, q querier, a *auction.Auction) error {
	configJSON, err := json.Marshal(a.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	remainingJSON, err := json.Marshal(a.RemainingPlayerIDs)
	if err != nil {
		return fmt.Errorf("marshal remaining ids: %w", err)
	}

	a.UpdatedAt = time.Now().UTC()
	tag, err := q.Exec(ctx, `
		UPDATE auctions SET
			status = $2, config = $3, current_player_id = $4,
			current_bid_amount = $5, current_bidder_team_id = $6,
			current_timer_phase = $7, current_round = $8,
			remaining_player_ids = $9, trade_window_ends_at = $10,
			finalized_at = $11, version = version + 1, updated_at = $12
		WHERE id = $1 AND version = $13`,
		a.ID, string(a.Status), configJSON, a.CurrentPlayerID,
		moneyPtr(a.CurrentBidAmount), a.CurrentBidderTeamID,
		string(a.CurrentTimerPhase), a.CurrentRound,
		remainingJSON, a.TradeWindowEndsAt,
		a.FinalizedAt, a.UpdatedAt, a.Version,
	)
	if err != nil {
		return errTransient(err)
	}
	if tag.RowsAffected() == 0 {
		return s.staleOrMissing(ctx, q, "auctions", "auction", a.ID)
	}
	a.Version++
	return nil
}

// Teams

const teamColumns = `id, auction_id, name, short_name, purse_value::text,
	purse_remaining::text, players, retained_players, is_active,
	access_credential_hash, version, created_at, updated_at`

func (s *PostgresStore) CreateTeam(ctx context.Context, t *team.Team) error {
	t.Version = 1
	return s.insertTeam(ctx, s.pool, t)
}

func (s *PostgresStore) insertTeam(ctx context.Context, q querier, t *team.Team) error {
	playersJSON, err := json.Marshal(t.Players)
	if err != nil {
		return fmt.Errorf("marshal players: %w", err)
	}
	retainedJSON, err := json.Marshal(t.RetainedPlayers)
	if err != nil {
		return fmt.Errorf("marshal retained players: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO auction_teams (
			id, auction_id, name, short_name, purse_value, purse_remaining,
			players, retained_players, is_active, access_credential_hash,
			version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		t.ID, t.AuctionID, t.Name, t.ShortName, t.PurseValue.String(),
		t.PurseRemaining.String(), playersJSON, retainedJSON, t.IsActive,
		t.AccessCredentialHash, t.Version, t.CreatedAt, t.UpdatedAt,
	)
	return s.mapWriteErr(err, "team")
}

func (s *PostgresStore) GetTeam(ctx context.Context, id uuid.UUID) (*team.Team, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+teamColumns+` FROM auction_teams WHERE id = $1`, id)
	t, err := scanTeam(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errNotFound("team")
		}
		return nil, errTransient(err)
	}
	return t, nil
}

func (s *PostgresStore) FindTeamsByAuction(ctx context.Context, auctionID uuid.UUID) ([]*team.Team, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+teamColumns+` FROM auction_teams WHERE auction_id = $1 ORDER BY short_name`, auctionID)
	if err != nil {
		return nil, errTransient(err)
	}
	defer rows.Close()

	var out []*team.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, errTransient(err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateTeam(ctx context.Context, t *team.Team) error {
	return s.updateTeam(ctx, s.pool, t)
}

func (s *PostgresStore) updateTeam(ctx context.Context, q querier, t *team.Team) error {
	playersJSON, err := json.Marshal(t.Players)
	if err != nil {
		return fmt.Errorf("marshal players: %w", err)
	}
	retainedJSON, err := json.Marshal(t.RetainedPlayers)
	if err != nil {
		return fmt.Errorf("marshal retained players: %w", err)
	}

	t.UpdatedAt = time.Now().UTC()
	tag, err := q.Exec(ctx, `
		UPDATE auction_teams SET
			name = $2, short_name = $3, purse_remaining = $4, players = $5,
			retained_players = $6, is_active = $7, access_credential_hash = $8,
			version = version + 1, updated_at = $9
		WHERE id = $1 AND version = $10`,
		t.ID, t.Name, t.ShortName, t.PurseRemaining.String(), playersJSON,
		retainedJSON, t.IsActive, t.AccessCredentialHash, t.UpdatedAt, t.Version,
	)
	if err != nil {
		return errTransient(err)
	}
	if tag.RowsAffected() == 0 {
		return s.staleOrMissing(ctx, q, "auction_teams", "team", t.ID)
	}
	t.Version++
	return nil
}

// Players

const playerColumns = `id, auction_id, player_number, name, role, attributes,
	status, sold_to, sold_amount::text, sold_in_round, is_disqualified,
	version, created_at, updated_at`

func (s *PostgresStore) CreatePlayer(ctx context.Context, p *player.Player) error {
	p.Version = 1
	return s.insertPlayer(ctx, s.pool, p)
}

func (s *PostgresStore) insertPlayer(ctx context.Context, q querier, p *player.Player) error {
	attrsJSON, err := json.Marshal(p.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO auction_players (
			id, auction_id, player_number, name, role, attributes, status,
			sold_to, sold_amount, sold_in_round, is_disqualified, version,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		p.ID, p.AuctionID, p.PlayerNumber, p.Name, p.Role, attrsJSON,
		string(p.Status), p.SoldTo, moneyPtr(p.SoldAmount), p.SoldInRound,
		p.IsDisqualified, p.Version, p.CreatedAt, p.UpdatedAt,
	)
	return s.mapWriteErr(err, "player")
}

func (s *PostgresStore) GetPlayer(ctx context.Context, id uuid.UUID) (*player.Player, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM auction_players WHERE id = $1`, id)
	p, err := scanPlayer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errNotFound("player")
		}
		return nil, errTransient(err)
	}
	return p, nil
}

func (s *PostgresStore) FindPlayersByAuction(ctx context.Context, auctionID uuid.UUID) ([]*player.Player, error) {
	return s.findPlayers(ctx,
		`SELECT `+playerColumns+` FROM auction_players WHERE auction_id = $1 ORDER BY player_number`,
		auctionID)
}

func (s *PostgresStore) FindPlayersByAuctionAndStatus(ctx context.Context, auctionID uuid.UUID, status player.Status) ([]*player.Player, error) {
	return s.findPlayers(ctx,
		`SELECT `+playerColumns+` FROM auction_players WHERE auction_id = $1 AND status = $2 ORDER BY player_number`,
		auctionID, string(status))
}

func (s *PostgresStore) findPlayers(ctx context.Context, query string, args ...any) ([]*player.Player, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errTransient(err)
	}
	defer rows.Close()

	var out []*player.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, errTransient(err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdatePlayer(ctx context.Context, p *player.Player) error {
	return s.updatePlayer(ctx, s.pool, p)
}

func (s *PostgresStore) updatePlayer(ctx context.Context, q querier, p *player.Player) error {
	attrsJSON, err := json.Marshal(p.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	p.UpdatedAt = time.Now().UTC()
	tag, err := q.Exec(ctx, `
		UPDATE auction_players SET
			name = $2, role = $3, attributes = $4, status = $5, sold_to = $6,
			sold_amount = $7, sold_in_round = $8, is_disqualified = $9,
			version = version + 1, updated_at = $10
		WHERE id = $1 AND version = $11`,
		p.ID, p.Name, p.Role, attrsJSON, string(p.Status), p.SoldTo,
		moneyPtr(p.SoldAmount), p.SoldInRound, p.IsDisqualified,
		p.UpdatedAt, p.Version,
	)
	if err != nil {
		return errTransient(err)
	}
	if tag.RowsAffected() == 0 {
		return s.staleOrMissing(ctx, q, "auction_players", "player", p.ID)
	}
	p.Version++
	return nil
}

// Composite operations

func (s *PostgresStore) AssignPlayerToTeam(ctx context.Context, cs ChangeSet) error {
	return s.ApplyChangeSet(ctx, cs)
}

func (s *PostgresStore) ApplyChangeSet(ctx context.Context, cs ChangeSet) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return errTransient(err)
	}
	defer tx.Rollback(ctx)

	if cs.Auction != nil {
		if err := s.updateAuction(ctx, tx, cs.Auction); err != nil {
			return err
		}
	}
	for _, t := range cs.Teams {
		if err := s.updateTeam(ctx, tx, t); err != nil {
			return err
		}
	}
	for _, p := range cs.Players {
		if err := s.updatePlayer(ctx, tx, p); err != nil {
			return err
		}
	}
	for _, t := range cs.Trades {
		if err := s.updateTrade(ctx, tx, t); err != nil {
			return err
		}
	}
	for _, ev := range cs.Events {
		if err := s.insertEvent(ctx, tx, ev); err != nil {
			return err
		}
	}
	for _, a := range cs.Audits {
		if err := s.insertAudit(ctx, tx, a); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errTransient(err)
	}
	return nil
}

// Events

func (s *PostgresStore) AppendEvent(ctx context.Context, ev *event.ActionEvent) error {
	return s.insertEvent(ctx, s.pool, ev)
}

func (s *PostgresStore) insertEvent(ctx context.Context, q querier, ev *event.ActionEvent) error {
	_, err := q.Exec(ctx, `
		INSERT INTO action_events (
			id, auction_id, sequence_number, type, payload, reversal_payload,
			performed_by, is_public, public_message, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		ev.ID, ev.AuctionID, ev.SequenceNumber, string(ev.Type),
		nullableJSON(ev.Payload), nullableJSON(ev.ReversalPayload),
		ev.PerformedBy, ev.IsPublic, ev.PublicMessage, ev.CreatedAt,
	)
	return s.mapWriteErr(err, "event")
}

func (s *PostgresStore) LastSequence(ctx context.Context, auctionID uuid.UUID) (int64, error) {
	var seq int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM action_events WHERE auction_id = $1`,
		auctionID).Scan(&seq)
	if err != nil {
		return 0, errTransient(err)
	}
	return seq, nil
}

func (s *PostgresStore) TailEvents(ctx context.Context, auctionID uuid.UUID, k int) ([]*event.ActionEvent, error) {
	query := `
		SELECT id, auction_id, sequence_number, type, payload, reversal_payload,
			performed_by, is_public, public_message, created_at
		FROM action_events WHERE auction_id = $1
		ORDER BY sequence_number DESC`
	args := []any{auctionID}
	if k > 0 {
		query += ` LIMIT $2`
		args = append(args, k)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errTransient(err)
	}
	defer rows.Close()

	var out []*event.ActionEvent
	for rows.Next() {
		var ev event.ActionEvent
		var evType string
		if err := rows.Scan(&ev.ID, &ev.AuctionID, &ev.SequenceNumber, &evType,
			&ev.Payload, &ev.ReversalPayload, &ev.PerformedBy, &ev.IsPublic,
			&ev.PublicMessage, &ev.CreatedAt); err != nil {
			return nil, errTransient(err)
		}
		ev.Type = event.Type(evType)
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// Bid audits

func (s *PostgresStore) AppendBidAudit(ctx context.Context, a *event.BidAudit) error {
	return s.insertAudit(ctx, s.pool, a)
}

func (s *PostgresStore) insertAudit(ctx context.Context, q querier, a *event.BidAudit) error {
	_, err := q.Exec(ctx, `
		INSERT INTO bid_audit_logs (
			id, auction_id, player_id, team_id, attempted_amount, type, reason, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.AuctionID, a.PlayerID, a.TeamID, a.AttemptedAmount.String(),
		string(a.Type), a.Reason, a.Timestamp,
	)
	return s.mapWriteErr(err, "bid audit")
}

func (s *PostgresStore) ListBidAudits(ctx context.Context, auctionID uuid.UUID, limit int) ([]*event.BidAudit, error) {
	query := `
		SELECT id, auction_id, player_id, team_id, attempted_amount::text, type, reason, created_at
		FROM bid_audit_logs WHERE auction_id = $1 ORDER BY created_at DESC`
	args := []any{auctionID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errTransient(err)
	}
	defer rows.Close()

	var out []*event.BidAudit
	for rows.Next() {
		var a event.BidAudit
		var amount, auditType string
		if err := rows.Scan(&a.ID, &a.AuctionID, &a.PlayerID, &a.TeamID,
			&amount, &auditType, &a.Reason, &a.Timestamp); err != nil {
			return nil, errTransient(err)
		}
		if a.AttemptedAmount, err = values.NewMoneyFromString(amount); err != nil {
			return nil, err
		}
		a.Type = event.BidAuditType(auditType)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Trades

const tradeColumns = `id, auction_id, initiator_team_id, counterparty_team_id,
	initiator_players, counterparty_players, status,
	initiator_total_value::text, counterparty_total_value::text,
	settlement_amount::text, settlement_direction, purse_settlement_enabled,
	message, status_reason, public_announcement, settlement_warning,
	version, created_at, updated_at, executed_at`

func (s *PostgresStore) CreateTrade(ctx context.Context, t *trade.Trade) error {
	t.Version = 1
	initiatorJSON, err := json.Marshal(t.InitiatorPlayers)
	if err != nil {
		return fmt.Errorf("marshal initiator players: %w", err)
	}
	counterpartyJSON, err := json.Marshal(t.CounterpartyPlayers)
	if err != nil {
		return fmt.Errorf("marshal counterparty players: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO auction_trades (
			id, auction_id, initiator_team_id, counterparty_team_id,
			initiator_players, counterparty_players, status,
			initiator_total_value, counterparty_total_value, settlement_amount,
			settlement_direction, purse_settlement_enabled, message,
			status_reason, public_announcement, settlement_warning, version,
			created_at, updated_at, executed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		t.ID, t.AuctionID, t.InitiatorTeamID, t.CounterpartyTeamID,
		initiatorJSON, counterpartyJSON, string(t.Status),
		t.InitiatorTotalValue.String(), t.CounterpartyTotalValue.String(),
		t.SettlementAmount.String(), string(t.SettlementDirection),
		t.PurseSettlementEnabled, t.Message, t.StatusReason,
		t.PublicAnnouncement, t.SettlementWarning, t.Version,
		t.CreatedAt, t.UpdatedAt, t.ExecutedAt,
	)
	return s.mapWriteErr(err, "trade")
}

func (s *PostgresStore) GetTrade(ctx context.Context, id uuid.UUID) (*trade.Trade, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tradeColumns+` FROM auction_trades WHERE id = $1`, id)
	t, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errNotFound("trade")
		}
		return nil, errTransient(err)
	}
	return t, nil
}

func (s *PostgresStore) FindTradesByAuction(ctx context.Context, auctionID uuid.UUID) ([]*trade.Trade, error) {
	return s.findTrades(ctx,
		`SELECT `+tradeColumns+` FROM auction_trades WHERE auction_id = $1 ORDER BY created_at`,
		auctionID)
}

func (s *PostgresStore) FindTradesByAuctionAndStatus(ctx context.Context, auctionID uuid.UUID, statuses ...trade.Status) ([]*trade.Trade, error) {
	strs := make([]string, 0, len(statuses))
	for _, st := range statuses {
		strs = append(strs, string(st))
	}
	return s.findTrades(ctx,
		`SELECT `+tradeColumns+` FROM auction_trades
		 WHERE auction_id = $1 AND status = ANY($2) ORDER BY created_at`,
		auctionID, strs)
}

func (s *PostgresStore) FindOpenTradesForPlayer(ctx context.Context, auctionID, playerID uuid.UUID) ([]*trade.Trade, error) {
	needle, _ := json.Marshal([]map[string]string{{"player_id": playerID.String()}})
	return s.findTrades(ctx,
		`SELECT `+tradeColumns+` FROM auction_trades
		 WHERE auction_id = $1
		   AND status IN ('pending_counterparty', 'both_agreed')
		   AND (initiator_players @> $2 OR counterparty_players @> $2)
		 ORDER BY created_at`,
		auctionID, string(needle))
}

func (s *PostgresStore) findTrades(ctx context.Context, query string, args ...any) ([]*trade.Trade, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errTransient(err)
	}
	defer rows.Close()

	var out []*trade.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, errTransient(err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateTrade(ctx context.Context, t *trade.Trade) error {
	return s.updateTrade(ctx, s.pool, t)
}

func (s *PostgresStore) updateTrade(ctx context.Context, q querier, t *trade.Trade) error {
	t.UpdatedAt = time.Now().UTC()
	tag, err := q.Exec(ctx, `
		UPDATE auction_trades SET
			status = $2, status_reason = $3, public_announcement = $4,
			settlement_warning = $5, version = version + 1, updated_at = $6,
			executed_at = $7
		WHERE id = $1 AND version = $8`,
		t.ID, string(t.Status), t.StatusReason, t.PublicAnnouncement,
		t.SettlementWarning, t.UpdatedAt, t.ExecutedAt, t.Version,
	)
	if err != nil {
		return errTransient(err)
	}
	if tag.RowsAffected() == 0 {
		return s.staleOrMissing(ctx, q, "auction_trades", "trade", t.ID)
	}
	t.Version++
	return nil
}

// Scan helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (*auction.Auction, error) {
	var a auction.Auction
	var status, phase string
	var configJSON, remainingJSON []byte
	var bidAmount *string

	err := row.Scan(&a.ID, &a.Slug, &a.Name, &status, &configJSON,
		&a.CurrentPlayerID, &bidAmount, &a.CurrentBidderTeamID, &phase,
		&a.CurrentRound, &remainingJSON, &a.TradeWindowEndsAt, &a.FinalizedAt,
		&a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.Status = auction.Status(status)
	a.CurrentTimerPhase = auction.TimerPhase(phase)
	if err := json.Unmarshal(configJSON, &a.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := json.Unmarshal(remainingJSON, &a.RemainingPlayerIDs); err != nil {
		return nil, fmt.Errorf("unmarshal remaining ids: %w", err)
	}
	if bidAmount != nil {
		m, err := values.NewMoneyFromString(*bidAmount)
		if err != nil {
			return nil, err
		}
		a.CurrentBidAmount = &m
	}
	return &a, nil
}

func scanTeam(row rowScanner) (*team.Team, error) {
	var t team.Team
	var purseValue, purseRemaining string
	var playersJSON, retainedJSON []byte

	err := row.Scan(&t.ID, &t.AuctionID, &t.Name, &t.ShortName, &purseValue,
		&purseRemaining, &playersJSON, &retainedJSON, &t.IsActive,
		&t.AccessCredentialHash, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if t.PurseValue, err = values.NewMoneyFromString(purseValue); err != nil {
		return nil, err
	}
	if t.PurseRemaining, err = values.NewMoneyFromString(purseRemaining); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(playersJSON, &t.Players); err != nil {
		return nil, fmt.Errorf("unmarshal players: %w", err)
	}
	if err := json.Unmarshal(retainedJSON, &t.RetainedPlayers); err != nil {
		return nil, fmt.Errorf("unmarshal retained players: %w", err)
	}
	return &t, nil
}

func scanPlayer(row rowScanner) (*player.Player, error) {
	var p player.Player
	var status string
	var attrsJSON []byte
	var soldAmount *string

	err := row.Scan(&p.ID, &p.AuctionID, &p.PlayerNumber, &p.Name, &p.Role,
		&attrsJSON, &status, &p.SoldTo, &soldAmount, &p.SoldInRound,
		&p.IsDisqualified, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.Status = player.Status(status)
	if len(attrsJSON) > 0 {
		if err := json.Unmarshal(attrsJSON, &p.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal attributes: %w", err)
		}
	}
	if soldAmount != nil {
		m, err := values.NewMoneyFromString(*soldAmount)
		if err != nil {
			return nil, err
		}
		p.SoldAmount = &m
	}
	return &p, nil
}

func scanTrade(row rowScanner) (*trade.Trade, error) {
	var t trade.Trade
	var status, direction string
	var initiatorJSON, counterpartyJSON []byte
	var initiatorTotal, counterpartyTotal, settlement string

	err := row.Scan(&t.ID, &t.AuctionID, &t.InitiatorTeamID, &t.CounterpartyTeamID,
		&initiatorJSON, &counterpartyJSON, &status,
		&initiatorTotal, &counterpartyTotal, &settlement, &direction,
		&t.PurseSettlementEnabled, &t.Message, &t.StatusReason,
		&t.PublicAnnouncement, &t.SettlementWarning,
		&t.Version, &t.CreatedAt, &t.UpdatedAt, &t.ExecutedAt)
	if err != nil {
		return nil, err
	}

	t.Status = trade.Status(status)
	t.SettlementDirection = trade.SettlementDirection(direction)
	if err := json.Unmarshal(initiatorJSON, &t.InitiatorPlayers); err != nil {
		return nil, fmt.Errorf("unmarshal initiator players: %w", err)
	}
	if err := json.Unmarshal(counterpartyJSON, &t.CounterpartyPlayers); err != nil {
		return nil, fmt.Errorf("unmarshal counterparty players: %w", err)
	}
	if t.InitiatorTotalValue, err = values.NewMoneyFromString(initiatorTotal); err != nil {
		return nil, err
	}
	if t.CounterpartyTotalValue, err = values.NewMoneyFromString(counterpartyTotal); err != nil {
		return nil, err
	}
	if t.SettlementAmount, err = values.NewMoneyFromString(settlement); err != nil {
		return nil, err
	}
	return &t, nil
}

// Error mapping

func (s *PostgresStore) mapWriteErr(err error, resource string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return errDuplicate(resource)
	}
	return errTransient(err)
}

// staleOrMissing disambiguates a zero-row conditional update.
func (s *PostgresStore) staleOrMissing(ctx context.Context, q querier, table, resource string, id uuid.UUID) error {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return errTransient(err)
	}
	if !exists {
		return errNotFound(resource)
	}
	return errStaleVersion(resource)
}

func moneyPtr(m *values.Money) *string {
	if m == nil {
		return nil
	}
	s := m.String()
	return &s
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
