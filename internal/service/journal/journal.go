package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/domain/event"
	domainErrors "github.com/abhinavece/player-auction-backend/internal/domain/errors"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/repository"
)

// Journal is the append-only per-auction action log. Sequence numbers are
// assigned here; callers are serialized by the auction coordinator, so a
// read-increment-append cycle cannot race within one auction.
type Journal struct {
	store  repository.Store
	logger *zap.Logger
}

// New creates a journal over the given store.
func New(store repository.Store, logger *zap.Logger) *Journal {
	return &Journal{store: store, logger: logger}
}

// NextEvent builds an event carrying the next sequence number without
// persisting it. Used when the append must commit atomically with entity
// mutations through a changeset.
func (j *Journal) NextEvent(ctx context.Context, auctionID uuid.UUID, t event.Type, payload, reversal interface{}, performedBy string, isPublic bool, publicMessage string) (*event.ActionEvent, error) {
	last, err := j.store.LastSequence(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	ev := &event.ActionEvent{
		ID:             uuid.New(),
		AuctionID:      auctionID,
		SequenceNumber: last + 1,
		Type:           t,
		PerformedBy:    performedBy,
		IsPublic:       isPublic,
		PublicMessage:  publicMessage,
		CreatedAt:      time.Now().UTC(),
	}
	if payload != nil {
		ev.Payload = event.MustMarshal(payload)
	}
	if reversal != nil {
		ev.ReversalPayload = event.MustMarshal(reversal)
	}
	return ev, nil
}

// Append persists a new event and returns it.
func (j *Journal) Append(ctx context.Context, auctionID uuid.UUID, t event.Type, payload, reversal interface{}, performedBy string, isPublic bool, publicMessage string) (*event.ActionEvent, error) {
	ev, err := j.NextEvent(ctx, auctionID, t, payload, reversal, performedBy, isPublic, publicMessage)
	if err != nil {
		return nil, err
	}
	if err := j.store.AppendEvent(ctx, ev); err != nil {
		return nil, err
	}
	j.logger.Debug("event appended",
		zap.String("auction_id", auctionID.String()),
		zap.String("type", string(t)),
		zap.Int64("sequence", ev.SequenceNumber))
	return ev, nil
}

// Tail returns the last k events, newest first. k <= 0 returns all.
func (j *Journal) Tail(ctx context.Context, auctionID uuid.UUID, k int) ([]*event.ActionEvent, error) {
	return j.store.TailEvents(ctx, auctionID, k)
}

// SelectReversal finds the event the next undo applies to. Walks the
// journal newest-first, skipping events already reversed; once maxUndo
// reversals have stacked, older reversible events are frozen.
func (j *Journal) SelectReversal(ctx context.Context, auctionID uuid.UUID, maxUndo int) (*event.ActionEvent, error) {
	events, err := j.store.TailEvents(ctx, auctionID, 0)
	if err != nil {
		return nil, err
	}

	undone := make(map[int64]bool)
	undoCount := 0
	for _, ev := range events {
		switch {
		case ev.Type == event.TypeUndoApplied:
			var p event.UndoPayload
			if err := decode(ev.Payload, &p); err != nil {
				return nil, err
			}
			undone[p.TargetSequence] = true
			undoCount++
		case ev.Type.Reversible():
			if undone[ev.SequenceNumber] {
				continue
			}
			if maxUndo > 0 && undoCount >= maxUndo {
				return nil, domainErrors.NewResourceExhaustedError(
					"UNDO_LIMIT_REACHED", "undo limit reached; older actions are frozen")
			}
			return ev, nil
		}
	}
	return nil, domainErrors.ErrUndoStackEmpty
}
