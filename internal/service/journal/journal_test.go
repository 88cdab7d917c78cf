package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/abhinavece/player-auction-backend/internal/domain/event"
	domainErrors "github.com/abhinavece/player-auction-backend/internal/domain/errors"
	"github.com/abhinavece/player-auction-backend/internal/domain/values"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/repository"
	"github.com/abhinavece/player-auction-backend/internal/testutil"
)

func newJournal(t *testing.T) (*Journal, repository.Store) {
	t.Helper()
	store := repository.NewMemoryStore()
	return New(store, zap.NewNop()), store
}

func TestAppendAssignsContiguousSequences(t *testing.T) {
	ctx := context.Background()
	j, store := newJournal(t)
	a, _, _ := testutil.NewAuction(t, store).Build(ctx)

	for i := 1; i <= 5; i++ {
		ev, err := j.Append(ctx, a.ID, event.TypeManualOverride, nil, nil, "admin", false, "")
		require.NoError(t, err)
		assert.Equal(t, int64(i), ev.SequenceNumber)
	}

	tail, err := j.Tail(ctx, a.ID, 2)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, int64(5), tail[0].SequenceNumber, "tail is newest first")
	assert.Equal(t, int64(4), tail[1].SequenceNumber)
}

func TestSelectReversalSkipsIrreversible(t *testing.T) {
	ctx := context.Background()
	j, store := newJournal(t)
	a, teams, players := testutil.NewAuction(t, store).WithTeams(1).WithPlayers(1).Build(ctx)

	_, err := j.Append(ctx, a.ID, event.TypePlayerSold,
		nil,
		event.SaleReversal{PlayerID: players[0].ID, TeamID: teams[0].ID, Amount: values.NewMoneyFromInt(500)},
		"system", true, "sold")
	require.NoError(t, err)
	// Irreversible events on top must not block the undo target.
	_, err = j.Append(ctx, a.ID, event.TypeBidAccepted, nil, nil, "team", true, "")
	require.NoError(t, err)
	_, err = j.Append(ctx, a.ID, event.TypePhaseAdvanced, nil, nil, "system", true, "")
	require.NoError(t, err)

	target, err := j.SelectReversal(ctx, a.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, event.TypePlayerSold, target.Type)
	assert.Equal(t, int64(1), target.SequenceNumber)
}

func TestSelectReversalEmptyStack(t *testing.T) {
	ctx := context.Background()
	j, store := newJournal(t)
	a, _, _ := testutil.NewAuction(t, store).Build(ctx)

	_, err := j.Append(ctx, a.ID, event.TypeAuctionStarted, nil, nil, "admin", true, "")
	require.NoError(t, err)

	_, err = j.SelectReversal(ctx, a.ID, 10)
	assert.ErrorIs(t, err, domainErrors.ErrUndoStackEmpty)
}

func TestSelectReversalSkipsAlreadyUndone(t *testing.T) {
	ctx := context.Background()
	j, store := newJournal(t)
	a, teams, players := testutil.NewAuction(t, store).WithTeams(1).WithPlayers(2).Build(ctx)

	rev := func(i int) event.SaleReversal {
		return event.SaleReversal{PlayerID: players[i].ID, TeamID: teams[0].ID, Amount: values.NewMoneyFromInt(500)}
	}
	_, err := j.Append(ctx, a.ID, event.TypePlayerSold, nil, rev(0), "system", true, "")
	require.NoError(t, err)
	second, err := j.Append(ctx, a.ID, event.TypePlayerSold, nil, rev(1), "system", true, "")
	require.NoError(t, err)
	// Undo already consumed the newest sale.
	_, err = j.Append(ctx, a.ID, event.TypeUndoApplied,
		event.UndoPayload{TargetSequence: second.SequenceNumber, TargetType: second.Type},
		nil, "admin", true, "")
	require.NoError(t, err)

	target, err := j.SelectReversal(ctx, a.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), target.SequenceNumber, "must skip the already undone sale")
}

func TestSelectReversalFreezesAtLimit(t *testing.T) {
	ctx := context.Background()
	j, store := newJournal(t)
	a, teams, players := testutil.NewAuction(t, store).WithTeams(1).WithPlayers(4).Build(ctx)

	sell := func(i int) *event.ActionEvent {
		sold, err := j.Append(ctx, a.ID, event.TypePlayerSold, nil,
			event.SaleReversal{PlayerID: players[i].ID, TeamID: teams[0].ID, Amount: values.NewMoneyFromInt(500)},
			"system", true, "")
		require.NoError(t, err)
		return sold
	}
	undo := func(target *event.ActionEvent) {
		_, err := j.Append(ctx, a.ID, event.TypeUndoApplied,
			event.UndoPayload{TargetSequence: target.SequenceNumber, TargetType: target.Type},
			nil, "admin", true, "")
		require.NoError(t, err)
	}

	sell(0)
	second := sell(1)
	third := sell(2)
	undo(third)
	undo(second)

	// Two consecutive undos sit above the oldest sale; with maxUndo=2 it
	// is frozen.
	_, err := j.SelectReversal(ctx, a.ID, 2)
	require.Error(t, err)
	assert.Equal(t, "UNDO_LIMIT_REACHED", domainErrors.Code(err))

	// A new reversible action resets the window: it sits above the undos.
	fresh := sell(3)
	target, err := j.SelectReversal(ctx, a.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, fresh.SequenceNumber, target.SequenceNumber)
}

func TestApplyReversalRestoresSale(t *testing.T) {
	ctx := context.Background()
	j, store := newJournal(t)
	a, teams, players := testutil.NewAuction(t, store).WithTeams(1).WithPlayers(1).Build(ctx)

	tm, p := teams[0], players[0]
	amount := values.NewMoneyFromInt(500)
	tm.AddLot(p.ID, amount, 1)
	p.MarkSold(tm.ID, amount, 1)
	require.NoError(t, store.UpdateTeam(ctx, tm))
	require.NoError(t, store.UpdatePlayer(ctx, p))
	_, err := j.Append(ctx, a.ID, event.TypePlayerSold,
		event.SalePayload{PlayerID: p.ID, TeamID: tm.ID, Amount: amount, Round: 1},
		event.SaleReversal{PlayerID: p.ID, TeamID: tm.ID, Amount: amount, PrevStatus: "live"},
		"system", true, "")
	require.NoError(t, err)

	undoEv, err := j.ApplyReversal(ctx, a.ID, 10, "admin")
	require.NoError(t, err)
	assert.Equal(t, event.TypeUndoApplied, undoEv.Type)

	gotPlayer, err := store.GetPlayer(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "pool", string(gotPlayer.Status))
	assert.Nil(t, gotPlayer.SoldTo)

	gotTeam, err := store.GetTeam(ctx, tm.ID)
	require.NoError(t, err)
	assert.True(t, gotTeam.PurseValue.Equal(gotTeam.PurseRemaining), "refund must restore the purse")
	assert.Empty(t, gotTeam.Players)

	gotAuction, err := store.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, gotAuction.RemainingPlayerIDs, 1)
	assert.Equal(t, p.ID, gotAuction.RemainingPlayerIDs[0], "player requeues at the head")
}
