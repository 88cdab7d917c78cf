package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	domainErrors "github.com/abhinavece/player-auction-backend/internal/domain/errors"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/events"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []events.Message
}

func (r *recordingPublisher) ToAuction(_ uuid.UUID, msg events.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingPublisher) ToAdmin(uuid.UUID, events.Message)           {}
func (r *recordingPublisher) ToTeam(uuid.UUID, uuid.UUID, events.Message) {}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Type)
	}
	return out
}

func TestCoordinatorSerializesCommands(t *testing.T) {
	c := newCoordinator(uuid.New(), events.NopPublisher{}, zap.NewNop())

	// A plain counter: safe only if commands never interleave.
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Execute(context.Background(), "inc", func(context.Context) (interface{}, error) {
				counter++
				return counter, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestCoordinatorReturnsCommandResult(t *testing.T) {
	c := newCoordinator(uuid.New(), events.NopPublisher{}, zap.NewNop())

	v, err := c.Execute(context.Background(), "echo", func(context.Context) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestCoordinatorRetriesTransientOnce(t *testing.T) {
	c := newCoordinator(uuid.New(), events.NopPublisher{}, zap.NewNop())

	calls := 0
	v, err := c.Execute(context.Background(), "flaky", func(context.Context) (interface{}, error) {
		calls++
		if calls == 1 {
			return nil, domainErrors.NewTransientError("store hiccup")
		}
		return calls, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestCoordinatorHaltsOnInvariantViolation(t *testing.T) {
	pub := &recordingPublisher{}
	c := newCoordinator(uuid.New(), pub, zap.NewNop())

	_, err := c.Execute(context.Background(), "corrupt", func(context.Context) (interface{}, error) {
		return nil, domainErrors.NewInvariantViolationError("LOT_MISSING", "squad out of sync")
	})
	require.Error(t, err)

	require.Eventually(t, c.Halted, time.Second, 10*time.Millisecond)
	assert.Contains(t, pub.types(), "auction_unhealthy")

	_, err = c.Execute(context.Background(), "after", func(context.Context) (interface{}, error) {
		return nil, nil
	})
	assert.Equal(t, "AUCTION_UNHEALTHY", domainErrors.Code(err))
}

func TestCoordinatorSpansCommands(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	auctionID := uuid.New()
	c := newCoordinator(auctionID, events.NopPublisher{}, zap.NewNop())

	_, err := c.Execute(context.Background(), "place_bid", func(context.Context) (interface{}, error) {
		return nil, domainErrors.NewStateConflictError("STALE_VERSION", "concurrent update")
	})
	require.Error(t, err)

	spans := recorder.Ended()
	require.NotEmpty(t, spans)
	span := spans[len(spans)-1]
	assert.Equal(t, "coordinator.place_bid", span.Name())
	assert.Contains(t, span.Attributes(), attribute.String("auction.id", auctionID.String()))
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "STALE_VERSION", span.Status().Description)
}

func TestCoordinatorPostDoesNotBlock(t *testing.T) {
	c := newCoordinator(uuid.New(), events.NopPublisher{}, zap.NewNop())

	done := make(chan struct{})
	c.Post("fire_and_forget", func(context.Context) (interface{}, error) {
		close(done)
		return nil, nil
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("posted command never ran")
	}
}

func TestRegistryOneCoordinatorPerAuction(t *testing.T) {
	r := NewRegistry(events.NopPublisher{}, zap.NewNop())

	a, b := uuid.New(), uuid.New()
	assert.Same(t, r.For(a), r.For(a))
	assert.NotSame(t, r.For(a), r.For(b))
}
