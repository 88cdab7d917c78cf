package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	domainErrors "github.com/abhinavece/player-auction-backend/internal/domain/errors"
	"github.com/abhinavece/player-auction-backend/internal/infrastructure/events"
)

var tracer = otel.Tracer("engine.coordinator")

const inboxSize = 256

// command is one unit of work executed on the coordinator goroutine.
type command struct {
	name  string
	fn    func(ctx context.Context) (interface{}, error)
	reply chan cmdResult
}

type cmdResult struct {
	value interface{}
	err   error
}

// Coordinator serializes every state-mutating operation for one auction.
// Commands run strictly in arrival order on a single goroutine; timer
// expiries, bids, and admin calls all queue into the same inbox. An
// invariant violation halts the coordinator permanently after a final
// unhealthy broadcast.
type Coordinator struct {
	auctionID uuid.UUID
	inbox     chan command
	done      chan struct{}

	publisher events.Publisher
	logger    *zap.Logger
}

func newCoordinator(auctionID uuid.UUID, publisher events.Publisher, logger *zap.Logger) *Coordinator {
	c := &Coordinator{
		auctionID: auctionID,
		inbox:     make(chan command, inboxSize),
		done:      make(chan struct{}),
		publisher: publisher,
		logger:    logger.With(zap.String("auction_id", auctionID.String())),
	}
	go c.run()
	return c
}

// Execute queues fn and waits for its result. Returns immediately with an
// error when the coordinator has halted.
func (c *Coordinator) Execute(ctx context.Context, name string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	cmd := command{name: name, fn: fn, reply: make(chan cmdResult, 1)}
	select {
	case <-c.done:
		return nil, haltedError()
	case c.inbox <- cmd:
	case <-ctx.Done():
		return nil, domainErrors.NewTransientError("auction coordinator is saturated")
	}

	select {
	case res := <-cmd.reply:
		return res.value, res.err
	case <-ctx.Done():
		// The command still runs; the caller just stops waiting.
		return nil, ctx.Err()
	}
}

// Post queues fn without waiting for a result. Used by timer expiries.
func (c *Coordinator) Post(name string, fn func(ctx context.Context) (interface{}, error)) {
	cmd := command{name: name, fn: fn}
	select {
	case <-c.done:
	case c.inbox <- cmd:
	default:
		c.logger.Error("coordinator inbox full, dropping command", zap.String("command", name))
	}
}

// Halted reports whether the coordinator has shut down.
func (c *Coordinator) Halted() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Coordinator) run() {
	for cmd := range c.inbox {
		value, err := c.runOne(cmd)
		if cmd.reply != nil {
			cmd.reply <- cmdResult{value: value, err: err}
		}
		if domainErrors.IsType(err, domainErrors.ErrorTypeInvariantViolation) {
			c.halt(cmd.name, err)
			return
		}
	}
}

// runOne executes a command, retrying once after a short backoff when the
// failure is transient.
func (c *Coordinator) runOne(cmd command) (interface{}, error) {
	ctx, span := tracer.Start(context.Background(), "coordinator."+cmd.name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("auction.id", c.auctionID.String())))
	defer span.End()

	value, err := cmd.fn(ctx)
	if err != nil && domainErrors.IsType(err, domainErrors.ErrorTypeTransient) {
		span.AddEvent("transient retry")
		time.Sleep(100 * time.Millisecond)
		value, err = cmd.fn(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domainErrors.Code(err))
		if !domainErrors.IsType(err, domainErrors.ErrorTypeValidation) {
			c.logger.Debug("command failed",
				zap.String("command", cmd.name),
				zap.Error(err))
		}
	}
	return value, err
}

// halt marks the auction unhealthy and stops processing. Queued and
// future commands fail with a halted error.
func (c *Coordinator) halt(cmdName string, cause error) {
	c.logger.Error("invariant violation, halting coordinator",
		zap.String("command", cmdName),
		zap.Error(cause))

	c.publisher.ToAuction(c.auctionID, events.NewMessage(c.auctionID, "auction_unhealthy", map[string]interface{}{
		"reason": cause.Error(),
	}))
	close(c.done)

	// Fail everything already queued.
	for {
		select {
		case cmd := <-c.inbox:
			if cmd.reply != nil {
				cmd.reply <- cmdResult{err: haltedError()}
			}
		default:
			return
		}
	}
}

func haltedError() error {
	return domainErrors.NewStateConflictError("AUCTION_UNHEALTHY",
		"auction coordinator has halted and requires manual intervention")
}
