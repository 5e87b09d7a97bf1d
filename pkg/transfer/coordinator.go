// Package transfer drives order pulls from the cart into the CRM, either
// inline or through the job queue, and maintains the start-date cursor for
// unscoped pulls.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/cart"
	"github.com/Ramsey-B/clover/pkg/crm"
	"github.com/Ramsey-B/clover/pkg/cursor"
	"github.com/Ramsey-B/clover/pkg/datewindow"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/queue"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/result"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// batchLockKey guards unscoped pulls so overlapping runs cannot race the
// cursor.
const batchLockKey = "transfer:batch"

// batchLockTTL bounds how long a crashed run holds the batch lock.
const batchLockTTL = 30 * time.Minute

// Source fetches orders from the cart.
type Source interface {
	SourceName() string
	Order(ctx context.Context, orderID string) result.Result[cart.Order]
	OrdersAdded(ctx context.Context, start, end time.Time) result.Result[[]cart.Order]
}

// Syncer pushes a single order into the CRM.
type Syncer interface {
	SyncOrder(ctx context.Context, order cart.Order) result.Result[crm.Record]
}

// Enqueuer hands an order to the background job queue. It returns the job id
// used for result polling.
type Enqueuer func(ctx context.Context, order cart.Order, source string) (string, error)

// JobTicket identifies an enqueued sync for later result polling.
type JobTicket struct {
	JobID  string `json:"job_id"`
	Status string `json:"job_status"`
}

// Outcome summarizes a range pull.
type Outcome struct {
	Orders  int      `json:"orders"`
	JobIDs  []string `json:"job_ids,omitempty"`
	Start   string   `json:"start"`
	End     string   `json:"end"`
	Scoped  bool     `json:"scoped"`
	Queued  bool     `json:"queued"`
	Source  string   `json:"source"`
	Message string   `json:"-"`
}

// Request describes a range pull. A zero Start and End means an unscoped
// pull: the start date comes from the cursor (or ReportMonths back when no
// cursor exists) and the cursor advances after a fully successful run.
type Request struct {
	Start   time.Time
	End     time.Time
	Enqueue bool
}

// Coordinator orchestrates single-order and range transfers.
type Coordinator struct {
	source       Source
	syncer       Syncer
	enqueue      Enqueuer
	cursor       cursor.Store
	locker       *redis.Locker
	reportMonths int
	logger       ectologger.Logger
}

// NewCoordinator creates a transfer coordinator. locker may be nil, in which
// case unscoped pulls run unguarded (tests, single-instance deployments
// without Redis locking).
func NewCoordinator(
	source Source,
	syncer Syncer,
	enqueue Enqueuer,
	cursorStore cursor.Store,
	locker *redis.Locker,
	reportMonths int,
	logger ectologger.Logger,
) *Coordinator {
	if reportMonths <= 0 {
		reportMonths = 12
	}
	return &Coordinator{
		source:       source,
		syncer:       syncer,
		enqueue:      enqueue,
		cursor:       cursorStore,
		locker:       locker,
		reportMonths: reportMonths,
		logger:       logger,
	}
}

// NewEnqueuer builds an Enqueuer backed by the Redis Streams job queue.
func NewEnqueuer(streams *redis.Streams, jobStore *redis.JobStore, stream string) Enqueuer {
	return func(ctx context.Context, order cart.Order, source string) (string, error) {
		return queue.PublishOrderSync(ctx, streams, jobStore, stream, order, source)
	}
}

// SyncOne fetches a single order and syncs it inline.
func (c *Coordinator) SyncOne(ctx context.Context, orderID string) result.Result[crm.Record] {
	ctx, span := tracing.StartSpan(ctx, "Coordinator.SyncOne")
	defer span.End()

	orderRes := c.source.Order(ctx, orderID)
	if !orderRes.OK {
		return result.FailFrom[crm.Record](orderRes)
	}

	return c.syncer.SyncOrder(ctx, orderRes.Value)
}

// EnqueueOne fetches a single order and hands it to the job queue.
func (c *Coordinator) EnqueueOne(ctx context.Context, orderID string) result.Result[JobTicket] {
	ctx, span := tracing.StartSpan(ctx, "Coordinator.EnqueueOne")
	defer span.End()

	orderRes := c.source.Order(ctx, orderID)
	if !orderRes.OK {
		return result.FailFrom[JobTicket](orderRes)
	}

	jobID, err := c.enqueue(ctx, orderRes.Value, c.source.SourceName())
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Errorf("Failed to enqueue order %s", orderID)
		return result.Fail[JobTicket](result.KindSourceTransport, http.StatusInternalServerError,
			fmt.Sprintf("Failed to enqueue order '%s'.", orderID))
	}

	ticket := JobTicket{JobID: jobID, Status: string(redis.JobStatusQueued)}
	return result.Ok(ticket, fmt.Sprintf("Successfully enqueued order '%s'.", orderID))
}

// Transfer pulls every order in the requested window and syncs or enqueues
// each one. Unscoped runs are serialized under a Redis lock and advance the
// cursor only when every order succeeds.
func (c *Coordinator) Transfer(ctx context.Context, req Request) result.Result[Outcome] {
	ctx, span := tracing.StartSpan(ctx, "Coordinator.Transfer")
	defer span.End()

	scoped := !req.Start.IsZero() || !req.End.IsZero()
	if scoped {
		return c.transfer(ctx, req, true)
	}

	if c.locker == nil {
		return c.transfer(ctx, req, false)
	}

	var res result.Result[Outcome]
	err := c.locker.WithLock(ctx, batchLockKey, batchLockTTL, func() error {
		res = c.transfer(ctx, req, false)
		return nil
	})
	if err != nil {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			return result.Fail[Outcome](result.KindSourceTransport, http.StatusConflict,
				"An order pull is already running.")
		}
		return result.Fail[Outcome](result.KindSourceTransport, http.StatusInternalServerError, err.Error())
	}
	return res
}

func (c *Coordinator) transfer(ctx context.Context, req Request, scoped bool) result.Result[Outcome] {
	end := req.End
	if end.IsZero() {
		end = time.Now()
	}

	start := req.Start
	if start.IsZero() {
		resolved, err := c.resolveStart(ctx, end)
		if err != nil {
			return result.Fail[Outcome](result.KindSourceTransport, http.StatusInternalServerError, err.Error())
		}
		start = resolved
	}

	ordersRes := c.source.OrdersAdded(ctx, start, end)
	if !ordersRes.OK {
		return result.FailFrom[Outcome](ordersRes)
	}

	orders := ordersRes.Value
	mode := "sync"
	if req.Enqueue {
		mode = "enqueue"
	}

	outcome := Outcome{
		Orders: len(orders),
		Start:  start.Format(datewindow.DateFormat),
		End:    end.Format(datewindow.DateFormat),
		Scoped: scoped,
		Queued: req.Enqueue,
		Source: c.source.SourceName(),
	}

	for _, order := range orders {
		if req.Enqueue {
			jobID, err := c.enqueue(ctx, order, c.source.SourceName())
			if err != nil {
				metrics.RecordBatchOrder(mode, "failure")
				c.logger.WithContext(ctx).WithError(err).Errorf("Failed to enqueue order %s", order.OrderID)
				return result.Fail[Outcome](result.KindSourceTransport, http.StatusInternalServerError,
					fmt.Sprintf("Failed to enqueue order '%s'.", order.OrderID))
			}
			outcome.JobIDs = append(outcome.JobIDs, jobID)
			metrics.RecordBatchOrder(mode, "success")
			continue
		}

		syncRes := c.syncer.SyncOrder(ctx, order)
		if !syncRes.OK {
			metrics.RecordBatchOrder(mode, "failure")
			// Fail fast. The cursor is not advanced, so the next unscoped
			// run retries the whole window.
			return result.FailFrom[Outcome](syncRes)
		}
		metrics.RecordBatchOrder(mode, "success")
	}

	verb := "added"
	if req.Enqueue {
		verb = "enqueued"
	}
	message := fmt.Sprintf("Successfully %s %d orders to the CRM.", verb, len(orders))

	if !scoped {
		if err := c.cursor.Set(ctx, end); err != nil {
			c.logger.WithContext(ctx).WithError(err).Warn("Failed to advance start-date cursor")
		} else {
			metrics.CursorAdvancesTotal.Inc()
		}
	}

	return result.Ok(outcome, message)
}

// resolveStart picks the start date for an unscoped pull: the stored cursor
// when one exists, otherwise reportMonths back from the end date.
func (c *Coordinator) resolveStart(ctx context.Context, end time.Time) (time.Time, error) {
	stored, err := c.cursor.Get(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read start-date cursor: %w", err)
	}
	if !stored.IsZero() {
		return stored, nil
	}
	return datewindow.StartDate(end, c.reportMonths), nil
}
