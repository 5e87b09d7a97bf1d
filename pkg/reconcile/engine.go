// Package reconcile drives one order's journey into the CRM: resolve the
// customer, upsert the order, and keep the customer/order link consistent in
// both directions. Every step is idempotent, so reruns converge instead of
// duplicating records.
package reconcile

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/cart"
	"github.com/Ramsey-B/clover/pkg/crm"
	"github.com/Ramsey-B/clover/pkg/identity"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/result"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Source fetches orders and product details from the store.
type Source interface {
	SourceName() string
	Order(ctx context.Context, orderID string) result.Result[cart.Order]
	Manufacturers(ctx context.Context, products []cart.Product) []string
}

// Target reads and writes CRM people and projects.
type Target interface {
	ShareTo() string
	GetPerson(ctx context.Context, uniqueID string) result.Result[crm.Record]
	GetProject(ctx context.Context, uniqueID string) result.Result[crm.Record]
	CreatePerson(ctx context.Context, record crm.Record) result.Result[crm.Record]
	UpdatePerson(ctx context.Context, record crm.Record) result.Result[crm.Record]
	CreateProject(ctx context.Context, record crm.Record) result.Result[crm.Record]
	UpdateProject(ctx context.Context, record crm.Record) result.Result[crm.Record]
}

// Config holds engine tuning.
type Config struct {
	// ConfirmTimeout bounds how long a write is polled for read visibility.
	// The CRM is eventually consistent and a record that is not yet readable
	// would be clobbered by the next order touching the same customer.
	ConfirmTimeout time.Duration

	// ConfirmPollInterval is the delay between visibility polls.
	ConfirmPollInterval time.Duration
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		ConfirmTimeout:      30 * time.Second,
		ConfirmPollInterval: 2 * time.Second,
	}
}

// Engine reconciles store orders into the CRM.
type Engine struct {
	source   Source
	target   Target
	builder  *Builder
	producer *kafka.Producer
	cfg      Config
	logger   ectologger.Logger
}

// NewEngine creates a new reconciliation engine. producer may be nil when no
// event bus is configured.
func NewEngine(source Source, target Target, builder *Builder, producer *kafka.Producer, cfg Config, logger ectologger.Logger) *Engine {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfig().ConfirmTimeout
	}
	if cfg.ConfirmPollInterval <= 0 {
		cfg.ConfirmPollInterval = DefaultConfig().ConfirmPollInterval
	}

	return &Engine{
		source:   source,
		target:   target,
		builder:  builder,
		producer: producer,
		cfg:      cfg,
		logger:   logger,
	}
}

// SyncOrder reconciles a single store order into the CRM: customer first,
// then the order, then the link from the customer back to the order. The
// first failed step short-circuits the rest.
func (e *Engine) SyncOrder(ctx context.Context, order cart.Order) result.Result[crm.Record] {
	ctx, span := tracing.StartSpan(ctx, "Engine.SyncOrder")
	defer span.End()

	start := time.Now()
	res := e.syncOrder(ctx, order)
	e.record(ctx, order, res, time.Since(start))
	return res
}

func (e *Engine) syncOrder(ctx context.Context, order cart.Order) result.Result[crm.Record] {
	customerRes := e.upsertCustomer(ctx, order)
	if !customerRes.OK {
		return customerRes
	}

	orderRes := e.upsertOrder(ctx, order, customerRes.Value)
	if !orderRes.OK {
		return orderRes
	}

	return e.linkOrderToCustomer(ctx, orderRes.Value, customerRes.Value)
}

// upsertCustomer finds the CRM person for the order's customer, creating one
// when missing. An existing person is reused as-is; the store is not treated
// as authoritative for CRM contact data, so no diff-and-update happens here.
func (e *Engine) upsertCustomer(ctx context.Context, order cart.Order) result.Result[crm.Record] {
	ctx, span := tracing.StartSpan(ctx, "Engine.upsertCustomer")
	defer span.End()

	res := e.target.GetPerson(ctx, order.Email)
	if res.OK {
		return res
	}

	payload := e.builder.Customer(order)
	createRes := e.target.CreatePerson(ctx, payload)
	if !createRes.OK {
		return createRes
	}

	// the person must be readable before the order step links to it
	return e.confirm(ctx, "person", func(ctx context.Context) result.Result[crm.Record] {
		return e.target.GetPerson(ctx, order.Email)
	}, nil)
}

// upsertOrder finds the CRM project for the order, creating it when missing
// and attaching the customer when the existing project lacks the link.
func (e *Engine) upsertOrder(ctx context.Context, order cart.Order, customer crm.Record) result.Result[crm.Record] {
	ctx, span := tracing.StartSpan(ctx, "Engine.upsertOrder")
	defer span.End()

	uid := identity.OrderUID(e.source.SourceName(), order.OrderID.String())

	res := e.target.GetProject(ctx, uid)
	if !res.OK {
		// not there yet, create it with the customer attached
		manufacturers := strings.Join(e.source.Manufacturers(ctx, order.Products), ", ")
		payload := e.builder.Order(order, manufacturers, customer)

		createRes := e.target.CreateProject(ctx, payload)
		if !createRes.OK {
			return createRes
		}

		return e.confirm(ctx, "project", func(ctx context.Context) result.Result[crm.Record] {
			return e.target.GetProject(ctx, uid)
		}, nil)
	}

	if e.orderHasCustomer(res.Value, order, customer) {
		return res
	}

	// project exists without the customer, attach them
	payload := e.builder.CustomerToOrder(order, customer)
	updateRes := e.target.UpdateProject(ctx, payload)
	if !updateRes.OK {
		return updateRes
	}

	return e.confirm(ctx, "project", func(ctx context.Context) result.Result[crm.Record] {
		return e.target.GetProject(ctx, uid)
	}, func(record crm.Record) bool {
		return e.orderHasCustomer(record, order, customer)
	})
}

// orderHasCustomer reports whether the project's contact field already points
// at any id the customer is known by.
func (e *Engine) orderHasCustomer(crmOrder crm.Record, order cart.Order, customer crm.Record) bool {
	field, _ := crmOrder.CustomField(e.builder.Fields.CustomerLink)
	if field == nil {
		return false
	}

	candidates := identity.CustomerIDs(e.source.SourceName(), order.Email, order.CustomerID.String(), customer.Direct())
	return identity.Intersects(crm.ValueIDs(field), candidates)
}

// linkOrderToCustomer makes sure the person's orders field references the
// order, appending it and updating the person when it does not.
func (e *Engine) linkOrderToCustomer(ctx context.Context, crmOrder, customer crm.Record) result.Result[crm.Record] {
	ctx, span := tracing.StartSpan(ctx, "Engine.linkOrderToCustomer")
	defer span.End()

	orderName := crmOrder.Name()
	uid := identity.OrderUID(e.source.SourceName(), orderName)

	ordersField, _ := customer.CustomField(e.builder.Fields.OrdersLink)
	if customerHasOrder(ordersField, uid, orderName) {
		return result.Ok(crmOrder, fmt.Sprintf("Order '%s' already linked to customer '%s'.", orderName, customer.Name()))
	}

	if ordersField != nil {
		existing, _ := ordersField["value"].([]any)
		ordersField["value"] = append(existing, e.builder.OrderValue(crmOrder))
	} else {
		customer.AppendCustomField(e.builder.OrderLinkField(crmOrder))
	}
	customer.Set("shareTo", e.target.ShareTo())

	updateRes := e.target.UpdatePerson(ctx, customer)
	if !updateRes.OK {
		message := updateRes.Message + " Please add order manually."
		return result.Fail[crm.Record](result.KindLinkInconsistency, updateRes.StatusCode, message)
	}

	// the next order for this customer re-reads the person, so the link must
	// be visible before this sync counts as done
	if email := customerEmail(customer); email != "" {
		confirmRes := e.confirm(ctx, "person", func(ctx context.Context) result.Result[crm.Record] {
			return e.target.GetPerson(ctx, email)
		}, func(record crm.Record) bool {
			field, _ := record.CustomField(e.builder.Fields.OrdersLink)
			return customerHasOrder(field, uid, orderName)
		})
		if !confirmRes.OK {
			return result.FailFrom[crm.Record](confirmRes)
		}
	}

	return result.Ok(crmOrder, updateRes.Message)
}

// customerEmail returns the first email address on a person record.
func customerEmail(customer crm.Record) string {
	raw, ok := customer["emails"].([]any)
	if !ok || len(raw) == 0 {
		return ""
	}
	entry, ok := raw[0].(map[string]any)
	if !ok {
		return ""
	}
	email, _ := entry["value"].(string)
	return email
}

// customerHasOrder reports whether the orders field already references the
// order by id or by name.
func customerHasOrder(ordersField crm.Record, uid, orderName string) bool {
	if ordersField == nil {
		return false
	}
	for _, attached := range crm.ValueList(ordersField) {
		if attached.Name() == orderName {
			return true
		}
		for _, id := range attached.IDs() {
			if id == uid {
				return true
			}
		}
	}
	return false
}

// confirm polls fetch until it succeeds (and pred holds) or the confirmation
// window closes. A write that never becomes readable fails the sync rather
// than letting a later step clobber it.
func (e *Engine) confirm(ctx context.Context, resource string, fetch func(context.Context) result.Result[crm.Record], pred func(crm.Record) bool) result.Result[crm.Record] {
	ctx, span := tracing.StartSpan(ctx, "Engine.confirm."+resource)
	defer span.End()

	deadline := time.Now().Add(e.cfg.ConfirmTimeout)
	for {
		res := fetch(ctx)
		if res.OK && (pred == nil || pred(res.Value)) {
			metrics.RecordConfirmPoll(resource, "visible")
			return res
		}

		if time.Now().After(deadline) {
			metrics.RecordConfirmPoll(resource, "timeout")
			message := fmt.Sprintf("Created %s was not readable within %s.", resource, e.cfg.ConfirmTimeout)
			return result.Fail[crm.Record](result.KindConsistencyTimeout, http.StatusGatewayTimeout, message)
		}

		select {
		case <-ctx.Done():
			metrics.RecordConfirmPoll(resource, "canceled")
			return result.Fail[crm.Record](result.KindConsistencyTimeout, http.StatusGatewayTimeout, ctx.Err().Error())
		case <-time.After(e.cfg.ConfirmPollInterval):
		}
	}
}

// record emits metrics and the lifecycle event for a finished sync.
func (e *Engine) record(ctx context.Context, order cart.Order, res result.Result[crm.Record], duration time.Duration) {
	status := "success"
	if !res.OK {
		status = "failure"
	}
	metrics.RecordOrderSync(status, string(res.Kind), duration.Seconds())

	if e.producer == nil {
		return
	}

	msg := &kafka.OrderSyncedMessage{
		Source:     e.source.SourceName(),
		OrderID:    order.OrderID.String(),
		CustomerID: order.CustomerID.String(),
		Email:      order.Email,
		Stage:      ProjectStage(order.Status()),
		Message:    res.Message,
	}

	var err error
	if res.OK {
		err = e.producer.PublishOrderSynced(ctx, msg)
	} else {
		msg.ErrorKind = string(res.Kind)
		err = e.producer.PublishOrderFailed(ctx, msg)
	}
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Warnf("Failed to publish sync event for order %s", order.OrderID)
	}
}
