package reconcile_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/pkg/cart"
	"github.com/Ramsey-B/clover/pkg/crm"
	"github.com/Ramsey-B/clover/pkg/fieldmap"
	"github.com/Ramsey-B/clover/pkg/reconcile"
	"github.com/Ramsey-B/clover/pkg/result"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

// cloneRecord round-trips a record through JSON so fakes hand out the same
// map/slice shapes a real decode would.
func cloneRecord(t *testing.T, record crm.Record) crm.Record {
	t.Helper()
	data, err := json.Marshal(record)
	require.NoError(t, err)

	var clone crm.Record
	require.NoError(t, json.Unmarshal(data, &clone))
	return clone
}

type fakeSource struct {
	orders        map[string]cart.Order
	manufacturers []string
}

func (f *fakeSource) SourceName() string { return "pricecloser.com" }

func (f *fakeSource) Order(ctx context.Context, orderID string) result.Result[cart.Order] {
	order, ok := f.orders[orderID]
	if !ok {
		return result.Fail[cart.Order](result.KindSourceNotFound, http.StatusInternalServerError, "Order could not be found")
	}
	return result.Ok(order, "found")
}

func (f *fakeSource) Manufacturers(ctx context.Context, products []cart.Product) []string {
	return f.manufacturers
}

type fakeTarget struct {
	t        *testing.T
	people   map[string]crm.Record
	projects map[string]crm.Record

	personCreates  int
	personUpdates  int
	projectCreates int
	projectUpdates int

	failPersonUpdate    bool
	personsNeverVisible bool
}

func newFakeTarget(t *testing.T) *fakeTarget {
	return &fakeTarget{
		t:        t,
		people:   map[string]crm.Record{},
		projects: map[string]crm.Record{},
	}
}

func (f *fakeTarget) ShareTo() string { return "team" }

func (f *fakeTarget) GetPerson(ctx context.Context, uniqueID string) result.Result[crm.Record] {
	if f.personsNeverVisible {
		return result.Fail[crm.Record](result.KindTargetRejected, http.StatusInternalServerError, "no such person")
	}
	record, ok := f.people[uniqueID]
	if !ok {
		return result.Fail[crm.Record](result.KindTargetRejected, http.StatusInternalServerError, "no such person")
	}
	return result.Ok(cloneRecord(f.t, record), "got person")
}

func (f *fakeTarget) GetProject(ctx context.Context, uniqueID string) result.Result[crm.Record] {
	record, ok := f.projects[uniqueID]
	if !ok {
		return result.Fail[crm.Record](result.KindTargetRejected, http.StatusInternalServerError, "no such project")
	}
	return result.Ok(cloneRecord(f.t, record), "got project")
}

func recordEmail(record crm.Record) string {
	raw, _ := record["emails"].([]any)
	if len(raw) == 0 {
		return ""
	}
	entry, _ := raw[0].(map[string]any)
	email, _ := entry["value"].(string)
	return email
}

// enrichContacts mimics the CRM resolving contact values on stored records:
// a contact field saved with an email is returned with a matching ids list.
func enrichContacts(record crm.Record) {
	for _, field := range record.CustomFields() {
		value, ok := field["value"].(map[string]any)
		if !ok {
			continue
		}
		if email, ok := value["email"].(string); ok && email != "" {
			value["ids"] = []any{email}
		}
	}
}

func (f *fakeTarget) CreatePerson(ctx context.Context, record crm.Record) result.Result[crm.Record] {
	f.personCreates++
	stored := cloneRecord(f.t, record)
	stored["direct"] = "p1"
	f.people[recordEmail(record)] = stored
	return result.Ok(record, "created person")
}

func (f *fakeTarget) UpdatePerson(ctx context.Context, record crm.Record) result.Result[crm.Record] {
	if f.failPersonUpdate {
		return result.Fail[crm.Record](result.KindTargetRejected, http.StatusInternalServerError, "Error trying to update people.")
	}
	f.personUpdates++
	f.people[recordEmail(record)] = cloneRecord(f.t, record)
	return result.Ok(record, "updated person")
}

func (f *fakeTarget) CreateProject(ctx context.Context, record crm.Record) result.Result[crm.Record] {
	f.projectCreates++
	stored := cloneRecord(f.t, record)
	stored["direct"] = "j1"
	enrichContacts(stored)
	f.projects["pricecloser.com:"+record.Name()] = stored
	return result.Ok(record, "created project")
}

func (f *fakeTarget) UpdateProject(ctx context.Context, record crm.Record) result.Result[crm.Record] {
	f.projectUpdates++
	uid := "pricecloser.com:" + record.Name()
	stored, ok := f.projects[uid]
	if !ok {
		stored = crm.Record{"name": record.Name()}
	}

	// merge custom fields by id, the way the CRM applies partial updates
	for _, field := range cloneRecord(f.t, record).CustomFields() {
		existing, _ := stored.CustomField(field.String("id"))
		if existing != nil {
			existing["value"] = field["value"]
		} else {
			stored.AppendCustomField(field)
		}
	}
	enrichContacts(stored)
	f.projects[uid] = stored
	return result.Ok(record, "updated project")
}

func testOrder() cart.Order {
	return cart.Order{
		OrderID:       "1037",
		CustomerID:    "42",
		FirstName:     "Jane",
		LastName:      "Doe",
		Email:         "jane@example.com",
		Telephone:     "217-555-0134",
		Total:         "99.95",
		DateAdded:     "2019-06-01",
		OrderStatusID: "15",
		Products:      []cart.Product{{ProductID: "7"}},
	}
}

func newTestEngine(t *testing.T, source *fakeSource, target *fakeTarget) *reconcile.Engine {
	t.Helper()
	fields, err := fieldmap.ForAccount("nerevu")
	require.NoError(t, err)

	builder := &reconcile.Builder{
		Fields:        fields,
		Source:        "pricecloser.com",
		AdminLinkBase: "https://pricecloser.com/admin/index.php?route=",
		ShareTo:       "team",
	}

	cfg := reconcile.Config{
		ConfirmTimeout:      250 * time.Millisecond,
		ConfirmPollInterval: 5 * time.Millisecond,
	}

	return reconcile.NewEngine(source, target, builder, nil, cfg, getTestLogger())
}

func TestSyncOrderCreatesCustomerOrderAndLink(t *testing.T) {
	source := &fakeSource{manufacturers: []string{"Acme", "Technoform"}}
	target := newFakeTarget(t)
	engine := newTestEngine(t, source, target)

	res := engine.SyncOrder(context.Background(), testOrder())
	require.True(t, res.OK, res.Message)

	person := target.people["jane@example.com"]
	require.NotNil(t, person)
	assert.Equal(t, "Jane Doe", person.Name())
	assert.Equal(t, "current", person.String("stage"))

	project := target.projects["pricecloser.com:1037"]
	require.NotNil(t, project)
	// status id 15 is a processed order
	assert.Equal(t, "won", project.String("stage"))
	assert.Equal(t, "Acme, Technoform", project.String("summary"))

	// order carries the customer link
	contact, _ := project.CustomField("customer")
	require.NotNil(t, contact)

	// customer carries the order link back
	orders, _ := person.CustomField("orders")
	require.NotNil(t, orders)
	entries := crm.ValueList(orders)
	require.Len(t, entries, 1)
	assert.Equal(t, "1037", entries[0].Name())
	assert.Contains(t, entries[0].IDs(), "pricecloser.com:1037")
}

func TestSyncOrderIsIdempotent(t *testing.T) {
	source := &fakeSource{manufacturers: []string{"Acme"}}
	target := newFakeTarget(t)
	engine := newTestEngine(t, source, target)

	order := testOrder()
	res := engine.SyncOrder(context.Background(), order)
	require.True(t, res.OK, res.Message)

	res = engine.SyncOrder(context.Background(), order)
	require.True(t, res.OK, res.Message)

	assert.Equal(t, 1, target.personCreates)
	assert.Equal(t, 1, target.projectCreates)

	// the second run must not duplicate the order link
	person := target.people["jane@example.com"]
	orders, _ := person.CustomField("orders")
	require.NotNil(t, orders)
	assert.Len(t, crm.ValueList(orders), 1)
}

func TestExistingCustomerIsReusedUnmodified(t *testing.T) {
	source := &fakeSource{}
	target := newFakeTarget(t)

	// the CRM person was curated by hand and differs from the store's data
	target.people["jane@example.com"] = crm.Record{
		"name":   "Janet Curated",
		"direct": "p9",
		"emails": []any{map[string]any{"value": "jane@example.com"}},
	}

	engine := newTestEngine(t, source, target)
	res := engine.SyncOrder(context.Background(), testOrder())
	require.True(t, res.OK, res.Message)

	assert.Equal(t, 0, target.personCreates)
	// the curated name survives, only the order link was added
	person := target.people["jane@example.com"]
	assert.Equal(t, "Janet Curated", person.Name())
	orders, _ := person.CustomField("orders")
	require.NotNil(t, orders)
}

func TestExistingOrderGetsCustomerAttached(t *testing.T) {
	source := &fakeSource{}
	target := newFakeTarget(t)
	target.projects["pricecloser.com:1037"] = crm.Record{"name": "1037"}

	engine := newTestEngine(t, source, target)
	res := engine.SyncOrder(context.Background(), testOrder())
	require.True(t, res.OK, res.Message)

	assert.Equal(t, 0, target.projectCreates)
	assert.GreaterOrEqual(t, target.projectUpdates, 1)

	project := target.projects["pricecloser.com:1037"]
	contact, _ := project.CustomField("customer")
	require.NotNil(t, contact)
}

func TestLinkFailureAsksForManualRepair(t *testing.T) {
	source := &fakeSource{}
	target := newFakeTarget(t)
	target.failPersonUpdate = true

	engine := newTestEngine(t, source, target)
	res := engine.SyncOrder(context.Background(), testOrder())

	require.False(t, res.OK)
	assert.Equal(t, result.KindLinkInconsistency, res.Kind)
	assert.True(t, strings.HasSuffix(res.Message, " Please add order manually."), res.Message)
}

func TestCustomerNeverVisibleTimesOut(t *testing.T) {
	source := &fakeSource{}
	target := newFakeTarget(t)
	target.personsNeverVisible = true

	engine := newTestEngine(t, source, target)
	res := engine.SyncOrder(context.Background(), testOrder())

	require.False(t, res.OK)
	assert.Equal(t, result.KindConsistencyTimeout, res.Kind)
	assert.Equal(t, http.StatusGatewayTimeout, res.StatusCode)
}

func TestGuestCustomerKeyedByEmail(t *testing.T) {
	source := &fakeSource{}
	target := newFakeTarget(t)
	engine := newTestEngine(t, source, target)

	order := testOrder()
	order.CustomerID = "0"

	res := engine.SyncOrder(context.Background(), order)
	require.True(t, res.OK, res.Message)

	person := target.people["jane@example.com"]
	require.NotNil(t, person)

	links, _ := person["appLinks"].([]any)
	require.Len(t, links, 1)
	link, _ := links[0].(map[string]any)
	assert.Equal(t, "jane@example.com", link["uniqueid"])
	// guests have no customer page, the deep link points at the order
	assert.Contains(t, link["url"], "sale/order/info&order_id=1037")
}
