package cart_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/pkg/cart"
	"github.com/Ramsey-B/clover/pkg/httpclient"
	"github.com/Ramsey-B/clover/pkg/result"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func newTestClient(t *testing.T, handler http.Handler) (*cart.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := getTestLogger()
	httpClient := httpclient.NewClient(httpclient.DefaultConfig(), logger)
	client := cart.NewClient(httpClient, cart.Config{
		BaseURL:    server.URL,
		RestAdmin:  "test-admin-id",
		SourceName: "pricecloser.com",
	}, logger)

	return client, server
}

func TestOrderSendsAdminHeaders(t *testing.T) {
	var gotAdminID, gotUserAgent string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAdminID = r.Header.Get("X-Oc-Restadmin-Id")
		gotUserAgent = r.Header.Get("User-Agent")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": []string{},
			"data": map[string]any{
				"order_id":    1037,
				"customer_id": "42",
				"firstname":   "Jane",
				"lastname":    "Doe",
				"email":       "jane@example.com",
				"telephone":   "217-555-0134",
				"total":       "99.95",
				"date_added":  "2019-06-01",
			},
		})
	}))

	res := client.Order(context.Background(), "1037")
	require.True(t, res.OK, res.Message)

	assert.Equal(t, "test-admin-id", gotAdminID)
	assert.NotEmpty(t, gotUserAgent)

	// numeric and string ids both normalize to strings
	assert.Equal(t, "1037", res.Value.OrderID.String())
	assert.Equal(t, "42", res.Value.CustomerID.String())
	assert.Equal(t, "Jane Doe", res.Value.CustomerName())
}

func TestOrderNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": []string{"Order not found"},
			"data":  nil,
		})
	}))

	res := client.Order(context.Background(), "9999")
	require.False(t, res.OK)
	assert.Equal(t, result.KindSourceNotFound, res.Kind)
	// business error over a 200 transport normalizes to 500
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Contains(t, res.Message, "Order not found")
}

func TestOrderTransportErrorPreservesStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": []string{"upstream down"}, "data": nil})
	}))

	res := client.Order(context.Background(), "1037")
	require.False(t, res.OK)
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
}

func TestOrdersAddedRangeIsEndInclusive(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": 0,
			"data": []map[string]any{
				{"order_id": "1", "customer_id": "0", "email": "a@example.com"},
				{"order_id": "2", "customer_id": "7", "email": "b@example.com"},
			},
		})
	}))

	start := time.Date(2019, time.May, 13, 0, 0, 0, 0, time.UTC)
	end := time.Date(2019, time.June, 13, 0, 0, 0, 0, time.UTC)

	res := client.OrdersAdded(context.Background(), start, end)
	require.True(t, res.OK, res.Message)

	// one day past end makes the API's exclusive bound inclusive
	assert.Equal(t, "/orders/details/added_from/2019-05-13/added_to/2019-06-14", gotPath)
	assert.Len(t, res.Value, 2)
}

func TestManufacturersDedupesAndSkipsFailures(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/products/1", "/products/2":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": 0,
				"data":  map[string]any{"manufacturer": "Technoform"},
			})
		case "/products/3":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": 0,
				"data":  map[string]any{"manufacturer": "Acme"},
			})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"error": []string{"no such product"}})
		}
	}))

	products := []cart.Product{
		{ProductID: "1"}, {ProductID: "2"}, {ProductID: "3"}, {ProductID: "404"},
	}

	names := client.Manufacturers(context.Background(), products)
	assert.Equal(t, []string{"Acme", "Technoform"}, names)
}

func TestOrderStatusFallback(t *testing.T) {
	order := cart.Order{OrderStatus: "Processed", OrderStatusID: "15"}
	assert.Equal(t, "Processed", order.Status())

	order = cart.Order{OrderStatusID: "15"}
	assert.Equal(t, "15", order.Status())

	// missing both defaults to pending
	order = cart.Order{}
	assert.Equal(t, "1", order.Status())
}
