package crm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/pkg/crm"
	"github.com/Ramsey-B/clover/pkg/httpclient"
	"github.com/Ramsey-B/clover/pkg/result"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func newTestGateway(t *testing.T, handler http.Handler) *crm.Gateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := getTestLogger()
	httpClient := httpclient.NewClient(httpclient.DefaultConfig(), logger)
	return crm.NewGateway(httpClient, crm.Config{
		BaseURL:      server.URL,
		Email:        "api@example.com",
		APIKey:       "secret",
		ShareToTeams: true,
	}, logger)
}

func TestGetPersonSendsAuthParams(t *testing.T) {
	var gotQuery map[string][]string
	gateway := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errorcode": 0,
			"message":   "",
			"person": map[string]any{
				"name":   "Jane Doe",
				"direct": "abc123",
			},
		})
	}))

	res := gateway.GetPerson(context.Background(), "jane@example.com")
	require.True(t, res.OK, res.Message)

	assert.Equal(t, []string{"api@example.com"}, gotQuery["user"])
	assert.Equal(t, []string{"secret"}, gotQuery["api_key"])
	assert.Equal(t, []string{"true"}, gotQuery["team"])
	assert.Equal(t, []string{"jane@example.com"}, gotQuery["uniqueid"])

	assert.Equal(t, "Jane Doe", res.Value.Name())
	assert.Equal(t, "abc123", res.Value.Direct())
}

func TestGetProjectReadsProjectField(t *testing.T) {
	gateway := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/get", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errorcode": 0,
			"project":   map[string]any{"name": "1037"},
		})
	}))

	res := gateway.GetProject(context.Background(), "pricecloser.com:1037")
	require.True(t, res.OK, res.Message)
	assert.Equal(t, "1037", res.Value.Name())
}

func TestBusinessErrorNormalizesTo500(t *testing.T) {
	gateway := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// transport is fine, the CRM rejected the lookup
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errorcode": 13,
			"message":   "no such person",
		})
	}))

	res := gateway.GetPerson(context.Background(), "missing@example.com")
	require.False(t, res.OK)
	assert.Equal(t, result.KindTargetRejected, res.Kind)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Contains(t, res.Message, "no such person")
}

func TestTransportErrorStatusPreserved(t *testing.T) {
	gateway := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{"errorcode": 99, "message": "rate limited"})
	}))

	res := gateway.CreatePerson(context.Background(), crm.Record{"name": "Jane Doe"})
	require.False(t, res.OK)
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
}

func TestCreateProjectReturnsSubmittedRecord(t *testing.T) {
	var gotBody map[string]any
	gateway := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/create", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"errorcode": 0})
	}))

	record := crm.Record{"name": "1037", "stage": "current"}
	res := gateway.CreateProject(context.Background(), record)
	require.True(t, res.OK, res.Message)

	assert.Equal(t, "1037", gotBody["name"])
	assert.Equal(t, "1037", res.Value.Name())
	assert.Contains(t, res.Message, "Successfully created projects '1037'!")
}

func TestRecordCustomFieldHelpers(t *testing.T) {
	var record crm.Record
	raw := `{
		"name": "Jane Doe",
		"customFields": [
			{"id": "customer", "type": "contact", "value": {"name": "Jane Doe", "ids": ["direct:abc", "jane@example.com"]}},
			{"id": "orders", "type": "projects", "value": [{"name": "1037", "ids": ["pricecloser.com:1037"]}]}
		]
	}`
	require.NoError(t, json.Unmarshal([]byte(raw), &record))

	field, pos := record.CustomField("customer")
	require.NotNil(t, field)
	assert.Equal(t, 0, pos)
	assert.Equal(t, []string{"direct:abc", "jane@example.com"}, crm.ValueIDs(field))

	orders, pos := record.CustomField("orders")
	require.NotNil(t, orders)
	assert.Equal(t, 1, pos)

	entries := crm.ValueList(orders)
	require.Len(t, entries, 1)
	assert.Equal(t, "1037", entries[0].Name())
	assert.Equal(t, []string{"pricecloser.com:1037"}, entries[0].IDs())

	_, pos = record.CustomField("nope")
	assert.Equal(t, -1, pos)
}
