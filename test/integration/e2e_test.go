// Package integration contains end-to-end tests for the Clover API.
// They require a running API with Redis behind it:
// TEST_E2E=1 go test -v ./test/integration/...
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseURL = getEnv("TEST_BASE_URL", "http://localhost:3000")

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env")
	os.Exit(m.Run())
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func requireStack(t *testing.T) {
	t.Helper()
	if os.Getenv("TEST_E2E") == "" {
		t.Skip("set TEST_E2E=1 to run against a live stack")
	}
}

// TestClient wraps http.Client with common headers
type TestClient struct {
	*http.Client
	baseURL string
}

func NewTestClient() *TestClient {
	return &TestClient{
		Client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
	}
}

func (c *TestClient) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "test-tenant")
	return c.Client.Do(req)
}

func (c *TestClient) Get(path string) (*http.Response, error) {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func (c *TestClient) Post(path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest("POST", c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func (c *TestClient) Patch(path string) (*http.Response, error) {
	req, err := http.NewRequest("PATCH", c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func (c *TestClient) Delete(path string) (*http.Response, error) {
	req, err := http.NewRequest("DELETE", c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func parseResponse(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	if target != nil {
		require.NoError(t, json.Unmarshal(body, target), "failed to parse response: %s", string(body))
	}
}

// TestHealthCheck verifies the API is running
func TestHealthCheck(t *testing.T) {
	requireStack(t)
	client := NewTestClient()

	resp, err := client.Get("/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]any
	parseResponse(t, resp, &result)
	assert.Equal(t, "healthy", result["status"])
}

// TestWelcome verifies the root route lists the available links
func TestWelcome(t *testing.T) {
	requireStack(t)
	client := NewTestClient()

	resp, err := client.Get("/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]any
	parseResponse(t, resp, &result)
	assert.Equal(t, "Welcome to the Clover API!", result["message"])
	assert.NotEmpty(t, result["links"])
}

// TestUnknownJobReturns404 polls a job id that cannot exist
func TestUnknownJobReturns404(t *testing.T) {
	requireStack(t)
	client := NewTestClient()

	resp, err := client.Get("/result/00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var result map[string]any
	parseResponse(t, resp, &result)
	assert.Equal(t, false, result["ok"])
	assert.Equal(t, "job_not_found", result["error_kind"])
}

// TestEnqueueAndPoll transfers one order through the job queue and polls
// until the job reaches a terminal state
func TestEnqueueAndPoll(t *testing.T) {
	requireStack(t)
	orderID := os.Getenv("TEST_ORDER_ID")
	if orderID == "" {
		t.Skip("set TEST_ORDER_ID to an existing cart order id")
	}

	client := NewTestClient()

	resp, err := client.Patch("/order/" + orderID + "?enqueue=true")
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var enqueued map[string]any
	parseResponse(t, resp, &enqueued)
	jobID, _ := enqueued["job_id"].(string)
	require.NotEmpty(t, jobID)

	deadline := time.Now().Add(2 * time.Minute)
	for time.Now().Before(deadline) {
		resp, err := client.Get("/result/" + jobID)
		require.NoError(t, err)

		var report map[string]any
		parseResponse(t, resp, &report)

		switch resp.StatusCode {
		case http.StatusAccepted:
			time.Sleep(2 * time.Second)
			continue
		case http.StatusOK:
			return
		default:
			t.Fatalf("job %s failed: %v", jobID, report)
		}
	}
	t.Fatalf("job %s did not finish in time", jobID)
}

// TestCacheClear resets the start-date cursor
func TestCacheClear(t *testing.T) {
	requireStack(t)
	client := NewTestClient()

	resp, err := client.Delete("/cache")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]any
	parseResponse(t, resp, &result)
	assert.Equal(t, "Caches cleared!", result["message"])
}
