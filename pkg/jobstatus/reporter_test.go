package jobstatus_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/jobstatus"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/result"
)

type fakeStore struct {
	records map[string]*redis.JobRecord
	err     error
}

func (f *fakeStore) Get(ctx context.Context, jobID string) (*redis.JobRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records[jobID], nil
}

func TestReportQueued(t *testing.T) {
	store := &fakeStore{records: map[string]*redis.JobRecord{
		"abc": {ID: "abc", Status: redis.JobStatusQueued},
	}}
	reporter := jobstatus.NewReporter(store)

	res := reporter.Report(context.Background(), "abc")

	require.True(t, res.OK)
	assert.Equal(t, http.StatusAccepted, res.StatusCode)
	assert.Equal(t, "queued", res.Value.Status)
}

func TestReportStarted(t *testing.T) {
	store := &fakeStore{records: map[string]*redis.JobRecord{
		"abc": {ID: "abc", Status: redis.JobStatusStarted},
	}}
	reporter := jobstatus.NewReporter(store)

	res := reporter.Report(context.Background(), "abc")

	require.True(t, res.OK)
	assert.Equal(t, http.StatusAccepted, res.StatusCode)
}

func TestReportFinishedIncludesResult(t *testing.T) {
	stored := json.RawMessage(`{"ok":true,"message":"Successfully created person 'Jane Doe'!","status_code":200}`)
	store := &fakeStore{records: map[string]*redis.JobRecord{
		"abc": {ID: "abc", Status: redis.JobStatusFinished, Result: stored},
	}}
	reporter := jobstatus.NewReporter(store)

	res := reporter.Report(context.Background(), "abc")

	require.True(t, res.OK)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, string(stored), string(res.Value.Result))
}

func TestReportFailedSurfacesStoredFailure(t *testing.T) {
	stored := json.RawMessage(`{"ok":false,"message":"Error trying to create project 'pricecloser.com:7'.","status_code":500,"error_kind":"target_rejected"}`)
	store := &fakeStore{records: map[string]*redis.JobRecord{
		"abc": {ID: "abc", Status: redis.JobStatusFailed, Result: stored},
	}}
	reporter := jobstatus.NewReporter(store)

	res := reporter.Report(context.Background(), "abc")

	require.False(t, res.OK)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, result.KindTargetRejected, res.Kind)
	assert.Equal(t, "Error trying to create project 'pricecloser.com:7'.", res.Message)
	assert.Equal(t, "failed", res.Value.Status)
}

func TestReportUnknownJob(t *testing.T) {
	reporter := jobstatus.NewReporter(&fakeStore{records: map[string]*redis.JobRecord{}})

	res := reporter.Report(context.Background(), "missing")

	require.False(t, res.OK)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, result.KindJobNotFound, res.Kind)
}

func TestReportStoreError(t *testing.T) {
	reporter := jobstatus.NewReporter(&fakeStore{err: errors.New("redis down")})

	res := reporter.Report(context.Background(), "abc")

	require.False(t, res.OK)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}
