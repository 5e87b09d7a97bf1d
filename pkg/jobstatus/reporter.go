// Package jobstatus reports the status and result of enqueued sync jobs.
package jobstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/result"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Store reads job records. Satisfied by *redis.JobStore.
type Store interface {
	Get(ctx context.Context, jobID string) (*redis.JobRecord, error)
}

// Report is the poll response for an enqueued job.
type Report struct {
	JobID  string          `json:"job_id"`
	Status string          `json:"job_status"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Reporter maps stored job records to poll responses.
type Reporter struct {
	store Store
}

func NewReporter(store Store) *Reporter {
	return &Reporter{store: store}
}

// Report fetches a job's current state. In-flight jobs answer 202, finished
// jobs answer 200 with the stored sync result, failed jobs answer 500 with
// the stored failure, and unknown or expired job ids answer 404.
func (r *Reporter) Report(ctx context.Context, jobID string) result.Result[Report] {
	ctx, span := tracing.StartSpan(ctx, "Reporter.Report")
	defer span.End()

	record, err := r.store.Get(ctx, jobID)
	if err != nil {
		return result.Fail[Report](result.KindSourceTransport, http.StatusInternalServerError,
			fmt.Sprintf("Failed to look up job '%s'.", jobID))
	}
	if record == nil {
		return result.Fail[Report](result.KindJobNotFound, http.StatusNotFound,
			fmt.Sprintf("Job '%s' could not be found.", jobID))
	}

	report := Report{
		JobID:  record.ID,
		Status: string(record.Status),
		Result: record.Result,
	}

	switch record.Status {
	case redis.JobStatusQueued, redis.JobStatusStarted:
		res := result.Ok(report, fmt.Sprintf("Job '%s' is %s.", jobID, record.Status))
		res.StatusCode = http.StatusAccepted
		return res

	case redis.JobStatusFinished:
		return result.Ok(report, fmt.Sprintf("Job '%s' finished.", jobID))

	case redis.JobStatusFailed:
		res := result.Fail[Report](failureKind(record.Result), http.StatusInternalServerError,
			failureMessage(jobID, record.Result))
		res.Value = report
		return res

	default:
		return result.Fail[Report](result.KindSourceTransport, http.StatusInternalServerError,
			fmt.Sprintf("Job '%s' has unknown status '%s'.", jobID, record.Status))
	}
}

// storedFailure is the subset of a stored sync result needed to surface the
// original failure to the poller.
type storedFailure struct {
	Message string           `json:"message"`
	Kind    result.ErrorKind `json:"error_kind"`
}

func failureKind(raw json.RawMessage) result.ErrorKind {
	var stored storedFailure
	if err := json.Unmarshal(raw, &stored); err == nil && stored.Kind != result.KindNone {
		return stored.Kind
	}
	return result.KindTargetRejected
}

func failureMessage(jobID string, raw json.RawMessage) string {
	var stored storedFailure
	if err := json.Unmarshal(raw, &stored); err == nil && stored.Message != "" {
		return stored.Message
	}
	return fmt.Sprintf("Job '%s' failed.", jobID)
}
