package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/clover/pkg/tracing"
)

// JobStatus is the lifecycle state of an enqueued job
type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusStarted  JobStatus = "started"
	JobStatusFinished JobStatus = "finished"
	JobStatusFailed   JobStatus = "failed"
)

const jobKeyPrefix = "clover:job:"

// JobRecord is the stored status and result of an enqueued job
type JobRecord struct {
	ID        string          `json:"id"`
	Status    JobStatus       `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// JobStore persists job status and results in Redis with a TTL
type JobStore struct {
	client *Client
	ttl    time.Duration
}

// NewJobStore creates a new job store. Records expire after ttl.
func NewJobStore(client *Client, ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &JobStore{
		client: client,
		ttl:    ttl,
	}
}

func jobKey(jobID string) string {
	return jobKeyPrefix + jobID
}

// Create records a new job in the queued state
func (s *JobStore) Create(ctx context.Context, jobID string) error {
	ctx, span := tracing.StartSpan(ctx, "JobStore.Create")
	defer span.End()

	now := time.Now()
	record := JobRecord{
		ID:        jobID,
		Status:    JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.save(ctx, &record)
}

// SetStatus updates a job's status, preserving any stored result
func (s *JobStore) SetStatus(ctx context.Context, jobID string, status JobStatus) error {
	ctx, span := tracing.StartSpan(ctx, "JobStore.SetStatus")
	defer span.End()

	record, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("job not found: %s", jobID)
	}

	record.Status = status
	record.UpdatedAt = time.Now()
	return s.save(ctx, record)
}

// SetResult stores a job's terminal result and marks it finished or failed
func (s *JobStore) SetResult(ctx context.Context, jobID string, status JobStatus, result any) error {
	ctx, span := tracing.StartSpan(ctx, "JobStore.SetResult")
	defer span.End()

	record, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if record == nil {
		record = &JobRecord{ID: jobID, CreatedAt: time.Now()}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal job result: %w", err)
	}

	record.Status = status
	record.Result = data
	record.UpdatedAt = time.Now()
	return s.save(ctx, record)
}

// Get fetches a job record. Returns nil when the job does not exist or has expired.
func (s *JobStore) Get(ctx context.Context, jobID string) (*JobRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "JobStore.Get")
	defer span.End()

	data, err := s.client.Get(ctx, jobKey(jobID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job record: %w", err)
	}

	var record JobRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job record: %w", err)
	}
	return &record, nil
}

func (s *JobStore) save(ctx context.Context, record *JobRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal job record: %w", err)
	}
	if err := s.client.Set(ctx, jobKey(record.ID), string(data), s.ttl); err != nil {
		return fmt.Errorf("failed to save job record: %w", err)
	}
	return nil
}
