package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueAudit is the asynq queue carrying access events.
	QueueAudit = "audit"
	// TaskAccessEvent is the task type for a single access log entry.
	TaskAccessEvent = "audit:access_event"
)

// Enqueuer is the subset of *asynq.Client used by QueueStore.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueStore hands entries to the worker through asynq so the request path
// only pays for a Redis round trip.
type QueueStore struct {
	client Enqueuer
}

// NewQueueStore returns a QueueStore backed by client.
func NewQueueStore(client Enqueuer) *QueueStore {
	return &QueueStore{client: client}
}

// NewAccessEventTask builds the task for e. The entry id doubles as the task id
// so a retried enqueue cannot duplicate a row.
func NewAccessEventTask(e Entry) (*asynq.Task, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccessEvent, data,
		asynq.Queue(QueueAudit),
		asynq.TaskID(e.ID),
		asynq.MaxRetry(5),
		asynq.Retention(24*time.Hour),
	), nil
}

// LogAccessEvent enqueues the entry.
func (s *QueueStore) LogAccessEvent(ctx context.Context, e Entry) error {
	if s == nil || s.client == nil {
		return ErrStoreNotConfigured
	}
	task, err := NewAccessEventTask(e)
	if err != nil {
		return fmt.Errorf("audit: encode task: %w", err)
	}
	if _, err := s.client.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("audit: enqueue: %w", err)
	}
	return nil
}

// TaskHandler returns the asynq handler that drains access events into sink.
func TaskHandler(sink Store) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var e Entry
		if err := json.Unmarshal(t.Payload(), &e); err != nil {
			return fmt.Errorf("audit: decode task: %v: %w", err, asynq.SkipRetry)
		}
		return sink.LogAccessEvent(ctx, e)
	}
}

var _ Store = (*QueueStore)(nil)
