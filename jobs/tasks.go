package jobs

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/odyssey-school/odyssey-school/internal/audit"
	jobmetrics "github.com/odyssey-school/odyssey-school/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueAudit carries access log entries.
	QueueAudit = audit.QueueAudit
)

// Queues returns the queue priorities served by the worker.
func Queues() map[string]int {
	return map[string]int{
		QueueAudit:   6,
		QueueDefault: 1,
	}
}

// AccessEventHandler persists queued access log entries into sink.
func AccessEventHandler(sink audit.Store, metrics *jobmetrics.Metrics) TaskHandler {
	return TaskHandler{
		Type:    audit.TaskAccessEvent,
		Handler: Instrument(metrics, audit.TaskAccessEvent, audit.TaskHandler(sink)),
	}
}

// Instrument records run metrics around handler.
func Instrument(metrics *jobmetrics.Metrics, job string, handler asynq.HandlerFunc) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(job)
		return tracker.End(handler(ctx, t))
	}
}
