package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/odyssey-school/odyssey-school/internal/access"
)

// ErrStoreNotConfigured is returned when a Logger is built without a store.
var ErrStoreNotConfigured = errors.New("audit: store not configured")

// Store persists access log entries. It is append-only.
type Store interface {
	LogAccessEvent(ctx context.Context, entry Entry) error
}

// FailureObserver is told about every entry that could not be persisted.
type FailureObserver interface {
	ObserveAuditFailure(reason string)
}

// Options tunes a Logger.
type Options struct {
	Timeout     time.Duration
	MaxInFlight int
	Logger      *slog.Logger
	Observer    FailureObserver
}

// Logger records decisions in the background. Record never blocks on the store
// and never reports failures to the caller.
type Logger struct {
	store    Store
	timeout  time.Duration
	slots    chan struct{}
	wg       sync.WaitGroup
	logger   *slog.Logger
	observer FailureObserver
}

// NewLogger constructs a Logger writing to store.
func NewLogger(store Store, opts Options) (*Logger, error) {
	if store == nil {
		return nil, ErrStoreNotConfigured
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	inflight := opts.MaxInFlight
	if inflight <= 0 {
		inflight = 256
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		store:    store,
		timeout:  timeout,
		slots:    make(chan struct{}, inflight),
		logger:   logger,
		observer: opts.Observer,
	}, nil
}

// Record implements access.Auditor.
func (l *Logger) Record(ctx context.Context, d access.Decision, meta access.RequestMeta) {
	if l == nil {
		return
	}
	entries := Entries(d, meta)
	if len(entries) == 0 {
		return
	}
	select {
	case l.slots <- struct{}{}:
	default:
		for _, e := range entries {
			l.fail("dropped", errors.New("audit: too many writes in flight"), e)
		}
		return
	}
	l.wg.Add(1)
	go l.write(context.WithoutCancel(ctx), entries)
}

func (l *Logger) write(ctx context.Context, entries []Entry) {
	defer l.wg.Done()
	defer func() { <-l.slots }()
	current := entries[0]
	defer func() {
		if rec := recover(); rec != nil {
			l.fail("panic", fmt.Errorf("audit: store panicked: %v", rec), current)
		}
	}()
	for _, e := range entries {
		current = e
		wctx, cancel := context.WithTimeout(ctx, l.timeout)
		err := l.store.LogAccessEvent(wctx, e)
		cancel()
		if err == nil {
			continue
		}
		reason := "store"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		l.fail(reason, err, e)
	}
}

func (l *Logger) fail(reason string, err error, e Entry) {
	l.logger.Error("audit write failed",
		slog.String("reason", reason),
		slog.String("event_type", string(e.EventType)),
		slog.String("route", e.RouteID),
		slog.Any("error", err))
	if l.observer != nil {
		l.observer.ObserveAuditFailure(reason)
	}
}

// Wait blocks until all in-flight writes finish.
func (l *Logger) Wait() {
	if l == nil {
		return
	}
	l.wg.Wait()
}

// Close waits for in-flight writes or gives up when ctx ends.
func (l *Logger) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ access.Auditor = (*Logger)(nil)
