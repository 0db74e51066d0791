package port

import (
	"context"
	"time"
)

// Task is a background job with a stable type identifier and an opaque
// payload. Payload encoding is up to the callers; this port stays free of
// serialization concerns.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes one Task. A non-nil error signals retry per the
// adapter's policy; handlers must therefore be idempotent.
type Handler func(ctx context.Context, task Task) error

// EnqueueOption tunes a single enqueue. Zero values mean "unspecified";
// adapters map supported fields best-effort.
type EnqueueOption struct {
	Queue     string        // logical queue name
	MaxRetry  int           // max retries for the task
	UniqueTTL time.Duration // suppress duplicate tasks within the window
}

// Client enqueues tasks for background processing.
type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (id string, err error)
	Close() error
}

// Server runs the background workers. Run blocks until the context is
// canceled, then shuts down gracefully.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
}
