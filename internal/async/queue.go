package async

import (
	"context"
	"time"
)

// Job is one document waiting for extraction. The text is extracted at
// upload time so the worker never needs the original file.
type Job struct {
	DocumentID  string
	FileName    string
	Text        string
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Runner processes a single job.
type Runner interface {
	Process(ctx context.Context, job Job) error
}

// Abandoner is implemented by runners that record jobs dropped when
// Shutdown gives up before the queue is drained.
type Abandoner interface {
	Abandon(job Job)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, job Job) error

func (f RunnerFunc) Process(ctx context.Context, job Job) error { return f(ctx, job) }
