package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/joseph-ayodele/tender-extractor/constants"
	"github.com/joseph-ayodele/tender-extractor/internal/async"
	"github.com/joseph-ayodele/tender-extractor/internal/common"
	"github.com/joseph-ayodele/tender-extractor/internal/entity"
	"github.com/joseph-ayodele/tender-extractor/internal/repository"
)

// Processor runs a queued document through extraction and records the
// outcome: pending -> processing -> completed|failed.
type Processor struct {
	Store   repository.DocumentRepository
	Extract *ExtractStage
	Logger  *slog.Logger
}

var (
	_ async.Runner    = (*Processor)(nil)
	_ async.Abandoner = (*Processor)(nil)
)

// errShutdown is recorded on documents still queued when the service stops.
var errShutdown = common.NewAppError("SHUTDOWN", "processing interrupted by service shutdown", common.ErrQueueClosed)

func NewProcessor(store repository.DocumentRepository, extract *ExtractStage, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Store: store, Extract: extract, Logger: logger}
}

// Process implements async.Runner. A panic while extracting marks the
// document failed and is returned as an error.
func (p *Processor) Process(ctx context.Context, job async.Job) (err error) {
	start := time.Now()
	attrs := common.LogAttrs(ctx)
	defer func() {
		if r := recover(); r != nil {
			p.Logger.Error("pipeline.run.panic", append(attrs, "doc_id", job.DocumentID, "panic", r, "stack", string(debug.Stack()))...)
			err = fmt.Errorf("extraction panicked: %v", r)
			p.fail(job.DocumentID, err)
		}
	}()

	if err := p.Store.Update(ctx, job.DocumentID, entity.DocumentUpdate{}.WithStatus(constants.StatusProcessing)); err != nil {
		p.Logger.Error("pipeline.run.mark_processing_failed", append(attrs, "doc_id", job.DocumentID, "error", err)...)
		return err
	}
	p.Logger.Info("pipeline.run.start", append(attrs, "doc_id", job.DocumentID, "file_name", job.FileName)...)

	res, err := p.Extract.Run(ctx, job.Text)
	if err != nil {
		p.fail(job.DocumentID, err)
		return err
	}

	u := entity.DocumentUpdate{Fields: res.Fields}.
		WithSubmittals(res.Submittals).
		WithStatus(constants.StatusCompleted)
	if err := p.Store.Update(ctx, job.DocumentID, u); err != nil {
		p.fail(job.DocumentID, err)
		return err
	}

	p.Logger.Info("pipeline.run.ok", append(attrs,
		"doc_id", job.DocumentID,
		"submittals", len(res.Submittals),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)...)
	return nil
}

// Abandon implements async.Abandoner.
func (p *Processor) Abandon(job async.Job) {
	p.fail(job.DocumentID, errShutdown)
}

// fail records the error on the document. It uses a fresh context so a job
// that hit its deadline still gets marked failed.
func (p *Processor) fail(docID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := FailureMessage(cause)
	if err := p.Store.Update(ctx, docID, entity.DocumentUpdate{}.WithError(msg)); err != nil {
		p.Logger.Error("pipeline.run.mark_failed_error", "doc_id", docID, "error", err, "cause", cause)
		return
	}
	p.Logger.Warn("pipeline.run.failed", "doc_id", docID, "error", msg)
}

// FailureMessage renders err for the document's errorMessage field.
func FailureMessage(err error) string {
	var ae *common.AppError
	switch {
	case errors.As(err, &ae):
		return ae.Message
	case errors.Is(err, context.DeadlineExceeded):
		return "processing timed out"
	default:
		return err.Error()
	}
}
