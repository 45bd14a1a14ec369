// Package documents orchestrates uploads: validation, text extraction,
// provider calls and persistence, in synchronous or queued mode.
package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/tender-extractor/constants"
	"github.com/joseph-ayodele/tender-extractor/internal/archive"
	"github.com/joseph-ayodele/tender-extractor/internal/async"
	"github.com/joseph-ayodele/tender-extractor/internal/common"
	"github.com/joseph-ayodele/tender-extractor/internal/entity"
	"github.com/joseph-ayodele/tender-extractor/internal/pipeline"
	"github.com/joseph-ayodele/tender-extractor/internal/repository"
)

// Upload is a file received from a client.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Extracted is a validated upload with its prompt-ready text.
type Extracted struct {
	FileName  string
	Text      string
	PageCount int
	Data      []byte
}

type Service struct {
	store   repository.DocumentRepository
	text    *pipeline.TextStage
	extract *pipeline.ExtractStage
	queue   async.Queue
	archive archive.Archive
	tempDir string
	logger  *slog.Logger
}

type Option func(*Service)

// WithArchive keeps original uploads so submittals can be recomputed without a new upload.
func WithArchive(a archive.Archive) Option {
	return func(s *Service) {
		if a != nil {
			s.archive = a
		}
	}
}

// WithTempDir sets where uploads are spilled while pdftotext reads them.
func WithTempDir(dir string) Option {
	return func(s *Service) { s.tempDir = dir }
}

func NewService(
	store repository.DocumentRepository,
	text *pipeline.TextStage,
	extract *pipeline.ExtractStage,
	queue async.Queue,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:   store,
		text:    text,
		extract: extract,
		queue:   queue,
		archive: archive.Noop{},
		logger:  logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ingest validates an upload and extracts its text. The bytes are written to
// a temporary file that is removed before Ingest returns.
func (s *Service) Ingest(ctx context.Context, up *Upload) (*Extracted, error) {
	if up == nil || len(up.Data) == 0 {
		return nil, common.ErrNoFileUploaded
	}
	if !constants.IsPDFUpload(up.FileName, up.ContentType) || !constants.HasPDFMagic(up.Data) {
		s.logger.Warn("documents.ingest.rejected", append(common.LogAttrs(ctx),
			"file_name", up.FileName, "content_type", up.ContentType)...)
		return nil, common.ErrUnsupportedFileType
	}

	f, err := os.CreateTemp(s.tempDir, "upload-*."+constants.PDFExtension)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()
	defer func() {
		if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.logger.Warn("documents.ingest.cleanup_failed", "path", tmpPath, "error", rmErr)
		}
	}()

	if _, err := f.Write(up.Data); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	txt, err := s.text.Run(ctx, tmpPath)
	if err != nil {
		return nil, err
	}
	return &Extracted{
		FileName:  displayName(up.FileName),
		Text:      txt.Content,
		PageCount: txt.PageCount,
		Data:      up.Data,
	}, nil
}

// Summarize dispatches on mode.
func (s *Service) Summarize(ctx context.Context, mode constants.ProcessingMode, up *Upload) (*entity.Document, error) {
	if mode == constants.ModeSync {
		return s.SummarizeSync(ctx, up)
	}
	return s.SummarizeAsync(ctx, up)
}

// SummarizeSync extracts everything before writing; a failed run leaves no record.
func (s *Service) SummarizeSync(ctx context.Context, up *Upload) (*entity.Document, error) {
	start := time.Now()
	ex, err := s.Ingest(ctx, up)
	if err != nil {
		return nil, err
	}

	res, err := s.extract.Run(ctx, ex.Text)
	if err != nil {
		return nil, err
	}

	id, err := s.store.Create(ctx, ex.FileName)
	if err != nil {
		return nil, err
	}
	ctx = common.WithDocumentID(ctx, id)
	s.archiveUpload(ctx, id, ex)

	u := entity.DocumentUpdate{Fields: res.Fields}.
		WithSubmittals(res.Submittals).
		WithPageCount(ex.PageCount).
		WithStatus(constants.StatusCompleted)
	if err := s.store.Update(ctx, id, u); err != nil {
		return nil, err
	}

	s.logger.Info("documents.summarize.sync.ok", append(common.LogAttrs(ctx),
		"file_name", ex.FileName,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)...)
	return s.store.Get(ctx, id)
}

// SummarizeAsync stores a pending record, queues the extraction and returns
// without waiting for the provider.
func (s *Service) SummarizeAsync(ctx context.Context, up *Upload) (*entity.Document, error) {
	ex, err := s.Ingest(ctx, up)
	if err != nil {
		return nil, err
	}

	id, err := s.store.Create(ctx, ex.FileName)
	if err != nil {
		return nil, err
	}
	ctx = common.WithDocumentID(ctx, id)
	if err := s.store.Update(ctx, id, entity.DocumentUpdate{}.WithPageCount(ex.PageCount)); err != nil {
		return nil, err
	}
	s.archiveUpload(ctx, id, ex)

	// Read before enqueueing: the returned record is always pending.
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	trace := common.RequestIDFromContext(ctx)
	if trace == "" {
		trace = uuid.NewString()
	}
	job := async.Job{
		DocumentID:  id,
		FileName:    ex.FileName,
		Text:        ex.Text,
		SubmittedAt: time.Now(),
		TraceID:     trace,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Error("documents.summarize.enqueue_failed", append(common.LogAttrs(ctx), "error", err)...)
		markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = s.store.Update(markCtx, id, entity.DocumentUpdate{}.WithError(pipeline.FailureMessage(err)))
		return nil, err
	}

	s.logger.Info("documents.summarize.async.queued", append(common.LogAttrs(ctx), "file_name", ex.FileName)...)
	return doc, nil
}

func (s *Service) Get(ctx context.Context, id string) (*entity.Document, error) {
	return s.store.Get(ctx, id)
}

// History lists every document, newest first.
func (s *Service) History(ctx context.Context) ([]entity.DocumentSummary, error) {
	return s.store.ListSummaries(ctx)
}

// Submittals returns stored submittals when there are any. Otherwise it
// extracts them from up, or from the archived original when up is nil, and
// stores the result.
func (s *Service) Submittals(ctx context.Context, id string, up *Upload) ([]entity.Submittal, error) {
	ctx = common.WithDocumentID(ctx, id)
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.HasSubmittals() {
		s.logger.Info("documents.submittals.cached", append(common.LogAttrs(ctx), "count", len(doc.Submittals))...)
		return doc.Submittals, nil
	}

	if up == nil || len(up.Data) == 0 {
		up, err = s.archivedUpload(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	ex, err := s.Ingest(ctx, up)
	if err != nil {
		return nil, err
	}
	subs, err := s.extract.Submittals(ctx, ex.Text)
	if err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, id, entity.DocumentUpdate{}.WithSubmittals(subs)); err != nil {
		return nil, err
	}
	s.logger.Info("documents.submittals.computed", append(common.LogAttrs(ctx), "count", len(subs))...)
	return subs, nil
}

func (s *Service) archivedUpload(ctx context.Context, id string) (*Upload, error) {
	if !s.archive.Enabled() {
		return nil, common.ErrNoFileUploaded
	}
	data, name, err := s.archive.Load(ctx, id)
	if errors.Is(err, common.ErrRecordNotFound) {
		return nil, common.ErrNoFileUploaded
	}
	if err != nil {
		return nil, err
	}
	return &Upload{FileName: name, ContentType: constants.PDFMimeType, Data: data}, nil
}

// archiveUpload is best effort; a failed archive write never fails the request.
func (s *Service) archiveUpload(ctx context.Context, id string, ex *Extracted) {
	if !s.archive.Enabled() {
		return
	}
	if err := s.archive.Save(ctx, id, ex.FileName, ex.Data); err != nil {
		s.logger.Warn("documents.archive.failed", append(common.LogAttrs(ctx), "error", err)...)
	}
}

// displayName strips any client-supplied directory components.
func displayName(name string) string {
	base := path.Base("/" + strings.ReplaceAll(name, `\`, "/"))
	if base == "/" || base == "." {
		return "document." + constants.PDFExtension
	}
	return base
}
