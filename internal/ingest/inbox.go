// Package ingest submits PDFs dropped into a watched directory.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joseph-ayodele/tender-extractor/constants"
	"github.com/joseph-ayodele/tender-extractor/internal/documents"
	"github.com/joseph-ayodele/tender-extractor/internal/entity"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Summarizer is the part of documents.Service the inbox needs.
type Summarizer interface {
	Summarize(ctx context.Context, mode constants.ProcessingMode, up *documents.Upload) (*entity.Document, error)
}

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	DocumentID   string
	Deduplicated bool
	HashHex      string
	Err          string
}

// Inbox watches a directory and submits every PDF it sees. Submitted files
// move to processed/, rejected ones to failed/ with a .error note.
type Inbox struct {
	root     string
	debounce time.Duration
	mode     constants.ProcessingMode
	docs     Summarizer
	logger   *slog.Logger

	mu   sync.Mutex
	seen map[string]string // content hash -> document id
}

func NewInbox(root string, debounce time.Duration, docs Summarizer, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{
		root:     root,
		debounce: debounce,
		mode:     constants.ModeAsync,
		docs:     docs,
		logger:   logger,
		seen:     map[string]string{},
	}
}

// Run processes files already in the inbox, then new arrivals, until ctx is done.
func (in *Inbox) Run(ctx context.Context) error {
	for _, dir := range []string{in.root, filepath.Join(in.root, ProcessedDir), filepath.Join(in.root, FailedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("inbox: %w", err)
		}
	}
	paths, errs, err := StartWatcher(ctx, WatchConfig{Root: in.root, InitialScan: true, Debounce: in.debounce}, in.logger)
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	in.logger.Info("ingest.inbox.start", "root", in.root)

	for {
		select {
		case <-ctx.Done():
			in.logger.Info("ingest.inbox.stop")
			return nil
		case err, ok := <-errs:
			if ok {
				in.logger.Warn("ingest.inbox.watch_error", "error", err)
			}
		case p, ok := <-paths:
			if !ok {
				return nil
			}
			res, err := in.IngestPath(ctx, p)
			if errors.Is(err, fs.ErrNotExist) {
				// already moved by an earlier event for the same file
				continue
			}
			if err != nil {
				in.logger.Warn("ingest.inbox.failed", "path", p, "error", err)
				continue
			}
			in.logger.Info("ingest.inbox.submitted", "path", p, "doc_id", res.DocumentID, "deduplicated", res.Deduplicated)
		}
	}
}

// IngestPath submits one file and moves it out of the inbox.
func (in *Inbox) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	res := IngestionResult{SourcePath: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return res, err
	}
	sum := sha256.Sum256(data)
	res.HashHex = hex.EncodeToString(sum[:])

	in.mu.Lock()
	prev, dup := in.seen[res.HashHex]
	in.mu.Unlock()
	if dup {
		res.DocumentID = prev
		res.Deduplicated = true
		return res, in.move(path, ProcessedDir)
	}

	doc, err := in.docs.Summarize(ctx, in.mode, &documents.Upload{
		FileName: filepath.Base(path),
		Data:     data,
	})
	if err != nil {
		res.Err = err.Error()
		if moveErr := in.move(path, FailedDir); moveErr != nil {
			return res, errors.Join(err, moveErr)
		}
		note := filepath.Join(in.root, FailedDir, filepath.Base(path)+".error")
		_ = os.WriteFile(note, []byte(err.Error()+"\n"), 0o644)
		return res, err
	}

	res.DocumentID = doc.ID
	in.mu.Lock()
	in.seen[res.HashHex] = doc.ID
	in.mu.Unlock()
	return res, in.move(path, ProcessedDir)
}

// move renames path into sub, adding a timestamp if the name is taken.
func (in *Inbox) move(path, sub string) error {
	dst := filepath.Join(in.root, sub, filepath.Base(path))
	if _, err := os.Stat(dst); err == nil {
		ext := filepath.Ext(dst)
		dst = fmt.Sprintf("%s-%d%s", dst[:len(dst)-len(ext)], time.Now().UnixNano(), ext)
	}
	if err := os.Rename(path, dst); err != nil {
		return fmt.Errorf("move %s: %w", filepath.Base(path), err)
	}
	return nil
}
