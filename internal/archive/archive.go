// Package archive keeps the original uploaded PDFs so extraction can be rerun
// without a second upload.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/joseph-ayodele/tender-extractor/internal/common"
)

// Archive stores and retrieves original uploads by document id.
type Archive interface {
	Enabled() bool
	Save(ctx context.Context, docID, fileName string, data []byte) error
	// Load returns common.ErrRecordNotFound when nothing is archived for docID.
	Load(ctx context.Context, docID string) (data []byte, fileName string, err error)
}

// Noop is used when no bucket is configured.
type Noop struct{}

func (Noop) Enabled() bool { return false }
func (Noop) Save(context.Context, string, string, []byte) error { return nil }
func (Noop) Load(context.Context, string) ([]byte, string, error) {
	return nil, "", common.ErrRecordNotFound
}

// GCS archives uploads in a Cloud Storage bucket under prefix/<docID>.pdf.
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
	logger *slog.Logger
}

// New returns a GCS archive for cfg.Bucket, or Noop when the bucket is empty.
func New(ctx context.Context, cfg common.ArchiveConfig, logger *slog.Logger) (Archive, func() error, error) {
	if cfg.Bucket == "" {
		return Noop{}, func() error { return nil }, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	logger.Info("archive enabled", "bucket", cfg.Bucket, "prefix", cfg.Prefix)
	return &GCS{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		prefix: cfg.Prefix,
		logger: logger,
	}, client.Close, nil
}

func (g *GCS) Enabled() bool { return true }

// Save writes the object only if it does not exist yet; an existing object is left as is.
func (g *GCS) Save(ctx context.Context, docID, fileName string, data []byte) error {
	name := objectName(g.prefix, docID)
	w := g.bucket.Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/pdf"
	w.Metadata = map[string]string{"pdfName": fileName}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return g.writeErr(name, err)
	}
	if err := w.Close(); err != nil {
		return g.writeErr(name, err)
	}
	g.logger.Info("archive.save.ok", "doc_id", docID, "object", name, "bytes", len(data))
	return nil
}

func (g *GCS) writeErr(name string, err error) error {
	if isPreconditionFailed(err) {
		g.logger.Info("archive.save.skip", "object", name, "reason", "already exists")
		return nil
	}
	g.logger.Error("archive.save.error", "object", name, "error", err)
	return fmt.Errorf("failed to write to GCS: %w", err)
}

func (g *GCS) Load(ctx context.Context, docID string) ([]byte, string, error) {
	obj := g.bucket.Object(objectName(g.prefix, docID))
	r, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, "", common.ErrRecordNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("open archived upload: %w", err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("read archived upload: %w", err)
	}

	fileName := docID + ".pdf"
	if attrs, err := obj.Attrs(ctx); err == nil && attrs.Metadata["pdfName"] != "" {
		fileName = attrs.Metadata["pdfName"]
	}
	return data, fileName, nil
}

func objectName(prefix, docID string) string {
	return path.Join(strings.Trim(prefix, "/"), docID+".pdf")
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
