package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/joseph-ayodele/tender-extractor/internal/common"
)

func TestObjectName(t *testing.T) {
	assert.Equal(t, "uploads/abc.pdf", objectName("uploads", "abc"))
	assert.Equal(t, "uploads/abc.pdf", objectName("/uploads/", "abc"))
	assert.Equal(t, "abc.pdf", objectName("", "abc"))
}

func TestIsPreconditionFailed(t *testing.T) {
	assert.True(t, isPreconditionFailed(&googleapi.Error{Code: 412}))
	assert.True(t, isPreconditionFailed(fmt.Errorf("close: %w", &googleapi.Error{Code: 412})))
	assert.False(t, isPreconditionFailed(&googleapi.Error{Code: 403}))
	assert.False(t, isPreconditionFailed(assert.AnError))
}

func TestNewWithoutBucketIsNoop(t *testing.T) {
	a, closeFn, err := New(context.Background(), common.ArchiveConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	assert.False(t, a.Enabled())
	assert.NoError(t, a.Save(context.Background(), "id", "a.pdf", []byte("%PDF-1.7")))
	_, _, err = a.Load(context.Background(), "id")
	assert.ErrorIs(t, err, common.ErrRecordNotFound)
}
