package pdftext

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	stdout, stderr string
	err            error

	gotName string
	gotArgs []string
}

func (s *stubRunner) Run(_ context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	s.gotName = name
	s.gotArgs = args
	return []byte(s.stdout), []byte(s.stderr), s.err
}

func TestExtractSplitsPages(t *testing.T) {
	r := &stubRunner{stdout: "Invitation for Bids\n\fInstructions to Bidders\n\f"}
	e := NewExtractor(Config{Pdftotext: "/usr/bin/pdftotext"}, nil, WithRunner(r))

	path := filepath.Join(t.TempDir(), "missing.pdf")
	res, err := e.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "/usr/bin/pdftotext", r.gotName)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", "-eol", "unix", path, "-"}, r.gotArgs)
	assert.Equal(t, []string{"Invitation for Bids\n", "Instructions to Bidders\n"}, res.Pages)
	// pdfcpu cannot open the path, so the form feeds decide
	assert.Equal(t, 2, res.PageCount)
}

func TestExtractRunnerFailure(t *testing.T) {
	r := &stubRunner{stderr: "Syntax Error: Couldn't read xref table", err: errors.New("exit status 1")}
	e := NewExtractor(Config{}, nil, WithRunner(r))

	_, err := e.Extract(context.Background(), "broken.pdf")
	require.Error(t, err)
	assert.Equal(t, "pdftotext", r.gotName)
	assert.Contains(t, err.Error(), "Couldn't read xref table")
}

func TestSplitPages(t *testing.T) {
	assert.Equal(t, []string{""}, SplitPages(""))
	assert.Equal(t, []string{"one"}, SplitPages("one"))
	assert.Equal(t, []string{"one", "two"}, SplitPages("one\ftwo\f"))
	assert.Equal(t, []string{"one", "", "three"}, SplitPages("one\f\fthree\f  \n"))
}

func TestPageMarked(t *testing.T) {
	got := PageMarked([]string{"Cover", "   ", "Form of Bid"})
	assert.Equal(t, "[Page 1]\nCover\n[Page 3]\nForm of Bid", got)
	assert.Equal(t, "", PageMarked([]string{" \n", "\t"}))
	assert.Equal(t, "", PageMarked([]string{"\uFEFF\n", "\x00\x0c", "\u202f"}))
	assert.Equal(t, "[Page 2]\nBid", PageMarked([]string{"\uFEFF", "Bid"}))
}

func TestResultText(t *testing.T) {
	assert.Equal(t, "a\fb", Result{Pages: []string{"a", "b"}}.Text())
}
