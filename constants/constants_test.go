package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to DocumentStatus
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusFailed, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPending, false},
		{StatusProcessing, StatusProcessing, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusCompleted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestPredecessors(t *testing.T) {
	assert.Empty(t, Predecessors(StatusPending))
	assert.Equal(t, []DocumentStatus{StatusPending}, Predecessors(StatusProcessing))
	assert.Equal(t, []DocumentStatus{StatusPending, StatusProcessing}, Predecessors(StatusCompleted))
}

func TestFixedFieldList(t *testing.T) {
	names := AsStringSlice()
	assert.Len(t, names, 19)
	seen := map[string]bool{}
	for _, n := range names {
		assert.False(t, seen[n], "duplicate field %s", n)
		seen[n] = true
		assert.NotEmpty(t, Hint(n), "missing hint for %s", n)
	}
}

func TestCanonicalField(t *testing.T) {
	f, ok := CanonicalField("client_name")
	assert.True(t, ok)
	assert.Equal(t, ClientName, f)

	f, ok = CanonicalField(" Estimated Cost ")
	assert.True(t, ok)
	assert.Equal(t, EstimatedCost, f)

	_, ok = CanonicalField("Colour")
	assert.False(t, ok)
}

func TestIsPDFUpload(t *testing.T) {
	assert.True(t, IsPDFUpload("a.pdf", "application/pdf"))
	assert.True(t, IsPDFUpload("a.bin", "application/pdf; charset=binary"))
	assert.True(t, IsPDFUpload("tender.PDF", ""))
	assert.True(t, IsPDFUpload("tender.pdf", "application/octet-stream"))
	assert.False(t, IsPDFUpload("tender.docx", "application/octet-stream"))
	assert.False(t, IsPDFUpload("tender.pdf", "image/png"))
	assert.False(t, IsPDFUpload("tender.pdf", ";;bad"))
}

func TestHasPDFMagic(t *testing.T) {
	assert.True(t, HasPDFMagic([]byte("%PDF-1.7\n...")))
	assert.True(t, HasPDFMagic([]byte("\xef\xbb\xbf%PDF-1.4")))
	assert.False(t, HasPDFMagic([]byte("PK\x03\x04")))
	assert.False(t, HasPDFMagic(nil))
}
