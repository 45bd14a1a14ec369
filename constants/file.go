package constants

import (
	"bytes"
	"mime"
	"path/filepath"
	"strings"
)

const (
	PDFMimeType  = "application/pdf"
	PDFExtension = "pdf"

	// DefaultMaxUploadBytes caps a single upload (25 MB).
	DefaultMaxUploadBytes int64 = 25 << 20
)

var pdfMagic = []byte("%PDF-")

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsPDFUpload accepts application/pdf. Generic or missing content types fall
// back to the file extension.
func IsPDFUpload(fileName, contentType string) bool {
	mt := ""
	if contentType != "" {
		parsed, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return false
		}
		mt = strings.ToLower(parsed)
	}
	switch mt {
	case PDFMimeType:
		return true
	case "", "application/octet-stream", "binary/octet-stream":
		return NormalizeExt(filepath.Ext(fileName)) == PDFExtension
	default:
		return false
	}
}

// HasPDFMagic reports whether the PDF header appears in the first KB,
// where readers are required to look for it.
func HasPDFMagic(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, pdfMagic)
}
