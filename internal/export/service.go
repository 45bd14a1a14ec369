package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/tender-extractor/constants"
	"github.com/joseph-ayodele/tender-extractor/internal/entity"
)

const (
	SheetSummary    = "Summary"
	SheetSubmittals = "Submittals"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// DocumentGetter is the slice of the store the exporter needs.
type DocumentGetter interface {
	Get(ctx context.Context, id string) (*entity.Document, error)
}

// Service produces XLSX workbooks for stored documents.
type Service struct {
	docs   DocumentGetter
	logger *slog.Logger
}

func NewService(docs DocumentGetter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, logger: logger}
}

// ExportDocumentXLSX returns the workbook bytes and a download file name.
// Fields are listed in the fixed order; null values are left blank.
func (s *Service) ExportDocumentXLSX(ctx context.Context, id string) ([]byte, string, error) {
	start := time.Now()
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, "", err
	}
	if _, err := f.NewSheet(SheetSubmittals); err != nil {
		return nil, "", err
	}
	activeIndex, _ := f.GetSheetIndex(SheetSummary)
	f.SetActiveSheet(activeIndex)

	bold, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})

	// Summary: document metadata, then one row per field
	row := 1
	write := func(sheet string, col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
	for _, kv := range [][2]string{
		{"Document", doc.FileName},
		{"Status", string(doc.Status)},
		{"Pages", fmt.Sprint(doc.PageCount)},
		{"Uploaded", doc.CreatedAt.UTC().Format(time.RFC3339)},
	} {
		write(SheetSummary, 1, row, kv[0])
		write(SheetSummary, 2, row, kv[1])
		row++
	}
	row++
	write(SheetSummary, 1, row, "Field")
	write(SheetSummary, 2, row, "Value")
	_ = f.SetCellStyle(SheetSummary, "A"+fmt.Sprint(row), "B"+fmt.Sprint(row), bold)
	row++
	for _, name := range constants.AsStringSlice() {
		write(SheetSummary, 1, row, name)
		if v := doc.Fields[name]; v != nil {
			write(SheetSummary, 2, row, *v)
		}
		row++
	}
	_ = f.SetColWidth(SheetSummary, "A", "A", 26)
	_ = f.SetColWidth(SheetSummary, "B", "B", 80)

	// Submittals
	for i, h := range []string{"#", "Item", "Page", "Reason"} {
		write(SheetSubmittals, i+1, 1, h)
	}
	_ = f.SetCellStyle(SheetSubmittals, "A1", "D1", bold)
	for i, sub := range doc.Submittals {
		r := i + 2
		write(SheetSubmittals, 1, r, i+1)
		write(SheetSubmittals, 2, r, sub.Item)
		if sub.Page != nil {
			write(SheetSubmittals, 3, r, *sub.Page)
		}
		write(SheetSubmittals, 4, r, truncate(sub.Reason, 500))
	}
	_ = f.SetColWidth(SheetSubmittals, "A", "A", 6)
	_ = f.SetColWidth(SheetSubmittals, "B", "B", 48)
	_ = f.SetColWidth(SheetSubmittals, "C", "C", 8)
	_ = f.SetColWidth(SheetSubmittals, "D", "D", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"doc_id", id,
		"submittals", len(doc.Submittals),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), downloadName(doc.FileName), nil
}

func downloadName(pdfName string) string {
	base := strings.TrimSuffix(pdfName, "."+constants.PDFExtension)
	base = strings.TrimSuffix(base, ".PDF")
	if base == "" {
		base = "document"
	}
	return base + "-summary.xlsx"
}

func truncate(s string, n int) string {
	if n <= 0 || len([]rune(s)) <= n {
		return s
	}
	r := []rune(s)
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
