package main

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/tender-extractor/constants"
	"github.com/joseph-ayodele/tender-extractor/internal/common"
	"github.com/joseph-ayodele/tender-extractor/internal/entity"
	"github.com/joseph-ayodele/tender-extractor/internal/llm/providers"
	"github.com/joseph-ayodele/tender-extractor/internal/logging"
	"github.com/joseph-ayodele/tender-extractor/internal/pdftext"
	"github.com/joseph-ayodele/tender-extractor/internal/pipeline"
	"github.com/joseph-ayodele/tender-extractor/internal/textproc"
)

type output struct {
	FileName   string             `json:"pdfName"`
	PageCount  int                `json:"pageCount"`
	Fields     entity.Fields      `json:"fields,omitempty"`
	Submittals []entity.Submittal `json:"submittals,omitempty"`
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load .env file", "error", err)
		os.Exit(1)
	}
	cfg := common.LoadConfig()
	// stdout carries the JSON result
	logger := logging.NewWithWriter(os.Stderr, cfg.App.Env, cfg.App.LogLevel)
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage: extract <file.pdf> [fields|submittals|all]")
		os.Exit(2)
	}
	path := os.Args[1]
	what := "all"
	if len(os.Args) >= 3 {
		what = os.Args[2]
	}
	if what != "fields" && what != "submittals" && what != "all" {
		logger.Error("unknown extraction target", "arg", what)
		os.Exit(2)
	}
	if !constants.IsPDFUpload(path, "") {
		logger.Error("only PDF files are supported", "path", path)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	fieldNames := constants.AsStringSlice()
	client, closeProvider, err := providers.NewClient(ctx, cfg.LLM, fieldNames, logger)
	if err != nil {
		logger.Error("failed to build llm client", "error", err)
		os.Exit(1)
	}
	defer func() { _ = closeProvider() }()

	textStage := pipeline.NewTextStage(pdftext.NewExtractor(pdftext.Config{Pdftotext: cfg.Text.Pdftotext}, logger), logger)
	extractStage := pipeline.NewExtractStage(
		client,
		textproc.Chunker{MaxChars: cfg.LLM.ChunkSize, OverlapChars: cfg.LLM.ChunkOverlap},
		pipeline.NewLimiter(cfg.LLM.RequestsPerMinute),
		fieldNames,
		logger,
	)

	start := time.Now()
	txt, err := textStage.Run(ctx, path)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err)
		os.Exit(1)
	}

	out := output{FileName: filepath.Base(path), PageCount: txt.PageCount}
	switch what {
	case "fields":
		out.Fields, err = extractStage.Fields(ctx, txt.Content)
	case "submittals":
		out.Submittals, err = extractStage.Submittals(ctx, txt.Content)
	default:
		var res pipeline.Extraction
		res, err = extractStage.Run(ctx, txt.Content)
		out.Fields, out.Submittals = res.Fields, res.Submittals
	}
	if err != nil {
		logger.Error("extraction failed", "path", path, "error", err)
		os.Exit(1)
	}
	logger.Info("extraction OK", "path", path, "pages", txt.PageCount, "duration_ms", time.Since(start).Milliseconds())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("failed to write result", "error", err)
		os.Exit(1)
	}
}
