package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/tender-extractor/constants"
	"github.com/joseph-ayodele/tender-extractor/internal/archive"
	"github.com/joseph-ayodele/tender-extractor/internal/async"
	"github.com/joseph-ayodele/tender-extractor/internal/common"
	"github.com/joseph-ayodele/tender-extractor/internal/documents"
	"github.com/joseph-ayodele/tender-extractor/internal/export"
	"github.com/joseph-ayodele/tender-extractor/internal/ingest"
	"github.com/joseph-ayodele/tender-extractor/internal/llm/providers"
	"github.com/joseph-ayodele/tender-extractor/internal/logging"
	"github.com/joseph-ayodele/tender-extractor/internal/pdftext"
	"github.com/joseph-ayodele/tender-extractor/internal/pipeline"
	"github.com/joseph-ayodele/tender-extractor/internal/repository"
	"github.com/joseph-ayodele/tender-extractor/internal/server"
	"github.com/joseph-ayodele/tender-extractor/internal/textproc"
)

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load .env file", "error", err)
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	logger := logging.New(cfg.App.Env, cfg.App.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("tenderd exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	store, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close document store", "error", err)
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = store.Ping(pingCtx)
	cancel()
	if err != nil {
		return err
	}
	logger.Info("document store ready", "driver", cfg.Database.Driver)

	fieldNames := constants.AsStringSlice()
	client, closeProvider, err := providers.NewClient(ctx, cfg.LLM, fieldNames, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeProvider() }()
	logger.Info("llm provider ready", "provider", client.Provider().Name(), "model", client.Provider().Model())

	arch, closeArchive, err := archive.New(ctx, cfg.Archive, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeArchive() }()

	textStage := pipeline.NewTextStage(pdftext.NewExtractor(pdftext.Config{Pdftotext: cfg.Text.Pdftotext}, logger), logger)
	extractStage := pipeline.NewExtractStage(
		client,
		textproc.Chunker{MaxChars: cfg.LLM.ChunkSize, OverlapChars: cfg.LLM.ChunkOverlap},
		pipeline.NewLimiter(cfg.LLM.RequestsPerMinute),
		fieldNames,
		logger,
	)

	queue := async.NewProcessorQueue(pipeline.NewProcessor(store, extractStage, logger), logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.JobTimeout),
	)

	docs := documents.NewService(store, textStage, extractStage, queue, logger,
		documents.WithArchive(arch),
		documents.WithTempDir(cfg.Text.TempDir),
	)

	handlers := server.NewHandlers(server.Dependencies{
		Documents:   docs,
		Export:      export.NewService(store, logger),
		Store:       store,
		Provider:    client.Provider().Name(),
		Model:       client.Provider().Model(),
		DefaultMode: cfg.Server.ProcessingMode,
		Logger:      logger,
	})
	e := server.New(server.OptionsFrom(cfg, logger), handlers)

	addr := cfg.Server.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx, e, addr, cfg.Server.ShutdownTimeout, logger)
	})
	if cfg.Server.GRPCAddr != "" {
		health := server.NewGRPCHealth(store, 15*time.Second, logger)
		g.Go(func() error {
			return health.Serve(gctx, cfg.Server.GRPCAddr)
		})
	}

	if cfg.Inbox.Dir != "" {
		inbox := ingest.NewInbox(cfg.Inbox.Dir, cfg.Inbox.Debounce, docs, logger)
		g.Go(func() error {
			return inbox.Run(gctx)
		})
	}

	err = g.Wait()

	// Let queued extractions finish before the store closes.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	queue.Shutdown(shutdownCtx)
	logger.Info("tenderd stopped")
	return err
}
