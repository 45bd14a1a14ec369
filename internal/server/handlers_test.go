package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/tender-extractor/constants"
	"github.com/joseph-ayodele/tender-extractor/internal/async"
	"github.com/joseph-ayodele/tender-extractor/internal/common"
	"github.com/joseph-ayodele/tender-extractor/internal/documents"
	"github.com/joseph-ayodele/tender-extractor/internal/export"
	"github.com/joseph-ayodele/tender-extractor/internal/llm"
	"github.com/joseph-ayodele/tender-extractor/internal/pipeline"
	"github.com/joseph-ayodele/tender-extractor/internal/repository"
	"github.com/joseph-ayodele/tender-extractor/internal/testutil"
	"github.com/joseph-ayodele/tender-extractor/internal/textproc"
)

type testServer struct {
	e        *echo.Echo
	store    *repository.MemoryStore
	provider *testutil.ScriptedProvider
}

var tenderPages = []string{"Invitation for Bids. Client: Acme Utilities.", "Submit a bid bond with your bid."}

func newTestServer(t *testing.T, mode constants.ProcessingMode, pages []string, provider *testutil.ScriptedProvider) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	names := constants.AsStringSlice()

	client, err := llm.NewClient(provider, llm.ClientConfig{FieldNames: names}, logger)
	require.NoError(t, err)
	store := repository.NewMemoryStore()
	extract := pipeline.NewExtractStage(client, textproc.Chunker{MaxChars: 24000, OverlapChars: 600}, nil, names, logger)
	queue := async.NewProcessorQueue(pipeline.NewProcessor(store, extract, logger), logger)
	t.Cleanup(func() {
		if provider.Gate != nil {
			select {
			case <-provider.Gate:
			default:
				close(provider.Gate)
			}
		}
		queue.Shutdown(context.Background())
	})

	text := pipeline.NewTextStage(&testutil.StubExtractor{Pages: pages}, logger)
	docs := documents.NewService(store, text, extract, queue, logger, documents.WithTempDir(t.TempDir()))
	h := NewHandlers(Dependencies{
		Documents:   docs,
		Export:      export.NewService(store, logger),
		Store:       store,
		Provider:    provider.Name(),
		Model:       provider.Model(),
		DefaultMode: mode,
		Logger:      logger,
	})
	e := New(Options{MaxUploadBytes: 1 << 20, Logger: logger}, h)
	return &testServer{e: e, store: store, provider: provider}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, target, field, name, contentType string, data []byte) *http.Request {
	t.Helper()
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+name+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func pdfRequest(t *testing.T, target string) *http.Request {
	return uploadRequest(t, target, "file", "tender.pdf", constants.PDFMimeType, testutil.MinimalPDF)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, constants.ModeSync, tenderPages, testutil.NewScriptedProvider())

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "scripted", body["ai_provider"])
	assert.Equal(t, "scripted-1", body["model"])
	assert.Equal(t, "connected", body["db"])
	_, err := time.Parse(time.RFC3339, body["ts"].(string))
	assert.NoError(t, err)
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthReportsDisconnectedStore(t *testing.T) {
	h := NewHandlers(Dependencies{Store: downPinger{}, Provider: "openai", Model: "gpt-4o-mini"})
	e := New(Options{}, h)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"db":"disconnected"`)
}

func TestSummarizeEmptyPDF(t *testing.T) {
	s := newTestServer(t, constants.ModeSync, []string{"   ", " \n"}, testutil.NewScriptedProvider())

	rec := s.do(t, pdfRequest(t, "/api/summarize"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "EMPTY_PDF", body["code"])

	list, err := s.store.ListSummaries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, s.provider.Calls())
}

func TestSummarizeUploadValidation(t *testing.T) {
	s := newTestServer(t, constants.ModeSync, tenderPages, testutil.NewScriptedProvider())

	tests := []struct {
		name     string
		req      *http.Request
		wantCode string
	}{
		{"no body", httptest.NewRequest(http.MethodPost, "/api/summarize", nil), "NO_FILE"},
		{"wrong field", uploadRequest(t, "/api/summarize", "document", "a.pdf", constants.PDFMimeType, testutil.MinimalPDF), "NO_FILE"},
		{"text file", uploadRequest(t, "/api/summarize", "file", "a.txt", "text/plain", []byte("hello")), "UNSUPPORTED_FILE_TYPE"},
		{"bad mode", pdfRequest(t, "/api/summarize?mode=later"), "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, decode(t, rec)["code"])
		})
	}
	assert.Zero(t, s.provider.Calls())
}

func TestSummarizeSyncStoresFencedFields(t *testing.T) {
	s := newTestServer(t, constants.ModeSync, tenderPages, testutil.NewScriptedProvider(
		testutil.Reply{Text: "```json\n{\"ClientName\":\"Acme\"}\n```"},
		testutil.Reply{Text: `{"submittals":[]}`},
	))

	// the legacy "pdf" field name is accepted too
	rec := s.do(t, uploadRequest(t, "/api/summarize", "pdf", "tender.pdf", constants.PDFMimeType, testutil.MinimalPDF))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "tender.pdf", body["pdfName"])
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, []any{}, body["submittals"])

	id := body["_id"].(string)
	doc, err := s.store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, doc.Fields, 19)
	assert.Equal(t, "Acme", *doc.Fields["ClientName"])
	for name, v := range doc.Fields {
		if name != "ClientName" {
			assert.Nil(t, v, name)
		}
	}
	assert.NotNil(t, doc.Submittals)
	assert.Empty(t, doc.Submittals)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/summarize/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	fields := decode(t, rec)["fields"].(map[string]any)
	assert.Equal(t, "Acme", fields["ClientName"])
	assert.Nil(t, fields["ProjectName"])
}

func TestSummarizeProviderQuota(t *testing.T) {
	quota := &common.ProviderError{Provider: "openai", Kind: common.ErrProviderQuotaExceeded, StatusCode: 429, RetryAfter: 1500 * time.Millisecond}
	s := newTestServer(t, constants.ModeSync, tenderPages, testutil.NewScriptedProvider(testutil.Reply{Err: quota}))

	rec := s.do(t, pdfRequest(t, "/api/summarize"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get(echo.HeaderRetryAfter))
	body := decode(t, rec)
	assert.Equal(t, "PROVIDER_QUOTA_EXCEEDED", body["code"])
	assert.EqualValues(t, 2, body["retryAfter"])
}

func TestStatusUnknownID(t *testing.T) {
	s := newTestServer(t, constants.ModeAsync, tenderPages, testutil.NewScriptedProvider())

	for _, path := range []string{"/api/status/nope", "/api/summarize/nope", "/api/submittals/nope", "/api/export/nope"} {
		rec := s.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "Not found", decode(t, rec)["error"], path)
	}
}

func TestSummarizeAsyncPolling(t *testing.T) {
	provider := testutil.NewScriptedProvider(
		testutil.FieldsReply(map[string]any{"ClientName": "Acme Utilities"}),
		testutil.SubmittalsReply(map[string]any{"item": "Bid bond", "page": 2, "reason": "Required with bid"}),
	)
	provider.Gate = make(chan struct{})
	s := newTestServer(t, constants.ModeAsync, tenderPages, provider)

	rec := s.do(t, pdfRequest(t, "/api/summarize"))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "pending", body["status"])
	assert.Nil(t, body["fields"])
	id := body["_id"].(string)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/status/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, []any{"pending", "processing"}, decode(t, rec)["status"])

	close(provider.Gate)
	require.Eventually(t, func() bool {
		rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/status/"+id, nil))
		return rec.Code == http.StatusOK && decode(t, rec)["status"] == "completed"
	}, 2*time.Second, 10*time.Millisecond)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/status/"+id, nil))
	status := decode(t, rec)
	assert.Equal(t, true, status["hasFields"])
	assert.Equal(t, true, status["hasSubmittals"])
	assert.NotContains(t, status, "errorMessage")

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/submittals/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	subs := decode(t, rec)["submittals"].([]any)
	require.Len(t, subs, 1)
	assert.Equal(t, "Bid bond", subs[0].(map[string]any)["item"])
	assert.EqualValues(t, 2, subs[0].(map[string]any)["page"])
}

func TestHistoryNewestFirst(t *testing.T) {
	s := newTestServer(t, constants.ModeSync, tenderPages, testutil.NewScriptedProvider())

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"files":[]}`, rec.Body.String())

	ctx := context.Background()
	first, err := s.store.Create(ctx, "first.pdf")
	require.NoError(t, err)
	second, err := s.store.Create(ctx, "second.pdf")
	require.NoError(t, err)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	files := decode(t, rec)["files"].([]any)
	require.Len(t, files, 2)
	assert.Equal(t, second, files[0].(map[string]any)["_id"])
	assert.Equal(t, first, files[1].(map[string]any)["_id"])
	assert.Equal(t, "pending", files[1].(map[string]any)["status"])
	assert.Contains(t, files[0], "createdAt")
}

func TestComputeSubmittals(t *testing.T) {
	s := newTestServer(t, constants.ModeSync, tenderPages, testutil.NewScriptedProvider(
		testutil.FieldsReply(map[string]any{}),
		testutil.SubmittalsReply(),
		testutil.SubmittalsReply(map[string]any{"item": "Form of tender", "reason": "Blank to complete"}),
	))

	rec := s.do(t, pdfRequest(t, "/api/summarize"))
	require.Equal(t, http.StatusOK, rec.Code)
	id := decode(t, rec)["_id"].(string)

	rec = s.do(t, httptest.NewRequest(http.MethodPost, "/api/submittals/"+id, nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "NO_FILE", decode(t, rec)["code"])

	rec = s.do(t, pdfRequest(t, "/api/submittals/"+id))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	subs := decode(t, rec)["submittals"].([]any)
	require.Len(t, subs, 1)
	assert.Nil(t, subs[0].(map[string]any)["page"])
	calls := s.provider.Calls()

	// cached now: no provider call and no file needed
	rec = s.do(t, httptest.NewRequest(http.MethodPost, "/api/submittals/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["submittals"], 1)
	assert.Equal(t, calls, s.provider.Calls())

	rec = s.do(t, pdfRequest(t, "/api/submittals/missing"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportWorkbook(t *testing.T) {
	s := newTestServer(t, constants.ModeSync, tenderPages, testutil.NewScriptedProvider(
		testutil.FieldsReply(map[string]any{"ClientName": "Acme"}),
		testutil.SubmittalsReply(),
	))
	rec := s.do(t, pdfRequest(t, "/api/summarize"))
	require.Equal(t, http.StatusOK, rec.Code)
	id := decode(t, rec)["_id"].(string)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/export/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentTypeXLSX, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "tender-summary.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), export.SheetSummary)
}

func TestUploadTooLarge(t *testing.T) {
	s := newTestServer(t, constants.ModeSync, tenderPages, testutil.NewScriptedProvider())
	big := append(append([]byte{}, testutil.MinimalPDF...), make([]byte, 2<<20)...)

	rec := s.do(t, uploadRequest(t, "/api/summarize", "file", "big.pdf", constants.PDFMimeType, big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE_TOO_LARGE", decode(t, rec)["code"])
}

func TestToAPIError(t *testing.T) {
	store := common.StoreWriteError("insert document", errors.New("disk full"))

	dev := toAPIError(store, false)
	assert.Equal(t, http.StatusInternalServerError, dev.Status)
	assert.Equal(t, "STORE_WRITE_FAILURE", dev.Code)
	assert.Contains(t, dev.Details, "disk full")

	prod := toAPIError(store, true)
	assert.Empty(t, prod.Details)

	rl := toAPIError(&common.ProviderError{Provider: "gemini", Kind: common.ErrProviderRateLimited}, true)
	assert.Equal(t, http.StatusTooManyRequests, rl.Status)
	assert.Equal(t, int(defaultRetryAfter/time.Second), rl.RetryAfter)

	assert.Equal(t, http.StatusConflict, toAPIError(common.ErrInvalidStatusTransition, true).Status)
	assert.Equal(t, "INTERNAL_ERROR", toAPIError(errors.New("boom"), true).Code)
}
