package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/tender-extractor/constants"
	"github.com/joseph-ayodele/tender-extractor/internal/common"
	"github.com/joseph-ayodele/tender-extractor/internal/documents"
	"github.com/joseph-ayodele/tender-extractor/internal/entity"
	"github.com/joseph-ayodele/tender-extractor/internal/export"
)

// Multipart field names accepted for the uploaded PDF, in lookup order.
var uploadFields = []string{"file", "pdf"}

// Pinger reports whether the document store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds everything the HTTP handlers need.
type Dependencies struct {
	Documents   *documents.Service
	Export      *export.Service
	Store       Pinger
	Provider    string
	Model       string
	DefaultMode constants.ProcessingMode
	Logger      *slog.Logger
}

type Handlers struct {
	deps   Dependencies
	logger *slog.Logger
	now    func() time.Time
}

func NewHandlers(deps Dependencies) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.DefaultMode == "" {
		deps.DefaultMode = constants.ModeAsync
	}
	return &Handlers{deps: deps, logger: logger, now: time.Now}
}

type healthResponse struct {
	Status     string `json:"status"`
	AIProvider string `json:"ai_provider"`
	Model      string `json:"model"`
	DB         string `json:"db"`
	TS         string `json:"ts"`
}

// HandleHealth never fails; an unreachable store is reported as "disconnected".
func (h *Handlers) HandleHealth(c echo.Context) error {
	db := "connected"
	if h.deps.Store == nil {
		db = "disconnected"
	} else {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Store.Ping(ctx); err != nil {
			h.logger.Warn("http.health.db_unreachable", "error", err)
			db = "disconnected"
		}
	}
	return c.JSON(http.StatusOK, healthResponse{
		Status:     "ok",
		AIProvider: h.deps.Provider,
		Model:      h.deps.Model,
		DB:         db,
		TS:         h.now().UTC().Format(time.RFC3339),
	})
}

type summarizeResponse struct {
	Success    bool                     `json:"success"`
	ID         string                   `json:"_id"`
	FileName   string                   `json:"pdfName"`
	Fields     entity.Fields            `json:"fields"`
	Submittals []entity.Submittal       `json:"submittals"`
	Status     constants.DocumentStatus `json:"status"`
}

// HandleSummarize accepts a multipart PDF upload. ?mode=sync waits for the
// extraction; the default mode returns the pending record at once.
func (h *Handlers) HandleSummarize(c echo.Context) error {
	mode, err := h.mode(c)
	if err != nil {
		return err
	}
	up, err := readUpload(c)
	if err != nil {
		return err
	}

	doc, err := h.deps.Documents.Summarize(c.Request().Context(), mode, up)
	if err != nil {
		return err
	}

	code := http.StatusOK
	if mode == constants.ModeAsync {
		code = http.StatusAccepted
	}
	return c.JSON(code, summarizeResponse{
		Success:    true,
		ID:         doc.ID,
		FileName:   doc.FileName,
		Fields:     doc.Fields,
		Submittals: nonNil(doc.Submittals),
		Status:     doc.Status,
	})
}

type statusResponse struct {
	Success       bool                     `json:"success"`
	Status        constants.DocumentStatus `json:"status"`
	ErrorMessage  string                   `json:"errorMessage,omitempty"`
	HasFields     bool                     `json:"hasFields"`
	HasSubmittals bool                     `json:"hasSubmittals"`
	PageCount     int                      `json:"pageCount"`
}

func (h *Handlers) HandleStatus(c echo.Context) error {
	doc, err := h.deps.Documents.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{
		Success:       true,
		Status:        doc.Status,
		ErrorMessage:  doc.ErrorMessage,
		HasFields:     doc.HasFields(),
		HasSubmittals: doc.HasSubmittals(),
		PageCount:     doc.PageCount,
	})
}

type fieldsResponse struct {
	Success  bool                     `json:"success"`
	Fields   entity.Fields            `json:"fields"`
	FileName string                   `json:"pdfName"`
	Status   constants.DocumentStatus `json:"status"`
}

func (h *Handlers) HandleGetSummary(c echo.Context) error {
	doc, err := h.deps.Documents.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fieldsResponse{
		Success:  true,
		Fields:   doc.Fields,
		FileName: doc.FileName,
		Status:   doc.Status,
	})
}

type submittalsResponse struct {
	Success    bool               `json:"success"`
	Submittals []entity.Submittal `json:"submittals"`
	FileName   string             `json:"pdfName,omitempty"`
}

func (h *Handlers) HandleGetSubmittals(c echo.Context) error {
	doc, err := h.deps.Documents.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, submittalsResponse{
		Success:    true,
		Submittals: nonNil(doc.Submittals),
		FileName:   doc.FileName,
	})
}

// HandleComputeSubmittals returns stored submittals, or extracts them from
// the uploaded (or archived) PDF.
func (h *Handlers) HandleComputeSubmittals(c echo.Context) error {
	up, err := readUpload(c)
	if err != nil {
		return err
	}
	subs, err := h.deps.Documents.Submittals(c.Request().Context(), c.Param("id"), up)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, submittalsResponse{Success: true, Submittals: nonNil(subs)})
}

type historyResponse struct {
	Success bool                     `json:"success"`
	Files   []entity.DocumentSummary `json:"files"`
}

func (h *Handlers) HandleHistory(c echo.Context) error {
	list, err := h.deps.Documents.History(c.Request().Context())
	if err != nil {
		return err
	}
	if list == nil {
		list = []entity.DocumentSummary{}
	}
	return c.JSON(http.StatusOK, historyResponse{Success: true, Files: list})
}

// HandleExport streams the document as an XLSX workbook.
func (h *Handlers) HandleExport(c echo.Context) error {
	data, name, err := h.deps.Export.ExportDocumentXLSX(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	return c.Blob(http.StatusOK, export.ContentTypeXLSX, data)
}

func (h *Handlers) mode(c echo.Context) (constants.ProcessingMode, error) {
	raw := strings.ToLower(strings.TrimSpace(c.QueryParam("mode")))
	if raw == "" {
		return h.deps.DefaultMode, nil
	}
	switch m := constants.ProcessingMode(raw); m {
	case constants.ModeSync, constants.ModeAsync:
		return m, nil
	default:
		return "", common.NewAppError("INVALID_MODE",
			fmt.Sprintf("mode must be %q or %q", constants.ModeSync, constants.ModeAsync), common.ErrInvalidInput)
	}
}

// readUpload returns nil when the request carries no file part.
func readUpload(c echo.Context) (*documents.Upload, error) {
	for _, field := range uploadFields {
		fh, err := c.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			continue
		}
		if err != nil {
			return nil, err
		}

		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload: %w", err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		return &documents.Upload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Data:        data,
		}, nil
	}
	return nil, nil
}

func nonNil(s []entity.Submittal) []entity.Submittal {
	if s == nil {
		return []entity.Submittal{}
	}
	return s
}
