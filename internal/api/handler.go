package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ingest/internal/history"
	"github.com/insightdelivered/statement-ingest/internal/logger"
	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/parser"
	"github.com/insightdelivered/statement-ingest/internal/writer"
)

// DefaultMaxUploadBytes is the upload limit used when none is configured.
const DefaultMaxUploadBytes = 10 << 20

const defaultHistoryLimit = 50

// ParseResponse is the JSON response from the parse endpoint. The parse
// result fields are inlined; they are absent on request-level errors.
type ParseResponse struct {
	Success          bool            `json:"success"`
	Error            string          `json:"error,omitempty"`
	TransactionCount int             `json:"transaction_count"`
	TotalDebit       decimal.Decimal `json:"total_debit"`
	TotalCredit      decimal.Decimal `json:"total_credit"`
	*models.StatementParseResult
}

// HistoryStore records and lists parse summaries.
type HistoryStore interface {
	Record(entry history.Entry) error
	List(limit int) ([]history.Entry, error)
}

// Handler holds the HTTP handlers for the API. History may be nil, in
// which case uploads are not recorded and the history endpoint is disabled.
type Handler struct {
	Engine         *parser.Engine
	History        HistoryStore
	MaxUploadBytes int64
	Version        string
	Log            zerolog.Logger
}

// NewApp builds the fiber app serving h.
func NewApp(h *Handler) *fiber.App {
	if h.Engine == nil {
		h.Engine = parser.NewEngine(parser.WithLogger(h.Log))
	}
	if h.MaxUploadBytes <= 0 {
		h.MaxUploadBytes = DefaultMaxUploadBytes
	}

	app := fiber.New(fiber.Config{
		// Leave room for multipart framing so oversize files reach the
		// handler and get a JSON error.
		BodyLimit:             int(h.MaxUploadBytes) + 1<<20,
		DisableStartupMessage: true,
		ErrorHandler:          h.handleError,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	app.Use(h.logRequests)

	app.Get("/api/health", h.HandleHealth)
	app.Post("/api/statements/parse", h.HandleParse)
	app.Get("/api/history", h.HandleHistory)
	return app
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": h.Version,
	})
}

// HandleParse accepts a multipart upload in field "file" and returns the
// parse result as JSON, or as CSV when format=csv is given.
func (h *Handler) HandleParse(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil || header.Filename == "" {
		return writeError(c, fiber.StatusBadRequest, "No file provided. Use form field 'file'.")
	}
	if header.Size == 0 {
		return writeError(c, fiber.StatusBadRequest, "Empty file")
	}
	if header.Size > h.MaxUploadBytes {
		return writeError(c, fiber.StatusRequestEntityTooLarge,
			fmt.Sprintf("File too large (max %d MB)", h.MaxUploadBytes>>20))
	}

	file, err := header.Open()
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, fmt.Sprintf("Failed to read upload: %v", err))
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, fmt.Sprintf("Failed to read upload: %v", err))
	}

	result := h.Engine.ParseStatement(header.Filename, content)
	h.record(header.Filename, len(content), result)

	if c.Query("format") == "csv" {
		var buf bytes.Buffer
		w := &writer.CSVWriter{IncludeHeader: c.Query("header") != "false"}
		if err := w.Write(&buf, result); err != nil {
			return writeError(c, fiber.StatusInternalServerError, fmt.Sprintf("CSV generation failed: %v", err))
		}
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="transactions.csv"`)
		return c.Send(buf.Bytes())
	}

	debit, credit := result.Totals()
	return c.JSON(ParseResponse{
		Success:              result.Success(),
		TransactionCount:     len(result.Transactions),
		TotalDebit:           debit,
		TotalCredit:          credit,
		StatementParseResult: result,
	})
}

// HandleHistory lists recent parses, newest first.
func (h *Handler) HandleHistory(c *fiber.Ctx) error {
	if h.History == nil {
		return writeError(c, fiber.StatusNotFound, "History is not enabled")
	}
	entries, err := h.History.List(c.QueryInt("limit", defaultHistoryLimit))
	if err != nil {
		h.Log.Error().Err(err).Msg("failed to list history")
		return writeError(c, fiber.StatusInternalServerError, "Failed to list history")
	}
	return c.JSON(fiber.Map{
		"entries": entries,
		"count":   len(entries),
	})
}

func (h *Handler) record(filename string, size int, result *models.StatementParseResult) {
	log := logger.WithFields(h.Log, map[string]any{
		"filename":     filename,
		"parser":       result.ParserUsed,
		"transactions": len(result.Transactions),
	})
	log.Info().Int("errors", len(result.Errors)).Int("warnings", len(result.Warnings)).Msg("parsed upload")

	if h.History == nil {
		return
	}
	entry, err := history.NewEntry(filename, size, result)
	if err == nil {
		err = h.History.Record(entry)
	}
	if err != nil {
		log.Warn().Err(err).Msg("failed to record history")
	}
}

func (h *Handler) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	h.Log.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", c.Response().StatusCode()).
		Dur("duration", time.Since(start)).
		Msg("HTTP request")
	return err
}

// handleError turns errors escaping handlers, including recovered panics,
// into the JSON error shape.
func (h *Handler) handleError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	msg := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		msg = fe.Message
	} else {
		h.Log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return writeError(c, status, msg)
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ParseResponse{
		Success: false,
		Error:   msg,
	})
}
