// Package parser turns uploaded bank statement files into normalized
// candidate transactions without prior knowledge of the export format.
package parser

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-ingest/internal/extractor"
	"github.com/insightdelivered/statement-ingest/internal/models"
)

// session is the state of a single ParseStatement call. Nothing in it
// outlives the call, so concurrent parses never see each other's state.
type session struct {
	log    zerolog.Logger
	result *models.StatementParseResult
	// diagnostic summarises column or block resolution for the
	// zero-transaction error.
	diagnostic string
}

func (s *session) warnf(format string, args ...any) {
	s.result.Warnings = append(s.result.Warnings, fmt.Sprintf(format, args...))
}

type extractFunc func(s *session, content []byte)

// Engine parses statements. It holds only configuration and is safe for
// concurrent use.
type Engine struct {
	log        zerolog.Logger
	extractors map[models.FileKind]extractFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for debug tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// NewEngine returns an Engine with the given options applied.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		log: zerolog.Nop(),
		extractors: map[models.FileKind]extractFunc{
			models.FileTabular:     func(s *session, b []byte) { parseCSV(s, decodeText(b)) },
			models.FileTag:         func(s *session, b []byte) { parseOFX(s, decodeText(b)) },
			models.FilePDF:         extractPDF,
			models.FileImage:       extractImage,
			models.FileUnsupported: extractUnsupported,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = NewEngine()

// ParseStatement parses one file with a default Engine.
func ParseStatement(filename string, content []byte) *models.StatementParseResult {
	return defaultEngine.ParseStatement(filename, content)
}

// ParseStatement classifies the file, runs the matching sub-parser and
// returns a fully built result. It never panics and never returns nil;
// failures are reported in the result's Errors.
func (e *Engine) ParseStatement(filename string, content []byte) (result *models.StatementParseResult) {
	kind := Classify(filename, content)
	log := e.log.With().Str("filename", filename).Str("kind", string(kind)).Logger()
	log.Debug().Int("bytes", len(content)).Msg("classified statement")

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("statement parser crashed")
			crashed := models.NewStatementParseResult()
			crashed.FileKind = kind
			if result != nil {
				crashed.ParserUsed = result.ParserUsed
			}
			crashed.Errors = append(crashed.Errors, fmt.Sprintf("Unexpected error while parsing statement: %v", rec))
			result = crashed
		}
	}()

	result = models.NewStatementParseResult()
	result.FileKind = kind
	s := &session{log: log, result: result}

	extract, ok := e.extractors[kind]
	if !ok {
		result.Errors = append(result.Errors, fmt.Sprintf("Unsupported file type: %s", kind))
		return result
	}
	extract(s, content)

	if len(result.Transactions) == 0 && len(result.Errors) == 0 {
		msg := "No valid transactions found"
		if s.diagnostic != "" {
			msg += ". " + s.diagnostic
		}
		result.Errors = append(result.Errors, msg)
	}

	log.Debug().
		Str("parser", string(result.ParserUsed)).
		Int("transactions", len(result.Transactions)).
		Int("errors", len(result.Errors)).
		Int("warnings", len(result.Warnings)).
		Msg("parsed statement")
	return result
}

// extractPDF never reads transactions from a PDF. It reports the page
// count, when the document opens, so a vision provider can be sized for it.
func extractPDF(s *session, content []byte) {
	res := s.result
	res.ParserUsed = models.ParserExternal
	if info, err := extractor.InspectPDF(content); err == nil {
		res.PageCount = info.Pages
	} else {
		s.warnf("Could not read PDF structure: %v", err)
	}
	res.Errors = append(res.Errors,
		"PDF statements require a vision-capable extraction provider; this parser does not perform OCR or page extraction")
}

func extractImage(s *session, _ []byte) {
	s.result.ParserUsed = models.ParserExternal
	s.result.Errors = append(s.result.Errors,
		"Image statements require a vision-capable extraction provider; this parser does not perform OCR")
}

func extractUnsupported(s *session, _ []byte) {
	s.result.Errors = append(s.result.Errors,
		"Unsupported file type: spreadsheets and archives must be exported as CSV or OFX first")
}
