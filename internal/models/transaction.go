package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical rendering of a transaction date.
const DateLayout = "2006-01-02"

// Date is a calendar date with no time component.
type Date struct {
	time.Time
}

// NewDate returns the calendar date y-m-d in UTC.
func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON renders the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// ParsedTransaction is one candidate transaction extracted from a statement.
// Amount is negative for money leaving the account and positive for money
// entering it.
type ParsedTransaction struct {
	Date               Date            `json:"date"`
	Description        string          `json:"description"`
	Amount             decimal.Decimal `json:"amount"`
	Merchant           string          `json:"merchant,omitempty"`
	CategorySuggestion string          `json:"category_suggestion,omitempty"`
	Confidence         float64         `json:"confidence"`
	RawData            map[string]any  `json:"raw_data,omitempty"`
}

// FileKind is the classifier's verdict on an uploaded file.
type FileKind string

const (
	FileTabular     FileKind = "tabular"
	FileTag         FileKind = "tag"
	FilePDF         FileKind = "pdf"
	FileImage       FileKind = "image"
	FileUnsupported FileKind = "unsupported"
)

// ParserKind identifies the sub-parser that handled a file.
type ParserKind string

const (
	ParserUnknown  ParserKind = "unknown"
	ParserCSV      ParserKind = "csv"
	ParserOFX      ParserKind = "ofx"
	ParserExternal ParserKind = "external-extraction-required"
)

// BankAutoDetected is reported when columns were resolved by content
// heuristics instead of an institution profile.
const BankAutoDetected = "auto-detected"

// StatementParseResult is everything the engine returns for one file.
// Errors are file-level conditions; warnings are row-level and do not
// imply failure.
type StatementParseResult struct {
	Transactions    []ParsedTransaction `json:"transactions"`
	Errors          []string            `json:"errors"`
	Warnings        []string            `json:"warnings"`
	BankDetected    string              `json:"bank_detected,omitempty"`
	AccountInfo     string              `json:"account_info,omitempty"`
	ParserUsed      ParserKind          `json:"parser_used"`
	FileKind        FileKind            `json:"file_kind"`
	PageCount       int                 `json:"page_count,omitempty"`
	HeadersDetected []string            `json:"headers_detected,omitempty"`
	SampleLines     []string            `json:"sample_lines,omitempty"`
}

// NewStatementParseResult returns an empty result whose slices marshal as
// [] rather than null.
func NewStatementParseResult() *StatementParseResult {
	return &StatementParseResult{
		Transactions: []ParsedTransaction{},
		Errors:       []string{},
		Warnings:     []string{},
		ParserUsed:   ParserUnknown,
	}
}

// Success reports whether the parse produced usable transactions without
// file-level errors.
func (r *StatementParseResult) Success() bool {
	return len(r.Errors) == 0 && len(r.Transactions) > 0
}

// Totals returns the summed outflows (as a positive magnitude) and inflows.
func (r *StatementParseResult) Totals() (debit, credit decimal.Decimal) {
	for _, txn := range r.Transactions {
		if txn.Amount.IsNegative() {
			debit = debit.Add(txn.Amount.Abs())
		} else {
			credit = credit.Add(txn.Amount)
		}
	}
	return debit, credit
}
