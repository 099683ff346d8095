package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

func dates(txns []models.ParsedTransaction) []string {
	out := make([]string, len(txns))
	for i, txn := range txns {
		out[i] = txn.Date.String()
	}
	return out
}

func amounts(txns []models.ParsedTransaction) []string {
	out := make([]string, len(txns))
	for i, txn := range txns {
		out[i] = txn.Amount.String()
	}
	return out
}

func TestParseStatement_CSV(t *testing.T) {
	content := []byte("Date,Description,Amount\n2024-01-15,Salary,2500.00\n2024-01-16,Coffee,-3.50\n")

	result := ParseStatement("statement.csv", content)

	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.True(t, result.Success())
	assert.Equal(t, models.ParserCSV, result.ParserUsed)
	assert.Equal(t, models.FileTabular, result.FileKind)
	assert.Equal(t, "generic", result.BankDetected)
	assert.Equal(t, []string{"Date", "Description", "Amount"}, result.HeadersDetected)
	assert.Equal(t, []string{`["2024-01-15" "Salary" "2500.00"]`, `["2024-01-16" "Coffee" "-3.50"]`}, result.SampleLines)

	require.Len(t, result.Transactions, 2)
	assert.Equal(t, []string{"2024-01-15", "2024-01-16"}, dates(result.Transactions))
	assert.Equal(t, []string{"2500", "-3.5"}, amounts(result.Transactions))
	assert.Equal(t, "Salary", result.Transactions[0].Description)
	assert.Equal(t, 2, result.Transactions[0].RawData["row"])
	assert.Equal(t, []string{"2024-01-15", "Salary", "2500.00"}, result.Transactions[0].RawData["original"])

	debit, credit := result.Totals()
	assert.Equal(t, "3.5", debit.String())
	assert.Equal(t, "2500", credit.String())
}

func TestParseStatement_Deterministic(t *testing.T) {
	content := []byte("Date,Description,Amount\n15/01/2024,Salary,2500.00\n16/01/2024,Coffee,-3.50\n")

	first, err := json.Marshal(ParseStatement("a.csv", content))
	require.NoError(t, err)
	second, err := json.Marshal(ParseStatement("a.csv", content))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Contains(t, string(first), `"date":"2024-01-15"`)
}

func TestParseStatement_DateOrder(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected []string
	}{
		{
			name:     "later day locks in day first",
			content:  "Date,Description,Amount\n01/02/2024,A,-1\n25/02/2024,B,-2\n",
			expected: []string{"2024-02-01", "2024-02-25"},
		},
		{
			name:     "later day in second place locks in month first",
			content:  "Date,Description,Amount\n01/02/2024,A,-1\n02/25/2024,B,-2\n",
			expected: []string{"2024-01-02", "2024-02-25"},
		},
		{
			name:     "undecided column defaults to day first",
			content:  "Date,Description,Amount\n01/02/2024,A,-1\n03/04/2024,B,-2\n",
			expected: []string{"2024-02-01", "2024-04-03"},
		},
		{
			name:     "two digit years",
			content:  "Date,Description,Amount\n15.01.24,A,-1\n",
			expected: []string{"2024-01-15"},
		},
		{
			name:     "named months",
			content:  "Date,Description,Amount\n15 Jan 2024,A,-1\n\"Feb 3, 2024\",B,-2\n",
			expected: []string{"2024-01-15", "2024-02-03"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseStatement("dates.csv", []byte(tt.content))
			assert.Empty(t, result.Errors)
			assert.Equal(t, tt.expected, dates(result.Transactions))
		})
	}
}

func TestParseStatement_Concurrent(t *testing.T) {
	engine := NewEngine()
	dayFirst := []byte("Date,Description,Amount\n01/02/2024,A,-1\n25/02/2024,B,-2\n")
	monthFirst := []byte("Date,Description,Amount\n01/02/2024,A,-1\n02/25/2024,B,-2\n")

	var wg sync.WaitGroup
	failures := make(chan string, 100)
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if got := dates(engine.ParseStatement("dmy.csv", dayFirst).Transactions); got[0] != "2024-02-01" {
				failures <- fmt.Sprintf("day first parsed as %v", got)
			}
		}()
		go func() {
			defer wg.Done()
			if got := dates(engine.ParseStatement("mdy.csv", monthFirst).Transactions); got[0] != "2024-01-02" {
				failures <- fmt.Sprintf("month first parsed as %v", got)
			}
		}()
	}
	wg.Wait()
	close(failures)

	for f := range failures {
		t.Error(f)
	}
}

func TestParseStatement_Headerless(t *testing.T) {
	content := []byte("2024-01-15,Salary,2500.00\n2024-01-16,Coffee,-3.50\n")

	result := ParseStatement("noheader.csv", content)

	assert.Empty(t, result.Errors)
	assert.Equal(t, models.BankAutoDetected, result.BankDetected)
	assert.Equal(t, []string{"(no headers - auto-detected)"}, result.HeadersDetected)
	assert.Contains(t, result.Warnings, "No header row detected - using auto-detection")
	require.Len(t, result.Transactions, 2)
	assert.Equal(t, "Salary", result.Transactions[0].Description)
	assert.Equal(t, 1, result.Transactions[0].RawData["row"])
}

func TestParseStatement_DebitCredit(t *testing.T) {
	content := []byte("Date,Description,Debit,Credit\n" +
		"15/01/2024,Coffee,3.50,\n" +
		"16/01/2024,Salary,,2500.00\n" +
		"17/01/2024,Both,10.00,5.00\n" +
		"18/01/2024,Neither,,\n")

	result := ParseStatement("split.csv", content)

	assert.Empty(t, result.Errors)
	assert.Equal(t, []string{"-3.5", "2500", "-10"}, amounts(result.Transactions))
}

func TestParseStatement_AmountFormats(t *testing.T) {
	content := []byte("Date,Description,Amount\n" +
		"15/01/2024,Salary,\"$1,234.56\"\n" +
		"16/01/2024,Refund,(45.00)\n" +
		"17/01/2024,Fee,12.00 DR\n" +
		"18/01/2024,Transfer,12.00 CR\n" +
		"19/01/2024,Euro,€-8.10\n")

	result := ParseStatement("formats.csv", content)

	assert.Empty(t, result.Errors)
	assert.Equal(t, []string{"1234.56", "-45", "-12", "12", "-8.1"}, amounts(result.Transactions))
}

func TestParseStatement_TabDelimited(t *testing.T) {
	content := []byte("Date\tDescription\tAmount\n15/01/2024\tCoffee, large\t-3.50\n")

	result := ParseStatement("statement.tsv", content)

	assert.Empty(t, result.Errors)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, "Coffee, large", result.Transactions[0].Description)
}

func TestParseStatement_RowWarnings(t *testing.T) {
	content := []byte("Date,Description,Amount\n" +
		"2024-01-15,A,-1\n" +
		"not a date,B,-2\n" +
		"2024-01-17\n" +
		"2024-01-18,,-4\n" +
		"2024-01-19,Zero,0.00\n")

	result := ParseStatement("rows.csv", content)

	assert.Empty(t, result.Errors)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, []string{
		`Row 3: could not parse date "not a date"`,
		"Row 4: expected at least 2 columns, got 1",
	}, result.Warnings)
}

func TestParseStatement_NoValidTransactions(t *testing.T) {
	content := []byte("Date,Description,Amount\n2024-01-15,Zero,0.00\n2024-01-16,Blank,\n")

	result := ParseStatement("zero.csv", content)

	assert.Empty(t, result.Transactions)
	assert.False(t, result.Success())
	assert.Equal(t, []string{
		"No valid transactions found. Detected columns - date: 0, description: 1, amount: 2, debit: none, credit: none",
	}, result.Errors)
}

func TestParseStatement_FileLevelErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		kind     models.FileKind
		parser   models.ParserKind
		errText  string
	}{
		{
			name:     "empty csv",
			filename: "empty.csv",
			content:  []byte(""),
			kind:     models.FileTabular,
			parser:   models.ParserCSV,
			errText:  "CSV file appears to be empty or has no data rows",
		},
		{
			name:     "header only",
			filename: "header.csv",
			content:  []byte("Date,Description,Amount\n"),
			kind:     models.FileTabular,
			parser:   models.ParserCSV,
			errText:  "CSV file appears to be empty or has no data rows",
		},
		{
			name:     "unrecognised bytes fall back to tabular",
			filename: "upload.bin",
			content:  []byte("THIS IS NOT A STATEMENT"),
			kind:     models.FileTabular,
			parser:   models.ParserCSV,
			errText:  "CSV file appears to be empty or has no data rows",
		},
		{
			name:     "missing date column",
			filename: "nodate.csv",
			content:  []byte("Name,Value\nCoffee,3.00\n"),
			kind:     models.FileTabular,
			parser:   models.ParserCSV,
			errText:  `Could not find date column. Headers: ["Name" "Value"]`,
		},
		{
			name:     "image",
			filename: "scan.png",
			content:  []byte("\x89PNG\r\n\x1a\n"),
			kind:     models.FileImage,
			parser:   models.ParserExternal,
			errText:  "Image statements require a vision-capable extraction provider; this parser does not perform OCR",
		},
		{
			name:     "spreadsheet",
			filename: "book.xlsx",
			content:  []byte("PK\x03\x04"),
			kind:     models.FileUnsupported,
			parser:   models.ParserUnknown,
			errText:  "Unsupported file type: spreadsheets and archives must be exported as CSV or OFX first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseStatement(tt.filename, tt.content)
			assert.Equal(t, tt.kind, result.FileKind)
			assert.Equal(t, tt.parser, result.ParserUsed)
			assert.Equal(t, []string{tt.errText}, result.Errors)
			assert.Empty(t, result.Transactions)
			assert.NotNil(t, result.Transactions)
		})
	}
}

func TestParseStatement_PDF(t *testing.T) {
	result := ParseStatement("march.pdf", []byte("%PDF-1.4\nnot really a pdf"))

	assert.Equal(t, models.FilePDF, result.FileKind)
	assert.Equal(t, models.ParserExternal, result.ParserUsed)
	assert.Zero(t, result.PageCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "vision-capable extraction provider")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "Could not read PDF structure")
}

func TestParseStatement_RecoversFromPanic(t *testing.T) {
	engine := NewEngine()
	engine.extractors[models.FileTabular] = func(s *session, _ []byte) {
		s.result.ParserUsed = models.ParserCSV
		panic("boom")
	}

	var result *models.StatementParseResult
	require.NotPanics(t, func() {
		result = engine.ParseStatement("a.csv", []byte("Date,Description,Amount\n"))
	})
	assert.Equal(t, []string{"Unexpected error while parsing statement: boom"}, result.Errors)
	assert.Equal(t, models.ParserCSV, result.ParserUsed)
	assert.Equal(t, models.FileTabular, result.FileKind)
	assert.Empty(t, result.Transactions)
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	engine := NewEngine(WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

	engine.ParseStatement("a.csv", []byte("Date,Description,Amount\n2024-01-15,Salary,2500.00\n"))

	out := buf.String()
	assert.Contains(t, out, `"filename":"a.csv"`)
	assert.Contains(t, out, `"message":"resolved columns"`)
	assert.Contains(t, out, `"message":"parsed statement"`)
	assert.Contains(t, out, `"transactions":1`)
}
