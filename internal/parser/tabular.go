package parser

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/normalize"
)

const sampleLineCount = 3

// columnContext is fixed once the schema is resolved and carries the date
// ordering chosen for this file. It is created per parse and never shared.
type columnContext struct {
	schema Schema
	order  normalize.Order
}

// parseCSV runs the tabular path: tokenize, resolve columns, then normalize
// every data row.
func parseCSV(s *session, text string) {
	res := s.result
	res.ParserUsed = models.ParserCSV

	delimiter := detectDelimiter(text)
	rows, warnings := tokenize(text, delimiter)
	res.Warnings = append(res.Warnings, warnings...)
	s.log.Debug().Str("delimiter", string(delimiter)).Int("rows", len(rows)).Msg("tokenized statement")

	if len(rows) == 0 {
		res.Errors = append(res.Errors, "CSV file appears to be empty or has no data rows")
		return
	}

	var headers []string
	data := rows
	firstRow := 1
	if detectHeaderless(rows[0]) {
		res.Warnings = append(res.Warnings, "No header row detected - using auto-detection")
		res.HeadersDetected = []string{"(no headers - auto-detected)"}
	} else {
		headers = trimAll(rows[0])
		data = rows[1:]
		firstRow = 2
		res.HeadersDetected = headers
	}

	if len(data) == 0 {
		res.Errors = append(res.Errors, "CSV file appears to be empty or has no data rows")
		return
	}
	for _, row := range data[:min(sampleLineCount, len(data))] {
		res.SampleLines = append(res.SampleLines, fmt.Sprintf("%q", row))
	}

	schema, bank, err := resolveSchema(headers, data)
	res.BankDetected = bank
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return
	}

	cols := columnContext{
		schema: schema,
		order:  normalize.DetectOrder(dateSamples(data, schema.Date, heuristicSampleRows)),
	}
	s.log.Debug().Str("bank", bank).Str("columns", schema.String()).Str("date_order", cols.order.String()).Msg("resolved columns")
	s.diagnostic = "Detected columns - " + schema.String()

	for i, row := range data {
		rowNum := firstRow + i
		if txn, ok := cols.transaction(s, rowNum, row); ok {
			res.Transactions = append(res.Transactions, txn)
		}
	}
}

// transaction converts one data row. Rows without a date are reported;
// rows without a description or a non-zero amount are dropped quietly.
func (c columnContext) transaction(s *session, rowNum int, row []string) (models.ParsedTransaction, bool) {
	if need := max(c.schema.Date, c.schema.Description); len(row) <= need {
		s.warnf("Row %d: expected at least %d columns, got %d", rowNum, need+1, len(row))
		return models.ParsedTransaction{}, false
	}

	rawDate := cell(row, c.schema.Date)
	date, ok := normalize.ParseDate(rawDate, c.order)
	if !ok {
		s.warnf("Row %d: could not parse date %q", rowNum, rawDate)
		return models.ParsedTransaction{}, false
	}

	description := cell(row, c.schema.Description)
	if description == "" {
		return models.ParsedTransaction{}, false
	}

	amount, ok := c.amount(row)
	if !ok || amount.IsZero() {
		return models.ParsedTransaction{}, false
	}

	return models.ParsedTransaction{
		Date:        date,
		Description: description,
		Amount:      amount,
		Confidence:  1.0,
		RawData: map[string]any{
			"row":      rowNum,
			"original": append([]string(nil), row...),
		},
	}, true
}

// amount reads the signed amount column, or derives a sign from the
// debit/credit pair when that cell is empty. Debit wins when both are set.
func (c columnContext) amount(row []string) (decimal.Decimal, bool) {
	if raw := cell(row, c.schema.Amount); raw != "" {
		v, err := normalize.ParseAmount(raw)
		return v, err == nil
	}

	if debit, err := normalize.ParseAmount(cell(row, c.schema.Debit)); err == nil && !debit.IsZero() {
		return debit.Abs().Neg(), true
	}
	if credit, err := normalize.ParseAmount(cell(row, c.schema.Credit)); err == nil && !credit.IsZero() {
		return credit.Abs(), true
	}
	return decimal.Zero, false
}

func trimAll(row []string) []string {
	out := make([]string, len(row))
	for i := range row {
		out[i] = cell(row, i)
	}
	return out
}
