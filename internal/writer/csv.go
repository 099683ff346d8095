package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// CSVWriter writes parsed transactions as a flat CSV export.
type CSVWriter struct {
	IncludeHeader bool
}

// WriteToFile writes the result to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, result *models.StatementParseResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	if err := w.Write(f, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write writes the result's transactions in CSV format to out.
func (w *CSVWriter) Write(out io.Writer, result *models.StatementParseResult) error {
	writer := csv.NewWriter(out)

	// Metadata rows
	if w.IncludeHeader {
		meta := [][]string{
			{"# Bank", result.BankDetected},
			{"# Account", result.AccountInfo},
			{"# Parser", string(result.ParserUsed)},
		}
		for _, row := range meta {
			if row[1] == "" {
				continue
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV metadata: %w", err)
			}
		}
	}

	header := []string{"Date", "Description", "Amount", "Merchant", "Category"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, txn := range result.Transactions {
		row := []string{
			txn.Date.String(),
			txn.Description,
			formatAmount(txn.Amount),
			txn.Merchant,
			txn.CategorySuggestion,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

func formatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
