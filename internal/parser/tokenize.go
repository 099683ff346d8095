package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// delimiterSampleSize is how many leading characters are counted when
// choosing between tab and comma.
const delimiterSampleSize = 2000

const utf8BOM = "\uFEFF"

// decodeText turns uploaded bytes into text, dropping a leading BOM and any
// bytes that are not valid UTF-8.
func decodeText(content []byte) string {
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	return strings.TrimPrefix(text, utf8BOM)
}

// detectDelimiter picks one delimiter for the whole file: tab when tabs
// outnumber commas in the leading sample, otherwise comma.
func detectDelimiter(text string) rune {
	sample := text
	if utf8.RuneCountInString(sample) > delimiterSampleSize {
		sample = string([]rune(sample)[:delimiterSampleSize])
	}
	if strings.Count(sample, "\t") > strings.Count(sample, ",") {
		return '\t'
	}
	return ','
}

// tokenize splits delimited text into rows of cells. Quoted cells may hold
// delimiters, newlines and doubled quotes. Blank rows are dropped and
// malformed records are reported as warnings instead of aborting the file.
func tokenize(text string, delimiter rune) (rows [][]string, warnings []string) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	// Tab files keep leading whitespace so consecutive tabs stay empty cells.
	reader.TrimLeadingSpace = delimiter != '\t'

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				warnings = append(warnings, fmt.Sprintf("Line %d: skipped malformed row (%v)", parseErr.Line, parseErr.Err))
				continue
			}
			warnings = append(warnings, fmt.Sprintf("Stopped reading file: %v", err))
			break
		}
		if isBlankRow(record) {
			continue
		}
		rows = append(rows, record)
	}
	return rows, warnings
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// cell returns the trimmed cell at idx, or "" when the row is too short or
// the column is unresolved.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
