// Package normalize converts raw statement cells into typed values: signed
// decimal amounts and calendar dates.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNoAmount is returned for blank amount cells. A blank cell is not zero.
var ErrNoAmount = errors.New("empty amount")

var (
	currencySymbols  = regexp.MustCompile(`[$£€¥₹₿]`)
	symbolThenMinus  = regexp.MustCompile(`[$£€¥₹₿]\s?-`)
	bareNumber       = regexp.MustCompile(`^-?\d+\.?\d*$`)
	bareNumberStrips = strings.NewReplacer(`"`, "", `'`, "", ",", "", "$", "", " ", "", "\t", "", "\u00a0", "")
)

// ParseAmount converts amount text such as "$1,234.56", "(12.00)", "$-50",
// "45.10 DR" or "-£3.99" into a signed decimal. Negative means money left the
// account. The steps run in a fixed order: later ones rely on the earlier
// ones having stripped signs and symbols.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return decimal.Zero, ErrNoAmount
	}

	negative := false
	switch {
	case strings.HasPrefix(cleaned, "-"):
		negative = true
		cleaned = strings.TrimLeft(cleaned, "- ")
	case strings.HasPrefix(cleaned, "+"):
		cleaned = cleaned[1:]
	}

	// "$-50" and "$ -50"
	if symbolThenMinus.MatchString(cleaned) {
		negative = true
	}
	cleaned = currencySymbols.ReplaceAllString(cleaned, "")

	cleaned = strings.TrimSpace(cleaned)
	if strings.HasPrefix(cleaned, "-") {
		negative = true
		cleaned = cleaned[1:]
	}

	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "\u00a0", "")

	// Accounting negatives: (123.45)
	if len(cleaned) >= 2 && strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}

	// CR/DR suffixes win over any sign seen so far.
	upper := strings.ToUpper(cleaned)
	switch {
	case strings.HasSuffix(upper, "CR"):
		negative = false
		cleaned = cleaned[:len(cleaned)-2]
	case strings.HasSuffix(upper, "DR"):
		negative = true
		cleaned = cleaned[:len(cleaned)-2]
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	value = value.Abs()
	if negative {
		value = value.Neg()
	}
	return value, nil
}

// BareNumber reports whether a cell is a plain signed number once quotes,
// thousands separators, whitespace and dollar signs are removed. It is used
// to tell data rows from header rows and to score amount columns; negative
// is true when the cell carries a minus sign.
func BareNumber(cell string) (negative, ok bool) {
	cleaned := bareNumberStrips.Replace(strings.TrimSpace(cell))
	if cleaned == "" || !bareNumber.MatchString(cleaned) {
		return false, false
	}
	return strings.HasPrefix(cleaned, "-"), true
}
