package parser

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/normalize"
)

// unresolved marks a role with no column.
const unresolved = -1

// heuristicSampleRows bounds how many data rows are scored per column, and
// how many date values feed the DMY/MDY decision.
const heuristicSampleRows = 20

// Role is the meaning assigned to a column.
type Role string

const (
	RoleDate        Role = "date"
	RoleDescription Role = "description"
	RoleAmount      Role = "amount"
	RoleDebit       Role = "debit"
	RoleCredit      Role = "credit"
)

// Schema maps roles to column indices. Amounts come either from a signed
// Amount column or from a Debit/Credit pair.
type Schema struct {
	Date        int
	Description int
	Amount      int
	Debit       int
	Credit      int
}

func emptySchema() Schema {
	return Schema{Date: unresolved, Description: unresolved, Amount: unresolved, Debit: unresolved, Credit: unresolved}
}

func (s Schema) hasAmount() bool {
	return s.Amount != unresolved || s.Debit != unresolved || s.Credit != unresolved
}

func (s Schema) complete() bool {
	return s.Date != unresolved && s.Description != unresolved && s.hasAmount()
}

func (s Schema) assigned() map[int]bool {
	used := make(map[int]bool, 5)
	for _, idx := range []int{s.Date, s.Description, s.Amount, s.Debit, s.Credit} {
		if idx != unresolved {
			used[idx] = true
		}
	}
	return used
}

func (s Schema) String() string {
	col := func(i int) string {
		if i == unresolved {
			return "none"
		}
		return strconv.Itoa(i)
	}
	return fmt.Sprintf("date: %s, description: %s, amount: %s, debit: %s, credit: %s",
		col(s.Date), col(s.Description), col(s.Amount), col(s.Debit), col(s.Credit))
}

// ResolveError reports a role that neither the headers nor the column
// heuristics could place.
type ResolveError struct {
	Role    Role
	Headers []string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("Could not find %s column. Headers: %q", e.Role, e.Headers)
}

// columnStats is the content profile of one column over the sampled rows.
type columnStats struct {
	Index       int
	Dates       int
	Amounts     int
	Texts       int
	Negative    bool
	NonNegative bool
}

// scoreColumns classifies each non-empty cell in the first limit rows as a
// date, a bare amount or text.
func scoreColumns(rows [][]string, limit int) []columnStats {
	if len(rows) > limit {
		rows = rows[:limit]
	}
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}

	stats := make([]columnStats, width)
	for i := range stats {
		stats[i].Index = i
	}
	for _, row := range rows {
		for i := range row {
			c := cell(row, i)
			if c == "" {
				continue
			}
			if _, ok := normalize.ParseDate(c, normalize.DMY); ok {
				stats[i].Dates++
				continue
			}
			if negative, ok := normalize.BareNumber(c); ok {
				stats[i].Amounts++
				if negative {
					stats[i].Negative = true
				} else {
					stats[i].NonNegative = true
				}
				continue
			}
			stats[i].Texts++
		}
	}
	return stats
}

// rankDateColumns orders columns holding dates by date count, lowest index
// first on ties.
func rankDateColumns(stats []columnStats) []int {
	return rank(stats, func(c columnStats) bool { return c.Dates > 0 }, func(a, b columnStats) bool {
		return a.Dates > b.Dates
	})
}

// rankAmountColumns prefers columns holding both negative and non-negative
// values, which are signed amounts rather than one-sided balances, then the
// higher amount count.
func rankAmountColumns(stats []columnStats) []int {
	return rank(stats, func(c columnStats) bool { return c.Amounts > 0 }, func(a, b columnStats) bool {
		aBoth, bBoth := a.Negative && a.NonNegative, b.Negative && b.NonNegative
		if aBoth != bBoth {
			return aBoth
		}
		return a.Amounts > b.Amounts
	})
}

// rankTextColumns orders text-bearing columns not already in use.
func rankTextColumns(stats []columnStats, used map[int]bool) []int {
	return rank(stats, func(c columnStats) bool { return c.Texts > 0 && !used[c.Index] }, func(a, b columnStats) bool {
		return a.Texts > b.Texts
	})
}

func rank(stats []columnStats, keep func(columnStats) bool, better func(a, b columnStats) bool) []int {
	var candidates []columnStats
	for _, c := range stats {
		if keep(c) {
			candidates = append(candidates, c)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if better(candidates[i], candidates[j]) {
			return true
		}
		if better(candidates[j], candidates[i]) {
			return false
		}
		return candidates[i].Index < candidates[j].Index
	})
	out := make([]int, len(candidates))
	for i, c := range candidates {
		out[i] = c.Index
	}
	return out
}

// selectColumns fills the unresolved roles of base from ranked candidates.
// Date is chosen first, then amount, then description from what is left.
func selectColumns(stats []columnStats, base Schema) Schema {
	s := base
	if s.Date == unresolved {
		if ranked := rankDateColumns(stats); len(ranked) > 0 {
			s.Date = ranked[0]
		}
	}
	if !s.hasAmount() {
		if ranked := rankAmountColumns(stats); len(ranked) > 0 {
			s.Amount = ranked[0]
		}
	}
	if s.Description == unresolved {
		if ranked := rankTextColumns(stats, s.assigned()); len(ranked) > 0 {
			s.Description = ranked[0]
		}
	}
	return s
}

// resolveSchema maps headers and data rows onto roles. Header names are
// matched against the detected profile first; content heuristics fill any
// gap. bank is the profile name, or models.BankAutoDetected once heuristics
// were needed.
func resolveSchema(headers []string, rows [][]string) (schema Schema, bank string, err error) {
	schema = emptySchema()

	if len(headers) > 0 {
		profile := DetectProfile(headers)
		bank = profile.Name
		schema.Date = findColumn(headers, profile.DateColumns)
		schema.Description = findColumn(headers, profile.DescriptionColumns)
		schema.Amount = findColumn(headers, profile.AmountColumns)
		schema.Debit = findColumn(headers, profile.DebitColumns)
		schema.Credit = findColumn(headers, profile.CreditColumns)
	}

	if !schema.complete() {
		bank = models.BankAutoDetected
		schema = selectColumns(scoreColumns(rows, heuristicSampleRows), schema)
	}

	if schema.Date == unresolved {
		return schema, bank, &ResolveError{Role: RoleDate, Headers: headers}
	}
	if schema.Description == unresolved {
		used := schema.assigned()
		for i := range headers {
			if !used[i] {
				schema.Description = i
				break
			}
		}
	}
	if schema.Description == unresolved {
		return schema, bank, &ResolveError{Role: RoleDescription, Headers: headers}
	}
	if !schema.hasAmount() {
		return schema, bank, &ResolveError{Role: RoleAmount, Headers: headers}
	}
	return schema, bank, nil
}

// detectHeaderless reports whether the first row is data: any cell that
// parses as a date or a bare number rules out a header.
func detectHeaderless(first []string) bool {
	for _, c := range first {
		c = strings.TrimSpace(c)
		if _, ok := normalize.ParseDate(c, normalize.DMY); ok {
			return true
		}
		if _, ok := normalize.BareNumber(c); ok {
			return true
		}
	}
	return false
}

// dateSamples collects up to limit values from the date column.
func dateSamples(rows [][]string, col, limit int) []string {
	var samples []string
	for _, row := range rows {
		if len(samples) == limit {
			break
		}
		if c := cell(row, col); c != "" {
			samples = append(samples, c)
		}
	}
	return samples
}
