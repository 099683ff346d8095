package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// Order is the day/month ordering used for purely numeric dates.
type Order int

const (
	// DMY is day-month-year, the default when nothing disambiguates.
	DMY Order = iota
	// MDY is month-day-year.
	MDY
)

func (o Order) String() string {
	if o == MDY {
		return "MDY"
	}
	return "DMY"
}

var (
	isoDate     = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})$`)
	numericDate = regexp.MustCompile(`^(\d{1,2})([/.-])(\d{1,2})([/.-])(\d{2}|\d{4})$`)
	dateParts   = regexp.MustCompile(`[/\-.]`)
)

// Named-month layouts. These are unambiguous so the order hint never applies.
var namedMonthLayouts = []string{
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2-Jan-2006",
	"2 Jan 06",
	"2-Jan-06",
}

// DetectOrder inspects sample date strings from one column. A first
// component above 12 means DMY, a second component above 12 means MDY; the
// first sample that decides wins. Undecided columns default to DMY.
func DetectOrder(samples []string) Order {
	for _, s := range samples {
		parts := dateParts.Split(strings.TrimSpace(s), -1)
		if len(parts) < 2 {
			continue
		}
		first, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		second, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			continue
		}
		if first > 12 {
			return DMY
		}
		if second > 12 {
			return MDY
		}
	}
	return DMY
}

// ParseDate converts a date cell into a calendar date. ISO dates are tried
// first, then named-month forms, then numeric A/B/C using order with the
// opposite ordering as a fallback.
func ParseDate(s string, order Order) (models.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Date{}, false
	}

	if m := isoDate.FindStringSubmatch(s); m != nil {
		return makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}

	if strings.IndexFunc(s, unicode.IsLetter) >= 0 {
		for _, layout := range namedMonthLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return models.NewDate(t.Year(), t.Month(), t.Day()), true
			}
		}
		return models.Date{}, false
	}

	m := numericDate.FindStringSubmatch(s)
	if m == nil || m[2] != m[4] {
		return models.Date{}, false
	}
	a, b, year := atoi(m[1]), atoi(m[3]), atoi(m[5])
	if len(m[5]) == 2 {
		year += 2000
	}

	first, second := [2]int{a, b}, [2]int{b, a} // {day, month}
	if order == MDY {
		first, second = second, first
	}
	if d, ok := makeDate(year, first[1], first[0]); ok {
		return d, true
	}
	return makeDate(year, second[1], second[0])
}

// makeDate builds y-m-d and rejects values that do not round-trip, such as
// 31 April.
func makeDate(y, m, d int) (models.Date, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return models.Date{}, false
	}
	date := models.NewDate(y, time.Month(m), d)
	if date.Year() != y || int(date.Month()) != m || date.Day() != d {
		return models.Date{}, false
	}
	return date, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
