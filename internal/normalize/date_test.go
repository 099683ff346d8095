package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectOrder(t *testing.T) {
	tests := []struct {
		name     string
		samples  []string
		expected Order
	}{
		{"day first", []string{"01/02/2024", "25/02/2024"}, DMY},
		{"month first", []string{"01/02/2024", "02/25/2024"}, MDY},
		{"first deciding sample wins", []string{"02/25/2024", "25/02/2024"}, MDY},
		{"dash and dot separators", []string{"03.04.2024", "13-04-2024"}, DMY},
		{"undecided defaults to DMY", []string{"01/02/2024", "03/04/2024"}, DMY},
		{"text dates ignored", []string{"15 Jan 2024", "Jan 15, 2024"}, DMY},
		{"empty", nil, DMY},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectOrder(tt.samples))
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input    string
		order    Order
		expected string
	}{
		{"2024-01-15", DMY, "2024-01-15"},
		{"2024/1/5", MDY, "2024-01-05"},
		{"15 Jan 2024", MDY, "2024-01-15"},
		{"15 January 2024", DMY, "2024-01-15"},
		{"Jan 15, 2024", DMY, "2024-01-15"},
		{"March 3, 2024", DMY, "2024-03-03"},
		{"15-Jan-2024", DMY, "2024-01-15"},
		{"01/02/2024", DMY, "2024-02-01"},
		{"01/02/2024", MDY, "2024-01-02"},
		{"01-02-24", DMY, "2024-02-01"},
		{"01.02.2024", MDY, "2024-01-02"},
		{"01/02/30", DMY, "2030-02-01"},
		// falls back to the other ordering when the preferred one is invalid
		{"25/12/2024", MDY, "2024-12-25"},
		{"12/25/2024", DMY, "2024-12-25"},
		{"29/02/2024", DMY, "2024-02-29"},
	}

	for _, tt := range tests {
		t.Run(tt.input+"/"+tt.order.String(), func(t *testing.T) {
			got, ok := ParseDate(tt.input, tt.order)
			assert.True(t, ok)
			assert.Equal(t, tt.expected, got.String())
		})
	}
}

func TestParseDateRejects(t *testing.T) {
	inputs := []string{
		"",
		"Date",
		"31/04/2024",
		"29/02/2023",
		"13/13/2024",
		"2024-13-01",
		"01/02-2024",
		"1234.56",
		"20240115",
		"Posted",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, ok := ParseDate(input, DMY)
			assert.False(t, ok)
		})
	}
}
