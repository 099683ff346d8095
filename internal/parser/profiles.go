package parser

import (
	"strings"
)

// Profile describes the CSV export layout of one institution. Each role
// lists acceptable header spellings, tried in order.
type Profile struct {
	Name               string
	Markers            []string
	DateColumns        []string
	DescriptionColumns []string
	AmountColumns      []string
	DebitColumns       []string
	CreditColumns      []string
}

// Known institution layouts, checked in order.
var profiles = []Profile{
	{
		Name:               "chase",
		Markers:            []string{"chase"},
		DateColumns:        []string{"Transaction Date", "Posting Date", "Date"},
		DescriptionColumns: []string{"Description", "Merchant"},
		AmountColumns:      []string{"Amount"},
		DebitColumns:       []string{"Debit"},
		CreditColumns:      []string{"Credit"},
	},
	{
		Name:               "bank_of_america",
		Markers:            []string{"bank of america", "bofa"},
		DateColumns:        []string{"Date", "Posted Date"},
		DescriptionColumns: []string{"Description", "Payee"},
		AmountColumns:      []string{"Amount"},
	},
	{
		Name:               "wells_fargo",
		Markers:            []string{"wells fargo"},
		DateColumns:        []string{"Date"},
		DescriptionColumns: []string{"Description"},
		AmountColumns:      []string{"Amount"},
	},
}

// genericProfile covers common header synonyms when no institution matches.
var genericProfile = Profile{
	Name:               "generic",
	DateColumns:        []string{"Date", "Trans Date", "Transaction Date", "Posted", "Post Date", "Posted Date", "Value Date"},
	DescriptionColumns: []string{"Description", "Memo", "Details", "Payee", "Name", "Merchant", "Narrative"},
	AmountColumns:      []string{"Amount", "Total", "Value"},
	DebitColumns:       []string{"Debit", "Withdrawal", "Withdrawals", "Outflow", "Paid Out", "Money Out"},
	CreditColumns:      []string{"Credit", "Deposit", "Deposits", "Inflow", "Paid In", "Money In"},
}

// DetectProfile matches header cells against institution markers. Headers
// from unknown institutions get the generic profile.
func DetectProfile(headers []string) Profile {
	for _, p := range profiles {
		for _, h := range headers {
			if containsAny(h, p.Markers) {
				return p
			}
		}
	}
	return genericProfile
}

// findColumn returns the index of the first candidate name present in
// headers, compared case-insensitively, or unresolved.
func findColumn(headers []string, candidates []string) int {
	for _, name := range candidates {
		for i, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
	}
	return unresolved
}

func containsAny(text string, needles []string) bool {
	lower := strings.ToLower(text)
	for _, needle := range needles {
		if needle != "" && strings.Contains(lower, strings.ToLower(needle)) {
			return true
		}
	}
	return false
}
