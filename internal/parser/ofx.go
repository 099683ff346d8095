package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/normalize"
)

var (
	ofxOpenTag       = regexp.MustCompile(`(?i)<STMTTRN>`)
	ofxClosedBlock   = regexp.MustCompile(`(?is)<STMTTRN>(.*?)</STMTTRN>`)
	ofxBlockBoundary = regexp.MustCompile(`(?i)<STMTTRN>|</BANKTRANLIST>`)
)

var ofxFields = map[string]*regexp.Regexp{}

func init() {
	for _, name := range []string{"DTPOSTED", "TRNAMT", "NAME", "MEMO", "FITID", "TRNTYPE", "ORG", "ACCTID"} {
		ofxFields[name] = regexp.MustCompile(`(?i)<` + name + `>([^<\r\n]+)`)
	}
}

// blockStrategy splits an OFX document into transaction blocks. A strategy
// returns nil when it cannot account for the document.
type blockStrategy struct {
	name  string
	split func(text string) []string
}

// Strategies are tried in order; the lenient one handles exports that never
// close their STMTTRN tags.
var blockStrategies = []blockStrategy{
	{name: "closed", split: closedBlocks},
	{name: "open-ended", split: openEndedBlocks},
}

// closedBlocks returns the bodies of <STMTTRN>...</STMTTRN> pairs, but only
// when every opening tag is closed.
func closedBlocks(text string) []string {
	matches := ofxClosedBlock.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 || len(matches) != len(ofxOpenTag.FindAllStringIndex(text, -1)) {
		return nil
	}
	blocks := make([]string, len(matches))
	for i, m := range matches {
		blocks[i] = m[1]
	}
	return blocks
}

// openEndedBlocks ends each block at the next <STMTTRN>, at
// </BANKTRANLIST>, or at the end of the document.
func openEndedBlocks(text string) []string {
	var blocks []string
	for _, loc := range ofxOpenTag.FindAllStringIndex(text, -1) {
		rest := text[loc[1]:]
		end := len(rest)
		if next := ofxBlockBoundary.FindStringIndex(rest); next != nil {
			end = next[0]
		}
		blocks = append(blocks, rest[:end])
	}
	return blocks
}

// ofxField returns the trimmed value of the first <name> tag in text.
func ofxField(text, name string) string {
	m := ofxFields[name].FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// parseOFX runs the tag path over an OFX/QFX document.
func parseOFX(s *session, text string) {
	res := s.result
	res.ParserUsed = models.ParserOFX

	var blocks []string
	for _, strategy := range blockStrategies {
		if blocks = strategy.split(text); len(blocks) > 0 {
			s.log.Debug().Str("strategy", strategy.name).Int("blocks", len(blocks)).Msg("split OFX transactions")
			break
		}
	}
	if len(blocks) == 0 {
		res.Errors = append(res.Errors, "No transactions found in OFX file")
		return
	}

	if org := ofxField(text, "ORG"); org != "" {
		res.BankDetected = org
	}
	if acct := ofxField(text, "ACCTID"); acct != "" {
		res.AccountInfo = "Account: ***" + lastN(acct, 4)
	}
	s.diagnostic = fmt.Sprintf("%d transaction block(s) found in OFX, none usable", len(blocks))

	for i, block := range blocks {
		if txn, ok := ofxTransaction(s, i+1, block); ok {
			res.Transactions = append(res.Transactions, txn)
		}
	}
}

func ofxTransaction(s *session, n int, block string) (models.ParsedTransaction, bool) {
	posted := ofxField(block, "DTPOSTED")
	if len(posted) < 8 {
		s.warnf("Transaction %d: missing or short DTPOSTED %q", n, posted)
		return models.ParsedTransaction{}, false
	}
	t, err := time.Parse("20060102", posted[:8])
	if err != nil {
		s.warnf("Transaction %d: invalid DTPOSTED %q", n, posted)
		return models.ParsedTransaction{}, false
	}

	rawAmount := ofxField(block, "TRNAMT")
	amount, err := normalize.ParseAmount(rawAmount)
	if err != nil {
		s.warnf("Transaction %d: invalid TRNAMT %q", n, rawAmount)
		return models.ParsedTransaction{}, false
	}
	if amount.IsZero() {
		return models.ParsedTransaction{}, false
	}

	name, memo := ofxField(block, "NAME"), ofxField(block, "MEMO")
	txn := models.ParsedTransaction{
		Date:        models.NewDate(t.Year(), t.Month(), t.Day()),
		Description: firstNonEmpty(name, memo, "Unknown"),
		Amount:      amount,
		Confidence:  1.0,
		RawData:     map[string]any{"block": n},
	}
	if name != "" && memo != "" {
		txn.Merchant = name
	}
	if id := ofxField(block, "FITID"); id != "" {
		txn.RawData["fitid"] = id
	}
	if kind := ofxField(block, "TRNTYPE"); kind != "" {
		txn.RawData["trntype"] = kind
	}
	return txn, true
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
