// Package extract pulls bank name, company name, account number and balance
// out of recognized text with ordered first-match-wins pattern rules.
package extract

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/text/width"

	"github.com/sells-group/bankscan/internal/config"
	"github.com/sells-group/bankscan/internal/model"
)

// minAccountDigits is the shortest normalized account number accepted.
const minAccountDigits = 10

var (
	accountStrip = regexp.MustCompile(`[\s-]`)
	balanceStrip = regexp.MustCompile(`[¥￥$€£,，\s]`)
)

// Result holds the fields found in one image's text. Nil means not found.
type Result struct {
	BankName      *string
	CompanyName   *string
	AccountNumber *string
	Balance       *float64
	Confidence    float64
}

// Extractor applies compiled rule sets. It is safe for concurrent use.
type Extractor struct {
	bank    []*regexp.Regexp
	company []*regexp.Regexp
	account []*regexp.Regexp
	balance []*regexp.Regexp
}

// New compiles rules. Any invalid pattern is an error.
func New(rules config.RuleSet) (*Extractor, error) {
	var e Extractor
	var err error
	if e.bank, err = compile("bank_name", rules.BankName); err != nil {
		return nil, err
	}
	if e.company, err = compile("company", rules.CompanyName); err != nil {
		return nil, err
	}
	if e.account, err = compile("account", rules.AccountNumber); err != nil {
		return nil, err
	}
	if e.balance, err = compile("balance", rules.Balance); err != nil {
		return nil, err
	}
	return &e, nil
}

func compile(field string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: %s pattern %d", field, i)
		}
		out = append(out, re)
	}
	return out, nil
}

// Extract joins fragment texts with single spaces and runs every rule set
// over the result.
func (e *Extractor) Extract(frags []model.TextFragment) Result {
	texts := make([]string, len(frags))
	var sum float64
	for i, f := range frags {
		texts[i] = f.Text
		sum += f.Confidence
	}
	blob := strings.Join(texts, " ")
	// Full-width digits are folded so numeric rules see ASCII.
	numeric := width.Fold.String(blob)

	var r Result
	if len(frags) > 0 {
		r.Confidence = sum / float64(len(frags))
	}

	if v, ok := firstMatch(e.bank, blob, acceptAny); ok {
		r.BankName = &v
	}
	if v, ok := firstMatch(e.company, blob, acceptAny); ok {
		r.CompanyName = &v
	}
	if v, ok := firstMatch(e.account, numeric, normalizeAccount); ok {
		r.AccountNumber = &v
	}
	if v, ok := firstMatch(e.balance, numeric, normalizeBalance); ok {
		f, _ := decimal.RequireFromString(v).Float64()
		r.Balance = &f
	}
	return r
}

// firstMatch tries each pattern in order. Only the leftmost match of a
// pattern is considered; if accept rejects it the next pattern is tried.
func firstMatch(patterns []*regexp.Regexp, text string, accept func(string) (string, bool)) (string, bool) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		candidate := m[0]
		if len(m) > 1 {
			candidate = m[1]
		}
		if v, ok := accept(candidate); ok {
			return v, true
		}
	}
	return "", false
}

func acceptAny(s string) (string, bool) { return s, true }

func normalizeAccount(s string) (string, bool) {
	v := accountStrip.ReplaceAllString(s, "")
	if len(v) < minAccountDigits {
		return "", false
	}
	return v, true
}

func normalizeBalance(s string) (string, bool) {
	v := balanceStrip.ReplaceAllString(s, "")
	d, err := decimal.NewFromString(v)
	if err != nil {
		return "", false
	}
	return d.String(), true
}
