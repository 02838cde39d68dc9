package ledger

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"

	"github.com/sells-group/bankscan/internal/model"
)

// MatchMode selects how an account number is looked up in the ledger.
type MatchMode string

const (
	// MatchSubstring scans every cell of every row for the account number.
	MatchSubstring MatchMode = "substring"
	// MatchAccountColumn looks the normalized account number up in an index
	// built over the columns classified as account columns.
	MatchAccountColumn MatchMode = "account_column"
)

// ParseMatchMode maps a config value to a MatchMode, defaulting to substring.
func ParseMatchMode(s string) MatchMode {
	if MatchMode(s) == MatchAccountColumn {
		return MatchAccountColumn
	}
	return MatchSubstring
}

// Validator cross-checks extracted records against a Ledger. It is safe for
// concurrent use once built.
type Validator struct {
	ledger *Ledger
	kinds  []ColumnKind
	mode   MatchMode
	index  map[string]int
}

// NewValidator builds a validator. In account_column mode a ledger without
// any account column falls back to substring matching.
func NewValidator(l *Ledger, mode MatchMode) *Validator {
	if l == nil {
		l = &Ledger{}
	}
	v := &Validator{
		ledger: l,
		kinds:  l.ClassifyColumns(),
		mode:   mode,
	}

	if mode == MatchAccountColumn && !l.Empty() {
		v.index = v.buildIndex()
		if v.index == nil {
			zap.L().Warn("ledger: no account column, falling back to substring matching",
				zap.Strings("columns", l.Columns),
			)
			v.mode = MatchSubstring
		}
	}
	return v
}

// Mode returns the effective match mode.
func (v *Validator) Mode() MatchMode {
	return v.mode
}

// Rows returns the number of ledger rows.
func (v *Validator) Rows() int {
	return len(v.ledger.Rows)
}

func (v *Validator) buildIndex() map[string]int {
	var cols []int
	for j, k := range v.kinds {
		if k == ColumnAccount {
			cols = append(cols, j)
		}
	}
	if len(cols) == 0 {
		return nil
	}

	idx := make(map[string]int, len(v.ledger.Rows))
	for i := range v.ledger.Rows {
		for _, j := range cols {
			key := normalizeAccount(v.ledger.Cell(i, j))
			if key == "" {
				continue
			}
			if _, dup := idx[key]; !dup {
				idx[key] = i
			}
		}
	}
	return idx
}

// Validate returns a copy of rec with the validation fields set. It never
// panics; lookup failures surface as ValidationError.
func (v *Validator) Validate(rec model.ExtractedRecord) (out model.ExtractedRecord) {
	out = rec
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("ledger: validation panicked",
				zap.String("image", rec.ImageReference),
				zap.Any("panic", r),
			)
			out = rec
			out.ValidationStatus = model.ValidationError
		}
	}()

	if v.ledger.Empty() {
		out.ValidationStatus = model.ValidationNoDatabase
		return out
	}
	if rec.AccountNumber == nil || *rec.AccountNumber == "" {
		out.ValidationStatus = model.ValidationNoAccount
		return out
	}

	row, ok := v.lookup(*rec.AccountNumber)
	if !ok {
		out.ValidationStatus = model.ValidationNotFound
		return out
	}

	v.copyRow(&out, row)
	out.ValidationStatus = model.ValidationMatched
	if out.CompanyName != nil && out.CompanyNameDB != nil {
		match := companiesMatch(*out.CompanyName, *out.CompanyNameDB)
		out.CompanyNameMatch = &match
	}
	return out
}

func (v *Validator) lookup(account string) (int, bool) {
	if v.mode == MatchAccountColumn {
		row, ok := v.index[normalizeAccount(account)]
		return row, ok
	}

	for i, row := range v.ledger.Rows {
		for _, cell := range row {
			if strings.Contains(cell, account) {
				return i, true
			}
		}
	}
	return 0, false
}

// copyRow fills the *_db fields from the matched row. Later columns of the
// same kind overwrite earlier ones.
func (v *Validator) copyRow(rec *model.ExtractedRecord, i int) {
	for j, kind := range v.kinds {
		val := v.ledger.Cell(i, j)
		switch kind {
		case ColumnCompany:
			rec.CompanyNameDB = model.Ptr(val)
		case ColumnBank:
			rec.BankNameDB = model.Ptr(val)
		case ColumnAccount:
			rec.AccountNumberDB = model.Ptr(val)
		}
	}
}

func companiesMatch(extracted, ledger string) bool {
	a, b := strings.TrimSpace(extracted), strings.TrimSpace(ledger)
	if a == "" || b == "" {
		return false
	}
	return fuzzy.MatchNormalizedFold(a, b) || fuzzy.MatchNormalizedFold(b, a)
}

func normalizeAccount(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '\t':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
