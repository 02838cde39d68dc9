package ledger

import "strings"

// ColumnKind is the role a ledger column plays in validation.
type ColumnKind int

// Column kinds recognised by ClassifyColumn.
const (
	ColumnOther ColumnKind = iota
	ColumnCompany
	ColumnBank
	ColumnAccount
)

func (k ColumnKind) String() string {
	switch k {
	case ColumnCompany:
		return "company"
	case ColumnBank:
		return "bank"
	case ColumnAccount:
		return "account"
	default:
		return "other"
	}
}

// ClassifyColumn guesses a column's role from its name. Company is checked
// before bank so "公司银行" style headers resolve to company.
func ClassifyColumn(name string) ColumnKind {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(name, "公司") || strings.Contains(lower, "company"):
		return ColumnCompany
	case strings.Contains(name, "银行") || strings.Contains(lower, "bank"):
		return ColumnBank
	case strings.Contains(name, "账号") || strings.Contains(lower, "account"):
		return ColumnAccount
	default:
		return ColumnOther
	}
}

// ClassifyColumns classifies every column of the ledger.
func (l *Ledger) ClassifyColumns() []ColumnKind {
	kinds := make([]ColumnKind, len(l.Columns))
	for i, c := range l.Columns {
		kinds[i] = ClassifyColumn(c)
	}
	return kinds
}
