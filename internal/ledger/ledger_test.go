package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/bankscan/internal/model"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string, order ...string) string {
	t.Helper()
	f := xlsx.NewFile()
	if len(order) == 0 {
		for name := range sheets {
			order = append(order, name)
		}
	}
	for _, name := range order {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range sheets[name] {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestLoad_XLSXPrefersBankSheet(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Summary": {{"note"}, {"ignore me"}},
		"bank": {
			{"公司名称", "开户银行", "银行账号"},
			{"陕西天天出行科技有限公司", "中国农业银行", "26110101040028585"},
		},
	}, "Summary", "bank")

	l, err := Load(path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"公司名称", "开户银行", "银行账号"}, l.Columns)
	require.Len(t, l.Rows, 1)
	assert.Equal(t, "26110101040028585", l.Cell(0, 2))
}

func TestLoad_XLSXFallsBackToFirstSheet(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Accounts": {{"company", "account"}, {"Acme Ltd", "1234567890"}},
		"Other":    {{"x"}, {"y"}},
	}, "Accounts", "Other")

	l, err := Load(path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"company", "account"}, l.Columns)
	require.Len(t, l.Rows, 1)
}

func TestLoad_XLSXNamedSheet(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"bank":  {{"a"}, {"1"}},
		"2025": {{"b"}, {"2"}, {"3"}},
	}, "bank", "2025")

	l, err := Load(path, LoadOptions{Sheet: "2025"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, l.Columns)
	assert.Len(t, l.Rows, 2)
}

func TestLoad_XLSXNumericAccountCells(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("bank")
	require.NoError(t, err)

	header := sheet.AddRow()
	header.AddCell().SetString("公司名称")
	header.AddCell().SetString("账号")

	row := sheet.AddRow()
	row.AddCell().SetString("福州续航科技有限公司")
	row.AddCell().SetInt64(6222021234567890)

	path := filepath.Join(t.TempDir(), "numeric.xlsx")
	require.NoError(t, f.Save(path))

	l, err := Load(path, LoadOptions{})
	require.NoError(t, err)
	require.Len(t, l.Rows, 1)
	assert.Equal(t, "6222021234567890", l.Cell(0, 1))

	for _, mode := range []MatchMode{MatchSubstring, MatchAccountColumn} {
		out := NewValidator(l, mode).Validate(record(model.Ptr("6222021234567890")))
		assert.Equal(t, model.ValidationMatched, out.ValidationStatus, mode)
		assert.Equal(t, "6222021234567890", model.StringValue(out.AccountNumberDB), mode)
	}
}

func TestLoad_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	content := "company,bank,account\n福州续航科技有限公司,中国建设银行,35050188000000000123\n\n,,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	l, err := Load(path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"company", "bank", "account"}, l.Columns)
	require.Len(t, l.Rows, 1, "blank rows are dropped")
	assert.Equal(t, "中国建设银行", l.Cell(0, 1))
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	l, err := Load(filepath.Join(t.TempDir(), "nope.xlsx"), LoadOptions{})
	require.NoError(t, err)
	assert.True(t, l.Empty())
}

func TestLoad_EmptyPath(t *testing.T) {
	l, err := Load("", LoadOptions{})
	require.NoError(t, err)
	assert.True(t, l.Empty())
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := Load(path, LoadOptions{})
	assert.Error(t, err)
}

func TestLoad_CorruptXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := Load(path, LoadOptions{})
	assert.Error(t, err)

	l := LoadOrEmpty(path, LoadOptions{})
	assert.True(t, l.Empty())
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	l, err := ReadCSV(strings.NewReader("company,account\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"company", "account"}, l.Columns)
	assert.True(t, l.Empty())
}

func TestReadCSV_RaggedRows(t *testing.T) {
	l, err := ReadCSV(strings.NewReader("a,b,c\n1\n"))
	require.NoError(t, err)
	require.Len(t, l.Rows, 1)
	assert.Equal(t, "1", l.Cell(0, 0))
	assert.Equal(t, "", l.Cell(0, 2))
}

func TestClassifyColumn(t *testing.T) {
	tests := []struct {
		name string
		want ColumnKind
	}{
		{"公司名称", ColumnCompany},
		{"Company Name", ColumnCompany},
		{"开户银行", ColumnBank},
		{"BANK", ColumnBank},
		{"银行账号", ColumnBank},
		{"账号", ColumnAccount},
		{"Account No", ColumnAccount},
		{"公司银行账号", ColumnCompany},
		{"备注", ColumnOther},
		{"", ColumnOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyColumn(tt.name))
		})
	}
}

func TestColumnKind_String(t *testing.T) {
	assert.Equal(t, "company", ColumnCompany.String())
	assert.Equal(t, "bank", ColumnBank.String())
	assert.Equal(t, "account", ColumnAccount.String())
	assert.Equal(t, "other", ColumnOther.String())
}
