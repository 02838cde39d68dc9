// Package ledger loads the reference table of known company bank accounts
// and validates extracted records against it.
package ledger

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// DefaultSheet is the worksheet preferred when loading an xlsx ledger.
const DefaultSheet = "bank"

// Ledger is a schema-agnostic table: named columns and stringified rows.
// Rows may be shorter than Columns when trailing cells are blank.
type Ledger struct {
	Columns []string
	Rows    [][]string
}

// Empty reports whether the ledger has no data rows.
func (l *Ledger) Empty() bool {
	return l == nil || len(l.Rows) == 0
}

// Cell returns the value at row i, column j, or "" when the row is short.
func (l *Ledger) Cell(i, j int) string {
	row := l.Rows[i]
	if j >= len(row) {
		return ""
	}
	return row[j]
}

// LoadOptions configures Load.
type LoadOptions struct {
	Sheet string // preferred xlsx sheet; defaults to DefaultSheet
}

// Load reads a ledger from an .xlsx or .csv file. The first row holds the
// column names. A missing file yields an empty ledger and no error.
func Load(path string, opts LoadOptions) (*Ledger, error) {
	if path == "" {
		return &Ledger{}, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			zap.L().Warn("ledger: file not found, validation disabled", zap.String("path", path))
			return &Ledger{}, nil
		}
		return nil, eris.Wrap(err, "ledger: stat file")
	}

	var (
		l   *Ledger
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		l, err = readXLSX(path, opts)
	case ".csv":
		l, err = readCSVFile(path)
	default:
		return nil, eris.Errorf("ledger: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("ledger loaded",
		zap.String("path", path),
		zap.Int("columns", len(l.Columns)),
		zap.Int("rows", len(l.Rows)),
	)
	return l, nil
}

// LoadOrEmpty loads the ledger and logs instead of failing.
func LoadOrEmpty(path string, opts LoadOptions) *Ledger {
	l, err := Load(path, opts)
	if err != nil {
		zap.L().Warn("ledger: load failed, using empty ledger", zap.String("path", path), zap.Error(err))
		return &Ledger{}
	}
	return l
}

// ReadCSV parses a CSV ledger from r.
func ReadCSV(r io.Reader) (*Ledger, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "ledger: read csv")
	}
	return fromRows(rows), nil
}

func readCSVFile(path string) (*Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: open csv")
	}
	defer f.Close() //nolint:errcheck

	return ReadCSV(f)
}

func readXLSX(path string, opts LoadOptions) (*Ledger, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: open xlsx")
	}

	sheet := pickSheet(f, opts.Sheet)
	if sheet == nil {
		return &Ledger{}, nil
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return fromRows(rows), nil
}

func pickSheet(f *xlsx.File, name string) *xlsx.Sheet {
	if name == "" {
		name = DefaultSheet
	}
	if sheet, ok := f.Sheet[name]; ok {
		return sheet
	}
	if len(f.Sheets) == 0 {
		return nil
	}
	return f.Sheets[0]
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cellString(cell)
	}
	return cells
}

// cellString renders integral numeric cells in plain digits. The formatted
// value of a General cell holding a long account number is scientific
// notation.
func cellString(cell *xlsx.Cell) string {
	if cell.Type() == xlsx.CellTypeNumeric {
		raw := strings.TrimSpace(cell.Value)
		if _, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return raw
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1e21 {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return cell.String()
}

// fromRows splits the header off and drops rows with no content.
func fromRows(rows [][]string) *Ledger {
	if len(rows) == 0 {
		return &Ledger{}
	}

	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		header[i] = strings.TrimSpace(name)
	}

	l := &Ledger{Columns: header}
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		l.Rows = append(l.Rows, row)
	}
	return l
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
