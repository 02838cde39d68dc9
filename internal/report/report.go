// Package report renders batches as Excel workbooks and HTML pages.
package report

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bankscan/internal/model"
)

// ErrEmptyBatch is returned when there is nothing to export.
var ErrEmptyBatch = eris.New("report: batch has no records")

const (
	filePrefix = "银行截图识别结果"
	timeLayout = "2006-01-02 15:04:05"
)

// Filename returns the download name for a batch export, e.g.
// "银行截图识别结果_<id>.xlsx".
func Filename(batchID, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if batchID == "" {
		return filePrefix + "." + ext
	}
	return fmt.Sprintf("%s_%s.%s", filePrefix, batchID, ext)
}

// row is the flattened, nil-free view of a record shared by both renderers.
type row struct {
	Image          string
	Bank           string
	Company        string
	Account        string
	Balance        string
	BankDB         string
	CompanyDB      string
	AccountDB      string
	Validation     string
	Confidence     string
	ExtractedAt    string
	ProcessingTime string
	Status         string
	Error          string

	balance *float64
	record  model.ExtractedRecord
}

func toRow(r model.ExtractedRecord) row {
	out := row{
		Image:       filepath.Base(r.ImageReference),
		Bank:        model.StringValue(r.BankName),
		Company:     model.StringValue(r.CompanyName),
		Account:     model.StringValue(r.AccountNumber),
		BankDB:      model.StringValue(r.BankNameDB),
		CompanyDB:   model.StringValue(r.CompanyNameDB),
		AccountDB:   model.StringValue(r.AccountNumberDB),
		Validation:  string(r.ValidationStatus),
		Status:      string(r.Status),
		Error:       r.Error,
		balance:     r.Balance,
		record:      r,
	}
	if r.Balance != nil {
		out.Balance = strconv.FormatFloat(*r.Balance, 'f', 2, 64)
	}
	if r.Succeeded() {
		out.Confidence = strconv.FormatFloat(r.ExtractionConfidence, 'f', 2, 64)
	}
	if !r.ExtractedAt.IsZero() {
		out.ExtractedAt = r.ExtractedAt.Local().Format(timeLayout)
	}
	out.ProcessingTime = strconv.FormatFloat(r.ProcessingTime, 'f', 2, 64)
	return out
}

func rows(b *model.Batch) ([]row, error) {
	if b == nil || len(b.Records) == 0 {
		return nil, ErrEmptyBatch
	}
	out := make([]row, len(b.Records))
	for i, r := range b.Records {
		out[i] = toRow(r)
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
