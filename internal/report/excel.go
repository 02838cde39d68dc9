package report

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/bankscan/internal/model"
)

// SheetName is the worksheet written by WriteExcel.
const SheetName = "识别结果"

// ExcelHeaders are the column titles of the Excel export, in order.
var ExcelHeaders = []string{
	"图像文件", "银行名称", "公司名称", "银行账号", "账户余额",
	"数据库银行名称", "数据库公司名称", "数据库账号", "验证状态", "置信度",
	"处理时间", "耗时(秒)", "状态", "错误",
}

// WriteExcel writes the batch as an xlsx workbook to w.
func WriteExcel(w io.Writer, b *model.Batch) error {
	rs, err := rows(b)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return eris.Wrap(err, "report: rename sheet")
	}

	header := make([]any, len(ExcelHeaders))
	for i, h := range ExcelHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return eris.Wrap(err, "report: write header")
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return eris.Wrap(err, "report: header style")
	}
	last, _ := excelize.CoordinatesToCellName(len(ExcelHeaders), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return eris.Wrap(err, "report: apply header style")
	}

	for i, r := range rs {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := excelRow(r)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return eris.Wrapf(err, "report: write row %d", i+2)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(ExcelHeaders))
	if err := f.SetColWidth(SheetName, "A", lastCol, 18); err != nil {
		return eris.Wrap(err, "report: column width")
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write workbook")
	}
	return nil
}

// excelRow keeps numbers numeric so spreadsheets can sum them.
func excelRow(r row) []any {
	var balance any = ""
	if r.balance != nil {
		balance = *r.balance
	}
	var confidence any = ""
	if r.record.Succeeded() {
		confidence = r.record.ExtractionConfidence
	}
	return []any{
		r.Image, r.Bank, r.Company, r.Account, balance,
		r.BankDB, r.CompanyDB, r.AccountDB, r.Validation, confidence,
		r.ExtractedAt, r.record.ProcessingTime, r.Status, r.Error,
	}
}
