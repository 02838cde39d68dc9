package report

import (
	"html/template"
	"io"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bankscan/internal/model"
)

// HTMLTitle is the page title of the HTML export.
const HTMLTitle = "银行截图识别结果报告"

var htmlTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"or2": firstNonEmpty,
}).Parse(`<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
body { font-family: 'Microsoft YaHei', Arial, sans-serif; margin: 20px; }
.container { max-width: 1200px; margin: 0 auto; background: white; padding: 20px; }
h1 { color: #333; text-align: center; border-bottom: 3px solid #007bff; padding-bottom: 10px; }
table { width: 100%; border-collapse: collapse; margin-top: 20px; }
th, td { border: 1px solid #ddd; padding: 12px; text-align: left; }
th { background-color: #007bff; color: white; }
tr:nth-child(even) { background-color: #f9f9f9; }
.FAILED { color: #c0392b; }
</style>
</head>
<body>
<div class="container">
<h1>{{.Title}}</h1>
<p><strong>批次:</strong> {{.BatchID}}</p>
<p><strong>处理时间:</strong> {{.GeneratedAt}}</p>
<p><strong>总处理文件数:</strong> {{.Summary.Total}} (成功 {{.Summary.Succeeded}}, 失败 {{.Summary.Failed}}, 匹配 {{.Summary.Matched}})</p>
<table>
<thead>
<tr><th>图像文件</th><th>银行名称</th><th>公司名称</th><th>银行账号</th><th>账户余额</th><th>验证状态</th><th>状态</th></tr>
</thead>
<tbody>
{{- range .Rows}}
<tr class="{{.Status}}"><td>{{.Image}}</td><td>{{or2 .Bank .BankDB}}</td><td>{{or2 .Company .CompanyDB}}</td><td>{{or2 .Account .AccountDB}}</td><td>{{.Balance}}</td><td>{{.Validation}}</td><td>{{.Status}}{{if .Error}}: {{.Error}}{{end}}</td></tr>
{{- end}}
</tbody>
</table>
</div>
</body>
</html>
`))

type htmlView struct {
	Title       string
	BatchID     string
	GeneratedAt string
	Summary     model.BatchSummary
	Rows        []row
}

// WriteHTML writes the batch as a standalone HTML page to w. Bank, company
// and account columns fall back to the ledger values when OCR found nothing.
func WriteHTML(w io.Writer, b *model.Batch) error {
	rs, err := rows(b)
	if err != nil {
		return err
	}

	created := b.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	view := htmlView{
		Title:       HTMLTitle,
		BatchID:     b.ID,
		GeneratedAt: created.Local().Format("2006年01月02日 15:04:05"),
		Summary:     b.Summary(),
		Rows:        rs,
	}
	if err := htmlTmpl.Execute(w, view); err != nil {
		return eris.Wrap(err, "report: render html")
	}
	return nil
}
