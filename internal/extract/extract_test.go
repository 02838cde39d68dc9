package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bankscan/internal/config"
	"github.com/sells-group/bankscan/internal/model"
)

func newDefault(t *testing.T) *Extractor {
	t.Helper()
	e, err := New(config.DefaultRules())
	require.NoError(t, err)
	return e
}

func frags(conf float64, texts ...string) []model.TextFragment {
	out := make([]model.TextFragment, len(texts))
	for i, s := range texts {
		out[i] = model.TextFragment{Text: s, Confidence: conf, SourceEngine: "test"}
	}
	return out
}

func TestExtract_ABCScreenshot(t *testing.T) {
	in := []model.TextFragment{
		{Text: "中国农业银行", Confidence: 0.95},
		{Text: "陕西天天出行科技有限公司", Confidence: 0.92},
		{Text: "72120078801000002112", Confidence: 0.98},
		{Text: "可用余额: 437.07", Confidence: 0.90},
	}

	r := newDefault(t).Extract(in)

	require.NotNil(t, r.BankName)
	assert.Equal(t, "中国农业银行", *r.BankName)
	require.NotNil(t, r.CompanyName)
	assert.Equal(t, "陕西天天出行科技有限公司", *r.CompanyName)
	require.NotNil(t, r.AccountNumber)
	assert.Equal(t, "72120078801000002112", *r.AccountNumber)
	require.NotNil(t, r.Balance)
	assert.InDelta(t, 437.07, *r.Balance, 0.0001)
	assert.InDelta(t, (0.95+0.92+0.98+0.90)/4, r.Confidence, 0.0001)
}

func TestExtract_CCBAndSPDB(t *testing.T) {
	e := newDefault(t)

	ccb := e.Extract(frags(0.9, "中国建设银行", "陕西天天欧姆新能源有限公司", "61050186550000000455", "账户余额: 2777.99"))
	assert.Equal(t, "中国建设银行", model.StringValue(ccb.BankName))
	assert.Equal(t, "陕西天天欧姆新能源有限公司", model.StringValue(ccb.CompanyName))
	assert.Equal(t, "61050186550000000455", model.StringValue(ccb.AccountNumber))
	require.NotNil(t, ccb.Balance)
	assert.InDelta(t, 2777.99, *ccb.Balance, 0.0001)

	spdb := e.Extract(frags(0.9, "上海浦东发展银行", "福州续航科技有限公司", "35050187390000000449", "余额: 8888.88"))
	assert.Equal(t, "上海浦东发展银行", model.StringValue(spdb.BankName))
	assert.Equal(t, "福州续航科技有限公司", model.StringValue(spdb.CompanyName))
	require.NotNil(t, spdb.Balance)
	assert.InDelta(t, 8888.88, *spdb.Balance, 0.0001)
}

func TestExtract_GroupedAccountNumber(t *testing.T) {
	r := newDefault(t).Extract(frags(0.9, "账号: 1234 5678 9012 3456"))
	assert.Equal(t, "1234567890123456", model.StringValue(r.AccountNumber))
}

func TestExtract_DashedAccountNumber(t *testing.T) {
	r := newDefault(t).Extract(frags(0.9, "卡号 6222-0212-3456-7890"))
	assert.Equal(t, "6222021234567890", model.StringValue(r.AccountNumber))
}

func TestExtract_ShortAccountRejected(t *testing.T) {
	r := newDefault(t).Extract(frags(0.9, "账号 12345"))
	assert.Nil(t, r.AccountNumber)
}

func TestExtract_SeparatedShortAccountRejected(t *testing.T) {
	r := newDefault(t).Extract(frags(0.9, "卡号: 123 456"))
	assert.Nil(t, r.AccountNumber)
}

func TestExtract_SeparatedAccountStripped(t *testing.T) {
	r := newDefault(t).Extract(frags(0.9, "卡号: 6222 0212 3456 7890"))
	require.NotNil(t, r.AccountNumber)
	assert.Equal(t, "6222021234567890", *r.AccountNumber)
}

func TestExtract_BalanceWithCurrencyAndSeparators(t *testing.T) {
	r := newDefault(t).Extract(frags(0.9, "余额: ¥1,234.50"))
	require.NotNil(t, r.Balance)
	assert.InDelta(t, 1234.5, *r.Balance, 0.0001)

	r = newDefault(t).Extract(frags(0.9, "可用余额：￥12,000"))
	require.NotNil(t, r.Balance)
	assert.InDelta(t, 12000, *r.Balance, 0.0001)
}

func TestExtract_FullWidthDigits(t *testing.T) {
	r := newDefault(t).Extract(frags(0.9, "账号：６２２２０２１２３４５６７８９０", "余额：１２３．４５"))
	assert.Equal(t, "6222021234567890", model.StringValue(r.AccountNumber))
	require.NotNil(t, r.Balance)
	assert.InDelta(t, 123.45, *r.Balance, 0.0001)
}

func TestExtract_RuleOrderWins(t *testing.T) {
	// 可用余额 is the first balance rule even though 账户余额 appears earlier.
	r := newDefault(t).Extract(frags(0.9, "账户余额: 100.00", "可用余额: 50.00"))
	require.NotNil(t, r.Balance)
	assert.InDelta(t, 50.0, *r.Balance, 0.0001)
}

func TestExtract_RejectedCandidateFallsThrough(t *testing.T) {
	e, err := New(config.RuleSet{
		AccountNumber: []string{`\d{3,5}`, `\d{10,25}`},
		Balance:       []string{`余额([,]+)`, `余额:\s*([\d.]+)`},
	})
	require.NoError(t, err)

	r := e.Extract(frags(0.9, "12345 72120078801000002112", "余额,, 余额: 9.5"))
	assert.Equal(t, "72120078801000002112", model.StringValue(r.AccountNumber))
	require.NotNil(t, r.Balance)
	assert.InDelta(t, 9.5, *r.Balance, 0.0001)
}

func TestExtract_NoGroupUsesWholeMatch(t *testing.T) {
	e, err := New(config.RuleSet{BankName: []string{`招商银行`}})
	require.NoError(t, err)

	r := e.Extract(frags(0.9, "欢迎使用招商银行"))
	assert.Equal(t, "招商银行", model.StringValue(r.BankName))
}

func TestExtract_CompanyWithLabel(t *testing.T) {
	r := newDefault(t).Extract(frags(0.9, "户名：福州续航科技有限公司"))
	assert.Equal(t, "福州续航科技有限公司", model.StringValue(r.CompanyName))
}

func TestExtract_EmptyFragments(t *testing.T) {
	r := newDefault(t).Extract(nil)
	assert.Nil(t, r.BankName)
	assert.Nil(t, r.CompanyName)
	assert.Nil(t, r.AccountNumber)
	assert.Nil(t, r.Balance)
	assert.Equal(t, 0.0, r.Confidence)
}

func TestExtract_NoMatches(t *testing.T) {
	r := newDefault(t).Extract(frags(0.5, "hello", "world"))
	assert.Nil(t, r.BankName)
	assert.Nil(t, r.AccountNumber)
	assert.InDelta(t, 0.5, r.Confidence, 0.0001)
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New(config.RuleSet{Balance: []string{`(unclosed`}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract: balance pattern 0")
}
