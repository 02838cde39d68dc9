package ocr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bankscan/internal/config"
)

func TestAliyunOCR_Recognize(t *testing.T) {
	var srvHost string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "RecognizeGeneral", r.Header.Get("x-acs-action"))
		assert.Equal(t, "2021-07-07", r.Header.Get("x-acs-version"))
		assert.Equal(t, "2024-01-02T03:04:05Z", r.Header.Get("x-acs-date"))
		assert.Equal(t, "nonce-1", r.Header.Get("x-acs-signature-nonce"))
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, testPayload().Data, body)
		assert.Equal(t, sha256Hex(body), r.Header.Get("x-acs-content-sha256"))

		expected := signACS3("akid", "secret", map[string]string{
			"host":                  srvHost,
			"content-type":          "application/octet-stream",
			"x-acs-action":          "RecognizeGeneral",
			"x-acs-version":         "2021-07-07",
			"x-acs-date":            "2024-01-02T03:04:05Z",
			"x-acs-signature-nonce": "nonce-1",
			"x-acs-content-sha256":  sha256Hex(body),
		})
		assert.Equal(t, expected, r.Header.Get("Authorization"))

		data, _ := json.Marshal(map[string]any{
			"content": "中国农业银行 可用余额: 437.07",
			"prism_wordsInfo": []map[string]any{
				{"word": "中国农业银行", "prob": 99},
				{"word": "噪", "prob": 12},
				{"word": "可用余额: 437.07", "prob": 95},
			},
		})
		json.NewEncoder(w).Encode(map[string]any{"RequestId": "r-1", "Data": string(data)}) //nolint:errcheck
	}))
	defer srv.Close()
	u, _ := url.Parse(srv.URL)
	srvHost = u.Host

	a := NewAliyun(config.AliyunConfig{
		ProviderCommon:  enabled(0.8),
		AccessKeyID:     "akid",
		AccessKeySecret: "secret",
		Endpoint:        srv.URL,
	})
	a.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	a.nonce = func() string { return "nonce-1" }

	frags, err := a.Recognize(context.Background(), testPayload())
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, "中国农业银行", frags[0].Text)
	assert.InDelta(t, 0.99, frags[0].Confidence, 0.0001)
	assert.Equal(t, "可用余额: 437.07", frags[1].Text)
	assert.Equal(t, "aliyun", frags[1].SourceEngine)
}

func TestAliyunOCR_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"RequestId":"r-2","Code":"InvalidImage","Message":"image broken"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	a := NewAliyun(config.AliyunConfig{ProviderCommon: enabled(0.8), AccessKeyID: "a", AccessKeySecret: "s", Endpoint: srv.URL})
	_, err := a.Recognize(context.Background(), testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aliyun API returned 400")
}

func TestNewAliyun_BareHostEndpoint(t *testing.T) {
	a := NewAliyun(config.AliyunConfig{Endpoint: "ocr-api.cn-hangzhou.aliyuncs.com"})
	assert.Equal(t, "https://ocr-api.cn-hangzhou.aliyuncs.com", a.cfg.Endpoint)
}

func TestSignACS3_SortsHeaders(t *testing.T) {
	auth := signACS3("akid", "secret", map[string]string{
		"x-acs-date":           "d",
		"host":                 "h",
		"x-acs-content-sha256": "abc",
	})
	assert.True(t, strings.HasPrefix(auth, "ACS3-HMAC-SHA256 Credential=akid,SignedHeaders=host;x-acs-content-sha256;x-acs-date,Signature="), auth)
}
