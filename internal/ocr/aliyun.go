package ocr

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bankscan/internal/config"
	"github.com/sells-group/bankscan/internal/model"
	"github.com/sells-group/bankscan/internal/preprocess"
)

const (
	aliyunEndpoint = "https://ocr-api.cn-hangzhou.aliyuncs.com"
	aliyunAction   = "RecognizeGeneral"
	aliyunVersion  = "2021-07-07"
)

// AliyunOCR recognizes screenshots with Alibaba Cloud RecognizeGeneral,
// signing each request with ACS3-HMAC-SHA256.
type AliyunOCR struct {
	cfg    config.AliyunConfig
	client *http.Client
	now    func() time.Time
	nonce  func() string
}

// NewAliyun creates an AliyunOCR provider.
func NewAliyun(cfg config.AliyunConfig) *AliyunOCR {
	if cfg.Endpoint == "" {
		cfg.Endpoint = aliyunEndpoint
	}
	if !strings.Contains(cfg.Endpoint, "://") {
		cfg.Endpoint = "https://" + cfg.Endpoint
	}
	return &AliyunOCR{
		cfg:    cfg,
		client: &http.Client{Timeout: recognizeTimeout},
		now:    time.Now,
		nonce:  uuid.NewString,
	}
}

type aliyunResponse struct {
	RequestID string `json:"RequestId"`
	Data      string `json:"Data"`
	Code      string `json:"Code"`
	Message   string `json:"Message"`
}

type aliyunData struct {
	Content   string `json:"content"`
	WordsInfo []struct {
		Word string  `json:"word"`
		Prob float64 `json:"prob"`
	} `json:"prism_wordsInfo"`
}

// ID implements Provider.
func (a *AliyunOCR) ID() model.ProviderID { return model.ProviderAliyun }

// Enabled implements Provider.
func (a *AliyunOCR) Enabled() bool { return a.cfg.Enabled && a.cfg.Configured() }

// Recognize implements Provider. The image is sent as the raw request body.
func (a *AliyunOCR) Recognize(ctx context.Context, payload preprocess.Payload) ([]model.TextFragment, error) {
	if !a.Enabled() {
		return nil, nil
	}

	endpoint, err := url.Parse(a.cfg.Endpoint)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: parse aliyun endpoint")
	}
	endpoint.Path = "/"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload.Data))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create aliyun request")
	}

	headers := map[string]string{
		"host":                  endpoint.Host,
		"content-type":          "application/octet-stream",
		"x-acs-action":          aliyunAction,
		"x-acs-version":         aliyunVersion,
		"x-acs-date":            a.now().UTC().Format("2006-01-02T15:04:05Z"),
		"x-acs-signature-nonce": a.nonce(),
		"x-acs-content-sha256":  sha256Hex(payload.Data),
	}
	for k, v := range headers {
		if k != "host" {
			req.Header.Set(k, v)
		}
	}
	req.Header.Set("Authorization", signACS3(a.cfg.AccessKeyID, a.cfg.AccessKeySecret, headers))

	var resp aliyunResponse
	if err := doJSON(a.client, req, "aliyun", &resp); err != nil {
		return nil, err
	}
	if resp.Data == "" {
		if resp.Code != "" {
			return nil, eris.Errorf("ocr: aliyun error %s: %s", resp.Code, resp.Message)
		}
		return nil, nil
	}

	var data aliyunData
	if err := json.Unmarshal([]byte(resp.Data), &data); err != nil {
		return nil, eris.Wrap(err, "ocr: unmarshal aliyun data")
	}

	frags := make([]model.TextFragment, 0, len(data.WordsInfo))
	for _, w := range data.WordsInfo {
		frags = append(frags, model.TextFragment{
			Text:         w.Word,
			Confidence:   w.Prob / 100,
			SourceEngine: string(model.ProviderAliyun),
		})
	}
	return filterByConfidence(frags, a.cfg.ConfidenceThreshold), nil
}

// signACS3 builds the ACS3-HMAC-SHA256 Authorization header value over the
// given lowercase headers. The request path is "/" with no query.
func signACS3(accessKeyID, secret string, headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var canonicalHeaders strings.Builder
	for _, k := range keys {
		canonicalHeaders.WriteString(k + ":" + strings.TrimSpace(headers[k]) + "\n")
	}
	signedHeaders := strings.Join(keys, ";")

	canonicalRequest := strings.Join([]string{
		http.MethodPost,
		"/",
		"",
		canonicalHeaders.String(),
		signedHeaders,
		headers["x-acs-content-sha256"],
	}, "\n")

	stringToSign := "ACS3-HMAC-SHA256\n" + sha256Hex([]byte(canonicalRequest))
	signature := hex.EncodeToString(hmacSHA256([]byte(secret), stringToSign))

	return "ACS3-HMAC-SHA256 Credential=" + accessKeyID +
		",SignedHeaders=" + signedHeaders +
		",Signature=" + signature
}
