package ocr

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bankscan/internal/config"
	"github.com/sells-group/bankscan/internal/model"
	"github.com/sells-group/bankscan/internal/preprocess"
)

const (
	tencentEndpoint    = "https://ocr.tencentcloudapi.com"
	tencentService     = "ocr"
	tencentVersion     = "2018-11-19"
	tencentAction      = "GeneralBasicOCR"
	tencentContentType = "application/json; charset=utf-8"
)

// TencentOCR recognizes screenshots with Tencent Cloud GeneralBasicOCR,
// signing each request with TC3-HMAC-SHA256.
type TencentOCR struct {
	cfg    config.TencentConfig
	client *http.Client
	now    func() time.Time
}

// NewTencent creates a TencentOCR provider.
func NewTencent(cfg config.TencentConfig) *TencentOCR {
	if cfg.Endpoint == "" {
		cfg.Endpoint = tencentEndpoint
	}
	return &TencentOCR{cfg: cfg, client: &http.Client{Timeout: recognizeTimeout}, now: time.Now}
}

type tencentRequest struct {
	ImageBase64 string `json:"ImageBase64"`
}

type tencentResponse struct {
	Response struct {
		TextDetections []struct {
			DetectedText string  `json:"DetectedText"`
			Confidence   float64 `json:"Confidence"`
		} `json:"TextDetections"`
		Error *struct {
			Code    string `json:"Code"`
			Message string `json:"Message"`
		} `json:"Error"`
		RequestID string `json:"RequestId"`
	} `json:"Response"`
}

// ID implements Provider.
func (t *TencentOCR) ID() model.ProviderID { return model.ProviderTencent }

// Enabled implements Provider.
func (t *TencentOCR) Enabled() bool { return t.cfg.Enabled && t.cfg.Configured() }

// Recognize implements Provider. Confidence is reported on a 0-100 scale.
func (t *TencentOCR) Recognize(ctx context.Context, payload preprocess.Payload) ([]model.TextFragment, error) {
	if !t.Enabled() {
		return nil, nil
	}

	body, err := json.Marshal(tencentRequest{ImageBase64: payload.Base64()})
	if err != nil {
		return nil, eris.Wrap(err, "ocr: marshal tencent request")
	}

	endpoint, err := url.Parse(t.cfg.Endpoint)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: parse tencent endpoint")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create tencent request")
	}

	ts := t.now().Unix()
	req.Header.Set("Content-Type", tencentContentType)
	req.Header.Set("X-TC-Action", tencentAction)
	req.Header.Set("X-TC-Version", tencentVersion)
	req.Header.Set("X-TC-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-TC-Region", t.cfg.Region)
	req.Header.Set("Authorization", signTC3(t.cfg.SecretID, t.cfg.SecretKey, endpoint.Host, body, ts))

	var resp tencentResponse
	if err := doJSON(t.client, req, "tencent", &resp); err != nil {
		return nil, err
	}
	if e := resp.Response.Error; e != nil {
		return nil, eris.Errorf("ocr: tencent error %s: %s", e.Code, e.Message)
	}

	frags := make([]model.TextFragment, 0, len(resp.Response.TextDetections))
	for _, d := range resp.Response.TextDetections {
		frags = append(frags, model.TextFragment{
			Text:         d.DetectedText,
			Confidence:   d.Confidence / 100,
			SourceEngine: string(model.ProviderTencent),
		})
	}
	return filterByConfidence(frags, t.cfg.ConfidenceThreshold), nil
}

// signTC3 builds the TC3-HMAC-SHA256 Authorization header value.
func signTC3(secretID, secretKey, host string, payload []byte, ts int64) string {
	const signedHeaders = "content-type;host"

	canonicalRequest := fmt.Sprintf("POST\n/\n\ncontent-type:%s\nhost:%s\n\n%s\n%s",
		tencentContentType, host, signedHeaders, sha256Hex(payload))

	date := time.Unix(ts, 0).UTC().Format("2006-01-02")
	scope := date + "/" + tencentService + "/tc3_request"
	stringToSign := fmt.Sprintf("TC3-HMAC-SHA256\n%d\n%s\n%s", ts, scope, sha256Hex([]byte(canonicalRequest)))

	secretDate := hmacSHA256([]byte("TC3"+secretKey), date)
	secretService := hmacSHA256(secretDate, tencentService)
	secretSigning := hmacSHA256(secretService, "tc3_request")
	signature := hex.EncodeToString(hmacSHA256(secretSigning, stringToSign))

	return fmt.Sprintf("TC3-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		secretID, scope, signedHeaders, signature)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, msg string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(msg)) //nolint:errcheck
	return h.Sum(nil)
}
