package ocr

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bankscan/internal/config"
	"github.com/sells-group/bankscan/internal/model"
	"github.com/sells-group/bankscan/internal/preprocess"
)

// BaiduOCR recognizes screenshots with Baidu general_basic OCR. An access
// token is fetched with client credentials and reused until it expires.
type BaiduOCR struct {
	cfg         config.BaiduConfig
	tokenClient *http.Client
	client      *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewBaidu creates a BaiduOCR provider.
func NewBaidu(cfg config.BaiduConfig) *BaiduOCR {
	return &BaiduOCR{
		cfg:         cfg,
		tokenClient: &http.Client{Timeout: tokenTimeout},
		client:      &http.Client{Timeout: recognizeTimeout},
	}
}

type baiduTokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type baiduOCRResponse struct {
	ErrorCode   int    `json:"error_code"`
	ErrorMsg    string `json:"error_msg"`
	WordsResult []struct {
		Words       string `json:"words"`
		Probability *struct {
			Average float64 `json:"average"`
		} `json:"probability"`
	} `json:"words_result"`
}

// ID implements Provider.
func (b *BaiduOCR) ID() model.ProviderID { return model.ProviderBaidu }

// Enabled implements Provider.
func (b *BaiduOCR) Enabled() bool { return b.cfg.Enabled && b.cfg.Configured() }

// Recognize implements Provider.
func (b *BaiduOCR) Recognize(ctx context.Context, payload preprocess.Payload) ([]model.TextFragment, error) {
	if !b.Enabled() {
		return nil, nil
	}

	token, err := b.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint, err := url.Parse(b.cfg.URL)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: parse baidu url")
	}
	q := endpoint.Query()
	q.Set("access_token", token)
	endpoint.RawQuery = q.Encode()

	form := url.Values{
		"image":         {payload.Base64()},
		"language_type": {"CHN_ENG"},
		"probability":   {"true"},
	}

	ctx, cancel := context.WithTimeout(ctx, recognizeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create baidu request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp baiduOCRResponse
	if err := doJSON(b.client, req, "baidu", &resp); err != nil {
		return nil, err
	}
	if resp.ErrorCode != 0 {
		return nil, eris.Errorf("ocr: baidu error %d: %s", resp.ErrorCode, resp.ErrorMsg)
	}

	frags := make([]model.TextFragment, 0, len(resp.WordsResult))
	scored := false
	for _, w := range resp.WordsResult {
		conf := defaultConfidence
		if w.Probability != nil {
			conf = w.Probability.Average
			scored = true
		}
		frags = append(frags, model.TextFragment{
			Text:         w.Words,
			Confidence:   conf,
			SourceEngine: string(model.ProviderBaidu),
		})
	}
	if scored {
		frags = filterByConfidence(frags, b.cfg.ConfidenceThreshold)
	}
	return frags, nil
}

func (b *BaiduOCR) accessToken(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.token != "" && time.Now().Before(b.tokenExpiry) {
		return b.token, nil
	}

	endpoint, err := url.Parse(b.cfg.TokenURL)
	if err != nil {
		return "", eris.Wrap(err, "ocr: parse baidu token url")
	}
	q := endpoint.Query()
	q.Set("grant_type", "client_credentials")
	q.Set("client_id", b.cfg.APIKey)
	q.Set("client_secret", b.cfg.SecretKey)
	endpoint.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, tokenTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), nil)
	if err != nil {
		return "", eris.Wrap(err, "ocr: create baidu token request")
	}

	var resp baiduTokenResponse
	if err := doJSON(b.tokenClient, req, "baidu token", &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", eris.Errorf("ocr: baidu token missing: %s %s", resp.Error, resp.ErrorDescription)
	}

	b.token = resp.AccessToken
	ttl := time.Duration(resp.ExpiresIn) * time.Second
	if ttl <= time.Minute {
		ttl = time.Minute
	}
	// Refresh a minute early.
	b.tokenExpiry = time.Now().Add(ttl - time.Minute)
	return b.token, nil
}
