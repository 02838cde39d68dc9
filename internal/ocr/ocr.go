// Package ocr adapts external OCR services to a common fragment-producing
// interface and merges their output.
package ocr

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bankscan/internal/config"
	"github.com/sells-group/bankscan/internal/model"
	"github.com/sells-group/bankscan/internal/preprocess"
)

const (
	// defaultConfidence is assigned to fragments from providers that do not
	// report a per-fragment score.
	defaultConfidence = 0.9

	tokenTimeout     = 10 * time.Second
	recognizeTimeout = 30 * time.Second

	// maxResponseBytes caps how much of a provider response is read.
	maxResponseBytes = 16 << 20
)

// Provider recognizes text in a preprocessed image. A provider that is
// disabled or lacks credentials returns no fragments and no error.
type Provider interface {
	ID() model.ProviderID
	Enabled() bool
	Recognize(ctx context.Context, payload preprocess.Payload) ([]model.TextFragment, error)
}

// NewProviders builds one adapter per known provider from cfg.
func NewProviders(cfg config.ProvidersConfig) []Provider {
	return []Provider{
		NewAliyun(cfg.Aliyun),
		NewAnthropic(cfg.Anthropic),
		NewAzure(cfg.Azure),
		NewBaidu(cfg.Baidu),
		NewGoogle(cfg.Google),
		NewMistral(cfg.Mistral),
		NewTencent(cfg.Tencent),
		NewTesseract(cfg.Tesseract),
	}
}

// filterByConfidence drops fragments scored below threshold.
func filterByConfidence(frags []model.TextFragment, threshold float64) []model.TextFragment {
	out := frags[:0]
	for _, f := range frags {
		if f.Confidence >= threshold {
			out = append(out, f)
		}
	}
	return out
}

// linesToFragments splits free text into one fragment per non-blank line.
func linesToFragments(text string, engine model.ProviderID) []model.TextFragment {
	var out []model.TextFragment
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		out = append(out, model.TextFragment{
			Text:         line,
			Confidence:   defaultConfidence,
			SourceEngine: string(engine),
		})
	}
	return out
}

// doJSON sends req and decodes a 200 response body into out.
func doJSON(client *http.Client, req *http.Request, name string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrapf(err, "ocr: %s API call", name)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return eris.Wrapf(err, "ocr: read %s response", name)
	}

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("ocr: %s API returned %d: %s", name, resp.StatusCode, truncate(string(body), 512))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "ocr: unmarshal %s response", name)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
