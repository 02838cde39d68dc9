package ocr

import (
	"context"
	"net/http"

	"github.com/sells-group/bankscan/internal/config"
	"github.com/sells-group/bankscan/internal/model"
	"github.com/sells-group/bankscan/internal/preprocess"
	"github.com/sells-group/bankscan/pkg/anthropic"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"

	anthropicSystemPrompt = "You are an OCR engine. Transcribe every piece of visible text in the " +
		"image exactly as it appears, one line of text per output line, top to bottom. " +
		"Do not translate, summarize, or add commentary."
	anthropicUserPrompt = "Transcribe the text in this bank screenshot."
)

// AnthropicOCR transcribes screenshots with Claude's vision input.
type AnthropicOCR struct {
	cfg    config.AnthropicConfig
	model  string
	client anthropic.Client
}

// NewAnthropic creates an AnthropicOCR provider backed by the SDK client.
func NewAnthropic(cfg config.AnthropicConfig) *AnthropicOCR {
	return NewAnthropicWithClient(cfg,
		anthropic.NewClient(cfg.APIKey, cfg.BaseURL, &http.Client{Timeout: recognizeTimeout}))
}

// NewAnthropicWithClient creates an AnthropicOCR provider using client.
func NewAnthropicWithClient(cfg config.AnthropicConfig, client anthropic.Client) *AnthropicOCR {
	m := cfg.Model
	if m == "" {
		m = defaultAnthropicModel
	}
	return &AnthropicOCR{cfg: cfg, model: m, client: client}
}

// ID implements Provider.
func (a *AnthropicOCR) ID() model.ProviderID { return model.ProviderAnthropic }

// Enabled implements Provider.
func (a *AnthropicOCR) Enabled() bool { return a.cfg.Enabled && a.cfg.Configured() }

// Recognize implements Provider. Each non-blank output line is a fragment.
func (a *AnthropicOCR) Recognize(ctx context.Context, payload preprocess.Payload) ([]model.TextFragment, error) {
	if !a.Enabled() {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, recognizeTimeout)
	defer cancel()

	temp := 0.0
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   2048,
		System:      anthropicSystemPrompt,
		Temperature: &temp,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: anthropicUserPrompt,
			Images:  []anthropic.Image{{MediaType: payload.ContentType, Data: payload.Base64()}},
		}},
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(a.model, "ocr")

	return linesToFragments(resp.Text(), model.ProviderAnthropic), nil
}
