package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bankscan/internal/config"
	"github.com/sells-group/bankscan/internal/model"
	"github.com/sells-group/bankscan/internal/preprocess"
)

const (
	mistralOCREndpoint  = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "mistral-ocr-latest"
)

// MistralOCR recognizes screenshots with the Mistral OCR API.
type MistralOCR struct {
	cfg      config.MistralConfig
	model    string
	endpoint string
	client   *http.Client
}

// NewMistral creates a MistralOCR provider. Empty model and endpoint use the defaults.
func NewMistral(cfg config.MistralConfig) *MistralOCR {
	m := &MistralOCR{
		cfg:      cfg,
		model:    cfg.Model,
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: recognizeTimeout},
	}
	if m.model == "" {
		m.model = defaultMistralModel
	}
	if m.endpoint == "" {
		m.endpoint = mistralOCREndpoint
	}
	return m
}

type mistralOCRRequest struct {
	Model    string             `json:"model"`
	Document mistralOCRDocument `json:"document"`
}

type mistralOCRDocument struct {
	Type     string `json:"type"`
	ImageURL string `json:"image_url"`
}

type mistralOCRResponse struct {
	Pages []mistralOCRPage `json:"pages"`
}

type mistralOCRPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// ID implements Provider.
func (m *MistralOCR) ID() model.ProviderID { return model.ProviderMistral }

// Enabled implements Provider.
func (m *MistralOCR) Enabled() bool { return m.cfg.Enabled && m.cfg.Configured() }

// Recognize sends the image as a data URL and returns one fragment per
// non-blank markdown line.
func (m *MistralOCR) Recognize(ctx context.Context, payload preprocess.Payload) ([]model.TextFragment, error) {
	if !m.Enabled() {
		return nil, nil
	}

	reqBody := mistralOCRRequest{
		Model: m.model,
		Document: mistralOCRDocument{
			Type:     "image_url",
			ImageURL: payload.DataURL(),
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: marshal mistral request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create mistral request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)

	var ocrResp mistralOCRResponse
	if err := doJSON(m.client, req, "mistral", &ocrResp); err != nil {
		return nil, err
	}

	var sb strings.Builder
	for i, page := range ocrResp.Pages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(stripMarkdown(page.Markdown))
	}

	return linesToFragments(sb.String(), model.ProviderMistral), nil
}

// stripMarkdown removes the table and emphasis markup Mistral wraps around
// recognized text.
func stripMarkdown(s string) string {
	r := strings.NewReplacer("|", " ", "**", "", "__", "", "#", "", "`", "")
	lines := strings.Split(r.Replace(s), "\n")
	for i, l := range lines {
		t := strings.TrimSpace(l)
		if strings.Trim(t, "-: ") == "" {
			lines[i] = ""
			continue
		}
		lines[i] = strings.Join(strings.Fields(t), " ")
	}
	return strings.Join(lines, "\n")
}
