package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bankscan/internal/config"
	"github.com/sells-group/bankscan/internal/model"
	"github.com/sells-group/bankscan/internal/preprocess"
)

const googleVisionEndpoint = "https://vision.googleapis.com/v1/images:annotate"

// GoogleOCR recognizes screenshots with Google Cloud Vision TEXT_DETECTION.
type GoogleOCR struct {
	cfg    config.GoogleConfig
	client *http.Client
}

// NewGoogle creates a GoogleOCR provider.
func NewGoogle(cfg config.GoogleConfig) *GoogleOCR {
	if cfg.URL == "" {
		cfg.URL = googleVisionEndpoint
	}
	return &GoogleOCR{cfg: cfg, client: &http.Client{Timeout: recognizeTimeout}}
}

type googleAnnotateRequest struct {
	Requests []googleImageRequest `json:"requests"`
}

type googleImageRequest struct {
	Image    googleImage     `json:"image"`
	Features []googleFeature `json:"features"`
}

type googleImage struct {
	Content string `json:"content"`
}

type googleFeature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type googleAnnotateResponse struct {
	Responses []struct {
		TextAnnotations []struct {
			Description string `json:"description"`
		} `json:"textAnnotations"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// ID implements Provider.
func (g *GoogleOCR) ID() model.ProviderID { return model.ProviderGoogle }

// Enabled implements Provider.
func (g *GoogleOCR) Enabled() bool { return g.cfg.Enabled && g.cfg.Configured() }

// Recognize implements Provider. The first annotation is the full-text block
// and is skipped; the rest become fragments.
func (g *GoogleOCR) Recognize(ctx context.Context, payload preprocess.Payload) ([]model.TextFragment, error) {
	if !g.Enabled() {
		return nil, nil
	}

	body, err := json.Marshal(googleAnnotateRequest{
		Requests: []googleImageRequest{{
			Image:    googleImage{Content: payload.Base64()},
			Features: []googleFeature{{Type: "TEXT_DETECTION", MaxResults: 50}},
		}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "ocr: marshal google request")
	}

	endpoint, err := url.Parse(g.cfg.URL)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: parse google url")
	}
	q := endpoint.Query()
	q.Set("key", g.cfg.APIKey)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create google request")
	}
	req.Header.Set("Content-Type", "application/json")

	var resp googleAnnotateResponse
	if err := doJSON(g.client, req, "google", &resp); err != nil {
		return nil, err
	}
	if len(resp.Responses) == 0 {
		return nil, nil
	}

	first := resp.Responses[0]
	if first.Error != nil {
		return nil, eris.Errorf("ocr: google error %d: %s", first.Error.Code, first.Error.Message)
	}
	if len(first.TextAnnotations) < 2 {
		return nil, nil
	}

	frags := make([]model.TextFragment, 0, len(first.TextAnnotations)-1)
	for _, a := range first.TextAnnotations[1:] {
		frags = append(frags, model.TextFragment{
			Text:         a.Description,
			Confidence:   defaultConfidence,
			SourceEngine: string(model.ProviderGoogle),
		})
	}
	return frags, nil
}
