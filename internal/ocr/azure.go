package ocr

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bankscan/internal/config"
	"github.com/sells-group/bankscan/internal/model"
	"github.com/sells-group/bankscan/internal/preprocess"
)

// AzureOCR recognizes screenshots with Azure Computer Vision printed-text OCR.
type AzureOCR struct {
	cfg    config.AzureConfig
	client computervision.BaseClient
}

// NewAzure creates an AzureOCR provider. autorest retries and retry delays
// are disabled.
func NewAzure(cfg config.AzureConfig) *AzureOCR {
	if cfg.Language == "" {
		cfg.Language = string(computervision.OcrLanguagesZhHans)
	}
	client := computervision.New(strings.TrimRight(cfg.Endpoint, "/"))
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(cfg.SubscriptionKey)
	client.Sender = &http.Client{Timeout: recognizeTimeout}
	client.RetryAttempts = 0
	client.RetryDuration = 0
	return &AzureOCR{cfg: cfg, client: client}
}

// ID implements Provider.
func (a *AzureOCR) ID() model.ProviderID { return model.ProviderAzure }

// Enabled implements Provider.
func (a *AzureOCR) Enabled() bool { return a.cfg.Enabled && a.cfg.Configured() }

// Recognize implements Provider. Each recognized line becomes one fragment
// with its words joined by spaces.
func (a *AzureOCR) Recognize(ctx context.Context, payload preprocess.Payload) ([]model.TextFragment, error) {
	if !a.Enabled() {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, recognizeTimeout)
	defer cancel()

	result, err := a.client.RecognizePrintedTextInStream(
		ctx,
		true,
		io.NopCloser(bytes.NewReader(payload.Data)),
		computervision.OcrLanguages(a.cfg.Language),
	)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: azure API call")
	}
	if result.Regions == nil {
		return nil, nil
	}

	var frags []model.TextFragment
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			words := make([]string, 0, len(*line.Words))
			for _, w := range *line.Words {
				if w.Text != nil && *w.Text != "" {
					words = append(words, *w.Text)
				}
			}
			if len(words) == 0 {
				continue
			}
			frags = append(frags, model.TextFragment{
				Text:         strings.Join(words, " "),
				Confidence:   defaultConfidence,
				SourceEngine: string(model.ProviderAzure),
			})
		}
	}
	return frags, nil
}
