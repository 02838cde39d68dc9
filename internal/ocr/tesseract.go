//go:build tesseract

package ocr

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bankscan/internal/config"
	"github.com/sells-group/bankscan/internal/model"
	"github.com/sells-group/bankscan/internal/preprocess"
)

// TesseractOCR recognizes screenshots with a local Tesseract install.
type TesseractOCR struct {
	cfg config.TesseractConfig
}

// NewTesseract creates a TesseractOCR provider.
func NewTesseract(cfg config.TesseractConfig) *TesseractOCR {
	return &TesseractOCR{cfg: cfg}
}

// ID implements Provider.
func (t *TesseractOCR) ID() model.ProviderID { return model.ProviderTesseract }

// Enabled implements Provider.
func (t *TesseractOCR) Enabled() bool { return t.cfg.Enabled && t.cfg.Configured() }

// Recognize implements Provider. One fragment per text line, scored by
// Tesseract's 0-100 line confidence.
func (t *TesseractOCR) Recognize(ctx context.Context, payload preprocess.Payload) ([]model.TextFragment, error) {
	if !t.Enabled() {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close() //nolint:errcheck

	if err := client.SetLanguage(t.cfg.Languages...); err != nil {
		return nil, eris.Wrap(err, "ocr: tesseract set language")
	}
	if err := client.SetImageFromBytes(payload.Data); err != nil {
		return nil, eris.Wrap(err, "ocr: tesseract set image")
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: tesseract recognize")
	}

	frags := make([]model.TextFragment, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		frags = append(frags, model.TextFragment{
			Text:         text,
			Confidence:   b.Confidence / 100,
			SourceEngine: string(model.ProviderTesseract),
		})
	}
	return filterByConfidence(frags, t.cfg.ConfidenceThreshold), nil
}
