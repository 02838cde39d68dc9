//go:build !tesseract

package ocr

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bankscan/internal/config"
	"github.com/sells-group/bankscan/internal/model"
	"github.com/sells-group/bankscan/internal/preprocess"
)

// ErrTesseractUnavailable is returned when the binary was built without the
// tesseract build tag.
var ErrTesseractUnavailable = eris.New("ocr: tesseract support not compiled in (build with -tags tesseract)")

// TesseractOCR is a placeholder used when Tesseract is not compiled in.
type TesseractOCR struct {
	cfg config.TesseractConfig
}

// NewTesseract creates a TesseractOCR placeholder.
func NewTesseract(cfg config.TesseractConfig) *TesseractOCR {
	return &TesseractOCR{cfg: cfg}
}

// ID implements Provider.
func (t *TesseractOCR) ID() model.ProviderID { return model.ProviderTesseract }

// Enabled implements Provider.
func (t *TesseractOCR) Enabled() bool { return t.cfg.Enabled && t.cfg.Configured() }

// Recognize reports that the engine is unavailable when enabled.
func (t *TesseractOCR) Recognize(_ context.Context, _ preprocess.Payload) ([]model.TextFragment, error) {
	if !t.Enabled() {
		return nil, nil
	}
	return nil, ErrTesseractUnavailable
}
