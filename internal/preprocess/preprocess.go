// Package preprocess normalizes uploaded screenshots into a compact image
// payload that every OCR provider accepts.
package preprocess

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"io"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rotisserie/eris"

	// Extra decoders for the upload formats the stdlib does not cover.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/sells-group/bankscan/internal/config"
)

var (
	// ErrDecode is returned when the input cannot be decoded as an image.
	ErrDecode = eris.New("preprocess: decode image")
	// ErrEmptyPayload is returned when encoding produced no bytes.
	ErrEmptyPayload = eris.New("preprocess: empty payload")
)

// Payload is a normalized image ready for OCR.
type Payload struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Base64 returns the standard base64 encoding of the image bytes.
func (p Payload) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// DataURL returns the payload as a data: URL.
func (p Payload) DataURL() string {
	return "data:" + p.ContentType + ";base64," + p.Base64()
}

// Empty reports whether the payload carries no image.
func (p Payload) Empty() bool {
	return len(p.Data) == 0
}

// Preprocessor converts images to RGB, caps their size and re-encodes them.
type Preprocessor struct {
	maxSize int
	quality int
	format  imaging.Format
}

// New creates a Preprocessor. Unknown formats fall back to JPEG.
func New(cfg config.PreprocessConfig) *Preprocessor {
	format, err := imaging.FormatFromExtension(strings.ToLower(cfg.Format))
	if err != nil || (format != imaging.JPEG && format != imaging.PNG) {
		format = imaging.JPEG
	}
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = 4096
	}
	quality := cfg.Quality
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &Preprocessor{maxSize: maxSize, quality: quality, format: format}
}

// Prepare reads and normalizes the image at path.
func (p *Preprocessor) Prepare(path string) (Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return Payload{}, eris.Wrapf(err, "preprocess: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return p.PrepareReader(f)
}

// PrepareReader normalizes an image read from r.
func (p *Preprocessor) PrepareReader(r io.Reader) (Payload, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return Payload{}, eris.Wrap(ErrDecode, err.Error())
	}

	img = flatten(img)

	b := img.Bounds()
	if b.Dx() > p.maxSize || b.Dy() > p.maxSize {
		img = imaging.Fit(img, p.maxSize, p.maxSize, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, p.format, imaging.JPEGQuality(p.quality)); err != nil {
		return Payload{}, eris.Wrap(err, "preprocess: encode")
	}
	if buf.Len() == 0 {
		return Payload{}, ErrEmptyPayload
	}

	out := img.Bounds()
	return Payload{
		Data:        buf.Bytes(),
		ContentType: contentType(p.format),
		Width:       out.Dx(),
		Height:      out.Dy(),
	}, nil
}

// flatten composites img onto an opaque white canvas, dropping alpha and
// palette information so the result is plain RGB.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func contentType(f imaging.Format) string {
	if f == imaging.PNG {
		return "image/png"
	}
	return "image/jpeg"
}
