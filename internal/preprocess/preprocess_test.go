package preprocess

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/sells-group/bankscan/internal/config"
)

func defaultPreprocessor() *Preprocessor {
	return New(config.PreprocessConfig{MaxSize: 4096, Quality: 85, Format: "JPEG"})
}

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPrepareReader_SmallImageKeepsSize(t *testing.T) {
	data := encodePNG(t, solidImage(120, 80, color.NRGBA{R: 200, A: 255}))

	p, err := defaultPreprocessor().PrepareReader(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, 120, p.Width)
	assert.Equal(t, 80, p.Height)
	assert.Equal(t, "image/jpeg", p.ContentType)
	assert.False(t, p.Empty())

	decoded, err := jpeg.Decode(bytes.NewReader(p.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 120, 80), decoded.Bounds())
}

func TestPrepareReader_DownscalesPreservingAspect(t *testing.T) {
	pre := New(config.PreprocessConfig{MaxSize: 100, Quality: 85, Format: "JPEG"})
	data := encodePNG(t, solidImage(400, 200, color.NRGBA{G: 255, A: 255}))

	p, err := pre.PrepareReader(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, 100, p.Width)
	assert.Equal(t, 50, p.Height)
}

func TestPrepareReader_TallImage(t *testing.T) {
	pre := New(config.PreprocessConfig{MaxSize: 64, Quality: 85, Format: "JPEG"})
	data := encodePNG(t, solidImage(32, 256, color.NRGBA{B: 255, A: 255}))

	p, err := pre.PrepareReader(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, 8, p.Width)
	assert.Equal(t, 64, p.Height)
}

func TestPrepareReader_AlphaFlattenedToWhite(t *testing.T) {
	data := encodePNG(t, solidImage(10, 10, color.NRGBA{}))
	pre := New(config.PreprocessConfig{MaxSize: 4096, Quality: 100, Format: "PNG"})

	p, err := pre.PrepareReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "image/png", p.ContentType)

	decoded, err := png.Decode(bytes.NewReader(p.Data))
	require.NoError(t, err)
	r, g, b, a := decoded.At(5, 5).RGBA()
	assert.Equal(t, uint32(0xffff), a)
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), b)
}

func TestPrepareReader_BMP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, solidImage(16, 16, color.NRGBA{R: 10, G: 20, B: 30, A: 255})))

	p, err := defaultPreprocessor().PrepareReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, 16, p.Width)
}

func TestPrepareReader_CorruptInput(t *testing.T) {
	p, err := defaultPreprocessor().PrepareReader(bytes.NewReader([]byte("not an image")))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrDecode))
	assert.True(t, p.Empty())
}

func TestPrepare_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, solidImage(20, 10, color.White)), 0o600))

	p, err := defaultPreprocessor().Prepare(path)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(p.Base64())
	require.NoError(t, err)
	assert.Equal(t, p.Data, raw)
	assert.Contains(t, p.DataURL(), "data:image/jpeg;base64,")
}

func TestPrepare_MissingFile(t *testing.T) {
	_, err := defaultPreprocessor().Prepare(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestNew_Fallbacks(t *testing.T) {
	p := New(config.PreprocessConfig{Format: "gif"})
	assert.Equal(t, 4096, p.maxSize)
	assert.Equal(t, 85, p.quality)
	assert.Equal(t, "image/jpeg", contentType(p.format))
}
