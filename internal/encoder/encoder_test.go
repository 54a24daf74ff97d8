package encoder

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "github.com/fathima-sithara/image-service/internal/media"
)

func makeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 7 {
		for x := 0; x < w; x += 7 {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))
	return buf.Bytes()
}

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func decodeConfig(t *testing.T, b []byte) image.Config {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(b))
	require.NoError(t, err)
	require.Equal(t, "webp", format)
	return cfg
}

func TestEncode_SquareSourceFitsEveryBox(t *testing.T) {
	enc := New(2, MaxQuality)
	d, err := enc.Encode(context.Background(), makeJPEG(t, 2000, 2000))
	require.NoError(t, err)
	require.Len(t, d, 3)

	want := map[string][2]int{
		"large":  {900, 900},
		"medium": {800, 800},
		"small":  {400, 400},
	}
	for name, dims := range want {
		cfg := decodeConfig(t, d[name])
		assert.Equal(t, dims[0], cfg.Width, name)
		assert.Equal(t, dims[1], cfg.Height, name)
	}
}

func TestEncode_PreservesAspectRatio(t *testing.T) {
	enc := New(0, 0)
	d, err := enc.Encode(context.Background(), makePNG(t, 3000, 1000))
	require.NoError(t, err)

	for _, size := range models.Sizes {
		cfg := decodeConfig(t, d[size.Name])
		assert.LessOrEqual(t, cfg.Width, size.Width)
		assert.LessOrEqual(t, cfg.Height, size.Height)
		assert.InDelta(t, 3.0, float64(cfg.Width)/float64(cfg.Height), 0.02, size.Name)
	}
}

func TestEncode_NeverUpscales(t *testing.T) {
	enc := New(1, MaxQuality)
	d, err := enc.Encode(context.Background(), makeJPEG(t, 300, 200))
	require.NoError(t, err)

	for _, size := range models.Sizes {
		cfg := decodeConfig(t, d[size.Name])
		assert.Equal(t, 300, cfg.Width)
		assert.Equal(t, 200, cfg.Height)
	}
}

func TestEncode_RejectsNonImage(t *testing.T) {
	enc := New(1, MaxQuality)
	_, err := enc.Encode(context.Background(), []byte("definitely not an image"))
	assert.ErrorIs(t, err, models.ErrUnsupportedMedia)
}

func TestEncode_CancelledContext(t *testing.T) {
	enc := New(1, MaxQuality)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := enc.Encode(ctx, makeJPEG(t, 64, 64))
	assert.ErrorIs(t, err, models.ErrEncode)
}

func TestFit(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1600, 900))
	got := Fit(img, models.SizeSmall).Bounds()
	assert.Equal(t, 640, got.Dx())
	assert.Equal(t, 360, got.Dy())

	small := image.NewRGBA(image.Rect(0, 0, 10, 10))
	assert.Same(t, small, Fit(small, models.SizeLarge))
}
