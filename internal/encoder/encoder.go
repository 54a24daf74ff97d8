package encoder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"runtime"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	// decoders for sources imaging does not register itself
	_ "golang.org/x/image/webp"

	models "github.com/fathima-sithara/image-service/internal/media"
)

// MaxQuality is the highest lossy WebP quality tier.
const MaxQuality = 100

// libwebp compression effort, 0 (fast) to 6 (slow).
const encodeMethod = 4

// Derivatives holds one encoding per size, keyed by size name.
type Derivatives map[string][]byte

// Encoder turns a source image into the fixed derivative set. Scaling jobs
// from all requests share one semaphore so encoding never oversubscribes the
// CPU.
type Encoder struct {
	quality int
	sem     *semaphore.Weighted
}

func New(workers, quality int) *Encoder {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if quality <= 0 || quality > MaxQuality {
		quality = MaxQuality
	}
	return &Encoder{quality: quality, sem: semaphore.NewWeighted(int64(workers))}
}

// Encode decodes src and produces a WebP for every size in models.Sizes.
func (e *Encoder) Encode(ctx context.Context, src []byte) (Derivatives, error) {
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode source: %v", models.ErrUnsupportedMedia, err)
	}

	out := make([][]byte, len(models.Sizes))
	g, gctx := errgroup.WithContext(ctx)
	for i, size := range models.Sizes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("%w: %s: %v", models.ErrEncode, size.Name, err)
			}
			if err := e.sem.Acquire(gctx, 1); err != nil {
				return fmt.Errorf("%w: %s: %v", models.ErrEncode, size.Name, err)
			}
			defer e.sem.Release(1)

			b, err := e.encodeOne(img, size)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", models.ErrEncode, size.Name, err)
			}
			out[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := make(Derivatives, len(out))
	for i, size := range models.Sizes {
		d[size.Name] = out[i]
	}
	return d, nil
}

func (e *Encoder) encodeOne(img image.Image, size models.Size) ([]byte, error) {
	scaled := Fit(img, size)
	var buf bytes.Buffer
	if err := webp.Encode(&buf, scaled, webp.Options{Quality: e.quality, Method: encodeMethod}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Fit downscales img to fit inside the size box keeping its aspect ratio.
// Images already inside the box are returned unscaled.
func Fit(img image.Image, size models.Size) image.Image {
	b := img.Bounds()
	if b.Dx() <= size.Width && b.Dy() <= size.Height {
		return img
	}
	return imaging.Fit(img, size.Width, size.Height, imaging.Lanczos)
}
