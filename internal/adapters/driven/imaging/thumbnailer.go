// Package imaging renders JPEG thumbnails for image content.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Thumbnailer = (*Thumbnailer)(nil)

// maxSourcePixels rejects images whose decoded size would exhaust memory
const maxSourcePixels = 64 << 20

// Thumbnailer scales images to cover a fixed box, crops the overflow
// around the centre and flattens transparency onto white.
type Thumbnailer struct {
	width   int
	height  int
	quality int
}

// NewThumbnailer creates a Thumbnailer. Zero values fall back to the
// domain thumbnail geometry.
func NewThumbnailer(width, height, quality int) *Thumbnailer {
	if width <= 0 || height <= 0 {
		width, height = domain.ThumbnailWidth, domain.ThumbnailHeight
	}
	if quality <= 0 || quality > 100 {
		quality = domain.ThumbnailQuality
	}
	return &Thumbnailer{width: width, height: height, quality: quality}
}

// Thumbnail decodes data (JPEG, PNG, GIF or WebP) and returns the JPEG preview
func (t *Thumbnailer) Thumbnail(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", domain.ErrNotSupported, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxSourcePixels {
		return nil, fmt.Errorf("%w: image is %dx%d", domain.ErrNotSupported, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", domain.ErrNotSupported, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, coverRect(src.Bounds(), t.width, t.height), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: t.quality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// coverRect returns the centred part of b with the aspect ratio w:h
func coverRect(b image.Rectangle, w, h int) image.Rectangle {
	bw, bh := b.Dx(), b.Dy()
	if bw*h > bh*w {
		cw := max(bh*w/h, 1)
		x0 := b.Min.X + (bw-cw)/2
		return image.Rect(x0, b.Min.Y, x0+cw, b.Max.Y)
	}
	ch := max(bw*h/w, 1)
	y0 := b.Min.Y + (bh-ch)/2
	return image.Rect(b.Min.X, y0, b.Max.X, y0+ch)
}
