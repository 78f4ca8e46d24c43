package ingest

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// DefaultThumbnailWidth is used when Thumbnail is given a non-positive width.
const DefaultThumbnailWidth = 320

// Thumbnail returns a PNG no wider than maxWidth. SVG pages are returned
// unchanged since browsers scale them natively.
func Thumbnail(page Page, maxWidth int) ([]byte, error) {
	if page.MIMEType == "image/svg+xml" {
		return page.Data, nil
	}
	if maxWidth <= 0 {
		maxWidth = DefaultThumbnailWidth
	}

	src, _, err := image.Decode(bytes.NewReader(page.Data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", page.Filename, err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxWidth {
		h = max(1, h*maxWidth/w)
		w = maxWidth
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
