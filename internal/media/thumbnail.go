package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// DefaultThumbnailMaxDimension is the maximum dimension (width or height) for previews.
const DefaultThumbnailMaxDimension = 512

// Thumbnail downsizes img so that neither side exceeds maxDimension and
// encodes the result as JPEG. Images already within bounds are returned unchanged.
func Thumbnail(img Image, maxDimension int) (Image, error) {
	if maxDimension <= 0 {
		maxDimension = DefaultThumbnailMaxDimension
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width <= maxDimension && cfg.Height <= maxDimension {
		return img, nil
	}
	if pixels(cfg) > DefaultMaxPixels {
		return Image{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, DefaultMaxPixels)
	}

	src, format, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	newW, newH := scaleToFit(w, h, maxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return Image{}, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	log.Debug().
		Str("source_format", format).
		Int("source_width", w).
		Int("source_height", h).
		Int("width", newW).
		Int("height", newH).
		Int("output_size", buf.Len()).
		Msg("Thumbnail generated")

	return Image{Data: buf.Bytes(), MIMEType: MIMEJPEG}, nil
}

func scaleToFit(w, h, maxDimension int) (int, int) {
	if w >= h {
		newH := h * maxDimension / w
		if newH < 1 {
			newH = 1
		}
		return maxDimension, newH
	}
	newW := w * maxDimension / h
	if newW < 1 {
		newW = 1
	}
	return newW, maxDimension
}
