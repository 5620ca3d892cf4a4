// Package transform is the boundary to the generative image service. A
// Service takes an image, its MIME type, and a prompt, and returns a new
// image. The workflow treats every failure as opaque; Classify exists only
// to label failures in logs and metrics.
package transform

import (
	"context"

	"github.com/fpang/gemini-vogue/internal/media"
)

// Service performs one outfit transformation.
type Service interface {
	Transform(ctx context.Context, img media.Image, prompt string) (media.Image, error)
}

// ServiceFunc adapts a function to the Service interface.
type ServiceFunc func(ctx context.Context, img media.Image, prompt string) (media.Image, error)

// Transform calls f.
func (f ServiceFunc) Transform(ctx context.Context, img media.Image, prompt string) (media.Image, error) {
	return f(ctx, img, prompt)
}
