// Package view derives what the user sees from a workflow snapshot: the
// active image under the hold-to-compare gesture, and the exported artifact.
package view

import (
	"sync/atomic"

	"github.com/fpang/gemini-vogue/internal/media"
	"github.com/fpang/gemini-vogue/internal/workflow"
)

// ActiveImage picks the image to display. While comparing and a result is
// present it is the original; otherwise the generated image, falling back to
// the upload. ok is false when there is nothing to show.
func ActiveImage(s workflow.State, comparing bool) (img media.Image, ok bool) {
	if s.HasResult() {
		if comparing {
			return s.Result.Original, true
		}
		return s.Result.Generated, true
	}
	if s.Image != nil {
		return s.Image.Image, true
	}
	return media.Image{}, false
}

// Gesture tracks the momentary hold-to-compare pointer. It is safe for
// concurrent use.
type Gesture struct {
	held atomic.Bool
}

// PointerDown starts comparing.
func (g *Gesture) PointerDown() { g.held.Store(true) }

// PointerUp stops comparing.
func (g *Gesture) PointerUp() { g.held.Store(false) }

// PointerLeave stops comparing.
func (g *Gesture) PointerLeave() { g.held.Store(false) }

// Held reports whether the pointer is down.
func (g *Gesture) Held() bool { return g.held.Load() }

// Comparing reports whether the gesture has an effect on s. A held pointer
// does nothing without a result.
func (g *Gesture) Comparing(s workflow.State) bool {
	return g.Held() && s.HasResult()
}

// Active is ActiveImage with the gesture applied.
func (g *Gesture) Active(s workflow.State) (media.Image, bool) {
	return ActiveImage(s, g.Comparing(s))
}
