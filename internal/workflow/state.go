package workflow

import (
	"fmt"

	"github.com/fpang/gemini-vogue/internal/media"
)

// Phase is the workflow's position in its state machine.
type Phase int

const (
	// Idle: no result and no attempt in flight.
	Idle Phase = iota
	// Processing: a transformation is in flight.
	Processing
	// Success: a TransformationResult is present.
	Success
	// Error: the last transformation failed; the uploaded image is kept.
	Error
)

var phaseNames = [...]string{"idle", "processing", "success", "error"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText encodes the phase as its lowercase name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a lowercase phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if name == string(text) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Result pairs the image a transformation started from with the image it
// produced. It is replaced as a whole and never partially updated.
type Result struct {
	Original  media.Image
	Generated media.Image
	StyleID   string
}

// State is an immutable snapshot of the controller.
//
// Result is set only in Success. Message is the transient user-facing error
// text; it may be set in any phase (a rejected upload leaves the phase alone).
type State struct {
	Phase         Phase
	Image         *media.UploadedImage
	Result        *Result
	SelectedStyle string
	Message       string
}

// HasImage reports whether an upload is installed.
func (s State) HasImage() bool { return s.Image != nil }

// HasResult reports whether a transformation result is available.
func (s State) HasResult() bool { return s.Phase == Success && s.Result != nil }

// Busy reports whether a transformation is in flight.
func (s State) Busy() bool { return s.Phase == Processing }

// StatusCaption is the progress line shown while Processing, or "".
func (s State) StatusCaption() string {
	if s.Busy() {
		return MsgProcessing
	}
	return ""
}
