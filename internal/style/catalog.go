// Package style holds the outfit preset catalog and builds the style
// requests that drive a transformation.
package style

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
)

// CustomID is the style key used for free-text prompts.
const CustomID = "custom"

// SystemInstruction is sent alongside every transformation prompt.
//
//go:embed prompts/system-instruction.txt
var SystemInstruction string

// ErrEmptyPrompt is returned for a blank custom prompt.
var ErrEmptyPrompt = errors.New("custom prompt is empty")

// ErrUnknownStyle is returned when a preset id is not in the catalog.
var ErrUnknownStyle = errors.New("unknown style")

// Preset is a named outfit style.
type Preset struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
	Icon   string `json:"icon"`
	Color  string `json:"color"`
}

var presets = []Preset{
	{
		ID:     "cyberpunk",
		Name:   "Cyberpunk",
		Prompt: "Change the clothing to a futuristic cyberpunk street style with neon accents, leather jacket, and tech-wear aesthetics. Keep the face and pose exactly the same.",
		Icon:   "⚡",
		Color:  "from-purple-500 to-pink-500",
	},
	{
		ID:     "business",
		Name:   "Business Pro",
		Prompt: "Change the clothing to a high-end, tailored professional navy blue business suit with a crisp white shirt. Keep the face and pose exactly the same.",
		Icon:   "💼",
		Color:  "from-blue-600 to-slate-800",
	},
	{
		ID:     "casual",
		Name:   "Street Casual",
		Prompt: "Change the clothing to a relaxed, trendy streetwear outfit with a graphic oversized hoodie and denim. Keep the face and pose exactly the same.",
		Icon:   "🧢",
		Color:  "from-orange-400 to-red-500",
	},
	{
		ID:     "fantasy",
		Name:   "RPG Fantasy",
		Prompt: "Change the clothing to medieval fantasy rogue armor with leather straps, a cloak, and intricate details. Keep the face and pose exactly the same.",
		Icon:   "⚔️",
		Color:  "from-emerald-500 to-teal-700",
	},
	{
		ID:     "gala",
		Name:   "Red Carpet",
		Prompt: "Change the clothing to an elegant, glamorous red carpet evening gown or tuxedo with luxurious fabric textures. Keep the face and pose exactly the same.",
		Icon:   "✨",
		Color:  "from-yellow-400 to-amber-600",
	},
	{
		ID:     "summer",
		Name:   "Beach Vibes",
		Prompt: "Change the clothing to a light, airy floral summer outfit suitable for a beach resort. Keep the face and pose exactly the same.",
		Icon:   "🏖️",
		Color:  "from-cyan-400 to-blue-400",
	},
	{
		ID:     "winter",
		Name:   "Winter Coat",
		Prompt: "Change the clothing to a thick, cozy wool trench coat with a scarf, suitable for snowy weather. Keep the face and pose exactly the same.",
		Icon:   "❄️",
		Color:  "from-slate-200 to-slate-400",
	},
}

// Presets returns a copy of the catalog in display order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// Lookup finds a preset by id.
func Lookup(id string) (Preset, bool) {
	for _, p := range presets {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

// IDs returns the preset ids in display order.
func IDs() []string {
	ids := make([]string, len(presets))
	for i, p := range presets {
		ids[i] = p.ID
	}
	return ids
}

// Request is an immutable prompt plus the style key that produced it.
type Request struct {
	styleID string
	prompt  string
}

// StyleID returns the preset id or CustomID.
func (r Request) StyleID() string { return r.styleID }

// Prompt returns the text sent to the image service.
func (r Request) Prompt() string { return r.prompt }

// IsCustom reports whether the request came from a free-text prompt.
func (r Request) IsCustom() bool { return r.styleID == CustomID }

// NewRequest builds a request from an explicit prompt and style key.
func NewRequest(prompt, styleID string) Request {
	return Request{styleID: styleID, prompt: prompt}
}

// NewPresetRequest builds a request for a catalog preset.
func NewPresetRequest(id string) (Request, error) {
	p, ok := Lookup(id)
	if !ok {
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownStyle, id)
	}
	return Request{styleID: p.ID, prompt: p.Prompt}, nil
}

// NewCustomRequest trims a free-text prompt and rejects it if nothing remains.
func NewCustomRequest(text string) (Request, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Request{}, ErrEmptyPrompt
	}
	return Request{styleID: CustomID, prompt: text}, nil
}
