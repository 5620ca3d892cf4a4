package style

import (
	"errors"
	"strings"
	"testing"
)

func TestPresetsCatalog(t *testing.T) {
	want := []string{"cyberpunk", "business", "casual", "fantasy", "gala", "summer", "winter"}

	got := IDs()
	if len(got) != len(want) {
		t.Fatalf("expected %d presets, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i] != id {
			t.Errorf("preset %d: expected %q, got %q", i, id, got[i])
		}
	}

	for _, p := range Presets() {
		if p.Name == "" || p.Icon == "" || p.Color == "" {
			t.Errorf("preset %q is missing display fields", p.ID)
		}
		if !strings.HasSuffix(p.Prompt, "Keep the face and pose exactly the same.") {
			t.Errorf("preset %q prompt should preserve face and pose", p.ID)
		}
	}
}

func TestPresetsReturnsCopy(t *testing.T) {
	list := Presets()
	list[0].Prompt = "mutated"

	p, _ := Lookup("cyberpunk")
	if p.Prompt == "mutated" {
		t.Error("Presets must not expose the backing catalog")
	}
}

func TestNewPresetRequest(t *testing.T) {
	req, err := NewPresetRequest("business")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.StyleID() != "business" || req.IsCustom() {
		t.Errorf("unexpected style id %q", req.StyleID())
	}
	if !strings.Contains(req.Prompt(), "navy blue business suit") {
		t.Errorf("unexpected prompt %q", req.Prompt())
	}

	if _, err := NewPresetRequest("pirate"); !errors.Is(err, ErrUnknownStyle) {
		t.Errorf("expected ErrUnknownStyle, got %v", err)
	}
}

func TestNewCustomRequest(t *testing.T) {
	req, err := NewCustomRequest("  a yellow raincoat \n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.StyleID() != CustomID || !req.IsCustom() {
		t.Errorf("expected custom style id, got %q", req.StyleID())
	}
	if req.Prompt() != "a yellow raincoat" {
		t.Errorf("expected trimmed prompt, got %q", req.Prompt())
	}

	for _, blank := range []string{"", "   ", "\t\n"} {
		if _, err := NewCustomRequest(blank); !errors.Is(err, ErrEmptyPrompt) {
			t.Errorf("%q: expected ErrEmptyPrompt, got %v", blank, err)
		}
	}
}

func TestSystemInstructionEmbedded(t *testing.T) {
	if !strings.Contains(SystemInstruction, "only the clothing has changed") {
		t.Error("system instruction not embedded")
	}
}
