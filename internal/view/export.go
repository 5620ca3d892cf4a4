package view

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/fpang/gemini-vogue/internal/media"
	"github.com/fpang/gemini-vogue/internal/style"
	"github.com/fpang/gemini-vogue/internal/workflow"
)

// DefaultProductName prefixes exported filenames.
const DefaultProductName = "gemini-vogue"

// Artifact is a downloadable file.
type Artifact struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Export returns the generated image as "<product>-<unix-ms>.png".
// It fails with workflow.ErrNoResult when there is no result.
func Export(s workflow.State, product string, now time.Time) (Artifact, error) {
	if !s.HasResult() {
		return Artifact{}, workflow.ErrNoResult
	}
	return Artifact{
		Filename: fmt.Sprintf("%s-%d.png", productName(product), now.UnixMilli()),
		MIMEType: s.Result.Generated.MIMEType,
		Data:     s.Result.Generated.Data,
	}, nil
}

// Look describes a bundled transformation.
type Look struct {
	StyleID   string               `json:"styleId"`
	StyleName string               `json:"styleName,omitempty"`
	Prompt    string               `json:"prompt,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
	Original  LookImage            `json:"original"`
	Generated LookImage            `json:"generated"`
	Metadata  *media.ImageMetadata `json:"metadata,omitempty"`
}

// LookImage names one image inside a bundle.
type LookImage struct {
	File     string `json:"file"`
	MIMEType string `json:"mimeType"`
	Bytes    int    `json:"bytes"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// ExportBundle zips the original, the generated image, and a look.json
// describing them into "<product>-<unix-ms>.zip".
func ExportBundle(s workflow.State, product string, now time.Time) (Artifact, error) {
	if !s.HasResult() {
		return Artifact{}, workflow.ErrNoResult
	}
	res := s.Result

	look := Look{
		StyleID:   res.StyleID,
		CreatedAt: now.UTC(),
		Original: LookImage{
			File:     "original" + media.ExtensionFor(res.Original.MIMEType),
			MIMEType: res.Original.MIMEType,
			Bytes:    len(res.Original.Data),
		},
		Generated: LookImage{
			File:     "generated" + media.ExtensionFor(res.Generated.MIMEType),
			MIMEType: res.Generated.MIMEType,
			Bytes:    len(res.Generated.Data),
		},
	}
	if p, ok := style.Lookup(res.StyleID); ok {
		look.StyleName = p.Name
		look.Prompt = p.Prompt
	}
	if s.Image != nil {
		look.Original.Width = s.Image.Width
		look.Original.Height = s.Image.Height
		look.Metadata = s.Image.Metadata
	}

	manifest, err := json.MarshalIndent(look, "", "  ")
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to encode look: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries := []struct {
		name   string
		data   []byte
		method uint16
	}{
		// Images are already compressed.
		{look.Original.File, res.Original.Data, zip.Store},
		{look.Generated.File, res.Generated.Data, zip.Store},
		{"look.json", manifest, zip.Deflate},
	}
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   e.method,
			Modified: now,
		})
		if err != nil {
			return Artifact{}, fmt.Errorf("failed to add %s: %w", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return Artifact{}, fmt.Errorf("failed to write %s: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return Artifact{}, fmt.Errorf("failed to finish bundle: %w", err)
	}

	return Artifact{
		Filename: fmt.Sprintf("%s-%d.zip", productName(product), now.UnixMilli()),
		MIMEType: "application/zip",
		Data:     buf.Bytes(),
	}, nil
}

// Save writes the artifact into dir (created if needed) and returns its path.
func (a Artifact) Save(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, a.Filename)
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func productName(p string) string {
	if p == "" {
		return DefaultProductName
	}
	return p
}
