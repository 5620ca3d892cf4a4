package view

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/fpang/gemini-vogue/internal/media"
	"github.com/fpang/gemini-vogue/internal/metrics"
	"github.com/fpang/gemini-vogue/internal/style"
	"github.com/fpang/gemini-vogue/internal/transform"
	"github.com/fpang/gemini-vogue/internal/workflow"
)

func TestMain(m *testing.M) {
	metrics.SetOutput(io.Discard)
	os.Exit(m.Run())
}

var (
	imgA = media.Image{Data: []byte("A"), MIMEType: media.MIMEPNG}
	imgB = media.Image{Data: []byte("B"), MIMEType: media.MIMEPNG}
)

func successState() workflow.State {
	return workflow.State{
		Phase:         workflow.Success,
		Image:         &media.UploadedImage{Image: imgA, Filename: "a.png", Width: 640, Height: 480},
		SelectedStyle: "cyberpunk",
		Result:        &workflow.Result{Original: imgA, Generated: imgB, StyleID: "cyberpunk"},
	}
}

func TestActiveImage(t *testing.T) {
	upload := &media.UploadedImage{Image: imgA}

	tests := []struct {
		name      string
		state     workflow.State
		comparing bool
		want      []byte
		wantOK    bool
	}{
		{"empty", workflow.State{}, false, nil, false},
		{"upload only", workflow.State{Image: upload}, false, []byte("A"), true},
		{"compare without result", workflow.State{Image: upload}, true, []byte("A"), true},
		{"processing shows upload", workflow.State{Phase: workflow.Processing, Image: upload}, true, []byte("A"), true},
		{"result", successState(), false, []byte("B"), true},
		{"result comparing", successState(), true, []byte("A"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ActiveImage(tt.state, tt.comparing)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if !bytes.Equal(got.Data, tt.want) {
				t.Errorf("expected %q, got %q", tt.want, got.Data)
			}
		})
	}
}

func TestGesture(t *testing.T) {
	var g Gesture
	s := successState()

	if g.Comparing(s) {
		t.Error("should not compare before pointer down")
	}
	g.PointerDown()
	if !g.Comparing(s) {
		t.Error("expected comparing while held")
	}
	if img, _ := g.Active(s); string(img.Data) != "A" {
		t.Errorf("expected original while held, got %q", img.Data)
	}
	g.PointerLeave()
	if g.Comparing(s) {
		t.Error("pointer leave should stop comparing")
	}
	g.PointerDown()
	g.PointerUp()
	if img, _ := g.Active(s); string(img.Data) != "B" {
		t.Errorf("expected generated after release, got %q", img.Data)
	}

	g.PointerDown()
	idle := workflow.State{Image: &media.UploadedImage{Image: imgA}}
	if g.Comparing(idle) {
		t.Error("held pointer must have no effect without a result")
	}
}

// Upload A, choose cyberpunk, the service returns B: the view shows B, and A
// while held.
func TestCyberpunkScenario(t *testing.T) {
	c := workflow.New(transform.ServiceFunc(func(ctx context.Context, img media.Image, prompt string) (media.Image, error) {
		return imgB, nil
	}))
	c.Upload(&media.UploadedImage{Image: imgA, Filename: "a.png"})

	req, err := style.NewPresetRequest("cyberpunk")
	if err != nil {
		t.Fatal(err)
	}
	s, err := c.RequestTransformation(context.Background(), req.Prompt(), req.StyleID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var g Gesture
	if img, _ := g.Active(s); string(img.Data) != "B" {
		t.Errorf("expected B, got %q", img.Data)
	}
	g.PointerDown()
	if img, _ := g.Active(s); string(img.Data) != "A" {
		t.Errorf("expected A while held, got %q", img.Data)
	}
	g.PointerUp()
	if img, _ := g.Active(s); string(img.Data) != "B" {
		t.Errorf("expected B after release, got %q", img.Data)
	}
}

func TestExport(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	a, err := Export(successState(), "", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Filename != "gemini-vogue-1700000000123.png" {
		t.Errorf("unexpected filename %q", a.Filename)
	}
	if string(a.Data) != "B" {
		t.Errorf("expected generated bytes, got %q", a.Data)
	}

	a, _ = Export(successState(), "lookbook", now)
	if a.Filename != "lookbook-1700000000123.png" {
		t.Errorf("unexpected filename %q", a.Filename)
	}
}

func TestExportWithoutResult(t *testing.T) {
	states := []workflow.State{
		{},
		{Phase: workflow.Processing, Image: &media.UploadedImage{Image: imgA}},
		{Phase: workflow.Error, Image: &media.UploadedImage{Image: imgA}},
	}
	for _, s := range states {
		if _, err := Export(s, "", time.Now()); !errors.Is(err, workflow.ErrNoResult) {
			t.Errorf("%s: expected ErrNoResult, got %v", s.Phase, err)
		}
		if _, err := ExportBundle(s, "", time.Now()); !errors.Is(err, workflow.ErrNoResult) {
			t.Errorf("%s: expected ErrNoResult from bundle, got %v", s.Phase, err)
		}
	}
}

func TestExportBundle(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	a, err := ExportBundle(successState(), "", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Filename != "gemini-vogue-1700000000123.zip" || a.MIMEType != "application/zip" {
		t.Errorf("unexpected artifact %q %q", a.Filename, a.MIMEType)
	}

	zr, err := zip.NewReader(bytes.NewReader(a.Data), int64(len(a.Data)))
	if err != nil {
		t.Fatalf("bundle is not a zip: %v", err)
	}
	files := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		files[f.Name] = data
	}

	if string(files["original.png"]) != "A" || string(files["generated.png"]) != "B" {
		t.Errorf("unexpected image entries: %v", len(files))
	}

	var look Look
	if err := json.Unmarshal(files["look.json"], &look); err != nil {
		t.Fatalf("look.json: %v", err)
	}
	if look.StyleID != "cyberpunk" || look.StyleName != "Cyberpunk" {
		t.Errorf("unexpected look %+v", look)
	}
	if look.Original.Width != 640 || look.Generated.Bytes != 1 {
		t.Errorf("unexpected image info %+v %+v", look.Original, look.Generated)
	}
}

func TestArtifactSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	a := Artifact{Filename: "x.png", Data: []byte("B")}

	path, err := a.Save(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "B" {
		t.Errorf("unexpected file contents %q %v", data, err)
	}
}
