package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fpang/gemini-vogue/internal/media"
	"github.com/fpang/gemini-vogue/internal/metrics"
	"github.com/fpang/gemini-vogue/internal/session"
	"github.com/fpang/gemini-vogue/internal/transform"
	"github.com/fpang/gemini-vogue/internal/workflow"
)

func TestMain(m *testing.M) {
	metrics.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type testEnv struct {
	handler http.Handler
	calls   atomic.Int32
	release chan struct{}
	output  []byte
}

// newTestEnv starts a server whose image service returns output. When gated
// is true each call blocks until env.release is closed.
func newTestEnv(t *testing.T, gated bool, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{
		release: make(chan struct{}),
		output:  pngBytes(t, 40, 20, color.RGBA{B: 255, A: 255}),
	}
	if !gated {
		close(env.release)
	}
	svc := transform.ServiceFunc(func(ctx context.Context, img media.Image, prompt string) (media.Image, error) {
		env.calls.Add(1)
		select {
		case <-env.release:
		case <-ctx.Done():
			return media.Image{}, ctx.Err()
		}
		return media.Image{Data: env.output, MIMEType: media.MIMEPNG}, nil
	})

	if opts.Now == nil {
		opts.Now = func() time.Time { return time.UnixMilli(1700000000123) }
	}
	reg := session.NewRegistry(svc, time.Minute)
	env.handler = New(reg, opts).Handler()
	t.Cleanup(func() {
		select {
		case <-env.release:
		default:
			close(env.release)
		}
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return e.serve(req)
}

func (e *testEnv) serve(req *http.Request) *http.Response {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec.Result()
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/sessions", nil, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var body struct {
		SessionID string `json:"sessionId"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	return body.SessionID
}

func (e *testEnv) upload(t *testing.T, id, filename, mimeType string, data []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="photo"; filename="`+filename+`"`)
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()
	return e.do(t, http.MethodPost, "/api/sessions/"+id+"/upload", &buf, mw.FormDataContentType())
}

func (e *testEnv) transform(t *testing.T, id, body string) *http.Response {
	t.Helper()
	return e.do(t, http.MethodPost, "/api/sessions/"+id+"/transform", strings.NewReader(body), "application/json")
}

type stateBody struct {
	Error string           `json:"error"`
	State snapshotResponse `json:"state"`
}

func decodeSnapshot(t *testing.T, resp *http.Response) snapshotResponse {
	t.Helper()
	var s snapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return s
}

func decodeStateError(t *testing.T, resp *http.Response) stateBody {
	t.Helper()
	var b stateBody
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return b
}

func TestHealthAndStyles(t *testing.T) {
	env := newTestEnv(t, false, Options{})

	resp := env.do(t, http.MethodGet, "/api/health", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health: expected 200, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/styles", nil, "")
	var body struct {
		Styles []struct {
			ID string `json:"id"`
		} `json:"styles"`
		CustomID string `json:"customId"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if len(body.Styles) != 7 || body.Styles[0].ID != "cyberpunk" || body.CustomID != "custom" {
		t.Errorf("unexpected styles response %+v", body)
	}
}

func TestFullTransformationFlow(t *testing.T) {
	env := newTestEnv(t, false, Options{})
	id := env.createSession(t)
	original := pngBytes(t, 20, 20, color.RGBA{R: 255, A: 255})

	resp := env.upload(t, id, "me.png", "image/png", original)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d", resp.StatusCode)
	}
	s := decodeSnapshot(t, resp)
	if s.Phase != workflow.Idle || s.Image == nil || s.Image.Width != 20 {
		t.Fatalf("unexpected snapshot after upload %+v", s)
	}

	resp = env.transform(t, id, `{"styleId":"cyberpunk"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("transform: expected 202, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/sessions/"+id+"?wait=true", nil, "")
	s = decodeSnapshot(t, resp)
	if s.Phase != workflow.Success || s.Result == nil || s.Result.StyleID != "cyberpunk" {
		t.Fatalf("expected success, got %+v", s)
	}
	if !s.CanExport || s.SelectedStyle != "cyberpunk" {
		t.Errorf("unexpected snapshot flags %+v", s)
	}

	resp = env.do(t, http.MethodGet, "/api/sessions/"+id+"/image", nil, "")
	data, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(data, env.output) {
		t.Error("active image should be the generated image")
	}

	resp = env.do(t, http.MethodGet, "/api/sessions/"+id+"/image?compare=true", nil, "")
	data, _ = io.ReadAll(resp.Body)
	if !bytes.Equal(data, original) {
		t.Error("comparing should show the original")
	}

	resp = env.do(t, http.MethodGet, "/api/sessions/"+id+"/image?max=10", nil, "")
	if resp.Header.Get("Content-Type") != media.MIMEJPEG {
		t.Errorf("expected JPEG preview, got %q", resp.Header.Get("Content-Type"))
	}

	resp = env.do(t, http.MethodGet, "/api/sessions/"+id+"/export", nil, "")
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "gemini-vogue-1700000000123.png") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	data, _ = io.ReadAll(resp.Body)
	if !bytes.Equal(data, env.output) {
		t.Error("export should contain the generated bytes")
	}

	resp = env.do(t, http.MethodGet, "/api/sessions/"+id+"/bundle", nil, "")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/zip" {
		t.Errorf("unexpected bundle response %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}

func TestTransformWithoutImage(t *testing.T) {
	env := newTestEnv(t, false, Options{})
	id := env.createSession(t)

	resp := env.transform(t, id, `{"styleId":"gala"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	b := decodeStateError(t, resp)
	if b.Error != workflow.MsgNoImage || b.State.Message != workflow.MsgNoImage {
		t.Errorf("unexpected error body %+v", b)
	}
	if env.calls.Load() != 0 {
		t.Error("service must not be called without an image")
	}
}

func TestTransformWithoutImageChecksImageFirst(t *testing.T) {
	env := newTestEnv(t, false, Options{})
	id := env.createSession(t)

	for _, body := range []string{`{"styleId":"disco"}`, `{"styleId":"custom","customPrompt":"  "}`} {
		resp := env.transform(t, id, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, resp.StatusCode)
		}
		b := decodeStateError(t, resp)
		if b.Error != workflow.MsgNoImage || b.State.Message != workflow.MsgNoImage {
			t.Errorf("%s: expected the upload-first message, got %+v", body, b)
		}
	}
}

func TestTransformRejectsBadStyle(t *testing.T) {
	env := newTestEnv(t, false, Options{})
	id := env.createSession(t)
	env.upload(t, id, "me.png", "image/png", pngBytes(t, 4, 4, color.White))

	for _, body := range []string{`{"styleId":"disco"}`, `{"styleId":"custom","customPrompt":"   "}`, `not json`} {
		if resp := env.transform(t, id, body); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, resp.StatusCode)
		}
	}
	if env.calls.Load() != 0 {
		t.Error("service must not be called for rejected requests")
	}
}

func TestDoubleTransformIsConflict(t *testing.T) {
	env := newTestEnv(t, true, Options{})
	id := env.createSession(t)
	env.upload(t, id, "me.png", "image/png", pngBytes(t, 4, 4, color.White))

	if resp := env.transform(t, id, `{"styleId":"cyberpunk"}`); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	resp := env.transform(t, id, `{"customPrompt":"pirate"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	b := decodeStateError(t, resp)
	if b.State.SelectedStyle != "cyberpunk" || !b.State.Busy || b.State.OverlayCaption != workflow.MsgOverlay {
		t.Errorf("unexpected busy snapshot %+v", b.State)
	}

	if resp := env.upload(t, id, "other.png", "image/png", pngBytes(t, 4, 4, color.Black)); resp.StatusCode != http.StatusConflict {
		t.Errorf("upload while processing: expected 409, got %d", resp.StatusCode)
	}

	close(env.release)
	s := decodeSnapshot(t, env.do(t, http.MethodGet, "/api/sessions/"+id+"?wait=true", nil, ""))
	if s.Phase != workflow.Success || s.Result.StyleID != "cyberpunk" {
		t.Errorf("expected first request to win, got %+v", s)
	}
	if n := env.calls.Load(); n != 1 {
		t.Errorf("expected one service call, got %d", n)
	}
}

func TestUploadRejections(t *testing.T) {
	env := newTestEnv(t, false, Options{})
	id := env.createSession(t)

	resp := env.upload(t, id, "doc.pdf", "application/pdf", []byte("%PDF-1.4"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	b := decodeStateError(t, resp)
	if b.Error != media.MsgUnsupportedType || b.State.Image != nil || b.State.Phase != workflow.Idle {
		t.Errorf("unexpected rejection %+v", b)
	}

	big := make([]byte, 5*1024*1024)
	resp = env.upload(t, id, "big.jpg", "image/jpeg", big)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	b = decodeStateError(t, resp)
	if b.Error != "File size too large. Max 4MB." || b.State.Image != nil || b.State.Phase != workflow.Idle {
		t.Errorf("unexpected rejection %+v", b)
	}

	resp = env.do(t, http.MethodPost, "/api/sessions/"+id+"/upload", strings.NewReader("x"), "text/plain")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing photo: expected 400, got %d", resp.StatusCode)
	}
}

func TestUploadDiscardsResult(t *testing.T) {
	env := newTestEnv(t, false, Options{})
	id := env.createSession(t)
	env.upload(t, id, "a.png", "image/png", pngBytes(t, 4, 4, color.White))
	env.transform(t, id, `{"styleId":"winter"}`)
	env.do(t, http.MethodGet, "/api/sessions/"+id+"?wait=true", nil, "")

	s := decodeSnapshot(t, env.upload(t, id, "b.png", "image/png", pngBytes(t, 6, 6, color.Black)))
	if s.Phase != workflow.Idle || s.Result != nil || s.SelectedStyle != "" || s.Image.Filename != "b.png" {
		t.Errorf("expected fresh idle state, got %+v", s)
	}

	if resp := env.do(t, http.MethodGet, "/api/sessions/"+id+"/export", nil, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("export without result: expected 404, got %d", resp.StatusCode)
	}
}

func TestResetAndDelete(t *testing.T) {
	env := newTestEnv(t, false, Options{})
	id := env.createSession(t)
	env.upload(t, id, "a.png", "image/png", pngBytes(t, 4, 4, color.White))

	s := decodeSnapshot(t, env.do(t, http.MethodPost, "/api/sessions/"+id+"/reset", nil, ""))
	if s.Image != nil || s.Phase != workflow.Idle {
		t.Errorf("expected empty state after reset, got %+v", s)
	}
	if resp := env.do(t, http.MethodGet, "/api/sessions/"+id+"/image", nil, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("image after reset: expected 404, got %d", resp.StatusCode)
	}

	if resp := env.do(t, http.MethodDelete, "/api/sessions/"+id, nil, ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/api/sessions/"+id, nil, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("after delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestSessionIDValidation(t *testing.T) {
	env := newTestEnv(t, false, Options{})

	if resp := env.do(t, http.MethodGet, "/api/sessions/not-a-uuid", nil, ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/api/sessions/a1b2c3d4-e5f6-7890-abcd-ef1234567890", nil, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, false, Options{AllowedOrigins: []string{"https://vogue.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "https://vogue.example.com")
	resp := env.serve(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "https://vogue.example.com" {
		t.Error("expected origin to be allowed")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp = env.serve(req)
	if resp.Header.Get("Access-Control-Allow-Origin") != "" {
		t.Error("unexpected CORS header for unknown origin")
	}
}

func TestOriginVerify(t *testing.T) {
	env := newTestEnv(t, false, Options{OriginVerifySecret: "s3cret"})

	if resp := env.do(t, http.MethodGet, "/api/health", nil, ""); resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 without header, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("x-origin-verify", "s3cret")
	resp := env.serve(req)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with header, got %d", resp.StatusCode)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	var buf bytes.Buffer
	metrics.SetOutput(&buf)
	defer metrics.SetOutput(io.Discard)

	env := newTestEnv(t, false, Options{MetricsEnabled: true})
	env.do(t, http.MethodGet, "/api/health", nil, "")

	if !strings.Contains(buf.String(), `"Endpoint":"/api/health"`) {
		t.Errorf("expected endpoint dimension in EMF output, got %s", buf.String())
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := map[string]string{
		"/api/health": "/api/health",
		"/api/sessions/a1b2c3d4-e5f6-7890-abcd-ef1234567890/image": "/api/sessions/*/image",
		"/api/sessions/": "/api/sessions",
	}
	for in, want := range tests {
		if got := normalizeEndpoint(in); got != want {
			t.Errorf("normalizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}

	if looksLikeID("upload") || !looksLikeID("deadbeefcafe") {
		t.Error("looksLikeID misclassified a segment")
	}
}
