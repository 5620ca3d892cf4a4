// Package api serves the outfit workflow over HTTP. The same router runs
// behind the local server and the Lambda adapter.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-vogue/internal/media"
	"github.com/fpang/gemini-vogue/internal/session"
	"github.com/fpang/gemini-vogue/internal/style"
	"github.com/fpang/gemini-vogue/internal/view"
	"github.com/fpang/gemini-vogue/internal/workflow"
)

// maxWait caps long-polling on GET /sessions/{id}?wait=true. It stays under
// the API Gateway integration timeout.
const maxWait = 25 * time.Second

// multipartOverhead is the room allowed above the upload limit for the
// multipart envelope before the body is cut off.
const multipartOverhead = 1 << 20

// Options configures the HTTP surface.
type Options struct {
	ProductName        string
	MaxUploadBytes     int64
	AllowedOrigins     []string
	OriginVerifySecret string
	MetricsEnabled     bool
	// Now is the export clock. Defaults to time.Now.
	Now func() time.Time
}

// Server holds the session registry and request handlers.
type Server struct {
	sessions  *session.Registry
	validator *media.Validator
	opts      Options
}

// New creates a Server over the session registry.
func New(sessions *session.Registry, opts Options) *Server {
	if opts.ProductName == "" {
		opts.ProductName = view.DefaultProductName
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{
		sessions:  sessions,
		validator: media.NewValidator(opts.MaxUploadBytes),
		opts:      opts,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(s.withCORS, s.withOriginVerify, withLogging)
	if s.opts.MetricsEnabled {
		r.Use(withMetrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/styles", s.handleStyles)
		r.Post("/sessions", s.handleCreateSession)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Use(s.withSession)
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/upload", s.handleUpload)
			r.Post("/transform", s.handleTransform)
			r.Get("/image", s.handleImage)
			r.Get("/export", s.handleExport)
			r.Get("/bundle", s.handleBundle)
			r.Post("/reset", s.handleReset)
		})
	})

	return r
}

type ctxKey struct{}

type sessionRef struct {
	id   string
	ctrl *workflow.Controller
}

// withSession validates the {id} parameter and loads its controller.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := session.ValidateID(id); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		ctrl, err := s.sessions.Get(id)
		if err != nil {
			httpError(w, http.StatusNotFound, "session not found")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, sessionRef{id: id, ctrl: ctrl})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) sessionRef {
	ref, _ := r.Context().Value(ctxKey{}).(sessionRef)
	return ref
}

// --- Catalog ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"service":  s.opts.ProductName,
		"sessions": s.sessions.Len(),
	})
}

func (s *Server) handleStyles(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"styles":   style.Presets(),
		"customId": style.CustomID,
	})
}

// --- Sessions ---

// POST /api/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, ctrl := s.sessions.Create()
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"sessionId": id,
		"state":     newSnapshot(id, ctrl.Snapshot()),
	})
}

// GET /api/sessions/{id}[?wait=true]
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ref := sessionFrom(r)

	state := ref.ctrl.Snapshot()
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait && state.Busy() {
		ctx, cancel := context.WithTimeout(r.Context(), maxWait)
		defer cancel()
		// A timed-out wait still reports the current (Processing) state.
		state, _ = ref.ctrl.Wait(ctx)
	}
	respondJSON(w, http.StatusOK, newSnapshot(ref.id, state))
}

// DELETE /api/sessions/{id}
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.Delete(sessionFrom(r).id)
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/sessions/{id}/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ref := sessionFrom(r)
	ref.ctrl.Reset()
	respondJSON(w, http.StatusOK, newSnapshot(ref.id, ref.ctrl.Snapshot()))
}

// --- Upload ---

// POST /api/sessions/{id}/upload (multipart field "photo")
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ref := sessionFrom(r)

	r.Body = http.MaxBytesReader(w, r.Body, s.validator.MaxBytes+multipartOverhead)
	file, header, err := r.FormFile("photo")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			tooLarge := &media.ValidationError{
				Type:    media.ErrTypeTooLarge,
				Message: s.validator.TooLargeMessage(),
				Err:     err,
			}
			s.rejectUpload(w, ref, tooLarge)
			return
		}
		httpError(w, http.StatusBadRequest, "photo field is required")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = media.MIMETypeForPath(header.Filename)
	}

	err = ref.ctrl.Accept(s.validator, media.Upload{
		Filename: header.Filename,
		MIMEType: mimeType,
		Size:     header.Size,
		Body:     file,
	})
	switch {
	case errors.Is(err, workflow.ErrBusy):
		stateError(w, http.StatusConflict, "a transformation is in progress", newSnapshot(ref.id, ref.ctrl.Snapshot()))
	case err != nil:
		var valErr *media.ValidationError
		msg := workflow.MsgInvalidUpload
		if errors.As(err, &valErr) {
			msg = valErr.Message
		}
		stateError(w, http.StatusBadRequest, msg, newSnapshot(ref.id, ref.ctrl.Snapshot()))
	default:
		respondJSON(w, http.StatusOK, newSnapshot(ref.id, ref.ctrl.Snapshot()))
	}
}

func (s *Server) rejectUpload(w http.ResponseWriter, ref sessionRef, valErr *media.ValidationError) {
	if err := ref.ctrl.RejectUpload(valErr); errors.Is(err, workflow.ErrBusy) {
		stateError(w, http.StatusConflict, "a transformation is in progress", newSnapshot(ref.id, ref.ctrl.Snapshot()))
		return
	}
	stateError(w, http.StatusBadRequest, valErr.Message, newSnapshot(ref.id, ref.ctrl.Snapshot()))
}

// --- Transform ---

type transformRequest struct {
	StyleID      string `json:"styleId"`
	CustomPrompt string `json:"customPrompt"`
}

// POST /api/sessions/{id}/transform
// Body: {"styleId": "cyberpunk"} or {"customPrompt": "a denim jacket"}
//
// Returns 202 immediately; poll GET /api/sessions/{id} for the outcome.
func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	ref := sessionFrom(r)

	var body transformRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&body); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := ref.ctrl.RequireImage(); err != nil {
		stateError(w, http.StatusBadRequest, workflow.MsgNoImage, newSnapshot(ref.id, ref.ctrl.Snapshot()))
		return
	}

	var req style.Request
	var err error
	if body.CustomPrompt != "" || body.StyleID == style.CustomID {
		req, err = style.NewCustomRequest(body.CustomPrompt)
	} else {
		req, err = style.NewPresetRequest(body.StyleID)
	}
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, err = ref.ctrl.Submit(req)
	switch {
	case errors.Is(err, workflow.ErrNoImage):
		stateError(w, http.StatusBadRequest, workflow.MsgNoImage, newSnapshot(ref.id, ref.ctrl.Snapshot()))
	case errors.Is(err, workflow.ErrBusy):
		stateError(w, http.StatusConflict, "a transformation is in progress", newSnapshot(ref.id, ref.ctrl.Snapshot()))
	case err != nil:
		httpError(w, http.StatusInternalServerError, "failed to start transformation", err.Error())
	default:
		respondJSON(w, http.StatusAccepted, newSnapshot(ref.id, ref.ctrl.Snapshot()))
	}
}

// --- Images ---

// GET /api/sessions/{id}/image?compare=true&max=512
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	ref := sessionFrom(r)
	q := r.URL.Query()

	comparing, _ := strconv.ParseBool(q.Get("compare"))
	img, ok := view.ActiveImage(ref.ctrl.Snapshot(), comparing)
	if !ok {
		httpError(w, http.StatusNotFound, "no image")
		return
	}

	if maxStr := q.Get("max"); maxStr != "" {
		maxDim, err := strconv.Atoi(maxStr)
		if err != nil || maxDim <= 0 {
			httpError(w, http.StatusBadRequest, "max must be a positive integer")
			return
		}
		thumb, err := media.Thumbnail(img, maxDim)
		if err != nil {
			// Serve the full image rather than fail the preview.
			log.Warn().Err(err).Str("sessionId", ref.id).Msg("Thumbnail generation failed")
		} else {
			img = thumb
		}
	}

	respondFile(w, img.MIMEType, "", img.Data)
}

// GET /api/sessions/{id}/export
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ref := sessionFrom(r)
	a, err := view.Export(ref.ctrl.Snapshot(), s.opts.ProductName, s.opts.Now())
	if err != nil {
		httpError(w, http.StatusNotFound, "no transformation result to export")
		return
	}
	respondFile(w, a.MIMEType, a.Filename, a.Data)
}

// GET /api/sessions/{id}/bundle
func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	ref := sessionFrom(r)
	a, err := view.ExportBundle(ref.ctrl.Snapshot(), s.opts.ProductName, s.opts.Now())
	if errors.Is(err, workflow.ErrNoResult) {
		httpError(w, http.StatusNotFound, "no transformation result to export")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to build bundle", err.Error())
		return
	}
	respondFile(w, a.MIMEType, a.Filename, a.Data)
}
