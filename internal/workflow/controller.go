// Package workflow implements the outfit transformation state machine.
//
// A Controller owns one uploaded photo, at most one in-flight transformation,
// and the last result. Every transition happens under the controller's lock,
// so HTTP handlers, the interactive shell, and MCP tools can share one
// instance. The image service call itself runs outside the lock.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-vogue/internal/media"
	"github.com/fpang/gemini-vogue/internal/metrics"
	"github.com/fpang/gemini-vogue/internal/style"
	"github.com/fpang/gemini-vogue/internal/transform"
)

// DefaultTimeout bounds a single image service call.
const DefaultTimeout = 120 * time.Second

// Option configures a Controller.
type Option func(*Controller)

// WithTimeout sets the per-call deadline. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithObserver registers a callback invoked after every state change,
// outside the controller's lock. Callbacks run one at a time and in order;
// a snapshot overtaken by a newer one is never delivered. A callback must not
// change the controller's state.
func WithObserver(fn func(State)) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, fn)
	}
}

// WithName tags log lines and metrics with a controller name (e.g. a session id).
func WithName(name string) Option {
	return func(c *Controller) {
		c.name = name
	}
}

// Controller is the workflow state machine. The zero value is not usable; call New.
type Controller struct {
	svc       transform.Service
	timeout   time.Duration
	name      string
	observers []func(State)

	mu      sync.Mutex
	state   State
	attempt uint64
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
	seq     uint64

	notifyMu sync.Mutex
	notified uint64
}

// New creates a Controller in the Idle phase with no image.
func New(svc transform.Service, opts ...Option) *Controller {
	c := &Controller{
		svc:     svc,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the cause of the most recent failed transformation, for
// diagnostics. It is never shown to the user.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Upload installs a validated image. Any prior result and selected style are
// discarded and the phase returns to Idle. Uploads are refused while a
// transformation is in flight.
func (c *Controller) Upload(img *media.UploadedImage) error {
	if img == nil {
		return errors.New("nil upload")
	}

	c.mu.Lock()
	if c.state.Phase == Processing {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = State{Phase: Idle, Image: img}
	c.lastErr = nil
	snap, seq := c.changedLocked()
	c.mu.Unlock()

	log.Info().
		Str("controller", c.name).
		Str("filename", img.Filename).
		Str("mime_type", img.MIMEType).
		Int64("size_bytes", img.Size).
		Msg("Upload accepted")

	metrics.Default().
		Dimension("MimeType", img.MIMEType).
		Metric(metrics.UploadBytes, float64(img.Size), metrics.UnitBytes).
		Flush()

	c.notify(snap, seq)
	return nil
}

// RejectUpload records a failed upload validation. The phase, image, and
// result are unchanged; only the message is set. The message comes from a
// *media.ValidationError when err is one.
func (c *Controller) RejectUpload(err error) error {
	msg, reason := MsgInvalidUpload, "invalid"
	var valErr *media.ValidationError
	if errors.As(err, &valErr) {
		reason = valErr.Type.String()
		if valErr.Message != "" {
			msg = valErr.Message
		}
	}

	c.mu.Lock()
	if c.state.Phase == Processing {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state.Message = msg
	snap, seq := c.changedLocked()
	c.mu.Unlock()

	log.Warn().Err(err).Str("controller", c.name).Str("reason", reason).Msg("Upload rejected")
	metrics.Default().Dimension("Reason", reason).Count(metrics.UploadRejectCount).Flush()

	c.notify(snap, seq)
	return nil
}

// Accept validates an upload and installs it, or records the rejection.
// It returns the validation error (if any) so callers can choose a status code.
func (c *Controller) Accept(v *media.Validator, u media.Upload) error {
	if c.Snapshot().Busy() {
		return ErrBusy
	}
	img, err := v.Validate(u)
	if err != nil {
		if rejErr := c.RejectUpload(err); rejErr != nil {
			return rejErr
		}
		return err
	}
	return c.Upload(img)
}

// Reset clears the image, result, selected style, and message. An in-flight
// transformation is abandoned: its context is cancelled and its eventual
// outcome is discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	abandoned := c.state.Phase == Processing
	c.finishAttemptLocked()
	c.state = State{Phase: Idle}
	c.lastErr = nil
	snap, seq := c.changedLocked()
	c.mu.Unlock()

	log.Info().Str("controller", c.name).Bool("abandoned_in_flight", abandoned).Msg("Workflow reset")
	c.notify(snap, seq)
}

// RequireImage applies the no-image rule before a request is built: without
// an upload it sets the "upload first" message and returns ErrNoImage.
func (c *Controller) RequireImage() error {
	c.mu.Lock()
	if c.state.Image != nil {
		c.mu.Unlock()
		return nil
	}
	c.state.Message = MsgNoImage
	snap, seq := c.changedLocked()
	c.mu.Unlock()

	c.notify(snap, seq)
	return ErrNoImage
}

// Submit issues a transformation for req and returns immediately. The
// returned channel is closed when the attempt ends (success, failure, or
// reset).
//
// Without an uploaded image it sets the "upload first" message and returns
// ErrNoImage. While Processing it returns ErrBusy and changes nothing.
func (c *Controller) Submit(req style.Request) (<-chan struct{}, error) {
	c.mu.Lock()
	if c.state.Image == nil {
		c.state.Message = MsgNoImage
		snap, seq := c.changedLocked()
		c.mu.Unlock()
		c.notify(snap, seq)
		return nil, ErrNoImage
	}
	if c.state.Phase == Processing {
		c.mu.Unlock()
		log.Debug().Str("controller", c.name).Str("style_id", req.StyleID()).Msg("Ignoring request while processing")
		return nil, ErrBusy
	}

	c.attempt++
	attempt := c.attempt
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	original := c.state.Image.Image
	c.state = State{
		Phase:         Processing,
		Image:         c.state.Image,
		SelectedStyle: req.StyleID(),
	}
	c.lastErr = nil
	snap, seq := c.changedLocked()
	c.mu.Unlock()

	log.Info().
		Str("controller", c.name).
		Str("style_id", req.StyleID()).
		Uint64("attempt", attempt).
		Msg("Transformation requested")

	c.notify(snap, seq)
	go c.run(ctx, attempt, original, req)
	return done, nil
}

// RequestTransformation builds a StyleRequest from prompt and styleID,
// submits it, and waits for it to resolve. If ctx ends first the
// transformation keeps running and ctx.Err() is returned.
//
// A failed transformation returns an error matching ErrTransformationFailed.
func (c *Controller) RequestTransformation(ctx context.Context, prompt, styleID string) (State, error) {
	done, err := c.Submit(style.NewRequest(prompt, styleID))
	if err != nil {
		return c.Snapshot(), err
	}
	return c.await(ctx, done)
}

// Wait blocks until the in-flight transformation (if any) resolves or ctx ends.
func (c *Controller) Wait(ctx context.Context) (State, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return c.Snapshot(), nil
	}
	return c.await(ctx, done)
}

func (c *Controller) await(ctx context.Context, done <-chan struct{}) (State, error) {
	select {
	case <-done:
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase == Error && c.lastErr != nil {
		return c.state, fmt.Errorf("%w: %w", ErrTransformationFailed, c.lastErr)
	}
	return c.state, nil
}

// run performs the service call for one attempt and applies its outcome.
func (c *Controller) run(ctx context.Context, attempt uint64, original media.Image, req style.Request) {
	start := time.Now()
	generated, err := c.call(ctx, original, req.Prompt())
	elapsed := time.Since(start)

	if err == nil && generated.Empty() {
		err = transform.ErrNoImage
	}

	c.mu.Lock()
	if c.attempt != attempt || c.state.Phase != Processing {
		c.mu.Unlock()
		log.Info().
			Str("controller", c.name).
			Uint64("attempt", attempt).
			Err(err).
			Msg("Discarding outcome of abandoned transformation")
		return
	}

	if err != nil {
		c.state = State{
			Phase:         Error,
			Image:         c.state.Image,
			SelectedStyle: c.state.SelectedStyle,
			Message:       MsgTransformFailed,
		}
		c.lastErr = err
	} else {
		c.state = State{
			Phase:         Success,
			Image:         c.state.Image,
			SelectedStyle: c.state.SelectedStyle,
			Result: &Result{
				Original:  original,
				Generated: generated,
				StyleID:   req.StyleID(),
			},
		}
	}
	// Waiters are released only after observers have seen the outcome.
	done := c.done
	c.done = nil
	c.finishAttemptLocked()
	snap, seq := c.changedLocked()
	c.mu.Unlock()

	c.record(req, generated, err, elapsed)
	c.notify(snap, seq)
	if done != nil {
		close(done)
	}
}

// call invokes the service, converting a panic into an error.
func (c *Controller) call(ctx context.Context, img media.Image, prompt string) (out media.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("image service panic: %v", r)
		}
	}()
	return c.svc.Transform(ctx, img, prompt)
}

// finishAttemptLocked releases the current attempt's context and wakes waiters.
func (c *Controller) finishAttemptLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
}

func (c *Controller) record(req style.Request, generated media.Image, err error, elapsed time.Duration) {
	styleType := "preset"
	if req.IsCustom() {
		styleType = "custom"
	}

	if err != nil {
		kind := transform.Classify(err)
		log.Error().
			Err(err).
			Str("controller", c.name).
			Str("style_id", req.StyleID()).
			Str("kind", string(kind)).
			Bool("transient", kind.Transient()).
			Dur("duration", elapsed).
			Msg("Transformation failed")

		metrics.Default().
			Dimension("Outcome", "failure").
			Dimension("StyleType", styleType).
			Duration(metrics.TransformLatency, elapsed).
			Count(metrics.TransformCount).
			Property("styleId", req.StyleID()).
			Property("failureKind", string(kind)).
			Flush()
		return
	}

	log.Info().
		Str("controller", c.name).
		Str("style_id", req.StyleID()).
		Int("output_bytes", len(generated.Data)).
		Dur("duration", elapsed).
		Msg("Transformation succeeded")

	metrics.Default().
		Dimension("Outcome", "success").
		Dimension("StyleType", styleType).
		Duration(metrics.TransformLatency, elapsed).
		Metric(metrics.GeneratedBytes, float64(len(generated.Data)), metrics.UnitBytes).
		Count(metrics.TransformCount).
		Property("styleId", req.StyleID()).
		Flush()
}

// changedLocked stamps the current state with the next sequence number.
func (c *Controller) changedLocked() (State, uint64) {
	c.seq++
	return c.state, c.seq
}

func (c *Controller) notify(s State, seq uint64) {
	if len(c.observers) == 0 {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if seq <= c.notified {
		return
	}
	c.notified = seq
	for _, fn := range c.observers {
		fn(s)
	}
}
