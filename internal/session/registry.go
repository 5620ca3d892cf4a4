// Package session keeps one workflow controller per browser session.
package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-vogue/internal/metrics"
	"github.com/fpang/gemini-vogue/internal/transform"
	"github.com/fpang/gemini-vogue/internal/workflow"
)

// DefaultTTL is how long an untouched session survives.
const DefaultTTL = 30 * time.Minute

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// uuidRegex matches UUID v4 format: 8-4-4-4-12 lowercase hex with dashes.
var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ValidateID rejects anything that is not a lowercase UUID.
func ValidateID(id string) error {
	if !uuidRegex.MatchString(id) {
		return fmt.Errorf("invalid sessionId: must be a UUID (e.g., a1b2c3d4-e5f6-7890-abcd-ef1234567890)")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid sessionId: %w", err)
	}
	return nil
}

type entry struct {
	ctrl     *workflow.Controller
	created  time.Time
	lastSeen time.Time
}

// Registry maps session ids to controllers. It is safe for concurrent use.
type Registry struct {
	svc  transform.Service
	opts []workflow.Option
	ttl  time.Duration
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewRegistry creates a registry whose controllers call svc. A non-positive
// ttl selects DefaultTTL.
func NewRegistry(svc transform.Service, ttl time.Duration, opts ...workflow.Option) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		svc:      svc,
		opts:     opts,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Create starts a new session and returns its id and controller.
func (r *Registry) Create() (string, *workflow.Controller) {
	id := uuid.NewString()
	// The session id names the controller even when the caller passed its own name.
	opts := append(append([]workflow.Option{}, r.opts...), workflow.WithName(id))
	ctrl := workflow.New(r.svc, opts...)

	now := r.now()
	r.mu.Lock()
	r.sessions[id] = &entry{ctrl: ctrl, created: now, lastSeen: now}
	count := len(r.sessions)
	r.mu.Unlock()

	log.Info().Str("sessionId", id).Int("active", count).Msg("Session created")
	return id, ctrl
}

// Get returns the session's controller and refreshes its idle timer.
func (r *Registry) Get(id string) (*workflow.Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastSeen = r.now()
	return e.ctrl, nil
}

// Delete resets and removes a session. It reports whether the session existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		e.ctrl.Reset()
		log.Info().Str("sessionId", id).Msg("Session deleted")
	}
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle longer than the TTL. Sessions with a
// transformation in flight are kept. It returns the number evicted.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*entry
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) && !e.ctrl.Snapshot().Busy() {
			expired = append(expired, e)
			delete(r.sessions, id)
		}
	}
	remaining := len(r.sessions)
	r.mu.Unlock()

	for _, e := range expired {
		e.ctrl.Reset()
	}

	if len(expired) > 0 {
		log.Info().Int("evicted", len(expired)).Int("active", remaining).Msg("Expired sessions swept")
		metrics.Default().
			Gauge(metrics.SessionsEvicted, len(expired)).
			Gauge(metrics.SessionsActive, remaining).
			Flush()
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.ttl / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
