package logging

import (
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger describes how a gemini-vogue process came up: which build,
// which image model, what limits apply to uploads and transformations, and
// where secrets were read from. It emits one structured event.
type StartupLogger struct {
	name       string
	commitHash string
	buildTime  string
	listen     string
	model      string

	maxUploadBytes int64
	timeout        time.Duration
	sessionTTL     time.Duration
	initDuration   time.Duration

	secrets  map[string]string
	features map[string]bool
}

// NewStartupLogger creates a StartupLogger for a process such as
// "gemini-vogue-serve" or "vogue-lambda".
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:     name,
		secrets:  make(map[string]string),
		features: make(map[string]bool),
	}
}

// Build records the commit hash and build time baked in by the linker.
func (s *StartupLogger) Build(commitHash, buildTime string) *StartupLogger {
	s.commitHash = commitHash
	s.buildTime = buildTime
	return s
}

// Listen records the HTTP listen address, if any.
func (s *StartupLogger) Listen(addr string) *StartupLogger {
	s.listen = addr
	return s
}

// Model records the image model transformations are sent to.
func (s *StartupLogger) Model(name string) *StartupLogger {
	s.model = name
	return s
}

// Limits records the upload size limit and the per-call transformation timeout.
func (s *StartupLogger) Limits(maxUploadBytes int64, timeout time.Duration) *StartupLogger {
	s.maxUploadBytes = maxUploadBytes
	s.timeout = timeout
	return s
}

// Sessions records the idle TTL of browser sessions.
func (s *StartupLogger) Sessions(ttl time.Duration) *StartupLogger {
	s.sessionTTL = ttl
	return s
}

// Secret records where a secret came from ("env", "ssm:/path", ...).
// The value itself is never passed in.
func (s *StartupLogger) Secret(label, source string) *StartupLogger {
	s.secrets[label] = source
	return s
}

// Feature records an on/off switch such as "metrics" or "originVerify".
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// InitDuration records how long startup took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// Log writes the startup event to the global logger.
func (s *StartupLogger) Log() {
	s.LogTo(log.Logger)
}

// LogTo writes the startup event to l.
func (s *StartupLogger) LogTo(l zerolog.Logger) {
	proc := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH)
	if s.commitHash != "" {
		proc = proc.Str("commitHash", s.commitHash)
	}
	if s.buildTime != "" {
		proc = proc.Str("buildTime", s.buildTime)
	}
	// Present only under the Lambda runtime.
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		proc = proc.
			Str("functionName", fn).
			Str("region", os.Getenv("AWS_REGION")).
			Str("memoryMB", os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE"))
	}

	vogue := zerolog.Dict()
	if s.model != "" {
		vogue = vogue.Str("model", s.model)
	}
	if s.listen != "" {
		vogue = vogue.Str("listen", s.listen)
	}
	if s.maxUploadBytes > 0 {
		vogue = vogue.Int64("maxUploadBytes", s.maxUploadBytes)
	}
	if s.timeout > 0 {
		vogue = vogue.Dur("transformTimeout", s.timeout)
	}
	if s.sessionTTL > 0 {
		vogue = vogue.Dur("sessionTTL", s.sessionTTL)
	}

	evt := l.Info().Dict("process", proc).Dict("vogue", vogue)

	if len(s.secrets) > 0 {
		d := zerolog.Dict()
		for _, k := range sortedKeys(s.secrets) {
			d = d.Str(k, s.secrets[k])
		}
		evt = evt.Dict("secrets", d)
	}
	if len(s.features) > 0 {
		d := zerolog.Dict()
		for _, k := range sortedKeys(s.features) {
			d = d.Bool(k, s.features[k])
		}
		evt = evt.Dict("features", d)
	}
	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}

	evt.Msg("Startup complete")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
