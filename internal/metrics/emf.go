// Package metrics writes CloudWatch Embedded Metric Format (EMF) documents.
// Each Flush is one JSON line; CloudWatch extracts the metrics from the log
// stream, so nothing on the request path talks to the CloudWatch API.
//
// Outside Lambda the output is discarded unless VOGUE_METRICS is set.
//
// See: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/CloudWatch_Embedded_Metric_Format_Specification.html
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// CloudWatch units.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitBytes        = "Bytes"
	UnitNone         = "None"
)

// DefaultNamespace is used until SetNamespace is called.
const DefaultNamespace = "GeminiVogue"

// Metric names emitted by gemini-vogue.
const (
	TransformCount    = "TransformCount"
	TransformLatency  = "TransformLatencyMs"
	GeneratedBytes    = "GeneratedBytes"
	RequestCount      = "RequestCount"
	RequestLatency    = "RequestLatencyMs"
	SessionsActive    = "SessionsActive"
	SessionsEvicted   = "SessionsEvicted"
	KeyValidation     = "ApiKeyValidationResult"
	KeyValidationTime = "ApiKeyValidationMs"
	UploadRejectCount = "UploadRejectCount"
	UploadBytes       = "UploadBytes"
)

type point struct {
	unit  string
	value float64
}

// Recorder collects one EMF document. Use one per operation; it is not safe
// for concurrent use.
type Recorder struct {
	namespace  string
	dimensions map[string]string
	points     map[string]point
	properties map[string]any
}

var (
	mu        sync.Mutex
	output    io.Writer = os.Stdout
	namespace           = DefaultNamespace

	functionName string
	initOnce     sync.Once
)

// SetOutput redirects flushed documents. io.Discard disables emission.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// SetNamespace changes the namespace used by Default. Empty is ignored.
func SetNamespace(ns string) {
	mu.Lock()
	defer mu.Unlock()
	if ns != "" {
		namespace = ns
	}
}

// Default creates a Recorder in the configured namespace.
func Default() *Recorder {
	mu.Lock()
	ns := namespace
	mu.Unlock()
	return New(ns)
}

// New creates a Recorder. Under Lambda it carries a FunctionName dimension.
func New(ns string) *Recorder {
	initOnce.Do(func() { functionName = os.Getenv("AWS_LAMBDA_FUNCTION_NAME") })
	r := &Recorder{
		namespace:  ns,
		dimensions: make(map[string]string),
		points:     make(map[string]point),
		properties: make(map[string]any),
	}
	if functionName != "" {
		r.dimensions["FunctionName"] = functionName
	}
	return r
}

// Dimension adds an indexed attribute to every metric in the document.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric records a value with a CloudWatch unit.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	r.points[name] = point{unit: unit, value: value}
	return r
}

// Duration records d in milliseconds.
func (r *Recorder) Duration(name string, d time.Duration) *Recorder {
	return r.Metric(name, float64(d.Milliseconds()), UnitMilliseconds)
}

// Gauge records an instantaneous count such as active sessions.
func (r *Recorder) Gauge(name string, n int) *Recorder {
	return r.Metric(name, float64(n), UnitCount)
}

// Count records a single occurrence.
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Property adds a searchable field that is not a metric.
func (r *Recorder) Property(key string, value any) *Recorder {
	r.properties[key] = value
	return r
}

// Flush writes the document as one line. A Recorder with no metrics writes nothing.
func (r *Recorder) Flush() {
	if len(r.points) == 0 {
		return
	}

	data, err := json.Marshal(r.document(time.Now()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "emf: failed to marshal metrics: %v\n", err)
		return
	}

	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(output, string(data))
}

func (r *Recorder) document(now time.Time) map[string]any {
	type metricDef struct {
		Name string `json:"Name"`
		Unit string `json:"Unit"`
	}
	type directive struct {
		Namespace  string      `json:"Namespace"`
		Dimensions [][]string  `json:"Dimensions"`
		Metrics    []metricDef `json:"Metrics"`
	}

	names := sortedKeys(r.points)
	defs := make([]metricDef, 0, len(names))
	for _, name := range names {
		defs = append(defs, metricDef{Name: name, Unit: r.points[name].unit})
	}

	doc := make(map[string]any, 1+len(r.properties)+len(r.dimensions)+len(r.points))
	// Later writes win: dimensions and values override a same-named property.
	for k, v := range r.properties {
		doc[k] = v
	}
	for k, v := range r.dimensions {
		doc[k] = v
	}
	for k, p := range r.points {
		doc[k] = p.value
	}
	doc["_aws"] = map[string]any{
		"Timestamp": now.UnixMilli(),
		"CloudWatchMetrics": []directive{{
			Namespace:  r.namespace,
			Dimensions: [][]string{sortedKeys(r.dimensions)},
			Metrics:    defs,
		}},
	}
	return doc
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
