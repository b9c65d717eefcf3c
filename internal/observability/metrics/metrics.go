package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// Recorder aggregates in-memory counters and gauges for HTTP requests,
// upstream VCF calls, and session lifecycle events. It coordinates concurrent
// writers via a RWMutex while exposing a thread-safe gauge for active session
// tracking.
type Recorder struct {
	mu               sync.RWMutex
	requestCount     map[requestLabel]uint64
	requestDuration  map[requestLabel]time.Duration
	upstreamAttempts map[string]uint64
	upstreamFailures map[string]uint64
	upstreamRetries  map[string]uint64
	sessionEvents    map[string]uint64
	activeSessions   atomic.Int64
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps so callers
// can immediately record metrics without additional setup.
func New() *Recorder {
	return &Recorder{
		requestCount:     make(map[requestLabel]uint64),
		requestDuration:  make(map[requestLabel]time.Duration),
		upstreamAttempts: make(map[string]uint64),
		upstreamFailures: make(map[string]uint64),
		upstreamRetries:  make(map[string]uint64),
		sessionEvents:    make(map[string]uint64),
	}
}

// Default returns the singleton Recorder instance shared across helper
// functions for packages that do not require custom instrumentation pipelines.
func Default() *Recorder {
	return defaultRecorder
}

// ObserveRequest normalizes the request label set and accumulates totals for
// request count and cumulative duration by HTTP method, path, and status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: fmt.Sprintf("%d", status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// ObserveUpstreamAttempt records one upstream call attempt keyed by operation
// name (e.g., "authenticate", "fetch_virtual_centers").
func (r *Recorder) ObserveUpstreamAttempt(operation string) {
	op := normalizeName(operation)
	r.mu.Lock()
	r.upstreamAttempts[op]++
	r.mu.Unlock()
}

// ObserveUpstreamFailure records a terminally failed upstream call keyed by
// operation name. The caller should also record the attempts separately.
func (r *Recorder) ObserveUpstreamFailure(operation string) {
	op := normalizeName(operation)
	r.mu.Lock()
	r.upstreamFailures[op]++
	r.mu.Unlock()
}

// ObserveUpstreamRetry records a transport-level failure that triggered
// another attempt.
func (r *Recorder) ObserveUpstreamRetry(operation string) {
	op := normalizeName(operation)
	r.mu.Lock()
	r.upstreamRetries[op]++
	r.mu.Unlock()
}

// SessionCreated records a session creation and increments the active session
// gauge atomically so concurrent logins remain consistent.
func (r *Recorder) SessionCreated() {
	r.incrementSessionEvent("created")
	r.activeSessions.Add(1)
}

// SessionInvalidated records an explicit invalidation and decrements the
// active session gauge, guarding against negative counts.
func (r *Recorder) SessionInvalidated() {
	r.incrementSessionEvent("invalidated")
	r.decrementGauge(&r.activeSessions)
}

// SessionExpired records a lazy eviction observed during lookup and
// decrements the active session gauge.
func (r *Recorder) SessionExpired() {
	r.incrementSessionEvent("expired")
	r.decrementGauge(&r.activeSessions)
}

func (r *Recorder) incrementSessionEvent(event string) {
	normalized := normalizeName(event)
	r.mu.Lock()
	r.sessionEvents[normalized]++
	r.mu.Unlock()
}

// ActiveSessions exposes the current gauge of live sessions.
func (r *Recorder) ActiveSessions() int64 {
	return r.activeSessions.Load()
}

// Reset clears all recorded metrics. Intended for tests.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCount = make(map[requestLabel]uint64)
	r.requestDuration = make(map[requestLabel]time.Duration)
	r.upstreamAttempts = make(map[string]uint64)
	r.upstreamFailures = make(map[string]uint64)
	r.upstreamRetries = make(map[string]uint64)
	r.sessionEvents = make(map[string]uint64)
	r.activeSessions.Store(0)
}

// Handler exposes the Recorder as an http.Handler that writes Prometheus text
// exposition data with the appropriate content type.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.Write(w)
	})
}

// Write renders the Recorder's metrics in Prometheus text format, sorting
// label sets to provide stable output for scrapes and tests.
func (r *Recorder) Write(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requestLabels := r.sortedRequestLabels()
	upstreamOperations := r.sortedUpstreamOperations()
	sessionEvents := r.sortedSessionEvents()

	fmt.Fprintln(w, "# HELP vcfgate_http_requests_total Total number of HTTP requests processed by the gateway")
	fmt.Fprintln(w, "# TYPE vcfgate_http_requests_total counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "vcfgate_http_requests_total{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP vcfgate_http_request_duration_seconds_sum Cumulative duration of HTTP requests in seconds")
	fmt.Fprintln(w, "# TYPE vcfgate_http_request_duration_seconds_sum counter")
	for _, label := range requestLabels {
		duration := r.requestDuration[label].Seconds()
		fmt.Fprintf(w, "vcfgate_http_request_duration_seconds_sum{method=\"%s\",path=\"%s\",status=\"%s\"} %f\n", label.method, label.path, label.status, duration)
	}

	fmt.Fprintln(w, "# HELP vcfgate_http_request_duration_seconds_count Total number of observations for request durations")
	fmt.Fprintln(w, "# TYPE vcfgate_http_request_duration_seconds_count counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "vcfgate_http_request_duration_seconds_count{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP vcfgate_upstream_attempts_total Total upstream VCF call attempts by operation")
	fmt.Fprintln(w, "# TYPE vcfgate_upstream_attempts_total counter")
	for _, op := range upstreamOperations {
		fmt.Fprintf(w, "vcfgate_upstream_attempts_total{operation=\"%s\"} %d\n", op, r.upstreamAttempts[op])
	}

	fmt.Fprintln(w, "# HELP vcfgate_upstream_retries_total Transport-level upstream failures that triggered another attempt")
	fmt.Fprintln(w, "# TYPE vcfgate_upstream_retries_total counter")
	for _, op := range upstreamOperations {
		fmt.Fprintf(w, "vcfgate_upstream_retries_total{operation=\"%s\"} %d\n", op, r.upstreamRetries[op])
	}

	fmt.Fprintln(w, "# HELP vcfgate_upstream_failures_total Terminally failed upstream VCF calls by operation")
	fmt.Fprintln(w, "# TYPE vcfgate_upstream_failures_total counter")
	for _, op := range upstreamOperations {
		fmt.Fprintf(w, "vcfgate_upstream_failures_total{operation=\"%s\"} %d\n", op, r.upstreamFailures[op])
	}

	fmt.Fprintln(w, "# HELP vcfgate_session_events_total Session lifecycle events by type")
	fmt.Fprintln(w, "# TYPE vcfgate_session_events_total counter")
	for _, event := range sessionEvents {
		fmt.Fprintf(w, "vcfgate_session_events_total{event=\"%s\"} %d\n", event, r.sessionEvents[event])
	}

	fmt.Fprintln(w, "# HELP vcfgate_active_sessions Current number of live gateway sessions")
	fmt.Fprintln(w, "# TYPE vcfgate_active_sessions gauge")
	fmt.Fprintf(w, "vcfgate_active_sessions %d\n", r.activeSessions.Load())
}

func (r *Recorder) sortedRequestLabels() []requestLabel {
	labels := make([]requestLabel, 0, len(r.requestCount))
	for label := range r.requestCount {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].method != labels[j].method {
			return labels[i].method < labels[j].method
		}
		if labels[i].path != labels[j].path {
			return labels[i].path < labels[j].path
		}
		return labels[i].status < labels[j].status
	})
	return labels
}

func (r *Recorder) sortedUpstreamOperations() []string {
	seen := make(map[string]struct{}, len(r.upstreamAttempts)+len(r.upstreamFailures)+len(r.upstreamRetries))
	for op := range r.upstreamAttempts {
		seen[op] = struct{}{}
	}
	for op := range r.upstreamFailures {
		seen[op] = struct{}{}
	}
	for op := range r.upstreamRetries {
		seen[op] = struct{}{}
	}
	ops := make([]string, 0, len(seen))
	for op := range seen {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

func (r *Recorder) sortedSessionEvents() []string {
	events := make([]string, 0, len(r.sessionEvents))
	for event := range r.sessionEvents {
		events = append(events, event)
	}
	sort.Strings(events)
	return events
}

func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if looksLikeIdentifier(part) {
			parts[i] = ":id"
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasSuffix(normalized, "/") && len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

func looksLikeIdentifier(segment string) bool {
	if len(segment) >= 16 {
		return true
	}
	digitCount := 0
	for _, r := range segment {
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	return digitCount >= 3
}

func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

func (r *Recorder) decrementGauge(gauge *atomic.Int64) {
	for {
		current := gauge.Load()
		if current <= 0 {
			return
		}
		if gauge.CompareAndSwap(current, current-1) {
			return
		}
	}
}

// ObserveRequest is a helper on the default recorder.
func ObserveRequest(method, path string, status int, duration time.Duration) {
	defaultRecorder.ObserveRequest(method, path, status, duration)
}

// ObserveUpstreamAttempt records an upstream attempt on the default recorder.
func ObserveUpstreamAttempt(operation string) {
	defaultRecorder.ObserveUpstreamAttempt(operation)
}

// ObserveUpstreamFailure records an upstream failure on the default recorder.
func ObserveUpstreamFailure(operation string) {
	defaultRecorder.ObserveUpstreamFailure(operation)
}

// Handler exposes the default recorder as an HTTP handler.
func Handler() http.Handler {
	return defaultRecorder.Handler()
}
