package core

import (
	"context"
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// ExpvarMetricsRecorder publishes aggregate timing and result counters via
// expvar. It fulfills MetricsRecorder for deployments that prefer
// process-local metrics without an external scrape target. Totals are kept
// in milliseconds per operation alongside success/error counters.
type ExpvarMetricsRecorder struct {
	name      string
	mu        sync.Mutex
	durations map[string]float64
	results   map[string]map[string]int64
}

// ExpvarMetricsSnapshot captures a read-only view of the recorded metrics.
type ExpvarMetricsSnapshot struct {
	DurationsMS map[string]float64          `json:"durations_ms_total"`
	Results     map[string]map[string]int64 `json:"results_total"`
	RecordedAt  time.Time                   `json:"recorded_at"`
}

// NewExpvarMetricsRecorder constructs an expvar-backed recorder and publishes
// it under the supplied name. When name is empty, a unique identifier is
// generated.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("crate_service_metrics_%d", id)
	}
	rec := &ExpvarMetricsRecorder{
		name:      name,
		durations: make(map[string]float64),
		results:   make(map[string]map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name associated with the recorder.
func (r *ExpvarMetricsRecorder) Name() string {
	return r.name
}

// Snapshot returns an immutable copy of the aggregated metrics.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	durations := make(map[string]float64, len(r.durations))
	for op, total := range r.durations {
		durations[op] = total
	}

	results := make(map[string]map[string]int64, len(r.results))
	for op, statusCounts := range r.results {
		cpy := make(map[string]int64, len(statusCounts))
		for status, count := range statusCounts {
			cpy[status] = count
		}
		results[op] = cpy
	}

	return ExpvarMetricsSnapshot{
		DurationsMS: durations,
		Results:     results,
		RecordedAt:  time.Now().UTC(),
	}
}

// Observe records a lifecycle operation outcome.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)
	status := "error"
	if success {
		status = "success"
	}

	r.mu.Lock()
	r.durations[operation] += ms
	if _, ok := r.results[operation]; !ok {
		r.results[operation] = make(map[string]int64, 2)
	}
	r.results[operation][status]++
	r.mu.Unlock()
}

// ExpvarSideEffectLog publishes per-sink failure counters via expvar and
// retains the most recent failure per sink for inspection.
type ExpvarSideEffectLog struct {
	name     string
	mu       sync.Mutex
	failures map[string]int64
	lastErr  map[string]string
}

// SideEffectSnapshot captures a read-only view of recorded sink failures.
type SideEffectSnapshot struct {
	FailuresTotal map[string]int64  `json:"failures_total"`
	LastError     map[string]string `json:"last_error"`
	RecordedAt    time.Time         `json:"recorded_at"`
}

// NewExpvarSideEffectLog constructs an expvar-backed sink failure log and
// publishes it under the supplied name. When name is empty, a unique
// identifier is generated.
func NewExpvarSideEffectLog(name string) *ExpvarSideEffectLog {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("crate_side_effects_%d", id)
	}
	log := &ExpvarSideEffectLog{
		name:     name,
		failures: make(map[string]int64),
		lastErr:  make(map[string]string),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return log.Snapshot()
	}))
	return log
}

// Name returns the expvar export name associated with the log.
func (l *ExpvarSideEffectLog) Name() string {
	return l.name
}

// Snapshot returns an immutable copy of the recorded failures.
func (l *ExpvarSideEffectLog) Snapshot() SideEffectSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	failures := make(map[string]int64, len(l.failures))
	for sink, count := range l.failures {
		failures[sink] = count
	}
	lastErr := make(map[string]string, len(l.lastErr))
	for sink, msg := range l.lastErr {
		lastErr[sink] = msg
	}
	return SideEffectSnapshot{
		FailuresTotal: failures,
		LastError:     lastErr,
		RecordedAt:    time.Now().UTC(),
	}
}

// RecordSinkFailure counts a failed event delivery for the named sink.
func (l *ExpvarSideEffectLog) RecordSinkFailure(sink string, _ Event, err error) {
	if sink == "" || err == nil {
		return
	}
	l.mu.Lock()
	l.failures[sink]++
	l.lastErr[sink] = err.Error()
	l.mu.Unlock()
}
