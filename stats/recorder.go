// Package stats aggregates request and task outcomes for the running
// population and forwards every observation to the configured sinks.
package stats

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// maxDistinctErrors bounds the error breakdown; later messages are folded
// into otherError.
const maxDistinctErrors = 100

const otherError = "other"

// Sink receives every observation after the recorder has aggregated it.
type Sink interface {
	ObserveRequest(method, name string, d time.Duration, err error)
	ObserveTask(name string, d time.Duration, err error)
	SetActiveUsers(kind string, n int64)
}

type entry struct {
	requests int64
	failures int64
	total    time.Duration
	min      time.Duration
	max      time.Duration
	bytes    int64
}

func (e *entry) add(d time.Duration, size int64, failed bool) {
	if e.requests == 0 || d < e.min {
		e.min = d
	}
	if d > e.max {
		e.max = d
	}
	e.requests++
	e.total += d
	e.bytes += size
	if failed {
		e.failures++
	}
}

func (e *entry) merge(o *entry) {
	if o.requests == 0 {
		return
	}
	if e.requests == 0 || o.min < e.min {
		e.min = o.min
	}
	if o.max > e.max {
		e.max = o.max
	}
	e.requests += o.requests
	e.failures += o.failures
	e.total += o.total
	e.bytes += o.bytes
}

type requestKey struct {
	method string
	name   string
}

type errorKey struct {
	method string
	name   string
	err    string
}

// EntryStats is the public view of one aggregated row.
type EntryStats struct {
	Method            string  `json:"method,omitempty"`
	Name              string  `json:"name"`
	NumRequests       int64   `json:"num_requests"`
	NumFailures       int64   `json:"num_failures"`
	AvgResponseTimeMs float64 `json:"avg_response_time"`
	MinResponseTimeMs float64 `json:"min_response_time"`
	MaxResponseTimeMs float64 `json:"max_response_time"`
	AvgContentLength  float64 `json:"avg_content_length"`
	FailRatio         float64 `json:"fail_ratio"`
}

// ErrorStats counts one distinct failure message.
type ErrorStats struct {
	Method      string `json:"method,omitempty"`
	Name        string `json:"name"`
	Error       string `json:"error"`
	Occurrences int64  `json:"occurrences"`
}

// Snapshot is a consistent copy of the recorder state.
type Snapshot struct {
	StartedAt   time.Time        `json:"started_at"`
	Requests    []EntryStats     `json:"stats"`
	Tasks       []EntryStats     `json:"tasks"`
	Errors      []ErrorStats     `json:"errors"`
	Total       EntryStats       `json:"total"`
	ActiveUsers map[string]int64 `json:"active_users"`
}

// Recorder is safe for concurrent use by every simulated user.
type Recorder struct {
	mu       sync.Mutex
	started  time.Time
	requests map[requestKey]*entry
	tasks    map[string]*entry
	errors   map[errorKey]int64
	users    map[string]int64
	sinks    []Sink
	now      func() time.Time
}

func NewRecorder(sinks ...Sink) *Recorder {
	r := &Recorder{sinks: sinks, now: time.Now, users: map[string]int64{}}
	r.resetLocked()
	return r
}

func (r *Recorder) resetLocked() {
	r.started = r.now()
	r.requests = map[requestKey]*entry{}
	r.tasks = map[string]*entry{}
	r.errors = map[errorKey]int64{}
}

// RecordRequest records one HTTP request made against the target.
func (r *Recorder) RecordRequest(method, name string, d time.Duration, size int64, err error) {
	r.mu.Lock()
	k := requestKey{method: method, name: name}
	e, ok := r.requests[k]
	if !ok {
		e = &entry{}
		r.requests[k] = e
	}
	e.add(d, size, err != nil)
	if err != nil {
		r.recordErrorLocked(method, name, err)
	}
	r.mu.Unlock()

	for _, s := range r.sinks {
		s.ObserveRequest(method, name, d, err)
	}
}

// RecordTask records the outcome of one behavior or browser journey.
func (r *Recorder) RecordTask(name string, d time.Duration, err error) {
	r.mu.Lock()
	e, ok := r.tasks[name]
	if !ok {
		e = &entry{}
		r.tasks[name] = e
	}
	e.add(d, 0, err != nil)
	r.mu.Unlock()

	for _, s := range r.sinks {
		s.ObserveTask(name, d, err)
	}
}

func (r *Recorder) recordErrorLocked(method, name string, err error) {
	k := errorKey{method: method, name: name, err: err.Error()}
	if _, ok := r.errors[k]; !ok && len(r.errors) >= maxDistinctErrors {
		k.err = otherError
	}
	r.errors[k]++
}

// UserStarted and UserStopped maintain the active user gauge per kind
// ("http" or "browser").
func (r *Recorder) UserStarted(kind string) { r.addUsers(kind, 1) }

func (r *Recorder) UserStopped(kind string) { r.addUsers(kind, -1) }

func (r *Recorder) addUsers(kind string, delta int64) {
	r.mu.Lock()
	r.users[kind] += delta
	n := r.users[kind]
	r.mu.Unlock()

	for _, s := range r.sinks {
		s.SetActiveUsers(kind, n)
	}
}

// Reset clears counters but keeps the active user gauge.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		StartedAt:   r.started,
		Requests:    make([]EntryStats, 0, len(r.requests)),
		Tasks:       make([]EntryStats, 0, len(r.tasks)),
		Errors:      make([]ErrorStats, 0, len(r.errors)),
		ActiveUsers: make(map[string]int64, len(r.users)),
	}

	total := &entry{}
	for k, e := range r.requests {
		snap.Requests = append(snap.Requests, e.view(k.method, k.name))
		total.merge(e)
	}
	snap.Total = total.view("", "Aggregated")

	for name, e := range r.tasks {
		snap.Tasks = append(snap.Tasks, e.view("", name))
	}
	for k, n := range r.errors {
		snap.Errors = append(snap.Errors, ErrorStats{Method: k.method, Name: k.name, Error: k.err, Occurrences: n})
	}
	for kind, n := range r.users {
		snap.ActiveUsers[kind] = n
	}

	sort.Slice(snap.Requests, func(i, j int) bool {
		if snap.Requests[i].Name != snap.Requests[j].Name {
			return snap.Requests[i].Name < snap.Requests[j].Name
		}
		return snap.Requests[i].Method < snap.Requests[j].Method
	})
	sort.Slice(snap.Tasks, func(i, j int) bool { return snap.Tasks[i].Name < snap.Tasks[j].Name })
	sort.Slice(snap.Errors, func(i, j int) bool { return snap.Errors[i].Occurrences > snap.Errors[j].Occurrences })
	return snap
}

func (e *entry) view(method, name string) EntryStats {
	v := EntryStats{
		Method:            method,
		Name:              name,
		NumRequests:       e.requests,
		NumFailures:       e.failures,
		MinResponseTimeMs: ms(e.min),
		MaxResponseTimeMs: ms(e.max),
	}
	if e.requests > 0 {
		v.AvgResponseTimeMs = ms(e.total) / float64(e.requests)
		v.AvgContentLength = float64(e.bytes) / float64(e.requests)
		v.FailRatio = float64(e.failures) / float64(e.requests)
	}
	return v
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// LogSummary writes the aggregated totals and the busiest failures.
func (r *Recorder) LogSummary(log *zap.Logger) {
	snap := r.Snapshot()
	log.Info("Load statistics",
		zap.Int64("requests", snap.Total.NumRequests),
		zap.Int64("failures", snap.Total.NumFailures),
		zap.Float64("avg_response_time_ms", snap.Total.AvgResponseTimeMs),
		zap.Float64("max_response_time_ms", snap.Total.MaxResponseTimeMs),
		zap.Any("active_users", snap.ActiveUsers),
		zap.Duration("elapsed", r.now().Sub(snap.StartedAt)),
	)
	for i, e := range snap.Errors {
		if i == 5 {
			break
		}
		log.Warn("Request failures",
			zap.String("method", e.Method),
			zap.String("name", e.Name),
			zap.String("error", e.Error),
			zap.Int64("occurrences", e.Occurrences),
		)
	}
}

// Report logs a summary every interval until ctx is done.
func (r *Recorder) Report(ctx context.Context, log *zap.Logger, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.LogSummary(log)
		}
	}
}
