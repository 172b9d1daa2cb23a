package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusSink exposes the recorder observations as Prometheus metrics.
type PrometheusSink struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	tasks    *prometheus.CounterVec
	users    *prometheus.GaugeVec
}

func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	f := promauto.With(reg)
	return &PrometheusSink{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loadgen_requests_total",
			Help: "Requests sent to the target, by result.",
		}, []string{"method", "name", "result"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loadgen_request_duration_seconds",
			Help:    "Request latency observed by simulated users.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"method", "name"}),
		tasks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loadgen_tasks_total",
			Help: "Behaviors and browser journeys executed, by result.",
		}, []string{"task", "result"}),
		users: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "loadgen_active_users",
			Help: "Simulated users currently running.",
		}, []string{"kind"}),
	}
}

func (p *PrometheusSink) ObserveRequest(method, name string, d time.Duration, err error) {
	p.requests.WithLabelValues(method, name, result(err)).Inc()
	p.latency.WithLabelValues(method, name).Observe(d.Seconds())
}

func (p *PrometheusSink) ObserveTask(name string, _ time.Duration, err error) {
	p.tasks.WithLabelValues(name, result(err)).Inc()
}

func (p *PrometheusSink) SetActiveUsers(kind string, n int64) {
	p.users.WithLabelValues(kind).Set(float64(n))
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
