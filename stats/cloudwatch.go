package stats

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	awspkg "github.com/yashrajoria/E-Commerce-loadgen/pkg/aws"
)

// maxBuffered caps the datums held between flushes; the overflow is dropped.
const maxBuffered = 20000

// MetricBatcher is satisfied by *awspkg.MetricsClient.
type MetricBatcher interface {
	PutMetricBatch(ctx context.Context, metrics []types.MetricDatum) error
}

// CloudWatchSink buffers observations and publishes them from Run.
type CloudWatchSink struct {
	client MetricBatcher
	log    *zap.Logger

	mu      sync.Mutex
	pending []types.MetricDatum
}

func NewCloudWatchSink(client MetricBatcher, log *zap.Logger) *CloudWatchSink {
	return &CloudWatchSink{client: client, log: log}
}

func (s *CloudWatchSink) push(d ...types.MetricDatum) {
	s.mu.Lock()
	if len(s.pending)+len(d) <= maxBuffered {
		s.pending = append(s.pending, d...)
	}
	s.mu.Unlock()
}

func (s *CloudWatchSink) ObserveRequest(method, name string, d time.Duration, err error) {
	dims := map[string]string{"Method": method, "Name": name}
	data := []types.MetricDatum{
		awspkg.Datum(awspkg.MetricRequests, 1, types.StandardUnitCount, dims),
		awspkg.Datum(awspkg.MetricRequestLatency, float64(d.Milliseconds()), types.StandardUnitMilliseconds, dims),
	}
	if err != nil {
		data = append(data, awspkg.Datum(awspkg.MetricRequestErrors, 1, types.StandardUnitCount, dims))
	}
	s.push(data...)
}

func (s *CloudWatchSink) ObserveTask(name string, _ time.Duration, err error) {
	dims := map[string]string{"Task": name}
	s.push(awspkg.Datum(awspkg.MetricTasks, 1, types.StandardUnitCount, dims))
	if err != nil {
		s.push(awspkg.Datum(awspkg.MetricTaskErrors, 1, types.StandardUnitCount, dims))
	}
}

func (s *CloudWatchSink) SetActiveUsers(kind string, n int64) {
	s.push(awspkg.Datum(awspkg.MetricActiveUsers, float64(n), types.StandardUnitCount, map[string]string{"Kind": kind}))
}

// Flush publishes the buffered datums.
func (s *CloudWatchSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	data := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(data) == 0 {
		return nil
	}
	return s.client.PutMetricBatch(ctx, data)
}

// Run flushes every interval and once more when ctx is done.
func (s *CloudWatchSink) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Flush(flushCtx); err != nil {
				s.log.Warn("CloudWatch metrics flush failed", zap.Error(err))
			}
			cancel()
			return
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				s.log.Warn("CloudWatch metrics flush failed", zap.Error(err))
			}
		}
	}
}
