package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecorder_AggregatesRequests(t *testing.T) {
	r := NewRecorder()

	r.RecordRequest("GET", "/", 10*time.Millisecond, 100, nil)
	r.RecordRequest("GET", "/", 30*time.Millisecond, 300, nil)
	r.RecordRequest("POST", "/api/cart", 20*time.Millisecond, 0, errors.New("status 503"))

	snap := r.Snapshot()
	require.Len(t, snap.Requests, 2)

	index := snap.Requests[0]
	assert.Equal(t, "/", index.Name)
	assert.EqualValues(t, 2, index.NumRequests)
	assert.EqualValues(t, 0, index.NumFailures)
	assert.Equal(t, 20.0, index.AvgResponseTimeMs)
	assert.Equal(t, 10.0, index.MinResponseTimeMs)
	assert.Equal(t, 30.0, index.MaxResponseTimeMs)
	assert.Equal(t, 200.0, index.AvgContentLength)

	assert.EqualValues(t, 3, snap.Total.NumRequests)
	assert.EqualValues(t, 1, snap.Total.NumFailures)
	assert.Equal(t, 10.0, snap.Total.MinResponseTimeMs)

	require.Len(t, snap.Errors, 1)
	assert.Equal(t, "status 503", snap.Errors[0].Error)
	assert.EqualValues(t, 1, snap.Errors[0].Occurrences)
}

func TestRecorder_TasksAndUsers(t *testing.T) {
	r := NewRecorder()

	r.RecordTask("checkout", time.Second, nil)
	r.RecordTask("checkout", time.Second, errors.New("boom"))
	r.UserStarted("http")
	r.UserStarted("http")
	r.UserStopped("http")

	snap := r.Snapshot()
	require.Len(t, snap.Tasks, 1)
	assert.EqualValues(t, 2, snap.Tasks[0].NumRequests)
	assert.EqualValues(t, 1, snap.Tasks[0].NumFailures)
	assert.Equal(t, 0.5, snap.Tasks[0].FailRatio)
	assert.EqualValues(t, 1, snap.ActiveUsers["http"])
}

func TestRecorder_BoundsDistinctErrors(t *testing.T) {
	r := NewRecorder()
	for i := 0; i < maxDistinctErrors+20; i++ {
		r.RecordRequest("GET", "/", time.Millisecond, 0, fmt.Errorf("error %d", i))
	}

	snap := r.Snapshot()
	assert.Len(t, snap.Errors, maxDistinctErrors+1)
	var other int64
	for _, e := range snap.Errors {
		if e.Error == otherError {
			other = e.Occurrences
		}
	}
	assert.EqualValues(t, 20, other)
}

func TestRecorder_Reset(t *testing.T) {
	r := NewRecorder()
	r.UserStarted("browser")
	r.RecordRequest("GET", "/", time.Millisecond, 0, nil)

	r.Reset()

	snap := r.Snapshot()
	assert.Empty(t, snap.Requests)
	assert.EqualValues(t, 0, snap.Total.NumRequests)
	assert.EqualValues(t, 1, snap.ActiveUsers["browser"])
}

func TestRecorder_LogSummary(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := NewRecorder()
	r.RecordRequest("GET", "/api/cart", time.Millisecond, 0, errors.New("connection refused"))

	r.LogSummary(zap.New(core))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "Load statistics", logs.All()[0].Message)
	assert.Equal(t, "Request failures", logs.All()[1].Message)
}

func TestPrometheusSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)
	r := NewRecorder(sink)

	r.RecordRequest("GET", "/", time.Millisecond, 0, nil)
	r.RecordRequest("GET", "/", time.Millisecond, 0, errors.New("x"))
	r.RecordTask("index", time.Millisecond, nil)
	r.UserStarted("http")

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.requests.WithLabelValues("GET", "/", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.requests.WithLabelValues("GET", "/", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.tasks.WithLabelValues("index", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.users.WithLabelValues("http")))

	expected := `
# HELP loadgen_active_users Simulated users currently running.
# TYPE loadgen_active_users gauge
loadgen_active_users{kind="http"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "loadgen_active_users"))
}

type fakeBatcher struct {
	batches [][]types.MetricDatum
}

func (f *fakeBatcher) PutMetricBatch(_ context.Context, m []types.MetricDatum) error {
	f.batches = append(f.batches, m)
	return nil
}

func TestCloudWatchSink_FlushesBufferedDatums(t *testing.T) {
	b := &fakeBatcher{}
	sink := NewCloudWatchSink(b, zap.NewNop())
	r := NewRecorder(sink)

	r.RecordRequest("POST", "/api/checkout", 5*time.Millisecond, 0, errors.New("status 500"))
	r.RecordTask("checkout", time.Millisecond, nil)

	require.NoError(t, sink.Flush(context.Background()))
	require.Len(t, b.batches, 1)

	names := []string{}
	for _, d := range b.batches[0] {
		names = append(names, aws.ToString(d.MetricName))
	}
	assert.Equal(t, []string{"Requests", "RequestLatency", "RequestErrors", "Tasks"}, names)

	require.NoError(t, sink.Flush(context.Background()))
	assert.Len(t, b.batches, 1)
}
