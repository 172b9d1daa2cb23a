package controllers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yashrajoria/E-Commerce-loadgen/controllers"
	"github.com/yashrajoria/E-Commerce-loadgen/routes"
	"github.com/yashrajoria/E-Commerce-loadgen/stats"
)

// ---- helpers ----

func setupRouter(t *testing.T) (*gin.Engine, *stats.Recorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	rec := stats.NewRecorder(stats.NewPrometheusSink(reg))

	r := gin.New()
	routes.RegisterStatusRoutes(r, controllers.NewStatusController(rec, zap.NewNop()), reg)
	return r, rec
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

// ---- tests ----

func TestHealth(t *testing.T) {
	r, _ := setupRouter(t)

	w := serve(r, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStats_ReturnsSnapshot(t *testing.T) {
	r, rec := setupRouter(t)
	rec.RecordRequest(http.MethodGet, "/", 20*time.Millisecond, 512, nil)
	rec.RecordRequest(http.MethodGet, "/", 40*time.Millisecond, 512, errors.New("GET /: status 503"))
	rec.RecordTask("index", 40*time.Millisecond, nil)

	w := serve(r, http.MethodGet, "/stats")

	require.Equal(t, http.StatusOK, w.Code)
	var snap stats.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Len(t, snap.Requests, 1)
	assert.Equal(t, int64(2), snap.Requests[0].NumRequests)
	assert.Equal(t, int64(1), snap.Requests[0].NumFailures)
	assert.Equal(t, int64(2), snap.Total.NumRequests)
	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, "index", snap.Tasks[0].Name)
	require.Len(t, snap.Errors, 1)
}

func TestResetStats(t *testing.T) {
	r, rec := setupRouter(t)
	rec.RecordRequest(http.MethodGet, "/", time.Millisecond, 0, nil)

	w := serve(r, http.MethodPost, "/stats/reset")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, rec.Snapshot().Requests)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/stats/reset").Code)
}

func TestMetrics_ExposesPrometheusText(t *testing.T) {
	r, rec := setupRouter(t)
	rec.RecordRequest(http.MethodPost, "/api/cart", time.Millisecond, 0, nil)
	rec.UserStarted("http")

	w := serve(r, http.MethodGet, "/metrics")

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `loadgen_requests_total{method="POST",name="/api/cart",result="success"} 1`)
	assert.Contains(t, body, `loadgen_active_users{kind="http"} 1`)
}
