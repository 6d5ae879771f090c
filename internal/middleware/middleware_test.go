package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestPrometheusMiddleware_BasicMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.TestMode)
	r := gin.New()

	promMw := NewPrometheusMiddleware("test", registry)
	r.Use(promMw.Handler())

	r.GET("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	r.GET("/error", func(c *gin.Context) {
		c.JSON(500, gin.H{"error": "test error"})
	})

	for _, path := range []string{"/test", "/error"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", path, nil)
		r.ServeHTTP(w, req)
	}

	duration := findFamily(t, registry, "test_http_request_duration_seconds")
	require.NotNil(t, duration, "Duration metric not found")
	assert.Equal(t, "Длительность HTTP-запросов.", duration.GetHelp())
	assert.Len(t, duration.Metric, 2)

	responses := findFamily(t, registry, "test_http_responses_total")
	require.NotNil(t, responses, "Responses metric not found")
	require.Len(t, responses.Metric, 2)
	byClass := map[string]float64{}
	for _, m := range responses.Metric {
		for _, l := range m.GetLabel() {
			if l.GetName() == "class" {
				byClass[l.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, map[string]float64{"2xx": 1, "5xx": 1}, byClass)

	size := findFamily(t, registry, "test_http_response_size_bytes")
	require.NotNil(t, size)
	assert.Len(t, size.Metric, 2)
}

func TestPrometheusMiddleware_InflightRequests(t *testing.T) {
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.TestMode)
	r := gin.New()

	promMw := NewPrometheusMiddleware("test", registry)
	r.Use(promMw.Handler())

	release := make(chan struct{})
	entered := make(chan struct{})
	r.GET("/slow", func(c *gin.Context) {
		close(entered)
		<-release
		c.JSON(200, gin.H{"ok": true})
	})

	done := make(chan struct{})
	go func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/slow", nil)
		r.ServeHTTP(w, req)
		close(done)
	}()

	<-entered
	inflight := findFamily(t, registry, "test_http_requests_inflight")
	require.NotNil(t, inflight)
	assert.Equal(t, float64(1), inflight.Metric[0].GetGauge().GetValue())

	close(release)
	<-done

	inflight = findFamily(t, registry, "test_http_requests_inflight")
	assert.Equal(t, float64(0), inflight.Metric[0].GetGauge().GetValue())
}

func TestPrometheusMiddleware_UnmatchedPath(t *testing.T) {
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewPrometheusMiddleware("test", registry).Handler())

	for _, path := range []string{"/a", "/b", "/c"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", path, nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, 404, w.Code)
	}

	responses := findFamily(t, registry, "test_http_responses_total")
	require.NotNil(t, responses)
	require.Len(t, responses.Metric, 1)
	assert.Equal(t, float64(3), responses.Metric[0].GetCounter().GetValue())
}

func TestPrometheusMiddleware_WebsocketCountedAsStream(t *testing.T) {
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewPrometheusMiddleware("test", registry).Handler())
	r.GET("/api/sessions/:id/stream", func(c *gin.Context) {
		c.Status(http.StatusBadRequest)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/sessions/abc/stream", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	r.ServeHTTP(w, req)

	streams := findFamily(t, registry, "test_http_streams_total")
	require.NotNil(t, streams)
	require.Len(t, streams.Metric, 1)
	assert.Equal(t, float64(1), streams.Metric[0].GetCounter().GetValue())
	assert.Nil(t, findFamily(t, registry, "test_http_request_duration_seconds"))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "4xx", statusClass(409))
	assert.Equal(t, "other", statusClass(0))
}

func TestPrometheusMiddleware_MetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.TestMode)
	r := gin.New()

	promMw := NewPrometheusMiddleware("test", registry)
	r.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(r, registry)

	r.GET("/api/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	w1 := httptest.NewRecorder()
	req1, _ := http.NewRequest("GET", "/api/test", nil)
	r.ServeHTTP(w1, req1)
	assert.Equal(t, 200, w1.Code)

	w2 := httptest.NewRecorder()
	req2, _ := http.NewRequest("GET", "/metrics", nil)
	r.ServeHTTP(w2, req2)

	assert.Equal(t, 200, w2.Code)
	assert.Contains(t, w2.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w2.Body.String(), "# HELP test_http_request_duration_seconds")
}

func TestRequestLogger_TraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRequestLogger().Handler())

	var capturedTraceID string
	r.GET("/test", func(c *gin.Context) {
		traceID, exists := c.Get(TraceIDKey)
		require.True(t, exists, "trace_id should be set in context")
		capturedTraceID = traceID.(string)
		c.JSON(200, gin.H{"trace_id": capturedTraceID})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.NotEmpty(t, capturedTraceID)
	assert.Equal(t, capturedTraceID, w.Header().Get(TraceIDHeader))
	assert.Contains(t, w.Body.String(), capturedTraceID)
}

func TestMiddleware_Integration(t *testing.T) {
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRequestLogger().Handler())
	r.Use(NewPrometheusMiddleware("integration_test", registry).Handler())

	r.GET("/api/v1/test", func(c *gin.Context) {
		time.Sleep(time.Millisecond)
		c.JSON(200, gin.H{"status": "ok"})
	})

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/test", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, 200, w.Code)
	}

	mf := findFamily(t, registry, "integration_test_http_request_duration_seconds")
	require.NotNil(t, mf)

	var requestsCount uint64
	for _, metric := range mf.Metric {
		requestsCount += metric.GetHistogram().GetSampleCount()
	}
	assert.Equal(t, uint64(5), requestsCount, "Should have recorded 5 requests")
}
