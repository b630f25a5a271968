package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxelload/internal/logging"
)

func newRouter(t testing.TB, service string) (*gin.Engine, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	gin.SetMode(gin.TestMode)
	r := gin.New()

	promMw := NewPrometheusMiddleware(service, registry)
	r.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(r, registry)
	return r, registry
}

func serve(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestPrometheusMiddleware_BasicMetrics(t *testing.T) {
	r, registry := newRouter(t, "test")

	r.GET("/test", func(c *gin.Context) {
		time.Sleep(10 * time.Millisecond) // Симулируем задержку
		c.JSON(200, gin.H{"ok": true})
	})
	r.GET("/error", func(c *gin.Context) {
		c.JSON(500, gin.H{"error": "test error"})
	})

	assert.Equal(t, 200, serve(r, "/test").Code)
	assert.Equal(t, 500, serve(r, "/error").Code)

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)

	var durationFound, errorsFound bool
	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "test_http_request_duration_seconds":
			durationFound = true
			assert.Equal(t, "Длительность HTTP-запросов.", mf.GetHelp())
			assert.Len(t, mf.Metric, 2)
		case "test_http_request_errors_total":
			errorsFound = true
			require.Len(t, mf.Metric, 1)
			assert.Equal(t, float64(1), mf.Metric[0].GetCounter().GetValue())
		}
	}

	assert.True(t, durationFound, "Duration metric not found")
	assert.True(t, errorsFound, "Errors metric not found")
}

func TestPrometheusMiddleware_InflightRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mw := NewPrometheusMiddleware("inflight", prometheus.NewRegistry())

	release := make(chan struct{})
	started := make(chan struct{})
	r := gin.New()
	r.Use(mw.Handler())
	r.GET("/slow", func(c *gin.Context) {
		close(started)
		<-release
		c.JSON(200, gin.H{"ok": true})
	})

	done := make(chan struct{})
	go func() {
		serve(r, "/slow")
		close(done)
	}()

	<-started
	assert.Equal(t, float64(1), testutil.ToFloat64(mw.reqInflight))

	close(release)
	<-done
	assert.Equal(t, float64(0), testutil.ToFloat64(mw.reqInflight))
}

func TestPrometheusMiddleware_UnmatchedPath(t *testing.T) {
	r, registry := newRouter(t, "unmatched_test")

	assert.Equal(t, 404, serve(r, "/nowhere/1").Code)
	assert.Equal(t, 404, serve(r, "/nowhere/2").Code)

	count, err := testutil.GatherAndCount(registry, "unmatched_test_http_request_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "404 пути сводятся в одну серию")
}

func TestRequestLogger_TraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var buf bytes.Buffer
	loggerMw := NewRequestLogger(logging.NewConsoleLogger("server", &buf, logging.DEBUG))
	r.Use(loggerMw.Handler())

	var capturedTraceID string
	r.GET("/test", func(c *gin.Context) {
		traceID, exists := c.Get("trace_id")
		require.True(t, exists, "trace_id should be set in context")
		capturedTraceID = traceID.(string)
		c.JSON(200, gin.H{"trace_id": capturedTraceID})
	})

	w := serve(r, "/test")

	assert.Equal(t, 200, w.Code)
	assert.NotEmpty(t, capturedTraceID, "trace_id should not be empty")
	assert.Contains(t, w.Body.String(), capturedTraceID)
	assert.Equal(t, capturedTraceID, w.Header().Get("X-Trace-Id"))
	assert.Contains(t, buf.String(), capturedTraceID, "trace_id попадает в лог")
	assert.Contains(t, buf.String(), "GET /test 200")
}

func TestMiddleware_Integration(t *testing.T) {
	registry := prometheus.NewRegistry()
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.Use(NewRequestLogger(logging.NewConsoleLogger("server", &bytes.Buffer{}, logging.ERROR)).Handler())
	r.Use(NewPrometheusMiddleware("integration_test", registry).Handler())

	r.GET("/api/voxels", func(c *gin.Context) {
		traceID, _ := c.Get("trace_id")
		c.JSON(200, gin.H{"status": "ok", "trace_id": traceID})
	})

	for i := 0; i < 5; i++ {
		assert.Equal(t, 200, serve(r, "/api/voxels").Code)
	}

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)

	var requestsCount int
	for _, mf := range metricFamilies {
		if mf.GetName() == "integration_test_http_request_duration_seconds" {
			for _, metric := range mf.Metric {
				requestsCount += int(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	assert.Equal(t, 5, requestsCount, "Should have recorded 5 requests")
}

func TestPrometheusMiddleware_MetricsEndpoint(t *testing.T) {
	r, _ := newRouter(t, "test")
	r.GET("/api/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	assert.Equal(t, 200, serve(r, "/api/test").Code)

	w := serve(r, "/metrics")
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "# HELP", "Should contain Prometheus help text")
	assert.Contains(t, w.Body.String(), "test_http_request_duration_seconds")
}

func TestPrometheusMiddleware_ErrorCounting(t *testing.T) {
	r, registry := newRouter(t, "error_test")

	r.GET("/400", func(c *gin.Context) { c.JSON(400, gin.H{"error": "bad request"}) })
	r.GET("/401", func(c *gin.Context) { c.JSON(401, gin.H{"error": "unauthorized"}) })
	r.GET("/404", func(c *gin.Context) { c.JSON(404, gin.H{"error": "not found"}) })
	r.GET("/500", func(c *gin.Context) { c.JSON(500, gin.H{"error": "internal error"}) })
	r.GET("/200", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	for _, endpoint := range []string{"/400", "/401", "/404", "/500", "/200", "/200"} {
		serve(r, endpoint)
	}

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)

	var totalErrors float64
	for _, mf := range metricFamilies {
		if mf.GetName() == "error_test_http_request_errors_total" {
			for _, metric := range mf.Metric {
				totalErrors += metric.GetCounter().GetValue()
			}
		}
	}

	// Должно быть 4 ошибки (400, 401, 404, 500)
	assert.Equal(t, float64(4), totalErrors)
}

// BenchmarkPrometheusMiddleware измеряет overhead middleware
func BenchmarkPrometheusMiddleware(b *testing.B) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(NewPrometheusMiddleware("bench", prometheus.NewRegistry()).Handler())
	r.GET("/bench", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			serve(r, "/bench")
		}
	})
}
