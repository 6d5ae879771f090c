package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMiddleware собирает HTTP-метрики REST API редактора:
//   - <service>_http_request_duration_seconds{method,route,class}
//   - <service>_http_response_size_bytes{route}
//   - <service>_http_responses_total{method,route,class}
//   - <service>_http_requests_inflight
//   - <service>_http_streams_total{route}
//
// route это шаблон маршрута gin (/api/sessions/:id/press), поэтому ID сессий
// и имена раскладок не попадают в метки. Websocket-подключения живут долго и
// учитываются отдельно от длительности запросов.
type PrometheusMiddleware struct {
	duration  *prometheus.HistogramVec
	size      *prometheus.HistogramVec
	responses *prometheus.CounterVec
	inflight  prometheus.Gauge
	streams   *prometheus.CounterVec
}

// NewPrometheusMiddleware регистрирует метрики в reg (nil: регистр по умолчанию).
func NewPrometheusMiddleware(service string, reg prometheus.Registerer) *PrometheusMiddleware {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := []string{"method", "route", "class"}

	pm := &PrometheusMiddleware{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: service,
			Name:      "http_request_duration_seconds",
			Help:      "Длительность HTTP-запросов.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, labels),
		size: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: service,
			Name:      "http_response_size_bytes",
			Help:      "Размер тела ответа; раскладки и GLB бывают крупными.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"route"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: service,
			Name:      "http_responses_total",
			Help:      "Ответы по классу статуса (2xx, 3xx, 4xx, 5xx).",
		}, labels),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: service,
			Name:      "http_requests_inflight",
			Help:      "Текущее количество обрабатываемых HTTP-запросов.",
		}),
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: service,
			Name:      "http_streams_total",
			Help:      "Открытые websocket-подключения.",
		}, []string{"route"}),
	}

	reg.MustRegister(pm.duration, pm.size, pm.responses, pm.inflight, pm.streams)
	return pm
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}

// Handler возвращает gin.HandlerFunc для router.Use().
func (pm *PrometheusMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		if c.IsWebsocket() {
			pm.streams.WithLabelValues(route).Inc()
			c.Next()
			return
		}

		start := time.Now()
		pm.inflight.Inc()
		defer pm.inflight.Dec()

		c.Next()

		class := statusClass(c.Writer.Status())
		method := c.Request.Method
		pm.duration.WithLabelValues(method, route, class).Observe(time.Since(start).Seconds())
		pm.responses.WithLabelValues(method, route, class).Inc()
		if n := c.Writer.Size(); n > 0 {
			pm.size.WithLabelValues(route).Observe(float64(n))
		}
	}
}

// RegisterMetricsEndpoint добавляет GET /metrics для g (nil: регистр по умолчанию).
func (pm *PrometheusMiddleware) RegisterMetricsEndpoint(r gin.IRoutes, g prometheus.Gatherer) {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}
