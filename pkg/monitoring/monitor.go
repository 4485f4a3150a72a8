package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sat_prep",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sat_prep",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 考试域指标：开考、模块完成（按模块与难度档）、交卷
	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sat_prep",
			Name:      "sessions_started_total",
			Help:      "Total number of test sessions started",
		},
	)

	ModulesCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sat_prep",
			Name:      "modules_completed_total",
			Help:      "Total number of completed test modules",
		},
		[]string{"module", "difficulty"},
	)

	ExamsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sat_prep",
			Name:      "exams_completed_total",
			Help:      "Total number of finalized test sessions",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(SessionsStarted)
	prometheus.MustRegister(ModulesCompleted)
	prometheus.MustRegister(ExamsCompleted)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
