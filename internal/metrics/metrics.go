package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	AnswersAutoGraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_answers_auto_graded_total",
			Help: "Answers graded automatically at submission",
		},
		[]string{"question_type", "result"},
	)

	ManualEvaluations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_manual_evaluations_total",
			Help: "Subjective answers graded by an evaluator",
		},
	)

	AttemptTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_attempt_transitions_total",
			Help: "Attempt status transitions",
		},
		[]string{"from", "to"},
	)

	AggregateConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_aggregate_conflicts_total",
			Help: "Optimistic concurrency conflicts while writing attempt aggregates",
		},
	)

	ResultsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_results_published_attempts_total",
			Help: "Attempts made visible by result publication",
		},
	)

	GradingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exam_grading_duration_seconds",
			Help:    "Duration of grading operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

var initOnce sync.Once

// Init registers every collector with the default registry. Safe to call twice.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			AnswersAutoGraded,
			ManualEvaluations,
			AttemptTransitions,
			AggregateConflicts,
			ResultsPublished,
			GradingDuration,
		)
	})
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

// ObserveGrading records how long a grading operation took
func ObserveGrading(operation string, start time.Time) {
	GradingDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
