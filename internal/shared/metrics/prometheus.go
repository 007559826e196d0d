package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	visitsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visits_created_total",
			Help: "Total number of school visits created",
		},
		[]string{"school_code"},
	)

	actionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visit_action_transitions_total",
			Help: "Total number of visit action state transitions",
		},
		[]string{"action_type", "from_status", "to_status"},
	)

	authorizationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorization_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"resource_type", "action", "decision"},
	)

	gpsReadingsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gps_readings_rejected_total",
			Help: "Total number of GPS readings rejected by validation",
		},
		[]string{"tag", "reason"},
	)

	transitionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "action_transition_conflicts_total",
			Help: "Total number of guarded updates that lost a transition race",
		},
		[]string{"transition"},
	)

	sisSchoolsImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sis_schools_imported_total",
			Help: "Total number of school records imported from the district SIS",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordVisitCreated records a visit creation
func RecordVisitCreated(schoolCode string) {
	visitsCreated.WithLabelValues(schoolCode).Inc()
}

// RecordActionTransition records a visit action state transition
func RecordActionTransition(actionType, fromStatus, toStatus string) {
	actionTransitions.WithLabelValues(actionType, fromStatus, toStatus).Inc()
}

// RecordAuthorizationDecision records an authorization decision
func RecordAuthorizationDecision(resourceType, action string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	authorizationDecisions.WithLabelValues(resourceType, action, decision).Inc()
}

// RecordGPSRejection records a GPS reading rejected by validation
func RecordGPSRejection(tag, reason string) {
	gpsReadingsRejected.WithLabelValues(tag, reason).Inc()
}

// RecordTransitionConflict records a guarded update that affected zero rows
func RecordTransitionConflict(transition string) {
	transitionConflicts.WithLabelValues(transition).Inc()
}

// RecordSISImport records schools imported from the district SIS
func RecordSISImport(count int) {
	sisSchoolsImported.Add(float64(count))
}
