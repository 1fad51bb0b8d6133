// Package metrics exposes Prometheus metrics for the HTTP surface and
// the referral workflow.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
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

	referralsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referrals_created_total",
			Help: "Total number of referrals created",
		},
		[]string{"priority"},
	)

	referralStatusChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_status_changed_total",
			Help: "Total number of referral status changes",
		},
		[]string{"from_status", "to_status"},
	)

	approvalDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_decisions_total",
			Help: "Total number of account and hospital approval decisions",
		},
		[]string{"entity", "decision"},
	)

	authorizationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorization_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"resource_type", "action", "decision"},
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of outbound notifications by delivery outcome",
		},
		[]string{"template", "outcome"},
	)
)

// Handler serves the Prometheus exposition endpoint.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// Middleware records request counts, latency and in-flight gauge. The
// route pattern is used as the path label to bound cardinality.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			err := next(c)

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)

			httpRequestsTotal.WithLabelValues(method, path, status).Inc()
			httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// RecordReferralCreated records a referral creation.
func RecordReferralCreated(priority string) {
	referralsCreated.WithLabelValues(priority).Inc()
}

// RecordReferralStatusChange records a referral status transition.
func RecordReferralStatusChange(fromStatus, toStatus string) {
	referralStatusChanged.WithLabelValues(fromStatus, toStatus).Inc()
}

// RecordApprovalDecision records an approve/reject decision on an
// account or hospital.
func RecordApprovalDecision(entity, decision string) {
	approvalDecisions.WithLabelValues(entity, decision).Inc()
}

// RecordAuthorizationDecision records an allow/deny policy decision.
func RecordAuthorizationDecision(resourceType, action string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	authorizationDecisions.WithLabelValues(resourceType, action, decision).Inc()
}

// RecordNotification records a notification delivery outcome.
func RecordNotification(template, outcome string) {
	notificationsSent.WithLabelValues(template, outcome).Inc()
}
