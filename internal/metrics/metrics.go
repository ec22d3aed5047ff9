package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JoinRequests counts join requests by resulting status.
	JoinRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "projectplus_join_requests_total",
		Help: "Total number of join requests created or decided, by status",
	}, []string{"status"})

	// EmailsSent counts outbound emails by kind and result.
	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "projectplus_emails_total",
		Help: "Total number of outbound emails by kind and result",
	}, []string{"kind", "result"})

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "projectplus_rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter",
	}, []string{"route"})

	// HTTPRequestDuration records handler latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "projectplus_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// RecordEmail increments the email counter.
func RecordEmail(kind string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	EmailsSent.WithLabelValues(kind, result).Inc()
}

// Middleware observes request latency labelled with the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
