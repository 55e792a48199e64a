// Package api provides Prometheus instrumentation for the server.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "journal",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "HTTP requests by route and method.",
	}, []string{"route", "method"})

	computeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "journal",
		Subsystem: "analytics",
		Name:      "compute_duration_seconds",
		Help:      "Time spent in analytics computations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"computation"})
)

// instrumentHandler counts requests per mux route.
func instrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if template, err := current.GetPathTemplate(); err == nil {
				route = template
			}
		}
		requestsTotal.WithLabelValues(route, r.Method).Inc()
		next.ServeHTTP(w, r)
	})
}

// startComputeTimer times one analytics computation.
func startComputeTimer(computation string) *prometheus.Timer {
	return prometheus.NewTimer(computeDuration.WithLabelValues(computation))
}
