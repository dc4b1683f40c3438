package server

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once
	metricsErr  error

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
)

func registerMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	metricsOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_sim_http_requests_total",
			Help: "Requests procesadas por el simulador",
		}, []string{"method", "route", "status"})
		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inventory_sim_http_request_duration_seconds",
			Help:    "Latencia de los requests del simulador",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})

		for _, c := range []prometheus.Collector{httpRequestsTotal, httpRequestDuration} {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
					continue
				}
				metricsErr = err
				return
			}
		}
	})
	return metricsErr
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withMetrics etiqueta por patrón de ruta de chi, no por path crudo.
func withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if httpRequestsTotal == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		method := strings.ToUpper(r.Method)
		httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	})
}
