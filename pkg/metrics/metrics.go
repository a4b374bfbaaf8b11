// Package metrics exposes Prometheus counters for the HTTP API and the
// checkout workflow.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// ServerMetrics owns a private registry so that several instances can live
// in one process (tests, lambdas).
type ServerMetrics struct {
	registry *prometheus.Registry

	Requests   *prometheus.CounterVec
	LatencyMS  *prometheus.HistogramVec
	Checkouts  *prometheus.CounterVec
	CheckoutMS prometheus.Histogram
	Relayed    *prometheus.CounterVec
}

func NewServerMetrics(service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "checkouts_total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"outcome"})
	checkoutMS := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "checkout_duration_ms",
		Help:      "End-to-end checkout latency in milliseconds.",
		Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})
	relayed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "outbox_events_total",
		Help:      "Outbox events handled by the relay.",
	}, []string{"result"})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		requests, latency, checkouts, checkoutMS, relayed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &ServerMetrics{
		registry:   reg,
		Requests:   requests,
		LatencyMS:  latency,
		Checkouts:  checkouts,
		CheckoutMS: checkoutMS,
		Relayed:    relayed,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *ServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCheckout implements checkout.Recorder.
func (m *ServerMetrics) ObserveCheckout(outcome string, elapsed time.Duration) {
	m.Checkouts.WithLabelValues(outcome).Inc()
	m.CheckoutMS.Observe(float64(elapsed.Milliseconds()))
}

// ObserveRelay counts one relayed ("sent") or failed ("failed") event.
func (m *ServerMetrics) ObserveRelay(result string) {
	m.Relayed.WithLabelValues(result).Inc()
}

// Middleware records request count and latency labelled by chi route
// pattern, so path parameters do not explode the label space.
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		handler := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				handler = r.Method + " " + p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.Requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
	})
}
