package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-fee-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the fee engine.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	paymentsCollected *prometheus.CounterVec
	amountCollected   prometheus.Counter
	paymentsReversed  prometheus.Counter
	amountReversed    prometheus.Counter
	recalculations    prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	paymentsCollected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fee_payments_collected_total",
		Help: "Total fee payments recorded, by method",
	}, []string{"method"})

	amountCollected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fee_amount_collected_total",
		Help: "Total monetary amount collected",
	})

	paymentsReversed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fee_payments_reversed_total",
		Help: "Total fee payments reversed",
	})

	amountReversed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fee_amount_reversed_total",
		Help: "Total monetary amount reversed",
	})

	recalculations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fee_recalculations_total",
		Help: "Total enrollment recalculations run",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses,
		paymentsCollected, amountCollected, paymentsReversed, amountReversed,
		recalculations, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		paymentsCollected: paymentsCollected,
		amountCollected:   amountCollected,
		paymentsReversed:  paymentsReversed,
		amountReversed:    amountReversed,
		recalculations:    recalculations,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request latency and volume.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, code).Inc()
}

// RecordCacheOperation counts a cache lookup outcome.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// PaymentCollected counts a recorded payment and its amount.
func (m *MetricsService) PaymentCollected(method models.PaymentMethod, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.paymentsCollected.WithLabelValues(string(method)).Inc()
	f, _ := amount.Float64()
	m.amountCollected.Add(f)
}

// PaymentReversed counts a reversal and the amount rolled back.
func (m *MetricsService) PaymentReversed(amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.paymentsReversed.Inc()
	f, _ := amount.Float64()
	m.amountReversed.Add(f)
}

// RecalculationRun counts one enrollment recalculation.
func (m *MetricsService) RecalculationRun() {
	if m == nil {
		return
	}
	m.recalculations.Inc()
}
