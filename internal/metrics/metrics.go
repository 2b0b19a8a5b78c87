// Package metrics exposes Prometheus counters for the poll loop and the detector.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Suppression reasons used as the "reason" label.
const (
	ReasonRangeFilter  = "range_filter"
	ReasonBuffer       = "buffer"
	ReasonScoreChanged = "score_changed"
	ReasonMarkers      = "markers"
	ReasonBlacklisted  = "blacklisted"
	ReasonExcluded     = "excluded"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	polls            *prometheus.CounterVec
	eventsProcessed  prometheus.Counter
	alerts           *prometheus.CounterVec
	suppressed       *prometheus.CounterVec
	deliveryFailures prometheus.Counter
	malformedSeries  *prometheus.CounterVec
	cycleDuration    prometheus.Histogram
	trackedEvents    prometheus.Gauge
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.polls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linewatch",
		Name:      "polls_total",
		Help:      "Number of polls by result",
	}, []string{"result"})
	m.eventsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "linewatch",
		Name:      "events_processed_total",
		Help:      "Events whose odds were fetched and run through detection",
	})
	m.alerts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linewatch",
		Name:      "alerts_total",
		Help:      "Alerts emitted by severity and market",
	}, []string{"severity", "market"})
	m.suppressed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linewatch",
		Name:      "suppressed_total",
		Help:      "Detections or events skipped, by reason",
	}, []string{"reason"})
	m.deliveryFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "linewatch",
		Name:      "delivery_failures_total",
		Help:      "Alerts the messaging sink rejected",
	})
	m.malformedSeries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linewatch",
		Name:      "malformed_series_total",
		Help:      "Market series abandoned because a snapshot failed to parse",
	}, []string{"market"})
	m.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "linewatch",
		Name:      "cycle_duration_seconds",
		Help:      "Time spent on one detection cycle including deliveries",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})
	m.trackedEvents = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "linewatch",
		Name:      "tracked_events",
		Help:      "Events currently held in detector state",
	})

	m.registry.MustRegister(
		m.polls, m.eventsProcessed, m.alerts, m.suppressed,
		m.deliveryFailures, m.malformedSeries, m.cycleDuration, m.trackedEvents,
	)
	return m
}

func (m *Metrics) ObservePoll(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.polls.WithLabelValues(result).Inc()
}

func (m *Metrics) AddProcessed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsProcessed.Add(float64(n))
}

func (m *Metrics) IncAlert(severity, market string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(severity, market).Inc()
}

func (m *Metrics) IncSuppressed(reason string) {
	if m == nil {
		return
	}
	m.suppressed.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncDeliveryFailure() {
	if m == nil {
		return
	}
	m.deliveryFailures.Inc()
}

func (m *Metrics) IncMalformed(market string) {
	if m == nil {
		return
	}
	m.malformedSeries.WithLabelValues(market).Inc()
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) SetTracked(n int) {
	if m == nil {
		return
	}
	m.trackedEvents.Set(float64(n))
}

// Server serves /metrics and /healthz.
type Server struct {
	server *http.Server
}

// NewServer builds the HTTP endpoint for m.
func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func (s *Server) Serve() error                       { return s.server.ListenAndServe() }
func (s *Server) Shutdown(ctx context.Context) error { return s.server.Shutdown(ctx) }
