package scraper

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/use-agent/harvest/models"
)

// Metrics records extraction outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	extractions   *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	stabilization *prometheus.HistogramVec
	pages         *prometheus.CounterVec
	comments      *prometheus.CounterVec
	openSessions  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when it is
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "harvest",
			Name:      "extractions_total",
			Help:      "Extractions by source and outcome.",
		}, []string{"source", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "harvest",
			Name:      "extraction_duration_seconds",
			Help:      "Wall-clock time of an extraction, session open to close.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"source"}),
		stabilization: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "harvest",
			Name:      "stabilization_iterations",
			Help:      "Scroll iterations before the page extent settled or the bound was hit.",
			Buckets:   prometheus.LinearBuckets(0, 5, 8),
		}, []string{"converged"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "harvest",
			Name:      "pages_visited_total",
			Help:      "Listing pages read by the pagination walker.",
		}, []string{"source"}),
		comments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "harvest",
			Name:      "engagement_counts_total",
			Help:      "Detail-page count lookups by result (found, absent).",
		}, []string{"source", "result"}),
		openSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "harvest",
			Name:      "open_sessions",
			Help:      "Browser sessions currently open.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.extractions, m.duration, m.stabilization, m.pages, m.comments, m.openSessions)
	}
	return m
}

func (m *Metrics) observeExtraction(source string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(source, outcome(err)).Inc()
	m.duration.WithLabelValues(source).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeStabilization(iterations int, converged bool) {
	if m == nil {
		return
	}
	label := "false"
	if converged {
		label = "true"
	}
	m.stabilization.WithLabelValues(label).Observe(float64(iterations))
}

func (m *Metrics) pageVisited(source string) {
	if m == nil {
		return
	}
	m.pages.WithLabelValues(source).Inc()
}

func (m *Metrics) countLookup(source string, found bool) {
	if m == nil {
		return
	}
	result := "absent"
	if found {
		result = "found"
	}
	m.comments.WithLabelValues(source, result).Inc()
}

func (m *Metrics) sessionOpened() {
	if m == nil {
		return
	}
	m.openSessions.Inc()
}

func (m *Metrics) sessionClosed() {
	if m == nil {
		return
	}
	m.openSessions.Dec()
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return strings.ToLower(se.Code)
	}
	return "error"
}
