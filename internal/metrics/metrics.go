// Package metrics collects and exposes Prometheus metrics for feed
// assembly, the feed cache and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the feed and web packages report to.
type Recorder interface {
	RecordAssembly(mode string, duration time.Duration, events int, err error)
	RecordSourcePage()
	RecordSkip(reason string)
	RecordCache(mode string, fresh bool)
	RecordHTTPResponse(route string, status int)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	assemblies       *prometheus.CounterVec
	assemblyDuration *prometheus.HistogramVec
	sourcePages      prometheus.Counter
	skipped          *prometheus.CounterVec
	feedEvents       *prometheus.GaugeVec
	cacheRequests    *prometheus.CounterVec
	httpResponses    *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		assemblies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notionics_assemblies_total",
			Help: "Feed assemblies by mode and result.",
		}, []string{"mode", "result"}),
		assemblyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notionics_assembly_duration_seconds",
			Help:    "Time spent assembling a feed.",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		sourcePages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notionics_source_pages_total",
			Help: "Record source pages fetched.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notionics_records_skipped_total",
			Help: "Records left out of a feed, by reason.",
		}, []string{"reason"}),
		feedEvents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "notionics_feed_events",
			Help: "Events in the last successfully assembled feed.",
		}, []string{"mode"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notionics_cache_requests_total",
			Help: "Feed cache lookups by mode and state (fresh or stale).",
		}, []string{"mode", "state"}),
		httpResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notionics_http_responses_total",
			Help: "HTTP responses by route and status code.",
		}, []string{"route", "status"}),
	}

	reg.MustRegister(
		c.assemblies,
		c.assemblyDuration,
		c.sourcePages,
		c.skipped,
		c.feedEvents,
		c.cacheRequests,
		c.httpResponses,
	)
	return c
}

// RecordAssembly records one finished assembly. The event gauge only moves
// on success.
func (c *Collector) RecordAssembly(mode string, duration time.Duration, events int, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	c.assemblies.WithLabelValues(mode, result).Inc()
	c.assemblyDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if err == nil {
		c.feedEvents.WithLabelValues(mode).Set(float64(events))
	}
}

func (c *Collector) RecordSourcePage() {
	c.sourcePages.Inc()
}

func (c *Collector) RecordSkip(reason string) {
	c.skipped.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordCache(mode string, fresh bool) {
	state := "stale"
	if fresh {
		state = "fresh"
	}
	c.cacheRequests.WithLabelValues(mode, state).Inc()
}

func (c *Collector) RecordHTTPResponse(route string, status int) {
	c.httpResponses.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Used where metrics are not wired.
type Nop struct{}

func (Nop) RecordAssembly(string, time.Duration, int, error) {}
func (Nop) RecordSourcePage()                                {}
func (Nop) RecordSkip(string)                                {}
func (Nop) RecordCache(string, bool)                         {}
func (Nop) RecordHTTPResponse(string, int)                   {}
