package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry           *prometheus.Registry
	NavigationsTotal   *prometheus.CounterVec
	NavigationDuration prometheus.Histogram
	PagesTotal         prometheus.Counter
	ItemsScrapedTotal  prometheus.Counter
	RetriesTotal       prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	navigations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_navigations_total",
			Help: "Total page navigations issued by the scraper.",
		},
		[]string{"phase"},
	)
	navigationDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_navigation_duration_seconds",
			Help:    "Page load latency including render wait.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_pages_total",
			Help: "Total catalogue pages parsed.",
		},
	)
	itemsScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_items_scraped_total",
			Help: "Total number of items sent to the pipeline.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(navigations, navigationDuration, pages, itemsScraped, retries, errorsTotal)

	return &Metrics{
		Registry:           registry,
		NavigationsTotal:   navigations,
		NavigationDuration: navigationDuration,
		PagesTotal:         pages,
		ItemsScrapedTotal:  itemsScraped,
		RetriesTotal:       retries,
		ErrorsTotal:        errorsTotal,
	}
}

// IncNavigation increments the navigation counter for a phase.
func (m *Metrics) IncNavigation(phase string) {
	if m == nil {
		return
	}
	m.NavigationsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records a page load duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.NavigationDuration.Observe(d.Seconds())
}

// IncPages increments the parsed page counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// IncItems increments the items scraped counter.
func (m *Metrics) IncItems() {
	if m == nil {
		return
	}
	m.ItemsScrapedTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
