// Package metrics holds the Prometheus collectors for both binaries.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes used as label values.
const (
	OK    = "ok"
	Fail  = "error"
	Stale = "stale"
)

type Metrics struct {
	ListFetches *prometheus.CounterVec
	Deletes     *prometheus.CounterVec
	ActiveViews prometheus.Gauge
	APIRequests *prometheus.CounterVec
	CacheLookup *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ListFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalogweb_list_fetches_total",
			Help: "Product list fetches by outcome; stale responses were discarded.",
		}, []string{"outcome"}),
		Deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalogweb_product_deletes_total",
			Help: "Product deletes issued from the web client by outcome.",
		}, []string{"outcome"}),
		ActiveViews: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalogweb_active_views",
			Help: "Mounted list views.",
		}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalogd_requests_total",
			Help: "Catalog API requests by route and status class.",
		}, []string{"route", "class"}),
		CacheLookup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalogd_list_cache_total",
			Help: "Product list cache lookups.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.ListFetches, m.Deletes, m.ActiveViews, m.APIRequests, m.CacheLookup)
	}
	return m
}

func (m *Metrics) Fetch(outcome string) {
	if m != nil {
		m.ListFetches.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Delete(outcome string) {
	if m != nil {
		m.Deletes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ViewMounted() {
	if m != nil {
		m.ActiveViews.Inc()
	}
}

func (m *Metrics) ViewClosed() {
	if m != nil {
		m.ActiveViews.Dec()
	}
}

func (m *Metrics) Cache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookup.WithLabelValues("hit").Inc()
	} else {
		m.CacheLookup.WithLabelValues("miss").Inc()
	}
}

// Requests counts every request by matched route and status class.
func (m *Metrics) Requests() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if m == nil {
			return err
		}
		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		class := "2xx"
		switch {
		case status >= 500:
			class = "5xx"
		case status >= 400:
			class = "4xx"
		case status >= 300:
			class = "3xx"
		}
		m.APIRequests.WithLabelValues(c.Route().Path, class).Inc()
		return err
	}
}

// Handler exposes reg at /metrics.
func Handler(reg *prometheus.Registry) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}
