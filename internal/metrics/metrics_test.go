package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Fetch(OK)
	m.Delete(Fail)
	m.ViewMounted()
	m.ViewClosed()
	m.Cache(true)
}

func TestCountersAndEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Fetch(OK)
	m.Fetch(Stale)
	m.Fetch(Stale)
	if got := testutil.ToFloat64(m.ListFetches.WithLabelValues(Stale)); got != 2 {
		t.Fatalf("stale fetches = %v", got)
	}

	app := fiber.New()
	app.Use(m.Requests())
	app.Get("/metrics", Handler(reg))
	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `catalogweb_list_fetches_total{outcome="ok"} 1`) {
		t.Fatalf("metric missing from exposition:\n%s", body)
	}
}
