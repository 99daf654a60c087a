package metrics

import (
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"querymesh/internal/bus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestCollector_CounterIncrement(t *testing.T) {
	c := NewCollector()
	ctr := c.Counter("test_total", "help", "")
	ctr.Inc()
	ctr.Add(2)
	if ctr.Value() != 3 {
		t.Fatalf("expected 3, got %d", ctr.Value())
	}

	// Same name+labels returns the same counter.
	if c.Counter("test_total", "help", "") != ctr {
		t.Fatal("expected identical counter instance")
	}
}

func TestCollector_GaugeSet(t *testing.T) {
	c := NewCollector()
	g := c.Gauge("test_gauge", "help", "")
	g.Set(7)
	g.Dec()
	if g.Value() != 6 {
		t.Fatalf("expected 6, got %d", g.Value())
	}
}

func TestCollector_HistogramObserve(t *testing.T) {
	c := NewCollector()
	h := c.Histogram("test_seconds", "help", "", []float64{1, 10})
	h.Observe(0.5)
	h.Observe(5)
	h.Observe(50)
	if h.count != 3 {
		t.Fatalf("expected count 3, got %d", h.count)
	}
	if h.buckets[0].count != 1 || h.buckets[1].count != 2 {
		t.Fatalf("unexpected bucket counts: %+v", h.buckets)
	}
}

func TestCollector_AttachCountsCallEvents(t *testing.T) {
	c := NewCollector()
	eb := bus.NewEventBus(testLogger())
	c.Attach(eb)

	eb.Emit(bus.CallFinished("registry", "get_agent", 2*time.Millisecond, ""))
	eb.Emit(bus.CallFinished("registry", "get_agent", 4*time.Millisecond, ""))
	eb.Emit(bus.CallFinished("registry", "get_agent", time.Millisecond, "internal"))

	calls := c.Counter("querymesh_calls_total", "", `agent="registry",method="get_agent"`)
	if calls.Value() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Value())
	}
	errs := c.Counter("querymesh_call_errors_total", "", `agent="registry",method="get_agent",class="internal"`)
	if errs.Value() != 1 {
		t.Fatalf("expected 1 error, got %d", errs.Value())
	}
}

func TestCollector_SnapshotRows(t *testing.T) {
	c := NewCollector()
	c.Counter("b_total", "help", "").Inc()
	c.Counter("a_total", "help", "").Inc()

	rows := c.Snapshot()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Metric != "a_total" {
		t.Fatalf("rows not sorted: %+v", rows)
	}
}

func TestCollector_PrometheusRendering(t *testing.T) {
	c := NewCollector()
	c.Counter("querymesh_calls_total", "Total envelope calls answered", `agent="auth",method="login"`).Inc()

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "querymesh_uptime_seconds") {
		t.Fatal("missing uptime gauge")
	}
	if !strings.Contains(body, `querymesh_calls_total{agent="auth",method="login"} 1`) {
		t.Fatalf("missing labeled counter, body:\n%s", body)
	}
	if !strings.Contains(body, "# TYPE querymesh_calls_total counter") {
		t.Fatal("missing TYPE comment")
	}
}
