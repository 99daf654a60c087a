// Package metrics provides a lightweight, Prometheus-compatible metrics
// collector for QueryMesh. It renders text/plain in Prometheus exposition
// format without pulling in the prometheus/client_golang dependency, and
// serves a JSON snapshot for the /status endpoint.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"querymesh/internal/bus"
)

// Collector aggregates counters, gauges, and histograms for the mesh.
// One instance is constructed at startup and handed to whoever needs it;
// there is no package-level global.
type Collector struct {
	counters   sync.Map // key -> *Counter
	gauges     sync.Map // key -> *Gauge
	histograms sync.Map // key -> *Histogram
	startTime  time.Time
}

func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Uptime returns how long the collector has been running.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Attach subscribes the collector to mesh lifecycle events. Every
// answered envelope increments the per-method counters and observes its
// latency; planner runs are tracked per sink outcome.
func (c *Collector) Attach(eb *bus.EventBus) {
	eb.On(bus.EventCallFinished, func(e bus.Event) {
		method, _ := e.Payload["method"].(string)
		labels := fmt.Sprintf("agent=%q,method=%q", e.Agent, method)
		c.Counter("querymesh_calls_total", "Total envelope calls answered", labels).Inc()
		if class, _ := e.Payload["error"].(string); class != "" {
			c.Counter("querymesh_call_errors_total", "Total envelope calls answered with an error",
				labels+fmt.Sprintf(",class=%q", class)).Inc()
		}
		if d, ok := e.Payload["duration"].(time.Duration); ok {
			c.Histogram("querymesh_call_duration_seconds", "Envelope call latency in seconds", labels,
				[]float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 5, 10, math.Inf(1)}).Observe(d.Seconds())
		}
	})
	eb.On(bus.EventPlanFinished, func(e bus.Event) {
		sink, _ := e.Payload["sink_id"].(string)
		outcome, _ := e.Payload["outcome"].(string)
		c.Counter("querymesh_plans_total", "Total planner runs",
			fmt.Sprintf("sink=%q,outcome=%q", sink, outcome)).Inc()
	})
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks the distribution of observed values.
type Histogram struct {
	name    string
	help    string
	labels  string
	mu      sync.Mutex
	count   int64
	sum     float64
	buckets []histBucket
}

type histBucket struct {
	le    float64
	count int64
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i := range h.buckets {
		if v <= h.buckets[i].le {
			h.buckets[i].count++
		}
	}
}

// --- Registration helpers ---

// Counter returns or creates a counter with the given name and label set.
func (c *Collector) Counter(name, help, labels string) *Counter {
	key := name + "{" + labels + "}"
	if v, ok := c.counters.Load(key); ok {
		return v.(*Counter)
	}
	ctr := &Counter{name: name, help: help, labels: labels}
	actual, _ := c.counters.LoadOrStore(key, ctr)
	return actual.(*Counter)
}

// Gauge returns or creates a gauge with the given name and label set.
func (c *Collector) Gauge(name, help, labels string) *Gauge {
	key := name + "{" + labels + "}"
	if v, ok := c.gauges.Load(key); ok {
		return v.(*Gauge)
	}
	g := &Gauge{name: name, help: help, labels: labels}
	actual, _ := c.gauges.LoadOrStore(key, g)
	return actual.(*Gauge)
}

// Histogram returns or creates a histogram with the given name, label
// set, and bucket boundaries.
func (c *Collector) Histogram(name, help, labels string, buckets []float64) *Histogram {
	key := name + "{" + labels + "}"
	if v, ok := c.histograms.Load(key); ok {
		return v.(*Histogram)
	}
	sort.Float64s(buckets)
	hb := make([]histBucket, len(buckets))
	for i, b := range buckets {
		hb[i] = histBucket{le: b}
	}
	h := &Histogram{name: name, help: help, labels: labels, buckets: hb}
	actual, _ := c.histograms.LoadOrStore(key, h)
	return actual.(*Histogram)
}

// --- JSON snapshot (GET /status) ---

// CallStat is one aggregate row of the status snapshot.
type CallStat struct {
	Metric string  `json:"metric"`
	Labels string  `json:"labels,omitempty"`
	Count  int64   `json:"count"`
	AvgMs  float64 `json:"avg_ms,omitempty"`
}

// Snapshot returns every counter and histogram as flat rows, ordered by
// metric name then labels, for the JSON status endpoint.
func (c *Collector) Snapshot() []CallStat {
	var rows []CallStat
	c.counters.Range(func(_, value any) bool {
		ctr := value.(*Counter)
		rows = append(rows, CallStat{Metric: ctr.name, Labels: ctr.labels, Count: ctr.Value()})
		return true
	})
	c.histograms.Range(func(_, value any) bool {
		h := value.(*Histogram)
		h.mu.Lock()
		row := CallStat{Metric: h.name, Labels: h.labels, Count: h.count}
		if h.count > 0 {
			row.AvgMs = h.sum / float64(h.count) * 1000
		}
		h.mu.Unlock()
		rows = append(rows, row)
		return true
	})
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Metric != rows[j].Metric {
			return rows[i].Metric < rows[j].Metric
		}
		return rows[i].Labels < rows[j].Labels
	})
	return rows
}

// --- Prometheus text rendering ---

// Handler returns an http.HandlerFunc that renders metrics in Prometheus
// text format.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder

		fmt.Fprintf(&sb, "# HELP querymesh_uptime_seconds Time since start in seconds\n")
		fmt.Fprintf(&sb, "# TYPE querymesh_uptime_seconds gauge\n")
		fmt.Fprintf(&sb, "querymesh_uptime_seconds %d\n\n", int64(c.Uptime().Seconds()))

		helpWritten := make(map[string]bool)
		c.counters.Range(func(_, value any) bool {
			ctr := value.(*Counter)
			if !helpWritten[ctr.name] {
				fmt.Fprintf(&sb, "# HELP %s %s\n", ctr.name, ctr.help)
				fmt.Fprintf(&sb, "# TYPE %s counter\n", ctr.name)
				helpWritten[ctr.name] = true
			}
			if ctr.labels != "" {
				fmt.Fprintf(&sb, "%s{%s} %d\n", ctr.name, ctr.labels, ctr.Value())
			} else {
				fmt.Fprintf(&sb, "%s %d\n", ctr.name, ctr.Value())
			}
			return true
		})

		helpWritten = make(map[string]bool)
		c.gauges.Range(func(_, value any) bool {
			g := value.(*Gauge)
			if !helpWritten[g.name] {
				fmt.Fprintf(&sb, "# HELP %s %s\n", g.name, g.help)
				fmt.Fprintf(&sb, "# TYPE %s gauge\n", g.name)
				helpWritten[g.name] = true
			}
			if g.labels != "" {
				fmt.Fprintf(&sb, "%s{%s} %d\n", g.name, g.labels, g.Value())
			} else {
				fmt.Fprintf(&sb, "%s %d\n", g.name, g.Value())
			}
			return true
		})

		c.histograms.Range(func(_, value any) bool {
			h := value.(*Histogram)
			h.mu.Lock()
			defer h.mu.Unlock()

			fmt.Fprintf(&sb, "# HELP %s %s\n", h.name, h.help)
			fmt.Fprintf(&sb, "# TYPE %s histogram\n", h.name)
			bucketPrefix := h.name + "_bucket{"
			if h.labels != "" {
				bucketPrefix += h.labels + ","
			}
			for _, b := range h.buckets {
				le := fmt.Sprintf("%g", b.le)
				if math.IsInf(b.le, 1) {
					le = "+Inf"
				}
				fmt.Fprintf(&sb, "%sle=\"%s\"} %d\n", bucketPrefix, le, b.count)
			}
			if h.labels != "" {
				fmt.Fprintf(&sb, "%s{%s} %d\n", h.name+"_count", h.labels, h.count)
				fmt.Fprintf(&sb, "%s{%s} %f\n", h.name+"_sum", h.labels, h.sum)
			} else {
				fmt.Fprintf(&sb, "%s_count %d\n", h.name, h.count)
				fmt.Fprintf(&sb, "%s_sum %f\n", h.name, h.sum)
			}
			return true
		})

		fmt.Fprint(w, sb.String())
	}
}
