package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"veinmine.ai/internal/persistence/indexdb"
	"veinmine.ai/internal/persistence/r2s3"
	"veinmine.ai/internal/sim/vein"
	"veinmine.ai/internal/sim/world"
)

const namespace = "veinmine"

// Collector exports run, step and HTTP metrics on its own registry.
type Collector struct {
	reg *prometheus.Registry

	runsStarted prometheus.Counter
	runsEnded   *prometheus.CounterVec
	activeRuns  prometheus.Gauge
	cells       prometheus.Counter
	overBudget  prometheus.Counter
	stepCells   prometheus.Histogram
	stepActive  prometheus.Histogram
	stepBatch   prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var _ vein.Observer = (*Collector)(nil)

func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vein",
			Name:      "runs_started_total",
			Help:      "Vein runs started.",
		}),
		runsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vein",
			Name:      "runs_ended_total",
			Help:      "Vein runs ended, by status and interruption reason.",
		}, []string{"status", "reason"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vein",
			Name:      "active_runs",
			Help:      "Vein runs currently in progress.",
		}),
		cells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vein",
			Name:      "cells_processed_total",
			Help:      "Cells handed to the destruction pipeline.",
		}),
		overBudget: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vein",
			Name:      "over_budget_steps_total",
			Help:      "Session steps that stopped because the per-tick budget was spent.",
		}),
		stepCells: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "vein",
			Name:      "step_cells",
			Help:      "Cells processed by one session in one tick.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		stepActive: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "vein",
			Name:      "step_active_seconds",
			Help:      "Time one session spent working in one tick.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		stepBatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "vein",
			Name:      "max_batch",
			Help:      "Adaptive batch size after each step.",
			Buckets:   prometheus.LinearBuckets(20, 40, 10),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
	c.reg.MustRegister(
		c.runsStarted, c.runsEnded, c.activeRuns, c.cells, c.overBudget,
		c.stepCells, c.stepActive, c.stepBatch,
		c.httpRequests, c.httpDuration,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

func (c *Collector) RunStarted(vein.RunInfo) {
	c.runsStarted.Inc()
	c.activeRuns.Inc()
}

func (c *Collector) StepDone(_ vein.RunInfo, rep vein.StepReport) {
	c.cells.Add(float64(rep.Cells))
	if rep.OverBudget {
		c.overBudget.Inc()
	}
	c.stepCells.Observe(float64(rep.Cells))
	c.stepActive.Observe(rep.Active.Seconds())
	c.stepBatch.Observe(float64(rep.MaxBatch))
}

func (c *Collector) RunEnded(_ vein.RunInfo, out vein.Outcome) {
	c.activeRuns.Dec()
	c.runsEnded.WithLabelValues(string(out.Status), out.Reason).Inc()
}

// WatchWorld exports the world's metrics snapshot as gauges.
func (c *Collector) WatchWorld(snapshot func() world.WorldMetrics) {
	gauge := func(name, help string, f func(world.WorldMetrics) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "world",
			Name:      name,
			Help:      help,
		}, func() float64 { return f(snapshot()) })
	}
	c.reg.MustRegister(
		gauge("tick", "Current world tick.", func(m world.WorldMetrics) float64 { return float64(m.Tick) }),
		gauge("agents", "Agents in the world.", func(m world.WorldMetrics) float64 { return float64(m.Agents) }),
		gauge("loaded_chunks", "Generated chunks held in memory.", func(m world.WorldMetrics) float64 { return float64(m.LoadedChunks) }),
		gauge("blocks_broken", "Blocks broken since start.", func(m world.WorldMetrics) float64 { return float64(m.BlocksBroken) }),
		gauge("step_ms", "Duration of the last world step.", func(m world.WorldMetrics) float64 { return m.StepMS }),
		gauge("vein_queue_depth", "Pending vein requests.", func(m world.WorldMetrics) float64 { return float64(m.QueueDepths.Vein) }),
	)
}

// WatchIndex exports the sqlite index writer's queue and drop counters.
func (c *Collector) WatchIndex(stats func() indexdb.Stats) {
	c.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "queue_depth",
			Help:      "Rows waiting for the index writer.",
		}, func() float64 { return float64(stats().QueueDepth) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "dropped_total",
			Help:      "Rows dropped because the index queue was full.",
		}, func() float64 {
			st := stats()
			return float64(st.DropStart + st.DropStep + st.DropEnd)
		}),
	)
}

// WatchMirror exports journal mirror counters.
func (c *Collector) WatchMirror(stats func() r2s3.Stats) {
	counter := func(name, help string, f func(r2s3.Stats) uint64) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(f(stats())) })
	}
	c.reg.MustRegister(
		counter("uploaded_total", "Journal segments uploaded.", func(s r2s3.Stats) uint64 { return s.Uploaded }),
		counter("failed_total", "Journal segments that failed to upload.", func(s r2s3.Stats) uint64 { return s.Failed }),
		counter("dropped_total", "Journal segments dropped on a full queue.", func(s r2s3.Stats) uint64 { return s.Dropped }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "queue_depth",
			Help:      "Journal segments waiting for upload.",
		}, func() float64 { return float64(stats().QueueDepth) }),
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument records request counts and latency for h under path.
func (c *Collector) Instrument(path string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		status := strconv.Itoa(rec.status)
		c.httpRequests.WithLabelValues(r.Method, path, status).Inc()
		c.httpDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}
