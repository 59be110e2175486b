package pipeline

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lon9/car_detection_tutorial/detection"
)

// Pipeline stages timed by Metrics.
const (
	StageDecode     = "decode"
	StageDetection  = "detection"
	StageAttributes = "attributes"
	StageRender     = "render"
	StageOutput     = "output"
)

const namespace = "car_detection"

// Metrics collects per-stage timings and counters in its own registry.
type Metrics struct {
	registry *prometheus.Registry

	StageDuration *prometheus.HistogramVec
	Frames        prometheus.Counter
	Objects       *prometheus.CounterVec
}

// NewMetrics registers the pipeline collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Histogram of pipeline stage durations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"stage"}),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Total frames processed.",
		}),
		Objects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_total",
			Help:      "Total objects detected, labeled by class.",
		}, []string{"label"}),
	}
	m.registry.MustRegister(m.StageDuration, m.Frames, m.Objects)
	return m
}

// Observe records the time spent in stage since start.
func (m *Metrics) Observe(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// count records one delivered frame and its objects.
func (m *Metrics) count(objs []detection.Object) {
	if m == nil {
		return
	}
	m.Frames.Inc()
	for _, o := range objs {
		m.Objects.WithLabelValues(o.Label.String()).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteReport prints count, total and average time per stage.
func (m *Metrics) WriteReport(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	type row struct {
		stage string
		count uint64
		sum   float64
	}
	var rows []row
	for _, mf := range families {
		if mf.GetName() != namespace+"_stage_duration_seconds" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			r := row{count: metric.GetHistogram().GetSampleCount(), sum: metric.GetHistogram().GetSampleSum()}
			for _, l := range metric.GetLabel() {
				if l.GetName() == "stage" {
					r.stage = l.GetValue()
				}
			}
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].stage < rows[j].stage })

	fmt.Fprintln(w, "Performance counts:")
	fmt.Fprintf(w, "%-12s %8s %12s %10s\n", "stage", "count", "total ms", "avg ms")
	for _, r := range rows {
		avg := 0.0
		if r.count > 0 {
			avg = r.sum * 1000 / float64(r.count)
		}
		fmt.Fprintf(w, "%-12s %8d %12.3f %10.3f\n", r.stage, r.count, r.sum*1000, avg)
	}
	return nil
}
