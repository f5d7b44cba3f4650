// Package metrics instruments lineseek lookups and index builds with
// Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pithecene-io/lineseek/lineseek"
)

const namespace = "lineseek"

// Metrics holds the collectors for one process.
type Metrics struct {
	Lookups        *prometheus.CounterVec
	LookupDuration *prometheus.HistogramVec
	IndexBuilds    *prometheus.CounterVec
	BuildDuration  prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lookups",
				Name:      "total",
				Help:      "Total number of lookups by operation and result",
			},
			[]string{"operation", "result"},
		),
		LookupDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "lookups",
				Name:      "duration_seconds",
				Help:      "Lookup duration in seconds, including any lazy index build",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		IndexBuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "index",
				Name:      "builds_total",
				Help:      "Total number of index builds by result",
			},
			[]string{"result"},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "index",
				Name:      "build_duration_seconds",
				Help:      "Index build duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),
	}

	for _, c := range []prometheus.Collector{m.Lookups, m.LookupDuration, m.IndexBuilds, m.BuildDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Result maps an error to a metric label: "ok", a snake_case error kind,
// "canceled" or "error".
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	if kind := lineseek.KindOf(err); kind != lineseek.KindUnknown {
		return strings.ReplaceAll(kind.String(), " ", "_")
	}
	return "error"
}

func (m *Metrics) observe(op string, began time.Time, err error) {
	m.Lookups.WithLabelValues(op, Result(err)).Inc()
	m.LookupDuration.WithLabelValues(op).Observe(time.Since(began).Seconds())
}

// -----------------------------------------------------------------------------
// Instrumented wrappers
// -----------------------------------------------------------------------------

// Index is an index that can also count lines.
type Index interface {
	lineseek.Index
	lineseek.LineCounter
}

// WrapIndex returns idx with build and lookup metrics. Wrap the index
// before handing it to a GracefulReader so lazy builds are counted too.
func (m *Metrics) WrapIndex(idx Index) Index {
	return &index{next: idx, m: m}
}

type index struct {
	next Index
	m    *Metrics
}

func (i *index) CreateIndex(ctx context.Context, key string) error {
	began := time.Now()
	err := i.next.CreateIndex(ctx, key)
	i.m.IndexBuilds.WithLabelValues(Result(err)).Inc()
	if err == nil {
		i.m.BuildDuration.Observe(time.Since(began).Seconds())
	}
	return err
}

func (i *index) LineIndexInfo(ctx context.Context, key string, lineIndex int64) (lineseek.LineIndexInfo, error) {
	began := time.Now()
	info, err := i.next.LineIndexInfo(ctx, key, lineIndex)
	i.m.observe("line_index_info", began, err)
	return info, err
}

func (i *index) LineCount(ctx context.Context, key string) (int64, error) {
	began := time.Now()
	n, err := i.next.LineCount(ctx, key)
	i.m.observe("line_count", began, err)
	return n, err
}

// WrapLineReader returns r with lookup metrics under operation "get_line".
func (m *Metrics) WrapLineReader(r lineseek.LineReader) lineseek.LineReader {
	return &lineReader{next: r, m: m}
}

type lineReader struct {
	next lineseek.LineReader
	m    *Metrics
}

func (r *lineReader) GetLine(ctx context.Context, key string, lineIndex int64) (string, error) {
	began := time.Now()
	line, err := r.next.GetLine(ctx, key, lineIndex)
	r.m.observe("get_line", began, err)
	return line, err
}
