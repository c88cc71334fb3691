package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned by metric constructors given no meter.
var ErrMeterNil = errors.New("telemetry: meter is nil")

// Metric attribute keys. Span attribute keys live in tracing.go.
var (
	AttrHTTPMethod      = attribute.Key("http.method")
	AttrHTTPRoute       = attribute.Key("http.route")
	AttrHTTPStatusCode  = attribute.Key("http.status_code")
	AttrHTTPStatusClass = attribute.Key("http.status_class")

	AttrDBOperation = attribute.Key("db.operation")
	AttrDBTable     = attribute.Key("db.table")
	AttrDBState     = attribute.Key("db.pool.state")

	AttrPaymentMethod = attribute.Key("payment_method")
	AttrInvoiceStatus = attribute.Key("invoice_status")
	AttrLedgerSource  = attribute.Key("ledger_source")
	AttrIPNRspCode    = attribute.Key("ipn_rsp_code")
)

// Bucket boundaries. Durations are in seconds, payment amounts in VND.
var (
	HTTPDurationBuckets  = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	DBDurationBuckets    = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
	ResponseSizeBuckets  = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000}
	PaymentAmountBuckets = []float64{50_000, 100_000, 250_000, 500_000, 1_000_000, 2_500_000, 5_000_000, 10_000_000}
)

// Instruments creates instruments on one meter and keeps the first failure,
// so a constructor can declare all of its instruments and check Err once.
type Instruments struct {
	meter metric.Meter
	err   error
}

func NewInstruments(meter metric.Meter) *Instruments {
	in := &Instruments{meter: meter}
	if meter == nil {
		in.err = ErrMeterNil
	}
	return in
}

// Err reports the first instrument that could not be created.
func (in *Instruments) Err() error { return in.err }

func (in *Instruments) fail(kind, name string, err error) {
	if in.err == nil && err != nil {
		in.err = fmt.Errorf("create %s %s: %w", kind, name, err)
	}
}

func (in *Instruments) Counter(name, description, unit string) *Counter {
	if in.err != nil {
		return nil
	}
	c, err := in.meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	in.fail("counter", name, err)
	return &Counter{counter: c}
}

// Histogram creates a float64 histogram; nil buckets keep the SDK defaults.
func (in *Instruments) Histogram(name, description, unit string, buckets []float64) *Histogram {
	if in.err != nil {
		return nil
	}
	opts := []metric.Float64HistogramOption{metric.WithDescription(description), metric.WithUnit(unit)}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := in.meter.Float64Histogram(name, opts...)
	in.fail("histogram", name, err)
	return &Histogram{histogram: h}
}

func (in *Instruments) Gauge(name, description, unit string) *Gauge {
	if in.err != nil {
		return nil
	}
	g, err := in.meter.Int64Gauge(name, metric.WithDescription(description), metric.WithUnit(unit))
	in.fail("gauge", name, err)
	return &Gauge{gauge: g}
}

func (in *Instruments) UpDownCounter(name, description, unit string) *UpDownCounter {
	if in.err != nil {
		return nil
	}
	u, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(description), metric.WithUnit(unit))
	in.fail("updowncounter", name, err)
	return &UpDownCounter{counter: u}
}

type Counter struct{ counter metric.Int64Counter }

func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

type Histogram struct{ histogram metric.Float64Histogram }

func (h *Histogram) Record(ctx context.Context, value float64, attrs ...attribute.KeyValue) {
	h.histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}

// RecordDuration records d in seconds.
func (h *Histogram) RecordDuration(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	h.Record(ctx, d.Seconds(), attrs...)
}

type Gauge struct{ gauge metric.Int64Gauge }

func (g *Gauge) Record(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	g.gauge.Record(ctx, value, metric.WithAttributes(attrs...))
}

type UpDownCounter struct{ counter metric.Int64UpDownCounter }

func (u *UpDownCounter) Add(ctx context.Context, delta int64, attrs ...attribute.KeyValue) {
	u.counter.Add(ctx, delta, metric.WithAttributes(attrs...))
}
