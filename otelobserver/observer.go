// Package otelobserver reports memoized call events as OpenTelemetry
// metrics and as events on the caller's active span.
package otelobserver

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/goforj/smartcache"
)

const (
	callsMetric    = "smartcache.calls"
	errorsMetric   = "smartcache.errors"
	durationMetric = "smartcache.duration_ms"
)

// Observer implements smartcache.Observer. Safe for concurrent use.
type Observer struct {
	calls    metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

var _ smartcache.Observer = (*Observer)(nil)

// New creates the instruments on meter.
//
// Example:
//
//	obs, err := otelobserver.New(otel.GetMeterProvider().Meter("billing"))
//	if err != nil {
//		return err
//	}
//	totals, err := smartcache.Wrap1(loadTotals, smartcache.WithObserver(obs))
func New(meter metric.Meter) (*Observer, error) {
	calls, err := meter.Int64Counter(
		callsMetric,
		metric.WithDescription("Memoized calls by outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter(
		errorsMetric,
		metric.WithDescription("Memoized calls that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		durationMetric,
		metric.WithDescription("Memoized call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &Observer{calls: calls, errors: errs, duration: duration}, nil
}

// OnCacheEvent implements smartcache.Observer.
func (o *Observer) OnCacheEvent(ctx context.Context, ev smartcache.Event) {
	attrs := []attribute.KeyValue{
		attribute.String("smartcache.event", string(ev.Kind)),
		attribute.String("smartcache.func", ev.Func),
	}
	if ev.Driver != "" {
		attrs = append(attrs, attribute.String("smartcache.driver", string(ev.Driver)))
	}
	opt := metric.WithAttributes(attrs...)

	o.calls.Add(ctx, 1, opt)
	if ev.Err != nil {
		o.errors.Add(ctx, 1, opt)
	}
	o.duration.Record(ctx, float64(ev.Duration.Microseconds())/1000, opt)

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	spanAttrs := append(attrs, attribute.String("smartcache.key", ev.Key))
	if ev.Age > 0 {
		spanAttrs = append(spanAttrs, attribute.Float64("smartcache.age_s", ev.Age.Seconds()))
	}
	span.AddEvent("smartcache."+string(ev.Kind), trace.WithAttributes(spanAttrs...))
}
