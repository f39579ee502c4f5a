package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"support-drafts/internal/common/logger"
)

type Options struct {
	ServiceName    string
	TracingEnabled bool
	JaegerEndpoint string
	SampleRatio    float64
}

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	jobCounter     otelmetric.Int64Counter
	jobDuration    otelmetric.Float64Histogram
	draftCounter   otelmetric.Int64Counter
	draftDuration  otelmetric.Float64Histogram
}

// New sets up metrics only; tracing stays a no-op.
func New(serviceName string, log logger.Logger) *Observability {
	return NewWithOptions(Options{ServiceName: serviceName}, log)
}

// NewWithOptions never fails: exporter errors are logged and the affected
// instruments are left nil, which the Record methods tolerate.
func NewWithOptions(opts Options, log logger.Logger) *Observability {
	o := &Observability{tracer: noop.NewTracerProvider().Tracer(opts.ServiceName)}

	exporter, err := prometheus.New()
	if err != nil {
		log.Error("failed to create prometheus exporter", map[string]interface{}{"error": err})
	} else {
		o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter))
		otel.SetMeterProvider(o.meterProvider)
		o.meter = o.meterProvider.Meter(opts.ServiceName)
		o.initInstruments()
	}

	if opts.TracingEnabled {
		tp, err := newTracerProvider(opts)
		if err != nil {
			log.Error("failed to create jaeger exporter", map[string]interface{}{
				"error":    err,
				"endpoint": opts.JaegerEndpoint,
			})
		} else {
			o.tracerProvider = tp
			otel.SetTracerProvider(tp)
			o.tracer = tp.Tracer(opts.ServiceName)
		}
	}

	return o
}

func newTracerProvider(opts Options) (*sdktrace.TracerProvider, error) {
	if opts.JaegerEndpoint == "" {
		return nil, fmt.Errorf("jaeger endpoint is required when tracing is enabled")
	}
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.JaegerEndpoint)))
	if err != nil {
		return nil, err
	}

	ratio := opts.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", opts.ServiceName),
		)),
	), nil
}

func (o *Observability) initInstruments() {
	o.jobCounter, _ = o.meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)
	o.jobDuration, _ = o.meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)
	o.draftCounter, _ = o.meter.Int64Counter(
		"drafts.produced",
		otelmetric.WithDescription("Number of drafts produced by terminal state"),
	)
	o.draftDuration, _ = o.meter.Float64Histogram(
		"drafts.duration",
		otelmetric.WithDescription("End-to-end draft pipeline duration"),
		otelmetric.WithUnit("ms"),
	)
}

// Tracer returns the jaeger-backed tracer, or a no-op tracer when tracing is off.
func (o *Observability) Tracer() trace.Tracer {
	return o.tracer
}

func (o *Observability) RecordJobProcessed(ctx context.Context, status string) {
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, duration time.Duration, status string) {
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

// RecordDraft counts one finished draft and its duration.
func (o *Observability) RecordDraft(ctx context.Context, state, level string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("state", state),
		attribute.String("level", level),
	)
	if o.draftCounter != nil {
		o.draftCounter.Add(ctx, 1, attrs)
	}
	if o.draftDuration != nil {
		o.draftDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
