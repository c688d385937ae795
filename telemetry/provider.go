// Package telemetry provides an OpenTelemetry-backed implementation of
// the core.Telemetry interface. The core package reaches telemetry only
// through core.Telemetry and does not import this package; wiring this
// provider is opt-in:
//
//	provider, err := telemetry.NewProvider("bojstat")
//	if err != nil { ... }
//	defer provider.Shutdown(context.Background())
//
//	client, err := bojstat.New(bojstat.WithTelemetry(provider))
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/itsneelabh/bojstat/core"
)

// Provider implements core.Telemetry over the OpenTelemetry API.
type Provider struct {
	tracer   trace.Tracer
	meter    metric.Meter
	provider *sdktrace.TracerProvider

	mu       sync.Mutex
	counters map[string]metric.Float64Counter
}

// ProviderOption configures a Provider
type ProviderOption func(*providerOptions)

type providerOptions struct {
	tracerProvider trace.TracerProvider
}

// WithTracerProvider supplies an externally managed tracer provider
// (e.g. one exporting OTLP). Without it a stdout-exporting provider is
// created and owned by this Provider.
func WithTracerProvider(tp trace.TracerProvider) ProviderOption {
	return func(o *providerOptions) { o.tracerProvider = tp }
}

// NewProvider creates a telemetry provider for the given service name.
func NewProvider(serviceName string, opts ...ProviderOption) (*Provider, error) {
	var options providerOptions
	for _, opt := range opts {
		opt(&options)
	}

	p := &Provider{
		meter:    otel.Meter(serviceName),
		counters: make(map[string]metric.Float64Counter),
	}

	if options.tracerProvider != nil {
		p.tracer = options.tracerProvider.Tracer(serviceName)
		return p, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	p.provider = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	p.tracer = p.provider.Tracer(serviceName)
	return p, nil
}

// StartSpan begins a span; the returned context carries it.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	ctx, otelSpan := p.tracer.Start(ctx, name)
	return ctx, &span{inner: otelSpan}
}

// RecordMetric adds value to the named counter with the given labels.
func (p *Provider) RecordMetric(name string, value float64, labels map[string]string) {
	counter, err := p.counter(name)
	if err != nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for key, val := range labels {
		attrs = append(attrs, attribute.String(key, val))
	}
	counter.Add(context.Background(), value, metric.WithAttributes(attrs...))
}

func (p *Provider) counter(name string) (metric.Float64Counter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if counter, ok := p.counters[name]; ok {
		return counter, nil
	}
	counter, err := p.meter.Float64Counter(name)
	if err != nil {
		return nil, err
	}
	p.counters[name] = counter
	return counter, nil
}

// Shutdown flushes and stops the owned tracer provider, if any.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}

// span adapts an OpenTelemetry span to core.Span.
type span struct {
	inner trace.Span
}

func (s *span) End() {
	s.inner.End()
}

func (s *span) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.inner.SetAttributes(attribute.String(key, v))
	case int:
		s.inner.SetAttributes(attribute.Int(key, v))
	case int64:
		s.inner.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.inner.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.inner.SetAttributes(attribute.Bool(key, v))
	default:
		s.inner.SetAttributes(attribute.String(key, fmt.Sprint(v)))
	}
}

func (s *span) RecordError(err error) {
	if err != nil {
		s.inner.RecordError(err)
	}
}
