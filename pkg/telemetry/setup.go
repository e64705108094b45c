package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Setup installs a global tracer provider that exports to whatever the
// configuration selects: an OTLP collector when a host is set, a Jaeger
// instance otherwise. The caller owns the returned provider and must shut it
// down on exit.
func Setup(config Config) (*tracesdk.TracerProvider, error) {
	if !config.Enabled() {
		return nil, fmt.Errorf("neither OTLP nor Jaeger URL is set")
	}

	res, err := newResource(config.Package, config.ID)
	if err != nil {
		return nil, err
	}

	exporter, err := config.exporter()
	if err != nil {
		return nil, err
	}

	provider := tracesdk.NewTracerProvider(
		tracesdk.WithSampler(tracesdk.AlwaysSample()),
		tracesdk.WithBatcher(exporter),
		tracesdk.WithResource(res),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return provider, nil
}

// Picks the span exporter the configuration asks for. OTLP wins when both
// are configured.
func (c Config) exporter() (tracesdk.SpanExporter, error) {
	if c.OTLP.Host != "" {
		return c.OTLP.exporter()
	}

	return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(c.JaegerURL)))
}

// Builds the OTLP trace exporter. The `otlptracehttp` client does not
// enforce its endpoint requirements at construction time: a malformed host
// only surfaces as a **logged** send error once the first batch goes out, so
// we validate it here where we can still return the error.
func (o OTLP) exporter() (*otlptrace.Exporter, error) {
	switch {
	case strings.Contains(o.Host, "://"):
		return nil, fmt.Errorf("OTLP host must not contain the protocol")
	case strings.ContainsRune(o.Host, '/'):
		return nil, fmt.Errorf("OTLP host must not contain a path")
	}

	options := []otlptracehttp.Option{otlptracehttp.WithEndpoint(o.Host)}
	if !o.Secure {
		options = append(options, otlptracehttp.WithInsecure())
	}

	return otlptrace.New(context.Background(), otlptracehttp.NewClient(options...))
}

// The resource identifies this service instance on every exported span.
func newResource(pkg, identifier string) (*resource.Resource, error) {
	if pkg == "" {
		pkg = PACKAGE
	}
	if identifier == "" {
		return nil, fmt.Errorf("empty service instance identifier")
	}

	return resource.New(
		context.Background(),
		resource.WithContainer(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(pkg),
			attribute.String("ID", identifier),
		),
	)
}
