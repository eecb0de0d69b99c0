package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/0xteamCookie/LearnAbility-backend/internal/config"
)

const TracerName = "github.com/0xteamCookie/LearnAbility-backend"

type TracerProvider struct {
	provider *sdktrace.TracerProvider
}

// InitTracing installs a global OTLP tracer provider. With no endpoint the
// global no-op provider is left in place.
func InitTracing(ctx context.Context, cfg config.TracingConfig) (*TracerProvider, error) {
	if cfg.Endpoint == "" {
		return &TracerProvider{}, nil
	}
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}
	name := cfg.ServiceName
	if name == "" {
		name = "learnability"
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(semconv.ServiceName(name)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &TracerProvider{provider: provider}, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(ratio)
	}
}

func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp == nil || tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}

// StartIngestSpan starts a span around one document's ingestion task.
func StartIngestSpan(ctx context.Context, documentID string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "ingest.process",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("document.id", documentID)),
	)
}

// StartRetrieveSpan starts a span around a retrieval query.
func StartRetrieveSpan(ctx context.Context, ownerID string, topK int) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "retrieval.retrieve",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("owner.id", ownerID),
			attribute.Int("retrieval.top_k", topK),
		),
	)
}

func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
