package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// StartClient starts a client span for an outgoing request and injects the
// trace context into its headers. The returned request carries the span
// context. If cfg is nil a non-recording span is returned.
func StartClient(ctx context.Context, cfg *Config, req *http.Request) (*http.Request, trace.Span) {
	if cfg == nil {
		return req, trace.SpanFromContext(ctx)
	}
	ctx, span := cfg.tracer().Start(ctx, req.Method+" "+req.URL.Path, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("url.full", req.URL.String()),
		attribute.String("server.address", req.URL.Host),
	)
	req = req.WithContext(ctx)
	cfg.propagators().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return req, span
}

// EndClient records the outcome of an outgoing request and ends span.
// status is ignored when err is non-nil.
func EndClient(span trace.Span, status int, err error) {
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if status >= http.StatusBadRequest {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}
