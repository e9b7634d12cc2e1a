package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartCommandSpan creates a span for a CLI command execution.
//
//	ctx, span := telemetry.StartCommandSpan(ctx, "auth.login")
//	defer span.End()
func StartCommandSpan(ctx context.Context, cmdName string) (context.Context, trace.Span) {
	ctx, span := GetTracerProvider().Tracer("commands").Start(ctx, "command."+cmdName)
	span.SetAttributes(
		attribute.String("command", cmdName),
		attribute.String("component", "cli"),
	)
	return ctx, span
}

// StartSessionSpan creates a span for one session manager operation.
func StartSessionSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	ctx, span := GetTracerProvider().Tracer("session").Start(ctx, "session."+operation)
	span.SetAttributes(attribute.String("session.operation", operation))
	return ctx, span
}

// StartClientSpan creates a client span for an outbound API request.
func StartClientSpan(ctx context.Context, method, endpoint string) (context.Context, trace.Span) {
	ctx, span := GetTracerProvider().Tracer("platform").Start(ctx, method+" "+endpoint,
		trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", endpoint),
	)
	return ctx, span
}

// StartServerSpan creates a server span for an inbound dev server request.
// route is the path template, so IDs do not explode span names.
func StartServerSpan(ctx context.Context, method, route string) (context.Context, trace.Span) {
	ctx, span := GetTracerProvider().Tracer("devserver").Start(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.route", route),
	)
	return ctx, span
}

// RecordResponse sets the status code on a server span. Only 5xx marks the
// span failed; 4xx is the client's problem.
func RecordResponse(span trace.Span, status int) {
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if status >= 500 {
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
		return
	}
	span.SetStatus(codes.Ok, "")
}

// RecordSuccess marks a span as successful with optional attributes
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records err on the span and marks it failed
func RecordError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attrs...)
}
