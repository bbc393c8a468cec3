package otelhelper

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError records a pipeline failure on the span: the error itself, an error
// status, and an event carrying the error's Go type plus any caller-supplied
// attributes (execution id, worker id, fix type).
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	eventAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	eventAttrs = append(eventAttrs, attribute.String(ErrorTypeKey, fmt.Sprintf("%T", err)))
	eventAttrs = append(eventAttrs, attrs...)

	span.AddEvent("error_occurred", trace.WithAttributes(eventAttrs...))
}
