package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each event into an OpenTelemetry span. Spans are
// point-in-time (started and immediately ended) since an Event represents
// an instant, not a duration; the latency_ms metadata field (when an
// executor invocation produced one) is recorded as an attribute rather than
// as the span's actual elapsed time.
//
// Usage:
//
//	tracer := otel.Tracer("agentflow")
//	emitter := emit.NewOTelEmitter(tracer)
//	wf, _ := workflow.NewBuilder().WithOption(workflow.WithEmitter(emitter)).Build()
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter wraps an OpenTelemetry tracer (e.g. otel.Tracer("agentflow")).
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

func (o *OTelEmitter) Emit(event Event) {
	ctx := context.Background()
	_, span := o.tracer.Start(ctx, event.Msg)
	defer span.End()
	o.annotate(span, event)
}

func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		_, span := o.tracer.Start(ctx, event.Msg)
		o.annotate(span, event)
		span.End()
	}
	return nil
}

// Flush calls ForceFlush on the global tracer provider when it supports it
// (i.e. is an SDK provider rather than the no-op default).
func (o *OTelEmitter) Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTelEmitter) annotate(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("agentflow.run_id", event.RunID),
		attribute.Int("agentflow.step", event.Step),
		attribute.String("agentflow.executor_id", event.ExecutorID),
	)
	o.addMetadataAttributes(span, event.Meta)
	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}

// addMetadataAttributes maps event metadata onto span attributes, renaming
// a few well-known keys onto semantic-convention-flavored names used
// consistently across the emit package's backends.
func (o *OTelEmitter) addMetadataAttributes(span trace.Span, meta map[string]interface{}) {
	for key, value := range meta {
		attrKey := key
		switch key {
		case "tokens_in":
			attrKey = "agentflow.llm.tokens_in"
		case "tokens_out":
			attrKey = "agentflow.llm.tokens_out"
		case "cost_usd":
			attrKey = "agentflow.llm.cost_usd"
		case "latency_ms":
			attrKey = "agentflow.executor.latency_ms"
		case "model":
			attrKey = "agentflow.llm.model"
		}

		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
}
