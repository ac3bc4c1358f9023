package emit

import "context"

// Emitter is the pluggable sink for workflow events. Implementations range
// from a plain text/JSON log (LogEmitter) to OpenTelemetry spans (OTelEmitter)
// or a Prometheus-backed counter set. The workflow engine never writes to a
// logger directly; every observable occurrence goes through an Emitter so
// callers can swap backends (or fan out to several with a multi-emitter)
// without touching engine code.
//
// Usage:
//
//	emitter := emit.NewLogEmitter(os.Stdout, false)
//	wf, _ := workflow.NewBuilder().WithOption(workflow.WithEmitter(emitter)).Build()
type Emitter interface {
	// Emit records a single event. Implementations must not block the
	// caller indefinitely; a slow backend should buffer internally.
	Emit(event Event)

	// EmitBatch records several events as one unit, useful for backends
	// where batching reduces I/O overhead (e.g. one HTTP call per batch).
	EmitBatch(ctx context.Context, events []Event) error

	// Flush forces any buffered events to reach the backend. The workflow
	// engine does not call it; callers flush when an observer reading the
	// backend needs a consistent view.
	Flush(ctx context.Context) error
}
