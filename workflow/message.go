package workflow

import "reflect"

// Envelope carries one typed message between executors. SourceID is the
// executor that produced it ("__start__" for the initial input injected by Run).
// TargetID pins delivery to a single executor; when empty the message is
// routed by evaluating every outgoing edge of SourceID in order.
type Envelope struct {
	SourceID string
	TargetID string
	Payload  any

	// TraceID threads through an entire run for correlation in emitted
	// events; Step is the superstep the envelope is delivered in.
	TraceID string
	Step    int
}

// PayloadType returns the reflect.Type of the envelope's payload, or nil for
// a nil payload.
func (e Envelope) PayloadType() reflect.Type {
	if e.Payload == nil {
		return nil
	}
	return reflect.TypeOf(e.Payload)
}

// typeKey identifies a handler registration. Handlers are looked up by the
// concrete type of the incoming payload, mirroring a typed-multiple-dispatch
// "handler" method: one Executor can register a distinct function per
// payload type it understands.
type typeKey struct {
	t reflect.Type
}

func keyOf(v any) typeKey {
	return typeKey{t: reflect.TypeOf(v)}
}
