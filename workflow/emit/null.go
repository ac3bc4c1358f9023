package emit

import "context"

// NullEmitter discards every event. It is the default Emitter so that
// workflows with no observability configured incur no I/O.
type NullEmitter struct{}

// NewNullEmitter returns an Emitter that discards everything.
func NewNullEmitter() *NullEmitter { return &NullEmitter{} }

func (n *NullEmitter) Emit(Event) {}

func (n *NullEmitter) EmitBatch(context.Context, []Event) error { return nil }

func (n *NullEmitter) Flush(context.Context) error { return nil }
