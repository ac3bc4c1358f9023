package workflow

import (
	"context"
	"fmt"
)

// Executor is the unit of work in a Workflow graph. Each executor has a
// stable ID used by edges and checkpoints, and dispatches incoming
// envelopes to whichever typed handler was registered for that payload's
// concrete type.
//
// Most executors embed *Base and register handlers with RegisterHandler
// rather than implementing Dispatch by hand; Base's type-switch dispatch is
// the generalization of the teacher's single Node[S].Run entry point to a
// model where one executor may understand several distinct message types.
type Executor interface {
	ID() string
	Dispatch(ctx context.Context, wctx *WorkflowContext, env Envelope) error
}

// PolicyProvider is implemented by executors that want retry/timeout
// behavior beyond the workflow-wide default. The scheduler checks for this
// interface via a type assertion exactly as the teacher engine does for its
// Node implementations.
type PolicyProvider interface {
	Policy() NodePolicy
}

type handlerFunc func(ctx context.Context, wctx *WorkflowContext, payload any) error

// Base implements Executor by dispatching on the concrete type of the
// incoming payload. Embed it in a concrete executor type and register
// handlers with RegisterHandler.
type Base struct {
	id              string
	handlers        map[typeKey]handlerFunc
	catchAll        handlerFunc
	policy          *NodePolicy
	responseHandler responseHandlerFunc
}

// NewBase creates an executor base with the given stable ID.
func NewBase(id string) *Base {
	return &Base{
		id:       id,
		handlers: make(map[typeKey]handlerFunc),
	}
}

// ID returns the executor's stable identifier.
func (b *Base) ID() string { return b.id }

// WithPolicy attaches a NodePolicy so the scheduler applies its timeout and
// retry behavior to this executor. Returns b for chaining.
func (b *Base) WithPolicy(p NodePolicy) *Base {
	b.policy = &p
	return b
}

// Policy implements PolicyProvider when a policy was attached.
func (b *Base) Policy() NodePolicy {
	if b.policy == nil {
		return NodePolicy{}
	}
	return *b.policy
}

// SetCatchAll registers a fallback invoked for any payload type with no
// specific handler. Without a catch-all, an unhandled type is an error.
func (b *Base) SetCatchAll(fn func(ctx context.Context, wctx *WorkflowContext, payload any) error) {
	b.catchAll = fn
}

// Dispatch implements Executor.
func (b *Base) Dispatch(ctx context.Context, wctx *WorkflowContext, env Envelope) error {
	if env.Payload == nil {
		if b.catchAll != nil {
			return b.catchAll(ctx, wctx, nil)
		}
		return nil
	}
	if h, ok := b.handlers[keyOf(env.Payload)]; ok {
		return h(ctx, wctx, env.Payload)
	}
	if b.catchAll != nil {
		return b.catchAll(ctx, wctx, env.Payload)
	}
	return &RoutingError{ExecutorID: b.id, Step: wctx.Step(), Cause: fmt.Errorf("payload type %T: %w", env.Payload, ErrUnhandledMessageType)}
}

// responseHandlerProvider is implemented by executors that can resume from
// a resolved request/response suspension. The scheduler type-asserts for
// this interface when applying a response rather than requiring every
// Executor to implement it.
type responseHandlerProvider interface {
	invokeResponseHandler(wctx *WorkflowContext, requestPayload, response any) error
}

func (b *Base) invokeResponseHandler(wctx *WorkflowContext, requestPayload, response any) error {
	if b.responseHandler == nil {
		return &RoutingError{ExecutorID: b.id, Step: wctx.Step(), Cause: fmt.Errorf("no response handler registered: %w", ErrUnhandledMessageType)}
	}
	return b.responseHandler(wctx, requestPayload, response)
}

// RegisterHandler attaches a typed handler to an executor's Base for
// payloads of type T. Go methods cannot be generic, so this is a free
// function rather than a method on Base.
func RegisterHandler[T any](b *Base, fn func(ctx context.Context, wctx *WorkflowContext, payload T) error) {
	var zero T
	b.handlers[keyOf(zero)] = func(ctx context.Context, wctx *WorkflowContext, payload any) error {
		typed, ok := payload.(T)
		if !ok {
			return fmt.Errorf("executor %q: payload type assertion to %T failed", b.id, zero)
		}
		return fn(ctx, wctx, typed)
	}
}

// FunctionExecutor builds a single-handler Executor in one call, the
// generalization of the teacher's NodeFunc[S] adapter to the spec's
// dynamically typed message model.
func FunctionExecutor[T any](id string, fn func(ctx context.Context, wctx *WorkflowContext, payload T) error) *Base {
	b := NewBase(id)
	RegisterHandler(b, fn)
	return b
}
