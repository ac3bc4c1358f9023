package workflow

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

func newRequestID() string {
	return "req_" + uuid.NewString()
}

// pendingRequest is the runtime bookkeeping for one open request/response
// suspension: the human-in-the-loop (or any external system) gate that
// spec's Request/Response Subsystem describes. It is the generalization of
// oasis's suspend.go ErrSuspended to named, independently resolvable
// requests rather than a single halt point per run.
type pendingRequest struct {
	id           string
	executorID   string
	payload      any
	responseType reflect.Type
	openedAtStep int
	createdAt    time.Time
	ttlTimer     *time.Timer
}

// RequestRecord is the serializable, external view of a pending request:
// what Workflow.PendingRequests returns and what a checkpoint persists so a
// crashed process can recover the set of outstanding human-in-the-loop
// gates.
type RequestRecord struct {
	ID           string    `json:"id"`
	ExecutorID   string    `json:"executor_id"`
	Payload      any       `json:"payload"`
	ResponseType string    `json:"response_type"`
	OpenedAtStep int       `json:"opened_at_step"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r *pendingRequest) record() RequestRecord {
	typeName := ""
	if r.responseType != nil {
		typeName = r.responseType.String()
	}
	return RequestRecord{
		ID:           r.id,
		ExecutorID:   r.executorID,
		Payload:      r.payload,
		ResponseType: typeName,
		OpenedAtStep: r.openedAtStep,
		CreatedAt:    r.createdAt,
	}
}

// register stores req in the run's request table and arms its TTL.
// onExpire is invoked (asynchronously) if the TTL elapses before the
// request is resolved, matching oasis's checkSuspendLoop auto-release.
func (rc *RunnerContext) register(req *pendingRequest, ttl time.Duration, onExpire func(id string)) {
	req.createdAt = time.Now()
	rc.mu.Lock()
	rc.requests[req.id] = req
	rc.mu.Unlock()

	if ttl > 0 && onExpire != nil {
		req.ttlTimer = time.AfterFunc(ttl, func() { onExpire(req.id) })
	}
}

// resolve removes and returns the pending request for id, verifying that
// response's type matches what RequestInfo declared. Returns
// ErrRequestNotPending if the ID is unknown, ErrResponseTypeMismatch if the
// type disagrees.
func (rc *RunnerContext) resolve(id string, response any) (*pendingRequest, error) {
	rc.mu.Lock()
	req, ok := rc.requests[id]
	if ok {
		delete(rc.requests, id)
	}
	rc.mu.Unlock()

	if !ok {
		return nil, &RequestError{RequestID: id, Cause: ErrRequestNotPending}
	}
	if req.ttlTimer != nil {
		req.ttlTimer.Stop()
	}
	if req.responseType != nil && response != nil {
		if reflect.TypeOf(response) != req.responseType {
			return nil, &RequestError{
				RequestID: id,
				Cause:     fmt.Errorf("expects %s, got %T: %w", req.responseType, response, ErrResponseTypeMismatch),
			}
		}
	}
	return req, nil
}

// release drops a request without resolving it, used when a TTL fires.
func (rc *RunnerContext) release(id string) (*pendingRequest, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	req, ok := rc.requests[id]
	if ok {
		delete(rc.requests, id)
	}
	return req, ok
}

// Pending returns a snapshot of every currently open request.
func (rc *RunnerContext) Pending() []RequestRecord {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]RequestRecord, 0, len(rc.requests))
	for _, req := range rc.requests {
		out = append(out, req.record())
	}
	return out
}

// responseHandlerFunc is invoked when a response resolves a pending
// request opened by this executor. It receives the original request
// payload and the response payload and runs with the same WorkflowContext
// capabilities (SendMessage, YieldOutput) as a normal handler.
type responseHandlerFunc func(wctx *WorkflowContext, requestPayload, response any) error

// RegisterResponseHandler attaches the function invoked when a response
// resolves a request this executor opened via WorkflowContext.RequestInfo.
// An executor has at most one response handler; registering twice
// overwrites the previous one.
func RegisterResponseHandler[Req any, Resp any](b *Base, fn func(wctx *WorkflowContext, request Req, response Resp) error) {
	b.responseHandler = func(wctx *WorkflowContext, requestPayload, response any) error {
		typedReq, ok := requestPayload.(Req)
		if !ok {
			return fmt.Errorf("executor %q: request payload type assertion to %T failed", b.id, typedReq)
		}
		typedResp, ok := response.(Resp)
		if !ok {
			return fmt.Errorf("executor %q: response payload type assertion to %T failed", b.id, typedResp)
		}
		return fn(wctx, typedReq, typedResp)
	}
}
