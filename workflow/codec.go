package workflow

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"
)

const timeLayout = time.RFC3339Nano

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("workflow: empty timestamp")
	}
	return time.Parse(timeLayout, s)
}

// TypeRegistry maps a stable string name to a concrete Go type so that
// message payloads and SharedState values, which travel as `any` through
// the engine, can round-trip through JSON checkpoints without losing their
// concrete type. Register every payload type a workflow's executors
// exchange before checkpointing or resuming it.
type TypeRegistry struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{byName: make(map[string]reflect.Type)}
}

// Register records the type of example under its package-qualified type
// name (e.g. "main.OrderPlaced"). Panics if example is nil; nil payloads
// carry no type to register.
func (r *TypeRegistry) Register(example any) {
	t := reflect.TypeOf(example)
	if t == nil {
		panic("workflow: cannot register nil example type")
	}
	r.RegisterAs(t.String(), example)
}

// RegisterAs records example's type under an explicit name, for cases
// where the default package-qualified name is inconvenient (e.g. two
// packages define a same-named type).
func (r *TypeRegistry) RegisterAs(name string, example any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = reflect.TypeOf(example)
}

func (r *TypeRegistry) lookup(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// taggedValue is the wire format for an `any`-typed value: the registered
// type name plus its JSON-marshaled data. A nil value encodes as a
// taggedValue with an empty Type and null Data.
type taggedValue struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Codec encodes and decodes Checkpoints to and from JSON, resolving tagged
// payload values against a TypeRegistry. It is the generalization of the
// teacher's direct json.Marshal(Checkpoint[S]) to a model where S is not a
// single static type.
type Codec struct {
	registry *TypeRegistry
}

// NewCodec returns a Codec that resolves payload types against registry.
func NewCodec(registry *TypeRegistry) *Codec {
	return &Codec{registry: registry}
}

func (c *Codec) encodeValue(v any) (taggedValue, error) {
	if v == nil {
		return taggedValue{}, nil
	}
	if err := detectCycle(v); err != nil {
		return taggedValue{}, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return taggedValue{}, fmt.Errorf("workflow: marshal value of type %T: %w", v, err)
	}
	return taggedValue{Type: reflect.TypeOf(v).String(), Data: data}, nil
}

// detectCycle walks v looking for a reference cycle through a pointer, map,
// or slice that loops back on one of its own ancestors — the shape that
// would otherwise recurse json.Marshal forever (self-referential
// SharedState values are the realistic way this happens: an executor
// stashes a struct in SharedState that, directly or transitively, points
// back to itself). visited maps a container's runtime identity to the path
// that first reached it, by analogy with the teacher's OrderKey/idempotency
// hashing using identity-free structural walks rather than trusting
// encoding/json's own (cycle-unsafe) traversal.
func detectCycle(v any) error {
	return walkForCycle(reflect.ValueOf(v), make(map[uintptr]string), "$")
}

func walkForCycle(v reflect.Value, visited map[uintptr]string, path string) error {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if prior, ok := visited[ptr]; ok {
			return fmt.Errorf("workflow: cycle detected encoding value: %s refers back to %s", path, prior)
		}
		visited[ptr] = path
		defer delete(visited, ptr)

		switch v.Kind() {
		case reflect.Ptr:
			return walkForCycle(v.Elem(), visited, path)
		case reflect.Slice:
			for i := 0; i < v.Len(); i++ {
				if err := walkForCycle(v.Index(i), visited, fmt.Sprintf("%s[%d]", path, i)); err != nil {
					return err
				}
			}
			return nil
		case reflect.Map:
			iter := v.MapRange()
			for iter.Next() {
				key := fmt.Sprint(iter.Key().Interface())
				if err := walkForCycle(iter.Value(), visited, fmt.Sprintf("%s[%q]", path, key)); err != nil {
					return err
				}
			}
			return nil
		}
	case reflect.Interface:
		return walkForCycle(v.Elem(), visited, path)
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if t.Field(i).PkgPath != "" {
				continue // unexported field, unreachable to json.Marshal too
			}
			if err := walkForCycle(v.Field(i), visited, path+"."+t.Field(i).Name); err != nil {
				return err
			}
		}
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := walkForCycle(v.Index(i), visited, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Codec) decodeValue(tv taggedValue) (any, error) {
	if tv.Type == "" {
		return nil, nil
	}
	t, ok := c.registry.lookup(tv.Type)
	if !ok {
		return nil, fmt.Errorf("workflow: type %q not registered with codec", tv.Type)
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal(tv.Data, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("workflow: unmarshal value of type %q: %w", tv.Type, err)
	}
	return ptr.Elem().Interface(), nil
}

type envelopeDTO struct {
	SourceID string      `json:"source_id"`
	TargetID string      `json:"target_id,omitempty"`
	Payload  taggedValue `json:"payload"`
	TraceID  string      `json:"trace_id,omitempty"`
	Step     int         `json:"step"`
}

type workItemDTO struct {
	StepID           int         `json:"step_id"`
	OrderKey         uint64      `json:"order_key"`
	ExecutorID       string      `json:"executor_id"`
	Envelope         envelopeDTO `json:"envelope"`
	Attempt          int         `json:"attempt"`
	ParentExecutorID string      `json:"parent_executor_id"`
	EdgeIndex        int         `json:"edge_index"`
}

type requestRecordDTO struct {
	ID           string      `json:"id"`
	ExecutorID   string      `json:"executor_id"`
	Payload      taggedValue `json:"payload"`
	ResponseType string      `json:"response_type"`
	OpenedAtStep int         `json:"opened_at_step"`
	CreatedAt    string      `json:"created_at"`
}

type checkpointDTO struct {
	RunID           string                 `json:"run_id"`
	StepID          int                    `json:"step_id"`
	State           map[string]taggedValue `json:"state"`
	Frontier        []workItemDTO          `json:"frontier"`
	PendingRequests []requestRecordDTO     `json:"pending_requests"`
	RecordedIOs     []RecordedIO           `json:"recorded_ios"`
	IdempotencyKey  string                 `json:"idempotency_key"`
	WorkflowHash    string                 `json:"workflow_hash,omitempty"`
	Timestamp       string                 `json:"timestamp"`
	Label           string                 `json:"label,omitempty"`
}

// Encode serializes cp to JSON, tagging every `any`-typed value with its
// registered type name so Decode can reconstruct concrete types.
func (c *Codec) Encode(cp Checkpoint) ([]byte, error) {
	dto := checkpointDTO{
		RunID:          cp.RunID,
		StepID:         cp.StepID,
		IdempotencyKey: cp.IdempotencyKey,
		WorkflowHash:   cp.WorkflowHash,
		Timestamp:      cp.Timestamp.Format(timeLayout),
		Label:          cp.Label,
		State:          make(map[string]taggedValue, len(cp.State)),
		RecordedIOs:    cp.RecordedIOs,
	}
	for k, v := range cp.State {
		tv, err := c.encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("workflow: encode state key %q: %w", k, err)
		}
		dto.State[k] = tv
	}
	for _, item := range cp.Frontier {
		payload, err := c.encodeValue(item.Envelope.Payload)
		if err != nil {
			return nil, fmt.Errorf("workflow: encode frontier item for %q: %w", item.ExecutorID, err)
		}
		dto.Frontier = append(dto.Frontier, workItemDTO{
			StepID:           item.StepID,
			OrderKey:         item.OrderKey,
			ExecutorID:       item.ExecutorID,
			Attempt:          item.Attempt,
			ParentExecutorID: item.ParentExecutorID,
			EdgeIndex:        item.EdgeIndex,
			Envelope: envelopeDTO{
				SourceID: item.Envelope.SourceID,
				TargetID: item.Envelope.TargetID,
				Payload:  payload,
				TraceID:  item.Envelope.TraceID,
				Step:     item.Envelope.Step,
			},
		})
	}
	for _, req := range cp.PendingRequests {
		payload, err := c.encodeValue(req.Payload)
		if err != nil {
			return nil, fmt.Errorf("workflow: encode pending request %q: %w", req.ID, err)
		}
		dto.PendingRequests = append(dto.PendingRequests, requestRecordDTO{
			ID:           req.ID,
			ExecutorID:   req.ExecutorID,
			Payload:      payload,
			ResponseType: req.ResponseType,
			OpenedAtStep: req.OpenedAtStep,
			CreatedAt:    req.CreatedAt.Format(timeLayout),
		})
	}
	return json.Marshal(dto)
}

// Decode reverses Encode, resolving every tagged value against the
// registry that was used to encode them.
func (c *Codec) Decode(data []byte) (Checkpoint, error) {
	var dto checkpointDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return Checkpoint{}, fmt.Errorf("workflow: unmarshal checkpoint: %w", err)
	}
	cp := Checkpoint{
		RunID:          dto.RunID,
		StepID:         dto.StepID,
		IdempotencyKey: dto.IdempotencyKey,
		WorkflowHash:   dto.WorkflowHash,
		Label:          dto.Label,
		State:          make(map[string]any, len(dto.State)),
		RecordedIOs:    dto.RecordedIOs,
	}
	if ts, err := parseTime(dto.Timestamp); err == nil {
		cp.Timestamp = ts
	}
	for k, tv := range dto.State {
		v, err := c.decodeValue(tv)
		if err != nil {
			return Checkpoint{}, fmt.Errorf("workflow: decode state key %q: %w", k, err)
		}
		cp.State[k] = v
	}
	for _, item := range dto.Frontier {
		payload, err := c.decodeValue(item.Envelope.Payload)
		if err != nil {
			return Checkpoint{}, fmt.Errorf("workflow: decode frontier item for %q: %w", item.ExecutorID, err)
		}
		cp.Frontier = append(cp.Frontier, WorkItem{
			StepID:           item.StepID,
			OrderKey:         item.OrderKey,
			ExecutorID:       item.ExecutorID,
			Attempt:          item.Attempt,
			ParentExecutorID: item.ParentExecutorID,
			EdgeIndex:        item.EdgeIndex,
			Envelope: Envelope{
				SourceID: item.Envelope.SourceID,
				TargetID: item.Envelope.TargetID,
				Payload:  payload,
				TraceID:  item.Envelope.TraceID,
				Step:     item.Envelope.Step,
			},
		})
	}
	for _, req := range dto.PendingRequests {
		payload, err := c.decodeValue(req.Payload)
		if err != nil {
			return Checkpoint{}, fmt.Errorf("workflow: decode pending request %q: %w", req.ID, err)
		}
		createdAt, _ := parseTime(req.CreatedAt)
		cp.PendingRequests = append(cp.PendingRequests, RequestRecord{
			ID:           req.ID,
			ExecutorID:   req.ExecutorID,
			Payload:      payload,
			ResponseType: req.ResponseType,
			OpenedAtStep: req.OpenedAtStep,
			CreatedAt:    createdAt,
		})
	}
	return cp, nil
}
