package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
)

// WorkflowBuilder assembles executors and edges into an immutable Workflow.
// It mirrors the teacher's Engine.Add/Engine.Connect/Engine.StartAt
// builder-style configuration, generalized to the spec's richer edge kinds
// (conditional, switch-case, fan-out) and typed-message executors.
type WorkflowBuilder struct {
	executors    map[string]Executor
	edges        []Edge
	startID      string
	options      []Option
	typeRegistry *TypeRegistry
	err          error
}

// NewBuilder returns an empty WorkflowBuilder.
func NewBuilder() *WorkflowBuilder {
	return &WorkflowBuilder{
		executors:    make(map[string]Executor),
		typeRegistry: NewTypeRegistry(),
	}
}

// AddExecutor registers ex under its own ID. Returns the builder for
// chaining. A duplicate ID is recorded as a deferred error surfaced by
// Build.
func (b *WorkflowBuilder) AddExecutor(ex Executor) *WorkflowBuilder {
	if b.err != nil {
		return b
	}
	if _, exists := b.executors[ex.ID()]; exists {
		b.err = &ValidationError{Field: ex.ID(), Cause: ErrDuplicateExecutor}
		return b
	}
	b.executors[ex.ID()] = ex
	return b
}

// AddEdge adds an unconditional edge from fromID to toID.
func (b *WorkflowBuilder) AddEdge(fromID, toID string) *WorkflowBuilder {
	b.edges = append(b.edges, Edge{From: fromID, To: toID, Kind: EdgeDirect})
	return b
}

// AddConditionalEdge adds an edge from fromID to toID that only forwards a
// message when predicate(payload) is true.
func (b *WorkflowBuilder) AddConditionalEdge(fromID, toID string, predicate Predicate) *WorkflowBuilder {
	b.edges = append(b.edges, Edge{From: fromID, To: toID, Kind: EdgeConditional, Predicate: predicate})
	return b
}

// AddSwitchCase adds one case of a switch statement rooted at fromID: all
// edges sharing the same group forward only the first matching case, in
// the order they were added to the builder.
func (b *WorkflowBuilder) AddSwitchCase(fromID, toID, group string, predicate Predicate) *WorkflowBuilder {
	b.edges = append(b.edges, Edge{From: fromID, To: toID, Kind: EdgeSwitchCase, Predicate: predicate, Group: group})
	return b
}

// AddFanOut adds an edge from fromID to toID that always fires alongside
// every other fan-out edge from the same source in the same superstep.
func (b *WorkflowBuilder) AddFanOut(fromID, toID string) *WorkflowBuilder {
	b.edges = append(b.edges, Edge{From: fromID, To: toID, Kind: EdgeFanOut})
	return b
}

// AddMultiSelection adds a group of edges from fromID to each ID in
// targetIDs, sharing group and selector. Unlike AddSwitchCase, selector is
// evaluated once per message against the whole target set and may pick any
// number of targets — zero, one, or all of them — rather than stopping at
// the first match.
func (b *WorkflowBuilder) AddMultiSelection(fromID, group string, targetIDs []string, selector Selector) *WorkflowBuilder {
	for _, toID := range targetIDs {
		b.edges = append(b.edges, Edge{From: fromID, To: toID, Kind: EdgeMultiSelect, Selector: selector, Group: group})
	}
	return b
}

// SetStartExecutor designates the executor that receives the run's initial
// input message.
func (b *WorkflowBuilder) SetStartExecutor(id string) *WorkflowBuilder {
	b.startID = id
	return b
}

// WithOption appends a workflow-wide Option applied when Build runs.
func (b *WorkflowBuilder) WithOption(opt Option) *WorkflowBuilder {
	b.options = append(b.options, opt)
	return b
}

// RegisterType records a message payload type with the workflow's
// TypeRegistry so it survives a checkpoint round-trip. Every payload type
// exchanged between executors must be registered before the workflow is
// checkpointed.
func (b *WorkflowBuilder) RegisterType(example any) *WorkflowBuilder {
	b.typeRegistry.Register(example)
	return b
}

// Build validates the graph and returns an immutable Workflow.
func (b *WorkflowBuilder) Build() (*Workflow, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.startID == "" {
		return nil, &ValidationError{Field: "start executor", Cause: ErrNoStartExecutor}
	}
	if _, ok := b.executors[b.startID]; !ok {
		return nil, &ValidationError{Field: "start executor " + b.startID, Cause: ErrExecutorNotFound}
	}
	for _, e := range b.edges {
		if _, ok := b.executors[e.From]; !ok {
			return nil, &ValidationError{Field: "edge from " + e.From, Cause: ErrExecutorNotFound}
		}
		if _, ok := b.executors[e.To]; !ok {
			return nil, &ValidationError{Field: "edge to " + e.To, Cause: ErrExecutorNotFound}
		}
	}

	cfg := defaultEngineConfig()
	for _, opt := range b.options {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.costTracker != nil {
		for _, ex := range b.executors {
			if agent, ok := ex.(*AgentExecutor); ok && agent.costTracker == nil {
				agent.costTracker = cfg.costTracker
			}
		}
	}

	edgesByFrom := make(map[string][]Edge)
	for _, e := range b.edges {
		edgesByFrom[e.From] = append(edgesByFrom[e.From], e)
	}

	router := newStreamRouter(cfg.emitter)
	cfg.emitter = router

	return &Workflow{
		executors:    b.executors,
		edgesByFrom:  edgesByFrom,
		startID:      b.startID,
		cfg:          cfg,
		typeRegistry: b.typeRegistry,
		codec:        NewCodec(b.typeRegistry),
		hash:         computeWorkflowHash(b.executors, b.edges),
		router:       router,
	}, nil
}

// computeWorkflowHash derives a stable structural identity for a graph: a
// SHA-256 digest over its sorted executor IDs and (from, to, kind, group)
// edge tuples. Two builders that register the same executors and edges,
// regardless of call order, produce the same hash. Used to reject resuming
// a checkpoint against a workflow whose shape has since changed.
func computeWorkflowHash(executors map[string]Executor, edges []Edge) string {
	ids := make([]string, 0, len(executors))
	for id := range executors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	type edgeTuple struct {
		from, to, group string
		kind            EdgeKind
	}
	tuples := make([]edgeTuple, 0, len(edges))
	for _, e := range edges {
		tuples = append(tuples, edgeTuple{from: e.From, to: e.To, group: e.Group, kind: e.Kind})
	}
	sort.Slice(tuples, func(i, j int) bool {
		if tuples[i].from != tuples[j].from {
			return tuples[i].from < tuples[j].from
		}
		if tuples[i].to != tuples[j].to {
			return tuples[i].to < tuples[j].to
		}
		if tuples[i].kind != tuples[j].kind {
			return tuples[i].kind < tuples[j].kind
		}
		return tuples[i].group < tuples[j].group
	})

	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	for _, t := range tuples {
		h.Write([]byte(t.from))
		h.Write([]byte(t.to))
		h.Write([]byte(t.group))
		h.Write([]byte(strconv.Itoa(int(t.kind))))
		h.Write([]byte{0})
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}
