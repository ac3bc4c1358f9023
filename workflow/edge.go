package workflow

// EdgeKind selects how an edge decides whether, and to what fan-out, a
// message crossing it should be delivered.
type EdgeKind int

const (
	// EdgeDirect always forwards the message unconditionally.
	EdgeDirect EdgeKind = iota

	// EdgeConditional forwards only when Predicate(payload) returns true.
	EdgeConditional

	// EdgeFanOut forwards the same message to every edge in the group
	// tagged with this kind from a given source concurrently in the same
	// superstep.
	EdgeFanOut

	// EdgeSwitchCase forwards when Predicate matches and suppresses the
	// remaining edges in the same switch group (first match wins, in
	// edge-registration order).
	EdgeSwitchCase

	// EdgeMultiSelect forwards to whichever subset of its group's targets
	// Selector picks for the message, independent of how many targets that
	// turns out to be — zero, one, or all of them. Unlike EdgeSwitchCase,
	// more than one target in the group can fire for the same message.
	EdgeMultiSelect
)

// Predicate decides whether a message should cross an edge. It receives the
// envelope's payload, not the envelope itself, so handlers stay decoupled
// from routing metadata.
type Predicate func(payload any) bool

// Selector picks the subset of a multi-selection group's target IDs that
// should receive payload. It is evaluated once per group per message, not
// once per edge, since the decision is over the whole target set at once
// (e.g. "route to whichever regions this order ships to").
type Selector func(payload any, targetIDs []string) []string

// Edge connects two executors. From/To are executor IDs. Group ties together
// edges that form a single switch statement (only meaningful when Kind is
// EdgeSwitchCase) or a single multi-selection group (when Kind is
// EdgeMultiSelect) so the scheduler can apply that kind's group-wide
// semantics across exactly that set.
type Edge struct {
	From      string
	To        string
	Kind      EdgeKind
	Predicate Predicate
	Selector  Selector
	Group     string
}

// Matches reports whether payload should cross this edge. EdgeMultiSelect
// is excluded: its group is resolved once per group by the router, not
// per-edge, since Selector needs the full target set to decide.
func (e Edge) Matches(payload any) bool {
	switch e.Kind {
	case EdgeDirect, EdgeFanOut:
		return true
	case EdgeConditional, EdgeSwitchCase:
		if e.Predicate == nil {
			return true
		}
		return e.Predicate(payload)
	default:
		return false
	}
}
