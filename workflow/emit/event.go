// Package emit provides event emission and observability for workflow runs.
package emit

// Event is one observable occurrence during a run: an executor starting or
// finishing, a routing decision, an error, or a request/response
// suspension. Meta carries event-specific structured detail (e.g. the
// serialized delta an executor produced).
type Event struct {
	RunID      string
	Step       int
	ExecutorID string
	Msg        string
	Meta       map[string]interface{}
}
