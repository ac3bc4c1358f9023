// Package workflow implements a deterministic, checkpointable runtime for
// typed message passing between executors.
//
// A Workflow is a directed graph of Executors connected by Edges. Execution
// proceeds in supersteps: every executor with a pending message is invoked
// concurrently, their outgoing messages are collected, routed across edges,
// and the next superstep begins once all of the current one's work has
// joined. The scheduler orders work deterministically so that two runs fed
// the same inputs visit executors in the same order and produce identical
// checkpoints.
package workflow
