package workflow

import (
	"errors"
	"time"

	"github.com/agentflow-go/agentflow/workflow/emit"
)

// Option configures a Workflow at build time. Options are applied in the
// order passed to Build and may return an error to reject an invalid value.
type Option func(*engineConfig) error

type engineConfig struct {
	maxSteps              int
	maxConcurrentExecutors int
	queueDepth            int
	backpressureTimeout   time.Duration
	defaultTimeout        time.Duration
	runWallClockBudget    time.Duration
	replayMode            bool
	strictReplay          bool
	emitter               emit.Emitter
	metrics               *Metrics
	costTracker           *CostTracker
	suspendTTL            time.Duration
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		maxSteps:               10000,
		maxConcurrentExecutors: 8,
		queueDepth:             256,
		backpressureTimeout:    30 * time.Second,
		defaultTimeout:         0,
		runWallClockBudget:     0,
		emitter:                emit.NewNullEmitter(),
		suspendTTL:             30 * time.Minute,
	}
}

// WithMaxSteps bounds the number of supersteps a single run may perform.
// Default: 10000. Exceeding this returns ErrMaxStepsExceeded; it exists to
// turn runaway loops (a cycle with no convergence) into a bounded failure
// rather than an unbounded one.
func WithMaxSteps(n int) Option {
	return func(c *engineConfig) error {
		if n <= 0 {
			return errors.New("workflow: max steps must be positive")
		}
		c.maxSteps = n
		return nil
	}
}

// WithMaxConcurrentExecutors bounds how many executors may run at once
// within a single superstep. Default: 8. Raise it for I/O-bound executors
// (LLM calls, HTTP tools); keep it low when executors share CPU-bound
// resources.
func WithMaxConcurrentExecutors(n int) Option {
	return func(c *engineConfig) error {
		if n <= 0 {
			return errors.New("workflow: max concurrent executors must be positive")
		}
		c.maxConcurrentExecutors = n
		return nil
	}
}

// WithQueueDepth sets the frontier's bounded channel capacity. Default:
// 256. A full queue blocks Enqueue until room frees up or the run's
// context ends.
func WithQueueDepth(n int) Option {
	return func(c *engineConfig) error {
		if n <= 0 {
			return errors.New("workflow: queue depth must be positive")
		}
		c.queueDepth = n
		return nil
	}
}

// WithBackpressureTimeout stores a bound on how long Enqueue may wait for
// queue room. Default: 30s. The scheduler does not read this value:
// Frontier.Enqueue waits until room frees up or its context ends, and
// ErrBackpressure is never returned.
func WithBackpressureTimeout(d time.Duration) Option {
	return func(c *engineConfig) error {
		c.backpressureTimeout = d
		return nil
	}
}

// WithDefaultExecutorTimeout sets the per-invocation timeout applied to
// executors that do not declare their own NodePolicy.Timeout. Default: no
// timeout (0, meaning the parent run context's deadline is the only bound).
func WithDefaultExecutorTimeout(d time.Duration) Option {
	return func(c *engineConfig) error {
		c.defaultTimeout = d
		return nil
	}
}

// WithRunWallClockBudget bounds the whole run's wall-clock duration.
// Default: unbounded (0).
func WithRunWallClockBudget(d time.Duration) Option {
	return func(c *engineConfig) error {
		c.runWallClockBudget = d
		return nil
	}
}

// WithReplayMode enables lookup of recorded I/O instead of live executor
// invocation for any call an executor wraps in WorkflowContext.Recordable.
func WithReplayMode(enabled bool) Option {
	return func(c *engineConfig) error {
		c.replayMode = enabled
		return nil
	}
}

// WithStrictReplay verifies that a live Recordable call's hashed output
// matches a recording already present for the same executor and attempt
// (for example one restored from a checkpoint), surfacing ErrReplayMismatch
// on divergence. The check applies only to calls that run live: under
// WithReplayMode a recorded call is answered from the recording and is not
// compared.
func WithStrictReplay(enabled bool) Option {
	return func(c *engineConfig) error {
		c.strictReplay = enabled
		return nil
	}
}

// WithEmitter sets the event sink for the engine's events
// (executor_start, executor_end, routing_decision, error and the other
// events.go message kinds). Default: emit.NewNullEmitter(), which discards everything.
func WithEmitter(e emit.Emitter) Option {
	return func(c *engineConfig) error {
		if e == nil {
			return errors.New("workflow: emitter must not be nil")
		}
		c.emitter = e
		return nil
	}
}

// WithMetrics attaches a Prometheus-backed Metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(c *engineConfig) error {
		c.metrics = m
		return nil
	}
}

// WithCostTracker attaches a workflow-wide CostTracker. Build wires it into
// every AgentExecutor that wasn't given its own tracker via
// WithAgentCostTracker, so a workflow can get aggregate cost reporting
// without instrumenting each agent individually; an executor configured
// with its own tracker keeps it.
func WithCostTracker(ct *CostTracker) Option {
	return func(c *engineConfig) error {
		c.costTracker = ct
		return nil
	}
}

// WithSuspendTTL bounds how long a pending request/response suspension is
// kept before it is auto-released. Default: 30 minutes.
func WithSuspendTTL(d time.Duration) Option {
	return func(c *engineConfig) error {
		if d <= 0 {
			return errors.New("workflow: suspend TTL must be positive")
		}
		c.suspendTTL = d
		return nil
	}
}
