package workflow

import (
	"sync"
	"time"
)

// ModelPricing is the USD cost per 1M input/output tokens for one model.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// defaultModelPricing is a static snapshot of major-provider pricing (as of
// 2025-01-01), used so AgentExecutor can attribute a dollar cost to every
// LLM call without the chat client needing to know about billing.
var defaultModelPricing = map[string]ModelPricing{
	"gpt-4o":             {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-2024-08-06":  {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":        {InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4-turbo":        {InputPer1M: 10.00, OutputPer1M: 30.00},
	"gpt-3.5-turbo":      {InputPer1M: 0.50, OutputPer1M: 1.50},
	"claude-3-5-sonnet-20241022": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-5-sonnet":  {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-opus":      {InputPer1M: 15.00, OutputPer1M: 75.00},
	"claude-3-sonnet":    {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-haiku":     {InputPer1M: 0.25, OutputPer1M: 1.25},
	"gemini-1.5-pro":     {InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini-1.5-flash":   {InputPer1M: 0.075, OutputPer1M: 0.30},
	"gemini-1.0-pro":     {InputPer1M: 0.50, OutputPer1M: 1.50},
}

// LLMCall is one recorded invocation of a chat model, with its computed
// cost.
type LLMCall struct {
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Timestamp    time.Time
	ExecutorID   string
}

// CostTracker accumulates LLM token usage and cost across a run. An
// AgentExecutor records into it (via WithAgentCostTracker, or the
// workflow-wide WithCostTracker fallback) after every chat model call.
// RunResult carries only token Usage; the cost totals are read from the
// tracker itself (TotalCost, TokenTotals).
type CostTracker struct {
	RunID      string
	Currency   string
	Pricing    map[string]ModelPricing
	CreatedAt  time.Time

	mu           sync.RWMutex
	calls        []LLMCall
	totalCost    float64
	modelCosts   map[string]float64
	inputTokens  int64
	outputTokens int64
}

// NewCostTracker returns a CostTracker seeded with defaultModelPricing.
func NewCostTracker(runID, currency string) *CostTracker {
	return &CostTracker{
		RunID:      runID,
		Currency:   currency,
		Pricing:    defaultModelPricing,
		CreatedAt:  time.Now(),
		modelCosts: make(map[string]float64),
	}
}

// RecordLLMCall appends an LLMCall and updates the running totals. A model
// absent from Pricing is recorded at zero cost rather than rejected, so an
// unrecognized or newly released model never blocks the call it describes.
func (ct *CostTracker) RecordLLMCall(model string, inputTokens, outputTokens int, executorID string) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	pricing := ct.Pricing[model]
	cost := (float64(inputTokens)/1_000_000.0)*pricing.InputPer1M +
		(float64(outputTokens)/1_000_000.0)*pricing.OutputPer1M

	ct.calls = append(ct.calls, LLMCall{
		Model: model, InputTokens: inputTokens, OutputTokens: outputTokens,
		CostUSD: cost, Timestamp: time.Now(), ExecutorID: executorID,
	})
	ct.totalCost += cost
	ct.modelCosts[model] += cost
	ct.inputTokens += int64(inputTokens)
	ct.outputTokens += int64(outputTokens)
}

// TotalCost returns the cumulative cost across every recorded call.
func (ct *CostTracker) TotalCost() float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.totalCost
}

// CostByModel returns a copy of the per-model cost breakdown.
func (ct *CostTracker) CostByModel() map[string]float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	out := make(map[string]float64, len(ct.modelCosts))
	for k, v := range ct.modelCosts {
		out[k] = v
	}
	return out
}

// TokenTotals returns the cumulative input and output token counts.
func (ct *CostTracker) TokenTotals() (input, output int64) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.inputTokens, ct.outputTokens
}

// Calls returns a copy of every recorded LLM call, in recording order.
func (ct *CostTracker) Calls() []LLMCall {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	out := make([]LLMCall, len(ct.calls))
	copy(out, ct.calls)
	return out
}
