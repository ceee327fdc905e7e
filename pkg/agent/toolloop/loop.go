// Package toolloop resolves a Generation turn's reference lookups without
// unbounded recursion: execute the requested retrievals, fold results into
// the session, re-invoke the stage, and stop hard at the tool budget.
package toolloop

import (
	"context"
	"log"

	"workflow-agent-be/pkg/agent"
	"workflow-agent-be/pkg/agent/stage"
	"workflow-agent-be/pkg/store"
)

// DefaultMaxToolCalls bounds retrieval calls within one Generation turn.
const DefaultMaxToolCalls = 8

// Retriever is the retrieval backend as the loop sees it.
type Retriever interface {
	Search(ctx context.Context, req store.ToolCallRequest) ([]store.Snippet, error)
}

type Loop struct {
	retriever    Retriever
	generation   stage.Adapter
	maxToolCalls int
	logger       *log.Logger
}

func New(retriever Retriever, generation stage.Adapter, maxToolCalls int, logger *log.Logger) *Loop {
	if maxToolCalls <= 0 {
		maxToolCalls = DefaultMaxToolCalls
	}
	return &Loop{
		retriever:    retriever,
		generation:   generation,
		maxToolCalls: maxToolCalls,
		logger:       logger,
	}
}

// Run drives the loop until the Generation stage returns something other
// than NeedsTools. The session is the turn-owned working copy; the caller
// persists it after the turn settles. Every round mutates tool state before
// re-invoking the stage, so the budget invariant holds at each step.
func (l *Loop) Run(ctx context.Context, sess *store.Session, outcome agent.StageOutcome) agent.StageOutcome {
	for outcome.Kind == agent.OutcomeNeedsTools {
		requests := outcome.ToolRequests

		if sess.ToolCallCount+len(requests) > l.maxToolCalls {
			l.logger.Printf("[TOOLLOOP] budget exceeded: %d used, %d requested, max %d",
				sess.ToolCallCount, len(requests), l.maxToolCalls)
			return agent.Failed(agent.ReasonToolBudgetExceeded, "tool call budget exceeded for this turn")
		}

		if sess.ToolOutputs == nil {
			sess.ToolOutputs = make(map[string]store.ToolResult, len(requests))
		}
		sess.PendingToolCalls = requests

		for _, req := range requests {
			if err := ctx.Err(); err != nil {
				return agent.Failed(agent.ReasonStageUnavailable, "request cancelled during tool execution")
			}
			sess.ToolOutputs[req.ID] = l.execute(ctx, req)
			sess.ToolCallCount++
		}
		sess.PendingToolCalls = nil

		outcome = l.generation.Invoke(ctx, sess)
	}
	return outcome
}

// execute runs one retrieval call with a single retry. A call that fails
// both attempts is recorded as an error placeholder instead of aborting the
// batch, so the stage can reason about partial retrieval failure.
func (l *Loop) execute(ctx context.Context, req store.ToolCallRequest) store.ToolResult {
	snippets, err := l.retriever.Search(ctx, req)
	if err != nil {
		l.logger.Printf("[TOOLLOOP] %s failed, retrying once: %v", req.Tool, err)
		snippets, err = l.retriever.Search(ctx, req)
	}
	if err != nil {
		l.logger.Printf("[TOOLLOOP] %s failed after retry: %v", req.Tool, err)
		return store.ToolResult{
			RequestID: req.ID,
			Tool:      req.Tool,
			Query:     req.Query,
			Failed:    true,
			Error:     err.Error(),
		}
	}
	l.logger.Printf("[TOOLLOOP] %s returned %d snippets for %q", req.Tool, len(snippets), req.Query)
	return store.ToolResult{
		RequestID: req.ID,
		Tool:      req.Tool,
		Query:     req.Query,
		Snippets:  snippets,
	}
}
