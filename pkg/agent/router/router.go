// Package router holds the pure state-machine decision logic. It performs no
// I/O: the orchestrator feeds it the current stage and a classified
// StageOutcome, and it answers with the transition to apply.
package router

import (
	"workflow-agent-be/pkg/agent"
	"workflow-agent-be/pkg/store"
)

// Transition is the result of one routing decision.
type Transition struct {
	// Next is the stage the session moves to.
	Next store.Stage

	// Reply is the externally visible assistant text for terminal
	// transitions. Internal transitions (tool execution) leave it empty.
	Reply string

	// Complete reports whether the conversation produced its final artifact.
	Complete bool

	// RunGeneration asks the orchestrator to invoke the Generation stage
	// immediately within the same request (requirements hand-off).
	RunGeneration bool

	// RunToolLoop asks the orchestrator to enter the bounded tool-call loop
	// before anything becomes visible to the caller.
	RunToolLoop bool

	// FailureReason carries the internal reason code for FAILED transitions.
	FailureReason string
}

// Route maps (stage, outcome) to the next transition. The decision table is
// closed: any pairing outside it is itself a failure, never a guess.
func Route(stage store.Stage, outcome agent.StageOutcome) Transition {
	if outcome.Kind == agent.OutcomeFailed {
		return Transition{
			Next:          store.StageFailed,
			Reply:         failureReply(outcome.Reason),
			FailureReason: outcome.Reason,
		}
	}

	switch stage {
	case store.StageRequirements:
		switch outcome.Kind {
		case agent.OutcomeNeedsClarification:
			return Transition{
				Next:  store.StageRequirements,
				Reply: outcome.Question,
			}
		case agent.OutcomeProducedRequirements:
			// Hand-off: Generation runs inside the same request.
			return Transition{
				Next:          store.StageGeneration,
				RunGeneration: true,
			}
		}

	case store.StageGeneration:
		switch outcome.Kind {
		case agent.OutcomeNeedsTools:
			return Transition{
				Next:        store.StageToolExecution,
				RunToolLoop: true,
			}
		case agent.OutcomeProducedArtifact:
			return Transition{
				Next:     store.StageComplete,
				Reply:    string(outcome.Artifact),
				Complete: true,
			}
		}
	}

	return Transition{
		Next:          store.StageFailed,
		Reply:         failureReply(agent.ReasonUnexpectedOutcome),
		FailureReason: agent.ReasonUnexpectedOutcome,
	}
}

// ResumeStage decides where a new user message restarts an idle session.
// COMPLETE sessions re-enter Generation with their requirements preserved so
// the user can refine the artifact; FAILED sessions start a fresh
// Requirements round carrying the full message log for context.
func ResumeStage(current store.Stage) store.Stage {
	switch current {
	case store.StageComplete:
		return store.StageGeneration
	case store.StageFailed:
		return store.StageRequirements
	default:
		return current
	}
}

func failureReply(reason string) string {
	switch reason {
	case agent.ReasonToolBudgetExceeded:
		return "I had to stop: the workflow generator exceeded its reference-lookup budget. Please try again, ideally with a narrower request."
	case agent.ReasonUnparseableOutput:
		return "I could not produce a valid result for this turn. Please rephrase or send your request again."
	default:
		return "Something went wrong while processing this turn. The session is still usable, please try again."
	}
}
