// Package agent defines the closed contract between the orchestration core
// and the two reasoning stages. Raw model output never crosses this boundary;
// the stage adapters classify it into exactly one StageOutcome variant.
package agent

import (
	"encoding/json"

	"workflow-agent-be/pkg/store"
)

// OutcomeKind enumerates the StageOutcome variants.
type OutcomeKind string

const (
	OutcomeNeedsClarification   OutcomeKind = "NEEDS_CLARIFICATION"
	OutcomeNeedsTools           OutcomeKind = "NEEDS_TOOLS"
	OutcomeProducedRequirements OutcomeKind = "PRODUCED_REQUIREMENTS"
	OutcomeProducedArtifact     OutcomeKind = "PRODUCED_ARTIFACT"
	OutcomeFailed               OutcomeKind = "FAILED"
)

// Failure reason codes surfaced with OutcomeFailed.
const (
	ReasonUnparseableOutput  = "unparseable_output"
	ReasonStageUnavailable   = "stage_unavailable"
	ReasonToolBudgetExceeded = "tool_call_budget_exceeded"
	ReasonUnexpectedOutcome  = "unexpected_outcome"
)

// StageOutcome is the tagged variant a stage adapter returns. Exactly one
// payload field is populated, matching Kind.
type StageOutcome struct {
	Kind OutcomeKind

	// OutcomeNeedsClarification
	Question string

	// OutcomeNeedsTools
	ToolRequests []store.ToolCallRequest

	// OutcomeProducedRequirements
	Requirements *store.Requirements

	// OutcomeProducedArtifact
	Artifact json.RawMessage

	// OutcomeFailed
	Reason  string
	Message string
}

func NeedsClarification(question string) StageOutcome {
	return StageOutcome{Kind: OutcomeNeedsClarification, Question: question}
}

func NeedsTools(requests []store.ToolCallRequest) StageOutcome {
	return StageOutcome{Kind: OutcomeNeedsTools, ToolRequests: requests}
}

func ProducedRequirements(r *store.Requirements) StageOutcome {
	return StageOutcome{Kind: OutcomeProducedRequirements, Requirements: r}
}

func ProducedArtifact(artifact json.RawMessage) StageOutcome {
	return StageOutcome{Kind: OutcomeProducedArtifact, Artifact: artifact}
}

func Failed(reason, message string) StageOutcome {
	return StageOutcome{Kind: OutcomeFailed, Reason: reason, Message: message}
}
