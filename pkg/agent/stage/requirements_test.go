package stage

import (
	"context"
	"testing"

	"workflow-agent-be/pkg/agent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRequirementsPrompt = "You analyze requirements. Force complete at exchange %d."

func TestRequirementsQuestions(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"QUESTIONS: What should trigger the workflow?"}}
	adapter := NewRequirementsAdapter(provider, testRequirementsPrompt, 4, fastConfig())

	outcome := adapter.Invoke(context.Background(), sessionWithUserMessages("automate something"))

	assert.Equal(t, agent.OutcomeNeedsClarification, outcome.Kind)
	assert.Equal(t, "What should trigger the workflow?", outcome.Question)
}

func TestRequirementsCompleteJSON(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`COMPLETE: {"workflow_purpose": "post RSS summaries to Slack", "trigger_type": "schedule", "required_nodes": ["Schedule Trigger", "RSS Read", "Slack"], "data_flow": ["RSS -> Summarize -> Slack"]}`,
	}}
	adapter := NewRequirementsAdapter(provider, testRequirementsPrompt, 4, fastConfig())

	outcome := adapter.Invoke(context.Background(), sessionWithUserMessages("post my RSS feed to Slack daily"))

	require.Equal(t, agent.OutcomeProducedRequirements, outcome.Kind)
	assert.Equal(t, "post RSS summaries to Slack", outcome.Requirements.WorkflowPurpose)
	assert.Equal(t, "schedule", outcome.Requirements.TriggerType)
	assert.Equal(t, "post my RSS feed to Slack daily", outcome.Requirements.UserQuery)
	assert.True(t, outcome.Requirements.IsComplete)
}

func TestRequirementsCompletePlainTextGetsDefaults(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"COMPLETE: sync new CRM leads into a spreadsheet"}}
	adapter := NewRequirementsAdapter(provider, testRequirementsPrompt, 4, fastConfig())

	outcome := adapter.Invoke(context.Background(), sessionWithUserMessages("sync CRM leads"))

	require.Equal(t, agent.OutcomeProducedRequirements, outcome.Kind)
	assert.Equal(t, "sync new CRM leads into a spreadsheet", outcome.Requirements.WorkflowPurpose)
	assert.NotEmpty(t, outcome.Requirements.TriggerType)
	assert.NotEmpty(t, outcome.Requirements.RequiredNodes)
	assert.NotEmpty(t, outcome.Requirements.DataFlow)
}

func TestRequirementsCompleteWithOpenQuestionsDowngraded(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`COMPLETE: {"workflow_purpose": "something", "clarifying_questions": ["Which CRM do you use?"]}`,
	}}
	adapter := NewRequirementsAdapter(provider, testRequirementsPrompt, 4, fastConfig())

	outcome := adapter.Invoke(context.Background(), sessionWithUserMessages("sync leads"))

	assert.Equal(t, agent.OutcomeNeedsClarification, outcome.Kind)
	assert.Contains(t, outcome.Question, "Which CRM")
}

func TestRequirementsCaseInsensitivePrefix(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"questions: which channel?"}}
	adapter := NewRequirementsAdapter(provider, testRequirementsPrompt, 4, fastConfig())

	outcome := adapter.Invoke(context.Background(), sessionWithUserMessages("notify slack"))

	assert.Equal(t, agent.OutcomeNeedsClarification, outcome.Kind)
}

func TestRequirementsForcedCompletionAtExchangeCap(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"QUESTIONS: still not sure, tell me more?"}}
	adapter := NewRequirementsAdapter(provider, testRequirementsPrompt, 4, fastConfig())

	sess := sessionWithUserMessages("one", "two", "three", "four")
	outcome := adapter.Invoke(context.Background(), sess)

	require.Equal(t, agent.OutcomeProducedRequirements, outcome.Kind)
	assert.True(t, outcome.Requirements.IsComplete)
	assert.Equal(t, "four", outcome.Requirements.UserQuery)
}

func TestRequirementsMalformedOutputRetriesThenFails(t *testing.T) {
	// Three attempts, all unrecognizable: the turn fails with the parse
	// reason, not the transport reason.
	provider := &scriptedProvider{responses: []string{"I think you should use n8n for this."}}
	adapter := NewRequirementsAdapter(provider, testRequirementsPrompt, 4, fastConfig())

	outcome := adapter.Invoke(context.Background(), sessionWithUserMessages("automate"))

	assert.Equal(t, agent.OutcomeFailed, outcome.Kind)
	assert.Equal(t, agent.ReasonUnparseableOutput, outcome.Reason)
	assert.Equal(t, 3, provider.calls)
}

func TestRequirementsTransientFailureThenSuccess(t *testing.T) {
	provider := &scriptedProvider{
		responses: []string{"", "QUESTIONS: what schedule?"},
		errs:      []error{errDown, nil},
	}
	adapter := NewRequirementsAdapter(provider, testRequirementsPrompt, 4, fastConfig())

	outcome := adapter.Invoke(context.Background(), sessionWithUserMessages("automate"))

	assert.Equal(t, agent.OutcomeNeedsClarification, outcome.Kind)
	assert.Equal(t, 2, provider.calls)
}

func TestRequirementsProviderDownFails(t *testing.T) {
	provider := &scriptedProvider{
		responses: []string{"", "", ""},
		errs:      []error{errDown, errDown, errDown},
	}
	adapter := NewRequirementsAdapter(provider, testRequirementsPrompt, 4, fastConfig())

	outcome := adapter.Invoke(context.Background(), sessionWithUserMessages("automate"))

	assert.Equal(t, agent.OutcomeFailed, outcome.Kind)
	assert.Equal(t, agent.ReasonStageUnavailable, outcome.Reason)
}
