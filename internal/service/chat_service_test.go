package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"testing"
	"time"

	"workflow-agent-be/internal/dto"
	"workflow-agent-be/internal/repository/memory"
	"workflow-agent-be/pkg/agent"
	"workflow-agent-be/pkg/agent/toolloop"
	"workflow-agent-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopLogger struct{}

func (noopLogger) Debug(string, string, map[string]interface{}) {}
func (noopLogger) Info(string, string, map[string]interface{})  {}
func (noopLogger) Warn(string, string, map[string]interface{})  {}
func (noopLogger) Error(string, string, map[string]interface{}) {}
func (noopLogger) Sync() error                                  { return nil }

// queuedAdapter pops one scripted outcome per Invoke.
type queuedAdapter struct {
	name     string
	outcomes []agent.StageOutcome
	calls    int
}

func (a *queuedAdapter) Name() string { return a.name }

func (a *queuedAdapter) Invoke(ctx context.Context, snapshot *store.Session) agent.StageOutcome {
	o := a.outcomes[a.calls]
	a.calls++
	return o
}

type stubRetriever struct {
	snippets []store.Snippet
	err      error
}

func (r *stubRetriever) Search(ctx context.Context, req store.ToolCallRequest) ([]store.Snippet, error) {
	return r.snippets, r.err
}

type capturingArchive struct {
	published []*dto.PublishArchiveWorkflowMessage
}

func (a *capturingArchive) PublishWorkflowArchive(ctx context.Context, msg *dto.PublishArchiveWorkflowMessage) error {
	a.published = append(a.published, msg)
	return nil
}

type fixture struct {
	repo         *memory.SessionRepository
	requirements *queuedAdapter
	generation   *queuedAdapter
	archive      *capturingArchive
	svc          IChatService
}

func newFixture(reqOutcomes, genOutcomes []agent.StageOutcome, retriever toolloop.Retriever) *fixture {
	repo := memory.NewSessionRepository(time.Hour, time.Hour)
	requirements := &queuedAdapter{name: "requirements", outcomes: reqOutcomes}
	generation := &queuedAdapter{name: "generation", outcomes: genOutcomes}
	if retriever == nil {
		retriever = &stubRetriever{}
	}
	archive := &capturingArchive{}

	svc := NewChatService(
		repo,
		requirements,
		generation,
		toolloop.New(retriever, generation, 8, log.Default()),
		nil, // event bus optional
		archive,
		noopLogger{},
	)
	return &fixture{repo: repo, requirements: requirements, generation: generation, archive: archive, svc: svc}
}

var testArtifact = json.RawMessage(`{"name":"wf","nodes":[]}`)

func TestStartAsksClarifyingQuestion(t *testing.T) {
	f := newFixture(
		[]agent.StageOutcome{agent.NeedsClarification("What should trigger it?")},
		nil, nil,
	)

	res, err := f.svc.Start(context.Background(), &dto.ChatStartRequest{Query: "automate something"})
	require.NoError(t, err)

	assert.Equal(t, "What should trigger it?", res.Message)
	assert.False(t, res.ConversationComplete)
	assert.Equal(t, "REQUIREMENTS", res.CurrentStage)
	assert.Equal(t, "requirements_analyst", res.CurrentAgent)
	assert.NotEmpty(t, res.SessionID)

	// The turn is persisted: history shows user turn plus assistant reply.
	hist, err := f.svc.History(context.Background(), res.SessionID)
	require.NoError(t, err)
	require.Len(t, hist.Messages, 2)
	assert.Equal(t, 2, hist.MessageCount)
	assert.Equal(t, store.RoleUser, hist.Messages[0].Role)
	assert.Equal(t, store.RoleRequirements, hist.Messages[1].Role)
}

func TestFullPipelineToCompletion(t *testing.T) {
	f := newFixture(
		[]agent.StageOutcome{
			agent.NeedsClarification("Which channel?"),
			agent.ProducedRequirements(&store.Requirements{WorkflowPurpose: "rss to slack", TriggerType: "schedule", IsComplete: true}),
		},
		[]agent.StageOutcome{agent.ProducedArtifact(testArtifact)},
		nil,
	)

	start, err := f.svc.Start(context.Background(), &dto.ChatStartRequest{Query: "post rss to slack"})
	require.NoError(t, err)

	res, err := f.svc.Continue(context.Background(), &dto.ChatContinueRequest{
		SessionID: start.SessionID,
		Message:   "the #news channel",
	})
	require.NoError(t, err)

	assert.True(t, res.ConversationComplete)
	assert.Equal(t, "COMPLETE", res.CurrentStage)
	assert.Equal(t, "workflow_generator", res.CurrentAgent)
	assert.JSONEq(t, string(testArtifact), string(res.FinalArtifact))
	assert.Empty(t, res.FailureReason)
	assert.True(t, res.Metadata.RequirementsComplete)
	assert.True(t, res.Metadata.WorkflowGenerated)

	// Completion enqueues the archive record.
	require.Len(t, f.archive.published, 1)
	assert.Equal(t, start.SessionID, f.archive.published[0].SessionID)
	assert.Equal(t, "rss to slack", f.archive.published[0].WorkflowPurpose)
}

func TestGenerationWithToolLoop(t *testing.T) {
	f := newFixture(
		[]agent.StageOutcome{
			agent.ProducedRequirements(&store.Requirements{WorkflowPurpose: "x", IsComplete: true}),
		},
		[]agent.StageOutcome{
			agent.NeedsTools([]store.ToolCallRequest{{ID: "r1", Tool: "workflows_search", Query: "q", MaxResults: 5}}),
			agent.ProducedArtifact(testArtifact),
		},
		&stubRetriever{snippets: []store.Snippet{{Title: "hit", Content: "body"}}},
	)

	res, err := f.svc.Start(context.Background(), &dto.ChatStartRequest{Query: "go"})
	require.NoError(t, err)

	assert.True(t, res.ConversationComplete)
	assert.Equal(t, 1, res.Metadata.ToolCallsUsed)
	assert.Equal(t, 2, f.generation.calls)

	// Tool state does not outlive the completed turn.
	stored, err := f.repo.Get(res.SessionID)
	require.NoError(t, err)
	assert.Empty(t, stored.ToolOutputs)
	assert.Zero(t, stored.ToolCallCount)
	assert.Nil(t, stored.PendingToolCalls)
}

func TestToolBudgetExhaustionFailsTurn(t *testing.T) {
	manyRequests := make([]store.ToolCallRequest, 9)
	for i := range manyRequests {
		manyRequests[i] = store.ToolCallRequest{ID: string(rune('a' + i)), Tool: "core_search", Query: "q", MaxResults: 5}
	}
	f := newFixture(
		[]agent.StageOutcome{
			agent.ProducedRequirements(&store.Requirements{WorkflowPurpose: "x", IsComplete: true}),
		},
		[]agent.StageOutcome{agent.NeedsTools(manyRequests)},
		nil,
	)

	res, err := f.svc.Start(context.Background(), &dto.ChatStartRequest{Query: "go"})
	require.NoError(t, err)

	assert.False(t, res.ConversationComplete)
	assert.Equal(t, "FAILED", res.CurrentStage)
	assert.Equal(t, agent.ReasonToolBudgetExceeded, res.FailureReason)
	assert.Nil(t, res.FinalArtifact)
}

func TestStageFailureSurfacesReasonAndSessionRecovers(t *testing.T) {
	f := newFixture(
		[]agent.StageOutcome{
			agent.Failed(agent.ReasonUnparseableOutput, "no recognizable prefix"),
			agent.NeedsClarification("Let's try again. What do you want to automate?"),
		},
		nil, nil,
	)

	res, err := f.svc.Start(context.Background(), &dto.ChatStartRequest{Query: "garbage in"})
	require.NoError(t, err)

	assert.Equal(t, "FAILED", res.CurrentStage)
	assert.Equal(t, agent.ReasonUnparseableOutput, res.FailureReason)
	assert.NotEmpty(t, res.Message)

	// A FAILED session resumes with a fresh Requirements round.
	res2, err := f.svc.Continue(context.Background(), &dto.ChatContinueRequest{
		SessionID: res.SessionID,
		Message:   "ok, sync leads to a sheet",
	})
	require.NoError(t, err)
	assert.Equal(t, "REQUIREMENTS", res2.CurrentStage)
	assert.Empty(t, res2.FailureReason)
}

func TestContinueAfterCompletionRefinesArtifact(t *testing.T) {
	f := newFixture(
		[]agent.StageOutcome{
			agent.ProducedRequirements(&store.Requirements{WorkflowPurpose: "x", IsComplete: true}),
		},
		[]agent.StageOutcome{
			agent.ProducedArtifact(testArtifact),
			agent.ProducedArtifact(json.RawMessage(`{"name":"wf-v2","nodes":[]}`)),
		},
		nil,
	)

	start, err := f.svc.Start(context.Background(), &dto.ChatStartRequest{Query: "go"})
	require.NoError(t, err)
	require.True(t, start.ConversationComplete)

	res, err := f.svc.Continue(context.Background(), &dto.ChatContinueRequest{
		SessionID: start.SessionID,
		Message:   "rename it to wf-v2",
	})
	require.NoError(t, err)

	assert.True(t, res.ConversationComplete)
	assert.JSONEq(t, `{"name":"wf-v2","nodes":[]}`, string(res.FinalArtifact))
	// Requirements stage is not consulted again for refinements.
	assert.Equal(t, 1, f.requirements.calls)
}

func TestContinueUnknownSession(t *testing.T) {
	f := newFixture(nil, nil, nil)

	_, err := f.svc.Continue(context.Background(), &dto.ChatContinueRequest{
		SessionID: "does-not-exist",
		Message:   "hello",
	})

	var notFound *dto.SessionNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestContinueBusySession(t *testing.T) {
	f := newFixture(nil, nil, nil)

	sess := &store.Session{ID: "busy-session", Stage: store.StageRequirements}
	sess.AppendMessage(store.RoleUser, "hi", time.Now())
	f.repo.Create(sess)

	require.True(t, f.repo.TryLock("busy-session"))
	defer f.repo.Unlock("busy-session")

	_, err := f.svc.Continue(context.Background(), &dto.ChatContinueRequest{
		SessionID: "busy-session",
		Message:   "second request",
	})

	var busy *dto.SessionBusyError
	assert.True(t, errors.As(err, &busy))
}

func TestInvokeRunsWholePipelineStateless(t *testing.T) {
	f := newFixture(
		[]agent.StageOutcome{
			agent.ProducedRequirements(&store.Requirements{WorkflowPurpose: "nightly contact sync", IsComplete: true}),
		},
		[]agent.StageOutcome{agent.ProducedArtifact(testArtifact)},
		nil,
	)

	res, err := f.svc.Invoke(context.Background(), &dto.InvokeRequest{Query: "sync contacts nightly"})
	require.NoError(t, err)

	assert.True(t, res.ConversationComplete)
	assert.JSONEq(t, string(testArtifact), string(res.FinalArtifact))

	// Nothing persisted for one-shot invocations.
	_, err = f.svc.History(context.Background(), res.SessionID)
	var notFound *dto.SessionNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestInvokeSurfacesClarificationAsFinalAnswer(t *testing.T) {
	f := newFixture(
		[]agent.StageOutcome{agent.NeedsClarification("which schedule?")},
		[]agent.StageOutcome{agent.ProducedArtifact(testArtifact)},
		nil,
	)

	res, err := f.svc.Invoke(context.Background(), &dto.InvokeRequest{Query: "automate something"})
	require.NoError(t, err)

	// The chain stops at the first question; generation never runs.
	assert.Equal(t, "which schedule?", res.Message)
	assert.False(t, res.ConversationComplete)
	assert.Equal(t, "REQUIREMENTS", res.CurrentStage)
	assert.Equal(t, "requirements_analyst", res.CurrentAgent)
	assert.Nil(t, res.FinalArtifact)
	assert.Equal(t, 0, f.generation.calls)

	_, err = f.svc.History(context.Background(), res.SessionID)
	var notFound *dto.SessionNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

// cancellingAdapter aborts the request context mid-turn, as a client
// disconnect would.
type cancellingAdapter struct {
	cancel context.CancelFunc
}

func (a *cancellingAdapter) Name() string { return "requirements" }

func (a *cancellingAdapter) Invoke(ctx context.Context, snapshot *store.Session) agent.StageOutcome {
	a.cancel()
	return agent.Failed(agent.ReasonStageUnavailable, "request cancelled")
}

func TestCancelledTurnIsDiscarded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := memory.NewSessionRepository(time.Hour, time.Hour)
	requirements := &cancellingAdapter{cancel: cancel}
	generation := &queuedAdapter{name: "generation"}
	svc := NewChatService(
		repo,
		requirements,
		generation,
		toolloop.New(&stubRetriever{}, generation, 8, log.Default()),
		nil,
		&capturingArchive{},
		noopLogger{},
	)

	sess := &store.Session{ID: "abandoned", Stage: store.StageRequirements}
	sess.AppendMessage(store.RoleUser, "hi", time.Now())
	repo.Create(sess)

	_, err := svc.Continue(ctx, &dto.ChatContinueRequest{
		SessionID: "abandoned",
		Message:   "second message",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// The stored session kept its pre-turn state: no stage change, no new
	// messages, version untouched.
	stored, err := repo.Get("abandoned")
	require.NoError(t, err)
	assert.Equal(t, store.StageRequirements, stored.Stage)
	assert.Len(t, stored.Messages, 1)
	assert.EqualValues(t, 0, stored.Version)
	assert.Empty(t, stored.FailureReason)
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(
		[]agent.StageOutcome{agent.NeedsClarification("?")},
		nil, nil,
	)

	start, err := f.svc.Start(context.Background(), &dto.ChatStartRequest{Query: "x"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), start.SessionID))

	var notFound *dto.SessionNotFoundError
	_, err = f.svc.History(context.Background(), start.SessionID)
	assert.True(t, errors.As(err, &notFound))
	assert.True(t, errors.As(f.svc.Delete(context.Background(), start.SessionID), &notFound))
}
