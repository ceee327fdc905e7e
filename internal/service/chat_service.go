// FILE: internal/service/chat_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"workflow-agent-be/internal/constant"
	"workflow-agent-be/internal/dto"
	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/internal/repository/memory"
	"workflow-agent-be/pkg/agent"
	"workflow-agent-be/pkg/agent/router"
	"workflow-agent-be/pkg/agent/stage"
	"workflow-agent-be/pkg/agent/toolloop"
	"workflow-agent-be/pkg/events"
	pktNats "workflow-agent-be/pkg/nats"
	"workflow-agent-be/pkg/store"

	"github.com/google/uuid"
)

type IChatService interface {
	Start(ctx context.Context, req *dto.ChatStartRequest) (*dto.ChatResponse, error)
	Continue(ctx context.Context, req *dto.ChatContinueRequest) (*dto.ChatResponse, error)
	Invoke(ctx context.Context, req *dto.InvokeRequest) (*dto.ChatResponse, error)
	History(ctx context.Context, sessionID string) (*dto.ChatHistoryResponse, error)
	Delete(ctx context.Context, sessionID string) error
}

type chatService struct {
	sessions     *memory.SessionRepository
	requirements stage.Adapter
	generation   stage.Adapter
	tools        *toolloop.Loop
	publisher    *pktNats.Publisher
	archive      IPublisherService
	logger       logger.ILogger
}

func NewChatService(
	sessions *memory.SessionRepository,
	requirements stage.Adapter,
	generation stage.Adapter,
	tools *toolloop.Loop,
	publisher *pktNats.Publisher,
	archive IPublisherService,
	log logger.ILogger,
) IChatService {
	return &chatService{
		sessions:     sessions,
		requirements: requirements,
		generation:   generation,
		tools:        tools,
		publisher:    publisher,
		archive:      archive,
		logger:       log,
	}
}

func (s *chatService) Start(ctx context.Context, req *dto.ChatStartRequest) (*dto.ChatResponse, error) {
	now := time.Now()
	sess := &store.Session{
		ID:           uuid.New().String(),
		Stage:        store.StageRequirements,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	sess.AppendMessage(store.RoleUser, req.Query, now)
	s.sessions.Create(sess)

	if !s.sessions.TryLock(sess.ID) {
		return nil, &dto.SessionBusyError{SessionID: sess.ID}
	}
	defer s.sessions.Unlock(sess.ID)

	s.publishEvent(ctx, events.NewChatSessionStarted(sess.ID, req.Query))
	s.logger.Info("ChatService", "Session started", map[string]interface{}{"session_id": sess.ID})

	return s.runTurn(ctx, sess)
}

func (s *chatService) Continue(ctx context.Context, req *dto.ChatContinueRequest) (*dto.ChatResponse, error) {
	if !s.sessions.TryLock(req.SessionID) {
		return nil, &dto.SessionBusyError{SessionID: req.SessionID}
	}
	defer s.sessions.Unlock(req.SessionID)

	sess, err := s.sessions.Get(req.SessionID)
	if err != nil {
		return nil, &dto.SessionNotFoundError{SessionID: req.SessionID}
	}

	resumed := router.ResumeStage(sess.Stage)
	if resumed != sess.Stage {
		s.publishEvent(ctx, events.NewChatStageChanged(sess.ID, string(sess.Stage), string(resumed)))
	}
	switch sess.Stage {
	case store.StageComplete:
		// Refinement round: requirements survive, the artifact and tool
		// budget start over.
		sess.FinalArtifact = nil
		sess.ResetGenerationTurn()
	case store.StageFailed:
		sess.FailureReason = ""
		sess.Requirements = nil
		sess.ResetGenerationTurn()
	}
	sess.Stage = resumed

	sess.AppendMessage(store.RoleUser, req.Message, time.Now())
	return s.runTurn(ctx, sess)
}

// Invoke runs the pipeline once for one query without a stored session. The
// chain only advances while outcomes keep producing; if the analyst asks a
// question, that question is the final single-shot answer.
func (s *chatService) Invoke(ctx context.Context, req *dto.InvokeRequest) (*dto.ChatResponse, error) {
	now := time.Now()
	sess := &store.Session{
		ID:           uuid.New().String(),
		Stage:        store.StageRequirements,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	sess.AppendMessage(store.RoleUser, req.Query, now)

	outcome := s.requirements.Invoke(ctx, sess)
	if outcome.Kind == agent.OutcomeNeedsClarification {
		return &dto.ChatResponse{
			SessionID:    sess.ID,
			Message:      outcome.Question,
			CurrentStage: string(store.StageRequirements),
			CurrentAgent: constant.AgentRequirements,
			Metadata: dto.ChatMetadata{
				Exchanges: sess.UserMessageCount(),
			},
		}, nil
	}

	return s.settleTurn(ctx, sess, store.StageRequirements, outcome, false)
}

func (s *chatService) History(ctx context.Context, sessionID string) (*dto.ChatHistoryResponse, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, &dto.SessionNotFoundError{SessionID: sessionID}
	}

	messages := make([]dto.ChatMessageResponse, len(sess.Messages))
	for i, m := range sess.Messages {
		messages[i] = dto.ChatMessageResponse{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		}
	}
	return &dto.ChatHistoryResponse{
		SessionID:    sess.ID,
		CurrentStage: string(sess.Stage),
		MessageCount: len(messages),
		Messages:     messages,
	}, nil
}

func (s *chatService) Delete(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(sessionID); err != nil {
		return &dto.SessionNotFoundError{SessionID: sessionID}
	}
	s.logger.Info("ChatService", "Session deleted", map[string]interface{}{"session_id": sessionID})
	return nil
}

// runTurn drives one persisted conversation turn from the session's current
// stage to a terminal transition. The caller holds the busy lock.
func (s *chatService) runTurn(ctx context.Context, sess *store.Session) (*dto.ChatResponse, error) {
	entryStage := sess.Stage

	var outcome agent.StageOutcome
	switch sess.Stage {
	case store.StageRequirements:
		outcome = s.requirements.Invoke(ctx, sess)
	case store.StageGeneration, store.StageToolExecution:
		// A session left in TOOL_EXECUTION by a crashed turn resumes as a
		// fresh Generation attempt.
		sess.Stage = store.StageGeneration
		entryStage = store.StageGeneration
		outcome = s.generation.Invoke(ctx, sess)
	default:
		return nil, fmt.Errorf("session %s in unroutable stage %s", sess.ID, sess.Stage)
	}

	return s.settleTurn(ctx, sess, entryStage, outcome, true)
}

// settleTurn applies routing decisions until the turn reaches a terminal
// transition, then records the result on the session.
func (s *chatService) settleTurn(ctx context.Context, sess *store.Session, entryStage store.Stage, outcome agent.StageOutcome, persist bool) (*dto.ChatResponse, error) {
	tr := router.Route(entryStage, outcome)

	if tr.RunGeneration {
		s.publishEvent(ctx, events.NewChatStageChanged(sess.ID, string(store.StageRequirements), string(store.StageGeneration)))
		sess.Requirements = outcome.Requirements
		sess.Stage = store.StageGeneration
		sess.ResetGenerationTurn()

		outcome = s.generation.Invoke(ctx, sess)
		tr = router.Route(store.StageGeneration, outcome)
	}

	if tr.RunToolLoop {
		sess.Stage = store.StageToolExecution
		outcome = s.tools.Run(ctx, sess, outcome)
		tr = router.Route(store.StageGeneration, outcome)
	}

	// An abandoned request discards its turn: the stored session keeps the
	// state it had before this message arrived.
	if err := ctx.Err(); err != nil {
		s.logger.Info("ChatService", "Turn discarded, request cancelled", map[string]interface{}{"session_id": sess.ID})
		return nil, fmt.Errorf("turn cancelled for session %s: %w", sess.ID, err)
	}

	now := time.Now()
	sess.Stage = tr.Next
	sess.LastActiveAt = now
	toolCallsUsed := sess.ToolCallCount

	switch {
	case tr.Complete:
		sess.FinalArtifact = outcome.Artifact
		sess.FailureReason = ""
		sess.ResetGenerationTurn()
		sess.AppendMessage(store.RoleGeneration, tr.Reply, now)
		s.onComplete(ctx, sess, toolCallsUsed)
	case tr.Next == store.StageFailed:
		sess.FailureReason = tr.FailureReason
		sess.AppendMessage(store.RoleSystem, tr.Reply, now)
		s.publishEvent(ctx, events.NewChatTurnFailed(sess.ID, tr.FailureReason, outcome.Message))
		s.logger.Warn("ChatService", "Turn failed", map[string]interface{}{
			"session_id": sess.ID,
			"reason":     tr.FailureReason,
			"detail":     outcome.Message,
		})
	default:
		sess.AppendMessage(store.RoleRequirements, tr.Reply, now)
	}

	if persist {
		if err := s.sessions.Update(sess.ID, sess.Version, sess); err != nil {
			s.logger.Error("ChatService", "Failed to persist session turn", map[string]interface{}{
				"session_id": sess.ID,
				"error":      err,
			})
			return nil, fmt.Errorf("persist session %s: %w", sess.ID, err)
		}
		sess.Version++
	}

	return &dto.ChatResponse{
		SessionID:            sess.ID,
		Message:              tr.Reply,
		ConversationComplete: tr.Complete,
		CurrentStage:         string(sess.Stage),
		CurrentAgent:         agentForStage(sess.Stage),
		FinalArtifact:        sess.FinalArtifact,
		FailureReason:        sess.FailureReason,
		Metadata: dto.ChatMetadata{
			Exchanges:            sess.UserMessageCount(),
			ToolCallsUsed:        toolCallsUsed,
			RequirementsComplete: sess.Requirements != nil && sess.Requirements.IsComplete,
			WorkflowGenerated:    len(sess.FinalArtifact) > 0,
			Version:              sess.Version,
		},
	}, nil
}

func (s *chatService) onComplete(ctx context.Context, sess *store.Session, toolCallsUsed int) {
	purpose := ""
	trigger := ""
	if sess.Requirements != nil {
		purpose = sess.Requirements.WorkflowPurpose
		trigger = sess.Requirements.TriggerType
	}

	s.publishEvent(ctx, events.NewChatWorkflowGenerated(sess.ID, purpose, toolCallsUsed))

	if s.archive != nil {
		msg := &dto.PublishArchiveWorkflowMessage{
			SessionID:       sess.ID,
			WorkflowPurpose: purpose,
			TriggerType:     trigger,
			Artifact:        sess.FinalArtifact,
		}
		if err := s.archive.PublishWorkflowArchive(ctx, msg); err != nil {
			s.logger.Error("ChatService", "Failed to enqueue workflow archive", map[string]interface{}{
				"session_id": sess.ID,
				"error":      err,
			})
		}
	}
}

// agentForStage names the stage persona reported to clients.
func agentForStage(st store.Stage) string {
	if st == store.StageRequirements {
		return constant.AgentRequirements
	}
	return constant.AgentGeneration
}

func (s *chatService) publishEvent(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("ChatService", "Failed to publish event", map[string]interface{}{
			"type":  event.EventType(),
			"error": err,
		})
	}
}
