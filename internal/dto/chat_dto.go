// FILE: internal/dto/chat_dto.go
package dto

import (
	"encoding/json"
	"fmt"
	"time"
)

type ChatStartRequest struct {
	Query string `json:"query" validate:"required,min=1,max=4000"`
}

type ChatContinueRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid4"`
	Message   string `json:"message" validate:"required,min=1,max=4000"`
}

type InvokeRequest struct {
	Query string `json:"query" validate:"required,min=1,max=4000"`
}

// ChatResponse is the turn result shared by start, continue and invoke.
// FinalArtifact is only set when the session reached COMPLETE this turn.
type ChatResponse struct {
	SessionID            string          `json:"session_id"`
	Message              string          `json:"message"`
	ConversationComplete bool            `json:"conversation_complete"`
	CurrentStage         string          `json:"current_stage"`
	CurrentAgent         string          `json:"current_agent"`
	FinalArtifact        json.RawMessage `json:"final_artifact,omitempty"`
	FailureReason        string          `json:"failure_reason,omitempty"`
	Metadata             ChatMetadata    `json:"metadata"`
}

type ChatMetadata struct {
	Exchanges            int   `json:"exchanges"`
	ToolCallsUsed        int   `json:"tool_calls_used"`
	RequirementsComplete bool  `json:"requirements_complete"`
	WorkflowGenerated    bool  `json:"workflow_generated"`
	Version              int64 `json:"version"`
}

type ChatMessageResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatHistoryResponse struct {
	SessionID    string                `json:"session_id"`
	CurrentStage string                `json:"current_stage"`
	MessageCount int                   `json:"message_count"`
	Messages     []ChatMessageResponse `json:"messages"`
}

// SessionNotFoundError maps to 404.
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session %s not found", e.SessionID)
}

// SessionBusyError maps to 409: a turn is already running for this session.
type SessionBusyError struct {
	SessionID string
}

func (e *SessionBusyError) Error() string {
	return fmt.Sprintf("session %s has a turn in progress", e.SessionID)
}
