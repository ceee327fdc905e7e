package store

import (
	"encoding/json"
	"time"
)

// Stage identifies where a session currently sits in the two-stage pipeline.
type Stage string

const (
	StageRequirements  Stage = "REQUIREMENTS"
	StageGeneration    Stage = "GENERATION"
	StageToolExecution Stage = "TOOL_EXECUTION"
	StageComplete      Stage = "COMPLETE"
	StageFailed        Stage = "FAILED"
)

// Message roles
const (
	RoleUser         = "user"
	RoleRequirements = "requirements_stage"
	RoleGeneration   = "generation_stage"
	RoleSystem       = "system"
)

// Message is one conversational turn. Immutable once appended.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Requirements is the structured document the Requirements stage produces.
// Written once by the orchestrator; a fresh Requirements round replaces it
// wholesale, it is never mutated in place.
type Requirements struct {
	UserQuery           string   `json:"user_query"`
	WorkflowPurpose     string   `json:"workflow_purpose"`
	TriggerType         string   `json:"trigger_type"`
	RequiredNodes       []string `json:"required_nodes"`
	DataFlow            []string `json:"data_flow"`
	ClarifyingQuestions []string `json:"clarifying_questions,omitempty"`
	IsComplete          bool     `json:"is_complete"`
}

// ToolCallRequest is one retrieval lookup the Generation stage asked for.
type ToolCallRequest struct {
	ID         string                 `json:"id"`
	Tool       string                 `json:"tool"`
	Query      string                 `json:"query"`
	MaxResults int                    `json:"max_results"`
	Filters    map[string]interface{} `json:"filters,omitempty"`
}

// Snippet is one ranked reference document returned by the retrieval backend.
type Snippet struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float32 `json:"score"`
}

// ToolResult holds the outcome of one retrieval call, keyed by request id.
// A failed call is recorded as a placeholder (Failed=true, Error set) so the
// Generation stage can reason about partial retrieval failure explicitly.
type ToolResult struct {
	RequestID string    `json:"request_id"`
	Tool      string    `json:"tool"`
	Query     string    `json:"query"`
	Snippets  []Snippet `json:"snippets,omitempty"`
	Failed    bool      `json:"failed"`
	Error     string    `json:"error,omitempty"`
}

// Session is one end-to-end conversation instance.
type Session struct {
	ID       string    `json:"id"`
	Messages []Message `json:"messages"`
	Stage    Stage     `json:"stage"`

	Requirements *Requirements `json:"requirements,omitempty"`

	// Tool state for the Generation turn currently in flight.
	PendingToolCalls []ToolCallRequest     `json:"pending_tool_calls,omitempty"`
	ToolOutputs      map[string]ToolResult `json:"tool_outputs,omitempty"`
	ToolCallCount    int                   `json:"tool_call_count"`

	// FinalArtifact is set exactly when Stage == StageComplete.
	FinalArtifact json.RawMessage `json:"final_artifact,omitempty"`

	// FailureReason carries the internal reason code of the last failed turn.
	FailureReason string `json:"failure_reason,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`

	// Version increments on every persisted mutation. Used by the store to
	// detect lost updates under concurrent continuation requests.
	Version int64 `json:"version"`
}

// AppendMessage adds a turn to the end of the log. The log uses the time of
// append as the sole ordering key; timestamps never decrease even if the
// process clock steps backwards.
func (s *Session) AppendMessage(role, content string, now time.Time) {
	if n := len(s.Messages); n > 0 && now.Before(s.Messages[n-1].Timestamp) {
		now = s.Messages[n-1].Timestamp
	}
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
}

// ResetGenerationTurn clears per-turn tool state so a fresh Generation
// attempt starts with a full budget.
func (s *Session) ResetGenerationTurn() {
	s.PendingToolCalls = nil
	s.ToolOutputs = nil
	s.ToolCallCount = 0
}

// Clone returns a deep copy so stage adapters and tool loops can work on a
// snapshot without holding store locks.
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	c.PendingToolCalls = append([]ToolCallRequest(nil), s.PendingToolCalls...)
	if s.ToolOutputs != nil {
		c.ToolOutputs = make(map[string]ToolResult, len(s.ToolOutputs))
		for k, v := range s.ToolOutputs {
			c.ToolOutputs[k] = v
		}
	}
	if s.Requirements != nil {
		r := *s.Requirements
		r.RequiredNodes = append([]string(nil), s.Requirements.RequiredNodes...)
		r.DataFlow = append([]string(nil), s.Requirements.DataFlow...)
		r.ClarifyingQuestions = append([]string(nil), s.Requirements.ClarifyingQuestions...)
		c.Requirements = &r
	}
	c.FinalArtifact = append(json.RawMessage(nil), s.FinalArtifact...)
	return &c
}

// UserMessageCount counts user turns, used by the Requirements stage to
// decide when to force completion.
func (s *Session) UserMessageCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// LastUserMessage returns the most recent user turn, or an empty string.
func (s *Session) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}
