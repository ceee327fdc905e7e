package events

import "time"

// Event type codes carried on the bus under the "events." subject prefix.
const (
	TypeChatSessionStarted    = "chat.session_started"
	TypeChatStageChanged      = "chat.stage_changed"
	TypeChatWorkflowGenerated = "chat.workflow_generated"
	TypeChatTurnFailed        = "chat.turn_failed"
)

func NewChatSessionStarted(sessionID, query string) Event {
	return BaseEvent{
		Type: TypeChatSessionStarted,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"query":      query,
		},
		OccurredAt: time.Now(),
	}
}

func NewChatStageChanged(sessionID, from, to string) Event {
	return BaseEvent{
		Type: TypeChatStageChanged,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"from":       from,
			"to":         to,
		},
		OccurredAt: time.Now(),
	}
}

func NewChatWorkflowGenerated(sessionID, purpose string, toolCallsUsed int) Event {
	return BaseEvent{
		Type: TypeChatWorkflowGenerated,
		Data: map[string]interface{}{
			"session_id":      sessionID,
			"purpose":         purpose,
			"tool_calls_used": toolCallsUsed,
		},
		OccurredAt: time.Now(),
	}
}

func NewChatTurnFailed(sessionID, reason, detail string) Event {
	return BaseEvent{
		Type: TypeChatTurnFailed,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"reason":     reason,
			"detail":     detail,
		},
		OccurredAt: time.Now(),
	}
}
