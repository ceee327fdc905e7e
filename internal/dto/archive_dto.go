// FILE: internal/dto/archive_dto.go
package dto

import (
	"encoding/json"

	"github.com/google/uuid"
)

type ArchiveSearchRequest struct {
	Query string `json:"query" validate:"required,min=1,max=1000"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=50"`
}

// PublishArchiveWorkflowMessage travels over the in-process queue from the
// chat orchestrator to the archive consumer.
type PublishArchiveWorkflowMessage struct {
	SessionID       string          `json:"session_id"`
	WorkflowPurpose string          `json:"workflow_purpose"`
	TriggerType     string          `json:"trigger_type"`
	Artifact        json.RawMessage `json:"artifact"`
}

type ArchivedWorkflowResponse struct {
	ID              uuid.UUID       `json:"id"`
	SessionID       string          `json:"session_id"`
	WorkflowPurpose string          `json:"workflow_purpose"`
	Artifact        json.RawMessage `json:"artifact"`
	Similarity      float64         `json:"similarity,omitempty"`
	CreatedAt       string          `json:"created_at"`
}
