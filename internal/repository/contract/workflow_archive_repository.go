package contract

import (
	"context"

	"workflow-agent-be/internal/model"

	"github.com/google/uuid"
)

// ScoredWorkflowArchive wraps an archive row with its similarity score
type ScoredWorkflowArchive struct {
	Archive    *model.WorkflowArchive
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

type WorkflowArchiveRepository interface {
	Create(ctx context.Context, archive *model.WorkflowArchive) error
	FindBySessionId(ctx context.Context, sessionId string) ([]*model.WorkflowArchive, error)
	FindById(ctx context.Context, id uuid.UUID) (*model.WorkflowArchive, error)
	// SearchSimilarWithScore returns archives with their similarity scores, filtered by threshold
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*ScoredWorkflowArchive, error)
}
