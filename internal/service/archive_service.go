// FILE: internal/service/archive_service.go
package service

import (
	"context"
	"encoding/json"
	"time"

	"workflow-agent-be/internal/dto"
	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/internal/repository/contract"
	"workflow-agent-be/pkg/embedding"
)

// similarityThreshold filters out archive hits that are only loosely related
// to the query. 0.3 keeps recall high while dropping noise.
const similarityThreshold = 0.3

type IArchiveService interface {
	Search(ctx context.Context, req *dto.ArchiveSearchRequest) ([]dto.ArchivedWorkflowResponse, error)
}

type archiveService struct {
	archives          contract.WorkflowArchiveRepository
	embeddingProvider embedding.EmbeddingProvider
	logger            logger.ILogger
}

func NewArchiveService(archives contract.WorkflowArchiveRepository, embeddingProvider embedding.EmbeddingProvider, log logger.ILogger) IArchiveService {
	return &archiveService{
		archives:          archives,
		embeddingProvider: embeddingProvider,
		logger:            log,
	}
}

func (s *archiveService) Search(ctx context.Context, req *dto.ArchiveSearchRequest) ([]dto.ArchivedWorkflowResponse, error) {
	res, err := s.embeddingProvider.Generate(req.Query, "RETRIEVAL_QUERY")
	if err != nil {
		s.logger.Error("ArchiveService", "Failed to embed search query", map[string]interface{}{"error": err})
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 5
	}

	scored, err := s.archives.SearchSimilarWithScore(ctx, res.Embedding.Values, limit, similarityThreshold)
	if err != nil {
		return nil, err
	}

	results := make([]dto.ArchivedWorkflowResponse, len(scored))
	for i, sc := range scored {
		results[i] = dto.ArchivedWorkflowResponse{
			ID:              sc.Archive.Id,
			SessionID:       sc.Archive.SessionId,
			WorkflowPurpose: sc.Archive.WorkflowPurpose,
			Artifact:        json.RawMessage(sc.Archive.Artifact),
			Similarity:      sc.Similarity,
			CreatedAt:       sc.Archive.CreatedAt.Format(time.RFC3339),
		}
	}
	return results, nil
}
