package implementation

import (
	"context"
	"errors"

	"workflow-agent-be/internal/model"
	"workflow-agent-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type WorkflowArchiveRepositoryImpl struct {
	db *gorm.DB
}

func NewWorkflowArchiveRepository(db *gorm.DB) contract.WorkflowArchiveRepository {
	return &WorkflowArchiveRepositoryImpl{db: db}
}

func (r *WorkflowArchiveRepositoryImpl) Create(ctx context.Context, archive *model.WorkflowArchive) error {
	return r.db.WithContext(ctx).Create(archive).Error
}

func (r *WorkflowArchiveRepositoryImpl) FindBySessionId(ctx context.Context, sessionId string) ([]*model.WorkflowArchive, error) {
	var archives []*model.WorkflowArchive
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionId).
		Order("created_at DESC").
		Find(&archives).Error
	return archives, err
}

func (r *WorkflowArchiveRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*model.WorkflowArchive, error) {
	var archive model.WorkflowArchive
	if err := r.db.WithContext(ctx).First(&archive, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &archive, nil
}

// SearchSimilarWithScore returns archives with similarity scores, filtered by threshold.
// Cosine distance in pgvector is 1 - cosine_similarity, so similarity is
// computed as 1 - (embedding_value <=> query_vector).
func (r *WorkflowArchiveRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*contract.ScoredWorkflowArchive, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		model.WorkflowArchive
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("workflow_archives").
		Select("workflow_archives.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("deleted_at IS NULL").
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredWorkflowArchive, len(results))
	for i, res := range results {
		archive := res.WorkflowArchive
		scored[i] = &contract.ScoredWorkflowArchive{
			Archive:    &archive,
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}
