package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WorkflowArchive is the durable record of a completed generation. The
// purpose text is embedded so past workflows are findable by similarity.
type WorkflowArchive struct {
	Id              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId       string          `gorm:"type:varchar(64);not null;index"`
	WorkflowPurpose string          `gorm:"type:text;not null"`
	TriggerType     string          `gorm:"type:varchar(64)"`
	Artifact        datatypes.JSON  `gorm:"type:jsonb;not null"`
	EmbeddingValue  pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt       time.Time       `gorm:"autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime"`
	DeletedAt       gorm.DeletedAt  `gorm:"index"`
}

func (WorkflowArchive) TableName() string {
	return "workflow_archives"
}
