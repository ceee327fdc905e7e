// FILE: internal/service/consumer_service.go
package service

import (
	"context"
	"encoding/json"
	"log"

	"workflow-agent-be/internal/dto"
	"workflow-agent-be/internal/model"
	"workflow-agent-be/internal/repository/contract"
	"workflow-agent-be/pkg/embedding"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	archives          contract.WorkflowArchiveRepository
	embeddingProvider embedding.EmbeddingProvider
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	archives contract.WorkflowArchiveRepository,
	embeddingProvider embedding.EmbeddingProvider,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		archives:          archives,
		embeddingProvider: embeddingProvider,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishArchiveWorkflowMessage
	err := json.Unmarshal(msg.Payload, &payload)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal archive message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Archiving workflow for session: %s", payload.SessionID)

	res, err := cs.embeddingProvider.Generate(payload.WorkflowPurpose, "RETRIEVAL_DOCUMENT")
	if err != nil {
		log.Printf("[ERROR] Failed to embed workflow purpose for session %s: %v", payload.SessionID, err)
		msg.Nack() // Nack for retriable errors
		return
	}

	archive := &model.WorkflowArchive{
		SessionId:       payload.SessionID,
		WorkflowPurpose: payload.WorkflowPurpose,
		TriggerType:     payload.TriggerType,
		Artifact:        datatypes.JSON(payload.Artifact),
		EmbeddingValue:  pgvector.NewVector(res.Embedding.Values),
	}

	if err := cs.archives.Create(ctx, archive); err != nil {
		log.Printf("[ERROR] Failed to save workflow archive for session %s: %v", payload.SessionID, err)
		msg.Nack()
		return
	}

	log.Printf("[INFO] Workflow archived for session %s (id %s)", payload.SessionID, archive.Id)
	msg.Ack()
}
