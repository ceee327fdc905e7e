package bootstrap

import (
	"context"
	"log"

	"workflow-agent-be/internal/config"
	"workflow-agent-be/internal/constant"
	"workflow-agent-be/internal/controller"
	"workflow-agent-be/internal/handler"
	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/internal/pkg/mailer"
	"workflow-agent-be/internal/repository/implementation"
	"workflow-agent-be/internal/repository/memory"
	"workflow-agent-be/internal/service"
	"workflow-agent-be/internal/websocket"
	"workflow-agent-be/pkg/agent/stage"
	"workflow-agent-be/pkg/agent/toolloop"
	"workflow-agent-be/pkg/embedding"
	"workflow-agent-be/pkg/llm/factory"
	"workflow-agent-be/pkg/retrieval"

	pktNats "workflow-agent-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const archiveTopicName = "ARCHIVE_WORKFLOW"

type Container struct {
	// Controllers
	ChatController    controller.IChatController
	ArchiveController controller.IArchiveController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets & Notification
	ChatStreamHandler *handler.ChatStreamHandler
	WebSocketHub      *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.Email,
		cfg.SMTP.AlertEmail,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.EmbeddingModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbeddingModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Ai.GoogleGeminiKey)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.RequirementsModel,
		hostedBaseURL(cfg),
		cfg.Ai.HuggingFaceAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s", cfg.Ai.LLMProvider)

	// 4. Pipeline Stages
	requirementsStage := stage.NewRequirementsAdapter(
		llmProvider,
		constant.RequirementsSystemPromptV1,
		constant.ForceCompleteAfterExchanges,
		stage.Config{Model: cfg.Ai.RequirementsModel},
	)
	generationStage := stage.NewGenerationAdapter(
		llmProvider,
		constant.GenerationSystemPromptV1,
		stage.Config{Model: cfg.Ai.GenerationModel},
	)

	retrievalClient := retrieval.NewClient(map[string]string{
		retrieval.ToolWorkflowsSearch:    cfg.Retrieval.WorkflowsURL,
		retrieval.ToolCoreSearch:         cfg.Retrieval.CoreURL,
		retrieval.ToolManagementSearch:   cfg.Retrieval.ManagementURL,
		retrieval.ToolIntegrationsSearch: cfg.Retrieval.IntegrationsURL,
	}, cfg.Retrieval.Timeout)

	toolLoop := toolloop.New(
		retrievalClient,
		generationStage,
		cfg.Session.MaxToolCalls,
		log.Default(),
	)

	// 5. Session Storage
	sessionRepo := memory.NewSessionRepository(cfg.Session.IdleTTL, cfg.Session.SweepInterval)

	// 6. Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/chat_stream.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 7. Archive Pipeline
	archiveRepo := implementation.NewWorkflowArchiveRepository(db)
	publisherService := service.NewPublisherService(pubSub, archiveTopicName)
	consumerService := service.NewConsumerService(
		pubSub,
		archiveTopicName,
		archiveRepo,
		embeddingProvider, // Injected
	)

	// 8. Domain Services
	chatService := service.NewChatService(
		sessionRepo,
		requirementsStage,
		generationStage,
		toolLoop,
		natsPub,
		publisherService,
		sysLogger,
	)
	archiveService := service.NewArchiveService(archiveRepo, embeddingProvider, sysLogger)

	// 9. Notification System
	notifService := service.NewNotificationService(natsSub, wsHub, emailService, wsLogger) // Hub implements EventDelivery

	// Start Service (Worker)
	if natsSub != nil {
		go notifService.Start()
	}

	return &Container{
		ChatController:    controller.NewChatController(chatService),
		ArchiveController: controller.NewArchiveController(archiveService),

		ChatStreamHandler: handler.NewChatStreamHandler(wsHub, wsLogger),
		WebSocketHub:      wsHub,

		ConsumerService: consumerService,
	}
}

func hostedBaseURL(cfg *config.Config) string {
	if cfg.Ai.LLMProvider == "huggingface" {
		return cfg.Ai.HuggingFaceBaseURL
	}
	return cfg.Ai.OllamaBaseURL
}
