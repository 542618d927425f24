package bootstrap

import (
	"log"

	"ai-tutoring-be/internal/config"
	"ai-tutoring-be/internal/controller"
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/internal/repository/unitofwork"
	"ai-tutoring-be/internal/service"
	"ai-tutoring-be/pkg/responder"
	"ai-tutoring-be/pkg/responder/ollama"
	"ai-tutoring-be/pkg/responder/scripted"
	"ai-tutoring-be/pkg/retry"

	pktNats "ai-tutoring-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

const respondTopic = "session.respond_request"

type Container struct {
	// Controllers
	SessionController controller.ISessionController

	// Background services (run by main.go)
	ResponderWorker service.IResponderWorker
	Sweeper         service.IInactivitySweeper

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Responder provider based on config
	var provider responder.Responder
	if cfg.Responder.Provider == "scripted" {
		provider = scripted.NewScriptedProvider(3)
		log.Printf("[INFO] Using Responder Provider: SCRIPTED")
	} else {
		provider = ollama.NewOllamaProvider(cfg.Responder.OllamaBaseURL, cfg.Responder.OllamaModel)
		log.Printf("[INFO] Using Responder Provider: OLLAMA (%s)", cfg.Responder.OllamaModel)
	}

	// 4. Lifecycle events over NATS, best effort
	var lifecycle service.LifecycleSink
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		lifecycle = natsPub
	}

	// 5. Services
	respondPublisher := service.NewRespondPublisher(respondTopic, pubSub)
	sessionService := service.NewSessionService(uowFactory, respondPublisher, lifecycle, sysLogger)

	policy := retry.Policy{
		MaxAttempts: cfg.Sync.MaxAttempts,
		Base:        cfg.Sync.BackoffBase,
		Cap:         cfg.Sync.BackoffCap,
	}
	responderWorker := service.NewResponderWorker(
		pubSub,
		respondTopic,
		uowFactory,
		provider,
		sessionService,
		cfg.Responder.Timeout,
		policy,
		sysLogger,
	)

	sweeper := service.NewInactivitySweeper(sessionService, cfg.Sync.InactivityTimeout, sysLogger)

	// 6. Controllers
	return &Container{
		SessionController: controller.NewSessionController(sessionService, cfg.App.JWTSecret),

		ResponderWorker: responderWorker,
		Sweeper:         sweeper,

		Logger: sysLogger,
	}
}
