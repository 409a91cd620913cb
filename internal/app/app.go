package app

import (
	"github.com/cleitonmarx/symbiont"

	"github.com/chidihq/chidi-backend/internal/adapters/inbound/http"
	"github.com/chidihq/chidi-backend/internal/adapters/inbound/workers"
	"github.com/chidihq/chidi-backend/internal/adapters/outbound/config"
	"github.com/chidihq/chidi-backend/internal/adapters/outbound/log"
	"github.com/chidihq/chidi-backend/internal/adapters/outbound/modelrunner"
	"github.com/chidihq/chidi-backend/internal/adapters/outbound/postgres"
	"github.com/chidihq/chidi-backend/internal/adapters/outbound/pubsub"
	"github.com/chidihq/chidi-backend/internal/adapters/outbound/time"
	"github.com/chidihq/chidi-backend/internal/telemetry"
	"github.com/chidihq/chidi-backend/internal/usecases"
)

// NewChidiApp creates and returns a new instance of the CHIDI backend application.
func NewChidiApp(initializers ...symbiont.Initializer) *symbiont.App {
	return symbiont.NewApp().
		Initialize(initializers...).
		Initialize(
			&log.InitLogger{},
			&telemetry.InitOpenTelemetry{},
			&telemetry.InitHttpClient{},
			&config.InitVaultProvider{},
			&postgres.InitDB{},
			&postgres.InitUnitOfWork{},
			&postgres.InitSessionRepository{},
			&postgres.InitBusinessContextRepository{},
			&time.InitCurrentTimeProvider{},
			&pubsub.InitClient{},
			&pubsub.InitPublisher{},
			&modelrunner.InitLLMClient{},

			&usecases.InitGenerateEmbedding{},
			&usecases.InitRetrieveContext{},
			&usecases.InitExtractContext{},
			&usecases.InitGenerateOnboardingResponse{},
			&usecases.InitHandleOnboardingMessage{},
			&usecases.InitCompleteOnboarding{},
			&usecases.InitEnrichContext{},
			&usecases.InitWorkspaceChat{},
			&usecases.InitRelayOutbox{},
		).
		Host(
			&http.ChidiServer{},
			&workers.MessageRelay{},
		).
		Introspect(&MermaidGraphIntrospector{})
}
