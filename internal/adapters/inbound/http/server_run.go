package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/chidihq/chidi-backend/internal/domain"
	"github.com/chidihq/chidi-backend/internal/telemetry"
	"github.com/chidihq/chidi-backend/internal/usecases"
)

// ChidiServer is the REST and WebSocket HTTP server for the CHIDI backend.
type ChidiServer struct {
	Port                      int                              `config:"HTTP_PORT" default:"8080"`
	Logger                    *log.Logger                      `resolve:""`
	OnboardingUseCase         usecases.HandleOnboardingMessage `resolve:""`
	CompleteOnboardingUseCase usecases.CompleteOnboarding      `resolve:""`
	EnrichContextUseCase      usecases.EnrichContext           `resolve:""`
	RetrieveContextUseCase    usecases.RetrieveContext         `resolve:""`
	WorkspaceChatUseCase      usecases.WorkspaceChat           `resolve:""`
	ContextRepo               domain.BusinessContextRepository `resolve:""`
}

// Run starts the HTTP server for the ChidiServer.
func (api ChidiServer) Run(ctx context.Context) error {
	s := &http.Server{
		Handler: api.handler(),
		Addr:    fmt.Sprintf(":%d", api.Port),
	}

	errCh := make(chan error, 1)
	go func() {
		api.Logger.Printf("ChidiServer: Listening on port %d", api.Port)
		errCh <- s.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.Shutdown(shutdownCtx)
		if err != nil {
			api.Logger.Printf("ChidiServer: error during shutdown: %v", err)
		} else {
			api.Logger.Println("ChidiServer: stopped")
		}
		return err
	case err := <-errCh:
		return err
	}
}

// handler builds the full route table with telemetry and CORS applied.
func (api ChidiServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", api.Healthz)
	mux.HandleFunc("GET /introspect", IntrospectHandler)

	mux.HandleFunc("GET /ws/onboarding/{userId}", api.OnboardingSocket)
	mux.HandleFunc("GET /api/onboarding/state/{userId}", api.GetOnboardingState)
	mux.HandleFunc("POST /api/onboarding/save-state", api.SaveOnboardingState)
	mux.HandleFunc("POST /api/onboarding/{userId}/complete", api.CompleteOnboarding)

	mux.HandleFunc("GET /api/contexts", api.ListContexts)
	mux.HandleFunc("GET /api/contexts/{businessId}", api.GetContext)
	mux.HandleFunc("DELETE /api/contexts/{businessId}", api.DeleteContext)
	mux.HandleFunc("POST /api/contexts/{businessId}/enrich", api.EnrichContext)
	mux.HandleFunc("POST /api/contexts/retrieve", api.RetrieveContexts)

	mux.HandleFunc("POST /api/workspace/chat", api.WorkspaceChat)

	h := telemetry.Middleware("chidi-api")(mux)

	// Apply CORS at the top-level so preflight requests hit it, too.
	return cors.AllowAll().Handler(h)
}

// Healthz reports service liveness.
func (api ChidiServer) Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// IsReady checks if the ChidiServer is ready by performing a health check.
func (api ChidiServer) IsReady(ctx context.Context) error {
	resp, err := http.Get(fmt.Sprintf("http://:%d/healthz", api.Port))
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
