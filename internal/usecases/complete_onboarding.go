package usecases

import (
	"context"
	"log"

	"github.com/cleitonmarx/symbiont/depend"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chidihq/chidi-backend/internal/domain"
	"github.com/chidihq/chidi-backend/internal/telemetry"
)

// CompleteOnboarding turns a finished onboarding session into a stored
// business context and records the extraction event for relay.
type CompleteOnboarding interface {
	Execute(ctx context.Context, userID string) (domain.BusinessContext, error)
}

// CompleteOnboardingImpl is the implementation of the CompleteOnboarding
// use case.
type CompleteOnboardingImpl struct {
	store        domain.SessionStore
	extractor    ExtractContext
	embedder     GenerateEmbedding
	uow          domain.UnitOfWork
	timeProvider domain.CurrentTimeProvider
	logger       *log.Logger
}

// NewCompleteOnboardingImpl creates a new instance of CompleteOnboardingImpl.
func NewCompleteOnboardingImpl(
	store domain.SessionStore,
	extractor ExtractContext,
	embedder GenerateEmbedding,
	uow domain.UnitOfWork,
	tp domain.CurrentTimeProvider,
	logger *log.Logger,
) CompleteOnboardingImpl {
	return CompleteOnboardingImpl{
		store:        store,
		extractor:    extractor,
		embedder:     embedder,
		uow:          uow,
		timeProvider: tp,
		logger:       logger,
	}
}

// Execute extracts the business context from the user's session, caches its
// embedding and stores both together with the extraction event.
func (co CompleteOnboardingImpl) Execute(ctx context.Context, userID string) (domain.BusinessContext, error) {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.String("user_id", userID)),
	)
	defer span.End()

	session, found, err := co.store.GetSession(spanCtx, userID)
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.BusinessContext{}, err
	}
	if !found {
		err = domain.NewNotFoundErr("onboarding session not found for user " + userID)
		telemetry.RecordErrorAndStatus(span, err)
		return domain.BusinessContext{}, err
	}

	businessContext, err := co.extractor.Execute(spanCtx, userID, session)
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.BusinessContext{}, err
	}

	// The context is usable without an embedding; vector retrieval
	// regenerates it on demand.
	embedding, err := co.embedder.ExecuteForContext(spanCtx, businessContext)
	if err != nil {
		co.logger.Printf("failed to generate embedding for business context %s: %v", businessContext.BusinessID, err)
	} else {
		businessContext.Embedding = embedding
	}

	err = co.uow.Execute(spanCtx, func(uow domain.UnitOfWork) error {
		if err := uow.Contexts().StoreContext(spanCtx, businessContext); err != nil {
			return err
		}
		return uow.Outbox().RecordEvent(spanCtx, domain.ContextEvent{
			Type:       domain.ContextEventType_Extracted,
			BusinessID: businessContext.BusinessID,
			CreatedAt:  co.timeProvider.Now(),
		})
	})
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.BusinessContext{}, err
	}

	return businessContext, nil
}

// InitCompleteOnboarding initializes the CompleteOnboarding use case.
type InitCompleteOnboarding struct {
	Store        domain.SessionStore        `resolve:""`
	Extractor    ExtractContext             `resolve:""`
	Embedder     GenerateEmbedding          `resolve:""`
	Uow          domain.UnitOfWork          `resolve:""`
	TimeProvider domain.CurrentTimeProvider `resolve:""`
	Logger       *log.Logger                `resolve:""`
}

// Initialize registers the CompleteOnboarding use case implementation.
func (ico InitCompleteOnboarding) Initialize(ctx context.Context) (context.Context, error) {
	depend.Register[CompleteOnboarding](NewCompleteOnboardingImpl(
		ico.Store, ico.Extractor, ico.Embedder, ico.Uow, ico.TimeProvider, ico.Logger,
	))
	return ctx, nil
}
