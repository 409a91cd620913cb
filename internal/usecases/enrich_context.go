package usecases

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/cleitonmarx/symbiont/depend"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chidihq/chidi-backend/internal/common"
	"github.com/chidihq/chidi-backend/internal/domain"
	"github.com/chidihq/chidi-backend/internal/telemetry"
)

// EnrichContext merges new data into a stored business context, only
// overwriting fields the update actually carries.
type EnrichContext interface {
	Execute(ctx context.Context, businessID string, newData map[string]string) (domain.BusinessContext, error)
}

// EnrichContextImpl is the implementation of the EnrichContext use case.
type EnrichContextImpl struct {
	embedder     GenerateEmbedding
	uow          domain.UnitOfWork
	timeProvider domain.CurrentTimeProvider
	logger       *log.Logger
}

// NewEnrichContextImpl creates a new instance of EnrichContextImpl.
func NewEnrichContextImpl(embedder GenerateEmbedding, uow domain.UnitOfWork, tp domain.CurrentTimeProvider, logger *log.Logger) EnrichContextImpl {
	return EnrichContextImpl{
		embedder:     embedder,
		uow:          uow,
		timeProvider: tp,
		logger:       logger,
	}
}

// Execute applies the update to the stored context, regenerates its
// embedding and records the enrichment event. Empty update values are
// ignored; unparsable numbers are dropped.
func (ec EnrichContextImpl) Execute(ctx context.Context, businessID string, newData map[string]string) (domain.BusinessContext, error) {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.String("business_id", businessID)),
	)
	defer span.End()

	businessContext, found, err := ec.uow.Contexts().GetContext(spanCtx, businessID)
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.BusinessContext{}, err
	}
	if !found {
		err = domain.NewNotFoundErr("business context not found for id " + businessID)
		telemetry.RecordErrorAndStatus(span, err)
		return domain.BusinessContext{}, err
	}

	applyProfileUpdate(&businessContext.Profile, newData)
	businessContext.UpdatedAt = ec.timeProvider.Now()

	embedding, err := ec.embedder.ExecuteForContext(spanCtx, businessContext)
	if err != nil {
		ec.logger.Printf("failed to generate new embedding for enriched business context %s: %v", businessID, err)
	} else {
		businessContext.Embedding = embedding
	}

	err = ec.uow.Execute(spanCtx, func(uow domain.UnitOfWork) error {
		if err := uow.Contexts().StoreContext(spanCtx, businessContext); err != nil {
			return err
		}
		return uow.Outbox().RecordEvent(spanCtx, domain.ContextEvent{
			Type:       domain.ContextEventType_Enriched,
			BusinessID: businessID,
			CreatedAt:  businessContext.UpdatedAt,
		})
	})
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.BusinessContext{}, err
	}

	return businessContext, nil
}

// applyProfileUpdate overwrites profile fields present and non-empty in the
// update.
func applyProfileUpdate(profile *domain.BusinessProfile, newData map[string]string) {
	if v := newData["name"]; v != "" {
		profile.Name = common.Ptr(v)
	}
	if v := newData["type"]; v != "" {
		profile.Type = common.Ptr(v)
	}
	if v := newData["description"]; v != "" {
		profile.Description = common.Ptr(v)
	}
	if v := newData["employees"]; v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			profile.Employees = common.Ptr(n)
		}
	}
	if v := newData["year_founded"]; v != "" {
		if year, found := domain.ExtractFoundingYear(v); found {
			profile.YearFounded = common.Ptr(year)
		}
	}
	if v := newData["target_audience"]; v != "" {
		profile.TargetAudience = common.Ptr(v)
	}
}

// InitEnrichContext initializes the EnrichContext use case.
type InitEnrichContext struct {
	Embedder     GenerateEmbedding          `resolve:""`
	Uow          domain.UnitOfWork          `resolve:""`
	TimeProvider domain.CurrentTimeProvider `resolve:""`
	Logger       *log.Logger                `resolve:""`
}

// Initialize registers the EnrichContext use case implementation.
func (iec InitEnrichContext) Initialize(ctx context.Context) (context.Context, error) {
	depend.Register[EnrichContext](NewEnrichContextImpl(
		iec.Embedder, iec.Uow, iec.TimeProvider, iec.Logger,
	))
	return ctx, nil
}
