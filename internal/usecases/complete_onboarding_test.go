package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/cleitonmarx/symbiont/depend"
	"github.com/stretchr/testify/assert"

	"github.com/chidihq/chidi-backend/internal/common"
	"github.com/chidihq/chidi-backend/internal/domain"
)

// fakeExtractor implements ExtractContext with a canned result.
type fakeExtractor struct {
	result domain.BusinessContext
	err    error
}

func (e fakeExtractor) Execute(_ context.Context, businessID string, _ domain.OnboardingSession) (domain.BusinessContext, error) {
	if e.err != nil {
		return domain.BusinessContext{}, e.err
	}
	result := e.result
	result.BusinessID = businessID
	return result, nil
}

func (e fakeExtractor) ExecuteBasic(businessID string, _ domain.OnboardingSession) domain.BusinessContext {
	result := e.result
	result.BusinessID = businessID
	return result
}

func TestCompleteOnboardingImpl_Execute(t *testing.T) {
	extracted := domain.BusinessContext{
		Profile:  domain.BusinessProfile{Name: common.Ptr("TechSolutions Inc.")},
		Keywords: []string{"software"},
	}
	sessionsWithUser := func() *fakeSessionStore {
		return &fakeSessionStore{sessions: map[string]domain.OnboardingSession{
			"user-001": domain.NewOnboardingSession("user-001", testTime),
		}}
	}

	t.Run("stores-the-context-and-records-the-event", func(t *testing.T) {
		contexts := &fakeContextRepo{}
		outbox := &fakeOutbox{}
		uow := &fakeUnitOfWork{contexts: contexts, outbox: outbox}
		embedder := fakeEmbedder{vectors: map[string][]float64{
			"Business name: TechSolutions Inc.\nKeywords: software": {0.1, 0.2},
		}}
		co := NewCompleteOnboardingImpl(sessionsWithUser(), fakeExtractor{result: extracted}, embedder, uow, fixedTimeProvider{testTime}, testLogger())

		bc, err := co.Execute(context.Background(), "user-001")

		assert.NoError(t, err)
		assert.Equal(t, "user-001", bc.BusinessID)
		assert.Equal(t, []float64{0.1, 0.2}, bc.Embedding)
		assert.Len(t, contexts.stored, 1)
		assert.Equal(t, bc, contexts.stored[0])
		assert.Equal(t, []domain.ContextEvent{{
			Type:       domain.ContextEventType_Extracted,
			BusinessID: "user-001",
			CreatedAt:  testTime,
		}}, outbox.recorded)
	})

	t.Run("embedding-failure-stores-the-context-without-a-vector", func(t *testing.T) {
		contexts := &fakeContextRepo{}
		uow := &fakeUnitOfWork{contexts: contexts, outbox: &fakeOutbox{}}
		embedder := fakeEmbedder{contextErr: errors.New("provider unreachable")}
		co := NewCompleteOnboardingImpl(sessionsWithUser(), fakeExtractor{result: extracted}, embedder, uow, fixedTimeProvider{testTime}, testLogger())

		bc, err := co.Execute(context.Background(), "user-001")

		assert.NoError(t, err)
		assert.Nil(t, bc.Embedding)
		assert.Len(t, contexts.stored, 1)
	})

	t.Run("missing-session-is-not-found", func(t *testing.T) {
		co := NewCompleteOnboardingImpl(&fakeSessionStore{}, fakeExtractor{result: extracted}, fakeEmbedder{}, &fakeUnitOfWork{}, fixedTimeProvider{testTime}, testLogger())

		_, err := co.Execute(context.Background(), "user-001")

		var notFoundErr *domain.NotFoundErr
		assert.ErrorAs(t, err, &notFoundErr)
	})

	t.Run("extraction-error-propagates", func(t *testing.T) {
		co := NewCompleteOnboardingImpl(sessionsWithUser(), fakeExtractor{err: errors.New("provider unreachable")}, fakeEmbedder{}, &fakeUnitOfWork{}, fixedTimeProvider{testTime}, testLogger())

		_, err := co.Execute(context.Background(), "user-001")

		assert.Error(t, err)
	})

	t.Run("store-error-propagates", func(t *testing.T) {
		uow := &fakeUnitOfWork{contexts: &fakeContextRepo{storeErr: errors.New("database error")}, outbox: &fakeOutbox{}}
		co := NewCompleteOnboardingImpl(sessionsWithUser(), fakeExtractor{result: extracted}, fakeEmbedder{}, uow, fixedTimeProvider{testTime}, testLogger())

		_, err := co.Execute(context.Background(), "user-001")

		assert.Error(t, err)
	})
}

func TestInitCompleteOnboarding_Initialize(t *testing.T) {
	ico := InitCompleteOnboarding{
		Store:        &fakeSessionStore{},
		Extractor:    fakeExtractor{},
		Embedder:     fakeEmbedder{},
		Uow:          &fakeUnitOfWork{},
		TimeProvider: fixedTimeProvider{testTime},
		Logger:       testLogger(),
	}

	_, err := ico.Initialize(context.Background())
	assert.NoError(t, err)

	registered, err := depend.Resolve[CompleteOnboarding]()
	assert.NoError(t, err)
	assert.NotNil(t, registered)
}
