package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cleitonmarx/symbiont/depend"
	"github.com/stretchr/testify/assert"

	"github.com/chidihq/chidi-backend/internal/common"
	"github.com/chidihq/chidi-backend/internal/domain"
)

func storedContext() domain.BusinessContext {
	return domain.BusinessContext{
		BusinessID: "biz-001",
		Profile: domain.BusinessProfile{
			Name:        common.Ptr("TechSolutions Inc."),
			Type:        common.Ptr("Technology"),
			Description: common.Ptr("Custom software development"),
			Employees:   common.Ptr(10),
		},
		Keywords:  []string{"software"},
		Embedding: []float64{0.1, 0.2},
		CreatedAt: testTime.Add(-24 * time.Hour),
		UpdatedAt: testTime.Add(-24 * time.Hour),
	}
}

func TestEnrichContextImpl_Execute(t *testing.T) {
	tests := map[string]struct {
		newData       map[string]string
		verifyProfile func(t *testing.T, profile domain.BusinessProfile)
	}{
		"overwrites-provided-fields": {
			newData: map[string]string{
				"name":            "TechSolutions Global",
				"employees":       "25",
				"target_audience": "b2b",
			},
			verifyProfile: func(t *testing.T, profile domain.BusinessProfile) {
				assert.Equal(t, common.Ptr("TechSolutions Global"), profile.Name)
				assert.Equal(t, common.Ptr(25), profile.Employees)
				assert.Equal(t, common.Ptr("b2b"), profile.TargetAudience)
				// Untouched fields survive.
				assert.Equal(t, common.Ptr("Technology"), profile.Type)
				assert.Equal(t, common.Ptr("Custom software development"), profile.Description)
			},
		},
		"empty-values-are-ignored": {
			newData: map[string]string{"name": "", "description": ""},
			verifyProfile: func(t *testing.T, profile domain.BusinessProfile) {
				assert.Equal(t, common.Ptr("TechSolutions Inc."), profile.Name)
				assert.Equal(t, common.Ptr("Custom software development"), profile.Description)
			},
		},
		"unparsable-employees-keeps-the-old-count": {
			newData: map[string]string{"employees": "a few"},
			verifyProfile: func(t *testing.T, profile domain.BusinessProfile) {
				assert.Equal(t, common.Ptr(10), profile.Employees)
			},
		},
		"year-founded-accepts-free-form-text": {
			newData: map[string]string{"year_founded": "March 2019"},
			verifyProfile: func(t *testing.T, profile domain.BusinessProfile) {
				assert.Equal(t, common.Ptr(2019), profile.YearFounded)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			contexts := &fakeContextRepo{contexts: []domain.BusinessContext{storedContext()}}
			outbox := &fakeOutbox{}
			uow := &fakeUnitOfWork{contexts: contexts, outbox: outbox}
			ec := NewEnrichContextImpl(fakeEmbedder{}, uow, fixedTimeProvider{testTime}, testLogger())

			bc, err := ec.Execute(context.Background(), "biz-001", tt.newData)

			assert.NoError(t, err)
			tt.verifyProfile(t, bc.Profile)
			assert.Equal(t, testTime, bc.UpdatedAt)
			assert.Len(t, contexts.stored, 1)
			assert.Equal(t, []domain.ContextEvent{{
				Type:       domain.ContextEventType_Enriched,
				BusinessID: "biz-001",
				CreatedAt:  testTime,
			}}, outbox.recorded)
		})
	}
}

func TestEnrichContextImpl_Execute_RegeneratesEmbedding(t *testing.T) {
	enriched := storedContext()
	enriched.Profile.Name = common.Ptr("TechSolutions Global")
	enriched.UpdatedAt = testTime

	embedder := fakeEmbedder{vectors: map[string][]float64{
		RenderContextText(enriched): {0.7, 0.8},
	}}
	contexts := &fakeContextRepo{contexts: []domain.BusinessContext{storedContext()}}
	uow := &fakeUnitOfWork{contexts: contexts, outbox: &fakeOutbox{}}
	ec := NewEnrichContextImpl(embedder, uow, fixedTimeProvider{testTime}, testLogger())

	bc, err := ec.Execute(context.Background(), "biz-001", map[string]string{"name": "TechSolutions Global"})

	assert.NoError(t, err)
	assert.Equal(t, []float64{0.7, 0.8}, bc.Embedding)
}

func TestEnrichContextImpl_Execute_EmbeddingFailureKeepsOldVector(t *testing.T) {
	embedder := fakeEmbedder{contextErr: errors.New("provider unreachable")}
	contexts := &fakeContextRepo{contexts: []domain.BusinessContext{storedContext()}}
	uow := &fakeUnitOfWork{contexts: contexts, outbox: &fakeOutbox{}}
	ec := NewEnrichContextImpl(embedder, uow, fixedTimeProvider{testTime}, testLogger())

	bc, err := ec.Execute(context.Background(), "biz-001", map[string]string{"name": "TechSolutions Global"})

	assert.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, bc.Embedding)
	assert.Len(t, contexts.stored, 1)
}

func TestEnrichContextImpl_Execute_UnknownBusiness(t *testing.T) {
	uow := &fakeUnitOfWork{contexts: &fakeContextRepo{}, outbox: &fakeOutbox{}}
	ec := NewEnrichContextImpl(fakeEmbedder{}, uow, fixedTimeProvider{testTime}, testLogger())

	_, err := ec.Execute(context.Background(), "missing", map[string]string{"name": "x"})

	var notFoundErr *domain.NotFoundErr
	assert.ErrorAs(t, err, &notFoundErr)
}

func TestInitEnrichContext_Initialize(t *testing.T) {
	iec := InitEnrichContext{
		Embedder:     fakeEmbedder{},
		Uow:          &fakeUnitOfWork{},
		TimeProvider: fixedTimeProvider{testTime},
		Logger:       testLogger(),
	}

	_, err := iec.Initialize(context.Background())
	assert.NoError(t, err)

	registered, err := depend.Resolve[EnrichContext]()
	assert.NoError(t, err)
	assert.NotNil(t, registered)
}
