package usecases

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/cleitonmarx/symbiont/depend"
	"github.com/stretchr/testify/assert"

	"github.com/chidihq/chidi-backend/internal/common"
	"github.com/chidihq/chidi-backend/internal/domain"
)

func TestGenerateEmbeddingImpl_Execute(t *testing.T) {
	tests := map[string]struct {
		input             string
		embedFn           func(ctx context.Context, model, input string) (domain.EmbedResponse, error)
		expectedEmbedding []float64
		expectedInput     string
		expectErr         bool
	}{
		"success": {
			input: "a small bakery in Lisbon",
			embedFn: func(_ context.Context, model, input string) (domain.EmbedResponse, error) {
				assert.Equal(t, "text-embed-1", model)
				return domain.EmbedResponse{Embedding: []float64{0.1, 0.2}, TotalTokens: 6}, nil
			},
			expectedEmbedding: []float64{0.1, 0.2},
			expectedInput:     "a small bakery in Lisbon",
		},
		"truncates-oversized-input": {
			input: strings.Repeat("x", maxEmbeddingChars+100),
			embedFn: func(_ context.Context, _, input string) (domain.EmbedResponse, error) {
				return domain.EmbedResponse{Embedding: []float64{0.5}}, nil
			},
			expectedEmbedding: []float64{0.5},
			expectedInput:     strings.Repeat("x", maxEmbeddingChars),
		},
		"truncation-backs-up-to-a-rune-boundary": {
			input: strings.Repeat("x", maxEmbeddingChars-1) + "世",
			embedFn: func(_ context.Context, _, input string) (domain.EmbedResponse, error) {
				assert.True(t, utf8.ValidString(input))
				return domain.EmbedResponse{Embedding: []float64{0.5}}, nil
			},
			expectedEmbedding: []float64{0.5},
			expectedInput:     strings.Repeat("x", maxEmbeddingChars-1),
		},
		"provider-error": {
			input: "anything",
			embedFn: func(_ context.Context, _, _ string) (domain.EmbedResponse, error) {
				return domain.EmbedResponse{}, errors.New("provider unreachable")
			},
			expectedInput: "anything",
			expectErr:     true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			client := &fakeLLMClient{embedFn: tt.embedFn}
			ge := NewGenerateEmbeddingImpl(client, "text-embed-1", testLogger())

			embedding, err := ge.Execute(context.Background(), tt.input)

			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedEmbedding, embedding)
			}
			assert.Equal(t, []string{tt.expectedInput}, client.embedInputs)
		})
	}
}

func TestGenerateEmbeddingImpl_ExecuteBatch(t *testing.T) {
	tests := map[string]struct {
		inputs       []string
		embedBatchFn func(ctx context.Context, model string, inputs []string) ([]domain.EmbedResponse, error)
		expected     [][]float64
	}{
		"preserves-input-order": {
			inputs: []string{"first", "second"},
			embedBatchFn: func(_ context.Context, _ string, inputs []string) ([]domain.EmbedResponse, error) {
				return []domain.EmbedResponse{
					{Embedding: []float64{0.1}},
					{Embedding: []float64{0.2}},
				}, nil
			},
			expected: [][]float64{{0.1}, {0.2}},
		},
		"batch-failure-degrades-to-all-nil": {
			inputs: []string{"first", "second", "third"},
			embedBatchFn: func(_ context.Context, _ string, _ []string) ([]domain.EmbedResponse, error) {
				return nil, errors.New("provider unreachable")
			},
			expected: [][]float64{nil, nil, nil},
		},
		"empty-input": {
			inputs:   []string{},
			expected: [][]float64{},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			client := &fakeLLMClient{embedBatchFn: tt.embedBatchFn}
			ge := NewGenerateEmbeddingImpl(client, "text-embed-1", testLogger())

			embeddings, err := ge.ExecuteBatch(context.Background(), tt.inputs)

			assert.NoError(t, err)
			assert.Equal(t, tt.expected, embeddings)
		})
	}
}

func TestRenderContextText(t *testing.T) {
	bc := domain.BusinessContext{
		BusinessID: "biz-001",
		Profile: domain.BusinessProfile{
			Name:             common.Ptr("TechSolutions Inc."),
			Type:             common.Ptr("Technology"),
			Description:      common.Ptr("Custom software development"),
			ProductsServices: []string{"Web apps", "Consulting"},
			TargetAudience:   common.Ptr("B2B"),
		},
		Keywords: []string{"software", "technology"},
		Insights: map[string]string{
			"market_positioning":   "Niche B2B provider",
			"growth_opportunities": "Expand consulting",
		},
	}

	expected := "Business name: TechSolutions Inc.\n" +
		"Business type: Technology\n" +
		"Description: Custom software development\n" +
		"Products/Services: Web apps, Consulting\n" +
		"Target audience: B2B\n" +
		"Keywords: software, technology\n" +
		"growth_opportunities: Expand consulting\n" +
		"market_positioning: Niche B2B provider"

	assert.Equal(t, expected, RenderContextText(bc))
}

func TestRenderContextText_EmptyContext(t *testing.T) {
	assert.Equal(t, "", RenderContextText(domain.BusinessContext{BusinessID: "biz-001"}))
}

func TestInitGenerateEmbedding_Initialize(t *testing.T) {
	ige := InitGenerateEmbedding{
		LLMClient: &fakeLLMClient{},
		Logger:    testLogger(),
		Model:     "text-embed-1",
	}

	_, err := ige.Initialize(context.Background())
	assert.NoError(t, err)

	registered, err := depend.Resolve[GenerateEmbedding]()
	assert.NoError(t, err)
	assert.NotNil(t, registered)
}
