package usecases

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/cleitonmarx/symbiont/depend"

	"github.com/chidihq/chidi-backend/internal/domain"
	"github.com/chidihq/chidi-backend/internal/telemetry"
)

// maxEmbeddingChars is the provider input cap. Longer text is truncated,
// not rejected.
const maxEmbeddingChars = 8000

// GenerateEmbedding converts text into embedding vectors.
type GenerateEmbedding interface {
	// Execute generates an embedding for a single text.
	Execute(ctx context.Context, text string) ([]float64, error)
	// ExecuteBatch generates one embedding per input, preserving input
	// order. A provider failure yields a nil entry per input instead of
	// an error.
	ExecuteBatch(ctx context.Context, texts []string) ([][]float64, error)
	// ExecuteForContext generates an embedding from the text rendering of
	// a business context.
	ExecuteForContext(ctx context.Context, bc domain.BusinessContext) ([]float64, error)
}

// GenerateEmbeddingImpl is the implementation of the GenerateEmbedding use case.
type GenerateEmbeddingImpl struct {
	llmClient domain.LLMClient
	model     string
	logger    *log.Logger
}

// NewGenerateEmbeddingImpl creates a new instance of GenerateEmbeddingImpl.
func NewGenerateEmbeddingImpl(c domain.LLMClient, model string, logger *log.Logger) GenerateEmbeddingImpl {
	return GenerateEmbeddingImpl{
		llmClient: c,
		model:     model,
		logger:    logger,
	}
}

// Execute generates an embedding for a single text.
func (ge GenerateEmbeddingImpl) Execute(ctx context.Context, text string) ([]float64, error) {
	spanCtx, span := telemetry.Start(ctx)
	defer span.End()

	resp, err := ge.llmClient.Embed(spanCtx, ge.model, ge.truncate(text))
	if telemetry.RecordErrorAndStatus(span, err) {
		return nil, err
	}

	RecordLLMTokensEmbedding(spanCtx, resp.TotalTokens)

	return resp.Embedding, nil
}

// ExecuteBatch generates one embedding per input, preserving input order.
// When the provider call fails, every entry of the returned slice is nil.
func (ge GenerateEmbeddingImpl) ExecuteBatch(ctx context.Context, texts []string) ([][]float64, error) {
	spanCtx, span := telemetry.Start(ctx)
	defer span.End()

	inputs := make([]string, len(texts))
	for i, text := range texts {
		inputs[i] = ge.truncate(text)
	}

	responses, err := ge.llmClient.EmbedBatch(spanCtx, ge.model, inputs)
	if err != nil {
		ge.logger.Printf("batch embedding failed: %v", err)
		return make([][]float64, len(texts)), nil
	}

	embeddings := make([][]float64, len(texts))
	totalTokens := 0
	for i, resp := range responses {
		embeddings[i] = resp.Embedding
		totalTokens += resp.TotalTokens
	}
	RecordLLMTokensEmbedding(spanCtx, totalTokens)

	return embeddings, nil
}

// ExecuteForContext generates an embedding from the text rendering of a
// business context.
func (ge GenerateEmbeddingImpl) ExecuteForContext(ctx context.Context, bc domain.BusinessContext) ([]float64, error) {
	return ge.Execute(ctx, RenderContextText(bc))
}

// truncate caps the input at maxEmbeddingChars, backing up to the nearest
// rune boundary so the provider never receives invalid UTF-8.
func (ge GenerateEmbeddingImpl) truncate(text string) string {
	if len(text) <= maxEmbeddingChars {
		return text
	}
	cut := maxEmbeddingChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	ge.logger.Printf("Text too long (%d chars), truncating to %d chars", len(text), cut)
	return text[:cut]
}

// RenderContextText flattens a business context into the text that feeds
// its embedding.
func RenderContextText(bc domain.BusinessContext) string {
	var parts []string
	if bc.Profile.Name != nil && *bc.Profile.Name != "" {
		parts = append(parts, "Business name: "+*bc.Profile.Name)
	}
	if bc.Profile.Type != nil && *bc.Profile.Type != "" {
		parts = append(parts, "Business type: "+*bc.Profile.Type)
	}
	if bc.Profile.Description != nil && *bc.Profile.Description != "" {
		parts = append(parts, "Description: "+*bc.Profile.Description)
	}
	if len(bc.Profile.ProductsServices) > 0 {
		parts = append(parts, "Products/Services: "+strings.Join(bc.Profile.ProductsServices, ", "))
	}
	if bc.Profile.TargetAudience != nil && *bc.Profile.TargetAudience != "" {
		parts = append(parts, "Target audience: "+*bc.Profile.TargetAudience)
	}
	if len(bc.Keywords) > 0 {
		parts = append(parts, "Keywords: "+strings.Join(bc.Keywords, ", "))
	}
	for _, category := range sortedKeys(bc.Insights) {
		parts = append(parts, fmt.Sprintf("%s: %s", category, bc.Insights[category]))
	}
	return strings.Join(parts, "\n")
}

// InitGenerateEmbedding initializes the GenerateEmbedding use case.
type InitGenerateEmbedding struct {
	LLMClient domain.LLMClient `resolve:""`
	Logger    *log.Logger      `resolve:""`
	Model     string           `config:"LLM_EMBEDDING_MODEL"`
}

// Initialize registers the GenerateEmbedding use case implementation.
func (ige InitGenerateEmbedding) Initialize(ctx context.Context) (context.Context, error) {
	depend.Register[GenerateEmbedding](NewGenerateEmbeddingImpl(ige.LLMClient, ige.Model, ige.Logger))
	return ctx, nil
}
