package usecases

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cleitonmarx/symbiont/depend"

	"github.com/chidihq/chidi-backend/internal/common"
	"github.com/chidihq/chidi-backend/internal/domain"
	"github.com/chidihq/chidi-backend/internal/telemetry"
)

// workspaceChatSimilarityThreshold is the minimum similarity for grounding
// a chat reply in a stored business context.
const workspaceChatSimilarityThreshold = 0.5

// WorkspaceChat answers free-text workspace questions, grounded in the most
// similar stored business context when one is close enough.
type WorkspaceChat interface {
	Execute(ctx context.Context, query string) (string, error)
}

// WorkspaceChatImpl is the implementation of the WorkspaceChat use case.
type WorkspaceChatImpl struct {
	repo      domain.BusinessContextRepository
	embedder  GenerateEmbedding
	llmClient domain.LLMClient
	model     string
	logger    *log.Logger
}

// NewWorkspaceChatImpl creates a new instance of WorkspaceChatImpl.
func NewWorkspaceChatImpl(
	repo domain.BusinessContextRepository,
	embedder GenerateEmbedding,
	c domain.LLMClient,
	model string,
	logger *log.Logger,
) WorkspaceChatImpl {
	return WorkspaceChatImpl{
		repo:      repo,
		embedder:  embedder,
		llmClient: c,
		model:     model,
		logger:    logger,
	}
}

// Execute answers the query. Context lookup failures degrade to an
// ungrounded reply.
func (wc WorkspaceChatImpl) Execute(ctx context.Context, query string) (string, error) {
	spanCtx, span := telemetry.Start(ctx)
	defer span.End()

	if strings.TrimSpace(query) == "" {
		err := domain.NewValidationErr("query is required")
		telemetry.RecordErrorAndStatus(span, err)
		return "", err
	}

	messages, err := loadPromptMessages("prompts/workspace_chat.yml")
	if telemetry.RecordErrorAndStatus(span, err) {
		return "", err
	}

	if businessContext, found := wc.findRelevantContext(spanCtx, query); found {
		messages[0].Content += "\n\nBusiness context:\n" + businessInfo(businessContext.Profile)
	}

	messages = append(messages, domain.LLMChatMessage{
		Role:    domain.ChatRole_User,
		Content: query,
	})

	resp, err := wc.llmClient.Chat(spanCtx, domain.LLMChatRequest{
		Model:    wc.model,
		Messages: messages,
	})
	if telemetry.RecordErrorAndStatus(span, err) {
		return "", err
	}
	RecordLLMTokensUsed(spanCtx, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	return resp.Content, nil
}

// findRelevantContext returns the nearest stored context when its cosine
// similarity to the query reaches the grounding threshold.
func (wc WorkspaceChatImpl) findRelevantContext(ctx context.Context, query string) (domain.BusinessContext, bool) {
	queryEmbedding, err := wc.embedder.Execute(ctx, query)
	if err != nil {
		wc.logger.Printf("failed to generate query embedding: %v", err)
		return domain.BusinessContext{}, false
	}

	candidates, err := wc.repo.SearchSimilarContexts(ctx, queryEmbedding, 1)
	if err != nil {
		wc.logger.Printf("failed to search business contexts: %v", err)
		return domain.BusinessContext{}, false
	}
	if len(candidates) == 0 {
		return domain.BusinessContext{}, false
	}

	score, ok := common.CosineSimilarity(queryEmbedding, candidates[0].Embedding)
	if !ok || score < workspaceChatSimilarityThreshold {
		return domain.BusinessContext{}, false
	}
	return candidates[0], true
}

// businessInfo renders the profile block appended to the system prompt.
func businessInfo(profile domain.BusinessProfile) string {
	info := fmt.Sprintf(
		"Business name: %s\nType: %s\nDescription: %s\n",
		stringValue(profile.Name), stringValue(profile.Type), stringValue(profile.Description),
	)
	if len(profile.ProductsServices) > 0 {
		info += "Products/Services: " + strings.Join(profile.ProductsServices, ", ") + "\n"
	}
	return info
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// InitWorkspaceChat initializes the WorkspaceChat use case.
type InitWorkspaceChat struct {
	Repo      domain.BusinessContextRepository `resolve:""`
	Embedder  GenerateEmbedding                `resolve:""`
	LLMClient domain.LLMClient                 `resolve:""`
	Logger    *log.Logger                      `resolve:""`
	Model     string                           `config:"LLM_CHAT_MODEL"`
}

// Initialize registers the WorkspaceChat use case implementation.
func (iwc InitWorkspaceChat) Initialize(ctx context.Context) (context.Context, error) {
	depend.Register[WorkspaceChat](NewWorkspaceChatImpl(
		iwc.Repo, iwc.Embedder, iwc.LLMClient, iwc.Model, iwc.Logger,
	))
	return ctx, nil
}
