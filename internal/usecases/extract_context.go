package usecases

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/cleitonmarx/symbiont/depend"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.yaml.in/yaml/v3"

	"github.com/chidihq/chidi-backend/internal/common"
	"github.com/chidihq/chidi-backend/internal/domain"
	"github.com/chidihq/chidi-backend/internal/telemetry"
)

//go:embed prompts/*.yml
var promptFiles embed.FS

// loadPromptMessages reads an embedded prompt file into chat messages.
func loadPromptMessages(name string) ([]domain.LLMChatMessage, error) {
	file, err := promptFiles.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open prompt %s: %w", name, err)
	}
	defer file.Close() //nolint:errcheck

	messages := []domain.LLMChatMessage{}
	if err := yaml.NewDecoder(file).Decode(&messages); err != nil {
		return nil, fmt.Errorf("failed to decode prompt %s: %w", name, err)
	}
	return messages, nil
}

// ExtractContext turns an onboarding session into a structured business
// context via LLM function calling, falling back to rule-based extraction
// when the profile step fails.
type ExtractContext interface {
	// Execute runs the extraction pipeline: profile, keywords, insights and
	// recommendations, in that order.
	Execute(ctx context.Context, businessID string, session domain.OnboardingSession) (domain.BusinessContext, error)
	// ExecuteBasic builds a context from the collected business data alone,
	// without the LLM. It never fails.
	ExecuteBasic(businessID string, session domain.OnboardingSession) domain.BusinessContext
}

// ExtractContextImpl is the implementation of the ExtractContext use case.
type ExtractContextImpl struct {
	llmClient    domain.LLMClient
	model        string
	timeProvider domain.CurrentTimeProvider
	logger       *log.Logger
}

// NewExtractContextImpl creates a new instance of ExtractContextImpl.
func NewExtractContextImpl(c domain.LLMClient, model string, tp domain.CurrentTimeProvider, logger *log.Logger) ExtractContextImpl {
	return ExtractContextImpl{
		llmClient:    c,
		model:        model,
		timeProvider: tp,
		logger:       logger,
	}
}

// Execute runs the four extraction steps in sequence. The profile step
// gates the pipeline: when it fails, the whole result comes from
// ExecuteBasic. The remaining steps degrade to empty values on failure.
func (ec ExtractContextImpl) Execute(ctx context.Context, businessID string, session domain.OnboardingSession) (domain.BusinessContext, error) {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.String("business_id", businessID)),
	)
	defer span.End()

	history := NormalizeHistoryForExtraction(session.Transcript, session.BusinessData)

	profile, err := ec.extractProfile(spanCtx, history)
	if err != nil {
		ec.logger.Printf("profile extraction failed, using basic extraction: %v", err)
		return ec.ExecuteBasic(businessID, session), nil
	}

	keywords := ec.extractKeywords(spanCtx, history, profile)
	insights := ec.generateInsights(spanCtx, history, profile)
	recommendations := ec.generateRecommendations(spanCtx, profile, insights)

	now := ec.timeProvider.Now()
	return domain.BusinessContext{
		BusinessID:      businessID,
		Profile:         profile,
		Keywords:        keywords,
		Insights:        insights,
		Recommendations: recommendations,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// ExecuteBasic reads the collected business data directly, merging in any
// form submissions from the transcript. Unparsable numbers are dropped.
func (ec ExtractContextImpl) ExecuteBasic(businessID string, session domain.OnboardingSession) domain.BusinessContext {
	data := map[string]string{}
	for _, turn := range session.Transcript {
		if submitted, ok := turn.Payload.(domain.FormSubmittedPayload); ok {
			for key, value := range submitted.Fields {
				data[key] = value
			}
		}
	}
	for key, value := range session.BusinessData {
		data[key] = value
	}

	var profile domain.BusinessProfile
	if v, ok := data["name"]; ok {
		profile.Name = common.Ptr(v)
	}
	if v, ok := data["type"]; ok {
		profile.Type = common.Ptr(v)
	}
	if v, ok := data["description"]; ok {
		profile.Description = common.Ptr(v)
	}
	if v, ok := data["employees"]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			profile.Employees = common.Ptr(n)
		}
	}
	yearValue, ok := data["yearFounded"]
	if !ok {
		// The details form collects the founding year under "founded".
		yearValue = data["founded"]
	}
	if year, found := domain.ExtractFoundingYear(yearValue); found {
		profile.YearFounded = common.Ptr(year)
	}
	if v, ok := data["targetAudience"]; ok {
		profile.TargetAudience = common.Ptr(v)
	}

	keywords := []string{}
	if profile.Type != nil && *profile.Type != "" {
		keywords = append(keywords, *profile.Type)
	}

	now := ec.timeProvider.Now()
	return domain.BusinessContext{
		BusinessID:      businessID,
		Profile:         profile,
		Keywords:        keywords,
		Insights:        map[string]string{},
		Recommendations: []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// extractProfile asks the model to fill the business profile schema.
func (ec ExtractContextImpl) extractProfile(ctx context.Context, history []domain.LLMChatMessage) (domain.BusinessProfile, error) {
	messages, err := loadPromptMessages("prompts/extract_profile.yml")
	if err != nil {
		return domain.BusinessProfile{}, err
	}
	messages = append(messages, history...)

	resp, err := ec.llmClient.Chat(ctx, domain.LLMChatRequest{
		Model:       ec.model,
		Messages:    messages,
		Temperature: common.Ptr(0.1),
		Tools:       []domain.LLMToolDefinition{profileTool()},
		ToolChoice:  common.Ptr("extract_business_profile"),
	})
	if err != nil {
		return domain.BusinessProfile{}, err
	}
	RecordLLMTokensUsed(ctx, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.ToolCalls) == 0 {
		return domain.BusinessProfile{}, nil
	}

	var profile domain.BusinessProfile
	if err := json.Unmarshal([]byte(resp.ToolCalls[0].Arguments), &profile); err != nil {
		return domain.BusinessProfile{}, fmt.Errorf("failed to parse profile arguments: %w", err)
	}
	return profile, nil
}

// extractKeywords asks the model for 5-10 keywords. Any failure yields an
// empty list.
func (ec ExtractContextImpl) extractKeywords(ctx context.Context, history []domain.LLMChatMessage, profile domain.BusinessProfile) []string {
	messages, err := loadPromptMessages("prompts/extract_keywords.yml")
	if err != nil {
		ec.logger.Printf("keyword extraction failed: %v", err)
		return []string{}
	}
	messages = append(messages, profileMessage(profile))
	messages = append(messages, history...)

	resp, err := ec.llmClient.Chat(ctx, domain.LLMChatRequest{
		Model:       ec.model,
		Messages:    messages,
		Temperature: common.Ptr(0.3),
		Tools:       []domain.LLMToolDefinition{keywordsTool()},
		ToolChoice:  common.Ptr("extract_keywords"),
	})
	if err != nil {
		ec.logger.Printf("keyword extraction failed: %v", err)
		return []string{}
	}
	RecordLLMTokensUsed(ctx, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.ToolCalls) == 0 {
		return []string{}
	}

	var args struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(resp.ToolCalls[0].Arguments), &args); err != nil {
		ec.logger.Printf("keyword extraction failed: %v", err)
		return []string{}
	}
	if args.Keywords == nil {
		return []string{}
	}
	return args.Keywords
}

// generateInsights asks the model for named insight categories, dropping
// empty values. Any failure yields an empty mapping.
func (ec ExtractContextImpl) generateInsights(ctx context.Context, history []domain.LLMChatMessage, profile domain.BusinessProfile) map[string]string {
	messages, err := loadPromptMessages("prompts/business_insights.yml")
	if err != nil {
		ec.logger.Printf("insight generation failed: %v", err)
		return map[string]string{}
	}
	messages = append(messages, profileMessage(profile))
	messages = append(messages, history...)

	resp, err := ec.llmClient.Chat(ctx, domain.LLMChatRequest{
		Model:       ec.model,
		Messages:    messages,
		Temperature: common.Ptr(0.5),
		Tools:       []domain.LLMToolDefinition{insightsTool()},
		ToolChoice:  common.Ptr("generate_business_insights"),
	})
	if err != nil {
		ec.logger.Printf("insight generation failed: %v", err)
		return map[string]string{}
	}
	RecordLLMTokensUsed(ctx, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.ToolCalls) == 0 {
		return map[string]string{}
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(resp.ToolCalls[0].Arguments), &args); err != nil {
		ec.logger.Printf("insight generation failed: %v", err)
		return map[string]string{}
	}

	insights := map[string]string{}
	for category, value := range args {
		if text, ok := value.(string); ok && text != "" {
			insights[category] = text
		}
	}
	return insights
}

// generateRecommendations asks the model for actionable recommendations
// from the profile and insights alone, without the transcript. Any failure
// yields an empty list.
func (ec ExtractContextImpl) generateRecommendations(ctx context.Context, profile domain.BusinessProfile, insights map[string]string) []string {
	messages, err := loadPromptMessages("prompts/recommendations.yml")
	if err != nil {
		ec.logger.Printf("recommendation generation failed: %v", err)
		return []string{}
	}
	messages = append(messages, profileMessage(profile), insightsMessage(insights))

	resp, err := ec.llmClient.Chat(ctx, domain.LLMChatRequest{
		Model:       ec.model,
		Messages:    messages,
		Temperature: common.Ptr(0.5),
		Tools:       []domain.LLMToolDefinition{recommendationsTool()},
		ToolChoice:  common.Ptr("generate_recommendations"),
	})
	if err != nil {
		ec.logger.Printf("recommendation generation failed: %v", err)
		return []string{}
	}
	RecordLLMTokensUsed(ctx, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.ToolCalls) == 0 {
		return []string{}
	}

	var args struct {
		Recommendations []string `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(resp.ToolCalls[0].Arguments), &args); err != nil {
		ec.logger.Printf("recommendation generation failed: %v", err)
		return []string{}
	}
	if args.Recommendations == nil {
		return []string{}
	}
	return args.Recommendations
}

// profileMessage renders the extracted profile as a user message for the
// follow-up steps.
func profileMessage(profile domain.BusinessProfile) domain.LLMChatMessage {
	return domain.LLMChatMessage{
		Role:    domain.ChatRole_User,
		Content: "Business profile information:\n" + profile.Render(),
	}
}

// insightsMessage renders the generated insights as a user message for the
// recommendation step.
func insightsMessage(insights map[string]string) domain.LLMChatMessage {
	var sb strings.Builder
	sb.WriteString("Business insights:\n")
	for _, category := range sortedKeys(insights) {
		fmt.Fprintf(&sb, "- %s: %s\n", category, insights[category])
	}
	return domain.LLMChatMessage{Role: domain.ChatRole_User, Content: sb.String()}
}

func profileTool() domain.LLMToolDefinition {
	return domain.LLMToolDefinition{
		Type: "function",
		Function: domain.LLMToolFunction{
			Name:        "extract_business_profile",
			Description: "Extract business profile information from conversation",
			Parameters: domain.LLMToolFunctionParameters{
				Type: "object",
				Properties: map[string]domain.LLMToolFunctionParameterDetail{
					"name":                  {Type: "string", Description: "Business name"},
					"type":                  {Type: "string", Description: "Business type/industry"},
					"description":           {Type: "string", Description: "Business description"},
					"employees":             {Type: "integer", Description: "Number of employees"},
					"year_founded":          {Type: "integer", Description: "Year the business was founded"},
					"target_audience":       {Type: "string", Description: "Target audience (B2B, B2C, Both)"},
					"products_services":     {Type: "array", Items: "string", Description: "Products or services offered"},
					"key_challenges":        {Type: "array", Items: "string", Description: "Key business challenges"},
					"goals":                 {Type: "array", Items: "string", Description: "Business goals"},
					"unique_selling_points": {Type: "array", Items: "string", Description: "Unique selling points"},
					"competitors":           {Type: "array", Items: "string", Description: "Known competitors"},
				},
			},
		},
	}
}

func keywordsTool() domain.LLMToolDefinition {
	return domain.LLMToolDefinition{
		Type: "function",
		Function: domain.LLMToolFunction{
			Name:        "extract_keywords",
			Description: "Extract business keywords",
			Parameters: domain.LLMToolFunctionParameters{
				Type: "object",
				Properties: map[string]domain.LLMToolFunctionParameterDetail{
					"keywords": {Type: "array", Items: "string", Description: "List of business keywords", Required: true},
				},
			},
		},
	}
}

func insightsTool() domain.LLMToolDefinition {
	return domain.LLMToolDefinition{
		Type: "function",
		Function: domain.LLMToolFunction{
			Name:        "generate_business_insights",
			Description: "Generate business insights",
			Parameters: domain.LLMToolFunctionParameters{
				Type: "object",
				Properties: map[string]domain.LLMToolFunctionParameterDetail{
					"market_positioning":    {Type: "string", Description: "Insight about market positioning"},
					"growth_opportunities":  {Type: "string", Description: "Insight about growth opportunities"},
					"potential_challenges":  {Type: "string", Description: "Insight about potential challenges"},
					"competitive_advantage": {Type: "string", Description: "Insight about competitive advantage"},
					"customer_needs":        {Type: "string", Description: "Insight about customer needs"},
				},
			},
		},
	}
}

func recommendationsTool() domain.LLMToolDefinition {
	return domain.LLMToolDefinition{
		Type: "function",
		Function: domain.LLMToolFunction{
			Name:        "generate_recommendations",
			Description: "Generate business recommendations",
			Parameters: domain.LLMToolFunctionParameters{
				Type: "object",
				Properties: map[string]domain.LLMToolFunctionParameterDetail{
					"recommendations": {Type: "array", Items: "string", Description: "List of business recommendations", Required: true},
				},
			},
		},
	}
}

// InitExtractContext initializes the ExtractContext use case.
type InitExtractContext struct {
	LLMClient    domain.LLMClient           `resolve:""`
	TimeProvider domain.CurrentTimeProvider `resolve:""`
	Logger       *log.Logger                `resolve:""`
	Model        string                     `config:"LLM_CHAT_MODEL"`
}

// Initialize registers the ExtractContext use case implementation.
func (iec InitExtractContext) Initialize(ctx context.Context) (context.Context, error) {
	depend.Register[ExtractContext](NewExtractContextImpl(
		iec.LLMClient, iec.Model, iec.TimeProvider, iec.Logger,
	))
	return ctx, nil
}
