package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cleitonmarx/symbiont/depend"
	"github.com/google/uuid"
	"github.com/toon-format/toon-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chidihq/chidi-backend/internal/domain"
	"github.com/chidihq/chidi-backend/internal/telemetry"
)

// GenerateOnboardingResponse produces the next assistant turn for an
// onboarding session, keyed on the current step.
type GenerateOnboardingResponse interface {
	// Execute generates the next assistant turn. The LLM path is tried
	// first; on any failure the fixed per-step script is used instead.
	Execute(ctx context.Context, session domain.OnboardingSession, userMessage string) domain.ConversationTurn
}

// GenerateOnboardingResponseImpl is the implementation of the
// GenerateOnboardingResponse use case.
type GenerateOnboardingResponseImpl struct {
	llmClient    domain.LLMClient
	model        string
	timeProvider domain.CurrentTimeProvider
	logger       *log.Logger
}

// NewGenerateOnboardingResponseImpl creates a new instance of
// GenerateOnboardingResponseImpl.
func NewGenerateOnboardingResponseImpl(c domain.LLMClient, model string, tp domain.CurrentTimeProvider, logger *log.Logger) GenerateOnboardingResponseImpl {
	return GenerateOnboardingResponseImpl{
		llmClient:    c,
		model:        model,
		timeProvider: tp,
		logger:       logger,
	}
}

// Execute generates the next assistant turn for the session.
func (gr GenerateOnboardingResponseImpl) Execute(ctx context.Context, session domain.OnboardingSession, userMessage string) domain.ConversationTurn {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.Int("onboarding.step", session.CurrentStep)),
	)
	defer span.End()

	if gr.model != "" {
		turn, err := gr.generateWithLLM(spanCtx, session)
		if err == nil {
			return turn
		}
		gr.logger.Printf("LLM onboarding response failed, using scripted step: %v", err)
	}

	return gr.scriptedTurn(session, userMessage)
}

// generateWithLLM asks the model to produce the current step's turn through
// a step-specific function schema. The function name in the reply, not the
// step number, selects the turn shape.
func (gr GenerateOnboardingResponseImpl) generateWithLLM(ctx context.Context, session domain.OnboardingSession) (domain.ConversationTurn, error) {
	prompts, err := loadPromptMessages("prompts/onboarding_steps.yml")
	if err != nil {
		return domain.ConversationTurn{}, err
	}
	if session.CurrentStep < 1 || session.CurrentStep > len(prompts) {
		return domain.ConversationTurn{}, fmt.Errorf("no prompt for step %d", session.CurrentStep)
	}

	promptData, err := toon.MarshalString(struct {
		CurrentStep  int               `json:"current_step"`
		TotalSteps   int               `json:"total_steps"`
		BusinessData map[string]string `json:"business_data"`
	}{
		CurrentStep:  session.CurrentStep,
		TotalSteps:   session.TotalSteps,
		BusinessData: session.BusinessData,
	}, toon.WithLengthMarkers(true))
	if err != nil {
		return domain.ConversationTurn{}, fmt.Errorf("failed to marshal onboarding data: %w", err)
	}

	system := prompts[session.CurrentStep-1]
	system.Content = fmt.Sprintf(system.Content, promptData)

	messages := append([]domain.LLMChatMessage{system}, NormalizeHistory(session.Transcript, generationHistoryLimit)...)

	resp, err := gr.llmClient.Chat(ctx, domain.LLMChatRequest{
		Model:    gr.model,
		Messages: messages,
		Tools:    []domain.LLMToolDefinition{stepTool(session.CurrentStep)},
	})
	if err != nil {
		return domain.ConversationTurn{}, err
	}
	RecordLLMTokensUsed(ctx, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	now := gr.timeProvider.Now()

	if len(resp.ToolCalls) == 0 {
		if strings.TrimSpace(resp.Content) == "" {
			return domain.ConversationTurn{}, fmt.Errorf("empty LLM response")
		}
		return domain.NewTextTurn(domain.TurnRole_Assistant, strings.TrimSpace(resp.Content), now), nil
	}

	return buildTurnFromToolCall(resp.ToolCalls[0], resp.Content, now)
}

// buildTurnFromToolCall constructs the assistant turn selected by the
// function name. An unrecognized name degrades to a plain text turn.
func buildTurnFromToolCall(call domain.LLMToolCall, fallbackContent string, now time.Time) (domain.ConversationTurn, error) {
	switch call.Name {
	case "create_text_message":
		var args struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return domain.ConversationTurn{}, err
		}
		return domain.NewTextTurn(domain.TurnRole_Assistant, args.Content, now), nil

	case "create_options_message":
		var args struct {
			Content string   `json:"content"`
			Options []string `json:"options"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return domain.ConversationTurn{}, err
		}
		return domain.ConversationTurn{
			ID:      uuid.New(),
			Role:    domain.TurnRole_Assistant,
			Content: args.Content,
			Payload: domain.OptionsPayload{
				Options: buildOptions("business_type", args.Options),
			},
			CreatedAt: now,
		}, nil

	case "create_form_message":
		var args struct {
			Content string   `json:"content"`
			Fields  []string `json:"fields"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return domain.ConversationTurn{}, err
		}
		inputs := make([]domain.FormInput, len(args.Fields))
		for i, label := range args.Fields {
			inputs[i] = domain.FormInput{
				ID:    slugify(label),
				Type:  "text",
				Label: label,
			}
		}
		return domain.ConversationTurn{
			ID:        uuid.New(),
			Role:      domain.TurnRole_Assistant,
			Content:   args.Content,
			Payload:   domain.FormPayload{Inputs: inputs},
			CreatedAt: now,
		}, nil

	case "create_rich_text_message":
		var args struct {
			Content string   `json:"content"`
			HTML    string   `json:"html"`
			Options []string `json:"options"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return domain.ConversationTurn{}, err
		}
		return domain.ConversationTurn{
			ID:      uuid.New(),
			Role:    domain.TurnRole_Assistant,
			Content: args.Content,
			Payload: domain.RichContentPayload{
				Content: domain.RichContent{HTML: args.HTML},
				Options: buildOptions("audience", args.Options),
			},
			CreatedAt: now,
		}, nil

	case "create_action_card_message":
		var args struct {
			Content     string `json:"content"`
			Title       string `json:"title"`
			Description string `json:"description"`
			ActionText  string `json:"action_text"`
			Icon        string `json:"icon"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return domain.ConversationTurn{}, err
		}
		return domain.ConversationTurn{
			ID:      uuid.New(),
			Role:    domain.TurnRole_Assistant,
			Content: args.Content,
			Payload: domain.ActionCardPayload{
				Card: domain.ActionCard{
					Type:        "upload",
					Title:       args.Title,
					Description: args.Description,
					ActionText:  args.ActionText,
					Icon:        args.Icon,
				},
			},
			CreatedAt: now,
		}, nil
	}

	// Unrecognized function name: degrade to a plain text turn.
	var args struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err == nil && args.Content != "" {
		return domain.NewTextTurn(domain.TurnRole_Assistant, args.Content, now), nil
	}
	if strings.TrimSpace(fallbackContent) != "" {
		return domain.NewTextTurn(domain.TurnRole_Assistant, strings.TrimSpace(fallbackContent), now), nil
	}
	return domain.ConversationTurn{}, fmt.Errorf("unusable tool call %q", call.Name)
}

// scriptedTurn is the fixed per-step fallback script.
func (gr GenerateOnboardingResponseImpl) scriptedTurn(session domain.OnboardingSession, userMessage string) domain.ConversationTurn {
	now := gr.timeProvider.Now()

	switch session.CurrentStep {
	case 1:
		return domain.NewTextTurn(domain.TurnRole_Assistant,
			"Let's get started with setting up your workspace. What's the name of your business?", now)

	case 2:
		return domain.ConversationTurn{
			ID:      uuid.New(),
			Role:    domain.TurnRole_Assistant,
			Content: "What type of business do you have?",
			Payload: domain.OptionsPayload{Options: []domain.MessageOption{
				{ID: "business_type", Text: "Retail", Value: "retail"},
				{ID: "business_type", Text: "Service", Value: "service"},
				{ID: "business_type", Text: "Manufacturing", Value: "manufacturing"},
				{ID: "business_type", Text: "Technology", Value: "technology"},
				{ID: "business_type", Text: "Other", Value: "other"},
			}},
			CreatedAt: now,
		}

	case 3:
		return domain.ConversationTurn{
			ID:      uuid.New(),
			Role:    domain.TurnRole_Assistant,
			Content: "Please provide some details about your business:",
			Payload: domain.FormPayload{Inputs: []domain.FormInput{
				{
					ID:          "description",
					Type:        "textarea",
					Label:       "Business Description",
					Placeholder: "Describe your business in a few sentences",
					Required:    true,
				},
				{
					ID:          "employees",
					Type:        "number",
					Label:       "Number of Employees",
					Placeholder: "e.g., 10",
				},
				{
					ID:          "founded",
					Type:        "text",
					Label:       "Year Founded",
					Placeholder: "e.g., 2020",
				},
			}},
			CreatedAt: now,
		}

	case 4:
		return domain.ConversationTurn{
			ID:      uuid.New(),
			Role:    domain.TurnRole_Assistant,
			Content: "Who is your target audience?",
			Payload: domain.RichContentPayload{
				Content: domain.RichContent{
					HTML: "<p>Understanding your <strong>target audience</strong> helps us customize your workspace.</p>",
				},
				Options: []domain.MessageOption{
					{ID: "audience", Text: "Consumers (B2C)", Value: "b2c"},
					{ID: "audience", Text: "Businesses (B2B)", Value: "b2b"},
					{ID: "audience", Text: "Both B2B and B2C", Value: "both"},
				},
			},
			CreatedAt: now,
		}

	case 5:
		return domain.ConversationTurn{
			ID:      uuid.New(),
			Role:    domain.TurnRole_Assistant,
			Content: "Would you like to import existing business data?",
			Payload: domain.ActionCardPayload{Card: domain.ActionCard{
				Type:        "upload",
				Title:       "Import Business Data",
				Description: "Upload a CSV or Excel file with your business data",
				ActionText:  "Upload File",
				Icon:        "upload",
			}},
			CreatedAt: now,
		}
	}

	return domain.NewTextTurn(domain.TurnRole_Assistant,
		"I received your message: "+userMessage, now)
}

// stepTool returns the function schema offered to the model for a step.
func stepTool(step int) domain.LLMToolDefinition {
	switch step {
	case 2:
		return domain.LLMToolDefinition{
			Type: "function",
			Function: domain.LLMToolFunction{
				Name:        "create_options_message",
				Description: "Send a question with a list of selectable choices",
				Parameters: domain.LLMToolFunctionParameters{
					Type: "object",
					Properties: map[string]domain.LLMToolFunctionParameterDetail{
						"content": {Type: "string", Description: "Question text", Required: true},
						"options": {Type: "array", Items: "string", Description: "Display texts of the choices", Required: true},
					},
				},
			},
		}
	case 3:
		return domain.LLMToolDefinition{
			Type: "function",
			Function: domain.LLMToolFunction{
				Name:        "create_form_message",
				Description: "Send a request with a form to fill in",
				Parameters: domain.LLMToolFunctionParameters{
					Type: "object",
					Properties: map[string]domain.LLMToolFunctionParameterDetail{
						"content": {Type: "string", Description: "Request text", Required: true},
						"fields":  {Type: "array", Items: "string", Description: "Labels of the form fields", Required: true},
					},
				},
			},
		}
	case 4:
		return domain.LLMToolDefinition{
			Type: "function",
			Function: domain.LLMToolFunction{
				Name:        "create_rich_text_message",
				Description: "Send a question with formatted content and selectable choices",
				Parameters: domain.LLMToolFunctionParameters{
					Type: "object",
					Properties: map[string]domain.LLMToolFunctionParameterDetail{
						"content": {Type: "string", Description: "Question text", Required: true},
						"html":    {Type: "string", Description: "Formatted HTML explanation"},
						"options": {Type: "array", Items: "string", Description: "Display texts of the choices", Required: true},
					},
				},
			},
		}
	case 5:
		return domain.LLMToolDefinition{
			Type: "function",
			Function: domain.LLMToolFunction{
				Name:        "create_action_card_message",
				Description: "Send an offer with an action card",
				Parameters: domain.LLMToolFunctionParameters{
					Type: "object",
					Properties: map[string]domain.LLMToolFunctionParameterDetail{
						"content":     {Type: "string", Description: "Offer text", Required: true},
						"title":       {Type: "string", Description: "Card title", Required: true},
						"description": {Type: "string", Description: "Card description", Required: true},
						"action_text": {Type: "string", Description: "Card action button text", Required: true},
						"icon":        {Type: "string", Description: "Card icon name"},
					},
				},
			},
		}
	}
	return domain.LLMToolDefinition{
		Type: "function",
		Function: domain.LLMToolFunction{
			Name:        "create_text_message",
			Description: "Send a plain text message",
			Parameters: domain.LLMToolFunctionParameters{
				Type: "object",
				Properties: map[string]domain.LLMToolFunctionParameterDetail{
					"content": {Type: "string", Description: "Message text", Required: true},
				},
			},
		},
	}
}

// buildOptions derives selectable options from display texts.
func buildOptions(groupID string, texts []string) []domain.MessageOption {
	options := make([]domain.MessageOption, len(texts))
	for i, text := range texts {
		options[i] = domain.MessageOption{
			ID:    groupID,
			Text:  text,
			Value: slugify(text),
		}
	}
	return options
}

// slugify lowercases a label into an identifier.
func slugify(text string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteRune('_')
		}
	}
	return strings.Trim(sb.String(), "_")
}

// InitGenerateOnboardingResponse initializes the GenerateOnboardingResponse
// use case.
type InitGenerateOnboardingResponse struct {
	LLMClient    domain.LLMClient           `resolve:""`
	TimeProvider domain.CurrentTimeProvider `resolve:""`
	Logger       *log.Logger                `resolve:""`
	Model        string                     `config:"LLM_CHAT_MODEL" default:""`
}

// Initialize registers the GenerateOnboardingResponse use case
// implementation.
func (igr InitGenerateOnboardingResponse) Initialize(ctx context.Context) (context.Context, error) {
	depend.Register[GenerateOnboardingResponse](NewGenerateOnboardingResponseImpl(
		igr.LLMClient, igr.Model, igr.TimeProvider, igr.Logger,
	))
	return ctx, nil
}
