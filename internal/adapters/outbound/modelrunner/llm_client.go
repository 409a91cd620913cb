package modelrunner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/cleitonmarx/symbiont/depend"

	"github.com/chidihq/chidi-backend/internal/domain"
	"github.com/chidihq/chidi-backend/internal/telemetry"
)

// LLMClient adapts DRMAPIClient to the domain.LLMClient interface
type LLMClient struct {
	client DRMAPIClient
}

// NewLLMClientAdapter creates a new adapter
func NewLLMClientAdapter(client DRMAPIClient) LLMClient {
	return LLMClient{client: client}
}

// Chat implements domain.LLMClient.Chat
func (a LLMClient) Chat(ctx context.Context, req domain.LLMChatRequest) (domain.LLMChatResponse, error) {
	spanCtx, span := telemetry.Start(ctx)
	defer span.End()

	adapterReq := ChatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Messages:    make([]ChatMessage, len(req.Messages)),
		Tools:       mapTools(req.Tools),
	}
	if req.ToolChoice != nil {
		adapterReq.ToolChoice = &ToolChoice{
			Type:     "function",
			Function: ToolChoiceFunc{Name: *req.ToolChoice},
		}
	}

	for i, msg := range req.Messages {
		adapterReq.Messages[i] = ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	resp, err := a.client.Chat(spanCtx, adapterReq)
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.LLMChatResponse{}, err
	}

	if len(resp.Choices) == 0 {
		err := errors.New("no choices in response")
		telemetry.RecordErrorAndStatus(span, err)
		return domain.LLMChatResponse{}, err
	}

	out := domain.LLMChatResponse{
		Content: resp.Choices[0].Message.Content,
	}
	for _, tc := range resp.Choices[0].Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, domain.LLMToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if resp.Usage != nil {
		out.Usage = domain.LLMUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

// Embed implements domain.LLMClient.Embed
func (a LLMClient) Embed(ctx context.Context, model, input string) (domain.EmbedResponse, error) {
	spanCtx, span := telemetry.Start(ctx)
	defer span.End()

	resp, err := a.client.Embeddings(spanCtx, EmbeddingsRequest{Model: model, Input: input})
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.EmbedResponse{}, err
	}
	if len(resp.Data) == 0 {
		err := errors.New("no embedding data in response")
		telemetry.RecordErrorAndStatus(span, err)
		return domain.EmbedResponse{}, err
	}

	return domain.EmbedResponse{
		Embedding:   resp.Data[0].Embedding,
		TotalTokens: resp.Usage.TotalTokens,
	}, nil
}

// EmbedBatch implements domain.LLMClient.EmbedBatch
func (a LLMClient) EmbedBatch(ctx context.Context, model string, inputs []string) ([]domain.EmbedResponse, error) {
	spanCtx, span := telemetry.Start(ctx)
	defer span.End()

	resp, err := a.client.Embeddings(spanCtx, EmbeddingsRequest{Model: model, Input: inputs})
	if telemetry.RecordErrorAndStatus(span, err) {
		return nil, err
	}
	if len(resp.Data) != len(inputs) {
		err := fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(inputs))
		telemetry.RecordErrorAndStatus(span, err)
		return nil, err
	}

	// The API reports the index of each embedding; rely on it instead of
	// the slice order.
	out := make([]domain.EmbedResponse, len(inputs))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(out) {
			err := fmt.Errorf("embedding index out of range: %d", data.Index)
			telemetry.RecordErrorAndStatus(span, err)
			return nil, err
		}
		out[data.Index] = domain.EmbedResponse{Embedding: data.Embedding}
	}
	if len(out) > 0 {
		out[0].TotalTokens = resp.Usage.TotalTokens
	}
	return out, nil
}

func mapTools(tools []domain.LLMToolDefinition) []Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]Tool, len(tools))
	for i, t := range tools {
		props := make(map[string]ToolFuncParameterDetail, len(t.Function.Parameters.Properties))
		var required []string
		for name, detail := range t.Function.Parameters.Properties {
			d := ToolFuncParameterDetail{
				Type:        detail.Type,
				Description: detail.Description,
			}
			if detail.Items != "" {
				d.Items = &ToolFuncParameterItems{Type: detail.Items}
			}
			props[name] = d
			if detail.Required {
				required = append(required, name)
			}
		}
		sort.Strings(required)
		out[i] = Tool{
			Type: t.Type,
			Function: ToolFunc{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters: ToolFuncParameters{
					Type:       t.Function.Parameters.Type,
					Properties: props,
					Required:   required,
				},
			},
		}
	}
	return out
}

// InitLLMClient initializes the LLMClient dependency
type InitLLMClient struct {
	HttpClient *http.Client `resolve:""`
	LLMHost    string       `config:"LLM_MODEL_HOST"`
	LLMAPIKey  string       `config:"LLM_API_KEY" default:""`
}

// Initialize registers the LLMClient
func (i InitLLMClient) Initialize(ctx context.Context) (context.Context, error) {
	depend.Register[domain.LLMClient](NewLLMClientAdapter(
		NewDRMAPIClient(i.LLMHost, i.LLMAPIKey, i.HttpClient),
	))
	return ctx, nil
}
