package domain

import "context"

// ChatRole represents the role of a chat participant.
type ChatRole string

const (
	ChatRole_System    ChatRole = "system"
	ChatRole_User      ChatRole = "user"
	ChatRole_Assistant ChatRole = "assistant"
)

// LLMChatMessage represents a message in a chat request to the LLM API.
type LLMChatMessage struct {
	Role    ChatRole
	Content string
}

// LLMChatRequest represents a request to the LLM API.
type LLMChatRequest struct {
	Model    string
	Messages []LLMChatMessage
	// Optional parameters
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Tools       []LLMToolDefinition
	// ToolChoice forces the model to call the named function.
	ToolChoice *string
}

// LLMToolDefinition represents a function tool the model may call.
type LLMToolDefinition struct {
	Type     string
	Function LLMToolFunction
}

// LLMToolFunction represents a function tool for the LLM.
type LLMToolFunction struct {
	Description string
	Name        string
	Parameters  LLMToolFunctionParameters
}

// LLMToolFunctionParameters represents the parameters schema for a function tool.
type LLMToolFunctionParameters struct {
	Type       string
	Properties map[string]LLMToolFunctionParameterDetail
}

// LLMToolFunctionParameterDetail represents a single parameter in the function tool schema.
type LLMToolFunctionParameterDetail struct {
	Type        string
	Description string
	Items       string
	Required    bool
}

// LLMToolCall is a structured function call returned by the model.
type LLMToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// LLMUsage contains token usage information.
type LLMUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLMChatResponse represents the response from a chat request to the LLM API.
// ToolCalls is populated when the model answered with a function call instead
// of (or in addition to) plain text.
type LLMChatResponse struct {
	Content   string
	ToolCalls []LLMToolCall
	Usage     LLMUsage
}

// EmbedResponse represents the response from an embedding request.
type EmbedResponse struct {
	Embedding   []float64
	TotalTokens int
}

// LLMClient defines the interface for interacting with an LLM API.
type LLMClient interface {
	// Chat sends a chat request to the LLM and returns the full assistant response.
	Chat(ctx context.Context, req LLMChatRequest) (LLMChatResponse, error)

	// Embed generates an embedding vector for the given input text.
	Embed(ctx context.Context, model, input string) (EmbedResponse, error)

	// EmbedBatch generates one embedding per input, preserving input order.
	EmbedBatch(ctx context.Context, model string, inputs []string) ([]EmbedResponse, error)
}
