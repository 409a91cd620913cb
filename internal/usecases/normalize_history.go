package usecases

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chidihq/chidi-backend/internal/domain"
)

// generationHistoryLimit caps the number of normalized entries fed to the
// response generator to bound prompt size. Extraction uses the whole
// transcript.
const generationHistoryLimit = 10

// NormalizeHistory flattens a transcript into role/content chat messages.
// When limit is positive, only the last limit entries are returned.
func NormalizeHistory(transcript []domain.ConversationTurn, limit int) []domain.LLMChatMessage {
	var messages []domain.LLMChatMessage
	for _, turn := range transcript {
		msg, ok := normalizeTurn(turn)
		if !ok {
			continue
		}
		messages = append(messages, msg)
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages
}

// NormalizeHistoryForExtraction flattens the whole transcript and prepends
// a synthetic system entry summarizing the collected business data when
// the mapping is non-empty.
func NormalizeHistoryForExtraction(transcript []domain.ConversationTurn, businessData map[string]string) []domain.LLMChatMessage {
	var messages []domain.LLMChatMessage
	if len(businessData) > 0 {
		var sb strings.Builder
		sb.WriteString("Business data collected during onboarding:\n")
		for _, key := range sortedKeys(businessData) {
			fmt.Fprintf(&sb, "- %s: %s\n", key, businessData[key])
		}
		messages = append(messages, domain.LLMChatMessage{
			Role:    domain.ChatRole_System,
			Content: sb.String(),
		})
	}
	return append(messages, NormalizeHistory(transcript, 0)...)
}

// normalizeTurn maps one turn to a chat message. Turn kinds with no chat
// rendering are skipped.
func normalizeTurn(turn domain.ConversationTurn) (domain.LLMChatMessage, bool) {
	switch turn.Role {
	case domain.TurnRole_User:
		return normalizeUserTurn(turn)
	case domain.TurnRole_Assistant:
		return normalizeAssistantTurn(turn)
	}
	return domain.LLMChatMessage{}, false
}

func normalizeUserTurn(turn domain.ConversationTurn) (domain.LLMChatMessage, bool) {
	switch payload := turn.Payload.(type) {
	case nil, domain.TextPayload:
		return domain.LLMChatMessage{Role: domain.ChatRole_User, Content: turn.Content}, true
	case domain.OptionSelectedPayload:
		return domain.LLMChatMessage{
			Role:    domain.ChatRole_User,
			Content: "I selected: " + payload.Option.Text,
		}, true
	case domain.FormSubmittedPayload:
		var sb strings.Builder
		sb.WriteString("I submitted the form with the following information:\n")
		for _, key := range sortedKeys(payload.Fields) {
			fmt.Fprintf(&sb, "- %s: %s\n", key, payload.Fields[key])
		}
		return domain.LLMChatMessage{Role: domain.ChatRole_User, Content: sb.String()}, true
	}
	return domain.LLMChatMessage{}, false
}

func normalizeAssistantTurn(turn domain.ConversationTurn) (domain.LLMChatMessage, bool) {
	switch payload := turn.Payload.(type) {
	case nil, domain.TextPayload:
		return domain.LLMChatMessage{Role: domain.ChatRole_Assistant, Content: turn.Content}, true
	case domain.OptionsPayload:
		return domain.LLMChatMessage{
			Role:    domain.ChatRole_Assistant,
			Content: turn.Content + "\nOptions: " + strings.Join(optionTexts(payload.Options), ", "),
		}, true
	case domain.FormPayload:
		labels := make([]string, len(payload.Inputs))
		for i, input := range payload.Inputs {
			labels[i] = input.Label
		}
		return domain.LLMChatMessage{
			Role:    domain.ChatRole_Assistant,
			Content: turn.Content + "\nForm with fields: " + strings.Join(labels, ", "),
		}, true
	case domain.RichContentPayload:
		return domain.LLMChatMessage{Role: domain.ChatRole_Assistant, Content: turn.Content}, true
	}
	return domain.LLMChatMessage{}, false
}

func optionTexts(options []domain.MessageOption) []string {
	texts := make([]string, len(options))
	for i, option := range options {
		texts[i] = option.Text
	}
	return texts
}

// sortedKeys returns the map keys in ascending order so rendered prompts
// are deterministic.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
