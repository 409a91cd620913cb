package domain

import (
	"time"

	"github.com/google/uuid"
)

// TurnRole identifies who produced a conversation turn.
type TurnRole string

const (
	TurnRole_User      TurnRole = "user"
	TurnRole_Assistant TurnRole = "assistant"
)

// TurnKind identifies the shape of a conversation turn.
type TurnKind string

const (
	TurnKind_Text           TurnKind = "text"
	TurnKind_Options        TurnKind = "options"
	TurnKind_Form           TurnKind = "form"
	TurnKind_RichContent    TurnKind = "rich_content"
	TurnKind_ActionCard     TurnKind = "action_card"
	TurnKind_OptionSelected TurnKind = "option_selected"
	TurnKind_FormSubmitted  TurnKind = "form_submitted"
)

// MessageOption is a single selectable choice offered by the assistant.
type MessageOption struct {
	ID    string
	Text  string
	Value string
}

// FormInput describes one field in a form turn.
type FormInput struct {
	ID          string
	Type        string
	Label       string
	Placeholder string
	Required    bool
}

// RichContent carries formatted content for a rich content turn.
type RichContent struct {
	HTML string
}

// ActionCard describes a special interaction offered by the assistant.
type ActionCard struct {
	Type        string
	Title       string
	Description string
	ActionText  string
	Icon        string
}

// TurnPayload is the closed set of per-kind turn payloads. Every variant's
// fields are fully determined by its kind.
type TurnPayload interface {
	Kind() TurnKind
}

// TextPayload marks a plain text turn.
type TextPayload struct{}

// OptionsPayload carries the choices of an option-offering turn.
type OptionsPayload struct {
	Options []MessageOption
}

// FormPayload carries the inputs of a form-offering turn.
type FormPayload struct {
	Inputs []FormInput
}

// RichContentPayload carries formatted content, optionally with choices.
type RichContentPayload struct {
	Content RichContent
	Options []MessageOption
}

// ActionCardPayload carries an action card turn.
type ActionCardPayload struct {
	Card ActionCard
}

// OptionSelectedPayload records the option a user picked.
type OptionSelectedPayload struct {
	Option MessageOption
}

// FormSubmittedPayload records the values a user submitted.
type FormSubmittedPayload struct {
	Fields map[string]string
}

func (TextPayload) Kind() TurnKind           { return TurnKind_Text }
func (OptionsPayload) Kind() TurnKind        { return TurnKind_Options }
func (FormPayload) Kind() TurnKind           { return TurnKind_Form }
func (RichContentPayload) Kind() TurnKind    { return TurnKind_RichContent }
func (ActionCardPayload) Kind() TurnKind     { return TurnKind_ActionCard }
func (OptionSelectedPayload) Kind() TurnKind { return TurnKind_OptionSelected }
func (FormSubmittedPayload) Kind() TurnKind  { return TurnKind_FormSubmitted }

// ConversationTurn is one utterance in an onboarding transcript.
// Turns are immutable once appended.
type ConversationTurn struct {
	ID        uuid.UUID
	Role      TurnRole
	Content   string
	Payload   TurnPayload
	CreatedAt time.Time
}

// Kind returns the turn kind derived from the payload. A nil payload is a
// plain text turn.
func (t ConversationTurn) Kind() TurnKind {
	if t.Payload == nil {
		return TurnKind_Text
	}
	return t.Payload.Kind()
}

// NewTextTurn creates a plain text turn.
func NewTextTurn(role TurnRole, content string, now time.Time) ConversationTurn {
	return ConversationTurn{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		Payload:   TextPayload{},
		CreatedAt: now,
	}
}
