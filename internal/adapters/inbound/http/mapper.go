package http

import (
	"time"

	"github.com/google/uuid"

	"github.com/chidihq/chidi-backend/internal/domain"
)

type errorCode string

const (
	errorCode_BadRequest errorCode = "BAD_REQUEST"
	errorCode_NotFound   errorCode = "NOT_FOUND"
	errorCode_Internal   errorCode = "INTERNAL_ERROR"
)

type errorResp struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

func toError(err error) errorResp {
	resp := errorResp{}
	switch e := err.(type) {
	case *domain.ValidationErr:
		resp.Error.Code = errorCode_BadRequest
		resp.Error.Message = e.Error()
	case *domain.NotFoundErr:
		resp.Error.Code = errorCode_NotFound
		resp.Error.Message = e.Error()
	default:
		resp.Error.Code = errorCode_Internal
		resp.Error.Message = "internal server error"
	}
	return resp
}

func badRequest(message string) errorResp {
	return errorResp{Error: errorDetail{Code: errorCode_BadRequest, Message: message}}
}

// restTurn is the wire representation of a conversation turn. The kind
// discriminates which optional fields are present.
type restTurn struct {
	ID        uuid.UUID         `json:"id"`
	Role      string            `json:"role"`
	Kind      string            `json:"kind"`
	Content   string            `json:"content"`
	Options   []restOption      `json:"options,omitempty"`
	Inputs    []restFormInput   `json:"inputs,omitempty"`
	HTML      string            `json:"html,omitempty"`
	Card      *restActionCard   `json:"card,omitempty"`
	Option    *restOption       `json:"option,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type restOption struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Value string `json:"value"`
}

type restFormInput struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Label       string `json:"label"`
	Placeholder string `json:"placeholder,omitempty"`
	Required    bool   `json:"required"`
}

type restActionCard struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ActionText  string `json:"actionText"`
	Icon        string `json:"icon"`
}

type restSession struct {
	UserID       string            `json:"user_id"`
	CurrentStep  int               `json:"current_step"`
	TotalSteps   int               `json:"total_steps"`
	StepTitle    string            `json:"step_title"`
	Percentage   int               `json:"percentage"`
	BusinessData map[string]string `json:"business_data"`
	Transcript   []restTurn        `json:"transcript"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type restContext struct {
	BusinessID      string                 `json:"business_id"`
	Profile         domain.BusinessProfile `json:"profile"`
	Keywords        []string               `json:"keywords"`
	Insights        map[string]string      `json:"insights"`
	Recommendations []string               `json:"recommendations"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

type restRetrievalResult struct {
	Context      restContext `json:"context"`
	Score        float64     `json:"score"`
	MatchCount   int         `json:"match_count,omitempty"`
	VectorScore  float64     `json:"vector_score,omitempty"`
	KeywordScore float64     `json:"keyword_score,omitempty"`
}

func toRestTurn(turn domain.ConversationTurn) restTurn {
	out := restTurn{
		ID:        turn.ID,
		Role:      string(turn.Role),
		Kind:      string(turn.Kind()),
		Content:   turn.Content,
		CreatedAt: turn.CreatedAt,
	}
	switch p := turn.Payload.(type) {
	case domain.OptionsPayload:
		out.Options = toRestOptions(p.Options)
	case domain.FormPayload:
		for _, input := range p.Inputs {
			out.Inputs = append(out.Inputs, restFormInput(input))
		}
	case domain.RichContentPayload:
		out.HTML = p.Content.HTML
		out.Options = toRestOptions(p.Options)
	case domain.ActionCardPayload:
		card := restActionCard(p.Card)
		out.Card = &card
	case domain.OptionSelectedPayload:
		opt := restOption(p.Option)
		out.Option = &opt
	case domain.FormSubmittedPayload:
		out.Fields = p.Fields
	}
	return out
}

func fromRestTurn(in restTurn) domain.ConversationTurn {
	turn := domain.ConversationTurn{
		ID:        in.ID,
		Role:      domain.TurnRole(in.Role),
		Content:   in.Content,
		CreatedAt: in.CreatedAt,
	}
	switch domain.TurnKind(in.Kind) {
	case domain.TurnKind_Options:
		turn.Payload = domain.OptionsPayload{Options: fromRestOptions(in.Options)}
	case domain.TurnKind_Form:
		var inputs []domain.FormInput
		for _, input := range in.Inputs {
			inputs = append(inputs, domain.FormInput(input))
		}
		turn.Payload = domain.FormPayload{Inputs: inputs}
	case domain.TurnKind_RichContent:
		turn.Payload = domain.RichContentPayload{
			Content: domain.RichContent{HTML: in.HTML},
			Options: fromRestOptions(in.Options),
		}
	case domain.TurnKind_ActionCard:
		var card domain.ActionCard
		if in.Card != nil {
			card = domain.ActionCard(*in.Card)
		}
		turn.Payload = domain.ActionCardPayload{Card: card}
	case domain.TurnKind_OptionSelected:
		var opt domain.MessageOption
		if in.Option != nil {
			opt = domain.MessageOption(*in.Option)
		}
		turn.Payload = domain.OptionSelectedPayload{Option: opt}
	case domain.TurnKind_FormSubmitted:
		turn.Payload = domain.FormSubmittedPayload{Fields: in.Fields}
	default:
		turn.Payload = domain.TextPayload{}
	}
	return turn
}

func toRestOptions(options []domain.MessageOption) []restOption {
	var out []restOption
	for _, opt := range options {
		out = append(out, restOption(opt))
	}
	return out
}

func fromRestOptions(options []restOption) []domain.MessageOption {
	var out []domain.MessageOption
	for _, opt := range options {
		out = append(out, domain.MessageOption(opt))
	}
	return out
}

func toRestSession(session domain.OnboardingSession) restSession {
	out := restSession{
		UserID:       session.UserID,
		CurrentStep:  session.CurrentStep,
		TotalSteps:   session.TotalSteps,
		StepTitle:    session.StepTitle,
		Percentage:   session.Percentage,
		BusinessData: session.BusinessData,
		Transcript:   []restTurn{},
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
	}
	if out.BusinessData == nil {
		out.BusinessData = map[string]string{}
	}
	for _, turn := range session.Transcript {
		out.Transcript = append(out.Transcript, toRestTurn(turn))
	}
	return out
}

func fromRestSession(in restSession) domain.OnboardingSession {
	session := domain.OnboardingSession{
		UserID:       in.UserID,
		CurrentStep:  in.CurrentStep,
		TotalSteps:   in.TotalSteps,
		StepTitle:    in.StepTitle,
		Percentage:   in.Percentage,
		BusinessData: in.BusinessData,
		CreatedAt:    in.CreatedAt,
		UpdatedAt:    in.UpdatedAt,
	}
	for _, turn := range in.Transcript {
		session.Transcript = append(session.Transcript, fromRestTurn(turn))
	}
	return session
}

func toRestContext(bc domain.BusinessContext) restContext {
	out := restContext{
		BusinessID:      bc.BusinessID,
		Profile:         bc.Profile,
		Keywords:        bc.Keywords,
		Insights:        bc.Insights,
		Recommendations: bc.Recommendations,
		CreatedAt:       bc.CreatedAt,
		UpdatedAt:       bc.UpdatedAt,
	}
	if out.Keywords == nil {
		out.Keywords = []string{}
	}
	if out.Insights == nil {
		out.Insights = map[string]string{}
	}
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	return out
}

func toRestRetrievalResults(results []domain.RetrievalResult) []restRetrievalResult {
	out := make([]restRetrievalResult, 0, len(results))
	for _, result := range results {
		out = append(out, restRetrievalResult{
			Context:      toRestContext(result.Context),
			Score:        result.Score,
			MatchCount:   result.MatchCount,
			VectorScore:  result.VectorScore,
			KeywordScore: result.KeywordScore,
		})
	}
	return out
}
