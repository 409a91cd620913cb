package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/cleitonmarx/symbiont/depend"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chidihq/chidi-backend/internal/domain"
	"github.com/chidihq/chidi-backend/internal/telemetry"
)

var (
	sessionFields = []string{
		"user_id",
		"current_step",
		"total_steps",
		"step_title",
		"percentage",
		"business_data",
		"transcript",
		"created_at",
		"updated_at",
	}
)

// SessionRepository implements domain.SessionStore using PostgreSQL as the
// storage backend. The transcript and collected facts are stored as JSONB.
type SessionRepository struct {
	sb squirrel.StatementBuilderType
}

// NewSessionRepository creates a new instance of SessionRepository.
func NewSessionRepository(br squirrel.BaseRunner) SessionRepository {
	return SessionRepository{
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).RunWith(br),
	}
}

// GetSession retrieves the onboarding session for the given user.
func (sr SessionRepository) GetSession(ctx context.Context, userID string) (domain.OnboardingSession, bool, error) {
	spanCtx, span := telemetry.Start(ctx, trace.WithAttributes(
		attribute.String("user_id", userID),
	))
	defer span.End()

	var (
		session          domain.OnboardingSession
		businessDataJSON []byte
		transcriptJSON   []byte
	)
	err := sr.sb.
		Select(sessionFields...).
		From("onboarding_sessions").
		Where(squirrel.Eq{"user_id": userID}).
		QueryRowContext(spanCtx).
		Scan(
			&session.UserID,
			&session.CurrentStep,
			&session.TotalSteps,
			&session.StepTitle,
			&session.Percentage,
			&businessDataJSON,
			&transcriptJSON,
			&session.CreatedAt,
			&session.UpdatedAt,
		)
	if err == sql.ErrNoRows {
		return domain.OnboardingSession{}, false, nil
	}
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.OnboardingSession{}, false, err
	}

	if err := json.Unmarshal(businessDataJSON, &session.BusinessData); err != nil {
		telemetry.RecordErrorAndStatus(span, err)
		return domain.OnboardingSession{}, false, fmt.Errorf("failed to unmarshal business data: %w", err)
	}
	session.Transcript, err = decodeTranscript(transcriptJSON)
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.OnboardingSession{}, false, err
	}

	return session, true, nil
}

// SaveSession stores the session, replacing any previous state for the user.
func (sr SessionRepository) SaveSession(ctx context.Context, session domain.OnboardingSession) error {
	spanCtx, span := telemetry.Start(ctx, trace.WithAttributes(
		attribute.String("user_id", session.UserID),
		attribute.Int("current_step", session.CurrentStep),
	))
	defer span.End()

	if session.UserID == "" {
		return domain.NewValidationErr("user_id is required")
	}

	businessDataJSON, err := json.Marshal(session.BusinessData)
	if telemetry.RecordErrorAndStatus(span, err) {
		return fmt.Errorf("failed to marshal business data: %w", err)
	}
	transcriptJSON, err := encodeTranscript(session.Transcript)
	if telemetry.RecordErrorAndStatus(span, err) {
		return err
	}

	_, err = sr.sb.
		Insert("onboarding_sessions").
		Columns(sessionFields...).
		Values(
			session.UserID,
			session.CurrentStep,
			session.TotalSteps,
			session.StepTitle,
			session.Percentage,
			businessDataJSON,
			transcriptJSON,
			session.CreatedAt,
			session.UpdatedAt,
		).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET current_step = EXCLUDED.current_step, total_steps = EXCLUDED.total_steps, step_title = EXCLUDED.step_title, percentage = EXCLUDED.percentage, business_data = EXCLUDED.business_data, transcript = EXCLUDED.transcript, updated_at = EXCLUDED.updated_at").
		ExecContext(spanCtx)

	if telemetry.RecordErrorAndStatus(span, err) {
		return err
	}
	return nil
}

// InitSessionRepository is a Symbiont initializer for SessionRepository.
type InitSessionRepository struct {
	DB *sql.DB `resolve:""`
}

// Initialize registers the SessionRepository in the dependency container.
func (sr InitSessionRepository) Initialize(ctx context.Context) (context.Context, error) {
	depend.Register[domain.SessionStore](NewSessionRepository(sr.DB))
	return ctx, nil
}

// turnRecord is the JSONB representation of a conversation turn. The kind
// discriminates which optional fields are present.
type turnRecord struct {
	ID        uuid.UUID          `json:"id"`
	Role      string             `json:"role"`
	Kind      string             `json:"kind"`
	Content   string             `json:"content"`
	Options   []optionRecord     `json:"options,omitempty"`
	Inputs    []formInputRecord  `json:"inputs,omitempty"`
	HTML      string             `json:"html,omitempty"`
	Card      *actionCardRecord  `json:"card,omitempty"`
	Option    *optionRecord      `json:"option,omitempty"`
	Fields    map[string]string  `json:"fields,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

type optionRecord struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Value string `json:"value"`
}

type formInputRecord struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Label       string `json:"label"`
	Placeholder string `json:"placeholder,omitempty"`
	Required    bool   `json:"required"`
}

type actionCardRecord struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ActionText  string `json:"actionText"`
	Icon        string `json:"icon"`
}

func encodeTranscript(turns []domain.ConversationTurn) ([]byte, error) {
	records := make([]turnRecord, len(turns))
	for i, turn := range turns {
		rec := turnRecord{
			ID:        turn.ID,
			Role:      string(turn.Role),
			Kind:      string(turn.Kind()),
			Content:   turn.Content,
			CreatedAt: turn.CreatedAt,
		}
		switch p := turn.Payload.(type) {
		case domain.OptionsPayload:
			rec.Options = encodeOptions(p.Options)
		case domain.FormPayload:
			for _, input := range p.Inputs {
				rec.Inputs = append(rec.Inputs, formInputRecord(input))
			}
		case domain.RichContentPayload:
			rec.HTML = p.Content.HTML
			rec.Options = encodeOptions(p.Options)
		case domain.ActionCardPayload:
			card := actionCardRecord(p.Card)
			rec.Card = &card
		case domain.OptionSelectedPayload:
			opt := optionRecord(p.Option)
			rec.Option = &opt
		case domain.FormSubmittedPayload:
			rec.Fields = p.Fields
		}
		records[i] = rec
	}

	out, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transcript: %w", err)
	}
	return out, nil
}

func decodeTranscript(data []byte) ([]domain.ConversationTurn, error) {
	var records []turnRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}

	turns := make([]domain.ConversationTurn, len(records))
	for i, rec := range records {
		turn := domain.ConversationTurn{
			ID:        rec.ID,
			Role:      domain.TurnRole(rec.Role),
			Content:   rec.Content,
			CreatedAt: rec.CreatedAt,
		}
		switch domain.TurnKind(rec.Kind) {
		case domain.TurnKind_Options:
			turn.Payload = domain.OptionsPayload{Options: decodeOptions(rec.Options)}
		case domain.TurnKind_Form:
			var inputs []domain.FormInput
			for _, input := range rec.Inputs {
				inputs = append(inputs, domain.FormInput(input))
			}
			turn.Payload = domain.FormPayload{Inputs: inputs}
		case domain.TurnKind_RichContent:
			turn.Payload = domain.RichContentPayload{
				Content: domain.RichContent{HTML: rec.HTML},
				Options: decodeOptions(rec.Options),
			}
		case domain.TurnKind_ActionCard:
			var card domain.ActionCard
			if rec.Card != nil {
				card = domain.ActionCard(*rec.Card)
			}
			turn.Payload = domain.ActionCardPayload{Card: card}
		case domain.TurnKind_OptionSelected:
			var opt domain.MessageOption
			if rec.Option != nil {
				opt = domain.MessageOption(*rec.Option)
			}
			turn.Payload = domain.OptionSelectedPayload{Option: opt}
		case domain.TurnKind_FormSubmitted:
			turn.Payload = domain.FormSubmittedPayload{Fields: rec.Fields}
		default:
			turn.Payload = domain.TextPayload{}
		}
		turns[i] = turn
	}
	return turns, nil
}

func encodeOptions(options []domain.MessageOption) []optionRecord {
	var out []optionRecord
	for _, opt := range options {
		out = append(out, optionRecord(opt))
	}
	return out
}

func decodeOptions(records []optionRecord) []domain.MessageOption {
	var out []domain.MessageOption
	for _, rec := range records {
		out = append(out, domain.MessageOption(rec))
	}
	return out
}
