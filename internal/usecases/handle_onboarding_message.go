package usecases

import (
	"context"

	"github.com/cleitonmarx/symbiont/depend"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chidihq/chidi-backend/internal/domain"
	"github.com/chidihq/chidi-backend/internal/telemetry"
)

// welcomeMessage opens every onboarding conversation.
const welcomeMessage = "Welcome to CHIDI App onboarding! I'll help you set up your workspace."

// formThankYouMessage acknowledges a form submission.
const formThankYouMessage = "Thank you for providing that information!"

// stepTitles maps wizard steps to their display titles.
var stepTitles = map[int]string{
	1: "Welcome",
	2: "Business Type",
	3: "Business Details",
	4: "Target Audience",
	5: "Data Import",
}

// HandleOnboardingMessage drives one user's onboarding session: it owns the
// session lifecycle and routes inbound messages to the response generator.
type HandleOnboardingMessage interface {
	// Connect loads or creates the session for a user. The returned flag is
	// true when the welcome turn was appended by this call.
	Connect(ctx context.Context, userID string) (domain.OnboardingSession, bool, error)
	// HandleText processes a plain user message and returns the session and
	// the generated assistant turn.
	HandleText(ctx context.Context, userID, content string) (domain.OnboardingSession, domain.ConversationTurn, error)
	// HandleOptionSelection records a selected option in the collected
	// business data.
	HandleOptionSelection(ctx context.Context, userID string, option domain.MessageOption) (domain.OnboardingSession, error)
	// HandleFormSubmission merges submitted form values into the collected
	// business data and returns the acknowledgement turn.
	HandleFormSubmission(ctx context.Context, userID string, fields map[string]string) (domain.OnboardingSession, domain.ConversationTurn, error)
	// HandleActionTrigger resolves an action type to its response status.
	HandleActionTrigger(actionType string) (string, error)
	// GetState loads or creates the session for a user.
	GetState(ctx context.Context, userID string) (domain.OnboardingSession, error)
	// SaveState stores a session snapshot supplied by the client.
	SaveState(ctx context.Context, session domain.OnboardingSession) error
}

// HandleOnboardingMessageImpl is the implementation of the
// HandleOnboardingMessage use case.
type HandleOnboardingMessageImpl struct {
	store        domain.SessionStore
	generator    GenerateOnboardingResponse
	timeProvider domain.CurrentTimeProvider
}

// NewHandleOnboardingMessageImpl creates a new instance of
// HandleOnboardingMessageImpl.
func NewHandleOnboardingMessageImpl(store domain.SessionStore, generator GenerateOnboardingResponse, tp domain.CurrentTimeProvider) HandleOnboardingMessageImpl {
	return HandleOnboardingMessageImpl{
		store:        store,
		generator:    generator,
		timeProvider: tp,
	}
}

// Connect loads or creates the session and appends the welcome turn on the
// first contact.
func (h HandleOnboardingMessageImpl) Connect(ctx context.Context, userID string) (domain.OnboardingSession, bool, error) {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.String("user_id", userID)),
	)
	defer span.End()

	session, err := h.loadOrCreate(spanCtx, userID)
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.OnboardingSession{}, false, err
	}

	welcomed := false
	if len(session.Transcript) == 0 {
		session.AppendTurn(domain.NewTextTurn(domain.TurnRole_Assistant, welcomeMessage, h.timeProvider.Now()))
		welcomed = true
	}

	err = h.save(spanCtx, &session)
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.OnboardingSession{}, false, err
	}
	return session, welcomed, nil
}

// HandleText appends the user turn, generates the assistant turn for the
// current step and advances the wizard.
func (h HandleOnboardingMessageImpl) HandleText(ctx context.Context, userID, content string) (domain.OnboardingSession, domain.ConversationTurn, error) {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.String("user_id", userID)),
	)
	defer span.End()

	session, err := h.loadOrCreate(spanCtx, userID)
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.OnboardingSession{}, domain.ConversationTurn{}, err
	}

	session.AppendTurn(domain.NewTextTurn(domain.TurnRole_User, content, h.timeProvider.Now()))
	if session.CurrentStep == 1 && content != "" {
		session.SetBusinessFact("name", content)
	}

	response := h.generator.Execute(spanCtx, session, content)
	session.AppendTurn(response)

	session.Advance()
	session.StepTitle = stepTitles[session.CurrentStep]

	err = h.save(spanCtx, &session)
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.OnboardingSession{}, domain.ConversationTurn{}, err
	}
	return session, response, nil
}

// HandleOptionSelection records the selection under its option group id.
func (h HandleOnboardingMessageImpl) HandleOptionSelection(ctx context.Context, userID string, option domain.MessageOption) (domain.OnboardingSession, error) {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(
			attribute.String("user_id", userID),
			attribute.String("option_id", option.ID),
		),
	)
	defer span.End()

	session, err := h.loadOrCreate(spanCtx, userID)
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.OnboardingSession{}, err
	}

	session.AppendTurn(domain.ConversationTurn{
		ID:        uuid.New(),
		Role:      domain.TurnRole_User,
		Payload:   domain.OptionSelectedPayload{Option: option},
		CreatedAt: h.timeProvider.Now(),
	})
	session.SetBusinessFact(option.ID, option.Value)

	err = h.save(spanCtx, &session)
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.OnboardingSession{}, err
	}
	return session, nil
}

// HandleFormSubmission merges the submitted values and acknowledges them.
func (h HandleOnboardingMessageImpl) HandleFormSubmission(ctx context.Context, userID string, fields map[string]string) (domain.OnboardingSession, domain.ConversationTurn, error) {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.String("user_id", userID)),
	)
	defer span.End()

	session, err := h.loadOrCreate(spanCtx, userID)
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.OnboardingSession{}, domain.ConversationTurn{}, err
	}

	now := h.timeProvider.Now()
	session.AppendTurn(domain.ConversationTurn{
		ID:        uuid.New(),
		Role:      domain.TurnRole_User,
		Payload:   domain.FormSubmittedPayload{Fields: fields},
		CreatedAt: now,
	})
	session.MergeBusinessData(fields)

	response := domain.NewTextTurn(domain.TurnRole_Assistant, formThankYouMessage, now)
	session.AppendTurn(response)

	err = h.save(spanCtx, &session)
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.OnboardingSession{}, domain.ConversationTurn{}, err
	}
	return session, response, nil
}

// HandleActionTrigger resolves an action type to the status reported back
// to the client. It mutates nothing.
func (h HandleOnboardingMessageImpl) HandleActionTrigger(actionType string) (string, error) {
	switch actionType {
	case "upload":
		return "ready_for_upload", nil
	case "connect":
		return "connected", nil
	}
	return "", domain.NewValidationErr("unknown action type: " + actionType)
}

// GetState loads or creates the session for a user.
func (h HandleOnboardingMessageImpl) GetState(ctx context.Context, userID string) (domain.OnboardingSession, error) {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.String("user_id", userID)),
	)
	defer span.End()

	session, err := h.loadOrCreate(spanCtx, userID)
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.OnboardingSession{}, err
	}

	err = h.save(spanCtx, &session)
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.OnboardingSession{}, err
	}
	return session, nil
}

// SaveState stores a session snapshot supplied by the client.
func (h HandleOnboardingMessageImpl) SaveState(ctx context.Context, session domain.OnboardingSession) error {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.String("user_id", session.UserID)),
	)
	defer span.End()

	if session.UserID == "" {
		err := domain.NewValidationErr("user_id is required")
		telemetry.RecordErrorAndStatus(span, err)
		return err
	}

	err := h.save(spanCtx, &session)
	if telemetry.RecordErrorAndStatus(span, err) {
		return err
	}
	return nil
}

func (h HandleOnboardingMessageImpl) loadOrCreate(ctx context.Context, userID string) (domain.OnboardingSession, error) {
	if userID == "" {
		return domain.OnboardingSession{}, domain.NewValidationErr("user_id is required")
	}

	session, found, err := h.store.GetSession(ctx, userID)
	if err != nil {
		return domain.OnboardingSession{}, err
	}
	if !found {
		session = domain.NewOnboardingSession(userID, h.timeProvider.Now())
	}
	return session, nil
}

func (h HandleOnboardingMessageImpl) save(ctx context.Context, session *domain.OnboardingSession) error {
	session.UpdatedAt = h.timeProvider.Now()
	return h.store.SaveSession(ctx, *session)
}

// InitHandleOnboardingMessage initializes the HandleOnboardingMessage use
// case.
type InitHandleOnboardingMessage struct {
	Store        domain.SessionStore        `resolve:""`
	Generator    GenerateOnboardingResponse `resolve:""`
	TimeProvider domain.CurrentTimeProvider `resolve:""`
}

// Initialize registers the HandleOnboardingMessage use case implementation.
func (ihm InitHandleOnboardingMessage) Initialize(ctx context.Context) (context.Context, error) {
	depend.Register[HandleOnboardingMessage](NewHandleOnboardingMessageImpl(
		ihm.Store, ihm.Generator, ihm.TimeProvider,
	))
	return ctx, nil
}
