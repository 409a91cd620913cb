package domain

import (
	"context"
	"math"
	"time"
)

// DefaultTotalSteps is the number of steps in the onboarding wizard.
const DefaultTotalSteps = 5

// OnboardingSession drives the fixed-step business setup wizard for one user.
// It owns the ordered transcript and the flat mapping of collected facts.
type OnboardingSession struct {
	UserID       string
	CurrentStep  int
	TotalSteps   int
	StepTitle    string
	Percentage   int
	BusinessData map[string]string
	Transcript   []ConversationTurn
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewOnboardingSession creates a session positioned at the first step.
func NewOnboardingSession(userID string, now time.Time) OnboardingSession {
	return OnboardingSession{
		UserID:       userID,
		CurrentStep:  1,
		TotalSteps:   DefaultTotalSteps,
		StepTitle:    "Welcome",
		BusinessData: map[string]string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// AppendTurn adds a turn to the end of the transcript.
func (s *OnboardingSession) AppendTurn(turn ConversationTurn) {
	s.Transcript = append(s.Transcript, turn)
}

// SetBusinessFact records a single collected business fact.
func (s *OnboardingSession) SetBusinessFact(key, value string) {
	if s.BusinessData == nil {
		s.BusinessData = map[string]string{}
	}
	s.BusinessData[key] = value
}

// MergeBusinessData merges submitted form values into the collected facts.
func (s *OnboardingSession) MergeBusinessData(fields map[string]string) {
	for key, value := range fields {
		s.SetBusinessFact(key, value)
	}
}

// Advance moves the wizard forward by at most one step per user message once
// more than two turns have accumulated, clamped to the total step count, and
// recomputes the completion percentage.
func (s *OnboardingSession) Advance() {
	if len(s.Transcript) > 2 {
		s.CurrentStep = min(s.CurrentStep+1, s.TotalSteps)
	}
	s.Percentage = int(math.Round(float64(s.CurrentStep) / float64(s.TotalSteps) * 100))
}

// SessionStore persists onboarding sessions keyed by user id.
type SessionStore interface {
	// GetSession retrieves the session for the given user.
	GetSession(ctx context.Context, userID string) (OnboardingSession, bool, error)
	// SaveSession stores the session, replacing any previous state.
	SaveSession(ctx context.Context, session OnboardingSession) error
}
