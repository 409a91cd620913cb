package http

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// GetOnboardingState returns the user's onboarding session, creating it when
// the user connects for the first time.
func (api ChidiServer) GetOnboardingState(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	session, err := api.OnboardingUseCase.GetState(r.Context(), userID)
	if err != nil {
		api.Logger.Printf("Error getting onboarding state: %v", err)
		respondError(w, toError(err))
		return
	}

	respondJSON(w, http.StatusOK, toRestSession(session))
}

// SaveOnboardingState stores a session snapshot supplied by the client.
func (api ChidiServer) SaveOnboardingState(w http.ResponseWriter, r *http.Request) {
	var req restSession
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, badRequest(fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	if err := api.OnboardingUseCase.SaveState(r.Context(), fromRestSession(req)); err != nil {
		api.Logger.Printf("Error saving onboarding state: %v", err)
		respondError(w, toError(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// CompleteOnboarding extracts and stores the business context from the user's
// finished onboarding session.
func (api ChidiServer) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	businessContext, err := api.CompleteOnboardingUseCase.Execute(r.Context(), userID)
	if err != nil {
		api.Logger.Printf("Error completing onboarding: %v", err)
		respondError(w, toError(err))
		return
	}

	respondJSON(w, http.StatusCreated, toRestContext(businessContext))
}
