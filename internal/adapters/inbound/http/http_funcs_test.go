package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chidihq/chidi-backend/internal/domain"
)

// Shared hand-rolled fakes for the HTTP handler tests.

var testTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type fakeOnboarding struct {
	connectFn    func(ctx context.Context, userID string) (domain.OnboardingSession, bool, error)
	handleTextFn func(ctx context.Context, userID, content string) (domain.OnboardingSession, domain.ConversationTurn, error)
	handleOptFn  func(ctx context.Context, userID string, option domain.MessageOption) (domain.OnboardingSession, error)
	handleFormFn func(ctx context.Context, userID string, fields map[string]string) (domain.OnboardingSession, domain.ConversationTurn, error)
	getStateFn   func(ctx context.Context, userID string) (domain.OnboardingSession, error)
	saveStateFn  func(ctx context.Context, session domain.OnboardingSession) error
}

func (f *fakeOnboarding) Connect(ctx context.Context, userID string) (domain.OnboardingSession, bool, error) {
	return f.connectFn(ctx, userID)
}

func (f *fakeOnboarding) HandleText(ctx context.Context, userID, content string) (domain.OnboardingSession, domain.ConversationTurn, error) {
	return f.handleTextFn(ctx, userID, content)
}

func (f *fakeOnboarding) HandleOptionSelection(ctx context.Context, userID string, option domain.MessageOption) (domain.OnboardingSession, error) {
	return f.handleOptFn(ctx, userID, option)
}

func (f *fakeOnboarding) HandleFormSubmission(ctx context.Context, userID string, fields map[string]string) (domain.OnboardingSession, domain.ConversationTurn, error) {
	return f.handleFormFn(ctx, userID, fields)
}

func (f *fakeOnboarding) HandleActionTrigger(actionType string) (string, error) {
	switch actionType {
	case "upload":
		return "ready_for_upload", nil
	case "connect":
		return "connected", nil
	}
	return "", domain.NewValidationErr("unknown action type: " + actionType)
}

func (f *fakeOnboarding) GetState(ctx context.Context, userID string) (domain.OnboardingSession, error) {
	return f.getStateFn(ctx, userID)
}

func (f *fakeOnboarding) SaveState(ctx context.Context, session domain.OnboardingSession) error {
	return f.saveStateFn(ctx, session)
}

type fakeCompleter struct {
	executeFn func(ctx context.Context, userID string) (domain.BusinessContext, error)
}

func (f fakeCompleter) Execute(ctx context.Context, userID string) (domain.BusinessContext, error) {
	return f.executeFn(ctx, userID)
}

type fakeEnricher struct {
	executeFn func(ctx context.Context, businessID string, newData map[string]string) (domain.BusinessContext, error)
}

func (f fakeEnricher) Execute(ctx context.Context, businessID string, newData map[string]string) (domain.BusinessContext, error) {
	return f.executeFn(ctx, businessID, newData)
}

type fakeRetriever struct {
	similarFn  func(ctx context.Context, query string, topK int, threshold float64) ([]domain.RetrievalResult, error)
	keywordsFn func(ctx context.Context, keywords []string, topK, matchThreshold int) ([]domain.RetrievalResult, error)
	hybridFn   func(ctx context.Context, query string, keywords []string, topK int, vectorWeight, keywordWeight float64) ([]domain.RetrievalResult, error)
}

func (f fakeRetriever) RetrieveSimilar(ctx context.Context, query string, topK int, threshold float64) ([]domain.RetrievalResult, error) {
	return f.similarFn(ctx, query, topK, threshold)
}

func (f fakeRetriever) RetrieveByKeywords(ctx context.Context, keywords []string, topK, matchThreshold int) ([]domain.RetrievalResult, error) {
	return f.keywordsFn(ctx, keywords, topK, matchThreshold)
}

func (f fakeRetriever) RetrieveHybrid(ctx context.Context, query string, keywords []string, topK int, vectorWeight, keywordWeight float64) ([]domain.RetrievalResult, error) {
	return f.hybridFn(ctx, query, keywords, topK, vectorWeight, keywordWeight)
}

type fakeWorkspaceChat struct {
	executeFn func(ctx context.Context, query string) (string, error)
}

func (f fakeWorkspaceChat) Execute(ctx context.Context, query string) (string, error) {
	return f.executeFn(ctx, query)
}

type fakeContextRepo struct {
	contexts  []domain.BusinessContext
	deleted   []string
	listErr   error
	getErr    error
	deleteErr error
}

func (r *fakeContextRepo) StoreContext(_ context.Context, bc domain.BusinessContext) error {
	r.contexts = append(r.contexts, bc)
	return nil
}

func (r *fakeContextRepo) GetContext(_ context.Context, businessID string) (domain.BusinessContext, bool, error) {
	if r.getErr != nil {
		return domain.BusinessContext{}, false, r.getErr
	}
	for _, bc := range r.contexts {
		if bc.BusinessID == businessID {
			return bc, true, nil
		}
	}
	return domain.BusinessContext{}, false, nil
}

func (r *fakeContextRepo) ListContexts(_ context.Context) ([]domain.BusinessContext, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.contexts, nil
}

func (r *fakeContextRepo) DeleteContext(_ context.Context, businessID string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.deleted = append(r.deleted, businessID)
	return nil
}

func (r *fakeContextRepo) SearchSimilarContexts(_ context.Context, _ []float64, limit int) ([]domain.BusinessContext, error) {
	if limit > 0 && len(r.contexts) > limit {
		return r.contexts[:limit], nil
	}
	return r.contexts, nil
}

func serializeJSON(t *testing.T, v any) []byte {
	t.Helper()
	out, err := json.Marshal(v)
	require.NoError(t, err)
	return out
}

func doRequest(t *testing.T, api ChidiServer, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	api.handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}
