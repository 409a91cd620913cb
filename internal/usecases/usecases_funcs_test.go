package usecases

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/chidihq/chidi-backend/internal/domain"
)

// Shared hand-rolled fakes for the use case tests.

var testTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type fixedTimeProvider struct {
	now time.Time
}

func (p fixedTimeProvider) Now() time.Time {
	return p.now
}

type fakeLLMClient struct {
	chatFn       func(ctx context.Context, req domain.LLMChatRequest) (domain.LLMChatResponse, error)
	embedFn      func(ctx context.Context, model, input string) (domain.EmbedResponse, error)
	embedBatchFn func(ctx context.Context, model string, inputs []string) ([]domain.EmbedResponse, error)

	chatRequests []domain.LLMChatRequest
	embedInputs  []string
}

func (c *fakeLLMClient) Chat(ctx context.Context, req domain.LLMChatRequest) (domain.LLMChatResponse, error) {
	c.chatRequests = append(c.chatRequests, req)
	if c.chatFn == nil {
		return domain.LLMChatResponse{}, nil
	}
	return c.chatFn(ctx, req)
}

func (c *fakeLLMClient) Embed(ctx context.Context, model, input string) (domain.EmbedResponse, error) {
	c.embedInputs = append(c.embedInputs, input)
	if c.embedFn == nil {
		return domain.EmbedResponse{}, nil
	}
	return c.embedFn(ctx, model, input)
}

func (c *fakeLLMClient) EmbedBatch(ctx context.Context, model string, inputs []string) ([]domain.EmbedResponse, error) {
	c.embedInputs = append(c.embedInputs, inputs...)
	if c.embedBatchFn == nil {
		return make([]domain.EmbedResponse, len(inputs)), nil
	}
	return c.embedBatchFn(ctx, model, inputs)
}

// fakeEmbedder implements GenerateEmbedding with canned vectors per text.
type fakeEmbedder struct {
	vectors    map[string][]float64
	queryErr   error
	contextErr error
}

func (e fakeEmbedder) Execute(_ context.Context, text string) ([]float64, error) {
	if e.queryErr != nil {
		return nil, e.queryErr
	}
	return e.vectors[text], nil
}

func (e fakeEmbedder) ExecuteBatch(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = e.vectors[text]
	}
	return out, nil
}

func (e fakeEmbedder) ExecuteForContext(_ context.Context, bc domain.BusinessContext) ([]float64, error) {
	if e.contextErr != nil {
		return nil, e.contextErr
	}
	return e.vectors[RenderContextText(bc)], nil
}

type fakeContextRepo struct {
	contexts  []domain.BusinessContext
	stored    []domain.BusinessContext
	deleted   []string
	listErr   error
	getErr    error
	storeErr  error
	searchErr error
}

func (r *fakeContextRepo) StoreContext(_ context.Context, bc domain.BusinessContext) error {
	if r.storeErr != nil {
		return r.storeErr
	}
	r.stored = append(r.stored, bc)
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
	r.deleted = append(r.deleted, businessID)
	return nil
}

func (r *fakeContextRepo) SearchSimilarContexts(_ context.Context, _ []float64, limit int) ([]domain.BusinessContext, error) {
	if r.searchErr != nil {
		return nil, r.searchErr
	}
	if limit > 0 && len(r.contexts) > limit {
		return r.contexts[:limit], nil
	}
	return r.contexts, nil
}

type fakeSessionStore struct {
	sessions map[string]domain.OnboardingSession
	saved    []domain.OnboardingSession
	getErr   error
	saveErr  error
}

func (s *fakeSessionStore) GetSession(_ context.Context, userID string) (domain.OnboardingSession, bool, error) {
	if s.getErr != nil {
		return domain.OnboardingSession{}, false, s.getErr
	}
	session, found := s.sessions[userID]
	return session, found, nil
}

func (s *fakeSessionStore) SaveSession(_ context.Context, session domain.OnboardingSession) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	if s.sessions == nil {
		s.sessions = map[string]domain.OnboardingSession{}
	}
	s.sessions[session.UserID] = session
	s.saved = append(s.saved, session)
	return nil
}

type fakeOutbox struct {
	recorded  []domain.ContextEvent
	pending   []domain.OutboxEvent
	updates   []string
	deletedID []uuid.UUID
	recordErr error
	fetchErr  error
}

func (o *fakeOutbox) RecordEvent(_ context.Context, event domain.ContextEvent) error {
	if o.recordErr != nil {
		return o.recordErr
	}
	o.recorded = append(o.recorded, event)
	return nil
}

func (o *fakeOutbox) FetchPendingEvents(_ context.Context, _ int) ([]domain.OutboxEvent, error) {
	if o.fetchErr != nil {
		return nil, o.fetchErr
	}
	return o.pending, nil
}

func (o *fakeOutbox) UpdateEvent(_ context.Context, eventID uuid.UUID, status string, retryCount int, lastError string) error {
	o.updates = append(o.updates, status)
	return nil
}

func (o *fakeOutbox) DeleteEvent(_ context.Context, eventID uuid.UUID) error {
	o.deletedID = append(o.deletedID, eventID)
	return nil
}

type fakeUnitOfWork struct {
	contexts *fakeContextRepo
	sessions *fakeSessionStore
	outbox   *fakeOutbox
	execErr  error
}

func (u *fakeUnitOfWork) Execute(_ context.Context, fn func(uow domain.UnitOfWork) error) error {
	if u.execErr != nil {
		return u.execErr
	}
	return fn(u)
}

func (u *fakeUnitOfWork) Contexts() domain.BusinessContextRepository {
	return u.contexts
}

func (u *fakeUnitOfWork) Sessions() domain.SessionStore {
	return u.sessions
}

func (u *fakeUnitOfWork) Outbox() domain.OutboxRepository {
	return u.outbox
}

type fakePublisher struct {
	published  []domain.OutboxEvent
	publishErr error
}

func (p *fakePublisher) PublishEvent(_ context.Context, event domain.OutboxEvent) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.published = append(p.published, event)
	return nil
}
