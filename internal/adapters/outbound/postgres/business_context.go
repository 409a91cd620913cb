package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/cleitonmarx/symbiont/depend"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chidihq/chidi-backend/internal/domain"
	"github.com/chidihq/chidi-backend/internal/telemetry"
)

var (
	businessContextFields = []string{
		"business_id",
		"profile",
		"keywords",
		"insights",
		"recommendations",
		"embedding",
		"created_at",
		"updated_at",
	}
)

// BusinessContextRepository implements domain.BusinessContextRepository using
// PostgreSQL with pgvector as the storage backend.
type BusinessContextRepository struct {
	sb squirrel.StatementBuilderType
}

// NewBusinessContextRepository creates a new instance of BusinessContextRepository.
func NewBusinessContextRepository(br squirrel.BaseRunner) BusinessContextRepository {
	return BusinessContextRepository{
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).RunWith(br),
	}
}

// StoreContext inserts the context, replacing any previous row for the same
// business id.
func (br BusinessContextRepository) StoreContext(ctx context.Context, bc domain.BusinessContext) error {
	spanCtx, span := telemetry.Start(ctx, trace.WithAttributes(
		attribute.String("business_id", bc.BusinessID),
	))
	defer span.End()

	if err := bc.Validate(); telemetry.RecordErrorAndStatus(span, err) {
		return err
	}

	profileJSON, err := json.Marshal(bc.Profile)
	if telemetry.RecordErrorAndStatus(span, err) {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	keywordsJSON, err := json.Marshal(bc.Keywords)
	if telemetry.RecordErrorAndStatus(span, err) {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}
	insightsJSON, err := json.Marshal(bc.Insights)
	if telemetry.RecordErrorAndStatus(span, err) {
		return fmt.Errorf("failed to marshal insights: %w", err)
	}
	recommendationsJSON, err := json.Marshal(bc.Recommendations)
	if telemetry.RecordErrorAndStatus(span, err) {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	_, err = br.sb.
		Insert("business_contexts").
		Columns(businessContextFields...).
		Values(
			bc.BusinessID,
			profileJSON,
			keywordsJSON,
			insightsJSON,
			recommendationsJSON,
			toNullableVector(bc.Embedding),
			bc.CreatedAt,
			bc.UpdatedAt,
		).
		Suffix("ON CONFLICT (business_id) DO UPDATE SET profile = EXCLUDED.profile, keywords = EXCLUDED.keywords, insights = EXCLUDED.insights, recommendations = EXCLUDED.recommendations, embedding = EXCLUDED.embedding, updated_at = EXCLUDED.updated_at").
		ExecContext(spanCtx)

	if telemetry.RecordErrorAndStatus(span, err) {
		return err
	}
	return nil
}

// GetContext retrieves a context by business id.
func (br BusinessContextRepository) GetContext(ctx context.Context, businessID string) (domain.BusinessContext, bool, error) {
	spanCtx, span := telemetry.Start(ctx, trace.WithAttributes(
		attribute.String("business_id", businessID),
	))
	defer span.End()

	row := br.sb.
		Select(businessContextFields...).
		From("business_contexts").
		Where(squirrel.Eq{"business_id": businessID}).
		QueryRowContext(spanCtx)

	bc, err := scanBusinessContext(row.Scan)
	if err == sql.ErrNoRows {
		return domain.BusinessContext{}, false, nil
	}
	if telemetry.RecordErrorAndStatus(span, err) {
		return domain.BusinessContext{}, false, err
	}

	return bc, true, nil
}

// ListContexts returns all stored contexts ordered by creation time.
func (br BusinessContextRepository) ListContexts(ctx context.Context) ([]domain.BusinessContext, error) {
	spanCtx, span := telemetry.Start(ctx)
	defer span.End()

	rows, err := br.sb.
		Select(businessContextFields...).
		From("business_contexts").
		OrderBy("created_at ASC").
		QueryContext(spanCtx)
	if telemetry.RecordErrorAndStatus(span, err) {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var contexts []domain.BusinessContext
	for rows.Next() {
		bc, err := scanBusinessContext(rows.Scan)
		if telemetry.RecordErrorAndStatus(span, err) {
			return nil, err
		}
		contexts = append(contexts, bc)
	}

	if err := rows.Err(); telemetry.RecordErrorAndStatus(span, err) {
		return nil, err
	}

	return contexts, nil
}

// DeleteContext removes the context for the given business id.
func (br BusinessContextRepository) DeleteContext(ctx context.Context, businessID string) error {
	spanCtx, span := telemetry.Start(ctx, trace.WithAttributes(
		attribute.String("business_id", businessID),
	))
	defer span.End()

	_, err := br.sb.
		Delete("business_contexts").
		Where(squirrel.Eq{"business_id": businessID}).
		ExecContext(spanCtx)

	if telemetry.RecordErrorAndStatus(span, err) {
		return err
	}
	return nil
}

// SearchSimilarContexts returns up to limit contexts ordered by cosine
// distance to the given embedding.
func (br BusinessContextRepository) SearchSimilarContexts(ctx context.Context, embedding []float64, limit int) ([]domain.BusinessContext, error) {
	spanCtx, span := telemetry.Start(ctx, trace.WithAttributes(
		attribute.Int("limit", limit),
	))
	defer span.End()

	if limit <= 0 {
		return nil, domain.NewValidationErr("limit must be greater than 0")
	}

	rows, err := br.sb.
		Select(businessContextFields...).
		From("business_contexts").
		OrderByClause(squirrel.Expr(
			"embedding <=> ?",
			pgvector.NewVector(toFloat32Truncated(embedding)),
		)).
		Limit(uint64(limit)).
		QueryContext(spanCtx)
	if telemetry.RecordErrorAndStatus(span, err) {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var contexts []domain.BusinessContext
	for rows.Next() {
		bc, err := scanBusinessContext(rows.Scan)
		if telemetry.RecordErrorAndStatus(span, err) {
			return nil, err
		}
		contexts = append(contexts, bc)
	}

	if err := rows.Err(); telemetry.RecordErrorAndStatus(span, err) {
		return nil, err
	}

	return contexts, nil
}

// scanBusinessContext scans one business_contexts row through the given scan
// function, decoding the JSONB and vector columns.
func scanBusinessContext(scan func(dest ...any) error) (domain.BusinessContext, error) {
	var (
		bc                  domain.BusinessContext
		profileJSON         []byte
		keywordsJSON        []byte
		insightsJSON        []byte
		recommendationsJSON []byte
		embedding           sql.Null[pgvector.Vector]
	)

	err := scan(
		&bc.BusinessID,
		&profileJSON,
		&keywordsJSON,
		&insightsJSON,
		&recommendationsJSON,
		&embedding,
		&bc.CreatedAt,
		&bc.UpdatedAt,
	)
	if err != nil {
		return domain.BusinessContext{}, err
	}

	if err := json.Unmarshal(profileJSON, &bc.Profile); err != nil {
		return domain.BusinessContext{}, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	if err := json.Unmarshal(keywordsJSON, &bc.Keywords); err != nil {
		return domain.BusinessContext{}, fmt.Errorf("failed to unmarshal keywords: %w", err)
	}
	if err := json.Unmarshal(insightsJSON, &bc.Insights); err != nil {
		return domain.BusinessContext{}, fmt.Errorf("failed to unmarshal insights: %w", err)
	}
	if err := json.Unmarshal(recommendationsJSON, &bc.Recommendations); err != nil {
		return domain.BusinessContext{}, fmt.Errorf("failed to unmarshal recommendations: %w", err)
	}
	if embedding.Valid {
		bc.Embedding = fromVector(embedding.V)
	}

	return bc, nil
}

// InitBusinessContextRepository is a Symbiont initializer for BusinessContextRepository.
type InitBusinessContextRepository struct {
	DB *sql.DB `resolve:""`
}

// Initialize registers the BusinessContextRepository in the dependency container.
func (br InitBusinessContextRepository) Initialize(ctx context.Context) (context.Context, error) {
	depend.Register[domain.BusinessContextRepository](NewBusinessContextRepository(br.DB))
	return ctx, nil
}

// toNullableVector maps an absent embedding to NULL. The embedding column
// accepts NULL so contexts stay persistable when no provider is configured.
func toNullableVector(input []float64) any {
	if len(input) == 0 {
		return nil
	}
	return pgvector.NewVector(toFloat32Truncated(input))
}

func toFloat32Truncated(input []float64) []float32 {
	f32 := make([]float32, len(input))
	for i, v := range input {
		f32[i] = float32(v)
	}
	if len(f32) > 1536 {
		f32 = f32[:1536]
	}
	return f32
}

func fromVector(v pgvector.Vector) []float64 {
	f32 := v.Slice()
	if len(f32) == 0 {
		return nil
	}
	f64 := make([]float64, len(f32))
	for i, val := range f32 {
		f64[i] = float64(val)
	}
	return f64
}
