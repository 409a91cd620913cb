package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// BusinessProfile is the structured extraction target. A nil field means
// "not yet known", not "empty".
type BusinessProfile struct {
	Name                *string  `json:"name,omitempty"`
	Type                *string  `json:"type,omitempty"`
	Description         *string  `json:"description,omitempty"`
	Employees           *int     `json:"employees,omitempty"`
	YearFounded         *int     `json:"year_founded,omitempty"`
	TargetAudience      *string  `json:"target_audience,omitempty"`
	ProductsServices    []string `json:"products_services,omitempty"`
	KeyChallenges       []string `json:"key_challenges,omitempty"`
	Goals               []string `json:"goals,omitempty"`
	UniqueSellingPoints []string `json:"unique_selling_points,omitempty"`
	Competitors         []string `json:"competitors,omitempty"`
}

// Render flattens the profile into "field: value" lines, skipping unset
// fields. Used to feed the profile back into follow-up prompts.
func (p BusinessProfile) Render() string {
	var lines []string
	appendStr := func(key string, v *string) {
		if v != nil && *v != "" {
			lines = append(lines, fmt.Sprintf("- %s: %s", key, *v))
		}
	}
	appendInt := func(key string, v *int) {
		if v != nil {
			lines = append(lines, fmt.Sprintf("- %s: %d", key, *v))
		}
	}
	appendList := func(key string, v []string) {
		if len(v) > 0 {
			lines = append(lines, fmt.Sprintf("- %s: %s", key, strings.Join(v, ", ")))
		}
	}

	appendStr("name", p.Name)
	appendStr("type", p.Type)
	appendStr("description", p.Description)
	appendInt("employees", p.Employees)
	appendInt("year_founded", p.YearFounded)
	appendStr("target_audience", p.TargetAudience)
	appendList("products_services", p.ProductsServices)
	appendList("key_challenges", p.KeyChallenges)
	appendList("goals", p.Goals)
	appendList("unique_selling_points", p.UniqueSellingPoints)
	appendList("competitors", p.Competitors)

	return strings.Join(lines, "\n")
}

// BusinessContext is the unit of retrieval: one profile plus keywords,
// insights and recommendations for a single business. Identity is the
// business id.
type BusinessContext struct {
	BusinessID      string
	Profile         BusinessProfile
	Keywords        []string
	Insights        map[string]string
	Recommendations []string
	// Embedding caches the vector derived from the context rendering.
	// Regenerated whenever the context changes.
	Embedding []float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the identity of the context.
func (bc BusinessContext) Validate() error {
	if bc.BusinessID == "" {
		return NewValidationErr("business_id is required")
	}
	return nil
}

// RetrievalResult pairs a candidate context with its query score. Transient,
// produced per query.
type RetrievalResult struct {
	Context BusinessContext
	// Score is the cosine similarity, or the combined score for hybrid
	// retrieval.
	Score float64
	// MatchCount is the number of keyword matches for keyword retrieval.
	MatchCount int
	// VectorScore and KeywordScore are the hybrid components.
	VectorScore  float64
	KeywordScore float64
}

// BusinessContextRepository persists business contexts keyed by business id.
type BusinessContextRepository interface {
	// StoreContext inserts or replaces the context for its business id.
	StoreContext(ctx context.Context, bc BusinessContext) error
	// GetContext retrieves a context by business id.
	GetContext(ctx context.Context, businessID string) (BusinessContext, bool, error)
	// ListContexts returns all stored contexts.
	ListContexts(ctx context.Context) ([]BusinessContext, error)
	// DeleteContext removes the context for the given business id.
	DeleteContext(ctx context.Context, businessID string) error
	// SearchSimilarContexts returns up to limit contexts ordered by vector
	// distance to the given embedding.
	SearchSimilarContexts(ctx context.Context, embedding []float64, limit int) ([]BusinessContext, error)
}
