package usecases

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/cleitonmarx/symbiont/depend"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chidihq/chidi-backend/internal/common"
	"github.com/chidihq/chidi-backend/internal/domain"
	"github.com/chidihq/chidi-backend/internal/telemetry"
)

// Default ranking parameters used by callers that do not override them.
const (
	DefaultTopK                  = 3
	DefaultSimilarityThreshold   = 0.7
	DefaultKeywordMatchThreshold = 1
	DefaultVectorWeight          = 0.7
	DefaultKeywordWeight         = 0.3
	DefaultMaxQueryKeywords      = 5
)

// RetrieveContext ranks stored business contexts against a query.
type RetrieveContext interface {
	// RetrieveSimilar ranks contexts by cosine similarity between the query
	// embedding and each context embedding, keeping scores at or above
	// threshold.
	RetrieveSimilar(ctx context.Context, query string, topK int, threshold float64) ([]domain.RetrievalResult, error)
	// RetrieveByKeywords ranks contexts by case-insensitive keyword overlap,
	// keeping match counts at or above matchThreshold.
	RetrieveByKeywords(ctx context.Context, keywords []string, topK, matchThreshold int) ([]domain.RetrievalResult, error)
	// RetrieveHybrid combines vector and keyword rankings with the given
	// weights, normalized to sum to 1.
	RetrieveHybrid(ctx context.Context, query string, keywords []string, topK int, vectorWeight, keywordWeight float64) ([]domain.RetrievalResult, error)
}

// RetrieveContextImpl is the implementation of the RetrieveContext use case.
type RetrieveContextImpl struct {
	repo     domain.BusinessContextRepository
	embedder GenerateEmbedding
	logger   *log.Logger
}

// NewRetrieveContextImpl creates a new instance of RetrieveContextImpl.
func NewRetrieveContextImpl(repo domain.BusinessContextRepository, embedder GenerateEmbedding, logger *log.Logger) RetrieveContextImpl {
	return RetrieveContextImpl{
		repo:     repo,
		embedder: embedder,
		logger:   logger,
	}
}

// RetrieveSimilar ranks contexts by cosine similarity to the query.
func (rc RetrieveContextImpl) RetrieveSimilar(ctx context.Context, query string, topK int, threshold float64) ([]domain.RetrievalResult, error) {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.Int("top_k", topK)),
	)
	defer span.End()

	candidates, err := rc.repo.ListContexts(spanCtx)
	if telemetry.RecordErrorAndStatus(span, err) {
		return nil, err
	}

	return rc.scoreBySimilarity(spanCtx, query, candidates, topK, threshold), nil
}

// RetrieveByKeywords ranks contexts by keyword overlap.
func (rc RetrieveContextImpl) RetrieveByKeywords(ctx context.Context, keywords []string, topK, matchThreshold int) ([]domain.RetrievalResult, error) {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.Int("top_k", topK)),
	)
	defer span.End()

	candidates, err := rc.repo.ListContexts(spanCtx)
	if telemetry.RecordErrorAndStatus(span, err) {
		return nil, err
	}

	return scoreByKeywords(keywords, candidates, topK, matchThreshold), nil
}

// RetrieveHybrid combines vector and keyword rankings. Weights are
// normalized by their sum; when both are zero they default to 0.5/0.5.
func (rc RetrieveContextImpl) RetrieveHybrid(ctx context.Context, query string, keywords []string, topK int, vectorWeight, keywordWeight float64) ([]domain.RetrievalResult, error) {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.Int("top_k", topK)),
	)
	defer span.End()

	candidates, err := rc.repo.ListContexts(spanCtx)
	if telemetry.RecordErrorAndStatus(span, err) {
		return nil, err
	}

	total := vectorWeight + keywordWeight
	if total == 0 {
		vectorWeight, keywordWeight = 0.5, 0.5
	} else {
		vectorWeight, keywordWeight = vectorWeight/total, keywordWeight/total
	}

	vectorResults := rc.scoreBySimilarity(spanCtx, query, candidates, len(candidates), DefaultSimilarityThreshold)
	keywordResults := scoreByKeywords(keywords, candidates, len(candidates), DefaultKeywordMatchThreshold)

	vectorScores := make(map[string]float64, len(vectorResults))
	for _, result := range vectorResults {
		vectorScores[result.Context.BusinessID] = result.Score
	}

	keywordCount := len(keywords)
	if keywordCount == 0 {
		keywordCount = 1
	}
	keywordScores := make(map[string]float64, len(keywordResults))
	for _, result := range keywordResults {
		keywordScores[result.Context.BusinessID] = float64(result.MatchCount) / float64(keywordCount)
	}

	results := make([]domain.RetrievalResult, 0, len(candidates))
	for _, candidate := range candidates {
		vectorScore := vectorScores[candidate.BusinessID]
		keywordScore := keywordScores[candidate.BusinessID]
		results = append(results, domain.RetrievalResult{
			Context:      candidate,
			Score:        vectorScore*vectorWeight + keywordScore*keywordWeight,
			VectorScore:  vectorScore,
			KeywordScore: keywordScore,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return truncateResults(results, topK), nil
}

// scoreBySimilarity embeds the query and each candidate without a cached
// embedding, keeping scores at or above threshold. A query embedding
// failure yields an empty result, not an error.
func (rc RetrieveContextImpl) scoreBySimilarity(ctx context.Context, query string, candidates []domain.BusinessContext, topK int, threshold float64) []domain.RetrievalResult {
	queryEmbedding, err := rc.embedder.Execute(ctx, query)
	if err != nil {
		rc.logger.Printf("failed to generate query embedding: %v", err)
		return []domain.RetrievalResult{}
	}

	results := make([]domain.RetrievalResult, 0, len(candidates))
	for _, candidate := range candidates {
		embedding := candidate.Embedding
		if len(embedding) == 0 {
			embedding, err = rc.embedder.ExecuteForContext(ctx, candidate)
			if err != nil {
				rc.logger.Printf("skipping context %s: embedding failed: %v", candidate.BusinessID, err)
				continue
			}
		}

		score, _ := common.CosineSimilarity(queryEmbedding, embedding)
		if score >= threshold {
			results = append(results, domain.RetrievalResult{
				Context:     candidate,
				Score:       score,
				VectorScore: score,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return truncateResults(results, topK)
}

// scoreByKeywords counts case-insensitive exact matches between the query
// keywords and each candidate's keyword list.
func scoreByKeywords(keywords []string, candidates []domain.BusinessContext, topK, matchThreshold int) []domain.RetrievalResult {
	queryKeywords := make([]string, len(keywords))
	for i, keyword := range keywords {
		queryKeywords[i] = strings.ToLower(keyword)
	}

	results := make([]domain.RetrievalResult, 0, len(candidates))
	for _, candidate := range candidates {
		candidateKeywords := make(map[string]struct{}, len(candidate.Keywords))
		for _, keyword := range candidate.Keywords {
			candidateKeywords[strings.ToLower(keyword)] = struct{}{}
		}

		matches := 0
		for _, keyword := range queryKeywords {
			if _, ok := candidateKeywords[keyword]; ok {
				matches++
			}
		}
		if matches >= matchThreshold {
			results = append(results, domain.RetrievalResult{
				Context:    candidate,
				Score:      float64(matches),
				MatchCount: matches,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MatchCount > results[j].MatchCount
	})
	return truncateResults(results, topK)
}

func truncateResults(results []domain.RetrievalResult, topK int) []domain.RetrievalResult {
	if topK > 0 && len(results) > topK {
		return results[:topK]
	}
	return results
}

// queryStopWords are dropped during naive keyword extraction.
var queryStopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "if": {},
	"because": {}, "as": {}, "what": {}, "when": {}, "where": {}, "how": {},
	"who": {}, "which": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {}, "can": {},
	"could": {}, "will": {}, "would": {}, "should": {}, "shall": {}, "may": {},
	"might": {}, "must": {}, "to": {}, "for": {}, "with": {}, "about": {},
	"against": {}, "between": {}, "into": {}, "through": {}, "during": {},
	"before": {}, "after": {}, "above": {}, "below": {}, "from": {}, "up": {},
	"down": {}, "in": {}, "out": {}, "on": {}, "off": {}, "over": {}, "under": {},
	"again": {}, "further": {}, "then": {}, "once": {}, "here": {}, "there": {},
	"all": {}, "any": {}, "both": {}, "each": {}, "few": {}, "more": {},
	"most": {}, "other": {}, "some": {}, "such": {}, "no": {}, "nor": {},
	"not": {}, "only": {}, "own": {}, "same": {}, "so": {}, "than": {},
	"too": {}, "very": {}, "just": {}, "now": {},
}

// ExtractKeywordsFromText extracts up to maxKeywords content tokens from
// free text, ranked by frequency with first-occurrence tiebreak.
func ExtractKeywordsFromText(text string, maxKeywords int) []string {
	if maxKeywords <= 0 {
		maxKeywords = DefaultMaxQueryKeywords
	}

	frequency := map[string]int{}
	var order []string
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = stripNonAlphanumeric(token)
		if len(token) <= 2 {
			continue
		}
		if _, stop := queryStopWords[token]; stop {
			continue
		}
		if _, seen := frequency[token]; !seen {
			order = append(order, token)
		}
		frequency[token]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return frequency[order[i]] > frequency[order[j]]
	})
	if len(order) > maxKeywords {
		order = order[:maxKeywords]
	}
	return order
}

func stripNonAlphanumeric(token string) string {
	var sb strings.Builder
	for _, r := range token {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// InitRetrieveContext initializes the RetrieveContext use case.
type InitRetrieveContext struct {
	Repo     domain.BusinessContextRepository `resolve:""`
	Embedder GenerateEmbedding                `resolve:""`
	Logger   *log.Logger                      `resolve:""`
}

// Initialize registers the RetrieveContext use case implementation.
func (irc InitRetrieveContext) Initialize(ctx context.Context) (context.Context, error) {
	depend.Register[RetrieveContext](NewRetrieveContextImpl(irc.Repo, irc.Embedder, irc.Logger))
	return ctx, nil
}
