package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chidihq/chidi-backend/internal/domain"
	"github.com/chidihq/chidi-backend/internal/usecases"
)

type listContextsResp struct {
	Items []restContext `json:"items"`
}

type enrichContextReq struct {
	Data map[string]string `json:"data"`
}

type retrieveContextsReq struct {
	Query          string   `json:"query"`
	Keywords       []string `json:"keywords"`
	Mode           string   `json:"mode"`
	TopK           int      `json:"top_k"`
	Threshold      *float64 `json:"threshold"`
	MatchThreshold *int     `json:"match_threshold"`
	VectorWeight   *float64 `json:"vector_weight"`
	KeywordWeight  *float64 `json:"keyword_weight"`
}

type retrieveContextsResp struct {
	Results []restRetrievalResult `json:"results"`
}

func (api ChidiServer) ListContexts(w http.ResponseWriter, r *http.Request) {
	contexts, err := api.ContextRepo.ListContexts(r.Context())
	if err != nil {
		api.Logger.Printf("Error listing business contexts: %v", err)
		respondError(w, toError(err))
		return
	}

	resp := listContextsResp{Items: []restContext{}}
	for _, bc := range contexts {
		resp.Items = append(resp.Items, toRestContext(bc))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (api ChidiServer) GetContext(w http.ResponseWriter, r *http.Request) {
	businessID := r.PathValue("businessId")

	bc, found, err := api.ContextRepo.GetContext(r.Context(), businessID)
	if err != nil {
		api.Logger.Printf("Error getting business context: %v", err)
		respondError(w, toError(err))
		return
	}
	if !found {
		respondError(w, toError(domain.NewNotFoundErr("business context not found for id "+businessID)))
		return
	}

	respondJSON(w, http.StatusOK, toRestContext(bc))
}

func (api ChidiServer) DeleteContext(w http.ResponseWriter, r *http.Request) {
	businessID := r.PathValue("businessId")

	if err := api.ContextRepo.DeleteContext(r.Context(), businessID); err != nil {
		api.Logger.Printf("Error deleting business context: %v", err)
		respondError(w, toError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (api ChidiServer) EnrichContext(w http.ResponseWriter, r *http.Request) {
	businessID := r.PathValue("businessId")

	var req enrichContextReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, badRequest(fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	if len(req.Data) == 0 {
		respondError(w, badRequest("data is required"))
		return
	}

	bc, err := api.EnrichContextUseCase.Execute(r.Context(), businessID, req.Data)
	if err != nil {
		api.Logger.Printf("Error enriching business context: %v", err)
		respondError(w, toError(err))
		return
	}

	respondJSON(w, http.StatusOK, toRestContext(bc))
}

// RetrieveContexts ranks stored contexts against a query. The mode selects
// vector, keyword or hybrid scoring; omitted tuning fields use the engine
// defaults.
func (api ChidiServer) RetrieveContexts(w http.ResponseWriter, r *http.Request) {
	var req retrieveContextsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, badRequest(fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = usecases.DefaultTopK
	}
	keywords := req.Keywords
	if len(keywords) == 0 && req.Query != "" {
		keywords = usecases.ExtractKeywordsFromText(req.Query, usecases.DefaultMaxQueryKeywords)
	}

	var (
		results []domain.RetrievalResult
		err     error
	)
	switch req.Mode {
	case "keywords":
		matchThreshold := usecases.DefaultKeywordMatchThreshold
		if req.MatchThreshold != nil {
			matchThreshold = *req.MatchThreshold
		}
		if len(keywords) == 0 {
			respondError(w, badRequest("keywords or query is required"))
			return
		}
		results, err = api.RetrieveContextUseCase.RetrieveByKeywords(r.Context(), keywords, topK, matchThreshold)

	case "hybrid":
		if req.Query == "" {
			respondError(w, badRequest("query is required"))
			return
		}
		vectorWeight := usecases.DefaultVectorWeight
		if req.VectorWeight != nil {
			vectorWeight = *req.VectorWeight
		}
		keywordWeight := usecases.DefaultKeywordWeight
		if req.KeywordWeight != nil {
			keywordWeight = *req.KeywordWeight
		}
		results, err = api.RetrieveContextUseCase.RetrieveHybrid(r.Context(), req.Query, keywords, topK, vectorWeight, keywordWeight)

	case "", "similar":
		if req.Query == "" {
			respondError(w, badRequest("query is required"))
			return
		}
		threshold := usecases.DefaultSimilarityThreshold
		if req.Threshold != nil {
			threshold = *req.Threshold
		}
		results, err = api.RetrieveContextUseCase.RetrieveSimilar(r.Context(), req.Query, topK, threshold)

	default:
		respondError(w, badRequest("unknown retrieval mode: "+req.Mode))
		return
	}
	if err != nil {
		api.Logger.Printf("Error retrieving business contexts: %v", err)
		respondError(w, toError(err))
		return
	}

	respondJSON(w, http.StatusOK, retrieveContextsResp{Results: toRestRetrievalResults(results)})
}
