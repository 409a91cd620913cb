package http

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type workspaceChatReq struct {
	Message string `json:"message"`
}

type workspaceChatResp struct {
	Reply string `json:"reply"`
}

// WorkspaceChat answers a free-text workspace question, grounded in the
// stored business context when one is similar enough.
func (api ChidiServer) WorkspaceChat(w http.ResponseWriter, r *http.Request) {
	var req workspaceChatReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, badRequest(fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	reply, err := api.WorkspaceChatUseCase.Execute(r.Context(), req.Message)
	if err != nil {
		api.Logger.Printf("Error answering workspace chat: %v", err)
		respondError(w, toError(err))
		return
	}

	respondJSON(w, http.StatusOK, workspaceChatResp{Reply: reply})
}
