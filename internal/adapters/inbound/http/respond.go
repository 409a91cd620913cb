package http

import (
	"encoding/json"
	"net/http"
)

func respondJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, err errorResp) {
	statusCode := http.StatusInternalServerError
	switch err.Error.Code {
	case errorCode_BadRequest:
		statusCode = http.StatusBadRequest
	case errorCode_NotFound:
		statusCode = http.StatusNotFound
	}
	respondJSON(w, statusCode, err)
}
