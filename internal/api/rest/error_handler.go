package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/provenly/interview-integrity-backend/internal/errors"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/repository"
)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps internal error types onto HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := http.StatusUnprocessableEntity
		switch appErr.Code {
		case "NOT_FOUND":
			status = http.StatusNotFound
		case "VALIDATION_ERROR":
			status = http.StatusBadRequest
		}
		writeError(w, status, appErr.Code, appErr.Message)
		return
	}

	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}
