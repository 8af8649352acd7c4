package rest

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/provenly/interview-integrity-backend/internal/infrastructure/auth"
)

// handleVisionResult lets an out-of-process vision worker post its result
// directly instead of going through the queue's own invocation. The record
// resolves the interview; one integrity event is emitted per detected
// anomaly, exactly as with in-process analysis.
func (h *Handler) handleVisionResult(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, auth.RoleWorker) {
		return
	}

	mediaID, err := uuid.Parse(r.PathValue("mediaId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid media id")
		return
	}

	var req visionResultRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	rec, err := h.services.Repos.Media.GetByID(r.Context(), mediaID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	summary := req.Summary
	if req.Error != "" {
		summary = map[string]any{"error": req.Error}
	}
	if summary == nil {
		summary = map[string]any{}
	}
	if err := h.services.Repos.Media.MarkVisionProcessed(r.Context(), mediaID, summary); err != nil {
		writeServiceError(w, err)
		return
	}

	if req.Error == "" {
		for _, ev := range req.Events {
			h.services.Emitter.Emit(rec.InterviewID, ev.Type, ev.Payload)
		}
	}

	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
