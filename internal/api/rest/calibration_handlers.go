package rest

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	domaingaze "github.com/provenly/interview-integrity-backend/internal/domain/gaze"
)

// handleSaveCalibration stores the gaze calibration recorded during
// biometric setup.
func (h *Handler) handleSaveCalibration(w http.ResponseWriter, r *http.Request) {
	id, err := interviewIDFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid interview id")
		return
	}
	if !requireInterviewAccess(w, r, id) {
		return
	}

	var req calibrationRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	cal := &domaingaze.Calibration{Bounds: req.Bounds}
	for _, s := range req.Samples {
		cal.Samples = append(cal.Samples, domaingaze.Sample{
			X:          s.X,
			Y:          s.Y,
			Confidence: s.Confidence,
			T:          time.UnixMilli(s.T).UTC(),
		})
	}

	if err := h.services.Calibrations.Save(r.Context(), id, cal); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// handleGetCalibration returns the stored calibration, 404 when none.
func (h *Handler) handleGetCalibration(w http.ResponseWriter, r *http.Request) {
	id, err := interviewIDFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid interview id")
		return
	}
	if !requireInterviewAccess(w, r, id) {
		return
	}

	cal, err := h.services.Calibrations.Load(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if cal == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no calibration for interview")
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

// handleUploadReferenceFace stores the identity snapshot the vision worker
// compares every chunk against.
func (h *Handler) handleUploadReferenceFace(w http.ResponseWriter, r *http.Request) {
	id, err := interviewIDFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid interview id")
		return
	}
	if !requireInterviewAccess(w, r, id) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Server.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "missing multipart field \"file\"")
		return
	}
	defer file.Close()

	dir := filepath.Join(h.cfg.Server.UploadDir, id.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		h.logger.Error("reference face dir failed", "interview_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "could not store reference face")
		return
	}

	path := filepath.Join(dir, fmt.Sprintf("reference_face%s", imageExt(header.Filename)))
	dst, err := os.Create(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "could not store reference face")
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		writeError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "could not store reference face")
		return
	}

	if err := h.services.Repos.Interview.SetReferenceFace(r.Context(), id, path); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{OK: true, ID: id, Path: path})
}

func imageExt(filename string) string {
	switch ext := filepath.Ext(filename); ext {
	case ".png", ".jpg", ".jpeg", ".webp":
		return ext
	}
	return ".jpg"
}
