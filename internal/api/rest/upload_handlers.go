package rest

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/provenly/interview-integrity-backend/internal/domain/event"
	"github.com/provenly/interview-integrity-backend/internal/domain/media"
	"github.com/provenly/interview-integrity-backend/internal/service/shadow"
	"github.com/provenly/interview-integrity-backend/internal/service/vision"
)

// handleUploadVideo accepts one recorded video chunk and schedules vision
// analysis after responding. The candidate's capture loop is strictly
// serialized, so holding the connection for analysis would stall recording.
func (h *Handler) handleUploadVideo(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, media.KindVideo)
}

// handleUploadAudio accepts one audio answer and schedules the shadow
// assessment after responding.
func (h *Handler) handleUploadAudio(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, media.KindAudio)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request, kind media.Kind) {
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
	start := time.Now()

	path, err := h.saveUpload(id, kind, file, header)
	if err != nil {
		h.logger.Error("upload save failed", "interview_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "could not store upload")
		return
	}

	rec, err := media.NewRecord(id, kind, path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if err := h.services.Repos.Media.Create(r.Context(), rec); err != nil {
		writeServiceError(w, err)
		return
	}

	uploadEvent := event.TypeVideoChunkUploaded
	if kind == media.KindAudio {
		uploadEvent = event.TypeAudioAnswerUploaded
	}
	h.services.Emitter.Emit(id, uploadEvent, map[string]any{
		"media_id": rec.ID.String(),
		"path":     path,
		"bytes":    header.Size,
	})
	if h.services.Metrics != nil {
		h.services.Metrics.RecordUpload(r.Context(), kind.String(), header.Size,
			float64(time.Since(start).Milliseconds()))
	}

	// Respond first, analyze after: the upload ack must not wait on models.
	writeJSON(w, http.StatusCreated, uploadResponse{OK: true, ID: rec.ID, Path: path})

	switch kind {
	case media.KindVideo:
		h.services.Vision.Process(vision.Job{MediaID: rec.ID, InterviewID: id, VideoPath: path})
	case media.KindAudio:
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			_ = h.services.Shadow.ProcessAnswer(ctx, shadow.Job{MediaID: rec.ID, InterviewID: id, AudioPath: path})
		}()
	}
}

func (h *Handler) saveUpload(interviewID uuid.UUID, kind media.Kind, file multipart.File, header *multipart.FileHeader) (string, error) {
	dir := filepath.Join(h.cfg.Server.UploadDir, interviewID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}

	name := fmt.Sprintf("%s_%d%s", kind, time.Now().UnixMilli(), safeExt(header.Filename))
	path := filepath.Join(dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing upload: %w", err)
	}
	return path, nil
}

// safeExt keeps the client extension when it is a known container,
// otherwise falls back to webm, which is what browser recorders produce.
func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".webm", ".mp4", ".wav", ".ogg", ".mp3", ".m4a":
		return ext
	}
	return ".webm"
}
