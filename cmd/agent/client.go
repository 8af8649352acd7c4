package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	domaingaze "github.com/provenly/interview-integrity-backend/internal/domain/gaze"
	"github.com/provenly/interview-integrity-backend/internal/proctor/capture"
)

// apiClient talks to the backend on behalf of one interview session. It is
// the agent-side counterpart of the upload and event routes.
type apiClient struct {
	baseURL     string
	token       string
	interviewID uuid.UUID
	http        *http.Client
}

func newAPIClient(baseURL, token string, interviewID uuid.UUID) *apiClient {
	return &apiClient{
		baseURL:     baseURL,
		token:       token,
		interviewID: interviewID,
		http:        &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload posts one recorded chunk as multipart form data. It satisfies
// capture.Uploader; a failure here loses only this chunk.
func (c *apiClient) Upload(ctx context.Context, interviewID uuid.UUID, chunk capture.Chunk) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "chunk.webm")
	if err != nil {
		return fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := part.Write(chunk.Data); err != nil {
		return fmt.Errorf("building multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("building multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/api/interviews/%s/video", c.baseURL, interviewID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("chunk upload rejected: %s", resp.Status)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// PostGazeSample forwards one engine prediction to the events endpoint in
// the envelope the session tracker consumes.
func (c *apiClient) PostGazeSample(ctx context.Context, s domaingaze.Sample) error {
	payload := map[string]any{
		"type": "gaze_sample",
		"payload": map[string]any{
			"x":          s.X,
			"y":          s.Y,
			"confidence": s.Confidence,
			"t":          s.T.UnixMilli(),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/interviews/%s/events", c.baseURL, c.interviewID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("gaze sample rejected: %s", resp.Status)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
