package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domaingaze "github.com/provenly/interview-integrity-backend/internal/domain/gaze"
	"github.com/provenly/interview-integrity-backend/internal/proctor/capture"
)

func TestClientUploadsChunkAsMultipart(t *testing.T) {
	interviewID := uuid.New()

	var gotPath, gotAuth string
	var gotData []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		gotData, err = io.ReadAll(file)
		require.NoError(t, err)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := newAPIClient(srv.URL, "candidate-token", interviewID)
	chunk := capture.Chunk{Data: []byte("webm-bytes"), MimeType: "video/webm", RecordedAt: time.Now()}
	require.NoError(t, client.Upload(context.Background(), interviewID, chunk))

	assert.Equal(t, "/api/interviews/"+interviewID.String()+"/video", gotPath)
	assert.Equal(t, "Bearer candidate-token", gotAuth)
	assert.Equal(t, []byte("webm-bytes"), gotData)
}

func TestClientUploadRejectionIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := newAPIClient(srv.URL, "tok", uuid.New())
	err := client.Upload(context.Background(), uuid.New(), capture.Chunk{Data: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk upload rejected")
}

func TestClientPostsGazeSampleEnvelope(t *testing.T) {
	interviewID := uuid.New()

	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newAPIClient(srv.URL, "tok", interviewID)
	at := time.UnixMilli(1700000000123).UTC()
	sample := domaingaze.Sample{X: 512, Y: 300, Confidence: 0.92, T: at}
	require.NoError(t, client.PostGazeSample(context.Background(), sample))

	assert.Equal(t, "/api/interviews/"+interviewID.String()+"/events", gotPath)
	assert.Equal(t, "gaze_sample", gotBody["type"])

	payload, ok := gotBody["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 512.0, payload["x"])
	assert.Equal(t, 300.0, payload["y"])
	assert.Equal(t, 0.92, payload["confidence"])
	assert.Equal(t, float64(1700000000123), payload["t"])
}
