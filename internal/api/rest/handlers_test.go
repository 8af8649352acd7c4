package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/provenly/interview-integrity-backend/internal/domain/event"
	domaingaze "github.com/provenly/interview-integrity-backend/internal/domain/gaze"
	"github.com/provenly/interview-integrity-backend/internal/domain/interview"
	"github.com/provenly/interview-integrity-backend/internal/domain/media"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/auth"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/cache"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/config"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/events"
	"github.com/provenly/interview-integrity-backend/internal/infrastructure/repository"
	"github.com/provenly/interview-integrity-backend/internal/service/alerts"
	"github.com/provenly/interview-integrity-backend/internal/service/shadow"
	"github.com/provenly/interview-integrity-backend/internal/service/vision"
)

// ---- in-memory repositories ----

type memInterviewRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*interview.Interview
}

func newMemInterviewRepo() *memInterviewRepo {
	return &memInterviewRepo{rows: make(map[uuid.UUID]*interview.Interview)}
}

func (r *memInterviewRepo) Create(_ context.Context, iv *interview.Interview) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[iv.ID] = iv
	return nil
}

func (r *memInterviewRepo) GetByID(_ context.Context, id uuid.UUID) (*interview.Interview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	iv, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return iv, nil
}

func (r *memInterviewRepo) AppendFollowUp(_ context.Context, id uuid.UUID, q interview.Question, limit int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	iv, ok := r.rows[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if iv.FollowUpCount >= limit {
		return false, nil
	}
	iv.Questions = append(iv.Questions, q)
	iv.FollowUpCount++
	return true, nil
}

func (r *memInterviewRepo) UpdateSummary(_ context.Context, id uuid.UUID, s *interview.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if iv, ok := r.rows[id]; ok {
		iv.Summary = s
	}
	return nil
}

func (r *memInterviewRepo) SetReferenceFace(_ context.Context, id uuid.UUID, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if iv, ok := r.rows[id]; ok {
		iv.ReferenceFacePath = path
	}
	return nil
}

type memEventRepo struct {
	mu   sync.Mutex
	rows []*event.IntegrityEvent
}

func (r *memEventRepo) Append(_ context.Context, ev *event.IntegrityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, ev)
	return nil
}

func (r *memEventRepo) LatestWarning(_ context.Context, interviewID uuid.UUID, since time.Time, types []string) (*event.IntegrityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	var latest *event.IntegrityEvent
	for _, ev := range r.rows {
		if ev.InterviewID != interviewID || !allowed[ev.Type] || ev.CreatedAt.Before(since) {
			continue
		}
		if latest == nil || ev.CreatedAt.After(latest.CreatedAt) {
			latest = ev
		}
	}
	return latest, nil
}

func (r *memEventRepo) ListByInterview(_ context.Context, interviewID uuid.UUID) ([]*event.IntegrityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*event.IntegrityEvent
	for _, ev := range r.rows {
		if ev.InterviewID == interviewID {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memEventRepo) typesFor(interviewID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.rows {
		if ev.InterviewID == interviewID {
			out = append(out, ev.Type)
		}
	}
	return out
}

type memMediaRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*media.Record
}

func newMemMediaRepo() *memMediaRepo {
	return &memMediaRepo{rows: make(map[uuid.UUID]*media.Record)}
}

func (r *memMediaRepo) Create(_ context.Context, rec *media.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[rec.ID] = rec
	return nil
}

func (r *memMediaRepo) GetByID(_ context.Context, id uuid.UUID) (*media.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

func (r *memMediaRepo) MarkVisionProcessed(_ context.Context, id uuid.UUID, summary map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.rows[id]; ok {
		rec.Processed = true
		rec.VisionSummary = summary
	}
	return nil
}

func (r *memMediaRepo) MarkAnalyzed(_ context.Context, id uuid.UUID, transcript string, analysis *media.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.rows[id]; ok {
		rec.Transcript = transcript
		rec.Analysis = analysis
	}
	return nil
}

func (r *memMediaRepo) Transcripts(_ context.Context, interviewID, exclude uuid.UUID, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, rec := range r.rows {
		if rec.InterviewID == interviewID && rec.ID != exclude && rec.Transcript != "" && len(out) < limit {
			out = append(out, rec.Transcript)
		}
	}
	return out, nil
}

func (r *memMediaRepo) AnalyzedScores(_ context.Context, interviewID uuid.UUID) ([]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []float64
	for _, rec := range r.rows {
		if rec.InterviewID == interviewID && rec.Analysis != nil {
			out = append(out, rec.Analysis.Score)
		}
	}
	return out, nil
}

// ---- harness ----

type testEnv struct {
	server     *httptest.Server
	authSvc    *auth.Service
	interviews *memInterviewRepo
	eventsRepo *memEventRepo
	mediaRepo  *memMediaRepo
	emitter    *events.Emitter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Server.UploadDir = t.TempDir()
	cfg.Security.JWTSecret = "test-secret"

	interviews := newMemInterviewRepo()
	eventsRepo := &memEventRepo{}
	mediaRepo := newMemMediaRepo()

	emitter := events.NewEmitter(eventsRepo, 64, zapNop())
	t.Cleanup(emitter.Close)

	alertSvc := alerts.NewService(eventsRepo, cfg.Alerts.Lookback, zapNop())
	poller := alerts.NewPoller(alertSvc, cache.NewAlertSnapshotStore(redisClient), cfg.Alerts.PollInterval, zapNop())

	visionSvc := vision.NewService(
		vision.NewQueue(cfg.Vision.MaxConcurrent),
		&stubVisionWorker{},
		mediaRepo,
		referenceFaceAdapter{interviews},
		emitter,
		zapNop(),
	)
	shadowSvc := shadow.NewService(nil, nil, nil, nil, mediaRepo, interviews, cfg.Shadow.ContextWindow, zapNop())

	authSvc, err := auth.NewService(cfg.Security.JWTSecret, cfg.Security.TokenExpiry)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	handler := NewHandler(cfg, &Services{
		Repos: &repository.Repositories{
			Interview: interviews,
			Event:     eventsRepo,
			Media:     mediaRepo,
		},
		Emitter:      emitter,
		Vision:       visionSvc,
		Shadow:       shadowSvc,
		Alerts:       alertSvc,
		Poller:       poller,
		Calibrations: cache.NewCalibrationStore(redisClient, zapNop()),
	}, logger, zapNop())

	api := http.NewServeMux()
	api.HandleFunc("POST /api/interviews", handler.handleCreateInterview)
	api.HandleFunc("GET /api/interviews/{id}", handler.handleGetInterview)
	api.HandleFunc("POST /api/interviews/{id}/events", handler.handlePostEvent)
	api.HandleFunc("GET /api/interviews/{id}/events", handler.handleListEvents)
	api.HandleFunc("POST /api/interviews/{id}/video", handler.handleUploadVideo)
	api.HandleFunc("POST /api/interviews/{id}/audio", handler.handleUploadAudio)
	api.HandleFunc("GET /api/interviews/{id}/alerts", handler.handleGetAlerts)
	api.HandleFunc("GET /api/interviews/{id}/session", handler.handleGetSession)
	api.HandleFunc("POST /api/interviews/{id}/calibration", handler.handleSaveCalibration)
	api.HandleFunc("GET /api/interviews/{id}/calibration", handler.handleGetCalibration)
	api.HandleFunc("POST /api/worker/vision/result/{mediaId}", handler.handleVisionResult)

	srv := httptest.NewServer(chain(api, authMiddleware(authSvc)))
	t.Cleanup(srv.Close)

	return &testEnv{
		server:     srv,
		authSvc:    authSvc,
		interviews: interviews,
		eventsRepo: eventsRepo,
		mediaRepo:  mediaRepo,
		emitter:    emitter,
	}
}

type stubVisionWorker struct{}

func (stubVisionWorker) Analyze(context.Context, string, string) (*media.VisionResult, error) {
	return &media.VisionResult{Summary: map[string]any{}}, nil
}

type referenceFaceAdapter struct {
	repo repository.InterviewRepository
}

func (a referenceFaceAdapter) ReferenceFacePath(ctx context.Context, interviewID uuid.UUID) (string, error) {
	iv, err := a.repo.GetByID(ctx, interviewID)
	if err != nil {
		return "", err
	}
	return iv.ReferenceFacePath, nil
}

func (e *testEnv) token(t *testing.T, role string, interviewID uuid.UUID) string {
	t.Helper()
	tok, err := e.authSvc.IssueToken(uuid.New(), role, interviewID)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) createInterview(t *testing.T) uuid.UUID {
	t.Helper()
	iv, err := interview.New("Ada Lovelace", "ada@example.com", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, e.interviews.Create(context.Background(), iv))
	return iv.ID
}

func (e *testEnv) startSession(t *testing.T, id uuid.UUID, token string) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/interviews/"+id.String()+"/events", token, eventRequest{
		Type: "session_start",
		Payload: map[string]any{
			"fullscreen_granted": true,
			"viewport_width":     1920.0,
			"viewport_height":    1080.0,
		},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// ---- tests ----

func TestEventsRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	id := env.createInterview(t)

	resp := env.do(t, http.MethodPost, "/api/interviews/"+id.String()+"/events", "", eventRequest{Type: "session_start"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCandidateScopedToOwnInterview(t *testing.T) {
	env := newTestEnv(t)
	mine := env.createInterview(t)
	other := env.createInterview(t)

	token := env.token(t, auth.RoleCandidate, mine)
	resp := env.do(t, http.MethodPost, "/api/interviews/"+other.String()+"/events", token, eventRequest{Type: "ping"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestViolationFlowLocksAfterThree(t *testing.T) {
	env := newTestEnv(t)
	id := env.createInterview(t)
	token := env.token(t, auth.RoleCandidate, id)
	env.startSession(t, id, token)

	for i := 0; i < 3; i++ {
		resp := env.do(t, http.MethodPost, "/api/interviews/"+id.String()+"/events", token, eventRequest{
			Type:    "violation",
			Payload: map[string]any{"reason": "TAB_OR_WINDOW_SWITCH"},
		})
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := env.do(t, http.MethodGet, "/api/interviews/"+id.String()+"/session", token, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.True(t, snap.Locked)
	assert.Equal(t, "locked", snap.State)
	assert.Equal(t, 3, snap.Violations)

	require.Eventually(t, func() bool {
		types := env.eventsRepo.typesFor(id)
		return contains(types, event.TypeProctorLocked)
	}, 2*time.Second, 10*time.Millisecond)

	types := env.eventsRepo.typesFor(id)
	assert.Equal(t, 2, count(types, event.TypeProctorViolation))
	assert.Equal(t, 1, count(types, event.TypeProctorLocked))
}

func TestBannedComboCountsOnce(t *testing.T) {
	env := newTestEnv(t)
	id := env.createInterview(t)
	token := env.token(t, auth.RoleCandidate, id)
	env.startSession(t, id, token)

	resp := env.do(t, http.MethodPost, "/api/interviews/"+id.String()+"/events", token, eventRequest{
		Type:    "keydown",
		Payload: map[string]any{"alt": true, "key": "Tab"},
	})
	resp.Body.Close()

	// Harmless chord is ignored.
	resp = env.do(t, http.MethodPost, "/api/interviews/"+id.String()+"/events", token, eventRequest{
		Type:    "keydown",
		Payload: map[string]any{"ctrl": true, "key": "C"},
	})
	resp.Body.Close()

	snapResp := env.do(t, http.MethodGet, "/api/interviews/"+id.String()+"/session", token, nil)
	defer snapResp.Body.Close()
	var snap sessionResponse
	require.NoError(t, json.NewDecoder(snapResp.Body).Decode(&snap))
	assert.Equal(t, 1, snap.Violations)
}

func TestFullscreenRefusalIsRetryable(t *testing.T) {
	env := newTestEnv(t)
	id := env.createInterview(t)
	token := env.token(t, auth.RoleCandidate, id)

	resp := env.do(t, http.MethodPost, "/api/interviews/"+id.String()+"/events", token, eventRequest{
		Type:    "session_start",
		Payload: map[string]any{"fullscreen_granted": false},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Retry succeeds and no violation was counted.
	env.startSession(t, id, token)
	snapResp := env.do(t, http.MethodGet, "/api/interviews/"+id.String()+"/session", token, nil)
	defer snapResp.Body.Close()
	var snap sessionResponse
	require.NoError(t, json.NewDecoder(snapResp.Body).Decode(&snap))
	assert.Equal(t, 0, snap.Violations)
	assert.Equal(t, "running", snap.State)
}

func TestUnknownEventTypePersistedVerbatim(t *testing.T) {
	env := newTestEnv(t)
	id := env.createInterview(t)
	token := env.token(t, auth.RoleCandidate, id)

	resp := env.do(t, http.MethodPost, "/api/interviews/"+id.String()+"/events", token, eventRequest{
		Type:    "network_glitch",
		Payload: map[string]any{"rtt_ms": 900},
	})
	resp.Body.Close()

	require.Eventually(t, func() bool {
		return contains(env.eventsRepo.typesFor(id), "network_glitch")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUploadVideoCreatesRecordAndEvent(t *testing.T) {
	env := newTestEnv(t)
	id := env.createInterview(t)
	token := env.token(t, auth.RoleCandidate, id)

	resp := env.doMultipart(t, "/api/interviews/"+id.String()+"/video", token, "chunk.webm", []byte("fake-video"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out uploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.OK)
	assert.NotEqual(t, uuid.Nil, out.ID)

	rec, err := env.mediaRepo.GetByID(context.Background(), out.ID)
	require.NoError(t, err)
	assert.Equal(t, media.KindVideo, rec.Kind)

	require.Eventually(t, func() bool {
		return contains(env.eventsRepo.typesFor(id), event.TypeVideoChunkUploaded)
	}, 2*time.Second, 10*time.Millisecond)

	// Vision analysis settles asynchronously.
	require.Eventually(t, func() bool {
		rec, err := env.mediaRepo.GetByID(context.Background(), out.ID)
		return err == nil && rec.Processed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUploadAudioTriggersShadowAnalysis(t *testing.T) {
	env := newTestEnv(t)
	id := env.createInterview(t)
	token := env.token(t, auth.RoleCandidate, id)

	resp := env.doMultipart(t, "/api/interviews/"+id.String()+"/audio", token, "answer.webm", []byte("fake-audio"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out uploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	// Offline shadow pipeline settles on the mock.
	require.Eventually(t, func() bool {
		rec, err := env.mediaRepo.GetByID(context.Background(), out.ID)
		return err == nil && rec.Analysis != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAlertsEndpointSurfacesWarning(t *testing.T) {
	env := newTestEnv(t)
	id := env.createInterview(t)

	ev, err := event.New(id, event.TypePhoneDetected, map[string]any{"objects": []any{"cell phone"}})
	require.NoError(t, err)
	require.NoError(t, env.eventsRepo.Append(context.Background(), ev))

	token := env.token(t, auth.RoleInterviewer, uuid.Nil)
	resp := env.do(t, http.MethodGet, "/api/interviews/"+id.String()+"/alerts", token, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var alert alerts.Alert
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&alert))
	assert.True(t, alert.HasWarning)
	assert.Equal(t, event.TypePhoneDetected, alert.Type)
}

func TestAlertsForbiddenForCandidate(t *testing.T) {
	env := newTestEnv(t)
	id := env.createInterview(t)

	token := env.token(t, auth.RoleCandidate, id)
	resp := env.do(t, http.MethodGet, "/api/interviews/"+id.String()+"/alerts", token, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCalibrationRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	id := env.createInterview(t)
	token := env.token(t, auth.RoleCandidate, id)

	resp := env.do(t, http.MethodPost, "/api/interviews/"+id.String()+"/calibration", token, calibrationRequest{
		Bounds:  domaingaze.CalibrationBounds{MinX: 100, MaxX: 900, MinY: 100, MaxY: 600},
		Samples: []gazeSampleRequest{{X: 200, Y: 200, Confidence: 0.9, T: time.Now().UnixMilli()}},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	getResp := env.do(t, http.MethodGet, "/api/interviews/"+id.String()+"/calibration", token, nil)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var body struct {
		Bounds struct {
			MinX float64 `json:"min_x"`
			MaxX float64 `json:"max_x"`
		} `json:"bounds"`
	}
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&body))
	assert.Equal(t, 100.0, body.Bounds.MinX)
	assert.Equal(t, 900.0, body.Bounds.MaxX)
}

func TestWorkerVisionResultEmitsAnomalies(t *testing.T) {
	env := newTestEnv(t)
	id := env.createInterview(t)

	rec, err := media.NewRecord(id, media.KindVideo, "/uploads/x.webm")
	require.NoError(t, err)
	require.NoError(t, env.mediaRepo.Create(context.Background(), rec))

	token := env.token(t, auth.RoleWorker, uuid.Nil)
	resp := env.do(t, http.MethodPost, "/api/worker/vision/result/"+rec.ID.String(), token, visionResultRequest{
		Summary: map[string]any{"frames": 30},
		Events:  []visionEventRequest{{Type: event.TypeMultiplePeople, Payload: map[string]any{"count": 2}}},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stored, err := env.mediaRepo.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.True(t, stored.Processed)

	require.Eventually(t, func() bool {
		return contains(env.eventsRepo.typesFor(id), event.TypeMultiplePeople)
	}, 2*time.Second, 10*time.Millisecond)
}

// ---- helpers ----

func (e *testEnv) doMultipart(t *testing.T, path, token, filename string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}

func count(ss []string, want string) int {
	n := 0
	for _, s := range ss {
		if s == want {
			n++
		}
	}
	return n
}

func zapNop() *zap.Logger {
	return zap.NewNop()
}
