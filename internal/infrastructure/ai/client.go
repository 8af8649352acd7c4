package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/provenly/interview-integrity-backend/internal/domain/media"
	"github.com/provenly/interview-integrity-backend/internal/service/shadow"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client talks to an OpenAI-compatible API: multimodal chat completions for
// direct audio assessment, a transcription endpoint for the degraded path.
// It implements the shadow pipeline's AudioAnalyzer, Transcriber and
// TextAnalyzer stages.
type Client struct {
	baseURL     string
	apiKey      string
	audioModel  string
	textModel   string
	speechModel string
	httpClient  *http.Client
	logger      *zap.Logger
}

type Config struct {
	BaseURL      string
	APIKey       string
	AudioModel   string
	TextModel    string
	SpeechToText string
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		audioModel:  cfg.AudioModel,
		textModel:   cfg.TextModel,
		speechModel: cfg.SpeechToText,
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
		logger:      logger,
	}
}

// assessment is the JSON contract the prompts instruct the model to emit.
type assessment struct {
	Transcript       string  `json:"transcript"`
	Score            float64 `json:"score"`
	Contradiction    string  `json:"contradiction"`
	Emotion          string  `json:"emotion"`
	FollowUpQuestion string  `json:"follow_up_question"`
}

const assessmentInstructions = `You are an interview assessor. Evaluate the candidate's answer. ` +
	`Respond with a single JSON object: {"transcript": string, "score": number 1-10, ` +
	`"contradiction": string or empty, "emotion": string, "follow_up_question": string or empty}. ` +
	`Set "contradiction" only when the answer conflicts with the prior answers given below. ` +
	`Set "follow_up_question" only when the answer is too thin to assess.`

// AnalyzeAnswer sends the audio itself to a multimodal model and gets
// transcript plus assessment in one round trip.
func (c *Client) AnalyzeAnswer(ctx context.Context, audioPath, priorContext string) (*shadow.Outcome, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("reading audio: %w", err)
	}

	body := map[string]any{
		"model": c.audioModel,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": assessmentInstructions + priorContextBlock(priorContext)},
					{"type": "input_audio", "input_audio": map[string]any{
						"data":   base64.StdEncoding.EncodeToString(data),
						"format": "wav",
					}},
				},
			},
		},
	}

	var a assessment
	if err := c.chat(ctx, body, &a); err != nil {
		return nil, err
	}
	return &shadow.Outcome{
		Transcript: a.Transcript,
		Analysis: media.Analysis{
			Score:            a.Score,
			Contradiction:    a.Contradiction,
			Emotion:          a.Emotion,
			FollowUpQuestion: a.FollowUpQuestion,
			GeneratedAt:      time.Now().UTC(),
		},
	}, nil
}

// Transcribe converts the answer to text via the transcription endpoint.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("opening audio: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("buffering audio: %w", err)
	}
	if err := mw.WriteField("model", c.speechModel); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return "", err
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding transcription: %w", err)
	}
	return out.Text, nil
}

// AnalyzeTranscript assesses an already-transcribed answer with the text
// model.
func (c *Client) AnalyzeTranscript(ctx context.Context, transcript, priorContext string) (*media.Analysis, error) {
	body := map[string]any{
		"model": c.textModel,
		"messages": []map[string]any{
			{"role": "system", "content": assessmentInstructions + priorContextBlock(priorContext)},
			{"role": "user", "content": transcript},
		},
	}

	var a assessment
	if err := c.chat(ctx, body, &a); err != nil {
		return nil, err
	}
	analysis := &media.Analysis{
		Score:            a.Score,
		Contradiction:    a.Contradiction,
		Emotion:          a.Emotion,
		FollowUpQuestion: a.FollowUpQuestion,
		GeneratedAt:      time.Now().UTC(),
	}
	// Text-only assessment cannot hear tone; fill conservative defaults.
	if analysis.Score == 0 {
		analysis.Score = 5
	}
	if analysis.Emotion == "" {
		analysis.Emotion = "Neutral (Text Inferred)"
	}
	return analysis, nil
}

func (c *Client) chat(ctx context.Context, body map[string]any, out *assessment) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return err
	}

	var envelope struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding chat response: %w", err)
	}
	if len(envelope.Choices) == 0 {
		return fmt.Errorf("chat response has no choices")
	}

	content := extractJSON(envelope.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("parsing assessment: %w", err)
	}
	return nil
}

// classifyStatus maps HTTP failures onto the pipeline's error classes. A 4xx
// on the request body means the input is unacceptable, which the fallback
// chain treats differently from transient provider trouble.
func classifyStatus(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusTooManyRequests {
		return fmt.Errorf("%w: status %d: %s", shadow.ErrBadRequest, resp.StatusCode, detail)
	}
	return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, detail)
}

// extractJSON tolerates models that wrap the object in a markdown fence.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			return content[start : end+1]
		}
	}
	return content
}

func priorContextBlock(priorContext string) string {
	if priorContext == "" {
		return ""
	}
	return "\n\nPrior answers from this candidate:\n" + priorContext
}
