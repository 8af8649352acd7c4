package shadow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/provenly/interview-integrity-backend/internal/domain/interview"
)

const defaultContextWindow = 3

// Job identifies one uploaded audio answer awaiting assessment.
type Job struct {
	MediaID     uuid.UUID
	InterviewID uuid.UUID
	AudioPath   string
}

// Service is the AI shadow orchestrator: it assesses each audio answer
// through a degrading chain of strategies and always settles on some
// result. Stage one hears the audio directly; if the provider rejects the
// audio request itself, stage two transcribes and assesses the text; any
// other failure lands on the deterministic mock. The interview never
// blocks on this pipeline.
type Service struct {
	transcoder    Transcoder
	audio         AudioAnalyzer
	transcriber   Transcriber
	text          TextAnalyzer
	mock          *MockAnalyzer
	media         MediaStore
	interviews    InterviewStore
	contextWindow int
	logger        *zap.Logger
}

// NewService wires the orchestrator. Pass nil for audio, transcriber and
// text to run offline: every answer then settles on the mock stage.
func NewService(
	transcoder Transcoder,
	audio AudioAnalyzer,
	transcriber Transcriber,
	text TextAnalyzer,
	mediaStore MediaStore,
	interviews InterviewStore,
	contextWindow int,
	logger *zap.Logger,
) *Service {
	if contextWindow <= 0 {
		contextWindow = defaultContextWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		transcoder:    transcoder,
		audio:         audio,
		transcriber:   transcriber,
		text:          text,
		mock:          NewMockAnalyzer(),
		media:         mediaStore,
		interviews:    interviews,
		contextWindow: contextWindow,
		logger:        logger,
	}
}

// ProcessAnswer runs the full shadow pass for one answer: assess, persist,
// maybe synthesize a follow-up, recompute the rolling summary. Assessment
// itself cannot fail; the returned error covers persistence only.
func (s *Service) ProcessAnswer(ctx context.Context, job Job) error {
	prior := s.priorContext(ctx, job)
	outcome := s.assess(ctx, job.AudioPath, prior)

	if err := s.media.MarkAnalyzed(ctx, job.MediaID, outcome.Transcript, &outcome.Analysis); err != nil {
		s.logger.Error("failed to persist answer analysis",
			zap.String("media_id", job.MediaID.String()),
			zap.Error(err))
		return err
	}

	if q := outcome.Analysis.FollowUpQuestion; q != "" {
		s.appendFollowUp(ctx, job.InterviewID, q)
	}

	s.recomputeSummary(ctx, job.InterviewID)
	return nil
}

// priorContext gathers the candidate's recent transcripts so the model can
// spot contradictions across answers. Failure here degrades to a contextless
// assessment, never an error.
func (s *Service) priorContext(ctx context.Context, job Job) string {
	transcripts, err := s.media.Transcripts(ctx, job.InterviewID, job.MediaID, s.contextWindow)
	if err != nil {
		s.logger.Warn("prior transcript lookup failed",
			zap.String("interview_id", job.InterviewID.String()),
			zap.Error(err))
		return ""
	}
	return strings.Join(transcripts, "\n---\n")
}

// assess walks the fallback chain and always returns a settled outcome.
func (s *Service) assess(ctx context.Context, audioPath, prior string) Outcome {
	if s.audio == nil {
		return s.mockOutcome("", prior)
	}

	path := audioPath
	directEligible := true
	if wav, err := s.transcoder.ToWAV(ctx, audioPath); err == nil {
		path = wav
	} else {
		// The direct stage needs normalized WAV; skip straight to the
		// transcription stage with the original upload.
		directEligible = false
	}

	if directEligible {
		out, err := s.audio.AnalyzeAnswer(ctx, path, prior)
		if err == nil && out != nil {
			return *out
		}
		if !IsBadRequest(err) {
			s.logger.Warn("direct audio assessment failed, using mock", zap.Error(err))
			return s.mockOutcome("", prior)
		}
		s.logger.Info("provider rejected audio request, degrading to transcription", zap.Error(err))
	}

	return s.assessViaText(ctx, path, prior)
}

func (s *Service) assessViaText(ctx context.Context, audioPath, prior string) Outcome {
	if s.transcriber == nil || s.text == nil {
		return s.mockOutcome("", prior)
	}

	transcript, err := s.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		s.logger.Warn("transcription failed, using mock", zap.Error(err))
		return s.mockOutcome("", prior)
	}

	analysis, err := s.text.AnalyzeTranscript(ctx, transcript, prior)
	if err != nil {
		s.logger.Warn("text assessment failed, using mock", zap.Error(err))
		return s.mockOutcome(transcript, prior)
	}
	return Outcome{Transcript: transcript, Analysis: *analysis}
}

// mockTranscript is persisted when the chain settles on the mock without
// ever obtaining a real transcript, so the record shows what happened.
const mockTranscript = "Audio processed (Mock)"

func (s *Service) mockOutcome(transcript, prior string) Outcome {
	persisted := transcript
	if persisted == "" {
		persisted = mockTranscript
	}
	return Outcome{
		Transcript: persisted,
		Analysis:   s.mock.Analyze(transcript, prior, time.Now().UTC()),
	}
}

// appendFollowUp tries to add a synthesized probe to the interview's
// question set. The store enforces the cap atomically; losing the race is
// normal and only logged.
func (s *Service) appendFollowUp(ctx context.Context, interviewID uuid.UUID, text string) {
	q := interview.Question{
		ID:          uuid.New(),
		Text:        "(Follow-up) " + text,
		Kind:        "audio",
		DurationSec: 60,
		FollowUp:    true,
	}

	added, err := s.interviews.AppendFollowUp(ctx, interviewID, q, interview.MaxFollowUps)
	if err != nil {
		s.logger.Warn("follow-up append failed",
			zap.String("interview_id", interviewID.String()),
			zap.Error(err))
		return
	}
	if !added {
		s.logger.Info("follow-up cap reached, dropping question",
			zap.String("interview_id", interviewID.String()))
	}
}

func (s *Service) recomputeSummary(ctx context.Context, interviewID uuid.UUID) {
	scores, err := s.media.AnalyzedScores(ctx, interviewID)
	if err != nil {
		s.logger.Warn("score lookup failed, summary not updated",
			zap.String("interview_id", interviewID.String()),
			zap.Error(err))
		return
	}

	summary := interview.ComputeSummary(scores, time.Now().UTC())
	if err := s.interviews.UpdateSummary(ctx, interviewID, summary); err != nil {
		s.logger.Warn("summary update failed",
			zap.String("interview_id", interviewID.String()),
			zap.Error(err))
	}
}
