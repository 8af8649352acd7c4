package shadow

import (
	"strings"
	"time"

	"github.com/provenly/interview-integrity-backend/internal/domain/media"
)

// MockAnalyzer is the terminal stage of the fallback chain: a deterministic
// heuristic assessment that needs no network and never fails. It also runs
// the whole pipeline when no provider credentials are configured, which
// keeps local development working offline.
type MockAnalyzer struct{}

func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{}
}

// Analyze scores an answer from its transcript alone. Longer answers score
// higher; a "never" in the answer against an "always" in prior context is
// flagged as a contradiction; short answers earn a follow-up probe.
func (m *MockAnalyzer) Analyze(transcript, priorContext string, now time.Time) media.Analysis {
	score := float64(len(transcript)) / 10
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}

	a := media.Analysis{
		Score:       score,
		Emotion:     "Confident",
		GeneratedAt: now,
	}

	lower := strings.ToLower(transcript)
	if strings.Contains(lower, "never") && strings.Contains(strings.ToLower(priorContext), "always") {
		a.Contradiction = "Candidate said 'never' after previously asserting 'always'."
	}
	if len(transcript) < 20 {
		a.FollowUpQuestion = "Could you elaborate on that answer in more detail?"
	}
	return a
}
