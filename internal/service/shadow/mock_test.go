package shadow

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockAnalyzerScoreScalesWithLength(t *testing.T) {
	m := NewMockAnalyzer()
	now := time.Now()

	assert.Equal(t, 1.0, m.Analyze("", "", now).Score)
	assert.Equal(t, 1.0, m.Analyze("tiny", "", now).Score)
	assert.Equal(t, 5.0, m.Analyze(strings.Repeat("a", 50), "", now).Score)
	assert.Equal(t, 10.0, m.Analyze(strings.Repeat("a", 500), "", now).Score)
}

func TestMockAnalyzerContradiction(t *testing.T) {
	m := NewMockAnalyzer()
	now := time.Now()

	a := m.Analyze("I never used Kubernetes in production", "I always deploy with Kubernetes", now)
	assert.NotEmpty(t, a.Contradiction)

	b := m.Analyze("I never used Kubernetes in production", "mostly deployed on bare metal", now)
	assert.Empty(t, b.Contradiction, "no contradiction without an 'always' in context")
}

func TestMockAnalyzerFollowUpOnlyForShortAnswers(t *testing.T) {
	m := NewMockAnalyzer()
	now := time.Now()

	assert.NotEmpty(t, m.Analyze("Yes.", "", now).FollowUpQuestion)
	assert.Empty(t, m.Analyze("A fully elaborated answer with plenty of detail about the approach.", "", now).FollowUpQuestion)
}

func TestMockAnalyzerDeterministic(t *testing.T) {
	m := NewMockAnalyzer()
	now := time.Now()

	first := m.Analyze("same input", "same context", now)
	second := m.Analyze("same input", "same context", now)
	assert.Equal(t, first, second)
}
