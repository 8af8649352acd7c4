package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidateToken(t *testing.T) {
	svc, err := NewService("test-secret", time.Hour)
	require.NoError(t, err)

	subject := uuid.New()
	interviewID := uuid.New()

	token, err := svc.IssueToken(subject, RoleCandidate, interviewID)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, subject.String(), claims.Subject)
	assert.Equal(t, RoleCandidate, claims.Role)
	assert.Equal(t, interviewID, claims.InterviewID)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer, err := NewService("secret-a", time.Hour)
	require.NoError(t, err)
	verifier, err := NewService("secret-b", time.Hour)
	require.NoError(t, err)

	token, err := issuer.IssueToken(uuid.New(), RoleInterviewer, uuid.Nil)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc, err := NewService("test-secret", time.Hour)
	require.NoError(t, err)
	svc.expiry = -time.Minute

	token, err := svc.IssueToken(uuid.New(), RoleCandidate, uuid.New())
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestAllowsInterview(t *testing.T) {
	mine := uuid.New()
	other := uuid.New()

	candidate := &Claims{Role: RoleCandidate, InterviewID: mine}
	assert.True(t, candidate.AllowsInterview(mine))
	assert.False(t, candidate.AllowsInterview(other))

	interviewer := &Claims{Role: RoleInterviewer}
	assert.True(t, interviewer.AllowsInterview(other))

	unknown := &Claims{Role: "spectator"}
	assert.False(t, unknown.AllowsInterview(mine))
}

func TestNewServiceRequiresSecret(t *testing.T) {
	_, err := NewService("", time.Hour)
	assert.Error(t, err)
}
