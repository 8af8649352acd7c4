package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role labels what a token holder may do during a session.
const (
	RoleCandidate   = "candidate"
	RoleInterviewer = "interviewer"
	RoleWorker      = "worker"
)

// Claims carries the session identity inside a JWT. Candidate tokens are
// scoped to a single interview; interviewer and worker tokens are not.
type Claims struct {
	Role        string    `json:"role"`
	InterviewID uuid.UUID `json:"interview_id,omitempty"`
	jwt.RegisteredClaims
}

// Service issues and validates session tokens.
type Service struct {
	secret []byte
	expiry time.Duration
}

func NewService(secret string, expiry time.Duration) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret cannot be empty")
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &Service{secret: []byte(secret), expiry: expiry}, nil
}

// IssueToken creates a signed session token.
func (s *Service) IssueToken(subject uuid.UUID, role string, interviewID uuid.UUID) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Role:        role,
		InterviewID: interviewID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken parses and verifies a session token.
func (s *Service) ValidateToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// AllowsInterview reports whether the token may act on the given interview.
func (c *Claims) AllowsInterview(interviewID uuid.UUID) bool {
	switch c.Role {
	case RoleInterviewer, RoleWorker:
		return true
	case RoleCandidate:
		return c.InterviewID == interviewID
	}
	return false
}
