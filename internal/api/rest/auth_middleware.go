package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/provenly/interview-integrity-backend/internal/infrastructure/auth"
)

// authMiddleware validates the bearer token and stashes its claims in the
// request context. Per-interview scoping happens in the handlers, which know
// which interview the request targets.
func authMiddleware(svc *auth.Service) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
				return
			}

			claims, err := svc.ValidateToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func claimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(contextKeyClaims).(*auth.Claims)
	return claims
}

// requireInterviewAccess enforces the token's interview scope. Returns false
// after writing the error response.
func requireInterviewAccess(w http.ResponseWriter, r *http.Request, interviewID uuid.UUID) bool {
	claims := claimsFrom(r.Context())
	if claims == nil || !claims.AllowsInterview(interviewID) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "token not valid for this interview")
		return false
	}
	return true
}

// requireRole restricts an endpoint to one role.
func requireRole(w http.ResponseWriter, r *http.Request, role string) bool {
	claims := claimsFrom(r.Context())
	if claims == nil || claims.Role != role {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
		return false
	}
	return true
}
