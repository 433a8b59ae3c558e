// Package auth authenticates parent sessions on the HTTP surface.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"purchasegate/pkg/domain"
	"purchasegate/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns the session claims.
type TokenValidator interface {
	ValidateSession(token string) (*SessionClaims, error)
}

// SessionClaims are the identity claims carried by a parent session token.
type SessionClaims struct {
	ParentID string
	FamilyID string
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":%q,"error_description":%q}`, errCode, errDesc)) //nolint:errcheck // headers already sent
}

// RequireParent validates the bearer token and stores the typed parent and
// family IDs in the request context.
func RequireParent(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateSession(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			parentID, err := domain.ParseParentID(claims.ParentID)
			if err == nil && parentID.IsNil() {
				err = fmt.Errorf("nil parent id")
			}
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed parent claim",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}
			familyID, err := domain.ParseFamilyID(claims.FamilyID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed family claim",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithParentID(ctx, parentID)
			ctx = requestcontext.WithFamilyID(ctx, familyID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
