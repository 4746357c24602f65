package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	"sahara/pkg/platform/httputil"
	"sahara/pkg/requestcontext"
)

// JWTValidator validates bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*ActorClaims, error)
}

// ActorClaims is the identity extracted from a valid token.
type ActorClaims struct {
	ActorID string
	Role    string
}

// RequireAuth rejects requests without a valid bearer token and injects the
// actor into the request context. Authorization (field agent, admin, authority)
// is decided by the services, not here.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			actorID, err := id.ParseActorID(claims.ActorID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid actor claim",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			ctx = requestcontext.WithActorID(ctx, actorID)
			ctx = requestcontext.WithActorRole(ctx, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
