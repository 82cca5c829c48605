package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "secureid/pkg/domain-errors"
	"secureid/pkg/platform/httputil"
	"secureid/pkg/requestcontext"

	"secureid/internal/domain"
)

// RequireAuth guards holder-scoped endpoints. A valid bearer token puts the
// normalized holder address on the request context; everything else gets a
// 401.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token", "request_id", requestID)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			holder, err := domain.NormalizeAddress(claims.Holder)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - bad holder claim",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token holder claim is not a valid address"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithHolder(ctx, holder.String())))
		})
	}
}
