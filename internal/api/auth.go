package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/finance-coach/internal/errors"
	"github.com/finance-coach/internal/logging"
)

type userIDKey struct{}

// UserIDFromContext returns the authenticated user id
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// WithUserID stores an authenticated user id in the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// AuthMiddleware verifies an HS256 bearer token and stores its subject as
// the user id. Any failure is a 401 before the handler runs.
func AuthMiddleware(secret, issuer string) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondServiceError(w, r, apperrors.NewUnauthorizedError("Unauthorized"))
				return
			}

			var claims jwt.RegisteredClaims
			_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil || claims.Subject == "" {
				logging.FromContext(r.Context()).WithField("reason", errString(err)).Debug("Rejected bearer token")
				respondServiceError(w, r, apperrors.NewUnauthorizedError("Unauthorized"))
				return
			}

			ctx := WithUserID(r.Context(), claims.Subject)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithField("userId", claims.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func errString(err error) string {
	if err == nil {
		return "missing subject"
	}
	return err.Error()
}
