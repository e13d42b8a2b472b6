package auth

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

type TokenValidator interface {
	VerifyToken(tokenStr string) (*OperatorClaims, error)
}

type ctxKey string

const operatorKey ctxKey = "operator"

// NewMiddleware пропускает только запросы с валидным токеном и нужным scope.
// Пустой scope означает "любой валидный токен".
func NewMiddleware(v TokenValidator, scope string, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.String("path", r.URL.Path), zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if scope != "" && !claims.HasScope(scope) {
				logger.Warn("missing scope", zap.String("subject", claims.Subject), zap.String("scope", scope))
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), operatorKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Operator — subject токена текущего запроса, если он прошел проверку.
func Operator(ctx context.Context) string {
	if s, ok := ctx.Value(operatorKey).(string); ok {
		return s
	}
	return ""
}
