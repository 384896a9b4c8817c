package auth

import (
	"context"
	"net/http"

	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
	"go.uber.org/zap"
)

// TokenValidator — интерфейс проверки токена; реализуется BaseValidator
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.CustomClaims, error)
}

// Типизированные ключи контекста (избегаем коллизий со сторонними пакетами)
type ctxKey string

const (
	ctxKeyUserID ctxKey = "user_id"
	ctxKeyScopes ctxKey = "user_scopes"
)

// NewMiddleware закрывает группу роутов RS256-токеном и прокидывает claims в контекст
func NewMiddleware(v TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyScopes, claims.Scopes)
			ctx = context.WithValue(ctx, ctxKeyUserID, claims.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext — кто именно принимает решение (для Accountability в аудите)
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKeyUserID).(string); ok {
		return id
	}
	return ""
}

// ScopesFromContext возвращает права из проверенного токена
func ScopesFromContext(ctx context.Context) map[string]bool {
	if scopes, ok := ctx.Value(ctxKeyScopes).(map[string]bool); ok {
		return scopes
	}
	return nil
}
