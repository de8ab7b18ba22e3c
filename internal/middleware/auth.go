package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"fileshelf/internal/auth"
)

// PrincipalContextKey 是 context 中已认证主体的键。
type PrincipalContextKey struct{}

// SessionVerifier 校验会话令牌。
type SessionVerifier interface {
	Verify(token, scope string) (*auth.Claims, error)
}

// SessionAuth 从 cookie 读取会话令牌并校验作用域。
// 校验通过后将用户名存入 context。
func SessionAuth(verifier SessionVerifier, cookieName, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				writeAuthError(w, http.StatusUnauthorized, "login required")
				return
			}

			claims, err := verifier.Verify(cookie.Value, scope)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "session expired or invalid")
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalContextKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APIKeyAuth 创建 API Key 鉴权中间件。
// 期望请求头格式：Authorization: ApiKey <token>
func APIKeyAuth(validKeys []string) func(http.Handler) http.Handler {
	keySet := make(map[string]struct{}, len(validKeys))
	for _, key := range validKeys {
		trimmed := strings.TrimSpace(key)
		if trimmed != "" {
			keySet[trimmed] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			const prefix = "ApiKey "
			if !strings.HasPrefix(authHeader, prefix) {
				writeAuthError(w, http.StatusUnauthorized, "invalid Authorization format, expected: ApiKey <token>")
				return
			}

			apiKey := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
			if _, valid := keySet[apiKey]; apiKey == "" || !valid {
				writeAuthError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			// 日志里只保留 key 的前缀
			ctx := context.WithValue(r.Context(), PrincipalContextKey{}, "apikey:"+keyHint(apiKey))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal 返回当前请求的已认证主体，未认证时为空字符串。
func GetPrincipal(ctx context.Context) string {
	if v, ok := ctx.Value(PrincipalContextKey{}).(string); ok {
		return v
	}
	return ""
}

func keyHint(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `ApiKey realm="fileshelf"`)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
