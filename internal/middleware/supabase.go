package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

type headerTransport struct {
	T   http.RoundTripper
	Key string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("apikey", t.Key)
	if t.T == nil {
		return http.DefaultTransport.RoundTrip(req)
	}
	return t.T.RoundTrip(req)
}

// SupabaseConfig 是 Supabase 鉴权所需的项目信息。
type SupabaseConfig struct {
	ProjectURL string
	AnonKey    string
	JWTSecret  string
}

type supabaseVerifier struct {
	cfg    SupabaseConfig
	jwks   *keyfunc.JWKS
	client *http.Client
	logger *slog.Logger
}

// SupabaseAuth 创建 Supabase JWT 鉴权中间件。
// 依次尝试 HS256 共享密钥、JWKS 公钥，最后回退到 /auth/v1/user 远程校验。
func SupabaseAuth(cfg SupabaseConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := &supabaseVerifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger.With("component", "supabase_auth"),
	}
	v.initJWKS()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				writeAuthError(w, http.StatusUnauthorized, "expected Authorization: Bearer <token>")
				return
			}
			tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
			if tokenString == "" {
				writeAuthError(w, http.StatusUnauthorized, "empty token")
				return
			}

			userID, err := v.verify(r.Context(), tokenString)
			if err != nil {
				v.logger.Info("token rejected", "error", err)
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalContextKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (v *supabaseVerifier) initJWKS() {
	if v.cfg.ProjectURL == "" || v.cfg.AnonKey == "" {
		return
	}
	jwksURL := fmt.Sprintf("%s/auth/v1/jwks", strings.TrimRight(v.cfg.ProjectURL, "/"))
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Client:          &http.Client{Transport: &headerTransport{Key: v.cfg.AnonKey}, Timeout: 5 * time.Second},
		RefreshInterval: time.Hour,
		RefreshErrorHandler: func(err error) {
			v.logger.Warn("jwks refresh failed", "error", err)
		},
	})
	if err != nil {
		v.logger.Warn("jwks init failed, falling back to remote validation", "url", jwksURL, "error", err)
		return
	}
	v.jwks = jwks
}

func (v *supabaseVerifier) verify(ctx context.Context, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok && v.cfg.JWTSecret != "" {
			return []byte(v.cfg.JWTSecret), nil
		}
		if v.jwks != nil {
			return v.jwks.Keyfunc(token)
		}
		return nil, fmt.Errorf("no suitable verification method")
	})
	if err == nil && token.Valid {
		if sub, _ := token.Claims.GetSubject(); sub != "" {
			return sub, nil
		}
	}

	if v.cfg.ProjectURL == "" || v.cfg.AnonKey == "" {
		return "", fmt.Errorf("local verification failed and remote validation not configured: %v", err)
	}
	v.logger.Debug("local verification failed, trying remote", "error", err)
	return v.validateRemotely(ctx, tokenString)
}

// validateRemotely 调用 Supabase 用户接口校验令牌。
func (v *supabaseVerifier) validateRemotely(ctx context.Context, token string) (string, error) {
	url := fmt.Sprintf("%s/auth/v1/user", strings.TrimRight(v.cfg.ProjectURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.cfg.AnonKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("remote validation failed with status: %d", resp.StatusCode)
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("decode user: %w", err)
	}
	if user.ID == "" {
		return "", fmt.Errorf("remote validation returned no user")
	}
	return user.ID, nil
}
