package api

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"fileshelf/internal/auth"

	"github.com/go-chi/chi/v5"
)

const (
	AdminCookieName     = "admin_session"
	AnalyticsCookieName = "analytics_session"
)

// Authenticator 校验一次登录。
type Authenticator interface {
	Login(ctx context.Context, username, password string) error
	Scope() string
}

// SessionIssuer 签发会话令牌。
type SessionIssuer interface {
	Issue(subject, scope string) (string, time.Time, error)
	TTL() time.Duration
}

// AuthHandler 处理某个作用域的登录与登出。
type AuthHandler struct {
	authenticator Authenticator
	sessions      SessionIssuer
	cookieName    string
	secureCookies bool
	logger        *slog.Logger
}

func NewAuthHandler(a Authenticator, sessions SessionIssuer, cookieName string, secureCookies bool, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		authenticator: a,
		sessions:      sessions,
		cookieName:    cookieName,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginFailure struct {
	Error             string `json:"error"`
	Locked            bool   `json:"locked,omitempty"`
	IncorrectUsername bool   `json:"incorrect_username,omitempty"`
	IncorrectPassword bool   `json:"incorrect_password,omitempty"`
	Attempts          int    `json:"attempts,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// Login 校验凭据，成功后写入 HttpOnly 会话 cookie。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.authenticator.Login(r.Context(), req.Username, req.Password); err != nil {
		h.writeLoginError(w, err)
		return
	}

	token, expires, err := h.sessions.Issue(req.Username, h.authenticator.Scope())
	if err != nil {
		h.logger.Error("issue session failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(h.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, envelope{Data: map[string]any{"success": true, "expires_at": expires}})
}

// Logout 清除会话 cookie。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, envelope{Data: map[string]any{"success": true}})
}

func (h *AuthHandler) writeLoginError(w http.ResponseWriter, err error) {
	var le *auth.LoginError
	if !errors.As(err, &le) {
		h.logger.Error("login check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login unavailable")
		return
	}

	if errors.Is(err, auth.ErrLocked) {
		retry := int(math.Ceil(le.RetryAfter.Seconds()))
		if retry > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(retry))
		}
		writeJSON(w, http.StatusLocked, loginFailure{
			Error:             "Account temporarily locked due to too many failed attempts",
			Locked:            true,
			RetryAfterSeconds: retry,
		})
		return
	}

	resp := loginFailure{Attempts: le.Attempts}
	if le.Field == "username" {
		resp.Error = "Username not found"
		resp.IncorrectUsername = true
	} else {
		resp.Error = "Incorrect password"
		resp.IncorrectPassword = true
	}
	writeJSON(w, http.StatusUnauthorized, resp)
}
