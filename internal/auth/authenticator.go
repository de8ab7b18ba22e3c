// Package auth 实现管理员与统计页面的登录、失败锁定与会话令牌。
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrLocked 表示失败次数过多，账号暂时锁定。
	ErrLocked = errors.New("auth: account temporarily locked")
	// ErrInvalidCredentials 表示用户名或密码错误。
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// LoginError 描述一次失败的登录，可用 errors.Is 匹配 ErrLocked 或 ErrInvalidCredentials。
type LoginError struct {
	Err        error
	Field      string // "username" 或 "password"，锁定时为空
	Attempts   int
	RetryAfter time.Duration
}

func (e *LoginError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: incorrect %s", e.Err, e.Field)
}

func (e *LoginError) Unwrap() error { return e.Err }

// Credentials 是一组允许登录的账号。PasswordHash 优先于 Password。
type Credentials struct {
	Username     string
	Password     string
	PasswordHash string
}

// Authenticator 校验某个作用域的登录，并按 scope:username 记录失败次数。
type Authenticator struct {
	scope       string
	creds       Credentials
	lockout     Lockout
	maxAttempts int
	logger      *slog.Logger
}

func NewAuthenticator(scope string, creds Credentials, lockout Lockout, maxAttempts int, logger *slog.Logger) *Authenticator {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		scope:       scope,
		creds:       creds,
		lockout:     lockout,
		maxAttempts: maxAttempts,
		logger:      logger.With("component", "auth", "scope", scope),
	}
}

// Scope 返回认证器的作用域。
func (a *Authenticator) Scope() string {
	return a.scope
}

// Login 校验用户名和密码。成功时清除失败计数。
func (a *Authenticator) Login(ctx context.Context, username, password string) error {
	key := a.scope + ":" + username

	attempts, ttl, err := a.lockout.Status(ctx, key)
	if err != nil {
		return fmt.Errorf("check lockout: %w", err)
	}
	if attempts >= a.maxAttempts {
		return &LoginError{Err: ErrLocked, Attempts: attempts, RetryAfter: ttl}
	}

	field := ""
	switch {
	case a.creds.Username == "" || subtle.ConstantTimeCompare([]byte(username), []byte(a.creds.Username)) != 1:
		field = "username"
	case !a.passwordMatches(password):
		field = "password"
	}

	if field != "" {
		n, err := a.lockout.Fail(ctx, key)
		if err != nil {
			return fmt.Errorf("record failure: %w", err)
		}
		a.logger.Warn("login failed", "field", field, "attempts", n)
		return &LoginError{Err: ErrInvalidCredentials, Field: field, Attempts: n}
	}

	if err := a.lockout.Reset(ctx, key); err != nil {
		a.logger.Warn("reset lockout failed", "error", err)
	}
	a.logger.Info("login succeeded", "username", username)
	return nil
}

func (a *Authenticator) passwordMatches(password string) bool {
	if a.creds.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(a.creds.PasswordHash), []byte(password)) == nil
	}
	if a.creds.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(a.creds.Password)) == 1
}
