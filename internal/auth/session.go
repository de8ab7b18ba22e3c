package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	ScopeAdmin     = "admin"
	ScopeAnalytics = "analytics"
)

// ErrInvalidSession 表示会话令牌无效、过期或作用域不符。
var ErrInvalidSession = errors.New("auth: invalid session")

// Claims 是会话令牌携带的声明。
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Sessions 签发并校验 HS256 会话令牌。
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL 返回会话有效期，用于设置 cookie 的 MaxAge。
func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

// Issue 为 subject 签发指定作用域的令牌。
func (s *Sessions) Issue(subject, scope string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "fileshelf",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, expires, nil
}

// Verify 校验令牌签名、有效期与作用域。
func (s *Sessions) Verify(token, scope string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer("fileshelf"),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.Scope != scope {
		return nil, fmt.Errorf("%w: scope %q", ErrInvalidSession, claims.Scope)
	}
	return claims, nil
}
