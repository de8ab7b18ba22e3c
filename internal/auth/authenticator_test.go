package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"fileshelf/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthenticator(creds Credentials) *Authenticator {
	return NewAuthenticator(ScopeAdmin, creds, NewMemoryLockout(15*time.Minute), 5, logging.Discard())
}

func TestLogin_Success(t *testing.T) {
	a := newTestAuthenticator(Credentials{Username: "root", Password: "hunter2"})
	require.NoError(t, a.Login(context.Background(), "root", "hunter2"))
}

func TestLogin_BcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	a := newTestAuthenticator(Credentials{Username: "root", Password: "ignored", PasswordHash: string(hash)})
	require.NoError(t, a.Login(context.Background(), "root", "hunter2"))
	require.Error(t, a.Login(context.Background(), "root", "ignored"))
}

func TestLogin_ReportsFieldAndAttempts(t *testing.T) {
	a := newTestAuthenticator(Credentials{Username: "root", Password: "hunter2"})
	ctx := context.Background()

	err := a.Login(ctx, "nobody", "x")
	var le *LoginError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "username", le.Field)
	assert.Equal(t, 1, le.Attempts)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = a.Login(ctx, "root", "wrong")
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "password", le.Field)
	assert.Equal(t, 1, le.Attempts)

	err = a.Login(ctx, "root", "wrong")
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 2, le.Attempts)
}

func TestLogin_LocksAfterMaxAttempts(t *testing.T) {
	lockout := NewMemoryLockout(15 * time.Minute)
	now := time.Unix(1700000000, 0)
	lockout.now = func() time.Time { return now }
	a := NewAuthenticator(ScopeAdmin, Credentials{Username: "root", Password: "hunter2"}, lockout, 5, logging.Discard())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.ErrorIs(t, a.Login(ctx, "root", "wrong"), ErrInvalidCredentials)
	}

	// 锁定后正确密码也被拒绝
	err := a.Login(ctx, "root", "hunter2")
	require.ErrorIs(t, err, ErrLocked)
	var le *LoginError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 15*time.Minute, le.RetryAfter)

	now = now.Add(15 * time.Minute)
	require.NoError(t, a.Login(ctx, "root", "hunter2"))
}

func TestLogin_SuccessResetsCounter(t *testing.T) {
	lockout := NewMemoryLockout(time.Minute)
	a := NewAuthenticator(ScopeAdmin, Credentials{Username: "root", Password: "pw"}, lockout, 5, logging.Discard())
	ctx := context.Background()

	_ = a.Login(ctx, "root", "bad")
	require.NoError(t, a.Login(ctx, "root", "pw"))

	n, _, err := lockout.Status(ctx, "admin:root")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLogin_UnconfiguredAccountNeverMatches(t *testing.T) {
	a := newTestAuthenticator(Credentials{})
	require.ErrorIs(t, a.Login(context.Background(), "", ""), ErrInvalidCredentials)
}
