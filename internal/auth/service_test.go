package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tillpoint/tillpoint/internal/shared"
)

type stubRepo struct {
	users map[string]User
}

func (r *stubRepo) FindByEmail(_ context.Context, email string) (User, error) {
	u, ok := r.users[email]
	if !ok {
		return User{}, fmt.Errorf("%w: user %s", shared.ErrNotFound, email)
	}
	return u, nil
}

func newAuthFixture(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("opensesame"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubRepo{users: map[string]User{
		"alex@example.com": {
			ID: 1, Email: "alex@example.com", Name: "Alex",
			Role: "cashier", PasswordHash: string(hash), IsActive: true,
		},
		"gone@example.com": {
			ID: 2, Email: "gone@example.com", Name: "Gone",
			Role: "cashier", PasswordHash: string(hash), IsActive: false,
		},
	}}
	return NewService(repo, NewTokenStore(client, time.Hour)), mr
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	svc, _ := newAuthFixture(t)

	session, err := svc.Login(context.Background(), "alex@example.com", "opensesame")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.Equal(t, int64(1), session.UserID)
	require.Equal(t, "cashier", session.Role)
	require.True(t, session.ExpiresAt.After(time.Now()))

	verified, err := svc.Verify(context.Background(), session.Token)
	require.NoError(t, err)
	require.Equal(t, session.UserID, verified.UserID)
	require.Equal(t, session.Role, verified.Role)
}

func TestLoginFailuresCollapse(t *testing.T) {
	svc, _ := newAuthFixture(t)

	cases := []struct{ email, password string }{
		{"nobody@example.com", "opensesame"},
		{"alex@example.com", "wrong-password"},
		{"gone@example.com", "opensesame"},
	}
	for _, tc := range cases {
		_, err := svc.Login(context.Background(), tc.email, tc.password)
		require.True(t, errors.Is(err, shared.ErrInvalidCredentials), "%s", tc.email)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _ := newAuthFixture(t)

	session, err := svc.Login(context.Background(), "alex@example.com", "opensesame")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), session.Token))
	_, err = svc.Verify(context.Background(), session.Token)
	require.True(t, errors.Is(err, shared.ErrUnauthorized))
}

func TestVerifyExpiredToken(t *testing.T) {
	svc, mr := newAuthFixture(t)

	session, err := svc.Login(context.Background(), "alex@example.com", "opensesame")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)
	_, err = svc.Verify(context.Background(), session.Token)
	require.True(t, errors.Is(err, shared.ErrUnauthorized))
}

func TestVerifyUnknownToken(t *testing.T) {
	svc, _ := newAuthFixture(t)
	_, err := svc.Verify(context.Background(), "not-a-token")
	require.True(t, errors.Is(err, shared.ErrUnauthorized))
}
