package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tillpoint/tillpoint/internal/shared"
)

const tokenKeyPrefix = "tillpoint:token:"

// TokenStore keeps issued bearer tokens in Redis so revocation and expiry
// are shared across instances.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs TokenStore. ttl bounds how long a token stays
// valid without re-login.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenStore{client: client, ttl: ttl}
}

// Issue mints a fresh token for the user.
func (s *TokenStore) Issue(ctx context.Context, user User) (Session, error) {
	session := Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Name:      user.Name,
		Role:      user.Role,
		ExpiresAt: time.Now().UTC().Add(s.ttl),
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return Session{}, err
	}
	if err := s.client.Set(ctx, tokenKeyPrefix+session.Token, payload, s.ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("%w: token store: %v", shared.ErrPersistence, err)
	}
	return session, nil
}

// Lookup resolves a token to its session. Unknown or expired tokens map to
// ErrUnauthorized.
func (s *TokenStore) Lookup(ctx context.Context, token string) (Session, error) {
	payload, err := s.client.Get(ctx, tokenKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, shared.ErrUnauthorized
		}
		return Session{}, fmt.Errorf("%w: token store: %v", shared.ErrPersistence, err)
	}
	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return Session{}, shared.ErrUnauthorized
	}
	return session, nil
}

// Revoke invalidates a token immediately.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, tokenKeyPrefix+token).Err()
}
