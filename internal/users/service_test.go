package users

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tillpoint/tillpoint/internal/shared"
)

type memoryStore struct {
	users  map[int64]User
	hashes map[int64]string
	nextID int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[int64]User), hashes: make(map[int64]string)}
}

func (m *memoryStore) List(context.Context) ([]User, error) {
	var out []User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memoryStore) Get(_ context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
	}
	return u, nil
}

func (m *memoryStore) Insert(_ context.Context, user User, passwordHash string) (User, error) {
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return User{}, fmt.Errorf("%w: email %s", shared.ErrConflict, user.Email)
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.IsActive = true
	m.users[user.ID] = user
	m.hashes[user.ID] = passwordHash
	return user, nil
}

func (m *memoryStore) Update(_ context.Context, id int64, fields map[string]any) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
	}
	for col, v := range fields {
		switch col {
		case "name":
			u.Name = v.(string)
		case "role":
			u.Role = v.(string)
		case "is_active":
			u.IsActive = v.(bool)
		case "password_hash":
			m.hashes[id] = v.(string)
		}
	}
	m.users[id] = u
	return u, nil
}

func TestCreateNormalizesEmailAndHashesPassword(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)

	u, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "  Alex@Example.COM ",
		Name:     " Alex ",
		Role:     "manager",
		Password: "opensesame",
	})
	require.NoError(t, err)
	require.Equal(t, "alex@example.com", u.Email)
	require.Equal(t, "Alex", u.Name)

	hash := store.hashes[u.ID]
	require.NotEqual(t, "opensesame", hash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("opensesame")))
}

func TestCreateDuplicateEmailConflicts(t *testing.T) {
	svc := NewService(newMemoryStore())
	req := CreateUserRequest{Email: "alex@example.com", Name: "Alex", Role: "cashier", Password: "opensesame"}
	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), req)
	require.True(t, errors.Is(err, shared.ErrConflict))
}

func TestUpdateRehashesPassword(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)
	u, err := svc.Create(context.Background(), CreateUserRequest{
		Email: "alex@example.com", Name: "Alex", Role: "cashier", Password: "opensesame",
	})
	require.NoError(t, err)
	oldHash := store.hashes[u.ID]

	newPassword := "differentpass"
	_, err = svc.Update(context.Background(), u.ID, UpdateUserRequest{Password: &newPassword})
	require.NoError(t, err)
	require.NotEqual(t, oldHash, store.hashes[u.ID])
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(store.hashes[u.ID]), []byte(newPassword)))
}

func TestUpdateWithNoFields(t *testing.T) {
	svc := NewService(newMemoryStore())
	_, err := svc.Update(context.Background(), 1, UpdateUserRequest{})
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestUpdateDeactivatesAccount(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)
	u, err := svc.Create(context.Background(), CreateUserRequest{
		Email: "alex@example.com", Name: "Alex", Role: "cashier", Password: "opensesame",
	})
	require.NoError(t, err)

	inactive := false
	updated, err := svc.Update(context.Background(), u.ID, UpdateUserRequest{IsActive: &inactive})
	require.NoError(t, err)
	require.False(t, updated.IsActive)
}
