package settings

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tillpoint/tillpoint/internal/shared"
)

type stubStore struct {
	current *Settings
	loads   int
	saves   int
	loadErr error
}

func (s *stubStore) Load(context.Context) (Settings, error) {
	s.loads++
	if s.loadErr != nil {
		return Settings{}, s.loadErr
	}
	if s.current == nil {
		return Settings{}, fmt.Errorf("%w: settings", shared.ErrNotFound)
	}
	return *s.current, nil
}

func (s *stubStore) Save(_ context.Context, cfg Settings) error {
	s.saves++
	s.current = &cfg
	return nil
}

func newCachedService(t *testing.T, store *stubStore) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(store, client, nil), mr
}

func TestResolveFallsBackToDefaults(t *testing.T) {
	svc := NewService(&stubStore{}, nil, nil)
	cfg, err := svc.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestResolvePopulatesAndUsesCache(t *testing.T) {
	store := &stubStore{current: &Settings{
		StoreName:      "Corner Shop",
		Currency:       "EUR",
		DefaultTaxRate: decimal.RequireFromString("19"),
		LoyaltyDivisor: 50,
	}}
	svc, mr := newCachedService(t, store)

	cfg, err := svc.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Corner Shop", cfg.StoreName)
	require.Equal(t, 1, store.loads)
	require.True(t, mr.Exists("tillpoint:settings"))

	// Second resolve is served from the cache.
	cfg, err = svc.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(50), cfg.LoyaltyDivisor)
	require.Equal(t, 1, store.loads)
}

func TestUpdateAppliesPartialChangeAndInvalidatesCache(t *testing.T) {
	store := &stubStore{current: &Settings{
		StoreName:      "Corner Shop",
		Currency:       "EUR",
		DefaultTaxRate: decimal.Zero,
		LoyaltyDivisor: 100,
	}}
	svc, mr := newCachedService(t, store)

	_, err := svc.Resolve(context.Background())
	require.NoError(t, err)
	require.True(t, mr.Exists("tillpoint:settings"))

	name := "Corner Shop East"
	updated, err := svc.Update(context.Background(), UpdateRequest{StoreName: &name})
	require.NoError(t, err)
	require.Equal(t, "Corner Shop East", updated.StoreName)
	require.Equal(t, "EUR", updated.Currency)
	require.Equal(t, 1, store.saves)
	require.False(t, mr.Exists("tillpoint:settings"))

	// The next resolve re-reads the saved row.
	cfg, err := svc.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Corner Shop East", cfg.StoreName)
}

func TestUpdateRejectsInvalidValues(t *testing.T) {
	svc := NewService(&stubStore{}, nil, nil)

	negative := decimal.RequireFromString("-1")
	_, err := svc.Update(context.Background(), UpdateRequest{DefaultTaxRate: &negative})
	require.True(t, errors.Is(err, shared.ErrValidation))

	zero := int64(0)
	_, err = svc.Update(context.Background(), UpdateRequest{LoyaltyDivisor: &zero})
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	store := &stubStore{loadErr: fmt.Errorf("%w: connection reset", shared.ErrPersistence)}
	svc := NewService(store, nil, nil)
	_, err := svc.Resolve(context.Background())
	require.True(t, errors.Is(err, shared.ErrPersistence))
}
