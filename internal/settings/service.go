package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tillpoint/tillpoint/internal/shared"
)

const cacheKey = "tillpoint:settings"
const cacheTTL = time.Minute

// Store abstracts settings persistence.
type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// Service resolves settings with a short-lived Redis cache in front of the
// database row.
type Service struct {
	store  Store
	cache  *redis.Client
	logger *slog.Logger
}

// NewService builds Service. cache may be nil; resolution then always hits
// the store.
func NewService(store Store, cache *redis.Client, logger *slog.Logger) *Service {
	return &Service{store: store, cache: cache, logger: logger}
}

// Resolve returns the current settings, falling back to defaults when
// nothing has been configured.
func (s *Service) Resolve(ctx context.Context) (Settings, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var cached Settings
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				return cached, nil
			}
		} else if !errors.Is(err, redis.Nil) && s.logger != nil {
			s.logger.Warn("settings cache read failed", slog.Any("error", err))
		}
	}

	loaded, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Default(), nil
		}
		return Settings{}, err
	}
	s.fillCache(ctx, loaded)
	return loaded, nil
}

// Update applies a partial settings update and invalidates the cache.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (Settings, error) {
	current, err := s.Resolve(ctx)
	if err != nil {
		return Settings{}, err
	}
	if req.StoreName != nil {
		current.StoreName = *req.StoreName
	}
	if req.Currency != nil {
		current.Currency = *req.Currency
	}
	if req.DefaultTaxRate != nil {
		if req.DefaultTaxRate.IsNegative() {
			return Settings{}, fmt.Errorf("%w: tax rate must be >= 0", shared.ErrValidation)
		}
		current.DefaultTaxRate = *req.DefaultTaxRate
	}
	if req.LoyaltyDivisor != nil {
		if *req.LoyaltyDivisor <= 0 {
			return Settings{}, fmt.Errorf("%w: loyalty divisor must be > 0", shared.ErrValidation)
		}
		current.LoyaltyDivisor = *req.LoyaltyDivisor
	}
	if err := s.store.Save(ctx, current); err != nil {
		return Settings{}, err
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, cacheKey).Err(); err != nil && s.logger != nil {
			s.logger.Warn("settings cache invalidation failed", slog.Any("error", err))
		}
	}
	return current, nil
}

func (s *Service) fillCache(ctx context.Context, loaded Settings) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(loaded)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey, raw, cacheTTL).Err(); err != nil && s.logger != nil {
		s.logger.Warn("settings cache write failed", slog.Any("error", err))
	}
}
