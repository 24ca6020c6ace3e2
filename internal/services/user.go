package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-authgate/meshgate/internal/core"
	"github.com/go-authgate/meshgate/internal/models"
	"github.com/go-authgate/meshgate/internal/store"

	"go.uber.org/zap"
)

const userCacheKeyPrefix = "user:"

// UserService is the read side of the identity store. Profiles are looked up
// on every authenticated request, so they go through a cache-aside layer.
type UserService struct {
	store    *store.Store
	cache    core.Cache[models.User]
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewUserService(
	s *store.Store,
	cache core.Cache[models.User],
	cacheTTL time.Duration,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		store:    s,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.Named("users"),
	}
}

// GetUserByID returns the profile, or ErrUserNotFound.
func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, ErrUserNotFound
	}

	fetch := func(ctx context.Context, _ string) (models.User, error) {
		u, err := s.store.GetUserByID(ctx, id)
		if err != nil {
			if store.IsNotFound(err) {
				return models.User{}, ErrUserNotFound
			}
			return models.User{}, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return *u, nil
	}

	if s.cache == nil {
		u, err := fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		return &u, nil
	}

	u, err := s.cache.GetWithFetch(ctx, userCacheKeyPrefix+id, s.cacheTTL, fetch)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		if errors.Is(err, ErrPersistence) {
			return nil, err
		}
		// Cache trouble must not lock users out.
		s.logger.Warn("user cache unavailable, reading from store", zap.Error(err))
		u, err = fetch(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	return &u, nil
}

// GetOrganization returns the tenant, or nil when tenantID is empty or unknown.
func (s *UserService) GetOrganization(ctx context.Context, tenantID string) (*models.Organization, error) {
	if tenantID == "" {
		return nil, nil //nolint:nilnil // no tenant is a valid answer
	}
	org, err := s.store.GetOrganization(ctx, tenantID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil //nolint:nilnil // unknown tenant falls back to defaults
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return org, nil
}
