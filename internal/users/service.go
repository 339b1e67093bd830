package users

import (
	"context"

	"github.com/imaginify/imaginify/backend/go-services/internal/apperror"
	"github.com/imaginify/imaginify/backend/go-services/internal/cache"
	"github.com/imaginify/imaginify/backend/go-services/internal/models"
	"github.com/imaginify/imaginify/backend/go-services/pkg/logger"
)

// UserPath is the API path of a user's record, used as cache key.
func UserPath(clerkID string) string {
	return "/api/v1/users/" + clerkID
}

// Service exposes the user actions callable from the HTTP API.
type Service struct {
	repo UserRepository
	inv  cache.Invalidator
}

func NewService(r UserRepository, inv cache.Invalidator) *Service {
	if inv == nil {
		inv = cache.NoopInvalidator{}
	}
	return &Service{repo: r, inv: inv}
}

// GetByExternalID returns the user linked to the identity provider account.
func (s *Service) GetByExternalID(ctx context.Context, clerkID string) (*models.User, error) {
	if clerkID == "" {
		return nil, apperror.Validation("user id required")
	}
	return s.repo.FindByExternalID(ctx, clerkID)
}

// AdjustCredits atomically adds delta (any sign, zero included) to the
// user's credit balance.
func (s *Service) AdjustCredits(ctx context.Context, userID string, delta int64) (*models.User, error) {
	u, err := s.repo.AdjustCredits(ctx, userID, delta)
	if err != nil {
		return nil, err
	}
	if err := s.inv.Invalidate(ctx, UserPath(u.ClerkID)); err != nil {
		logger.Warnf("cache invalidation after credits change for %s failed: %v", u.ClerkID, err)
	}
	return u, nil
}

// AdjustOwnCredits is AdjustCredits restricted to the record owned by
// clerkID. A foreign record is reported as not found.
func (s *Service) AdjustOwnCredits(ctx context.Context, clerkID, userID string, delta int64) (*models.User, error) {
	owner, err := s.GetByExternalID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	if owner.ID.Hex() != userID {
		return nil, apperror.NotFound(MsgCreditsUpdateFailed)
	}
	return s.AdjustCredits(ctx, userID, delta)
}
