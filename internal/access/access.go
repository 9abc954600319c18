// Package access implements the restaurant access check consumed by
// the API layer. The checker is injected at startup; AllowAll is the
// explicit local-development variant.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Checker asserts that an actor may operate on a restaurant.
type Checker interface {
	AssertRestaurantAccess(ctx context.Context, userID, restaurantID string) error
}

// AccessDeniedError is returned when the actor is not part of the
// restaurant's staff.
type AccessDeniedError struct {
	UserID       string
	RestaurantID string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("user %s has no access to restaurant %s", e.UserID, e.RestaurantID)
}

// IsAccessDenied checks if error is access denied.
func IsAccessDenied(err error) bool {
	var denied *AccessDeniedError
	return errors.As(err, &denied)
}

// MembershipStore looks up staff membership.
type MembershipStore interface {
	HasRestaurantAccess(ctx context.Context, userID, restaurantID string) (bool, error)
}

// Service checks access against stored staff membership.
type Service struct {
	store  MembershipStore
	logger zerolog.Logger
}

// NewService creates a membership-backed access checker.
func NewService(store MembershipStore, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "access").Logger(),
	}
}

// AssertRestaurantAccess implements Checker.
func (s *Service) AssertRestaurantAccess(ctx context.Context, userID, restaurantID string) error {
	if userID == "" {
		return &AccessDeniedError{UserID: userID, RestaurantID: restaurantID}
	}

	ok, err := s.store.HasRestaurantAccess(ctx, userID, restaurantID)
	if err != nil {
		return fmt.Errorf("checking restaurant access: %w", err)
	}
	if !ok {
		s.logger.Warn().
			Str("user_id", userID).
			Str("restaurant_id", restaurantID).
			Msg("access denied")
		return &AccessDeniedError{UserID: userID, RestaurantID: restaurantID}
	}
	return nil
}

// AllowAll skips access checks. Wired only when auth.mode is
// "allow_all" in the configuration.
type AllowAll struct{}

// AssertRestaurantAccess implements Checker.
func (AllowAll) AssertRestaurantAccess(context.Context, string, string) error { return nil }
