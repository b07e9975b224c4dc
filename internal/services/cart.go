package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"shopfront_back_end/internal/apperr"
	"shopfront_back_end/internal/cache"
	"shopfront_back_end/internal/metrics"
	"shopfront_back_end/internal/models"
	"shopfront_back_end/internal/validation"
)

type CartService struct {
	users    UserStore
	locker   CartLocker
	notifier CartNotifier
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewCartService wires the cart engine. locker, notifier and m may be nil.
func NewCartService(users UserStore, locker CartLocker, notifier CartNotifier, m *metrics.Metrics, log *slog.Logger) *CartService {
	return &CartService{users: users, locker: locker, notifier: notifier, metrics: m, log: log}
}

func (s *CartService) Get(ctx context.Context, userID string) (models.CartData, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation("User ID is required")
	}
	user, err := loadUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}
	return user.CartData.Clone(), nil
}

// Add increments the quantity of itemID/size by one.
func (s *CartService) Add(ctx context.Context, userID, itemID, size string) (models.CartData, error) {
	if res := validation.Cart(userID, itemID, size); !res.IsValid {
		return nil, apperr.Validation(res.Errors...)
	}
	return s.mutate(ctx, userID, "add", func(cart models.CartData) {
		cart.Add(itemID, size)
	})
}

// Update stores quantity verbatim; it must be positive.
func (s *CartService) Update(ctx context.Context, userID, itemID, size string, quantity int) (models.CartData, error) {
	if res := validation.UpdateCart(userID, itemID, size, quantity); !res.IsValid {
		return nil, apperr.Validation(res.Errors...)
	}
	return s.mutate(ctx, userID, "update", func(cart models.CartData) {
		cart.SetQuantity(itemID, size, quantity)
	})
}

// Remove deletes itemID/size. Removing an absent pair leaves the cart unchanged.
func (s *CartService) Remove(ctx context.Context, userID, itemID, size string) (models.CartData, error) {
	if res := validation.Cart(userID, itemID, size); !res.IsValid {
		return nil, apperr.Validation(res.Errors...)
	}
	return s.mutate(ctx, userID, "remove", func(cart models.CartData) {
		cart.Remove(itemID, size)
	})
}

func (s *CartService) mutate(ctx context.Context, userID, op string, apply func(models.CartData)) (models.CartData, error) {
	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, userID)
		if err != nil {
			if errors.Is(err, cache.ErrLockTimeout) {
				return nil, apperr.Conflict("Cart is being updated, please retry")
			}
			return nil, apperr.Upstream("Cart is temporarily unavailable", err)
		}
		defer unlock()
	}

	user, err := loadUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}

	cart := user.CartData.Clone()
	apply(cart)

	if err := s.users.UpdateCart(ctx, userID, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	s.metrics.CartMutation(op)
	notifyCart(ctx, s.notifier, s.log, userID, cache.CartUpdated)
	return cart, nil
}

func loadUser(ctx context.Context, users UserStore, userID string) (*models.User, error) {
	user, err := users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// notifyCart is best effort: subscribers only miss a refresh.
func notifyCart(ctx context.Context, n CartNotifier, log *slog.Logger, userID, event string) {
	if n == nil {
		return
	}
	if err := n.Publish(ctx, userID, event); err != nil {
		log.Warn("cart notification failed", "user_id", userID, "event", event, "error", err)
	}
}
