package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/almightymoon/trendhive/internal/core/domain"
	"github.com/almightymoon/trendhive/internal/port"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrForbidden     = errors.New("order belongs to another user")
	ErrInvalidStatus = errors.New("invalid order status")
)

// OrderService serves order and review-prompt queries and the
// administrative status transitions. Orders themselves are immutable after
// materialization except for those transitions.
type OrderService struct {
	orders  port.OrderRepository
	reviews port.ReviewRepository
}

func NewOrderService(orders port.OrderRepository, reviews port.ReviewRepository) *OrderService {
	return &OrderService{orders: orders, reviews: reviews}
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orders.ListOrdersByUser(ctx, userID)
}

func (s *OrderService) ListRecentOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.orders.ListRecentOrders(ctx, limit)
}

// GetOrder returns the order if it exists and, when requesterID is set,
// belongs to the requester. Admin callers pass an empty requesterID.
func (s *OrderService) GetOrder(ctx context.Context, id, requesterID string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if requesterID != "" && order.UserID != requesterID {
		return nil, ErrForbidden
	}
	return order, nil
}

// UpdateStatus applies an administrative transition such as refunding or
// cancelling a paid order.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	if err := s.orders.UpdateOrderStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	order, err = s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}
	return order, nil
}

func (s *OrderService) ListPendingReviews(ctx context.Context, userID string) ([]domain.PendingReview, error) {
	return s.reviews.ListPendingReviews(ctx, userID)
}

// DismissPendingReview removes a review prompt without a review being
// written.
func (s *OrderService) DismissPendingReview(ctx context.Context, userID, productID string) error {
	return s.reviews.DeletePendingReview(ctx, userID, productID)
}
