package port

import (
	"context"

	"github.com/almightymoon/trendhive/internal/core/domain"
)

type OrderRepository interface {
	// CreateOrderIfAbsent atomically inserts the order keyed by
	// (provider, external ref). When a concurrent or earlier call already
	// materialized an order for the same key, the existing order is
	// returned and created is false. This is the only synchronization
	// point in the checkout subsystem.
	CreateOrderIfAbsent(ctx context.Context, order domain.Order) (*domain.Order, bool, error)

	// GetOrder retrieves an order by internal id.
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// GetOrderByExternalRef retrieves an order by its provider reference.
	GetOrderByExternalRef(ctx context.Context, provider domain.Provider, externalRef string) (*domain.Order, error)

	// ListOrdersByUser returns a user's orders, newest first.
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)

	// ListRecentOrders returns the latest orders across all users.
	ListRecentOrders(ctx context.Context, limit int) ([]domain.Order, error)

	// UpdateOrderStatus applies an administrative status transition.
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error
}

type ReviewRepository interface {
	// UpsertPendingReview creates a pending review for (userID, productID),
	// replacing any prior record for the same pair.
	UpsertPendingReview(ctx context.Context, review domain.PendingReview) error

	// DeletePendingReview removes the prompt, either on dismissal or once a
	// review has been submitted.
	DeletePendingReview(ctx context.Context, userID, productID string) error

	// ListPendingReviews returns a user's open review prompts.
	ListPendingReviews(ctx context.Context, userID string) ([]domain.PendingReview, error)
}
