package port

import (
	"context"

	"github.com/almightymoon/trendhive/internal/core/domain"
)

type CartRepository interface {
	// GetCart returns the user's cart, or an empty cart if none is stored.
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)

	// SaveCart overwrites the stored cart wholesale.
	SaveCart(ctx context.Context, cart *domain.Cart) error

	// ClearCart removes the user's cart.
	ClearCart(ctx context.Context, userID string) error
}

type SessionRepository interface {
	// SavePaymentSession stores the frozen checkout snapshot, keyed by
	// (provider, external ref), with a bounded TTL.
	SavePaymentSession(ctx context.Context, session *domain.PaymentSession) error

	// GetPaymentSession returns the snapshot, or nil if expired or unknown.
	GetPaymentSession(ctx context.Context, provider domain.Provider, externalRef string) (*domain.PaymentSession, error)
}
