package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/almightymoon/trendhive/internal/core/domain"
	"github.com/almightymoon/trendhive/internal/port"
)

// CartService mutates per-user carts. Every mutation loads the cart,
// applies the change, and persists the whole cart back.
type CartService struct {
	carts port.CartRepository
}

func NewCartService(carts port.CartRepository) *CartService {
	return &CartService{carts: carts}
}

func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.carts.GetCart(ctx, userID)
}

func (s *CartService) AddLine(ctx context.Context, userID string, line domain.CartLine) (*domain.Cart, error) {
	if line.Quantity < 1 || !line.UnitPrice.GreaterThan(decimal.Zero) {
		return nil, ErrInvalidCartLine
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	cart.AddLine(line)
	return s.save(ctx, cart)
}

func (s *CartService) RemoveLine(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	cart.RemoveLine(productID)
	return s.save(ctx, cart)
}

func (s *CartService) AdjustQuantity(ctx context.Context, userID, productID string, delta int) (*domain.Cart, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	cart.AdjustQuantity(productID, delta)
	return s.save(ctx, cart)
}

func (s *CartService) save(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	if err := s.carts.SaveCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return cart, nil
}
