package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/almightymoon/trendhive/internal/core/domain"
)

const (
	cartKeyPrefix    = "cart:"
	sessionKeyPrefix = "paysession:"
	sessionTTL       = 24 * time.Hour
)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cartKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return &domain.Cart{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return &cart, nil
}

// SaveCart overwrites the stored cart wholesale; carts are never diffed.
func (r *RedisAdapter) SaveCart(ctx context.Context, cart *domain.Cart) error {
	cart.UpdatedAt = time.Now()
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := r.client.Set(ctx, cartKeyPrefix+cart.UserID, data, 0).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (r *RedisAdapter) ClearCart(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cartKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func sessionKey(provider domain.Provider, externalRef string) string {
	return fmt.Sprintf("%s%s:%s", sessionKeyPrefix, provider, externalRef)
}

func (r *RedisAdapter) SavePaymentSession(ctx context.Context, session *domain.PaymentSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal payment session: %w", err)
	}
	key := sessionKey(session.Provider, session.ExternalRef)
	if err := r.client.Set(ctx, key, data, sessionTTL).Err(); err != nil {
		return fmt.Errorf("save payment session: %w", err)
	}
	return nil
}

func (r *RedisAdapter) GetPaymentSession(ctx context.Context, provider domain.Provider, externalRef string) (*domain.PaymentSession, error) {
	data, err := r.client.Get(ctx, sessionKey(provider, externalRef)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment session: %w", err)
	}

	var session domain.PaymentSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal payment session: %w", err)
	}
	return &session, nil
}
