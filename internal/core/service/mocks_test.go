package service

import (
	"context"
	"sync"

	"github.com/almightymoon/trendhive/internal/core/domain"
	"github.com/almightymoon/trendhive/internal/port"
)

// Mock OrderRepository
type mockOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]domain.Order // keyed by provider:externalRef
	createErr error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]domain.Order)}
}

func orderKey(provider domain.Provider, externalRef string) string {
	return string(provider) + ":" + externalRef
}

func (m *mockOrderRepo) CreateOrderIfAbsent(ctx context.Context, order domain.Order) (*domain.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return nil, false, m.createErr
	}

	key := orderKey(order.Provider, order.ExternalRef)
	if existing, ok := m.orders[key]; ok {
		return &existing, false, nil
	}
	m.orders[key] = order
	return &order, true, nil
}

func (m *mockOrderRepo) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, nil
}

func (m *mockOrderRepo) GetOrderByExternalRef(ctx context.Context, provider domain.Provider, externalRef string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[orderKey(provider, externalRef)]; ok {
		return &o, nil
	}
	return nil, nil
}

func (m *mockOrderRepo) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) ListRecentOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *mockOrderRepo) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, o := range m.orders {
		if o.ID == id {
			o.Status = status
			m.orders[key] = o
			return nil
		}
	}
	return ErrOrderNotFound
}

func (m *mockOrderRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// Mock ReviewRepository
type mockReviewRepo struct {
	mu      sync.Mutex
	reviews map[string]domain.PendingReview // keyed by userID:productID
	upserts int
}

func newMockReviewRepo() *mockReviewRepo {
	return &mockReviewRepo{reviews: make(map[string]domain.PendingReview)}
}

func (m *mockReviewRepo) UpsertPendingReview(ctx context.Context, review domain.PendingReview) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	m.reviews[review.UserID+":"+review.ProductID] = review
	return nil
}

func (m *mockReviewRepo) DeletePendingReview(ctx context.Context, userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reviews, userID+":"+productID)
	return nil
}

func (m *mockReviewRepo) ListPendingReviews(ctx context.Context, userID string) ([]domain.PendingReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PendingReview
	for _, r := range m.reviews {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockReviewRepo) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

// Mock CartRepository + SessionRepository
type mockCartRepo struct {
	mu       sync.Mutex
	carts    map[string]domain.Cart
	sessions map[string]domain.PaymentSession
	clears   int
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{
		carts:    make(map[string]domain.Cart),
		sessions: make(map[string]domain.PaymentSession),
	}
}

func (m *mockCartRepo) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[userID]; ok {
		copied := c
		copied.Lines = append([]domain.CartLine(nil), c.Lines...)
		return &copied, nil
	}
	return &domain.Cart{UserID: userID}, nil
}

func (m *mockCartRepo) SaveCart(ctx context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[cart.UserID] = *cart
	return nil
}

func (m *mockCartRepo) ClearCart(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	delete(m.carts, userID)
	return nil
}

func (m *mockCartRepo) SavePaymentSession(ctx context.Context, session *domain.PaymentSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[orderKey(session.Provider, session.ExternalRef)] = *session
	return nil
}

func (m *mockCartRepo) GetPaymentSession(ctx context.Context, provider domain.Provider, externalRef string) (*domain.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[orderKey(provider, externalRef)]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *mockCartRepo) clearCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

// Mock CheckoutProvider
type mockProvider struct {
	name domain.Provider

	mu            sync.Mutex
	initiateCalls int
	confirmCalls  int
	initiateRes   *port.InitiateResult
	initiateErr   error
	confirmRes    *port.ConfirmResult
	confirmErr    error
}

func (m *mockProvider) Name() domain.Provider {
	return m.name
}

func (m *mockProvider) Initiate(ctx context.Context, session *domain.PaymentSession) (*port.InitiateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initiateCalls++
	return m.initiateRes, m.initiateErr
}

func (m *mockProvider) Confirm(ctx context.Context, externalRef string) (*port.ConfirmResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmCalls++
	return m.confirmRes, m.confirmErr
}
