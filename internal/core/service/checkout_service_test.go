package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almightymoon/trendhive/internal/core/domain"
	"github.com/almightymoon/trendhive/internal/port"
)

type checkoutEnv struct {
	orders     *mockOrderRepo
	reviews    *mockReviewRepo
	carts      *mockCartRepo
	stripe     *mockProvider
	paypal     *mockProvider
	checkout   *CheckoutService
	reconciler *ReconcileService
}

func newCheckoutEnv(t *testing.T) *checkoutEnv {
	t.Helper()

	env := &checkoutEnv{
		orders:  newMockOrderRepo(),
		reviews: newMockReviewRepo(),
		carts:   newMockCartRepo(),
		stripe: &mockProvider{
			name:        domain.ProviderStripe,
			initiateRes: &port.InitiateResult{ExternalRef: "sess_1", RedirectURL: "https://pay.example/sess_1"},
		},
		paypal: &mockProvider{
			name:        domain.ProviderPayPal,
			initiateRes: &port.InitiateResult{ExternalRef: "PP-1"},
		},
	}

	env.reconciler = NewReconcileService(env.orders, env.reviews, env.carts, 100)
	go env.reconciler.RunEffectsWorker(0)
	t.Cleanup(env.reconciler.Close)

	env.checkout = NewCheckoutService(env.carts, env.carts, env.reconciler, "USD", env.stripe, env.paypal)
	return env
}

func (e *checkoutEnv) seedCart(t *testing.T, userID string) {
	t.Helper()
	err := e.carts.SaveCart(context.Background(), &domain.Cart{
		UserID: userID,
		Lines: []domain.CartLine{{
			ProductID: "prod-mug",
			Title:     "Mug",
			UnitPrice: decimal.RequireFromString("10.00"),
			Quantity:  2,
		}},
	})
	require.NoError(t, err)
}

func TestInitiateSessionCheckout_EmptyCart(t *testing.T) {
	env := newCheckoutEnv(t)

	_, err := env.checkout.InitiateSessionCheckout(context.Background(), "user-1")
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, 0, env.stripe.initiateCalls, "provider must not be called for an empty cart")
}

func TestInitiateSessionCheckout_InvalidLine(t *testing.T) {
	env := newCheckoutEnv(t)

	err := env.carts.SaveCart(context.Background(), &domain.Cart{
		UserID: "user-1",
		Lines:  []domain.CartLine{{ProductID: "p", Title: "Thing", UnitPrice: decimal.Zero, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = env.checkout.InitiateSessionCheckout(context.Background(), "user-1")
	require.ErrorIs(t, err, ErrInvalidCartLine)
}

func TestInitiateSessionCheckout_ProviderError(t *testing.T) {
	env := newCheckoutEnv(t)
	env.seedCart(t, "user-1")
	env.stripe.initiateErr = port.ErrPaymentProvider
	env.stripe.initiateRes = nil

	_, err := env.checkout.InitiateSessionCheckout(context.Background(), "user-1")
	require.ErrorIs(t, err, port.ErrPaymentProvider)

	session, err := env.carts.GetPaymentSession(context.Background(), domain.ProviderStripe, "sess_1")
	require.NoError(t, err)
	assert.Nil(t, session, "no snapshot persisted when initiation fails")
	assert.Equal(t, 0, env.orders.count(), "a failed initiation is not a placed order")
}

func TestInitiateSessionCheckout_FreezesSnapshot(t *testing.T) {
	env := newCheckoutEnv(t)
	env.seedCart(t, "user-1")

	redirectURL, err := env.checkout.InitiateSessionCheckout(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/sess_1", redirectURL)

	session, err := env.carts.GetPaymentSession(context.Background(), domain.ProviderStripe, "sess_1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, session.Amount.Equal(decimal.RequireFromString("20.00")))
	assert.Equal(t, "user-1", session.OwnerID)
	require.Len(t, session.Lines, 1)
}

// Mutating the cart after checkout initiation must not change the amount
// charged or the line items recorded on the order.
func TestPriceIntegrity_CartMutatedAfterInitiation(t *testing.T) {
	env := newCheckoutEnv(t)
	env.seedCart(t, "user-1")

	_, err := env.checkout.InitiateSessionCheckout(context.Background(), "user-1")
	require.NoError(t, err)

	// Shopper keeps shopping while the hosted page is open.
	cartSvc := NewCartService(env.carts)
	_, err = cartSvc.AddLine(context.Background(), "user-1", domain.CartLine{
		ProductID: "prod-lamp",
		Title:     "Lamp",
		UnitPrice: decimal.RequireFromString("99.99"),
		Quantity:  3,
	})
	require.NoError(t, err)

	// Provider reports only completion state; amount comes from its record.
	env.stripe.confirmRes = &port.ConfirmResult{
		ExternalRef: "sess_1",
		Amount:      decimal.RequireFromString("20.00"),
		AmountKnown: true,
		Currency:    "USD",
		OwnerID:     "user-1",
	}

	order, err := env.checkout.ConfirmSessionPayment(context.Background(), "sess_1")
	require.NoError(t, err)

	assert.True(t, order.Amount.Equal(decimal.RequireFromString("20.00")))
	require.Len(t, order.Items, 1)
	assert.Equal(t, "prod-mug", order.Items[0].ProductID)
	assert.Equal(t, 2, order.Items[0].Quantity)
}

// Scenario: client-capture flow end to end. Create, capture with the
// provider reporting 20.00, exactly one paid order, cart emptied, one
// pending review for the purchased product.
func TestClientCaptureFlow(t *testing.T) {
	env := newCheckoutEnv(t)
	env.seedCart(t, "user-1")

	externalOrderID, err := env.checkout.CreateClientOrder(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "PP-1", externalOrderID)
	assert.Equal(t, 0, env.orders.count(), "no order before capture")

	env.paypal.confirmRes = &port.ConfirmResult{
		ExternalRef: "PP-1",
		Amount:      decimal.RequireFromString("20.00"),
		AmountKnown: true,
		Currency:    "USD",
		Purchaser:   domain.Purchaser{Name: "Ada Lovelace", Email: "ada@example.com"},
	}

	order, err := env.checkout.CaptureClientOrder(context.Background(), "PP-1")
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.True(t, order.Amount.Equal(decimal.RequireFromString("20.00")))
	assert.Equal(t, "user-1", order.UserID, "owner bound from the frozen snapshot")
	assert.Equal(t, "Ada Lovelace", order.Purchaser.Name)
	assert.Equal(t, 1, env.orders.count())

	require.Eventually(t, func() bool {
		cart, err := env.carts.GetCart(context.Background(), "user-1")
		return err == nil && cart.IsEmpty()
	}, time.Second, 10*time.Millisecond, "cart should be cleared")

	require.Eventually(t, func() bool {
		reviews, err := env.reviews.ListPendingReviews(context.Background(), "user-1")
		return err == nil && len(reviews) == 1 && reviews[0].ProductID == "prod-mug"
	}, time.Second, 10*time.Millisecond, "one pending review for the mug")
}

// Scenario: capture omits the amount; it falls back to the frozen snapshot,
// never to client input.
func TestClientCapture_AmountFallsBackToSnapshot(t *testing.T) {
	env := newCheckoutEnv(t)
	env.seedCart(t, "user-1")

	_, err := env.checkout.CreateClientOrder(context.Background(), "user-1")
	require.NoError(t, err)

	env.paypal.confirmRes = &port.ConfirmResult{ExternalRef: "PP-1"}

	order, err := env.checkout.CaptureClientOrder(context.Background(), "PP-1")
	require.NoError(t, err)
	assert.True(t, order.Amount.Equal(decimal.RequireFromString("20.00")))
	assert.Equal(t, "USD", order.Currency)
}

// Scenario: the webhook lands first; the browser confirm a moment later must
// return the same order with no second insert and no repeated effects.
func TestWebhookThenConfirm_SameOrder(t *testing.T) {
	env := newCheckoutEnv(t)
	env.seedCart(t, "user-1")

	_, err := env.checkout.InitiateSessionCheckout(context.Background(), "user-1")
	require.NoError(t, err)

	confirmed := &port.ConfirmResult{
		ExternalRef: "sess_1",
		Amount:      decimal.RequireFromString("20.00"),
		AmountKnown: true,
		Currency:    "USD",
		OwnerID:     "user-1",
	}

	webhookOrder, err := env.checkout.RecordSessionCompleted(context.Background(), confirmed)
	require.NoError(t, err)

	env.stripe.confirmRes = confirmed
	confirmOrder, err := env.checkout.ConfirmSessionPayment(context.Background(), "sess_1")
	require.NoError(t, err)

	assert.Equal(t, webhookOrder.ID, confirmOrder.ID)
	assert.Equal(t, 1, env.orders.count())

	require.Eventually(t, func() bool {
		return env.reviews.upsertCount() == 1
	}, time.Second, 10*time.Millisecond, "effects must not rerun for the duplicate signal")
}

// Scenario: provider reports the payment unfinished; no order, no effects.
func TestCapture_NotCompleted(t *testing.T) {
	env := newCheckoutEnv(t)
	env.seedCart(t, "user-1")

	_, err := env.checkout.CreateClientOrder(context.Background(), "user-1")
	require.NoError(t, err)

	env.paypal.confirmErr = port.ErrPaymentNotCompleted

	_, err = env.checkout.CaptureClientOrder(context.Background(), "PP-1")
	require.ErrorIs(t, err, port.ErrPaymentNotCompleted)

	assert.Equal(t, 0, env.orders.count())
	assert.Equal(t, 0, env.reviews.upsertCount())
	assert.Equal(t, 0, env.carts.clearCount())
}

func TestConfirm_UnknownProvider(t *testing.T) {
	env := newCheckoutEnv(t)
	checkout := NewCheckoutService(env.carts, env.carts, env.reconciler, "USD") // no providers registered

	_, err := checkout.ConfirmSessionPayment(context.Background(), "sess_1")
	require.True(t, errors.Is(err, ErrUnknownProvider))
}
