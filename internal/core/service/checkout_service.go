package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/almightymoon/trendhive/internal/core/domain"
	"github.com/almightymoon/trendhive/internal/port"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidCartLine = errors.New("cart line has invalid price or quantity")
	ErrUnknownProvider = errors.New("unknown payment provider")
)

// CheckoutService freezes carts into payment sessions, talks to the two
// payment integrations, and hands completed payments to the reconciler.
type CheckoutService struct {
	carts      port.CartRepository
	sessions   port.SessionRepository
	providers  map[domain.Provider]port.CheckoutProvider
	reconciler *ReconcileService
	currency   string
}

func NewCheckoutService(carts port.CartRepository, sessions port.SessionRepository, reconciler *ReconcileService, currency string, providers ...port.CheckoutProvider) *CheckoutService {
	byName := make(map[domain.Provider]port.CheckoutProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &CheckoutService{
		carts:      carts,
		sessions:   sessions,
		providers:  byName,
		reconciler: reconciler,
		currency:   currency,
	}
}

// InitiateSessionCheckout opens a hosted payment page for the owner's cart
// and returns the URL to redirect the browser to. Nothing is persisted
// beyond the frozen snapshot: the payment only becomes an order once a
// completion signal arrives.
func (s *CheckoutService) InitiateSessionCheckout(ctx context.Context, ownerID string) (string, error) {
	result, _, err := s.initiate(ctx, domain.ProviderStripe, ownerID)
	if err != nil {
		return "", err
	}
	return result.RedirectURL, nil
}

// CreateClientOrder opens a provider-side order for in-page authorization
// and returns its external id. No funds move until capture.
func (s *CheckoutService) CreateClientOrder(ctx context.Context, ownerID string) (string, error) {
	result, _, err := s.initiate(ctx, domain.ProviderPayPal, ownerID)
	if err != nil {
		return "", err
	}
	return result.ExternalRef, nil
}

func (s *CheckoutService) initiate(ctx context.Context, name domain.Provider, ownerID string) (*port.InitiateResult, *domain.PaymentSession, error) {
	provider, ok := s.providers[name]
	if !ok {
		return nil, nil, ErrUnknownProvider
	}

	cart, err := s.carts.GetCart(ctx, ownerID)
	if err != nil {
		return nil, nil, fmt.Errorf("load cart: %w", err)
	}
	if err := validateCart(cart); err != nil {
		return nil, nil, err
	}

	session := domain.NewPaymentSession(name, cart, s.currency, ownerID)

	result, err := provider.Initiate(ctx, session)
	if err != nil {
		return nil, nil, err
	}
	session.ExternalRef = result.ExternalRef

	if err := s.sessions.SavePaymentSession(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("save payment session: %w", err)
	}

	return result, session, nil
}

// ConfirmSessionPayment is the browser-return path for the redirect flow.
// The session reference coming back in the query string carries no trusted
// status: the provider is re-queried for the authoritative outcome, and
// owner id and amount are taken from its record, never from client input.
func (s *CheckoutService) ConfirmSessionPayment(ctx context.Context, sessionRef string) (*domain.Order, error) {
	return s.confirm(ctx, domain.ProviderStripe, sessionRef)
}

// CaptureClientOrder finalizes funds for an authorized client-capture order
// and materializes the result.
func (s *CheckoutService) CaptureClientOrder(ctx context.Context, externalOrderID string) (*domain.Order, error) {
	return s.confirm(ctx, domain.ProviderPayPal, externalOrderID)
}

func (s *CheckoutService) confirm(ctx context.Context, name domain.Provider, externalRef string) (*domain.Order, error) {
	provider, ok := s.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}

	confirmed, err := provider.Confirm(ctx, externalRef)
	if err != nil {
		return nil, err
	}

	return s.materializeConfirmed(ctx, name, confirmed)
}

// RecordSessionCompleted is the webhook path: the event has already been
// signature-verified and carries the provider's own view of the completed
// session, so no further provider round trip is needed.
func (s *CheckoutService) RecordSessionCompleted(ctx context.Context, confirmed *port.ConfirmResult) (*domain.Order, error) {
	return s.materializeConfirmed(ctx, domain.ProviderStripe, confirmed)
}

// materializeConfirmed merges the provider's authoritative confirmation with
// the frozen checkout snapshot and hands off to the idempotent reconciler.
// Amount precedence: provider record first, snapshot second, never client
// input.
func (s *CheckoutService) materializeConfirmed(ctx context.Context, name domain.Provider, confirmed *port.ConfirmResult) (*domain.Order, error) {
	session, err := s.sessions.GetPaymentSession(ctx, name, confirmed.ExternalRef)
	if err != nil {
		return nil, fmt.Errorf("load payment session: %w", err)
	}

	amount := confirmed.Amount
	currency := confirmed.Currency
	ownerID := confirmed.OwnerID
	var items []domain.LineItem

	if session != nil {
		items = session.LineItems()
		if !confirmed.AmountKnown {
			amount = session.Amount
		}
		if currency == "" {
			currency = session.Currency
		}
		if ownerID == "" {
			ownerID = session.OwnerID
		}
	} else if !confirmed.AmountKnown {
		return nil, fmt.Errorf("no authoritative amount for %s ref %s: %w", name, confirmed.ExternalRef, port.ErrPaymentProvider)
	}

	return s.reconciler.MaterializeOrder(ctx, MaterializeInput{
		Provider:    name,
		ExternalRef: confirmed.ExternalRef,
		Amount:      amount,
		Currency:    currency,
		Items:       items,
		Purchaser:   confirmed.Purchaser,
		OwnerID:     ownerID,
	})
}

func validateCart(cart *domain.Cart) error {
	if cart == nil || cart.IsEmpty() {
		return ErrEmptyCart
	}
	for _, line := range cart.Lines {
		if line.Quantity < 1 || !line.UnitPrice.GreaterThan(decimal.Zero) {
			return ErrInvalidCartLine
		}
	}
	return nil
}
