package port

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/almightymoon/trendhive/internal/core/domain"
)

// ErrPaymentProvider marks network, auth, or rejection failures from an
// upstream payment provider. No order exists afterwards and the whole
// initiation is safe to retry.
var ErrPaymentProvider = errors.New("payment provider error")

// ErrPaymentNotCompleted means the provider reports the payment as not yet
// finalized. No order is materialized; the caller may poll or retry.
var ErrPaymentNotCompleted = errors.New("payment not completed")

// InitiateResult is what a provider hands back when a checkout is opened.
// The session-redirect provider fills RedirectURL; the client-capture
// provider only issues an external order id for the client to authorize.
type InitiateResult struct {
	ExternalRef string
	RedirectURL string
}

// ConfirmResult carries the provider's authoritative view of a finished
// payment. Amount, currency, purchaser, and owner id come from the
// provider's record, never from client input. AmountKnown is false when the
// provider response omits the amount, in which case the caller falls back
// to the frozen checkout snapshot.
type ConfirmResult struct {
	ExternalRef string
	Amount      decimal.Decimal
	AmountKnown bool
	Currency    string
	Purchaser   domain.Purchaser
	OwnerID     string
}

// CheckoutProvider is the polymorphic capability shared by both payment
// integrations. Only these two calls differ per provider; reconciliation
// downstream is identical.
type CheckoutProvider interface {
	Name() domain.Provider

	// Initiate opens a provider-side checkout from the frozen session
	// snapshot. Nothing is persisted on our side by the provider call
	// itself; completion is only knowable via Confirm or a webhook.
	Initiate(ctx context.Context, session *domain.PaymentSession) (*InitiateResult, error)

	// Confirm asks the provider for the authoritative outcome of the
	// checkout identified by externalRef. For the session-redirect
	// provider this is a status query; for the client-capture provider it
	// performs the capture that finalizes funds. Returns
	// ErrPaymentNotCompleted when the provider reports the payment
	// unfinished.
	Confirm(ctx context.Context, externalRef string) (*ConfirmResult, error)
}
