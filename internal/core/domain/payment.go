package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	SessionStatusInitiated SessionStatus = "initiated"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

// PaymentSession freezes the cart at checkout initiation. The live cart is
// never re-read after this point, so later cart mutation cannot change the
// amount charged or the line items recorded on the order.
type PaymentSession struct {
	Provider    Provider        `json:"provider"`
	ExternalRef string          `json:"external_ref"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Lines       []CartLine      `json:"lines"`
	OwnerID     string          `json:"owner_id,omitempty"`
	Status      SessionStatus   `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewPaymentSession freezes the cart into a checkout snapshot. Lines are
// copied, not referenced, so the live cart can keep changing underneath.
func NewPaymentSession(provider Provider, cart *Cart, currency, ownerID string) *PaymentSession {
	lines := make([]CartLine, len(cart.Lines))
	copy(lines, cart.Lines)

	return &PaymentSession{
		Provider:  provider,
		Amount:    cart.Total(),
		Currency:  currency,
		Lines:     lines,
		OwnerID:   ownerID,
		Status:    SessionStatusInitiated,
		CreatedAt: time.Now(),
	}
}

// LineItems converts the frozen cart lines into order line items.
func (s *PaymentSession) LineItems() []LineItem {
	items := make([]LineItem, 0, len(s.Lines))
	for _, l := range s.Lines {
		items = append(items, LineItem{
			ProductID: l.ProductID,
			Title:     l.Title,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		})
	}
	return items
}
