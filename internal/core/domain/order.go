package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Provider string

const (
	// ProviderStripe is the hosted-session redirect integration.
	ProviderStripe Provider = "stripe"
	// ProviderPayPal is the in-page authorize-then-capture integration.
	ProviderPayPal Provider = "paypal"
)

type OrderStatus string

const (
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusRefunded  OrderStatus = "refunded"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPaid, OrderStatusPending, OrderStatusRefunded, OrderStatusCancelled:
		return true
	}
	return false
}

// LineItem is a frozen copy of a cart line at payment time.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Purchaser is a snapshot of who paid, taken from the provider's
// authoritative record, not a live reference to a user profile.
type Purchaser struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// Order is the durable result of a reconciled payment. At most one Order
// exists per (Provider, ExternalRef); that uniqueness is the central
// correctness property of checkout.
type Order struct {
	ID          string          `json:"id"`
	Provider    Provider        `json:"provider"`
	ExternalRef string          `json:"external_ref"`
	Status      OrderStatus     `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Purchaser   Purchaser       `json:"purchaser"`
	Items       []LineItem      `json:"items"`
	UserID      string          `json:"user_id,omitempty"` // empty for guest checkout
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
