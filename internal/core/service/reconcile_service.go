package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/almightymoon/trendhive/internal/core/domain"
	"github.com/almightymoon/trendhive/internal/port"
)

const effectTimeout = 5 * time.Second

// ReconcileService turns completed-payment signals into durable orders.
// Every call site that learns about a finished payment (browser confirm,
// client capture, provider webhook) funnels through MaterializeOrder; the
// atomic insert on (provider, external ref) is the only synchronization
// point, so webhook retries and redirect/webhook races collapse into a
// single order.
type ReconcileService struct {
	orders       port.OrderRepository
	reviews      port.ReviewRepository
	carts        port.CartRepository
	effectsQueue chan domain.Order
}

func NewReconcileService(orders port.OrderRepository, reviews port.ReviewRepository, carts port.CartRepository, queueSize int) *ReconcileService {
	return &ReconcileService{
		orders:       orders,
		reviews:      reviews,
		carts:        carts,
		effectsQueue: make(chan domain.Order, queueSize),
	}
}

// MaterializeInput is the provider-agnostic description of a completed
// payment. Amount, currency, and purchaser come from the provider's
// authoritative record; line items come from the frozen checkout snapshot.
type MaterializeInput struct {
	Provider    domain.Provider
	ExternalRef string
	Amount      decimal.Decimal
	Currency    string
	Items       []domain.LineItem
	Purchaser   domain.Purchaser
	OwnerID     string
}

// MaterializeOrder creates at most one order for the given external
// reference. It is idempotent and safe to call arbitrarily many times:
// duplicate calls return the already-stored order unchanged and never
// re-trigger post-purchase effects. Effects are enqueued only after a
// winning insert, so a storage failure leaves no partial state behind.
func (s *ReconcileService) MaterializeOrder(ctx context.Context, in MaterializeInput) (*domain.Order, error) {
	existing, err := s.orders.GetOrderByExternalRef(ctx, in.Provider, in.ExternalRef)
	if err != nil {
		return nil, fmt.Errorf("lookup order: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now()
	order := domain.Order{
		ID:          uuid.NewString(),
		Provider:    in.Provider,
		ExternalRef: in.ExternalRef,
		Status:      domain.OrderStatusPaid,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Purchaser:   in.Purchaser,
		Items:       in.Items,
		UserID:      in.OwnerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	stored, created, err := s.orders.CreateOrderIfAbsent(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("materialize order: %w", err)
	}

	if created {
		s.effectsQueue <- *stored
	}

	return stored, nil
}

func (s *ReconcileService) GetEffectsQueue() <-chan domain.Order {
	return s.effectsQueue
}

// Close stops accepting effects; call after the HTTP server has drained.
func (s *ReconcileService) Close() {
	close(s.effectsQueue)
}

// RunEffectsWorker drains the effects queue until Close. Post-purchase
// effects are best effort: the order is already final, so failures are
// logged and never rolled back.
func (s *ReconcileService) RunEffectsWorker(id int) {
	for order := range s.effectsQueue {
		s.applyEffects(id, order)
	}
}

func (s *ReconcileService) applyEffects(workerID int, order domain.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), effectTimeout)
	defer cancel()

	if order.UserID == "" {
		// Guest purchase: no cart to clear, nobody to prompt for reviews.
		return
	}

	if err := s.carts.ClearCart(ctx, order.UserID); err != nil {
		log.Printf("worker %d: failed to clear cart for user %s after order %s: %v", workerID, order.UserID, order.ID, err)
	}

	seen := make(map[string]bool, len(order.Items))
	for _, item := range order.Items {
		if seen[item.ProductID] {
			continue
		}
		seen[item.ProductID] = true

		review := domain.PendingReview{
			UserID:       order.UserID,
			ProductID:    item.ProductID,
			ProductTitle: item.Title,
			Status:       domain.ReviewStatusPending,
			CreatedAt:    time.Now(),
		}
		if err := s.reviews.UpsertPendingReview(ctx, review); err != nil {
			log.Printf("worker %d: failed to seed pending review (%s, %s) for order %s: %v", workerID, order.UserID, item.ProductID, order.ID, err)
		}
	}
}
