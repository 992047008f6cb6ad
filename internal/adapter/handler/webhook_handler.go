package handler

import (
	"io"
	"log"
	"net/http"

	"github.com/almightymoon/trendhive/internal/adapter/provider/stripe"
	"github.com/almightymoon/trendhive/internal/core/service"
)

const maxWebhookBody = 1 << 16

// WebhookHandler is the provider-initiated entry point into reconciliation.
// It may fire before, after, or concurrently with the browser confirm call
// and is retried by the provider; correctness rests entirely on the
// reconciler's idempotent materialization, not on deduplicating deliveries.
type WebhookHandler struct {
	checkoutService *service.CheckoutService
	signingSecret   string
}

func NewWebhookHandler(checkoutService *service.CheckoutService, signingSecret string) *WebhookHandler {
	return &WebhookHandler{
		checkoutService: checkoutService,
		signingSecret:   signingSecret,
	}
}

func (h *WebhookHandler) HandlePaymentEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "unreadable body")
		return
	}

	event, err := stripe.ConstructEvent(body, r.Header.Get("Stripe-Signature"), h.signingSecret)
	if err != nil {
		// 400 tells the provider to retry later per its own policy.
		log.Printf("webhook: rejected event: %v", err)
		writeMessage(w, http.StatusBadRequest, "signature verification failed")
		return
	}

	if event.Type != stripe.EventCheckoutCompleted {
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	sess := &event.Data.Object
	if !sess.Completed() {
		// Completed event for an unpaid session (async payment methods);
		// a later event will carry the paid state.
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	order, err := h.checkoutService.RecordSessionCompleted(r.Context(), sess.ConfirmResult())
	if err != nil {
		log.Printf("webhook: failed to materialize order for session %s: %v", sess.ID, err)
		writeMessage(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	log.Printf("webhook: session %s reconciled to order %s", sess.ID, order.ID)
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
