package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/almightymoon/trendhive/internal/core/domain"
	"github.com/almightymoon/trendhive/internal/core/service"
	"github.com/almightymoon/trendhive/internal/port"
)

// HTTPHandler wires the storefront endpoints. The user identity is consumed
// as a data contract: upstream auth populates X-User-Id, and checkout never
// trusts it for payment amounts or purchaser data.
type HTTPHandler struct {
	checkoutService *service.CheckoutService
	cartService     *service.CartService
	orderService    *service.OrderService
	webhookHandler  *WebhookHandler
}

func NewHTTPHandler(checkoutService *service.CheckoutService, cartService *service.CartService, orderService *service.OrderService, webhookHandler *WebhookHandler) *HTTPHandler {
	return &HTTPHandler{
		checkoutService: checkoutService,
		cartService:     cartService,
		orderService:    orderService,
		webhookHandler:  webhookHandler,
	}
}

func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.HealthCheck)

	r.Post("/checkout/session", h.InitiateSessionCheckout)
	r.Post("/checkout/client-capture", h.ClientCapture)
	r.Post("/orders/confirm", h.ConfirmOrder)
	r.Post("/webhooks/payment-provider", h.webhookHandler.HandlePaymentEvent)

	r.Get("/cart", h.GetCart)
	r.Post("/cart/items", h.AddCartItem)
	r.Delete("/cart/items/{productID}", h.RemoveCartItem)
	r.Post("/cart/items/{productID}/increment", h.adjustCartItem(1))
	r.Post("/cart/items/{productID}/decrement", h.adjustCartItem(-1))

	r.Get("/orders", h.ListOrders)
	r.Get("/orders/{orderID}", h.GetOrder)

	r.Get("/reviews/pending", h.ListPendingReviews)
	r.Delete("/reviews/pending/{productID}", h.DismissPendingReview)

	r.Get("/admin/orders", h.ListRecentOrders)
	r.Patch("/admin/orders/{orderID}/status", h.UpdateOrderStatus)

	return r
}

type checkoutSessionResponse struct {
	RedirectURL string `json:"redirect_url"`
}

func (h *HTTPHandler) InitiateSessionCheckout(w http.ResponseWriter, r *http.Request) {
	redirectURL, err := h.checkoutService.InitiateSessionCheckout(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutSessionResponse{RedirectURL: redirectURL})
}

type clientCaptureRequest struct {
	Action          string `json:"action"`
	ExternalOrderID string `json:"external_order_id"`
}

type orderResponse struct {
	Success bool          `json:"success"`
	Order   *domain.Order `json:"order,omitempty"`
}

func (h *HTTPHandler) ClientCapture(w http.ResponseWriter, r *http.Request) {
	var req clientCaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Action {
	case "create":
		externalOrderID, err := h.checkoutService.CreateClientOrder(r.Context(), userID(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"external_order_id": externalOrderID})

	case "capture":
		if req.ExternalOrderID == "" {
			writeMessage(w, http.StatusBadRequest, "external_order_id is required")
			return
		}
		order, err := h.checkoutService.CaptureClientOrder(r.Context(), req.ExternalOrderID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orderResponse{Success: true, Order: order})

	default:
		writeMessage(w, http.StatusBadRequest, "action must be create or capture")
	}
}

type confirmOrderRequest struct {
	SessionRef      string `json:"session_ref"`
	ExternalOrderID string `json:"external_order_id"`
}

func (h *HTTPHandler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	var req confirmOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var order *domain.Order
	var err error
	switch {
	case req.SessionRef != "":
		order, err = h.checkoutService.ConfirmSessionPayment(r.Context(), req.SessionRef)
	case req.ExternalOrderID != "":
		order, err = h.checkoutService.CaptureClientOrder(r.Context(), req.ExternalOrderID)
	default:
		writeMessage(w, http.StatusBadRequest, "session_ref or external_order_id is required")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{Success: true, Order: order})
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cartService.GetCart(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

func (h *HTTPHandler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" || req.Title == "" {
		writeMessage(w, http.StatusBadRequest, "product_id and title are required")
		return
	}

	price, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid unit_price")
		return
	}

	cart, err := h.cartService.AddLine(r.Context(), userID(r), domain.CartLine{
		ProductID: req.ProductID,
		Title:     req.Title,
		UnitPrice: price,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *HTTPHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cartService.RemoveLine(r.Context(), userID(r), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *HTTPHandler) adjustCartItem(delta int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cart, err := h.cartService.AdjustQuantity(r.Context(), userID(r), chi.URLParam(r, "productID"), delta)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cart)
	}
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.ListOrders(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.GetOrder(r.Context(), chi.URLParam(r, "orderID"), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) ListRecentOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	orders, err := h.orderService.ListRecentOrders(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orderService.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), domain.OrderStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) ListPendingReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.orderService.ListPendingReviews(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (h *HTTPHandler) DismissPendingReview(w http.ResponseWriter, r *http.Request) {
	err := h.orderService.DismissPendingReview(r.Context(), userID(r), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func userID(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, service.ErrEmptyCart):
		status, message = http.StatusBadRequest, "cart is empty"
	case errors.Is(err, service.ErrInvalidCartLine):
		status, message = http.StatusBadRequest, "cart line has invalid price or quantity"
	case errors.Is(err, service.ErrInvalidStatus):
		status, message = http.StatusBadRequest, "invalid order status"
	case errors.Is(err, service.ErrOrderNotFound):
		status, message = http.StatusNotFound, "order not found"
	case errors.Is(err, service.ErrForbidden):
		status, message = http.StatusForbidden, "order belongs to another user"
	case errors.Is(err, port.ErrPaymentNotCompleted):
		status, message = http.StatusPaymentRequired, "payment not completed"
	case errors.Is(err, port.ErrPaymentProvider):
		status, message = http.StatusBadGateway, "payment provider error"
	}

	writeMessage(w, status, message)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Success: status < 400, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
