package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/almightymoon/trendhive/internal/core/domain"
	"github.com/almightymoon/trendhive/internal/port"
)

const defaultBaseURL = "https://api.stripe.com"

// Client drives the hosted-session redirect flow: it opens a Checkout
// Session from a frozen cart snapshot and later re-queries the session for
// its authoritative payment status. Query-string state coming back with the
// browser redirect is never trusted.
type Client struct {
	apiKey        string
	baseURL       string
	publicBaseURL string
	httpClient    *http.Client
}

func NewClient(apiKey, baseURL, publicBaseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:        apiKey,
		baseURL:       strings.TrimRight(baseURL, "/"),
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Name() domain.Provider {
	return domain.ProviderStripe
}

// Session is the provider-side checkout session record, as created and as
// returned by the authoritative status query.
type Session struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
	AmountTotal   *int64 `json:"amount_total"`
	Currency      string `json:"currency"`
	Metadata      struct {
		UserID string `json:"user_id"`
	} `json:"metadata"`
	CustomerDetails struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Address struct {
			Line1      string `json:"line1"`
			City       string `json:"city"`
			PostalCode string `json:"postal_code"`
			Country    string `json:"country"`
		} `json:"address"`
	} `json:"customer_details"`
}

func (c *Client) Initiate(ctx context.Context, session *domain.PaymentSession) (*port.InitiateResult, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", c.publicBaseURL+"/checkout/return?session_id={CHECKOUT_SESSION_ID}")
	form.Set("cancel_url", c.publicBaseURL+"/cart")
	if session.OwnerID != "" {
		form.Set("metadata[user_id]", session.OwnerID)
	}

	for i, line := range session.Lines {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", session.Currency)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(minorUnits(line.UnitPrice), 10))
		form.Set(prefix+"[price_data][product_data][name]", line.Title)
		form.Set(prefix+"[quantity]", strconv.Itoa(line.Quantity))
	}

	var created Session
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &created); err != nil {
		return nil, err
	}

	return &port.InitiateResult{
		ExternalRef: created.ID,
		RedirectURL: created.URL,
	}, nil
}

func (c *Client) Confirm(ctx context.Context, externalRef string) (*port.ConfirmResult, error) {
	var sess Session
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(externalRef), nil, &sess); err != nil {
		return nil, err
	}

	if !sess.Completed() {
		return nil, fmt.Errorf("session %s payment_status %q: %w", externalRef, sess.PaymentStatus, port.ErrPaymentNotCompleted)
	}

	return sess.ConfirmResult(), nil
}

// Completed reports whether the provider considers the session paid.
func (s *Session) Completed() bool {
	return s.PaymentStatus == "paid"
}

// ConfirmResult maps the session record onto the provider-agnostic
// confirmation consumed by reconciliation.
func (s *Session) ConfirmResult() *port.ConfirmResult {
	result := &port.ConfirmResult{
		ExternalRef: s.ID,
		Currency:    strings.ToUpper(s.Currency),
		OwnerID:     s.Metadata.UserID,
		Purchaser: domain.Purchaser{
			Name:    s.CustomerDetails.Name,
			Email:   s.CustomerDetails.Email,
			Address: formatAddress(s.CustomerDetails.Address.Line1, s.CustomerDetails.Address.City, s.CustomerDetails.Address.PostalCode, s.CustomerDetails.Address.Country),
		},
	}
	if s.AmountTotal != nil {
		result.Amount = decimal.New(*s.AmountTotal, -2)
		result.AmountKnown = true
	}
	return result
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("stripe: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stripe: %s %s: %v: %w", method, path, err, port.ErrPaymentProvider)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("stripe: %s %s: status %d: %s: %w", method, path, resp.StatusCode, snippet, port.ErrPaymentProvider)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("stripe: decode response: %v: %w", err, port.ErrPaymentProvider)
	}
	return nil
}

// minorUnits converts a decimal price to integer cents, rounding half up.
func minorUnits(price decimal.Decimal) int64 {
	return price.Shift(2).Round(0).IntPart()
}

func formatAddress(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
