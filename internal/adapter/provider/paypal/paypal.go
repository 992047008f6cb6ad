package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/almightymoon/trendhive/internal/core/domain"
	"github.com/almightymoon/trendhive/internal/port"
)

const defaultBaseURL = "https://api-m.sandbox.paypal.com"

// Client drives the two-phase client-capture flow: Initiate opens a
// provider-side order for in-page authorization (no funds move), Confirm
// performs the capture that finalizes funds and returns the authoritative
// payer and amount data.
type Client struct {
	clientID   string
	secret     string
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(clientID, secret, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		clientID:   clientID,
		secret:     secret,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Name() domain.Provider {
	return domain.ProviderPayPal
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type orderItem struct {
	Name       string `json:"name"`
	UnitAmount money  `json:"unit_amount"`
	Quantity   string `json:"quantity"`
	SKU        string `json:"sku,omitempty"`
}

type purchaseAmount struct {
	money
	Breakdown struct {
		ItemTotal money `json:"item_total"`
	} `json:"breakdown"`
}

type purchaseUnit struct {
	Amount purchaseAmount `json:"amount"`
	Items  []orderItem    `json:"items"`
}

type createOrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type orderResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Payer         *payer `json:"payer"`
	PurchaseUnits []struct {
		Shipping *struct {
			Address struct {
				AddressLine1 string `json:"address_line_1"`
				AdminArea2   string `json:"admin_area_2"`
				PostalCode   string `json:"postal_code"`
				CountryCode  string `json:"country_code"`
			} `json:"address"`
		} `json:"shipping"`
		Payments *struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Amount *money `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type payer struct {
	Name struct {
		GivenName string `json:"given_name"`
		Surname   string `json:"surname"`
	} `json:"name"`
	EmailAddress string `json:"email_address"`
}

func (c *Client) Initiate(ctx context.Context, session *domain.PaymentSession) (*port.InitiateResult, error) {
	req := createOrderRequest{
		Intent:        "CAPTURE",
		PurchaseUnits: make([]purchaseUnit, 1),
	}

	unit := &req.PurchaseUnits[0]
	unit.Amount.CurrencyCode = session.Currency
	unit.Amount.Value = session.Amount.StringFixed(2)
	unit.Amount.Breakdown.ItemTotal = money{CurrencyCode: session.Currency, Value: session.Amount.StringFixed(2)}
	for _, line := range session.Lines {
		unit.Items = append(unit.Items, orderItem{
			Name:       line.Title,
			UnitAmount: money{CurrencyCode: session.Currency, Value: line.UnitPrice.StringFixed(2)},
			Quantity:   strconv.Itoa(line.Quantity),
			SKU:        line.ProductID,
		})
	}

	var created orderResponse
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", req, &created); err != nil {
		return nil, err
	}

	return &port.InitiateResult{ExternalRef: created.ID}, nil
}

func (c *Client) Confirm(ctx context.Context, externalRef string) (*port.ConfirmResult, error) {
	path := "/v2/checkout/orders/" + url.PathEscape(externalRef) + "/capture"

	var captured orderResponse
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &captured); err != nil {
		return nil, err
	}

	if captured.Status != "COMPLETED" {
		return nil, fmt.Errorf("order %s status %q: %w", externalRef, captured.Status, port.ErrPaymentNotCompleted)
	}

	result := &port.ConfirmResult{ExternalRef: externalRef}
	if captured.Payer != nil {
		result.Purchaser.Name = strings.TrimSpace(captured.Payer.Name.GivenName + " " + captured.Payer.Name.Surname)
		result.Purchaser.Email = captured.Payer.EmailAddress
	}

	if len(captured.PurchaseUnits) > 0 {
		unit := captured.PurchaseUnits[0]
		if unit.Shipping != nil {
			addr := unit.Shipping.Address
			result.Purchaser.Address = joinNonEmpty(addr.AddressLine1, addr.AdminArea2, addr.PostalCode, addr.CountryCode)
		}
		if unit.Payments != nil && len(unit.Payments.Captures) > 0 && unit.Payments.Captures[0].Amount != nil {
			amt := unit.Payments.Captures[0].Amount
			value, err := decimal.NewFromString(amt.Value)
			if err != nil {
				return nil, fmt.Errorf("paypal: parse capture amount %q: %w", amt.Value, port.ErrPaymentProvider)
			}
			result.Amount = value
			result.AmountKnown = true
			result.Currency = amt.CurrencyCode
		}
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("paypal: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("paypal: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("PayPal-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paypal: %s %s: %v: %w", method, path, err, port.ErrPaymentProvider)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		// An order the buyer never approved surfaces as a 422, not a
		// provider outage.
		if resp.StatusCode == http.StatusUnprocessableEntity && bytes.Contains(snippet, []byte("ORDER_NOT_APPROVED")) {
			return fmt.Errorf("paypal: order not approved: %w", port.ErrPaymentNotCompleted)
		}
		return fmt.Errorf("paypal: %s %s: status %d: %s: %w", method, path, resp.StatusCode, snippet, port.ErrPaymentProvider)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("paypal: decode response: %v: %w", err, port.ErrPaymentProvider)
	}
	return nil
}

// token returns a cached OAuth access token, refreshing it shortly before
// expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("paypal: build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal: token request: %v: %w", err, port.ErrPaymentProvider)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal: token request: status %d: %w", resp.StatusCode, port.ErrPaymentProvider)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("paypal: decode token: %v: %w", err, port.ErrPaymentProvider)
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
