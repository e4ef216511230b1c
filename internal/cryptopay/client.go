// Package cryptopay wraps the Crypto Pay HTTP API. The gateway is an
// untrusted boundary: every operation resolves to a value-plus-ok pair, never
// an error, and the client never retries on its own.
package cryptopay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the production Crypto Pay endpoint.
const DefaultBaseURL = "https://pay.crypt.bot/api"

const tokenHeader = "Crypto-Pay-API-Token"

// Invoice statuses reported by the gateway. Anything outside active/paid is
// treated as invalid by the reconciliation engine.
const (
	InvoiceStatusActive  = "active"
	InvoiceStatusPaid    = "paid"
	InvoiceStatusExpired = "expired"
)

// Invoice is the gateway-side payment request.
type Invoice struct {
	ID     int64  `json:"invoice_id"`
	Status string `json:"status"`
	PayURL string `json:"pay_url"`
}

// Client issues stateless requests against the Crypto Pay API.
type Client struct {
	httpc   *http.Client
	baseURL string
	token   string
	logf    func(format string, args ...any)
}

// New constructs a Client. A zero timeout falls back to 15 seconds so no
// gateway call can hang indefinitely.
func New(baseURL, token string, timeout time.Duration, logf func(format string, args ...any)) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logf == nil {
		logf = log.Printf
	}
	return &Client{
		httpc:   &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		logf:    logf,
	}
}

// CreateInvoice asks the gateway for a new invoice. The amount is rounded to
// two decimal places, the gateway's minimum currency granularity, before
// transmission. On any failure it logs and reports ok=false; callers must
// branch on the flag.
func (c *Client) CreateInvoice(ctx context.Context, asset string, amount float64, description, payload string) (Invoice, bool) {
	body := map[string]any{
		"asset":       asset,
		"amount":      decimal.NewFromFloat(amount).Round(2).StringFixed(2),
		"description": description,
		"payload":     payload,
	}

	var inv Invoice
	if !c.call(ctx, "createInvoice", body, &inv) {
		return Invoice{}, false
	}
	if inv.ID == 0 || inv.PayURL == "" {
		c.logf("cryptopay createInvoice: incomplete result %+v", inv)
		return Invoice{}, false
	}
	return inv, true
}

// GetInvoice fetches the current state of one invoice. Reports ok=false when
// the gateway fails or has no record of the id.
func (c *Client) GetInvoice(ctx context.Context, invoiceID int64) (Invoice, bool) {
	body := map[string]any{"invoice_ids": []int64{invoiceID}}

	var result struct {
		Items []Invoice `json:"items"`
	}
	if !c.call(ctx, "getInvoices", body, &result) {
		return Invoice{}, false
	}
	for _, inv := range result.Items {
		if inv.ID == invoiceID {
			return inv, true
		}
	}
	c.logf("cryptopay getInvoices: invoice %d not in response", invoiceID)
	return Invoice{}, false
}

// call posts the method body and decodes the result envelope into dst.
func (c *Client) call(ctx context.Context, method string, body any, dst any) bool {
	payload, err := json.Marshal(body)
	if err != nil {
		c.logf("cryptopay %s: encode request: %v", method, err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(payload))
	if err != nil {
		c.logf("cryptopay %s: build request: %v", method, err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tokenHeader, c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logf("cryptopay %s: %v", method, err)
		return false
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logf("cryptopay %s: read response: %v", method, err)
		return false
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logf("cryptopay %s: status %d: %s", method, resp.StatusCode, raw)
		return false
	}

	var envelope struct {
		OK     bool            `json:"ok"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.logf("cryptopay %s: decode envelope: %v", method, err)
		return false
	}
	if !envelope.OK {
		c.logf("cryptopay %s: gateway rejected request: %s", method, raw)
		return false
	}
	if err := json.Unmarshal(envelope.Result, dst); err != nil {
		c.logf("cryptopay %s: decode result: %v", method, err)
		return false
	}
	return true
}
