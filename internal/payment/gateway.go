// Package payment adapts three Ethiopian payment providers (Telebirr,
// CBE Birr, Chapa) behind one capability set: initiate, verify, and
// callback parsing. Transport failures are returned as values, never as
// errors: the Sale Coordinator treats any unsuccessful result as a failed
// payment, and the provider's callback remains the retry mechanism.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"sukpos/internal/database/models"
)

// CallTimeout bounds every gateway round-trip. Calls run outside any
// database transaction so no row lock is held for this long.
const CallTimeout = 30 * time.Second

type InitiateRequest struct {
	Amount            decimal.Decimal
	TransactionNumber string
	CustomerPhone     string
	CustomerEmail     string
}

type InitiateResult struct {
	Success bool
	// Reference is the provider-issued identifier for this payment
	// attempt; unique per attempt.
	Reference string
	// CheckoutURL is a redirect hint for providers with a hosted payment
	// page (Chapa).
	CheckoutURL string
	Error       string
	TimedOut    bool
	RequestData models.JSONMap
	RawResponse models.JSONMap
}

type VerifyResult struct {
	Success     bool
	Verified    bool
	Amount      decimal.Decimal
	Error       string
	RawResponse models.JSONMap
}

type ParsedCallback struct {
	Gateway string
	// Reference is the provider reference carried by the callback.
	Reference string
	// TransactionNumber is our transaction number when the provider
	// echoes it back (Telebirr transaction_id, CBE transactionId,
	// Chapa tx_ref).
	TransactionNumber string
	Success           bool
	Amount            decimal.Decimal
	Raw               models.JSONMap
}

type Gateway interface {
	Name() string
	Initiate(ctx context.Context, req InitiateRequest) InitiateResult
	Verify(ctx context.Context, reference string) VerifyResult
	ParseCallback(payload []byte) (*ParsedCallback, error)
}

// Adapter routes by payment method name.
type Adapter struct {
	gateways map[string]Gateway
}

func NewAdapter(gateways ...Gateway) *Adapter {
	a := &Adapter{gateways: make(map[string]Gateway, len(gateways))}
	for _, g := range gateways {
		a.gateways[g.Name()] = g
	}
	return a
}

func (a *Adapter) Gateway(name string) (Gateway, bool) {
	g, ok := a.gateways[name]
	return g, ok
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: CallTimeout}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// postJSON sends body as JSON and decodes the response into a JSONMap.
// HTTP status >= 400 and decode failures are reported through err; the
// decoded payload is still returned when available.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body interface{}) (models.JSONMap, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var decoded models.JSONMap
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return decoded, fmt.Errorf("gateway returned HTTP %d", resp.StatusCode)
	}
	return decoded, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, headers map[string]string) (models.JSONMap, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var decoded models.JSONMap
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return decoded, fmt.Errorf("gateway returned HTTP %d", resp.StatusCode)
	}
	return decoded, nil
}

func stringField(m models.JSONMap, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func nestedMap(m models.JSONMap, key string) models.JSONMap {
	if m == nil {
		return nil
	}
	if v, ok := m[key].(map[string]interface{}); ok {
		return models.JSONMap(v)
	}
	return nil
}

func numberField(m models.JSONMap, key string) decimal.Decimal {
	if m == nil {
		return decimal.Zero
	}
	switch v := m[key].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return decimal.Zero
}
