package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sukpos/config"
	"sukpos/internal/database/models"
	"sukpos/internal/domain"
)

type CBEBirr struct {
	cfg         config.CBEBirrConfig
	callbackURL string
	client      *http.Client
	now         func() time.Time
}

func NewCBEBirr(cfg config.CBEBirrConfig, appBaseURL string) *CBEBirr {
	return &CBEBirr{
		cfg:         cfg,
		callbackURL: appBaseURL + "/api/payment/cbe-birr/callback",
		client:      newHTTPClient(),
		now:         time.Now,
	}
}

func (c *CBEBirr) Name() string { return models.PaymentCBEBirr }

// cbeChecksum is an HMAC-SHA256 over the pipe-joined parts, keyed by the
// merchant API key, hex encoded.
func cbeChecksum(apiKey string, parts ...string) string {
	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *CBEBirr) Initiate(ctx context.Context, req InitiateRequest) InitiateResult {
	amount := req.Amount.StringFixed(2)
	txnTime := c.now().Format("20060102150405")

	payload := models.JSONMap{
		"merchantId":          c.cfg.MerchantID,
		"terminalId":          c.cfg.TerminalID,
		"amount":              amount,
		"currency":            "ETB",
		"invoiceNo":           req.TransactionNumber,
		"transactionDateTime": txnTime,
		"customerPhone":       req.CustomerPhone,
		"callbackUrl":         c.callbackURL,
		"checkSum": cbeChecksum(c.cfg.APIKey,
			c.cfg.MerchantID, c.cfg.TerminalID, amount, "ETB", req.TransactionNumber, txnTime),
	}

	response, err := postJSON(ctx, c.client, c.cfg.BaseURL+"/payment/request", nil, payload)
	if err != nil {
		return InitiateResult{
			Error:       fmt.Sprintf("CBE Birr initiation failed: %v", err),
			TimedOut:    isTimeout(err),
			RequestData: payload,
			RawResponse: response,
		}
	}

	if stringField(response, "responseCode") != "000" {
		msg := stringField(response, "responseDescription")
		if msg == "" {
			msg = "CBE Birr payment failed"
		}
		return InitiateResult{Error: msg, RequestData: payload, RawResponse: response}
	}

	return InitiateResult{
		Success:     true,
		Reference:   stringField(response, "referenceNumber"),
		RequestData: payload,
		RawResponse: response,
	}
}

func (c *CBEBirr) Verify(ctx context.Context, reference string) VerifyResult {
	payload := models.JSONMap{
		"merchantId":      c.cfg.MerchantID,
		"terminalId":      c.cfg.TerminalID,
		"referenceNumber": reference,
		"checkSum": cbeChecksum(c.cfg.APIKey,
			c.cfg.MerchantID, c.cfg.TerminalID, reference),
	}

	response, err := postJSON(ctx, c.client, c.cfg.BaseURL+"/payment/status", nil, payload)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("CBE Birr verification failed: %v", err), RawResponse: response}
	}

	verified := stringField(response, "responseCode") == "000" &&
		stringField(response, "status") == "SUCCESS"

	return VerifyResult{
		Success:     true,
		Verified:    verified,
		Amount:      numberField(response, "amount"),
		RawResponse: response,
	}
}

type cbeCallback struct {
	ReferenceNumber string      `json:"referenceNumber"`
	ResponseCode    string      `json:"responseCode"`
	TransactionID   string      `json:"transactionId"`
	Amount          json.Number `json:"amount"`
}

func (c *CBEBirr) ParseCallback(payload []byte) (*ParsedCallback, error) {
	var cb cbeCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, domain.Wrap(domain.KindValidation, "Malformed CBE Birr callback", err)
	}
	if cb.ReferenceNumber == "" || cb.ResponseCode == "" || cb.TransactionID == "" {
		return nil, domain.E(domain.KindValidation, "CBE Birr callback missing required fields")
	}

	var raw models.JSONMap
	_ = json.Unmarshal(payload, &raw)

	amount, _ := decimal.NewFromString(cb.Amount.String())
	return &ParsedCallback{
		Gateway:           models.PaymentCBEBirr,
		Reference:         cb.ReferenceNumber,
		TransactionNumber: cb.TransactionID,
		Success:           cb.ResponseCode == "200",
		Amount:            amount,
		Raw:               raw,
	}, nil
}
