package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"sukpos/config"
	"sukpos/internal/database/models"
	"sukpos/internal/domain"
)

type Chapa struct {
	cfg         config.ChapaConfig
	callbackURL string
	returnURL   string
	client      *http.Client
}

func NewChapa(cfg config.ChapaConfig, appBaseURL string) *Chapa {
	return &Chapa{
		cfg:         cfg,
		callbackURL: appBaseURL + "/api/payment/chapa/callback",
		returnURL:   appBaseURL + "/payment/success",
		client:      newHTTPClient(),
	}
}

func (c *Chapa) Name() string { return models.PaymentChapa }

func (c *Chapa) authHeader() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.cfg.SecretKey}
}

func (c *Chapa) Initiate(ctx context.Context, req InitiateRequest) InitiateResult {
	payload := models.JSONMap{
		"amount":       req.Amount.StringFixed(2),
		"currency":     "ETB",
		"email":        req.CustomerEmail,
		"first_name":   "Customer",
		"last_name":    "Customer",
		"tx_ref":       req.TransactionNumber,
		"callback_url": c.callbackURL,
		"return_url":   c.returnURL,
		"customization": models.JSONMap{
			"title": "POS Sale",
		},
	}

	response, err := postJSON(ctx, c.client, c.cfg.BaseURL+"/transaction/initialize", c.authHeader(), payload)
	if err != nil {
		return InitiateResult{
			Error:       fmt.Sprintf("Chapa initiation failed: %v", err),
			TimedOut:    isTimeout(err),
			RequestData: payload,
			RawResponse: response,
		}
	}

	if stringField(response, "status") != "success" {
		msg := stringField(response, "message")
		if msg == "" {
			msg = "Chapa payment failed"
		}
		return InitiateResult{Error: msg, RequestData: payload, RawResponse: response}
	}

	data := nestedMap(response, "data")
	return InitiateResult{
		Success:     true,
		Reference:   stringField(data, "reference"),
		CheckoutURL: stringField(data, "checkout_url"),
		RequestData: payload,
		RawResponse: response,
	}
}

func (c *Chapa) Verify(ctx context.Context, reference string) VerifyResult {
	response, err := getJSON(ctx, c.client, c.cfg.BaseURL+"/transaction/verify/"+reference, c.authHeader())
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("Chapa verification failed: %v", err), RawResponse: response}
	}

	data := nestedMap(response, "data")
	verified := stringField(response, "status") == "success" &&
		stringField(data, "status") == "success"

	return VerifyResult{
		Success:     true,
		Verified:    verified,
		Amount:      numberField(data, "amount"),
		RawResponse: response,
	}
}

type chapaCallback struct {
	TxRef         string `json:"tx_ref"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
}

func (c *Chapa) ParseCallback(payload []byte) (*ParsedCallback, error) {
	var cb chapaCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, domain.Wrap(domain.KindValidation, "Malformed Chapa callback", err)
	}
	if cb.TxRef == "" || cb.Status == "" {
		return nil, domain.E(domain.KindValidation, "Chapa callback missing required fields")
	}

	var raw models.JSONMap
	_ = json.Unmarshal(payload, &raw)

	// Chapa identifies the payment by our tx_ref; its own transaction id
	// is optional on the callback.
	reference := cb.TransactionID
	if reference == "" {
		reference = cb.TxRef
	}

	return &ParsedCallback{
		Gateway:           models.PaymentChapa,
		Reference:         reference,
		TransactionNumber: cb.TxRef,
		Success:           cb.Status == "success",
		Raw:               raw,
	}, nil
}
