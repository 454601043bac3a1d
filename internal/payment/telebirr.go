package payment

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sukpos/config"
	"sukpos/internal/database/models"
	"sukpos/internal/domain"
)

type Telebirr struct {
	cfg       config.TelebirrConfig
	notifyURL string
	client    *http.Client
	now       func() time.Time
}

func NewTelebirr(cfg config.TelebirrConfig, appBaseURL string) *Telebirr {
	return &Telebirr{
		cfg:       cfg,
		notifyURL: appBaseURL + "/api/payment/telebirr/callback",
		client:    newHTTPClient(),
		now:       time.Now,
	}
}

func (t *Telebirr) Name() string { return models.PaymentTelebirr }

// telebirrSign builds the provider's MD5 signature: remaining fields
// sorted by key ascending, joined as k=v&..., empty values omitted,
// secret appended, digest uppercased.
func telebirrSign(fields map[string]string, secret string) string {
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if k == "sign" || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+fields[k])
	}

	sum := md5.Sum([]byte(strings.Join(pairs, "&") + secret))
	return strings.ToUpper(fmt.Sprintf("%x", sum))
}

func telebirrNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (t *Telebirr) Initiate(ctx context.Context, req InitiateRequest) InitiateResult {
	fields := map[string]string{
		"outTradeNo":  req.TransactionNumber,
		"totalAmount": req.Amount.StringFixed(2),
		"shortCode":   t.cfg.ShortCode,
		"notifyUrl":   t.notifyURL,
		"nonce":       telebirrNonce(),
		"timestamp":   fmt.Sprintf("%d", t.now().UnixMilli()),
	}
	fields["sign"] = telebirrSign(fields, t.cfg.SecretKey)

	request := make(models.JSONMap, len(fields))
	for k, v := range fields {
		request[k] = v
	}

	response, err := postJSON(ctx, t.client, t.cfg.BaseURL+"/payment/initiate", nil, fields)
	if err != nil {
		return InitiateResult{
			Error:       fmt.Sprintf("Telebirr initiation failed: %v", err),
			TimedOut:    isTimeout(err),
			RequestData: request,
			RawResponse: response,
		}
	}

	if stringField(response, "code") != "200" {
		msg := stringField(response, "msg")
		if msg == "" {
			msg = "Telebirr payment initiation rejected"
		}
		return InitiateResult{Error: msg, RequestData: request, RawResponse: response}
	}

	return InitiateResult{
		Success:     true,
		Reference:   stringField(nestedMap(response, "data"), "tradeNo"),
		RequestData: request,
		RawResponse: response,
	}
}

func (t *Telebirr) Verify(ctx context.Context, reference string) VerifyResult {
	fields := map[string]string{
		"tradeNo":   reference,
		"shortCode": t.cfg.ShortCode,
		"nonce":     telebirrNonce(),
		"timestamp": fmt.Sprintf("%d", t.now().UnixMilli()),
	}
	fields["sign"] = telebirrSign(fields, t.cfg.SecretKey)

	response, err := postJSON(ctx, t.client, t.cfg.BaseURL+"/payment/query", nil, fields)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("Telebirr verification failed: %v", err), RawResponse: response}
	}

	data := nestedMap(response, "data")
	verified := stringField(response, "code") == "200" &&
		stringField(data, "tradeStatus") == "SUCCESS"

	return VerifyResult{
		Success:     true,
		Verified:    verified,
		Amount:      numberField(data, "totalAmount"),
		RawResponse: response,
	}
}

type telebirrCallback struct {
	Reference     string      `json:"reference"`
	Status        string      `json:"status"`
	TransactionID string      `json:"transaction_id"`
	Amount        json.Number `json:"amount"`
}

func (t *Telebirr) ParseCallback(payload []byte) (*ParsedCallback, error) {
	var cb telebirrCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, domain.Wrap(domain.KindValidation, "Malformed Telebirr callback", err)
	}
	if cb.Reference == "" || cb.Status == "" || cb.TransactionID == "" {
		return nil, domain.E(domain.KindValidation, "Telebirr callback missing required fields")
	}

	var raw models.JSONMap
	_ = json.Unmarshal(payload, &raw)

	amount, _ := decimal.NewFromString(cb.Amount.String())
	return &ParsedCallback{
		Gateway:           models.PaymentTelebirr,
		Reference:         cb.Reference,
		TransactionNumber: cb.TransactionID,
		Success:           cb.Status == "success",
		Amount:            amount,
		Raw:               raw,
	}, nil
}
