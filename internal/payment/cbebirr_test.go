package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"sukpos/config"
	"sukpos/internal/domain"
)

func newTestCBEBirr(baseURL string) *CBEBirr {
	c := NewCBEBirr(config.CBEBirrConfig{
		BaseURL:    baseURL,
		MerchantID: "MERCH01",
		TerminalID: "TERM01",
		APIKey:     "cbe-api-key",
	}, "http://pos.local")
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestCBEBirrInitiate(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payment/request" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"responseCode":"000","referenceNumber":"CBE-REF-77"}`)
	}))
	defer server.Close()

	result := newTestCBEBirr(server.URL).Initiate(context.Background(), InitiateRequest{
		Amount:            decimal.RequireFromString("249.50"),
		TransactionNumber: "TXN1202503140002",
		CustomerPhone:     "+251911000000",
	})

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Reference != "CBE-REF-77" {
		t.Fatalf("reference = %q", result.Reference)
	}

	if body["invoiceNo"] != "TXN1202503140002" {
		t.Fatalf("invoiceNo = %v", body["invoiceNo"])
	}
	if body["amount"] != "249.50" {
		t.Fatalf("amount = %v", body["amount"])
	}
	if body["currency"] != "ETB" {
		t.Fatalf("currency = %v", body["currency"])
	}
	if body["callbackUrl"] != "http://pos.local/api/payment/cbe-birr/callback" {
		t.Fatalf("callbackUrl = %v", body["callbackUrl"])
	}

	txnTime := fixedNow.Format("20060102150405")
	if body["transactionDateTime"] != txnTime {
		t.Fatalf("transactionDateTime = %v", body["transactionDateTime"])
	}
	want := cbeChecksum("cbe-api-key",
		"MERCH01", "TERM01", "249.50", "ETB", "TXN1202503140002", txnTime)
	if body["checkSum"] != want {
		t.Fatalf("checkSum does not verify: got %v want %s", body["checkSum"], want)
	}
}

func TestCBEBirrInitiateRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"responseCode":"116","responseDescription":"Insufficient balance"}`)
	}))
	defer server.Close()

	result := newTestCBEBirr(server.URL).Initiate(context.Background(), InitiateRequest{
		Amount:            decimal.NewFromInt(100),
		TransactionNumber: "TXN1202503140002",
	})

	if result.Success {
		t.Fatalf("expected failure")
	}
	if result.Error != "Insufficient balance" {
		t.Fatalf("expected provider description, got %q", result.Error)
	}
}

func TestCBEBirrVerify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payment/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		want := cbeChecksum("cbe-api-key", "MERCH01", "TERM01", "CBE-REF-77")
		if body["checkSum"] != want {
			t.Errorf("status checkSum does not verify")
		}
		fmt.Fprint(w, `{"responseCode":"000","status":"SUCCESS","amount":"249.50"}`)
	}))
	defer server.Close()

	result := newTestCBEBirr(server.URL).Verify(context.Background(), "CBE-REF-77")
	if !result.Success || !result.Verified {
		t.Fatalf("expected verified result, got %+v", result)
	}
}

func TestCBEBirrParseCallback(t *testing.T) {
	c := newTestCBEBirr("http://unused")

	parsed, err := c.ParseCallback([]byte(`{"referenceNumber":"CBE-REF-77","responseCode":"200","transactionId":"TXN1202503140002","amount":"249.50"}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !parsed.Success {
		t.Fatalf("responseCode 200 means paid")
	}
	if parsed.Reference != "CBE-REF-77" || parsed.TransactionNumber != "TXN1202503140002" {
		t.Fatalf("unexpected parse %+v", parsed)
	}

	parsed, err = c.ParseCallback([]byte(`{"referenceNumber":"CBE-REF-77","responseCode":"500","transactionId":"TXN1202503140002"}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.Success {
		t.Fatalf("non-200 responseCode must parse as failure")
	}

	if _, err := c.ParseCallback([]byte(`{"responseCode":"200"}`)); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error for missing fields, got %v", err)
	}
}
