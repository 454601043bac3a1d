package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"sukpos/internal/auth"
	"sukpos/internal/catalog"
	"sukpos/internal/database/models"
	"sukpos/internal/domain"
	"sukpos/internal/paylog"
	"sukpos/internal/payment"
	"sukpos/internal/sale"
	"sukpos/internal/stock"
	"sukpos/internal/store/memory"
)

// stubHTTPGateway scripts initiation results and parses the simple
// tx_ref/status callback shape used by these tests.
type stubHTTPGateway struct {
	name     string
	initiate payment.InitiateResult
	verify   payment.VerifyResult
}

func (g *stubHTTPGateway) Name() string { return g.name }

func (g *stubHTTPGateway) Initiate(ctx context.Context, req payment.InitiateRequest) payment.InitiateResult {
	return g.initiate
}

func (g *stubHTTPGateway) Verify(ctx context.Context, reference string) payment.VerifyResult {
	return g.verify
}

func (g *stubHTTPGateway) ParseCallback(payload []byte) (*payment.ParsedCallback, error) {
	var cb struct {
		TxRef  string `json:"tx_ref"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, domain.Wrap(domain.KindValidation, "malformed callback", err)
	}
	if cb.TxRef == "" || cb.Status == "" {
		return nil, domain.E(domain.KindValidation, "callback missing required fields")
	}
	return &payment.ParsedCallback{
		Gateway:           g.name,
		Reference:         cb.TxRef,
		TransactionNumber: cb.TxRef,
		Success:           cb.Status == "success",
	}, nil
}

func testActor() domain.Actor {
	return domain.Actor{UserID: 7, ShopID: 1, Role: models.RoleCashier}
}

type testServer struct {
	router      *gin.Engine
	store       *memory.Store
	coordinator *sale.Coordinator
	tokens      *auth.TokenMaker
}

func newTestServer(t *testing.T, gateways ...payment.Gateway) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := memory.NewSeeded()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	s.SeedUser(models.User{
		ID: 7, ShopID: 1, Name: "Abel", Email: "abel@shop1.example",
		Password: string(hash), Role: models.RoleCashier, IsActive: true,
	})
	s.SeedUser(models.User{
		ID: 8, ShopID: 1, Name: "Meseret", Email: "meseret@shop1.example",
		Password: string(hash), Role: models.RoleManager, IsActive: true,
	})

	barcode := "6186000110011"
	s.SeedProduct(models.Product{
		ID: 10, ShopID: 1, Name: "Bottled Water 1L", Barcode: &barcode,
		Price: decimal.NewFromInt(100), StockQuantity: 5, MinStock: 1, IsActive: true,
	})

	logger := zap.NewNop()
	reader := catalog.NewReader(s)
	coordinator := sale.NewCoordinator(s, reader, stock.NewLedger(), payment.NewAdapter(gateways...), paylog.NewLogStore(s), logger)
	tokens := auth.NewTokenMaker("test-secret", time.Hour)

	h := NewHandler(coordinator, reader, s, payment.NewAdapter(gateways...), tokens, nil, logger, false)
	return &testServer{
		router:      NewRouter(h, logger, false),
		store:       s,
		coordinator: coordinator,
		tokens:      tokens,
	}
}

func (ts *testServer) token(t *testing.T) string {
	t.Helper()
	token, _, err := ts.tokens.Generate(7, 1, models.RoleCashier, "abel@shop1.example")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func (ts *testServer) managerToken(t *testing.T) string {
	t.Helper()
	token, _, err := ts.tokens.Generate(8, 1, models.RoleManager, "meseret@shop1.example")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func saleBody(productID uint, qty int, price, paid string) map[string]interface{} {
	return map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": productID, "quantity": qty, "unit_price": price},
		},
		"payment_method": models.PaymentCash,
		"paid_amount":    paid,
	}
}

func TestLoginIssuesToken(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email": "abel@shop1.example", "password": "secret123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("expected a token, got %s", w.Body.String())
	}

	w = ts.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email": "abel@shop1.example", "password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/transactions", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/api/transactions", "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d", w.Code)
	}
}

func TestCreateTransactionEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t)

	w := ts.do(t, http.MethodPost, "/api/transactions", token, saleBody(10, 2, "100", "250"))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Transaction struct {
			ID                uint   `json:"id"`
			TransactionNumber string `json:"transaction_number"`
			Status            string `json:"status"`
			ChangeAmount      string `json:"change_amount"`
		} `json:"transaction"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Transaction.Status != models.TxnCompleted {
		t.Fatalf("status = %s", resp.Transaction.Status)
	}
	if resp.Transaction.ChangeAmount != "50" {
		t.Fatalf("change = %s", resp.Transaction.ChangeAmount)
	}

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/transactions/%d", resp.Transaction.ID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
}

func TestCreateTransactionErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t)

	// Insufficient stock.
	w := ts.do(t, http.MethodPost, "/api/transactions", token, saleBody(10, 99, "100", "9900"))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("insufficient stock status = %d", w.Code)
	}

	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Success || body.Status != http.StatusUnprocessableEntity || body.Message == "" {
		t.Fatalf("unexpected error envelope %+v", body)
	}

	// Insufficient cash.
	w = ts.do(t, http.MethodPost, "/api/transactions", token, saleBody(10, 2, "100", "150"))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("insufficient payment status = %d", w.Code)
	}

	// Unknown product.
	w = ts.do(t, http.MethodPost, "/api/transactions", token, saleBody(999, 1, "100", "100"))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid product status = %d", w.Code)
	}
}

func TestPaymentFailureStatusCodes(t *testing.T) {
	failing := &stubHTTPGateway{
		name:     models.PaymentTelebirr,
		initiate: payment.InitiateResult{Error: "rejected"},
	}
	ts := newTestServer(t, failing)
	token := ts.token(t)

	body := saleBody(10, 1, "100", "100")
	body["payment_method"] = models.PaymentTelebirr
	w := ts.do(t, http.MethodPost, "/api/transactions", token, body)
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("failed payment status = %d", w.Code)
	}

	failing.initiate = payment.InitiateResult{Error: "deadline exceeded", TimedOut: true}
	w = ts.do(t, http.MethodPost, "/api/transactions", token, body)
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("timeout status = %d", w.Code)
	}
}

func TestRefundEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t)

	w := ts.do(t, http.MethodPost, "/api/transactions", token, saleBody(10, 1, "100", "100"))
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	var resp struct {
		Transaction struct {
			ID uint `json:"id"`
		} `json:"transaction"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/transactions/%d/refund", resp.Transaction.ID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("refund status = %d body = %s", w.Code, w.Body.String())
	}

	// Second refund must be rejected.
	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/transactions/%d/refund", resp.Transaction.ID), token, nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("double refund status = %d", w.Code)
	}
}

func TestChapaCallbackEndpoint(t *testing.T) {
	gw := &stubHTTPGateway{
		name:     models.PaymentChapa,
		initiate: payment.InitiateResult{Success: true, Reference: "chapa-ref-1"},
	}
	ts := newTestServer(t, gw)

	result, err := ts.coordinator.CreateSale(context.Background(), testActor(), sale.Cart{
		Items:         []sale.CartItem{{ProductID: 10, Quantity: 1, UnitPrice: decimal.NewFromInt(100)}},
		PaymentMethod: models.PaymentChapa,
		PaidAmount:    decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("create pending sale: %v", err)
	}

	w := ts.do(t, http.MethodPost, "/api/payment/chapa/callback", "", map[string]string{
		"tx_ref": result.Transaction.TransactionNumber,
		"status": "success",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("callback status = %d body = %s", w.Code, w.Body.String())
	}

	updated, _ := ts.store.GetTransaction(context.Background(), result.Transaction.ID)
	if updated.Status != models.TxnCompleted {
		t.Fatalf("status = %s", updated.Status)
	}
}

func TestCallbackUnknownTransactionIs404(t *testing.T) {
	gw := &stubHTTPGateway{name: models.PaymentChapa}
	ts := newTestServer(t, gw)

	w := ts.do(t, http.MethodPost, "/api/payment/chapa/callback", "", map[string]string{
		"tx_ref": "TXN1999912310001",
		"status": "success",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCallbackMalformedPayloadIs500(t *testing.T) {
	gw := &stubHTTPGateway{name: models.PaymentChapa}
	ts := newTestServer(t, gw)

	w := ts.do(t, http.MethodPost, "/api/payment/chapa/callback", "", map[string]string{
		"status": "success",
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestBarcodeSearchEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t)

	w := ts.do(t, http.MethodGet, "/api/products/search/6186000110011", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/api/products/search/0000000000000", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown barcode status = %d", w.Code)
	}
}

func TestAdjustStockEndpoint(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]interface{}{
		"type": "in", "quantity": 10, "reason": "Restock delivery",
	}

	// Cashiers cannot correct stock.
	w := ts.do(t, http.MethodPost, "/api/products/10/adjust-stock", ts.token(t), body)
	if w.Code != http.StatusForbidden {
		t.Fatalf("cashier status = %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/api/products/10/adjust-stock", ts.managerToken(t), body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if got := ts.store.Product(10).StockQuantity; got != 15 {
		t.Fatalf("stock = %d", got)
	}
}

func TestDailySummaryEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t)

	w := ts.do(t, http.MethodPost, "/api/transactions", token, saleBody(10, 2, "100", "200"))
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/api/transactions/daily-summary", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summary status = %d body = %s", w.Code, w.Body.String())
	}

	var summary struct {
		TotalTransactions int64  `json:"total_transactions"`
		TotalSales        string `json:"total_sales"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalTransactions != 1 {
		t.Fatalf("count = %d", summary.TotalTransactions)
	}

	w = ts.do(t, http.MethodGet, "/api/transactions/daily-summary?date=not-a-date", token, nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad date status = %d", w.Code)
	}
}
