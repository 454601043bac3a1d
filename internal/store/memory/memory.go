// Package memory holds an in-process Store used by unit tests. A single
// mutex stands in for the database's row locks: WithinTx serializes all
// writers, and a snapshot taken at transaction start backs rollback.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"sukpos/internal/database/models"
	"sukpos/internal/store"
)

type Store struct {
	mu sync.Mutex

	shops        map[uint]models.Shop
	users        map[uint]models.User
	products     map[uint]models.Product
	transactions map[uint]models.Transaction
	movements    []models.StockMovement
	paymentLogs  map[uint]models.PaymentLog

	txnSeq      uint
	itemSeq     uint
	movementSeq uint
	payLogSeq   uint
}

func New() *Store {
	return &Store{
		shops:        make(map[uint]models.Shop),
		users:        make(map[uint]models.User),
		products:     make(map[uint]models.Product),
		transactions: make(map[uint]models.Transaction),
		paymentLogs:  make(map[uint]models.PaymentLog),
	}
}

// NewSeeded returns a store pre-loaded with one active shop, a cashier,
// and two stocked products.
func NewSeeded() *Store {
	s := New()
	s.SeedShop(models.Shop{ID: 1, Name: "Mercato Mini Mart", IsActive: true})
	s.SeedUser(models.User{ID: 7, ShopID: 1, Name: "Abel", Email: "abel@shop1.example", Role: models.RoleCashier, IsActive: true})
	s.SeedProduct(models.Product{ID: 10, ShopID: 1, Name: "Bottled Water 1L", Price: decimal.NewFromInt(100), StockQuantity: 5, MinStock: 1, IsActive: true})
	s.SeedProduct(models.Product{ID: 11, ShopID: 1, Name: "Roasted Coffee 250g", Price: decimal.NewFromInt(250), StockQuantity: 2, MinStock: 1, IsActive: true})
	return s
}

func (s *Store) SeedShop(shop models.Shop) { s.shops[shop.ID] = shop }
func (s *Store) SeedUser(user models.User) { s.users[user.ID] = user }
func (s *Store) SeedProduct(p models.Product) {
	s.products[p.ID] = p
}

// Product returns the current product row; test helper.
func (s *Store) Product(id uint) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id]
}

// Movements returns all recorded stock movements; test helper.
func (s *Store) Movements() []models.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.StockMovement, len(s.movements))
	copy(out, s.movements)
	return out
}

func cloneTransaction(t models.Transaction) models.Transaction {
	out := t
	out.Items = make([]models.TransactionItem, len(t.Items))
	copy(out.Items, t.Items)
	return out
}

type snapshot struct {
	products     map[uint]models.Product
	transactions map[uint]models.Transaction
	movements    []models.StockMovement
	paymentLogs  map[uint]models.PaymentLog
	txnSeq       uint
	itemSeq      uint
	movementSeq  uint
	payLogSeq    uint
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		products:     make(map[uint]models.Product, len(s.products)),
		transactions: make(map[uint]models.Transaction, len(s.transactions)),
		movements:    make([]models.StockMovement, len(s.movements)),
		paymentLogs:  make(map[uint]models.PaymentLog, len(s.paymentLogs)),
		txnSeq:       s.txnSeq,
		itemSeq:      s.itemSeq,
		movementSeq:  s.movementSeq,
		payLogSeq:    s.payLogSeq,
	}
	for id, p := range s.products {
		snap.products[id] = p
	}
	for id, t := range s.transactions {
		snap.transactions[id] = cloneTransaction(t)
	}
	copy(snap.movements, s.movements)
	for id, l := range s.paymentLogs {
		snap.paymentLogs[id] = l
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.products = snap.products
	s.transactions = snap.transactions
	s.movements = snap.movements
	s.paymentLogs = snap.paymentLogs
	s.txnSeq = snap.txnSeq
	s.itemSeq = snap.itemSeq
	s.movementSeq = snap.movementSeq
	s.payLogSeq = snap.payLogSeq
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, productID uint) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := p
	return &out, nil
}

func (s *Store) GetProductByBarcode(ctx context.Context, shopID uint, barcode string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.products {
		if p.ShopID == shopID && p.Barcode != nil && *p.Barcode == barcode {
			out := p
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetTransaction(ctx context.Context, id uint) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneTransaction(t)
	if u, ok := s.users[t.UserID]; ok {
		out.User = &u
	}
	out.PaymentLogs = s.logsFor(id)
	return &out, nil
}

func (s *Store) FindTransactionByNumber(ctx context.Context, number string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.transactions {
		if t.TransactionNumber == number {
			out := cloneTransaction(t)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListTransactions(ctx context.Context, shopID uint, filter store.TransactionFilter) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Transaction
	for _, t := range s.transactions {
		if t.ShopID != shopID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.PaymentMethod != "" && t.PaymentMethod != filter.PaymentMethod {
			continue
		}
		if filter.DateFrom != nil && t.CreatedAt.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && !t.CreatedAt.Before(filter.DateTo.AddDate(0, 0, 1)) {
			continue
		}
		out = append(out, cloneTransaction(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, id uint, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyTransactionUpdate(id, fields)
}

func (s *Store) applyTransactionUpdate(id uint, fields map[string]interface{}) error {
	t, ok := s.transactions[id]
	if !ok {
		return store.ErrNotFound
	}
	for key, value := range fields {
		switch key {
		case "status":
			t.Status = value.(string)
		case "payment_reference":
			ref := value.(string)
			t.PaymentReference = &ref
		case "is_online":
			t.IsOnline = value.(bool)
		default:
			return fmt.Errorf("memory store: unknown transaction field %q", key)
		}
	}
	t.UpdatedAt = time.Now()
	s.transactions[id] = t
	return nil
}

func (s *Store) CreatePaymentLog(ctx context.Context, log *models.PaymentLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.payLogSeq++
	log.ID = s.payLogSeq
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	s.paymentLogs[log.ID] = *log
	return nil
}

func (s *Store) UpdatePaymentLog(ctx context.Context, id uint, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyPaymentLogUpdate(id, fields)
}

func (s *Store) applyPaymentLogUpdate(id uint, fields map[string]interface{}) error {
	l, ok := s.paymentLogs[id]
	if !ok {
		return store.ErrNotFound
	}
	for key, value := range fields {
		switch key {
		case "status":
			l.Status = value.(string)
		case "error_message":
			msg := value.(string)
			l.ErrorMessage = &msg
		case "response_data":
			l.ResponseData = value.(models.JSONMap)
		default:
			return fmt.Errorf("memory store: unknown payment log field %q", key)
		}
	}
	l.UpdatedAt = time.Now()
	s.paymentLogs[id] = l
	return nil
}

func (s *Store) logsFor(transactionID uint) []models.PaymentLog {
	var out []models.PaymentLog
	for _, l := range s.paymentLogs {
		if l.TransactionID == transactionID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) LatestPaymentLog(ctx context.Context, transactionID uint) (*models.PaymentLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs := s.logsFor(transactionID)
	if len(logs) == 0 {
		return nil, store.ErrNotFound
	}
	out := logs[len(logs)-1]
	return &out, nil
}

func (s *Store) FindPaymentLogByReference(ctx context.Context, gateway, reference string) (*models.PaymentLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *models.PaymentLog
	for _, l := range s.paymentLogs {
		if l.PaymentGateway == gateway && l.ReferenceNumber == reference {
			if found == nil || l.ID > found.ID {
				candidate := l
				found = &candidate
			}
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (s *Store) DailySummary(ctx context.Context, shopID uint, date time.Time) (*store.DailySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	summary := &store.DailySummary{Date: dayStart.Format("2006-01-02")}
	byMethod := make(map[string]*store.MethodSummary)

	for _, t := range s.transactions {
		if t.ShopID != shopID || t.CreatedAt.Before(dayStart) || !t.CreatedAt.Before(dayEnd) {
			continue
		}
		summary.TotalTransactions++
		summary.TotalSales = summary.TotalSales.Add(t.TotalAmount)
		summary.TotalPaid = summary.TotalPaid.Add(t.PaidAmount)
		summary.TotalChange = summary.TotalChange.Add(t.ChangeAmount)
		if summary.TotalTransactions == 1 || t.TotalAmount.LessThan(summary.MinSale) {
			summary.MinSale = t.TotalAmount
		}
		if t.TotalAmount.GreaterThan(summary.MaxSale) {
			summary.MaxSale = t.TotalAmount
		}

		m, ok := byMethod[t.PaymentMethod]
		if !ok {
			m = &store.MethodSummary{PaymentMethod: t.PaymentMethod}
			byMethod[t.PaymentMethod] = m
		}
		m.Count++
		m.Total = m.Total.Add(t.TotalAmount)
	}

	if summary.TotalTransactions > 0 {
		summary.AverageSale = summary.TotalSales.
			Div(decimal.NewFromInt(summary.TotalTransactions)).
			Round(2)
	}

	methods := make([]string, 0, len(byMethod))
	for m := range byMethod {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	for _, m := range methods {
		summary.PaymentMethods = append(summary.PaymentMethods, *byMethod[m])
	}
	return summary, nil
}

func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := u
	if shop, ok := s.shops[u.ShopID]; ok {
		out.Shop = &shop
	}
	return &out, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			out := u
			if shop, ok := s.shops[u.ShopID]; ok {
				out.Shop = &shop
			}
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

type memTx struct {
	s *Store
}

func (t *memTx) LockProduct(ctx context.Context, productID uint) (*models.Product, error) {
	p, ok := t.s.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := p
	return &out, nil
}

func (t *memTx) UpdateProductStock(ctx context.Context, productID uint, newStock int) error {
	p, ok := t.s.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	p.StockQuantity = newStock
	p.UpdatedAt = time.Now()
	t.s.products[productID] = p
	return nil
}

func (t *memTx) CreateStockMovement(ctx context.Context, movement *models.StockMovement) error {
	t.s.movementSeq++
	movement.ID = t.s.movementSeq
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now()
	}
	t.s.movements = append(t.s.movements, *movement)
	return nil
}

func (t *memTx) HasMovement(ctx context.Context, productID uint, movementType, refType string, refID uint) (bool, error) {
	for _, m := range t.s.movements {
		if m.ProductID == productID && m.Type == movementType &&
			m.ReferenceType != nil && *m.ReferenceType == refType &&
			m.ReferenceID != nil && *m.ReferenceID == refID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) NextTransactionNumber(ctx context.Context, shopID uint, at time.Time) (string, error) {
	prefix := fmt.Sprintf("TXN%d%s", shopID, at.Format("20060102"))

	sequence := 1
	for _, txn := range t.s.transactions {
		n := txn.TransactionNumber
		if !strings.HasPrefix(n, prefix) || len(n) < len(prefix)+4 {
			continue
		}
		if v, err := strconv.Atoi(n[len(n)-4:]); err == nil && v >= sequence {
			sequence = v + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, sequence), nil
}

func (t *memTx) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	t.s.txnSeq++
	txn.ID = t.s.txnSeq
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	for i := range txn.Items {
		t.s.itemSeq++
		txn.Items[i].ID = t.s.itemSeq
		txn.Items[i].TransactionID = txn.ID
	}
	t.s.transactions[txn.ID] = cloneTransaction(*txn)
	return nil
}

func (t *memTx) GetTransactionForUpdate(ctx context.Context, id uint) (*models.Transaction, error) {
	txn, ok := t.s.transactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneTransaction(txn)
	return &out, nil
}

func (t *memTx) UpdateTransaction(ctx context.Context, id uint, fields map[string]interface{}) error {
	return t.s.applyTransactionUpdate(id, fields)
}

func (t *memTx) UpdatePaymentLog(ctx context.Context, id uint, fields map[string]interface{}) error {
	return t.s.applyPaymentLogUpdate(id, fields)
}
