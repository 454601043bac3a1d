package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"sukpos/internal/database/models"
)

var ErrNotFound = errors.New("record not found")

// TransactionFilter narrows transaction listings. Zero values mean "no
// filter"; Limit defaults upstream.
type TransactionFilter struct {
	DateFrom      *time.Time
	DateTo        *time.Time // inclusive calendar date
	Status        string
	PaymentMethod string
	Limit         int
	Offset        int
}

type MethodSummary struct {
	PaymentMethod string          `json:"payment_method"`
	Count         int64           `json:"count"`
	Total         decimal.Decimal `json:"total"`
}

type DailySummary struct {
	Date              string          `json:"date"`
	TotalTransactions int64           `json:"total_transactions"`
	TotalSales        decimal.Decimal `json:"total_sales"`
	AverageSale       decimal.Decimal `json:"average_sale"`
	TotalPaid         decimal.Decimal `json:"total_paid"`
	TotalChange       decimal.Decimal `json:"total_change"`
	MinSale           decimal.Decimal `json:"min_sale"`
	MaxSale           decimal.Decimal `json:"max_sale"`
	PaymentMethods    []MethodSummary `json:"payment_methods"`
}

// Store is the persistence boundary of the core. The database is the only
// coordination point between concurrent requests; anything that must hold
// row locks goes through WithinTx.
type Store interface {
	// WithinTx runs fn inside one database transaction. Any error rolls
	// the whole transaction back and is returned unchanged.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// GetProduct loads by primary key without tenant scoping; the
	// Catalog Reader distinguishes "absent" from "wrong shop".
	GetProduct(ctx context.Context, productID uint) (*models.Product, error)
	GetProductByBarcode(ctx context.Context, shopID uint, barcode string) (*models.Product, error)

	GetTransaction(ctx context.Context, id uint) (*models.Transaction, error)
	FindTransactionByNumber(ctx context.Context, number string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, shopID uint, filter TransactionFilter) ([]models.Transaction, error)
	// UpdateTransaction applies a partial update outside any enclosing
	// transaction; used on the post-commit gateway path.
	UpdateTransaction(ctx context.Context, id uint, fields map[string]interface{}) error

	CreatePaymentLog(ctx context.Context, log *models.PaymentLog) error
	UpdatePaymentLog(ctx context.Context, id uint, fields map[string]interface{}) error
	LatestPaymentLog(ctx context.Context, transactionID uint) (*models.PaymentLog, error)
	FindPaymentLogByReference(ctx context.Context, gateway, reference string) (*models.PaymentLog, error)

	DailySummary(ctx context.Context, shopID uint, date time.Time) (*DailySummary, error)

	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Tx exposes the operations that must run under one database transaction:
// row-locked stock mutation, transaction-number reservation, and the
// callback finalization path.
type Tx interface {
	// LockProduct loads the product row FOR UPDATE. Concurrent sales of
	// the same product serialize here.
	LockProduct(ctx context.Context, productID uint) (*models.Product, error)
	UpdateProductStock(ctx context.Context, productID uint, newStock int) error
	CreateStockMovement(ctx context.Context, movement *models.StockMovement) error
	// HasMovement reports whether a movement of the given type already
	// references (refType, refID) for the product. Backs idempotent
	// compensation.
	HasMovement(ctx context.Context, productID uint, movementType, refType string, refID uint) (bool, error)

	// NextTransactionNumber reserves the next per-shop-per-day sequence
	// number. Serialized per shop for the life of the transaction.
	NextTransactionNumber(ctx context.Context, shopID uint, at time.Time) (string, error)

	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	// GetTransactionForUpdate loads the transaction with its items under
	// a row lock.
	GetTransactionForUpdate(ctx context.Context, id uint) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, id uint, fields map[string]interface{}) error
	UpdatePaymentLog(ctx context.Context, id uint, fields map[string]interface{}) error
}
