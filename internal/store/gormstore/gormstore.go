package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sukpos/internal/database/models"
	"sukpos/internal/store"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

func (s *Store) GetProduct(ctx context.Context, productID uint) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).
		Preload("Category").
		First(&product, productID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (s *Store) GetProductByBarcode(ctx context.Context, shopID uint, barcode string) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).
		Where("shop_id = ? AND barcode = ?", shopID, barcode).
		Preload("Category").
		First(&product).Error
	if err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (s *Store) GetTransaction(ctx context.Context, id uint) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.WithContext(ctx).
		Preload("Items.Product").
		Preload("PaymentLogs").
		Preload("User").
		First(&txn, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &txn, nil
}

func (s *Store) FindTransactionByNumber(ctx context.Context, number string) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.WithContext(ctx).
		Where("transaction_number = ?", number).
		Preload("Items.Product").
		First(&txn).Error
	if err != nil {
		return nil, translate(err)
	}
	return &txn, nil
}

func (s *Store) ListTransactions(ctx context.Context, shopID uint, filter store.TransactionFilter) ([]models.Transaction, error) {
	query := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("shop_id = ?", shopID).
		Preload("Items.Product").
		Preload("User").
		Order("created_at DESC")

	if filter.DateFrom != nil {
		query = query.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("created_at < ?", filter.DateTo.AddDate(0, 0, 1))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PaymentMethod != "" {
		query = query.Where("payment_method = ?", filter.PaymentMethod)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var txns []models.Transaction
	if err := query.Offset(filter.Offset).Limit(limit).Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, id uint, fields map[string]interface{}) error {
	return s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (s *Store) CreatePaymentLog(ctx context.Context, log *models.PaymentLog) error {
	return s.db.WithContext(ctx).Create(log).Error
}

func (s *Store) UpdatePaymentLog(ctx context.Context, id uint, fields map[string]interface{}) error {
	return s.db.WithContext(ctx).
		Model(&models.PaymentLog{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (s *Store) LatestPaymentLog(ctx context.Context, transactionID uint) (*models.PaymentLog, error) {
	var log models.PaymentLog
	err := s.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at DESC").
		First(&log).Error
	if err != nil {
		return nil, translate(err)
	}
	return &log, nil
}

func (s *Store) FindPaymentLogByReference(ctx context.Context, gateway, reference string) (*models.PaymentLog, error) {
	var log models.PaymentLog
	err := s.db.WithContext(ctx).
		Where("payment_gateway = ? AND reference_number = ?", gateway, reference).
		Order("created_at DESC").
		First(&log).Error
	if err != nil {
		return nil, translate(err)
	}
	return &log, nil
}

func (s *Store) DailySummary(ctx context.Context, shopID uint, date time.Time) (*store.DailySummary, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var totals struct {
		TotalTransactions int64
		TotalSales        decimal.Decimal
		AverageSale       decimal.Decimal
		TotalPaid         decimal.Decimal
		TotalChange       decimal.Decimal
		MinSale           decimal.Decimal
		MaxSale           decimal.Decimal
	}

	err := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("shop_id = ? AND created_at >= ? AND created_at < ?", shopID, dayStart, dayEnd).
		Select(`COUNT(*) AS total_transactions,
			COALESCE(SUM(total_amount), 0) AS total_sales,
			COALESCE(AVG(total_amount), 0) AS average_sale,
			COALESCE(SUM(paid_amount), 0) AS total_paid,
			COALESCE(SUM(change_amount), 0) AS total_change,
			COALESCE(MIN(total_amount), 0) AS min_sale,
			COALESCE(MAX(total_amount), 0) AS max_sale`).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}

	var methods []store.MethodSummary
	err = s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("shop_id = ? AND created_at >= ? AND created_at < ?", shopID, dayStart, dayEnd).
		Select("payment_method, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS total").
		Group("payment_method").
		Scan(&methods).Error
	if err != nil {
		return nil, err
	}

	return &store.DailySummary{
		Date:              dayStart.Format("2006-01-02"),
		TotalTransactions: totals.TotalTransactions,
		TotalSales:        totals.TotalSales,
		AverageSale:       totals.AverageSale,
		TotalPaid:         totals.TotalPaid,
		TotalChange:       totals.TotalChange,
		MinSale:           totals.MinSale,
		MaxSale:           totals.MaxSale,
		PaymentMethods:    methods,
	}, nil
}

func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Shop").First(&user, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Shop").Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) LockProduct(ctx context.Context, productID uint) (*models.Product, error) {
	var product models.Product
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, productID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (t *gormTx) UpdateProductStock(ctx context.Context, productID uint, newStock int) error {
	return t.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock_quantity", newStock).Error
}

func (t *gormTx) CreateStockMovement(ctx context.Context, movement *models.StockMovement) error {
	return t.db.WithContext(ctx).Create(movement).Error
}

func (t *gormTx) HasMovement(ctx context.Context, productID uint, movementType, refType string, refID uint) (bool, error) {
	var count int64
	err := t.db.WithContext(ctx).
		Model(&models.StockMovement{}).
		Where("product_id = ? AND type = ? AND reference_type = ? AND reference_id = ?",
			productID, movementType, refType, refID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// NextTransactionNumber serializes on a per-shop advisory lock held until
// the surrounding transaction commits, then takes the highest sequence
// issued for the shop today plus one. The unique index on
// transaction_number still backs this as a last line of defense.
func (t *gormTx) NextTransactionNumber(ctx context.Context, shopID uint, at time.Time) (string, error) {
	if err := t.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(?)", int64(shopID)).Error; err != nil {
		return "", err
	}

	prefix := fmt.Sprintf("TXN%d%s", shopID, at.Format("20060102"))

	var numbers []string
	err := t.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("shop_id = ? AND transaction_number LIKE ?", shopID, prefix+"%").
		Order("transaction_number DESC").
		Limit(1).
		Pluck("transaction_number", &numbers).Error
	if err != nil {
		return "", err
	}

	sequence := 1
	if len(numbers) > 0 {
		last := numbers[0]
		if strings.HasPrefix(last, prefix) && len(last) >= len(prefix)+4 {
			if n, err := strconv.Atoi(last[len(last)-4:]); err == nil {
				sequence = n + 1
			}
		}
	}

	return fmt.Sprintf("%s%04d", prefix, sequence), nil
}

func (t *gormTx) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return t.db.WithContext(ctx).Create(txn).Error
}

func (t *gormTx) GetTransactionForUpdate(ctx context.Context, id uint) (*models.Transaction, error) {
	var txn models.Transaction
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&txn, id).Error
	if err != nil {
		return nil, translate(err)
	}
	if err := t.db.WithContext(ctx).
		Where("transaction_id = ?", id).
		Find(&txn.Items).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (t *gormTx) UpdateTransaction(ctx context.Context, id uint, fields map[string]interface{}) error {
	return t.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (t *gormTx) UpdatePaymentLog(ctx context.Context, id uint, fields map[string]interface{}) error {
	return t.db.WithContext(ctx).
		Model(&models.PaymentLog{}).
		Where("id = ?", id).
		Updates(fields).Error
}
