// Package sale coordinates cart finalization: stock reservation, the
// persisted transaction, the gateway round-trip for electronic methods,
// and the compensation path that returns stock when a payment dies.
package sale

import (
	"context"
	"net/mail"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sukpos/internal/catalog"
	"sukpos/internal/database/models"
	"sukpos/internal/domain"
	"sukpos/internal/paylog"
	"sukpos/internal/payment"
	"sukpos/internal/stock"
	"sukpos/internal/store"
)

type CartItem struct {
	ProductID uint            `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Cart struct {
	Items         []CartItem      `json:"items"`
	PaymentMethod string          `json:"payment_method"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	CustomerPhone string          `json:"customer_phone"`
	CustomerEmail string          `json:"customer_email"`
	Notes         string          `json:"notes"`
}

type Result struct {
	Transaction *models.Transaction `json:"transaction"`
	CheckoutURL string              `json:"checkout_url,omitempty"`
}

type Coordinator struct {
	store    store.Store
	catalog  *catalog.Reader
	ledger   *stock.Ledger
	gateways *payment.Adapter
	logs     *paylog.LogStore
	logger   *zap.Logger
	now      func() time.Time
}

func NewCoordinator(s store.Store, reader *catalog.Reader, ledger *stock.Ledger, gateways *payment.Adapter, logs *paylog.LogStore, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:    s,
		catalog:  reader,
		ledger:   ledger,
		gateways: gateways,
		logs:     logs,
		logger:   logger,
		now:      time.Now,
	}
}

func validateCart(cart Cart) error {
	fields := map[string]string{}

	if len(cart.Items) == 0 {
		fields["items"] = "At least one item is required"
	}
	for i, item := range cart.Items {
		key := "items." + strconv.Itoa(i)
		if item.Quantity < 1 {
			fields[key+".quantity"] = "Quantity must be at least 1"
		}
		if item.UnitPrice.IsNegative() {
			fields[key+".unit_price"] = "Unit price cannot be negative"
		}
	}
	if !models.ValidPaymentMethod(cart.PaymentMethod) {
		fields["payment_method"] = "Unknown payment method"
	}
	if cart.PaidAmount.IsNegative() {
		fields["paid_amount"] = "Paid amount cannot be negative"
	}
	if cart.CustomerEmail != "" {
		if _, err := mail.ParseAddress(cart.CustomerEmail); err != nil {
			fields["customer_email"] = "Invalid email address"
		}
	}

	if len(fields) > 0 {
		return domain.ValidationFields("The given data was invalid.", fields)
	}
	return nil
}

// CreateSale validates the cart, reserves stock and persists the
// transaction atomically, then drives the gateway for electronic methods.
// The gateway call runs after commit so no row lock spans a network
// round-trip; a sale observed as completed with no payment_reference on
// an electronic method is in flight.
func (c *Coordinator) CreateSale(ctx context.Context, actor domain.Actor, cart Cart) (*Result, error) {
	if err := validateCart(cart); err != nil {
		return nil, err
	}

	var txnID uint
	err := c.store.WithinTx(ctx, func(tx store.Tx) error {
		total := decimal.Zero
		items := make([]models.TransactionItem, 0, len(cart.Items))

		for _, item := range cart.Items {
			product, err := tx.LockProduct(ctx, item.ProductID)
			if err != nil {
				if err == store.ErrNotFound {
					return domain.E(domain.KindInvalidProduct, "Invalid product selected.")
				}
				return err
			}
			if product.ShopID != actor.ShopID || !product.IsActive {
				return domain.E(domain.KindInvalidProduct, "Invalid product selected.")
			}
			if product.StockQuantity < item.Quantity {
				return domain.Ef(domain.KindInsufficientStock,
					"Insufficient stock for %s. Available: %d", product.Name, product.StockQuantity)
			}

			// Historical record: the client-supplied unit price is what
			// the receipt keeps, even if the catalog price moved since.
			lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
			total = total.Add(lineTotal)
			items = append(items, models.TransactionItem{
				ProductID:  item.ProductID,
				Quantity:   item.Quantity,
				UnitPrice:  item.UnitPrice,
				TotalPrice: lineTotal,
			})
		}

		change := decimal.Zero
		if cart.PaymentMethod == models.PaymentCash {
			if cart.PaidAmount.LessThan(total) {
				return domain.E(domain.KindInsufficientPayment,
					"Paid amount must be greater than or equal to total amount for cash payments.")
			}
			change = cart.PaidAmount.Sub(total)
		}

		number, err := tx.NextTransactionNumber(ctx, actor.ShopID, c.now())
		if err != nil {
			return err
		}

		txn := &models.Transaction{
			ShopID:            actor.ShopID,
			UserID:            actor.UserID,
			TransactionNumber: number,
			TotalAmount:       total,
			TaxAmount:         decimal.Zero,
			DiscountAmount:    decimal.Zero,
			PaidAmount:        cart.PaidAmount,
			ChangeAmount:      change,
			PaymentMethod:     cart.PaymentMethod,
			Status:            models.TxnCompleted,
			Items:             items,
		}
		if cart.CustomerPhone != "" {
			txn.CustomerPhone = &cart.CustomerPhone
		}
		if cart.CustomerEmail != "" {
			txn.CustomerEmail = &cart.CustomerEmail
		}
		if cart.Notes != "" {
			txn.Notes = &cart.Notes
		}

		if err := tx.CreateTransaction(ctx, txn); err != nil {
			return err
		}
		txnID = txn.ID

		for _, item := range txn.Items {
			_, err := c.ledger.Record(ctx, tx, item.ProductID, models.MovementOut,
				item.Quantity, actor.UserID, "POS Sale",
				&stock.Ref{Type: models.RefTransaction, ID: txn.ID})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	checkoutURL := ""
	if models.IsElectronic(cart.PaymentMethod) {
		checkoutURL, err = c.initiateElectronic(ctx, actor, txnID, cart)
		if err != nil {
			return nil, err
		}
	}

	txn, loadErr := c.store.GetTransaction(ctx, txnID)
	if loadErr != nil {
		return nil, loadErr
	}
	return &Result{Transaction: txn, CheckoutURL: checkoutURL}, nil
}

// initiateElectronic drives the gateway for a committed sale. Any failure
// compensates stock and surfaces as a payment error; a late callback may
// still idempotently confirm or re-fail the transaction.
func (c *Coordinator) initiateElectronic(ctx context.Context, actor domain.Actor, txnID uint, cart Cart) (string, error) {
	txn, err := c.store.GetTransaction(ctx, txnID)
	if err != nil {
		return "", err
	}

	gateway, ok := c.gateways.Gateway(cart.PaymentMethod)
	if !ok {
		return "", domain.Ef(domain.KindValidation, "Unknown payment method %q", cart.PaymentMethod)
	}

	// The client hanging up must not abandon a half-initiated payment;
	// the call finishes server-side under its own deadline.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), payment.CallTimeout)
	defer cancel()

	result := gateway.Initiate(callCtx, payment.InitiateRequest{
		Amount:            txn.TotalAmount,
		TransactionNumber: txn.TransactionNumber,
		CustomerPhone:     cart.CustomerPhone,
		CustomerEmail:     cart.CustomerEmail,
	})

	reference := result.Reference
	if reference == "" {
		reference = txn.TransactionNumber
	}

	log, logErr := c.logs.Create(ctx, txn.ID, cart.PaymentMethod, reference, txn.TotalAmount, result.RequestData)
	if logErr != nil {
		return "", logErr
	}

	if !result.Success {
		_ = c.logs.MarkFailed(ctx, log, result.Error, result.RawResponse)
		if err := c.CompensateSale(ctx, txn.ID, actor.UserID); err != nil {
			c.logger.Error("stock compensation failed",
				zap.String("transaction_number", txn.TransactionNumber), zap.Error(err))
		}
		c.logger.Warn("payment initiation failed",
			zap.String("gateway", cart.PaymentMethod),
			zap.String("transaction_number", txn.TransactionNumber),
			zap.String("error", result.Error))
		if result.TimedOut {
			return "", domain.Ef(domain.KindPaymentTimeout, "Payment gateway timed out: %s", result.Error)
		}
		return "", domain.Ef(domain.KindPaymentFailed, "Payment failed: %s", result.Error)
	}

	if cart.PaymentMethod != models.PaymentChapa {
		if err := c.logs.MarkSuccess(ctx, log, result.RawResponse); err != nil {
			return "", err
		}
	}

	err = c.store.WithinTx(ctx, func(tx store.Tx) error {
		locked, err := tx.GetTransactionForUpdate(ctx, txn.ID)
		if err != nil {
			return err
		}
		// A callback that raced ahead of the initiate response has
		// already settled this sale; its outcome stands. The provisional
		// state is completed with no reference recorded yet.
		if locked.Status != models.TxnCompleted || locked.PaymentReference != nil {
			return nil
		}
		fields := map[string]interface{}{
			"payment_reference": result.Reference,
			"is_online":         true,
		}
		// Chapa hands the customer to a hosted checkout page; the sale
		// and its log stay pending until the callback settles them.
		// Telebirr and CBE Birr report synchronously, so the sale stays
		// completed and the callback remains authoritative.
		if cart.PaymentMethod == models.PaymentChapa {
			fields["status"] = models.TxnPending
		}
		return tx.UpdateTransaction(ctx, locked.ID, fields)
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("payment initiated",
		zap.String("gateway", cart.PaymentMethod),
		zap.String("transaction_number", txn.TransactionNumber),
		zap.String("reference", result.Reference))
	return result.CheckoutURL, nil
}

// CompensateSale restores stock for every item of a dead sale and marks
// it failed. Idempotent: items that already have a return movement
// referencing this transaction are skipped.
func (c *Coordinator) CompensateSale(ctx context.Context, transactionID, userID uint) error {
	return c.store.WithinTx(ctx, func(tx store.Tx) error {
		txn, err := tx.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}

		for _, item := range txn.Items {
			returned, err := c.ledger.AlreadyReturned(ctx, tx, item.ProductID, txn.ID)
			if err != nil {
				return err
			}
			if returned {
				continue
			}
			_, err = c.ledger.Record(ctx, tx, item.ProductID, models.MovementReturn,
				item.Quantity, userID, "Payment failed",
				&stock.Ref{Type: models.RefTransaction, ID: txn.ID})
			if err != nil {
				return err
			}
		}

		if txn.Status != models.TxnFailed {
			return tx.UpdateTransaction(ctx, txn.ID, map[string]interface{}{
				"status": models.TxnFailed,
			})
		}
		return nil
	})
}

// RefundSale creates a refund twin mirroring the original with negated
// monetary fields, returns stock, and flips both rows to refunded. No
// gateway reversal happens here.
func (c *Coordinator) RefundSale(ctx context.Context, actor domain.Actor, transactionID uint) (*models.Transaction, error) {
	var twinID uint
	err := c.store.WithinTx(ctx, func(tx store.Tx) error {
		original, err := tx.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			if err == store.ErrNotFound {
				return domain.E(domain.KindNotFound, "Transaction not found")
			}
			return err
		}
		if original.ShopID != actor.ShopID {
			return domain.E(domain.KindForbidden, "Transaction belongs to another shop")
		}
		if original.Status != models.TxnCompleted {
			return domain.E(domain.KindValidation, "Only completed transactions can be refunded.")
		}

		number, err := tx.NextTransactionNumber(ctx, actor.ShopID, c.now())
		if err != nil {
			return err
		}

		twin := &models.Transaction{
			ShopID:            original.ShopID,
			UserID:            original.UserID,
			TransactionNumber: number,
			TotalAmount:       original.TotalAmount.Neg(),
			TaxAmount:         original.TaxAmount,
			DiscountAmount:    original.DiscountAmount,
			PaidAmount:        original.PaidAmount.Neg(),
			ChangeAmount:      decimal.Zero,
			PaymentMethod:     original.PaymentMethod,
			PaymentReference:  original.PaymentReference,
			Status:            models.TxnRefunded,
			IsOnline:          original.IsOnline,
			CustomerPhone:     original.CustomerPhone,
			CustomerEmail:     original.CustomerEmail,
		}
		for _, item := range original.Items {
			twin.Items = append(twin.Items, models.TransactionItem{
				ProductID:  item.ProductID,
				Quantity:   item.Quantity,
				UnitPrice:  item.UnitPrice,
				TotalPrice: item.TotalPrice.Neg(),
			})
		}

		if err := tx.CreateTransaction(ctx, twin); err != nil {
			return err
		}
		twinID = twin.ID

		for _, item := range original.Items {
			_, err := c.ledger.Record(ctx, tx, item.ProductID, models.MovementReturn,
				item.Quantity, actor.UserID, "Sale Refund",
				&stock.Ref{Type: models.RefTransaction, ID: twin.ID})
			if err != nil {
				return err
			}
		}

		return tx.UpdateTransaction(ctx, original.ID, map[string]interface{}{
			"status": models.TxnRefunded,
		})
	})
	if err != nil {
		return nil, err
	}

	return c.store.GetTransaction(ctx, twinID)
}
