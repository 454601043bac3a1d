package sale

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"sukpos/internal/database/models"
	"sukpos/internal/domain"
	"sukpos/internal/payment"
	"sukpos/internal/stock"
	"sukpos/internal/store"
)

// FinalizeFromCallback settles a transaction from an asynchronous gateway
// notification. Callbacks can arrive before or after the synchronous
// initiate response and can be retried by the provider, so the whole path
// is idempotent: the first definitive outcome wins and later
// contradictory callbacks are logged without flipping terminal state.
func (c *Coordinator) FinalizeFromCallback(ctx context.Context, parsed *payment.ParsedCallback) error {
	txn, err := c.locateTransaction(ctx, parsed)
	if err != nil {
		return err
	}

	log, err := c.logs.FindByReference(ctx, parsed.Gateway, parsed.Reference)
	if err != nil {
		return err
	}
	if log == nil || log.TransactionID != txn.ID {
		// Provider references do not always match what we logged at
		// initiation (Chapa callbacks carry tx_ref); fall back to the
		// transaction's latest log.
		log, err = c.logs.Latest(ctx, txn.ID)
		if err != nil {
			return err
		}
	}

	return c.store.WithinTx(ctx, func(tx store.Tx) error {
		locked, err := tx.GetTransactionForUpdate(ctx, txn.ID)
		if err != nil {
			return err
		}

		if parsed.Success {
			return c.finalizeSuccess(ctx, tx, locked, log, parsed)
		}
		return c.finalizeFailure(ctx, tx, locked, log, parsed)
	})
}

func (c *Coordinator) finalizeSuccess(ctx context.Context, tx store.Tx, txn *models.Transaction, log *models.PaymentLog, parsed *payment.ParsedCallback) error {
	switch txn.Status {
	case models.TxnFailed, models.TxnRefunded:
		c.logger.Warn("success callback for terminal transaction ignored",
			zap.String("transaction_number", txn.TransactionNumber),
			zap.String("status", txn.Status),
			zap.String("reference", parsed.Reference))
		return nil
	}

	if log != nil && log.Status == models.PayLogPending {
		if err := tx.UpdatePaymentLog(ctx, log.ID, map[string]interface{}{
			"status":        models.PayLogSuccess,
			"response_data": parsed.Raw,
		}); err != nil {
			return err
		}
	}

	if txn.Status == models.TxnCompleted &&
		txn.PaymentReference != nil && *txn.PaymentReference == parsed.Reference {
		return nil
	}

	return tx.UpdateTransaction(ctx, txn.ID, map[string]interface{}{
		"status":            models.TxnCompleted,
		"payment_reference": parsed.Reference,
		"is_online":         true,
	})
}

func (c *Coordinator) finalizeFailure(ctx context.Context, tx store.Tx, txn *models.Transaction, log *models.PaymentLog, parsed *payment.ParsedCallback) error {
	if txn.Status == models.TxnFailed || txn.Status == models.TxnRefunded {
		return nil
	}

	// A completed Chapa sale was settled by a definitive success callback
	// or an explicit verification; a contradictory failure afterwards is
	// noise. Telebirr and CBE Birr complete optimistically on initiation,
	// so their failure callbacks still stand.
	if txn.Status == models.TxnCompleted && txn.PaymentMethod == models.PaymentChapa &&
		log != nil && log.Status == models.PayLogSuccess {
		c.logger.Warn("failure callback after definitive success ignored",
			zap.String("transaction_number", txn.TransactionNumber),
			zap.String("reference", parsed.Reference))
		return nil
	}

	if log != nil && log.Status == models.PayLogPending {
		if err := tx.UpdatePaymentLog(ctx, log.ID, map[string]interface{}{
			"status":        models.PayLogFailed,
			"error_message": "Payment failed via callback",
			"response_data": parsed.Raw,
		}); err != nil {
			return err
		}
	}

	// Pending sales and optimistically-completed ones both give their
	// stock back here.
	for _, item := range txn.Items {
		returned, err := c.ledger.AlreadyReturned(ctx, tx, item.ProductID, txn.ID)
		if err != nil {
			return err
		}
		if returned {
			continue
		}
		_, err = c.ledger.Record(ctx, tx, item.ProductID, models.MovementReturn,
			item.Quantity, txn.UserID, "Payment failed",
			&stock.Ref{Type: models.RefTransaction, ID: txn.ID})
		if err != nil {
			return err
		}
	}

	return tx.UpdateTransaction(ctx, txn.ID, map[string]interface{}{
		"status": models.TxnFailed,
	})
}

// locateTransaction resolves a callback to a transaction: first through a
// payment log carrying the provider reference, then by transaction number
// (provider-echoed, then the reference itself).
func (c *Coordinator) locateTransaction(ctx context.Context, parsed *payment.ParsedCallback) (*models.Transaction, error) {
	if log, err := c.logs.FindByReference(ctx, parsed.Gateway, parsed.Reference); err != nil {
		return nil, err
	} else if log != nil {
		txn, err := c.store.GetTransaction(ctx, log.TransactionID)
		if err == nil {
			return txn, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	for _, number := range []string{parsed.TransactionNumber, parsed.Reference} {
		if number == "" {
			continue
		}
		txn, err := c.store.FindTransactionByNumber(ctx, number)
		if err == nil {
			return txn, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	return nil, domain.E(domain.KindNotFound, "Transaction not found")
}

type VerifyOutcome struct {
	TransactionStatus string               `json:"transaction_status"`
	PaymentLogStatus  string               `json:"payment_log_status"`
	Verification      payment.VerifyResult `json:"verification_result"`
}

// VerifyPayment forces a gateway-side verification of an electronic sale.
// A verified pending sale is promoted to completed.
func (c *Coordinator) VerifyPayment(ctx context.Context, actor domain.Actor, transactionID uint) (*VerifyOutcome, error) {
	txn, err := c.GetReceipt(ctx, actor, transactionID)
	if err != nil {
		return nil, err
	}
	if !models.IsElectronic(txn.PaymentMethod) {
		return nil, domain.E(domain.KindValidation,
			"Payment verification only available for electronic payments")
	}

	log, err := c.logs.Latest(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	if log == nil {
		return nil, domain.E(domain.KindNotFound, "No payment log found for this transaction")
	}

	gateway, ok := c.gateways.Gateway(txn.PaymentMethod)
	if !ok {
		return nil, domain.Ef(domain.KindValidation, "Unknown payment method %q", txn.PaymentMethod)
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), payment.CallTimeout)
	defer cancel()
	result := gateway.Verify(callCtx, log.ReferenceNumber)

	if result.Verified && txn.Status == models.TxnPending {
		err := c.FinalizeFromCallback(ctx, &payment.ParsedCallback{
			Gateway:           txn.PaymentMethod,
			Reference:         log.ReferenceNumber,
			TransactionNumber: txn.TransactionNumber,
			Success:           true,
			Raw:               result.RawResponse,
		})
		if err != nil {
			return nil, err
		}
		txn.Status = models.TxnCompleted
		log.Status = models.PayLogSuccess
	}

	return &VerifyOutcome{
		TransactionStatus: txn.Status,
		PaymentLogStatus:  log.Status,
		Verification:      result,
	}, nil
}
