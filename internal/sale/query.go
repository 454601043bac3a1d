package sale

import (
	"context"
	"errors"
	"time"

	"sukpos/internal/database/models"
	"sukpos/internal/domain"
	"sukpos/internal/store"
)

// GetReceipt loads a transaction with items, user, and payment logs,
// enforcing tenancy.
func (c *Coordinator) GetReceipt(ctx context.Context, actor domain.Actor, transactionID uint) (*models.Transaction, error) {
	txn, err := c.store.GetTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.E(domain.KindNotFound, "Transaction not found")
		}
		return nil, err
	}
	if txn.ShopID != actor.ShopID {
		return nil, domain.E(domain.KindForbidden, "Transaction belongs to another shop")
	}
	return txn, nil
}

func (c *Coordinator) ListTransactions(ctx context.Context, actor domain.Actor, filter store.TransactionFilter) ([]models.Transaction, error) {
	return c.store.ListTransactions(ctx, actor.ShopID, filter)
}

func (c *Coordinator) DailySummary(ctx context.Context, actor domain.Actor, date time.Time) (*store.DailySummary, error) {
	return c.store.DailySummary(ctx, actor.ShopID, date)
}

type StockAdjustment struct {
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

// AdjustStock records an administrative stock movement. Works on inactive
// products; refunds and sales never go through here.
func (c *Coordinator) AdjustStock(ctx context.Context, actor domain.Actor, productID uint, adj StockAdjustment) (*models.StockMovement, error) {
	switch adj.Type {
	case models.MovementIn, models.MovementOut, models.MovementAdjustment:
	default:
		return nil, domain.Ef(domain.KindValidation, "Unknown movement type %q", adj.Type)
	}
	if adj.Quantity < 1 {
		return nil, domain.E(domain.KindValidation, "Quantity must be at least 1")
	}
	if adj.Reason == "" {
		return nil, domain.E(domain.KindValidation, "Reason is required")
	}

	if _, err := c.catalog.ByID(ctx, actor.ShopID, productID, true); err != nil {
		return nil, err
	}

	var movement *models.StockMovement
	err := c.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		movement, err = c.ledger.Record(ctx, tx, productID, adj.Type, adj.Quantity,
			actor.UserID, adj.Reason, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}
