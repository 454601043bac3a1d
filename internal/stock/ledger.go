// Package stock is the single writer of products.stock_quantity. Every
// change goes through Record, which locks the product row, moves the
// stock, and appends an immutable movement capturing the before/after
// quantities. Corrections are new inverse movements, never edits.
package stock

import (
	"context"

	"sukpos/internal/database/models"
	"sukpos/internal/domain"
	"sukpos/internal/store"
)

// Ref ties a movement to the row that caused it, e.g. the transaction a
// sale decremented stock for.
type Ref struct {
	Type string
	ID   uint
}

type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Record applies one stock movement inside the caller's database
// transaction. Movement semantics:
//
//	in         new = previous + quantity
//	return     new = previous + quantity
//	out        new = previous - quantity, fails on insufficient stock
//	adjustment new = quantity (absolute set)
func (l *Ledger) Record(ctx context.Context, tx store.Tx, productID uint, movementType string, quantity int, userID uint, reason string, ref *Ref) (*models.StockMovement, error) {
	if quantity < 0 {
		return nil, domain.E(domain.KindValidation, "Quantity cannot be negative")
	}

	product, err := tx.LockProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	previous := product.StockQuantity
	var newStock int

	switch movementType {
	case models.MovementIn, models.MovementReturn:
		newStock = previous + quantity
	case models.MovementOut:
		if previous < quantity {
			return nil, domain.Ef(domain.KindInsufficientStock,
				"Insufficient stock for %s. Available: %d", product.Name, previous)
		}
		newStock = previous - quantity
	case models.MovementAdjustment:
		newStock = quantity
	default:
		return nil, domain.Ef(domain.KindValidation, "Unknown movement type %q", movementType)
	}

	if err := tx.UpdateProductStock(ctx, productID, newStock); err != nil {
		return nil, err
	}

	movement := &models.StockMovement{
		ProductID:     productID,
		UserID:        userID,
		Type:          movementType,
		Quantity:      quantity,
		PreviousStock: previous,
		NewStock:      newStock,
	}
	if reason != "" {
		movement.Reason = &reason
	}
	if ref != nil {
		movement.ReferenceType = &ref.Type
		movement.ReferenceID = &ref.ID
	}

	if err := tx.CreateStockMovement(ctx, movement); err != nil {
		return nil, err
	}
	return movement, nil
}

// AlreadyReturned reports whether a return movement for the product
// already references the given transaction. Compensation checks this to
// stay idempotent.
func (l *Ledger) AlreadyReturned(ctx context.Context, tx store.Tx, productID, transactionID uint) (bool, error) {
	return tx.HasMovement(ctx, productID, models.MovementReturn, models.RefTransaction, transactionID)
}
