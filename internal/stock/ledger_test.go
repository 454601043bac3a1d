package stock

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"sukpos/internal/database/models"
	"sukpos/internal/domain"
	"sukpos/internal/store"
	"sukpos/internal/store/memory"
)

func newTestStore() *memory.Store {
	s := memory.New()
	s.SeedShop(models.Shop{ID: 1, Name: "Test Shop", IsActive: true})
	s.SeedProduct(models.Product{
		ID: 10, ShopID: 1, Name: "Bottled Water 1L",
		Price: decimal.NewFromInt(100), StockQuantity: 5, IsActive: true,
	})
	return s
}

func record(t *testing.T, s *memory.Store, ledger *Ledger, movementType string, qty int, ref *Ref) (*models.StockMovement, error) {
	t.Helper()
	var movement *models.StockMovement
	err := s.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		movement, err = ledger.Record(context.Background(), tx, 10, movementType, qty, 7, "test", ref)
		return err
	})
	return movement, err
}

func TestRecordOutDecrementsAndKeepsBeforeAfter(t *testing.T) {
	s := newTestStore()
	ledger := NewLedger()

	movement, err := record(t, s, ledger, models.MovementOut, 2, &Ref{Type: models.RefTransaction, ID: 99})
	if err != nil {
		t.Fatalf("record out failed: %v", err)
	}
	if movement.PreviousStock != 5 || movement.NewStock != 3 {
		t.Fatalf("expected 5 -> 3, got %d -> %d", movement.PreviousStock, movement.NewStock)
	}
	if got := s.Product(10).StockQuantity; got != 3 {
		t.Fatalf("expected stock 3, got %d", got)
	}
	if movement.ReferenceType == nil || *movement.ReferenceType != models.RefTransaction {
		t.Fatalf("expected transaction reference on movement")
	}
}

func TestRecordOutInsufficientStock(t *testing.T) {
	s := newTestStore()
	ledger := NewLedger()

	_, err := record(t, s, ledger, models.MovementOut, 6, nil)
	if !domain.IsKind(err, domain.KindInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if got := s.Product(10).StockQuantity; got != 5 {
		t.Fatalf("stock must be untouched, got %d", got)
	}
	if len(s.Movements()) != 0 {
		t.Fatalf("no movement may be recorded on failure")
	}
}

func TestRecordReturnAndInIncrement(t *testing.T) {
	s := newTestStore()
	ledger := NewLedger()

	if _, err := record(t, s, ledger, models.MovementReturn, 3, nil); err != nil {
		t.Fatalf("record return failed: %v", err)
	}
	if _, err := record(t, s, ledger, models.MovementIn, 2, nil); err != nil {
		t.Fatalf("record in failed: %v", err)
	}
	if got := s.Product(10).StockQuantity; got != 10 {
		t.Fatalf("expected stock 10, got %d", got)
	}
}

func TestRecordAdjustmentSetsAbsolute(t *testing.T) {
	s := newTestStore()
	ledger := NewLedger()

	movement, err := record(t, s, ledger, models.MovementAdjustment, 42, nil)
	if err != nil {
		t.Fatalf("record adjustment failed: %v", err)
	}
	if movement.PreviousStock != 5 || movement.NewStock != 42 {
		t.Fatalf("expected 5 -> 42, got %d -> %d", movement.PreviousStock, movement.NewStock)
	}
}

func TestRecordRejectsUnknownTypeAndNegativeQuantity(t *testing.T) {
	s := newTestStore()
	ledger := NewLedger()

	if _, err := record(t, s, ledger, "sideways", 1, nil); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}
	if _, err := record(t, s, ledger, models.MovementIn, -1, nil); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error for negative quantity, got %v", err)
	}
}

func TestAlreadyReturned(t *testing.T) {
	s := newTestStore()
	ledger := NewLedger()

	if _, err := record(t, s, ledger, models.MovementReturn, 1, &Ref{Type: models.RefTransaction, ID: 55}); err != nil {
		t.Fatalf("record return failed: %v", err)
	}

	err := s.WithinTx(context.Background(), func(tx store.Tx) error {
		returned, err := ledger.AlreadyReturned(context.Background(), tx, 10, 55)
		if err != nil {
			return err
		}
		if !returned {
			t.Fatalf("expected return movement for transaction 55 to be found")
		}
		other, err := ledger.AlreadyReturned(context.Background(), tx, 10, 56)
		if err != nil {
			return err
		}
		if other {
			t.Fatalf("transaction 56 has no return movement")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("within tx failed: %v", err)
	}
}
