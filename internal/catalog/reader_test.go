package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"sukpos/internal/database/models"
	"sukpos/internal/domain"
	"sukpos/internal/store/memory"
)

func newTestReader() *Reader {
	s := memory.New()
	s.SeedShop(models.Shop{ID: 1, Name: "Shop One", IsActive: true})
	s.SeedShop(models.Shop{ID: 2, Name: "Shop Two", IsActive: true})

	barcode := "6186000110011"
	s.SeedProduct(models.Product{
		ID: 10, ShopID: 1, Name: "Bottled Water 1L", Barcode: &barcode,
		Price: decimal.NewFromInt(100), StockQuantity: 5, IsActive: true,
	})
	s.SeedProduct(models.Product{
		ID: 11, ShopID: 1, Name: "Discontinued Soda",
		Price: decimal.NewFromInt(50), StockQuantity: 0, IsActive: false,
	})
	s.SeedProduct(models.Product{
		ID: 20, ShopID: 2, Name: "Other Shop Item",
		Price: decimal.NewFromInt(75), StockQuantity: 3, IsActive: true,
	})
	return NewReader(s)
}

func TestByIDReturnsOwnedActiveProduct(t *testing.T) {
	r := newTestReader()

	product, err := r.ByID(context.Background(), 1, 10, false)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if product.Name != "Bottled Water 1L" {
		t.Fatalf("unexpected product %q", product.Name)
	}
}

func TestByIDUnknownProduct(t *testing.T) {
	r := newTestReader()

	_, err := r.ByID(context.Background(), 1, 999, false)
	if !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestByIDForeignShopIsForbidden(t *testing.T) {
	r := newTestReader()

	_, err := r.ByID(context.Background(), 1, 20, false)
	if !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestByIDInactiveProduct(t *testing.T) {
	r := newTestReader()

	if _, err := r.ByID(context.Background(), 1, 11, false); !domain.IsKind(err, domain.KindInvalidProduct) {
		t.Fatalf("expected invalid product, got %v", err)
	}

	// Administrative paths may still see it.
	if _, err := r.ByID(context.Background(), 1, 11, true); err != nil {
		t.Fatalf("includeInactive lookup failed: %v", err)
	}
}

func TestByBarcode(t *testing.T) {
	r := newTestReader()

	product, err := r.ByBarcode(context.Background(), 1, "6186000110011")
	if err != nil {
		t.Fatalf("barcode lookup failed: %v", err)
	}
	if product.ID != 10 {
		t.Fatalf("expected product 10, got %d", product.ID)
	}

	if _, err := r.ByBarcode(context.Background(), 2, "6186000110011"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("barcode must be shop-scoped, got %v", err)
	}
}
