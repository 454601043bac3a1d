// Package catalog provides read-only, shop-scoped product lookups for the
// sale path. Snapshots are advisory: stock seen here may be stale by the
// time a sale commits, so the coordinator re-reads the row under lock
// before decrementing.
package catalog

import (
	"context"
	"errors"

	"sukpos/internal/database/models"
	"sukpos/internal/domain"
	"sukpos/internal/store"
)

type Reader struct {
	store store.Store
}

func NewReader(s store.Store) *Reader {
	return &Reader{store: s}
}

// ByID loads a product and enforces tenancy. Inactive products are
// rejected unless includeInactive is set (administrative stock
// adjustments still operate on deactivated products).
func (r *Reader) ByID(ctx context.Context, shopID, productID uint, includeInactive bool) (*models.Product, error) {
	product, err := r.store.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.E(domain.KindNotFound, "Product not found")
		}
		return nil, err
	}

	if product.ShopID != shopID {
		return nil, domain.E(domain.KindForbidden, "Product belongs to another shop")
	}
	if !product.IsActive && !includeInactive {
		return nil, domain.Ef(domain.KindInvalidProduct, "Product %s is inactive", product.Name)
	}
	return product, nil
}

// ByBarcode looks an active product up by its in-shop barcode.
func (r *Reader) ByBarcode(ctx context.Context, shopID uint, barcode string) (*models.Product, error) {
	product, err := r.store.GetProductByBarcode(ctx, shopID, barcode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.E(domain.KindNotFound, "Product not found")
		}
		return nil, err
	}
	if !product.IsActive {
		return nil, domain.Ef(domain.KindInvalidProduct, "Product %s is inactive", product.Name)
	}
	return product, nil
}
