package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/store"
)

// SaveProduct creates p when its id is empty and replaces it otherwise. New
// products start active. Barcodes must be unique among active products.
func (s *Service) SaveProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Barcode = trimmed(p.Barcode)
	p.CategoryID = trimmed(p.CategoryID)
	if err := required("name", p.Name); err != nil {
		return domain.Product{}, err
	}
	for field, v := range map[string]int64{"price": p.Price, "stock": p.Stock, "min_stock": p.MinStock} {
		if err := nonNegative(field, v); err != nil {
			return domain.Product{}, err
		}
	}
	if p.CostPrice != nil {
		if err := nonNegative("cost_price", *p.CostPrice); err != nil {
			return domain.Product{}, err
		}
	}

	now := s.clock.Now()
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		return s.saveProduct(ctx, tx, &p, now)
	})
	if err != nil {
		return domain.Product{}, domain.AsPersistence("save product", err)
	}
	s.logger.Info("product saved", "product_id", p.ID, "name", p.Name)
	return p, nil
}

func (s *Service) saveProduct(ctx context.Context, tx *store.Tx, p *domain.Product, now time.Time) error {
	isNew := p.ID == ""
	if isNew {
		p.ID = s.ids.NewID()
		p.IsActive = true
		p.CreatedAt = domain.FormatTime(now)
	} else {
		existing, ok, err := store.GetAs[domain.Product](ctx, tx, domain.CollectionProducts, p.ID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewNotFoundError(domain.CodeNotFound, "product not found").With("product_id", p.ID)
		}
		p.CreatedAt = existing.CreatedAt
	}
	p.UpdatedAt = domain.FormatTime(now)

	if p.Barcode != nil {
		other, ok, err := store.ProductByBarcode(ctx, tx, *p.Barcode)
		if err != nil {
			return err
		}
		if ok && other.ID != p.ID && other.IsActive {
			return domain.NewConflictError(domain.CodeDuplicateBarcode, "barcode already in use").
				With("barcode", *p.Barcode).
				With("product_id", other.ID)
		}
	}
	if p.CategoryID != nil {
		_, ok, err := tx.Get(ctx, domain.CollectionCategories, *p.CategoryID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewNotFoundError(domain.CodeNotFound, "category not found").With("category_id", *p.CategoryID)
		}
	}
	return save(ctx, tx, domain.CollectionProducts, isNew, *p, now)
}

// DeactivateProduct hides a product from the register. Products are never
// hard-deleted so receipts keep resolving.
func (s *Service) DeactivateProduct(ctx context.Context, id string) error {
	now := s.clock.Now()
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		p, ok, err := store.GetAs[domain.Product](ctx, tx, domain.CollectionProducts, id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewNotFoundError(domain.CodeNotFound, "product not found").With("product_id", id)
		}
		if !p.IsActive {
			return nil
		}
		p.IsActive = false
		p.UpdatedAt = domain.FormatTime(now)
		return save(ctx, tx, domain.CollectionProducts, false, p, now)
	})
	return domain.AsPersistence("deactivate product", err)
}

// ProductByBarcode returns the product scanned at the register.
func (s *Service) ProductByBarcode(ctx context.Context, barcode string) (domain.Product, bool, error) {
	p, ok, err := store.ProductByBarcode(ctx, s.store, strings.TrimSpace(barcode))
	if err != nil {
		return domain.Product{}, false, domain.AsPersistence("product by barcode", err)
	}
	return p, ok, nil
}

// Product returns a product by id.
func (s *Service) Product(ctx context.Context, id string) (domain.Product, bool, error) {
	p, ok, err := store.GetAs[domain.Product](ctx, s.store, domain.CollectionProducts, id)
	if err != nil {
		return domain.Product{}, false, domain.AsPersistence("get product", err)
	}
	return p, ok, nil
}

// ActiveProducts returns the sellable products by name, optionally limited
// to one category.
func (s *Service) ActiveProducts(ctx context.Context, categoryID string) ([]domain.Product, error) {
	where := []store.Predicate{store.Equals{Field: "is_active", Value: true}}
	if categoryID != "" {
		where = append(where, store.Equals{Field: "category_id", Value: categoryID})
	}
	products, err := store.CollectAs[domain.Product](ctx, s.store, store.Query{
		Collection: domain.CollectionProducts,
		Where:      where,
		OrderBy:    "name",
	})
	if err != nil {
		return nil, domain.AsPersistence("active products", err)
	}
	return products, nil
}
