package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/store"
)

// DefaultCategoryColor is used when a category is created without a color.
const DefaultCategoryColor = "#6B7280"

// CreateCategory appends a category after the existing ones.
func (s *Service) CreateCategory(ctx context.Context, name, color string) (domain.Category, error) {
	var c domain.Category
	now := s.clock.Now()
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		c, err = s.createCategory(ctx, tx, name, color, now)
		return err
	})
	if err != nil {
		return domain.Category{}, domain.AsPersistence("create category", err)
	}
	s.logger.Info("category created", "category_id", c.ID, "name", c.Name)
	return c, nil
}

func (s *Service) createCategory(ctx context.Context, tx *store.Tx, name, color string, now time.Time) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if err := required("name", name); err != nil {
		return domain.Category{}, err
	}
	if color == "" {
		color = DefaultCategoryColor
	}
	n, err := tx.Count(ctx, store.Query{Collection: domain.CollectionCategories})
	if err != nil {
		return domain.Category{}, err
	}
	c := domain.Category{
		ID:        s.ids.NewID(),
		Name:      name,
		Color:     color,
		SortOrder: int64(n),
		CreatedAt: domain.FormatTime(now),
	}
	return c, save(ctx, tx, domain.CollectionCategories, true, c, now)
}

// SaveCategory replaces an existing category's name, color and order.
func (s *Service) SaveCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := required("name", c.Name); err != nil {
		return domain.Category{}, err
	}
	now := s.clock.Now()
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		existing, ok, err := store.GetAs[domain.Category](ctx, tx, domain.CollectionCategories, c.ID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewNotFoundError(domain.CodeNotFound, "category not found").With("category_id", c.ID)
		}
		c.CreatedAt = existing.CreatedAt
		if c.Color == "" {
			c.Color = existing.Color
		}
		return save(ctx, tx, domain.CollectionCategories, false, c, now)
	})
	if err != nil {
		return domain.Category{}, domain.AsPersistence("save category", err)
	}
	return c, nil
}

// DeleteCategory removes a category that no product references, active or
// not.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	now := s.clock.Now()
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		inUse, err := tx.Count(ctx, store.Query{
			Collection: domain.CollectionProducts,
			Where:      []store.Predicate{store.Equals{Field: "category_id", Value: id}},
		})
		if err != nil {
			return err
		}
		if inUse > 0 {
			return domain.NewConflictError(domain.CodeCategoryInUse, "category still has products").
				With("category_id", id)
		}
		_, ok, err := tx.Get(ctx, domain.CollectionCategories, id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewNotFoundError(domain.CodeNotFound, "category not found").With("category_id", id)
		}
		return remove(ctx, tx, domain.CollectionCategories, id, now)
	})
	if err != nil {
		return domain.AsPersistence("delete category", err)
	}
	s.logger.Info("category deleted", "category_id", id)
	return nil
}

// Categories returns every category in display order.
func (s *Service) Categories(ctx context.Context) ([]domain.Category, error) {
	cats, err := store.CollectAs[domain.Category](ctx, s.store, store.Query{
		Collection: domain.CollectionCategories,
		OrderBy:    "sort_order",
	})
	if err != nil {
		return nil, domain.AsPersistence("categories", err)
	}
	return cats, nil
}
