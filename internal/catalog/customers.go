package catalog

import (
	"context"
	"strings"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/store"
)

// DefaultSearchLimit caps SearchCustomers when no limit is given.
const DefaultSearchLimit = 20

// SaveCustomer creates c when its id is empty and otherwise updates the
// contact details. Loyalty counters are only changed by checkout.
func (s *Service) SaveCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = trimmed(c.Phone)
	c.Email = trimmed(c.Email)
	c.Address = trimmed(c.Address)
	if err := required("name", c.Name); err != nil {
		return domain.Customer{}, err
	}

	now := s.clock.Now()
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		isNew := c.ID == ""
		if isNew {
			c.ID = s.ids.NewID()
			c.Points, c.TotalSpent, c.VisitCount = 0, 0, 0
			c.CreatedAt = domain.FormatTime(now)
		} else {
			existing, ok, err := store.GetAs[domain.Customer](ctx, tx, domain.CollectionCustomers, c.ID)
			if err != nil {
				return err
			}
			if !ok {
				return domain.NewNotFoundError(domain.CodeNotFound, "customer not found").With("customer_id", c.ID)
			}
			c.Points = existing.Points
			c.TotalSpent = existing.TotalSpent
			c.VisitCount = existing.VisitCount
			c.CreatedAt = existing.CreatedAt
		}
		c.UpdatedAt = domain.FormatTime(now)
		return save(ctx, tx, domain.CollectionCustomers, isNew, c, now)
	})
	if err != nil {
		return domain.Customer{}, domain.AsPersistence("save customer", err)
	}
	return c, nil
}

// DeleteCustomer removes a customer. Past transactions keep their
// customer_id.
func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	now := s.clock.Now()
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		_, ok, err := tx.Get(ctx, domain.CollectionCustomers, id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewNotFoundError(domain.CodeNotFound, "customer not found").With("customer_id", id)
		}
		return remove(ctx, tx, domain.CollectionCustomers, id, now)
	})
	return domain.AsPersistence("delete customer", err)
}

// SearchCustomers matches q against name, phone and email, case-insensitively.
// An empty q lists customers by name.
func (s *Service) SearchCustomers(ctx context.Context, q string, limit int) ([]domain.Customer, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	query := store.Query{
		Collection: domain.CollectionCustomers,
		OrderBy:    "name",
		Limit:      limit,
	}
	if q = strings.TrimSpace(q); q != "" {
		query.Where = []store.Predicate{store.AnyOf{
			store.Contains{Field: "name", Substring: q},
			store.Contains{Field: "phone", Substring: q},
			store.Contains{Field: "email", Substring: q},
		}}
	}
	customers, err := store.CollectAs[domain.Customer](ctx, s.store, query)
	if err != nil {
		return nil, domain.AsPersistence("search customers", err)
	}
	return customers, nil
}
