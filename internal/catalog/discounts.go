package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/roach88/kasir/internal/discount"
	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/store"
)

// codeAttempts bounds retries when a generated code collides.
const codeAttempts = 5

// SaveDiscount creates d when its id is empty and replaces it otherwise.
// Codes are stored upper-case; an empty code on a new discount is generated.
// The usage counter is never taken from the caller.
func (s *Service) SaveDiscount(ctx context.Context, d domain.Discount) (domain.Discount, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Code = discount.NormalizeCode(d.Code)
	if err := validateDiscount(d); err != nil {
		return domain.Discount{}, err
	}

	now := s.clock.Now()
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		return s.saveDiscount(ctx, tx, &d, now)
	})
	if err != nil {
		return domain.Discount{}, domain.AsPersistence("save discount", err)
	}
	s.logger.Info("discount saved", "discount_id", d.ID, "code", d.Code)
	return d, nil
}

func validateDiscount(d domain.Discount) error {
	if err := required("name", d.Name); err != nil {
		return err
	}
	if !d.Type.Valid() {
		return domain.NewValidationError(domain.CodeInvalidInput, "discount type must be percentage or fixed").
			With("type", string(d.Type))
	}
	if d.Value <= 0 {
		return domain.NewValidationError(domain.CodeInvalidAmount, "discount value must be positive")
	}
	if d.Type == domain.DiscountPercentage && d.Value > 100 {
		return domain.NewValidationError(domain.CodeInvalidAmount, "percentage cannot exceed 100")
	}
	for field, p := range map[string]*int64{"min_purchase": d.MinPurchase, "max_discount": d.MaxDiscount, "usage_limit": d.UsageLimit} {
		if p != nil {
			if err := nonNegative(field, *p); err != nil {
				return err
			}
		}
	}
	for field, p := range map[string]*string{"start_date": d.StartDate, "end_date": d.EndDate} {
		if p == nil {
			continue
		}
		if _, err := domain.ParseBound(*p, field == "end_date", time.UTC); err != nil {
			return domain.NewValidationError(domain.CodeInvalidInput, field+" is not a valid date").
				With(field, *p)
		}
	}
	return nil
}

func (s *Service) saveDiscount(ctx context.Context, tx *store.Tx, d *domain.Discount, now time.Time) error {
	isNew := d.ID == ""
	if isNew {
		d.ID = s.ids.NewID()
		d.UsedCount = 0
		d.CreatedAt = domain.FormatTime(now)
	} else {
		existing, ok, err := store.GetAs[domain.Discount](ctx, tx, domain.CollectionDiscounts, d.ID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewNotFoundError(domain.CodeNotFound, "discount not found").With("discount_id", d.ID)
		}
		d.UsedCount = existing.UsedCount
		d.CreatedAt = existing.CreatedAt
		if d.Code == "" {
			d.Code = existing.Code
		}
	}

	if d.Code == "" {
		code, err := s.uniqueCode(ctx, tx)
		if err != nil {
			return err
		}
		d.Code = code
	} else {
		other, ok, err := store.DiscountByCode(ctx, tx, d.Code)
		if err != nil {
			return err
		}
		if ok && other.ID != d.ID {
			return domain.NewConflictError(domain.CodeDuplicateCode, "discount code already exists").
				With("code", d.Code)
		}
	}
	return save(ctx, tx, domain.CollectionDiscounts, isNew, *d, now)
}

func (s *Service) uniqueCode(ctx context.Context, a store.Accessor) (string, error) {
	for range codeAttempts {
		code, err := s.codes.DiscountCode()
		if err != nil {
			return "", err
		}
		_, taken, err := store.DiscountByCode(ctx, a, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", domain.NewConflictError(domain.CodeDuplicateCode, "could not generate an unused discount code")
}

// GenerateCode returns a random code not used by any discount.
func (s *Service) GenerateCode(ctx context.Context) (string, error) {
	code, err := s.uniqueCode(ctx, s.store)
	return code, domain.AsPersistence("generate discount code", err)
}

// ToggleDiscount flips a discount's active flag and returns the new state.
func (s *Service) ToggleDiscount(ctx context.Context, id string) (bool, error) {
	var active bool
	now := s.clock.Now()
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		d, ok, err := store.GetAs[domain.Discount](ctx, tx, domain.CollectionDiscounts, id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewNotFoundError(domain.CodeNotFound, "discount not found").With("discount_id", id)
		}
		d.IsActive = !d.IsActive
		active = d.IsActive
		return save(ctx, tx, domain.CollectionDiscounts, false, d, now)
	})
	if err != nil {
		return false, domain.AsPersistence("toggle discount", err)
	}
	return active, nil
}

// DeleteDiscount removes a discount. Transactions keep the code they used.
func (s *Service) DeleteDiscount(ctx context.Context, id string) error {
	now := s.clock.Now()
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		_, ok, err := tx.Get(ctx, domain.CollectionDiscounts, id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewNotFoundError(domain.CodeNotFound, "discount not found").With("discount_id", id)
		}
		return remove(ctx, tx, domain.CollectionDiscounts, id, now)
	})
	return domain.AsPersistence("delete discount", err)
}

// Discounts returns every discount, newest first.
func (s *Service) Discounts(ctx context.Context) ([]domain.Discount, error) {
	ds, err := store.CollectAs[domain.Discount](ctx, s.store, store.Query{
		Collection: domain.CollectionDiscounts,
		OrderBy:    "created_at",
		Desc:       true,
	})
	if err != nil {
		return nil, domain.AsPersistence("discounts", err)
	}
	return ds, nil
}
