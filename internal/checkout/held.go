package checkout

import (
	"context"

	"github.com/roach88/kasir/internal/cart"
	"github.com/roach88/kasir/internal/discount"
	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/store"
)

// HoldRequest is a cart to park.
type HoldRequest struct {
	CashierID    string
	Cart         cart.Snapshot
	DiscountCode string
	Note         string
}

// Hold parks the current cart so another sale can be rung up. The caller
// clears its cart afterwards.
func (c *Committer) Hold(ctx context.Context, req HoldRequest) (domain.HeldTransaction, error) {
	if len(req.Cart.Lines) == 0 {
		return domain.HeldTransaction{}, domain.NewValidationError(domain.CodeEmptyCart, "cart is empty")
	}

	held := domain.HeldTransaction{
		ID:        c.ids.NewID(),
		CashierID: req.CashierID,
		Items:     req.Cart.Lines,
		Discount:  req.Cart.Discount,
		Total:     req.Cart.Total,
		CreatedAt: domain.FormatTime(c.clock.Now()),
	}
	if code := discount.NormalizeCode(req.DiscountCode); code != "" {
		held.DiscountCode = domain.Ptr(code)
	}
	if req.Note != "" {
		held.Note = domain.Ptr(req.Note)
	}
	if err := store.PutAs(ctx, c.store, domain.CollectionHeldTransactions, held); err != nil {
		return domain.HeldTransaction{}, domain.AsPersistence("hold cart", err)
	}
	c.logger.Info("cart held", "held_id", held.ID, "cashier_id", req.CashierID, "items", len(held.Items))
	return held, nil
}

// Resume restores a held cart and removes it from the held list. The held
// record is returned for its discount code and note; a code's amount must
// be resolved again against the final subtotal before commit.
func (c *Committer) Resume(ctx context.Context, id string) (*cart.Cart, domain.HeldTransaction, error) {
	var (
		restored *cart.Cart
		held     domain.HeldTransaction
	)
	err := c.store.WithTx(ctx, func(tx *store.Tx) error {
		h, ok, err := store.GetAs[domain.HeldTransaction](ctx, tx, domain.CollectionHeldTransactions, id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewNotFoundError(domain.CodeNotFound, "held cart not found").With("held_id", id)
		}
		held = h
		restored = cart.New()
		restored.Restore(h.Items, h.Discount)
		return tx.Delete(ctx, domain.CollectionHeldTransactions, id)
	})
	if err != nil {
		return nil, domain.HeldTransaction{}, domain.AsPersistence("resume cart", err)
	}
	return restored, held, nil
}

// Held lists parked carts, newest first. An empty cashierID lists every
// cashier's carts.
func (c *Committer) Held(ctx context.Context, cashierID string) ([]domain.HeldTransaction, error) {
	q := store.Query{
		Collection: domain.CollectionHeldTransactions,
		OrderBy:    "created_at",
		Desc:       true,
	}
	if cashierID != "" {
		q.Where = []store.Predicate{store.Equals{Field: "cashier_id", Value: cashierID}}
	}
	held, err := store.CollectAs[domain.HeldTransaction](ctx, c.store, q)
	if err != nil {
		return nil, domain.AsPersistence("list held carts", err)
	}
	return held, nil
}
