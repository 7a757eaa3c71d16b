package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/kasir/internal/checkout"
	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/inventory"
	"github.com/roach88/kasir/internal/record"
	"github.com/roach88/kasir/internal/shift"
	"github.com/roach88/kasir/internal/store"
	"github.com/roach88/kasir/internal/syncer"
)

type actionFunc func(ctx context.Context, h *Harness, args map[string]any) (any, error)

// actions maps step names to their implementations.
var actions = map[string]actionFunc{
	"seed":              seed,
	"cart.add":          cartAdd,
	"cart.update":       cartUpdate,
	"cart.remove":       cartRemove,
	"cart.set_discount": cartSetDiscount,
	"cart.clear":        cartClear,
	"discount.resolve":  discountResolve,
	"checkout.commit":   checkoutCommit,
	"shift.open":        shiftOpen,
	"shift.close":       shiftClose,
	"stock.adjust":      stockAdjust,
	"network.set":       networkSet,
	"remote.fail":       remoteFail,
	"sync.process":      syncProcess,
	"sync.full":         syncFull,
	"clock.advance":     clockAdvance,
}

func knownAction(name string) bool {
	_, ok := actions[name]
	return ok
}

// argError marks a malformed step, which aborts the scenario instead of
// becoming an outcome.
type argError struct {
	key string
	msg string
}

func (e *argError) Error() string {
	return fmt.Sprintf("arg %q: %s", e.key, e.msg)
}

func asArgError(err error, target **argError) bool {
	return err != nil && errors.As(err, target)
}

func argString(args map[string]any, key string, required bool) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		if required {
			return "", &argError{key, "is required"}
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &argError{key, fmt.Sprintf("must be a string, got %T", v)}
	}
	return s, nil
}

func argInt(args map[string]any, key string, required bool) (int64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		if required {
			return 0, &argError{key, "is required"}
		}
		return 0, nil
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	}
	return 0, &argError{key, fmt.Sprintf("must be an integer, got %T", v)}
}

func argBool(args map[string]any, key string) (bool, error) {
	v, ok := args[key]
	if !ok {
		return false, &argError{key, "is required"}
	}
	b, ok := v.(bool)
	if !ok {
		return false, &argError{key, fmt.Sprintf("must be a boolean, got %T", v)}
	}
	return b, nil
}

// seed writes a record directly, bypassing the sync queue.
func seed(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	collection, err := argString(args, "collection", true)
	if err != nil {
		return nil, err
	}
	raw, ok := args["record"].(map[string]any)
	if !ok {
		return nil, &argError{"record", "must be a mapping"}
	}
	rec, err := record.From(raw)
	if err != nil {
		return nil, &argError{"record", err.Error()}
	}
	if rec.ID() == "" {
		return nil, &argError{"record", "id is required"}
	}
	return nil, h.store.Put(ctx, collection, rec)
}

func (h *Harness) product(ctx context.Context, args map[string]any) (domain.Product, error) {
	id, err := argString(args, "product", true)
	if err != nil {
		return domain.Product{}, err
	}
	p, ok, err := store.GetAs[domain.Product](ctx, h.store, domain.CollectionProducts, id)
	if err != nil {
		return domain.Product{}, err
	}
	if !ok {
		return domain.Product{}, domain.NewNotFoundError(domain.CodeNotFound, "product not found").With("product_id", id)
	}
	return p, nil
}

func cartAdd(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	p, err := h.product(ctx, args)
	if err != nil {
		return nil, err
	}
	qty, err := argInt(args, "quantity", false)
	if err != nil {
		return nil, err
	}

	var before int64
	for _, l := range h.cart.Lines() {
		if l.ProductID == p.ID {
			before = l.Quantity
		}
	}
	h.cart.AddItem(p)
	if qty > 1 {
		h.cart.UpdateQuantity(p.ID, before+qty)
	}
	return h.cart.Snapshot(), nil
}

func cartUpdate(_ context.Context, h *Harness, args map[string]any) (any, error) {
	id, err := argString(args, "product", true)
	if err != nil {
		return nil, err
	}
	qty, err := argInt(args, "quantity", true)
	if err != nil {
		return nil, err
	}
	h.cart.UpdateQuantity(id, qty)
	return h.cart.Snapshot(), nil
}

func cartRemove(_ context.Context, h *Harness, args map[string]any) (any, error) {
	id, err := argString(args, "product", true)
	if err != nil {
		return nil, err
	}
	h.cart.RemoveItem(id)
	return h.cart.Snapshot(), nil
}

func cartSetDiscount(_ context.Context, h *Harness, args map[string]any) (any, error) {
	amount, err := argInt(args, "amount", true)
	if err != nil {
		return nil, err
	}
	h.cart.SetDiscount(amount)
	h.code = ""
	return h.cart.Snapshot(), nil
}

func cartClear(_ context.Context, h *Harness, _ map[string]any) (any, error) {
	h.cart.Clear()
	h.code = ""
	return h.cart.Snapshot(), nil
}

// discountResolve prices a code against the cart and applies it.
func discountResolve(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	code, err := argString(args, "code", true)
	if err != nil {
		return nil, err
	}
	res, err := h.resolver.Resolve(ctx, code, h.cart.Subtotal())
	if err != nil {
		return nil, err
	}
	h.cart.SetDiscount(res.Amount)
	h.code = res.Discount.Code
	return map[string]any{
		"code":   res.Discount.Code,
		"amount": res.Amount,
		"total":  h.cart.Total(),
	}, nil
}

// checkoutCommit commits the cart and empties it on success.
func checkoutCommit(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	method, err := argString(args, "payment_method", false)
	if err != nil {
		return nil, err
	}
	if method == "" {
		method = string(domain.PaymentCash)
	}
	amount, err := argInt(args, "payment_amount", false)
	if err != nil {
		return nil, err
	}
	customer, err := argString(args, "customer", false)
	if err != nil {
		return nil, err
	}
	notes, err := argString(args, "notes", false)
	if err != nil {
		return nil, err
	}

	receipt, err := h.committer.Commit(ctx, checkout.Request{
		Cart:          h.cart.Snapshot(),
		DiscountCode:  h.code,
		PaymentMethod: domain.PaymentMethod(method),
		PaymentAmount: amount,
		CustomerID:    customer,
		CashierID:     h.cashier,
		Notes:         notes,
	})
	if err != nil {
		return nil, err
	}
	h.cart.Clear()
	h.code = ""
	return receipt.Transaction, nil
}

func shiftOpen(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	cash, err := argInt(args, "opening_cash", true)
	if err != nil {
		return nil, err
	}
	notes, err := argString(args, "notes", false)
	if err != nil {
		return nil, err
	}
	return h.shifts.Open(ctx, shift.Cashier{ID: h.cashier, Name: h.cashier}, cash, notes)
}

func shiftClose(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	cash, err := argInt(args, "closing_cash", true)
	if err != nil {
		return nil, err
	}
	notes, err := argString(args, "notes", false)
	if err != nil {
		return nil, err
	}
	return h.shifts.Close(ctx, h.cashier, cash, notes)
}

func stockAdjust(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	id, err := argString(args, "product", true)
	if err != nil {
		return nil, err
	}
	typ, err := argString(args, "type", true)
	if err != nil {
		return nil, err
	}
	qty, err := argInt(args, "quantity", true)
	if err != nil {
		return nil, err
	}
	reason, err := argString(args, "reason", false)
	if err != nil {
		return nil, err
	}
	return h.inventory.Adjust(ctx, inventory.Adjustment{
		ProductID: id,
		Type:      domain.AdjustmentType(typ),
		Quantity:  qty,
		Reason:    reason,
		CreatedBy: h.cashier,
	})
}

func networkSet(_ context.Context, h *Harness, args map[string]any) (any, error) {
	online, err := argBool(args, "online")
	if err != nil {
		return nil, err
	}
	h.conn.Set(online)
	return map[string]any{"online": online}, nil
}

func remoteFail(_ context.Context, h *Harness, args map[string]any) (any, error) {
	n, err := argInt(args, "times", true)
	if err != nil {
		return nil, err
	}
	h.remote.FailNext(int(n))
	return nil, nil
}

func syncProcess(ctx context.Context, h *Harness, _ map[string]any) (any, error) {
	return h.processor.ProcessQueue(ctx, h.conn)
}

func syncFull(ctx context.Context, h *Harness, _ map[string]any) (any, error) {
	return h.processor.FullSync(ctx, h.conn)
}

func clockAdvance(_ context.Context, h *Harness, args map[string]any) (any, error) {
	by, err := argString(args, "by", true)
	if err != nil {
		return nil, err
	}
	d, err := time.ParseDuration(by)
	if err != nil {
		return nil, &argError{"by", err.Error()}
	}
	h.clock.Advance(d)
	return map[string]any{"now": domain.FormatTime(h.clock.Now())}, nil
}

var _ syncer.Remote = (*MemoryRemote)(nil)
