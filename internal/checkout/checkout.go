package checkout

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/roach88/kasir/internal/cart"
	"github.com/roach88/kasir/internal/discount"
	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/ident"
	"github.com/roach88/kasir/internal/inventory"
	"github.com/roach88/kasir/internal/record"
	"github.com/roach88/kasir/internal/shift"
	"github.com/roach88/kasir/internal/store"
)

// Notifier is told when new work has been queued for sync.
type Notifier interface {
	Trigger()
}

// Request is everything needed to commit one sale.
type Request struct {
	Cart          cart.Snapshot
	DiscountCode  string
	PaymentMethod domain.PaymentMethod

	// PaymentAmount is the cash tendered. It is ignored for non-cash
	// methods, which are recorded as paid in full.
	PaymentAmount int64

	CustomerID string
	CashierID  string
	Notes      string
}

// Receipt is the result of a committed sale.
type Receipt struct {
	Transaction domain.Transaction         `json:"transaction"`
	Items       []domain.TransactionItem `json:"items"`

	// Shift is the shift the sale was attributed to, if any.
	Shift *domain.Shift `json:"shift,omitempty"`

	// Customer is the customer after loyalty updates, if one was attached.
	Customer *domain.Customer `json:"customer,omitempty"`

	// MissingProducts lists cart products that no longer exist locally.
	// Their lines are on the receipt but no stock was decremented.
	MissingProducts []string `json:"missing_products,omitempty"`
}

// Committer commits sales.
type Committer struct {
	store     *store.Store
	shifts    *shift.Manager
	inventory *inventory.Service
	notifier  Notifier
	ids       ident.IDGenerator
	codes     ident.Codes
	clock     ident.Clock
	location  *time.Location
	logger    *slog.Logger
}

// Option configures a Committer.
type Option func(*Committer)

// WithShifts attributes sales to the open shift.
func WithShifts(m *shift.Manager) Option {
	return func(c *Committer) { c.shifts = m }
}

// WithInventory raises low-stock notifications for products that drop to
// their minimum.
func WithInventory(s *inventory.Service) Option {
	return func(c *Committer) { c.inventory = s }
}

// WithNotifier sets who is told about newly queued work.
func WithNotifier(n Notifier) Option {
	return func(c *Committer) { c.notifier = n }
}

// WithIDGenerator sets the generator for transaction and item ids.
func WithIDGenerator(g ident.IDGenerator) Option {
	return func(c *Committer) { c.ids = g }
}

// WithCodes sets the transaction number source.
func WithCodes(codes ident.Codes) Option {
	return func(c *Committer) { c.codes = codes }
}

// WithClock sets the clock.
func WithClock(clock ident.Clock) Option {
	return func(c *Committer) { c.clock = clock }
}

// WithLocation sets the location used for discount windows. Transaction
// numbers use the location configured on the codes.
func WithLocation(loc *time.Location) Option {
	return func(c *Committer) { c.location = loc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Committer) { c.logger = l }
}

// NewCommitter creates a committer.
func NewCommitter(s *store.Store, opts ...Option) *Committer {
	c := &Committer{
		store:    s,
		ids:      ident.UUIDv7Generator{},
		clock:    ident.SystemClock{},
		location: time.Local,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Commit validates req and writes the sale. Validation failures return a
// VALIDATION error before anything is written. A discount that is no longer
// applicable, or whose usage limit was reached by another sale, aborts the
// commit with the discount's error; a lost usage race is a CONFLICT.
func (c *Committer) Commit(ctx context.Context, req Request) (Receipt, error) {
	totals, err := validate(req)
	if err != nil {
		return Receipt{}, err
	}

	now := c.clock.Now()
	number, err := c.codes.TransactionNumber(now)
	if err != nil {
		return Receipt{}, domain.NewPersistenceError("generate transaction number", err)
	}

	txn := domain.Transaction{
		ID:                c.ids.NewID(),
		TransactionNumber: number,
		CashierID:         req.CashierID,
		Subtotal:          totals.subtotal,
		Discount:          totals.discount,
		Total:             totals.total,
		PaymentMethod:     req.PaymentMethod,
		PaymentAmount:     totals.paid,
		ChangeAmount:      totals.change,
		Status:            domain.TransactionCompleted,
		Synced:            false,
		CreatedAt:         domain.FormatTime(now),
	}
	if req.CustomerID != "" {
		txn.CustomerID = domain.Ptr(req.CustomerID)
	}
	if req.Notes != "" {
		txn.Notes = domain.Ptr(req.Notes)
	}
	code := discount.NormalizeCode(req.DiscountCode)
	if code != "" {
		txn.DiscountCode = domain.Ptr(code)
	}

	items := make([]domain.TransactionItem, 0, len(req.Cart.Lines))
	for _, line := range req.Cart.Lines {
		items = append(items, domain.TransactionItem{
			ID:            c.ids.NewID(),
			TransactionID: txn.ID,
			ProductID:     line.ProductID,
			ProductName:   line.ProductName,
			Price:         line.Price,
			Quantity:      line.Quantity,
			Discount:      line.Discount,
			Subtotal:      line.Quantity*line.Price - line.Discount,
		})
	}

	var receipt Receipt
	err = c.store.WithTx(ctx, func(tx *store.Tx) error {
		receipt = Receipt{Items: items}

		var (
			sh      domain.Shift
			inShift bool
		)
		if c.shifts != nil {
			var err error
			sh, inShift, err = c.shifts.Active(ctx, tx, req.CashierID)
			if err != nil {
				return err
			}
			if inShift {
				txn.ShiftID = domain.Ptr(sh.ID)
			}
		}

		if err := putAndEnqueue(ctx, tx, domain.CollectionTransactions, domain.ActionInsert, txn, now); err != nil {
			return err
		}
		for _, item := range items {
			if err := putAndEnqueue(ctx, tx, domain.CollectionTransactionItems, domain.ActionInsert, item, now); err != nil {
				return err
			}
		}

		missing, err := c.decrementStock(ctx, tx, items, now)
		if err != nil {
			return err
		}
		receipt.MissingProducts = missing

		if inShift {
			updated, err := c.shifts.RecordSale(ctx, tx, sh, txn.Total, now)
			if err != nil {
				return err
			}
			receipt.Shift = &updated
		}

		if req.CustomerID != "" {
			cust, err := c.creditCustomer(ctx, tx, req.CustomerID, txn.Total, now)
			if err != nil {
				return err
			}
			receipt.Customer = &cust
		}

		if code != "" {
			if err := c.consumeDiscount(ctx, tx, code, txn.Subtotal, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("sale not committed", "cashier_id", req.CashierID, "error", err)
		return Receipt{}, domain.AsPersistence("commit sale", err)
	}
	receipt.Transaction = txn

	c.logger.Info("sale committed",
		"transaction_id", txn.ID,
		"number", txn.TransactionNumber,
		"total", txn.Total,
		"method", txn.PaymentMethod,
		"items", len(items),
	)
	if c.notifier != nil {
		c.notifier.Trigger()
	}
	return receipt, nil
}

type totals struct {
	subtotal, discount, total, paid, change int64
}

// validate checks req and derives the money fields. Totals are recomputed
// from the lines rather than trusted from the snapshot.
func validate(req Request) (totals, error) {
	if len(req.Cart.Lines) == 0 {
		return totals{}, domain.NewValidationError(domain.CodeEmptyCart, "cart is empty")
	}
	if !req.PaymentMethod.Valid() {
		return totals{}, domain.NewValidationError(domain.CodeInvalidPaymentMethod, "unknown payment method").
			With("method", string(req.PaymentMethod))
	}
	if req.Cart.Discount < 0 || req.PaymentAmount < 0 {
		return totals{}, domain.NewValidationError(domain.CodeInvalidAmount, "amounts cannot be negative")
	}

	var t totals
	for _, line := range req.Cart.Lines {
		if line.ProductID == "" || line.Quantity < 1 || line.Price < 0 || line.Discount < 0 {
			return totals{}, domain.NewValidationError(domain.CodeInvalidInput, "invalid cart line").
				With("product_id", line.ProductID)
		}
		t.subtotal += line.Quantity*line.Price - line.Discount
	}
	t.discount = req.Cart.Discount
	t.total = max(0, t.subtotal-t.discount)

	if req.PaymentMethod != domain.PaymentCash {
		t.paid = t.total
		return t, nil
	}
	if req.PaymentAmount < t.total {
		return totals{}, domain.NewValidationError(domain.CodeInsufficientPayment, "payment is less than the total").
			With("total", strconv.FormatInt(t.total, 10)).
			With("paid", strconv.FormatInt(req.PaymentAmount, 10))
	}
	t.paid = req.PaymentAmount
	t.change = req.PaymentAmount - t.total
	return t, nil
}

// decrementStock lowers stock for every item, floored at zero. Products
// missing locally are skipped and returned.
func (c *Committer) decrementStock(ctx context.Context, tx *store.Tx, items []domain.TransactionItem, now time.Time) ([]string, error) {
	var missing []string
	for _, item := range items {
		p, ok, err := store.GetAs[domain.Product](ctx, tx, domain.CollectionProducts, item.ProductID)
		if err != nil {
			return nil, err
		}
		if !ok {
			c.logger.Warn("sold product missing from catalog", "product_id", item.ProductID)
			missing = append(missing, item.ProductID)
			continue
		}

		p.Stock = max(0, p.Stock-item.Quantity)
		p.UpdatedAt = domain.FormatTime(now)
		if err := putAndEnqueue(ctx, tx, domain.CollectionProducts, domain.ActionUpdate, p, now); err != nil {
			return nil, err
		}
		if c.inventory != nil {
			if _, err := c.inventory.NotifyLowStock(ctx, tx, p, now); err != nil {
				return nil, err
			}
		}
	}
	return missing, nil
}

func (c *Committer) creditCustomer(ctx context.Context, tx *store.Tx, id string, total int64, now time.Time) (domain.Customer, error) {
	cust, ok, err := store.GetAs[domain.Customer](ctx, tx, domain.CollectionCustomers, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if !ok {
		return domain.Customer{}, domain.NewNotFoundError(domain.CodeNotFound, "customer not found").With("customer_id", id)
	}
	cust.TotalSpent += total
	cust.VisitCount++
	cust.Points += domain.PointsFor(total)
	cust.UpdatedAt = domain.FormatTime(now)
	if err := putAndEnqueue(ctx, tx, domain.CollectionCustomers, domain.ActionUpdate, cust, now); err != nil {
		return domain.Customer{}, err
	}
	return cust, nil
}

// consumeDiscount re-checks the discount against the committed subtotal and
// increments used_count with a compare-and-swap on the value just read.
func (c *Committer) consumeDiscount(ctx context.Context, tx *store.Tx, code string, subtotal int64, now time.Time) error {
	d, ok, err := store.DiscountByCode(ctx, tx, code)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NewNotFoundError(domain.CodeDiscountNotFound, "discount code not found").With("code", code)
	}
	if err := discount.Eligible(d, subtotal, now, c.location); err != nil {
		if domain.CodeOf(err) == domain.CodeUsageLimitReached {
			return domain.NewConflictError(domain.CodeUsageLimitReached, "discount usage limit was reached by another sale").
				With("code", code)
		}
		return err
	}

	swapped, err := tx.UpdateIf(ctx, domain.CollectionDiscounts, d.ID,
		store.Equals{Field: "used_count", Value: d.UsedCount},
		record.Record{"used_count": d.UsedCount + 1},
	)
	if err != nil {
		return err
	}
	if !swapped {
		return domain.NewConflictError(domain.CodeUsageLimitReached, "discount changed during checkout").With("code", code)
	}

	d.UsedCount++
	rec, err := record.From(d)
	if err != nil {
		return err
	}
	_, err = tx.Enqueue(ctx, domain.CollectionDiscounts, domain.ActionUpdate, rec, now)
	return err
}

func putAndEnqueue(ctx context.Context, a store.Accessor, collection string, action domain.Action, v any, now time.Time) error {
	_, err := store.PutAndEnqueue(ctx, a, collection, action, v, now)
	return err
}
