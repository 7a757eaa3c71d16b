// Package discount prices discount codes against a cart subtotal.
package discount

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/ident"
	"github.com/roach88/kasir/internal/store"
)

// Resolution is a priced discount.
type Resolution struct {
	// Amount is the discount in currency units for the subtotal it was
	// resolved against.
	Amount   int64           `json:"amount"`
	Discount domain.Discount `json:"discount"`
}

// Resolver looks up and prices discount codes. It never mutates usage;
// used_count only moves when a sale commits.
type Resolver struct {
	store    store.Accessor
	clock    ident.Clock
	location *time.Location
	logger   *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock sets the clock used for validity windows.
func WithClock(c ident.Clock) Option {
	return func(r *Resolver) { r.clock = c }
}

// WithLocation sets the location that date-only bounds are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) { r.location = loc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver reading discounts from a.
func NewResolver(a store.Accessor, opts ...Option) *Resolver {
	r := &Resolver{
		store:    a,
		clock:    ident.SystemClock{},
		location: time.Local,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve prices code against subtotal. The code is matched
// case-insensitively.
//
// Returns a NOT_FOUND domain error when the code is unknown, inactive,
// exhausted or outside its validity window, and a VALIDATION error with
// code BELOW_MINIMUM when subtotal is under the minimum purchase.
func (r *Resolver) Resolve(ctx context.Context, code string, subtotal int64) (Resolution, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Resolution{}, domain.NewNotFoundError(domain.CodeDiscountNotFound, "discount code is empty")
	}

	d, ok, err := store.DiscountByCode(ctx, r.store, code)
	if err != nil {
		return Resolution{}, domain.AsPersistence("look up discount", err)
	}
	if !ok {
		return Resolution{}, domain.NewNotFoundError(domain.CodeDiscountNotFound, "discount code not found").With("code", code)
	}

	if err := Eligible(d, subtotal, r.clock.Now(), r.location); err != nil {
		r.logger.Debug("discount rejected", "code", code, "reason", domain.CodeOf(err))
		return Resolution{}, err
	}
	return Resolution{Amount: Amount(d, subtotal), Discount: d}, nil
}

// NormalizeCode trims and upper-cases a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Eligible reports whether d may be applied to subtotal at now. Checkout
// calls it again inside the sale transaction, so a code exhausted between
// resolve and commit is caught.
func Eligible(d domain.Discount, subtotal int64, now time.Time, loc *time.Location) error {
	if !d.IsActive {
		return domain.NewNotFoundError(domain.CodeDiscountNotFound, "discount is not active").With("code", d.Code)
	}
	if limit, ok := set(d.UsageLimit); ok && d.UsedCount >= limit {
		return domain.NewNotFoundError(domain.CodeUsageLimitReached, "discount usage limit reached").With("code", d.Code)
	}
	if d.StartDate != nil && *d.StartDate != "" {
		start, err := domain.ParseBound(*d.StartDate, false, loc)
		if err != nil || now.Before(start) {
			return domain.NewNotFoundError(domain.CodeDiscountNotFound, "discount is not yet valid").With("code", d.Code)
		}
	}
	if d.EndDate != nil && *d.EndDate != "" {
		end, err := domain.ParseBound(*d.EndDate, true, loc)
		if err != nil || now.After(end) {
			return domain.NewNotFoundError(domain.CodeDiscountNotFound, "discount has expired").With("code", d.Code)
		}
	}
	if minimum, ok := set(d.MinPurchase); ok && subtotal < minimum {
		return domain.NewValidationError(domain.CodeBelowMinimum, "subtotal is below the minimum purchase").
			With("code", d.Code).
			With("min_purchase", strconv.FormatInt(minimum, 10))
	}
	return nil
}

// Amount prices d for subtotal. Percentage discounts round half up and are
// capped by max_discount; fixed discounts are the value as is and may exceed
// the subtotal.
func Amount(d domain.Discount, subtotal int64) int64 {
	switch d.Type {
	case domain.DiscountPercentage:
		amount := (subtotal*d.Value + 50) / 100
		if limit, ok := set(d.MaxDiscount); ok && amount > limit {
			amount = limit
		}
		return max(0, amount)
	case domain.DiscountFixed:
		return max(0, d.Value)
	default:
		return 0
	}
}

// set treats nil and non-positive optional limits as absent.
func set(p *int64) (int64, bool) {
	if p == nil || *p <= 0 {
		return 0, false
	}
	return *p, true
}
