// Package shift manages the cashier shift lifecycle: none -> open -> closed.
//
// Which shifts count as "the open shift" is decided by a single Scope policy
// used by every lookup: Open's exclusivity check, Close, Current, and the
// attribution of sales at checkout.
package shift

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/ident"
	"github.com/roach88/kasir/internal/record"
	"github.com/roach88/kasir/internal/store"
)

// Scope selects how open-shift exclusivity is enforced.
type Scope string

const (
	// ScopeDevice allows at most one open shift on the till, for any
	// cashier. This is the default for single-till installs.
	ScopeDevice Scope = "device"

	// ScopeCashier allows one open shift per cashier.
	ScopeCashier Scope = "cashier"
)

// ParseScope parses a configured scope. Empty means ScopeDevice.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeDevice:
		return ScopeDevice, nil
	case ScopeCashier:
		return ScopeCashier, nil
	}
	return "", fmt.Errorf("invalid shift scope %q (want %q or %q)", s, ScopeDevice, ScopeCashier)
}

// Cashier identifies who is operating the till.
type Cashier struct {
	ID   string
	Name string
}

// Manager opens, closes and tracks shifts.
type Manager struct {
	store  *store.Store
	scope  Scope
	ids    ident.IDGenerator
	clock  ident.Clock
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithScope sets the exclusivity policy.
func WithScope(s Scope) Option {
	return func(m *Manager) { m.scope = s }
}

// WithIDGenerator sets the generator for shift ids.
func WithIDGenerator(g ident.IDGenerator) Option {
	return func(m *Manager) { m.ids = g }
}

// WithClock sets the clock.
func WithClock(c ident.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a shift manager.
func NewManager(s *store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:  s,
		scope:  ScopeDevice,
		ids:    ident.UUIDv7Generator{},
		clock:  ident.SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Scope returns the configured exclusivity policy.
func (m *Manager) Scope() Scope {
	return m.scope
}

// Open starts a shift for cashier. Fails with a CONFLICT error, creating
// nothing, if a shift is already open under the configured scope.
func (m *Manager) Open(ctx context.Context, cashier Cashier, openingCash int64, notes string) (domain.Shift, error) {
	if cashier.ID == "" {
		return domain.Shift{}, domain.NewValidationError(domain.CodeInvalidInput, "cashier id is required")
	}
	if openingCash < 0 {
		return domain.Shift{}, domain.NewValidationError(domain.CodeInvalidAmount, "opening cash cannot be negative")
	}

	now := m.clock.Now()
	sh := domain.Shift{
		ID:           m.ids.NewID(),
		CashierID:    cashier.ID,
		CashierName:  cashier.Name,
		Status:       domain.ShiftOpen,
		OpeningCash:  openingCash,
		ExpectedCash: openingCash,
		OpenedAt:     domain.FormatTime(now),
	}
	if notes != "" {
		sh.Notes = domain.Ptr(notes)
	}

	err := m.store.WithTx(ctx, func(tx *store.Tx) error {
		existing, ok, err := m.Active(ctx, tx, cashier.ID)
		if err != nil {
			return err
		}
		if ok {
			return alreadyOpen(existing)
		}

		rec, err := record.From(sh)
		if err != nil {
			return err
		}
		if err := tx.Put(ctx, domain.CollectionShifts, rec); err != nil {
			if store.IsUniqueViolation(err) {
				return domain.NewConflictError(domain.CodeShiftAlreadyOpen, "a shift is already open").
					With("cashier_id", cashier.ID)
			}
			return err
		}
		_, err = tx.Enqueue(ctx, domain.CollectionShifts, domain.ActionInsert, rec, now)
		return err
	})
	if err != nil {
		return domain.Shift{}, domain.AsPersistence("open shift", err)
	}

	m.logger.Info("shift opened", "shift_id", sh.ID, "cashier_id", cashier.ID, "opening_cash", openingCash)
	return sh, nil
}

// Close ends the open shift and records the cash count. Difference is
// closing minus expected cash; negative means a shortfall. Fails with a
// NOT_FOUND error if no shift is open.
func (m *Manager) Close(ctx context.Context, cashierID string, closingCash int64, notes string) (domain.Shift, error) {
	if closingCash < 0 {
		return domain.Shift{}, domain.NewValidationError(domain.CodeInvalidAmount, "closing cash cannot be negative")
	}

	now := m.clock.Now()
	var closed domain.Shift
	err := m.store.WithTx(ctx, func(tx *store.Tx) error {
		sh, ok, err := m.Active(ctx, tx, cashierID)
		if err != nil {
			return err
		}
		if !ok {
			return noActiveShift(cashierID)
		}

		sh.ExpectedCash = sh.OpeningCash + sh.TotalSales
		sh.ClosingCash = domain.Ptr(closingCash)
		sh.Difference = domain.Ptr(closingCash - sh.ExpectedCash)
		sh.Status = domain.ShiftClosed
		sh.ClosedAt = domain.Ptr(domain.FormatTime(now))
		if notes != "" {
			sh.Notes = domain.Ptr(notes)
		}

		if err := m.save(ctx, tx, sh, now); err != nil {
			return err
		}
		closed = sh
		return nil
	})
	if err != nil {
		return domain.Shift{}, domain.AsPersistence("close shift", err)
	}

	m.logger.Info("shift closed",
		"shift_id", closed.ID,
		"cashier_id", closed.CashierID,
		"expected_cash", closed.ExpectedCash,
		"difference", domain.Value(closed.Difference),
	)
	return closed, nil
}

// UpdateShiftSales adds one sale of amount to the open shift. Fails with a
// NOT_FOUND error if no shift is open.
func (m *Manager) UpdateShiftSales(ctx context.Context, cashierID string, amount int64) (domain.Shift, error) {
	now := m.clock.Now()
	var updated domain.Shift
	err := m.store.WithTx(ctx, func(tx *store.Tx) error {
		sh, ok, err := m.Active(ctx, tx, cashierID)
		if err != nil {
			return err
		}
		if !ok {
			return noActiveShift(cashierID)
		}
		updated, err = m.RecordSale(ctx, tx, sh, amount, now)
		return err
	})
	if err != nil {
		return domain.Shift{}, domain.AsPersistence("update shift sales", err)
	}
	return updated, nil
}

// Current returns the open shift for cashierID under the configured scope.
func (m *Manager) Current(ctx context.Context, cashierID string) (domain.Shift, bool, error) {
	sh, ok, err := m.Active(ctx, m.store, cashierID)
	if err != nil {
		return domain.Shift{}, false, domain.AsPersistence("current shift", err)
	}
	return sh, ok, nil
}

// History returns shifts newest first. An empty cashierID returns every
// cashier's shifts; limit <= 0 means no limit.
func (m *Manager) History(ctx context.Context, cashierID string, limit int) ([]domain.Shift, error) {
	q := store.Query{
		Collection: domain.CollectionShifts,
		OrderBy:    "opened_at",
		Desc:       true,
		Limit:      limit,
	}
	if cashierID != "" {
		q.Where = []store.Predicate{store.Equals{Field: "cashier_id", Value: cashierID}}
	}
	shifts, err := store.CollectAs[domain.Shift](ctx, m.store, q)
	if err != nil {
		return nil, domain.AsPersistence("shift history", err)
	}
	return shifts, nil
}

// Active returns the open shift visible to cashierID under the configured
// scope, reading through a. With ScopeDevice any open shift qualifies.
func (m *Manager) Active(ctx context.Context, a store.Accessor, cashierID string) (domain.Shift, bool, error) {
	filter := cashierID
	if m.scope == ScopeDevice {
		filter = ""
	}
	shifts, err := store.OpenShifts(ctx, a, filter)
	if err != nil {
		return domain.Shift{}, false, err
	}
	if len(shifts) == 0 {
		return domain.Shift{}, false, nil
	}
	if len(shifts) > 1 {
		m.logger.Warn("multiple open shifts visible", "scope", m.scope, "count", len(shifts), "using", shifts[0].ID)
	}
	return shifts[0], true, nil
}

// RecordSale adds a sale to sh through a and enqueues the updated shift.
// expected_cash is kept equal to opening_cash + total_sales.
func (m *Manager) RecordSale(ctx context.Context, a store.Accessor, sh domain.Shift, amount int64, now time.Time) (domain.Shift, error) {
	sh.TotalSales += amount
	sh.TotalTransactions++
	sh.ExpectedCash = sh.OpeningCash + sh.TotalSales
	if err := m.save(ctx, a, sh, now); err != nil {
		return domain.Shift{}, err
	}
	return sh, nil
}

func (m *Manager) save(ctx context.Context, a store.Accessor, sh domain.Shift, now time.Time) error {
	_, err := store.PutAndEnqueue(ctx, a, domain.CollectionShifts, domain.ActionUpdate, sh, now)
	return err
}

func alreadyOpen(existing domain.Shift) error {
	return domain.NewConflictError(domain.CodeShiftAlreadyOpen, "a shift is already open").
		With("shift_id", existing.ID).
		With("cashier_id", existing.CashierID)
}

func noActiveShift(cashierID string) error {
	return domain.NewNotFoundError(domain.CodeNoActiveShift, "no open shift").With("cashier_id", cashierID)
}
