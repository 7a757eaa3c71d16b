// Package inventory applies manual stock adjustments and raises low-stock
// notifications.
package inventory

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

// Default reasons recorded when an adjustment carries none.
var defaultReasons = map[domain.AdjustmentType]string{
	domain.AdjustmentIn:     "Stock received",
	domain.AdjustmentOut:    "Stock removed",
	domain.AdjustmentOpname: "Stock opname",
}

// Adjustment is a requested stock change.
//
// For AdjustmentIn and AdjustmentOut, Quantity is a magnitude and its sign
// is ignored. For AdjustmentOpname, Quantity is the counted stock.
type Adjustment struct {
	ProductID string
	Type      domain.AdjustmentType
	Quantity  int64
	Reason    string
	CreatedBy string
}

// Service manages stock levels and notifications.
type Service struct {
	store    *store.Store
	ids      ident.IDGenerator
	clock    ident.Clock
	location *time.Location
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator sets the generator for adjustment and notification ids.
func WithIDGenerator(g ident.IDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// WithClock sets the clock.
func WithClock(c ident.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLocation sets the location whose calendar day bounds notification
// de-duplication.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates an inventory service.
func NewService(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:    st,
		ids:      ident.UUIDv7Generator{},
		clock:    ident.SystemClock{},
		location: time.Local,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Adjust applies adj to the product's stock. The adjustment record and the
// product update are written and queued in one transaction. Stock never
// goes below zero; the recorded quantity is the delta actually applied.
func (s *Service) Adjust(ctx context.Context, adj Adjustment) (domain.StockAdjustment, error) {
	if !adj.Type.Valid() {
		return domain.StockAdjustment{}, domain.NewValidationError(domain.CodeInvalidInput,
			fmt.Sprintf("invalid adjustment type %q", adj.Type))
	}
	switch {
	case adj.Type == domain.AdjustmentOpname && adj.Quantity < 0:
		return domain.StockAdjustment{}, domain.NewValidationError(domain.CodeInvalidAmount, "counted stock cannot be negative")
	case adj.Type != domain.AdjustmentOpname && adj.Quantity == 0:
		return domain.StockAdjustment{}, domain.NewValidationError(domain.CodeInvalidAmount, "adjustment quantity must not be zero")
	}

	now := s.clock.Now()
	var result domain.StockAdjustment
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		p, ok, err := store.GetAs[domain.Product](ctx, tx, domain.CollectionProducts, adj.ProductID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewNotFoundError(domain.CodeNotFound, "product not found").With("product_id", adj.ProductID)
		}

		before := p.Stock
		after := target(before, adj)
		p.Stock = after
		p.UpdatedAt = domain.FormatTime(now)

		reason := adj.Reason
		if reason == "" {
			reason = defaultReasons[adj.Type]
		}
		result = domain.StockAdjustment{
			ID:             s.ids.NewID(),
			ProductID:      p.ID,
			ProductName:    p.Name,
			AdjustmentType: adj.Type,
			Quantity:       after - before,
			StockBefore:    before,
			StockAfter:     after,
			Reason:         reason,
			CreatedBy:      adj.CreatedBy,
			CreatedAt:      domain.FormatTime(now),
		}

		if _, err := store.PutAndEnqueue(ctx, tx, domain.CollectionStockAdjustments, domain.ActionInsert, result, now); err != nil {
			return err
		}
		if _, err := store.PutAndEnqueue(ctx, tx, domain.CollectionProducts, domain.ActionUpdate, p, now); err != nil {
			return err
		}
		_, err = s.NotifyLowStock(ctx, tx, p, now)
		return err
	})
	if err != nil {
		return domain.StockAdjustment{}, domain.AsPersistence("adjust stock", err)
	}

	s.logger.Info("stock adjusted",
		"product_id", result.ProductID,
		"type", result.AdjustmentType,
		"before", result.StockBefore,
		"after", result.StockAfter,
	)
	return result, nil
}

// target returns the stock level after applying adj to before.
func target(before int64, adj Adjustment) int64 {
	q := adj.Quantity
	if q < 0 {
		q = -q
	}
	switch adj.Type {
	case domain.AdjustmentIn:
		return before + q
	case domain.AdjustmentOut:
		return max(0, before-q)
	default:
		return adj.Quantity
	}
}

// History returns the adjustments of a product, newest first. An empty
// productID returns every adjustment; limit <= 0 means no limit.
func (s *Service) History(ctx context.Context, productID string, limit int) ([]domain.StockAdjustment, error) {
	q := store.Query{
		Collection: domain.CollectionStockAdjustments,
		OrderBy:    "created_at",
		Desc:       true,
		Limit:      limit,
	}
	if productID != "" {
		q.Where = []store.Predicate{store.Equals{Field: "product_id", Value: productID}}
	}
	adjustments, err := store.CollectAs[domain.StockAdjustment](ctx, s.store, q)
	if err != nil {
		return nil, domain.AsPersistence("stock history", err)
	}
	return adjustments, nil
}

// LowStock returns active products at or below their minimum stock, by name.
func (s *Service) LowStock(ctx context.Context) ([]domain.Product, error) {
	products, err := store.CollectAs[domain.Product](ctx, s.store, lowStockQuery())
	if err != nil {
		return nil, domain.AsPersistence("low stock", err)
	}
	return products, nil
}

func lowStockQuery() store.Query {
	return store.Query{
		Collection: domain.CollectionProducts,
		Where:      []store.Predicate{store.Equals{Field: "is_active", Value: true}},
		OrderBy:    "name",
		Match: func(r record.Record) bool {
			stock, _ := r.Int("stock")
			minStock, _ := r.Int("min_stock")
			return stock <= minStock
		},
	}
}

// CheckLowStock raises a notification for every low-stock product that has
// not had one today. Returns the number of notifications created.
func (s *Service) CheckLowStock(ctx context.Context) (int, error) {
	now := s.clock.Now()
	created := 0
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		products, err := store.CollectAs[domain.Product](ctx, tx, lowStockQuery())
		if err != nil {
			return err
		}
		for _, p := range products {
			ok, err := s.NotifyLowStock(ctx, tx, p, now)
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, domain.AsPersistence("check low stock", err)
	}
	return created, nil
}
