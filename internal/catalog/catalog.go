// Package catalog holds the back-office writes: products, categories,
// customers, discounts and store settings, plus bulk catalog import.
//
// Every write that the remote should see is queued for sync in the same
// transaction as the write itself.
package catalog

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/ident"
	"github.com/roach88/kasir/internal/store"
)

// Service performs catalog administration.
type Service struct {
	store  *store.Store
	ids    ident.IDGenerator
	codes  ident.Codes
	clock  ident.Clock
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator sets the id generator.
func WithIDGenerator(g ident.IDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// WithCodes sets the discount code source.
func WithCodes(c ident.Codes) Option {
	return func(s *Service) { s.codes = c }
}

// WithClock sets the clock.
func WithClock(c ident.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a catalog service.
func NewService(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		ids:    ident.UUIDv7Generator{},
		clock:  ident.SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// save writes v and queues it as an insert when isNew, an update otherwise.
func save(ctx context.Context, a store.Accessor, collection string, isNew bool, v any, now time.Time) error {
	action := domain.ActionUpdate
	if isNew {
		action = domain.ActionInsert
	}
	_, err := store.PutAndEnqueue(ctx, a, collection, action, v, now)
	return err
}

// remove deletes a record and queues the delete.
func remove(ctx context.Context, tx *store.Tx, collection, id string, now time.Time) error {
	if err := tx.Delete(ctx, collection, id); err != nil {
		return err
	}
	_, err := tx.Enqueue(ctx, collection, domain.ActionDelete, map[string]any{"id": id}, now)
	return err
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.NewValidationError(domain.CodeInvalidInput, field+" is required")
	}
	return nil
}

func nonNegative(field string, value int64) error {
	if value < 0 {
		return domain.NewValidationError(domain.CodeInvalidAmount, field+" cannot be negative")
	}
	return nil
}

// trimmed returns nil for blank optional strings.
func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
