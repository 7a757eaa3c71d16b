package inventory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/record"
	"github.com/roach88/kasir/internal/store"
)

// Notifications live on the device only and are never queued for sync.

// NotifyLowStock creates a low_stock notification for p through a when p is
// active, at or below its minimum, and has not been notified on the current
// calendar day. Reports whether a notification was created.
func (s *Service) NotifyLowStock(ctx context.Context, a store.Accessor, p domain.Product, now time.Time) (bool, error) {
	if !p.IsActive || !p.LowStock() {
		return false, nil
	}

	dayStart, err := domain.ParseBound(domain.DayKey(now, s.location), false, s.location)
	if err != nil {
		return false, err
	}
	n, err := a.Count(ctx, store.Query{
		Collection: domain.CollectionNotifications,
		Where: []store.Predicate{
			store.Equals{Field: "type", Value: domain.NotificationLowStock},
			store.Compare{Field: "created_at", Op: store.OpGreaterEqual, Value: domain.FormatTime(dayStart)},
		},
		Match: func(r record.Record) bool {
			data, _ := r["data"].(map[string]any)
			return data["product_id"] == p.ID
		},
	})
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	message := fmt.Sprintf("%s has %d left (minimum %d)", p.Name, p.Stock, p.MinStock)
	if p.Stock == 0 {
		message = fmt.Sprintf("%s is out of stock", p.Name)
	}
	note := domain.Notification{
		ID:      s.ids.NewID(),
		Type:    domain.NotificationLowStock,
		Title:   "Low stock",
		Message: message,
		Data: map[string]string{
			"product_id": p.ID,
			"stock":      strconv.FormatInt(p.Stock, 10),
			"min_stock":  strconv.FormatInt(p.MinStock, 10),
		},
		CreatedAt: domain.FormatTime(now),
	}
	if err := store.PutAs(ctx, a, domain.CollectionNotifications, note); err != nil {
		return false, err
	}
	s.logger.Debug("low stock notification", "product_id", p.ID, "stock", p.Stock)
	return true, nil
}

// Unread returns unread notifications, newest first.
func (s *Service) Unread(ctx context.Context) ([]domain.Notification, error) {
	notes, err := store.CollectAs[domain.Notification](ctx, s.store, store.Query{
		Collection: domain.CollectionNotifications,
		Where:      []store.Predicate{store.Equals{Field: "is_read", Value: false}},
		OrderBy:    "created_at",
		Desc:       true,
	})
	if err != nil {
		return nil, domain.AsPersistence("unread notifications", err)
	}
	return notes, nil
}

// Recent returns the latest notifications, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]domain.Notification, error) {
	notes, err := store.CollectAs[domain.Notification](ctx, s.store, store.Query{
		Collection: domain.CollectionNotifications,
		OrderBy:    "created_at",
		Desc:       true,
		Limit:      limit,
	})
	if err != nil {
		return nil, domain.AsPersistence("recent notifications", err)
	}
	return notes, nil
}

// MarkRead marks one notification as read.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	return domain.AsPersistence("mark notification read",
		s.store.Update(ctx, domain.CollectionNotifications, id, record.Record{"is_read": true}))
}

// MarkAllRead marks every unread notification as read and returns how many
// changed.
func (s *Service) MarkAllRead(ctx context.Context) (int, error) {
	changed := 0
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		// Collect first: updating is_read while paging over is_read=false
		// would shift the offsets.
		var ids []string
		for rec, err := range tx.Query(ctx, store.Query{
			Collection: domain.CollectionNotifications,
			Where:      []store.Predicate{store.Equals{Field: "is_read", Value: false}},
		}) {
			if err != nil {
				return err
			}
			ids = append(ids, rec.ID())
		}
		for _, id := range ids {
			if err := tx.Update(ctx, domain.CollectionNotifications, id, record.Record{"is_read": true}); err != nil {
				return err
			}
		}
		changed = len(ids)
		return nil
	})
	if err != nil {
		return 0, domain.AsPersistence("mark all notifications read", err)
	}
	return changed, nil
}

// DeleteNotification removes a notification. Deleting a missing id is not
// an error.
func (s *Service) DeleteNotification(ctx context.Context, id string) error {
	return domain.AsPersistence("delete notification",
		s.store.Delete(ctx, domain.CollectionNotifications, id))
}
