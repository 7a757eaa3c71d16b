package catalog

import (
	"context"
	"strings"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/store"
)

// DefaultStoreName is reported until settings are saved.
const DefaultStoreName = "Kasir"

// Settings returns the store settings, or defaults if none were saved.
func (s *Service) Settings(ctx context.Context) (domain.StoreSettings, error) {
	st, ok, err := store.GetAs[domain.StoreSettings](ctx, s.store, domain.CollectionStoreSettings, domain.SettingsID)
	if err != nil {
		return domain.StoreSettings{}, domain.AsPersistence("settings", err)
	}
	if !ok {
		return domain.StoreSettings{ID: domain.SettingsID, Name: DefaultStoreName}, nil
	}
	return st, nil
}

// SaveSettings replaces the store settings.
func (s *Service) SaveSettings(ctx context.Context, st domain.StoreSettings) (domain.StoreSettings, error) {
	st.ID = domain.SettingsID
	st.Name = strings.TrimSpace(st.Name)
	if err := required("name", st.Name); err != nil {
		return domain.StoreSettings{}, err
	}
	now := s.clock.Now()
	st.UpdatedAt = domain.FormatTime(now)
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		_, ok, err := tx.Get(ctx, domain.CollectionStoreSettings, domain.SettingsID)
		if err != nil {
			return err
		}
		return save(ctx, tx, domain.CollectionStoreSettings, !ok, st, now)
	})
	if err != nil {
		return domain.StoreSettings{}, domain.AsPersistence("save settings", err)
	}
	return st, nil
}
