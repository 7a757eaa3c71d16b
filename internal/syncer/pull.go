package syncer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/record"
	"github.com/roach88/kasir/internal/store"
)

// PullReport summarizes a catalog pull.
type PullReport struct {
	Skipped bool `json:"skipped,omitempty"`

	Products   int `json:"products"`
	Categories int `json:"categories"`

	// Deferred lists tables that were not replaced because local changes
	// to them are still queued.
	Deferred []string `json:"deferred,omitempty"`
}

// PullCatalog replaces the local products and categories with the remote's.
// Each table is replaced wholesale in one transaction. A table with queued
// local changes is left alone until those changes have been delivered.
func (p *Processor) PullCatalog(ctx context.Context, conn Connectivity) (PullReport, error) {
	v, err := p.serialize("pull", func() (any, error) {
		return p.pullCatalog(ctx, conn)
	})
	r, _ := v.(PullReport)
	return r, err
}

func (p *Processor) pullCatalog(ctx context.Context, conn Connectivity) (PullReport, error) {
	if !p.ready(conn) {
		return PullReport{Skipped: true}, nil
	}

	var report PullReport
	replace := make(map[string]bool, 2)
	for _, table := range []string{domain.CollectionProducts, domain.CollectionCategories} {
		busy, err := p.store.HasPendingFor(ctx, table)
		if err != nil {
			return report, domain.AsPersistence("catalog pull", err)
		}
		if busy {
			report.Deferred = append(report.Deferred, table)
			p.logger.Info("catalog pull deferred, local changes queued", "table", table)
			continue
		}
		replace[table] = true
	}
	if len(replace) == 0 {
		return report, nil
	}

	var products, categories []record.Record
	g, gctx := errgroup.WithContext(ctx)
	if replace[domain.CollectionProducts] {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(gctx, p.cfg.RemoteTimeout)
			defer cancel()
			var err error
			products, err = p.remote.FetchProducts(ctx)
			return err
		})
	}
	if replace[domain.CollectionCategories] {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(gctx, p.cfg.RemoteTimeout)
			defer cancel()
			var err error
			categories, err = p.remote.FetchCategories(ctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return report, domain.NewSyncError("fetch catalog", err)
	}

	err := p.store.WithTx(ctx, func(tx *store.Tx) error {
		if replace[domain.CollectionProducts] {
			n, err := replaceAll(ctx, tx, domain.CollectionProducts, products)
			if err != nil {
				return err
			}
			report.Products = n
		}
		if replace[domain.CollectionCategories] {
			n, err := replaceAll(ctx, tx, domain.CollectionCategories, categories)
			if err != nil {
				return err
			}
			report.Categories = n
		}
		return nil
	})
	if err != nil {
		return PullReport{Deferred: report.Deferred}, domain.AsPersistence("replace catalog", err)
	}

	p.logger.Info("catalog pulled", "products", report.Products, "categories", report.Categories)
	return report, nil
}

// replaceAll clears collection and writes recs. Records without an id are
// dropped.
func replaceAll(ctx context.Context, tx *store.Tx, collection string, recs []record.Record) (int, error) {
	if err := tx.Clear(ctx, collection); err != nil {
		return 0, err
	}
	keep := make([]record.Record, 0, len(recs))
	for _, rec := range recs {
		if rec.ID() != "" {
			keep = append(keep, rec)
		}
	}
	if err := tx.BulkPut(ctx, collection, keep); err != nil {
		return 0, err
	}
	return len(keep), nil
}
