package syncer

import (
	"context"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/record"
	"github.com/roach88/kasir/internal/store"
)

// SyncTransactions re-queues completed sales that are not synced and have no
// queue entry or dead letter, together with their items. It never talks to
// the remote itself: delivery happens through ProcessQueue. Returns the
// number of transactions re-queued.
func (p *Processor) SyncTransactions(ctx context.Context, conn Connectivity) (int, error) {
	v, err := p.serialize("sweep", func() (any, error) {
		return p.syncTransactions(ctx, conn)
	})
	n, _ := v.(int)
	return n, err
}

func (p *Processor) syncTransactions(ctx context.Context, conn Connectivity) (int, error) {
	if !p.ready(conn) {
		return 0, nil
	}

	now := p.clock.Now()
	requeued := 0
	err := p.store.WithTx(ctx, func(tx *store.Tx) error {
		var orphans []record.Record
		for rec, err := range tx.Query(ctx, store.Query{
			Collection: domain.CollectionTransactions,
			Where:      []store.Predicate{store.Equals{Field: "synced", Value: false}},
			OrderBy:    "created_at",
		}) {
			if err != nil {
				return err
			}
			queued, err := tx.IsQueued(ctx, domain.CollectionTransactions, rec.ID())
			if err != nil {
				return err
			}
			if !queued {
				orphans = append(orphans, rec)
			}
		}

		for _, rec := range orphans {
			if _, err := tx.Enqueue(ctx, domain.CollectionTransactions, domain.ActionUpdate, rec, now); err != nil {
				return err
			}
			for item, err := range tx.Query(ctx, store.Query{
				Collection: domain.CollectionTransactionItems,
				Where:      []store.Predicate{store.Equals{Field: "transaction_id", Value: rec.ID()}},
			}) {
				if err != nil {
					return err
				}
				if _, err := tx.Enqueue(ctx, domain.CollectionTransactionItems, domain.ActionUpdate, item, now); err != nil {
					return err
				}
			}
			p.logger.Info("unsynced sale re-queued", "transaction_id", rec.ID())
		}
		requeued = len(orphans)
		return nil
	})
	if err != nil {
		return 0, domain.AsPersistence("requeue unsynced sales", err)
	}
	return requeued, nil
}

// FullReport summarizes a full sync.
type FullReport struct {
	Requeued int        `json:"requeued"`
	Queue    Report     `json:"queue"`
	Pull     PullReport `json:"pull"`
}

// FullSync re-queues unsynced sales, drains the queue, then pulls the
// catalog, as one serialized pass. A pull failure does not undo deliveries.
func (p *Processor) FullSync(ctx context.Context, conn Connectivity) (FullReport, error) {
	v, err := p.serialize("full", func() (any, error) {
		var report FullReport
		if !p.ready(conn) {
			report.Queue.Skipped = true
			report.Pull.Skipped = true
			return report, nil
		}

		n, err := p.syncTransactions(ctx, conn)
		if err != nil {
			return report, err
		}
		report.Requeued = n

		report.Queue, err = p.processQueue(ctx, conn)
		if err != nil {
			return report, err
		}

		report.Pull, err = p.pullCatalog(ctx, conn)
		return report, err
	})
	r, _ := v.(FullReport)
	return r, err
}
