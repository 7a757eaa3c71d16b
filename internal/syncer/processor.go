package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/ident"
	"github.com/roach88/kasir/internal/record"
	"github.com/roach88/kasir/internal/store"
)

// Report summarizes one queue pass.
type Report struct {
	// Skipped is set when the pass did nothing because no remote is
	// configured or the till is offline.
	Skipped bool `json:"skipped,omitempty"`

	Attempted    int `json:"attempted"`
	Delivered    int `json:"delivered"`
	Failed       int `json:"failed"`
	DeadLettered int `json:"dead_lettered"`

	// Aborted is set when connectivity dropped mid-pass. Entries not yet
	// attempted were left untouched.
	Aborted bool `json:"aborted,omitempty"`
}

// Status is the data behind an online/offline/syncing indicator.
type Status struct {
	Syncing   bool      `json:"syncing"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
	Pending   int       `json:"pending"`
	Dead      int       `json:"dead"`
}

// Processor runs sync passes.
type Processor struct {
	store  *store.Store
	remote Remote
	cfg    Config
	clock  ident.Clock
	rand   func() float64
	logger *slog.Logger

	mu      sync.Mutex
	group   singleflight.Group
	trigger chan struct{}
	syncing atomic.Bool

	statusMu  sync.Mutex
	lastRun   time.Time
	lastError string
}

// Option configures a Processor.
type Option func(*Processor)

// WithConfig sets the tuning knobs. Zero fields keep their defaults.
func WithConfig(c Config) Option {
	return func(p *Processor) { p.cfg = c.withDefaults() }
}

// WithClock sets the clock used for due times and backoff.
func WithClock(c ident.Clock) Option {
	return func(p *Processor) { p.clock = c }
}

// WithRand sets the jitter source. r must return values in [0, 1).
func WithRand(r func() float64) Option {
	return func(p *Processor) { p.rand = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// NewProcessor creates a processor. A nil remote makes every pass a no-op.
func NewProcessor(s *store.Store, remote Remote, opts ...Option) *Processor {
	p := &Processor{
		store:   s,
		remote:  remote,
		cfg:     DefaultConfig(),
		clock:   ident.SystemClock{},
		logger:  slog.Default(),
		trigger: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Trigger asks a running Run loop for a queue pass. It never blocks;
// nudges that arrive while one is pending are coalesced.
func (p *Processor) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Status returns the current sync state.
func (p *Processor) Status(ctx context.Context) (Status, error) {
	pending, err := p.store.PendingCount(ctx)
	if err != nil {
		return Status{}, domain.AsPersistence("sync status", err)
	}
	dead, err := p.store.DeadLetters(ctx)
	if err != nil {
		return Status{}, domain.AsPersistence("sync status", err)
	}

	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	return Status{
		Syncing:   p.syncing.Load(),
		LastRun:   p.lastRun,
		LastError: p.lastError,
		Pending:   pending,
		Dead:      len(dead),
	}, nil
}

// serialize runs fn as the single in-flight execution for key, holding the
// pass lock. Callers arriving while key is in flight receive its result.
func (p *Processor) serialize(key string, fn func() (any, error)) (any, error) {
	v, err, _ := p.group.Do(key, func() (any, error) {
		p.mu.Lock()
		defer p.mu.Unlock()

		p.syncing.Store(true)
		defer p.syncing.Store(false)

		v, err := fn()
		p.statusMu.Lock()
		p.lastRun = p.clock.Now()
		p.lastError = ""
		if err != nil {
			p.lastError = err.Error()
		}
		p.statusMu.Unlock()
		return v, err
	})
	return v, err
}

func (p *Processor) ready(conn Connectivity) bool {
	return p.remote != nil && conn != nil && conn.Online()
}

// ProcessQueue delivers due entries oldest first. A delivered entry is
// removed, and a delivered transaction is marked synced, in one local
// transaction. A failed entry is rescheduled with backoff or, once it has
// failed MaxRetries times, dead-lettered. Connectivity is re-checked before
// every entry and a drop ends the pass.
//
// Remote failures are reported in the Report, not as the returned error;
// the error is reserved for local store failures and cancellation.
func (p *Processor) ProcessQueue(ctx context.Context, conn Connectivity) (Report, error) {
	v, err := p.serialize("queue", func() (any, error) {
		return p.processQueue(ctx, conn)
	})
	r, _ := v.(Report)
	return r, err
}

func (p *Processor) processQueue(ctx context.Context, conn Connectivity) (Report, error) {
	if !p.ready(conn) {
		return Report{Skipped: true}, nil
	}

	pending, err := p.store.PendingOperations(ctx, p.clock.Now())
	if err != nil {
		return Report{}, domain.AsPersistence("load sync queue", err)
	}

	var report Report
	// Records whose older entry failed in this pass. Later entries for them
	// wait so snapshots reach the remote in queue order.
	blocked := make(map[string]bool)
	for i, op := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		key := recordKey(op)
		if blocked[key] {
			continue
		}
		if !conn.Online() {
			report.Aborted = true
			p.logger.Info("connectivity lost, sync pass aborted", "remaining", len(pending)-i)
			break
		}

		report.Attempted++
		deliverErr := p.deliver(ctx, op)
		if deliverErr == nil {
			if err := p.complete(ctx, op); err != nil {
				return report, err
			}
			report.Delivered++
			continue
		}
		if ctx.Err() != nil {
			// Cancelled mid-call; the attempt does not count against the entry.
			return report, ctx.Err()
		}

		dead, err := p.fail(ctx, op, deliverErr)
		if err != nil {
			return report, err
		}
		blocked[key] = true
		if dead {
			report.DeadLettered++
		} else {
			report.Failed++
		}
	}

	p.logger.Debug("sync queue pass",
		"attempted", report.Attempted,
		"delivered", report.Delivered,
		"failed", report.Failed,
		"dead_lettered", report.DeadLettered,
	)
	return report, nil
}

// deliver sends one entry to the remote under RemoteTimeout.
func (p *Processor) deliver(ctx context.Context, op domain.PendingOperation) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.RemoteTimeout)
	defer cancel()

	rec := record.Record(op.Data)
	var err error
	switch op.Action {
	case domain.ActionInsert:
		err = p.remote.Insert(ctx, op.Table, rec)
	case domain.ActionUpdate:
		err = p.remote.Upsert(ctx, op.Table, rec)
	case domain.ActionDelete:
		err = p.remote.Delete(ctx, op.Table, rec.ID())
	default:
		err = fmt.Errorf("unknown action %q", op.Action)
	}
	if err != nil {
		return domain.NewSyncError(fmt.Sprintf("%s %s/%s", op.Action, op.Table, rec.ID()), err)
	}
	return nil
}

// complete removes a delivered entry and marks delivered transactions as
// synced.
func (p *Processor) complete(ctx context.Context, op domain.PendingOperation) error {
	err := p.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.CompleteOperation(ctx, op.ID); err != nil {
			return err
		}
		if op.Table != domain.CollectionTransactions || op.Action == domain.ActionDelete {
			return nil
		}
		id := record.Record(op.Data).ID()
		err := tx.Update(ctx, domain.CollectionTransactions, id, record.Record{"synced": true})
		if domain.IsNotFound(err) {
			return nil
		}
		return err
	})
	return domain.AsPersistence("complete sync entry", err)
}

// fail records a failed attempt and reports whether the entry was
// dead-lettered.
func (p *Processor) fail(ctx context.Context, op domain.PendingOperation, cause error) (bool, error) {
	now := p.clock.Now()
	retries := op.Retries + 1
	msg := errorMessage(cause)

	if retries >= p.cfg.MaxRetries {
		op.Retries = retries
		if err := p.store.DeadLetter(ctx, op, msg, now); err != nil {
			return false, domain.AsPersistence("dead-letter sync entry", err)
		}
		p.logger.Error("sync entry dead-lettered",
			"op_id", op.ID, "table", op.Table, "action", op.Action, "retries", retries, "error", msg)
		return true, nil
	}

	delay := p.cfg.jitter(p.cfg.Backoff(retries), p.rand)
	if err := p.store.FailOperation(ctx, op.ID, retries, now.Add(delay), msg); err != nil {
		return false, domain.AsPersistence("reschedule sync entry", err)
	}
	p.logger.Warn("sync entry failed",
		"op_id", op.ID, "table", op.Table, "action", op.Action, "retries", retries, "retry_in", delay, "error", msg)
	return false, nil
}

func recordKey(op domain.PendingOperation) string {
	return op.Table + "/" + record.Record(op.Data).ID()
}

// errorMessage returns the innermost message of a sync error, which is what
// is worth keeping on the queue entry.
func errorMessage(err error) string {
	var de *domain.Error
	if errors.As(err, &de) && de.Err != nil {
		return de.Err.Error()
	}
	return err.Error()
}
