package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/kasir/internal/catalog"
	"github.com/roach88/kasir/internal/checkout"
	"github.com/roach88/kasir/internal/config"
	"github.com/roach88/kasir/internal/discount"
	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/ident"
	"github.com/roach88/kasir/internal/inventory"
	"github.com/roach88/kasir/internal/remote"
	"github.com/roach88/kasir/internal/report"
	"github.com/roach88/kasir/internal/shift"
	"github.com/roach88/kasir/internal/store"
	"github.com/roach88/kasir/internal/syncer"
)

// app is the wiring shared by commands that work on the till database.
type app struct {
	cfg    config.Config
	store  *store.Store
	loc    *time.Location
	clock  ident.Clock
	ids    ident.IDGenerator
	codes  ident.Codes
	logger *slog.Logger
	out    *OutputFormatter
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// openApp loads configuration and opens the database. The caller must
// call Close.
func openApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	out := newFormatter(opts, cmd)
	if opts.viper == nil {
		opts.viper = config.New()
	}

	cfg, err := config.Load(opts.viper, opts.ConfigFile)
	if err != nil {
		_ = out.Error(ErrCodeGeneric, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	loc, err := cfg.TimeLocation()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	slog.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		_ = out.Error(ErrCodeGeneric, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	a := &app{
		cfg:    cfg,
		store:  st,
		loc:    loc,
		clock:  opts.Clock,
		ids:    opts.IDs,
		codes:  ident.Codes{Location: loc},
		logger: slog.Default(),
		out:    out,
	}
	if a.clock == nil {
		a.clock = ident.SystemClock{}
	}
	if a.ids == nil {
		a.ids = ident.UUIDv7Generator{}
	}
	if opts.Codes != nil {
		a.codes = *opts.Codes
		a.codes.Location = loc
	}
	return a, nil
}

// Close closes the database.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

func (a *app) shifts() *shift.Manager {
	scope, _ := a.cfg.ShiftScope()
	return shift.NewManager(a.store,
		shift.WithScope(scope),
		shift.WithIDGenerator(a.ids),
		shift.WithClock(a.clock),
		shift.WithLogger(a.logger),
	)
}

func (a *app) inventory() *inventory.Service {
	return inventory.NewService(a.store,
		inventory.WithIDGenerator(a.ids),
		inventory.WithClock(a.clock),
		inventory.WithLocation(a.loc),
		inventory.WithLogger(a.logger),
	)
}

func (a *app) catalog() *catalog.Service {
	return catalog.NewService(a.store,
		catalog.WithIDGenerator(a.ids),
		catalog.WithCodes(a.codes),
		catalog.WithClock(a.clock),
		catalog.WithLogger(a.logger),
	)
}

func (a *app) resolver() *discount.Resolver {
	return discount.NewResolver(a.store,
		discount.WithClock(a.clock),
		discount.WithLocation(a.loc),
		discount.WithLogger(a.logger),
	)
}

func (a *app) committer(n checkout.Notifier) *checkout.Committer {
	opts := []checkout.Option{
		checkout.WithShifts(a.shifts()),
		checkout.WithInventory(a.inventory()),
		checkout.WithIDGenerator(a.ids),
		checkout.WithCodes(a.codes),
		checkout.WithClock(a.clock),
		checkout.WithLocation(a.loc),
		checkout.WithLogger(a.logger),
	}
	if n != nil {
		opts = append(opts, checkout.WithNotifier(n))
	}
	return checkout.NewCommitter(a.store, opts...)
}

func (a *app) reports() *report.Service {
	return report.NewService(a.store,
		report.WithInventory(a.inventory()),
		report.WithClock(a.clock),
		report.WithLocation(a.loc),
		report.WithLogger(a.logger),
	)
}

// cashier returns the configured cashier, which every till write needs.
func (a *app) cashier() (shift.Cashier, error) {
	c := a.cfg.CashierIdentity()
	if c.ID == "" {
		_ = a.out.Error(ErrCodeGeneric, "no cashier configured (use --cashier-id or KASIR_CASHIER_ID)", nil)
		return shift.Cashier{}, NewExitError(ExitCommandError, "no cashier configured")
	}
	if c.Name == "" {
		c.Name = c.ID
	}
	return c, nil
}

// openRemote builds the configured remote. A nil Remote means sync is
// disabled.
func (a *app) openRemote(ctx context.Context) (syncer.Remote, func(), error) {
	switch a.cfg.Remote.Kind {
	case config.RemoteHTTP:
		return remote.NewHTTPClient(a.cfg.Remote.URL,
			remote.WithAPIKey(a.cfg.Remote.Key),
			remote.WithHTTPLogger(a.logger),
		), func() {}, nil
	case config.RemotePostgres:
		pg, err := remote.OpenPostgres(ctx, a.cfg.Remote.DSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { _ = pg.Close() }, nil
	}
	return nil, func() {}, nil
}

// processor builds a sync processor over the configured remote.
func (a *app) processor(ctx context.Context) (*syncer.Processor, func(), error) {
	r, closeRemote, err := a.openRemote(ctx)
	if err != nil {
		_ = a.out.Error(domain.CodeRemoteUnavailable, err.Error(), nil)
		return nil, nil, WrapExitError(ExitCommandError, "failed to connect to remote", err)
	}
	p := syncer.NewProcessor(a.store, r,
		syncer.WithConfig(a.cfg.SyncerConfig()),
		syncer.WithClock(a.clock),
		syncer.WithLogger(a.logger),
	)
	return p, closeRemote, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM or when the
// command's own context ends.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan) // Prevent signal handler leak
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()
	return ctx, cancel
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
