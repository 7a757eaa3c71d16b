package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/kasir/internal/syncer"
)

// NewSyncCommand creates the sync command group.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Deliver queued changes and refresh the catalog",
	}
	cmd.AddCommand(newSyncOnceCommand(rootOpts))
	cmd.AddCommand(newSyncRunCommand(rootOpts))
	cmd.AddCommand(newSyncStatusCommand(rootOpts))
	return cmd
}

func newSyncOnceCommand(rootOpts *RootOptions) *cobra.Command {
	var queueOnly bool

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run one full sync pass",
		Long: `Run one sync pass against the configured remote.

A full pass re-queues unsynced sales, delivers every due queue entry,
then replaces the local products and categories with the remote's.
With --queue-only only the delivery step runs.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := commandContext(cmd)

			p, closeRemote, err := a.processor(ctx)
			if err != nil {
				return err
			}
			defer closeRemote()

			if queueOnly {
				report, err := p.ProcessQueue(ctx, syncer.Static(true))
				if err != nil {
					return a.out.Fail("sync failed", err)
				}
				return a.out.Result(report, func(w io.Writer) {
					printQueueReport(w, report)
				})
			}

			report, err := p.FullSync(ctx, syncer.Static(true))
			if err != nil {
				return a.out.Fail("sync failed", err)
			}
			return a.out.Result(report, func(w io.Writer) {
				if report.Queue.Skipped {
					fmt.Fprintln(w, "No remote configured, nothing to do")
					return
				}
				if report.Requeued > 0 {
					fmt.Fprintf(w, "Re-queued %d unsynced sales\n", report.Requeued)
				}
				printQueueReport(w, report.Queue)
				fmt.Fprintf(w, "Pulled %d products, %d categories\n", report.Pull.Products, report.Pull.Categories)
				for _, t := range report.Pull.Deferred {
					fmt.Fprintf(w, "  %s not refreshed: local changes still queued\n", t)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&queueOnly, "queue-only", false, "only deliver queued changes")
	return cmd
}

func printQueueReport(w io.Writer, r syncer.Report) {
	if r.Skipped {
		fmt.Fprintln(w, "No remote configured, nothing to do")
		return
	}
	fmt.Fprintf(w, "Delivered %d of %d (%d failed, %d dead-lettered)\n",
		r.Delivered, r.Attempted, r.Failed, r.DeadLettered)
	if r.Aborted {
		fmt.Fprintln(w, "Pass aborted: connection lost")
	}
}

func newSyncRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Keep syncing in the foreground until interrupted",
		Long: `Run the sync loop: a full sync at startup, then a queue pass every
sync.interval. Stop with Ctrl-C.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd)
			defer cancel()

			p, closeRemote, err := a.processor(ctx)
			if err != nil {
				return err
			}
			defer closeRemote()

			a.logger.Info("sync loop started", "interval", a.cfg.Sync.Interval, "remote", a.cfg.Remote.Kind)
			err = p.Run(ctx, syncer.NewFlag(true), nil)
			if err != nil && !errors.Is(err, context.Canceled) {
				return a.out.Fail("sync loop stopped", err)
			}

			status, err := p.Status(context.Background())
			if err != nil {
				return a.out.Fail("failed to read sync status", err)
			}
			return a.out.Result(status, func(w io.Writer) {
				printStatus(w, status)
			})
		},
	}
}

func newSyncStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show pending and dead-lettered sync entries",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p := syncer.NewProcessor(a.store, nil, syncer.WithClock(a.clock), syncer.WithLogger(a.logger))
			status, err := p.Status(commandContext(cmd))
			if err != nil {
				return a.out.Fail("failed to read sync status", err)
			}
			return a.out.Result(status, func(w io.Writer) {
				printStatus(w, status)
			})
		},
	}
}

func printStatus(w io.Writer, s syncer.Status) {
	fmt.Fprintf(w, "Pending:       %d\n", s.Pending)
	fmt.Fprintf(w, "Dead-lettered: %d\n", s.Dead)
	if !s.LastRun.IsZero() {
		fmt.Fprintf(w, "Last run:      %s\n", s.LastRun.Format("2006-01-02 15:04:05"))
	}
	if s.LastError != "" {
		fmt.Fprintf(w, "Last error:    %s\n", s.LastError)
	}
}
