package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/kasir/internal/domain"
)

// NewQueueCommand creates the queue command group.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the sync queue and its dead letters",
	}

	list := &cobra.Command{
		Use:           "list",
		Short:         "List undelivered changes, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ops, err := a.store.PendingOperations(commandContext(cmd), time.Time{})
			if err != nil {
				return a.out.Fail("failed to read queue", domain.AsPersistence("read queue", err))
			}
			return a.out.Result(ops, func(w io.Writer) {
				if len(ops) == 0 {
					fmt.Fprintln(w, "Queue is empty")
					return
				}
				for _, op := range ops {
					fmt.Fprintf(w, "%5d  %-6s %-22s %-20v retries=%d", op.ID, op.Action, op.Table, op.Data["id"], op.Retries)
					if op.LastError != "" {
						fmt.Fprintf(w, "  %s", op.LastError)
					}
					fmt.Fprintln(w)
				}
			})
		},
	}

	dead := &cobra.Command{
		Use:           "dead",
		Short:         "List changes that exhausted their retries",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			letters, err := a.store.DeadLetters(commandContext(cmd))
			if err != nil {
				return a.out.Fail("failed to read dead letters", domain.AsPersistence("read dead letters", err))
			}
			return a.out.Result(letters, func(w io.Writer) {
				for _, dl := range letters {
					fmt.Fprintf(w, "%5d  %-6s %-22s %-20v %s  %s\n", dl.ID, dl.Action, dl.Table, dl.Data["id"], dl.FailedAt, dl.LastError)
				}
			})
		},
	}

	retry := &cobra.Command{
		Use:           "retry <dead-letter-id>",
		Short:         "Put a dead letter back on the queue",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "dead letter id must be a number", err)
			}
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			opID, err := a.store.RequeueDeadLetter(commandContext(cmd), id, a.clock.Now())
			if err != nil {
				return a.out.Fail("failed to requeue", domain.AsPersistence("requeue dead letter", err))
			}
			return a.out.Result(map[string]int64{"operation_id": opID}, func(w io.Writer) {
				fmt.Fprintf(w, "Dead letter %d re-queued as operation %d\n", id, opID)
			})
		},
	}

	cmd.AddCommand(list, dead, retry)
	return cmd
}
