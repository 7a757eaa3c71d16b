package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewWipeCommand creates the wipe command.
func NewWipeCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every local record, queued operation and dead letter",
		Long: `Delete all local data. Queued operations that were not yet delivered are
lost, so run "kasir sync once" first if the remote should keep them.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				_ = newFormatter(rootOpts, cmd).Error(ErrCodeGeneric, "refusing to wipe without --yes", nil)
				return NewExitError(ExitCommandError, "refusing to wipe without --yes")
			}
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			pending, err := a.store.PendingCount(commandContext(cmd))
			if err != nil {
				return a.out.Fail("failed to count queue", err)
			}
			if err := a.store.ClearAll(commandContext(cmd)); err != nil {
				return a.out.Fail("failed to wipe database", err)
			}
			a.logger.Warn("database wiped", "path", a.cfg.Database, "undelivered", pending)
			return a.out.Result(map[string]int{"undelivered": pending}, func(w io.Writer) {
				fmt.Fprintf(w, "Wiped %s (%d undelivered operations dropped)\n", a.cfg.Database, pending)
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the wipe")
	return cmd
}
