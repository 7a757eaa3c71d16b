package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewHoldCommand creates the hold command group. Carts are parked with
// "kasir sale --hold" and resumed with "kasir sale --resume".
func NewHoldCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hold",
		Short: "Inspect parked carts",
	}

	var all bool
	list := &cobra.Command{
		Use:           "list",
		Short:         "List held carts, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cashierID := a.cfg.Cashier.ID
			if all {
				cashierID = ""
			}
			held, err := a.committer(nil).Held(commandContext(cmd), cashierID)
			if err != nil {
				return a.out.Fail("failed to list held carts", err)
			}
			return a.out.Result(held, func(w io.Writer) {
				if len(held) == 0 {
					fmt.Fprintln(w, "No held carts")
					return
				}
				for _, h := range held {
					note := ""
					if h.Note != nil {
						note = "  " + *h.Note
					}
					fmt.Fprintf(w, "%s  %s  %d lines  %s%s\n", h.ID, h.CreatedAt, len(h.Items), formatMoney(h.Total), note)
				}
			})
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include every cashier's carts")
	cmd.AddCommand(list)
	return cmd
}
