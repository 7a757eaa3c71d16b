package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/kasir/internal/domain"
)

// NewShiftCommand creates the shift command group.
func NewShiftCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shift",
		Short: "Open, close and inspect cashier shifts",
	}
	cmd.AddCommand(newShiftOpenCommand(rootOpts))
	cmd.AddCommand(newShiftCloseCommand(rootOpts))
	cmd.AddCommand(newShiftCurrentCommand(rootOpts))
	cmd.AddCommand(newShiftHistoryCommand(rootOpts))
	return cmd
}

func newShiftOpenCommand(rootOpts *RootOptions) *cobra.Command {
	var cash int64
	var notes string

	cmd := &cobra.Command{
		Use:           "open",
		Short:         "Open a shift with the counted opening cash",
		Example:       "  kasir shift open --cashier-id c-alice --cash 500000",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			cashier, err := a.cashier()
			if err != nil {
				return err
			}

			sh, err := a.shifts().Open(commandContext(cmd), cashier, cash, notes)
			if err != nil {
				return a.out.Fail("failed to open shift", err)
			}
			return a.out.Result(sh, func(w io.Writer) {
				fmt.Fprintf(w, "Shift %s opened by %s with %s\n", sh.ID, sh.CashierName, formatMoney(sh.OpeningCash))
			})
		},
	}
	cmd.Flags().Int64Var(&cash, "cash", 0, "opening cash in the drawer")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	return cmd
}

func newShiftCloseCommand(rootOpts *RootOptions) *cobra.Command {
	var cash int64
	var notes string

	cmd := &cobra.Command{
		Use:           "close",
		Short:         "Close the open shift with the counted closing cash",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			cashier, err := a.cashier()
			if err != nil {
				return err
			}

			sh, err := a.shifts().Close(commandContext(cmd), cashier.ID, cash, notes)
			if err != nil {
				return a.out.Fail("failed to close shift", err)
			}
			return a.out.Result(sh, func(w io.Writer) { printShift(w, sh) })
		},
	}
	cmd.Flags().Int64Var(&cash, "cash", 0, "closing cash counted in the drawer")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("cash")
	return cmd
}

func newShiftCurrentCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "current",
		Short:         "Show the open shift",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sh, ok, err := a.shifts().Current(commandContext(cmd), a.cfg.Cashier.ID)
			if err != nil {
				return a.out.Fail("failed to read shift", err)
			}
			if !ok {
				return a.out.Result(nil, func(w io.Writer) { fmt.Fprintln(w, "No open shift") })
			}
			return a.out.Result(sh, func(w io.Writer) { printShift(w, sh) })
		},
	}
}

func newShiftHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "history",
		Short:         "List recent shifts, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			shifts, err := a.shifts().History(commandContext(cmd), a.cfg.Cashier.ID, limit)
			if err != nil {
				return a.out.Fail("failed to list shifts", err)
			}
			return a.out.Result(shifts, func(w io.Writer) {
				if len(shifts) == 0 {
					fmt.Fprintln(w, "No shifts")
					return
				}
				for _, sh := range shifts {
					fmt.Fprintf(w, "%s  %-6s  %-12s  %3d sales  %s\n",
						sh.OpenedAt, sh.Status, sh.CashierName, sh.TotalTransactions, formatMoney(sh.TotalSales))
				}
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of shifts")
	return cmd
}

func printShift(w io.Writer, sh domain.Shift) {
	fmt.Fprintf(w, "Shift %s (%s)\n", sh.ID, sh.Status)
	fmt.Fprintf(w, "  Cashier:       %s\n", sh.CashierName)
	fmt.Fprintf(w, "  Opened:        %s\n", sh.OpenedAt)
	if sh.ClosedAt != nil {
		fmt.Fprintf(w, "  Closed:        %s\n", *sh.ClosedAt)
	}
	fmt.Fprintf(w, "  Opening cash:  %s\n", formatMoney(sh.OpeningCash))
	fmt.Fprintf(w, "  Sales:         %s (%d transactions)\n", formatMoney(sh.TotalSales), sh.TotalTransactions)
	fmt.Fprintf(w, "  Expected cash: %s\n", formatMoney(sh.ExpectedCash))
	if sh.ClosingCash != nil {
		fmt.Fprintf(w, "  Closing cash:  %s\n", formatMoney(*sh.ClosingCash))
	}
	if sh.Difference != nil {
		fmt.Fprintf(w, "  Difference:    %s\n", formatMoney(*sh.Difference))
	}
}
