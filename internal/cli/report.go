package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/kasir/internal/report"
)

// NewReportCommand creates the report command group.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize sales",
	}
	cmd.AddCommand(newReportSalesCommand(rootOpts))
	cmd.AddCommand(newReportTodayCommand(rootOpts))
	return cmd
}

func newReportSalesCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		period string
		top    int
	)

	cmd := &cobra.Command{
		Use:   "sales",
		Short: "Completed sales per day and best-selling products",
		Long: `Total completed sales in a period, broken down per calendar day, with
the products sold most by quantity.

Example:
  kasir report sales --period month --top 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := report.ParsePeriod(period)
			if err != nil {
				return a.out.Fail("invalid period", err)
			}
			r, err := a.reports().Sales(commandContext(cmd), p, top)
			if err != nil {
				return a.out.Fail("failed to build sales report", err)
			}
			return a.out.Result(r, func(w io.Writer) {
				fmt.Fprintf(w, "Sales (%s)\n", r.Period)
				fmt.Fprintf(w, "  Total:        %s\n", formatMoney(r.TotalSales))
				fmt.Fprintf(w, "  Transactions: %d\n", r.Transactions)
				fmt.Fprintf(w, "  Items sold:   %d\n", r.ItemsSold)
				fmt.Fprintf(w, "  Average:      %s\n", formatMoney(r.Average))
				if len(r.Daily) > 0 {
					fmt.Fprintln(w, "Daily")
					for _, d := range r.Daily {
						fmt.Fprintf(w, "  %s  %4d  %s\n", d.Date, d.Transactions, formatMoney(d.Sales))
					}
				}
				if len(r.TopProducts) > 0 {
					fmt.Fprintln(w, "Top products")
					for i, ps := range r.TopProducts {
						fmt.Fprintf(w, "  %2d. %-24s %4d  %s\n", i+1, ps.ProductName, ps.Quantity, formatMoney(ps.Sales))
					}
				}
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", string(report.PeriodWeek), "today|week|month|year|all")
	cmd.Flags().IntVar(&top, "top", report.DefaultTopProducts, "number of best-selling products")
	return cmd
}

func newReportTodayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "today",
		Short:         "Today's sales, low stock and the latest transactions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.reports().Today(commandContext(cmd))
			if err != nil {
				return a.out.Fail("failed to build dashboard", err)
			}
			return a.out.Result(d, func(w io.Writer) {
				fmt.Fprintf(w, "%s\n", d.Date)
				fmt.Fprintf(w, "  Sales:        %s\n", formatMoney(d.TotalSales))
				fmt.Fprintf(w, "  Transactions: %d\n", d.Transactions)
				fmt.Fprintf(w, "  Items sold:   %d\n", d.ItemsSold)
				fmt.Fprintf(w, "  Low stock:    %d\n", d.LowStock)
				if len(d.Recent) > 0 {
					fmt.Fprintln(w, "Recent")
					for _, t := range d.Recent {
						fmt.Fprintf(w, "  %s  %-9s %s\n", t.TransactionNumber, t.Status, formatMoney(t.Total))
					}
				}
			})
		},
	}
}
