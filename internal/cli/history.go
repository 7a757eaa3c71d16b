package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/kasir/internal/checkout"
	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/report"
)

func newSaleListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		period, search, status string
		limit                  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List past sales, newest first",
		Long: `List committed sales in a period with the number of matches and the
total of completed sales among them.

Example:
  kasir sale list --period week
  kasir sale list --period all --search 0315 --status voided`,
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
			filter := report.Filter{Period: p, Search: search, Limit: limit}
			switch st := domain.TransactionStatus(status); st {
			case "", domain.TransactionCompleted, domain.TransactionVoided, domain.TransactionPending:
				filter.Status = st
			default:
				return a.out.Fail("invalid status", domain.NewValidationError(domain.CodeInvalidInput, "unknown status").With("status", status))
			}

			h, err := a.reports().Transactions(commandContext(cmd), filter)
			if err != nil {
				return a.out.Fail("failed to list sales", err)
			}
			return a.out.Result(h, func(w io.Writer) {
				if h.Count == 0 {
					fmt.Fprintln(w, "No sales")
					return
				}
				for _, t := range h.Transactions {
					fmt.Fprintf(w, "%s  %s  %-9s %-8s %s\n", t.TransactionNumber, t.CreatedAt, t.Status, t.PaymentMethod, formatMoney(t.Total))
				}
				if len(h.Transactions) < h.Count {
					fmt.Fprintf(w, "... %d more\n", h.Count-len(h.Transactions))
				}
				fmt.Fprintf(w, "%d sales, %s completed\n", h.Count, formatMoney(h.TotalSales))
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", string(report.PeriodToday), "today|week|month|year|all")
	cmd.Flags().StringVar(&search, "search", "", "part of the transaction number")
	cmd.Flags().StringVar(&status, "status", "", "completed|voided|pending")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of sales to print (0 for all)")
	return cmd
}

func newSaleShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <number-or-id>",
		Short: "Print a past sale's receipt",
		Long: `Look a sale up by its transaction number, in any case, or by its id,
and print the receipt.

Example:
  kasir sale show trx-20240315-1000-0000`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := commandContext(cmd)
			svc := a.reports()

			d, err := svc.ByNumber(ctx, args[0])
			if domain.IsNotFound(err) {
				d, err = svc.Transaction(ctx, args[0])
			}
			if err != nil {
				return a.out.Fail("sale not found", err)
			}
			return a.out.Result(d, func(w io.Writer) {
				printReceipt(w, checkout.Receipt{Transaction: d.Transaction, Items: d.Items})
				if d.Transaction.Status != domain.TransactionCompleted {
					fmt.Fprintf(w, "  Status:   %s\n", d.Transaction.Status)
				}
			})
		},
	}
}
