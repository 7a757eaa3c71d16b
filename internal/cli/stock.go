package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/inventory"
)

// NewStockCommand creates the stock command group.
func NewStockCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Adjust and inspect stock levels",
	}
	cmd.AddCommand(newStockAdjustCommand(rootOpts))
	cmd.AddCommand(newStockLowCommand(rootOpts))
	cmd.AddCommand(newStockHistoryCommand(rootOpts))
	return cmd
}

func newStockAdjustCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		typ    string
		qty    int64
		reason string
	)

	cmd := &cobra.Command{
		Use:   "adjust <product-id>",
		Short: "Record stock received, removed, or counted",
		Long: `Record a manual stock change.

  --type in      add --qty to the stock
  --type out     remove --qty from the stock (never below zero)
  --type opname  set the stock to the counted --qty`,
		Example:       "  kasir stock adjust p-kopi --type opname --qty 37",
		Args:          cobra.ExactArgs(1),
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

			adj, err := a.inventory().Adjust(commandContext(cmd), inventory.Adjustment{
				ProductID: args[0],
				Type:      domain.AdjustmentType(typ),
				Quantity:  qty,
				Reason:    reason,
				CreatedBy: cashier.ID,
			})
			if err != nil {
				return a.out.Fail("failed to adjust stock", err)
			}
			return a.out.Result(adj, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %d -> %d (%s)\n", adj.ProductName, adj.StockBefore, adj.StockAfter, adj.Reason)
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "in|out|opname")
	cmd.Flags().Int64Var(&qty, "qty", 0, "quantity, or the counted stock for opname")
	cmd.Flags().StringVar(&reason, "reason", "", "reason (defaults per type)")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("qty")
	return cmd
}

func newStockLowCommand(rootOpts *RootOptions) *cobra.Command {
	var notify bool

	cmd := &cobra.Command{
		Use:           "low",
		Short:         "List active products at or below their minimum stock",
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
			svc := a.inventory()

			if notify {
				n, err := svc.CheckLowStock(ctx)
				if err != nil {
					return a.out.Fail("failed to check stock", err)
				}
				a.out.VerboseLog("%d new low-stock notifications", n)
			}
			products, err := svc.LowStock(ctx)
			if err != nil {
				return a.out.Fail("failed to list low stock", err)
			}
			return a.out.Result(products, func(w io.Writer) {
				if len(products) == 0 {
					fmt.Fprintln(w, "All products above minimum stock")
					return
				}
				for _, p := range products {
					fmt.Fprintf(w, "%-24s %4d (min %d)\n", p.Name, p.Stock, p.MinStock)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "also raise low-stock notifications")
	return cmd
}

func newStockHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "history [product-id]",
		Short:         "List stock adjustments, newest first",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			productID := ""
			if len(args) == 1 {
				productID = args[0]
			}
			adjs, err := a.inventory().History(commandContext(cmd), productID, limit)
			if err != nil {
				return a.out.Fail("failed to list adjustments", err)
			}
			return a.out.Result(adjs, func(w io.Writer) {
				for _, adj := range adjs {
					fmt.Fprintf(w, "%s  %-20s %-6s %+5d  %d -> %d  %s\n",
						adj.CreatedAt, adj.ProductName, adj.AdjustmentType, adj.Quantity, adj.StockBefore, adj.StockAfter, adj.Reason)
				}
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of adjustments")
	return cmd
}
