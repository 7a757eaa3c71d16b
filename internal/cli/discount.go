package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/kasir/internal/discount"
	"github.com/roach88/kasir/internal/domain"
)

// NewDiscountCommand creates the discount command group.
func NewDiscountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discount",
		Short: "Check, generate and manage discount codes",
	}
	cmd.AddCommand(newDiscountResolveCommand(rootOpts))
	cmd.AddCommand(newDiscountGenerateCommand(rootOpts))
	cmd.AddCommand(newDiscountListCommand(rootOpts))
	cmd.AddCommand(newDiscountCreateCommand(rootOpts))
	cmd.AddCommand(newDiscountToggleCommand(rootOpts))
	return cmd
}

func newDiscountResolveCommand(rootOpts *RootOptions) *cobra.Command {
	var subtotal int64

	cmd := &cobra.Command{
		Use:           "resolve <code>",
		Short:         "Show the discount a code gives on a subtotal",
		Example:       "  kasir discount resolve hemat10 --subtotal 150000",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.resolver().Resolve(commandContext(cmd), args[0], subtotal)
			if err != nil {
				return a.out.Fail("discount rejected", err)
			}
			return a.out.Result(res, func(w io.Writer) {
				fmt.Fprintf(w, "%s (%s): -%s on %s\n", res.Discount.Code, res.Discount.Name, formatMoney(res.Amount), formatMoney(subtotal))
			})
		},
	}
	cmd.Flags().Int64Var(&subtotal, "subtotal", 0, "cart subtotal")
	return cmd
}

func newDiscountGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "generate",
		Short:         "Print an unused random discount code",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			code, err := a.catalog().GenerateCode(commandContext(cmd))
			if err != nil {
				return a.out.Fail("failed to generate code", err)
			}
			return a.out.Success(code)
		},
	}
}

func newDiscountListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List discounts, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ds, err := a.catalog().Discounts(commandContext(cmd))
			if err != nil {
				return a.out.Fail("failed to list discounts", err)
			}
			return a.out.Result(ds, func(w io.Writer) {
				for _, d := range ds {
					state := "active"
					if !d.IsActive {
						state = "inactive"
					}
					limit := "unlimited"
					if d.UsageLimit != nil && *d.UsageLimit > 0 {
						limit = fmt.Sprintf("%d/%d used", d.UsedCount, *d.UsageLimit)
					}
					fmt.Fprintf(w, "%-10s %-8s %-10s %s  %s\n", d.Code, state, d.Type, describeValue(d), limit)
				}
			})
		},
	}
}

func describeValue(d domain.Discount) string {
	if d.Type == domain.DiscountPercentage {
		return fmt.Sprintf("%d%%", d.Value)
	}
	return formatMoney(d.Value)
}

func newDiscountCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		d                   domain.Discount
		typ                 string
		minPurchase, maxAmt int64
		limit               int64
		start, end          string
		inactive            bool
	)

	cmd := &cobra.Command{
		Use:           "create",
		Short:         "Create a discount; the code is generated when --code is omitted",
		Example:       "  kasir discount create --name \"Hemat 10%\" --type percentage --value 10 --max 20000",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			d.Type = domain.DiscountType(typ)
			d.IsActive = !inactive
			if cmd.Flags().Changed("min") {
				d.MinPurchase = domain.Ptr(minPurchase)
			}
			if cmd.Flags().Changed("max") {
				d.MaxDiscount = domain.Ptr(maxAmt)
			}
			if cmd.Flags().Changed("limit") {
				d.UsageLimit = domain.Ptr(limit)
			}
			if start != "" {
				d.StartDate = domain.Ptr(start)
			}
			if end != "" {
				d.EndDate = domain.Ptr(end)
			}
			d.Code = discount.NormalizeCode(d.Code)

			saved, err := a.catalog().SaveDiscount(commandContext(cmd), d)
			if err != nil {
				return a.out.Fail("failed to create discount", err)
			}
			return a.out.Result(saved, func(w io.Writer) {
				fmt.Fprintf(w, "Discount %s created (%s)\n", saved.Code, describeValue(saved))
			})
		},
	}
	cmd.Flags().StringVar(&d.Code, "code", "", "discount code")
	cmd.Flags().StringVar(&d.Name, "name", "", "display name")
	cmd.Flags().StringVar(&typ, "type", string(domain.DiscountPercentage), "percentage|fixed")
	cmd.Flags().Int64Var(&d.Value, "value", 0, "percent (1-100) or fixed amount")
	cmd.Flags().Int64Var(&minPurchase, "min", 0, "minimum subtotal")
	cmd.Flags().Int64Var(&maxAmt, "max", 0, "cap on a percentage discount")
	cmd.Flags().Int64Var(&limit, "limit", 0, "maximum number of uses")
	cmd.Flags().StringVar(&start, "start", "", "first valid day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last valid day (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the discount switched off")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newDiscountToggleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "toggle <id>",
		Short:         "Switch a discount on or off",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			active, err := a.catalog().ToggleDiscount(commandContext(cmd), args[0])
			if err != nil {
				return a.out.Fail("failed to toggle discount", err)
			}
			return a.out.Result(map[string]bool{"active": active}, func(w io.Writer) {
				fmt.Fprintf(w, "Discount %s active: %t\n", args[0], active)
			})
		},
	}
}
