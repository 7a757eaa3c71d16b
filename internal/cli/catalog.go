package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/kasir/internal/catalog"
	"github.com/roach88/kasir/internal/domain"
)

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Import and browse products, categories and customers",
	}
	cmd.AddCommand(newCatalogImportCommand(rootOpts))
	cmd.AddCommand(newCatalogProductsCommand(rootOpts))
	cmd.AddCommand(newCatalogCategoriesCommand(rootOpts))
	cmd.AddCommand(newCatalogCustomersCommand(rootOpts))
	return cmd
}

func newCatalogImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a catalog file (.yaml or .cue)",
		Long: `Validate a catalog file and apply it in one transaction.

Categories match by name, products by barcode (or name when there is none),
customers by phone (or name), and discounts by code. Matching records are
updated; the rest are created. Every change is queued for sync.`,
		Example:       "  kasir catalog import catalog.yaml",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.catalog().Import(commandContext(cmd), args[0])
			if err != nil {
				return a.out.Fail("import failed", err)
			}
			return a.out.Result(report, func(w io.Writer) {
				printImportReport(w, report)
			})
		},
	}
}

func printImportReport(w io.Writer, r catalog.ImportReport) {
	fmt.Fprintf(w, "Imported %d categories, %d products, %d customers, %d discounts\n",
		r.Categories, r.Products, r.Customers, r.Discounts)
}

func newCatalogProductsCommand(rootOpts *RootOptions) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:           "products",
		Short:         "List active products",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			products, err := a.catalog().ActiveProducts(commandContext(cmd), category)
			if err != nil {
				return a.out.Fail("failed to list products", err)
			}
			return a.out.Result(products, func(w io.Writer) {
				for _, p := range products {
					fmt.Fprintf(w, "%-12s %-14s %-24s %14s %5d\n",
						p.ID, orDash(domain.Value(p.Barcode)), p.Name, formatMoney(p.Price), p.Stock)
				}
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only products in this category id")
	return cmd
}

func newCatalogCategoriesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "categories",
		Short:         "List categories in display order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cats, err := a.catalog().Categories(commandContext(cmd))
			if err != nil {
				return a.out.Fail("failed to list categories", err)
			}
			return a.out.Result(cats, func(w io.Writer) {
				for _, c := range cats {
					fmt.Fprintf(w, "%-12s %-20s %s\n", c.ID, c.Name, c.Color)
				}
			})
		},
	}
}

func newCatalogCustomersCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "customers [query]",
		Short:         "Search customers by name, phone or email",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			q := ""
			if len(args) == 1 {
				q = args[0]
			}
			customers, err := a.catalog().SearchCustomers(commandContext(cmd), q, limit)
			if err != nil {
				return a.out.Fail("failed to search customers", err)
			}
			return a.out.Result(customers, func(w io.Writer) {
				for _, c := range customers {
					fmt.Fprintf(w, "%-12s %-24s %-14s %6d pts\n", c.ID, c.Name, orDash(domain.Value(c.Phone)), c.Points)
				}
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", catalog.DefaultSearchLimit, "maximum number of customers")
	return cmd
}
