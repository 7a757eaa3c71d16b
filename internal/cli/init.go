package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/kasir/internal/domain"
)

// InitResult is the JSON payload of the init command.
type InitResult struct {
	Database string               `json:"database"`
	Settings domain.StoreSettings `json:"settings"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	var storeName, address, phone, footer string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the till database and store settings",
		Long: `Create (or upgrade) the local database and optionally set the store
details printed on receipts.

Example:
  kasir init --db ./kasir.db --store-name "Warung Maju" --footer "Terima kasih"`,
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

			svc := a.catalog()
			settings, err := svc.Settings(ctx)
			if err != nil {
				return a.out.Fail("failed to read settings", err)
			}
			changed := false
			for _, f := range []struct {
				flag string
				dst  **string
				val  string
			}{
				{"address", &settings.Address, address},
				{"phone", &settings.Phone, phone},
				{"footer", &settings.ReceiptFooter, footer},
			} {
				if cmd.Flags().Changed(f.flag) {
					*f.dst = domain.Ptr(f.val)
					changed = true
				}
			}
			if cmd.Flags().Changed("store-name") {
				settings.Name = storeName
				changed = true
			}
			if changed {
				if settings, err = svc.SaveSettings(ctx, settings); err != nil {
					return a.out.Fail("failed to save settings", err)
				}
			}

			result := InitResult{Database: a.cfg.Database, Settings: settings}
			return a.out.Result(result, func(w io.Writer) {
				fmt.Fprintf(w, "Database ready: %s\n", result.Database)
				fmt.Fprintf(w, "Store: %s\n", settings.Name)
			})
		},
	}

	cmd.Flags().StringVar(&storeName, "store-name", "", "store name printed on receipts")
	cmd.Flags().StringVar(&address, "address", "", "store address")
	cmd.Flags().StringVar(&phone, "phone", "", "store phone number")
	cmd.Flags().StringVar(&footer, "footer", "", "receipt footer")

	return cmd
}
