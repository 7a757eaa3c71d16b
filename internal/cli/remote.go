package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/kasir/internal/remote"
)

// NewRemoteCommand creates the remote command group.
func NewRemoteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Run the reference sync backend",
	}

	var listen string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST sync API over the local database",
		Long: `Serve the REST API the http remote speaks, backed by --db.

Point a till at it with remote.kind=http and remote.url=http://HOST:PORT.
Requests need "Authorization: Bearer <remote.key>" when remote.key is set.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			addr := a.cfg.Remote.Listen
			if cmd.Flags().Changed("listen") {
				addr = listen
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			srv := remote.NewServer(a.store,
				remote.WithServerKey(a.cfg.Remote.Key),
				remote.WithServerLogger(a.logger),
			)
			if err := srv.ListenAndServe(ctx, addr); err != nil {
				return WrapExitError(ExitFailure, "remote server failed", err)
			}
			return nil
		},
	}
	serve.Flags().StringVar(&listen, "listen", "", "listen address (default remote.listen)")

	cmd.AddCommand(serve)
	return cmd
}
