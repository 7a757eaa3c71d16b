package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/kasir/internal/domain"
)

// NewNotifyCommand creates the notify command group.
func NewNotifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Read in-app notifications",
	}

	var unread bool
	var limit int
	list := &cobra.Command{
		Use:           "list",
		Short:         "List notifications, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			svc := a.inventory()

			var notes []domain.Notification
			if unread {
				notes, err = svc.Unread(commandContext(cmd))
			} else {
				notes, err = svc.Recent(commandContext(cmd), limit)
			}
			if err != nil {
				return a.out.Fail("failed to list notifications", err)
			}
			return a.out.Result(notes, func(w io.Writer) {
				for _, n := range notes {
					mark := " "
					if !n.IsRead {
						mark = "*"
					}
					fmt.Fprintf(w, "%s %s  %s  %s\n", mark, n.CreatedAt, n.Title, n.Message)
				}
			})
		},
	}
	list.Flags().BoolVar(&unread, "unread", false, "only unread notifications")
	list.Flags().IntVar(&limit, "limit", 20, "maximum number of notifications")

	read := &cobra.Command{
		Use:           "read [id]",
		Short:         "Mark one notification, or all of them, as read",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			svc := a.inventory()

			if len(args) == 1 {
				if err := svc.MarkRead(commandContext(cmd), args[0]); err != nil {
					return a.out.Fail("failed to mark notification", err)
				}
				return a.out.Success("marked read")
			}
			n, err := svc.MarkAllRead(commandContext(cmd))
			if err != nil {
				return a.out.Fail("failed to mark notifications", err)
			}
			return a.out.Result(map[string]int{"marked": n}, func(w io.Writer) {
				fmt.Fprintf(w, "%d notifications marked read\n", n)
			})
		},
	}

	cmd.AddCommand(list, read)
	return cmd
}
