package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/kasir/internal/cart"
	"github.com/roach88/kasir/internal/checkout"
	"github.com/roach88/kasir/internal/config"
	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/syncer"
)

// SaleOptions holds flags for the sale command.
type SaleOptions struct {
	*RootOptions
	Items        []string
	DiscountCode string
	Payment      string
	Amount       int64
	CustomerID   string
	Note         string
	Hold         bool
	Resume       string
	NoSync       bool
}

// NewSaleCommand creates the sale command.
func NewSaleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sale",
		Short: "Ring up and commit a sale",
		Long: `Build a cart from --item flags (product id or barcode, optionally
followed by :quantity), apply a discount code, and commit the sale.

The sale, its lines, the stock changes, shift totals, loyalty points and
discount usage are written in one transaction and queued for sync.

Example:
  kasir sale --item 899100:2 --item p-roti --discount HEMAT10 --pay cash --amount 50000
  kasir sale --item 899100 --hold --note "table 4"
  kasir sale --resume 0190f3c2-... --pay qris`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSale(opts, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Items, "item", "i", nil, "product id or barcode with optional :quantity (repeatable)")
	cmd.Flags().StringVarP(&opts.DiscountCode, "discount", "d", "", "discount code")
	cmd.Flags().StringVar(&opts.Payment, "pay", string(domain.PaymentCash), "payment method (cash|qris|transfer|other)")
	cmd.Flags().Int64Var(&opts.Amount, "amount", 0, "cash tendered (cash payments)")
	cmd.Flags().StringVar(&opts.CustomerID, "customer", "", "loyalty customer id")
	cmd.Flags().StringVar(&opts.Note, "note", "", "note stored with the sale or held cart")
	cmd.Flags().BoolVar(&opts.Hold, "hold", false, "park the cart instead of committing it")
	cmd.Flags().StringVar(&opts.Resume, "resume", "", "resume a held cart by id")
	cmd.Flags().BoolVar(&opts.NoSync, "no-sync", false, "do not push the queue to the remote after committing")

	cmd.AddCommand(newSaleListCommand(rootOpts))
	cmd.AddCommand(newSaleShowCommand(rootOpts))
	return cmd
}

func runSale(opts *SaleOptions, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := commandContext(cmd)

	cashier, err := a.cashier()
	if err != nil {
		return err
	}
	committer := a.committer(nil)

	c := cart.New()
	code, note := opts.DiscountCode, opts.Note
	resumed := false
	if opts.Resume != "" {
		restored, held, err := committer.Resume(ctx, opts.Resume)
		if err != nil {
			return a.out.Fail("failed to resume held cart", err)
		}
		c, resumed = restored, true
		if code == "" {
			code = domain.Value(held.DiscountCode)
		}
		if note == "" {
			note = domain.Value(held.Note)
		}
	}

	// A resumed cart is already off the held list; park it again when the
	// sale cannot go through.
	fail := func(message string, err error) error {
		if snap := c.Snapshot(); resumed && len(snap.Lines) > 0 {
			req := checkout.HoldRequest{CashierID: cashier.ID, Cart: snap, DiscountCode: code, Note: note}
			if _, holdErr := committer.Hold(ctx, req); holdErr != nil {
				a.logger.Error("failed to re-hold cart", "error", holdErr)
			}
		}
		return a.out.Fail(message, err)
	}

	for _, item := range opts.Items {
		if err := addToCart(ctx, a, c, item); err != nil {
			return fail("failed to add item", err)
		}
	}

	// Codes are priced against the final subtotal, including lines added
	// after a resume.
	if code != "" {
		res, err := a.resolver().Resolve(ctx, code, c.Subtotal())
		if err != nil {
			return fail("discount rejected", err)
		}
		c.SetDiscount(res.Amount)
	}

	if opts.Hold {
		held, err := committer.Hold(ctx, checkout.HoldRequest{CashierID: cashier.ID, Cart: c.Snapshot(), DiscountCode: code, Note: note})
		if err != nil {
			return a.out.Fail("failed to hold cart", err)
		}
		return a.out.Result(held, func(w io.Writer) {
			fmt.Fprintf(w, "Cart held as %s (%d lines, %s)\n", held.ID, len(held.Items), formatMoney(held.Total))
		})
	}

	receipt, err := committer.Commit(ctx, checkout.Request{
		Cart:          c.Snapshot(),
		DiscountCode:  code,
		PaymentMethod: domain.PaymentMethod(opts.Payment),
		PaymentAmount: opts.Amount,
		CustomerID:    opts.CustomerID,
		CashierID:     cashier.ID,
		Notes:         note,
	})
	if err != nil {
		return fail("sale not committed", err)
	}

	if !opts.NoSync && a.cfg.Remote.Kind != config.RemoteNone {
		pushQueue(ctx, a)
	}

	return a.out.Result(receipt, func(w io.Writer) { printReceipt(w, receipt) })
}

// addToCart resolves ref[:qty] against product ids, then barcodes.
func addToCart(ctx context.Context, a *app, c *cart.Cart, item string) error {
	ref, qty := item, int64(1)
	if i := strings.LastIndex(item, ":"); i > 0 {
		n, err := strconv.ParseInt(item[i+1:], 10, 64)
		if err != nil || n < 1 {
			return domain.NewValidationError(domain.CodeInvalidInput, "quantity must be a positive integer").With("item", item)
		}
		ref, qty = item[:i], n
	}

	svc := a.catalog()
	p, ok, err := svc.Product(ctx, ref)
	if err != nil {
		return err
	}
	if !ok {
		if p, ok, err = svc.ProductByBarcode(ctx, ref); err != nil {
			return err
		}
	}
	if !ok || !p.IsActive {
		return domain.NewNotFoundError(domain.CodeNotFound, "product not found").With("item", ref)
	}

	var before int64
	for _, l := range c.Lines() {
		if l.ProductID == p.ID {
			before = l.Quantity
		}
	}
	c.AddItem(p)
	c.UpdateQuantity(p.ID, before+qty)
	return nil
}

// pushQueue makes one best-effort delivery pass. Failures stay queued.
func pushQueue(ctx context.Context, a *app) {
	proc, closeRemote, err := a.processor(ctx)
	if err != nil {
		a.logger.Warn("sync skipped", "error", err)
		return
	}
	defer closeRemote()
	report, err := proc.ProcessQueue(ctx, syncer.Static(true))
	if err != nil {
		a.logger.Warn("sync failed, sale stays queued", "error", err)
		return
	}
	a.logger.Debug("queue pushed", "delivered", report.Delivered, "failed", report.Failed)
}

func printReceipt(w io.Writer, r checkout.Receipt) {
	t := r.Transaction
	fmt.Fprintf(w, "%s  %s\n", t.TransactionNumber, t.CreatedAt)
	for _, item := range r.Items {
		fmt.Fprintf(w, "  %-24s %3d x %-14s %s\n", item.ProductName, item.Quantity, formatMoney(item.Price), formatMoney(item.Subtotal))
	}
	fmt.Fprintf(w, "  Subtotal: %s\n", formatMoney(t.Subtotal))
	if t.Discount > 0 {
		fmt.Fprintf(w, "  Discount: -%s (%s)\n", formatMoney(t.Discount), orDash(domain.Value(t.DiscountCode)))
	}
	fmt.Fprintf(w, "  Total:    %s\n", formatMoney(t.Total))
	fmt.Fprintf(w, "  Paid:     %s (%s)\n", formatMoney(t.PaymentAmount), t.PaymentMethod)
	fmt.Fprintf(w, "  Change:   %s\n", formatMoney(t.ChangeAmount))
	if r.Customer != nil {
		fmt.Fprintf(w, "  Customer: %s (%d points)\n", r.Customer.Name, r.Customer.Points)
	}
	for _, id := range r.MissingProducts {
		fmt.Fprintf(w, "  warning: product %s no longer exists, stock not updated\n", id)
	}
}
