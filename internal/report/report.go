// Package report answers read-only questions about past sales: the
// transaction history, receipt lookup by number, and sales summaries for a
// period.
package report

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/ident"
	"github.com/roach88/kasir/internal/inventory"
	"github.com/roach88/kasir/internal/store"
)

// Period is a named reporting window ending now.
type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
	PeriodAll   Period = "all"
)

// ParsePeriod validates a period name. Empty means today.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodToday, nil
	case PeriodToday, PeriodWeek, PeriodMonth, PeriodYear, PeriodAll:
		return p, nil
	default:
		return "", domain.NewValidationError(domain.CodeInvalidInput, "unknown period").With("period", s)
	}
}

// DefaultTopProducts is the length of the best-seller list.
const DefaultTopProducts = 10

// Filter selects transactions for the history. Zero fields do not filter.
type Filter struct {
	Period    Period
	Search    string // part of the transaction number, any case
	Status    domain.TransactionStatus
	CashierID string
	ShiftID   string
	Limit     int
}

// History is a page of transactions, newest first. Count and TotalSales
// cover every match, not only the returned page; TotalSales sums completed
// sales only.
type History struct {
	From         string               `json:"from,omitempty"`
	Transactions []domain.Transaction `json:"transactions"`
	Count        int                  `json:"count"`
	TotalSales   int64                `json:"total_sales"`
}

// Detail is a stored transaction with its lines.
type Detail struct {
	Transaction domain.Transaction       `json:"transaction"`
	Items       []domain.TransactionItem `json:"items"`
}

// DailySales is one calendar day of completed sales.
type DailySales struct {
	Date         string `json:"date"`
	Sales        int64  `json:"sales"`
	Transactions int    `json:"transactions"`
}

// ProductSales is how much of one product was sold.
type ProductSales struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
	Sales       int64  `json:"sales"`
}

// Sales summarizes completed sales in a period.
type Sales struct {
	Period       Period         `json:"period"`
	From         string         `json:"from,omitempty"`
	TotalSales   int64          `json:"total_sales"`
	Transactions int            `json:"transactions"`
	ItemsSold    int64          `json:"items_sold"`
	Average      int64          `json:"average"`
	Daily        []DailySales   `json:"daily"`
	TopProducts  []ProductSales `json:"top_products"`
}

// Dashboard is the till's at-a-glance view of today.
type Dashboard struct {
	Date         string               `json:"date"`
	TotalSales   int64                `json:"total_sales"`
	Transactions int                  `json:"transactions"`
	ItemsSold    int64                `json:"items_sold"`
	LowStock     int                  `json:"low_stock"`
	Recent       []domain.Transaction `json:"recent"`
}

// recentLimit is how many transactions the dashboard lists.
const recentLimit = 5

// Service reads transactions and derives reports from them.
type Service struct {
	store     *store.Store
	inventory *inventory.Service
	clock     ident.Clock
	location  *time.Location
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock that periods end at.
func WithClock(c ident.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLocation sets the location whose calendar days bound periods and
// daily totals.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

// WithInventory sets the inventory service used for the low-stock count.
func WithInventory(inv *inventory.Service) Option {
	return func(s *Service) { s.inventory = inv }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a report service.
func NewService(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:    st,
		clock:    ident.SystemClock{},
		location: time.Local,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.inventory == nil {
		s.inventory = inventory.NewService(st, inventory.WithClock(s.clock), inventory.WithLocation(s.location))
	}
	return s
}

// Start returns the first instant of p: local midnight today, or midnight
// seven days, a month or a year back. PeriodAll has no start.
func (s *Service) Start(p Period) (time.Time, bool) {
	now := s.clock.Now().In(s.location)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	switch p {
	case PeriodToday, "":
		return midnight, true
	case PeriodWeek:
		return midnight.AddDate(0, 0, -7), true
	case PeriodMonth:
		return midnight.AddDate(0, -1, 0), true
	case PeriodYear:
		return midnight.AddDate(-1, 0, 0), true
	}
	return time.Time{}, false
}

func (s *Service) since(p Period) ([]store.Predicate, string) {
	start, ok := s.Start(p)
	if !ok {
		return nil, ""
	}
	from := domain.FormatTime(start)
	return []store.Predicate{store.Compare{Field: "created_at", Op: store.OpGreaterEqual, Value: from}}, from
}

// Transactions lists transactions matching f, newest first.
func (s *Service) Transactions(ctx context.Context, f Filter) (History, error) {
	where, from := s.since(f.Period)
	if q := strings.TrimSpace(f.Search); q != "" {
		where = append(where, store.Contains{Field: "transaction_number", Substring: q})
	}
	if f.Status != "" {
		where = append(where, store.Equals{Field: "status", Value: string(f.Status)})
	}
	if f.CashierID != "" {
		where = append(where, store.Equals{Field: "cashier_id", Value: f.CashierID})
	}
	if f.ShiftID != "" {
		where = append(where, store.Equals{Field: "shift_id", Value: f.ShiftID})
	}

	all, err := store.CollectAs[domain.Transaction](ctx, s.store, store.Query{
		Collection: domain.CollectionTransactions,
		Where:      where,
		OrderBy:    "created_at",
		Desc:       true,
	})
	if err != nil {
		return History{}, domain.AsPersistence("list transactions", err)
	}

	h := History{From: from, Transactions: all, Count: len(all)}
	for _, t := range all {
		if t.Status == domain.TransactionCompleted {
			h.TotalSales += t.Total
		}
	}
	if f.Limit > 0 && len(h.Transactions) > f.Limit {
		h.Transactions = h.Transactions[:f.Limit]
	}
	return h, nil
}

// ByNumber finds a transaction by its receipt number, in any case.
func (s *Service) ByNumber(ctx context.Context, number string) (Detail, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	t, ok, err := store.FirstAs[domain.Transaction](ctx, s.store, store.Query{
		Collection: domain.CollectionTransactions,
		Where:      []store.Predicate{store.Equals{Field: "transaction_number", Value: number}},
	})
	if err != nil {
		return Detail{}, domain.AsPersistence("find transaction", err)
	}
	if !ok {
		return Detail{}, domain.NewNotFoundError(domain.CodeNotFound, "transaction not found").With("transaction_number", number)
	}
	return s.detail(ctx, t)
}

// Transaction finds a transaction by id.
func (s *Service) Transaction(ctx context.Context, id string) (Detail, error) {
	t, ok, err := store.GetAs[domain.Transaction](ctx, s.store, domain.CollectionTransactions, id)
	if err != nil {
		return Detail{}, domain.AsPersistence("find transaction", err)
	}
	if !ok {
		return Detail{}, domain.NewNotFoundError(domain.CodeNotFound, "transaction not found").With("transaction_id", id)
	}
	return s.detail(ctx, t)
}

func (s *Service) detail(ctx context.Context, t domain.Transaction) (Detail, error) {
	items, err := s.items(ctx, t.ID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Transaction: t, Items: items}, nil
}

func (s *Service) items(ctx context.Context, transactionID string) ([]domain.TransactionItem, error) {
	items, err := store.CollectAs[domain.TransactionItem](ctx, s.store, store.Query{
		Collection: domain.CollectionTransactionItems,
		Where:      []store.Predicate{store.Equals{Field: "transaction_id", Value: transactionID}},
	})
	if err != nil {
		return nil, domain.AsPersistence("load transaction items", err)
	}
	return items, nil
}

// completed loads completed sales in p, oldest first, with their lines.
func (s *Service) completed(ctx context.Context, p Period) ([]Detail, string, error) {
	where, from := s.since(p)
	where = append(where, store.Equals{Field: "status", Value: string(domain.TransactionCompleted)})
	txns, err := store.CollectAs[domain.Transaction](ctx, s.store, store.Query{
		Collection: domain.CollectionTransactions,
		Where:      where,
		OrderBy:    "created_at",
	})
	if err != nil {
		return nil, "", domain.AsPersistence("load sales", err)
	}

	out := make([]Detail, 0, len(txns))
	for _, t := range txns {
		d, err := s.detail(ctx, t)
		if err != nil {
			return nil, "", err
		}
		out = append(out, d)
	}
	return out, from, nil
}

// DailySales totals completed sales per local calendar day, oldest first.
// Days without sales are left out.
func (s *Service) DailySales(ctx context.Context, p Period) ([]DailySales, error) {
	sales, _, err := s.completed(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.daily(sales), nil
}

// TopProducts ranks products by quantity sold in p, then by revenue. A
// limit of 0 means DefaultTopProducts.
func (s *Service) TopProducts(ctx context.Context, p Period, limit int) ([]ProductSales, error) {
	sales, _, err := s.completed(ctx, p)
	if err != nil {
		return nil, err
	}
	return topProducts(sales, limit), nil
}

// Sales builds the full summary for p in one pass over the store.
func (s *Service) Sales(ctx context.Context, p Period, top int) (Sales, error) {
	sales, from, err := s.completed(ctx, p)
	if err != nil {
		return Sales{}, err
	}
	r := Sales{
		Period:       p,
		From:         from,
		Transactions: len(sales),
		Daily:        s.daily(sales),
		TopProducts:  topProducts(sales, top),
	}
	for _, d := range sales {
		r.TotalSales += d.Transaction.Total
		for _, item := range d.Items {
			r.ItemsSold += item.Quantity
		}
	}
	if r.Transactions > 0 {
		r.Average = r.TotalSales / int64(r.Transactions)
	}
	return r, nil
}

// Today returns the dashboard: today's completed sales, items sold, the
// number of low-stock products and the latest transactions of any status.
func (s *Service) Today(ctx context.Context) (Dashboard, error) {
	sales, err := s.Sales(ctx, PeriodToday, 0)
	if err != nil {
		return Dashboard{}, err
	}
	low, err := s.inventory.LowStock(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	recent, err := s.Transactions(ctx, Filter{Period: PeriodAll, Limit: recentLimit})
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Date:         domain.DayKey(s.clock.Now(), s.location),
		TotalSales:   sales.TotalSales,
		Transactions: sales.Transactions,
		ItemsSold:    sales.ItemsSold,
		LowStock:     len(low),
		Recent:       recent.Transactions,
	}, nil
}

func (s *Service) daily(sales []Detail) []DailySales {
	out := make([]DailySales, 0)
	for _, d := range sales {
		at, err := domain.ParseTime(d.Transaction.CreatedAt)
		if err != nil {
			s.logger.Warn("transaction with unreadable created_at left out of daily totals",
				"transaction_id", d.Transaction.ID, "error", err)
			continue
		}
		day := domain.DayKey(at, s.location)
		// sales are in created_at order, so days arrive in order too.
		if n := len(out); n == 0 || out[n-1].Date != day {
			out = append(out, DailySales{Date: day})
		}
		last := &out[len(out)-1]
		last.Sales += d.Transaction.Total
		last.Transactions++
	}
	return out
}

func topProducts(sales []Detail, limit int) []ProductSales {
	if limit <= 0 {
		limit = DefaultTopProducts
	}
	byID := make(map[string]*ProductSales)
	for _, d := range sales {
		for _, item := range d.Items {
			ps, ok := byID[item.ProductID]
			if !ok {
				ps = &ProductSales{ProductID: item.ProductID, ProductName: item.ProductName}
				byID[item.ProductID] = ps
			}
			ps.Quantity += item.Quantity
			ps.Sales += item.Subtotal
		}
	}

	out := make([]ProductSales, 0, len(byID))
	for _, ps := range byID {
		out = append(out, *ps)
	}
	slices.SortFunc(out, func(a, b ProductSales) int {
		return cmp.Or(
			cmp.Compare(b.Quantity, a.Quantity),
			cmp.Compare(b.Sales, a.Sales),
			cmp.Compare(a.ProductID, b.ProductID),
		)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
