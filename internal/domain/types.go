package domain

// Collection names. These are also the table names used by the sync queue
// and the remote.
const (
	CollectionProducts         = "products"
	CollectionCategories       = "categories"
	CollectionTransactions     = "transactions"
	CollectionTransactionItems = "transaction_items"
	CollectionShifts           = "shifts"
	CollectionCustomers        = "customers"
	CollectionDiscounts        = "discounts"
	CollectionStockAdjustments = "stock_adjustments"
	CollectionNotifications    = "notifications"
	CollectionStoreSettings    = "store_settings"
	CollectionHeldTransactions = "held_transactions"
)

// Collections lists every record collection in a stable order.
var Collections = []string{
	CollectionProducts,
	CollectionCategories,
	CollectionTransactions,
	CollectionTransactionItems,
	CollectionShifts,
	CollectionCustomers,
	CollectionDiscounts,
	CollectionStockAdjustments,
	CollectionNotifications,
	CollectionStoreSettings,
	CollectionHeldTransactions,
}

// IsCollection reports whether name is a known collection.
func IsCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}

// Product is a sellable item. Products are never hard-deleted; IsActive=false
// hides them from the register while receipts keep their snapshot.
type Product struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Barcode    *string `json:"barcode,omitempty"`
	CategoryID *string `json:"category_id,omitempty"`
	Price      int64   `json:"price"`
	CostPrice  *int64  `json:"cost_price,omitempty"`
	Stock      int64   `json:"stock"`
	MinStock   int64   `json:"min_stock"`
	ImageURL   *string `json:"image_url,omitempty"`
	IsActive   bool    `json:"is_active"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

// LowStock reports whether the product is at or below its minimum stock.
func (p Product) LowStock() bool {
	return p.Stock <= p.MinStock
}

// Category groups products on the register.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	SortOrder int64  `json:"sort_order"`
	CreatedAt string `json:"created_at"`
}

// Customer is a loyalty member.
type Customer struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Phone      *string `json:"phone,omitempty"`
	Email      *string `json:"email,omitempty"`
	Address    *string `json:"address,omitempty"`
	Points     int64   `json:"points"`
	TotalSpent int64   `json:"total_spent"`
	VisitCount int64   `json:"visit_count"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

// PointsPerUnit is the spend that earns one loyalty point.
const PointsPerUnit int64 = 10000

// PointsFor returns the loyalty points earned for a sale total.
func PointsFor(total int64) int64 {
	if total <= 0 {
		return 0
	}
	return total / PointsPerUnit
}

// DiscountType selects how a discount value is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

// Discount is a code-based promotion. Optional numeric limits that are nil or
// not positive are treated as unset.
type Discount struct {
	ID          string       `json:"id"`
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	Type        DiscountType `json:"type"`
	Value       int64        `json:"value"`
	MinPurchase *int64       `json:"min_purchase,omitempty"`
	MaxDiscount *int64       `json:"max_discount,omitempty"`
	UsageLimit  *int64       `json:"usage_limit,omitempty"`
	UsedCount   int64        `json:"used_count"`
	StartDate   *string      `json:"start_date,omitempty"`
	EndDate     *string      `json:"end_date,omitempty"`
	IsActive    bool         `json:"is_active"`
	CreatedAt   string       `json:"created_at"`
}

// ShiftStatus is the lifecycle state of a shift.
type ShiftStatus string

const (
	ShiftOpen   ShiftStatus = "open"
	ShiftClosed ShiftStatus = "closed"
)

// Shift is a cashier's working session at the till.
type Shift struct {
	ID                string      `json:"id"`
	CashierID         string      `json:"cashier_id"`
	CashierName       string      `json:"cashier_name"`
	Status            ShiftStatus `json:"status"`
	OpeningCash       int64       `json:"opening_cash"`
	ClosingCash       *int64      `json:"closing_cash,omitempty"`
	ExpectedCash      int64       `json:"expected_cash"`
	Difference        *int64      `json:"difference,omitempty"`
	TotalSales        int64       `json:"total_sales"`
	TotalTransactions int64       `json:"total_transactions"`
	Notes             *string     `json:"notes,omitempty"`
	OpenedAt          string      `json:"opened_at"`
	ClosedAt          *string     `json:"closed_at,omitempty"`
}

// PaymentMethod is how a sale was paid.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentQRIS     PaymentMethod = "qris"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentOther    PaymentMethod = "other"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentQRIS, PaymentTransfer, PaymentOther:
		return true
	}
	return false
}

// TransactionStatus is the state of a committed sale.
type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "completed"
	TransactionVoided    TransactionStatus = "voided"
	TransactionPending   TransactionStatus = "pending"
)

// Transaction is a committed sale. Only Synced changes after commit.
type Transaction struct {
	ID                string            `json:"id"`
	TransactionNumber string            `json:"transaction_number"`
	CashierID         string            `json:"cashier_id"`
	CustomerID        *string           `json:"customer_id,omitempty"`
	ShiftID           *string           `json:"shift_id,omitempty"`
	Subtotal          int64             `json:"subtotal"`
	Discount          int64             `json:"discount"`
	DiscountCode      *string           `json:"discount_code,omitempty"`
	Total             int64             `json:"total"`
	PaymentMethod     PaymentMethod     `json:"payment_method"`
	PaymentAmount     int64             `json:"payment_amount"`
	ChangeAmount      int64             `json:"change_amount"`
	Status            TransactionStatus `json:"status"`
	Notes             *string           `json:"notes,omitempty"`
	Synced            bool              `json:"synced"`
	CreatedAt         string            `json:"created_at"`
}

// TransactionItem is one receipt line with the product name and price
// captured at sale time.
type TransactionItem struct {
	ID            string `json:"id"`
	TransactionID string `json:"transaction_id"`
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	Price         int64  `json:"price"`
	Quantity      int64  `json:"quantity"`
	Discount      int64  `json:"discount"`
	Subtotal      int64  `json:"subtotal"`
}

// AdjustmentType is the kind of manual stock change.
type AdjustmentType string

const (
	AdjustmentIn     AdjustmentType = "in"
	AdjustmentOut    AdjustmentType = "out"
	AdjustmentOpname AdjustmentType = "opname"
)

// Valid reports whether t is a known adjustment type.
func (t AdjustmentType) Valid() bool {
	return t == AdjustmentIn || t == AdjustmentOut || t == AdjustmentOpname
}

// StockAdjustment records a manual stock change. Quantity is the signed
// delta that was actually applied.
type StockAdjustment struct {
	ID             string         `json:"id"`
	ProductID      string         `json:"product_id"`
	ProductName    string         `json:"product_name"`
	AdjustmentType AdjustmentType `json:"adjustment_type"`
	Quantity       int64          `json:"quantity"`
	StockBefore    int64          `json:"stock_before"`
	StockAfter     int64          `json:"stock_after"`
	Reason         string         `json:"reason"`
	CreatedBy      string         `json:"created_by"`
	CreatedAt      string         `json:"created_at"`
}

// NotificationType classifies notifications.
type NotificationType string

const (
	NotificationLowStock      NotificationType = "low_stock"
	NotificationShiftReminder NotificationType = "shift_reminder"
	NotificationPromo         NotificationType = "promo"
	NotificationSystem        NotificationType = "system"
)

// Notification is an in-app message.
type Notification struct {
	ID        string            `json:"id"`
	Type      NotificationType  `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	IsRead    bool              `json:"is_read"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt string            `json:"created_at"`
}

// SettingsID is the id of the single store settings record.
const SettingsID = "default"

// StoreSettings holds receipt and store identity details.
type StoreSettings struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Address       *string `json:"address,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	LogoURL       *string `json:"logo_url,omitempty"`
	ReceiptFooter *string `json:"receipt_footer,omitempty"`
	UpdatedAt     string  `json:"updated_at"`
}

// CartLine is one line of an in-progress sale.
type CartLine struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	Discount    int64  `json:"discount"`
	Subtotal    int64  `json:"subtotal"`
}

// HeldTransaction is a parked cart that can be resumed later. When the
// discount came from a code, DiscountCode is kept so the sale can be
// re-priced and the code's usage counted at commit.
type HeldTransaction struct {
	ID           string     `json:"id"`
	CashierID    string     `json:"cashier_id"`
	Items        []CartLine `json:"items"`
	Discount     int64      `json:"discount"`
	DiscountCode *string    `json:"discount_code,omitempty"`
	Total        int64      `json:"total"`
	Note         *string    `json:"note,omitempty"`
	CreatedAt    string     `json:"created_at"`
}

// Action is the kind of change carried by a pending operation.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionInsert || a == ActionUpdate || a == ActionDelete
}

// PendingOperation is an outbound change awaiting delivery to the remote.
type PendingOperation struct {
	ID            int64          `json:"id"`
	Table         string         `json:"table"`
	Action        Action         `json:"action"`
	Data          map[string]any `json:"data"`
	CreatedAt     string         `json:"created_at"`
	Retries       int64          `json:"retries"`
	NextAttemptAt string         `json:"next_attempt_at"`
	LastError     string         `json:"last_error,omitempty"`
}

// DeadLetter is a pending operation that exhausted its retries.
type DeadLetter struct {
	ID          int64          `json:"id"`
	OperationID int64          `json:"operation_id"`
	Table       string         `json:"table"`
	Action      Action         `json:"action"`
	Data        map[string]any `json:"data"`
	CreatedAt   string         `json:"created_at"`
	Retries     int64          `json:"retries"`
	LastError   string         `json:"last_error"`
	FailedAt    string         `json:"failed_at"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Value returns *p, or the zero value when p is nil.
func Value[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
