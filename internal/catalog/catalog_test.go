package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/ident"
	"github.com/roach88/kasir/internal/store"
	"github.com/roach88/kasir/internal/testutil"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := NewService(st,
		WithClock(testutil.NewDeterministicClock(testNow)),
		WithIDGenerator(testutil.NewSequenceGenerator("cat")),
		WithCodes(ident.Codes{Rand: testutil.ZeroReader{}}),
	)
	return svc, st
}

func queued(t *testing.T, st *store.Store) []domain.PendingOperation {
	t.Helper()
	ops, err := st.PendingOperations(context.Background(), time.Time{})
	require.NoError(t, err)
	return ops
}

func TestSaveProduct_CreatesActiveAndQueues(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	p, err := svc.SaveProduct(ctx, domain.Product{Name: "  Kopi Susu ", Price: 18000, Barcode: domain.Ptr("899001")})
	require.NoError(t, err)

	assert.Equal(t, "cat-1", p.ID)
	assert.Equal(t, "Kopi Susu", p.Name)
	assert.True(t, p.IsActive)
	assert.Equal(t, "2024-03-15T10:00:00.000Z", p.CreatedAt)

	ops := queued(t, st)
	require.Len(t, ops, 1)
	assert.Equal(t, domain.CollectionProducts, ops[0].Table)
	assert.Equal(t, domain.ActionInsert, ops[0].Action)
	assert.Equal(t, "cat-1", ops[0].Data["id"])

	p.Price = 20000
	_, err = svc.SaveProduct(ctx, p)
	require.NoError(t, err)
	ops = queued(t, st)
	require.Len(t, ops, 2)
	assert.Equal(t, domain.ActionUpdate, ops[1].Action)
	assert.Equal(t, int64(20000), ops[1].Data["price"])
}

func TestSaveProduct_Validation(t *testing.T) {
	tests := []struct {
		name    string
		product domain.Product
		code    string
	}{
		{"blank name", domain.Product{Name: "  ", Price: 1000}, domain.CodeInvalidInput},
		{"negative price", domain.Product{Name: "Teh", Price: -1}, domain.CodeInvalidAmount},
		{"negative stock", domain.Product{Name: "Teh", Price: 1, Stock: -2}, domain.CodeInvalidAmount},
		{"negative cost", domain.Product{Name: "Teh", Price: 1, CostPrice: domain.Ptr(int64(-5))}, domain.CodeInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st := setup(t)
			_, err := svc.SaveProduct(context.Background(), tt.product)
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err))
			assert.Equal(t, tt.code, domain.CodeOf(err))
			assert.Empty(t, queued(t, st))
		})
	}
}

func TestSaveProduct_DuplicateBarcode(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	first, err := svc.SaveProduct(ctx, domain.Product{Name: "Kopi", Price: 15000, Barcode: domain.Ptr("123")})
	require.NoError(t, err)

	_, err = svc.SaveProduct(ctx, domain.Product{Name: "Teh", Price: 8000, Barcode: domain.Ptr("123")})
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))
	assert.Equal(t, domain.CodeDuplicateBarcode, domain.CodeOf(err))
	assert.Len(t, queued(t, st), 1)

	// A deactivated product frees its barcode.
	require.NoError(t, svc.DeactivateProduct(ctx, first.ID))
	teh, err := svc.SaveProduct(ctx, domain.Product{Name: "Teh", Price: 8000, Barcode: domain.Ptr("123")})
	require.NoError(t, err)

	got, ok, err := svc.ProductByBarcode(ctx, "123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, teh.ID, got.ID)
}

func TestSaveProduct_UnknownCategoryOrProduct(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.SaveProduct(ctx, domain.Product{Name: "Kopi", Price: 1, CategoryID: domain.Ptr("nope")})
	assert.True(t, domain.IsNotFound(err))

	_, err = svc.SaveProduct(ctx, domain.Product{ID: "missing", Name: "Kopi", Price: 1})
	assert.True(t, domain.IsNotFound(err))

	assert.True(t, domain.IsNotFound(svc.DeactivateProduct(ctx, "missing")))
}

func TestActiveProducts(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	drinks, err := svc.CreateCategory(ctx, "Minuman", "")
	require.NoError(t, err)

	_, err = svc.SaveProduct(ctx, domain.Product{Name: "Teh", Price: 8000, CategoryID: &drinks.ID})
	require.NoError(t, err)
	kopi, err := svc.SaveProduct(ctx, domain.Product{Name: "Kopi", Price: 15000, CategoryID: &drinks.ID})
	require.NoError(t, err)
	_, err = svc.SaveProduct(ctx, domain.Product{Name: "Roti", Price: 12000})
	require.NoError(t, err)
	gone, err := svc.SaveProduct(ctx, domain.Product{Name: "Air", Price: 5000, CategoryID: &drinks.ID})
	require.NoError(t, err)
	require.NoError(t, svc.DeactivateProduct(ctx, gone.ID))

	all, err := svc.ActiveProducts(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Kopi", "Roti", "Teh"}, productNames(all))

	inCategory, err := svc.ActiveProducts(ctx, drinks.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kopi", "Teh"}, productNames(inCategory))

	got, ok, err := svc.Product(ctx, kopi.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(15000), got.Price)
}

func productNames(ps []domain.Product) []string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name
	}
	return names
}

func TestCategories(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	food, err := svc.CreateCategory(ctx, "Makanan", "#FF0000")
	require.NoError(t, err)
	drinks, err := svc.CreateCategory(ctx, "Minuman", "")
	require.NoError(t, err)

	assert.Equal(t, int64(0), food.SortOrder)
	assert.Equal(t, int64(1), drinks.SortOrder)
	assert.Equal(t, DefaultCategoryColor, drinks.Color)

	drinks.SortOrder = -1
	drinks.Color = ""
	_, err = svc.SaveCategory(ctx, drinks)
	require.NoError(t, err)

	cats, err := svc.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Minuman", cats[0].Name)
	assert.Equal(t, DefaultCategoryColor, cats[0].Color)

	_, err = svc.SaveProduct(ctx, domain.Product{Name: "Nasi", Price: 20000, CategoryID: &food.ID})
	require.NoError(t, err)

	err = svc.DeleteCategory(ctx, food.ID)
	assert.True(t, domain.IsConflict(err))
	assert.Equal(t, domain.CodeCategoryInUse, domain.CodeOf(err))

	require.NoError(t, svc.DeleteCategory(ctx, drinks.ID))
	assert.True(t, domain.IsNotFound(svc.DeleteCategory(ctx, drinks.ID)))

	ops := queued(t, st)
	last := ops[len(ops)-1]
	assert.Equal(t, domain.ActionDelete, last.Action)
	assert.Equal(t, domain.CollectionCategories, last.Table)
	assert.Equal(t, drinks.ID, last.Data["id"])
}

func TestSaveCustomer_KeepsLoyaltyCounters(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	c, err := svc.SaveCustomer(ctx, domain.Customer{Name: "Budi", Phone: domain.Ptr("0812"), Points: 99})
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.Points, "new customers start without points")

	require.NoError(t, st.Update(ctx, domain.CollectionCustomers, c.ID, map[string]any{"points": int64(7), "visit_count": int64(2)}))

	c.Name = "Budi Santoso"
	c.Points = 1000
	c.Email = domain.Ptr("   ")
	updated, err := svc.SaveCustomer(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, int64(7), updated.Points)
	assert.Equal(t, int64(2), updated.VisitCount)
	assert.Nil(t, updated.Email)

	_, err = svc.SaveCustomer(ctx, domain.Customer{Name: ""})
	assert.True(t, domain.IsValidation(err))
}

func TestSearchCustomers(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	for _, c := range []domain.Customer{
		{Name: "Budi", Phone: domain.Ptr("0812-111")},
		{Name: "Siti", Email: domain.Ptr("siti@example.com")},
		{Name: "Agus", Phone: domain.Ptr("0857-222")},
	} {
		_, err := svc.SaveCustomer(ctx, c)
		require.NoError(t, err)
	}

	tests := []struct {
		q    string
		want []string
	}{
		{"", []string{"Agus", "Budi", "Siti"}},
		{"bud", []string{"Budi"}},
		{"0812", []string{"Budi"}},
		{"EXAMPLE", []string{"Siti"}},
		{"zzz", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			got, err := svc.SearchCustomers(ctx, tt.q, 0)
			require.NoError(t, err)
			names := make([]string, 0, len(got))
			for _, c := range got {
				names = append(names, c.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	limited, err := svc.SearchCustomers(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	require.NoError(t, svc.DeleteCustomer(ctx, "cat-1"))
	assert.True(t, domain.IsNotFound(svc.DeleteCustomer(ctx, "cat-1")))
}

func TestSaveDiscount(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	d, err := svc.SaveDiscount(ctx, domain.Discount{
		Code: " hemat10 ", Name: "Hemat", Type: domain.DiscountPercentage, Value: 10,
		UsedCount: 50, IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "HEMAT10", d.Code)
	assert.Equal(t, int64(0), d.UsedCount)

	generated, err := svc.SaveDiscount(ctx, domain.Discount{Name: "Auto", Type: domain.DiscountFixed, Value: 5000})
	require.NoError(t, err)
	assert.Equal(t, "AAAAAAAA", generated.Code)

	_, err = svc.SaveDiscount(ctx, domain.Discount{Code: "hemat10", Name: "Again", Type: domain.DiscountFixed, Value: 1})
	assert.True(t, domain.IsConflict(err))
	assert.Equal(t, domain.CodeDuplicateCode, domain.CodeOf(err))

	// Every generated code is taken once the zero source repeats itself.
	_, err = svc.GenerateCode(ctx)
	assert.Equal(t, domain.CodeDuplicateCode, domain.CodeOf(err))

	// Updating keeps the code when none is given.
	d.Code = ""
	d.Value = 15
	updated, err := svc.SaveDiscount(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, "HEMAT10", updated.Code)
	assert.Equal(t, int64(15), updated.Value)
}

func TestSaveDiscount_Validation(t *testing.T) {
	tests := []struct {
		name string
		d    domain.Discount
	}{
		{"no name", domain.Discount{Type: domain.DiscountFixed, Value: 1}},
		{"bad type", domain.Discount{Name: "x", Type: "bogo", Value: 1}},
		{"zero value", domain.Discount{Name: "x", Type: domain.DiscountFixed, Value: 0}},
		{"over 100 percent", domain.Discount{Name: "x", Type: domain.DiscountPercentage, Value: 101}},
		{"negative minimum", domain.Discount{Name: "x", Type: domain.DiscountFixed, Value: 1, MinPurchase: domain.Ptr(int64(-1))}},
		{"bad date", domain.Discount{Name: "x", Type: domain.DiscountFixed, Value: 1, EndDate: domain.Ptr("next week")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := setup(t)
			_, err := svc.SaveDiscount(context.Background(), tt.d)
			assert.True(t, domain.IsValidation(err), "got %v", err)
		})
	}
}

func TestToggleAndDeleteDiscount(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	d, err := svc.SaveDiscount(ctx, domain.Discount{Code: "X1", Name: "X", Type: domain.DiscountFixed, Value: 1, IsActive: true})
	require.NoError(t, err)

	active, err := svc.ToggleDiscount(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, active)
	active, err = svc.ToggleDiscount(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, svc.DeleteDiscount(ctx, d.ID))
	ds, err := svc.Discounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, ds)

	_, err = svc.ToggleDiscount(ctx, d.ID)
	assert.True(t, domain.IsNotFound(err))
}

func TestSettings(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	got, err := svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultStoreName, got.Name)
	assert.Empty(t, queued(t, st))

	_, err = svc.SaveSettings(ctx, domain.StoreSettings{Name: "Warung Maju", ReceiptFooter: domain.Ptr("Terima kasih")})
	require.NoError(t, err)
	_, err = svc.SaveSettings(ctx, domain.StoreSettings{Name: "Warung Maju Jaya"})
	require.NoError(t, err)

	got, err = svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SettingsID, got.ID)
	assert.Equal(t, "Warung Maju Jaya", got.Name)

	ops := queued(t, st)
	require.Len(t, ops, 2)
	assert.Equal(t, domain.ActionInsert, ops[0].Action)
	assert.Equal(t, domain.ActionUpdate, ops[1].Action)
}
