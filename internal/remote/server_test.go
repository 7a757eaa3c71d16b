package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/record"
	"github.com/roach88/kasir/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func openStore(t *testing.T, name string) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// startServer runs a Server over a fresh store and returns a client for it.
func startServer(t *testing.T, key string) (*HTTPClient, *store.Store) {
	t.Helper()
	st := openStore(t, "remote.db")
	srv := httptest.NewServer(NewServer(st, WithServerKey(key)).Handler())
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", WithAPIKey(key), WithHTTPClient(srv.Client())), st
}

func product(id, name string, active bool) record.Record {
	return record.Record{"id": id, "name": name, "price": int64(1000), "is_active": active}
}

func TestHTTP_InsertIsIdempotent(t *testing.T) {
	client, st := startServer(t, "secret")
	ctx := context.Background()

	rec := product("p-1", "Kopi", true)
	require.NoError(t, client.Insert(ctx, domain.CollectionProducts, rec))
	require.NoError(t, client.Insert(ctx, domain.CollectionProducts, rec))

	n, err := st.Count(ctx, store.Query{Collection: domain.CollectionProducts})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, ok, err := st.Get(ctx, domain.CollectionProducts, "p-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1000), got["price"])
}

func TestHTTP_UpsertAndDelete(t *testing.T) {
	client, st := startServer(t, "")
	ctx := context.Background()

	require.NoError(t, client.Insert(ctx, domain.CollectionCustomers, record.Record{"id": "c-1", "name": "Budi"}))
	require.NoError(t, client.Upsert(ctx, domain.CollectionCustomers, record.Record{"id": "c-1", "name": "Budi S", "points": int64(3)}))

	got, ok, err := st.Get(ctx, domain.CollectionCustomers, "c-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Budi S", got["name"])

	require.NoError(t, client.Delete(ctx, domain.CollectionCustomers, "c-1"))
	require.NoError(t, client.Delete(ctx, domain.CollectionCustomers, "c-1"), "deleting twice succeeds")
	_, ok, err = st.Get(ctx, domain.CollectionCustomers, "c-1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, client.Upsert(ctx, domain.CollectionCustomers, record.Record{"name": "no id"}))
}

func TestHTTP_FetchCatalog(t *testing.T) {
	client, st := startServer(t, "")
	ctx := context.Background()

	require.NoError(t, st.BulkPut(ctx, domain.CollectionProducts, []record.Record{
		product("p-2", "Teh", true),
		product("p-1", "Kopi", true),
		product("p-3", "Air", false),
	}))
	require.NoError(t, st.BulkPut(ctx, domain.CollectionCategories, []record.Record{
		{"id": "cat-b", "name": "Makanan", "sort_order": int64(1)},
		{"id": "cat-a", "name": "Minuman", "sort_order": int64(0)},
	}))

	products, err := client.FetchProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Kopi", products[0]["name"])
	assert.Equal(t, "Teh", products[1]["name"])

	categories, err := client.FetchCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "cat-a", categories[0].ID())
	assert.Equal(t, int64(0), categories[0]["sort_order"])
}

func TestHTTP_Errors(t *testing.T) {
	client, _ := startServer(t, "secret")
	ctx := context.Background()

	t.Run("wrong key", func(t *testing.T) {
		bad := NewHTTPClient(client.baseURL, WithAPIKey("nope"))
		err := bad.Insert(ctx, domain.CollectionProducts, product("p-1", "Kopi", true))
		var se *StatusError
		require.True(t, errors.As(err, &se), "got %v", err)
		assert.Equal(t, http.StatusUnauthorized, se.Status)
	})

	t.Run("unknown table rejected locally", func(t *testing.T) {
		err := client.Insert(ctx, "users", record.Record{"id": "u-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown table")
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := client.FetchProducts(cctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestServer_Routes(t *testing.T) {
	st := openStore(t, "remote.db")
	h := NewServer(st).Handler()

	serve := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"health", http.MethodGet, "/healthz", "", http.StatusOK},
		{"unknown table", http.MethodGet, "/rest/users", "", http.StatusNotFound},
		{"insert without id", http.MethodPost, "/rest/products", `{"name":"Kopi"}`, http.StatusBadRequest},
		{"insert malformed", http.MethodPost, "/rest/products", `{"id":`, http.StatusBadRequest},
		{"insert", http.MethodPost, "/rest/products", `{"id":"p-1","name":"Kopi"}`, http.StatusCreated},
		{"get", http.MethodGet, "/rest/products/p-1", "", http.StatusOK},
		{"get missing", http.MethodGet, "/rest/products/p-9", "", http.StatusNotFound},
		{"put mismatched id", http.MethodPut, "/rest/products/p-1", `{"id":"p-2"}`, http.StatusBadRequest},
		{"put fills id", http.MethodPut, "/rest/products/p-5", `{"name":"Roti"}`, http.StatusOK},
		{"delete", http.MethodDelete, "/rest/products/p-1", "", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	rec, ok, err := st.Get(context.Background(), domain.CollectionProducts, "p-5")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Roti", rec["name"])

	n, err := st.PendingCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "server writes are never queued")
}
