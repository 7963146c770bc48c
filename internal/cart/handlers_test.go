package cart_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-promo/internal/cart"
	"github.com/noah-isme/backend-promo/internal/promotion"
)

type cartResponse struct {
	Data struct {
		ID       string `json:"id"`
		ShopCode string `json:"shopCode"`
		Currency string `json:"currency"`
		State    string `json:"state"`
		Version  int64  `json:"version"`
		Items    []struct {
			SKU               string   `json:"sku"`
			Price             string   `json:"price"`
			LineTotal         string   `json:"lineTotal"`
			AppliedPromotions []string `json:"appliedPromotions"`
		} `json:"items"`
		SubTotal        string   `json:"subTotal"`
		OrderPromotions []string `json:"orderPromotions"`
		Total           string   `json:"total"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newRouter(t *testing.T, cat *stubCatalog) http.Handler {
	t.Helper()
	h := &cart.Handler{Svc: newService(t, cat), Validate: validator.New(), Scale: 2}
	r := chi.NewRouter()
	r.Route("/api/v1/carts", func(r chi.Router) { h.Routes(r) })
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cartResponse {
	t.Helper()
	var resp cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCartHandlersFlow(t *testing.T) {
	cat := newStubCatalog()
	cat.promos = []promotion.Promotion{code10()}
	router := newRouter(t, cat)

	rec := do(t, router, http.MethodPost, "/api/v1/carts", `{"shopCode":"SHOP10","currency":"EUR"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeCart(t, rec)
	id := created.Data.ID
	require.NotEmpty(t, id)
	require.Equal(t, "EMPTY", created.Data.State)
	require.Equal(t, "0.00", created.Data.Total)

	rec = do(t, router, http.MethodPut, "/api/v1/carts/"+id+"/items/CC_TEST4", `{"qty":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	priced := decodeCart(t, rec)
	require.Equal(t, "RECALCULATED", priced.Data.State)
	require.Len(t, priced.Data.Items, 1)
	require.Equal(t, "110.70", priced.Data.Items[0].Price)
	require.Equal(t, "221.40", priced.Data.Items[0].LineTotal)
	require.Equal(t, []string{"CODE10"}, priced.Data.Items[0].AppliedPromotions)
	require.Equal(t, []string{}, priced.Data.OrderPromotions)

	rec = do(t, router, http.MethodPost, "/api/v1/carts/"+id+"/items", `{"sku":"CC_TEST5","qty":"1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "273.81", decodeCart(t, rec).Data.SubTotal)

	rec = do(t, router, http.MethodDelete, "/api/v1/carts/"+id+"/items/CC_TEST5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "221.40", decodeCart(t, rec).Data.SubTotal)

	rec = do(t, router, http.MethodPut, "/api/v1/carts/"+id+"/delivery", `{"amount":"4.90"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "226.30", decodeCart(t, rec).Data.Total)

	rec = do(t, router, http.MethodPost, "/api/v1/carts/"+id+"/recalculate", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/carts/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeCart(t, rec)
	require.Equal(t, int64(5), got.Data.Version)

	rec = do(t, router, http.MethodDelete, "/api/v1/carts/"+id+"/items", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decodeCart(t, rec).Data.Items)
}

func TestCartHandlersErrors(t *testing.T) {
	cat := newStubCatalog()
	router := newRouter(t, cat)

	rec := do(t, router, http.MethodPost, "/api/v1/carts", `{"shopCode":"SHOP10","currency":"EUR"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeCart(t, rec).Data.ID

	t.Run("validation", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/api/v1/carts", `{"shopCode":"SHOP10","currency":"EURO"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeError(t, rec)
		require.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
		require.Contains(t, resp.Error.Details, "Currency")
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := do(t, router, http.MethodPut, "/api/v1/carts/"+id+"/items/CC_TEST4", `{"qty":`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("negative quantity", func(t *testing.T) {
		rec := do(t, router, http.MethodPut, "/api/v1/carts/"+id+"/items/CC_TEST4", `{"qty":-1}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "BAD_REQUEST", decodeError(t, rec).Error.Code)
	})

	t.Run("unpriced sku", func(t *testing.T) {
		rec := do(t, router, http.MethodPut, "/api/v1/carts/"+id+"/items/NOPE", `{"qty":1}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "SKU_NOT_PRICED", decodeError(t, rec).Error.Code)
	})

	t.Run("unknown cart", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/v1/carts/missing", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("catalog unavailable", func(t *testing.T) {
		cat.mu.Lock()
		cat.err = errCatalogDown
		cat.mu.Unlock()
		defer func() {
			cat.mu.Lock()
			cat.err = nil
			cat.mu.Unlock()
		}()
		rec := do(t, router, http.MethodPut, "/api/v1/carts/"+id+"/items/CC_TEST4", `{"qty":1}`)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Equal(t, "CATALOG_UNAVAILABLE", decodeError(t, rec).Error.Code)
	})

	rec = do(t, router, http.MethodGet, "/api/v1/carts/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(0), decodeCart(t, rec).Data.Version)
}
