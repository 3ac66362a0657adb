package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartsvc "github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/selection"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

func TestCartViewRequiresCustomer(t *testing.T) {
	rec := httptest.NewRecorder()
	CartView(&fakeCart{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartViewReturnsEnvelope(t *testing.T) {
	svc := &fakeCart{view: &cartsvc.View{
		SelectedIDs:     selection.NewSet("1"),
		SelectedCount:   1,
		Subtotal:        decimal.NewFromInt(150000),
		SubtotalDisplay: "150.000 ₫",
	}}
	req := asCustomer(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil), "42")
	rec := httptest.NewRecorder()
	CartView(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			SelectedIDs     []string `json:"selected_ids"`
			SubtotalDisplay string   `json:"subtotal_display"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"1"}, body.Data.SelectedIDs)
	assert.Equal(t, "150.000 ₫", body.Data.SubtotalDisplay)
}

func TestCartUpdateQuantityValidatesBody(t *testing.T) {
	svc := &fakeCart{view: &cartsvc.View{}}

	req := asCustomer(httptest.NewRequest(http.MethodPatch, "/api/v1/cart/lines/5", strings.NewReader(`{"quantity":0}`)), "42")
	req = withURLParam(req, "lineId", "5")
	rec := httptest.NewRecorder()
	CartUpdateQuantity(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = asCustomer(httptest.NewRequest(http.MethodPatch, "/api/v1/cart/lines/5", strings.NewReader(`{"quantity":3}`)), "42")
	req = withURLParam(req, "lineId", "5")
	rec = httptest.NewRecorder()
	CartUpdateQuantity(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", svc.lastLine)
	assert.Equal(t, 3, svc.lastQty)
}

func TestCartRemoveLineSurfacesNotFound(t *testing.T) {
	svc := &fakeCart{err: pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")}
	req := withURLParam(asCustomer(httptest.NewRequest(http.MethodDelete, "/api/v1/cart/lines/9", nil), "42"), "lineId", "9")
	rec := httptest.NewRecorder()
	CartRemoveLine(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "9", svc.lastLine)
}

func TestSelectionClearReturnsEmptyArray(t *testing.T) {
	req := asCustomer(httptest.NewRequest(http.MethodDelete, "/api/v1/cart/selection", nil), "42")
	rec := httptest.NewRecorder()
	SelectionClear(&fakeCart{}, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"selected_ids":[]}}`, rec.Body.String())
}

func TestSelectionTogglePassesLine(t *testing.T) {
	svc := &fakeCart{set: selection.NewSet("2", "3")}
	req := withURLParam(asCustomer(httptest.NewRequest(http.MethodPost, "/api/v1/cart/selection/3/toggle", nil), "42"), "lineId", "3")
	rec := httptest.NewRecorder()
	SelectionToggle(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", svc.lastLine)
	assert.JSONEq(t, `{"data":{"selected_ids":["2","3"]}}`, rec.Body.String())
}
