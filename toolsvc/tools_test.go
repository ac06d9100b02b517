package toolsvc

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaymesh/a2a-go-sdk/wire"
)

func TestFindProductBySKUAndName(t *testing.T) {
	svc := DefaultService()

	status, body := svc.Invoke("find_product", map[string]any{"query": "sku-kb01"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, wire.StatusSuccess, body.Status)
	results := body.Data.([]Product)
	require.Len(t, results, 1)
	assert.Equal(t, "Mechanical Keyboard", results[0].Name)

	// Exact name match, case-insensitive.
	_, body = svc.Invoke("find_product", map[string]any{"query": "WIRELESS MOUSE"})
	results = body.Data.([]Product)
	require.Len(t, results, 1)
	assert.Equal(t, "SKU-MS02", results[0].SKU)

	// Substrings do not match.
	_, body = svc.Invoke("find_product", map[string]any{"query": "mouse"})
	assert.Empty(t, body.Data.([]Product))
}

func TestCalcShipping(t *testing.T) {
	svc := DefaultService()

	status, body := svc.Invoke("calc_shipping", map[string]any{"weight": 2.0, "distance": 10.0})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 12.0, body.Data)

	// Rounded to two decimals.
	_, body = svc.Invoke("calc_shipping", map[string]any{"weight": 0.333, "distance": 0.0})
	assert.Equal(t, 5.33, body.Data)
}

func TestReserveStock(t *testing.T) {
	catalog := NewCatalog(Product{SKU: "SKU-XX01", Name: "Widget", Price: 1, Currency: "USD", Stock: 5})
	svc, err := NewService(CatalogTools(catalog)...)
	require.NoError(t, err)

	status, body := svc.Invoke("reserve_stock", map[string]any{"sku": "SKU-XX01", "quantity": 3})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, wire.StatusSuccess, body.Status)

	result := body.Data.(map[string]any)
	assert.Equal(t, true, result["reserved"])
	assert.Equal(t, 2, result["remaining"])
	_, err = uuid.Parse(result["reservation_id"].(string))
	assert.NoError(t, err, "reservation id must be a UUID")

	remaining, ok := catalog.Stock("SKU-XX01")
	require.True(t, ok)
	assert.Equal(t, 2, remaining)

	// Over-reserving what is left.
	_, body = svc.Invoke("reserve_stock", map[string]any{"sku": "SKU-XX01", "quantity": 3})
	assert.Equal(t, wire.StatusQuantityExceeded, body.Status)
	assert.Equal(t, false, body.Data)

	// Unknown SKU.
	_, body = svc.Invoke("reserve_stock", map[string]any{"sku": "SKU-NOPE", "quantity": 1})
	assert.Equal(t, wire.StatusProductNotFound, body.Status)
}
