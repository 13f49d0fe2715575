package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/craftora/marketplace/internal/models"
)

func TestProductListFiltersAndPaginates(t *testing.T) {
	env := newTestEnv(t)
	vendor, _ := env.seedUser(t, "vendor@example.com", models.RoleVendor)

	env.seedProduct(t, vendor.ID, "Cheap Mug", 5.00, 10)
	env.seedProduct(t, vendor.ID, "Fancy Mug", 25.00, 10)
	p := env.seedProduct(t, vendor.ID, "Lamp", 80.00, 10)
	require.NoError(t, env.db.Model(&p).Update("category", "lighting").Error)

	rec := env.doJSON(t, http.MethodGet, "/api/v1/products", "", nil)
	requireStatus(t, rec, http.StatusOK)
	body := decodeJSON(t, rec)
	require.Len(t, body["products"], 3)

	rec = env.doJSON(t, http.MethodGet, "/api/v1/products?category=lighting", "", nil)
	requireStatus(t, rec, http.StatusOK)
	require.Len(t, decodeJSON(t, rec)["products"], 1)

	rec = env.doJSON(t, http.MethodGet, "/api/v1/products?min_price=10&max_price=50", "", nil)
	requireStatus(t, rec, http.StatusOK)
	require.Len(t, decodeJSON(t, rec)["products"], 1)

	rec = env.doJSON(t, http.MethodGet, "/api/v1/products?search=mug", "", nil)
	requireStatus(t, rec, http.StatusOK)
	require.Len(t, decodeJSON(t, rec)["products"], 2)

	rec = env.doJSON(t, http.MethodGet, "/api/v1/products?page=1&limit=2", "", nil)
	requireStatus(t, rec, http.StatusOK)
	body = decodeJSON(t, rec)
	require.Len(t, body["products"], 2)
	pagination := body["pagination"].(map[string]any)
	require.Equal(t, float64(3), pagination["total"])
	require.Equal(t, float64(2), pagination["pages"])
}

func TestProductCreateRequiresVendorRole(t *testing.T) {
	env := newTestEnv(t)
	_, userBearer := env.seedUser(t, "user@example.com", models.RoleUser)
	_, vendorBearer := env.seedUser(t, "vendor@example.com", models.RoleVendor)

	payload := map[string]any{
		"title":       "Handmade Bowl",
		"description": "A bowl",
		"price":       42.50,
		"category":    "kitchen",
		"stock":       7,
	}

	rec := env.doJSON(t, http.MethodPost, "/api/v1/products", "", payload)
	requireStatus(t, rec, http.StatusUnauthorized)

	rec = env.doJSON(t, http.MethodPost, "/api/v1/products", userBearer, payload)
	requireStatus(t, rec, http.StatusForbidden)

	rec = env.doJSON(t, http.MethodPost, "/api/v1/products", vendorBearer, payload)
	requireStatus(t, rec, http.StatusCreated)
	body := decodeJSON(t, rec)
	require.Equal(t, "Handmade Bowl", body["title"])
	require.NotEmpty(t, env.producer.byType("product_created"))
}

func TestProductUpdateOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner, ownerBearer := env.seedUser(t, "owner@example.com", models.RoleVendor)
	_, otherBearer := env.seedUser(t, "other@example.com", models.RoleVendor)
	_, adminBearer := env.seedUser(t, "admin@example.com", models.RoleAdmin)

	p := env.seedProduct(t, owner.ID, "Vase", 30.00, 3)
	payload := map[string]any{
		"title":       "Vase v2",
		"description": "Updated",
		"price":       35.00,
		"category":    "decor",
		"stock":       3,
	}

	path := fmt.Sprintf("/api/v1/products/%d", p.ID)

	rec := env.doJSON(t, http.MethodPut, path, otherBearer, payload)
	requireStatus(t, rec, http.StatusForbidden)

	rec = env.doJSON(t, http.MethodPut, path, ownerBearer, payload)
	requireStatus(t, rec, http.StatusOK)
	require.Equal(t, "Vase v2", decodeJSON(t, rec)["title"])

	// Admins can edit any product.
	rec = env.doJSON(t, http.MethodPut, path, adminBearer, payload)
	requireStatus(t, rec, http.StatusOK)

	rec = env.doJSON(t, http.MethodDelete, path, otherBearer, nil)
	requireStatus(t, rec, http.StatusForbidden)
	rec = env.doJSON(t, http.MethodDelete, path, adminBearer, nil)
	requireStatus(t, rec, http.StatusNoContent)
}

func TestProductRecommendations(t *testing.T) {
	env := newTestEnv(t)
	vendor, _ := env.seedUser(t, "vendor@example.com", models.RoleVendor)

	base := env.seedProduct(t, vendor.ID, "Desk Lamp", 100.00, 5)
	near := env.seedProduct(t, vendor.ID, "Floor Lamp", 110.00, 5)
	far := env.seedProduct(t, vendor.ID, "Chandelier", 500.00, 5)
	for _, id := range []uint{base.ID, near.ID, far.ID} {
		require.NoError(t, env.db.Model(&models.Product{}).Where("id = ?", id).
			Update("category", "lighting").Error)
	}

	rec := env.doJSON(t, http.MethodGet,
		fmt.Sprintf("/api/v1/products/%d/recommendations", base.ID), "", nil)
	requireStatus(t, rec, http.StatusOK)

	var ids []float64
	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	for _, p := range out {
		ids = append(ids, p["id"].(float64))
	}
	require.Contains(t, ids, float64(near.ID))
	require.NotContains(t, ids, float64(far.ID))
	require.NotContains(t, ids, float64(base.ID))
}
