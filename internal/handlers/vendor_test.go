package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/craftora/marketplace/internal/models"
)

func applyPayload(shop string) map[string]any {
	return map[string]any{
		"shop_name":      shop,
		"business_name":  shop + " LLC",
		"contact_person": "Grace",
		"phone_number":   "555-0100",
		"email":          "grace@example.com",
	}
}

func TestVendorApplicationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	applicant, bearer := env.seedUser(t, "applicant@example.com", models.RoleUser)
	_, adminBearer := env.seedUser(t, "admin@example.com", models.RoleAdmin)

	rec := env.doJSON(t, http.MethodPost, "/api/v1/vendors/apply", bearer, applyPayload("Grace Goods"))
	requireStatus(t, rec, http.StatusCreated)
	body := decodeJSON(t, rec)
	require.Equal(t, models.VendorStatusPending, body["status"])
	vendorID := body["id"].(float64)

	// One application per user, one shop name globally.
	rec = env.doJSON(t, http.MethodPost, "/api/v1/vendors/apply", bearer, applyPayload("Other Shop"))
	requireStatus(t, rec, http.StatusConflict)

	_, otherBearer := env.seedUser(t, "other@example.com", models.RoleUser)
	rec = env.doJSON(t, http.MethodPost, "/api/v1/vendors/apply", otherBearer, applyPayload("Grace Goods"))
	requireStatus(t, rec, http.StatusConflict)

	// Suspend before approval is rejected.
	suspendPath := fmt.Sprintf("/api/v1/admin/vendors/%.0f/suspend", vendorID)
	rec = env.doJSON(t, http.MethodPost, suspendPath, adminBearer, map[string]any{"reason": "tos"})
	requireStatus(t, rec, http.StatusConflict)

	approvePath := fmt.Sprintf("/api/v1/admin/vendors/%.0f/approve", vendorID)
	rec = env.doJSON(t, http.MethodPost, approvePath, adminBearer, nil)
	requireStatus(t, rec, http.StatusOK)
	require.Equal(t, models.VendorStatusApproved, decodeJSON(t, rec)["status"])

	// Approval promotes the user to vendor.
	var reloaded models.User
	require.NoError(t, env.db.First(&reloaded, applicant.ID).Error)
	require.Equal(t, models.RoleVendor, reloaded.Role)
	require.True(t, reloaded.Approved)

	// Approve twice is rejected.
	rec = env.doJSON(t, http.MethodPost, approvePath, adminBearer, nil)
	requireStatus(t, rec, http.StatusConflict)

	// Suspend and unsuspend.
	rec = env.doJSON(t, http.MethodPost, suspendPath, adminBearer, map[string]any{"reason": "tos"})
	requireStatus(t, rec, http.StatusOK)
	require.NoError(t, env.db.First(&reloaded, applicant.ID).Error)
	require.False(t, reloaded.Approved)

	unsuspendPath := fmt.Sprintf("/api/v1/admin/vendors/%.0f/unsuspend", vendorID)
	rec = env.doJSON(t, http.MethodPost, unsuspendPath, adminBearer, nil)
	requireStatus(t, rec, http.StatusOK)
	require.NoError(t, env.db.First(&reloaded, applicant.ID).Error)
	require.True(t, reloaded.Approved)
}

func TestVendorRejectionRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	_, bearer := env.seedUser(t, "applicant@example.com", models.RoleUser)
	_, adminBearer := env.seedUser(t, "admin@example.com", models.RoleAdmin)

	rec := env.doJSON(t, http.MethodPost, "/api/v1/vendors/apply", bearer, applyPayload("Rejected Shop"))
	requireStatus(t, rec, http.StatusCreated)
	vendorID := decodeJSON(t, rec)["id"].(float64)

	rejectPath := fmt.Sprintf("/api/v1/admin/vendors/%.0f/reject", vendorID)
	rec = env.doJSON(t, http.MethodPost, rejectPath, adminBearer, nil)
	requireStatus(t, rec, http.StatusBadRequest)

	rec = env.doJSON(t, http.MethodPost, rejectPath, adminBearer, map[string]any{"reason": "incomplete docs"})
	requireStatus(t, rec, http.StatusOK)
	body := decodeJSON(t, rec)
	require.Equal(t, models.VendorStatusRejected, body["status"])
	require.Equal(t, "incomplete docs", body["rejection_reason"])
}
