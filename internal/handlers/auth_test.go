package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/craftora/marketplace/internal/models"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"name":             "Ada",
		"email":            "Ada@Example.com",
		"password":         "password123",
		"confirm_password": "password123",
	})
	requireStatus(t, rec, http.StatusCreated)
	body := decodeJSON(t, rec)
	require.NotEmpty(t, body["access_token"])
	require.NotEmpty(t, body["refresh_token"])
	require.NotEmpty(t, env.producer.byType("user_registered"))

	// Email is stored lowercased and duplicates are rejected.
	rec = env.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"name":             "Ada",
		"email":            "ada@example.com",
		"password":         "password123",
		"confirm_password": "password123",
	})
	requireStatus(t, rec, http.StatusConflict)

	rec = env.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "ada@example.com",
		"password": "password123",
	})
	requireStatus(t, rec, http.StatusOK)
	body = decodeJSON(t, rec)
	require.NotEmpty(t, body["access_token"])

	rec = env.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "ada@example.com",
		"password": "wrong-password",
	})
	requireStatus(t, rec, http.StatusUnauthorized)
}

func TestRegisterRejectsMismatchedPasswords(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"name":             "Ada",
		"email":            "ada@example.com",
		"password":         "password123",
		"confirm_password": "different123",
	})
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestVendorRegistrationIsPendingApproval(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"name":             "Shop Owner",
		"email":            "shop@example.com",
		"password":         "password123",
		"confirm_password": "password123",
		"role":             "vendor",
	})
	requireStatus(t, rec, http.StatusCreated)

	rec = env.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "shop@example.com",
		"password": "password123",
	})
	requireStatus(t, rec, http.StatusUnauthorized)
}

func TestBlockedUserCannotLogin(t *testing.T) {
	env := newTestEnv(t)
	u, _ := env.seedUser(t, "blocked@example.com", models.RoleUser)
	require.NoError(t, env.db.Model(&u).Update("blocked", true).Error)

	rec := env.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "blocked@example.com",
		"password": "password123",
	})
	requireStatus(t, rec, http.StatusForbidden)
}

func TestProfileRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	_, bearer := env.seedUser(t, "me@example.com", models.RoleUser)

	rec := env.doJSON(t, http.MethodGet, "/api/v1/auth/profile", "", nil)
	requireStatus(t, rec, http.StatusUnauthorized)

	rec = env.doJSON(t, http.MethodGet, "/api/v1/auth/profile", bearer, nil)
	requireStatus(t, rec, http.StatusOK)
	body := decodeJSON(t, rec)
	require.Equal(t, "me@example.com", body["email"])
	// Password hash never leaves the API.
	require.NotContains(t, rec.Body.String(), "password")
}

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"name":             "Ada",
		"email":            "ada@example.com",
		"password":         "password123",
		"confirm_password": "password123",
	})
	requireStatus(t, rec, http.StatusCreated)
	refresh := decodeJSON(t, rec)["refresh_token"].(string)

	rec = env.doJSON(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]any{
		"refresh_token": refresh,
	})
	requireStatus(t, rec, http.StatusOK)
	next := decodeJSON(t, rec)["refresh_token"].(string)
	require.NotEqual(t, refresh, next)

	// The old token is burned.
	rec = env.doJSON(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]any{
		"refresh_token": refresh,
	})
	requireStatus(t, rec, http.StatusUnauthorized)
}

func TestAdminBlockUnblock(t *testing.T) {
	env := newTestEnv(t)
	u, _ := env.seedUser(t, "victim@example.com", models.RoleUser)
	_, adminBearer := env.seedUser(t, "admin@example.com", models.RoleAdmin)
	_, userBearer := env.seedUser(t, "pleb@example.com", models.RoleUser)

	// Non-admin cannot block.
	rec := env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/users/%d/block", u.ID), userBearer, nil)
	requireStatus(t, rec, http.StatusForbidden)

	rec = env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/users/%d/block", u.ID), adminBearer, nil)
	requireStatus(t, rec, http.StatusOK)

	var reloaded models.User
	require.NoError(t, env.db.First(&reloaded, u.ID).Error)
	require.True(t, reloaded.Blocked)

	rec = env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/users/%d/unblock", u.ID), adminBearer, nil)
	requireStatus(t, rec, http.StatusOK)
	require.NoError(t, env.db.First(&reloaded, u.ID).Error)
	require.False(t, reloaded.Blocked)
}

func TestForgotAndResetPassword(t *testing.T) {
	env := newTestEnv(t)
	u, _ := env.seedUser(t, "forgot@example.com", models.RoleUser)

	rec := env.doJSON(t, http.MethodPost, "/api/v1/auth/forgot-password", "", map[string]any{
		"email": "forgot@example.com",
	})
	requireStatus(t, rec, http.StatusOK)

	// An unknown email gets the same answer.
	rec = env.doJSON(t, http.MethodPost, "/api/v1/auth/forgot-password", "", map[string]any{
		"email": "unknown@example.com",
	})
	requireStatus(t, rec, http.StatusOK)

	var reloaded models.User
	require.NoError(t, env.db.First(&reloaded, u.ID).Error)
	require.Len(t, reloaded.OTP, 6)
	for _, r := range reloaded.OTP {
		require.True(t, r >= '0' && r <= '9')
	}

	rec = env.doJSON(t, http.MethodPost, "/api/v1/auth/reset-password", "", map[string]any{
		"email":            "forgot@example.com",
		"otp":              "000000",
		"password":         "newpassword1",
		"confirm_password": "newpassword1",
	})
	if reloaded.OTP != "000000" {
		requireStatus(t, rec, http.StatusBadRequest)
	}

	rec = env.doJSON(t, http.MethodPost, "/api/v1/auth/reset-password", "", map[string]any{
		"email":            "forgot@example.com",
		"otp":              reloaded.OTP,
		"password":         "newpassword1",
		"confirm_password": "newpassword1",
	})
	requireStatus(t, rec, http.StatusOK)

	rec = env.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "forgot@example.com",
		"password": "newpassword1",
	})
	requireStatus(t, rec, http.StatusOK)
}
