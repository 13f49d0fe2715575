package token

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/craftora/marketplace/internal/models"
	"github.com/craftora/marketplace/internal/service"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, gdb.AutoMigrate(models.All()...))
	return &Service{
		DB:            gdb,
		JWTSecret:     []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
	}
}

func TestIssueAndParseAccess(t *testing.T) {
	s := newTestService(t)

	pair, err := s.Issue(context.Background(), 42, models.RoleVendor)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	userID, role, err := s.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, uint(42), userID)
	require.Equal(t, models.RoleVendor, role)
}

func TestParseAccessRejectsRefreshToken(t *testing.T) {
	s := newTestService(t)

	pair, err := s.Issue(context.Background(), 1, models.RoleUser)
	require.NoError(t, err)

	_, _, err = s.ParseAccess(pair.RefreshToken)
	require.Error(t, err)
}

func TestParseAccessRejectsWrongSecret(t *testing.T) {
	s := newTestService(t)
	other := newTestService(t)
	other.JWTSecret = []byte("different")

	pair, err := s.Issue(context.Background(), 1, models.RoleUser)
	require.NoError(t, err)

	_, _, err = other.ParseAccess(pair.AccessToken)
	require.Error(t, err)
}

func TestRotateRevokesOldToken(t *testing.T) {
	s := newTestService(t)

	pair, err := s.Issue(context.Background(), 1, models.RoleUser)
	require.NoError(t, err)

	next, err := s.Rotate(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The rotated-out token cannot be used again.
	_, err = s.Rotate(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrForbidden)
}

func TestRevoke(t *testing.T) {
	s := newTestService(t)

	pair, err := s.Issue(context.Background(), 1, models.RoleUser)
	require.NoError(t, err)
	require.NoError(t, s.Revoke(context.Background(), pair.RefreshToken))

	_, err = s.Rotate(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrForbidden)
}
