package cart

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/craftora/marketplace/internal/models"
	"github.com/craftora/marketplace/internal/service"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, gdb.AutoMigrate(models.All()...))
	return gdb
}

func seedProduct(t *testing.T, db *gorm.DB, price float64, stock uint) models.Product {
	t.Helper()
	p := models.Product{
		VendorID: 1, Title: "Widget", Description: "d", Price: price,
		Category: "misc", Stock: stock,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func TestAddSnapshotsUnitPrice(t *testing.T) {
	s := New(openTestDB(t))
	p := seedProduct(t, s.DB, 19.99, 10)

	item, err := s.Add(context.Background(), 1, p.ID, 2)
	require.NoError(t, err)
	require.Equal(t, uint(2), item.Quantity)
	require.Equal(t, 19.99, item.UnitPrice)

	// A later price change does not touch the snapshot.
	require.NoError(t, s.DB.Model(&p).Update("price", 29.99).Error)
	items, err := s.Items(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 19.99, items[0].UnitPrice)
}

func TestAddSumsQuantitiesIntoExistingLine(t *testing.T) {
	s := New(openTestDB(t))
	p := seedProduct(t, s.DB, 10, 5)

	_, err := s.Add(context.Background(), 1, p.ID, 2)
	require.NoError(t, err)
	item, err := s.Add(context.Background(), 1, p.ID, 2)
	require.NoError(t, err)
	require.Equal(t, uint(4), item.Quantity)

	// Summed quantity above stock is rejected.
	_, err = s.Add(context.Background(), 1, p.ID, 2)
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestAddDefaultsQuantityToOne(t *testing.T) {
	s := New(openTestDB(t))
	p := seedProduct(t, s.DB, 10, 5)

	item, err := s.Add(context.Background(), 1, p.ID, 0)
	require.NoError(t, err)
	require.Equal(t, uint(1), item.Quantity)
}

func TestAddUnknownProduct(t *testing.T) {
	s := New(openTestDB(t))

	_, err := s.Add(context.Background(), 1, 999, 1)
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	s := New(openTestDB(t))
	p := seedProduct(t, s.DB, 10, 5)

	_, err := s.Add(context.Background(), 1, p.ID, 2)
	require.NoError(t, err)

	item, err := s.UpdateQuantity(context.Background(), 1, p.ID, 0)
	require.NoError(t, err)
	require.Nil(t, item)

	items, err := s.Items(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestUpdateQuantityChecksStock(t *testing.T) {
	s := New(openTestDB(t))
	p := seedProduct(t, s.DB, 10, 5)

	_, err := s.Add(context.Background(), 1, p.ID, 1)
	require.NoError(t, err)

	_, err = s.UpdateQuantity(context.Background(), 1, p.ID, 6)
	require.ErrorIs(t, err, service.ErrValidation)

	item, err := s.UpdateQuantity(context.Background(), 1, p.ID, 5)
	require.NoError(t, err)
	require.Equal(t, uint(5), item.Quantity)
}

func TestRemoveMissingLine(t *testing.T) {
	s := New(openTestDB(t))

	err := s.Remove(context.Background(), 1, 42)
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestSubtotal(t *testing.T) {
	s := New(openTestDB(t))
	p1 := seedProduct(t, s.DB, 10.00, 10)
	p2 := models.Product{VendorID: 1, Title: "Other", Description: "d", Price: 5.00, Category: "misc", Stock: 10}
	require.NoError(t, s.DB.Create(&p2).Error)

	_, err := s.Add(context.Background(), 1, p1.ID, 2)
	require.NoError(t, err)
	_, err = s.Add(context.Background(), 1, p2.ID, 3)
	require.NoError(t, err)

	subtotal, err := s.Subtotal(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 35.00, subtotal)

	require.NoError(t, s.Clear(context.Background(), 1))
	subtotal, err = s.Subtotal(context.Background(), 1)
	require.NoError(t, err)
	require.Zero(t, subtotal)
}
