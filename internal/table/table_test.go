package table

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"foodorder-backend/internal/apperr"
	"foodorder-backend/internal/database/dbtest"
	"foodorder-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedTable(t *testing.T, db *gorm.DB, number int) models.Table {
	t.Helper()
	tbl := models.Table{TableNumber: number, Capacity: 2, Status: models.TableStatusAvailable}
	require.NoError(t, db.Create(&tbl).Error)
	return tbl
}

func seedOrder(t *testing.T, db *gorm.DB, tableID uint, status models.OrderStatus, at time.Time) models.Order {
	t.Helper()
	o := models.Order{TableID: tableID, CustomerName: "Guest", OrderTime: at, Status: status, TotalAmount: decimal.Zero}
	require.NoError(t, db.Create(&o).Error)
	return o
}

func TestReconcile(t *testing.T) {
	db := dbtest.New(t)
	tbl := seedTable(t, db, 1)
	now := time.Now().UTC()

	older := seedOrder(t, db, tbl.ID, models.OrderStatusPreparing, now.Add(-time.Hour))
	seedOrder(t, db, tbl.ID, models.OrderStatusCompleted, now.Add(-time.Minute))
	gone := seedOrder(t, db, tbl.ID, models.OrderStatusPending, now)
	require.NoError(t, Occupy(db, tbl.ID, gone.ID))

	require.NoError(t, Reconcile(db, tbl.ID, gone.ID))
	var got models.Table
	require.NoError(t, db.First(&got, tbl.ID).Error)
	assert.True(t, got.IsOccupied)
	require.NotNil(t, got.CurrentOrderID)
	assert.Equal(t, older.ID, *got.CurrentOrderID)

	// with gone removed and older settled nothing active is left
	require.NoError(t, db.Delete(&gone).Error)
	require.NoError(t, db.Model(&older).Update("status", models.OrderStatusCompleted).Error)
	require.NoError(t, Reconcile(db, tbl.ID, older.ID))
	require.NoError(t, db.First(&got, tbl.ID).Error)
	assert.False(t, got.IsOccupied)
	assert.Nil(t, got.CurrentOrderID)
	assert.Equal(t, models.TableStatusAvailable, got.Status)
}

func TestReconcileKeepsManualLabel(t *testing.T) {
	db := dbtest.New(t)
	tbl := seedTable(t, db, 3)
	settled := seedOrder(t, db, tbl.ID, models.OrderStatusCompleted, time.Now().UTC())
	require.NoError(t, db.Model(&tbl).Update("status", models.TableStatusCleaning).Error)

	require.NoError(t, Reconcile(db, tbl.ID, settled.ID))

	var got models.Table
	require.NoError(t, db.First(&got, tbl.ID).Error)
	assert.Equal(t, models.TableStatusCleaning, got.Status)
	assert.False(t, got.IsOccupied)
}

func TestReconcileLeavesOtherOrdersTable(t *testing.T) {
	db := dbtest.New(t)
	tbl := seedTable(t, db, 4)
	now := time.Now().UTC()
	holder := seedOrder(t, db, tbl.ID, models.OrderStatusPending, now)
	stale := seedOrder(t, db, tbl.ID, models.OrderStatusCancelled, now.Add(-time.Hour))
	require.NoError(t, Occupy(db, tbl.ID, holder.ID))

	require.NoError(t, Reconcile(db, tbl.ID, stale.ID))

	var got models.Table
	require.NoError(t, db.First(&got, tbl.ID).Error)
	assert.True(t, got.IsOccupied)
	require.NotNil(t, got.CurrentOrderID)
	assert.Equal(t, holder.ID, *got.CurrentOrderID)
}

func TestReleaseKeepsReservedLabel(t *testing.T) {
	db := dbtest.New(t)
	tbl := seedTable(t, db, 6)
	require.NoError(t, db.Model(&tbl).Update("status", models.TableStatusReserved).Error)

	require.NoError(t, Release(db, tbl.ID))

	var got models.Table
	require.NoError(t, db.First(&got, tbl.ID).Error)
	assert.Equal(t, models.TableStatusReserved, got.Status)
}

func newApp(db *gorm.DB) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var ae *apperr.Error
			if errors.As(err, &ae) {
				return c.Status(ae.StatusCode()).JSON(fiber.Map{"error": ae.Error()})
			}
			return fiber.DefaultErrorHandler(c, err)
		},
	})
	app.Post("/tables", CreateTableHandler(db))
	app.Put("/tables/:id", UpdateTableHandler(db))
	app.Put("/tables/:id/status", UpdateTableStatusHandler(db))
	app.Delete("/tables/:id", DeleteTableHandler(db))
	return app
}

func send(t *testing.T, app *fiber.App, method, path, body string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestCreateTableValidation(t *testing.T) {
	db := dbtest.New(t)
	app := newApp(db)

	assert.Equal(t, fiber.StatusCreated, send(t, app, "POST", "/tables", `{"table_number":5,"capacity":4}`))
	assert.Equal(t, fiber.StatusConflict, send(t, app, "POST", "/tables", `{"table_number":5,"capacity":2}`))
	assert.Equal(t, fiber.StatusBadRequest, send(t, app, "POST", "/tables", `{"capacity":2}`))
	assert.Equal(t, fiber.StatusBadRequest, send(t, app, "POST", "/tables", `{"table_number":7,"capacity":0}`))
	assert.Equal(t, fiber.StatusBadRequest, send(t, app, "POST", "/tables", `not json`))
}

func TestUpdateTableStatus(t *testing.T) {
	db := dbtest.New(t)
	app := newApp(db)
	free := seedTable(t, db, 1)
	busy := seedTable(t, db, 2)
	o := seedOrder(t, db, busy.ID, models.OrderStatusPending, time.Now().UTC())
	require.NoError(t, Occupy(db, busy.ID, o.ID))

	assert.Equal(t, fiber.StatusOK, send(t, app, "PUT", "/tables/1/status", `{"status":"cleaning"}`))
	var got models.Table
	require.NoError(t, db.First(&got, free.ID).Error)
	assert.Equal(t, models.TableStatusCleaning, got.Status)

	assert.Equal(t, fiber.StatusBadRequest, send(t, app, "PUT", "/tables/1/status", `{"status":"occupied"}`))
	assert.Equal(t, fiber.StatusBadRequest, send(t, app, "PUT", "/tables/1/status", `{"status":"dirty"}`))
	assert.Equal(t, fiber.StatusConflict, send(t, app, "PUT", "/tables/2/status", `{"status":"reserved"}`))
	assert.Equal(t, fiber.StatusNotFound, send(t, app, "PUT", "/tables/9/status", `{"status":"reserved"}`))
}

func TestDeleteTable(t *testing.T) {
	db := dbtest.New(t)
	app := newApp(db)
	seedTable(t, db, 1)
	used := seedTable(t, db, 2)
	seedOrder(t, db, used.ID, models.OrderStatusCompleted, time.Now().UTC())

	assert.Equal(t, fiber.StatusNoContent, send(t, app, "DELETE", "/tables/1", ""))
	assert.Equal(t, fiber.StatusConflict, send(t, app, "DELETE", "/tables/2", ""))
	assert.Equal(t, fiber.StatusNotFound, send(t, app, "DELETE", "/tables/1", ""))
}
