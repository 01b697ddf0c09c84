package table

import (
	"foodorder-backend/internal/apperr"
	"foodorder-backend/internal/database"
	"foodorder-backend/internal/models"

	"gorm.io/gorm"
)

// Occupy marks the table as holding orderID.
func Occupy(tx *gorm.DB, tableID, orderID uint) error {
	err := tx.Model(&models.Table{}).Where("id = ?", tableID).Updates(map[string]any{
		"is_occupied":      true,
		"current_order_id": orderID,
		"status":           models.TableStatusOccupied,
	}).Error
	return apperr.FromStore(err, nil)
}

// Release frees the table and clears its current order. A manual label such as
// cleaning or reserved is kept; only the occupied label goes back to available.
func Release(tx *gorm.DB, tableID uint) error {
	err := tx.Model(&models.Table{}).Where("id = ?", tableID).Updates(map[string]any{
		"is_occupied":      false,
		"current_order_id": nil,
	}).Error
	if err != nil {
		return apperr.FromStore(err, nil)
	}

	err = tx.Model(&models.Table{}).
		Where("id = ? AND status = ?", tableID, models.TableStatusOccupied).
		Update("status", models.TableStatusAvailable).Error
	return apperr.FromStore(err, nil)
}

// Reconcile re-derives occupancy after orderID stopped being active at the table,
// because it was deleted, completed or cancelled. Tables not held by orderID are left
// alone. Otherwise the table is released unless another active order remains, in
// which case it points at the newest one.
func Reconcile(tx *gorm.DB, tableID, orderID uint) error {
	var t models.Table
	if err := database.LockForUpdate(tx).First(&t, tableID).Error; err != nil {
		return apperr.FromStore(err, nil)
	}

	heldByOrder := t.CurrentOrderID != nil && *t.CurrentOrderID == orderID
	orphaned := t.IsOccupied && t.CurrentOrderID == nil
	if !heldByOrder && !orphaned {
		return nil
	}

	var next models.Order
	err := tx.Where("table_id = ? AND id <> ? AND status IN ?", tableID, orderID,
		[]models.OrderStatus{models.OrderStatusPending, models.OrderStatusPreparing}).
		Order("order_time DESC, id DESC").
		Limit(1).
		Find(&next).Error
	if err != nil {
		return apperr.FromStore(err, nil)
	}

	if next.ID == 0 {
		return Release(tx, tableID)
	}
	return Occupy(tx, tableID, next.ID)
}
