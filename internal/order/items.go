package order

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"foodorder-backend/internal/apperr"
	"foodorder-backend/internal/audit"
	"foodorder-backend/internal/database"
	"foodorder-backend/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AddItemInput struct {
	OrderID uint `json:"order_id"`
	ItemInput
}

// ItemPatch updates one order item. A non-nil OrderID moves the item to that order.
type ItemPatch struct {
	OrderID    *uint              `json:"order_id"`
	MenuItemID *uint              `json:"menu_id"`
	Quantity   *int               `json:"quantity"`
	Notes      *string            `json:"notes"`
	Status     *models.ItemStatus `json:"item_status"`
}

func (s *Service) AddItem(ctx context.Context, in AddItemInput) (*models.OrderItem, error) {
	ctx, span := s.tracer.Start(ctx, "order.add_item")
	defer span.End()

	if in.OrderID == 0 {
		return nil, apperr.Validation("order_id is required")
	}

	var item models.OrderItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := Lock(tx, in.OrderID)
		if err != nil {
			return asDependency(err, "order %d does not exist", in.OrderID)
		}

		if item, err = priceItem(tx, in.ItemInput); err != nil {
			return err
		}
		item.OrderID = o.ID
		if err := tx.Create(&item).Error; err != nil {
			return apperr.FromStore(err, nil)
		}

		before := o.TotalAmount
		if err := recalcTotal(tx, o); err != nil {
			return err
		}

		return audit.Record(tx, audit.Entry{
			EntityType:  "order_item",
			EntityID:    item.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("item added to order %d, total %s -> %s", o.ID, before.StringFixed(2), o.TotalAmount.StringFixed(2)),
			After:       item,
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &item, nil
}

func (s *Service) GetItem(ctx context.Context, id uint) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := s.db.WithContext(ctx).Preload("MenuItem").First(&item, id).Error; err != nil {
		return nil, apperr.FromStore(err, apperr.NotFound("order item %d not found", id))
	}
	return &item, nil
}

// ListItems returns items ordered by id, optionally restricted to one order and/or
// item status.
func (s *Service) ListItems(ctx context.Context, orderID uint, status models.ItemStatus) ([]models.OrderItem, error) {
	dbq := s.db.WithContext(ctx).Preload("MenuItem")
	if orderID > 0 {
		dbq = dbq.Where("order_id = ?", orderID)
	}
	if status != "" {
		if !status.Valid() {
			return nil, invalidItemStatus(status)
		}
		dbq = dbq.Where("item_status = ?", status)
	}

	var items []models.OrderItem
	if err := dbq.Order("id ASC").Find(&items).Error; err != nil {
		return nil, apperr.FromStore(err, nil)
	}
	return items, nil
}

// UpdateItem applies p to item id. Both the item's previous and new owning orders are
// locked in ascending id order before the item and have their totals recomputed.
func (s *Service) UpdateItem(ctx context.Context, id uint, p ItemPatch) (*models.OrderItem, error) {
	ctx, span := s.tracer.Start(ctx, "order.update_item")
	defer span.End()

	if p.Quantity != nil && *p.Quantity <= 0 {
		return nil, apperr.Validation("quantity must be positive")
	}
	if p.Status != nil && !p.Status.Valid() {
		return nil, invalidItemStatus(*p.Status)
	}
	if p.OrderID != nil && *p.OrderID == 0 {
		return nil, apperr.Validation("order_id must be positive")
	}

	var target uint
	if p.OrderID != nil {
		target = *p.OrderID
	}

	var item models.OrderItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var (
			locked map[uint]*models.Order
			ids    []uint
			err    error
		)
		item, locked, ids, err = lockItem(tx, id, target)
		if err != nil {
			return err
		}
		before := item

		fields := map[string]any{}
		if p.OrderID != nil && *p.OrderID != item.OrderID {
			item.OrderID = *p.OrderID
			fields["order_id"] = item.OrderID
		}
		if p.MenuItemID != nil && *p.MenuItemID != item.MenuItemID {
			m, err := lookupMenuItem(tx, *p.MenuItemID)
			if err != nil {
				return err
			}
			item.MenuItemID = m.ID
			item.ItemPrice = m.Price
			fields["menu_id"] = item.MenuItemID
			fields["item_price"] = item.ItemPrice
		}
		if p.Quantity != nil {
			item.Quantity = *p.Quantity
			fields["quantity"] = item.Quantity
		}
		if p.Notes != nil {
			item.Notes = strings.TrimSpace(*p.Notes)
			fields["notes"] = item.Notes
		}
		if p.Status != nil {
			item.ItemStatus = *p.Status
			fields["item_status"] = item.ItemStatus
		}
		if len(fields) == 0 {
			return nil
		}

		if err := tx.Model(&item).Updates(fields).Error; err != nil {
			return apperr.FromStore(err, nil)
		}
		for _, oid := range ids {
			if err := recalcTotal(tx, locked[oid]); err != nil {
				return err
			}
		}

		return audit.Record(tx, audit.Entry{
			EntityType:  "order_item",
			EntityID:    item.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("item updated on order %d", item.OrderID),
			Before:      before,
			After:       item,
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return s.GetItem(ctx, id)
}

// SetItemStatus changes only the kitchen status of an item; the order status is not touched.
func (s *Service) SetItemStatus(ctx context.Context, id uint, status models.ItemStatus) (*models.OrderItem, error) {
	item, err := s.UpdateItem(ctx, id, ItemPatch{Status: &status})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"item_id": id, "order_id": item.OrderID, "status": status}).Info("item status changed")
	return item, nil
}

func (s *Service) DeleteItem(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, locked, _, err := lockItem(tx, id, 0)
		if err != nil {
			return err
		}
		o := locked[item.OrderID]

		if err := tx.Delete(&item).Error; err != nil {
			return apperr.FromStore(err, nil)
		}
		if err := recalcTotal(tx, o); err != nil {
			return err
		}

		return audit.Record(tx, audit.Entry{
			EntityType:  "order_item",
			EntityID:    item.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("item removed from order %d, total now %s", o.ID, o.TotalAmount.StringFixed(2)),
			Before:      item,
		})
	})
}

// lockItem locks the order owning item id, plus target when it is another order,
// in ascending id order, and only then the item row. Orders are always locked
// before their items and payments.
func lockItem(tx *gorm.DB, id, target uint) (models.OrderItem, map[uint]*models.Order, []uint, error) {
	var item models.OrderItem
	if err := tx.Select("id", "order_id").First(&item, id).Error; err != nil {
		return item, nil, nil, apperr.FromStore(err, apperr.NotFound("order item %d not found", id))
	}
	owner := item.OrderID

	ids := []uint{owner}
	if target != 0 && target != owner {
		ids = append(ids, target)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	locked := make(map[uint]*models.Order, len(ids))
	for _, oid := range ids {
		o, err := Lock(tx, oid)
		if err != nil {
			if oid != owner {
				return item, nil, nil, asDependency(err, "order %d does not exist", oid)
			}
			return item, nil, nil, err
		}
		locked[oid] = o
	}

	item = models.OrderItem{}
	if err := database.LockForUpdate(tx).First(&item, id).Error; err != nil {
		return item, nil, nil, apperr.FromStore(err, apperr.NotFound("order item %d not found", id))
	}
	if item.OrderID != owner {
		return item, nil, nil, apperr.Conflict("order item %d was moved to order %d, retry", id, item.OrderID)
	}
	return item, locked, ids, nil
}

// asDependency reports a missing referenced row as a bad request instead of a 404.
func asDependency(err error, format string, args ...any) error {
	if apperr.IsKind(err, apperr.KindNotFound) {
		return apperr.Dependency(format, args...)
	}
	return err
}

func invalidItemStatus(s models.ItemStatus) *apperr.Error {
	return apperr.Validation("invalid item status %q, allowed: pending, preparing, ready, served, cancelled", s)
}
