// Package order owns the order aggregate: an order and its line items, mutated only
// inside transactions that keep the order total equal to the sum of its line totals.
package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"foodorder-backend/internal/apperr"
	"foodorder-backend/internal/audit"
	"foodorder-backend/internal/database"
	"foodorder-backend/internal/models"
	"foodorder-backend/internal/table"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const instrumentationName = "foodorder-backend/internal/order"

type ItemInput struct {
	MenuItemID uint   `json:"menu_id"`
	Quantity   int    `json:"quantity"`
	Notes      string `json:"notes"`
}

type CreateInput struct {
	TableID      uint        `json:"table_id"`
	CustomerName string      `json:"customer_name"`
	Notes        string      `json:"notes"`
	Items        []ItemInput `json:"items"`
}

// Patch is a merge-if-present update: nil fields keep their stored value. A non-nil
// Items replaces the whole item set.
type Patch struct {
	CustomerName  *string             `json:"customer_name"`
	Status        *models.OrderStatus `json:"status"`
	BillRequested *bool               `json:"bill_requested"`
	Notes         *string             `json:"notes"`
	Items         []ItemInput         `json:"items"`
}

type ListFilter struct {
	Status  models.OrderStatus
	TableID uint
}

type Service struct {
	db      *gorm.DB
	tracer  trace.Tracer
	created metric.Int64Counter
}

func NewService(db *gorm.DB) *Service {
	meter := otel.Meter(instrumentationName)
	created, err := meter.Int64Counter("orders.created", metric.WithDescription("Orders created"))
	if err != nil {
		logrus.WithError(err).Warn("orders.created counter unavailable")
	}
	return &Service{
		db:      db,
		tracer:  otel.Tracer(instrumentationName),
		created: created,
	}
}

// Lock loads order id with an exclusive row lock held until tx ends.
func Lock(tx *gorm.DB, id uint) (*models.Order, error) {
	var o models.Order
	if err := database.LockForUpdate(tx).First(&o, id).Error; err != nil {
		return nil, apperr.FromStore(err, apperr.NotFound("order %d not found", id))
	}
	return &o, nil
}

// Settle completes a locked order and frees its table. Used when a payment completes.
func Settle(tx *gorm.DB, o *models.Order) error {
	if err := tx.Model(o).Update("status", models.OrderStatusCompleted).Error; err != nil {
		return apperr.FromStore(err, nil)
	}
	o.Status = models.OrderStatusCompleted
	return table.Release(tx, o.TableID)
}

// Create prices every item from the menu, stores the order and occupies its table
// in a single transaction. Client-supplied prices or totals are never consulted.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.create")
	defer span.End()

	if in.TableID == 0 {
		return nil, apperr.Validation("table_id is required")
	}
	if len(in.Items) == 0 {
		return nil, apperr.Validation("at least one item is required")
	}

	o := models.Order{
		TableID:      in.TableID,
		CustomerName: customerName(in.CustomerName),
		Notes:        strings.TrimSpace(in.Notes),
		Status:       models.OrderStatusPending,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Table
		if err := database.LockForUpdate(tx).First(&t, in.TableID).Error; err != nil {
			return apperr.FromStore(err, apperr.Dependency("table %d does not exist", in.TableID))
		}

		items, err := priceItems(tx, in.Items)
		if err != nil {
			return err
		}

		o.OrderTime = time.Now().UTC()
		o.TotalAmount = models.SumLineTotals(items)
		if err := tx.Create(&o).Error; err != nil {
			return apperr.FromStore(err, nil)
		}

		for i := range items {
			items[i].OrderID = o.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return apperr.FromStore(err, nil)
		}
		o.Items = items

		if err := table.Occupy(tx, t.ID, o.ID); err != nil {
			return err
		}

		return audit.Record(tx, audit.Entry{
			EntityType:  "order",
			EntityID:    o.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("order for table %d with %d items, total %s", t.TableNumber, len(items), o.TotalAmount.StringFixed(2)),
			After:       o,
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.created != nil {
		s.created.Add(ctx, 1)
	}
	span.SetAttributes(attribute.Int64("order.id", int64(o.ID)), attribute.String("order.total", o.TotalAmount.String()))
	logrus.WithFields(logrus.Fields{
		"order_id": o.ID,
		"table_id": o.TableID,
		"items":    len(o.Items),
		"total":    o.TotalAmount.StringFixed(2),
	}).Info("order created")

	return &o, nil
}

// Get returns the order with its table and items (ordered by id, menu preloaded).
func (s *Service) Get(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := s.db.WithContext(ctx).
		Preload("Table").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.id ASC") }).
		Preload("Items.MenuItem").
		First(&o, id).Error
	if err != nil {
		return nil, apperr.FromStore(err, apperr.NotFound("order %d not found", id))
	}
	return &o, nil
}

// PaidAmount sums the completed payments recorded against an order.
func (s *Service) PaidAmount(ctx context.Context, orderID uint) (decimal.Decimal, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, models.PaymentStatusCompleted).
		Find(&payments).Error
	if err != nil {
		return decimal.Zero, apperr.FromStore(err, nil)
	}
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	return paid, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]models.Order, error) {
	dbq := s.db.WithContext(ctx).Preload("Table")
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, invalidStatus(f.Status)
		}
		dbq = dbq.Where("status = ?", f.Status)
	}
	if f.TableID > 0 {
		dbq = dbq.Where("table_id = ?", f.TableID)
	}

	var orders []models.Order
	if err := dbq.Order("order_time DESC, id DESC").Find(&orders).Error; err != nil {
		return nil, apperr.FromStore(err, nil)
	}
	return orders, nil
}

// Update applies p to order id. Replacing items deletes the current set and prices
// the new one from the menu; the total is recomputed either way.
func (s *Service) Update(ctx context.Context, id uint, p Patch) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.update")
	defer span.End()

	if p.Status != nil && !p.Status.Valid() {
		return nil, invalidStatus(*p.Status)
	}
	if p.Items != nil && len(p.Items) == 0 {
		return nil, apperr.Validation("replacement item list must not be empty")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := Lock(tx, id)
		if err != nil {
			return err
		}
		before := *o

		fields := map[string]any{}
		if p.CustomerName != nil {
			o.CustomerName = customerName(*p.CustomerName)
			fields["customer_name"] = o.CustomerName
		}
		if p.BillRequested != nil {
			o.BillRequested = *p.BillRequested
			fields["bill_requested"] = o.BillRequested
		}
		if p.Notes != nil {
			o.Notes = strings.TrimSpace(*p.Notes)
			fields["notes"] = o.Notes
		}
		if len(fields) > 0 {
			if err := tx.Model(o).Updates(fields).Error; err != nil {
				return apperr.FromStore(err, nil)
			}
		}

		if p.Items != nil {
			if err := tx.Where("order_id = ?", o.ID).Delete(&models.OrderItem{}).Error; err != nil {
				return apperr.FromStore(err, nil)
			}
			items, err := priceItems(tx, p.Items)
			if err != nil {
				return err
			}
			for i := range items {
				items[i].OrderID = o.ID
			}
			if err := tx.Create(&items).Error; err != nil {
				return apperr.FromStore(err, nil)
			}
		}
		if err := recalcTotal(tx, o); err != nil {
			return err
		}

		if p.Status != nil {
			if err := applyStatus(tx, o, *p.Status); err != nil {
				return err
			}
		}

		return audit.Record(tx, audit.Entry{
			EntityType:  "order",
			EntityID:    o.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("order updated, total %s", o.TotalAmount.StringFixed(2)),
			Before:      before,
			After:       o,
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return s.Get(ctx, id)
}

// SetStatus moves the order to status. Any enumerated status may follow any other;
// leaving the active states gives the table back unless another active order holds it.
func (s *Service) SetStatus(ctx context.Context, id uint, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, invalidStatus(status)
	}

	var o *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if o, err = Lock(tx, id); err != nil {
			return err
		}
		from := o.Status
		if err := applyStatus(tx, o, status); err != nil {
			return err
		}
		return audit.Record(tx, audit.Entry{
			EntityType:  "order",
			EntityID:    o.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("order status %s -> %s", from, status),
			Before:      map[string]any{"status": from},
			After:       map[string]any{"status": status},
		})
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"order_id": id, "status": status}).Info("order status changed")
	return o, nil
}

func (s *Service) SetBillRequested(ctx context.Context, id uint, requested bool) (*models.Order, error) {
	return s.Update(ctx, id, Patch{BillRequested: &requested})
}

// Delete removes the order with its items and payments, then re-derives the table's
// occupancy from the orders that remain.
func (s *Service) Delete(ctx context.Context, id uint) error {
	ctx, span := s.tracer.Start(ctx, "order.delete")
	defer span.End()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := Lock(tx, id)
		if err != nil {
			return err
		}

		if err := tx.Where("order_id = ?", o.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return apperr.FromStore(err, nil)
		}
		if err := tx.Where("order_id = ?", o.ID).Delete(&models.Payment{}).Error; err != nil {
			return apperr.FromStore(err, nil)
		}
		if err := tx.Delete(o).Error; err != nil {
			return apperr.FromStore(err, nil)
		}

		if err := table.Reconcile(tx, o.TableID, o.ID); err != nil {
			return err
		}

		return audit.Record(tx, audit.Entry{
			EntityType:  "order",
			EntityID:    o.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("order deleted, total was %s", o.TotalAmount.StringFixed(2)),
			Before:      o,
		})
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	logrus.WithField("order_id", id).Info("order deleted")
	return nil
}

func applyStatus(tx *gorm.DB, o *models.Order, status models.OrderStatus) error {
	wasActive := o.Status.Active()
	if err := tx.Model(o).Update("status", status).Error; err != nil {
		return apperr.FromStore(err, nil)
	}
	o.Status = status

	if wasActive && !status.Active() {
		return table.Reconcile(tx, o.TableID, o.ID)
	}
	return nil
}

// recalcTotal sets the order total to the sum of its stored line totals.
func recalcTotal(tx *gorm.DB, o *models.Order) error {
	var items []models.OrderItem
	if err := tx.Where("order_id = ?", o.ID).Find(&items).Error; err != nil {
		return apperr.FromStore(err, nil)
	}
	o.TotalAmount = models.SumLineTotals(items)
	if err := tx.Model(&models.Order{}).Where("id = ?", o.ID).Update("total_amount", o.TotalAmount).Error; err != nil {
		return apperr.FromStore(err, nil)
	}
	return nil
}

// priceItems validates the inputs and captures the current menu price of each.
func priceItems(tx *gorm.DB, inputs []ItemInput) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(inputs))
	for _, in := range inputs {
		item, err := priceItem(tx, in)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func priceItem(tx *gorm.DB, in ItemInput) (models.OrderItem, error) {
	if in.MenuItemID == 0 {
		return models.OrderItem{}, apperr.Validation("menu_id is required for every item")
	}
	if in.Quantity <= 0 {
		return models.OrderItem{}, apperr.Validation("quantity for menu item %d must be positive", in.MenuItemID)
	}

	m, err := lookupMenuItem(tx, in.MenuItemID)
	if err != nil {
		return models.OrderItem{}, err
	}

	return models.OrderItem{
		MenuItemID: m.ID,
		Quantity:   in.Quantity,
		ItemPrice:  m.Price,
		Notes:      strings.TrimSpace(in.Notes),
		ItemStatus: models.ItemStatusPending,
	}, nil
}

func lookupMenuItem(tx *gorm.DB, id uint) (*models.MenuItem, error) {
	var m models.MenuItem
	if err := tx.First(&m, id).Error; err != nil {
		return nil, apperr.FromStore(err, apperr.Dependency("menu item %d does not exist", id))
	}
	if !m.IsAvailable {
		return nil, apperr.Validation("menu item %q is not available", m.Name)
	}
	return &m, nil
}

func customerName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.DefaultCustomerName
	}
	return s
}

func invalidStatus(s models.OrderStatus) *apperr.Error {
	return apperr.Validation("invalid status %q, allowed: pending, preparing, completed, cancelled", s)
}
